package actions

import (
	"context"
	"errors"
	"fmt"

	"github.com/ava-labs/avalanchego/ids"
	"github.com/ava-labs/avalanchego/utils/wrappers"

	"github.com/ava-labs/hypersdk/chain"
	"github.com/ava-labs/hypersdk/codec"
	"github.com/ava-labs/hypersdk/state"

	mconsts "github.com/margined-labs/marginvm/consts"
	"github.com/margined-labs/marginvm/storage"
)

const (
	UpdateConfigComputeUnits = 2
	MaxUpdateConfigSize      = 256
)

var (
	ErrUnmarshalEmptyUpdateConfig              = errors.New("cannot unmarshal empty bytes as update_config")
	_                             chain.Action = (*UpdateConfig)(nil)
)

// UpdateConfig transfers engine ownership. Only the currently stored owner
// may execute it; the new owner arrives as a raw string and must pass
// address validation.
type UpdateConfig struct {
	Owner string `serialize:"true" json:"owner"`
}

func (*UpdateConfig) GetTypeID() uint8 {
	return mconsts.UpdateConfigID
}

func (*UpdateConfig) StateKeys(_ codec.Address, _ ids.ID) state.Keys {
	return state.Keys{
		string(storage.ConfigKey()): state.Read | state.Write,
	}
}

func (t *UpdateConfig) Bytes() []byte {
	p := &wrappers.Packer{
		Bytes:   make([]byte, 0, MaxUpdateConfigSize),
		MaxSize: MaxUpdateConfigSize,
	}
	p.PackByte(mconsts.UpdateConfigID)
	if err := codec.LinearCodec.MarshalInto(t, p); err != nil {
		panic(err)
	}
	return p.Bytes
}

func UnmarshalUpdateConfig(bytes []byte) (chain.Action, error) {
	t := &UpdateConfig{}
	if len(bytes) == 0 {
		return nil, ErrUnmarshalEmptyUpdateConfig
	}
	if bytes[0] != mconsts.UpdateConfigID {
		return nil, fmt.Errorf("unexpected update_config typeID: %d != %d", bytes[0], mconsts.UpdateConfigID)
	}
	if err := codec.LinearCodec.UnmarshalFrom(
		&wrappers.Packer{Bytes: bytes[1:]},
		t,
	); err != nil {
		return nil, err
	}
	return t, nil
}

func (t *UpdateConfig) Execute(
	ctx context.Context,
	_ chain.Rules,
	mu state.Mutable,
	_ int64,
	actor codec.Address,
	_ ids.ID,
) ([]byte, error) {
	cfg, err := storage.GetConfig(ctx, mu)
	if err != nil {
		return nil, err
	}
	if actor != cfg.Owner {
		return nil, storage.ErrUnauthorized
	}

	owner, err := codec.StringToAddress(t.Owner)
	if err != nil {
		return nil, fmt.Errorf("%w: %q", storage.ErrInvalidAddress, t.Owner)
	}

	cfg.Owner = owner
	if err := storage.PutConfig(ctx, mu, cfg); err != nil {
		return nil, err
	}

	result := &UpdateConfigResult{
		Owner:              cfg.Owner,
		EligibleCollateral: cfg.EligibleCollateral,
	}
	return result.Bytes(), nil
}

func (*UpdateConfig) ComputeUnits(chain.Rules) uint64 {
	return UpdateConfigComputeUnits
}

func (*UpdateConfig) ValidRange(chain.Rules) (int64, int64) {
	return -1, -1
}

var _ codec.Typed = (*UpdateConfigResult)(nil)

type UpdateConfigResult struct {
	Owner              codec.Address `serialize:"true" json:"owner"`
	EligibleCollateral codec.Address `serialize:"true" json:"eligible_collateral"`
}

func (*UpdateConfigResult) GetTypeID() uint8 {
	return mconsts.UpdateConfigID
}

func (t *UpdateConfigResult) Bytes() []byte {
	p := &wrappers.Packer{
		Bytes:   make([]byte, 0, MaxUpdateConfigSize),
		MaxSize: MaxUpdateConfigSize,
	}
	p.PackByte(mconsts.UpdateConfigID)
	_ = codec.LinearCodec.MarshalInto(t, p)
	return p.Bytes
}

func UnmarshalUpdateConfigResult(b []byte) (codec.Typed, error) {
	t := &UpdateConfigResult{}
	if err := codec.LinearCodec.UnmarshalFrom(
		&wrappers.Packer{Bytes: b[1:]},
		t,
	); err != nil {
		return nil, err
	}
	return t, nil
}
