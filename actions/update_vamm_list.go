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
	UpdateVammListComputeUnits = 2
	MaxUpdateVammListSize      = 2048
)

var (
	ErrUnmarshalEmptyUpdateVammList              = errors.New("cannot unmarshal empty bytes as update_vamm_list")
	_                               chain.Action = (*UpdateVammList)(nil)
)

// UpdateVammList replaces the vamm whitelist wholesale. Every entry must
// validate or the whole action fails with no state change.
type UpdateVammList struct {
	Vamms []string `serialize:"true" json:"vamms"`
}

func (*UpdateVammList) GetTypeID() uint8 {
	return mconsts.UpdateVammListID
}

func (*UpdateVammList) StateKeys(_ codec.Address, _ ids.ID) state.Keys {
	return state.Keys{
		string(storage.ConfigKey()):   state.Read,
		string(storage.VammListKey()): state.Read | state.Write,
	}
}

func (t *UpdateVammList) Bytes() []byte {
	p := &wrappers.Packer{
		Bytes:   make([]byte, 0, MaxUpdateVammListSize),
		MaxSize: MaxUpdateVammListSize,
	}
	p.PackByte(mconsts.UpdateVammListID)
	if err := codec.LinearCodec.MarshalInto(t, p); err != nil {
		panic(err)
	}
	return p.Bytes
}

func UnmarshalUpdateVammList(bytes []byte) (chain.Action, error) {
	t := &UpdateVammList{}
	if len(bytes) == 0 {
		return nil, ErrUnmarshalEmptyUpdateVammList
	}
	if bytes[0] != mconsts.UpdateVammListID {
		return nil, fmt.Errorf("unexpected update_vamm_list typeID: %d != %d", bytes[0], mconsts.UpdateVammListID)
	}
	if err := codec.LinearCodec.UnmarshalFrom(
		&wrappers.Packer{Bytes: bytes[1:]},
		t,
	); err != nil {
		return nil, err
	}
	if len(t.Vamms) > storage.MaxVammsPerList {
		return nil, storage.ErrVammListTooLarge
	}
	return t, nil
}

func (t *UpdateVammList) Execute(
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

	vamms, err := storage.SetVamms(ctx, mu, t.Vamms)
	if err != nil {
		return nil, err
	}

	result := &UpdateVammListResult{
		Vamms: vamms,
	}
	return result.Bytes(), nil
}

func (*UpdateVammList) ComputeUnits(chain.Rules) uint64 {
	return UpdateVammListComputeUnits
}

func (*UpdateVammList) ValidRange(chain.Rules) (int64, int64) {
	return -1, -1
}

var _ codec.Typed = (*UpdateVammListResult)(nil)

type UpdateVammListResult struct {
	Vamms []codec.Address `serialize:"true" json:"vamms"`
}

func (*UpdateVammListResult) GetTypeID() uint8 {
	return mconsts.UpdateVammListID
}

func (t *UpdateVammListResult) Bytes() []byte {
	p := &wrappers.Packer{
		Bytes:   make([]byte, 0, MaxUpdateVammListSize),
		MaxSize: MaxUpdateVammListSize,
	}
	p.PackByte(mconsts.UpdateVammListID)
	_ = codec.LinearCodec.MarshalInto(t, p)
	return p.Bytes
}

func UnmarshalUpdateVammListResult(b []byte) (codec.Typed, error) {
	t := &UpdateVammListResult{}
	if err := codec.LinearCodec.UnmarshalFrom(
		&wrappers.Packer{Bytes: b[1:]},
		t,
	); err != nil {
		return nil, err
	}
	return t, nil
}
