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
	ClosePositionComputeUnits = 4
	MaxClosePositionSize      = 512
)

var (
	ErrPositionNotFound                         = errors.New("position not found")
	ErrUnmarshalEmptyClosePosition              = errors.New("cannot unmarshal empty bytes as close_position")
	_                              chain.Action = (*ClosePosition)(nil)
)

// ClosePosition closes the actor's position on a vamm. The record is never
// deleted: the same digest key receives a zeroed record (the no-position
// sentinel) so downstream arithmetic keeps a concrete value to read.
type ClosePosition struct {
	Vamm codec.Address `serialize:"true" json:"vamm"`
}

func (*ClosePosition) GetTypeID() uint8 {
	return mconsts.ClosePositionID
}

func (t *ClosePosition) StateKeys(actor codec.Address, _ ids.ID) state.Keys {
	return state.Keys{
		string(storage.PositionKey(t.Vamm, actor)):       state.Read | state.Write,
		string(storage.TmpPositionKey()):                 state.All,
		string(storage.BalanceKey(actor)):                state.All,
		string(storage.BalanceKey(storage.VaultAddress)): state.Read | state.Write,
	}
}

func (t *ClosePosition) Bytes() []byte {
	p := &wrappers.Packer{
		Bytes:   make([]byte, 0, MaxClosePositionSize),
		MaxSize: MaxClosePositionSize,
	}
	p.PackByte(mconsts.ClosePositionID)
	if err := codec.LinearCodec.MarshalInto(t, p); err != nil {
		panic(err)
	}
	return p.Bytes
}

func UnmarshalClosePosition(bytes []byte) (chain.Action, error) {
	t := &ClosePosition{}
	if len(bytes) == 0 {
		return nil, ErrUnmarshalEmptyClosePosition
	}
	if bytes[0] != mconsts.ClosePositionID {
		return nil, fmt.Errorf("unexpected close_position typeID: %d != %d", bytes[0], mconsts.ClosePositionID)
	}
	if err := codec.LinearCodec.UnmarshalFrom(
		&wrappers.Packer{Bytes: bytes[1:]},
		t,
	); err != nil {
		return nil, err
	}
	return t, nil
}

func (t *ClosePosition) Execute(
	ctx context.Context,
	_ chain.Rules,
	mu state.Mutable,
	timestamp int64,
	actor codec.Address,
	_ ids.ID,
) ([]byte, error) {
	position, exists, err := storage.GetPosition(ctx, mu, t.Vamm, actor)
	if err != nil {
		return nil, err
	}
	if !exists || position.Size == 0 {
		return nil, ErrPositionNotFound
	}

	// Zero the economic fields but keep vamm/trader so the sentinel lands
	// at the position's own digest key.
	closed := storage.Position{
		Vamm:      position.Vamm,
		Trader:    position.Trader,
		Direction: storage.DirectionAddToAmm,
		Timestamp: timestamp,
	}
	if err := storage.PutTmpPosition(ctx, mu, closed); err != nil {
		return nil, err
	}

	quoter, err := currentVammQuoter()
	if err != nil {
		return nil, err
	}
	exitNotional, err := quoter.QuoteBase(t.Vamm, oppositeDirection(position.Direction), position.Size)
	if err != nil {
		return nil, err
	}

	if _, err := storage.SubBalance(ctx, mu, storage.VaultAddress, position.Margin); err != nil {
		return nil, err
	}
	if _, err := storage.AddBalance(ctx, mu, actor, position.Margin); err != nil {
		return nil, err
	}

	if err := storage.PutPosition(ctx, mu, closed); err != nil {
		return nil, err
	}
	if err := storage.RemoveTmpPosition(ctx, mu); err != nil {
		return nil, err
	}

	result := &ClosePositionResult{
		Vamm:           t.Vamm,
		Trader:         actor,
		MarginReturned: position.Margin,
		ExitNotional:   exitNotional,
		Timestamp:      timestamp,
	}
	return result.Bytes(), nil
}

func oppositeDirection(direction uint8) uint8 {
	if direction == storage.DirectionAddToAmm {
		return storage.DirectionRemoveFromAmm
	}
	return storage.DirectionAddToAmm
}

func (*ClosePosition) ComputeUnits(chain.Rules) uint64 {
	return ClosePositionComputeUnits
}

func (*ClosePosition) ValidRange(chain.Rules) (int64, int64) {
	return -1, -1
}

var _ codec.Typed = (*ClosePositionResult)(nil)

type ClosePositionResult struct {
	Vamm           codec.Address `serialize:"true" json:"vamm"`
	Trader         codec.Address `serialize:"true" json:"trader"`
	MarginReturned uint64        `serialize:"true" json:"margin_returned"`
	ExitNotional   uint64        `serialize:"true" json:"exit_notional"`
	Timestamp      int64         `serialize:"true" json:"timestamp"`
}

func (*ClosePositionResult) GetTypeID() uint8 {
	return mconsts.ClosePositionID
}

func (t *ClosePositionResult) Bytes() []byte {
	p := &wrappers.Packer{
		Bytes:   make([]byte, 0, MaxClosePositionSize),
		MaxSize: MaxClosePositionSize,
	}
	p.PackByte(mconsts.ClosePositionID)
	_ = codec.LinearCodec.MarshalInto(t, p)
	return p.Bytes
}

func UnmarshalClosePositionResult(b []byte) (codec.Typed, error) {
	t := &ClosePositionResult{}
	if err := codec.LinearCodec.UnmarshalFrom(
		&wrappers.Packer{Bytes: b[1:]},
		t,
	); err != nil {
		return nil, err
	}
	return t, nil
}
