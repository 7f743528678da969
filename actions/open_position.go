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

	smath "github.com/ava-labs/avalanchego/utils/math"

	mconsts "github.com/margined-labs/marginvm/consts"
	"github.com/margined-labs/marginvm/storage"
)

const (
	OpenPositionComputeUnits = 4
	MaxOpenPositionSize      = 512
)

var (
	ErrOutputQuoteAmountZero                = errors.New("quote amount is zero")
	ErrOutputLeverageTooLow                 = errors.New("leverage is below one")
	ErrOutputInvalidDirection               = errors.New("invalid direction")
	ErrVammNotRegistered                    = errors.New("vamm is not registered")
	ErrPositionAlreadyOpen                  = errors.New("position already open")
	ErrOutputNotionalOverflow               = errors.New("notional overflows")
	ErrUnmarshalEmptyOpenPosition           = errors.New("cannot unmarshal empty bytes as open_position")
	_                          chain.Action = (*OpenPosition)(nil)
)

// OpenPosition opens a new position for the actor on a registered vamm.
// Margin is escrowed in the engine vault; the base-asset size comes from the
// installed vamm quoter. The record is staged in the tentative slot until
// the quote and the escrow both succeed, then finalized at its digest key.
type OpenPosition struct {
	Vamm        codec.Address `serialize:"true" json:"vamm"`
	Direction   uint8         `serialize:"true" json:"direction"`
	QuoteAmount uint64        `serialize:"true" json:"quote_amount"`
	Leverage    uint64        `serialize:"true" json:"leverage"`
}

func (*OpenPosition) GetTypeID() uint8 {
	return mconsts.OpenPositionID
}

func (t *OpenPosition) StateKeys(actor codec.Address, _ ids.ID) state.Keys {
	return state.Keys{
		string(storage.ConfigKey()):                      state.Read,
		string(storage.VammListKey()):                    state.Read,
		string(storage.PositionKey(t.Vamm, actor)):       state.All,
		string(storage.TmpPositionKey()):                 state.All,
		string(storage.BalanceKey(actor)):                state.Read | state.Write,
		string(storage.BalanceKey(storage.VaultAddress)): state.All,
	}
}

func (t *OpenPosition) Bytes() []byte {
	p := &wrappers.Packer{
		Bytes:   make([]byte, 0, MaxOpenPositionSize),
		MaxSize: MaxOpenPositionSize,
	}
	p.PackByte(mconsts.OpenPositionID)
	if err := codec.LinearCodec.MarshalInto(t, p); err != nil {
		panic(err)
	}
	return p.Bytes
}

func UnmarshalOpenPosition(bytes []byte) (chain.Action, error) {
	t := &OpenPosition{}
	if len(bytes) == 0 {
		return nil, ErrUnmarshalEmptyOpenPosition
	}
	if bytes[0] != mconsts.OpenPositionID {
		return nil, fmt.Errorf("unexpected open_position typeID: %d != %d", bytes[0], mconsts.OpenPositionID)
	}
	if err := codec.LinearCodec.UnmarshalFrom(
		&wrappers.Packer{Bytes: bytes[1:]},
		t,
	); err != nil {
		return nil, err
	}
	return t, nil
}

func (t *OpenPosition) Execute(
	ctx context.Context,
	_ chain.Rules,
	mu state.Mutable,
	timestamp int64,
	actor codec.Address,
	_ ids.ID,
) ([]byte, error) {
	if t.QuoteAmount == 0 {
		return nil, ErrOutputQuoteAmountZero
	}
	if t.Direction != storage.DirectionAddToAmm && t.Direction != storage.DirectionRemoveFromAmm {
		return nil, ErrOutputInvalidDirection
	}

	cfg, err := storage.GetConfig(ctx, mu)
	if err != nil {
		return nil, err
	}
	// Leverage is fixed-point scaled by cfg.Decimals; anything below 1x
	// would shrink the notional under the posted margin.
	if t.Leverage < cfg.Decimals {
		return nil, ErrOutputLeverageTooLow
	}

	registered, err := storage.IsRegisteredVamm(ctx, mu, t.Vamm)
	if err != nil {
		return nil, err
	}
	if !registered {
		return nil, ErrVammNotRegistered
	}

	existing, exists, err := storage.GetPosition(ctx, mu, t.Vamm, actor)
	if err != nil {
		return nil, err
	}
	if exists && existing.Size > 0 {
		return nil, ErrPositionAlreadyOpen
	}

	scaled, err := smath.Mul(t.QuoteAmount, t.Leverage)
	if err != nil {
		return nil, ErrOutputNotionalOverflow
	}
	notional := scaled / cfg.Decimals

	staged := storage.Position{
		Vamm:      t.Vamm,
		Trader:    actor,
		Direction: t.Direction,
		Margin:    t.QuoteAmount,
		Notional:  notional,
		Timestamp: timestamp,
	}
	if err := storage.PutTmpPosition(ctx, mu, staged); err != nil {
		return nil, err
	}

	quoter, err := currentVammQuoter()
	if err != nil {
		return nil, err
	}
	size, err := quoter.QuoteBase(t.Vamm, t.Direction, notional)
	if err != nil {
		return nil, err
	}

	if _, err := storage.SubBalance(ctx, mu, actor, t.QuoteAmount); err != nil {
		return nil, err
	}
	if _, err := storage.AddBalance(ctx, mu, storage.VaultAddress, t.QuoteAmount); err != nil {
		return nil, err
	}

	staged.Size = size
	if err := storage.PutPosition(ctx, mu, staged); err != nil {
		return nil, err
	}
	if err := storage.RemoveTmpPosition(ctx, mu); err != nil {
		return nil, err
	}

	result := &OpenPositionResult{
		Vamm:      staged.Vamm,
		Trader:    staged.Trader,
		Direction: staged.Direction,
		Size:      staged.Size,
		Margin:    staged.Margin,
		Notional:  staged.Notional,
		Timestamp: staged.Timestamp,
	}
	return result.Bytes(), nil
}

func (*OpenPosition) ComputeUnits(chain.Rules) uint64 {
	return OpenPositionComputeUnits
}

func (*OpenPosition) ValidRange(chain.Rules) (int64, int64) {
	return -1, -1
}

var _ codec.Typed = (*OpenPositionResult)(nil)

type OpenPositionResult struct {
	Vamm      codec.Address `serialize:"true" json:"vamm"`
	Trader    codec.Address `serialize:"true" json:"trader"`
	Direction uint8         `serialize:"true" json:"direction"`
	Size      uint64        `serialize:"true" json:"size"`
	Margin    uint64        `serialize:"true" json:"margin"`
	Notional  uint64        `serialize:"true" json:"notional"`
	Timestamp int64         `serialize:"true" json:"timestamp"`
}

func (*OpenPositionResult) GetTypeID() uint8 {
	return mconsts.OpenPositionID
}

func (t *OpenPositionResult) Bytes() []byte {
	p := &wrappers.Packer{
		Bytes:   make([]byte, 0, MaxOpenPositionSize),
		MaxSize: MaxOpenPositionSize,
	}
	p.PackByte(mconsts.OpenPositionID)
	_ = codec.LinearCodec.MarshalInto(t, p)
	return p.Bytes
}

func UnmarshalOpenPositionResult(b []byte) (codec.Typed, error) {
	t := &OpenPositionResult{}
	if err := codec.LinearCodec.UnmarshalFrom(
		&wrappers.Packer{Bytes: b[1:]},
		t,
	); err != nil {
		return nil, err
	}
	return t, nil
}
