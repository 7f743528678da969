package storage

import (
	"bytes"
	"context"
	"encoding/binary"
	"testing"

	"golang.org/x/crypto/sha3"

	"github.com/ava-labs/avalanchego/ids"
	"github.com/stretchr/testify/require"

	"github.com/ava-labs/hypersdk/chain/chaintest"
	"github.com/ava-labs/hypersdk/codec"
)

func TestConfigRoundTrip(t *testing.T) {
	require := require.New(t)
	ctx := context.Background()
	store := chaintest.NewInMemoryStore()

	cfg := Config{
		Owner:                  codec.CreateAddress(1, ids.GenerateTestID()),
		EligibleCollateral:     codec.CreateAddress(2, ids.GenerateTestID()),
		Decimals:               10_000_000_000,
		InitialMarginRatio:     100,
		MaintenanceMarginRatio: 100,
		LiquidationFee:         100,
	}
	require.NoError(PutConfig(ctx, store, cfg))

	got, err := GetConfig(ctx, store)
	require.NoError(err)
	require.Equal(cfg, got)
}

func TestGetConfigBeforeGenesis(t *testing.T) {
	require := require.New(t)
	ctx := context.Background()
	store := chaintest.NewInMemoryStore()

	_, err := GetConfig(ctx, store)
	require.ErrorIs(err, ErrConfigNotFound)
}

func TestConfigOverwrite(t *testing.T) {
	require := require.New(t)
	ctx := context.Background()
	store := chaintest.NewInMemoryStore()

	first := Config{
		Owner:    codec.CreateAddress(1, ids.GenerateTestID()),
		Decimals: 1_000_000,
	}
	require.NoError(PutConfig(ctx, store, first))

	second := first
	second.Owner = codec.CreateAddress(3, ids.GenerateTestID())
	second.LiquidationFee = 250
	require.NoError(PutConfig(ctx, store, second))

	got, err := GetConfig(ctx, store)
	require.NoError(err)
	require.Equal(second, got)
}

func TestSetVammsReplacesWholesale(t *testing.T) {
	require := require.New(t)
	ctx := context.Background()
	store := chaintest.NewInMemoryStore()

	a := codec.CreateAddress(1, ids.GenerateTestID())
	b := codec.CreateAddress(2, ids.GenerateTestID())
	c := codec.CreateAddress(3, ids.GenerateTestID())

	vamms, err := SetVamms(ctx, store, []string{a.String(), b.String()})
	require.NoError(err)
	require.Equal([]codec.Address{a, b}, vamms)

	got, err := GetVammList(ctx, store)
	require.NoError(err)
	require.Equal([]codec.Address{a, b}, got)

	// A second set is a replacement, not a merge.
	_, err = SetVamms(ctx, store, []string{c.String()})
	require.NoError(err)

	got, err = GetVammList(ctx, store)
	require.NoError(err)
	require.Equal([]codec.Address{c}, got)
}

func TestSetVammsInvalidEntryLeavesRegistryUnchanged(t *testing.T) {
	require := require.New(t)
	ctx := context.Background()
	store := chaintest.NewInMemoryStore()

	a := codec.CreateAddress(1, ids.GenerateTestID())
	b := codec.CreateAddress(2, ids.GenerateTestID())
	_, err := SetVamms(ctx, store, []string{a.String()})
	require.NoError(err)

	_, err = SetVamms(ctx, store, []string{b.String(), "not-an-address"})
	require.ErrorIs(err, ErrInvalidAddress)

	got, err := GetVammList(ctx, store)
	require.NoError(err)
	require.Equal([]codec.Address{a}, got)
}

func TestGetVammListBeforeGenesis(t *testing.T) {
	require := require.New(t)
	ctx := context.Background()
	store := chaintest.NewInMemoryStore()

	_, err := GetVammList(ctx, store)
	require.ErrorIs(err, ErrVammListNotFound)
}

func TestIsRegisteredVamm(t *testing.T) {
	require := require.New(t)
	ctx := context.Background()
	store := chaintest.NewInMemoryStore()

	a := codec.CreateAddress(1, ids.GenerateTestID())
	b := codec.CreateAddress(2, ids.GenerateTestID())
	other := codec.CreateAddress(3, ids.GenerateTestID())

	require.NoError(PutVammList(ctx, store, []codec.Address{a, b}))

	registered, err := IsRegisteredVamm(ctx, store, a)
	require.NoError(err)
	require.True(registered)

	registered, err = IsRegisteredVamm(ctx, store, b)
	require.NoError(err)
	require.True(registered)

	registered, err = IsRegisteredVamm(ctx, store, other)
	require.NoError(err)
	require.False(registered)
}

func TestPutVammListTooLarge(t *testing.T) {
	require := require.New(t)
	ctx := context.Background()
	store := chaintest.NewInMemoryStore()

	vamms := make([]codec.Address, MaxVammsPerList+1)
	for i := range vamms {
		vamms[i] = codec.CreateAddress(uint8(i), ids.GenerateTestID())
	}
	err := PutVammList(ctx, store, vamms)
	require.ErrorIs(err, ErrVammListTooLarge)
}

func TestPositionKeyDigest(t *testing.T) {
	vamm := codec.CreateAddress(1, ids.GenerateTestID())
	trader := codec.CreateAddress(2, ids.GenerateTestID())

	h := sha3.New256()
	h.Write(vamm[:])
	h.Write(trader[:])
	want := h.Sum(nil)

	k := PositionKey(vamm, trader)
	if len(k) != 1+positionDigestLen+2 {
		t.Fatalf("unexpected key length: %d", len(k))
	}
	if k[0] != positionPrefix {
		t.Fatalf("unexpected prefix byte: %d", k[0])
	}
	if !bytes.Equal(k[1:1+positionDigestLen], want) {
		t.Fatalf("digest mismatch")
	}
	if binary.BigEndian.Uint16(k[1+positionDigestLen:]) != PositionChunks {
		t.Fatalf("unexpected chunk suffix")
	}
}

func TestPositionKeyDistinctPairs(t *testing.T) {
	require := require.New(t)

	vamm := codec.CreateAddress(1, ids.GenerateTestID())
	trader := codec.CreateAddress(2, ids.GenerateTestID())

	// Same pair is stable, any differing component changes the key, and
	// swapping vamm/trader does not collide.
	require.Equal(PositionKey(vamm, trader), PositionKey(vamm, trader))
	require.NotEqual(PositionKey(vamm, trader), PositionKey(vamm, codec.CreateAddress(3, ids.GenerateTestID())))
	require.NotEqual(PositionKey(vamm, trader), PositionKey(codec.CreateAddress(3, ids.GenerateTestID()), trader))
	require.NotEqual(PositionKey(vamm, trader), PositionKey(trader, vamm))
}

func TestPositionRoundTrip(t *testing.T) {
	require := require.New(t)
	ctx := context.Background()
	store := chaintest.NewInMemoryStore()

	position := Position{
		Vamm:                  codec.CreateAddress(1, ids.GenerateTestID()),
		Trader:                codec.CreateAddress(2, ids.GenerateTestID()),
		Direction:             DirectionRemoveFromAmm,
		Size:                  300,
		Margin:                25,
		Notional:              150,
		PremiumFraction:       7,
		LiquidityHistoryIndex: 2,
		Timestamp:             1_700_000_000,
	}
	require.NoError(PutPosition(ctx, store, position))

	got, exists, err := GetPosition(ctx, store, position.Vamm, position.Trader)
	require.NoError(err)
	require.True(exists)
	require.Equal(position, got)
}

func TestGetPositionAbsent(t *testing.T) {
	require := require.New(t)
	ctx := context.Background()
	store := chaintest.NewInMemoryStore()

	got, exists, err := GetPosition(
		ctx,
		store,
		codec.CreateAddress(1, ids.GenerateTestID()),
		codec.CreateAddress(2, ids.GenerateTestID()),
	)
	require.NoError(err)
	require.False(exists)
	require.Equal(Position{}, got)
}

func TestPutPositionOverwrites(t *testing.T) {
	require := require.New(t)
	ctx := context.Background()
	store := chaintest.NewInMemoryStore()

	position := Position{
		Vamm:   codec.CreateAddress(1, ids.GenerateTestID()),
		Trader: codec.CreateAddress(2, ids.GenerateTestID()),
		Size:   100,
		Margin: 10,
	}
	require.NoError(PutPosition(ctx, store, position))

	position.Size = 200
	position.Margin = 20
	require.NoError(PutPosition(ctx, store, position))

	got, exists, err := GetPosition(ctx, store, position.Vamm, position.Trader)
	require.NoError(err)
	require.True(exists)
	require.Equal(position, got)
}

func TestTmpPositionLifecycle(t *testing.T) {
	require := require.New(t)
	ctx := context.Background()
	store := chaintest.NewInMemoryStore()

	_, exists, err := GetTmpPosition(ctx, store)
	require.NoError(err)
	require.False(exists)

	staged := Position{
		Vamm:      codec.CreateAddress(1, ids.GenerateTestID()),
		Trader:    codec.CreateAddress(2, ids.GenerateTestID()),
		Direction: DirectionAddToAmm,
		Margin:    50,
		Notional:  500,
	}
	require.NoError(PutTmpPosition(ctx, store, staged))

	got, exists, err := GetTmpPosition(ctx, store)
	require.NoError(err)
	require.True(exists)
	require.Equal(staged, got)

	// Staging again replaces the slot; there is only one.
	staged.Margin = 75
	require.NoError(PutTmpPosition(ctx, store, staged))
	got, exists, err = GetTmpPosition(ctx, store)
	require.NoError(err)
	require.True(exists)
	require.Equal(staged, got)

	require.NoError(RemoveTmpPosition(ctx, store))
	_, exists, err = GetTmpPosition(ctx, store)
	require.NoError(err)
	require.False(exists)

	// Clearing an empty slot is a no-op.
	require.NoError(RemoveTmpPosition(ctx, store))
}

func TestBalanceAddSub(t *testing.T) {
	require := require.New(t)
	ctx := context.Background()
	store := chaintest.NewInMemoryStore()

	addr := codec.CreateAddress(1, ids.GenerateTestID())

	bal, err := AddBalance(ctx, store, addr, 100)
	require.NoError(err)
	require.Equal(uint64(100), bal)

	bal, err = SubBalance(ctx, store, addr, 40)
	require.NoError(err)
	require.Equal(uint64(60), bal)

	_, err = SubBalance(ctx, store, addr, 61)
	require.ErrorIs(err, ErrInvalidBalance)
}
