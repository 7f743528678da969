package actions

import (
	"context"
	"testing"

	"github.com/ava-labs/avalanchego/ids"
	"github.com/stretchr/testify/require"

	"github.com/ava-labs/hypersdk/chain/chaintest"
	"github.com/ava-labs/hypersdk/codec"

	"github.com/margined-labs/marginvm/storage"
)

func TestUpdateConfigBeforeGenesis(t *testing.T) {
	require := require.New(t)
	ctx := context.Background()
	store := chaintest.NewInMemoryStore()

	action := &UpdateConfig{Owner: codec.EmptyAddress.String()}
	_, err := action.Execute(ctx, nil, store, 0, codec.EmptyAddress, ids.Empty)
	require.ErrorIs(err, storage.ErrConfigNotFound)
}

func TestUpdateConfigOwnerTransfer(t *testing.T) {
	require := require.New(t)
	ctx := context.Background()
	store := chaintest.NewInMemoryStore()

	owner := codec.CreateAddress(1, ids.GenerateTestID())
	newOwner := codec.CreateAddress(2, ids.GenerateTestID())
	require.NoError(storage.PutConfig(ctx, store, storage.Config{
		Owner:    owner,
		Decimals: 1_000_000,
	}))

	action := &UpdateConfig{Owner: newOwner.String()}
	output, err := action.Execute(ctx, nil, store, 0, owner, ids.Empty)
	require.NoError(err)

	result, err := UnmarshalUpdateConfigResult(output)
	require.NoError(err)
	require.Equal(newOwner, result.(*UpdateConfigResult).Owner)

	cfg, err := storage.GetConfig(ctx, store)
	require.NoError(err)
	require.Equal(newOwner, cfg.Owner)
	require.Equal(uint64(1_000_000), cfg.Decimals)

	// The old owner lost control with the handoff.
	_, err = action.Execute(ctx, nil, store, 0, owner, ids.Empty)
	require.ErrorIs(err, storage.ErrUnauthorized)
}

func TestUpdateConfigRejectsNonOwner(t *testing.T) {
	require := require.New(t)
	ctx := context.Background()
	store := chaintest.NewInMemoryStore()

	owner := codec.CreateAddress(1, ids.GenerateTestID())
	stranger := codec.CreateAddress(2, ids.GenerateTestID())
	require.NoError(storage.PutConfig(ctx, store, storage.Config{Owner: owner}))

	action := &UpdateConfig{Owner: stranger.String()}
	_, err := action.Execute(ctx, nil, store, 0, stranger, ids.Empty)
	require.ErrorIs(err, storage.ErrUnauthorized)

	cfg, err := storage.GetConfig(ctx, store)
	require.NoError(err)
	require.Equal(owner, cfg.Owner)
}

func TestUpdateConfigRejectsInvalidAddress(t *testing.T) {
	require := require.New(t)
	ctx := context.Background()
	store := chaintest.NewInMemoryStore()

	owner := codec.CreateAddress(1, ids.GenerateTestID())
	require.NoError(storage.PutConfig(ctx, store, storage.Config{Owner: owner}))

	action := &UpdateConfig{Owner: "not-an-address"}
	_, err := action.Execute(ctx, nil, store, 0, owner, ids.Empty)
	require.ErrorIs(err, storage.ErrInvalidAddress)

	cfg, err := storage.GetConfig(ctx, store)
	require.NoError(err)
	require.Equal(owner, cfg.Owner)
}
