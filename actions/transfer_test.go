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

func TestTransferZeroValue(t *testing.T) {
	require := require.New(t)
	ctx := context.Background()
	store := chaintest.NewInMemoryStore()

	action := &Transfer{To: codec.EmptyAddress, Value: 0}
	_, err := action.Execute(ctx, nil, store, 0, codec.EmptyAddress, ids.Empty)
	require.ErrorIs(err, ErrOutputValueZero)
}

func TestTransferInsufficientBalance(t *testing.T) {
	require := require.New(t)
	ctx := context.Background()
	store := chaintest.NewInMemoryStore()

	actor := codec.CreateAddress(1, ids.GenerateTestID())
	action := &Transfer{To: codec.EmptyAddress, Value: 1}
	_, err := action.Execute(ctx, nil, store, 0, actor, ids.Empty)
	require.ErrorIs(err, storage.ErrInvalidBalance)
}

func TestTransferMovesValue(t *testing.T) {
	require := require.New(t)
	ctx := context.Background()
	store := chaintest.NewInMemoryStore()

	actor := codec.CreateAddress(1, ids.GenerateTestID())
	to := codec.CreateAddress(2, ids.GenerateTestID())
	require.NoError(storage.SetBalance(ctx, store, actor, 100))

	action := &Transfer{To: to, Value: 40}
	output, err := action.Execute(ctx, nil, store, 0, actor, ids.Empty)
	require.NoError(err)

	result, err := UnmarshalTransferResult(output)
	require.NoError(err)
	transferResult := result.(*TransferResult)
	require.Equal(uint64(60), transferResult.SenderBalance)
	require.Equal(uint64(40), transferResult.ReceiverBalance)

	bal, err := storage.GetBalance(ctx, store, to)
	require.NoError(err)
	require.Equal(uint64(40), bal)
}
