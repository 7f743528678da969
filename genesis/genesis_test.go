package genesis

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/ava-labs/avalanchego/ids"
	"github.com/ava-labs/avalanchego/trace"
	"github.com/ava-labs/avalanchego/x/merkledb"
	"github.com/stretchr/testify/require"

	"github.com/ava-labs/hypersdk/chain/chaintest"
	"github.com/ava-labs/hypersdk/codec"
	hgenesis "github.com/ava-labs/hypersdk/genesis"

	"github.com/margined-labs/marginvm/storage"
)

func TestFactoryLoadAppliesDefaults(t *testing.T) {
	require := require.New(t)

	funded := codec.CreateAddress(1, ids.GenerateTestID())
	vamm := codec.CreateAddress(2, ids.GenerateTestID())
	chainID := ids.GenerateTestID()

	g := &Genesis{
		CustomAllocation: []*hgenesis.CustomAllocation{
			{Address: funded, Balance: 1_000_000},
		},
		Margin: &MarginParams{
			Vamms: []string{vamm.String()},
		},
	}
	b, err := json.Marshal(g)
	require.NoError(err)

	loaded, ruleFactory, err := Factory{}.Load(b, nil, 7, chainID)
	require.NoError(err)

	lg := loaded.(*Genesis)
	require.Equal(merkledb.BranchFactor16, lg.StateBranchFactor)
	require.Equal(funded, lg.Margin.Owner)
	require.Equal(funded, lg.Margin.EligibleCollateral)
	require.NotZero(lg.Margin.Decimals)

	rules := ruleFactory.GetRules(0)
	require.Equal(uint32(7), rules.GetNetworkID())
	require.Equal(chainID, rules.GetChainID())
}

func TestInitializeStateSeedsEngine(t *testing.T) {
	require := require.New(t)
	ctx := context.Background()
	store := chaintest.NewInMemoryStore()

	owner := codec.CreateAddress(1, ids.GenerateTestID())
	vammA := codec.CreateAddress(2, ids.GenerateTestID())
	vammB := codec.CreateAddress(3, ids.GenerateTestID())

	g := &Genesis{
		StateBranchFactor: merkledb.BranchFactor16,
		CustomAllocation: []*hgenesis.CustomAllocation{
			{Address: owner, Balance: 5_000},
		},
		Rules: hgenesis.NewDefaultRules(),
		Margin: &MarginParams{
			Owner:                  owner,
			EligibleCollateral:     owner,
			Decimals:               10_000_000_000,
			InitialMarginRatio:     100,
			MaintenanceMarginRatio: 100,
			LiquidationFee:         100,
			Vamms:                  []string{vammA.String(), vammB.String()},
		},
	}
	require.NoError(g.InitializeState(ctx, trace.Noop, store, &storage.BalanceHandler{}))

	cfg, err := storage.GetConfig(ctx, store)
	require.NoError(err)
	require.Equal(owner, cfg.Owner)
	require.Equal(owner, cfg.EligibleCollateral)
	require.Equal(uint64(10_000_000_000), cfg.Decimals)
	require.Equal(uint64(100), cfg.InitialMarginRatio)
	require.Equal(uint64(100), cfg.MaintenanceMarginRatio)
	require.Equal(uint64(100), cfg.LiquidationFee)

	vamms, err := storage.GetVammList(ctx, store)
	require.NoError(err)
	require.Equal([]codec.Address{vammA, vammB}, vamms)

	bal, err := storage.GetBalance(ctx, store, owner)
	require.NoError(err)
	require.Equal(uint64(5_000), bal)
}

func TestInitializeStateRejectsInvalidParams(t *testing.T) {
	require := require.New(t)
	ctx := context.Background()

	owner := codec.CreateAddress(1, ids.GenerateTestID())

	tests := []struct {
		name   string
		margin *MarginParams
		err    error
	}{
		{
			name:   "missing owner",
			margin: &MarginParams{EligibleCollateral: owner, Decimals: 1},
			err:    storage.ErrInvalidAddress,
		},
		{
			name:   "missing collateral",
			margin: &MarginParams{Owner: owner, Decimals: 1},
			err:    storage.ErrInvalidAddress,
		},
		{
			name:   "zero decimals",
			margin: &MarginParams{Owner: owner, EligibleCollateral: owner},
			err:    storage.ErrInvalidConfigData,
		},
		{
			name: "invalid vamm entry",
			margin: &MarginParams{
				Owner:              owner,
				EligibleCollateral: owner,
				Decimals:           1,
				Vamms:              []string{"bogus"},
			},
			err: storage.ErrInvalidAddress,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			g := &Genesis{
				StateBranchFactor: merkledb.BranchFactor16,
				Rules:             hgenesis.NewDefaultRules(),
				Margin:            tt.margin,
			}
			err := g.InitializeState(ctx, trace.Noop, chaintest.NewInMemoryStore(), &storage.BalanceHandler{})
			require.ErrorIs(err, tt.err)
		})
	}
}
