package genesis

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/ava-labs/avalanchego/ids"
	"github.com/ava-labs/avalanchego/trace"
	"github.com/ava-labs/avalanchego/x/merkledb"

	"github.com/ava-labs/hypersdk/chain"
	"github.com/ava-labs/hypersdk/codec"
	hgenesis "github.com/ava-labs/hypersdk/genesis"
	"github.com/ava-labs/hypersdk/state"

	mconsts "github.com/margined-labs/marginvm/consts"
	"github.com/margined-labs/marginvm/storage"
)

var (
	_ hgenesis.Genesis               = (*Genesis)(nil)
	_ hgenesis.GenesisAndRuleFactory = (*Factory)(nil)
)

// MarginParams seeds the engine's config singleton and vamm whitelist. The
// ratio and fee fields are fixed-point values scaled by Decimals.
type MarginParams struct {
	Owner              codec.Address `json:"owner"`
	EligibleCollateral codec.Address `json:"eligibleCollateral"`

	Decimals               uint64 `json:"decimals"`
	InitialMarginRatio     uint64 `json:"initialMarginRatio"`
	MaintenanceMarginRatio uint64 `json:"maintenanceMarginRatio"`
	LiquidationFee         uint64 `json:"liquidationFee"`

	Vamms []string `json:"vamms"`
}

type Genesis struct {
	StateBranchFactor merkledb.BranchFactor        `json:"stateBranchFactor"`
	CustomAllocation  []*hgenesis.CustomAllocation `json:"customAllocation"`
	Rules             *hgenesis.Rules              `json:"initialRules"`
	Margin            *MarginParams                `json:"margin,omitempty"`
}

// InitializeState writes the config singleton and the validated vamm
// whitelist exactly once, before any action can run. Every other component
// assumes these exist.
func (g *Genesis) InitializeState(
	ctx context.Context,
	tracer trace.Tracer,
	mu state.Mutable,
	balanceHandler chain.BalanceHandler,
) error {
	base := &hgenesis.DefaultGenesis{
		StateBranchFactor: g.StateBranchFactor,
		CustomAllocation:  g.CustomAllocation,
		Rules:             g.Rules,
	}
	if err := base.InitializeState(ctx, tracer, mu, balanceHandler); err != nil {
		return err
	}
	if g.Margin == nil {
		return nil
	}

	if err := validateMarginParams(g.Margin); err != nil {
		return err
	}

	if err := storage.PutConfig(ctx, mu, storage.Config{
		Owner:                  g.Margin.Owner,
		EligibleCollateral:     g.Margin.EligibleCollateral,
		Decimals:               g.Margin.Decimals,
		InitialMarginRatio:     g.Margin.InitialMarginRatio,
		MaintenanceMarginRatio: g.Margin.MaintenanceMarginRatio,
		LiquidationFee:         g.Margin.LiquidationFee,
	}); err != nil {
		return err
	}
	if _, err := storage.SetVamms(ctx, mu, g.Margin.Vamms); err != nil {
		return err
	}
	return nil
}

func (g *Genesis) GetStateBranchFactor() merkledb.BranchFactor {
	return g.StateBranchFactor
}

type Factory struct{}

func (Factory) Load(
	genesisBytes []byte,
	_ []byte,
	networkID uint32,
	chainID ids.ID,
) (hgenesis.Genesis, chain.RuleFactory, error) {
	g := &Genesis{}
	if err := json.Unmarshal(genesisBytes, g); err != nil {
		return nil, nil, err
	}
	if g.StateBranchFactor == 0 {
		g.StateBranchFactor = merkledb.BranchFactor16
	}
	if g.Rules == nil {
		g.Rules = hgenesis.NewDefaultRules()
	}
	g.Rules.NetworkID = networkID
	g.Rules.ChainID = chainID
	if g.Margin != nil {
		applyMarginDefaults(g)
	}
	return g, &hgenesis.ImmutableRuleFactory{Rules: g.Rules}, nil
}

func applyMarginDefaults(g *Genesis) {
	var zero codec.Address
	if len(g.CustomAllocation) > 0 {
		defaultAddr := g.CustomAllocation[0].Address
		if g.Margin.Owner == zero {
			g.Margin.Owner = defaultAddr
		}
		if g.Margin.EligibleCollateral == zero {
			g.Margin.EligibleCollateral = defaultAddr
		}
	}
	if g.Margin.Decimals == 0 {
		g.Margin.Decimals = pow10(mconsts.Decimals)
	}
}

func validateMarginParams(m *MarginParams) error {
	var zero codec.Address
	if m.Owner == zero {
		return fmt.Errorf("%w: owner must be set", storage.ErrInvalidAddress)
	}
	if m.EligibleCollateral == zero {
		return fmt.Errorf("%w: eligibleCollateral must be set", storage.ErrInvalidAddress)
	}
	if m.Decimals == 0 {
		return fmt.Errorf("%w: decimals must be > 0", storage.ErrInvalidConfigData)
	}
	if len(m.Vamms) > storage.MaxVammsPerList {
		return fmt.Errorf("%w: %d > %d", storage.ErrVammListTooLarge, len(m.Vamms), storage.MaxVammsPerList)
	}
	return nil
}

func pow10(n uint8) uint64 {
	v := uint64(1)
	for i := uint8(0); i < n; i++ {
		v *= 10
	}
	return v
}
