package actions

import (
	"errors"
	"sync"

	"github.com/ava-labs/hypersdk/codec"
)

var ErrNoQuoterConfigured = errors.New("no vamm quoter configured")

// VammQuoter is the external price-quoting collaborator. The engine never
// computes AMM prices itself; it asks the quoter for the base-asset leg of a
// swap and persists the result.
type VammQuoter interface {
	// QuoteBase returns the base-asset amount received (or returned) when
	// swapping quoteAmount of the quote asset on vamm in the given direction.
	QuoteBase(vamm codec.Address, direction uint8, quoteAmount uint64) (uint64, error)
}

var (
	vammQuoterMu sync.RWMutex
	vammQuoter   VammQuoter
)

// ConfigureVammQuoter installs or clears the process-wide vamm quoter.
// Position actions fail-closed while no quoter is installed.
func ConfigureVammQuoter(q VammQuoter) {
	vammQuoterMu.Lock()
	defer vammQuoterMu.Unlock()

	vammQuoter = q
}

func getVammQuoter() VammQuoter {
	vammQuoterMu.RLock()
	defer vammQuoterMu.RUnlock()

	return vammQuoter
}

func currentVammQuoter() (VammQuoter, error) {
	vammQuoterMu.RLock()
	defer vammQuoterMu.RUnlock()

	if vammQuoter == nil {
		return nil, ErrNoQuoterConfigured
	}
	return vammQuoter, nil
}

var _ VammQuoter = (*UnitQuoter)(nil)

// UnitQuoter quotes one base unit per quote unit. It exists for dev chains
// and tests; production nodes install a vamm-backed quoter.
type UnitQuoter struct{}

func (UnitQuoter) QuoteBase(_ codec.Address, _ uint8, quoteAmount uint64) (uint64, error) {
	return quoteAmount, nil
}
