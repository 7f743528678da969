package vm

import (
	"fmt"
	"log"

	"github.com/ava-labs/hypersdk/api"
	"github.com/ava-labs/hypersdk/vm"

	"github.com/margined-labs/marginvm/actions"
)

const Namespace = "controller"

type Config struct {
	Enabled bool   `json:"enabled"`
	Quoter  string `json:"quoter"`
}

func NewDefaultConfig() Config {
	return Config{
		Enabled: true,
		Quoter:  "unit",
	}
}

// With wires the engine API and installs the vamm quoter collaborator.
// Position actions fail until a quoter is configured.
func With() vm.Option {
	return vm.NewOption(Namespace, NewDefaultConfig(), func(_ api.VM, config Config) (vm.Opt, error) {
		log.Printf("marginvm controller config: enabled=%t quoter=%q", config.Enabled, config.Quoter)
		switch config.Quoter {
		case "unit":
			actions.ConfigureVammQuoter(actions.UnitQuoter{})
		case "none", "":
			actions.ConfigureVammQuoter(nil)
		default:
			return vm.NewOpt(), fmt.Errorf("unknown quoter %q", config.Quoter)
		}

		if !config.Enabled {
			return vm.NewOpt(), nil
		}
		return vm.WithVMAPIs(jsonRPCServerFactory{}), nil
	})
}
