package vm

import (
	"net/http"

	"github.com/ava-labs/hypersdk/api"
	"github.com/ava-labs/hypersdk/codec"

	"github.com/margined-labs/marginvm/consts"
	mgenesis "github.com/margined-labs/marginvm/genesis"
	"github.com/margined-labs/marginvm/storage"
)

const JSONRPCEndpoint = "/marginapi"

var _ api.HandlerFactory[api.VM] = (*jsonRPCServerFactory)(nil)

type jsonRPCServerFactory struct{}

func (jsonRPCServerFactory) New(vm api.VM) (api.Handler, error) {
	handler, err := api.NewJSONRPCHandler(consts.Name, NewJSONRPCServer(vm))
	return api.Handler{
		Path:    JSONRPCEndpoint,
		Handler: handler,
	}, err
}

type JSONRPCServer struct {
	vm api.VM
}

func NewJSONRPCServer(vm api.VM) *JSONRPCServer {
	return &JSONRPCServer{vm: vm}
}

type GenesisReply struct {
	Genesis *mgenesis.Genesis `json:"genesis"`
}

func (j *JSONRPCServer) Genesis(_ *http.Request, _ *struct{}, reply *GenesisReply) (err error) {
	reply.Genesis = j.vm.Genesis().(*mgenesis.Genesis)
	return nil
}

type BalanceArgs struct {
	Address codec.Address `json:"address"`
}

type BalanceReply struct {
	Amount uint64 `json:"amount"`
}

func (j *JSONRPCServer) Balance(req *http.Request, args *BalanceArgs, reply *BalanceReply) error {
	ctx, span := j.vm.Tracer().Start(req.Context(), "Server.Balance")
	defer span.End()

	balance, err := storage.GetBalanceFromState(ctx, j.vm.ReadState, args.Address)
	if err != nil {
		return err
	}
	reply.Amount = balance
	return err
}

type ConfigReply struct {
	Owner                  codec.Address `json:"owner"`
	EligibleCollateral     codec.Address `json:"eligible_collateral"`
	Decimals               uint64        `json:"decimals"`
	InitialMarginRatio     uint64        `json:"initial_margin_ratio"`
	MaintenanceMarginRatio uint64        `json:"maintenance_margin_ratio"`
	LiquidationFee         uint64        `json:"liquidation_fee"`
}

func (j *JSONRPCServer) Config(req *http.Request, _ *struct{}, reply *ConfigReply) error {
	ctx, span := j.vm.Tracer().Start(req.Context(), "Server.Config")
	defer span.End()

	cfg, err := storage.GetConfigFromState(ctx, j.vm.ReadState)
	if err != nil {
		return err
	}
	reply.Owner = cfg.Owner
	reply.EligibleCollateral = cfg.EligibleCollateral
	reply.Decimals = cfg.Decimals
	reply.InitialMarginRatio = cfg.InitialMarginRatio
	reply.MaintenanceMarginRatio = cfg.MaintenanceMarginRatio
	reply.LiquidationFee = cfg.LiquidationFee
	return nil
}

type VammsReply struct {
	Vamms []codec.Address `json:"vamms"`
}

func (j *JSONRPCServer) Vamms(req *http.Request, _ *struct{}, reply *VammsReply) error {
	ctx, span := j.vm.Tracer().Start(req.Context(), "Server.Vamms")
	defer span.End()

	vamms, err := storage.GetVammListFromState(ctx, j.vm.ReadState)
	if err != nil {
		return err
	}
	reply.Vamms = vamms
	return nil
}

type IsVammArgs struct {
	Vamm codec.Address `json:"vamm"`
}

type IsVammReply struct {
	Registered bool `json:"registered"`
}

func (j *JSONRPCServer) IsVamm(req *http.Request, args *IsVammArgs, reply *IsVammReply) error {
	ctx, span := j.vm.Tracer().Start(req.Context(), "Server.IsVamm")
	defer span.End()

	vamms, err := storage.GetVammListFromState(ctx, j.vm.ReadState)
	if err != nil {
		return err
	}
	for _, vamm := range vamms {
		if vamm == args.Vamm {
			reply.Registered = true
			return nil
		}
	}
	reply.Registered = false
	return nil
}

// Alias for requester title-casing (e.g. "isvamm" -> "Isvamm").
func (j *JSONRPCServer) Isvamm(req *http.Request, args *IsVammArgs, reply *IsVammReply) error {
	return j.IsVamm(req, args, reply)
}

type PositionArgs struct {
	Vamm   codec.Address `json:"vamm"`
	Trader codec.Address `json:"trader"`
}

type PositionReply struct {
	Exists    bool   `json:"exists"`
	Direction uint8  `json:"direction"`
	Size      uint64 `json:"size"`
	Margin    uint64 `json:"margin"`
	Notional  uint64 `json:"notional"`
	Timestamp int64  `json:"timestamp"`
}

func (j *JSONRPCServer) Position(req *http.Request, args *PositionArgs, reply *PositionReply) error {
	ctx, span := j.vm.Tracer().Start(req.Context(), "Server.Position")
	defer span.End()

	position, exists, err := storage.GetPositionFromState(ctx, j.vm.ReadState, args.Vamm, args.Trader)
	if err != nil {
		return err
	}
	reply.Exists = exists
	reply.Direction = position.Direction
	reply.Size = position.Size
	reply.Margin = position.Margin
	reply.Notional = position.Notional
	reply.Timestamp = position.Timestamp
	return nil
}
