package vm

import (
	"context"
	"strings"
	"time"

	"github.com/ava-labs/hypersdk/api/jsonrpc"
	"github.com/ava-labs/hypersdk/chain"
	"github.com/ava-labs/hypersdk/codec"
	"github.com/ava-labs/hypersdk/genesis"
	"github.com/ava-labs/hypersdk/requester"
	"github.com/ava-labs/hypersdk/utils"

	"github.com/margined-labs/marginvm/consts"
	mgenesis "github.com/margined-labs/marginvm/genesis"
)

const balanceCheckInterval = 500 * time.Millisecond

type JSONRPCClient struct {
	requester *requester.EndpointRequester

	g           *mgenesis.Genesis
	ruleFactory chain.RuleFactory
}

func NewJSONRPCClient(uri string) *JSONRPCClient {
	uri = strings.TrimSuffix(uri, "/")
	uri += JSONRPCEndpoint
	req := requester.New(uri, consts.Name)
	return &JSONRPCClient{
		requester: req,
	}
}

func (cli *JSONRPCClient) Genesis(ctx context.Context) (*mgenesis.Genesis, error) {
	if cli.g != nil {
		return cli.g, nil
	}

	resp := new(GenesisReply)
	err := cli.requester.SendRequest(
		ctx,
		"genesis",
		nil,
		resp,
	)
	if err != nil {
		return nil, err
	}
	cli.g = resp.Genesis
	return resp.Genesis, nil
}

func (cli *JSONRPCClient) Balance(ctx context.Context, addr codec.Address) (uint64, error) {
	resp := new(BalanceReply)
	err := cli.requester.SendRequest(
		ctx,
		"balance",
		&BalanceArgs{
			Address: addr,
		},
		resp,
	)
	return resp.Amount, err
}

func (cli *JSONRPCClient) Config(ctx context.Context) (*ConfigReply, error) {
	resp := new(ConfigReply)
	err := cli.requester.SendRequest(
		ctx,
		"config",
		nil,
		resp,
	)
	return resp, err
}

func (cli *JSONRPCClient) Vamms(ctx context.Context) ([]codec.Address, error) {
	resp := new(VammsReply)
	err := cli.requester.SendRequest(
		ctx,
		"vamms",
		nil,
		resp,
	)
	return resp.Vamms, err
}

func (cli *JSONRPCClient) IsVamm(ctx context.Context, vamm codec.Address) (bool, error) {
	resp := new(IsVammReply)
	err := cli.requester.SendRequest(
		ctx,
		"isvamm",
		&IsVammArgs{
			Vamm: vamm,
		},
		resp,
	)
	return resp.Registered, err
}

func (cli *JSONRPCClient) Position(ctx context.Context, vamm codec.Address, trader codec.Address) (*PositionReply, error) {
	resp := new(PositionReply)
	err := cli.requester.SendRequest(
		ctx,
		"position",
		&PositionArgs{
			Vamm:   vamm,
			Trader: trader,
		},
		resp,
	)
	return resp, err
}

func (cli *JSONRPCClient) WaitForBalance(
	ctx context.Context,
	addr codec.Address,
	min uint64,
) error {
	return jsonrpc.Wait(ctx, balanceCheckInterval, func(ctx context.Context) (bool, error) {
		balance, err := cli.Balance(ctx, addr)
		if err != nil {
			return false, err
		}
		shouldExit := balance >= min
		if !shouldExit {
			utils.Outf(
				"{{yellow}}waiting for %s balance: %s{{/}}\n",
				utils.FormatBalance(min),
				addr,
			)
		}
		return shouldExit, nil
	})
}

func (*JSONRPCClient) GetParser() chain.Parser {
	return chain.NewTxTypeParser(ActionParser, AuthParser)
}

func (cli *JSONRPCClient) GetRuleFactory(ctx context.Context) (chain.RuleFactory, error) {
	if cli.ruleFactory != nil {
		return cli.ruleFactory, nil
	}
	networkGenesis, err := cli.Genesis(ctx)
	if err != nil {
		return nil, err
	}
	cli.ruleFactory = &genesis.ImmutableRuleFactory{Rules: networkGenesis.Rules}
	return cli.ruleFactory, nil
}
