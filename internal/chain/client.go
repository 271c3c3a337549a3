package chain

import (
	"context"
	"fmt"
	"math/big"
	"strings"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/ethclient"
	"golang.org/x/time/rate"

	"github.com/alanyoungcy/artindexer/internal/metrics"
)

// RPC is the subset of the Ethereum JSON-RPC API the indexer uses.
// *ethclient.Client satisfies it.
type RPC interface {
	BlockNumber(ctx context.Context) (uint64, error)
	HeaderByNumber(ctx context.Context, number *big.Int) (*types.Header, error)
	FilterLogs(ctx context.Context, q ethereum.FilterQuery) ([]types.Log, error)
	CallContract(ctx context.Context, msg ethereum.CallMsg, blockNumber *big.Int) ([]byte, error)
}

// Dial connects to the node at endpoint.
func Dial(ctx context.Context, endpoint string) (*ethclient.Client, error) {
	trimmed := strings.TrimSpace(endpoint)
	if trimmed == "" {
		return nil, fmt.Errorf("chain: rpc url required")
	}
	c, err := ethclient.DialContext(ctx, trimmed)
	if err != nil {
		return nil, fmt.Errorf("chain: dial %s: %w", trimmed, err)
	}
	return c, nil
}

// throttled wraps an RPC with a shared request budget and call accounting.
type throttled struct {
	rpc     RPC
	limiter *rate.Limiter
	metrics *metrics.Metrics
}

// Throttle limits rpc to perSecond requests. perSecond <= 0 disables the
// limit. m may be nil.
func Throttle(rpc RPC, perSecond float64, m *metrics.Metrics) RPC {
	limit := rate.Inf
	burst := 1
	if perSecond > 0 {
		limit = rate.Limit(perSecond)
		burst = int(perSecond)
		if burst < 1 {
			burst = 1
		}
	}
	return &throttled{rpc: rpc, limiter: rate.NewLimiter(limit, burst), metrics: m}
}

func (t *throttled) wait(ctx context.Context) error {
	if err := t.limiter.Wait(ctx); err != nil {
		return fmt.Errorf("chain: rate limit: %w", err)
	}
	return nil
}

func (t *throttled) record(method string, err error) {
	switch {
	case err == nil:
		t.metrics.RPCCall(method, "ok")
	case IsRevert(err):
		t.metrics.RPCCall(method, "reverted")
	default:
		t.metrics.RPCCall(method, "error")
	}
}

func (t *throttled) BlockNumber(ctx context.Context) (uint64, error) {
	if err := t.wait(ctx); err != nil {
		return 0, err
	}
	n, err := t.rpc.BlockNumber(ctx)
	t.record("eth_blockNumber", err)
	return n, err
}

func (t *throttled) HeaderByNumber(ctx context.Context, number *big.Int) (*types.Header, error) {
	if err := t.wait(ctx); err != nil {
		return nil, err
	}
	h, err := t.rpc.HeaderByNumber(ctx, number)
	t.record("eth_getBlockByNumber", err)
	return h, err
}

func (t *throttled) FilterLogs(ctx context.Context, q ethereum.FilterQuery) ([]types.Log, error) {
	if err := t.wait(ctx); err != nil {
		return nil, err
	}
	logs, err := t.rpc.FilterLogs(ctx, q)
	t.record("eth_getLogs", err)
	return logs, err
}

func (t *throttled) CallContract(ctx context.Context, msg ethereum.CallMsg, blockNumber *big.Int) ([]byte, error) {
	if err := t.wait(ctx); err != nil {
		return nil, err
	}
	out, err := t.rpc.CallContract(ctx, msg, blockNumber)
	t.record("eth_call", err)
	return out, err
}
