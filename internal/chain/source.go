package chain

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math/big"
	"sort"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"

	"github.com/alanyoungcy/artindexer/internal/domain"
)

const maxCachedBlockTimes = 4096

// LogSource reads artwork contract events with eth_getLogs.
type LogSource struct {
	rpc      RPC
	contract common.Address
	logger   *slog.Logger

	mu    sync.Mutex
	times map[uint64]time.Time
}

// NewLogSource creates a LogSource for the contract at address.
func NewLogSource(rpc RPC, contract common.Address, logger *slog.Logger) *LogSource {
	return &LogSource{
		rpc:      rpc,
		contract: contract,
		logger:   logger.With(slog.String("component", "chain")),
		times:    make(map[uint64]time.Time),
	}
}

// Head returns the latest block number known to the node.
func (s *LogSource) Head(ctx context.Context) (uint64, error) {
	n, err := s.rpc.BlockNumber(ctx)
	if err != nil {
		return 0, fmt.Errorf("chain: head: %w", err)
	}
	return n, nil
}

// Events returns the decoded events in blocks [from, to] ordered by block,
// transaction index and log index. Logs removed by a reorg and logs that do
// not decode are dropped with a warning.
func (s *LogSource) Events(ctx context.Context, from, to uint64) ([]domain.Event, error) {
	if from > to {
		return nil, nil
	}
	logs, err := s.rpc.FilterLogs(ctx, ethereum.FilterQuery{
		FromBlock: new(big.Int).SetUint64(from),
		ToBlock:   new(big.Int).SetUint64(to),
		Addresses: []common.Address{s.contract},
		Topics:    [][]common.Hash{Topics()},
	})
	if err != nil {
		return nil, fmt.Errorf("chain: get logs %d-%d: %w", from, to, err)
	}

	sort.SliceStable(logs, func(i, j int) bool {
		a, b := logs[i], logs[j]
		if a.BlockNumber != b.BlockNumber {
			return a.BlockNumber < b.BlockNumber
		}
		if a.TxIndex != b.TxIndex {
			return a.TxIndex < b.TxIndex
		}
		return a.Index < b.Index
	})

	events := make([]domain.Event, 0, len(logs))
	for _, lg := range logs {
		if lg.Removed {
			continue
		}
		ts, err := s.blockTime(ctx, lg.BlockNumber)
		if err != nil {
			return nil, err
		}
		ev, err := Decode(lg, ts)
		if err != nil {
			if errors.Is(err, ErrUnknownTopic) {
				continue
			}
			s.logger.WarnContext(ctx, "undecodable log skipped",
				slog.Uint64("block", lg.BlockNumber),
				slog.String("tx", lg.TxHash.Hex()),
				slog.Uint64("log_index", uint64(lg.Index)),
				slog.String("error", err.Error()),
			)
			continue
		}
		events = append(events, ev)
	}
	return events, nil
}

func (s *LogSource) blockTime(ctx context.Context, block uint64) (time.Time, error) {
	s.mu.Lock()
	ts, ok := s.times[block]
	s.mu.Unlock()
	if ok {
		return ts, nil
	}

	h, err := s.rpc.HeaderByNumber(ctx, new(big.Int).SetUint64(block))
	if err != nil {
		return time.Time{}, fmt.Errorf("chain: header %d: %w", block, err)
	}
	if h == nil {
		return time.Time{}, fmt.Errorf("chain: header %d: %w", block, domain.ErrNotFound)
	}
	ts = time.Unix(int64(h.Time), 0).UTC()

	s.mu.Lock()
	if len(s.times) >= maxCachedBlockTimes {
		s.times = make(map[uint64]time.Time)
	}
	s.times[block] = ts
	s.mu.Unlock()
	return ts, nil
}

var _ domain.EventSource = (*LogSource)(nil)
