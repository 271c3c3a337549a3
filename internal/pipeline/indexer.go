// Package pipeline drives the engine from the chain: it pulls confirmed
// block ranges from the log source, applies their events one at a time,
// advances the cursor, and fans committed results out to the cache, the
// signal bus and operator alerts.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/alanyoungcy/artindexer/internal/domain"
	"github.com/alanyoungcy/artindexer/internal/engine"
	"github.com/alanyoungcy/artindexer/internal/metrics"
)

// Applier applies one event atomically.
type Applier interface {
	Apply(ctx context.Context, ev domain.Event) (engine.Result, error)
}

// DiagnosticNotifier forwards diagnostics to operators.
type DiagnosticNotifier interface {
	Diagnostics(ctx context.Context, diags []domain.Diagnostic) error
}

// IndexerConfig tunes the indexing loop.
type IndexerConfig struct {
	Contract      string
	StartBlock    uint64
	Confirmations uint64
	BatchSize     uint64
	PollInterval  time.Duration
	RetryDelay    time.Duration
	MaxRetryDelay time.Duration
	LockTTL       time.Duration
}

func (c IndexerConfig) withDefaults() IndexerConfig {
	if c.BatchSize == 0 {
		c.BatchSize = 1000
	}
	if c.PollInterval <= 0 {
		c.PollInterval = 12 * time.Second
	}
	if c.RetryDelay <= 0 {
		c.RetryDelay = time.Second
	}
	if c.MaxRetryDelay < c.RetryDelay {
		c.MaxRetryDelay = time.Minute
	}
	if c.LockTTL <= 0 {
		c.LockTTL = 30 * time.Second
	}
	return c
}

// Progress reports what one Step did.
type Progress struct {
	From       uint64
	To         uint64
	Head       uint64
	Events     int
	Duplicates int
	Empty      bool
	CaughtUp   bool
}

// Indexer consumes confirmed block ranges in order. At most one Indexer per
// contract should run; with a LockManager configured Run enforces that.
type Indexer struct {
	cfg      IndexerConfig
	source   domain.EventSource
	engine   Applier
	cursors  domain.CursorStore
	locks    domain.LockManager
	cache    domain.ArtworkCache
	bus      domain.SignalBus
	notifier DiagnosticNotifier
	metrics  *metrics.Metrics
	logger   *slog.Logger
}

// NewIndexer creates an Indexer. The lock, cache, bus, notifier and metrics
// are optional and set with the With* methods.
func NewIndexer(cfg IndexerConfig, source domain.EventSource, eng Applier, cursors domain.CursorStore, logger *slog.Logger) *Indexer {
	return &Indexer{
		cfg:     cfg.withDefaults(),
		source:  source,
		engine:  eng,
		cursors: cursors,
		logger:  logger.With(slog.String("component", "indexer")),
	}
}

// WithLock makes Run hold a distributed lock while indexing.
func (ix *Indexer) WithLock(l domain.LockManager) *Indexer { ix.locks = l; return ix }

// WithCache invalidates cached artworks after each applied event.
func (ix *Indexer) WithCache(c domain.ArtworkCache) *Indexer { ix.cache = c; return ix }

// WithBus publishes every applied event.
func (ix *Indexer) WithBus(b domain.SignalBus) *Indexer { ix.bus = b; return ix }

// WithNotifier forwards diagnostics to operators.
func (ix *Indexer) WithNotifier(n DiagnosticNotifier) *Indexer { ix.notifier = n; return ix }

// WithMetrics records indexing metrics.
func (ix *Indexer) WithMetrics(m *metrics.Metrics) *Indexer { ix.metrics = m; return ix }

// LockKey is the lock name guarding this contract.
func (ix *Indexer) LockKey() string {
	return "indexer:" + ix.cfg.Contract
}

// Run indexes until ctx is cancelled. It returns domain.ErrLockHeld when
// another indexer owns the contract, and an error if the lock is lost.
func (ix *Indexer) Run(ctx context.Context) error {
	if ix.locks == nil {
		return ix.loop(ctx)
	}

	unlock, err := ix.locks.Acquire(ctx, ix.LockKey(), ix.cfg.LockTTL)
	if err != nil {
		return fmt.Errorf("indexer: acquire %s: %w", ix.LockKey(), err)
	}
	defer unlock()

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error { return ix.keepLock(gctx) })
	g.Go(func() error { return ix.loop(gctx) })
	err = g.Wait()
	if ctx.Err() != nil {
		return ctx.Err()
	}
	return err
}

func (ix *Indexer) keepLock(ctx context.Context) error {
	ticker := time.NewTicker(ix.cfg.LockTTL / 3)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			if err := ix.locks.Refresh(ctx, ix.LockKey(), ix.cfg.LockTTL); err != nil {
				if ctx.Err() != nil {
					return nil
				}
				return fmt.Errorf("indexer: refresh %s: %w", ix.LockKey(), err)
			}
		}
	}
}

func (ix *Indexer) loop(ctx context.Context) error {
	ix.logger.Info("indexer starting",
		slog.String("contract", ix.cfg.Contract),
		slog.Uint64("start_block", ix.cfg.StartBlock),
		slog.Uint64("confirmations", ix.cfg.Confirmations),
		slog.Uint64("batch_size", ix.cfg.BatchSize),
	)

	delay := ix.cfg.RetryDelay
	for {
		if err := ctx.Err(); err != nil {
			ix.logger.Info("indexer stopped")
			return err
		}

		p, err := ix.Step(ctx)
		var wait time.Duration
		switch {
		case err != nil:
			if ctx.Err() != nil {
				continue
			}
			ix.metrics.Retry()
			ix.logger.Error("index step failed, retrying",
				slog.Uint64("from", p.From),
				slog.Duration("delay", delay),
				slog.String("error", err.Error()),
			)
			wait = delay
			delay = min(delay*2, ix.cfg.MaxRetryDelay)
		case p.CaughtUp:
			delay = ix.cfg.RetryDelay
			wait = ix.cfg.PollInterval
		default:
			delay = ix.cfg.RetryDelay
		}

		if wait > 0 {
			timer := time.NewTimer(wait)
			select {
			case <-ctx.Done():
				timer.Stop()
			case <-timer.C:
			}
		}
	}
}

// Step processes at most one batch of confirmed blocks. The cursor advances
// only after every event in the batch committed; on error the same range is
// fetched again next time and already applied events are skipped by id.
func (ix *Indexer) Step(ctx context.Context) (Progress, error) {
	from, err := ix.nextBlock(ctx)
	if err != nil {
		return Progress{}, err
	}
	p := Progress{From: from}

	head, err := ix.source.Head(ctx)
	if err != nil {
		return p, fmt.Errorf("indexer: head: %w", err)
	}
	p.Head = head
	ix.metrics.SetHead(head)

	if head < ix.cfg.Confirmations {
		p.Empty, p.CaughtUp = true, true
		return p, nil
	}
	target := head - ix.cfg.Confirmations
	if from > target {
		p.Empty, p.CaughtUp = true, true
		return p, nil
	}

	to := from + ix.cfg.BatchSize - 1
	if to > target || to < from {
		to = target
	}
	p.To = to

	events, err := ix.source.Events(ctx, from, to)
	if err != nil {
		return p, fmt.Errorf("indexer: events %d-%d: %w", from, to, err)
	}
	p.Events = len(events)

	for _, ev := range events {
		dup, err := ix.apply(ctx, ev)
		if err != nil {
			return p, err
		}
		if dup {
			p.Duplicates++
		}
	}

	if err := ix.cursors.Advance(ctx, ix.cfg.Contract, to); err != nil {
		return p, fmt.Errorf("indexer: advance cursor to %d: %w", to, err)
	}
	ix.metrics.SetCursor(to)
	p.CaughtUp = to == target

	ix.logger.Info("indexed range",
		slog.Uint64("from", from),
		slog.Uint64("to", to),
		slog.Uint64("head", head),
		slog.Int("events", p.Events),
		slog.Int("duplicates", p.Duplicates),
	)
	return p, nil
}

func (ix *Indexer) nextBlock(ctx context.Context) (uint64, error) {
	c, err := ix.cursors.Get(ctx, ix.cfg.Contract)
	if errors.Is(err, domain.ErrNotFound) {
		return ix.cfg.StartBlock, nil
	}
	if err != nil {
		return 0, fmt.Errorf("indexer: read cursor: %w", err)
	}
	return max(c.Block+1, ix.cfg.StartBlock), nil
}

// apply commits one event, then runs the post-commit side effects. Side
// effect failures are logged and never fail the event.
func (ix *Indexer) apply(ctx context.Context, ev domain.Event) (bool, error) {
	start := time.Now()
	res, err := ix.engine.Apply(ctx, ev)
	if err != nil {
		return false, err
	}

	if res.Duplicate {
		ix.metrics.EventDuplicate()
	} else {
		ix.metrics.EventApplied(string(res.Kind), time.Since(start))
	}
	for _, d := range res.Diagnostics {
		ix.metrics.Diagnostic(string(d.Code), string(d.Severity))
	}

	if ix.cache != nil {
		for _, id := range res.Artworks {
			if err := ix.cache.Invalidate(ctx, id); err != nil {
				ix.logger.Warn("artwork cache invalidate failed",
					slog.String("artwork_id", string(id)),
					slog.String("error", err.Error()),
				)
			}
		}
	}

	if ix.bus != nil {
		ix.publish(ctx, NewAppliedEvent(ev, res))
	}

	if ix.notifier != nil && len(res.Diagnostics) > 0 {
		if err := ix.notifier.Diagnostics(ctx, res.Diagnostics); err != nil {
			ix.logger.Warn("diagnostic notification failed", slog.String("error", err.Error()))
		}
	}
	return res.Duplicate, nil
}

func (ix *Indexer) publish(ctx context.Context, msg AppliedEvent) {
	payload, err := msg.Marshal()
	if err != nil {
		ix.logger.Warn("marshal applied event failed", slog.String("error", err.Error()))
		return
	}
	if err := ix.bus.Publish(ctx, ChannelEvents, payload); err != nil {
		ix.logger.Warn("publish applied event failed",
			slog.String("event_id", msg.EventID),
			slog.String("error", err.Error()),
		)
	}
	if err := ix.bus.StreamAppend(ctx, StreamEvents, payload); err != nil {
		ix.logger.Warn("stream applied event failed",
			slog.String("event_id", msg.EventID),
			slog.String("error", err.Error()),
		)
	}
}
