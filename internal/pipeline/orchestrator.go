package pipeline

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"golang.org/x/sync/errgroup"
)

// Schedule says when snapshots run. Cron wins over Interval; with neither
// set snapshots are disabled.
type Schedule struct {
	Interval time.Duration
	Cron     string
}

// Orchestrator runs the indexer and the snapshot loop side by side.
type Orchestrator struct {
	indexer     *Indexer
	snapshotter *Snapshotter
	schedule    Schedule
	logger      *slog.Logger
}

// NewOrchestrator creates an Orchestrator. snapshotter may be nil.
func NewOrchestrator(indexer *Indexer, snapshotter *Snapshotter, schedule Schedule, logger *slog.Logger) *Orchestrator {
	return &Orchestrator{
		indexer:     indexer,
		snapshotter: snapshotter,
		schedule:    schedule,
		logger:      logger.With(slog.String("component", "orchestrator")),
	}
}

// Run blocks until ctx is cancelled or a loop fails. A failing loop cancels
// the other one.
func (o *Orchestrator) Run(ctx context.Context) error {
	o.logger.Info("pipeline starting",
		slog.Duration("snapshot_interval", o.schedule.Interval),
		slog.String("snapshot_cron", o.schedule.Cron),
	)

	g, ctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		err := o.indexer.Run(ctx)
		if ctx.Err() != nil {
			return nil
		}
		return fmt.Errorf("indexer: %w", err)
	})

	if o.snapshotter != nil && (o.schedule.Cron != "" || o.schedule.Interval > 0) {
		g.Go(func() error {
			var err error
			if o.schedule.Cron != "" {
				err = o.snapshotter.RunCron(ctx, o.schedule.Cron)
			} else {
				err = o.snapshotter.RunLoop(ctx, o.schedule.Interval)
			}
			if ctx.Err() != nil {
				return nil
			}
			return fmt.Errorf("snapshotter: %w", err)
		})
	}

	if err := g.Wait(); err != nil {
		o.logger.Error("pipeline stopped with error", slog.String("error", err.Error()))
		return err
	}
	o.logger.Info("pipeline stopped cleanly")
	return nil
}
