package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/alanyoungcy/artindexer/internal/engine"
	"github.com/alanyoungcy/artindexer/internal/pipeline"
	"github.com/alanyoungcy/artindexer/internal/server"
	"github.com/alanyoungcy/artindexer/internal/server/handler"
	"github.com/alanyoungcy/artindexer/internal/server/ws"
)

// IndexMode consumes chain events and exports snapshots. No HTTP server is
// started.
func (a *App) IndexMode(ctx context.Context, deps *Dependencies) error {
	a.logger.InfoContext(ctx, "starting index mode", slog.String("contract", deps.Contract))

	orch, err := a.newOrchestrator(deps)
	if err != nil {
		return err
	}
	return orch.Run(ctx)
}

// ServeMode runs the read API over an already indexed store.
func (a *App) ServeMode(ctx context.Context, deps *Dependencies) error {
	a.logger.InfoContext(ctx, "starting serve mode")

	g, ctx := errgroup.WithContext(ctx)
	a.startHTTPServer(ctx, g, deps)
	return g.Wait()
}

// FullMode indexes and serves from the same process.
func (a *App) FullMode(ctx context.Context, deps *Dependencies) error {
	a.logger.InfoContext(ctx, "starting full mode", slog.String("contract", deps.Contract))

	orch, err := a.newOrchestrator(deps)
	if err != nil {
		return err
	}

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return orch.Run(ctx)
	})
	if a.cfg.Server.Enabled {
		a.startHTTPServer(ctx, g, deps)
	}
	return g.Wait()
}

func (a *App) newOrchestrator(deps *Dependencies) (*pipeline.Orchestrator, error) {
	if deps.Source == nil || deps.Accessor == nil {
		return nil, errors.New("app: chain is not wired")
	}

	eng := engine.New(deps.Store, deps.Accessor, engine.Options{
		MaxArtistProbe: a.cfg.Chain.MaxArtistProbe,
	}, a.logger)

	ix := pipeline.NewIndexer(pipeline.IndexerConfig{
		Contract:      deps.Contract,
		StartBlock:    a.cfg.Chain.StartBlock,
		Confirmations: a.cfg.Chain.Confirmations,
		BatchSize:     a.cfg.Chain.BatchSize,
		PollInterval:  a.cfg.Chain.PollInterval.Duration,
		RetryDelay:    a.cfg.Chain.RetryDelay.Duration,
		MaxRetryDelay: a.cfg.Chain.MaxRetryDelay.Duration,
		LockTTL:       a.cfg.Redis.LockTTL.Duration,
	}, deps.Source, eng, deps.Cursors, a.logger).
		WithMetrics(deps.Metrics).
		WithNotifier(deps.Notifier)

	// Interfaces are only set when their backend is wired so the indexer
	// sees a true nil otherwise.
	if deps.LockManager != nil {
		ix.WithLock(deps.LockManager)
	}
	if deps.ArtworkCache != nil {
		ix.WithCache(deps.ArtworkCache)
	}
	if deps.SignalBus != nil {
		ix.WithBus(deps.SignalBus)
	}

	var snap *pipeline.Snapshotter
	if deps.Snapshots != nil {
		snap = pipeline.NewSnapshotter(deps.Snapshots, deps.Cursors, deps.Contract, deps.Metrics, a.logger)
	}
	return pipeline.NewOrchestrator(ix, snap, pipeline.Schedule{
		Interval: a.cfg.S3.SnapshotInterval.Duration,
		Cron:     a.cfg.S3.SnapshotCron,
	}, a.logger), nil
}

// newServer builds the API server and, when a signal bus is wired, the
// WebSocket hub feeding /ws. The hub is not started.
func (a *App) newServer(deps *Dependencies) (*server.Server, *ws.Hub) {
	handlers := server.Handlers{
		Health:      handler.NewHealthHandler(deps.Checks, a.logger),
		Status:      handler.NewStatusHandler(deps.Cursors, deps.Contract, a.cfg.Mode, a.logger),
		Market:      handler.NewMarketHandler(deps.Reader, a.logger),
		Artworks:    handler.NewArtworkHandler(deps.Reader, deps.ArtworkCache, a.logger),
		Accounts:    handler.NewAccountHandler(deps.Reader, a.logger),
		Entities:    handler.NewEntityHandler(deps.Reader, a.logger),
		Diagnostics: handler.NewDiagnosticHandler(deps.Reader, a.logger),
		Metrics:     deps.Metrics.Handler(),
	}
	if deps.Snapshots != nil {
		handlers.Snapshots = handler.NewSnapshotHandler(deps.Snapshots, a.logger)
	}

	var hub *ws.Hub
	if deps.SignalBus != nil {
		hub = ws.NewHub(deps.SignalBus, ws.Config{
			Channel: pipeline.ChannelEvents,
			Stream:  pipeline.StreamEvents,
			Mode:    a.cfg.Mode,
		}, deps.Metrics, a.logger)
	}

	srv := server.NewServer(server.Config{
		Port:               a.cfg.Server.Port,
		CORSOrigins:        a.cfg.Server.CORSOrigins,
		APIKey:             a.cfg.Server.APIKey,
		RateLimitPerMinute: a.cfg.Server.RateLimitPerMinute,
	}, handlers, hub, deps.RateLimiter, a.logger)
	return srv, hub
}

// startHTTPServer runs the API server, its hub, and a shutdown watcher in g.
func (a *App) startHTTPServer(ctx context.Context, g *errgroup.Group, deps *Dependencies) {
	srv, hub := a.newServer(deps)

	if hub != nil {
		g.Go(func() error {
			err := hub.Run(ctx)
			if ctx.Err() != nil {
				return nil
			}
			return fmt.Errorf("ws hub: %w", err)
		})
	}

	g.Go(func() error {
		a.logger.InfoContext(ctx, "HTTP server listening",
			slog.Int("port", a.cfg.Server.Port),
			slog.String("url", fmt.Sprintf("http://localhost:%d", a.cfg.Server.Port)))
		return srv.Start()
	})

	g.Go(func() error {
		<-ctx.Done()
		shutCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return srv.Shutdown(shutCtx)
	})
}
