package app

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/ethereum/go-ethereum/common"

	s3blob "github.com/alanyoungcy/artindexer/internal/blob/s3"
	"github.com/alanyoungcy/artindexer/internal/cache/redis"
	"github.com/alanyoungcy/artindexer/internal/chain"
	"github.com/alanyoungcy/artindexer/internal/config"
	"github.com/alanyoungcy/artindexer/internal/domain"
	"github.com/alanyoungcy/artindexer/internal/metrics"
	"github.com/alanyoungcy/artindexer/internal/notify"
	"github.com/alanyoungcy/artindexer/internal/server/handler"
	"github.com/alanyoungcy/artindexer/internal/store/memory"
	"github.com/alanyoungcy/artindexer/internal/store/postgres"
)

// Dependencies bundles every dependency the application modes need. It is
// constructed by Wire and torn down by the returned cleanup function.
// Optional parts are nil when their backend is disabled.
type Dependencies struct {
	// Contract is the checksummed market contract address; it keys the
	// cursor and the indexer lock.
	Contract string

	// Entity store
	Store   domain.Store
	Reader  domain.Reader
	Cursors domain.CursorStore

	// Chain, only for modes that index
	Accessor domain.ChainState
	Source   domain.EventSource

	// Redis
	LockManager  domain.LockManager
	SignalBus    domain.SignalBus
	ArtworkCache domain.ArtworkCache
	RateLimiter  domain.RateLimiter

	// Blob storage
	Snapshots *s3blob.Snapshotter

	Notifier *notify.Notifier
	Metrics  *metrics.Metrics

	// Checks are reported by the health endpoint.
	Checks map[string]handler.Checker
}

// checkFunc adapts a function to handler.Checker.
type checkFunc func(ctx context.Context) error

func (f checkFunc) Health(ctx context.Context) error { return f(ctx) }

// Wire constructs all concrete dependency implementations from the given
// configuration and returns them together with a cleanup function that should
// be called on shutdown to release resources.
func Wire(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*Dependencies, func(), error) {
	var closers []func()
	cleanup := func() {
		for i := len(closers) - 1; i >= 0; i-- {
			closers[i]()
		}
	}

	deps := &Dependencies{
		Contract: common.HexToAddress(cfg.Chain.ContractAddress).Hex(),
		Metrics:  metrics.New(),
		Checks:   make(map[string]handler.Checker),
	}
	defaults := domain.MarketDefaults{
		PlatformPrimaryFee:   cfg.Market.PlatformPrimaryFee,
		PlatformSecondaryFee: cfg.Market.PlatformSecondaryFee,
		ArtistRoyaltyFee:     cfg.Market.ArtistRoyaltyFee,
	}

	// --- Entity store ---
	switch strings.ToLower(cfg.Store.Driver) {
	case "memory":
		st := memory.New(defaults)
		deps.Store, deps.Reader, deps.Cursors = st, st, st
		logger.WarnContext(ctx, "using in-memory store; state is lost on exit")
	case "postgres":
		pgClient, err := postgres.New(ctx, postgres.ClientConfig{
			DSN:      cfg.Postgres.DSN,
			Host:     cfg.Postgres.Host,
			Port:     cfg.Postgres.Port,
			Database: cfg.Postgres.Database,
			User:     cfg.Postgres.User,
			Password: cfg.Postgres.Password,
			SSLMode:  cfg.Postgres.SSLMode,
			MaxConns: cfg.Postgres.PoolMaxConns,
			MinConns: cfg.Postgres.PoolMinConns,
		})
		if err != nil {
			cleanup()
			return nil, nil, fmt.Errorf("wire: postgres: %w", err)
		}
		closers = append(closers, pgClient.Close)

		if cfg.Postgres.RunMigrations {
			if err := pgClient.RunMigrations(ctx); err != nil {
				cleanup()
				return nil, nil, fmt.Errorf("wire: postgres migrations: %w", err)
			}
		}

		st := postgres.NewStore(pgClient.Pool(), defaults)
		deps.Store, deps.Reader, deps.Cursors = st, st, st
		deps.Checks["postgres"] = pgClient
	default:
		return nil, nil, fmt.Errorf("wire: unknown store driver %q", cfg.Store.Driver)
	}

	// --- Chain (only for modes that index) ---
	if cfg.Indexes() {
		ethClient, err := chain.Dial(ctx, cfg.Chain.RPCURL)
		if err != nil {
			cleanup()
			return nil, nil, fmt.Errorf("wire: %w", err)
		}
		closers = append(closers, ethClient.Close)

		rpc := chain.Throttle(ethClient, cfg.Chain.RPCRateLimit, deps.Metrics)
		contract := common.HexToAddress(cfg.Chain.ContractAddress)
		deps.Accessor = chain.NewAccessor(rpc, contract)
		source := chain.NewLogSource(rpc, contract, logger)
		deps.Source = source
		deps.Checks["chain"] = checkFunc(func(ctx context.Context) error {
			_, err := source.Head(ctx)
			return err
		})
	}

	// --- Redis ---
	if cfg.Redis.Enabled {
		redisClient, err := redis.New(ctx, redis.ClientConfig{
			Addr:         cfg.Redis.Addr,
			Password:     cfg.Redis.Password,
			DB:           cfg.Redis.DB,
			PoolSize:     cfg.Redis.PoolSize,
			MaxRetries:   cfg.Redis.MaxRetries,
			TLSEnabled:   cfg.Redis.TLSEnabled,
			StreamMaxLen: cfg.Redis.StreamMaxLen,
			CacheTTL:     cfg.Redis.CacheTTL.Duration,
		})
		if err != nil {
			cleanup()
			return nil, nil, fmt.Errorf("wire: redis: %w", err)
		}
		closers = append(closers, func() { _ = redisClient.Close() })

		deps.LockManager = redis.NewLockManager(redisClient)
		deps.SignalBus = redis.NewSignalBus(redisClient)
		deps.ArtworkCache = redis.NewArtworkCache(redisClient)
		deps.RateLimiter = redis.NewRateLimiter(redisClient)
		deps.Checks["redis"] = redisClient
	} else {
		logger.WarnContext(ctx, "redis disabled: no indexer lock, event feed or artwork cache")
	}

	// --- S3 snapshots ---
	if cfg.S3.Enabled {
		s3Client, err := s3blob.New(ctx, s3blob.ClientConfig{
			Endpoint:       cfg.S3.Endpoint,
			Region:         cfg.S3.Region,
			Bucket:         cfg.S3.Bucket,
			AccessKey:      cfg.S3.AccessKey,
			SecretKey:      cfg.S3.SecretKey,
			UseSSL:         cfg.S3.UseSSL,
			ForcePathStyle: cfg.S3.ForcePathStyle,
		})
		if err != nil {
			cleanup()
			return nil, nil, fmt.Errorf("wire: s3: %w", err)
		}
		deps.Snapshots = s3blob.NewSnapshotter(
			s3blob.NewWriter(s3Client),
			s3blob.NewReader(s3Client),
			deps.Reader,
			cfg.S3.SnapshotPrefix,
		)
		deps.Checks["s3"] = s3Client
	}

	// --- Notifications ---
	var senders []notify.Sender
	if cfg.Notify.TelegramToken != "" && cfg.Notify.TelegramChatID != "" {
		senders = append(senders, notify.NewTelegramSender(
			cfg.Notify.TelegramToken,
			cfg.Notify.TelegramChatID,
		))
	}
	if cfg.Notify.DiscordWebhookURL != "" {
		senders = append(senders, notify.NewDiscordSender(cfg.Notify.DiscordWebhookURL))
	}
	deps.Notifier = notify.NewNotifier(senders, cfg.Notify.Severities, logger)

	return deps, cleanup, nil
}
