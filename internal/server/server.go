// Package server exposes the indexed entity graph over a read-only HTTP API,
// plus Prometheus metrics and a WebSocket feed of applied events.
package server

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/alanyoungcy/artindexer/internal/domain"
	"github.com/alanyoungcy/artindexer/internal/server/handler"
	"github.com/alanyoungcy/artindexer/internal/server/middleware"
	"github.com/alanyoungcy/artindexer/internal/server/ws"
)

// Config holds the HTTP server configuration.
type Config struct {
	Port        int
	CORSOrigins []string
	APIKey      string // if empty, authentication is disabled
	// RateLimitPerMinute caps requests per client IP. Zero disables limiting.
	RateLimitPerMinute int
}

// Handlers aggregates all HTTP handlers that the server needs to register.
// Snapshots, Metrics and the hub are optional.
type Handlers struct {
	Health      *handler.HealthHandler
	Status      *handler.StatusHandler
	Market      *handler.MarketHandler
	Artworks    *handler.ArtworkHandler
	Accounts    *handler.AccountHandler
	Entities    *handler.EntityHandler
	Diagnostics *handler.DiagnosticHandler
	Snapshots   *handler.SnapshotHandler
	Metrics     http.Handler
}

// Server is the read API server.
type Server struct {
	httpServer *http.Server
	handler    http.Handler
	logger     *slog.Logger
}

// NewServer registers every route and wraps the mux in the middleware chain.
// limiter may be nil, in which case rate limiting is per process.
func NewServer(cfg Config, handlers Handlers, hub *ws.Hub, limiter domain.RateLimiter, logger *slog.Logger) *Server {
	mux := http.NewServeMux()

	mux.HandleFunc("GET /api/health", handlers.Health.HealthCheck)
	mux.HandleFunc("GET /api/status", handlers.Status.GetStatus)
	mux.HandleFunc("GET /api/market", handlers.Market.GetMarket)

	mux.HandleFunc("GET /api/artworks", handlers.Artworks.ListArtworks)
	mux.HandleFunc("GET /api/artworks/{id}", handlers.Artworks.GetArtwork)
	mux.HandleFunc("GET /api/artworks/{id}/bids", handlers.Artworks.ListBids)
	mux.HandleFunc("GET /api/artworks/{id}/sales", handlers.Artworks.ListSales)
	mux.HandleFunc("GET /api/artworks/{id}/transfers", handlers.Artworks.ListTransfers)

	mux.HandleFunc("GET /api/accounts", handlers.Accounts.ListAccounts)
	mux.HandleFunc("GET /api/accounts/{address}", handlers.Accounts.GetAccount)

	mux.HandleFunc("GET /api/bids/{id}", handlers.Entities.GetBid)
	mux.HandleFunc("GET /api/sales/{id}", handlers.Entities.GetSale)
	mux.HandleFunc("GET /api/transfers/{id}", handlers.Entities.GetTransfer)

	mux.HandleFunc("GET /api/diagnostics", handlers.Diagnostics.ListDiagnostics)

	if handlers.Snapshots != nil {
		mux.HandleFunc("GET /api/snapshots", handlers.Snapshots.ListSnapshots)
	}
	if handlers.Metrics != nil {
		mux.Handle("GET /metrics", handlers.Metrics)
	}
	if hub != nil {
		mux.HandleFunc("GET /ws", hub.HandleWS)
	}

	var h http.Handler = mux
	h = middleware.Auth(cfg.APIKey, "/api/health", "/metrics")(h)
	if cfg.RateLimitPerMinute > 0 {
		h = middleware.RateLimit(limiter, cfg.RateLimitPerMinute, time.Minute, logger)(h)
	}
	h = middleware.Logging(logger)(h)
	h = middleware.CORS(cfg.CORSOrigins)(h)

	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Port),
		Handler:           h,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	return &Server{
		httpServer: srv,
		handler:    h,
		logger:     logger,
	}
}

// Handler returns the fully wrapped handler.
func (s *Server) Handler() http.Handler {
	return s.handler
}

// Start begins listening for HTTP requests. It blocks until the server
// encounters an error or is shut down.
func (s *Server) Start() error {
	s.logger.Info("server: starting",
		slog.String("addr", s.httpServer.Addr),
	)
	if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return fmt.Errorf("server: listen: %w", err)
	}
	return nil
}

// Shutdown gracefully shuts down the server, waiting for in-flight requests
// to complete within the given context deadline.
func (s *Server) Shutdown(ctx context.Context) error {
	s.logger.Info("server: shutting down")
	if err := s.httpServer.Shutdown(ctx); err != nil {
		return fmt.Errorf("server: shutdown: %w", err)
	}
	return nil
}
