package domain

import (
	"context"
	"time"
)

// ArtworkCache holds recently read artworks for the API. The indexer
// invalidates an entry whenever an applied event touches that artwork, so a
// hit is never older than the last committed event for it.
type ArtworkCache interface {
	Get(ctx context.Context, id ArtworkID) (Artwork, error)
	Set(ctx context.Context, a Artwork) error
	Invalidate(ctx context.Context, id ArtworkID) error
}

// LockManager hands out leases that expire after ttl unless refreshed. The
// indexer holds one per contract so only one process applies its events.
type LockManager interface {
	Acquire(ctx context.Context, key string, ttl time.Duration) (release func(), err error)
	Refresh(ctx context.Context, key string, ttl time.Duration) error
}

// StreamMessage is an entry read back from a durable stream. ID is the
// position to resume after.
type StreamMessage struct {
	ID      string
	Payload []byte
}

// SignalBus fans applied events out to live subscribers over Publish and
// Subscribe, and keeps a bounded replay log via StreamAppend and StreamRead.
type SignalBus interface {
	Publish(ctx context.Context, channel string, payload []byte) error
	Subscribe(ctx context.Context, channel string) (<-chan []byte, error)
	StreamAppend(ctx context.Context, stream string, payload []byte) error
	StreamRead(ctx context.Context, stream, afterID string, count int) ([]StreamMessage, error)
}

// RateLimiter admits at most limit calls per key in any trailing window.
type RateLimiter interface {
	Allow(ctx context.Context, key string, limit int, window time.Duration) (bool, error)
}
