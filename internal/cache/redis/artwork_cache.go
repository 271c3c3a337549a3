package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/alanyoungcy/artindexer/internal/domain"
)

// DefaultCacheTTL bounds how long a cached artwork may be served.
const DefaultCacheTTL = 5 * time.Minute

// ArtworkCache implements domain.ArtworkCache with one Redis hash per
// artwork holding its JSON form. The indexer invalidates an entry after
// every event that writes the artwork.
//
// Key schema:
//
//	artwork:{id} - hash with field "data" containing JSON
type ArtworkCache struct {
	rdb *redis.Client
	ttl time.Duration
}

// NewArtworkCache creates an ArtworkCache backed by the given Client.
func NewArtworkCache(c *Client) *ArtworkCache {
	ttl := c.cfg.CacheTTL
	if ttl <= 0 {
		ttl = DefaultCacheTTL
	}
	return &ArtworkCache{rdb: c.Underlying(), ttl: ttl}
}

func artworkKey(id domain.ArtworkID) string { return "artwork:" + string(id) }

// Set stores an artwork with the cache TTL.
func (ac *ArtworkCache) Set(ctx context.Context, a domain.Artwork) error {
	data, err := json.Marshal(a)
	if err != nil {
		return fmt.Errorf("redis: marshal artwork %s: %w", a.ID, err)
	}

	key := artworkKey(a.ID)
	pipe := ac.rdb.TxPipeline()
	pipe.HSet(ctx, key, "data", data)
	pipe.Expire(ctx, key, ac.ttl)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("redis: set artwork %s: %w", a.ID, err)
	}
	return nil
}

// Get returns a cached artwork or domain.ErrNotFound on a miss.
func (ac *ArtworkCache) Get(ctx context.Context, id domain.ArtworkID) (domain.Artwork, error) {
	data, err := ac.rdb.HGet(ctx, artworkKey(id), "data").Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return domain.Artwork{}, domain.ErrNotFound
		}
		return domain.Artwork{}, fmt.Errorf("redis: get artwork %s: %w", id, err)
	}

	var a domain.Artwork
	if err := json.Unmarshal(data, &a); err != nil {
		return domain.Artwork{}, fmt.Errorf("redis: unmarshal artwork %s: %w", id, err)
	}
	return a, nil
}

// Invalidate drops a cached artwork. Missing entries are not an error.
func (ac *ArtworkCache) Invalidate(ctx context.Context, id domain.ArtworkID) error {
	if err := ac.rdb.Del(ctx, artworkKey(id)).Err(); err != nil {
		return fmt.Errorf("redis: invalidate artwork %s: %w", id, err)
	}
	return nil
}

// Compile-time interface check.
var _ domain.ArtworkCache = (*ArtworkCache)(nil)
