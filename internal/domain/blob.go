package domain

import (
	"context"
	"io"
	"time"
)

// BlobInfo is one stored snapshot object as returned by a listing.
type BlobInfo struct {
	Path         string    `json:"path"`
	Size         int64     `json:"size"`
	LastModified time.Time `json:"last_modified"`
}

// BlobWriter stores snapshot objects. PutMultipart is for bodies too large
// for a single request.
type BlobWriter interface {
	Put(ctx context.Context, key string, body io.Reader, contentType string) error
	PutMultipart(ctx context.Context, key string, body io.Reader, partSize int64) error
}

// BlobReader reads snapshot objects back. Get reports a missing key as
// ErrNotFound; List returns objects under prefix, directory markers excluded.
type BlobReader interface {
	Get(ctx context.Context, key string) (io.ReadCloser, error)
	List(ctx context.Context, prefix string) ([]BlobInfo, error)
	Exists(ctx context.Context, key string) (bool, error)
}
