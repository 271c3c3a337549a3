package domain

import (
	"context"
	"time"
)

// ListOpts provides pagination for list queries.
type ListOpts struct {
	Limit  int
	Offset int
}

// AccountRepository persists accounts. GetOrCreate is idempotent: repeated
// calls with the same id write at most once.
type AccountRepository interface {
	Get(ctx context.Context, id AccountID) (Account, error)
	GetOrCreate(ctx context.Context, id AccountID) (Account, error)
	Put(ctx context.Context, a Account) error
}

// MarketRepository persists the singleton market. GetOrCreate seeds it with
// the defaults it was constructed with.
type MarketRepository interface {
	GetOrCreate(ctx context.Context) (Market, error)
	Put(ctx context.Context, m Market) error
}

// ArtworkRepository persists artworks.
type ArtworkRepository interface {
	Get(ctx context.Context, id ArtworkID) (Artwork, error)
	Put(ctx context.Context, a Artwork) error
}

// BidRepository persists bids.
type BidRepository interface {
	Get(ctx context.Context, id BidID) (Bid, error)
	Put(ctx context.Context, b Bid) error
}

// SaleRepository persists sales.
type SaleRepository interface {
	Get(ctx context.Context, id SaleID) (Sale, error)
	Put(ctx context.Context, s Sale) error
}

// TransferRepository persists transfers.
type TransferRepository interface {
	Get(ctx context.Context, id TransferID) (Transfer, error)
	Put(ctx context.Context, t Transfer) error
}

// DiagnosticRepository records diagnostics.
type DiagnosticRepository interface {
	Record(ctx context.Context, d Diagnostic) error
}

// EventLog remembers which events have been applied. MarkProcessed returns
// false when the id was already recorded.
type EventLog interface {
	MarkProcessed(ctx context.Context, eventID string, block uint64) (bool, error)
}

// Tx is the view of the store inside a single unit of work.
type Tx interface {
	Accounts() AccountRepository
	Market() MarketRepository
	Artworks() ArtworkRepository
	Bids() BidRepository
	Sales() SaleRepository
	Transfers() TransferRepository
	Diagnostics() DiagnosticRepository
	Events() EventLog
}

// Store runs units of work. If fn returns an error nothing it wrote is kept.
type Store interface {
	Atomic(ctx context.Context, fn func(ctx context.Context, tx Tx) error) error
}

// Cursor is the indexing position: the last block whose events are all
// committed.
type Cursor struct {
	Contract  string    `json:"contract"`
	Block     uint64    `json:"block"`
	UpdatedAt time.Time `json:"updated_at"`
}

// CursorStore persists the indexing position.
type CursorStore interface {
	Get(ctx context.Context, contract string) (Cursor, error)
	Advance(ctx context.Context, contract string, block uint64) error
}

// Reader exposes committed entities to the query side.
type Reader interface {
	Market(ctx context.Context) (Market, error)
	Account(ctx context.Context, id AccountID) (Account, error)
	Artwork(ctx context.Context, id ArtworkID) (Artwork, error)
	Bid(ctx context.Context, id BidID) (Bid, error)
	Sale(ctx context.Context, id SaleID) (Sale, error)
	Transfer(ctx context.Context, id TransferID) (Transfer, error)
	ListAccounts(ctx context.Context, opts ListOpts) ([]Account, error)
	ListArtworks(ctx context.Context, opts ListOpts) ([]Artwork, error)
	ListDiagnostics(ctx context.Context, f DiagnosticFilter) ([]Diagnostic, error)
}
