package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/alanyoungcy/artindexer/internal/domain"
)

// maxSerializationRetries bounds how often Atomic reruns a unit of work that
// lost a serialization conflict.
const maxSerializationRetries = 3

// querier is the part of pgx shared by the pool and a transaction.
type querier interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// Store implements domain.Store, domain.Reader and domain.CursorStore over
// PostgreSQL. Each unit of work is one database transaction.
type Store struct {
	pool     *pgxpool.Pool
	defaults domain.MarketDefaults
}

// NewStore creates a Store backed by pool. The market row is seeded from
// defaults the first time it is read inside a unit of work.
func NewStore(pool *pgxpool.Pool, defaults domain.MarketDefaults) *Store {
	return &Store{pool: pool, defaults: defaults}
}

// Atomic runs fn in a transaction and commits it if fn returns nil.
// Serialization failures are retried with a fresh transaction, so fn must
// not keep state between calls.
func (s *Store) Atomic(ctx context.Context, fn func(ctx context.Context, tx domain.Tx) error) error {
	var err error
	for attempt := 0; attempt <= maxSerializationRetries; attempt++ {
		err = pgx.BeginTxFunc(ctx, s.pool, pgx.TxOptions{IsoLevel: pgx.RepeatableRead}, func(ptx pgx.Tx) error {
			return fn(ctx, &tx{q: ptx, defaults: s.defaults})
		})
		if !isSerializationFailure(err) {
			break
		}
	}
	return err
}

func isSerializationFailure(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && (pgErr.Code == "40001" || pgErr.Code == "40P01")
}

// tx exposes the repositories bound to one transaction.
type tx struct {
	q        querier
	defaults domain.MarketDefaults
}

func (t *tx) Accounts() domain.AccountRepository       { return accountRepo{q: t.q} }
func (t *tx) Market() domain.MarketRepository          { return marketRepo{q: t.q, defaults: t.defaults} }
func (t *tx) Artworks() domain.ArtworkRepository       { return artworkRepo{q: t.q} }
func (t *tx) Bids() domain.BidRepository               { return bidRepo{q: t.q} }
func (t *tx) Sales() domain.SaleRepository             { return saleRepo{q: t.q} }
func (t *tx) Transfers() domain.TransferRepository     { return transferRepo{q: t.q} }
func (t *tx) Diagnostics() domain.DiagnosticRepository { return diagnosticRepo{q: t.q} }
func (t *tx) Events() domain.EventLog                  { return eventLog{q: t.q} }

// Market returns the committed market, or one built from the defaults when
// no row exists yet.
func (s *Store) Market(ctx context.Context) (domain.Market, error) {
	m, err := marketRepo{q: s.pool}.get(ctx)
	if errors.Is(err, domain.ErrNotFound) {
		return domain.NewMarket(s.defaults), nil
	}
	return m, err
}

func (s *Store) Account(ctx context.Context, id domain.AccountID) (domain.Account, error) {
	return accountRepo{q: s.pool}.Get(ctx, id)
}

func (s *Store) Artwork(ctx context.Context, id domain.ArtworkID) (domain.Artwork, error) {
	return artworkRepo{q: s.pool}.Get(ctx, id)
}

func (s *Store) Bid(ctx context.Context, id domain.BidID) (domain.Bid, error) {
	return bidRepo{q: s.pool}.Get(ctx, id)
}

func (s *Store) Sale(ctx context.Context, id domain.SaleID) (domain.Sale, error) {
	return saleRepo{q: s.pool}.Get(ctx, id)
}

func (s *Store) Transfer(ctx context.Context, id domain.TransferID) (domain.Transfer, error) {
	return transferRepo{q: s.pool}.Get(ctx, id)
}

func (s *Store) ListAccounts(ctx context.Context, opts domain.ListOpts) ([]domain.Account, error) {
	return accountRepo{q: s.pool}.list(ctx, opts)
}

func (s *Store) ListArtworks(ctx context.Context, opts domain.ListOpts) ([]domain.Artwork, error) {
	return artworkRepo{q: s.pool}.list(ctx, opts)
}

func (s *Store) ListDiagnostics(ctx context.Context, f domain.DiagnosticFilter) ([]domain.Diagnostic, error) {
	return diagnosticRepo{q: s.pool}.list(ctx, f)
}

// Compile-time interface checks.
var (
	_ domain.Store       = (*Store)(nil)
	_ domain.Reader      = (*Store)(nil)
	_ domain.CursorStore = (*Store)(nil)
)

// paginate appends LIMIT and OFFSET clauses starting at placeholder argIdx.
func paginate(query string, args []any, argIdx int, opts domain.ListOpts) (string, []any) {
	if opts.Limit > 0 {
		query += fmt.Sprintf(" LIMIT $%d", argIdx)
		args = append(args, opts.Limit)
		argIdx++
	}
	if opts.Offset > 0 {
		query += fmt.Sprintf(" OFFSET $%d", argIdx)
		args = append(args, opts.Offset)
	}
	return query, args
}
