// Package memory implements the domain store interfaces in process memory.
// Writes made inside Atomic are buffered and only become visible when the
// unit of work returns nil.
package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/alanyoungcy/artindexer/internal/domain"
)

type state struct {
	market      *domain.Market
	accounts    map[domain.AccountID]domain.Account
	artworks    map[domain.ArtworkID]domain.Artwork
	bids        map[domain.BidID]domain.Bid
	sales       map[domain.SaleID]domain.Sale
	transfers   map[domain.TransferID]domain.Transfer
	events      map[string]uint64
	diagnostics []domain.Diagnostic
}

func newState() *state {
	return &state{
		accounts:  make(map[domain.AccountID]domain.Account),
		artworks:  make(map[domain.ArtworkID]domain.Artwork),
		bids:      make(map[domain.BidID]domain.Bid),
		sales:     make(map[domain.SaleID]domain.Sale),
		transfers: make(map[domain.TransferID]domain.Transfer),
		events:    make(map[string]uint64),
	}
}

// Store is an in-memory entity store. It is safe for concurrent use; units of
// work are serialised.
type Store struct {
	mu       sync.RWMutex
	txMu     sync.Mutex
	defaults domain.MarketDefaults
	data     *state
	cursors  map[string]domain.Cursor
}

// New creates an empty Store whose market starts from defaults.
func New(defaults domain.MarketDefaults) *Store {
	return &Store{
		defaults: defaults,
		data:     newState(),
		cursors:  make(map[string]domain.Cursor),
	}
}

// Atomic runs fn against a buffered view of the store and publishes the
// buffered writes only if fn succeeds.
func (s *Store) Atomic(ctx context.Context, fn func(ctx context.Context, tx domain.Tx) error) error {
	s.txMu.Lock()
	defer s.txMu.Unlock()

	t := &tx{store: s, pending: newState()}
	if err := fn(ctx, t); err != nil {
		return err
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if t.pending.market != nil {
		m := t.pending.market.Clone()
		s.data.market = &m
	}
	for k, v := range t.pending.accounts {
		s.data.accounts[k] = v
	}
	for k, v := range t.pending.artworks {
		s.data.artworks[k] = v
	}
	for k, v := range t.pending.bids {
		s.data.bids[k] = v
	}
	for k, v := range t.pending.sales {
		s.data.sales[k] = v
	}
	for k, v := range t.pending.transfers {
		s.data.transfers[k] = v
	}
	for k, v := range t.pending.events {
		s.data.events[k] = v
	}
	s.data.diagnostics = append(s.data.diagnostics, t.pending.diagnostics...)
	return nil
}

// Get returns the cursor for a contract, or domain.ErrNotFound.
func (s *Store) Get(_ context.Context, contract string) (domain.Cursor, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	c, ok := s.cursors[contract]
	if !ok {
		return domain.Cursor{}, domain.ErrNotFound
	}
	return c, nil
}

// Advance moves the cursor for a contract to block.
func (s *Store) Advance(_ context.Context, contract string, block uint64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.cursors[contract] = domain.Cursor{Contract: contract, Block: block, UpdatedAt: time.Now().UTC()}
	return nil
}

// Market returns the committed market, or the defaults if none was written.
func (s *Store) Market(_ context.Context) (domain.Market, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.data.market == nil {
		return domain.NewMarket(s.defaults), nil
	}
	return s.data.market.Clone(), nil
}

// Account returns a committed account.
func (s *Store) Account(_ context.Context, id domain.AccountID) (domain.Account, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	a, ok := s.data.accounts[id]
	if !ok {
		return domain.Account{}, domain.ErrNotFound
	}
	return a.Clone(), nil
}

// Artwork returns a committed artwork.
func (s *Store) Artwork(_ context.Context, id domain.ArtworkID) (domain.Artwork, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	a, ok := s.data.artworks[id]
	if !ok {
		return domain.Artwork{}, domain.ErrNotFound
	}
	return a.Clone(), nil
}

// Bid returns a committed bid.
func (s *Store) Bid(_ context.Context, id domain.BidID) (domain.Bid, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	b, ok := s.data.bids[id]
	if !ok {
		return domain.Bid{}, domain.ErrNotFound
	}
	return b.Clone(), nil
}

// Sale returns a committed sale.
func (s *Store) Sale(_ context.Context, id domain.SaleID) (domain.Sale, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	v, ok := s.data.sales[id]
	if !ok {
		return domain.Sale{}, domain.ErrNotFound
	}
	return v.Clone(), nil
}

// Transfer returns a committed transfer.
func (s *Store) Transfer(_ context.Context, id domain.TransferID) (domain.Transfer, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	v, ok := s.data.transfers[id]
	if !ok {
		return domain.Transfer{}, domain.ErrNotFound
	}
	return v, nil
}

// ListAccounts returns accounts ordered by id.
func (s *Store) ListAccounts(_ context.Context, opts domain.ListOpts) ([]domain.Account, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	ids := make([]string, 0, len(s.data.accounts))
	for id := range s.data.accounts {
		ids = append(ids, string(id))
	}
	sort.Strings(ids)
	ids = page(ids, opts)
	out := make([]domain.Account, 0, len(ids))
	for _, id := range ids {
		out = append(out, s.data.accounts[domain.AccountID(id)].Clone())
	}
	return out, nil
}

// ListArtworks returns artworks ordered by id.
func (s *Store) ListArtworks(_ context.Context, opts domain.ListOpts) ([]domain.Artwork, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	ids := make([]string, 0, len(s.data.artworks))
	for id := range s.data.artworks {
		ids = append(ids, string(id))
	}
	sort.Strings(ids)
	ids = page(ids, opts)
	out := make([]domain.Artwork, 0, len(ids))
	for _, id := range ids {
		out = append(out, s.data.artworks[domain.ArtworkID(id)].Clone())
	}
	return out, nil
}

// ListDiagnostics returns diagnostics newest first.
func (s *Store) ListDiagnostics(_ context.Context, f domain.DiagnosticFilter) ([]domain.Diagnostic, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var matched []domain.Diagnostic
	for i := len(s.data.diagnostics) - 1; i >= 0; i-- {
		d := s.data.diagnostics[i]
		if f.Severity != "" && d.Severity != f.Severity {
			continue
		}
		if f.Code != "" && d.Code != f.Code {
			continue
		}
		if f.TokenID != "" && d.TokenID != f.TokenID {
			continue
		}
		matched = append(matched, d)
	}
	return page(matched, f.ListOpts), nil
}

func page[T any](items []T, opts domain.ListOpts) []T {
	if opts.Offset > 0 {
		if opts.Offset >= len(items) {
			return nil
		}
		items = items[opts.Offset:]
	}
	if opts.Limit > 0 && opts.Limit < len(items) {
		items = items[:opts.Limit]
	}
	return items
}

// Compile-time interface checks.
var (
	_ domain.Store       = (*Store)(nil)
	_ domain.Reader      = (*Store)(nil)
	_ domain.CursorStore = (*Store)(nil)
)
