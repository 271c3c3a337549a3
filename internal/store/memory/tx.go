package memory

import (
	"context"

	"github.com/alanyoungcy/artindexer/internal/domain"
)

// tx reads through its pending writes to the committed state. Atomic holds
// txMu for the lifetime of a tx, so the committed state cannot change under it.
type tx struct {
	store   *Store
	pending *state
}

func (t *tx) Accounts() domain.AccountRepository       { return accountRepo{t} }
func (t *tx) Market() domain.MarketRepository          { return marketRepo{t} }
func (t *tx) Artworks() domain.ArtworkRepository       { return artworkRepo{t} }
func (t *tx) Bids() domain.BidRepository               { return bidRepo{t} }
func (t *tx) Sales() domain.SaleRepository             { return saleRepo{t} }
func (t *tx) Transfers() domain.TransferRepository     { return transferRepo{t} }
func (t *tx) Diagnostics() domain.DiagnosticRepository { return diagnosticRepo{t} }
func (t *tx) Events() domain.EventLog                  { return eventLog{t} }

func lookup[K comparable, V any](pending, committed map[K]V, id K) (V, bool) {
	if v, ok := pending[id]; ok {
		return v, true
	}
	v, ok := committed[id]
	return v, ok
}

type accountRepo struct{ t *tx }

func (r accountRepo) Get(_ context.Context, id domain.AccountID) (domain.Account, error) {
	r.t.store.mu.RLock()
	defer r.t.store.mu.RUnlock()
	a, ok := lookup(r.t.pending.accounts, r.t.store.data.accounts, id)
	if !ok {
		return domain.Account{}, domain.ErrNotFound
	}
	return a.Clone(), nil
}

func (r accountRepo) GetOrCreate(ctx context.Context, id domain.AccountID) (domain.Account, error) {
	a, err := r.Get(ctx, id)
	if err == nil {
		return a, nil
	}
	a = domain.NewAccount(id)
	if err := r.Put(ctx, a); err != nil {
		return domain.Account{}, err
	}
	return a, nil
}

func (r accountRepo) Put(_ context.Context, a domain.Account) error {
	r.t.pending.accounts[a.ID] = a.Clone()
	return nil
}

type marketRepo struct{ t *tx }

func (r marketRepo) GetOrCreate(ctx context.Context) (domain.Market, error) {
	if r.t.pending.market != nil {
		return r.t.pending.market.Clone(), nil
	}
	r.t.store.mu.RLock()
	committed := r.t.store.data.market
	r.t.store.mu.RUnlock()
	if committed != nil {
		return committed.Clone(), nil
	}
	m := domain.NewMarket(r.t.store.defaults)
	if err := r.Put(ctx, m); err != nil {
		return domain.Market{}, err
	}
	return m, nil
}

func (r marketRepo) Put(_ context.Context, m domain.Market) error {
	c := m.Clone()
	c.ID = domain.MarketID
	r.t.pending.market = &c
	return nil
}

type artworkRepo struct{ t *tx }

func (r artworkRepo) Get(_ context.Context, id domain.ArtworkID) (domain.Artwork, error) {
	r.t.store.mu.RLock()
	defer r.t.store.mu.RUnlock()
	a, ok := lookup(r.t.pending.artworks, r.t.store.data.artworks, id)
	if !ok {
		return domain.Artwork{}, domain.ErrNotFound
	}
	return a.Clone(), nil
}

func (r artworkRepo) Put(_ context.Context, a domain.Artwork) error {
	r.t.pending.artworks[a.ID] = a.Clone()
	return nil
}

type bidRepo struct{ t *tx }

func (r bidRepo) Get(_ context.Context, id domain.BidID) (domain.Bid, error) {
	r.t.store.mu.RLock()
	defer r.t.store.mu.RUnlock()
	b, ok := lookup(r.t.pending.bids, r.t.store.data.bids, id)
	if !ok {
		return domain.Bid{}, domain.ErrNotFound
	}
	return b.Clone(), nil
}

func (r bidRepo) Put(_ context.Context, b domain.Bid) error {
	r.t.pending.bids[b.ID] = b.Clone()
	return nil
}

type saleRepo struct{ t *tx }

func (r saleRepo) Get(_ context.Context, id domain.SaleID) (domain.Sale, error) {
	r.t.store.mu.RLock()
	defer r.t.store.mu.RUnlock()
	v, ok := lookup(r.t.pending.sales, r.t.store.data.sales, id)
	if !ok {
		return domain.Sale{}, domain.ErrNotFound
	}
	return v.Clone(), nil
}

func (r saleRepo) Put(_ context.Context, v domain.Sale) error {
	r.t.pending.sales[v.ID] = v.Clone()
	return nil
}

type transferRepo struct{ t *tx }

func (r transferRepo) Get(_ context.Context, id domain.TransferID) (domain.Transfer, error) {
	r.t.store.mu.RLock()
	defer r.t.store.mu.RUnlock()
	v, ok := lookup(r.t.pending.transfers, r.t.store.data.transfers, id)
	if !ok {
		return domain.Transfer{}, domain.ErrNotFound
	}
	return v, nil
}

func (r transferRepo) Put(_ context.Context, v domain.Transfer) error {
	r.t.pending.transfers[v.ID] = v
	return nil
}

type diagnosticRepo struct{ t *tx }

func (r diagnosticRepo) Record(_ context.Context, d domain.Diagnostic) error {
	r.t.pending.diagnostics = append(r.t.pending.diagnostics, d)
	return nil
}

type eventLog struct{ t *tx }

func (r eventLog) MarkProcessed(_ context.Context, eventID string, block uint64) (bool, error) {
	r.t.store.mu.RLock()
	defer r.t.store.mu.RUnlock()
	if _, ok := lookup(r.t.pending.events, r.t.store.data.events, eventID); ok {
		return false, nil
	}
	r.t.pending.events[eventID] = block
	return true, nil
}
