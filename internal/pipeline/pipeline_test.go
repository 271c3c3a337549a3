package pipeline

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"math/big"
	"sync"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	s3blob "github.com/alanyoungcy/artindexer/internal/blob/s3"
	"github.com/alanyoungcy/artindexer/internal/domain"
	"github.com/alanyoungcy/artindexer/internal/engine"
	"github.com/alanyoungcy/artindexer/internal/metrics"
	"github.com/alanyoungcy/artindexer/internal/store/memory"
)

const contract = "0x6c424c25e9f1fff9642cb5b7750b0db7312c29ad"

var (
	artistA = common.HexToAddress("0x00000000000000000000000000000000000000a1")
	bidderB = common.HexToAddress("0x00000000000000000000000000000000000000b1")
	buyerC  = common.HexToAddress("0x00000000000000000000000000000000000000c1")
)

func discard() *slog.Logger { return slog.New(slog.NewTextHandler(io.Discard, nil)) }

// oneArtistChain reports artistA as the only creator of every token and no
// control tokens.
type oneArtistChain struct{}

func (oneArtistChain) CreatorAt(_ context.Context, _ uint64, _ *big.Int, index int) (common.Address, bool, error) {
	return artistA, index == 0, nil
}

func (oneArtistChain) TokenURI(context.Context, uint64, *big.Int) (string, error) {
	return "ipfs://art", nil
}

func (oneArtistChain) ControlTokenOf(context.Context, uint64, *big.Int) (domain.ControlToken, bool, error) {
	return domain.ControlToken{}, false, nil
}

type fakeSource struct {
	head    uint64
	headErr error
	events  []domain.Event
	ranges  [][2]uint64
}

func (f *fakeSource) Head(context.Context) (uint64, error) {
	return f.head, f.headErr
}

func (f *fakeSource) Events(_ context.Context, from, to uint64) ([]domain.Event, error) {
	f.ranges = append(f.ranges, [2]uint64{from, to})
	var out []domain.Event
	for _, ev := range f.events {
		if b := ev.Meta().BlockNumber; b >= from && b <= to {
			out = append(out, ev)
		}
	}
	return out, nil
}

type flakyApplier struct {
	inner  Applier
	failAt int
	calls  int
}

func (f *flakyApplier) Apply(ctx context.Context, ev domain.Event) (engine.Result, error) {
	f.calls++
	if f.calls == f.failAt {
		return engine.Result{}, errors.New("rpc timeout")
	}
	return f.inner.Apply(ctx, ev)
}

type recordingBus struct {
	mu        sync.Mutex
	published [][]byte
	streamed  [][]byte
}

func (b *recordingBus) Publish(_ context.Context, channel string, payload []byte) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if channel == ChannelEvents {
		b.published = append(b.published, payload)
	}
	return nil
}

func (b *recordingBus) Subscribe(context.Context, string) (<-chan []byte, error) {
	return make(chan []byte), nil
}

func (b *recordingBus) StreamAppend(_ context.Context, stream string, payload []byte) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if stream == StreamEvents {
		b.streamed = append(b.streamed, payload)
	}
	return nil
}

func (b *recordingBus) StreamRead(context.Context, string, string, int) ([]domain.StreamMessage, error) {
	return nil, nil
}

type recordingCache struct {
	invalidated []domain.ArtworkID
}

func (c *recordingCache) Set(context.Context, domain.Artwork) error { return nil }
func (c *recordingCache) Get(context.Context, domain.ArtworkID) (domain.Artwork, error) {
	return domain.Artwork{}, domain.ErrNotFound
}
func (c *recordingCache) Invalidate(_ context.Context, id domain.ArtworkID) error {
	c.invalidated = append(c.invalidated, id)
	return errors.New("cache down")
}

type recordingNotifier struct {
	got []domain.Diagnostic
}

func (n *recordingNotifier) Diagnostics(_ context.Context, diags []domain.Diagnostic) error {
	n.got = append(n.got, diags...)
	return nil
}

type fakeLock struct {
	held     bool
	unlocked bool
}

func (l *fakeLock) Acquire(context.Context, string, time.Duration) (func(), error) {
	if l.held {
		return nil, domain.ErrLockHeld
	}
	return func() { l.unlocked = true }, nil
}

func (l *fakeLock) Refresh(context.Context, string, time.Duration) error { return nil }

var seq int64

func meta(block uint64) domain.EventMeta {
	seq++
	return domain.EventMeta{
		Contract:    common.HexToAddress(contract),
		BlockNumber: block,
		TxHash:      common.BigToHash(big.NewInt(seq)),
		Timestamp:   time.Unix(1_600_000_000+int64(block), 0).UTC(),
	}
}

func mint(block uint64, token int64) domain.Event {
	return &domain.TransferEvent{EventMeta: meta(block), TokenID: big.NewInt(token), To: artistA}
}

type fixture struct {
	store  *memory.Store
	source *fakeSource
	bus    *recordingBus
	cache  *recordingCache
	notify *recordingNotifier
	eng    *engine.Engine
}

func newFixture(head uint64, events ...domain.Event) *fixture {
	store := memory.New(domain.DefaultMarketDefaults())
	return &fixture{
		store:  store,
		source: &fakeSource{head: head, events: events},
		bus:    &recordingBus{},
		cache:  &recordingCache{},
		notify: &recordingNotifier{},
		eng:    engine.New(store, oneArtistChain{}, engine.Options{}, discard()),
	}
}

func (f *fixture) indexer(cfg IndexerConfig, applier Applier) *Indexer {
	cfg.Contract = contract
	return NewIndexer(cfg, f.source, applier, f.store, discard()).
		WithBus(f.bus).
		WithCache(f.cache).
		WithNotifier(f.notify).
		WithMetrics(metrics.New())
}

func TestStepAppliesRangeAndAdvancesCursor(t *testing.T) {
	ctx := context.Background()
	f := newFixture(110,
		mint(101, 1),
		&domain.BuyPriceSetEvent{EventMeta: meta(103), TokenID: big.NewInt(1), Price: big.NewInt(700)},
		&domain.TokenSaleEvent{EventMeta: meta(104), TokenID: big.NewInt(1), Buyer: buyerC, SalePrice: big.NewInt(700)},
		&domain.BidProposedEvent{EventMeta: meta(107), TokenID: big.NewInt(1), Bidder: bidderB, BidAmount: big.NewInt(900)},
	)
	ix := f.indexer(IndexerConfig{StartBlock: 100, Confirmations: 2, BatchSize: 5}, f.eng)

	p, err := ix.Step(ctx)
	require.NoError(t, err)
	assert.Equal(t, Progress{From: 100, To: 104, Head: 110, Events: 3}, p)

	c, err := f.store.Get(ctx, contract)
	require.NoError(t, err)
	assert.Equal(t, uint64(104), c.Block)

	acct, err := f.store.Account(ctx, domain.AccountIDFromAddress(artistA))
	require.NoError(t, err)
	assert.Equal(t, int64(630), acct.TotalPrimaryIncome.Int64())

	p, err = ix.Step(ctx)
	require.NoError(t, err)
	assert.Equal(t, uint64(105), p.From)
	assert.Equal(t, uint64(108), p.To)
	assert.Equal(t, 1, p.Events)
	assert.True(t, p.CaughtUp)

	p, err = ix.Step(ctx)
	require.NoError(t, err)
	assert.True(t, p.Empty)
	assert.True(t, p.CaughtUp)
	assert.Len(t, f.source.ranges, 2)

	require.Len(t, f.bus.published, 4)
	require.Len(t, f.bus.streamed, 4)
	var first AppliedEvent
	require.NoError(t, json.Unmarshal(f.bus.published[0], &first))
	assert.Equal(t, "event_applied", first.Type)
	assert.Equal(t, domain.KindTransfer, first.Kind)
	assert.Equal(t, "1", first.TokenID)
	assert.Equal(t, uint64(101), first.Block)

	assert.Contains(t, f.cache.invalidated, domain.ArtworkID("1"))
}

func TestStepRetriesSameRangeWithoutDoubleCounting(t *testing.T) {
	ctx := context.Background()
	f := newFixture(200,
		mint(150, 1),
		&domain.BuyPriceSetEvent{EventMeta: meta(150), TokenID: big.NewInt(1), Price: big.NewInt(1000)},
		&domain.TokenSaleEvent{EventMeta: meta(151), TokenID: big.NewInt(1), Buyer: buyerC, SalePrice: big.NewInt(1000)},
	)
	flaky := &flakyApplier{inner: f.eng, failAt: 3}
	ix := f.indexer(IndexerConfig{StartBlock: 150, BatchSize: 10}, flaky)

	_, err := ix.Step(ctx)
	require.Error(t, err)
	_, err = f.store.Get(ctx, contract)
	assert.ErrorIs(t, err, domain.ErrNotFound)

	p, err := ix.Step(ctx)
	require.NoError(t, err)
	assert.Equal(t, uint64(150), p.From)
	assert.Equal(t, 2, p.Duplicates)

	acct, err := f.store.Account(ctx, domain.AccountIDFromAddress(artistA))
	require.NoError(t, err)
	assert.Equal(t, int64(900), acct.TotalPrimaryIncome.Int64())
}

func TestStepWaitsForConfirmations(t *testing.T) {
	f := newFixture(5, mint(3, 1))
	ix := f.indexer(IndexerConfig{Confirmations: 10}, f.eng)

	p, err := ix.Step(context.Background())
	require.NoError(t, err)
	assert.True(t, p.Empty)
	assert.Empty(t, f.source.ranges)
}

func TestStepHeadError(t *testing.T) {
	f := newFixture(0)
	f.source.headErr = errors.New("dial tcp: refused")
	_, err := f.indexer(IndexerConfig{}, f.eng).Step(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "refused")
}

func TestStepNotifiesDiagnostics(t *testing.T) {
	f := newFixture(10,
		&domain.TokenSaleEvent{EventMeta: meta(5), TokenID: big.NewInt(9), Buyer: buyerC, SalePrice: big.NewInt(1)},
	)
	_, err := f.indexer(IndexerConfig{}, f.eng).Step(context.Background())
	require.NoError(t, err)
	require.Len(t, f.notify.got, 1)
	assert.Equal(t, domain.CodeArtworkNotFound, f.notify.got[0].Code)

	var msg AppliedEvent
	require.Len(t, f.bus.published, 1)
	require.NoError(t, json.Unmarshal(f.bus.published[0], &msg))
	require.Len(t, msg.Diagnostics, 1)
	assert.Equal(t, domain.SeverityError, msg.Diagnostics[0].Severity)
}

func TestRunLockHeld(t *testing.T) {
	f := newFixture(10)
	ix := f.indexer(IndexerConfig{}, f.eng).WithLock(&fakeLock{held: true})
	err := ix.Run(context.Background())
	assert.ErrorIs(t, err, domain.ErrLockHeld)
	assert.Equal(t, "indexer:"+contract, ix.LockKey())
}

func TestRunStopsOnCancel(t *testing.T) {
	f := newFixture(10, mint(2, 1))
	lock := &fakeLock{}
	ix := f.indexer(IndexerConfig{PollInterval: 5 * time.Millisecond}, f.eng).WithLock(lock)

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	err := ix.Run(ctx)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
	assert.True(t, lock.unlocked)

	_, err = f.store.Artwork(context.Background(), "1")
	assert.NoError(t, err)
}

type fakeExporter struct {
	blocks []uint64
	err    error
}

func (e *fakeExporter) Export(_ context.Context, block uint64) (s3blob.Manifest, bool, error) {
	e.blocks = append(e.blocks, block)
	return s3blob.Manifest{Block: block}, e.err == nil, e.err
}

func TestSnapshotterUsesCursor(t *testing.T) {
	ctx := context.Background()
	store := memory.New(domain.DefaultMarketDefaults())
	exp := &fakeExporter{}
	s := NewSnapshotter(exp, store, contract, nil, discard())

	require.NoError(t, s.Run(ctx))
	assert.Empty(t, exp.blocks)

	require.NoError(t, store.Advance(ctx, contract, 321))
	require.NoError(t, s.Run(ctx))
	assert.Equal(t, []uint64{321}, exp.blocks)

	exp.err = errors.New("access denied")
	assert.Error(t, s.Run(ctx))
}

func TestCronNext(t *testing.T) {
	base := time.Date(2024, 3, 10, 10, 7, 30, 0, time.UTC)
	tests := []struct {
		expr string
		want time.Time
	}{
		{"*/15 * * * *", time.Date(2024, 3, 10, 10, 15, 0, 0, time.UTC)},
		{"0 3 * * *", time.Date(2024, 3, 11, 3, 0, 0, 0, time.UTC)},
		{"0 3 1 * *", time.Date(2024, 4, 1, 3, 0, 0, 0, time.UTC)},
		{"30 9-17/4 * * 1-5", time.Date(2024, 3, 11, 9, 30, 0, 0, time.UTC)},
		{"8,9 10 * * *", time.Date(2024, 3, 10, 10, 8, 0, 0, time.UTC)},
	}
	for _, tt := range tests {
		t.Run(tt.expr, func(t *testing.T) {
			sched, err := parseCron(tt.expr)
			require.NoError(t, err)
			got, err := sched.next(base)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestCronInvalid(t *testing.T) {
	for _, expr := range []string{"* * * *", "61 * * * *", "*/0 * * * *", "x * * * *", "5-1 * * * *"} {
		_, err := parseCron(expr)
		assert.Error(t, err, expr)
	}
	sched, err := parseCron("0 0 31 2 *")
	require.NoError(t, err)
	_, err = sched.next(time.Now())
	assert.Error(t, err)
}

func TestOrchestratorPropagatesIndexerFailure(t *testing.T) {
	f := newFixture(10)
	ix := f.indexer(IndexerConfig{}, f.eng).WithLock(&fakeLock{held: true})
	o := NewOrchestrator(ix, nil, Schedule{}, discard())
	err := o.Run(context.Background())
	assert.ErrorIs(t, err, domain.ErrLockHeld)
}

func TestOrchestratorCleanShutdown(t *testing.T) {
	f := newFixture(10)
	ix := f.indexer(IndexerConfig{PollInterval: time.Millisecond}, f.eng)
	snap := NewSnapshotter(&fakeExporter{}, f.store, contract, nil, discard())
	o := NewOrchestrator(ix, snap, Schedule{Interval: time.Millisecond}, discard())

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Millisecond)
	defer cancel()
	assert.NoError(t, o.Run(ctx))
}
