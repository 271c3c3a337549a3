package postgres

import (
	"context"
	"math/big"
	"os"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/alanyoungcy/artindexer/internal/domain"
)

func TestDSN(t *testing.T) {
	assert.Equal(t, "postgres://u:p@db:5432/art?sslmode=disable",
		DSN(ClientConfig{User: "u", Password: "p", Host: "db", Database: "art"}))
	assert.Equal(t, "postgres://u:p@db:6543/art?sslmode=require",
		DSN(ClientConfig{User: "u", Password: "p", Host: "db", Port: 6543, Database: "art", SSLMode: "require"}))
	assert.Equal(t, "postgres://explicit", DSN(ClientConfig{DSN: "postgres://explicit", Host: "ignored"}))
}

func TestMigrationNamesSorted(t *testing.T) {
	names, err := migrationNames()
	require.NoError(t, err)
	require.NotEmpty(t, names)
	assert.Equal(t, "001_init.sql", names[0])
	assert.IsIncreasing(t, names)
}

func TestNumericHelpers(t *testing.T) {
	assert.Nil(t, numeric(nil))
	huge, _ := new(big.Int).SetString("115792089237316195423570985008687907853269984665640564039457584007913129639935", 10)
	assert.Equal(t, huge.String(), numeric(huge))

	n, err := parseNumeric("12345")
	require.NoError(t, err)
	assert.Equal(t, int64(12345), n.Int64())

	_, err = parseNumeric("12.5")
	assert.Error(t, err)

	none, err := parseNullNumeric(nil)
	require.NoError(t, err)
	assert.Nil(t, none)

	id := domain.BidID("0xabc")
	assert.Equal(t, "0xabc", nullString(&id))
	assert.Nil(t, nullString[domain.BidID](nil))
	assert.Equal(t, &id, fromNullString[domain.BidID](ptr("0xabc")))

	ids := []domain.AccountID{"0x1", "0x2"}
	assert.Equal(t, ids, fromStrings[domain.AccountID](toStrings(ids)))
}

func TestPaginate(t *testing.T) {
	q, args := paginate("SELECT 1", []any{"x"}, 2, domain.ListOpts{Limit: 10, Offset: 20})
	assert.Equal(t, "SELECT 1 LIMIT $2 OFFSET $3", q)
	assert.Equal(t, []any{"x", 10, 20}, args)

	q, args = paginate("SELECT 1", nil, 1, domain.ListOpts{})
	assert.Equal(t, "SELECT 1", q)
	assert.Empty(t, args)
}

func ptr(s string) *string { return &s }

// openTestStore connects to the database named by ARTINDEX_TEST_POSTGRES_DSN
// and skips the test when it is unset.
func openTestStore(t *testing.T) *Store {
	t.Helper()
	dsn := os.Getenv("ARTINDEX_TEST_POSTGRES_DSN")
	if dsn == "" {
		t.Skip("ARTINDEX_TEST_POSTGRES_DSN not set")
	}
	ctx := context.Background()
	client, err := New(ctx, ClientConfig{DSN: dsn})
	require.NoError(t, err)
	t.Cleanup(client.Close)
	require.NoError(t, client.RunMigrations(ctx))
	_, err = client.Pool().Exec(ctx, `TRUNCATE markets, accounts, artworks, bids, sales, transfers, diagnostics, processed_events, cursors`)
	require.NoError(t, err)
	return NewStore(client.Pool(), domain.DefaultMarketDefaults())
}

func TestStoreRoundTrip(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()
	now := time.Now().UTC().Truncate(time.Microsecond)
	bidID := domain.BidID("0xb1")

	err := s.Atomic(ctx, func(ctx context.Context, tx domain.Tx) error {
		fresh, err := tx.Events().MarkProcessed(ctx, "0x1-0", 10)
		require.NoError(t, err)
		require.True(t, fresh)

		m, err := tx.Market().GetOrCreate(ctx)
		require.NoError(t, err)
		assert.Equal(t, "10", m.PlatformPrimaryFee.String())

		acct, err := tx.Accounts().GetOrCreate(ctx, "0xa1")
		require.NoError(t, err)
		acct.TotalPrimaryIncome = big.NewInt(450)
		require.NoError(t, tx.Accounts().Put(ctx, acct))

		require.NoError(t, tx.Bids().Put(ctx, domain.Bid{
			ID: bidID, Artwork: "1", Bidder: "0xa1", Price: big.NewInt(500),
			Status: domain.BidOpen, TimeRaised: now,
		}))
		require.NoError(t, tx.Diagnostics().Record(ctx, domain.Diagnostic{
			ID: uuid.NewString(), EventID: "0x1-0", Kind: domain.KindTransfer,
			Code: domain.CodeBurnIgnored, Severity: domain.SeverityWarning, TokenID: "1",
			Message: "burn", BlockNumber: 10, TxHash: "0x1", CreatedAt: now,
		}))
		return tx.Artworks().Put(ctx, domain.Artwork{
			ID: "1", Owner: "0xa1", Artists: []domain.AccountID{"0xa1"}, URI: "ipfs://1",
			IsMaster: true, Status: domain.ArtworkCreated, CurrentBid: &bidID,
			Bids: []domain.BidID{bidID}, Sales: []domain.SaleID{}, Transfers: []domain.TransferID{},
			TimeCreated: now,
		})
	})
	require.NoError(t, err)

	art, err := s.Artwork(ctx, "1")
	require.NoError(t, err)
	assert.Equal(t, []domain.AccountID{"0xa1"}, art.Artists)
	require.NotNil(t, art.CurrentBid)
	assert.Equal(t, bidID, *art.CurrentBid)
	assert.Nil(t, art.FirstTransferPrice)

	acct, err := s.Account(ctx, "0xa1")
	require.NoError(t, err)
	assert.Equal(t, "450", acct.TotalPrimaryIncome.String())

	diags, err := s.ListDiagnostics(ctx, domain.DiagnosticFilter{TokenID: "1"})
	require.NoError(t, err)
	assert.Len(t, diags, 1)

	// A second unit of work sees the event as already processed.
	require.NoError(t, s.Atomic(ctx, func(ctx context.Context, tx domain.Tx) error {
		fresh, err := tx.Events().MarkProcessed(ctx, "0x1-0", 10)
		require.NoError(t, err)
		assert.False(t, fresh)
		return nil
	}))
}

func TestStoreRollback(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	err := s.Atomic(ctx, func(ctx context.Context, tx domain.Tx) error {
		_, err := tx.Accounts().GetOrCreate(ctx, "0xdead")
		require.NoError(t, err)
		return domain.ErrConsistencyMismatch
	})
	require.ErrorIs(t, err, domain.ErrConsistencyMismatch)

	_, err = s.Account(ctx, "0xdead")
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestCursorStore(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	_, err := s.Get(ctx, "0xc")
	assert.ErrorIs(t, err, domain.ErrNotFound)
	require.NoError(t, s.Advance(ctx, "0xc", 100))
	require.NoError(t, s.Advance(ctx, "0xc", 150))
	c, err := s.Get(ctx, "0xc")
	require.NoError(t, err)
	assert.Equal(t, uint64(150), c.Block)
}
