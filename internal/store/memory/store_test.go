package memory

import (
	"context"
	"errors"
	"math/big"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/alanyoungcy/artindexer/internal/domain"
)

func TestAtomicCommitsOnSuccess(t *testing.T) {
	s := New(domain.DefaultMarketDefaults())
	ctx := context.Background()

	err := s.Atomic(ctx, func(ctx context.Context, tx domain.Tx) error {
		a, err := tx.Accounts().GetOrCreate(ctx, "0xabc")
		require.NoError(t, err)
		a.TotalRoyalty = big.NewInt(7)
		return tx.Accounts().Put(ctx, a)
	})
	require.NoError(t, err)

	a, err := s.Account(ctx, "0xabc")
	require.NoError(t, err)
	assert.Equal(t, "7", a.TotalRoyalty.String())
	assert.Equal(t, "0", a.TotalPrimaryIncome.String())
}

func TestAtomicDiscardsOnError(t *testing.T) {
	s := New(domain.DefaultMarketDefaults())
	ctx := context.Background()
	boom := errors.New("boom")

	err := s.Atomic(ctx, func(ctx context.Context, tx domain.Tx) error {
		require.NoError(t, tx.Artworks().Put(ctx, domain.Artwork{ID: "1"}))
		_, err := tx.Events().MarkProcessed(ctx, "0x1-0", 1)
		require.NoError(t, err)
		return boom
	})
	require.ErrorIs(t, err, boom)

	_, err = s.Artwork(ctx, "1")
	assert.ErrorIs(t, err, domain.ErrNotFound)

	// The event id was not kept either.
	require.NoError(t, s.Atomic(ctx, func(ctx context.Context, tx domain.Tx) error {
		fresh, err := tx.Events().MarkProcessed(ctx, "0x1-0", 1)
		require.NoError(t, err)
		assert.True(t, fresh)
		return nil
	}))
}

func TestAtomicReadsOwnWrites(t *testing.T) {
	s := New(domain.DefaultMarketDefaults())
	ctx := context.Background()

	require.NoError(t, s.Atomic(ctx, func(ctx context.Context, tx domain.Tx) error {
		require.NoError(t, tx.Bids().Put(ctx, domain.Bid{ID: "0xb", Price: big.NewInt(5)}))
		b, err := tx.Bids().Get(ctx, "0xb")
		require.NoError(t, err)
		assert.Equal(t, "5", b.Price.String())

		// Mutating the returned copy does not change the stored bid.
		b.Price.SetInt64(99)
		again, err := tx.Bids().Get(ctx, "0xb")
		require.NoError(t, err)
		assert.Equal(t, "5", again.Price.String())
		return nil
	}))
}

func TestGetOrCreateIsIdempotent(t *testing.T) {
	s := New(domain.DefaultMarketDefaults())
	ctx := context.Background()

	require.NoError(t, s.Atomic(ctx, func(ctx context.Context, tx domain.Tx) error {
		a, err := tx.Accounts().GetOrCreate(ctx, "0xabc")
		require.NoError(t, err)
		a.TotalPrimaryIncome = big.NewInt(10)
		require.NoError(t, tx.Accounts().Put(ctx, a))

		again, err := tx.Accounts().GetOrCreate(ctx, "0xabc")
		require.NoError(t, err)
		assert.Equal(t, "10", again.TotalPrimaryIncome.String())
		return nil
	}))

	accounts, err := s.ListAccounts(ctx, domain.ListOpts{})
	require.NoError(t, err)
	assert.Len(t, accounts, 1)
}

func TestMarketStartsFromDefaults(t *testing.T) {
	s := New(domain.MarketDefaults{PlatformPrimaryFee: 20, PlatformSecondaryFee: 2, ArtistRoyaltyFee: 5})
	ctx := context.Background()

	m, err := s.Market(ctx)
	require.NoError(t, err)
	assert.Equal(t, "20", m.PlatformPrimaryFee.String())

	require.NoError(t, s.Atomic(ctx, func(ctx context.Context, tx domain.Tx) error {
		m, err := tx.Market().GetOrCreate(ctx)
		require.NoError(t, err)
		assert.Equal(t, domain.MarketID, m.ID)
		assert.Equal(t, "5", m.ArtistRoyaltyFee.String())
		m.ArtistRoyaltyFee = big.NewInt(8)
		return tx.Market().Put(ctx, m)
	}))

	m, err = s.Market(ctx)
	require.NoError(t, err)
	assert.Equal(t, "8", m.ArtistRoyaltyFee.String())
}

func TestMarkProcessed(t *testing.T) {
	s := New(domain.DefaultMarketDefaults())
	ctx := context.Background()

	mark := func() bool {
		var fresh bool
		require.NoError(t, s.Atomic(ctx, func(ctx context.Context, tx domain.Tx) error {
			var err error
			fresh, err = tx.Events().MarkProcessed(ctx, "0xaa-3", 10)
			return err
		}))
		return fresh
	}
	assert.True(t, mark())
	assert.False(t, mark())
}

func TestCursor(t *testing.T) {
	s := New(domain.DefaultMarketDefaults())
	ctx := context.Background()

	_, err := s.Get(ctx, "0xc")
	assert.ErrorIs(t, err, domain.ErrNotFound)

	require.NoError(t, s.Advance(ctx, "0xc", 42))
	c, err := s.Get(ctx, "0xc")
	require.NoError(t, err)
	assert.Equal(t, uint64(42), c.Block)
	assert.False(t, c.UpdatedAt.IsZero())
}

func TestListDiagnosticsFilters(t *testing.T) {
	s := New(domain.DefaultMarketDefaults())
	ctx := context.Background()

	diags := []domain.Diagnostic{
		{ID: "1", Code: domain.CodeArtworkNotFound, Severity: domain.SeverityError, TokenID: "1"},
		{ID: "2", Code: domain.CodeBurnIgnored, Severity: domain.SeverityWarning, TokenID: "2"},
		{ID: "3", Code: domain.CodeArtworkNotFound, Severity: domain.SeverityError, TokenID: "2"},
	}
	require.NoError(t, s.Atomic(ctx, func(ctx context.Context, tx domain.Tx) error {
		for _, d := range diags {
			if err := tx.Diagnostics().Record(ctx, d); err != nil {
				return err
			}
		}
		return nil
	}))

	all, err := s.ListDiagnostics(ctx, domain.DiagnosticFilter{})
	require.NoError(t, err)
	require.Len(t, all, 3)
	assert.Equal(t, "3", all[0].ID)

	errs, err := s.ListDiagnostics(ctx, domain.DiagnosticFilter{Severity: domain.SeverityError})
	require.NoError(t, err)
	assert.Len(t, errs, 2)

	tok, err := s.ListDiagnostics(ctx, domain.DiagnosticFilter{TokenID: "2", Code: domain.CodeBurnIgnored})
	require.NoError(t, err)
	require.Len(t, tok, 1)
	assert.Equal(t, "2", tok[0].ID)

	paged, err := s.ListDiagnostics(ctx, domain.DiagnosticFilter{ListOpts: domain.ListOpts{Limit: 1, Offset: 1}})
	require.NoError(t, err)
	require.Len(t, paged, 1)
	assert.Equal(t, "2", paged[0].ID)
}

func TestListArtworksPaged(t *testing.T) {
	s := New(domain.DefaultMarketDefaults())
	ctx := context.Background()
	require.NoError(t, s.Atomic(ctx, func(ctx context.Context, tx domain.Tx) error {
		for _, id := range []domain.ArtworkID{"3", "1", "2"} {
			if err := tx.Artworks().Put(ctx, domain.Artwork{ID: id}); err != nil {
				return err
			}
		}
		return nil
	}))

	page, err := s.ListArtworks(ctx, domain.ListOpts{Limit: 2})
	require.NoError(t, err)
	require.Len(t, page, 2)
	assert.Equal(t, domain.ArtworkID("1"), page[0].ID)
	assert.Equal(t, domain.ArtworkID("2"), page[1].ID)
}
