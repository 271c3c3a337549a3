package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/alanyoungcy/artindexer/internal/domain"
)

type marketRepo struct {
	q        querier
	defaults domain.MarketDefaults
}

func (r marketRepo) get(ctx context.Context) (domain.Market, error) {
	const query = `
		SELECT id, platform_primary_fee::text, platform_secondary_fee::text,
		       artist_royalty_fee::text, last_master_artwork
		FROM markets WHERE id = $1`

	var (
		m                           domain.Market
		primary, secondary, royalty string
		lastMaster                  *string
	)
	err := r.q.QueryRow(ctx, query, domain.MarketID).Scan(&m.ID, &primary, &secondary, &royalty, &lastMaster)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return domain.Market{}, domain.ErrNotFound
		}
		return domain.Market{}, fmt.Errorf("postgres: get market: %w", err)
	}
	if m.PlatformPrimaryFee, err = parseNumeric(primary); err != nil {
		return domain.Market{}, err
	}
	if m.PlatformSecondaryFee, err = parseNumeric(secondary); err != nil {
		return domain.Market{}, err
	}
	if m.ArtistRoyaltyFee, err = parseNumeric(royalty); err != nil {
		return domain.Market{}, err
	}
	m.LastMasterArtwork = fromNullString[domain.ArtworkID](lastMaster)
	return m, nil
}

// GetOrCreate seeds the singleton row from the configured defaults on first
// access.
func (r marketRepo) GetOrCreate(ctx context.Context) (domain.Market, error) {
	d := domain.NewMarket(r.defaults)
	const insert = `
		INSERT INTO markets (id, platform_primary_fee, platform_secondary_fee, artist_royalty_fee)
		VALUES ($1, $2::text::numeric, $3::text::numeric, $4::text::numeric)
		ON CONFLICT (id) DO NOTHING`
	_, err := r.q.Exec(ctx, insert, domain.MarketID,
		numeric(d.PlatformPrimaryFee), numeric(d.PlatformSecondaryFee), numeric(d.ArtistRoyaltyFee))
	if err != nil {
		return domain.Market{}, fmt.Errorf("postgres: create market: %w", err)
	}
	return r.get(ctx)
}

func (r marketRepo) Put(ctx context.Context, m domain.Market) error {
	const query = `
		INSERT INTO markets (
			id, platform_primary_fee, platform_secondary_fee, artist_royalty_fee,
			last_master_artwork, updated_at
		) VALUES ($1, $2::text::numeric, $3::text::numeric, $4::text::numeric, $5, NOW())
		ON CONFLICT (id) DO UPDATE SET
			platform_primary_fee   = EXCLUDED.platform_primary_fee,
			platform_secondary_fee = EXCLUDED.platform_secondary_fee,
			artist_royalty_fee     = EXCLUDED.artist_royalty_fee,
			last_master_artwork    = EXCLUDED.last_master_artwork,
			updated_at             = NOW()`
	_, err := r.q.Exec(ctx, query, domain.MarketID,
		numeric(m.PlatformPrimaryFee), numeric(m.PlatformSecondaryFee), numeric(m.ArtistRoyaltyFee),
		nullString(m.LastMasterArtwork),
	)
	if err != nil {
		return fmt.Errorf("postgres: put market: %w", err)
	}
	return nil
}
