package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/alanyoungcy/artindexer/internal/domain"
)

type artworkRepo struct {
	q querier
}

const artworkColumns = `
	id, owner, artists, uri, is_master, master_artwork, status,
	current_bid, current_sale, first_transfer_price::text, last_transfer_price::text,
	bids, sales, transfers, time_created, time_last_transferred`

func (r artworkRepo) Get(ctx context.Context, id domain.ArtworkID) (domain.Artwork, error) {
	row := r.q.QueryRow(ctx, `SELECT `+artworkColumns+` FROM artworks WHERE id = $1`, string(id))
	a, err := scanArtwork(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return domain.Artwork{}, domain.ErrNotFound
		}
		return domain.Artwork{}, fmt.Errorf("postgres: get artwork %s: %w", id, err)
	}
	return a, nil
}

func (r artworkRepo) Put(ctx context.Context, a domain.Artwork) error {
	const query = `
		INSERT INTO artworks (
			id, token_id, owner, artists, uri, is_master, master_artwork, status,
			current_bid, current_sale, first_transfer_price, last_transfer_price,
			bids, sales, transfers, time_created, time_last_transferred, updated_at
		) VALUES (
			$1, $2::text::numeric, $3, $4, $5, $6, $7, $8,
			$9, $10, $11::text::numeric, $12::text::numeric,
			$13, $14, $15, $16, $17, NOW()
		)
		ON CONFLICT (id) DO UPDATE SET
			owner                 = EXCLUDED.owner,
			artists               = EXCLUDED.artists,
			uri                   = EXCLUDED.uri,
			is_master             = EXCLUDED.is_master,
			master_artwork        = EXCLUDED.master_artwork,
			status                = EXCLUDED.status,
			current_bid           = EXCLUDED.current_bid,
			current_sale          = EXCLUDED.current_sale,
			first_transfer_price  = EXCLUDED.first_transfer_price,
			last_transfer_price   = EXCLUDED.last_transfer_price,
			bids                  = EXCLUDED.bids,
			sales                 = EXCLUDED.sales,
			transfers             = EXCLUDED.transfers,
			time_created          = EXCLUDED.time_created,
			time_last_transferred = EXCLUDED.time_last_transferred,
			updated_at            = NOW()`

	_, err := r.q.Exec(ctx, query,
		string(a.ID), numeric(a.ID.TokenID()), string(a.Owner), toStrings(a.Artists), a.URI, a.IsMaster,
		nullString(a.MasterArtwork), string(a.Status),
		nullString(a.CurrentBid), nullString(a.CurrentSale),
		numeric(a.FirstTransferPrice), numeric(a.LastTransferPrice),
		toStrings(a.Bids), toStrings(a.Sales), toStrings(a.Transfers),
		a.TimeCreated, a.TimeLastTransferred,
	)
	if err != nil {
		return fmt.Errorf("postgres: put artwork %s: %w", a.ID, err)
	}
	return nil
}

func (r artworkRepo) list(ctx context.Context, opts domain.ListOpts) ([]domain.Artwork, error) {
	query, args := paginate(`SELECT `+artworkColumns+` FROM artworks ORDER BY token_id`, nil, 1, opts)
	rows, err := r.q.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("postgres: list artworks: %w", err)
	}
	defer rows.Close()

	var out []domain.Artwork
	for rows.Next() {
		a, err := scanArtwork(rows)
		if err != nil {
			return nil, fmt.Errorf("postgres: scan artwork: %w", err)
		}
		out = append(out, a)
	}
	return out, rows.Err()
}

func scanArtwork(row pgx.Row) (domain.Artwork, error) {
	var (
		a                       domain.Artwork
		id, owner, status       string
		artists, bids, sales    []string
		transfers               []string
		master, curBid, curSale *string
		firstPrice, lastPrice   *string
	)
	err := row.Scan(
		&id, &owner, &artists, &a.URI, &a.IsMaster, &master, &status,
		&curBid, &curSale, &firstPrice, &lastPrice,
		&bids, &sales, &transfers, &a.TimeCreated, &a.TimeLastTransferred,
	)
	if err != nil {
		return domain.Artwork{}, err
	}

	a.ID = domain.ArtworkID(id)
	a.Owner = domain.AccountID(owner)
	a.Status = domain.ArtworkStatus(status)
	a.Artists = fromStrings[domain.AccountID](artists)
	a.Bids = fromStrings[domain.BidID](bids)
	a.Sales = fromStrings[domain.SaleID](sales)
	a.Transfers = fromStrings[domain.TransferID](transfers)
	a.MasterArtwork = fromNullString[domain.ArtworkID](master)
	a.CurrentBid = fromNullString[domain.BidID](curBid)
	a.CurrentSale = fromNullString[domain.SaleID](curSale)
	if a.FirstTransferPrice, err = parseNullNumeric(firstPrice); err != nil {
		return domain.Artwork{}, err
	}
	if a.LastTransferPrice, err = parseNullNumeric(lastPrice); err != nil {
		return domain.Artwork{}, err
	}
	a.TimeCreated = a.TimeCreated.UTC()
	return a, nil
}
