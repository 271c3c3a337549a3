package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/alanyoungcy/artindexer/internal/domain"
)

type saleRepo struct {
	q querier
}

func (r saleRepo) Get(ctx context.Context, id domain.SaleID) (domain.Sale, error) {
	const query = `
		SELECT id, artwork, seller, price::text, is_sold, buyer, time_raised, time_sold
		FROM sales WHERE id = $1`

	var (
		s                      domain.Sale
		saleID, artwork, price string
		seller                 string
		buyer                  *string
	)
	err := r.q.QueryRow(ctx, query, string(id)).Scan(
		&saleID, &artwork, &seller, &price, &s.IsSold, &buyer, &s.TimeRaised, &s.TimeSold,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return domain.Sale{}, domain.ErrNotFound
		}
		return domain.Sale{}, fmt.Errorf("postgres: get sale %s: %w", id, err)
	}
	s.ID = domain.SaleID(saleID)
	s.Artwork = domain.ArtworkID(artwork)
	s.Seller = domain.AccountID(seller)
	s.Buyer = fromNullString[domain.AccountID](buyer)
	if s.Price, err = parseNumeric(price); err != nil {
		return domain.Sale{}, err
	}
	return s, nil
}

func (r saleRepo) Put(ctx context.Context, s domain.Sale) error {
	const query = `
		INSERT INTO sales (id, artwork, seller, price, is_sold, buyer, time_raised, time_sold)
		VALUES ($1, $2, $3, $4::text::numeric, $5, $6, $7, $8)
		ON CONFLICT (id) DO UPDATE SET
			artwork     = EXCLUDED.artwork,
			seller      = EXCLUDED.seller,
			price       = EXCLUDED.price,
			is_sold     = EXCLUDED.is_sold,
			buyer       = EXCLUDED.buyer,
			time_raised = EXCLUDED.time_raised,
			time_sold   = EXCLUDED.time_sold`
	_, err := r.q.Exec(ctx, query,
		string(s.ID), string(s.Artwork), string(s.Seller), numeric(s.Price), s.IsSold,
		nullString(s.Buyer), s.TimeRaised, s.TimeSold,
	)
	if err != nil {
		return fmt.Errorf("postgres: put sale %s: %w", s.ID, err)
	}
	return nil
}

type transferRepo struct {
	q querier
}

func (r transferRepo) Get(ctx context.Context, id domain.TransferID) (domain.Transfer, error) {
	const query = `SELECT id, artwork, from_account, to_account, timestamp FROM transfers WHERE id = $1`

	var (
		t                       domain.Transfer
		trID, artwork, from, to string
	)
	err := r.q.QueryRow(ctx, query, string(id)).Scan(&trID, &artwork, &from, &to, &t.Timestamp)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return domain.Transfer{}, domain.ErrNotFound
		}
		return domain.Transfer{}, fmt.Errorf("postgres: get transfer %s: %w", id, err)
	}
	t.ID = domain.TransferID(trID)
	t.Artwork = domain.ArtworkID(artwork)
	t.From = domain.AccountID(from)
	t.To = domain.AccountID(to)
	return t, nil
}

func (r transferRepo) Put(ctx context.Context, t domain.Transfer) error {
	const query = `
		INSERT INTO transfers (id, artwork, from_account, to_account, timestamp)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (id) DO UPDATE SET
			artwork      = EXCLUDED.artwork,
			from_account = EXCLUDED.from_account,
			to_account   = EXCLUDED.to_account,
			timestamp    = EXCLUDED.timestamp`
	_, err := r.q.Exec(ctx, query, string(t.ID), string(t.Artwork), string(t.From), string(t.To), t.Timestamp)
	if err != nil {
		return fmt.Errorf("postgres: put transfer %s: %w", t.ID, err)
	}
	return nil
}
