package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/alanyoungcy/artindexer/internal/domain"
)

type bidRepo struct {
	q querier
}

func (r bidRepo) Get(ctx context.Context, id domain.BidID) (domain.Bid, error) {
	const query = `
		SELECT id, artwork, bidder, price::text, status, accepted_by,
		       time_raised, time_cancelled, time_accepted
		FROM bids WHERE id = $1`

	var (
		b                      domain.Bid
		bidID, artwork, bidder string
		price, status          string
		acceptedBy             *string
	)
	err := r.q.QueryRow(ctx, query, string(id)).Scan(
		&bidID, &artwork, &bidder, &price, &status, &acceptedBy,
		&b.TimeRaised, &b.TimeCancelled, &b.TimeAccepted,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return domain.Bid{}, domain.ErrNotFound
		}
		return domain.Bid{}, fmt.Errorf("postgres: get bid %s: %w", id, err)
	}
	b.ID = domain.BidID(bidID)
	b.Artwork = domain.ArtworkID(artwork)
	b.Bidder = domain.AccountID(bidder)
	b.Status = domain.BidStatus(status)
	b.AcceptedBy = fromNullString[domain.AccountID](acceptedBy)
	if b.Price, err = parseNumeric(price); err != nil {
		return domain.Bid{}, err
	}
	return b, nil
}

func (r bidRepo) Put(ctx context.Context, b domain.Bid) error {
	const query = `
		INSERT INTO bids (
			id, artwork, bidder, price, status, accepted_by,
			time_raised, time_cancelled, time_accepted
		) VALUES ($1, $2, $3, $4::text::numeric, $5, $6, $7, $8, $9)
		ON CONFLICT (id) DO UPDATE SET
			artwork        = EXCLUDED.artwork,
			bidder         = EXCLUDED.bidder,
			price          = EXCLUDED.price,
			status         = EXCLUDED.status,
			accepted_by    = EXCLUDED.accepted_by,
			time_raised    = EXCLUDED.time_raised,
			time_cancelled = EXCLUDED.time_cancelled,
			time_accepted  = EXCLUDED.time_accepted`
	_, err := r.q.Exec(ctx, query,
		string(b.ID), string(b.Artwork), string(b.Bidder), numeric(b.Price), string(b.Status),
		nullString(b.AcceptedBy), b.TimeRaised, b.TimeCancelled, b.TimeAccepted,
	)
	if err != nil {
		return fmt.Errorf("postgres: put bid %s: %w", b.ID, err)
	}
	return nil
}
