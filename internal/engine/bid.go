package engine

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/alanyoungcy/artindexer/internal/domain"
)

// proposeBid opens a new bid and points the artwork's current bid at it.
// A previous bid is left in whatever state it had.
func proposeBid(ctx context.Context, s *step, ev *domain.BidProposedEvent) error {
	id := domain.ArtworkIDFromToken(ev.TokenID)
	art, ok, err := loadArtwork(ctx, s, id)
	if err != nil || !ok {
		return err
	}

	bidder, err := account(ctx, s, ev.Bidder)
	if err != nil {
		return err
	}

	bid := domain.Bid{
		ID:         domain.BidID(ev.TxID()),
		Artwork:    id,
		Bidder:     bidder,
		Price:      ev.BidAmount,
		Status:     domain.BidOpen,
		TimeRaised: ev.Timestamp,
	}
	if err := s.tx.Bids().Put(ctx, bid); err != nil {
		return fmt.Errorf("put bid %s: %w", bid.ID, err)
	}

	current := bid.ID
	art.Bids = append(art.Bids, bid.ID)
	art.CurrentBid = &current
	if err := s.putArtwork(ctx, art); err != nil {
		return err
	}

	s.logger.DebugContext(ctx, "bid proposed",
		slog.String("artwork", string(id)),
		slog.String("bid", string(bid.ID)),
		slog.String("bidder", string(bidder)),
	)
	return nil
}

// withdrawBid cancels the current bid. The artwork keeps pointing at it.
func withdrawBid(ctx context.Context, s *step, ev *domain.BidWithdrawnEvent) error {
	id := domain.ArtworkIDFromToken(ev.TokenID)
	art, ok, err := loadArtwork(ctx, s, id)
	if err != nil || !ok {
		return err
	}

	if art.CurrentBid == nil {
		s.report(domain.CodeBidNotFound, domain.SeverityError,
			"withdrawn bid not found for artwork %s: no current bid", id)
		return nil
	}
	bid, err := s.tx.Bids().Get(ctx, *art.CurrentBid)
	if errors.Is(err, domain.ErrNotFound) {
		s.report(domain.CodeBidNotFound, domain.SeverityError,
			"withdrawn bid %s not found for artwork %s", *art.CurrentBid, id).EntityID = string(*art.CurrentBid)
		return nil
	}
	if err != nil {
		return fmt.Errorf("get bid %s: %w", *art.CurrentBid, err)
	}

	ts := ev.Timestamp
	bid.Status = domain.BidCancelled
	bid.TimeCancelled = &ts
	if err := s.tx.Bids().Put(ctx, bid); err != nil {
		return fmt.Errorf("put bid %s: %w", bid.ID, err)
	}

	s.logger.DebugContext(ctx, "bid withdrawn",
		slog.String("artwork", string(id)),
		slog.String("bid", string(bid.ID)),
	)
	return nil
}
