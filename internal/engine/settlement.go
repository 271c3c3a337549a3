package engine

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math/big"

	"github.com/alanyoungcy/artindexer/internal/domain"
)

// settle resolves a TokenSale into an accepted bid or a fulfilled listing and
// credits the artists.
//
// The event does not say which path produced it. It is a bid acceptance when
// the artwork's current bid has exactly the sale price and the buyer as
// bidder; otherwise it is the fulfilment of the current listing. When neither
// pointer resolves the event is reported and nothing is credited.
func settle(ctx context.Context, s *step, ev *domain.TokenSaleEvent) error {
	id := domain.ArtworkIDFromToken(ev.TokenID)
	art, ok, err := loadArtwork(ctx, s, id)
	if err != nil || !ok {
		return err
	}

	buyer := domain.AccountIDFromAddress(ev.Buyer)
	ts := ev.Timestamp

	bid, bidOK, err := currentBid(ctx, s, art)
	if err != nil {
		return err
	}

	switch {
	case bidOK && bid.Price.Cmp(ev.SalePrice) == 0 && bid.Bidder == buyer:
		seller := art.Owner
		bid.Status = domain.BidAccepted
		bid.AcceptedBy = &seller
		bid.TimeAccepted = &ts
		if err := s.tx.Bids().Put(ctx, bid); err != nil {
			return fmt.Errorf("put bid %s: %w", bid.ID, err)
		}
		s.logger.DebugContext(ctx, "bid accepted",
			slog.String("artwork", string(id)),
			slog.String("bid", string(bid.ID)),
			slog.String("accepted_by", string(seller)),
		)

	default:
		sale, saleOK, err := currentSale(ctx, s, art)
		if err != nil {
			return err
		}
		if !saleOK {
			d := s.report(domain.CodeConsistencyMismatch, domain.SeverityError,
				"%v: artwork %s current bid %s, current sale %s",
				domain.ErrConsistencyMismatch, id, ptrString(art.CurrentBid), ptrString(art.CurrentSale))
			d.EntityID = string(id)
			return nil
		}
		buyerID, err := account(ctx, s, ev.Buyer)
		if err != nil {
			return err
		}
		sale.IsSold = true
		sale.Buyer = &buyerID
		sale.TimeSold = &ts
		if err := s.tx.Sales().Put(ctx, sale); err != nil {
			return fmt.Errorf("put sale %s: %w", sale.ID, err)
		}
		s.logger.DebugContext(ctx, "sale fulfilled",
			slog.String("artwork", string(id)),
			slog.String("sale", string(sale.ID)),
			slog.String("buyer", string(buyerID)),
		)
	}

	if err := creditArtists(ctx, s, art, ev.SalePrice); err != nil {
		return err
	}

	art.CurrentBid = nil
	art.CurrentSale = nil
	if art.FirstTransferPrice == nil {
		art.FirstTransferPrice = new(big.Int).Set(ev.SalePrice)
	}
	art.LastTransferPrice = new(big.Int).Set(ev.SalePrice)
	if err := s.putArtwork(ctx, art); err != nil {
		return err
	}

	s.logger.DebugContext(ctx, "artwork sold",
		slog.String("artwork", string(id)),
		slog.String("buyer", string(buyer)),
		slog.String("price", ev.SalePrice.String()),
	)
	return nil
}

// creditArtists adds each artist's share to royalty income when the artwork
// has sold before and to primary income otherwise. A missing artist account
// is reported and skipped.
func creditArtists(ctx context.Context, s *step, art domain.Artwork, price *big.Int) error {
	if len(art.Artists) == 0 {
		return nil
	}
	m, err := market(ctx, s)
	if err != nil {
		return err
	}

	primary := art.FirstTransferPrice == nil
	fee := m.ArtistRoyaltyFee
	if primary {
		fee = PrimaryFee(m.PlatformPrimaryFee)
	}
	share := Share(price, fee, len(art.Artists))
	if share.Sign() < 0 {
		s.report(domain.CodeNegativeShare, domain.SeverityWarning,
			"artist share %s for artwork %s is negative (fee %s); not credited", share, art.ID, fee).EntityID = string(art.ID)
		return nil
	}

	for _, artistID := range art.Artists {
		acct, err := s.tx.Accounts().Get(ctx, artistID)
		if errors.Is(err, domain.ErrNotFound) {
			s.report(domain.CodeArtistNotFound, domain.SeverityError,
				"artist %s of artwork %s not found", artistID, art.ID).EntityID = string(artistID)
			continue
		}
		if err != nil {
			return fmt.Errorf("get artist %s: %w", artistID, err)
		}
		if primary {
			acct.TotalPrimaryIncome = new(big.Int).Add(acct.TotalPrimaryIncome, share)
		} else {
			acct.TotalRoyalty = new(big.Int).Add(acct.TotalRoyalty, share)
		}
		if err := s.tx.Accounts().Put(ctx, acct); err != nil {
			return fmt.Errorf("put artist %s: %w", artistID, err)
		}
	}
	return nil
}

func currentBid(ctx context.Context, s *step, art domain.Artwork) (domain.Bid, bool, error) {
	if art.CurrentBid == nil {
		return domain.Bid{}, false, nil
	}
	bid, err := s.tx.Bids().Get(ctx, *art.CurrentBid)
	if errors.Is(err, domain.ErrNotFound) {
		return domain.Bid{}, false, nil
	}
	if err != nil {
		return domain.Bid{}, false, fmt.Errorf("get bid %s: %w", *art.CurrentBid, err)
	}
	return bid, true, nil
}

func currentSale(ctx context.Context, s *step, art domain.Artwork) (domain.Sale, bool, error) {
	if art.CurrentSale == nil {
		return domain.Sale{}, false, nil
	}
	sale, err := s.tx.Sales().Get(ctx, *art.CurrentSale)
	if errors.Is(err, domain.ErrNotFound) {
		return domain.Sale{}, false, nil
	}
	if err != nil {
		return domain.Sale{}, false, fmt.Errorf("get sale %s: %w", *art.CurrentSale, err)
	}
	return sale, true, nil
}

func ptrString[T ~string](p *T) string {
	if p == nil {
		return "<nil>"
	}
	return string(*p)
}
