package engine

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/alanyoungcy/artindexer/internal/domain"
)

// setBuyPrice re-prices the current listing, or opens one when there is none.
func setBuyPrice(ctx context.Context, s *step, ev *domain.BuyPriceSetEvent) error {
	id := domain.ArtworkIDFromToken(ev.TokenID)
	art, ok, err := loadArtwork(ctx, s, id)
	if err != nil || !ok {
		return err
	}

	if art.CurrentSale != nil {
		sale, err := s.tx.Sales().Get(ctx, *art.CurrentSale)
		if errors.Is(err, domain.ErrNotFound) {
			s.report(domain.CodeSaleNotFound, domain.SeverityError,
				"current sale %s not found for artwork %s", *art.CurrentSale, id).EntityID = string(*art.CurrentSale)
			return nil
		}
		if err != nil {
			return fmt.Errorf("get sale %s: %w", *art.CurrentSale, err)
		}
		sale.Price = ev.Price
		if err := s.tx.Sales().Put(ctx, sale); err != nil {
			return fmt.Errorf("put sale %s: %w", sale.ID, err)
		}
		s.logger.DebugContext(ctx, "sale re-priced",
			slog.String("artwork", string(id)),
			slog.String("price", ev.Price.String()),
		)
		return nil
	}

	sale := domain.Sale{
		ID:         domain.SaleID(ev.TxID()),
		Artwork:    id,
		Seller:     art.Owner,
		Price:      ev.Price,
		IsSold:     false,
		TimeRaised: ev.Timestamp,
	}
	if err := s.tx.Sales().Put(ctx, sale); err != nil {
		return fmt.Errorf("put sale %s: %w", sale.ID, err)
	}

	current := sale.ID
	art.Sales = append(art.Sales, sale.ID)
	art.CurrentSale = &current
	if err := s.putArtwork(ctx, art); err != nil {
		return err
	}

	s.logger.DebugContext(ctx, "sale opened",
		slog.String("artwork", string(id)),
		slog.String("price", ev.Price.String()),
	)
	return nil
}
