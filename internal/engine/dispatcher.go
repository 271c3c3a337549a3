package engine

import (
	"context"
	"fmt"

	"github.com/alanyoungcy/artindexer/internal/domain"
)

func (e *Engine) dispatch(ctx context.Context, s *step) error {
	switch ev := s.ev.(type) {
	case *domain.FeeUpdatedEvent:
		return applyFeeUpdate(ctx, s, ev)
	case *domain.TransferEvent:
		return e.handleTransfer(ctx, s, ev)
	case *domain.BidProposedEvent:
		return proposeBid(ctx, s, ev)
	case *domain.BidWithdrawnEvent:
		return withdrawBid(ctx, s, ev)
	case *domain.BuyPriceSetEvent:
		return setBuyPrice(ctx, s, ev)
	case *domain.TokenSaleEvent:
		return settle(ctx, s, ev)
	default:
		return fmt.Errorf("%w: %T", domain.ErrUnknownEvent, s.ev)
	}
}
