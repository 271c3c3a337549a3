package engine

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/ethereum/go-ethereum/common"

	"github.com/alanyoungcy/artindexer/internal/domain"
)

// account resolves a wallet address to its Account id, creating the account
// on first sight.
func account(ctx context.Context, s *step, addr common.Address) (domain.AccountID, error) {
	id := domain.AccountIDFromAddress(addr)
	if _, err := s.tx.Accounts().GetOrCreate(ctx, id); err != nil {
		return "", fmt.Errorf("get or create account %s: %w", id, err)
	}
	return id, nil
}

// market loads the singleton, creating it with defaults on first access.
func market(ctx context.Context, s *step) (domain.Market, error) {
	m, err := s.tx.Market().GetOrCreate(ctx)
	if err != nil {
		return domain.Market{}, fmt.Errorf("get or create market: %w", err)
	}
	return m, nil
}

// applyFeeUpdate overwrites all three fees. Bounds are the contract's
// responsibility and are not checked here.
func applyFeeUpdate(ctx context.Context, s *step, ev *domain.FeeUpdatedEvent) error {
	m, err := market(ctx, s)
	if err != nil {
		return err
	}
	m.PlatformPrimaryFee = ev.PlatformPrimaryFee
	m.PlatformSecondaryFee = ev.PlatformSecondaryFee
	m.ArtistRoyaltyFee = ev.ArtistRoyaltyFee
	if err := s.tx.Market().Put(ctx, m); err != nil {
		return fmt.Errorf("put market: %w", err)
	}
	s.logger.DebugContext(ctx, "fees updated",
		slog.String("primary", m.PlatformPrimaryFee.String()),
		slog.String("secondary", m.PlatformSecondaryFee.String()),
		slog.String("royalty", m.ArtistRoyaltyFee.String()),
	)
	return nil
}

// loadArtwork fetches the artwork a token event refers to. A missing artwork
// is reported and ok is false.
func loadArtwork(ctx context.Context, s *step, id domain.ArtworkID) (domain.Artwork, bool, error) {
	a, err := s.tx.Artworks().Get(ctx, id)
	if errors.Is(err, domain.ErrNotFound) {
		s.report(domain.CodeArtworkNotFound, domain.SeverityError, "artwork %s not found", id).EntityID = string(id)
		return domain.Artwork{}, false, nil
	}
	if err != nil {
		return domain.Artwork{}, false, fmt.Errorf("get artwork %s: %w", id, err)
	}
	return a, true, nil
}
