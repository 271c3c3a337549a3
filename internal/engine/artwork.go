package engine

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/alanyoungcy/artindexer/internal/domain"
)

// handleTransfer covers mints, burns and ordinary transfers.
func (e *Engine) handleTransfer(ctx context.Context, s *step, ev *domain.TransferEvent) error {
	if ev.From == domain.NullAddress {
		return e.mint(ctx, s, ev)
	}

	id := domain.ArtworkIDFromToken(ev.TokenID)
	art, ok, err := loadArtwork(ctx, s, id)
	if err != nil || !ok {
		return err
	}

	if ev.To == domain.NullAddress {
		// Burns leave the artwork untouched.
		s.report(domain.CodeBurnIgnored, domain.SeverityWarning,
			"artwork %s transferred to the null address at %s; no state change", id, ev.Timestamp.UTC().Format("2006-01-02T15:04:05Z"),
		).EntityID = string(id)
		return nil
	}

	from, err := account(ctx, s, ev.From)
	if err != nil {
		return err
	}
	to, err := account(ctx, s, ev.To)
	if err != nil {
		return err
	}

	tr := domain.Transfer{
		ID:        domain.TransferID(ev.TxID()),
		Artwork:   id,
		From:      from,
		To:        to,
		Timestamp: ev.Timestamp,
	}
	if err := s.tx.Transfers().Put(ctx, tr); err != nil {
		return fmt.Errorf("put transfer %s: %w", tr.ID, err)
	}

	ts := ev.Timestamp
	art.Transfers = append(art.Transfers, tr.ID)
	art.Status = domain.ArtworkSold
	art.Owner = to
	art.TimeLastTransferred = &ts
	if err := s.putArtwork(ctx, art); err != nil {
		return err
	}

	s.logger.DebugContext(ctx, "artwork transferred",
		slog.String("artwork", string(id)),
		slog.String("from", string(from)),
		slog.String("to", string(to)),
	)
	return nil
}

// mint creates the artwork for a transfer out of the null address.
func (e *Engine) mint(ctx context.Context, s *step, ev *domain.TransferEvent) error {
	id := domain.ArtworkIDFromToken(ev.TokenID)
	block := ev.BlockNumber

	switch _, err := s.tx.Artworks().Get(ctx, id); {
	case err == nil:
		s.report(domain.CodeArtworkReminted, domain.SeverityWarning,
			"artwork %s minted again; previous record replaced", id).EntityID = string(id)
	case !errors.Is(err, domain.ErrNotFound):
		return fmt.Errorf("get artwork %s: %w", id, err)
	}

	artists, err := e.resolveArtists(ctx, s, ev)
	if err != nil {
		return err
	}

	owner, err := account(ctx, s, ev.To)
	if err != nil {
		return err
	}

	uri, err := s.chain.TokenURI(ctx, block, ev.TokenID)
	if err != nil {
		return fmt.Errorf("token uri %s: %w", id, err)
	}

	// A master has no control token; a layer does.
	_, hasControl, err := s.chain.ControlTokenOf(ctx, block, ev.TokenID)
	if err != nil {
		return fmt.Errorf("control token %s: %w", id, err)
	}

	art := domain.Artwork{
		ID:          id,
		Owner:       owner,
		Artists:     artists,
		URI:         uri,
		IsMaster:    !hasControl,
		Status:      domain.ArtworkCreated,
		Bids:        []domain.BidID{},
		Sales:       []domain.SaleID{},
		Transfers:   []domain.TransferID{},
		TimeCreated: ev.Timestamp,
	}

	m, err := market(ctx, s)
	if err != nil {
		return err
	}
	if art.IsMaster {
		m.LastMasterArtwork = &id
		if err := s.tx.Market().Put(ctx, m); err != nil {
			return fmt.Errorf("put market: %w", err)
		}
	} else if m.LastMasterArtwork != nil {
		master := *m.LastMasterArtwork
		art.MasterArtwork = &master
	} else {
		s.report(domain.CodeMasterUnknown, domain.SeverityWarning,
			"layer %s minted before any master", id).EntityID = string(id)
	}

	if err := s.putArtwork(ctx, art); err != nil {
		return err
	}

	s.logger.DebugContext(ctx, "artwork created",
		slog.String("artwork", string(id)),
		slog.String("owner", string(owner)),
		slog.String("uri", uri),
		slog.Bool("master", art.IsMaster),
		slog.Int("artists", len(artists)),
	)
	return nil
}

// resolveArtists probes creator indexes 0, 1, 2, ... until a probe reverts or
// the configured bound is reached.
func (e *Engine) resolveArtists(ctx context.Context, s *step, ev *domain.TransferEvent) ([]domain.AccountID, error) {
	artists := make([]domain.AccountID, 0, 1)
	for i := 0; ; i++ {
		if i >= e.maxArtistProbe {
			s.report(domain.CodeArtistProbeLimit, domain.SeverityWarning,
				"stopped creator enumeration for token %s at index %d", ev.TokenID, i)
			break
		}
		creator, ok, err := s.chain.CreatorAt(ctx, ev.BlockNumber, ev.TokenID, i)
		if err != nil {
			return nil, fmt.Errorf("creator %d of token %s: %w", i, ev.TokenID, err)
		}
		if !ok {
			break
		}
		id, err := account(ctx, s, creator)
		if err != nil {
			return nil, err
		}
		artists = append(artists, id)
	}
	return artists, nil
}
