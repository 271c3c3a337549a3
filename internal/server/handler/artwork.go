package handler

import (
	"context"
	"errors"
	"log/slog"
	"net/http"

	"github.com/alanyoungcy/artindexer/internal/domain"
)

// ArtworkHandler serves artworks and their bid, sale and transfer history.
// Single artwork reads go through the cache when one is configured.
type ArtworkHandler struct {
	reader domain.Reader
	cache  domain.ArtworkCache
	logger *slog.Logger
}

// NewArtworkHandler creates an ArtworkHandler. cache may be nil.
func NewArtworkHandler(reader domain.Reader, cache domain.ArtworkCache, logger *slog.Logger) *ArtworkHandler {
	return &ArtworkHandler{reader: reader, cache: cache, logger: logger}
}

// ListArtworks returns artworks ordered by id.
// GET /api/artworks?limit=50&offset=0
func (h *ArtworkHandler) ListArtworks(w http.ResponseWriter, r *http.Request) {
	opts := parseListOpts(r)
	arts, err := h.reader.ListArtworks(r.Context(), opts)
	if err != nil {
		writeLookupError(w, r, h.logger, "artworks", err)
		return
	}
	writeJSON(w, http.StatusOK, newList(arts, opts))
}

// GetArtwork returns one artwork.
// GET /api/artworks/{id}
func (h *ArtworkHandler) GetArtwork(w http.ResponseWriter, r *http.Request) {
	id, ok := artworkID(w, r)
	if !ok {
		return
	}
	a, err := h.load(r.Context(), id)
	if err != nil {
		writeLookupError(w, r, h.logger, "artwork", err)
		return
	}
	writeJSON(w, http.StatusOK, a)
}

// ListBids returns the artwork's bids in proposal order.
// GET /api/artworks/{id}/bids
func (h *ArtworkHandler) ListBids(w http.ResponseWriter, r *http.Request) {
	h.history(w, r, "bids", func(ctx context.Context, a domain.Artwork, opts domain.ListOpts) (any, int, error) {
		items, err := resolve(ctx, window(a.Bids, opts), h.reader.Bid)
		return items, len(a.Bids), err
	})
}

// ListSales returns the artwork's sales in listing order.
// GET /api/artworks/{id}/sales
func (h *ArtworkHandler) ListSales(w http.ResponseWriter, r *http.Request) {
	h.history(w, r, "sales", func(ctx context.Context, a domain.Artwork, opts domain.ListOpts) (any, int, error) {
		items, err := resolve(ctx, window(a.Sales, opts), h.reader.Sale)
		return items, len(a.Sales), err
	})
}

// ListTransfers returns the artwork's transfers oldest first.
// GET /api/artworks/{id}/transfers
func (h *ArtworkHandler) ListTransfers(w http.ResponseWriter, r *http.Request) {
	h.history(w, r, "transfers", func(ctx context.Context, a domain.Artwork, opts domain.ListOpts) (any, int, error) {
		items, err := resolve(ctx, window(a.Transfers, opts), h.reader.Transfer)
		return items, len(a.Transfers), err
	})
}

func (h *ArtworkHandler) history(w http.ResponseWriter, r *http.Request, what string,
	fn func(context.Context, domain.Artwork, domain.ListOpts) (any, int, error)) {
	id, ok := artworkID(w, r)
	if !ok {
		return
	}
	a, err := h.load(r.Context(), id)
	if err != nil {
		writeLookupError(w, r, h.logger, "artwork", err)
		return
	}
	opts := parseListOpts(r)
	items, total, err := fn(r.Context(), a, opts)
	if err != nil {
		writeLookupError(w, r, h.logger, what, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"artwork": a.ID,
		"items":   items,
		"total":   total,
		"limit":   opts.Limit,
		"offset":  opts.Offset,
	})
}

func (h *ArtworkHandler) load(ctx context.Context, id domain.ArtworkID) (domain.Artwork, error) {
	if h.cache != nil {
		a, err := h.cache.Get(ctx, id)
		if err == nil {
			return a, nil
		}
		if !errors.Is(err, domain.ErrNotFound) {
			h.logger.WarnContext(ctx, "artwork cache read failed", slog.String("error", err.Error()))
		}
	}
	a, err := h.reader.Artwork(ctx, id)
	if err != nil {
		return domain.Artwork{}, err
	}
	if h.cache != nil {
		if err := h.cache.Set(ctx, a); err != nil {
			h.logger.WarnContext(ctx, "artwork cache write failed", slog.String("error", err.Error()))
		}
	}
	return a, nil
}

func artworkID(w http.ResponseWriter, r *http.Request) (domain.ArtworkID, bool) {
	id := domain.ArtworkID(r.PathValue("id"))
	if id.TokenID() == nil {
		writeError(w, http.StatusBadRequest, "artwork id must be a decimal token id")
		return "", false
	}
	return domain.ArtworkIDFromToken(id.TokenID()), true
}

// resolve loads each id, skipping ones the store does not have.
func resolve[ID ~string, T any](ctx context.Context, ids []ID, get func(context.Context, ID) (T, error)) ([]T, error) {
	out := make([]T, 0, len(ids))
	for _, id := range ids {
		v, err := get(ctx, id)
		if errors.Is(err, domain.ErrNotFound) {
			continue
		}
		if err != nil {
			return nil, err
		}
		out = append(out, v)
	}
	return out, nil
}
