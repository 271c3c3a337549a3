package handler

import (
	"log/slog"
	"net/http"

	"github.com/alanyoungcy/artindexer/internal/domain"
)

// MarketHandler serves the market singleton.
type MarketHandler struct {
	reader domain.Reader
	logger *slog.Logger
}

// NewMarketHandler creates a MarketHandler.
func NewMarketHandler(reader domain.Reader, logger *slog.Logger) *MarketHandler {
	return &MarketHandler{reader: reader, logger: logger}
}

// GetMarket returns the fee configuration and the last master artwork.
// GET /api/market
func (h *MarketHandler) GetMarket(w http.ResponseWriter, r *http.Request) {
	m, err := h.reader.Market(r.Context())
	if err != nil {
		writeLookupError(w, r, h.logger, "market", err)
		return
	}
	writeJSON(w, http.StatusOK, m)
}
