package handler

import (
	"log/slog"
	"net/http"
	"strings"

	"github.com/ethereum/go-ethereum/common"

	"github.com/alanyoungcy/artindexer/internal/domain"
)

// EntityHandler serves bids, sales and transfers by their transaction hash.
type EntityHandler struct {
	reader domain.Reader
	logger *slog.Logger
}

// NewEntityHandler creates an EntityHandler.
func NewEntityHandler(reader domain.Reader, logger *slog.Logger) *EntityHandler {
	return &EntityHandler{reader: reader, logger: logger}
}

// GetBid returns one bid.
// GET /api/bids/{id}
func (h *EntityHandler) GetBid(w http.ResponseWriter, r *http.Request) {
	id, ok := txID(w, r)
	if !ok {
		return
	}
	b, err := h.reader.Bid(r.Context(), domain.BidID(id))
	if err != nil {
		writeLookupError(w, r, h.logger, "bid", err)
		return
	}
	writeJSON(w, http.StatusOK, b)
}

// GetSale returns one sale.
// GET /api/sales/{id}
func (h *EntityHandler) GetSale(w http.ResponseWriter, r *http.Request) {
	id, ok := txID(w, r)
	if !ok {
		return
	}
	s, err := h.reader.Sale(r.Context(), domain.SaleID(id))
	if err != nil {
		writeLookupError(w, r, h.logger, "sale", err)
		return
	}
	writeJSON(w, http.StatusOK, s)
}

// GetTransfer returns one transfer.
// GET /api/transfers/{id}
func (h *EntityHandler) GetTransfer(w http.ResponseWriter, r *http.Request) {
	id, ok := txID(w, r)
	if !ok {
		return
	}
	t, err := h.reader.Transfer(r.Context(), domain.TransferID(id))
	if err != nil {
		writeLookupError(w, r, h.logger, "transfer", err)
		return
	}
	writeJSON(w, http.StatusOK, t)
}

// txID validates a transaction hash path parameter and returns it in the
// form entity ids are stored under.
func txID(w http.ResponseWriter, r *http.Request) (string, bool) {
	raw := r.PathValue("id")
	if len(raw) != 66 || !strings.HasPrefix(raw, "0x") {
		writeError(w, http.StatusBadRequest, "id must be a 0x-prefixed transaction hash")
		return "", false
	}
	return common.HexToHash(raw).Hex(), true
}
