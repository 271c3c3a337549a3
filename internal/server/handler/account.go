package handler

import (
	"log/slog"
	"net/http"

	"github.com/ethereum/go-ethereum/common"

	"github.com/alanyoungcy/artindexer/internal/domain"
)

// AccountHandler serves accounts and their income accumulators.
type AccountHandler struct {
	reader domain.Reader
	logger *slog.Logger
}

// NewAccountHandler creates an AccountHandler.
func NewAccountHandler(reader domain.Reader, logger *slog.Logger) *AccountHandler {
	return &AccountHandler{reader: reader, logger: logger}
}

// ListAccounts returns accounts ordered by address.
// GET /api/accounts?limit=50&offset=0
func (h *AccountHandler) ListAccounts(w http.ResponseWriter, r *http.Request) {
	opts := parseListOpts(r)
	accts, err := h.reader.ListAccounts(r.Context(), opts)
	if err != nil {
		writeLookupError(w, r, h.logger, "accounts", err)
		return
	}
	writeJSON(w, http.StatusOK, newList(accts, opts))
}

// GetAccount returns one account. The address may be in any hex case.
// GET /api/accounts/{address}
func (h *AccountHandler) GetAccount(w http.ResponseWriter, r *http.Request) {
	addr := r.PathValue("address")
	if !common.IsHexAddress(addr) {
		writeError(w, http.StatusBadRequest, "invalid address")
		return
	}
	a, err := h.reader.Account(r.Context(), domain.AccountIDFromAddress(common.HexToAddress(addr)))
	if err != nil {
		writeLookupError(w, r, h.logger, "account", err)
		return
	}
	writeJSON(w, http.StatusOK, a)
}
