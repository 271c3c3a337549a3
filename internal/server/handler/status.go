package handler

import (
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/alanyoungcy/artindexer/internal/domain"
)

// StatusHandler reports the indexing position.
type StatusHandler struct {
	cursors   domain.CursorStore
	contract  string
	mode      string
	startedAt time.Time
	logger    *slog.Logger
}

// NewStatusHandler creates a StatusHandler for the contract's cursor.
func NewStatusHandler(cursors domain.CursorStore, contract, mode string, logger *slog.Logger) *StatusHandler {
	return &StatusHandler{
		cursors:   cursors,
		contract:  contract,
		mode:      mode,
		startedAt: time.Now().UTC(),
		logger:    logger,
	}
}

// GetStatus responds with the mode and the last fully indexed block.
// GET /api/status
func (h *StatusHandler) GetStatus(w http.ResponseWriter, r *http.Request) {
	resp := map[string]any{
		"mode":           h.mode,
		"contract":       h.contract,
		"uptime_seconds": int64(time.Since(h.startedAt).Seconds()),
		"cursor_block":   nil,
	}

	c, err := h.cursors.Get(r.Context(), h.contract)
	switch {
	case errors.Is(err, domain.ErrNotFound):
	case err != nil:
		h.logger.ErrorContext(r.Context(), "handler: read cursor failed", slog.String("error", err.Error()))
		writeError(w, http.StatusInternalServerError, "failed to read cursor")
		return
	default:
		resp["cursor_block"] = c.Block
		resp["cursor_updated_at"] = c.UpdatedAt
	}
	writeJSON(w, http.StatusOK, resp)
}
