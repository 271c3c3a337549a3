package handler

import (
	"context"
	"log/slog"
	"net/http"

	s3blob "github.com/alanyoungcy/artindexer/internal/blob/s3"
)

// SnapshotLister lists completed snapshots.
type SnapshotLister interface {
	List(ctx context.Context) ([]s3blob.Manifest, error)
}

// SnapshotHandler serves the snapshot catalogue.
type SnapshotHandler struct {
	snapshots SnapshotLister
	logger    *slog.Logger
}

// NewSnapshotHandler creates a SnapshotHandler.
func NewSnapshotHandler(snapshots SnapshotLister, logger *slog.Logger) *SnapshotHandler {
	return &SnapshotHandler{snapshots: snapshots, logger: logger}
}

// ListSnapshots returns snapshot manifests, oldest block first.
// GET /api/snapshots
func (h *SnapshotHandler) ListSnapshots(w http.ResponseWriter, r *http.Request) {
	ms, err := h.snapshots.List(r.Context())
	if err != nil {
		h.logger.ErrorContext(r.Context(), "handler: list snapshots failed", slog.String("error", err.Error()))
		writeError(w, http.StatusBadGateway, "failed to list snapshots")
		return
	}
	if ms == nil {
		ms = []s3blob.Manifest{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"snapshots": ms})
}
