package handler

import (
	"log/slog"
	"net/http"

	"github.com/alanyoungcy/artindexer/internal/domain"
)

// DiagnosticHandler lists diagnostics recorded while applying events.
type DiagnosticHandler struct {
	reader domain.Reader
	logger *slog.Logger
}

// NewDiagnosticHandler creates a DiagnosticHandler.
func NewDiagnosticHandler(reader domain.Reader, logger *slog.Logger) *DiagnosticHandler {
	return &DiagnosticHandler{reader: reader, logger: logger}
}

// ListDiagnostics returns diagnostics newest first.
// GET /api/diagnostics?severity=error&code=artwork_not_found&token_id=1&limit=50&offset=0
func (h *DiagnosticHandler) ListDiagnostics(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	f := domain.DiagnosticFilter{
		Severity: domain.Severity(q.Get("severity")),
		Code:     domain.DiagnosticCode(q.Get("code")),
		TokenID:  q.Get("token_id"),
		ListOpts: parseListOpts(r),
	}
	switch f.Severity {
	case "", domain.SeverityInfo, domain.SeverityWarning, domain.SeverityError:
	default:
		writeError(w, http.StatusBadRequest, "severity must be info, warning or error")
		return
	}

	diags, err := h.reader.ListDiagnostics(r.Context(), f)
	if err != nil {
		writeLookupError(w, r, h.logger, "diagnostics", err)
		return
	}
	writeJSON(w, http.StatusOK, newList(diags, f.ListOpts))
}
