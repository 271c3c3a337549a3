package domain

import (
	"time"

	"github.com/google/uuid"
)

// Severity separates expected-but-notable conditions from integrity problems.
type Severity string

const (
	SeverityInfo    Severity = "info"
	SeverityWarning Severity = "warning"
	SeverityError   Severity = "error"
)

// DiagnosticCode identifies the condition a handler reported.
type DiagnosticCode string

const (
	CodeArtworkNotFound     DiagnosticCode = "artwork_not_found"
	CodeBidNotFound         DiagnosticCode = "bid_not_found"
	CodeSaleNotFound        DiagnosticCode = "sale_not_found"
	CodeArtistNotFound      DiagnosticCode = "artist_not_found"
	CodeConsistencyMismatch DiagnosticCode = "consistency_mismatch"
	CodeBurnIgnored         DiagnosticCode = "burn_ignored"
	CodeArtworkReminted     DiagnosticCode = "artwork_reminted"
	CodeArtistProbeLimit    DiagnosticCode = "artist_probe_limit"
	CodeMasterUnknown       DiagnosticCode = "master_unknown"
	CodeNegativeShare       DiagnosticCode = "negative_share"
	CodeDuplicateEvent      DiagnosticCode = "duplicate_event"
)

// Diagnostic is a structured record of a non-fatal condition met while
// applying one event.
type Diagnostic struct {
	ID          string         `json:"id"`
	EventID     string         `json:"event_id"`
	Kind        EventKind      `json:"kind"`
	Code        DiagnosticCode `json:"code"`
	Severity    Severity       `json:"severity"`
	TokenID     string         `json:"token_id,omitempty"`
	EntityID    string         `json:"entity_id,omitempty"`
	Message     string         `json:"message"`
	BlockNumber uint64         `json:"block_number"`
	TxHash      string         `json:"tx_hash"`
	CreatedAt   time.Time      `json:"created_at"`
}

// NewDiagnostic fills in the identity fields from the event.
func NewDiagnostic(ev Event, code DiagnosticCode, sev Severity, msg string) Diagnostic {
	meta := ev.Meta()
	d := Diagnostic{
		ID:          uuid.NewString(),
		EventID:     meta.ID(),
		Kind:        ev.Kind(),
		Code:        code,
		Severity:    sev,
		Message:     msg,
		BlockNumber: meta.BlockNumber,
		TxHash:      meta.TxID(),
		CreatedAt:   time.Now().UTC(),
	}
	if tok := TokenOf(ev); tok != nil {
		d.TokenID = tok.String()
	}
	return d
}

// DiagnosticFilter narrows a diagnostics listing.
type DiagnosticFilter struct {
	Severity Severity
	Code     DiagnosticCode
	TokenID  string
	ListOpts
}
