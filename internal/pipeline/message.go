package pipeline

import (
	"encoding/json"

	"github.com/alanyoungcy/artindexer/internal/domain"
	"github.com/alanyoungcy/artindexer/internal/engine"
)

// Bus names for applied events.
const (
	ChannelEvents = "ch:events"
	StreamEvents  = "stream:events"
)

// AppliedEvent is published after an event's unit of work committed.
type AppliedEvent struct {
	Type        string             `json:"type"`
	EventID     string             `json:"event_id"`
	Kind        domain.EventKind   `json:"kind"`
	TokenID     string             `json:"token_id,omitempty"`
	Block       uint64             `json:"block"`
	TxHash      string             `json:"tx_hash"`
	Duplicate   bool               `json:"duplicate,omitempty"`
	Artworks    []domain.ArtworkID `json:"artworks,omitempty"`
	Diagnostics []AppliedDiag      `json:"diagnostics,omitempty"`
}

// AppliedDiag is the short form of a diagnostic carried on the bus.
type AppliedDiag struct {
	Code     domain.DiagnosticCode `json:"code"`
	Severity domain.Severity       `json:"severity"`
}

// NewAppliedEvent builds the bus message for a committed event.
func NewAppliedEvent(ev domain.Event, res engine.Result) AppliedEvent {
	meta := ev.Meta()
	msg := AppliedEvent{
		Type:      "event_applied",
		EventID:   res.EventID,
		Kind:      res.Kind,
		Block:     meta.BlockNumber,
		TxHash:    meta.TxID(),
		Duplicate: res.Duplicate,
		Artworks:  res.Artworks,
	}
	if tok := domain.TokenOf(ev); tok != nil {
		msg.TokenID = tok.String()
	}
	for _, d := range res.Diagnostics {
		msg.Diagnostics = append(msg.Diagnostics, AppliedDiag{Code: d.Code, Severity: d.Severity})
	}
	return msg
}

// Marshal encodes the message as JSON.
func (m AppliedEvent) Marshal() ([]byte, error) {
	return json.Marshal(m)
}
