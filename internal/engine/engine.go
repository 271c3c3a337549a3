// Package engine turns the ordered stream of artwork contract events into
// mutations of the entity graph. Each event is applied inside one unit of
// work: every read, chain query and write for the event either commits
// together or not at all.
package engine

import (
	"context"
	"fmt"
	"log/slog"
	"sort"

	"github.com/alanyoungcy/artindexer/internal/domain"
)

// DefaultMaxArtistProbe bounds creator enumeration when no limit is given.
const DefaultMaxArtistProbe = 64

// Options tunes an Engine.
type Options struct {
	// MaxArtistProbe is the highest creator index probed at mint time.
	// Enumeration normally stops at the first reverted probe.
	MaxArtistProbe int
}

// Result describes what applying one event did.
type Result struct {
	EventID     string
	Kind        domain.EventKind
	Block       uint64
	Duplicate   bool
	Diagnostics []domain.Diagnostic
	// Artworks lists every artwork the event wrote, in id order.
	Artworks []domain.ArtworkID
}

// Engine applies events. It is not safe for concurrent use: events must be
// applied one at a time in delivery order.
type Engine struct {
	store          domain.Store
	chain          domain.ChainState
	maxArtistProbe int
	logger         *slog.Logger
}

// New creates an Engine over the given store and chain accessor.
func New(store domain.Store, chain domain.ChainState, opts Options, logger *slog.Logger) *Engine {
	probe := opts.MaxArtistProbe
	if probe <= 0 {
		probe = DefaultMaxArtistProbe
	}
	return &Engine{
		store:          store,
		chain:          chain,
		maxArtistProbe: probe,
		logger:         logger.With(slog.String("component", "engine")),
	}
}

// Apply applies a single event. Domain conditions such as a missing artwork
// are returned as diagnostics in the Result and committed with the event.
// A non-nil error means nothing was committed and the event should be
// retried.
func (e *Engine) Apply(ctx context.Context, ev domain.Event) (Result, error) {
	meta := ev.Meta()
	var res Result

	err := e.store.Atomic(ctx, func(ctx context.Context, tx domain.Tx) error {
		// Atomic may rerun fn on serialization failures.
		res = Result{EventID: meta.ID(), Kind: ev.Kind(), Block: meta.BlockNumber}

		fresh, err := tx.Events().MarkProcessed(ctx, meta.ID(), meta.BlockNumber)
		if err != nil {
			return fmt.Errorf("mark processed: %w", err)
		}

		s := &step{
			tx:      tx,
			ev:      ev,
			chain:   e.chain,
			logger:  e.logger,
			touched: make(map[domain.ArtworkID]struct{}),
		}

		if !fresh {
			res.Duplicate = true
			s.report(domain.CodeDuplicateEvent, domain.SeverityInfo, "event %s already applied, skipped", meta.ID())
		} else if err := e.dispatch(ctx, s); err != nil {
			return err
		}

		for _, d := range s.diags {
			if err := tx.Diagnostics().Record(ctx, d); err != nil {
				return fmt.Errorf("record diagnostic %s: %w", d.Code, err)
			}
		}

		res.Diagnostics = s.diags
		res.Artworks = s.touchedIDs()
		return nil
	})
	if err != nil {
		return Result{}, fmt.Errorf("engine: apply %s %s: %w", ev.Kind(), meta.ID(), err)
	}

	for _, d := range res.Diagnostics {
		level := slog.LevelWarn
		switch d.Severity {
		case domain.SeverityError:
			level = slog.LevelError
		case domain.SeverityInfo:
			level = slog.LevelInfo
		}
		e.logger.Log(ctx, level, "diagnostic",
			slog.String("event_id", d.EventID),
			slog.String("kind", string(d.Kind)),
			slog.String("code", string(d.Code)),
			slog.String("token_id", d.TokenID),
			slog.String("message", d.Message),
		)
	}
	return res, nil
}

// step carries the state of one event application.
type step struct {
	tx      domain.Tx
	ev      domain.Event
	chain   domain.ChainState
	logger  *slog.Logger
	diags   []domain.Diagnostic
	touched map[domain.ArtworkID]struct{}
}

func (s *step) report(code domain.DiagnosticCode, sev domain.Severity, format string, args ...any) *domain.Diagnostic {
	s.diags = append(s.diags, domain.NewDiagnostic(s.ev, code, sev, fmt.Sprintf(format, args...)))
	return &s.diags[len(s.diags)-1]
}

func (s *step) putArtwork(ctx context.Context, a domain.Artwork) error {
	if err := s.tx.Artworks().Put(ctx, a); err != nil {
		return fmt.Errorf("put artwork %s: %w", a.ID, err)
	}
	s.touched[a.ID] = struct{}{}
	return nil
}

func (s *step) touchedIDs() []domain.ArtworkID {
	ids := make([]domain.ArtworkID, 0, len(s.touched))
	for id := range s.touched {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids
}
