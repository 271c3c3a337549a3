package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"time"

	s3blob "github.com/alanyoungcy/artindexer/internal/blob/s3"
	"github.com/alanyoungcy/artindexer/internal/domain"
	"github.com/alanyoungcy/artindexer/internal/metrics"
)

// Exporter writes a snapshot of the committed graph at a block.
type Exporter interface {
	Export(ctx context.Context, block uint64) (s3blob.Manifest, bool, error)
}

// Snapshotter periodically exports the graph at the current cursor.
type Snapshotter struct {
	exporter Exporter
	cursors  domain.CursorStore
	contract string
	metrics  *metrics.Metrics
	logger   *slog.Logger
}

// NewSnapshotter creates a Snapshotter for the contract's cursor.
func NewSnapshotter(exporter Exporter, cursors domain.CursorStore, contract string, m *metrics.Metrics, logger *slog.Logger) *Snapshotter {
	return &Snapshotter{
		exporter: exporter,
		cursors:  cursors,
		contract: contract,
		metrics:  m,
		logger:   logger.With(slog.String("component", "snapshotter")),
	}
}

// Run exports one snapshot at the cursor block. Nothing is exported before
// the first range has been indexed.
func (s *Snapshotter) Run(ctx context.Context) error {
	c, err := s.cursors.Get(ctx, s.contract)
	if errors.Is(err, domain.ErrNotFound) {
		s.logger.Info("no cursor yet, snapshot skipped")
		return nil
	}
	if err != nil {
		return fmt.Errorf("snapshot: read cursor: %w", err)
	}

	m, wrote, err := s.exporter.Export(ctx, c.Block)
	s.metrics.Snapshot(err == nil)
	if err != nil {
		return fmt.Errorf("snapshot at %d: %w", c.Block, err)
	}
	if !wrote {
		s.logger.Debug("snapshot already exists", slog.Uint64("block", c.Block))
		return nil
	}
	s.logger.Info("snapshot exported",
		slog.Uint64("block", m.Block),
		slog.Int("accounts", m.Accounts),
		slog.Int("artworks", m.Artworks),
	)
	return nil
}

// RunLoop exports every interval until ctx is cancelled.
func (s *Snapshotter) RunLoop(ctx context.Context, interval time.Duration) error {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			s.logger.Info("snapshot loop stopped")
			return ctx.Err()
		case <-ticker.C:
			if err := s.Run(ctx); err != nil {
				s.logger.Error("snapshot failed", slog.String("error", err.Error()))
			}
		}
	}
}

// RunCron exports on a 5-field cron schedule ("minute hour dom month dow")
// evaluated in UTC.
func (s *Snapshotter) RunCron(ctx context.Context, cronExpr string) error {
	sched, err := parseCron(cronExpr)
	if err != nil {
		return fmt.Errorf("snapshot cron %q: %w", cronExpr, err)
	}

	for {
		next, err := sched.next(time.Now().UTC())
		if err != nil {
			return fmt.Errorf("snapshot cron %q: %w", cronExpr, err)
		}
		s.logger.Debug("next snapshot", slog.Time("at", next))

		timer := time.NewTimer(time.Until(next))
		select {
		case <-ctx.Done():
			timer.Stop()
			s.logger.Info("snapshot cron stopped")
			return ctx.Err()
		case <-timer.C:
			if err := s.Run(ctx); err != nil {
				s.logger.Error("snapshot failed", slog.String("error", err.Error()))
			}
		}
	}
}

type cronField struct {
	any    bool
	values map[int]bool
}

func (f cronField) matches(v int) bool {
	return f.any || f.values[v]
}

// parseCronField accepts "*", "*/n", "a-b", "a-b/n" and comma lists of those.
func parseCronField(field string, lo, hi int) (cronField, error) {
	if field == "*" {
		return cronField{any: true}, nil
	}
	f := cronField{values: make(map[int]bool)}
	for _, part := range strings.Split(field, ",") {
		part = strings.TrimSpace(part)
		step := 1
		if base, st, ok := strings.Cut(part, "/"); ok {
			n, err := strconv.Atoi(st)
			if err != nil || n <= 0 {
				return cronField{}, fmt.Errorf("invalid step in %q", part)
			}
			step, part = n, base
		}
		from, to := lo, hi
		switch {
		case part == "*":
		case strings.Contains(part, "-"):
			a, b, _ := strings.Cut(part, "-")
			var err error
			if from, err = strconv.Atoi(a); err != nil {
				return cronField{}, fmt.Errorf("invalid range %q: %w", part, err)
			}
			if to, err = strconv.Atoi(b); err != nil {
				return cronField{}, fmt.Errorf("invalid range %q: %w", part, err)
			}
		default:
			v, err := strconv.Atoi(part)
			if err != nil {
				return cronField{}, fmt.Errorf("invalid value %q: %w", part, err)
			}
			from, to = v, v
		}
		if from < lo || to > hi || from > to {
			return cronField{}, fmt.Errorf("%q out of range %d-%d", part, lo, hi)
		}
		for v := from; v <= to; v += step {
			f.values[v] = true
		}
	}
	return f, nil
}

type cronSchedule struct {
	minute, hour, dom, month, dow cronField
}

func parseCron(expr string) (cronSchedule, error) {
	fields := strings.Fields(expr)
	if len(fields) != 5 {
		return cronSchedule{}, fmt.Errorf("want 5 fields, got %d", len(fields))
	}
	bounds := [5][2]int{{0, 59}, {0, 23}, {1, 31}, {1, 12}, {0, 6}}
	names := [5]string{"minute", "hour", "day-of-month", "month", "day-of-week"}
	var parsed [5]cronField
	for i, f := range fields {
		cf, err := parseCronField(f, bounds[i][0], bounds[i][1])
		if err != nil {
			return cronSchedule{}, fmt.Errorf("%s: %w", names[i], err)
		}
		parsed[i] = cf
	}
	return cronSchedule{minute: parsed[0], hour: parsed[1], dom: parsed[2], month: parsed[3], dow: parsed[4]}, nil
}

func (c cronSchedule) matches(t time.Time) bool {
	return c.minute.matches(t.Minute()) &&
		c.hour.matches(t.Hour()) &&
		c.dom.matches(t.Day()) &&
		c.month.matches(int(t.Month())) &&
		c.dow.matches(int(t.Weekday()))
}

// next returns the first matching minute strictly after t, searching at most
// a year ahead.
func (c cronSchedule) next(t time.Time) (time.Time, error) {
	candidate := t.Truncate(time.Minute).Add(time.Minute)
	limit := t.Add(366 * 24 * time.Hour)
	for candidate.Before(limit) {
		if c.matches(candidate) {
			return candidate, nil
		}
		candidate = candidate.Add(time.Minute)
	}
	return time.Time{}, errors.New("no matching time within a year")
}
