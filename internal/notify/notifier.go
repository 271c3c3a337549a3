// Package notify alerts operators about diagnostics through chat webhooks.
// Only diagnostics whose severity is in the configured set are sent.
package notify

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/alanyoungcy/artindexer/internal/domain"
)

// Sender is one notification channel.
type Sender interface {
	Send(ctx context.Context, title, message string) error
	Name() string
}

// Notifier fans diagnostics out to every Sender.
type Notifier struct {
	senders    []Sender
	severities map[domain.Severity]bool
	logger     *slog.Logger
}

// NewNotifier creates a Notifier. An empty severities list means errors only.
func NewNotifier(senders []Sender, severities []string, logger *slog.Logger) *Notifier {
	allowed := make(map[domain.Severity]bool, len(severities))
	for _, s := range severities {
		allowed[domain.Severity(strings.ToLower(strings.TrimSpace(s)))] = true
	}
	if len(allowed) == 0 {
		allowed[domain.SeverityError] = true
	}
	return &Notifier{
		senders:    senders,
		severities: allowed,
		logger:     logger.With(slog.String("component", "notifier")),
	}
}

// Enabled reports whether any sender is configured.
func (n *Notifier) Enabled() bool {
	return n != nil && len(n.senders) > 0
}

// Diagnostics sends one message per diagnostic whose severity passes the
// filter. A failing sender does not stop delivery to the others.
func (n *Notifier) Diagnostics(ctx context.Context, diags []domain.Diagnostic) error {
	if !n.Enabled() {
		return nil
	}
	var errs []string
	for _, d := range diags {
		if !n.severities[d.Severity] {
			continue
		}
		if err := n.dispatch(ctx, Title(d), Message(d)); err != nil {
			errs = append(errs, err.Error())
		}
	}
	if len(errs) > 0 {
		return fmt.Errorf("notify: %s", strings.Join(errs, "; "))
	}
	return nil
}

// NotifyAll sends a free-form message to every sender.
func (n *Notifier) NotifyAll(ctx context.Context, title, message string) error {
	if !n.Enabled() {
		return nil
	}
	return n.dispatch(ctx, title, message)
}

func (n *Notifier) dispatch(ctx context.Context, title, message string) error {
	var errs []string
	for _, s := range n.senders {
		if err := s.Send(ctx, title, message); err != nil {
			n.logger.ErrorContext(ctx, "sender failed",
				slog.String("sender", s.Name()),
				slog.String("error", err.Error()),
			)
			errs = append(errs, fmt.Sprintf("%s: %v", s.Name(), err))
			continue
		}
		n.logger.DebugContext(ctx, "notification sent",
			slog.String("sender", s.Name()),
			slog.String("title", title),
		)
	}
	if len(errs) > 0 {
		return fmt.Errorf("%d sender(s) failed: %s", len(errs), strings.Join(errs, "; "))
	}
	return nil
}

// Title renders the headline of a diagnostic alert.
func Title(d domain.Diagnostic) string {
	return fmt.Sprintf("[%s] %s", strings.ToUpper(string(d.Severity)), d.Code)
}

// Message renders the body of a diagnostic alert.
func Message(d domain.Diagnostic) string {
	var b strings.Builder
	fmt.Fprintf(&b, "%s\n", d.Message)
	fmt.Fprintf(&b, "event: %s (%s)\n", d.EventID, d.Kind)
	if d.TokenID != "" {
		fmt.Fprintf(&b, "token: %s\n", d.TokenID)
	}
	fmt.Fprintf(&b, "block: %d", d.BlockNumber)
	return b.String()
}
