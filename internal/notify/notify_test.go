package notify

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/alanyoungcy/artindexer/internal/domain"
)

type recordingSender struct {
	name   string
	err    error
	titles []string
}

func (r *recordingSender) Send(_ context.Context, title, _ string) error {
	r.titles = append(r.titles, title)
	return r.err
}

func (r *recordingSender) Name() string { return r.name }

func discard() *slog.Logger { return slog.New(slog.NewTextHandler(io.Discard, nil)) }

func diag(sev domain.Severity, code domain.DiagnosticCode) domain.Diagnostic {
	return domain.Diagnostic{
		EventID:     "0xabc-1",
		Kind:        domain.KindTokenSale,
		Code:        code,
		Severity:    sev,
		TokenID:     "7",
		Message:     "settlement matched nothing",
		BlockNumber: 42,
	}
}

func TestNotifierDefaultsToErrors(t *testing.T) {
	s := &recordingSender{name: "rec"}
	n := NewNotifier([]Sender{s}, nil, discard())

	err := n.Diagnostics(context.Background(), []domain.Diagnostic{
		diag(domain.SeverityWarning, domain.CodeBurnIgnored),
		diag(domain.SeverityError, domain.CodeConsistencyMismatch),
		diag(domain.SeverityInfo, domain.CodeDuplicateEvent),
	})
	require.NoError(t, err)
	assert.Equal(t, []string{"[ERROR] consistency_mismatch"}, s.titles)
}

func TestNotifierSeverityFilter(t *testing.T) {
	s := &recordingSender{name: "rec"}
	n := NewNotifier([]Sender{s}, []string{" Warning ", "error"}, discard())

	require.NoError(t, n.Diagnostics(context.Background(), []domain.Diagnostic{
		diag(domain.SeverityWarning, domain.CodeBurnIgnored),
		diag(domain.SeverityInfo, domain.CodeDuplicateEvent),
	}))
	assert.Equal(t, []string{"[WARNING] burn_ignored"}, s.titles)
}

func TestNotifierSenderFailureContinues(t *testing.T) {
	bad := &recordingSender{name: "bad", err: errors.New("down")}
	good := &recordingSender{name: "good"}
	n := NewNotifier([]Sender{bad, good}, nil, discard())

	err := n.Diagnostics(context.Background(), []domain.Diagnostic{diag(domain.SeverityError, domain.CodeArtistNotFound)})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "bad: down")
	assert.Len(t, good.titles, 1)
}

func TestNotifierDisabled(t *testing.T) {
	var n *Notifier
	assert.False(t, n.Enabled())
	assert.NoError(t, n.Diagnostics(context.Background(), []domain.Diagnostic{diag(domain.SeverityError, domain.CodeArtistNotFound)}))
	assert.NoError(t, NewNotifier(nil, nil, discard()).NotifyAll(context.Background(), "t", "m"))
}

func TestMessage(t *testing.T) {
	msg := Message(diag(domain.SeverityError, domain.CodeConsistencyMismatch))
	assert.Contains(t, msg, "settlement matched nothing")
	assert.Contains(t, msg, "event: 0xabc-1 (TokenSale)")
	assert.Contains(t, msg, "token: 7")
	assert.True(t, strings.HasSuffix(msg, "block: 42"))
}

func TestTelegramSender(t *testing.T) {
	var got map[string]string
	var path string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		path = r.URL.Path
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	s := NewTelegramSender("TOKEN", "99").WithAPIBase(srv.URL + "/")
	require.NoError(t, s.Send(context.Background(), "[ERROR] a_b", "x < y"))
	assert.Equal(t, "/botTOKEN/sendMessage", path)
	assert.Equal(t, "99", got["chat_id"])
	assert.Equal(t, "HTML", got["parse_mode"])
	assert.Equal(t, "<b>[ERROR] a_b</b>\nx &lt; y", got["text"])
	assert.Equal(t, "telegram", s.Name())
}

func TestTelegramSenderStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		http.Error(w, "chat not found", http.StatusBadRequest)
	}))
	defer srv.Close()

	err := NewTelegramSender("T", "1").WithAPIBase(srv.URL).Send(context.Background(), "t", "m")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unexpected status 400")
}

func TestDiscordSender(t *testing.T) {
	var got discordPayload
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		w.WriteHeader(http.StatusNoContent)
	}))
	defer srv.Close()

	s := NewDiscordSender(srv.URL)
	s.now = func() time.Time { return time.Date(2021, 3, 1, 12, 0, 0, 0, time.UTC) }
	require.NoError(t, s.Send(context.Background(), "[ERROR] consistency_mismatch", strings.Repeat("x", 5000)))

	require.Len(t, got.Embeds, 1)
	e := got.Embeds[0]
	assert.Equal(t, "artindexer", got.Username)
	assert.Equal(t, "[ERROR] consistency_mismatch", e.Title)
	assert.Equal(t, 0xE74C3C, e.Color)
	assert.Len(t, e.Description, discordMaxDescription)
	assert.True(t, strings.HasSuffix(e.Description, "..."))
	assert.Equal(t, "2021-03-01T12:00:00Z", e.Timestamp)
	assert.Equal(t, "discord", s.Name())
}

func TestDiscordSenderReportsStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "bad webhook", http.StatusNotFound)
	}))
	defer srv.Close()

	err := NewDiscordSender(srv.URL).Send(context.Background(), "plain title", "msg")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "404")
}
