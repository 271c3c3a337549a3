package ws

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/alanyoungcy/artindexer/internal/domain"
	"github.com/alanyoungcy/artindexer/internal/metrics"
)

type chanBus struct {
	ch     chan []byte
	stream []domain.StreamMessage
}

func (b *chanBus) Publish(_ context.Context, _ string, payload []byte) error {
	b.ch <- payload
	return nil
}

func (b *chanBus) Subscribe(context.Context, string) (<-chan []byte, error) {
	return b.ch, nil
}

func (b *chanBus) StreamAppend(context.Context, string, []byte) error { return nil }

func (b *chanBus) StreamRead(_ context.Context, _ string, lastID string, _ int) ([]domain.StreamMessage, error) {
	var out []domain.StreamMessage
	for _, m := range b.stream {
		if m.ID > lastID {
			out = append(out, m)
		}
	}
	return out, nil
}

func startHub(t *testing.T, bus *chanBus) (*Hub, string) {
	t.Helper()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	hub := NewHub(bus, Config{Channel: "ch:events", Stream: "stream:events", Mode: "serve"}, metrics.New(), logger)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		hub.Run(ctx)
		close(done)
	}()
	srv := httptest.NewServer(http.HandlerFunc(hub.HandleWS))
	t.Cleanup(func() {
		srv.Close()
		cancel()
		<-done
	})
	return hub, "ws" + strings.TrimPrefix(srv.URL, "http")
}

func readJSON(t *testing.T, conn *websocket.Conn) map[string]any {
	t.Helper()
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	_, data, err := conn.ReadMessage()
	require.NoError(t, err)
	var v map[string]any
	require.NoError(t, json.Unmarshal(data, &v))
	return v
}

func TestHubRelaysBusMessages(t *testing.T) {
	bus := &chanBus{ch: make(chan []byte, 4)}
	hub, url := startHub(t, bus)

	conn, _, err := websocket.DefaultDialer.Dial(url+"/ws", nil)
	require.NoError(t, err)
	defer conn.Close()

	hello := readJSON(t, conn)
	assert.Equal(t, "hello", hello["type"])

	require.Eventually(t, func() bool { return hub.ClientCount() == 1 }, time.Second, 5*time.Millisecond)

	require.NoError(t, bus.Publish(context.Background(), "ch:events", []byte(`{"type":"event_applied","event_id":"0x1-0"}`)))
	msg := readJSON(t, conn)
	assert.Equal(t, "event_applied", msg["type"])
	assert.Equal(t, "0x1-0", msg["event_id"])

	hub.Broadcast([]byte(`{"type":"notice"}`))
	assert.Equal(t, "notice", readJSON(t, conn)["type"])
}

func TestHubReplaysStream(t *testing.T) {
	bus := &chanBus{
		ch: make(chan []byte, 1),
		stream: []domain.StreamMessage{
			{ID: "1-0", Payload: []byte(`{"n":1}`)},
			{ID: "2-0", Payload: []byte(`{"n":2}`)},
			{ID: "3-0", Payload: []byte(`{"n":3}`)},
		},
	}
	_, url := startHub(t, bus)

	conn, _, err := websocket.DefaultDialer.Dial(url+"/ws?since=1-0", nil)
	require.NoError(t, err)
	defer conn.Close()

	assert.Equal(t, "hello", readJSON(t, conn)["type"])
	assert.Equal(t, float64(2), readJSON(t, conn)["n"])
	assert.Equal(t, float64(3), readJSON(t, conn)["n"])
}

func TestHubUnregistersClosedClients(t *testing.T) {
	bus := &chanBus{ch: make(chan []byte, 1)}
	hub, url := startHub(t, bus)

	conn, _, err := websocket.DefaultDialer.Dial(url+"/ws", nil)
	require.NoError(t, err)
	readJSON(t, conn)
	require.Eventually(t, func() bool { return hub.ClientCount() == 1 }, time.Second, 5*time.Millisecond)

	require.NoError(t, conn.Close())
	assert.Eventually(t, func() bool { return hub.ClientCount() == 0 }, 2*time.Second, 10*time.Millisecond)
}
