package metrics

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCounters(t *testing.T) {
	m := New()
	m.EventApplied("TokenSale", 10*time.Millisecond)
	m.EventApplied("TokenSale", 5*time.Millisecond)
	m.Diagnostic("burn_ignored", "warning")
	m.RPCCall("eth_call", "reverted")
	m.SetCursor(120)

	assert.Equal(t, 2.0, testutil.ToFloat64(m.eventsApplied.WithLabelValues("TokenSale")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.diagnostics.WithLabelValues("burn_ignored", "warning")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.rpcCalls.WithLabelValues("eth_call", "reverted")))
	assert.Equal(t, 120.0, testutil.ToFloat64(m.cursorBlock))
}

func TestNilMetricsIsNoOp(t *testing.T) {
	var m *Metrics
	assert.NotPanics(t, func() {
		m.EventApplied("Transfer", time.Second)
		m.EventDuplicate()
		m.Diagnostic("x", "info")
		m.SetHead(1)
		m.Snapshot(false)
		m.Retry()
	})
}

func TestHandlerExposesCollectors(t *testing.T) {
	m := New()
	m.SetHead(77)

	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.True(t, strings.Contains(rec.Body.String(), "artindexer_indexer_head_block 77"))
}
