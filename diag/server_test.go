package diag

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/skeeeon/nats-dashboard-sub001/conn"
	"github.com/skeeeon/nats-dashboard-sub001/extract"
	"github.com/skeeeon/nats-dashboard-sub001/metric"
	"github.com/skeeeon/nats-dashboard-sub001/mux"
)

func newTestServer(t *testing.T) (*Server, *mux.Multiplexer, *conn.MemoryProvider) {
	t.Helper()
	provider := conn.NewMemoryProvider()
	core, err := mux.New(provider, extract.NewJSONExtractor())
	require.NoError(t, err)
	require.NoError(t, core.Start(context.Background()))
	t.Cleanup(func() { core.Stop(time.Second) })

	s, err := NewServer(":0", core, WithMetrics(metric.NewMetricsRegistry()))
	require.NoError(t, err)
	return s, core, provider
}

func TestNewServerRequiresMultiplexer(t *testing.T) {
	_, err := NewServer(":0", nil)
	require.Error(t, err)
}

func TestStatsEndpoint(t *testing.T) {
	s, core, _ := newTestServer(t)
	require.NoError(t, core.InitializeBuffer("w1", 10, 0))
	require.NoError(t, core.Subscribe("w1", "sensors.temp", "value"))

	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/stats", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))

	var stats mux.Stats
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &stats))
	assert.Equal(t, 1, stats.SubscriptionCount)
	assert.Equal(t, 1, stats.ActiveBufferCount)
}

func TestHealthEndpoint(t *testing.T) {
	s, _, _ := newTestServer(t)

	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/health", nil))

	require.Equal(t, http.StatusOK, rec.Code)

	var body map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "healthy", body["status"])
}

func TestBufferEndpoint(t *testing.T) {
	s, core, provider := newTestServer(t)
	require.NoError(t, core.InitializeBuffer("w1", 10, 0))
	require.NoError(t, core.Subscribe("w1", "sensors.temp", "value"))

	for i := 0; i < 5; i++ {
		require.NoError(t, provider.Publish(context.Background(), "sensors.temp",
			[]byte(`{"value": 1}`)))
	}
	require.Eventually(t, func() bool {
		snap, err := core.GetBuffer("w1")
		return err == nil && len(snap.Items) == 5
	}, 2*time.Second, 5*time.Millisecond)

	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/buffers/w1?limit=3", nil))

	require.Equal(t, http.StatusOK, rec.Code)

	var snap mux.BufferSnapshot
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &snap))
	assert.Equal(t, "w1", snap.WidgetID)
	assert.Len(t, snap.Items, 3, "limit caps the returned tail")
	assert.Equal(t, uint64(5), snap.CumulativeCount)
}

func TestBufferEndpointUnknownWidget(t *testing.T) {
	s, _, _ := newTestServer(t)

	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/buffers/ghost", nil))

	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Contains(t, rec.Body.String(), "ghost")
}

func TestBufferEndpointBadLimit(t *testing.T) {
	s, core, _ := newTestServer(t)
	require.NoError(t, core.InitializeBuffer("w1", 10, 0))

	for _, raw := range []string{"abc", "0", "-5"} {
		rec := httptest.NewRecorder()
		s.Handler().ServeHTTP(rec,
			httptest.NewRequest(http.MethodGet, "/api/buffers/w1?limit="+raw, nil))
		assert.Equal(t, http.StatusBadRequest, rec.Code, "limit=%s", raw)
	}
}

func TestClearEndpoint(t *testing.T) {
	s, core, provider := newTestServer(t)
	require.NoError(t, core.InitializeBuffer("w1", 10, 0))
	require.NoError(t, core.Subscribe("w1", "sensors.temp", "value"))
	require.NoError(t, provider.Publish(context.Background(), "sensors.temp", []byte(`{"value": 1}`)))

	require.Eventually(t, func() bool {
		snap, err := core.GetBuffer("w1")
		return err == nil && len(snap.Items) == 1
	}, 2*time.Second, 5*time.Millisecond)

	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/api/buffers/clear", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"cleared": 1}`, rec.Body.String())

	snap, err := core.GetBuffer("w1")
	require.NoError(t, err)
	assert.Empty(t, snap.Items)
}

func TestStatsEndpointRejectsPost(t *testing.T) {
	s, _, _ := newTestServer(t)

	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/api/stats", nil))

	assert.Equal(t, http.StatusMethodNotAllowed, rec.Code)
}

func TestMetricsEndpoint(t *testing.T) {
	s, _, _ := newTestServer(t)

	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	assert.True(t, strings.Contains(rec.Body.String(), "dashboard_dispatch_enqueued_total") ||
		strings.Contains(rec.Body.String(), "go_goroutines"))
}

func TestParseLimitClampsToMax(t *testing.T) {
	n, err := parseLimit("99999")
	require.NoError(t, err)
	assert.Equal(t, maxBufferLimit, n)
}
