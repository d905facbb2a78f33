package metric

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/skeeeon/nats-dashboard-sub001/errors"
)

func TestNewMetricsRegistry(t *testing.T) {
	r := NewMetricsRegistry()
	require.NotNil(t, r.CoreMetrics())
	require.NotNil(t, r.PrometheusRegistry())

	// Core metrics are live immediately
	r.CoreMetrics().MessagesEnqueued.Add(3)
	assert.Equal(t, 3.0, testutil.ToFloat64(r.CoreMetrics().MessagesEnqueued))
}

func TestRegisterAndUnregister(t *testing.T) {
	r := NewMetricsRegistry()

	counter := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "test_component_ops_total",
		Help: "test counter",
	})

	require.NoError(t, r.Register("test-component", "ops_total", counter))
	counter.Inc()
	assert.Equal(t, 1.0, testutil.ToFloat64(counter))

	assert.True(t, r.Unregister("test-component", "ops_total"))
	assert.False(t, r.Unregister("test-component", "ops_total"), "second unregister returns false")
}

func TestRegisterDuplicate(t *testing.T) {
	r := NewMetricsRegistry()

	counter := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "test_dup_total",
		Help: "test counter",
	})

	require.NoError(t, r.Register("c", "dup_total", counter))
	err := r.Register("c", "dup_total", counter)
	require.Error(t, err)
	assert.True(t, errors.IsInvalid(err))
}

func TestRegisterPrometheusConflict(t *testing.T) {
	r := NewMetricsRegistry()

	a := prometheus.NewCounter(prometheus.CounterOpts{Name: "test_conflict_total", Help: "h"})
	b := prometheus.NewCounter(prometheus.CounterOpts{Name: "test_conflict_total", Help: "h"})

	require.NoError(t, r.Register("c1", "conflict", a))
	err := r.Register("c2", "conflict", b)
	require.Error(t, err)
	assert.True(t, errors.IsInvalid(err))
}

func TestUnregisterUnknown(t *testing.T) {
	r := NewMetricsRegistry()
	assert.False(t, r.Unregister("nope", "missing"))
}
