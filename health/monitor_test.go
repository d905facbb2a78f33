package health

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStatusPredicates(t *testing.T) {
	assert.True(t, NewHealthy("c", "ok").IsHealthy())
	assert.True(t, NewDegraded("c", "slow").IsDegraded())
	assert.True(t, NewUnhealthy("c", "down").IsUnhealthy())
	assert.False(t, NewDegraded("c", "slow").Healthy)
}

func TestMonitorUpdateAndGet(t *testing.T) {
	m := NewMonitor()

	m.Update("mux", NewHealthy("mux", "ok"))

	got, exists := m.Get("mux")
	require.True(t, exists)
	assert.Equal(t, "mux", got.Component)
	assert.True(t, got.IsHealthy())
	assert.False(t, got.Timestamp.IsZero())

	_, exists = m.Get("missing")
	assert.False(t, exists)
}

func TestMonitorAggregate(t *testing.T) {
	m := NewMonitor()
	m.Update("conn", NewHealthy("conn", "connected"))
	m.Update("mux", NewHealthy("mux", "ok"))

	agg := m.AggregateHealth("dashboard")
	assert.True(t, agg.IsHealthy())
	assert.Len(t, agg.SubStatuses, 2)

	m.Update("mux", NewDegraded("mux", "queue above half capacity"))
	agg = m.AggregateHealth("dashboard")
	assert.True(t, agg.IsDegraded())

	m.Update("conn", NewUnhealthy("conn", "connection lost"))
	agg = m.AggregateHealth("dashboard")
	assert.True(t, agg.IsUnhealthy(), "unhealthy wins over degraded")
}

func TestMonitorAggregateEmpty(t *testing.T) {
	m := NewMonitor()
	agg := m.AggregateHealth("dashboard")
	assert.True(t, agg.IsHealthy())
	assert.Empty(t, agg.SubStatuses)
}

func TestMonitorRemoveAndCount(t *testing.T) {
	m := NewMonitor()
	m.Update("a", NewHealthy("a", "ok"))
	m.Update("b", NewHealthy("b", "ok"))
	assert.Equal(t, 2, m.Count())

	m.Remove("a")
	assert.Equal(t, 1, m.Count())
	_, exists := m.Get("a")
	assert.False(t, exists)
}
