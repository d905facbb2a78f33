package conn

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/skeeeon/nats-dashboard-sub001/errors"
)

func TestConnectionStatusString(t *testing.T) {
	assert.Equal(t, "disconnected", StatusDisconnected.String())
	assert.Equal(t, "connecting", StatusConnecting.String())
	assert.Equal(t, "connected", StatusConnected.String())
	assert.Equal(t, "reconnecting", StatusReconnecting.String())
	assert.Equal(t, "circuit_open", StatusCircuitOpen.String())
	assert.Equal(t, "unknown", ConnectionStatus(42).String())
}

func TestNewClientDefaults(t *testing.T) {
	c, err := NewClient("nats://127.0.0.1:4222")
	require.NoError(t, err)
	assert.Equal(t, "nats://127.0.0.1:4222", c.URL())
	assert.Equal(t, StatusDisconnected, c.Status())
	assert.False(t, c.IsHealthy())
}

func TestClientOptions(t *testing.T) {
	c, err := NewClient("nats://127.0.0.1:4222",
		WithName("test-client"),
		WithCredentials("user", "pass"),
		WithMaxReconnects(3),
		WithReconnectWait(time.Second),
		WithConnectTimeout(time.Second),
		WithCircuitBreakerThreshold(2),
	)
	require.NoError(t, err)
	assert.Equal(t, "test-client", c.name)
	assert.Equal(t, "user", c.username)
	assert.Equal(t, 3, c.maxReconnects)
	assert.Equal(t, int32(2), c.circuitThreshold)
}

func TestOperationsWhenDisconnected(t *testing.T) {
	c, err := NewClient("nats://127.0.0.1:4222")
	require.NoError(t, err)

	_, err = c.Subscribe("sensors.temp", func(string, []byte) {})
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrNotConnected))

	err = c.Publish(context.Background(), "sensors.temp", []byte("x"))
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrNotConnected))

	_, err = c.RTT()
	assert.ErrorIs(t, err, ErrNotConnected)
}

func TestCircuitBreakerOpensAfterThreshold(t *testing.T) {
	// Port 1 is never listening; connection attempts fail immediately
	c, err := NewClient("nats://127.0.0.1:1",
		WithConnectTimeout(200*time.Millisecond),
		WithCircuitBreakerThreshold(2),
	)
	require.NoError(t, err)

	ctx := context.Background()
	require.Error(t, c.Connect(ctx))
	assert.NotEqual(t, StatusCircuitOpen, c.Status())

	require.Error(t, c.Connect(ctx))
	assert.Equal(t, StatusCircuitOpen, c.Status())

	err = c.Connect(ctx)
	assert.ErrorIs(t, err, ErrCircuitOpen)
}

func TestCloseIsIdempotent(t *testing.T) {
	c, err := NewClient("nats://127.0.0.1:4222")
	require.NoError(t, err)

	require.NoError(t, c.Close(context.Background()))
	require.NoError(t, c.Close(context.Background()))
}
