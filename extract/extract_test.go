package extract

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/skeeeon/nats-dashboard-sub001/errors"
)

func TestExtractScalar(t *testing.T) {
	e := NewJSONExtractor()
	payload := []byte(`{"temp": 20.5, "unit": "C", "ok": true}`)

	v, err := e.Extract(payload, "temp")
	require.NoError(t, err)
	assert.Equal(t, 20.5, v)

	v, err = e.Extract(payload, "unit")
	require.NoError(t, err)
	assert.Equal(t, "C", v)

	v, err = e.Extract(payload, "ok")
	require.NoError(t, err)
	assert.Equal(t, true, v)
}

func TestExtractNested(t *testing.T) {
	e := NewJSONExtractor()
	payload := []byte(`{"sensor": {"readings": [{"value": 1}, {"value": 2}]}}`)

	v, err := e.Extract(payload, "sensor.readings.1.value")
	require.NoError(t, err)
	assert.Equal(t, float64(2), v)

	v, err = e.Extract(payload, "sensor.readings.#")
	require.NoError(t, err)
	assert.Equal(t, float64(2), v)
}

func TestExtractObject(t *testing.T) {
	e := NewJSONExtractor()
	payload := []byte(`{"meta": {"site": "plant-1", "floor": 3}}`)

	v, err := e.Extract(payload, "meta")
	require.NoError(t, err)
	assert.Equal(t, map[string]any{"site": "plant-1", "floor": float64(3)}, v)
}

func TestExtractMissingPath(t *testing.T) {
	e := NewJSONExtractor()

	_, err := e.Extract([]byte(`{"temp": 20.5}`), "humidity")
	require.Error(t, err)
	assert.True(t, errors.Is(err, errors.ErrExtractionFailed))
	assert.True(t, errors.IsInvalid(err))
}

func TestExtractMalformedPayload(t *testing.T) {
	e := NewJSONExtractor()

	_, err := e.Extract([]byte(`{"temp": `), "temp")
	require.Error(t, err)
	assert.True(t, errors.Is(err, errors.ErrMalformedPayload))

	_, err = e.Extract(nil, "temp")
	require.Error(t, err)
	assert.True(t, errors.Is(err, errors.ErrMalformedPayload))
}

func TestExtractEmptyPath(t *testing.T) {
	e := NewJSONExtractor()

	_, err := e.Extract([]byte(`{"temp": 20.5}`), "")
	require.Error(t, err)
	assert.True(t, errors.Is(err, errors.ErrInvalidPath))
}
