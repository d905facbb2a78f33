package errors

import (
	"context"
	stderrors "errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestErrorClassString(t *testing.T) {
	assert.Equal(t, "transient", ErrorTransient.String())
	assert.Equal(t, "invalid", ErrorInvalid.String())
	assert.Equal(t, "fatal", ErrorFatal.String())
	assert.Equal(t, "unknown", ErrorClass(42).String())
}

func TestWrapFormat(t *testing.T) {
	cause := stderrors.New("boom")
	err := Wrap(cause, "Registry", "Subscribe", "open stream")
	require.Error(t, err)
	assert.Equal(t, "Registry.Subscribe: open stream failed: boom", err.Error())
	assert.True(t, stderrors.Is(err, cause))
}

func TestWrapNil(t *testing.T) {
	assert.NoError(t, Wrap(nil, "c", "m", "a"))
	assert.NoError(t, WrapTransient(nil, "c", "m", "a"))
	assert.NoError(t, WrapInvalid(nil, "c", "m", "a"))
	assert.NoError(t, WrapFatal(nil, "c", "m", "a"))
}

func TestClassifiedWrapping(t *testing.T) {
	cause := stderrors.New("boom")

	tests := []struct {
		name  string
		err   error
		class ErrorClass
	}{
		{"transient", WrapTransient(cause, "c", "m", "a"), ErrorTransient},
		{"invalid", WrapInvalid(cause, "c", "m", "a"), ErrorInvalid},
		{"fatal", WrapFatal(cause, "c", "m", "a"), ErrorFatal},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var ce *ClassifiedError
			require.True(t, stderrors.As(tt.err, &ce))
			assert.Equal(t, tt.class, ce.Class)
			assert.Equal(t, "c", ce.Component)
			assert.Equal(t, "m", ce.Operation)
			assert.True(t, stderrors.Is(tt.err, cause), "cause must survive wrapping")
		})
	}
}

func TestIsTransient(t *testing.T) {
	assert.False(t, IsTransient(nil))
	assert.True(t, IsTransient(ErrConnectionLost))
	assert.True(t, IsTransient(ErrCircuitOpen))
	assert.True(t, IsTransient(context.DeadlineExceeded))
	assert.True(t, IsTransient(stderrors.New("dial tcp: connection refused")))
	assert.False(t, IsTransient(ErrInvalidConfig))

	// Classification on the wrapper wins over pattern matching
	assert.False(t, IsTransient(WrapInvalid(stderrors.New("timeout"), "c", "m", "a")))
}

func TestIsInvalid(t *testing.T) {
	assert.False(t, IsInvalid(nil))
	assert.True(t, IsInvalid(ErrInvalidPath))
	assert.True(t, IsInvalid(ErrMalformedPayload))
	assert.True(t, IsInvalid(fmt.Errorf("extract: %w", ErrExtractionFailed)))
	assert.False(t, IsInvalid(ErrConnectionLost))
}

func TestIsFatal(t *testing.T) {
	assert.False(t, IsFatal(nil))
	assert.True(t, IsFatal(ErrInvalidConfig))
	assert.True(t, IsFatal(ErrResourceExhausted))
	assert.False(t, IsFatal(ErrConnectionLost))
}

func TestClassify(t *testing.T) {
	assert.Equal(t, ErrorFatal, Classify(ErrMissingConfig))
	assert.Equal(t, ErrorInvalid, Classify(ErrInvalidPath))
	assert.Equal(t, ErrorTransient, Classify(stderrors.New("something else")))
}
