// Package conn provides the connection provider consumed by the
// subscription multiplexer, with a NATS implementation for production and
// an in-memory implementation for tests and demos.
package conn

import "context"

// MessageHandler receives raw messages from a stream. The subject is the
// concrete subject of the delivered message, which for wildcard
// subscriptions differs from the subscription's pattern.
type MessageHandler func(subject string, payload []byte)

// Stream is a single physical subscription, exclusively owned by its
// creator. Unsubscribing an already-unsubscribed stream is a no-op.
type Stream interface {
	// Subject returns the subject pattern this stream was opened with.
	Subject() string

	// Unsubscribe tears the physical subscription down.
	Unsubscribe() error
}

// Provider supplies pub/sub primitives to the multiplexer. Implementations
// must be safe for concurrent use.
type Provider interface {
	// Subscribe opens a physical subscription for a subject pattern.
	// The handler may be invoked concurrently with other streams' handlers
	// but serially within one stream.
	Subscribe(subject string, handler MessageHandler) (Stream, error)

	// Publish sends a payload to a subject.
	Publish(ctx context.Context, subject string, payload []byte) error
}
