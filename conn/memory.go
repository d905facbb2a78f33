package conn

import (
	"context"
	"sync"
	"sync/atomic"
)

// MemoryProvider is an in-process Provider for tests and demos. Publish
// delivers synchronously to every matching stream, so callers observe a
// deterministic delivery order.
type MemoryProvider struct {
	mu      sync.RWMutex
	streams map[*memoryStream]struct{}

	subscribes   atomic.Int64
	unsubscribes atomic.Int64
	publishes    atomic.Int64
}

// NewMemoryProvider creates an empty in-memory provider.
func NewMemoryProvider() *MemoryProvider {
	return &MemoryProvider{
		streams: make(map[*memoryStream]struct{}),
	}
}

// Subscribe opens a logical stream matching the given subject pattern.
func (p *MemoryProvider) Subscribe(subject string, handler MessageHandler) (Stream, error) {
	s := &memoryStream{
		provider: p,
		subject:  subject,
		handler:  handler,
	}

	p.mu.Lock()
	p.streams[s] = struct{}{}
	p.mu.Unlock()

	p.subscribes.Add(1)
	return s, nil
}

// Publish delivers a payload to every stream whose pattern matches the
// subject. Handlers run synchronously on the caller's goroutine.
func (p *MemoryProvider) Publish(_ context.Context, subject string, payload []byte) error {
	p.publishes.Add(1)

	p.mu.RLock()
	matched := make([]*memoryStream, 0, len(p.streams))
	for s := range p.streams {
		if SubjectMatches(s.subject, subject) {
			matched = append(matched, s)
		}
	}
	p.mu.RUnlock()

	for _, s := range matched {
		s.handler(subject, payload)
	}
	return nil
}

// ActiveStreams returns the number of currently open streams.
func (p *MemoryProvider) ActiveStreams() int {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return len(p.streams)
}

// SubscribeCount returns the total number of Subscribe calls.
func (p *MemoryProvider) SubscribeCount() int64 {
	return p.subscribes.Load()
}

// UnsubscribeCount returns the total number of stream teardowns.
func (p *MemoryProvider) UnsubscribeCount() int64 {
	return p.unsubscribes.Load()
}

// IsHealthy always reports true; the in-memory transport cannot fail.
func (p *MemoryProvider) IsHealthy() bool {
	return true
}

type memoryStream struct {
	provider *MemoryProvider
	subject  string
	handler  MessageHandler
	once     sync.Once
}

func (s *memoryStream) Subject() string {
	return s.subject
}

func (s *memoryStream) Unsubscribe() error {
	s.once.Do(func() {
		s.provider.mu.Lock()
		delete(s.provider.streams, s)
		s.provider.mu.Unlock()
		s.provider.unsubscribes.Add(1)
	})
	return nil
}
