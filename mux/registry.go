package mux

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"sort"
	"sync"
	"time"

	"golang.org/x/time/rate"

	"github.com/skeeeon/nats-dashboard-sub001/conn"
	"github.com/skeeeon/nats-dashboard-sub001/errors"
	"github.com/skeeeon/nats-dashboard-sub001/extract"
	"github.com/skeeeon/nats-dashboard-sub001/metric"
)

// listenerEntry is one widget's registered interest in a subject.
type listenerEntry struct {
	widgetID       string
	extractionPath string
	registeredAt   time.Time
}

// subscriptionEntry maps one subject pattern to its single physical stream
// and the set of widgets listening on it. The registry is the exclusive
// owner of the stream handle.
type subscriptionEntry struct {
	subject   string
	stream    conn.Stream
	listeners map[string]*listenerEntry
}

// registry owns the reference-counted subject-to-stream mapping. Many
// widgets watching the same subject share one network subscription; the
// stream lives exactly as long as the entry has listeners.
type registry struct {
	mu       sync.RWMutex
	provider conn.Provider
	entries  map[string]*subscriptionEntry

	// onMessage is the enqueue hook; it runs on the provider's delivery
	// goroutine and must never block.
	onMessage func(entrySubject, subject string, payload []byte)

	extractor extract.Extractor
	store     *BufferStore

	logger  *slog.Logger
	metrics *metric.Metrics

	// extractLogLimiter keeps a bad path expression from flooding logs.
	extractLogLimiter *rate.Limiter
	extractFailures   uint64
}

func newRegistry(provider conn.Provider, extractor extract.Extractor, store *BufferStore) *registry {
	return &registry{
		provider:          provider,
		entries:           make(map[string]*subscriptionEntry),
		extractor:         extractor,
		store:             store,
		logger:            slog.Default().With("component", "registry"),
		extractLogLimiter: rate.NewLimiter(rate.Every(time.Second), 5),
	}
}

// Subscribe attaches a widget to a subject, opening the physical stream on
// first use. Idempotent per (widgetID, subject): re-subscribing updates the
// stored extraction path without creating a duplicate listener.
func (r *registry) Subscribe(widgetID, subject, extractionPath string) error {
	if widgetID == "" || subject == "" {
		return errors.WrapInvalid(
			fmt.Errorf("widget ID and subject are required"),
			"Registry", "Subscribe", "validate arguments")
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	entry, exists := r.entries[subject]
	if !exists {
		stream, err := r.provider.Subscribe(subject, func(concrete string, payload []byte) {
			r.onMessage(subject, concrete, payload)
		})
		if err != nil {
			return errors.WrapTransient(
				fmt.Errorf("%w: %s: %w", errors.ErrSubscriptionFailed, subject, err),
				"Registry", "Subscribe", "open stream")
		}
		entry = &subscriptionEntry{
			subject:   subject,
			stream:    stream,
			listeners: make(map[string]*listenerEntry),
		}
		r.entries[subject] = entry
		r.logger.Debug("stream opened", "subject", subject)
	}

	if l, attached := entry.listeners[widgetID]; attached {
		l.extractionPath = extractionPath
		return nil
	}

	entry.listeners[widgetID] = &listenerEntry{
		widgetID:       widgetID,
		extractionPath: extractionPath,
		registeredAt:   time.Now(),
	}
	r.updateGaugesLocked()
	return nil
}

// Unsubscribe detaches a widget from a subject. The last listener tears the
// stream down before the entry is removed. Unknown pairs are a no-op.
func (r *registry) Unsubscribe(widgetID, subject string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	entry, exists := r.entries[subject]
	if !exists {
		return nil
	}
	if _, attached := entry.listeners[widgetID]; !attached {
		return nil
	}

	delete(entry.listeners, widgetID)
	if len(entry.listeners) > 0 {
		r.updateGaugesLocked()
		return nil
	}

	// Last listener gone: release the stream before dropping the entry.
	err := entry.stream.Unsubscribe()
	delete(r.entries, subject)
	r.updateGaugesLocked()
	r.logger.Debug("stream released", "subject", subject)

	if err != nil {
		return errors.WrapTransient(err, "Registry", "Unsubscribe", "release stream")
	}
	return nil
}

// Dispatch fans one message out to the listeners of its subscription entry.
// Listener lookup happens here, at dispatch time, so a message queued
// before an unsubscribe simply finds no listener and skips the departed
// widget. An extraction failure is isolated to its listener: counted,
// logged at a limited rate, and delivery to the remaining listeners
// continues.
func (r *registry) Dispatch(entrySubject, subject string, payload []byte, receivedAt time.Time) {
	r.mu.RLock()
	entry, exists := r.entries[entrySubject]
	if !exists {
		r.mu.RUnlock()
		return
	}
	listeners := make([]listenerEntry, 0, len(entry.listeners))
	for _, l := range entry.listeners {
		listeners = append(listeners, *l)
	}
	r.mu.RUnlock()

	for _, l := range listeners {
		value, err := r.extractValue(payload, l.extractionPath)
		if err != nil {
			r.recordExtractionFailure(l.widgetID, subject, err)
			continue
		}
		r.store.Append(l.widgetID, value, receivedAt)
	}

	if r.metrics != nil {
		r.metrics.MessagesDispatched.Inc()
	}
}

// extractValue applies a listener's extraction path. An empty path means
// the widget wants the raw payload.
func (r *registry) extractValue(payload []byte, path string) (any, error) {
	if path == "" {
		return json.RawMessage(payload), nil
	}
	return r.extractor.Extract(payload, path)
}

func (r *registry) recordExtractionFailure(widgetID, subject string, err error) {
	r.mu.Lock()
	r.extractFailures++
	r.mu.Unlock()

	if r.metrics != nil {
		r.metrics.ExtractionFailures.Inc()
	}
	if r.extractLogLimiter.Allow() {
		r.logger.Warn("value extraction failed",
			"widget_id", widgetID, "subject", subject, "error", err)
	}
}

// Snapshot returns the subscription count and per-subject stats, sorted by
// subject for stable diagnostics output. Cost is O(subjects + listeners).
func (r *registry) Snapshot() (int, []SubjectStats) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	subjects := make([]SubjectStats, 0, len(r.entries))
	for _, entry := range r.entries {
		subjects = append(subjects, SubjectStats{
			Subject:       entry.subject,
			ListenerCount: len(entry.listeners),
			IsActive:      entry.stream != nil,
		})
	}
	sort.Slice(subjects, func(i, j int) bool {
		return subjects[i].Subject < subjects[j].Subject
	})
	return len(r.entries), subjects
}

// closeAll releases every stream; used on multiplexer shutdown.
func (r *registry) closeAll() {
	r.mu.Lock()
	defer r.mu.Unlock()

	for subject, entry := range r.entries {
		if err := entry.stream.Unsubscribe(); err != nil {
			r.logger.Warn("stream release failed during shutdown",
				"subject", subject, "error", err)
		}
		delete(r.entries, subject)
	}
	r.updateGaugesLocked()
}

func (r *registry) updateGaugesLocked() {
	if r.metrics == nil {
		return
	}
	total := 0
	for _, entry := range r.entries {
		total += len(entry.listeners)
	}
	r.metrics.ActiveSubscriptions.Set(float64(len(r.entries)))
	r.metrics.ActiveListeners.Set(float64(total))
}
