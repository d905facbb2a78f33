package mux

import (
	"context"
	"fmt"
	"log/slog"
	"runtime"
	"sync/atomic"
	"time"

	"github.com/skeeeon/nats-dashboard-sub001/conn"
	"github.com/skeeeon/nats-dashboard-sub001/errors"
	"github.com/skeeeon/nats-dashboard-sub001/extract"
	"github.com/skeeeon/nats-dashboard-sub001/health"
	"github.com/skeeeon/nats-dashboard-sub001/metric"
)

// healthChecker is implemented by providers that report connection health.
type healthChecker interface {
	IsHealthy() bool
}

// Multiplexer is the facade over the subscription registry, dispatch queue
// and widget buffer store. Construct one per process with New and pass it
// by reference; there is no package-level instance.
type Multiplexer struct {
	provider  conn.Provider
	extractor extract.Extractor

	queue    *dispatchQueue
	registry *registry
	store    *BufferStore
	notifier *notifier

	drainBudget int
	clock       func() time.Time

	logger  *slog.Logger
	metrics *metric.Metrics

	started atomic.Bool
	cancel  context.CancelFunc
	done    chan struct{}
}

// New creates a multiplexer wired to the given provider and extractor.
func New(provider conn.Provider, extractor extract.Extractor, opts ...Option) (*Multiplexer, error) {
	if provider == nil {
		return nil, errors.WrapInvalid(
			fmt.Errorf("connection provider is required"), "Multiplexer", "New", "validate dependencies")
	}
	if extractor == nil {
		return nil, errors.WrapInvalid(
			fmt.Errorf("value extractor is required"), "Multiplexer", "New", "validate dependencies")
	}

	store := NewBufferStore(DefaultMemoryBudget, DefaultMemoryWarnPercent, DefaultMemoryCriticalPercent)

	m := &Multiplexer{
		provider:    provider,
		extractor:   extractor,
		queue:       newDispatchQueue(DefaultQueueCapacity, DropOldest),
		registry:    newRegistry(provider, extractor, store),
		store:       store,
		notifier:    &notifier{},
		drainBudget: DefaultDrainBudget,
		clock:       time.Now,
		logger:      slog.Default().With("component", "mux"),
	}
	m.store.notifier = m.notifier
	m.registry.onMessage = m.enqueue

	for _, opt := range opts {
		opt(m)
	}

	return m, nil
}

// Start launches the drain loop. Returns an error when already started.
func (m *Multiplexer) Start(ctx context.Context) error {
	if !m.started.CompareAndSwap(false, true) {
		return errors.WrapInvalid(errors.ErrAlreadyStarted, "Multiplexer", "Start", "check state")
	}

	runCtx, cancel := context.WithCancel(ctx)
	m.cancel = cancel
	m.done = make(chan struct{})

	go m.drainLoop(runCtx)

	m.logger.Info("multiplexer started",
		"queue_capacity", m.queue.Capacity(),
		"overflow_policy", m.queue.policy.String(),
		"drain_budget", m.drainBudget)
	return nil
}

// Stop halts the drain loop and releases every stream. Messages still
// queued when the timeout expires are abandoned; nothing here persists
// anyway.
func (m *Multiplexer) Stop(timeout time.Duration) error {
	if !m.started.CompareAndSwap(true, false) {
		return nil
	}

	m.queue.Close()
	m.cancel()

	select {
	case <-m.done:
	case <-time.After(timeout):
		m.registry.closeAll()
		return errors.WrapTransient(
			fmt.Errorf("drain loop did not stop within %s", timeout),
			"Multiplexer", "Stop", "wait for drain loop")
	}

	m.registry.closeAll()
	m.logger.Info("multiplexer stopped")
	return nil
}

// drainLoop pops queued messages in budget-sized batches and fans each out
// through the registry. Running on a single goroutine is what serializes
// dispatch and preserves per-subject delivery order.
func (m *Multiplexer) drainLoop(ctx context.Context) {
	defer close(m.done)

	for {
		select {
		case <-ctx.Done():
			return
		case <-m.queue.notify:
			m.drainPending(ctx)
		}
	}
}

func (m *Multiplexer) drainPending(ctx context.Context) {
	for {
		if ctx.Err() != nil {
			return
		}
		batch := m.queue.dequeueBatch(m.drainBudget)
		if len(batch) == 0 {
			return
		}
		for _, item := range batch {
			m.registry.Dispatch(item.entrySubject, item.subject, item.payload, item.receivedAt)
		}
		if m.metrics != nil {
			m.metrics.QueueDepth.Set(float64(m.queue.Len()))
		}
		// Yield between batches so a sustained flood cannot starve other
		// goroutines sharing the scheduler.
		runtime.Gosched()
	}
}

// enqueue runs on the provider's delivery goroutine; it must stay O(1) and
// never block so slow extraction or UI reads cannot stall the transport.
func (m *Multiplexer) enqueue(entrySubject, subject string, payload []byte) {
	shed, accepted := m.queue.Enqueue(queueItem{
		entrySubject: entrySubject,
		subject:      subject,
		payload:      payload,
		receivedAt:   m.clock(),
	})

	if m.metrics != nil {
		if accepted {
			m.metrics.MessagesEnqueued.Inc()
		}
		if shed != nil {
			m.metrics.MessagesDropped.Inc()
		}
		m.metrics.QueueDepth.Set(float64(m.queue.Len()))
	}

	if shed != nil {
		m.notifier.emit(Event{
			Type:      EventQueueDropped,
			Subject:   shed.subject,
			Timestamp: m.clock(),
		})
	}
}

// Subscribe attaches a widget to a subject with an optional extraction
// path (empty path delivers the raw payload). Idempotent per pair.
func (m *Multiplexer) Subscribe(widgetID, subject, extractionPath string) error {
	if err := m.registry.Subscribe(widgetID, subject, extractionPath); err != nil {
		return err
	}
	m.notifier.emit(Event{
		Type:      EventSubscribed,
		WidgetID:  widgetID,
		Subject:   subject,
		Timestamp: m.clock(),
	})
	return nil
}

// Unsubscribe detaches a widget from a subject. Unknown pairs are a no-op.
// Safe to call while messages for the widget are still queued; they find no
// listener at dispatch time and skip it silently.
func (m *Multiplexer) Unsubscribe(widgetID, subject string) error {
	if err := m.registry.Unsubscribe(widgetID, subject); err != nil {
		return err
	}
	m.notifier.emit(Event{
		Type:      EventUnsubscribed,
		WidgetID:  widgetID,
		Subject:   subject,
		Timestamp: m.clock(),
	})
	return nil
}

// InitializeBuffer creates or resets a widget's history buffer.
func (m *Multiplexer) InitializeBuffer(widgetID string, maxCount int, maxAge time.Duration) error {
	return m.store.Initialize(widgetID, maxCount, maxAge)
}

// GetBuffer returns a read-only snapshot of a widget's buffered history.
func (m *Multiplexer) GetBuffer(widgetID string) (BufferSnapshot, error) {
	return m.store.Snapshot(widgetID)
}

// RemoveBuffer deletes a widget's buffer; used on widget deletion or
// dashboard switch.
func (m *Multiplexer) RemoveBuffer(widgetID string) bool {
	return m.store.Remove(widgetID)
}

// ClearAllBuffers wipes every buffer's history, the manual memory-relief
// action surfaced when usage crosses the warning thresholds. Returns the
// number of buffers cleared.
func (m *Multiplexer) ClearAllBuffers() int {
	return m.store.ClearAll()
}

// Notify registers an observer for multiplexer events. Observers run
// synchronously and must not block.
func (m *Multiplexer) Notify(fn Observer) {
	m.notifier.add(fn)
}

// Stats composes registry, queue and buffer store snapshots on demand.
func (m *Multiplexer) Stats() Stats {
	count, subjects := m.registry.Snapshot()
	ss := m.store.stats()

	return Stats{
		SubscriptionCount:  count,
		Subscriptions:      subjects,
		QueueSize:          m.queue.Len(),
		MaxQueueSize:       m.queue.Capacity(),
		DroppedCount:       m.queue.Dropped(),
		ActiveBufferCount:  ss.activeBuffers,
		TotalBufferedCount: ss.totalItems,
		CumulativeCount:    ss.cumulative,
		MemoryEstimate:     ss.memory,
		MemoryUsagePercent: ss.usagePercent,
	}
}

// Health reports multiplexer health: unhealthy when the provider connection
// is down, degraded when the queue sits above half capacity or buffer
// memory is past the warning threshold.
func (m *Multiplexer) Health() health.Status {
	if hc, ok := m.provider.(healthChecker); ok && !hc.IsHealthy() {
		return health.NewUnhealthy("multiplexer", "transport connection down")
	}

	depth := m.queue.Len()
	if depth > m.queue.Capacity()/2 {
		return health.NewDegraded("multiplexer",
			fmt.Sprintf("dispatch queue at %d of %d; dispatch falling behind arrival rate",
				depth, m.queue.Capacity()))
	}

	if ss := m.store.stats(); ss.usagePercent >= m.store.warnPct {
		return health.NewDegraded("multiplexer",
			fmt.Sprintf("buffer memory at %.1f%% of budget", ss.usagePercent))
	}

	return health.NewHealthy("multiplexer", "dispatching normally")
}
