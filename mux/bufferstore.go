package mux

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/skeeeon/nats-dashboard-sub001/errors"
	"github.com/skeeeon/nats-dashboard-sub001/metric"
)

// Memory pressure levels, edge-triggered: an event fires on each upward
// transition and the trigger re-arms when usage falls back below the level.
const (
	pressureNone = iota
	pressureWarning
	pressureCritical
)

// widgetBuffer is one widget's bounded history, stored as a ring so count
// eviction is O(1). tail indexes the oldest sample.
type widgetBuffer struct {
	widgetID   string
	maxCount   int
	maxAge     time.Duration // 0 disables age eviction
	items      []Sample
	tail       int
	size       int
	cumulative uint64
	memory     int64
}

// evictExpired drops samples older than maxAge and returns how many were
// removed and the bytes they held. Caller holds the store lock.
func (b *widgetBuffer) evictExpired(now time.Time) (removed int, freed int64) {
	if b.maxAge <= 0 {
		return 0, 0
	}
	cutoff := now.Add(-b.maxAge)
	for b.size > 0 && b.items[b.tail].Timestamp.Before(cutoff) {
		freed += sampleCost(b.items[b.tail].Value)
		b.items[b.tail] = Sample{}
		b.tail = (b.tail + 1) % b.maxCount
		b.size--
		removed++
	}
	b.memory -= freed
	return removed, freed
}

// push appends one sample, evicting the oldest when at capacity. Returns
// whether an eviction happened and the net memory delta. Caller holds the
// store lock.
func (b *widgetBuffer) push(s Sample) (evicted bool, delta int64) {
	delta = sampleCost(s.Value)
	if b.size == b.maxCount {
		delta -= sampleCost(b.items[b.tail].Value)
		b.items[b.tail] = Sample{}
		b.tail = (b.tail + 1) % b.maxCount
		b.size--
		evicted = true
	}
	b.items[(b.tail+b.size)%b.maxCount] = s
	b.size++
	b.cumulative++
	b.memory += delta
	return evicted, delta
}

// snapshot copies the ring oldest-first. Caller holds the store lock.
func (b *widgetBuffer) snapshot() []Sample {
	out := make([]Sample, b.size)
	for i := 0; i < b.size; i++ {
		out[i] = b.items[(b.tail+i)%b.maxCount]
	}
	return out
}

func (b *widgetBuffer) clear() {
	for i := range b.items {
		b.items[i] = Sample{}
	}
	b.tail = 0
	b.size = 0
	b.memory = 0
}

// BufferStore holds the bounded per-widget histories and the aggregate
// memory accounting that protects against many buffers each near their own
// cap adding up to excessive total memory.
type BufferStore struct {
	mu      sync.Mutex
	buffers map[string]*widgetBuffer

	memoryBudget int64
	warnPct      float64
	criticalPct  float64
	pressure     int

	totalItems  int
	totalMemory int64

	logger   *slog.Logger
	metrics  *metric.Metrics
	notifier *notifier
	clock    func() time.Time
}

// NewBufferStore creates an empty store. The budget is the total byte
// estimate across all buffers against which the warn and critical
// percentages are computed.
func NewBufferStore(budget int64, warnPct, criticalPct float64) *BufferStore {
	if budget <= 0 {
		budget = DefaultMemoryBudget
	}
	if warnPct <= 0 || warnPct >= 100 {
		warnPct = DefaultMemoryWarnPercent
	}
	if criticalPct <= warnPct || criticalPct > 100 {
		criticalPct = DefaultMemoryCriticalPercent
	}
	return &BufferStore{
		buffers:      make(map[string]*widgetBuffer),
		memoryBudget: budget,
		warnPct:      warnPct,
		criticalPct:  criticalPct,
		logger:       slog.Default().With("component", "bufferstore"),
		notifier:     &notifier{},
		clock:        time.Now,
	}
}

// Initialize creates a buffer for widgetID or resets an existing one to the
// given limits. History and the cumulative counter start from zero either
// way. maxAge of zero disables age eviction.
func (s *BufferStore) Initialize(widgetID string, maxCount int, maxAge time.Duration) error {
	if widgetID == "" {
		return errors.WrapInvalid(
			fmt.Errorf("empty widget ID"), "BufferStore", "Initialize", "validate widget ID")
	}
	if maxCount <= 0 {
		return errors.WrapInvalid(
			fmt.Errorf("maxCount must be positive, got %d", maxCount),
			"BufferStore", "Initialize", "validate buffer limits")
	}

	s.mu.Lock()
	if old, exists := s.buffers[widgetID]; exists {
		s.totalItems -= old.size
		s.totalMemory -= old.memory
	}
	s.buffers[widgetID] = &widgetBuffer{
		widgetID: widgetID,
		maxCount: maxCount,
		maxAge:   maxAge,
		items:    make([]Sample, maxCount),
	}
	s.updateGaugesLocked()
	s.mu.Unlock()

	return nil
}

// Append adds a sample to a widget's buffer. Unknown widgets are a benign
// no-op: teardown races with in-flight messages are expected. Age eviction
// runs before the count cap.
func (s *BufferStore) Append(widgetID string, value any, timestamp time.Time) {
	s.mu.Lock()
	b, exists := s.buffers[widgetID]
	if !exists {
		s.mu.Unlock()
		return
	}

	expired, freed := b.evictExpired(s.clock())
	evicted, delta := b.push(Sample{Timestamp: timestamp, Value: value})

	s.totalItems -= expired
	if !evicted {
		s.totalItems++
	}
	s.totalMemory += delta - freed
	events := s.checkPressureLocked()
	s.updateGaugesLocked()
	s.mu.Unlock()

	s.notifier.emit(Event{Type: EventAppended, WidgetID: widgetID, Timestamp: timestamp})
	for _, ev := range events {
		s.notifier.emit(ev)
	}
}

// Snapshot returns a read-only copy of a widget's buffer, oldest-first.
func (s *BufferStore) Snapshot(widgetID string) (BufferSnapshot, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	b, exists := s.buffers[widgetID]
	if !exists {
		return BufferSnapshot{}, errors.WrapInvalid(
			fmt.Errorf("%w: %s", errors.ErrBufferNotFound, widgetID),
			"BufferStore", "Snapshot", "look up buffer")
	}

	return BufferSnapshot{
		WidgetID:        b.widgetID,
		MaxCount:        b.maxCount,
		MaxAge:          b.maxAge,
		Items:           b.snapshot(),
		CumulativeCount: b.cumulative,
	}, nil
}

// Remove deletes a widget's buffer entirely. Returns false when no buffer
// existed, which is not an error.
func (s *BufferStore) Remove(widgetID string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	b, exists := s.buffers[widgetID]
	if !exists {
		return false
	}

	s.totalItems -= b.size
	s.totalMemory -= b.memory
	delete(s.buffers, widgetID)
	s.checkPressureLocked()
	s.updateGaugesLocked()
	return true
}

// ClearAll empties every buffer's history while keeping the buffers
// themselves. The cumulative counters are untouched: they count lifetime
// ingest per buffer and reset only on Initialize. Returns the number of
// buffers cleared.
func (s *BufferStore) ClearAll() int {
	s.mu.Lock()
	for _, b := range s.buffers {
		b.clear()
	}
	cleared := len(s.buffers)
	s.totalItems = 0
	s.totalMemory = 0
	s.checkPressureLocked()
	s.updateGaugesLocked()
	s.mu.Unlock()

	s.notifier.emit(Event{Type: EventBuffersCleared, Timestamp: s.clock()})
	return cleared
}

// storeStats is the buffer store's contribution to the composed Stats.
type storeStats struct {
	activeBuffers int
	totalItems    int
	cumulative    uint64
	memory        int64
	usagePercent  float64
}

func (s *BufferStore) stats() storeStats {
	s.mu.Lock()
	defer s.mu.Unlock()

	var cumulative uint64
	for _, b := range s.buffers {
		cumulative += b.cumulative
	}
	return storeStats{
		activeBuffers: len(s.buffers),
		totalItems:    s.totalItems,
		cumulative:    cumulative,
		memory:        s.totalMemory,
		usagePercent:  s.usagePercentLocked(),
	}
}

func (s *BufferStore) usagePercentLocked() float64 {
	return float64(s.totalMemory) / float64(s.memoryBudget) * 100
}

// checkPressureLocked updates the edge-triggered pressure level and returns
// the events to emit after the lock is released.
func (s *BufferStore) checkPressureLocked() []Event {
	pct := s.usagePercentLocked()

	level := pressureNone
	switch {
	case pct >= s.criticalPct:
		level = pressureCritical
	case pct >= s.warnPct:
		level = pressureWarning
	}

	if level == s.pressure {
		return nil
	}

	var events []Event
	if level > s.pressure {
		now := s.clock()
		if s.pressure < pressureWarning && level >= pressureWarning {
			events = append(events, Event{Type: EventMemoryWarning, Timestamp: now})
			s.logger.Warn("buffer memory above warning threshold",
				"usage_percent", pct, "budget_bytes", s.memoryBudget)
		}
		if s.pressure < pressureCritical && level >= pressureCritical {
			events = append(events, Event{Type: EventMemoryCritical, Timestamp: now})
			s.logger.Error("buffer memory above critical threshold",
				"usage_percent", pct, "budget_bytes", s.memoryBudget)
		}
	}
	s.pressure = level
	return events
}

func (s *BufferStore) updateGaugesLocked() {
	if s.metrics == nil {
		return
	}
	s.metrics.ActiveBuffers.Set(float64(len(s.buffers)))
	s.metrics.BufferedItems.Set(float64(s.totalItems))
	s.metrics.BufferMemoryBytes.Set(float64(s.totalMemory))
}

// sampleCost estimates the bytes one stored value holds. Deliberately
// approximate: the accounting exists to flag runaway aggregate growth, not
// to audit the heap.
func sampleCost(v any) int64 {
	const overhead = 64 // Sample struct, interface header, ring slot

	switch val := v.(type) {
	case nil:
		return overhead
	case bool, float64, int, int64:
		return overhead + 8
	case string:
		return overhead + int64(len(val))
	case []byte:
		return overhead + int64(len(val))
	case json.RawMessage:
		return overhead + int64(len(val))
	case []any:
		cost := int64(overhead)
		for _, item := range val {
			cost += sampleCost(item)
		}
		return cost
	case map[string]any:
		cost := int64(overhead)
		for k, item := range val {
			cost += int64(len(k)) + sampleCost(item)
		}
		return cost
	default:
		return overhead + 32
	}
}
