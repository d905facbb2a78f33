package mux

import (
	"log/slog"
	"time"

	"github.com/skeeeon/nats-dashboard-sub001/metric"
)

// Defaults for multiplexer construction. Overridable per instance with the
// corresponding options.
const (
	DefaultQueueCapacity         = 1000
	DefaultDrainBudget           = 256
	DefaultMemoryBudget          = 64 << 20 // 64 MiB
	DefaultMemoryWarnPercent     = 70.0
	DefaultMemoryCriticalPercent = 90.0
)

// Option configures a Multiplexer during construction.
type Option func(*Multiplexer)

// WithLogger sets the base logger; component loggers derive from it.
func WithLogger(logger *slog.Logger) Option {
	return func(m *Multiplexer) {
		if logger != nil {
			m.logger = logger.With("component", "mux")
			m.registry.logger = logger.With("component", "registry")
			m.store.logger = logger.With("component", "bufferstore")
		}
	}
}

// WithMetrics wires the multiplexer to the platform metrics registry.
func WithMetrics(registry *metric.MetricsRegistry) Option {
	return func(m *Multiplexer) {
		if registry != nil {
			m.metrics = registry.CoreMetrics()
			m.registry.metrics = m.metrics
			m.store.metrics = m.metrics
		}
	}
}

// WithQueueCapacity bounds the dispatch queue. Values below one fall back
// to the default.
func WithQueueCapacity(capacity int) Option {
	return func(m *Multiplexer) {
		if capacity > 0 {
			m.queue = newDispatchQueue(capacity, m.queue.policy)
		}
	}
}

// WithOverflowPolicy selects what the queue sheds when full.
func WithOverflowPolicy(policy OverflowPolicy) Option {
	return func(m *Multiplexer) {
		m.queue = newDispatchQueue(m.queue.capacity, policy)
	}
}

// WithDrainBudget caps how many messages one drain pass dispatches before
// yielding the scheduler.
func WithDrainBudget(budget int) Option {
	return func(m *Multiplexer) {
		if budget > 0 {
			m.drainBudget = budget
		}
	}
}

// WithMemoryBudget sets the aggregate buffer memory budget in bytes.
func WithMemoryBudget(budget int64) Option {
	return func(m *Multiplexer) {
		if budget > 0 {
			m.store.memoryBudget = budget
		}
	}
}

// WithMemoryThresholds sets the warn and critical usage percentages.
// Invalid combinations (warn outside (0,100) or critical not above warn)
// are ignored.
func WithMemoryThresholds(warnPct, criticalPct float64) Option {
	return func(m *Multiplexer) {
		if warnPct > 0 && warnPct < 100 && criticalPct > warnPct && criticalPct <= 100 {
			m.store.warnPct = warnPct
			m.store.criticalPct = criticalPct
		}
	}
}

// WithClock substitutes the time source. Used by tests exercising
// age-based eviction.
func WithClock(clock func() time.Time) Option {
	return func(m *Multiplexer) {
		if clock != nil {
			m.clock = clock
			m.store.clock = clock
		}
	}
}
