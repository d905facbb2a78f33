package mux

import (
	"sync"
)

// OverflowPolicy determines what happens when a message arrives while the
// dispatch queue is at capacity.
type OverflowPolicy int

const (
	// DropOldest evicts the oldest queued item to make room. Dashboards
	// display current state, so the newest data wins under overload.
	DropOldest OverflowPolicy = iota
	// DropNewest discards the arriving item instead.
	DropNewest
)

// String returns the policy name used in config files and logs.
func (p OverflowPolicy) String() string {
	switch p {
	case DropOldest:
		return "drop_oldest"
	case DropNewest:
		return "drop_newest"
	default:
		return "unknown"
	}
}

// dispatchQueue is a bounded FIFO ring between the transport callback and
// the drain loop. Enqueue is O(1) and never blocks; overflow is a counted
// condition, not an error.
type dispatchQueue struct {
	mu       sync.Mutex
	items    []queueItem
	capacity int
	size     int
	head     int // next write position
	tail     int // next read position
	policy   OverflowPolicy
	closed   bool

	enqueued uint64
	dropped  uint64

	// notify wakes the drain loop; buffered so Enqueue never waits.
	notify chan struct{}
}

func newDispatchQueue(capacity int, policy OverflowPolicy) *dispatchQueue {
	if capacity <= 0 {
		capacity = 1
	}
	return &dispatchQueue{
		items:    make([]queueItem, capacity),
		capacity: capacity,
		policy:   policy,
		notify:   make(chan struct{}, 1),
	}
}

// Enqueue adds an item, applying the overflow policy when full. It returns
// the item shed by the policy (nil when none) and whether the arriving item
// was accepted. A closed queue accepts nothing.
func (q *dispatchQueue) Enqueue(item queueItem) (shed *queueItem, accepted bool) {
	q.mu.Lock()

	if q.closed {
		q.mu.Unlock()
		return nil, false
	}

	if q.size == q.capacity {
		switch q.policy {
		case DropOldest:
			old := q.items[q.tail]
			q.items[q.tail] = queueItem{}
			q.tail = (q.tail + 1) % q.capacity
			q.size--
			q.dropped++
			shed = &old
		case DropNewest:
			q.dropped++
			q.mu.Unlock()
			return &item, false
		}
	}

	q.items[q.head] = item
	q.head = (q.head + 1) % q.capacity
	q.size++
	q.enqueued++
	q.mu.Unlock()

	select {
	case q.notify <- struct{}{}:
	default:
	}

	return shed, true
}

// dequeueBatch removes up to max items in FIFO order.
func (q *dispatchQueue) dequeueBatch(max int) []queueItem {
	if max <= 0 {
		return nil
	}

	q.mu.Lock()
	defer q.mu.Unlock()

	if q.size == 0 {
		return nil
	}

	n := max
	if n > q.size {
		n = q.size
	}

	batch := make([]queueItem, n)
	for i := 0; i < n; i++ {
		batch[i] = q.items[q.tail]
		q.items[q.tail] = queueItem{} // clear for GC
		q.tail = (q.tail + 1) % q.capacity
		q.size--
	}
	return batch
}

// Len returns the current queue depth.
func (q *dispatchQueue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.size
}

// Capacity returns the maximum queue depth. Immutable after construction.
func (q *dispatchQueue) Capacity() int {
	return q.capacity
}

// Dropped returns the total number of items shed by the overflow policy.
func (q *dispatchQueue) Dropped() uint64 {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.dropped
}

// Close rejects further enqueues. Queued items remain drainable.
func (q *dispatchQueue) Close() {
	q.mu.Lock()
	q.closed = true
	q.mu.Unlock()
}
