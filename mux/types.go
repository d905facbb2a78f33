package mux

import "time"

// Sample is one extracted value held in a widget buffer.
type Sample struct {
	Timestamp time.Time `json:"timestamp"`
	Value     any       `json:"value"`
}

// queueItem is one raw message waiting in the dispatch queue. entrySubject
// is the subscription pattern whose stream received the message; subject is
// the concrete subject, which differs for wildcard subscriptions.
type queueItem struct {
	entrySubject string
	subject      string
	payload      []byte
	receivedAt   time.Time
}

// SubjectStats is a point-in-time view of one subscription entry.
type SubjectStats struct {
	Subject       string `json:"subject"`
	ListenerCount int    `json:"listener_count"`
	IsActive      bool   `json:"is_active"`
}

// BufferSnapshot is a read-only copy of one widget's buffered history,
// oldest-first. Mutating it has no effect on the live buffer.
type BufferSnapshot struct {
	WidgetID        string        `json:"widget_id"`
	MaxCount        int           `json:"max_count"`
	MaxAge          time.Duration `json:"max_age,omitempty"`
	Items           []Sample      `json:"items"`
	CumulativeCount uint64        `json:"cumulative_count"`
}

// Stats is the composed diagnostic snapshot of registry, queue and buffer
// store. Computing it costs O(subjects + listeners + buffers), independent
// of message volume, so polling it once per second is cheap.
type Stats struct {
	SubscriptionCount int            `json:"subscription_count"`
	Subscriptions     []SubjectStats `json:"subscriptions"`

	QueueSize    int    `json:"queue_size"`
	MaxQueueSize int    `json:"max_queue_size"`
	DroppedCount uint64 `json:"dropped_count"`

	ActiveBufferCount  int     `json:"active_buffer_count"`
	TotalBufferedCount int     `json:"total_buffered_count"`
	CumulativeCount    uint64  `json:"cumulative_count"`
	MemoryEstimate     int64   `json:"memory_estimate"`
	MemoryUsagePercent float64 `json:"memory_usage_percent"`
}
