package session

import (
	"sync"
	"time"
)

// DefaultBufferCapacity bounds how many output events a session retains
// before the oldest are evicted.
const DefaultBufferCapacity = 10000

// EventKind distinguishes units of captured output.
type EventKind string

const (
	KindStdout EventKind = "stdout"
	KindStderr EventKind = "stderr"
	KindExit   EventKind = "exit"
)

// OutputEvent is one timestamped unit of captured output. Stdout and
// stderr events carry raw text; the exit marker carries the child's
// exit code or terminating signal instead.
type OutputEvent struct {
	Kind       EventKind `json:"kind"`
	Text       string    `json:"text,omitempty"`
	ExitCode   *int      `json:"exit_code,omitempty"`
	ExitSignal *int      `json:"exit_signal,omitempty"`
	Timestamp  time.Time `json:"timestamp"`
}

// Buffer is a bounded, append-only sequence of output events addressed
// by logical offset. Offsets count every event ever appended, so they
// keep growing past eviction: after the capacity bound is exceeded the
// oldest events are dropped FIFO and reads below the evicted range
// yield whatever is oldest-retained rather than an error. Total always
// reports the true cumulative append count, so incremental pollers that
// pass a previous total as the next offset never skip or repeat events.
//
// Safe for one producer appending concurrently with many readers.
type Buffer struct {
	mu       sync.Mutex
	events   []OutputEvent
	capacity int
	start    int // logical offset of events[0]
}

// NewBuffer creates a Buffer retaining at most capacity events.
// Non-positive capacities fall back to DefaultBufferCapacity.
func NewBuffer(capacity int) *Buffer {
	if capacity <= 0 {
		capacity = DefaultBufferCapacity
	}
	return &Buffer{capacity: capacity}
}

// Append adds one event at the tail, evicting from the head while the
// retained length exceeds the capacity bound.
func (b *Buffer) Append(evt OutputEvent) {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.events = append(b.events, evt)
	if excess := len(b.events) - b.capacity; excess > 0 {
		b.events = b.events[excess:]
		b.start += excess
	}
}

// ReadFrom returns a copy of every event at logical offset >= offset,
// plus the cumulative append count at the time of the call. Negative
// offsets read from the beginning; offsets beyond the total yield an
// empty slice. The returned count corresponds exactly to the returned
// slice, never including an in-flight append in one but not the other.
func (b *Buffer) ReadFrom(offset int) ([]OutputEvent, int) {
	b.mu.Lock()
	defer b.mu.Unlock()

	total := b.start + len(b.events)
	if offset < b.start {
		offset = b.start
	}
	if offset >= total {
		return []OutputEvent{}, total
	}

	out := make([]OutputEvent, total-offset)
	copy(out, b.events[offset-b.start:])
	return out, total
}

// Len returns the cumulative append count.
func (b *Buffer) Len() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.start + len(b.events)
}
