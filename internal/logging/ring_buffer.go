package logging

import (
	"sync"
	"time"

	log "github.com/sirupsen/logrus"
)

// DefaultBufferSize is the number of recent issues kept by GlobalBuffer.
const DefaultBufferSize = 50

// Issue is one warning-or-worse log line kept for the health endpoint.
type Issue struct {
	Time    time.Time `json:"time"`
	Level   string    `json:"level"`
	Message string    `json:"message"`
}

// RingBuffer keeps the most recent warning-and-above log entries. It implements
// logrus.Hook.
type RingBuffer struct {
	mu       sync.RWMutex
	entries  []Issue
	capacity int
	head     int
	count    int
}

// NewRingBuffer creates a buffer holding up to capacity issues. Non-positive
// capacity selects DefaultBufferSize.
func NewRingBuffer(capacity int) *RingBuffer {
	if capacity <= 0 {
		capacity = DefaultBufferSize
	}
	return &RingBuffer{
		entries:  make([]Issue, capacity),
		capacity: capacity,
	}
}

// Levels limits the hook to warnings and above.
func (rb *RingBuffer) Levels() []log.Level {
	return []log.Level{log.PanicLevel, log.FatalLevel, log.ErrorLevel, log.WarnLevel}
}

// Fire records entry.
func (rb *RingBuffer) Fire(entry *log.Entry) error {
	level := entry.Level.String()
	if level == "warning" {
		level = "warn"
	}
	rb.Write(Issue{Time: entry.Time, Level: level, Message: entry.Message})
	return nil
}

// Write appends an issue, overwriting the oldest once full.
func (rb *RingBuffer) Write(issue Issue) {
	rb.mu.Lock()
	defer rb.mu.Unlock()

	rb.entries[rb.head] = issue
	rb.head = (rb.head + 1) % rb.capacity
	if rb.count < rb.capacity {
		rb.count++
	}
}

// Recent returns a copy of up to n most recent issues, oldest first. n <= 0
// returns everything.
func (rb *RingBuffer) Recent(n int) []Issue {
	rb.mu.RLock()
	defer rb.mu.RUnlock()

	if n <= 0 || n > rb.count {
		n = rb.count
	}
	out := make([]Issue, 0, n)
	start := (rb.head - n + rb.capacity) % rb.capacity
	for i := 0; i < n; i++ {
		out = append(out, rb.entries[(start+i)%rb.capacity])
	}
	return out
}

// Len returns the number of buffered issues.
func (rb *RingBuffer) Len() int {
	rb.mu.RLock()
	defer rb.mu.RUnlock()
	return rb.count
}

// GlobalBuffer is installed as a logrus hook by SetupBaseLogger.
var GlobalBuffer = NewRingBuffer(DefaultBufferSize)
