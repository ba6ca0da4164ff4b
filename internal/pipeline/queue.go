package pipeline

import (
	"sync"

	"github.com/danmuck/canprobe/internal/store"
)

// Queue is the pull-based consumer buffer: an ordered, bounded window
// of undelivered records. Drain returns the oldest records without
// removing them; Acknowledge discards them once the consumer has
// processed the slice, so a consumer crash mid-batch retries from the
// unacknowledged tail. On overflow the oldest records are dropped and
// counted; the store is unaffected.
type Queue struct {
	mu       sync.Mutex
	records  []store.Record
	capacity int
	dropped  uint64
}

func NewQueue(capacity int) *Queue {
	if capacity <= 0 {
		capacity = 1
	}
	return &Queue{capacity: capacity}
}

// Append adds decoded records, evicting the oldest beyond capacity.
func (q *Queue) Append(batch []store.Record) {
	if len(batch) == 0 {
		return
	}
	q.mu.Lock()
	defer q.mu.Unlock()
	q.records = append(q.records, batch...)
	if over := len(q.records) - q.capacity; over > 0 {
		q.dropped += uint64(over)
		q.records = append(q.records[:0], q.records[over:]...)
	}
}

// Drain returns up to max of the oldest undelivered records. The
// records stay queued until acknowledged.
func (q *Queue) Drain(max int) []store.Record {
	q.mu.Lock()
	defer q.mu.Unlock()
	if max <= 0 || len(q.records) == 0 {
		return nil
	}
	if max > len(q.records) {
		max = len(q.records)
	}
	out := make([]store.Record, max)
	copy(out, q.records[:max])
	return out
}

// Acknowledge discards up to n of the oldest records and reports how
// many were removed.
func (q *Queue) Acknowledge(n int) int {
	q.mu.Lock()
	defer q.mu.Unlock()
	if n <= 0 {
		return 0
	}
	if n > len(q.records) {
		n = len(q.records)
	}
	q.records = append(q.records[:0], q.records[n:]...)
	return n
}

// Len reports the number of undelivered records.
func (q *Queue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.records)
}

// Dropped reports records lost to overflow since the last Clear.
func (q *Queue) Dropped() uint64 {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.dropped
}

// Clear empties the queue and resets the drop counter.
func (q *Queue) Clear() {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.records = nil
	q.dropped = 0
}
