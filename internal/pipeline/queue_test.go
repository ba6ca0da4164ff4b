package pipeline

import (
	"testing"
	"time"

	"github.com/danmuck/canprobe/internal/store"
)

func qrec(cobID uint16, seq uint64) store.Record {
	return store.NewRecord(time.Now(), cobID, nil, seq)
}

func TestQueueDrainDoesNotRemove(t *testing.T) {
	q := NewQueue(10)
	q.Append([]store.Record{qrec(0x181, 1), qrec(0x182, 2), qrec(0x183, 3)})

	first := q.Drain(2)
	if len(first) != 2 || first[0].Seq != 1 || first[1].Seq != 2 {
		t.Fatalf("drain returned %v", first)
	}
	// Without acknowledgement the same records are delivered again.
	again := q.Drain(2)
	if len(again) != 2 || again[0].Seq != 1 {
		t.Fatalf("redelivery returned %v", again)
	}
	if q.Len() != 3 {
		t.Fatalf("len=%d after drain", q.Len())
	}
}

func TestQueueAcknowledgeRemovesOldest(t *testing.T) {
	q := NewQueue(10)
	q.Append([]store.Record{qrec(0x181, 1), qrec(0x182, 2), qrec(0x183, 3)})

	if n := q.Acknowledge(2); n != 2 {
		t.Fatalf("acknowledged %d", n)
	}
	rest := q.Drain(10)
	if len(rest) != 1 || rest[0].Seq != 3 {
		t.Fatalf("remaining %v", rest)
	}
	// Over-acknowledging clamps to what is queued.
	if n := q.Acknowledge(10); n != 1 {
		t.Fatalf("acknowledged %d", n)
	}
	if q.Len() != 0 {
		t.Fatalf("len=%d", q.Len())
	}
}

func TestQueueOverflowDropsOldest(t *testing.T) {
	q := NewQueue(3)
	q.Append([]store.Record{qrec(0x181, 1), qrec(0x182, 2), qrec(0x183, 3), qrec(0x184, 4), qrec(0x185, 5)})

	if q.Dropped() != 2 {
		t.Fatalf("dropped %d", q.Dropped())
	}
	got := q.Drain(10)
	if len(got) != 3 || got[0].Seq != 3 || got[2].Seq != 5 {
		t.Fatalf("survivors %v", got)
	}
}

func TestQueueDrainBounds(t *testing.T) {
	q := NewQueue(5)
	if got := q.Drain(3); got != nil {
		t.Fatalf("empty drain returned %v", got)
	}
	q.Append([]store.Record{qrec(0x181, 1)})
	if got := q.Drain(0); got != nil {
		t.Fatalf("zero drain returned %v", got)
	}
	if got := q.Drain(100); len(got) != 1 {
		t.Fatalf("clamped drain returned %v", got)
	}
}

func TestQueueClear(t *testing.T) {
	q := NewQueue(2)
	q.Append([]store.Record{qrec(0x181, 1), qrec(0x182, 2), qrec(0x183, 3)})
	q.Clear()
	if q.Len() != 0 || q.Dropped() != 0 {
		t.Fatalf("len=%d dropped=%d after clear", q.Len(), q.Dropped())
	}
}
