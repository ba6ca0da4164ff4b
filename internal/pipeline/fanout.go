package pipeline

import (
	"sync"

	"github.com/danmuck/canprobe/internal/store"
)

// fanout delivers decoded records to any number of subscribers, each
// behind its own bounded channel so a slow listener never stalls the
// decode loop. Records are dropped per subscriber when its channel is
// full.
type fanout struct {
	mu   sync.RWMutex
	subs map[uint64]*subscriber
	next uint64
}

type subscriber struct {
	ch chan store.Record
}

func newFanout() *fanout {
	return &fanout{subs: make(map[uint64]*subscriber)}
}

// subscribe registers a listener with the given channel buffer. The
// cancel func detaches the listener and closes its channel.
func (f *fanout) subscribe(buffer int) (<-chan store.Record, func()) {
	if buffer < 1 {
		buffer = 1
	}
	s := &subscriber{ch: make(chan store.Record, buffer)}
	f.mu.Lock()
	id := f.next
	f.next++
	f.subs[id] = s
	f.mu.Unlock()

	cancel := func() {
		f.mu.Lock()
		if cur, ok := f.subs[id]; ok && cur == s {
			close(cur.ch)
			delete(f.subs, id)
		}
		f.mu.Unlock()
	}
	return s.ch, cancel
}

func (f *fanout) publish(batch []store.Record) {
	f.mu.RLock()
	defer f.mu.RUnlock()
	for _, s := range f.subs {
		for _, r := range batch {
			select {
			case s.ch <- r:
			default:
				// Slow subscriber; drop rather than stall the producer.
			}
		}
	}
}

func (f *fanout) close() {
	f.mu.Lock()
	defer f.mu.Unlock()
	for id, s := range f.subs {
		close(s.ch)
		delete(f.subs, id)
	}
}
