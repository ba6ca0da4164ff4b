package transport

import (
	"sync"
	"time"
)

// Loopback is an in-memory byte transport for tests and simulations.
// Bytes written to one end become readable on the peer end. Pipe
// returns the two ends.
type Loopback struct {
	peer *Loopback

	mu     sync.Mutex
	cond   *sync.Cond
	buf    []byte
	closed bool
}

// Pipe returns a connected pair of loopback transports.
func Pipe() (*Loopback, *Loopback) {
	a := &Loopback{}
	b := &Loopback{}
	a.cond = sync.NewCond(&a.mu)
	b.cond = sync.NewCond(&b.mu)
	a.peer, b.peer = b, a
	return a, b
}

// Read returns buffered bytes, waiting up to timeout for some to
// arrive. A zero count with nil error is an idle poll.
func (l *Loopback) Read(p []byte, timeout time.Duration) (int, error) {
	deadline := time.Now().Add(timeout)

	l.mu.Lock()
	defer l.mu.Unlock()
	for len(l.buf) == 0 {
		if l.closed {
			return 0, ErrClosed
		}
		remaining := time.Until(deadline)
		if remaining <= 0 {
			return 0, nil
		}
		// Wake the waiter near the deadline; cond has no timed wait.
		timer := time.AfterFunc(remaining, l.cond.Broadcast)
		l.cond.Wait()
		timer.Stop()
	}
	n := copy(p, l.buf)
	l.buf = l.buf[n:]
	return n, nil
}

// Write delivers bytes to the peer end.
func (l *Loopback) Write(p []byte) error {
	l.mu.Lock()
	if l.closed {
		l.mu.Unlock()
		return ErrClosed
	}
	l.mu.Unlock()
	return l.peer.deliver(p)
}

func (l *Loopback) deliver(p []byte) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.closed {
		return ErrClosed
	}
	l.buf = append(l.buf, p...)
	l.cond.Broadcast()
	return nil
}

func (l *Loopback) Close() error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.closed {
		return nil
	}
	l.closed = true
	l.cond.Broadcast()
	return nil
}
