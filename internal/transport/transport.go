// Package transport defines the narrow byte-stream contract the
// ingestion pipeline and SDO manager depend on, plus the serial-port
// implementation and an in-memory loopback for tests.
package transport

import (
	"errors"
	"time"
)

var (
	ErrClosed = errors.New("transport: closed")
)

// Transport is a bounded-read byte stream. Read blocks for at most the
// given timeout and returns the bytes available, possibly zero; a zero
// count with a nil error is an idle poll, not EOF. Implementations must
// allow Read and Write from different goroutines.
type Transport interface {
	Read(p []byte, timeout time.Duration) (int, error)
	Write(p []byte) error
	Close() error
}
