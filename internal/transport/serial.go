package transport

import (
	"fmt"
	"sync"
	"time"

	"github.com/avast/retry-go"
	"go.bug.st/serial"
)

// SerialConfig selects the port for a USB-serial CAN adapter.
type SerialConfig struct {
	Port        string
	BaudRate    int
	DialRetries uint
	DialDelay   time.Duration
}

// SerialTransport adapts a go.bug.st serial port to the Transport
// contract.
type SerialTransport struct {
	port serial.Port

	mu     sync.Mutex
	closed bool
}

// DialSerial opens the configured port, retrying a few times so the
// daemon survives a USB adapter that enumerates slowly at boot.
func DialSerial(cfg SerialConfig) (*SerialTransport, error) {
	if cfg.DialRetries == 0 {
		cfg.DialRetries = 3
	}
	if cfg.DialDelay == 0 {
		cfg.DialDelay = 200 * time.Millisecond
	}

	var port serial.Port
	err := retry.Do(func() error {
		var openErr error
		port, openErr = serial.Open(cfg.Port, &serial.Mode{BaudRate: cfg.BaudRate})
		return openErr
	}, retry.Attempts(cfg.DialRetries), retry.Delay(cfg.DialDelay))
	if err != nil {
		return nil, fmt.Errorf("transport: open %s: %w", cfg.Port, err)
	}
	if err := port.ResetInputBuffer(); err != nil {
		port.Close()
		return nil, fmt.Errorf("transport: reset %s: %w", cfg.Port, err)
	}
	return &SerialTransport{port: port}, nil
}

func (t *SerialTransport) Read(p []byte, timeout time.Duration) (int, error) {
	t.mu.Lock()
	if t.closed {
		t.mu.Unlock()
		return 0, ErrClosed
	}
	t.mu.Unlock()

	if err := t.port.SetReadTimeout(timeout); err != nil {
		return 0, err
	}
	// A zero count after the timeout is an idle poll by contract.
	return t.port.Read(p)
}

func (t *SerialTransport) Write(p []byte) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.closed {
		return ErrClosed
	}
	n, err := t.port.Write(p)
	if err != nil {
		return err
	}
	if n != len(p) {
		return fmt.Errorf("transport: short write %d/%d", n, len(p))
	}
	return nil
}

func (t *SerialTransport) Close() error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.closed {
		return nil
	}
	t.closed = true
	return t.port.Close()
}
