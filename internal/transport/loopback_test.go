package transport

import (
	"bytes"
	"errors"
	"testing"
	"time"
)

func TestPipeDelivery(t *testing.T) {
	a, b := Pipe()
	defer a.Close()
	defer b.Close()

	if err := a.Write([]byte{0xAA, 0x01, 0x02}); err != nil {
		t.Fatalf("write: %v", err)
	}
	buf := make([]byte, 16)
	n, err := b.Read(buf, time.Second)
	if err != nil || n != 3 {
		t.Fatalf("read n=%d err=%v", n, err)
	}
	if !bytes.Equal(buf[:n], []byte{0xAA, 0x01, 0x02}) {
		t.Fatalf("bytes % X", buf[:n])
	}
}

func TestReadTimeoutIsIdlePoll(t *testing.T) {
	a, b := Pipe()
	defer a.Close()
	defer b.Close()

	start := time.Now()
	n, err := b.Read(make([]byte, 8), 20*time.Millisecond)
	if n != 0 || err != nil {
		t.Fatalf("idle read n=%d err=%v", n, err)
	}
	if time.Since(start) < 15*time.Millisecond {
		t.Fatalf("read returned before the timeout")
	}
}

func TestReadWakesOnWrite(t *testing.T) {
	a, b := Pipe()
	defer a.Close()
	defer b.Close()

	go func() {
		time.Sleep(10 * time.Millisecond)
		a.Write([]byte{0x55})
	}()
	n, err := b.Read(make([]byte, 8), time.Second)
	if err != nil || n != 1 {
		t.Fatalf("read n=%d err=%v", n, err)
	}
}

func TestClosedEndpoints(t *testing.T) {
	a, b := Pipe()
	b.Close()

	if err := b.Write([]byte{0x01}); !errors.Is(err, ErrClosed) {
		t.Fatalf("write on closed end: %v", err)
	}
	if _, err := b.Read(make([]byte, 1), time.Millisecond); !errors.Is(err, ErrClosed) {
		t.Fatalf("read on closed end: %v", err)
	}
	// Delivery to a closed peer fails too.
	if err := a.Write([]byte{0x01}); !errors.Is(err, ErrClosed) {
		t.Fatalf("write to closed peer: %v", err)
	}
}
