package capture

import (
	"bytes"
	"io"
	"testing"
	"time"

	"github.com/danmuck/canprobe/internal/canopen"
	"github.com/danmuck/canprobe/internal/store"
)

func TestRoundTrip(t *testing.T) {
	var buf bytes.Buffer
	w := NewWriter(&buf)

	ts := time.Date(2026, 3, 14, 9, 26, 53, 0, time.UTC)
	records := []store.Record{
		store.NewRecord(ts, 0x181, []byte{0x01, 0x02}, 1),
		store.NewRecord(ts.Add(time.Millisecond), 0x581, []byte{0x43, 0, 0x10, 0, 1, 0, 0, 0}, 2),
		store.NewRecord(ts.Add(2*time.Millisecond), 0x701, []byte{0x05}, 3),
	}
	for _, r := range records {
		if err := w.Append(r); err != nil {
			t.Fatalf("append: %v", err)
		}
	}
	if w.Count() != len(records) {
		t.Fatalf("count %d", w.Count())
	}

	r := NewReader(&buf)
	for i, want := range records {
		got, err := r.Next()
		if err != nil {
			t.Fatalf("next %d: %v", i, err)
		}
		if got.CobID != want.CobID || got.Seq != want.Seq || !got.Time.Equal(want.Time) {
			t.Fatalf("record %d: %+v", i, got)
		}
		if !bytes.Equal(got.Data, want.Data) {
			t.Fatalf("record %d data % X", i, got.Data)
		}
	}
	if _, err := r.Next(); err != io.EOF {
		t.Fatalf("end of stream: %v", err)
	}
}

func TestReaderRederivesClassification(t *testing.T) {
	var buf bytes.Buffer
	w := NewWriter(&buf)
	if err := w.Append(store.NewRecord(time.Now(), 0x1B4, []byte{0xDE}, 7)); err != nil {
		t.Fatalf("append: %v", err)
	}

	got, err := NewReader(&buf).Next()
	if err != nil {
		t.Fatalf("next: %v", err)
	}
	if got.NodeID != 0x34 || got.Type != canopen.TypeTPDO1 {
		t.Fatalf("derived fields: %+v", got)
	}
}

func TestReaderEmptyStream(t *testing.T) {
	if _, err := NewReader(bytes.NewReader(nil)).Next(); err != io.EOF {
		t.Fatalf("empty stream: %v", err)
	}
}
