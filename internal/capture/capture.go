// Package capture persists a monitoring session as a CBOR stream of
// decoded records for offline analysis.
package capture

import (
	"io"
	"time"

	"github.com/fxamacker/cbor/v2"

	"github.com/danmuck/canprobe/internal/store"
)

// entry is the on-disk form of one record.
type entry struct {
	Time  time.Time `cbor:"ts"`
	CobID uint16    `cbor:"cob"`
	Data  []byte    `cbor:"data"`
	Seq   uint64    `cbor:"seq"`
}

// Writer appends records to a CBOR stream.
type Writer struct {
	enc   *cbor.Encoder
	count int
}

func NewWriter(w io.Writer) *Writer {
	return &Writer{enc: cbor.NewEncoder(w)}
}

func (w *Writer) Append(r store.Record) error {
	err := w.enc.Encode(entry{
		Time:  r.Time,
		CobID: r.CobID,
		Data:  r.Data,
		Seq:   r.Seq,
	})
	if err != nil {
		return err
	}
	w.count++
	return nil
}

// Count reports records written so far.
func (w *Writer) Count() int { return w.count }

// Reader replays a capture stream. Node id and message type are
// re-derived from the COB-ID, so old captures pick up classifier fixes.
type Reader struct {
	dec *cbor.Decoder
}

func NewReader(r io.Reader) *Reader {
	return &Reader{dec: cbor.NewDecoder(r)}
}

// Next returns the next captured record, or io.EOF at end of stream.
func (r *Reader) Next() (store.Record, error) {
	var e entry
	if err := r.dec.Decode(&e); err != nil {
		return store.Record{}, err
	}
	return store.NewRecord(e.Time, e.CobID, e.Data, e.Seq), nil
}
