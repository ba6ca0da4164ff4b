package serialcan

import (
	"bytes"
	"errors"
	"time"
)

// DefaultPartialTimeout bounds how long an incomplete frame may sit in
// the accumulator before its start byte is abandoned. Without it a
// corrupted length nibble could stall decoding forever.
const DefaultPartialTimeout = 100 * time.Millisecond

// DecoderStats counts decoder outcomes since the last Reset.
type DecoderStats struct {
	Frames        uint64 // complete frames produced
	FramingErrors uint64 // invalid windows abandoned
	DroppedBytes  uint64 // bytes discarded while scanning or resyncing
}

// Decoder turns an arbitrarily chunked byte stream into Frames. Feed
// bytes with Push, then call Next until it reports no frame. The
// decoder resynchronizes after corruption by discarding only the
// offending start byte, so later valid frames survive. Not safe for
// concurrent use; the pipeline serializes access.
type Decoder struct {
	codec Codec
	buf   []byte
	stats DecoderStats

	partialTimeout time.Duration
	partialSince   time.Time
	partial        bool

	now func() time.Time
}

// NewDecoder returns a streaming decoder for the given dialect codec.
func NewDecoder(codec Codec) *Decoder {
	return &Decoder{
		codec:          codec,
		partialTimeout: DefaultPartialTimeout,
		now:            time.Now,
	}
}

// Push appends raw transport bytes to the accumulator.
func (d *Decoder) Push(p []byte) {
	d.buf = append(d.buf, p...)
}

// Buffered reports the accumulator occupancy in bytes.
func (d *Decoder) Buffered() int { return len(d.buf) }

// Stats returns a copy of the decoder counters.
func (d *Decoder) Stats() DecoderStats { return d.stats }

// Reset discards all buffered bytes and counters.
func (d *Decoder) Reset() {
	d.buf = d.buf[:0]
	d.partial = false
	d.stats = DecoderStats{}
}

// Next returns the next complete frame, or false when the accumulator
// holds none.
func (d *Decoder) Next() (Frame, bool) {
	for {
		idx := bytes.IndexByte(d.buf, StartByte)
		if idx < 0 {
			d.stats.DroppedBytes += uint64(len(d.buf))
			d.buf = d.buf[:0]
			d.partial = false
			return Frame{}, false
		}
		if idx > 0 {
			d.stats.DroppedBytes += uint64(idx)
			d.buf = d.buf[idx:]
			d.partial = false
		}

		f, n, err := d.codec.decode(d.buf)
		switch {
		case err == nil:
			d.buf = d.buf[n:]
			d.partial = false
			d.stats.Frames++
			return f, true
		case errors.Is(err, errShortWindow):
			if !d.partial {
				d.partial = true
				d.partialSince = d.now()
				return Frame{}, false
			}
			if d.now().Sub(d.partialSince) < d.partialTimeout {
				return Frame{}, false
			}
			// Incomplete for too long; abandon this start byte and
			// rescan the remainder.
			d.dropStartByte()
		default:
			d.dropStartByte()
		}
	}
}

// dropStartByte discards the leading start byte only, preserving any
// valid frame that begins inside the bad window.
func (d *Decoder) dropStartByte() {
	d.buf = d.buf[1:]
	d.partial = false
	d.stats.FramingErrors++
	d.stats.DroppedBytes++
}
