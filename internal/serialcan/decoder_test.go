package serialcan

import (
	"bytes"
	"testing"
	"time"
)

func encodeAll(t *testing.T, codec Codec, frames []Frame) []byte {
	t.Helper()
	var stream []byte
	for _, f := range frames {
		wire, err := codec.Encode(f)
		if err != nil {
			t.Fatalf("encode: %v", err)
		}
		stream = append(stream, wire...)
	}
	return stream
}

func drainDecoder(d *Decoder) []Frame {
	var out []Frame
	for {
		f, ok := d.Next()
		if !ok {
			return out
		}
		out = append(out, f)
	}
}

func sampleFrames(n int) []Frame {
	frames := make([]Frame, 0, n)
	for i := 0; i < n; i++ {
		id := uint32(0x180 + i%0x580)
		data := make([]byte, i%9)
		for j := range data {
			data[j] = byte(i + j)
		}
		frames = append(frames, Frame{ID: id & MaskStandardID, Data: data})
	}
	return frames
}

func TestDecoderStreamingInvariance(t *testing.T) {
	codec := ControlFlagsCodec{}
	frames := sampleFrames(200)
	stream := encodeAll(t, codec, frames)

	for _, chunk := range []int{1, 2, 3, 5, 7, 16, 64, len(stream)} {
		d := NewDecoder(codec)
		var got []Frame
		for off := 0; off < len(stream); off += chunk {
			end := off + chunk
			if end > len(stream) {
				end = len(stream)
			}
			d.Push(stream[off:end])
			got = append(got, drainDecoder(d)...)
		}
		if len(got) != len(frames) {
			t.Fatalf("chunk=%d decoded %d of %d frames", chunk, len(got), len(frames))
		}
		for i := range frames {
			if got[i].ID != frames[i].ID || !bytes.Equal(got[i].Data, frames[i].Data) {
				t.Fatalf("chunk=%d frame %d mismatch: got=%v want=%v", chunk, i, got[i], frames[i])
			}
		}
	}
}

func TestDecoderResynchronizesAfterCorruptTrailer(t *testing.T) {
	codec := ControlFlagsCodec{}
	frames := sampleFrames(50)
	stream := encodeAll(t, codec, frames[:25])

	// Corrupt one frame's trailer in the middle of the stream.
	corrupt, err := codec.Encode(frames[25])
	if err != nil {
		t.Fatalf("encode: %v", err)
	}
	corrupt = append([]byte(nil), corrupt...)
	corrupt[len(corrupt)-1] = 0x00
	stream = append(stream, corrupt...)
	stream = append(stream, encodeAll(t, codec, frames[26:])...)

	d := NewDecoder(codec)
	d.Push(stream)
	got := drainDecoder(d)
	if len(got) < len(frames)-1 {
		t.Fatalf("decoded %d frames, want at least %d", len(got), len(frames)-1)
	}
	if d.Stats().FramingErrors == 0 {
		t.Fatalf("framing error not counted")
	}
}

func TestDecoderSkipsInterFrameNoise(t *testing.T) {
	codec := LengthNibbleCodec{}
	f := Frame{ID: 0x201, Data: []byte{0x11, 0x22}}
	wire, err := codec.Encode(f)
	if err != nil {
		t.Fatalf("encode: %v", err)
	}
	d := NewDecoder(codec)
	d.Push([]byte{0x00, 0xFF, 0x13})
	d.Push(wire)
	got := drainDecoder(d)
	if len(got) != 1 || got[0].StandardID() != 0x201 {
		t.Fatalf("decoded %v", got)
	}
	if d.Stats().DroppedBytes != 3 {
		t.Fatalf("dropped %d bytes, want 3", d.Stats().DroppedBytes)
	}
}

func TestDecoderAbandonsStalePartialFrame(t *testing.T) {
	codec := ControlFlagsCodec{}
	now := time.Now()
	d := NewDecoder(codec)
	d.now = func() time.Time { return now }

	// Header claiming 8 payload bytes that never arrive.
	d.Push([]byte{StartByte, 0xC8, 0x01, 0x02})
	if _, ok := d.Next(); ok {
		t.Fatalf("incomplete frame decoded")
	}

	// A valid frame arrives behind the stalled partial.
	full, err := codec.Encode(Frame{ID: 0x301, Data: []byte{0x7F}})
	if err != nil {
		t.Fatalf("encode: %v", err)
	}
	d.Push(full)
	if _, ok := d.Next(); ok {
		t.Fatalf("partial window is not yet stale")
	}

	now = now.Add(DefaultPartialTimeout + time.Millisecond)
	f, ok := d.Next()
	if !ok {
		t.Fatalf("frame behind stale partial not recovered")
	}
	if f.StandardID() != 0x301 {
		t.Fatalf("identifier %03X", f.StandardID())
	}
}

func TestDecoderReset(t *testing.T) {
	d := NewDecoder(ControlFlagsCodec{})
	d.Push([]byte{0x01, 0x02, 0x03})
	d.Next()
	d.Reset()
	if d.Buffered() != 0 {
		t.Fatalf("buffered %d after reset", d.Buffered())
	}
	if s := d.Stats(); s != (DecoderStats{}) {
		t.Fatalf("stats %+v after reset", s)
	}
}
