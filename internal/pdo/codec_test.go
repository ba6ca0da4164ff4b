package pdo

import "testing"

func TestDecodeByteAndWordFields(t *testing.T) {
	m := Mapping{
		CobID: 0x181,
		Entries: []Entry{
			{Index: 0x2000, Subindex: 0, BitLength: 8},
			{Index: 0x2001, Subindex: 0, BitLength: 16},
		},
	}
	vals := Decode(m, []byte{0x05, 0x34, 0x12, 0xFF})
	if len(vals) != 2 {
		t.Fatalf("got %d values", len(vals))
	}
	if !vals[0].OK || vals[0].U32 != 0x05 {
		t.Fatalf("first field: %+v", vals[0])
	}
	if !vals[1].OK || vals[1].U32 != 0x1234 {
		t.Fatalf("second field: %+v", vals[1])
	}
}

func TestDecodeSubByteFields(t *testing.T) {
	m := Mapping{Entries: []Entry{
		{Index: 0x6000, Subindex: 1, BitLength: 4},
		{Index: 0x6000, Subindex: 2, BitLength: 4},
	}}
	vals := Decode(m, []byte{0xA5})
	if vals[0].U32 != 0x5 || vals[1].U32 != 0xA {
		t.Fatalf("nibbles: %+v %+v", vals[0], vals[1])
	}
}

func TestDecode32BitClippedToPayload(t *testing.T) {
	m := Mapping{Entries: []Entry{
		{Index: 0x2002, Subindex: 0, BitLength: 32},
	}}
	vals := Decode(m, []byte{0x01, 0x02, 0x03})
	if !vals[0].OK || vals[0].U32 != 0x030201 {
		t.Fatalf("clipped value: %+v", vals[0])
	}
}

func TestDecodeWideFieldRendersHex(t *testing.T) {
	m := Mapping{Entries: []Entry{
		{Index: 0x2003, Subindex: 0, BitLength: 48},
	}}
	vals := Decode(m, []byte{0xDE, 0xAD, 0xBE, 0xEF, 0x01, 0x02})
	if !vals[0].OK || vals[0].Bytes == nil {
		t.Fatalf("wide field: %+v", vals[0])
	}
	if got := vals[0].String(); got != "0xdeadbeef0102" {
		t.Fatalf("wide rendering %q", got)
	}
}

func TestDecodeOffsetAdvancesPastShortField(t *testing.T) {
	// The first field runs past the payload; the offset must still
	// advance so the second field decodes from its mapped position.
	m := Mapping{Entries: []Entry{
		{Index: 0x2000, Subindex: 0, BitLength: 8},
		{Index: 0x2001, Subindex: 0, BitLength: 16},
		{Index: 0x2002, Subindex: 0, BitLength: 8},
	}}
	vals := Decode(m, []byte{0x01, 0x02})
	if !vals[0].OK || vals[0].U32 != 0x01 {
		t.Fatalf("first: %+v", vals[0])
	}
	if vals[1].OK {
		t.Fatalf("truncated word should not decode: %+v", vals[1])
	}
	if vals[2].OK {
		t.Fatalf("field past payload should not decode: %+v", vals[2])
	}
	if vals[1].String() != "n/a" {
		t.Fatalf("missing value renders %q", vals[1])
	}
}

func TestDecodeEmptyMapping(t *testing.T) {
	if got := Decode(Mapping{}, []byte{0x01}); len(got) != 0 {
		t.Fatalf("empty mapping produced %d values", len(got))
	}
}
