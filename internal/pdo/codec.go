// Package pdo extracts mapped object-dictionary variables from PDO
// payloads. Mappings come from an external object-dictionary parser and
// are treated as read-only.
package pdo

import (
	"encoding/hex"
	"fmt"
	"strconv"
)

// Entry is one mapped variable: object-dictionary address plus its
// width in bits inside the PDO payload.
type Entry struct {
	Index     uint16
	Subindex  uint8
	Name      string
	BitLength int
}

// Mapping is the ordered variable layout of one PDO.
type Mapping struct {
	CobID   uint16
	Entries []Entry
}

// Value is one decoded field. Fields at most 32 bits wide decode to U32;
// wider fields keep their raw bytes and render as hex. OK is false when
// the payload ended before the field.
type Value struct {
	Entry Entry
	U32   uint32
	Bytes []byte
	OK    bool
}

func (v Value) String() string {
	if !v.OK {
		return "n/a"
	}
	if v.Bytes != nil {
		return "0x" + hex.EncodeToString(v.Bytes)
	}
	return strconv.FormatUint(uint64(v.U32), 10)
}

func (v Value) GoString() string {
	return fmt.Sprintf("pdo.Value{%04X:%02X %s}", v.Entry.Index, v.Entry.Subindex, v)
}

// Decode walks the mapping with a running bit offset from 0 and
// extracts each field from data. The offset advances by the declared
// bit length whether or not the field could be extracted, so one field
// running past the payload never desynchronizes the rest.
//
// Widths of 16 and 32 bits assume byte alignment, reading little-endian
// from the byte containing the offset; this mirrors the adapter
// firmware's layout, where wide fields are always byte aligned.
func Decode(m Mapping, data []byte) []Value {
	out := make([]Value, 0, len(m.Entries))
	offset := 0
	for _, e := range m.Entries {
		out = append(out, extract(e, data, offset))
		offset += e.BitLength
	}
	return out
}

func extract(e Entry, data []byte, offset int) Value {
	v := Value{Entry: e}
	if e.BitLength <= 0 {
		return v
	}
	start := offset / 8
	if start >= len(data) {
		return v
	}

	switch {
	case e.BitLength <= 8:
		raw := uint32(data[start])
		if e.BitLength < 8 {
			shift := offset % 8
			mask := uint32(1)<<e.BitLength - 1
			raw = raw >> shift & mask
		}
		v.U32, v.OK = raw, true
	case e.BitLength <= 16:
		// Wide fields are assumed byte aligned; both bytes must be
		// present.
		if start+1 >= len(data) {
			return v
		}
		v.U32 = uint32(data[start]) | uint32(data[start+1])<<8
		v.OK = true
	case e.BitLength <= 32:
		// Clip to the available payload.
		var raw uint32
		for i := 0; i < 4 && start+i < len(data); i++ {
			raw |= uint32(data[start+i]) << (8 * i)
		}
		v.U32, v.OK = raw, true
	default:
		n := (e.BitLength + 7) / 8
		if start+n > len(data) {
			n = len(data) - start
		}
		raw := make([]byte, n)
		copy(raw, data[start:start+n])
		v.Bytes, v.OK = raw, true
	}
	return v
}
