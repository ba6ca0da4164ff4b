// Package serialcan converts the byte-oriented serial adapter protocol
// into discrete CAN frames and back. Every frame on the wire is
//
//	0xAA, control, id_lo, id_hi, [id_hi2, id_hi3], data[0..n], 0x55
//
// with the payload length carried in the low nibble of the control
// byte. Two incompatible control-byte dialects exist across adapter
// firmware revisions; both are implemented behind the Codec interface.
package serialcan

import "fmt"

const (
	// StartByte opens every wire frame.
	StartByte byte = 0xAA
	// TrailerByte closes every wire frame.
	TrailerByte byte = 0x55
	// MaxPayload is the CAN payload limit.
	MaxPayload = 8
	// MaskStandardID keeps the 11 identifier bits of a standard frame.
	MaskStandardID uint32 = 0x7FF
	// MaskExtendedID keeps the 29 identifier bits of an extended frame.
	MaskExtendedID uint32 = 0x1FFFFFFF
)

// Frame is one CAN frame, immutable once produced by a Codec.
type Frame struct {
	ID       uint32
	Data     []byte
	Extended bool
	Remote   bool
}

// StandardID returns the 11-bit identifier of a standard frame.
func (f Frame) StandardID() uint16 {
	return uint16(f.ID & MaskStandardID)
}

func (f Frame) String() string {
	if f.Extended {
		return fmt.Sprintf("can %08X [%d] % X", f.ID&MaskExtendedID, len(f.Data), f.Data)
	}
	return fmt.Sprintf("can %03X [%d] % X", f.StandardID(), len(f.Data), f.Data)
}
