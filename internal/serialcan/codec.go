package serialcan

import "encoding/binary"

// Dialect names accepted in configuration.
const (
	DialectLengthNibble = "length-nibble"
	DialectControlFlags = "control-flags"
)

// A Codec maps between a Frame and its wire bytes for one control-byte
// dialect. Encode rejects unencodable frames synchronously; it never
// truncates.
type Codec interface {
	Name() string
	Encode(f Frame) ([]byte, error)

	// decode parses one frame from the front of window, which always
	// begins with StartByte. It returns the bytes consumed on success,
	// errShortWindow when the window is not yet complete, or a framing
	// error when the window is complete but invalid.
	decode(window []byte) (Frame, int, error)
}

// ForDialect returns the codec for a configured dialect name.
func ForDialect(name string) (Codec, error) {
	switch name {
	case DialectLengthNibble:
		return LengthNibbleCodec{}, nil
	case DialectControlFlags:
		return ControlFlagsCodec{}, nil
	}
	return nil, ErrUnknownDialect
}

// LengthNibbleCodec is the older adapter dialect: the control byte
// carries only the payload length in its low nibble, the high nibble is
// ignored, and the identifier is always 2 bytes little-endian. Extended
// and remote frames are not representable.
type LengthNibbleCodec struct{}

func (LengthNibbleCodec) Name() string { return DialectLengthNibble }

func (LengthNibbleCodec) Encode(f Frame) ([]byte, error) {
	if len(f.Data) > MaxPayload {
		return nil, ErrPayloadTooLarge
	}
	if f.Extended || f.Remote {
		return nil, ErrFrameUnsupported
	}
	buf := make([]byte, 0, 4+len(f.Data)+1)
	buf = append(buf, StartByte, byte(len(f.Data)&0x0F))
	buf = binary.LittleEndian.AppendUint16(buf, f.StandardID())
	buf = append(buf, f.Data...)
	buf = append(buf, TrailerByte)
	return buf, nil
}

func (LengthNibbleCodec) decode(window []byte) (Frame, int, error) {
	if len(window) < 2 {
		return Frame{}, 0, errShortWindow
	}
	n := int(window[1] & 0x0F)
	if n > MaxPayload {
		return Frame{}, 0, ErrBadControl
	}
	total := 4 + n + 1
	if len(window) < total {
		return Frame{}, 0, errShortWindow
	}
	if window[total-1] != TrailerByte {
		return Frame{}, 0, ErrBadTrailer
	}
	id := uint32(binary.LittleEndian.Uint16(window[2:4]))
	data := make([]byte, n)
	copy(data, window[4:4+n])
	return Frame{ID: id & MaskStandardID, Data: data}, total, nil
}

// ControlFlagsCodec is the newer adapter dialect: the control byte is
// 0xC0 with bit 5 for extended identifiers, bit 4 for remote frames and
// the payload length in the low nibble. Extended frames carry a 4-byte
// little-endian identifier.
type ControlFlagsCodec struct{}

const (
	controlBase     byte = 0xC0
	controlExtended byte = 0x20
	controlRemote   byte = 0x10
)

func (ControlFlagsCodec) Name() string { return DialectControlFlags }

func (ControlFlagsCodec) Encode(f Frame) ([]byte, error) {
	if len(f.Data) > MaxPayload {
		return nil, ErrPayloadTooLarge
	}
	control := controlBase | byte(len(f.Data)&0x0F)
	if f.Extended {
		control |= controlExtended
	}
	if f.Remote {
		control |= controlRemote
	}
	buf := make([]byte, 0, 6+len(f.Data)+1)
	buf = append(buf, StartByte, control)
	if f.Extended {
		buf = binary.LittleEndian.AppendUint32(buf, f.ID&MaskExtendedID)
	} else {
		buf = binary.LittleEndian.AppendUint16(buf, f.StandardID())
	}
	buf = append(buf, f.Data...)
	buf = append(buf, TrailerByte)
	return buf, nil
}

func (ControlFlagsCodec) decode(window []byte) (Frame, int, error) {
	if len(window) < 2 {
		return Frame{}, 0, errShortWindow
	}
	control := window[1]
	if control&controlBase != controlBase {
		return Frame{}, 0, ErrBadControl
	}
	n := int(control & 0x0F)
	if n > MaxPayload {
		return Frame{}, 0, ErrBadControl
	}
	extended := control&controlExtended != 0
	idLen := 2
	if extended {
		idLen = 4
	}
	total := 2 + idLen + n + 1
	if len(window) < total {
		return Frame{}, 0, errShortWindow
	}
	if window[total-1] != TrailerByte {
		return Frame{}, 0, ErrBadTrailer
	}
	var id uint32
	if extended {
		id = binary.LittleEndian.Uint32(window[2:6]) & MaskExtendedID
	} else {
		id = uint32(binary.LittleEndian.Uint16(window[2:4])) & MaskStandardID
	}
	data := make([]byte, n)
	copy(data, window[2+idLen:2+idLen+n])
	return Frame{
		ID:       id,
		Data:     data,
		Extended: extended,
		Remote:   control&controlRemote != 0,
	}, total, nil
}
