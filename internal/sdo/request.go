package sdo

import (
	"errors"

	"github.com/danmuck/canprobe/internal/canopen"
	"github.com/danmuck/canprobe/internal/serialcan"
)

var (
	ErrInvalidSize = errors.New("sdo: unsupported value size (8/16/24/32 bits)")
	ErrInvalidNode = errors.New("sdo: node id out of range 1..127")
)

// Download-initiate command bytes by expedited payload size, and the
// upload-initiate request command.
var writeCommandBySize = map[int]byte{
	1: 0x2F,
	2: 0x2B,
	3: 0x27,
	4: 0x23,
}

const readCommand byte = 0x40

// Server command specifiers (bits 7..5 of the response byte).
const (
	scsUploadResponse   = 2
	scsDownloadResponse = 3
	scsAbort            = 4
)

// ReadRequest asks a node for the value of one object.
type ReadRequest struct {
	Node     uint8
	Index    uint16
	Subindex uint8
}

// WriteRequest writes a value of SizeBits (8, 16, 24 or 32) to one
// object via an expedited download.
type WriteRequest struct {
	Node     uint8
	Index    uint16
	Subindex uint8
	Value    uint32
	SizeBits int
}

// RawFrameRequest transmits an arbitrary frame, bypassing the SDO
// protocol. No response is tracked.
type RawFrameRequest struct {
	ID       uint32
	Data     []byte
	Extended bool
	Remote   bool
}

func validateNode(node uint8) error {
	if node < 1 || node > canopen.MaxNodeID {
		return ErrInvalidNode
	}
	return nil
}

func (r ReadRequest) frame() serialcan.Frame {
	data := make([]byte, 8)
	data[0] = readCommand
	data[1] = byte(r.Index)
	data[2] = byte(r.Index >> 8)
	data[3] = r.Subindex
	return serialcan.Frame{
		ID:   uint32(canopen.CobSDORx) + uint32(r.Node),
		Data: data,
	}
}

func (w WriteRequest) frame() (serialcan.Frame, error) {
	size := w.SizeBits / 8
	cmd, ok := writeCommandBySize[size]
	if !ok || w.SizeBits%8 != 0 {
		return serialcan.Frame{}, ErrInvalidSize
	}
	data := make([]byte, 8)
	data[0] = cmd
	data[1] = byte(w.Index)
	data[2] = byte(w.Index >> 8)
	data[3] = w.Subindex
	for i := 0; i < size; i++ {
		data[4+i] = byte(w.Value >> (8 * i))
	}
	return serialcan.Frame{
		ID:   uint32(canopen.CobSDORx) + uint32(w.Node),
		Data: data,
	}, nil
}

func (r RawFrameRequest) frame() serialcan.Frame {
	data := make([]byte, len(r.Data))
	copy(data, r.Data)
	return serialcan.Frame{
		ID:       r.ID,
		Data:     data,
		Extended: r.Extended,
		Remote:   r.Remote,
	}
}
