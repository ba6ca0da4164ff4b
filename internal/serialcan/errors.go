package serialcan

import "errors"

var (
	ErrPayloadTooLarge  = errors.New("serialcan: payload exceeds 8 bytes")
	ErrFrameUnsupported = errors.New("serialcan: frame not representable in this dialect")
	ErrBadControl       = errors.New("serialcan: bad control byte")
	ErrBadTrailer       = errors.New("serialcan: bad trailer byte")
	ErrUnknownDialect   = errors.New("serialcan: unknown protocol dialect")

	// errShortWindow signals that the accumulator does not yet hold a
	// complete frame; the decoder waits for more bytes.
	errShortWindow = errors.New("serialcan: incomplete frame window")
)
