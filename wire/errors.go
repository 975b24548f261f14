package wire

import (
	"errors"
	"fmt"
)

var (
	// ErrFrameTooLarge is returned when serializing a message would grow
	// the buffer past its configured hard limit.
	ErrFrameTooLarge = errors.New("wire: frame exceeds hard size limit")

	// ErrFrameCorrupt is returned when a Reader cannot parse a valid
	// frame: the length header is missing, the declared length exceeds
	// the remaining bytes, or the codec failed to decode the payload.
	ErrFrameCorrupt = errors.New("wire: frame corrupt")

	// ErrShortHeader is a more specific ErrFrameCorrupt cause: fewer
	// than 4 bytes remain where a length header was expected.
	ErrShortHeader = fmt.Errorf("%w: short length header", ErrFrameCorrupt)
)
