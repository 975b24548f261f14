package wire

import (
	"encoding/binary"
	"fmt"

	"github.com/dustin/go-humanize"
)

const headerSize = 4

// DefaultDesiredCapacity is the soft capacity a Buffer grows toward
// before it starts paying the cost of oversized allocations for very
// large messages. It does not bound the buffer; HardLimit does.
const DefaultDesiredCapacity = 2 << 20 // ~2 MiB

// DefaultHardLimit is the absolute ceiling a Buffer will never grow
// past. A serialize call that would exceed it fails with
// ErrFrameTooLarge instead of allocating further.
const DefaultHardLimit = 64 << 20 // ~64 MiB

// Buffer is an append-only, growable byte buffer used to serialize
// framed messages: a 4-byte big-endian length header followed by a
// codec-encoded payload.
//
// A Buffer is not safe for concurrent use. Its callers in this module
// (the root package's operation.send and registry.QueryFanout) build
// one Buffer per outbound message and hand the messenger a copy of its
// bytes, never the Buffer itself.
type Buffer struct {
	data    []byte
	desired int
	hard    int
	codec   Codec
}

// NewBuffer creates a Buffer with the given initial capacity, desired
// soft limit, hard limit, and injected Codec. A zero desired or hard
// limit falls back to the package defaults.
func NewBuffer(initialCapacity, desired, hard int, codec Codec) *Buffer {
	if desired <= 0 {
		desired = DefaultDesiredCapacity
	}
	if hard <= 0 {
		hard = DefaultHardLimit
	}
	if initialCapacity > hard {
		initialCapacity = hard
	}
	return &Buffer{
		data:    make([]byte, 0, initialCapacity),
		desired: desired,
		hard:    hard,
		codec:   codec,
	}
}

// Len returns the number of bytes currently held in the buffer.
func (b *Buffer) Len() int {
	return len(b.data)
}

// Cap returns the buffer's current allocated capacity.
func (b *Buffer) Cap() int {
	return cap(b.data)
}

// Bytes returns the buffer's contents. The returned slice aliases the
// buffer's internal storage and must be treated as read-only by the
// caller; it is only valid until the next Serialize or Reset call.
func (b *Buffer) Bytes() []byte {
	return b.data
}

// Reset empties the buffer while preserving its allocated capacity.
func (b *Buffer) Reset() {
	b.data = b.data[:0]
}

// Serialize encodes msg as a length-prefixed frame and appends it to
// the buffer, growing the backing storage geometrically as needed.
//
// Growth is bounded by the hard limit: if the payload plus header
// would not fit even after growing to the hard limit, Serialize fails
// with ErrFrameTooLarge and the buffer is left unmodified.
func (b *Buffer) Serialize(msg any) error {
	size, err := b.codec.Size(msg)
	if err != nil {
		return fmt.Errorf("wire: compute payload size: %w", err)
	}
	need := len(b.data) + headerSize + size
	if err := b.grow(need); err != nil {
		return err
	}
	header := make([]byte, headerSize)
	binary.BigEndian.PutUint32(header, uint32(size))
	b.data = append(b.data, header...)
	before := len(b.data)
	b.data, err = b.codec.Marshal(b.data, msg)
	if err != nil {
		b.data = b.data[:before-headerSize]
		return fmt.Errorf("wire: marshal payload: %w", err)
	}
	return nil
}

// grow extends the backing array so that it can hold at least need
// bytes, doubling capacity (starting from the current capacity, or
// from the desired soft limit for an empty buffer) until either need
// is satisfied or the hard limit is reached.
func (b *Buffer) grow(need int) error {
	if cap(b.data) >= need {
		return nil
	}
	if need > b.hard {
		return fmt.Errorf("%w: need %s, hard limit %s",
			ErrFrameTooLarge, humanize.Bytes(uint64(need)), humanize.Bytes(uint64(b.hard)))
	}
	next := cap(b.data)
	if next == 0 {
		next = b.desired
	}
	for next < need {
		next *= 2
	}
	if next > b.hard {
		next = b.hard
	}
	grown := make([]byte, len(b.data), next)
	copy(grown, b.data)
	b.data = grown
	return nil
}
