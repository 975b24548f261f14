package wire

import "encoding/binary"

// Reader is a read-only cursor view over a byte slice produced by a
// Buffer (or received directly off the wire). It tracks a (data, next,
// end) triple: next advances as frames are parsed, and next never
// exceeds end.
type Reader struct {
	data  []byte
	next  int
	end   int
	codec Codec
}

// NewReader wraps data for framed reading, starting at offset 0.
func NewReader(data []byte, codec Codec) *Reader {
	return &Reader{data: data, next: 0, end: len(data), codec: codec}
}

// Remaining returns the number of unconsumed bytes.
func (r *Reader) Remaining() int {
	return r.end - r.next
}

// ParseLength reads the 4-byte big-endian length header at the current
// position and advances past it, returning the declared payload
// length. It fails with ErrShortHeader (wrapped as ErrFrameCorrupt) if
// fewer than 4 bytes remain.
func (r *Reader) ParseLength() (int, error) {
	if r.Remaining() < headerSize {
		return 0, ErrShortHeader
	}
	length := binary.BigEndian.Uint32(r.data[r.next : r.next+headerSize])
	r.next += headerSize
	return int(length), nil
}

// Parse reads exactly length bytes (as most recently returned by
// ParseLength) and decodes them into msg via the injected Codec.
//
// Parse fails with ErrFrameCorrupt if length exceeds the remaining
// bytes, or if the codec fails to decode the payload.
func (r *Reader) Parse(length int, msg any) error {
	if length < 0 || length > r.Remaining() {
		return ErrFrameCorrupt
	}
	payload := r.data[r.next : r.next+length]
	if err := r.codec.Unmarshal(payload, msg); err != nil {
		return ErrFrameCorrupt
	}
	r.next += length
	return nil
}
