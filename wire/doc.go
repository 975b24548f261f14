// Package wire implements the length-prefixed message framing used by
// every worker-facing exchange in the replication and query-dispatch
// subsystems: a 4-byte big-endian length header followed by a payload
// whose encoding is supplied by an injected Codec.
//
// # Overview
//
// Buffer is a write-side, append-only byte buffer with a soft
// "desired" capacity and a hard upper bound. Writes beyond the current
// capacity trigger geometric growth bounded by the hard limit; growth
// past the hard limit fails with ErrFrameTooLarge.
//
// Reader is a read-only cursor view over a byte slice. ParseLength
// reads and advances past the 4-byte header; Parse reads exactly that
// many bytes and hands them to the injected Codec for decoding.
//
// # Codec
//
// wire is deliberately agnostic to the wire encoding: callers supply a
// Codec capable of answering "how many bytes will this message take"
// before serialization, and of marshaling/unmarshaling a message to
// and from a byte slice. The codec package in this module provides a
// msgpack-backed implementation; any self-describing binary encoding
// can be substituted.
//
// # Invariants
//
// For a Reader, next <= end always holds. For a Buffer, size <=
// capacity <= hardLimit always holds. A parsed frame length never
// exceeds the number of bytes remaining in the Reader.
package wire
