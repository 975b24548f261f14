// Package codec provides a msgpack-backed implementation of
// wire.Codec, the injected serializer used by the framed wire buffer.
//
// msgpack was chosen because it is a self-describing binary encoding
// (the spec's requirement for the injected codec: "the core is
// codec-agnostic as long as the codec can answer 'byte size of this
// message' before serialization") and because vmihailenco/msgpack/v5
// already sits in this module's dependency graph as the encoding bun
// uses for jsonb-tagged columns; reusing it here means the wire
// encoding and the persisted-state encoding share one library.
package codec
