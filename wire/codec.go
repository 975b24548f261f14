package wire

// Codec is the injected serializer a Buffer and Reader use to turn a
// domain message into bytes and back. wire never inspects message
// contents directly; it only needs to know, before writing, how many
// bytes a message will occupy once marshaled.
//
// Implementations must be safe to reuse across many messages; they are
// typically stateless.
type Codec interface {
	// Size returns the number of bytes Marshal would produce for msg,
	// without mutating msg. An implementation may marshal msg to
	// measure it (codec.Msgpack does).
	Size(msg any) (int, error)

	// Marshal appends the encoding of msg to dst and returns the
	// extended slice.
	Marshal(dst []byte, msg any) ([]byte, error)

	// Unmarshal decodes exactly len(data) bytes into msg, which must be
	// a pointer to the destination type.
	Unmarshal(data []byte, msg any) error
}
