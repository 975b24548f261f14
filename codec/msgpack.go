package codec

import (
	"github.com/vmihailenco/msgpack/v5"

	"github.com/lsst/qserv-sub022/wire"
)

// Msgpack implements wire.Codec using vmihailenco/msgpack/v5.
//
// Size marshals the message once to determine its encoded length; this
// is the straightforward implementation of the Codec contract and is
// adequate for the request/response payload sizes exchanged with
// workers (small structs, not bulk row data).
type Msgpack struct{}

// New returns a ready-to-use msgpack wire.Codec.
func New() wire.Codec {
	return Msgpack{}
}

func (Msgpack) Size(msg any) (int, error) {
	data, err := msgpack.Marshal(msg)
	if err != nil {
		return 0, err
	}
	return len(data), nil
}

func (Msgpack) Marshal(dst []byte, msg any) ([]byte, error) {
	data, err := msgpack.Marshal(msg)
	if err != nil {
		return dst, err
	}
	return append(dst, data...), nil
}

func (Msgpack) Unmarshal(data []byte, msg any) error {
	return msgpack.Unmarshal(data, msg)
}
