package speechv1

import (
	"encoding/json"

	"google.golang.org/grpc/encoding"
)

// Name is the content-subtype this codec registers under; clients must
// dial with grpc.CallContentSubtype(speechv1.Name) (or the server must be
// the only codec registered) to use it in place of the default proto
// codec, since nothing in this repo hand-forges protobuf descriptor
// bytes.
const Name = "json"

type jsonCodec struct{}

func (jsonCodec) Marshal(v interface{}) ([]byte, error) { return json.Marshal(v) }

func (jsonCodec) Unmarshal(data []byte, v interface{}) error { return json.Unmarshal(data, v) }

func (jsonCodec) Name() string { return Name }

func init() {
	encoding.RegisterCodec(jsonCodec{})
}
