package server

import (
	"encoding/json"
)

// jsonCodec replaces connect's protobuf-JSON codec so handlers can use
// plain Go structs as messages.
type jsonCodec struct{}

func (jsonCodec) Name() string { return "json" }

func (jsonCodec) Marshal(v any) ([]byte, error) {
	return json.Marshal(v)
}

func (jsonCodec) Unmarshal(data []byte, v any) error {
	return json.Unmarshal(data, v)
}
