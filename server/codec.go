package server

import "encoding/json"

// JSONCodec serializes Connect messages with encoding/json so the plain
// engine.Request and engine.Reply structs can travel without generated
// protobuf types. It registers under the "json" name, replacing Connect's
// protojson codec.
type JSONCodec struct{}

func (JSONCodec) Name() string { return "json" }

func (JSONCodec) Marshal(message any) ([]byte, error) {
	return json.Marshal(message)
}

func (JSONCodec) Unmarshal(data []byte, message any) error {
	return json.Unmarshal(data, message)
}
