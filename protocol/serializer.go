package protocol

import "encoding/json"

// Serializer defines the contract for serializing and deserializing feed payloads.
// This allows consumers to choose their preferred format (JSON, Protobuf, SBE, etc.)
// for the trade feed.
type Serializer interface {
	// Marshal serializes a Go struct (e.g. TradeEvent) into bytes.
	Marshal(v any) ([]byte, error)

	// Unmarshal deserializes bytes into a Go struct.
	// v must be a pointer to the target struct.
	Unmarshal(data []byte, v any) error
}

// DefaultJSONSerializer encodes payloads with encoding/json.
type DefaultJSONSerializer struct{}

func (DefaultJSONSerializer) Marshal(v any) ([]byte, error) {
	return json.Marshal(v)
}

func (DefaultJSONSerializer) Unmarshal(data []byte, v any) error {
	return json.Unmarshal(data, v)
}
