package cache

import "encoding/json"

// Codec converts orchestrated result values to and from the byte payloads a
// shared Store holds.
type Codec interface {
	// Encode serializes a value for storage.
	Encode(v any) ([]byte, error)

	// Decode deserializes a stored payload.
	Decode(data []byte) (any, error)
}

// JSONCodec is a Codec using encoding/json. Decoded values carry JSON's
// generic shapes (map[string]any, []any, float64, string, bool, nil).
type JSONCodec struct{}

// Encode serializes a value as JSON.
func (JSONCodec) Encode(v any) ([]byte, error) {
	return json.Marshal(v)
}

// Decode deserializes a JSON payload.
func (JSONCodec) Decode(data []byte) (any, error) {
	var v any
	if err := json.Unmarshal(data, &v); err != nil {
		return nil, err
	}
	return v, nil
}

// Ensure JSONCodec implements Codec
var _ Codec = JSONCodec{}
