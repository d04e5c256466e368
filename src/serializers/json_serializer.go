package serializers

import (
	"encoding/json"
	"fmt"

	"market-collector/src/interfaces"
)

// -----------------------------------------------------------------------------

// JSONSerializer encodes control-plane messages and spill records as compact
// JSON. Decode errors name the target type, which is what the collector logs
// when it skips a malformed queue entry.
type JSONSerializer struct{}

// NewJSONSerializer returns the serializer behind its interface.
func NewJSONSerializer() interfaces.ISerializer {
	return &JSONSerializer{}
}

// -----------------------------------------------------------------------------

// Marshal encodes obj as compact JSON.
func (j *JSONSerializer) Marshal(obj any) ([]byte, error) {
	data, err := json.Marshal(obj)
	if err != nil {
		return nil, fmt.Errorf("failed to encode %T: %w", obj, err)
	}
	return data, nil
}

// Unmarshal decodes data into obj.
func (j *JSONSerializer) Unmarshal(data []byte, obj any) error {
	if err := json.Unmarshal(data, obj); err != nil {
		return fmt.Errorf("failed to decode %T: %w", obj, err)
	}
	return nil
}
