package llm

import (
	"encoding/json"
	"fmt"
	"time"
)

// ModelDescriptor is one entry of the server's model catalog. Name is used
// verbatim in generation requests; every other field the server sends is kept
// as opaque metadata and passed through unvalidated.
type ModelDescriptor struct {
	Name     string
	Metadata map[string]json.RawMessage
}

// UnmarshalJSON splits the "name" field from the rest of the object.
func (m *ModelDescriptor) UnmarshalJSON(data []byte) error {
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(data, &fields); err != nil {
		return err
	}

	m.Name = ""
	if raw, ok := fields["name"]; ok {
		if err := json.Unmarshal(raw, &m.Name); err != nil {
			return fmt.Errorf("model name: %w", err)
		}
		delete(fields, "name")
	}

	m.Metadata = fields
	return nil
}

// MarshalJSON writes the descriptor back in the server's shape.
func (m ModelDescriptor) MarshalJSON() ([]byte, error) {
	fields := make(map[string]json.RawMessage, len(m.Metadata)+1)
	for k, v := range m.Metadata {
		fields[k] = v
	}

	name, err := json.Marshal(m.Name)
	if err != nil {
		return nil, err
	}
	fields["name"] = name

	return json.Marshal(fields)
}

// Size returns the "size" metadata in bytes, or 0 if absent or not a number.
func (m ModelDescriptor) Size() int64 {
	var size int64
	if raw, ok := m.Metadata["size"]; ok {
		_ = json.Unmarshal(raw, &size)
	}
	return size
}

// ModifiedAt returns the "modified_at" metadata, or the zero time.
func (m ModelDescriptor) ModifiedAt() time.Time {
	var t time.Time
	if raw, ok := m.Metadata["modified_at"]; ok {
		_ = json.Unmarshal(raw, &t)
	}
	return t
}

// ListModelsResponse is the body of the catalog endpoint (/api/tags).
// Models is nil when the body has no "models" key.
type ListModelsResponse struct {
	Models []ModelDescriptor `json:"models"`
}
