package store

import "encoding/json"

// marshalJSON serializes a document-shaped field for a JSON column.
func marshalJSON(v any) (string, error) {
	raw, err := json.Marshal(v)
	if err != nil {
		return "", err
	}
	return string(raw), nil
}

// unmarshalJSON decodes a JSON column into its typed field. An empty
// column decodes to the zero value rather than erroring, so rows
// written by older schema versions stay readable.
func unmarshalJSON(data string, v any) error {
	if data == "" {
		return nil
	}
	return json.Unmarshal([]byte(data), v)
}
