package translate

import (
	"encoding/json"
	"fmt"

	"gorm.io/datatypes"
)

var jsonNull = json.RawMessage("null")

// readJSON exposes a stored blob as raw JSON. Empty or malformed blobs read
// as null.
func readJSON(b datatypes.JSON) json.RawMessage {
	if len(b) == 0 || !json.Valid(b) {
		return jsonNull
	}
	out := make(json.RawMessage, len(b))
	copy(out, b)
	return out
}

func setJSON(out map[string]any, col string, v json.RawMessage) error {
	if v == nil {
		return nil
	}
	if !json.Valid(v) {
		return fmt.Errorf("%s: %w", col, ErrInvalidJSON)
	}
	out[col] = datatypes.JSON(append([]byte(nil), v...))
	return nil
}
