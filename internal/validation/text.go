package validation

import (
	"bytes"

	"github.com/goccy/go-json"
)

// Text is a form field decoded leniently from JSON. Strings decode as-is;
// numbers and booleans keep their literal text, so 20250113 becomes
// "20250113" and fails format checks with a field message instead of
// rejecting the whole body. Objects, arrays and null decode as blank.
type Text string

func (t *Text) UnmarshalJSON(b []byte) error {
	var v any
	if err := json.Unmarshal(b, &v); err != nil {
		return err
	}
	switch s := v.(type) {
	case string:
		*t = Text(s)
	case float64, bool:
		*t = Text(bytes.TrimSpace(b))
	default:
		*t = ""
	}
	return nil
}

func (t Text) String() string { return string(t) }
