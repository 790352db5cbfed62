package types

import (
	"encoding/json"
	"fmt"
)

// Text renders an arbitrary team output as text. Strings pass through,
// nil becomes "", and everything else is JSON-encoded with a fmt fallback.
func Text(v any) string {
	switch t := v.(type) {
	case nil:
		return ""
	case string:
		return t
	case []byte:
		return string(t)
	case fmt.Stringer:
		return t.String()
	}
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Sprint(v)
	}
	return string(data)
}
