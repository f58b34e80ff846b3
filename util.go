package rowdb

import (
	"encoding/hex"
	"encoding/json"
)

func hexstr(b []byte) string {
	if b == nil {
		return "<nil>"
	}
	if len(b) == 0 {
		return "<empty>"
	}
	return hex.EncodeToString(b)
}

func loggableRow[T any](row *T) string {
	if row == nil {
		return "<none>"
	}
	raw, err := json.Marshal(row)
	if err != nil {
		return "<" + err.Error() + ">"
	}
	return string(raw)
}
