package cache

import (
	"encoding/json"
	"fmt"
	"strings"
)

// GenerateKeyWithParams joins prefix and params with ':', e.g.
// "recommendations:KRW:5".
func GenerateKeyWithParams(prefix string, params ...interface{}) string {
	var b strings.Builder
	b.WriteString(prefix)
	for _, p := range params {
		fmt.Fprintf(&b, ":%v", p)
	}
	return b.String()
}

// Strings are stored verbatim, anything else as JSON.
func encode(value interface{}) ([]byte, error) {
	if s, ok := value.(string); ok {
		return []byte(s), nil
	}
	return json.Marshal(value)
}

func decode(data []byte, dest interface{}) error {
	if strPtr, ok := dest.(*string); ok {
		*strPtr = string(data)
		return nil
	}
	return json.Unmarshal(data, dest)
}
