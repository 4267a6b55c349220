// Package beautify post-processes body and SSE payloads: JSON pretty-
// printing and identity-preserving handling of everything else.
package beautify

import (
	"bytes"
	"encoding/json"
)

// JSON attempts to pretty-print payload as JSON with a 2-space indent. If
// the first non-whitespace byte isn't '{' or '[', or the bytes don't parse
// as strict JSON, payload is returned unchanged (no heuristic beyond that
// first byte).
func JSON(payload []byte) []byte {
	trimmed := bytes.TrimLeft(payload, " \t\r\n")
	if len(trimmed) == 0 || (trimmed[0] != '{' && trimmed[0] != '[') {
		return payload
	}

	var v interface{}
	if err := json.Unmarshal(payload, &v); err != nil {
		return payload
	}

	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetIndent("", "  ")
	enc.SetEscapeHTML(false)
	if err := enc.Encode(v); err != nil {
		return payload
	}
	return bytes.TrimRight(buf.Bytes(), "\n")
}
