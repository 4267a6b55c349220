package httpwire

import (
	"strings"

	"github.com/mcpwatch/mcpwatch/internal/sets"
)

// hopByHopHeaders names the connection-scoped headers defined by RFC 7230
// §6.1. They describe the TCP hop between the client and server we happened
// to observe, not the request/response semantics, so the renderer omits
// them from its printed header block.
var hopByHopHeaders = sets.NewSet(
	"connection",
	"keep-alive",
	"proxy-authenticate",
	"proxy-authorization",
	"te",
	"trailer",
	"transfer-encoding",
	"upgrade",
)

// HeaderList is an ordered collection of header fields as seen on the wire.
// Lookups are case-insensitive; Set-Cookie is never collapsed since every
// occurrence carries an independent cookie.
type HeaderList []Header

// IsHopByHop reports whether name is a connection-scoped header that
// describes the observed TCP hop rather than request/response semantics.
func IsHopByHop(name string) bool {
	return hopByHopHeaders.Get(strings.ToLower(name)).IsSome()
}

// Get returns the value of the first header matching name, case-insensitive.
func (h HeaderList) Get(name string) (string, bool) {
	for _, hdr := range h {
		if strings.EqualFold(hdr.Name, name) {
			return hdr.Value, true
		}
	}
	return "", false
}

// Values returns every value for headers matching name, case-insensitive, in
// wire order. Used for Set-Cookie and other multi-valued headers.
func (h HeaderList) Values(name string) []string {
	var out []string
	for _, hdr := range h {
		if strings.EqualFold(hdr.Name, name) {
			out = append(out, hdr.Value)
		}
	}
	return out
}

// IsChunked reports whether Transfer-Encoding names "chunked".
func (h HeaderList) IsChunked() bool {
	v, ok := h.Get("Transfer-Encoding")
	if !ok {
		return false
	}
	for _, tok := range strings.Split(v, ",") {
		if strings.EqualFold(strings.TrimSpace(tok), "chunked") {
			return true
		}
	}
	return false
}

// IsEventStream reports whether Content-Type begins with text/event-stream.
func (h HeaderList) IsEventStream() bool {
	v, ok := h.Get("Content-Type")
	if !ok {
		return false
	}
	return strings.HasPrefix(strings.TrimSpace(v), "text/event-stream")
}

// ContentLength returns the parsed Content-Length, if present and valid.
func (h HeaderList) ContentLength() (int64, bool) {
	v, ok := h.Get("Content-Length")
	if !ok {
		return 0, false
	}
	v = strings.TrimSpace(v)
	if v == "" {
		return 0, false
	}
	var n int64
	for _, c := range []byte(v) {
		if c < '0' || c > '9' {
			return 0, false
		}
		n = n*10 + int64(c-'0')
	}
	return n, true
}
