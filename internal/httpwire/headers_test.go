package httpwire

import "testing"

func TestHeaderListGetCaseInsensitive(t *testing.T) {
	h := HeaderList{{Name: "Content-Type", Value: "application/json"}}
	v, ok := h.Get("content-type")
	if !ok || v != "application/json" {
		t.Fatalf("Get() = %q, %v", v, ok)
	}
	if _, ok := h.Get("X-Missing"); ok {
		t.Fatalf("Get() found a header that isn't there")
	}
}

func TestHeaderListValuesReturnsAllMatches(t *testing.T) {
	h := HeaderList{
		{Name: "Set-Cookie", Value: "a=1"},
		{Name: "Set-Cookie", Value: "b=2"},
	}
	vs := h.Values("set-cookie")
	if len(vs) != 2 || vs[0] != "a=1" || vs[1] != "b=2" {
		t.Fatalf("Values() = %v", vs)
	}
}

func TestHeaderListIsChunked(t *testing.T) {
	cases := []struct {
		value string
		want  bool
	}{
		{"chunked", true},
		{"gzip, chunked", true},
		{"gzip", false},
		{"", false},
	}
	for _, c := range cases {
		h := HeaderList{{Name: "Transfer-Encoding", Value: c.value}}
		if got := h.IsChunked(); got != c.want {
			t.Fatalf("IsChunked(%q) = %v, want %v", c.value, got, c.want)
		}
	}
	if (HeaderList{}).IsChunked() {
		t.Fatalf("IsChunked() on headers without Transfer-Encoding should be false")
	}
}

func TestHeaderListIsEventStream(t *testing.T) {
	h := HeaderList{{Name: "Content-Type", Value: "text/event-stream; charset=utf-8"}}
	if !h.IsEventStream() {
		t.Fatalf("expected IsEventStream() true")
	}
	h = HeaderList{{Name: "Content-Type", Value: "application/json"}}
	if h.IsEventStream() {
		t.Fatalf("expected IsEventStream() false")
	}
}

func TestHeaderListContentLength(t *testing.T) {
	h := HeaderList{{Name: "Content-Length", Value: "1234"}}
	n, ok := h.ContentLength()
	if !ok || n != 1234 {
		t.Fatalf("ContentLength() = %d, %v", n, ok)
	}
	h = HeaderList{{Name: "Content-Length", Value: "not-a-number"}}
	if _, ok := h.ContentLength(); ok {
		t.Fatalf("ContentLength() should reject non-numeric values")
	}
	if _, ok := (HeaderList{}).ContentLength(); ok {
		t.Fatalf("ContentLength() should report absent when header is missing")
	}
}

func TestIsHopByHop(t *testing.T) {
	cases := []struct {
		name string
		want bool
	}{
		{"Connection", true},
		{"TRANSFER-ENCODING", true},
		{"upgrade", true},
		{"Content-Type", false},
		{"Set-Cookie", false},
	}
	for _, c := range cases {
		if got := IsHopByHop(c.name); got != c.want {
			t.Fatalf("IsHopByHop(%q) = %v, want %v", c.name, got, c.want)
		}
	}
}
