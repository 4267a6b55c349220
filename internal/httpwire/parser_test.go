package httpwire

import (
	"testing"

	"github.com/mcpwatch/mcpwatch/internal/memview"
)

func kinds(events []Event) []EventKind {
	out := make([]EventKind, len(events))
	for i, e := range events {
		out[i] = e.Kind
	}
	return out
}

func assertKinds(t *testing.T, got []Event, want ...EventKind) {
	t.Helper()
	gk := kinds(got)
	if len(gk) != len(want) {
		t.Fatalf("got %v, want %v", gk, want)
	}
	for i := range want {
		if gk[i] != want[i] {
			t.Fatalf("got %v, want %v", gk, want)
		}
	}
}

func TestParserRequestNoBody(t *testing.T) {
	p := NewRequestParser()
	events := p.Feed(memview.New([]byte("GET / HTTP/1.1\r\nHost: example.com\r\n\r\n")), false)
	assertKinds(t, events, RequestStart, HeaderEvent, HeadersEnd, MessageEnd)
	if events[0].Method != "GET" || events[0].Target != "/" {
		t.Fatalf("unexpected RequestStart: %+v", events[0])
	}
	if events[1].Header.Name != "Host" || events[1].Header.Value != "example.com" {
		t.Fatalf("unexpected header: %+v", events[1].Header)
	}
	if events[2].Mode != Empty {
		t.Fatalf("Mode = %v, want Empty", events[2].Mode)
	}
}

func TestParserRequestWithContentLength(t *testing.T) {
	p := NewRequestParser()
	events := p.Feed(memview.New([]byte("POST /submit HTTP/1.1\r\nContent-Length: 5\r\n\r\nhello")), false)
	assertKinds(t, events, RequestStart, HeaderEvent, HeadersEnd, BodyChunk, MessageEnd)
	if string(events[3].Body) != "hello" {
		t.Fatalf("Body = %q, want %q", events[3].Body, "hello")
	}
}

func TestParserResponseWithReasonPhrase(t *testing.T) {
	p := NewResponseParser()
	events := p.Feed(memview.New([]byte("HTTP/1.1 404 Not Found\r\nContent-Length: 0\r\n\r\n")), false)
	assertKinds(t, events, ResponseStart, HeaderEvent, HeadersEnd, MessageEnd)
	if events[0].StatusCode != 404 || events[0].Reason != "Not Found" {
		t.Fatalf("unexpected ResponseStart: %+v", events[0])
	}
}

func TestParserResponse204HasEmptyBodyDespiteContentLength(t *testing.T) {
	p := NewResponseParser()
	events := p.Feed(memview.New([]byte("HTTP/1.1 204 No Content\r\nContent-Length: 10\r\n\r\n")), false)
	assertKinds(t, events, ResponseStart, HeaderEvent, HeadersEnd, MessageEnd)
	if events[2].Mode != Empty {
		t.Fatalf("Mode = %v, want Empty", events[2].Mode)
	}
}

func TestParserResponseHeadMethodHintForcesEmptyBody(t *testing.T) {
	p := NewResponseParser()
	p.MethodHint = func() (string, bool) { return "HEAD", true }
	events := p.Feed(memview.New([]byte("HTTP/1.1 200 OK\r\nContent-Length: 1000\r\n\r\n")), false)
	assertKinds(t, events, ResponseStart, HeaderEvent, HeadersEnd, MessageEnd)
	if events[2].Mode != Empty {
		t.Fatalf("Mode = %v, want Empty", events[2].Mode)
	}
}

func TestParserChunkedBody(t *testing.T) {
	p := NewRequestParser()
	raw := "POST / HTTP/1.1\r\nTransfer-Encoding: chunked\r\n\r\n" +
		"5\r\nhello\r\n" +
		"6\r\n world\r\n" +
		"0\r\n\r\n"
	events := p.Feed(memview.New([]byte(raw)), false)
	assertKinds(t, events, RequestStart, HeaderEvent, HeadersEnd, BodyChunk, BodyChunk, MessageEnd)
	if string(events[3].Body) != "hello" || string(events[4].Body) != " world" {
		t.Fatalf("unexpected chunk bodies: %q %q", events[3].Body, events[4].Body)
	}
}

func TestParserChunkedBodyWithTrailers(t *testing.T) {
	p := NewRequestParser()
	raw := "POST / HTTP/1.1\r\nTransfer-Encoding: chunked\r\n\r\n" +
		"3\r\nfoo\r\n" +
		"0\r\nX-Checksum: abc\r\n\r\n"
	events := p.Feed(memview.New([]byte(raw)), false)
	assertKinds(t, events, RequestStart, HeaderEvent, HeadersEnd, BodyChunk, HeaderEvent, MessageEnd)
	if events[4].Header.Name != "X-Checksum" || events[4].Header.Value != "abc" {
		t.Fatalf("unexpected trailer: %+v", events[4].Header)
	}
}

func TestParserUntilCloseBodyEndsOnHalfClose(t *testing.T) {
	p := NewResponseParser()
	events := p.Feed(memview.New([]byte("HTTP/1.1 200 OK\r\n\r\nsome trailing bytes")), false)
	assertKinds(t, events, ResponseStart, HeadersEnd, BodyChunk)

	more := p.Feed(memview.New(nil), true)
	assertKinds(t, more, MessageEnd)
	if !p.Done() {
		t.Fatalf("expected parser to be Done after half-close")
	}
	if p.Desynchronized() {
		t.Fatalf("half-close completion must not be reported as Desynchronized")
	}
}

func TestParserEventStreamBody(t *testing.T) {
	p := NewResponseParser()
	raw := "HTTP/1.1 200 OK\r\nContent-Type: text/event-stream\r\n\r\n" +
		"data: {\"jsonrpc\":\"2.0\",\"id\":1}\n\n"
	events := p.Feed(memview.New([]byte(raw)), false)
	assertKinds(t, events, ResponseStart, HeaderEvent, HeadersEnd, SseEvent)
	if events[3].SSE.Kind != SSEData {
		t.Fatalf("SSE Kind = %v, want SSEData", events[3].SSE.Kind)
	}
	if string(events[3].SSE.Payload) != `{"jsonrpc":"2.0","id":1}` {
		t.Fatalf("unexpected SSE payload: %q", events[3].SSE.Payload)
	}

	more := p.Feed(memview.New([]byte("data: {\"id\":2}\n\n")), false)
	assertKinds(t, more, SseEvent)

	final := p.Feed(memview.New(nil), true)
	assertKinds(t, final, MessageEnd)
	if !p.Done() {
		t.Fatalf("expected parser to be Done after event-stream half-close")
	}
}

func TestParserObsFoldHeaderContinuation(t *testing.T) {
	p := NewRequestParser()
	raw := "GET / HTTP/1.1\r\nX-Long: first\r\n second\r\n\r\n"
	events := p.Feed(memview.New([]byte(raw)), false)
	assertKinds(t, events, RequestStart, HeaderEvent, HeadersEnd, MessageEnd)
	if events[1].Header.Value != "first second" {
		t.Fatalf("Value = %q, want %q", events[1].Header.Value, "first second")
	}
}

func TestParserMalformedStartLineAfterFirstMessageDesyncs(t *testing.T) {
	p := NewRequestParser()
	events := p.Feed(memview.New([]byte("GET / HTTP/1.1\r\n\r\nNOTAMETHOD garbage\r\n")), false)
	var sawErr bool
	for _, e := range events {
		if e.Kind == ParseError {
			sawErr = true
		}
	}
	if !sawErr {
		t.Fatalf("expected a ParseError event, got %v", kinds(events))
	}
	if !p.Desynchronized() {
		t.Fatalf("expected Desynchronized after malformed start-line")
	}
}

func TestParserTwoRequestsBackToBack(t *testing.T) {
	p := NewRequestParser()
	raw := "GET /a HTTP/1.1\r\n\r\n" + "GET /b HTTP/1.1\r\n\r\n"
	events := p.Feed(memview.New([]byte(raw)), false)
	assertKinds(t, events, RequestStart, HeadersEnd, MessageEnd, RequestStart, HeadersEnd, MessageEnd)
	if events[0].Target != "/a" || events[3].Target != "/b" {
		t.Fatalf("unexpected targets: %q, %q", events[0].Target, events[3].Target)
	}
}

// TestParserResumableAcrossArbitrarySegmentation feeds the same request
// split every possible way into three pieces and checks that, once the
// consecutive BodyChunk events (one per arrival of body bytes) are joined,
// the event sequence is identical regardless of how the bytes arrived.
func TestParserResumableAcrossArbitrarySegmentation(t *testing.T) {
	raw := "POST /x HTTP/1.1\r\nContent-Length: 4\r\n\r\nabcd"
	for mvs := range segment(raw) {
		p := NewRequestParser()
		var raws []Event
		for i, mv := range mvs {
			raws = append(raws, p.Feed(mv, i == len(mvs)-1)...)
		}
		var events []Event
		for _, e := range raws {
			if e.Kind == BodyChunk && len(events) > 0 && events[len(events)-1].Kind == BodyChunk {
				events[len(events)-1].Body = append(events[len(events)-1].Body, e.Body...)
				continue
			}
			events = append(events, e)
		}
		assertKinds(t, events, RequestStart, HeaderEvent, HeadersEnd, BodyChunk, MessageEnd)
		if string(events[3].Body) != "abcd" {
			t.Fatalf("input=%s: Body = %q, want %q", dump(mvs), events[3].Body, "abcd")
		}
	}
}

func TestParserLeadingGarbageToleratedBeforeFirstMessage(t *testing.T) {
	p := NewRequestParser()
	raw := "some stray bytes from mid-capture\r\nGET / HTTP/1.1\r\n\r\n"
	events := p.Feed(memview.New([]byte(raw)), false)
	assertKinds(t, events, RequestStart, HeadersEnd, MessageEnd)
}
