package txn

import (
	"net"
	"testing"

	"github.com/google/uuid"

	"github.com/mcpwatch/mcpwatch/internal/flow"
	"github.com/mcpwatch/mcpwatch/internal/httpwire"
	"github.com/mcpwatch/mcpwatch/internal/memview"
)

type fakeSink struct {
	updates []Transaction
	emitted []Transaction
}

func (f *fakeSink) Update(t Transaction) { f.updates = append(f.updates, t) }
func (f *fakeSink) Emit(t Transaction)   { f.emitted = append(f.emitted, t) }

func testKey() flow.Key {
	return flow.NewKey(
		flow.Endpoint{IP: net.ParseIP("10.0.0.1"), Port: 55000},
		flow.Endpoint{IP: net.ParseIP("10.0.0.2"), Port: 443},
	)
}

func feedAll(t *testing.T, bidiID uuid.UUID, key flow.Key, role httpwire.Role, events []httpwire.Event) []flow.Event {
	t.Helper()
	out := make([]flow.Event, len(events))
	for i, e := range events {
		out[i] = flow.Event{Key: key, BidiID: bidiID, Kind: flow.Data, Role: role, HTTP: e}
	}
	return out
}

func TestCorrelatorPlainRequestResponse(t *testing.T) {
	sink := &fakeSink{}
	c := NewCorrelator(sink, noopLogger())

	key := testKey()
	bidiID := uuid.New()

	reqParser := httpwire.NewRequestParser()
	reqEvents := reqParser.Feed(memview.New([]byte(
		"POST /msg HTTP/1.1\r\nContent-Length: 13\r\n\r\n{\"hello\":\"w\"}")), false)

	respParser := httpwire.NewResponseParser()
	respEvents := respParser.Feed(memview.New([]byte(
		"HTTP/1.1 200 OK\r\nContent-Length: 2\r\n\r\nok")), false)

	for _, e := range feedAll(t, bidiID, key, httpwire.RoleRequest, reqEvents) {
		c.handle(e)
	}
	for _, e := range feedAll(t, bidiID, key, httpwire.RoleResponse, respEvents) {
		c.handle(e)
	}

	if len(sink.emitted) != 1 {
		t.Fatalf("len(emitted) = %d, want 1", len(sink.emitted))
	}
	txn := sink.emitted[0]
	if txn.State != Complete {
		t.Fatalf("State = %v, want Complete", txn.State)
	}
	if txn.Request.Method != "POST" || txn.Request.Target != "/msg" {
		t.Fatalf("unexpected request: %+v", txn.Request)
	}
	if string(txn.Request.Body) != "{\n  \"hello\": \"w\"\n}" {
		t.Fatalf("unexpected beautified request body: %q", txn.Request.Body)
	}
	if string(txn.Response.Body) != "ok" {
		t.Fatalf("unexpected response body: %q", txn.Response.Body)
	}
}

func TestCorrelatorSSEStreaming(t *testing.T) {
	sink := &fakeSink{}
	c := NewCorrelator(sink, noopLogger())

	key := testKey()
	bidiID := uuid.New()

	reqParser := httpwire.NewRequestParser()
	reqEvents := reqParser.Feed(memview.New([]byte("GET /sse HTTP/1.1\r\nHost: x\r\n\r\n")), false)
	for _, e := range feedAll(t, bidiID, key, httpwire.RoleRequest, reqEvents) {
		c.handle(e)
	}

	respParser := httpwire.NewResponseParser()
	respEvents := respParser.Feed(memview.New([]byte(
		"HTTP/1.1 200 OK\r\nContent-Type: text/event-stream\r\n\r\n: ping\n\n")), false)
	for _, e := range feedAll(t, bidiID, key, httpwire.RoleResponse, respEvents) {
		c.handle(e)
	}

	if len(sink.updates) == 0 {
		t.Fatalf("expected at least one incremental Update")
	}
	last := sink.updates[len(sink.updates)-1]
	if last.State != Streaming {
		t.Fatalf("State = %v, want Streaming", last.State)
	}
	if len(last.Response.SSE) != 1 || last.Response.SSE[0].Kind != httpwire.SSEPing {
		t.Fatalf("unexpected SSE events: %+v", last.Response.SSE)
	}

	more := respParser.Feed(memview.New([]byte("data: {\"a\":1}\n\n")), false)
	for _, e := range feedAll(t, bidiID, key, httpwire.RoleResponse, more) {
		c.handle(e)
	}
	last = sink.updates[len(sink.updates)-1]
	if len(last.Response.SSE) != 2 {
		t.Fatalf("len(SSE) = %d, want 2", len(last.Response.SSE))
	}
	if string(last.Response.SSE[1].Payload) != "{\n  \"a\": 1\n}" {
		t.Fatalf("unexpected beautified SSE payload: %q", last.Response.SSE[1].Payload)
	}
	if len(sink.emitted) != 0 {
		t.Fatalf("expected no Emit before MessageEnd, got %d", len(sink.emitted))
	}
}

func TestCorrelatorPrematureNextRequest(t *testing.T) {
	sink := &fakeSink{}
	c := NewCorrelator(sink, noopLogger())

	key := testKey()
	bidiID := uuid.New()

	reqParser := httpwire.NewRequestParser()
	events := reqParser.Feed(memview.New([]byte(
		"GET /a HTTP/1.1\r\n\r\nGET /b HTTP/1.1\r\n\r\n")), false)
	for _, e := range feedAll(t, bidiID, key, httpwire.RoleRequest, events) {
		c.handle(e)
	}

	if len(sink.emitted) != 1 {
		t.Fatalf("len(emitted) = %d, want 1", len(sink.emitted))
	}
	if sink.emitted[0].Annotation != PrematureNextRequest {
		t.Fatalf("Annotation = %v, want PrematureNextRequest", sink.emitted[0].Annotation)
	}
	if sink.emitted[0].Request.Target != "/a" {
		t.Fatalf("Target = %q, want /a", sink.emitted[0].Request.Target)
	}

	respParser := httpwire.NewResponseParser()
	respEvents := respParser.Feed(memview.New([]byte("HTTP/1.1 200 OK\r\nContent-Length: 0\r\n\r\n")), false)
	for _, e := range feedAll(t, bidiID, key, httpwire.RoleResponse, respEvents) {
		c.handle(e)
	}
	if len(sink.emitted) != 2 {
		t.Fatalf("len(emitted) = %d, want 2", len(sink.emitted))
	}
	if sink.emitted[1].Request.Target != "/b" {
		t.Fatalf("second transaction should pair with /b, got %q", sink.emitted[1].Request.Target)
	}
}

func TestCorrelatorFlowClosedTruncatesPending(t *testing.T) {
	sink := &fakeSink{}
	c := NewCorrelator(sink, noopLogger())

	key := testKey()
	bidiID := uuid.New()

	reqParser := httpwire.NewRequestParser()
	events := reqParser.Feed(memview.New([]byte("GET /sse HTTP/1.1\r\n\r\n")), false)
	for _, e := range feedAll(t, bidiID, key, httpwire.RoleRequest, events) {
		c.handle(e)
	}

	c.handle(flow.Event{Key: key, BidiID: bidiID, Kind: flow.Closed})

	if len(sink.emitted) != 1 {
		t.Fatalf("len(emitted) = %d, want 1", len(sink.emitted))
	}
	if sink.emitted[0].Annotation != TruncatedByFlowClose {
		t.Fatalf("Annotation = %v, want TruncatedByFlowClose", sink.emitted[0].Annotation)
	}
}
