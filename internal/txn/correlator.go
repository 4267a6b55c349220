// Package txn pairs HTTP requests with their responses on each flow,
// manages long-lived SSE streaming transactions, and forwards completed
// (or truncated) transactions to a Sink for rendering.
package txn

import (
	"time"

	"github.com/google/uuid"
	lru "github.com/hashicorp/golang-lru/v2"
	"go.uber.org/zap"

	"github.com/mcpwatch/mcpwatch/internal/beautify"
	"github.com/mcpwatch/mcpwatch/internal/flow"
	"github.com/mcpwatch/mcpwatch/internal/httpwire"
)

// DefaultMaxFlows bounds the correlator's own flow table, as a safety valve
// independent of the demultiplexer's TCP-level teardown.
const DefaultMaxFlows = 4096

// Sink receives transaction updates from the Correlator.
type Sink interface {
	// Update is called for every SSE event dispatched while a transaction is
	// Streaming, so the renderer can append incrementally.
	Update(Transaction)
	// Emit is called exactly once per transaction, when it reaches Complete.
	Emit(Transaction)
}

type flowState struct {
	key     flow.Key
	bidiID  uuid.UUID
	pending []*Transaction

	reqBuilding  *Transaction
	respBuilding *Transaction

	lastSeen time.Time
}

// Correlator consumes flow.Events from a single goroutine (matching the
// concurrency model's "single writer, no per-flow locking") and drives
// Transactions through their lifecycle.
type Correlator struct {
	sink  Sink
	log   *zap.Logger
	flows *lru.Cache[uuid.UUID, *flowState]
}

func NewCorrelator(sink Sink, log *zap.Logger) *Correlator {
	c := &Correlator{sink: sink, log: log}
	cache, err := lru.NewWithEvict(DefaultMaxFlows, c.onEvict)
	if err != nil {
		// Only returns an error for a non-positive size, which DefaultMaxFlows
		// never is.
		panic(err)
	}
	c.flows = cache
	return c
}

func (c *Correlator) onEvict(_ uuid.UUID, fs *flowState) {
	c.closeAll(fs, TruncatedByFlowClose)
}

// MethodHint implements flow.MethodHintProvider: it reports the method of
// the oldest pending transaction on bidiID, which a response parser needs
// to recognize a HEAD response as bodyless.
func (c *Correlator) MethodHint(bidiID uuid.UUID) (string, bool) {
	fs, ok := c.flows.Peek(bidiID)
	if !ok || len(fs.pending) == 0 {
		return "", false
	}
	req := fs.pending[0].Request
	if req.Method == "" {
		return "", false
	}
	return req.Method, true
}

// Run drains events until the channel closes (the demultiplexer has shut
// down), flushing every remaining flow's pending transactions on exit.
func (c *Correlator) Run(events <-chan flow.Event) {
	for e := range events {
		c.handle(e)
	}
	for _, bidiID := range c.flows.Keys() {
		if fs, ok := c.flows.Peek(bidiID); ok {
			c.closeAll(fs, TruncatedByFlowClose)
		}
	}
}

func (c *Correlator) handle(e flow.Event) {
	if e.Kind == flow.Closed {
		if fs, ok := c.flows.Get(e.BidiID); ok {
			c.closeAll(fs, TruncatedByFlowClose)
			c.flows.Remove(e.BidiID)
		}
		return
	}

	fs, ok := c.flows.Get(e.BidiID)
	if !ok {
		fs = &flowState{key: e.Key, bidiID: e.BidiID}
		c.flows.Add(e.BidiID, fs)
	}
	fs.lastSeen = time.Now()

	if e.Role == httpwire.RoleRequest {
		c.handleRequest(fs, e.HTTP)
	} else {
		c.handleResponse(fs, e.HTTP)
	}
}

func (c *Correlator) handleRequest(fs *flowState, ev httpwire.Event) {
	switch ev.Kind {
	case httpwire.RequestStart:
		if len(fs.pending) > 0 {
			last := fs.pending[len(fs.pending)-1]
			if last.State == AwaitingResponse {
				last.Annotation = PrematureNextRequest
				last.State = Complete
				c.popAndEmit(fs, last)
			}
		}
		t := &Transaction{Key: fs.key, BidiID: fs.bidiID, State: AwaitingResponse}
		t.Request.Present = true
		t.Request.Method = ev.Method
		t.Request.Target = ev.Target
		t.Request.Version = ev.Version
		t.Request.FirstByteAt = ev.At
		fs.pending = append(fs.pending, t)
		fs.reqBuilding = t

	case httpwire.HeaderEvent:
		if fs.reqBuilding != nil {
			fs.reqBuilding.Request.appendHeader(ev.Header)
		}

	case httpwire.HeadersEnd:
		if fs.reqBuilding != nil {
			fs.reqBuilding.Request.HeadersCompleteAt = ev.At
			fs.reqBuilding.Request.BodyMode = ev.Mode
		}

	case httpwire.BodyChunk:
		if fs.reqBuilding != nil {
			fs.reqBuilding.Request.appendBody(ev.Body)
			if fs.reqBuilding.Request.isOversize() {
				fs.reqBuilding.Annotation = Oversize
			}
		}

	case httpwire.MessageEnd:
		if fs.reqBuilding != nil {
			fs.reqBuilding.Request.MessageEndAt = ev.At
			fs.reqBuilding.Request.Body = beautify.JSON(fs.reqBuilding.Request.finalizeBody())
			fs.reqBuilding = nil
		}

	case httpwire.ParseError:
		c.log.Debug("request side desynchronized", zap.String("flow", fs.key.String()), zap.String("reason", ev.Err))
	}
}

func (c *Correlator) handleResponse(fs *flowState, ev httpwire.Event) {
	switch ev.Kind {
	case httpwire.ResponseStart:
		t := c.attachTarget(fs)
		t.Response.Present = true
		t.Response.StatusCode = ev.StatusCode
		t.Response.Reason = ev.Reason
		t.Response.Version = ev.Version
		t.Response.FirstByteAt = ev.At
		fs.respBuilding = t

	case httpwire.HeaderEvent:
		if fs.respBuilding != nil {
			fs.respBuilding.Response.appendHeader(ev.Header)
		}

	case httpwire.HeadersEnd:
		if fs.respBuilding == nil {
			return
		}
		fs.respBuilding.Response.HeadersCompleteAt = ev.At
		fs.respBuilding.Response.BodyMode = ev.Mode
		if ev.Mode == httpwire.EventStream {
			fs.respBuilding.State = Streaming
			c.sink.Update(*fs.respBuilding)
		}

	case httpwire.BodyChunk:
		if fs.respBuilding != nil {
			fs.respBuilding.Response.appendBody(ev.Body)
			if fs.respBuilding.Response.isOversize() {
				fs.respBuilding.Annotation = Oversize
			}
		}

	case httpwire.SseEvent:
		if fs.respBuilding == nil {
			return
		}
		sse := ev.SSE
		if sse.Kind == httpwire.SSEData || sse.Kind == httpwire.SSENamed {
			sse.Payload = beautify.JSON(sse.Payload)
		}
		fs.respBuilding.Response.SSE = append(fs.respBuilding.Response.SSE, sse)
		c.sink.Update(*fs.respBuilding)

	case httpwire.MessageEnd:
		if fs.respBuilding == nil {
			return
		}
		t := fs.respBuilding
		t.Response.MessageEndAt = ev.At
		t.Response.Body = beautify.JSON(t.Response.finalizeBody())
		t.State = Complete
		c.popAndEmit(fs, t)
		fs.respBuilding = nil

	case httpwire.ParseError:
		c.log.Debug("response side desynchronized", zap.String("flow", fs.key.String()), zap.String("reason", ev.Err))
	}
}

// attachTarget finds the oldest pending transaction that is ready for a
// response (its request has finished, or it has none yet attached), or
// opens a BareResponse placeholder if none exists.
func (c *Correlator) attachTarget(fs *flowState) *Transaction {
	for _, t := range fs.pending {
		if !t.Response.Present && !t.Request.MessageEndAt.IsZero() {
			return t
		}
	}
	t := &Transaction{Key: fs.key, BidiID: fs.bidiID, State: AwaitingResponse, Annotation: BareResponse}
	fs.pending = append(fs.pending, t)
	return t
}

// popAndEmit removes t from fs.pending (it is usually, but not necessarily,
// the head) and emits it to the sink.
func (c *Correlator) popAndEmit(fs *flowState, t *Transaction) {
	for i, p := range fs.pending {
		if p == t {
			fs.pending = append(fs.pending[:i], fs.pending[i+1:]...)
			break
		}
	}
	c.sink.Emit(*t)
}

func (c *Correlator) closeAll(fs *flowState, annotation Annotation) {
	for _, t := range fs.pending {
		t.Annotation = annotation
		t.State = Complete
		// A truncated message may still hold pooled chunks if it never
		// reached MessageEnd; finalize releases them and keeps whatever
		// was accumulated so far.
		t.Request.finalizeBody()
		t.Response.finalizeBody()
		c.sink.Emit(*t)
	}
	fs.pending = nil
	fs.reqBuilding = nil
	fs.respBuilding = nil
}
