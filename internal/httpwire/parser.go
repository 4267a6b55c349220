package httpwire

import (
	"strconv"
	"strings"
	"time"

	"github.com/mcpwatch/mcpwatch/internal/memview"
)

type state int

const (
	stateStartLine state = iota
	stateHeaders
	stateHeadersEnd
	stateBody
	stateDesynced
	// stateDone marks a half-stream whose final message has terminated by
	// half-close (UntilClose/EventStream body modes): nothing more can
	// follow on this direction, but this is not a parse failure.
	stateDone
)

type chunkState int

const (
	chunkAwaitingSize chunkState = iota
	chunkAwaitingData
	chunkAwaitingDataCRLF
	chunkAwaitingTrailers
)

// Parser is a resumable HTTP/1.x + SSE state machine for one direction of one
// TCP flow. Feed bytes to it as they become available; it returns whatever
// Events that data was enough to produce, without waiting for the rest of
// the message to arrive.
type Parser struct {
	role Role

	buf            memview.MemView
	st             state
	sawFirstLine   bool
	garbageSkipped int64

	headers       HeaderList
	pendingHeader *Header

	method, target, version string
	statusCode              int
	reason                  string

	mode          BodyMode
	bodyRemaining int64
	bodyEmitted   int64
	chSt          chunkState
	chunkLeft     int64
	sse           *sseAssembler

	// Set on response-role parsers by the owning flow; reports the method of
	// the oldest pending transaction so HEAD responses can be recognized as
	// Empty despite carrying a Content-Length/Transfer-Encoding header.
	MethodHint func() (method string, ok bool)
}

// NewRequestParser returns a parser for the client-to-server half of a flow.
func NewRequestParser() *Parser {
	return &Parser{role: RoleRequest}
}

// NewResponseParser returns a parser for the server-to-client half of a flow.
func NewResponseParser() *Parser {
	return &Parser{role: RoleResponse}
}

// Desynchronized reports whether this side has given up parsing after
// unrecoverable framing corruption or an overflowed garbage-skip window.
func (p *Parser) Desynchronized() bool {
	return p.st == stateDesynced
}

// Done reports whether this side finished cleanly via half-close (an
// UntilClose or EventStream body that ended when the stream did) and will
// produce no further Events.
func (p *Parser) Done() bool {
	return p.st == stateDone
}

// Feed appends newly-reassembled bytes and returns every Event that could be
// produced from the parser's buffer. isEnd signals that the half-stream has
// ended (FIN observed, or the flow is being torn down); it unblocks
// UntilClose and EventStream bodies, which otherwise have no other way to
// know where the message ends.
func (p *Parser) Feed(input memview.MemView, isEnd bool) []Event {
	p.buf.Append(input)

	var events []Event
	for {
		var (
			ev         *Event
			bodyEvents []Event
			progressed bool
		)

		switch p.st {
		case stateDesynced, stateDone:
			return events
		case stateStartLine:
			ev, progressed = p.stepStartLine()
		case stateHeaders:
			ev, progressed = p.stepHeaders()
		case stateHeadersEnd:
			ev = p.stepHeadersEnd()
			progressed = true
		case stateBody:
			bodyEvents, progressed = p.stepBody(isEnd)
		}

		if ev != nil {
			events = append(events, *ev)
		}
		events = append(events, bodyEvents...)

		if !progressed {
			return events
		}
	}
}

func (p *Parser) fail(reason string) *Event {
	p.st = stateDesynced
	return &Event{Kind: ParseError, Err: reason, At: time.Now()}
}

// stepStartLine attempts to recognize a request-line or status-line at the
// front of the buffer. Before the first message on this half-stream, up to
// maxLeadingGarbageBytes of unrecognized bytes are tolerated (mid-capture
// tolerance); afterwards a malformed start-line is fatal to this side.
func (p *Parser) stepStartLine() (*Event, bool) {
	if !p.sawFirstLine {
		offset, lineLen, decision := locateLine(p.buf, p.role)
		switch decision {
		case Accept:
			if offset > maxLeadingGarbageBytes {
				return p.fail("no valid start-line within leading garbage window"), true
			}
			p.garbageSkipped = offset
			p.buf = p.buf.SubView(offset, p.buf.Len())
			return p.acceptStartLine(lineLen)
		case Reject:
			if p.buf.Len() > maxLeadingGarbageBytes {
				return p.fail("no valid start-line within leading garbage window"), true
			}
			return nil, false
		default: // NeedMoreData
			if p.buf.Len() > maxLeadingGarbageBytes {
				return p.fail("exceeded leading garbage window"), true
			}
			return nil, false
		}
	}

	scan := scanRequestLine
	if p.role == RoleResponse {
		scan = scanStatusLine
	}
	decision, lineLen := scan(p.buf)
	switch decision {
	case Accept:
		return p.acceptStartLine(lineLen)
	case Reject:
		return p.fail("malformed start-line"), true
	default:
		return nil, false
	}
}

func (p *Parser) acceptStartLine(lineLen int64) (*Event, bool) {
	line := strings.TrimRight(p.buf.SubView(0, lineLen).String(), "\r\n")
	p.buf = p.buf.SubView(lineLen, p.buf.Len())
	p.sawFirstLine = true
	p.headers = nil
	p.pendingHeader = nil
	p.st = stateHeaders

	now := time.Now()
	if p.role == RoleRequest {
		parts := strings.SplitN(line, " ", 3)
		if len(parts) != 3 {
			return p.fail("malformed request-line"), true
		}
		p.method, p.target, p.version = parts[0], parts[1], parts[2]
		return &Event{Kind: RequestStart, Method: p.method, Target: p.target, Version: p.version, At: now}, true
	}

	parts := strings.SplitN(line, " ", 3)
	if len(parts) < 2 {
		return p.fail("malformed status-line"), true
	}
	code, err := strconv.Atoi(parts[1])
	if err != nil {
		return p.fail("non-numeric status code"), true
	}
	p.statusCode = code
	p.version = parts[0]
	if len(parts) == 3 {
		p.reason = parts[2]
	} else {
		p.reason = ""
	}
	return &Event{Kind: ResponseStart, StatusCode: p.statusCode, Reason: p.reason, Version: p.version, At: now}, true
}

// locateLine searches for a start-line anywhere in buf (not just at offset
// 0), tolerating leading garbage from a capture that began mid-connection.
func locateLine(buf memview.MemView, role Role) (offset, lineLen int64, decision Decision) {
	if role == RoleRequest {
		for _, m := range supportedHTTPMethods {
			start := buf.Index(0, []byte(m))
			if start < 0 {
				continue
			}
			d, tailLen := hasValidRequestLineTail(buf.SubView(start+int64(len(m)), buf.Len()))
			switch d {
			case Accept:
				return start, int64(len(m)) + tailLen, Accept
			case NeedMoreData:
				return start, 0, NeedMoreData
			}
		}
		if buf.Len() < maxSupportedHTTPMethodLength {
			return 0, 0, NeedMoreData
		}
		return 0, 0, Reject
	}

	for _, v := range []string{"HTTP/1.1", "HTTP/1.0"} {
		start := buf.Index(0, []byte(v))
		if start < 0 {
			continue
		}
		d, tailLen := scanStatusLine(buf.SubView(start, buf.Len()))
		switch d {
		case Accept:
			return start, tailLen, Accept
		case NeedMoreData:
			return start, 0, NeedMoreData
		}
	}
	if buf.Len() < 9 {
		return 0, 0, NeedMoreData
	}
	return 0, 0, Reject
}

// stepHeaders reads one physical line at a time, unfolding obsolete
// line-folding continuations, and emits one Header event per logical header
// once it is known to be complete (i.e. the following line is not a fold).
func (p *Parser) stepHeaders() (*Event, bool) {
	nl := p.buf.Index(0, []byte("\n"))
	if nl < 0 {
		return nil, false
	}
	line := strings.TrimSuffix(p.buf.SubView(0, nl).String(), "\r")
	p.buf = p.buf.SubView(nl+1, p.buf.Len())

	if line == "" {
		var out *Event
		if p.pendingHeader != nil {
			h := *p.pendingHeader
			p.headers = append(p.headers, h)
			p.pendingHeader = nil
			out = &Event{Kind: HeaderEvent, Header: h, At: time.Now()}
		}
		p.st = stateHeadersEnd
		return out, true
	}

	if line[0] == ' ' || line[0] == '\t' {
		if p.pendingHeader == nil {
			return p.fail("header continuation with no preceding header"), true
		}
		p.pendingHeader.Value += " " + strings.TrimSpace(line)
		return nil, true
	}

	var out *Event
	if p.pendingHeader != nil {
		h := *p.pendingHeader
		p.headers = append(p.headers, h)
		out = &Event{Kind: HeaderEvent, Header: h, At: time.Now()}
	}

	idx := strings.IndexByte(line, ':')
	if idx < 0 {
		return p.fail("header line missing colon"), true
	}
	name := line[:idx]
	value := strings.TrimSpace(line[idx+1:])
	p.pendingHeader = &Header{Name: name, Value: value}

	return out, true
}

func (p *Parser) stepHeadersEnd() *Event {
	p.mode = p.decideBodyMode()
	p.bodyEmitted = 0
	switch p.mode {
	case Length:
		n, _ := p.headers.ContentLength()
		p.bodyRemaining = n
	case Chunked:
		p.chSt = chunkAwaitingSize
	case EventStream:
		p.sse = &sseAssembler{}
	}
	p.st = stateBody
	return &Event{Kind: HeadersEnd, Mode: p.mode, At: time.Now()}
}

func (p *Parser) decideBodyMode() BodyMode {
	if p.role == RoleResponse {
		if p.statusCode/100 == 1 || p.statusCode == 204 || p.statusCode == 304 {
			return Empty
		}
		if p.MethodHint != nil {
			if method, ok := p.MethodHint(); ok && strings.EqualFold(method, "HEAD") {
				return Empty
			}
		}
		if p.headers.IsChunked() {
			return Chunked
		}
		if p.headers.IsEventStream() {
			return EventStream
		}
		if _, ok := p.headers.ContentLength(); ok {
			return Length
		}
		return UntilClose
	}

	// Requests: absent a Transfer-Encoding or Content-Length, a request has
	// no body at all (RFC 7230 §3.3.3); unlike responses, a request is never
	// delimited by connection close, since another request may follow it on
	// the same half-stream.
	if p.headers.IsChunked() {
		return Chunked
	}
	if _, ok := p.headers.ContentLength(); ok {
		return Length
	}
	return Empty
}

func (p *Parser) stepBody(isEnd bool) ([]Event, bool) {
	switch p.mode {
	case Empty:
		p.st = stateStartLine
		return []Event{{Kind: MessageEnd, At: time.Now()}}, true
	case Length:
		return p.stepLengthBody()
	case Chunked:
		return p.stepChunkedBody()
	case EventStream:
		return p.stepEventStreamBody(isEnd)
	case UntilClose:
		return p.stepUntilCloseBody(isEnd)
	}
	return nil, false
}

func (p *Parser) takeBodyBytes(want int64) memview.MemView {
	if want > p.buf.Len() {
		want = p.buf.Len()
	}
	if p.bodyEmitted+want > maxBodyBytes {
		want = maxBodyBytes - p.bodyEmitted
		if want < 0 {
			want = 0
		}
	}
	chunk := p.buf.SubView(0, want)
	p.buf = p.buf.SubView(want, p.buf.Len())
	p.bodyEmitted += want
	return chunk
}

func (p *Parser) stepLengthBody() ([]Event, bool) {
	if p.bodyRemaining == 0 {
		p.st = stateStartLine
		return []Event{{Kind: MessageEnd, At: time.Now()}}, true
	}
	if p.buf.Len() == 0 {
		return nil, false
	}
	chunk := p.takeBodyBytes(p.bodyRemaining)
	if chunk.Len() == 0 {
		return nil, false
	}
	p.bodyRemaining -= chunk.Len()
	return []Event{{Kind: BodyChunk, Body: []byte(chunk.String()), At: time.Now()}}, true
}

func (p *Parser) stepUntilCloseBody(isEnd bool) ([]Event, bool) {
	if p.buf.Len() > 0 {
		chunk := p.takeBodyBytes(p.buf.Len())
		return []Event{{Kind: BodyChunk, Body: []byte(chunk.String()), At: time.Now()}}, true
	}
	if isEnd {
		p.st = stateDone
		return []Event{{Kind: MessageEnd, At: time.Now()}}, true
	}
	return nil, false
}

func (p *Parser) stepEventStreamBody(isEnd bool) ([]Event, bool) {
	if p.buf.Len() > 0 {
		raw := p.takeBodyBytes(p.buf.Len())
		sseEvents := p.sse.feed(raw, time.Now())
		if len(sseEvents) == 0 {
			return nil, p.buf.Len() > 0
		}
		events := make([]Event, len(sseEvents))
		for i, e := range sseEvents {
			events[i] = Event{Kind: SseEvent, SSE: e, At: e.ReceivedAt}
		}
		return events, true
	}
	if isEnd {
		p.st = stateDone
		return []Event{{Kind: MessageEnd, At: time.Now()}}, true
	}
	return nil, false
}

// stepChunkedBody implements RFC 7230 §4.1 chunked transfer coding:
// size-hex [;ext] CRLF, chunk-data CRLF, repeated, terminated by a 0-size
// chunk, optional trailer header fields, and a final CRLF.
func (p *Parser) stepChunkedBody() ([]Event, bool) {
	switch p.chSt {
	case chunkAwaitingSize:
		nl := p.buf.Index(0, []byte("\n"))
		if nl < 0 {
			return nil, false
		}
		line := strings.TrimSuffix(p.buf.SubView(0, nl).String(), "\r")
		p.buf = p.buf.SubView(nl+1, p.buf.Len())

		sizeStr := line
		if semi := strings.IndexByte(line, ';'); semi >= 0 {
			sizeStr = line[:semi]
		}
		size, err := strconv.ParseInt(strings.TrimSpace(sizeStr), 16, 64)
		if err != nil || size < 0 {
			return []Event{*p.fail("invalid chunk size")}, true
		}
		if size == 0 {
			p.chSt = chunkAwaitingTrailers
			return nil, true
		}
		p.chunkLeft = size
		p.chSt = chunkAwaitingData
		return nil, true

	case chunkAwaitingData:
		if p.buf.Len() == 0 {
			return nil, false
		}
		chunk := p.takeBodyBytes(p.chunkLeft)
		if chunk.Len() == 0 {
			return nil, false
		}
		p.chunkLeft -= chunk.Len()
		if p.chunkLeft == 0 {
			p.chSt = chunkAwaitingDataCRLF
		}
		return []Event{{Kind: BodyChunk, Body: []byte(chunk.String()), At: time.Now()}}, true

	case chunkAwaitingDataCRLF:
		nl := p.buf.Index(0, []byte("\n"))
		if nl < 0 {
			return nil, false
		}
		p.buf = p.buf.SubView(nl+1, p.buf.Len())
		p.chSt = chunkAwaitingSize
		return nil, true

	case chunkAwaitingTrailers:
		nl := p.buf.Index(0, []byte("\n"))
		if nl < 0 {
			return nil, false
		}
		line := strings.TrimSuffix(p.buf.SubView(0, nl).String(), "\r")
		p.buf = p.buf.SubView(nl+1, p.buf.Len())

		if line == "" {
			p.st = stateStartLine
			return []Event{{Kind: MessageEnd, At: time.Now()}}, true
		}
		idx := strings.IndexByte(line, ':')
		if idx < 0 {
			return []Event{*p.fail("trailer line missing colon")}, true
		}
		h := Header{Name: line[:idx], Value: strings.TrimSpace(line[idx+1:])}
		p.headers = append(p.headers, h)
		return []Event{{Kind: HeaderEvent, Header: h, At: time.Now()}}, true
	}
	return nil, false
}
