package txn

import (
	"time"

	"github.com/mcpwatch/mcpwatch/internal/httpwire"
	"github.com/mcpwatch/mcpwatch/internal/mempool"
)

// maxBodyBytes mirrors the parser's own body accumulation cap; once an
// accumulated body reaches it, the transaction is annotated Oversize.
const maxBodyBytes = 16 * 1024 * 1024

// bodyChunkBytes sizes the chunks bodyPool hands Messages for body
// accumulation. JSON-RPC/MCP request and response bodies are usually a
// handful of KB, so most messages need only one or two chunks.
const bodyChunkBytes = 32 * 1024

// bodyPoolBytes bounds how much memory all in-flight message bodies may
// hold at once, across every tracked flow.
const bodyPoolBytes = 64 * 1024 * 1024

// bodyPool backs every Message's body accumulation. A single pool shared
// across flows caps total body memory regardless of how many concurrent
// transactions are being assembled.
var bodyPool mempool.Pool

func init() {
	p, err := mempool.NewPool(bodyPoolBytes, bodyChunkBytes)
	if err != nil {
		// bodyPoolBytes and bodyChunkBytes are fixed constants, not
		// user-controlled input.
		panic(err)
	}
	bodyPool = p
}

// Message is one half (request or response) of a Transaction, assembled
// incrementally as httpwire.Events arrive.
type Message struct {
	Present bool // false for a synthetic placeholder (BareResponse)

	Method, Target, Version string
	StatusCode              int
	Reason                  string

	Headers  httpwire.HeaderList
	BodyMode httpwire.BodyMode
	Body     []byte
	SSE      []httpwire.SSEEvent

	FirstByteAt       time.Time
	HeadersCompleteAt time.Time
	MessageEndAt      time.Time

	// bodyBuf accumulates Body bytes in pooled chunks until finalizeBody
	// snapshots them into Body and releases the chunks.
	bodyBuf   mempool.Buffer
	bodyLen   int
	oversized bool
}

func (m *Message) appendHeader(h httpwire.Header) {
	m.Headers = append(m.Headers, h)
}

func (m *Message) appendBody(b []byte) {
	if m.oversized || len(b) == 0 {
		return
	}

	if m.bodyLen+len(b) > maxBodyBytes {
		if room := maxBodyBytes - m.bodyLen; room > 0 {
			b = b[:room]
		} else {
			b = nil
		}
		m.oversized = true
	}
	if len(b) == 0 {
		return
	}

	if m.bodyBuf == nil {
		m.bodyBuf = bodyPool.NewBuffer()
	}
	n, err := m.bodyBuf.Write(b)
	m.bodyLen += n
	if err != nil {
		// The chunk pool is exhausted; stop accumulating but keep what was
		// already written.
		m.oversized = true
	}
}

func (m *Message) isOversize() bool {
	return m.oversized || m.bodyLen >= maxBodyBytes
}

// finalizeBody snapshots whatever has been accumulated into Body and
// releases the pooled chunks. Safe to call more than once; the second and
// later calls are no-ops that return the already-finalized Body.
func (m *Message) finalizeBody() []byte {
	if m.bodyBuf == nil {
		return m.Body
	}
	m.Body = []byte(m.bodyBuf.Bytes().String())
	m.bodyBuf.Release()
	m.bodyBuf = nil
	return m.Body
}
