package flow

import (
	"github.com/google/uuid"

	"github.com/mcpwatch/mcpwatch/internal/httpwire"
)

// EventKind distinguishes ordinary parser output from flow-lifecycle
// notifications that the correlator also needs to react to.
type EventKind int

const (
	// Data carries an httpwire.Event produced by one direction's parser.
	Data EventKind = iota
	// Closed signals that both halves of the flow have torn down (FIN/FIN,
	// RST, or idle timeout) and no further Data events will arrive for it.
	Closed
)

// Event is one notification handed from the demultiplexer to the
// correlator: either a parsed HTTP event from one direction of a flow, or
// notice that the flow itself has ended.
type Event struct {
	Key    Key
	BidiID uuid.UUID
	Kind   EventKind

	// Valid when Kind == Data.
	Role  httpwire.Role
	HTTP  httpwire.Event
}

// MethodHintProvider lets a response-side parser recover the method of the
// oldest pending request on its flow, which is needed to recognize a HEAD
// response as bodyless. Implemented by the correlator.
type MethodHintProvider interface {
	MethodHint(bidiID uuid.UUID) (method string, ok bool)
}
