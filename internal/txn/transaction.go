package txn

import (
	"github.com/google/uuid"

	"github.com/mcpwatch/mcpwatch/internal/flow"
)

// State is where a Transaction sits in its lifecycle.
type State int

const (
	AwaitingResponse State = iota
	Streaming
	Complete
)

func (s State) String() string {
	switch s {
	case AwaitingResponse:
		return "AwaitingResponse"
	case Streaming:
		return "Streaming"
	case Complete:
		return "Complete"
	default:
		return "Unknown"
	}
}

// Annotation records a truncation or pairing anomaly surfaced to the
// renderer; these are not user-facing errors, only notes on the block.
type Annotation int

const (
	NoAnnotation Annotation = iota
	PrematureNextRequest
	BareResponse
	TruncatedByFlowClose
	Oversize
)

func (a Annotation) String() string {
	switch a {
	case NoAnnotation:
		return ""
	case PrematureNextRequest:
		return "PrematureNextRequest"
	case BareResponse:
		return "BareResponse"
	case TruncatedByFlowClose:
		return "TruncatedByFlowClose"
	case Oversize:
		return "Oversize"
	default:
		return "Unknown"
	}
}

// Transaction pairs one request with the response produced on the reverse
// direction of the same flow. It carries the flow's Key by value, not a
// live reference, since the Flow may be destroyed before late rendering
// completes.
type Transaction struct {
	Key    flow.Key
	BidiID uuid.UUID

	Request  Message
	Response Message

	State      State
	Annotation Annotation
}
