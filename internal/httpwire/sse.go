package httpwire

import (
	"bytes"
	"strings"
	"time"

	"github.com/mcpwatch/mcpwatch/internal/memview"
)

// sseAssembler turns a text/event-stream byte stream into dispatched
// SSEEvents. Lines are separated by LF (a preceding CR is trimmed); a blank
// line dispatches whatever has accumulated for the pending record.
type sseAssembler struct {
	buf memview.MemView

	sawEvent, sawData, sawComment, sawPing bool
	pendingName                            string
	pendingData                            [][]byte
}

func (s *sseAssembler) feed(input memview.MemView, now time.Time) []SSEEvent {
	s.buf.Append(input)

	var out []SSEEvent
	for {
		idx := s.buf.Index(0, []byte("\n"))
		if idx < 0 {
			break
		}
		line := s.buf.SubView(0, idx)
		s.buf = s.buf.SubView(idx+1, s.buf.Len())

		text := strings.TrimSuffix(line.String(), "\r")
		if text == "" {
			if ev, ok := s.dispatch(now); ok {
				out = append(out, ev)
			}
			continue
		}
		s.consumeLine(text)
	}
	return out
}

func (s *sseAssembler) consumeLine(text string) {
	switch {
	case strings.HasPrefix(text, "data:"):
		payload := strings.TrimPrefix(text, "data:")
		payload = strings.TrimPrefix(payload, " ")
		s.pendingData = append(s.pendingData, []byte(payload))
		s.sawData = true

	case strings.HasPrefix(text, "event:"):
		s.pendingName = strings.TrimSpace(strings.TrimPrefix(text, "event:"))
		s.sawEvent = true

	case strings.HasPrefix(text, ":"):
		if text == ": ping" || text == ":ping" {
			s.sawPing = true
		} else {
			s.sawComment = true
		}
		comment := strings.TrimPrefix(strings.TrimPrefix(text, ":"), " ")
		s.pendingData = append(s.pendingData, []byte(comment))

	case strings.HasPrefix(text, "id:"), strings.HasPrefix(text, "retry:"):
		// Recorded on the wire but not required downstream; still counts as
		// content so that an id-only record dispatches something.
		s.sawComment = true

	default:
		// Unrecognized field name: ignored per the SSE spec.
	}
}

func (s *sseAssembler) dispatch(now time.Time) (SSEEvent, bool) {
	if !s.sawEvent && !s.sawData && !s.sawComment && !s.sawPing {
		return SSEEvent{}, false
	}

	kind := SSEComment
	switch {
	case s.sawEvent:
		kind = SSENamed
	case s.sawData:
		kind = SSEData
	case s.sawPing:
		kind = SSEPing
	}

	ev := SSEEvent{
		Kind:       kind,
		Name:       s.pendingName,
		Payload:    bytes.Join(s.pendingData, []byte("\n")),
		ReceivedAt: now,
	}

	s.sawEvent, s.sawData, s.sawComment, s.sawPing = false, false, false, false
	s.pendingName = ""
	s.pendingData = nil

	return ev, true
}
