// Package render formats completed (or still-streaming) transactions into
// colored console blocks.
package render

import (
	"fmt"
	"io"
	"os"
	"strings"
	"sync"

	"github.com/logrusorgru/aurora"

	"github.com/mcpwatch/mcpwatch/internal/httpwire"
	"github.com/mcpwatch/mcpwatch/internal/txn"
)

// Color is the switchable colorizer; it is swapped for a no-color instance
// when NO_COLOR is set or stdout is not a terminal, the same pattern the
// observability CLI this renderer is descended from uses for its own
// switchable printer.
var Color = aurora.NewAurora(true)

// DisableColor switches Color to a no-op colorizer. Call once at startup
// after checking the NO_COLOR environment variable and whether stdout is a
// terminal.
func DisableColor() {
	Color = aurora.NewAurora(false)
}

// Renderer writes transaction blocks to out, serialized by a mutex so a
// single writer fronts stdout as the concurrency model requires.
type Renderer struct {
	out io.Writer
	mu  sync.Mutex

	// seen tracks which transactions already printed a preamble, so a
	// Streaming update only appends new SSE lines instead of reprinting the
	// whole block.
	seen map[string]int // bidiID -> SSE events already printed
}

func New(out io.Writer) *Renderer {
	return &Renderer{out: out, seen: make(map[string]int)}
}

// Stdout is the default renderer, matching the printer package's top-level
// Stdout/Stderr convenience handles.
var Stdout = New(os.Stdout)

// Update implements txn.Sink: an incremental append during Streaming.
func (r *Renderer) Update(t txn.Transaction) {
	r.mu.Lock()
	defer r.mu.Unlock()

	id := t.BidiID.String()
	printed, ok := r.seen[id]
	if !ok {
		r.printPreamble(t)
		printed = 0
	}
	for i := printed; i < len(t.Response.SSE); i++ {
		r.printSSE(t.Response.SSE[i])
	}
	r.seen[id] = len(t.Response.SSE)
}

// Emit implements txn.Sink: the final, one-time emission of a transaction.
func (r *Renderer) Emit(t txn.Transaction) {
	r.mu.Lock()
	defer r.mu.Unlock()

	id := t.BidiID.String()
	printed, hadPreamble := r.seen[id]
	if !hadPreamble {
		r.printPreamble(t)
		printed = 0
	}
	for i := printed; i < len(t.Response.SSE); i++ {
		r.printSSE(t.Response.SSE[i])
	}
	delete(r.seen, id)

	if t.Response.Present && len(t.Response.Body) > 0 {
		fmt.Fprintln(r.out, string(t.Response.Body))
	}
	if t.Annotation != txn.NoAnnotation {
		fmt.Fprintln(r.out, Color.Red(fmt.Sprintf("[%s]", t.Annotation)).String())
	}
	if t.State == txn.Streaming || len(t.Response.SSE) > 0 {
		fmt.Fprintln(r.out, Color.Gray(12, "— stream ended —").String())
	}
	fmt.Fprintln(r.out, strings.Repeat("-", 60))
}

func (r *Renderer) printPreamble(t txn.Transaction) {
	fmt.Fprintln(r.out, Color.Bold(fmt.Sprintf("%s  [%s]", t.Key, t.State)).String())

	if t.Request.Present {
		fmt.Fprintln(r.out, Color.Green("▶ REQUEST").String())
		fmt.Fprintf(r.out, "%s %s %s\n", t.Request.Method, t.Request.Target, t.Request.Version)
		printHeaders(r.out, t.Request.Headers)
		if len(t.Request.Body) > 0 {
			fmt.Fprintln(r.out, Color.Green("[Request Body]").String())
			fmt.Fprintln(r.out, string(t.Request.Body))
		}
	}

	if t.Response.Present {
		fmt.Fprintln(r.out, Color.Blue("◀ RESPONSE").String())
		fmt.Fprintf(r.out, "%s %d %s\n", t.Response.Version, t.Response.StatusCode, t.Response.Reason)
		printHeaders(r.out, t.Response.Headers)
	}
}

func printHeaders(out io.Writer, headers httpwire.HeaderList) {
	for _, h := range headers {
		if httpwire.IsHopByHop(h.Name) {
			continue
		}
		fmt.Fprintf(out, "%s: %s\n", h.Name, h.Value)
	}
}

func (r *Renderer) printSSE(e httpwire.SSEEvent) {
	switch e.Kind {
	case httpwire.SSEPing:
		fmt.Fprintln(r.out, Color.Gray(12, "[SSE Ping]").String())
	case httpwire.SSEComment:
		fmt.Fprintln(r.out, Color.Gray(12, fmt.Sprintf("[SSE Comment] %s", e.Payload)).String())
	default:
		fmt.Fprintln(r.out, Color.Yellow("[Event]").String())
		if e.Name != "" {
			fmt.Fprintln(r.out, Color.Yellow(fmt.Sprintf("event: %s", e.Name)).String())
		}
		fmt.Fprintln(r.out, string(e.Payload))
	}
}
