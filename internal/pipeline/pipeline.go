// Package pipeline wires a packet source through the flow demultiplexer and
// transaction correlator into a render sink, and owns the top-level
// goroutines and cancellation for one capture run.
package pipeline

import (
	"context"

	"go.uber.org/zap"

	"github.com/mcpwatch/mcpwatch/internal/capture"
	"github.com/mcpwatch/mcpwatch/internal/flow"
	"github.com/mcpwatch/mcpwatch/internal/txn"
)

// Pipeline ties a capture.Source to a txn.Sink through the flow and
// transaction layers.
type Pipeline struct {
	source capture.Source
	log    *zap.Logger
	demux  *flow.Demux
	corr   *txn.Correlator
}

// New builds a Pipeline. sink receives rendered transactions; it is usually
// a *render.Renderer but any txn.Sink will do, which keeps this package
// independent of the rendering package.
func New(source capture.Source, sink txn.Sink, log *zap.Logger, opt ...flow.Option) *Pipeline {
	corr := txn.NewCorrelator(sink, log)
	demux := flow.New(log, corr, opt...)
	return &Pipeline{source: source, log: log, demux: demux, corr: corr}
}

// Run blocks until ctx is canceled or the packet source is exhausted. It
// starts the correlator's consumer goroutine, feeds packets from the source
// into the demultiplexer, and returns once both have drained.
func (p *Pipeline) Run(ctx context.Context) error {
	packets, err := p.source.Capture(ctx)
	if err != nil {
		return err
	}

	done := make(chan struct{})
	go func() {
		defer close(done)
		p.corr.Run(p.demux.Events())
	}()

	p.demux.Run(ctx, packets)
	<-done
	return nil
}
