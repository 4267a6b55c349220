package flow

import (
	"context"
	"time"

	"github.com/google/gopacket"
	"github.com/google/gopacket/layers"
	"github.com/google/gopacket/reassembly"
	"go.uber.org/zap"
)

// Demux feeds captured packets into a gopacket/reassembly Assembler and
// relays the resulting Events to Events(). It owns the assembler's
// flush/close ticker, standing in for the idle-timeout and gap-skip policy
// described for the half-stream reassembler.
type Demux struct {
	opts      Options
	log       *zap.Logger
	assembler *reassembly.Assembler
	events    chan Event
}

// New builds a Demux. hintProv supplies the method-hint callback each
// response parser needs to recognize HEAD responses; pass nil if unused.
func New(log *zap.Logger, hintProv MethodHintProvider, opt ...Option) *Demux {
	opts := NewOptions()
	for _, o := range opt {
		o(&opts)
	}

	events := make(chan Event, 256)
	factory := NewStreamFactory(events, hintProv)
	pool := reassembly.NewStreamPool(factory)
	assembler := reassembly.NewAssembler(pool)
	assembler.AssemblerOptions.MaxBufferedPagesTotal = opts.MaxBufferedPagesTotal
	assembler.AssemblerOptions.MaxBufferedPagesPerConnection = opts.MaxBufferedPagesPerConnection

	return &Demux{opts: opts, log: log, assembler: assembler, events: events}
}

// Events returns the channel of demultiplexed flow events. It is closed once
// Run returns.
func (d *Demux) Events() <-chan Event {
	return d.events
}

// Feed hands one captured packet to the assembler. Non-TCP packets and
// packets without a network layer are dropped, matching the demux's silent-
// drop policy for unknown or malformed traffic.
func (d *Demux) Feed(packet gopacket.Packet) {
	defer func() {
		if r := recover(); r != nil {
			d.log.Warn("recovered from panic decoding packet", zap.Any("panic", r))
		}
	}()

	if packet.NetworkLayer() == nil {
		return
	}
	transport := packet.TransportLayer()
	tcp, ok := transport.(*layers.TCP)
	if !ok {
		return
	}
	d.assembler.AssembleWithContext(packet.NetworkLayer().NetworkFlow(), tcp,
		ContextFromTCPPacket(packet, tcp))
}

// Run drains packets until ctx is cancelled or the channel closes, then
// flushes and closes every remaining flow before returning.
func (d *Demux) Run(ctx context.Context, packets <-chan gopacket.Packet) {
	defer close(d.events)

	flushTimeout := time.Duration(d.opts.FlushTimeoutSeconds) * time.Second
	closeTimeout := time.Duration(d.opts.CloseTimeoutSeconds) * time.Second

	ticker := time.NewTicker(flushTimeout / 4)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			d.assembler.FlushAll()
			return

		case packet, ok := <-packets:
			if !ok {
				d.assembler.FlushAll()
				return
			}
			d.Feed(packet)

		case <-ticker.C:
			now := time.Now()
			flushed, closed := d.assembler.FlushWithOptions(reassembly.FlushOptions{
				T:  now.Add(-flushTimeout),
				TC: now.Add(-closeTimeout),
			})
			if flushed != 0 || closed != 0 {
				d.log.Debug("assembler flush", zap.Int("flushed", flushed), zap.Int("closed", closed))
			}
		}
	}
}
