package pipeline

import (
	"context"
	"testing"
	"time"

	"github.com/google/gopacket"
	"go.uber.org/zap"

	"github.com/mcpwatch/mcpwatch/internal/txn"
)

type fakeSource struct {
	packets []gopacket.Packet
}

func (f *fakeSource) Capture(ctx context.Context) (<-chan gopacket.Packet, error) {
	out := make(chan gopacket.Packet, len(f.packets))
	for _, p := range f.packets {
		out <- p
	}
	close(out)
	return out, nil
}

type fakeSink struct {
	emitted []txn.Transaction
}

func (f *fakeSink) Update(t txn.Transaction) {}
func (f *fakeSink) Emit(t txn.Transaction)   { f.emitted = append(f.emitted, t) }

// TestPipelineRunDrainsEmptySource confirms Run returns once an empty packet
// source closes, without requiring any real capture device or pcap file.
func TestPipelineRunDrainsEmptySource(t *testing.T) {
	sink := &fakeSink{}
	p := New(&fakeSource{}, sink, zap.NewNop())

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	if err := p.Run(ctx); err != nil {
		t.Fatalf("Run() error = %v", err)
	}
}
