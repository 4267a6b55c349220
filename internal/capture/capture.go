// Package capture opens a packet source, either a pcap file or a live
// device, and relays decoded packets on a channel until the context is
// canceled or the source runs dry.
package capture

import (
	"context"
	"fmt"

	"github.com/google/gopacket"
	"github.com/google/gopacket/layers"
	"github.com/google/gopacket/pcap"
)

// defaultSnapLen matches tcpdump's default capture length.
const defaultSnapLen = 262144

// Source produces a stream of packets from some origin.
type Source interface {
	Capture(ctx context.Context) (<-chan gopacket.Packet, error)
}

// UnsupportedLinkLayerError is returned when a handle's link type is not
// one the demultiplexer's layer decoding can make sense of. The decoder
// itself never reaches this case; it is checked up front so the failure is
// reported before a single packet is read, not on the first decode.
type UnsupportedLinkLayerError struct {
	LinkType layers.LinkType
}

func (e UnsupportedLinkLayerError) Error() string {
	return fmt.Sprintf("unsupported link-layer type: %s", e.LinkType)
}

func checkLinkType(lt layers.LinkType) error {
	switch lt {
	case layers.LinkTypeEthernet, layers.LinkTypeLinuxSLL, layers.LinkTypeNull, layers.LinkTypeLoop, layers.LinkTypeRaw:
		return nil
	default:
		return UnsupportedLinkLayerError{LinkType: lt}
	}
}

// FileSource replays a previously captured pcap file.
type FileSource struct {
	Path string
	BPF  string
}

func NewFileSource(path, bpf string) *FileSource {
	return &FileSource{Path: path, BPF: bpf}
}

func (f *FileSource) Capture(ctx context.Context) (<-chan gopacket.Packet, error) {
	handle, err := pcap.OpenOffline(f.Path)
	if err != nil {
		return nil, err
	}
	if f.BPF != "" {
		if err := handle.SetBPFFilter(f.BPF); err != nil {
			handle.Close()
			return nil, err
		}
	}
	if err := checkLinkType(handle.LinkType()); err != nil {
		handle.Close()
		return nil, err
	}

	out := make(chan gopacket.Packet, 64)
	go func() {
		defer handle.Close()
		defer close(out)
		src := gopacket.NewPacketSource(handle, handle.LinkType())
		for packet := range src.Packets() {
			select {
			case <-ctx.Done():
				return
			case out <- packet:
			}
		}
	}()
	return out, nil
}

// LiveSource sniffs a network interface in promiscuous mode.
type LiveSource struct {
	Interface string
	BPF       string
}

func NewLiveSource(iface, bpf string) *LiveSource {
	return &LiveSource{Interface: iface, BPF: bpf}
}

func (l *LiveSource) Capture(ctx context.Context) (<-chan gopacket.Packet, error) {
	handle, err := pcap.OpenLive(l.Interface, defaultSnapLen, true, pcap.BlockForever)
	if err != nil {
		return nil, err
	}
	if l.BPF != "" {
		if err := handle.SetBPFFilter(l.BPF); err != nil {
			handle.Close()
			return nil, err
		}
	}
	if err := checkLinkType(handle.LinkType()); err != nil {
		handle.Close()
		return nil, err
	}

	// Build the packet source before returning, so the caller can treat
	// capture as active the moment this call succeeds.
	src := gopacket.NewPacketSource(handle, handle.LinkType())
	packets := src.Packets()

	out := make(chan gopacket.Packet, 64)
	go func() {
		// close(out) unblocks the consumer immediately; handle.Close() can
		// block for a while tearing down the live capture underneath it.
		defer handle.Close()
		defer close(out)
		for {
			select {
			case <-ctx.Done():
				return
			case pkt, ok := <-packets:
				if !ok {
					return
				}
				out <- pkt
			}
		}
	}()
	return out, nil
}
