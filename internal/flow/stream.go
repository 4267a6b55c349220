package flow

import (
	"net"

	"github.com/google/gopacket"
	"github.com/google/gopacket/layers"
	"github.com/google/gopacket/reassembly"
	"github.com/google/uuid"

	"github.com/mcpwatch/mcpwatch/internal/httpwire"
	"github.com/mcpwatch/mcpwatch/internal/memview"
)

// assemblerCtxWithSeq carries capture metadata alongside the TCP sequence
// numbers the reassembler associates with each context, mirroring the
// upstream capture core's AssemblerContext wrapper.
type assemblerCtxWithSeq struct {
	ci       gopacket.CaptureInfo
	seq, ack reassembly.Sequence
}

// ContextFromTCPPacket builds the AssemblerContext a caller must pass to
// Assembler.AssembleWithContext for each TCP packet.
func ContextFromTCPPacket(p gopacket.Packet, t *layers.TCP) reassembly.AssemblerContext {
	return &assemblerCtxWithSeq{
		ci:  p.Metadata().CaptureInfo,
		seq: reassembly.Sequence(t.Seq),
		ack: reassembly.Sequence(t.Ack),
	}
}

func (ctx *assemblerCtxWithSeq) GetCaptureInfo() gopacket.CaptureInfo {
	return ctx.ci
}

// StreamFactory implements reassembly.StreamFactory, handing each new TCP
// connection its own Stream.
type StreamFactory struct {
	outChan  chan<- Event
	hintProv MethodHintProvider
}

func NewStreamFactory(outChan chan<- Event, hintProv MethodHintProvider) *StreamFactory {
	return &StreamFactory{outChan: outChan, hintProv: hintProv}
}

func (f *StreamFactory) New(netFlow, _ gopacket.Flow, _ *layers.TCP,
	_ reassembly.AssemblerContext) reassembly.Stream {
	return newTCPStream(netFlow, f.outChan, f.hintProv)
}

// tcpHalf is one direction of a connection: an httpwire.Parser plus, while
// the connection's client/server roles are still undetermined, a stash of
// bytes held until the first side to speak can be sniffed.
type tcpHalf struct {
	netFlow gopacket.Flow
	tcpFlow gopacket.Flow

	parser *httpwire.Parser // nil until the role is known
	stash  memview.MemView
}

// tcpStream implements reassembly.Stream for a single TCP connection,
// fanning reassembled bytes out to the two tcpHalfs it owns.
type tcpStream struct {
	bidiID  uuid.UUID
	key     Key
	netFlow gopacket.Flow

	outChan  chan<- Event
	hintProv MethodHintProvider

	flows map[reassembly.TCPFlowDirection]*tcpHalf

	roleKnown   bool
	requestDir  reassembly.TCPFlowDirection
	responseDir reassembly.TCPFlowDirection
}

func newTCPStream(netFlow gopacket.Flow, outChan chan<- Event, hintProv MethodHintProvider) *tcpStream {
	return &tcpStream{
		bidiID:   uuid.New(),
		netFlow:  netFlow,
		outChan:  outChan,
		hintProv: hintProv,
	}
}

func endpointFrom(ep gopacket.Endpoint, port gopacket.Endpoint) Endpoint {
	var portNum int
	if raw := port.Raw(); len(raw) == 2 {
		portNum = int(raw[0])<<8 | int(raw[1])
	}
	return Endpoint{IP: net.IP(ep.Raw()), Port: portNum}
}

func (c *tcpStream) Accept(tcp *layers.TCP, _ gopacket.CaptureInfo,
	dir reassembly.TCPFlowDirection, _ reassembly.Sequence,
	start *bool, _ reassembly.AssemblerContext) bool {
	// Force every stream to start even without having observed a SYN: a
	// capture may begin mid-connection, and without this the assembler
	// would hold the stream's data forever waiting for one.
	*start = true

	if c.flows == nil {
		tf, _ := gopacket.FlowFromEndpoints(
			layers.NewTCPPortEndpoint(tcp.SrcPort),
			layers.NewTCPPortEndpoint(tcp.DstPort),
		)

		srcE, dstE := c.netFlow.Endpoints()
		srcPortE, dstPortE := tf.Endpoints()
		a := endpointFrom(srcE, srcPortE)
		b := endpointFrom(dstE, dstPortE)
		c.key = NewKey(a, b)

		c.flows = map[reassembly.TCPFlowDirection]*tcpHalf{
			dir:           {netFlow: c.netFlow, tcpFlow: tf},
			dir.Reverse(): {netFlow: c.netFlow.Reverse(), tcpFlow: tf.Reverse()},
		}

		if tcp.SYN && !tcp.ACK {
			c.assignRoles(dir, dir.Reverse())
		}
	}

	// Accept every packet, even ones that would violate TCP state on a real
	// stack: we care about observing dataflows, not validating them. The
	// reassembly library still guarantees in-order, duplicate-free delivery.
	return true
}

// assignRoles permanently fixes which direction carries requests and which
// carries responses, and constructs the two parsers.
func (c *tcpStream) assignRoles(reqDir, respDir reassembly.TCPFlowDirection) {
	c.roleKnown = true
	c.requestDir = reqDir
	c.responseDir = respDir

	c.flows[reqDir].parser = httpwire.NewRequestParser()

	respParser := httpwire.NewResponseParser()
	bidiID := c.bidiID
	if c.hintProv != nil {
		hintProv := c.hintProv
		respParser.MethodHint = func() (string, bool) { return hintProv.MethodHint(bidiID) }
	}
	c.flows[respDir].parser = respParser
}

func (c *tcpStream) ReassembledSG(sg reassembly.ScatterGather, ac reassembly.AssemblerContext) {
	if c.flows == nil {
		return
	}
	dir, _, isEnd, _ := sg.Info()
	bytesAvailable, _ := sg.Lengths()
	data := memview.New(sg.Fetch(bytesAvailable))

	half := c.flows[dir]

	if !c.roleKnown {
		half.stash.Append(data)
		role, decision := httpwire.SniffRole(half.stash)
		switch decision {
		case httpwire.NeedMoreData:
			if !isEnd {
				return
			}
			// The flow is ending with never enough bytes to tell: treat it
			// as a request direction so the bytes are not silently lost.
			fallthrough
		case httpwire.Reject, httpwire.Accept:
			if role == httpwire.RoleRequest {
				c.assignRoles(dir, dir.Reverse())
			} else {
				c.assignRoles(dir.Reverse(), dir)
			}
			for d, h := range c.flows {
				if h.stash.Len() > 0 {
					c.emitParserEvents(d, h.parser.Feed(h.stash, false))
					h.stash = memview.MemView{}
				}
			}
		}
		return
	}

	c.emitParserEvents(dir, half.parser.Feed(data, isEnd))
}

func (c *tcpStream) emitParserEvents(dir reassembly.TCPFlowDirection, events []httpwire.Event) {
	if len(events) == 0 {
		return
	}
	role := httpwire.RoleRequest
	if dir == c.responseDir {
		role = httpwire.RoleResponse
	}
	for _, e := range events {
		c.outChan <- Event{Key: c.key, BidiID: c.bidiID, Kind: Data, Role: role, HTTP: e}
	}
}

func (c *tcpStream) ReassemblyComplete(_ reassembly.AssemblerContext) bool {
	if c.roleKnown {
		for dir, half := range c.flows {
			if half.parser != nil {
				c.emitParserEvents(dir, half.parser.Feed(memview.MemView{}, true))
			}
		}
	}
	c.outChan <- Event{Key: c.key, BidiID: c.bidiID, Kind: Closed}
	return true
}

var _ reassembly.Stream = (*tcpStream)(nil)
