// Package flow demultiplexes captured TCP segments into per-connection
// byte streams and feeds each direction to an httpwire.Parser, using
// gopacket/reassembly for ordering, dedup, and gap handling.
package flow

import (
	"bytes"
	"fmt"
	"net"
)

// Endpoint is one side of a TCP connection.
type Endpoint struct {
	IP   net.IP
	Port int
}

func (e Endpoint) String() string {
	return fmt.Sprintf("%s:%d", e.IP, e.Port)
}

// Key identifies a TCP connection independent of which side sent which
// packet: the two endpoints are ordered so that both directions of the same
// connection hash to the same Key.
type Key struct {
	Low, High Endpoint
}

// NewKey orders a and b into a canonical Key. The ordering itself carries no
// meaning (it is not client/server); it only needs to be stable.
func NewKey(a, b Endpoint) Key {
	if endpointLess(b, a) {
		a, b = b, a
	}
	return Key{Low: a, High: b}
}

func endpointLess(a, b Endpoint) bool {
	if c := bytes.Compare(a.IP, b.IP); c != 0 {
		return c < 0
	}
	return a.Port < b.Port
}

func (k Key) String() string {
	return fmt.Sprintf("%s<->%s", k.Low, k.High)
}
