// Package transport is the datagram boundary of PONK. Every implementation
// is unreliable: datagrams may be lost, duplicated or reordered, and both
// directions are non-blocking.
package transport

import (
	"errors"
	"net"
)

var (
	// ErrNoData is returned by Receive when nothing is waiting. It is not a
	// failure; the caller should yield and poll again.
	ErrNoData = errors.New("transport: no data available")

	// ErrCongested is returned by Send when the outgoing buffer is full and
	// the datagram was dropped.
	ErrCongested = errors.New("transport: send buffer full, datagram dropped")

	ErrClosed        = errors.New("transport: closed")
	ErrNoDestination = errors.New("transport: no destination")
)

// Conn sends and receives whole datagrams.
type Conn interface {
	// Send transmits b to dst. A nil dst selects the connection's default
	// destination, if it has one.
	Send(dst net.Addr, b []byte) error

	// Receive copies the next waiting datagram into buf and returns its
	// length and source. It returns ErrNoData immediately when nothing is
	// waiting.
	Receive(buf []byte) (int, net.Addr, error)

	Close() error
}

// MaxDatagramSize is the receive buffer size that accepts any UDP payload.
const MaxDatagramSize = 65536

var (
	_ Conn = (*UDPConn)(nil)
	_ Conn = (*PeerConn)(nil)
	_ Conn = (*MemConn)(nil)
)
