package transport

import (
	"net"
	"sync"
)

// memAddr names one end of an in-memory pipe.
type memAddr string

func (a memAddr) Network() string { return "mem" }
func (a memAddr) String() string  { return string(a) }

// MemConn is one end of an in-memory datagram pipe. Datagrams are
// delivered in order unless a Filter drops or rewrites them, which lets
// tests simulate a lossy network without sockets.
type MemConn struct {
	name string
	peer *MemConn

	mu     sync.Mutex
	queue  [][]byte
	closed bool

	// Filter, if set, sees every outgoing datagram and returns the
	// datagrams to actually deliver (none to drop, two to duplicate).
	Filter func(b []byte) [][]byte
}

// Pipe returns two linked MemConns.
func Pipe() (a, b *MemConn) {
	a = &MemConn{name: "mem-a"}
	b = &MemConn{name: "mem-b"}
	a.peer, b.peer = b, a
	return a, b
}

// Send copies b into the peer's queue; dst is ignored.
func (m *MemConn) Send(_ net.Addr, b []byte) error {
	m.mu.Lock()
	closed, filter := m.closed, m.Filter
	m.mu.Unlock()
	if closed {
		return ErrClosed
	}

	data := append([]byte(nil), b...)
	out := [][]byte{data}
	if filter != nil {
		out = filter(data)
	}
	for _, d := range out {
		m.peer.push(d)
	}
	return nil
}

func (m *MemConn) push(b []byte) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if !m.closed {
		m.queue = append(m.queue, b)
	}
}

// Receive pops the oldest queued datagram.
func (m *MemConn) Receive(buf []byte) (int, net.Addr, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return 0, nil, ErrClosed
	}
	if len(m.queue) == 0 {
		return 0, nil, ErrNoData
	}
	data := m.queue[0]
	m.queue[0] = nil
	m.queue = m.queue[1:]
	return copy(buf, data), memAddr(m.peer.name), nil
}

// Pending returns the number of queued datagrams.
func (m *MemConn) Pending() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.queue)
}

// Close stops both sending and receiving on this end.
func (m *MemConn) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.closed = true
	m.queue = nil
	return nil
}
