package transport

import (
	"errors"
	"fmt"
	"net"
	"os"
	"time"

	"golang.org/x/net/ipv4"

	"github.com/madmappersoftware/Ponk/internal/util"
)

// pollWait bounds how long Receive waits for a queued datagram. Go's
// netpoller reports an already-expired deadline before attempting the read,
// so a zero wait would never return data.
const pollWait = time.Millisecond

// UDPOptions configures a UDPConn.
type UDPOptions struct {
	// Destination is the default peer for Send(nil, …). Unicast, broadcast
	// or multicast.
	Destination string

	// Multicast is a group to join for receiving, e.g. "239.255.80.75".
	Multicast string

	// Interfaces restricts the multicast join to these interface names.
	// Empty joins on the system default interface.
	Interfaces []string

	// MulticastTTL and MulticastLoopback apply to multicast sends.
	MulticastTTL      int
	MulticastLoopback bool
}

// UDPConn is a Conn over a single IPv4 UDP socket.
type UDPConn struct {
	pc   net.PacketConn
	p4   *ipv4.PacketConn
	dest net.Addr
}

// ListenUDP binds addr (e.g. ":5583", or ":0" for a sender) and applies opts.
func ListenUDP(addr string, opts UDPOptions) (*UDPConn, error) {
	pc, err := net.ListenPacket("udp4", addr)
	if err != nil {
		return nil, fmt.Errorf("failed to bind %s: %w", addr, err)
	}

	c := &UDPConn{pc: pc, p4: ipv4.NewPacketConn(pc)}

	if opts.Destination != "" {
		dest, err := net.ResolveUDPAddr("udp4", opts.Destination)
		if err != nil {
			pc.Close()
			return nil, fmt.Errorf("invalid destination %q: %w", opts.Destination, err)
		}
		c.dest = dest
		if dest.IP.IsMulticast() {
			if err := c.configureMulticastSend(opts); err != nil {
				pc.Close()
				return nil, err
			}
		}
	}

	if opts.Multicast != "" {
		if err := c.join(opts.Multicast, opts.Interfaces); err != nil {
			pc.Close()
			return nil, err
		}
	}

	return c, nil
}

// join subscribes to a multicast group on each requested interface.
func (c *UDPConn) join(group string, ifNames []string) error {
	ip := net.ParseIP(group)
	if ip == nil || !ip.IsMulticast() {
		return fmt.Errorf("invalid multicast group %q", group)
	}
	gaddr := &net.UDPAddr{IP: ip}

	if len(ifNames) == 0 {
		if err := c.p4.JoinGroup(nil, gaddr); err != nil {
			return fmt.Errorf("failed to join %s: %w", group, err)
		}
		util.LogDebug("joined multicast group %s on default interface", group)
		return nil
	}

	for _, name := range ifNames {
		ifi, err := net.InterfaceByName(name)
		if err != nil {
			return fmt.Errorf("unknown interface %q: %w", name, err)
		}
		if err := c.p4.JoinGroup(ifi, gaddr); err != nil {
			return fmt.Errorf("failed to join %s on %s: %w", group, name, err)
		}
		util.LogDebug("joined multicast group %s on %s", group, name)
	}
	return nil
}

func (c *UDPConn) configureMulticastSend(opts UDPOptions) error {
	if opts.MulticastTTL > 0 {
		if err := c.p4.SetMulticastTTL(opts.MulticastTTL); err != nil {
			return fmt.Errorf("failed to set multicast TTL: %w", err)
		}
	}
	if err := c.p4.SetMulticastLoopback(opts.MulticastLoopback); err != nil {
		return fmt.Errorf("failed to set multicast loopback: %w", err)
	}
	if len(opts.Interfaces) > 0 {
		ifi, err := net.InterfaceByName(opts.Interfaces[0])
		if err != nil {
			return fmt.Errorf("unknown interface %q: %w", opts.Interfaces[0], err)
		}
		if err := c.p4.SetMulticastInterface(ifi); err != nil {
			return fmt.Errorf("failed to set multicast interface: %w", err)
		}
	}
	return nil
}

// LocalAddr returns the bound address.
func (c *UDPConn) LocalAddr() net.Addr {
	return c.pc.LocalAddr()
}

// Send writes one datagram. A nil dst uses the configured Destination.
func (c *UDPConn) Send(dst net.Addr, b []byte) error {
	if dst == nil {
		dst = c.dest
	}
	if dst == nil {
		return ErrNoDestination
	}
	_, err := c.pc.WriteTo(b, dst)
	if errors.Is(err, net.ErrClosed) {
		return ErrClosed
	}
	return err
}

// Receive reads one waiting datagram or returns ErrNoData.
func (c *UDPConn) Receive(buf []byte) (int, net.Addr, error) {
	if err := c.pc.SetReadDeadline(time.Now().Add(pollWait)); err != nil {
		return 0, nil, err
	}
	n, src, err := c.pc.ReadFrom(buf)
	switch {
	case err == nil:
		return n, src, nil
	case errors.Is(err, os.ErrDeadlineExceeded):
		return 0, nil, ErrNoData
	case errors.Is(err, net.ErrClosed):
		return 0, nil, ErrClosed
	default:
		return 0, nil, err
	}
}

// Close releases the socket.
func (c *UDPConn) Close() error {
	return c.pc.Close()
}
