package transport

import (
	"context"
	"errors"
	"net"
	"sync"

	"github.com/pion/webrtc/v4"

	"github.com/madmappersoftware/Ponk/internal/util"
)

// Tuning constants.
const (
	highWaterMark   = 256 * 1024 // drop outgoing datagrams above this bufferedAmount
	inboxBufferSize = 1024       // inbound datagrams waiting for Receive
)

// STUN servers for ICE candidate gathering. No TURN: PONK peers are
// expected to reach each other directly.
var stunServers = []string{
	"stun:stun.l.google.com:19302",
	"stun:stun1.l.google.com:19302",
}

// peerAddr is the source address reported for every datagram received on
// a PeerConn. There is exactly one remote.
type peerAddr struct{}

func (peerAddr) Network() string { return "webrtc" }
func (peerAddr) String() string  { return "webrtc-peer" }

// PeerConn carries PONK datagrams over a WebRTC DataChannel configured to
// behave like UDP: unordered and never retransmitted. It is the transport
// for senders and receivers that cannot reach each other with plain UDP.
//
// Its lifecycle is governed by the DataChannel state and the context passed
// at construction time.
type PeerConn struct {
	pc *webrtc.PeerConnection
	dc *webrtc.DataChannel

	inbox      chan []byte
	openSignal chan struct{}

	ctx    context.Context
	cancel context.CancelFunc

	mu      sync.RWMutex
	pcState webrtc.PeerConnectionState
}

// NewPeerConn creates a PeerConnection and a pre-negotiated DataChannel.
// The caller performs signaling through the exposed SDP/ICE methods and
// waits on Ready before sending.
func NewPeerConn(ctx context.Context) (*PeerConn, error) {
	pc, err := webrtc.NewPeerConnection(webrtc.Configuration{
		ICEServers: []webrtc.ICEServer{{URLs: stunServers}},
	})
	if err != nil {
		return nil, err
	}

	// Negotiated mode (ID 0) lets both sides create the channel without
	// OnDataChannel. Zero retransmits keeps stale frames from delaying new ones.
	ordered := false
	negotiated := true
	retransmits := uint16(0)
	id := uint16(0)
	dc, err := pc.CreateDataChannel("ponk", &webrtc.DataChannelInit{
		Ordered:        &ordered,
		MaxRetransmits: &retransmits,
		Negotiated:     &negotiated,
		ID:             &id,
	})
	if err != nil {
		pc.Close()
		return nil, err
	}

	pCtx, pCancel := context.WithCancel(ctx)

	p := &PeerConn{
		pc:         pc,
		dc:         dc,
		inbox:      make(chan []byte, inboxBufferSize),
		openSignal: make(chan struct{}),
		ctx:        pCtx,
		cancel:     pCancel,
		pcState:    webrtc.PeerConnectionStateNew,
	}

	var openOnce sync.Once
	dc.OnOpen(func() {
		openOnce.Do(func() { close(p.openSignal) })
	})

	dc.OnClose(func() {
		util.LogDebug("DataChannel closed")
		pCancel()
	})

	dc.OnMessage(func(msg webrtc.DataChannelMessage) {
		select {
		case p.inbox <- msg.Data:
		default:
			util.LogDebug("peer inbox full, dropping %d byte datagram", len(msg.Data))
		}
	})

	pc.OnConnectionStateChange(func(state webrtc.PeerConnectionState) {
		util.LogDebug("PeerConnection state: %s", state.String())
		p.mu.Lock()
		p.pcState = state
		p.mu.Unlock()
	})

	return p, nil
}

// ---------------------------------------------------------------------------
// Lifecycle
// ---------------------------------------------------------------------------

// Ready returns a channel that is closed once the DataChannel is open.
func (p *PeerConn) Ready() <-chan struct{} {
	return p.openSignal
}

// Done returns a channel that is closed when the DataChannel closes or the
// parent context is cancelled.
func (p *PeerConn) Done() <-chan struct{} {
	return p.ctx.Done()
}

// Close shuts down the DataChannel and PeerConnection.
func (p *PeerConn) Close() error {
	p.cancel()
	return errors.Join(p.dc.Close(), p.pc.Close())
}

// ConnectionState returns the last observed PeerConnection state.
func (p *PeerConn) ConnectionState() webrtc.PeerConnectionState {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.pcState
}

// ---------------------------------------------------------------------------
// Signaling
// ---------------------------------------------------------------------------

// CreateOffer generates an SDP offer.
func (p *PeerConn) CreateOffer() (webrtc.SessionDescription, error) {
	return p.pc.CreateOffer(nil)
}

// CreateAnswer generates an SDP answer.
func (p *PeerConn) CreateAnswer() (webrtc.SessionDescription, error) {
	return p.pc.CreateAnswer(nil)
}

// SetLocalDescription applies the local SDP.
func (p *PeerConn) SetLocalDescription(sdp webrtc.SessionDescription) error {
	return p.pc.SetLocalDescription(sdp)
}

// SetRemoteDescription applies the remote SDP.
func (p *PeerConn) SetRemoteDescription(sdp webrtc.SessionDescription) error {
	return p.pc.SetRemoteDescription(sdp)
}

// OnICECandidate registers a callback for gathered local candidates. A nil
// candidate signals the end of gathering.
func (p *PeerConn) OnICECandidate(fn func(*webrtc.ICECandidate)) {
	p.pc.OnICECandidate(fn)
}

// AddICECandidate adds a remote candidate received through signaling.
func (p *PeerConn) AddICECandidate(candidate webrtc.ICECandidateInit) error {
	return p.pc.AddICECandidate(candidate)
}

// ---------------------------------------------------------------------------
// Data
// ---------------------------------------------------------------------------

// Send transmits one datagram to the peer; dst is ignored. Datagrams are
// dropped with ErrCongested instead of queueing behind a slow link.
func (p *PeerConn) Send(_ net.Addr, b []byte) error {
	select {
	case <-p.openSignal:
	default:
		return ErrCongested
	}
	select {
	case <-p.ctx.Done():
		return ErrClosed
	default:
	}
	if p.dc.BufferedAmount() > uint64(highWaterMark) {
		return ErrCongested
	}
	return p.dc.Send(b)
}

// Receive returns the next inbound datagram, or ErrNoData.
func (p *PeerConn) Receive(buf []byte) (int, net.Addr, error) {
	select {
	case data := <-p.inbox:
		return copy(buf, data), peerAddr{}, nil
	case <-p.ctx.Done():
		return 0, nil, ErrClosed
	default:
		return 0, nil, ErrNoData
	}
}
