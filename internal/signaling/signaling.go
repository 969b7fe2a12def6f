// Package signaling sets up a WebRTC peer link for PONK over a one-shot
// WebSocket exchange. The host waits for a single peer that knows the PIN,
// offers, and both sides trickle ICE candidates until the DataChannel opens.
// Callers receive a ready transport.PeerConn; the WebSocket is closed by then.
package signaling

import (
	"context"
	"errors"
	"fmt"

	"github.com/gorilla/websocket"
	"github.com/pion/webrtc/v4"
	"github.com/pterm/pterm"

	"github.com/madmappersoftware/Ponk/internal/transport"
	"github.com/madmappersoftware/Ponk/internal/util"
)

// ErrInvalidPIN is returned to a peer whose PIN the host rejected.
var ErrInvalidPIN = errors.New("invalid PIN")

const pinLength = 4

// EstablishAsHost listens on addr, prints the PIN, waits for one peer and
// offers a PeerConn to it.
func EstablishAsHost(ctx context.Context, addr string) (*transport.PeerConn, error) {
	pin := generatePIN(pinLength)
	srv := newServer(pin)
	bound, err := srv.start(addr)
	if err != nil {
		return nil, err
	}
	defer srv.close()

	pterm.DefaultBox.WithTitle("PONK signaling").Println(
		fmt.Sprintf("Address : %s%s\nPIN     : %s", bound, Path, pin))
	util.LogInfo("waiting for peer...")

	wsConn, err := srv.waitForPeer(ctx)
	if err != nil {
		return nil, fmt.Errorf("signaling: wait for peer: %w", err)
	}
	defer wsConn.Close()
	util.LogInfo("peer connected from %s", wsConn.RemoteAddr())

	return exchange(ctx, wsConn, true)
}

// EstablishAsClient dials the host's signaling URL (including ?pin=) and
// answers its offer.
func EstablishAsClient(ctx context.Context, url string) (*transport.PeerConn, error) {
	wsConn, err := connect(ctx, url)
	if err != nil {
		return nil, err
	}
	defer wsConn.Close()
	util.LogInfo("signaling connected: %s", url)

	return exchange(ctx, wsConn, false)
}

// exchange runs SDP/ICE over wsConn until the DataChannel opens. The
// offering side sends first; the other side answers from watch.
func exchange(ctx context.Context, wsConn *websocket.Conn, offer bool) (*transport.PeerConn, error) {
	pc, err := transport.NewPeerConn(ctx)
	if err != nil {
		return nil, fmt.Errorf("signaling: create peer: %w", err)
	}

	s := &sender{sess: pc, conn: wsConn}
	r := &receiver{sess: pc, conn: wsConn, sender: s}

	pc.OnICECandidate(func(c *webrtc.ICECandidate) {
		// Best effort: late candidates may race the WebSocket closing.
		if err := s.sendCandidate(c); err != nil {
			util.LogDebug("signaling: send candidate: %v", err)
		}
	})

	// Exits when wsConn is closed by the caller.
	errCh := make(chan error, 1)
	go func() { errCh <- r.watch() }()

	if offer {
		if err := s.sendOffer(); err != nil {
			pc.Close()
			return nil, fmt.Errorf("signaling: offer: %w", err)
		}
	}

	select {
	case <-pc.Ready():
		util.LogInfo("DataChannel open, closing signaling")
		return pc, nil

	case err := <-errCh:
		pc.Close()
		return nil, err

	case <-ctx.Done():
		pc.Close()
		return nil, ctx.Err()
	}
}
