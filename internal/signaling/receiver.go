package signaling

import (
	"encoding/json"
	"fmt"

	"github.com/gorilla/websocket"
	"github.com/pion/webrtc/v4"

	"github.com/madmappersoftware/Ponk/internal/util"
)

// receiver applies signaling messages from the remote side.
type receiver struct {
	sess   session
	conn   *websocket.Conn
	sender *sender
}

// watch reads messages until the WebSocket closes or a message cannot be
// applied. An offer is answered immediately.
func (r *receiver) watch() error {
	for {
		var msg message
		if err := r.conn.ReadJSON(&msg); err != nil {
			return fmt.Errorf("signaling: read: %w", err)
		}

		switch msg.Type {
		case msgTypeOffer:
			if err := r.sess.SetRemoteDescription(webrtc.SessionDescription{
				Type: webrtc.SDPTypeOffer, SDP: msg.SDP,
			}); err != nil {
				return fmt.Errorf("signaling: apply offer: %w", err)
			}
			if err := r.sender.sendAnswer(); err != nil {
				return fmt.Errorf("signaling: answer: %w", err)
			}

		case msgTypeAnswer:
			if err := r.sess.SetRemoteDescription(webrtc.SessionDescription{
				Type: webrtc.SDPTypeAnswer, SDP: msg.SDP,
			}); err != nil {
				return fmt.Errorf("signaling: apply answer: %w", err)
			}

		case msgTypeCandidate:
			var init webrtc.ICECandidateInit
			if err := json.Unmarshal([]byte(msg.Candidate), &init); err != nil {
				return fmt.Errorf("signaling: parse ICE candidate: %w", err)
			}
			if err := r.sess.AddICECandidate(init); err != nil {
				return fmt.Errorf("signaling: add ICE candidate: %w", err)
			}

		default:
			util.LogDebug("signaling: ignoring %q message", msg.Type)
		}
	}
}
