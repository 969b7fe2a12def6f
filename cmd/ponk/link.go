package main

import (
	"context"
	"fmt"
	"net/url"
	"strings"

	"github.com/madmappersoftware/Ponk/internal/config"
	"github.com/madmappersoftware/Ponk/internal/signaling"
	"github.com/madmappersoftware/Ponk/internal/transport"
	"github.com/madmappersoftware/Ponk/internal/util"
)

// openLink returns the transport for a subcommand: a WebRTC peer when
// --webrtc is set, otherwise a UDP socket bound to bind.
func openLink(ctx context.Context, cfg config.Config, webrtcMode, bind string, udpOpts transport.UDPOptions) (transport.Conn, error) {
	switch webrtcMode {
	case "":
		conn, err := transport.ListenUDP(bind, udpOpts)
		if err != nil {
			return nil, err
		}
		util.LogInfo("UDP socket bound to %s", conn.LocalAddr())
		return conn, nil

	case "host":
		pc, err := signaling.EstablishAsHost(ctx, cfg.SignalAddr)
		if err != nil {
			return nil, err
		}
		return pc, nil

	default:
		wsURL, err := normalizeWSURL(webrtcMode)
		if err != nil {
			return nil, err
		}
		pc, err := signaling.EstablishAsClient(ctx, wsURL)
		if err != nil {
			return nil, err
		}
		return pc, nil
	}
}

// normalizeWSURL validates a signaling URL and points it at the signaling
// path, keeping the PIN query. A bare host defaults to ws://.
func normalizeWSURL(raw string) (string, error) {
	raw = strings.TrimSpace(raw)
	if !strings.Contains(raw, "://") {
		raw = "ws://" + raw
	}
	u, err := url.Parse(raw)
	if err != nil || u.Host == "" {
		return "", fmt.Errorf("invalid signaling URL: %s", raw)
	}
	if u.Scheme != "ws" && u.Scheme != "wss" {
		return "", fmt.Errorf("invalid signaling URL scheme %q: want ws or wss", u.Scheme)
	}
	if u.Query().Get("pin") == "" {
		return "", fmt.Errorf("signaling URL %s has no ?pin=", raw)
	}
	u.Path = signaling.Path
	return u.String(), nil
}
