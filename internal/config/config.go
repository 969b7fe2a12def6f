// Package config holds the settings shared by `ponk send` and `ponk receive`.
// Values come from built-in defaults, then an optional TOML file, then
// command-line flags.
package config

import (
	"errors"
	"fmt"
	"net"
	"strings"
	"time"

	"github.com/BurntSushi/toml"

	"github.com/madmappersoftware/Ponk/internal/protocol"
)

// Config stores every tunable of a PONK node.
type Config struct {
	Listen       string   // receive: local UDP address to bind
	Destination  string   // send: UDP address datagrams go to; may be a multicast group
	Multicast    string   // receive: optional IPv4 group to join
	Interfaces   []string // multicast interfaces; empty = system default
	MulticastTTL int

	SenderID   uint32 // 0 = random per run
	SenderName string
	MaxPayload int   // body bytes per datagram
	Format     uint8 // point format of the demo sender
	FPS        int

	PollInterval time.Duration
	StaleAfter   time.Duration // 0 = keep partial frames until superseded

	SignalAddr  string // --webrtc host: signaling listen address
	MetricsAddr string // empty = no /metrics endpoint
	Debug       bool
}

// Default returns the built-in configuration.
func Default() Config {
	port := fmt.Sprint(protocol.DefaultPort)
	return Config{
		Listen:       net.JoinHostPort("", port),
		Destination:  net.JoinHostPort("127.0.0.1", port),
		MulticastTTL: 1,
		SenderName:   "Ponk Sender",
		MaxPayload:   protocol.MaxChunkPayload,
		Format:       protocol.FormatXYF32RGBU8,
		FPS:          60,
		PollInterval: time.Millisecond,
		SignalAddr:   ":5584",
	}
}

type fileConfig struct {
	Listen       string   `toml:"listen"`
	Destination  string   `toml:"destination"`
	Multicast    string   `toml:"multicast"`
	Interfaces   []string `toml:"interfaces"`
	MulticastTTL int      `toml:"multicast_ttl"`
	SenderID     int64    `toml:"sender_id"`
	SenderName   string   `toml:"sender_name"`
	MaxPayload   int      `toml:"max_payload"`
	Format       int      `toml:"format"`
	FPS          int      `toml:"fps"`
	PollInterval string   `toml:"poll_interval"`
	StaleAfter   string   `toml:"stale_after"`
	SignalAddr   string   `toml:"signal_addr"`
	MetricsAddr  string   `toml:"metrics_addr"`
	Debug        bool     `toml:"debug"`
}

// Load reads a TOML file over the defaults. Keys absent from the file keep
// their default value.
func Load(path string) (Config, error) {
	cfg := Default()

	var raw fileConfig
	meta, err := toml.DecodeFile(path, &raw)
	if err != nil {
		return Config{}, fmt.Errorf("load config: %w", err)
	}
	if undecoded := meta.Undecoded(); len(undecoded) > 0 {
		return Config{}, fmt.Errorf("load config: unknown key %q", undecoded[0].String())
	}

	if meta.IsDefined("listen") {
		cfg.Listen = strings.TrimSpace(raw.Listen)
	}
	if meta.IsDefined("destination") {
		cfg.Destination = strings.TrimSpace(raw.Destination)
	}
	if meta.IsDefined("multicast") {
		cfg.Multicast = strings.TrimSpace(raw.Multicast)
	}
	if meta.IsDefined("interfaces") {
		cfg.Interfaces = normalizeList(raw.Interfaces)
	}
	if meta.IsDefined("multicast_ttl") {
		cfg.MulticastTTL = raw.MulticastTTL
	}
	if meta.IsDefined("sender_id") {
		if raw.SenderID < 0 || raw.SenderID > 0xFFFFFFFF {
			return Config{}, fmt.Errorf("parse sender_id: %d out of range", raw.SenderID)
		}
		cfg.SenderID = uint32(raw.SenderID)
	}
	if meta.IsDefined("sender_name") {
		cfg.SenderName = raw.SenderName
	}
	if meta.IsDefined("max_payload") {
		cfg.MaxPayload = raw.MaxPayload
	}
	if meta.IsDefined("format") {
		if raw.Format < 0 || raw.Format > 255 {
			return Config{}, fmt.Errorf("parse format: %d out of range", raw.Format)
		}
		cfg.Format = uint8(raw.Format)
	}
	if meta.IsDefined("fps") {
		cfg.FPS = raw.FPS
	}
	if meta.IsDefined("poll_interval") {
		d, err := time.ParseDuration(strings.TrimSpace(raw.PollInterval))
		if err != nil {
			return Config{}, fmt.Errorf("parse poll_interval: %w", err)
		}
		cfg.PollInterval = d
	}
	if meta.IsDefined("stale_after") {
		d, err := time.ParseDuration(strings.TrimSpace(raw.StaleAfter))
		if err != nil {
			return Config{}, fmt.Errorf("parse stale_after: %w", err)
		}
		cfg.StaleAfter = d
	}
	if meta.IsDefined("signal_addr") {
		cfg.SignalAddr = strings.TrimSpace(raw.SignalAddr)
	}
	if meta.IsDefined("metrics_addr") {
		cfg.MetricsAddr = strings.TrimSpace(raw.MetricsAddr)
	}
	if meta.IsDefined("debug") {
		cfg.Debug = raw.Debug
	}

	return cfg, nil
}

// Validate reports every invalid setting at once.
func (c Config) Validate() error {
	var errs []error

	if c.MaxPayload < 1 || c.MaxPayload > protocol.MaxChunkPayload {
		errs = append(errs, fmt.Errorf("max_payload must be in [1, %d], got %d", protocol.MaxChunkPayload, c.MaxPayload))
	}
	if _, ok := protocol.BytesPerPoint(c.Format); !ok {
		errs = append(errs, fmt.Errorf("format %d is not a known point format", c.Format))
	}
	if len(c.SenderName) > protocol.SenderNameSize {
		errs = append(errs, fmt.Errorf("sender_name is %d bytes, limit is %d", len(c.SenderName), protocol.SenderNameSize))
	}
	if c.FPS <= 0 {
		errs = append(errs, fmt.Errorf("fps must be positive, got %d", c.FPS))
	}
	if c.MulticastTTL < 0 || c.MulticastTTL > 255 {
		errs = append(errs, fmt.Errorf("multicast_ttl must be in [0, 255], got %d", c.MulticastTTL))
	}
	if c.PollInterval <= 0 {
		errs = append(errs, fmt.Errorf("poll_interval must be positive, got %s", c.PollInterval))
	}
	if c.StaleAfter < 0 {
		errs = append(errs, fmt.Errorf("stale_after must not be negative, got %s", c.StaleAfter))
	}
	if c.Multicast != "" {
		if ip := net.ParseIP(c.Multicast); ip == nil || ip.To4() == nil || !ip.IsMulticast() {
			errs = append(errs, fmt.Errorf("multicast %q is not an IPv4 multicast group", c.Multicast))
		}
	}

	return errors.Join(errs...)
}

func normalizeList(in []string) []string {
	out := make([]string, 0, len(in))
	for _, v := range in {
		if v = strings.TrimSpace(v); v != "" {
			out = append(out, v)
		}
	}
	return out
}
