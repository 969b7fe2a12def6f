package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "ponk.toml")
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return path
}

func TestDefaultIsValid(t *testing.T) {
	cfg := Default()
	if err := cfg.Validate(); err != nil {
		t.Fatalf("default config invalid: %v", err)
	}
	if cfg.Listen != ":5583" || cfg.Destination != "127.0.0.1:5583" {
		t.Errorf("addresses: listen=%q destination=%q", cfg.Listen, cfg.Destination)
	}
	if cfg.MaxPayload != 8192 {
		t.Errorf("max payload: got %d", cfg.MaxPayload)
	}
}

func TestLoadOverridesOnlyDefinedKeys(t *testing.T) {
	path := writeConfig(t, `
destination = "10.0.0.5:6000"
multicast = "239.255.0.7"
interfaces = [" eth0 ", "", "wlan0"]
sender_id = 123123
sender_name = "Sample Sender"
max_payload = 1400
format = 0
stale_after = "250ms"
metrics_addr = "127.0.0.1:9100"
debug = true
`)

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	def := Default()

	if cfg.Destination != "10.0.0.5:6000" {
		t.Errorf("destination: got %q", cfg.Destination)
	}
	if cfg.Multicast != "239.255.0.7" {
		t.Errorf("multicast: got %q", cfg.Multicast)
	}
	if len(cfg.Interfaces) != 2 || cfg.Interfaces[0] != "eth0" || cfg.Interfaces[1] != "wlan0" {
		t.Errorf("interfaces: got %q", cfg.Interfaces)
	}
	if cfg.SenderID != 123123 || cfg.SenderName != "Sample Sender" {
		t.Errorf("sender: got %d %q", cfg.SenderID, cfg.SenderName)
	}
	if cfg.MaxPayload != 1400 || cfg.Format != 0 {
		t.Errorf("payload/format: got %d/%d", cfg.MaxPayload, cfg.Format)
	}
	if cfg.StaleAfter != 250*time.Millisecond {
		t.Errorf("stale_after: got %v", cfg.StaleAfter)
	}
	if cfg.MetricsAddr != "127.0.0.1:9100" || !cfg.Debug {
		t.Errorf("metrics/debug: got %q %v", cfg.MetricsAddr, cfg.Debug)
	}

	// Untouched keys keep their defaults.
	if cfg.Listen != def.Listen || cfg.FPS != def.FPS || cfg.PollInterval != def.PollInterval {
		t.Errorf("defaults lost: %+v", cfg)
	}
	if err := cfg.Validate(); err != nil {
		t.Errorf("Validate: %v", err)
	}
}

func TestLoadErrors(t *testing.T) {
	testCases := []struct {
		name string
		body string
		want string
	}{
		{"syntax", `listen = `, "load config"},
		{"unknown key", `colour = "red"`, "unknown key"},
		{"bad duration", `stale_after = "soon"`, "stale_after"},
		{"sender id range", `sender_id = 4294967296`, "sender_id"},
		{"negative format", `format = -1`, "format"},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := Load(writeConfig(t, tc.body))
			if err == nil || !strings.Contains(err.Error(), tc.want) {
				t.Errorf("got %v, want error containing %q", err, tc.want)
			}
		})
	}
}

func TestLoadMissingFile(t *testing.T) {
	if _, err := Load(filepath.Join(t.TempDir(), "missing.toml")); err == nil {
		t.Error("expected an error for a missing file")
	}
}

func TestValidate(t *testing.T) {
	testCases := []struct {
		name   string
		mutate func(*Config)
		want   string
	}{
		{"payload zero", func(c *Config) { c.MaxPayload = 0 }, "max_payload"},
		{"payload too large", func(c *Config) { c.MaxPayload = 8193 }, "max_payload"},
		{"unknown format", func(c *Config) { c.Format = 2 }, "format"},
		{"long name", func(c *Config) { c.SenderName = strings.Repeat("n", 33) }, "sender_name"},
		{"zero fps", func(c *Config) { c.FPS = 0 }, "fps"},
		{"ttl", func(c *Config) { c.MulticastTTL = 300 }, "multicast_ttl"},
		{"poll interval", func(c *Config) { c.PollInterval = 0 }, "poll_interval"},
		{"negative stale", func(c *Config) { c.StaleAfter = -time.Second }, "stale_after"},
		{"unicast group", func(c *Config) { c.Multicast = "10.0.0.1" }, "multicast"},
		{"ipv6 group", func(c *Config) { c.Multicast = "ff02::1" }, "multicast"},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			cfg := Default()
			tc.mutate(&cfg)
			err := cfg.Validate()
			if err == nil || !strings.Contains(err.Error(), tc.want) {
				t.Errorf("got %v, want error containing %q", err, tc.want)
			}
		})
	}
}

func TestValidateJoinsErrors(t *testing.T) {
	cfg := Default()
	cfg.MaxPayload = 0
	cfg.FPS = 0

	err := cfg.Validate()
	if err == nil {
		t.Fatal("expected an error")
	}
	for _, want := range []string{"max_payload", "fps"} {
		if !strings.Contains(err.Error(), want) {
			t.Errorf("error %q missing %q", err, want)
		}
	}
}
