package main

import (
	"context"
	"errors"
	"time"

	"github.com/spf13/cobra"

	"github.com/madmappersoftware/Ponk/internal/config"
	"github.com/madmappersoftware/Ponk/internal/observability"
	"github.com/madmappersoftware/Ponk/internal/sender"
	"github.com/madmappersoftware/Ponk/internal/transport"
	"github.com/madmappersoftware/Ponk/internal/util"
)

func sendCmd(opts *globalOptions) *cobra.Command {
	var (
		dest       string
		name       string
		id         uint32
		format     uint8
		fps        int
		maxPayload int
		frames     int
	)

	cmd := &cobra.Command{
		Use:   "send",
		Short: "Stream the demo scene",
		Long: `Stream an animated circle and a triangle, the reference PONK test
pattern, to a receiver until interrupted.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(opts)
			if err != nil {
				return err
			}

			f := cmd.Flags()
			if f.Changed("dest") {
				cfg.Destination = dest
			}
			if f.Changed("name") {
				cfg.SenderName = name
			}
			if f.Changed("id") {
				cfg.SenderID = id
			}
			if f.Changed("format") {
				cfg.Format = format
			}
			if f.Changed("fps") {
				cfg.FPS = fps
			}
			if f.Changed("max-payload") {
				cfg.MaxPayload = maxPayload
			}
			if err := cfg.Validate(); err != nil {
				return err
			}

			printHeader("sender")
			return runSender(cmd.Context(), cfg, opts.webrtc, frames)
		},
	}

	cmd.Flags().StringVarP(&dest, "dest", "d", "", "Destination address (unicast, broadcast or multicast)")
	cmd.Flags().StringVarP(&name, "name", "n", "", "Sender name shown by receivers")
	cmd.Flags().Uint32Var(&id, "id", 0, "Sender identifier (0 = random)")
	cmd.Flags().Uint8VarP(&format, "format", "f", 0, "Point format: 0 = XYRGB u16, 1 = XY f32 + RGB u8")
	cmd.Flags().IntVar(&fps, "fps", 0, "Frames per second")
	cmd.Flags().IntVar(&maxPayload, "max-payload", 0, "Frame bytes per datagram")
	cmd.Flags().IntVar(&frames, "frames", 0, "Stop after this many frames (0 = run until interrupted)")

	return cmd
}

func runSender(ctx context.Context, cfg config.Config, webrtcMode string, frames int) error {
	conn, err := openLink(ctx, cfg, webrtcMode, ":0", transport.UDPOptions{
		Destination:       cfg.Destination,
		Interfaces:        cfg.Interfaces,
		MulticastTTL:      cfg.MulticastTTL,
		MulticastLoopback: true,
	})
	if err != nil {
		return err
	}
	defer conn.Close()

	if cfg.SenderID == 0 {
		cfg.SenderID = util.NewSenderID()
	}
	s := sender.New(conn, sender.Options{
		SenderID:   cfg.SenderID,
		SenderName: cfg.SenderName,
		MaxPayload: cfg.MaxPayload,
	})

	startSidecars(ctx, cfg)
	util.LogInfo("sending as %q (id %08x) to %s at %d fps, format %d",
		cfg.SenderName, cfg.SenderID, cfg.Destination, cfg.FPS, cfg.Format)

	ticker := time.NewTicker(time.Second / time.Duration(cfg.FPS))
	defer ticker.Stop()

	start := time.Now()
	for sent := 0; frames == 0 || sent < frames; sent++ {
		t := time.Since(start).Seconds()
		if _, err := s.Send(demoFrame(t, cfg.Format)); err != nil {
			if !errors.Is(err, sender.ErrProtocolLimit) {
				return err
			}
			util.LogError("%v", err)
		}

		select {
		case <-ticker.C:
		case <-ctx.Done():
			util.LogInfo("sender stopped")
			return nil
		}
	}
	return nil
}

// startSidecars launches the periodic stats log and, if configured, the
// metrics endpoint. Both stop with ctx.
func startSidecars(ctx context.Context, cfg config.Config) {
	util.StartStatsReporter(ctx)
	if cfg.MetricsAddr == "" {
		return
	}
	go func() {
		if err := observability.Serve(ctx, cfg.MetricsAddr); err != nil {
			util.LogError("metrics endpoint: %v", err)
		}
	}()
}
