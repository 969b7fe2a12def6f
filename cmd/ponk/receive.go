package main

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/pterm/pterm"
	"github.com/spf13/cobra"

	"github.com/madmappersoftware/Ponk/internal/config"
	"github.com/madmappersoftware/Ponk/internal/protocol"
	"github.com/madmappersoftware/Ponk/internal/receiver"
	"github.com/madmappersoftware/Ponk/internal/transport"
	"github.com/madmappersoftware/Ponk/internal/util"
)

func receiveCmd(opts *globalOptions) *cobra.Command {
	var (
		listen     string
		multicast  string
		interfaces []string
		staleAfter time.Duration
		printAll   bool
	)

	cmd := &cobra.Command{
		Use:   "receive",
		Short: "Receive frames and print them",
		Long: `Listen for PONK datagrams, reassemble frames per sender and print a
summary of each verified frame. The sender table is printed on exit.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(opts)
			if err != nil {
				return err
			}

			f := cmd.Flags()
			if f.Changed("listen") {
				cfg.Listen = listen
			}
			if f.Changed("multicast") {
				cfg.Multicast = multicast
			}
			if f.Changed("interface") {
				cfg.Interfaces = interfaces
			}
			if f.Changed("stale-after") {
				cfg.StaleAfter = staleAfter
			}
			if err := cfg.Validate(); err != nil {
				return err
			}

			printHeader("receiver")
			return runReceiver(cmd.Context(), cfg, opts.webrtc, printAll)
		},
	}

	cmd.Flags().StringVarP(&listen, "listen", "l", "", "Local UDP address to bind")
	cmd.Flags().StringVarP(&multicast, "multicast", "m", "", "IPv4 multicast group to join")
	cmd.Flags().StringSliceVarP(&interfaces, "interface", "i", nil, "Interfaces to join the group on")
	cmd.Flags().DurationVar(&staleAfter, "stale-after", 0, "Drop partial frames idle this long (0 = never)")
	cmd.Flags().BoolVarP(&printAll, "print", "p", false, "Print every frame instead of only the first from each sender")

	return cmd
}

func runReceiver(ctx context.Context, cfg config.Config, webrtcMode string, printAll bool) error {
	conn, err := openLink(ctx, cfg, webrtcMode, cfg.Listen, transport.UDPOptions{
		Multicast:  cfg.Multicast,
		Interfaces: cfg.Interfaces,
	})
	if err != nil {
		return err
	}
	defer conn.Close()

	printed := make(map[uint32]bool)
	r := receiver.New(conn, receiver.Options{
		PollInterval: cfg.PollInterval,
		StaleAfter:   cfg.StaleAfter,
		OnFrame: func(f receiver.Frame) {
			if printAll || !printed[f.SenderID] {
				printed[f.SenderID] = true
				pterm.Println(describeFrame(f))
			}
		},
	})

	startSidecars(ctx, cfg)
	util.LogInfo("receiving (stale-after %s)", cfg.StaleAfter)

	err = r.Run(ctx)
	printSenders(r.Senders())
	return err
}

// describeFrame renders a one-line summary of a frame and its paths.
func describeFrame(f receiver.Frame) string {
	var b strings.Builder
	fmt.Fprintf(&b, "[%08x] %q frame %3d: %d path(s)", f.SenderID, f.SenderName, f.FrameNumber, len(f.Paths))
	for i, p := range f.Paths {
		fmt.Fprintf(&b, "\n  #%d format %d, %d point(s)", i, p.Format, len(p.Points))
		for _, m := range p.MetaData {
			fmt.Fprintf(&b, ", %s=%g", m.Name(), m.Value)
		}
		if len(p.Points) > 0 {
			fmt.Fprintf(&b, ", first %s", describePoint(p.Points[0]))
		}
	}
	return b.String()
}

func describePoint(p protocol.Point) string {
	return fmt.Sprintf("(%.3f, %.3f) rgb(%.2f, %.2f, %.2f)", p.X, p.Y, p.R, p.G, p.B)
}

func printSenders(senders []receiver.SenderInfo) {
	if len(senders) == 0 {
		return
	}
	data := pterm.TableData{{"ID", "Name", "Source", "Version", "Frames", "Last seen"}}
	for _, s := range senders {
		src := "-"
		if s.Source != nil {
			src = s.Source.String()
		}
		data = append(data, []string{
			fmt.Sprintf("%08x", s.ID),
			s.Name,
			src,
			fmt.Sprint(s.Version),
			fmt.Sprint(s.Frames),
			s.LastSeen.Format("15:04:05"),
		})
	}
	pterm.Println()
	_ = pterm.DefaultTable.WithHasHeader().WithData(data).Render()
}
