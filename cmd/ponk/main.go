// Command ponk is the PONK command-line tool.
//
// Sends or receives laser path frames with the PONK protocol over UDP, or
// over a WebRTC DataChannel when the two ends cannot reach each other
// directly (signaling uses a one-shot WebSocket).
package main

import (
	"context"
	"os"
	"os/signal"

	"github.com/pterm/pterm"
	"github.com/spf13/cobra"

	"github.com/madmappersoftware/Ponk/internal/config"
	"github.com/madmappersoftware/Ponk/internal/util"
)

// Version information set at build time.
var (
	version = "dev"
	commit  = "none"
)

// globalOptions are the persistent flags shared by every subcommand.
type globalOptions struct {
	configPath string
	debug      bool
	webrtc     string
}

func main() {
	// Root context, cancelled on Ctrl+C.
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	var opts globalOptions

	rootCmd := &cobra.Command{
		Use:   "ponk",
		Short: "Send and receive laser frames over the PONK protocol",
		Long: `Ponk streams vector laser frames between applications.

Frames are split into UDP datagrams with a 52-byte header, reassembled per
sender on the receiving side and verified with a checksum before use.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			if opts.debug {
				util.EnableDebug()
			}
		},
	}

	flags := rootCmd.PersistentFlags()
	flags.StringVarP(&opts.configPath, "config", "c", "", "TOML configuration file")
	flags.BoolVar(&opts.debug, "debug", false, "Enable debug logging")
	flags.StringVar(&opts.webrtc, "webrtc", "", `Use a WebRTC link instead of UDP: "host" to wait for a peer, or the peer's signaling URL`)

	rootCmd.AddCommand(
		sendCmd(&opts),
		receiveCmd(&opts),
		versionCmd(),
	)

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		util.LogError("%v", err)
		stop()
		os.Exit(1)
	}
}

// loadConfig resolves the configuration file (if any) and the debug flag.
func loadConfig(opts *globalOptions) (config.Config, error) {
	cfg := config.Default()
	if opts.configPath != "" {
		var err error
		if cfg, err = config.Load(opts.configPath); err != nil {
			return config.Config{}, err
		}
	}
	if opts.debug {
		cfg.Debug = true
	}
	if cfg.Debug {
		util.EnableDebug()
	}
	return cfg, nil
}

func printHeader(role string) {
	pterm.Info.Printfln("Ponk %s v%s", role, version)
	pterm.Println()
}
