package main

import (
	"context"
	"fmt"
	"log"
	"log/slog"
	"os"
	"os/signal"

	"github.com/spf13/cobra"

	"github.com/samaelod/callsim/config"
	"github.com/samaelod/callsim/internal/logging"
	"github.com/samaelod/callsim/tui"
)

var version = "dev"

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	if err := newRootCmd().ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "callsim",
		Short: "Telephony event simulator",
		Long: `callsim emits deterministic telephony events (call start, screen pop,
hold, transfer, DTMF, call end) from Lua, YAML or SIP capture scripts.

Run without arguments to open the interactive replay UI.`,
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			// Only create debug log in dev builds
			if version == "dev" {
				f, err := os.OpenFile("debug.log", os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0600)
				if err == nil {
					log.SetOutput(f)
					defer f.Close()
				}
			}

			cfg, err := loadConfig(cmd)
			if err != nil {
				return err
			}
			return tui.Run(version, cfg)
		},
	}

	// Global flags
	rootCmd.PersistentFlags().Bool("json", false, "Output as JSON")
	rootCmd.PersistentFlags().String("config", "", "Config file (json or yaml)")
	rootCmd.PersistentFlags().String("log-level", "info", "Log level: debug, info, warn, error")
	rootCmd.PersistentFlags().String("log-format", "text", "Log format: text or json")

	rootCmd.AddCommand(
		newVersionCmd(),
		newRunCmd(),
		newFlowCmd(),
		newImportCmd(),
	)

	return rootCmd
}

// loadConfig reads --config when given, otherwise the default locations.
func loadConfig(cmd *cobra.Command) (*config.Config, error) {
	path, _ := cmd.Flags().GetString("config")
	if path == "" {
		return config.LoadDefault()
	}
	return config.Load(path)
}

func newLogger(cmd *cobra.Command) *slog.Logger {
	level, _ := cmd.Flags().GetString("log-level")
	format, _ := cmd.Flags().GetString("log-format")
	return logging.NewLogger(level, format, cmd.ErrOrStderr())
}
