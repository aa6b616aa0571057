package main

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"github.com/samaelod/callsim/lua"
	"github.com/samaelod/callsim/script"
)

func newImportCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "import <file>",
		Short: "Convert a SIP capture or script into a Lua or YAML script",
		Long: `Convert a SIP capture (.pcap, .pcapng, .cap) or an existing script into
a replayable Lua or YAML script.

Without --output the script is written to stdout. With --recent it is saved
as a new Lua file in the configured recent directory.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			format, _ := cmd.Flags().GetString("format")
			output, _ := cmd.Flags().GetString("output")
			recent, _ := cmd.Flags().GetBool("recent")

			s, err := script.Load(args[0])
			if err != nil {
				return err
			}
			logger := newLogger(cmd)
			logger.Info("imported", "name", s.Globals.Name, "source", s.Globals.Source,
				"steps", len(s.Events), "calls", len(s.CallOrder))

			if recent {
				path, err := lua.SaveToRecent(s, args[0])
				if err != nil {
					return err
				}
				fmt.Fprintln(cmd.OutOrStdout(), path)
				return nil
			}

			if output == "" {
				return script.Write(cmd.OutOrStdout(), s, format)
			}

			if !cmd.Flags().Changed("format") {
				format = strings.TrimPrefix(filepath.Ext(output), ".")
			}
			f, err := os.Create(output)
			if err != nil {
				return fmt.Errorf("creating output file: %w", err)
			}
			if err := script.Write(f, s, format); err != nil {
				f.Close()
				return err
			}
			return f.Close()
		},
	}

	cmd.Flags().StringP("format", "f", "lua", "Output format: lua or yaml (default from --output extension)")
	cmd.Flags().StringP("output", "o", "", "Output file (default stdout)")
	cmd.Flags().Bool("recent", false, "Save as Lua into the recent directory")

	return cmd
}
