package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/samaelod/callsim/config"
	"github.com/samaelod/callsim/engine"
	"github.com/samaelod/callsim/internal/logging"
	"github.com/samaelod/callsim/script"
	"github.com/samaelod/callsim/types"
)

// runResult is the outcome of replaying one script file.
type runResult struct {
	Path      string      `json:"path"`
	Name      string      `json:"name"`
	Events    int         `json:"events"`
	ElapsedMs int64       `json:"elapsed_ms"`
	Stats     types.Stats `json:"stats"`
	Error     string      `json:"error,omitempty"`
}

type runOptions struct {
	instant  bool
	parallel int
	trace    *logging.TraceWriter
	logger   *slog.Logger
}

func newRunCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "run <script>...",
		Short: "Replay one or more scripts headlessly",
		Long: `Replay Lua, YAML or SIP capture scripts, each against its own simulator.

Scripts run concurrently (see --parallel); results are printed in the order
the scripts were given. The command fails if any script fails.`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			jsonOut, _ := cmd.Flags().GetBool("json")
			instant, _ := cmd.Flags().GetBool("instant")
			parallel, _ := cmd.Flags().GetInt("parallel")
			tracePath, _ := cmd.Flags().GetString("trace")

			cfg, err := loadConfig(cmd)
			if err != nil {
				return err
			}

			trace, err := logging.NewTraceWriter(tracePath)
			if err != nil {
				return fmt.Errorf("opening trace file: %w", err)
			}
			defer trace.Close()

			results := runScripts(cmd.Context(), cfg, args, runOptions{
				instant:  instant,
				parallel: parallel,
				trace:    trace,
				logger:   newLogger(cmd),
			})

			if jsonOut {
				enc := json.NewEncoder(cmd.OutOrStdout())
				enc.SetIndent("", "  ")
				if err := enc.Encode(results); err != nil {
					return err
				}
			} else {
				printResults(cmd.OutOrStdout(), results)
			}

			failed := 0
			for _, r := range results {
				if r.Error != "" {
					failed++
				}
			}
			if failed > 0 {
				return fmt.Errorf("%d of %d scripts failed", failed, len(results))
			}
			return nil
		},
	}

	cmd.Flags().Bool("instant", false, "Skip step delays (fake clock)")
	cmd.Flags().Int("parallel", 4, "Maximum scripts replayed at once")
	cmd.Flags().String("trace", "", "Append every emitted event to this JSONL file")

	return cmd
}

// runScripts replays each path on its own simulator. Results keep the
// order of paths regardless of completion order.
func runScripts(ctx context.Context, cfg *config.Config, paths []string, opts runOptions) []runResult {
	if opts.logger == nil {
		opts.logger = slog.New(slog.DiscardHandler)
	}

	results := make([]runResult, len(paths))

	g, ctx := errgroup.WithContext(ctx)
	if opts.parallel > 0 {
		g.SetLimit(opts.parallel)
	}
	for i, path := range paths {
		g.Go(func() error {
			results[i] = replayFile(ctx, cfg, path, opts)
			return nil
		})
	}
	_ = g.Wait()

	return results
}

func replayFile(ctx context.Context, cfg *config.Config, path string, opts runOptions) runResult {
	res := runResult{Path: path}

	s, err := script.Load(path)
	if err != nil {
		opts.logger.Error("load failed", "path", path, "error", err)
		res.Error = err.Error()
		return res
	}
	res.Name = s.Globals.Name

	simOpts := cfg.OptionsFor(s.Globals)
	if opts.instant {
		simOpts.Clock = engine.NewFakeClock(time.Now())
	}
	sim := engine.NewSimulator(simOpts)
	defer sim.Close()

	logger := opts.logger.With("script", s.Globals.Name, "simulator", sim.ID())
	sim.OnEvent(func(ev types.Event) {
		opts.trace.Write(s.Globals.Name, ev)
		logger.Debug("event", "type", ev.Type, "call_id", ev.CallID)
	})

	start := time.Now()
	if err := sim.Connect(ctx); err != nil {
		res.Error = err.Error()
		return res
	}
	logger.Info("replay started", "steps", len(s.Events), "source", s.Globals.Source)

	events, err := sim.Script(ctx, s.Events)
	res.Events = len(events)
	res.ElapsedMs = time.Since(start).Milliseconds()
	res.Stats = sim.Stats()

	switch {
	case err == nil:
		logger.Info("replay finished", "events", len(events), "elapsed_ms", res.ElapsedMs)
	case errors.Is(err, context.Canceled):
		logger.Warn("replay cancelled", "events", len(events))
		res.Error = err.Error()
	default:
		logger.Error("replay failed", "events", len(events), "error", err)
		res.Error = err.Error()
	}

	if res.Stats.ListenerFailures > 0 {
		logger.Warn("listener failures", "count", res.Stats.ListenerFailures)
	}
	return res
}

func printResults(w io.Writer, results []runResult) {
	for _, r := range results {
		name := r.Name
		if name == "" {
			name = r.Path
		}
		if r.Error != "" {
			fmt.Fprintf(w, "FAIL  %s: %s\n", name, r.Error)
			continue
		}
		fmt.Fprintf(w, "ok    %s  %d events in %dms", name, r.Events, r.ElapsedMs)
		for _, t := range types.KnownEventTypes {
			if n := r.Stats.EventsByType[t]; n > 0 {
				fmt.Fprintf(w, "  %s=%d", t, n)
			}
		}
		fmt.Fprintln(w)
	}
}
