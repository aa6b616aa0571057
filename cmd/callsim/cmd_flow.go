package main

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/samaelod/callsim/engine"
	"github.com/samaelod/callsim/script"
	"github.com/samaelod/callsim/types"
)

func newFlowCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "flow",
		Short: "Replay a call start, optional screen pop and call end",
		Example: `  callsim flow --from +15550001234 --to +15550005678 --duration 42
  callsim flow --screen-pop --data caller_name=Ada --data account_id=7
  callsim flow --count 3 --instant --json
  callsim flow --export yaml > flow.yaml`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			jsonOut, _ := cmd.Flags().GetBool("json")
			from, _ := cmd.Flags().GetString("from")
			to, _ := cmd.Flags().GetString("to")
			duration, _ := cmd.Flags().GetInt("duration")
			screenPop, _ := cmd.Flags().GetBool("screen-pop")
			data, _ := cmd.Flags().GetStringToString("data")
			count, _ := cmd.Flags().GetInt("count")
			instant, _ := cmd.Flags().GetBool("instant")
			export, _ := cmd.Flags().GetString("export")

			if count < 1 {
				return fmt.Errorf("--count must be at least 1, got %d", count)
			}
			if duration < 0 {
				return fmt.Errorf("--duration must not be negative, got %d", duration)
			}

			cfg, err := loadConfig(cmd)
			if err != nil {
				return err
			}
			opts := cfg.Options()
			if instant {
				opts.Clock = engine.NewFakeClock(time.Now())
			}
			sim := engine.NewSimulator(opts)
			defer sim.Close()

			flow := types.CallFlowOptions{
				From:          from,
				To:            to,
				Duration:      duration,
				WithScreenPop: screenPop || len(data) > 0,
			}
			if len(data) > 0 {
				flow.ScreenPopData = make(map[string]any, len(data))
				for k, v := range data {
					flow.ScreenPopData[k] = v
				}
			}

			if export != "" {
				s := &types.Script{Globals: types.Globals{Name: "call flow"}}
				for range count {
					s.Events = append(s.Events, sim.BuildCallFlow(flow)...)
				}
				return script.Write(cmd.OutOrStdout(), s, export)
			}

			logger := newLogger(cmd)
			enc := json.NewEncoder(cmd.OutOrStdout())
			sim.OnEvent(func(ev types.Event) {
				if jsonOut {
					enc.Encode(ev)
				} else {
					fmt.Fprintln(cmd.OutOrStdout(), ev.String())
				}
			})

			if err := sim.Connect(cmd.Context()); err != nil {
				return err
			}
			defer sim.Disconnect()

			for i := range count {
				events, err := sim.ScriptCallFlow(cmd.Context(), flow)
				if err != nil {
					return fmt.Errorf("call flow %d: %w", i+1, err)
				}
				logger.Debug("call flow finished", "call_id", events[0].CallID, "events", len(events))
			}
			return nil
		},
	}

	cmd.Flags().String("from", "+15550001234", "Caller number")
	cmd.Flags().String("to", "+15550005678", "Called number")
	cmd.Flags().Int("duration", 30, "Call duration in seconds reported by call_end")
	cmd.Flags().Bool("screen-pop", false, "Emit a screen_pop between start and end")
	cmd.Flags().StringToString("data", nil, "Screen pop payload entries (key=value, implies --screen-pop)")
	cmd.Flags().Int("count", 1, "Number of call flows to replay back to back")
	cmd.Flags().Bool("instant", false, "Skip step delays (fake clock)")
	cmd.Flags().String("export", "", "Print the flow as a lua or yaml script instead of replaying it")

	return cmd
}
