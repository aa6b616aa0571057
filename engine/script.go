package engine

import (
	"context"
	"fmt"
	"maps"
	"time"

	"github.com/samaelod/callsim/types"
)

const (
	callFlowScreenPopDelay = 100 // ms
	callFlowEndDelay       = 500 // ms
)

// Script emits steps in order, waiting each step's Delay first. The
// connection is checked once up front; a disconnect while the script runs
// surfaces as a *NotConnectedError on the next step. Events emitted before
// a failure are returned with the error and stay in the log.
func (s *Simulator) Script(ctx context.Context, steps []types.ScriptedEvent) ([]types.Event, error) {
	if !s.IsConnected() {
		return nil, &NotConnectedError{Op: "script"}
	}

	s.log.Printf("Script started: %d steps", len(steps))
	start := s.clock.Now()

	emitted := make([]types.Event, 0, len(steps))
	for i, step := range steps {
		if err := ctx.Err(); err != nil {
			s.log.Printf("Script stopped at step %d", i)
			return emitted, fmt.Errorf("script step %d: %w", i, err)
		}

		if step.Delay > 0 {
			select {
			case <-s.clock.After(time.Duration(step.Delay) * time.Millisecond):
			case <-ctx.Done():
				s.log.Printf("Script stopped at step %d", i)
				return emitted, fmt.Errorf("script step %d: %w", i, ctx.Err())
			}
		}

		ev, err := s.EmitEvent(step.Type, step.EventFields)
		if err != nil {
			elapsed := s.clock.Now().Sub(start).Milliseconds()
			s.log.Printf("[+%dms] Script aborted at step %d: %v", elapsed, i, err)
			return emitted, fmt.Errorf("script step %d: %w", i, err)
		}
		emitted = append(emitted, ev)
	}

	s.log.Printf("Script finished: %d events", len(emitted))
	return emitted, nil
}

// BuildCallFlow shapes a start -> [screen_pop] -> end script sharing one
// generated call id.
func (s *Simulator) BuildCallFlow(opts types.CallFlowOptions) []types.ScriptedEvent {
	callID := s.GenerateCallID()

	steps := []types.ScriptedEvent{{
		Type: types.EventCallStart,
		EventFields: types.EventFields{
			CallID:    callID,
			From:      opts.From,
			To:        opts.To,
			Direction: types.DirectionInbound,
			State:     types.StateRinging,
		},
	}}

	if opts.WithScreenPop {
		payload := make(map[string]any, len(opts.ScreenPopData)+1)
		payload["phone_number"] = opts.From
		maps.Copy(payload, opts.ScreenPopData)

		steps = append(steps, types.ScriptedEvent{
			Type: types.EventScreenPop,
			EventFields: types.EventFields{
				CallID:  callID,
				From:    opts.From,
				To:      opts.To,
				Payload: payload,
			},
			Delay: callFlowScreenPopDelay,
		})
	}

	steps = append(steps, types.ScriptedEvent{
		Type: types.EventCallEnd,
		EventFields: types.EventFields{
			CallID:   callID,
			From:     opts.From,
			To:       opts.To,
			State:    types.StateEnded,
			Duration: opts.Duration,
		},
		Delay: callFlowEndDelay,
	})

	return steps
}

// ScriptCallFlow builds a call flow and replays it.
func (s *Simulator) ScriptCallFlow(ctx context.Context, opts types.CallFlowOptions) ([]types.Event, error) {
	if !s.IsConnected() {
		return nil, &NotConnectedError{Op: "script call flow"}
	}
	return s.Script(ctx, s.BuildCallFlow(opts))
}
