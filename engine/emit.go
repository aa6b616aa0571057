package engine

import (
	"maps"

	"github.com/samaelod/callsim/types"
)

type CallStartOptions struct {
	CallID    string
	From      string
	To        string
	Direction types.Direction // default inbound
	State     types.CallState // default ringing
	Payload   map[string]any
}

// ScreenPopOptions are mapped into the screen_pop payload.
type ScreenPopOptions struct {
	PhoneNumber string
	CallerName  string
	AccountID   string
	To          string
	Data        map[string]any
}

func (s *Simulator) EmitCallStart(opts CallStartOptions) (types.Event, error) {
	if opts.Direction == "" {
		opts.Direction = types.DirectionInbound
	}
	if opts.State == "" {
		opts.State = types.StateRinging
	}
	return s.EmitEvent(types.EventCallStart, types.EventFields{
		CallID:    opts.CallID,
		From:      opts.From,
		To:        opts.To,
		Direction: opts.Direction,
		State:     opts.State,
		Payload:   opts.Payload,
	})
}

func (s *Simulator) EmitCallEnd(callID string, duration int) (types.Event, error) {
	return s.EmitEvent(types.EventCallEnd, types.EventFields{
		CallID:   callID,
		State:    types.StateEnded,
		Duration: duration,
	})
}

func (s *Simulator) EmitCallTransfer(callID, transferTo string) (types.Event, error) {
	return s.EmitEvent(types.EventCallTransfer, types.EventFields{
		CallID:     callID,
		State:      types.StateTransferred,
		TransferTo: transferTo,
	})
}

// EmitScreenPop always uses a freshly generated call id.
func (s *Simulator) EmitScreenPop(opts ScreenPopOptions) (types.Event, error) {
	payload := make(map[string]any, len(opts.Data)+3)
	maps.Copy(payload, opts.Data)
	if opts.PhoneNumber != "" {
		payload["phone_number"] = opts.PhoneNumber
	}
	if opts.CallerName != "" {
		payload["caller_name"] = opts.CallerName
	}
	if opts.AccountID != "" {
		payload["account_id"] = opts.AccountID
	}

	if !s.IsConnected() {
		return types.Event{}, &NotConnectedError{Op: "emit " + string(types.EventScreenPop)}
	}
	return s.EmitEvent(types.EventScreenPop, types.EventFields{
		CallID:  s.GenerateCallID(),
		From:    opts.PhoneNumber,
		To:      opts.To,
		Payload: payload,
	})
}

func (s *Simulator) EmitCallHold(callID string) (types.Event, error) {
	return s.EmitEvent(types.EventCallHold, types.EventFields{
		CallID: callID,
		State:  types.StateOnHold,
	})
}

func (s *Simulator) EmitCallResume(callID string) (types.Event, error) {
	return s.EmitEvent(types.EventCallResume, types.EventFields{
		CallID: callID,
		State:  types.StateConnected,
	})
}

func (s *Simulator) EmitDTMF(callID, digits string) (types.Event, error) {
	return s.EmitEvent(types.EventDTMFReceived, types.EventFields{
		CallID:  callID,
		State:   types.StateConnected,
		Payload: map[string]any{"digits": digits},
	})
}
