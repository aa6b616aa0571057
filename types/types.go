package types

import (
	"fmt"
	"time"
)

type EventType string

const (
	EventCallStart    EventType = "call_start"
	EventCallEnd      EventType = "call_end"
	EventCallTransfer EventType = "call_transfer"
	EventScreenPop    EventType = "screen_pop"
	EventCallHold     EventType = "call_hold"
	EventCallResume   EventType = "call_resume"
	EventDTMFReceived EventType = "dtmf_received"
)

// KnownEventTypes lists the recognized types in display order.
var KnownEventTypes = []EventType{
	EventCallStart,
	EventCallEnd,
	EventCallTransfer,
	EventScreenPop,
	EventCallHold,
	EventCallResume,
	EventDTMFReceived,
}

// IsKnown reports whether t is one of the recognized event types.
// Other strings are still accepted by the simulator.
func (t EventType) IsKnown() bool {
	switch t {
	case EventCallStart, EventCallEnd, EventCallTransfer, EventScreenPop,
		EventCallHold, EventCallResume, EventDTMFReceived:
		return true
	default:
		return false
	}
}

func (t EventType) String() string {
	return string(t)
}

type Direction string

const (
	DirectionInbound  Direction = "inbound"
	DirectionOutbound Direction = "outbound"
	DirectionInternal Direction = "internal"
)

type CallState string

const (
	StateRinging     CallState = "ringing"
	StateConnected   CallState = "connected"
	StateOnHold      CallState = "on_hold"
	StateTransferred CallState = "transferred"
	StateEnded       CallState = "ended"
)

// EventFields is the caller-settable part of an event.
// Payload is caller-defined and never validated.
type EventFields struct {
	CallID     string         `json:"call_id,omitempty" yaml:"call_id,omitempty"`
	From       string         `json:"from,omitempty" yaml:"from,omitempty"`
	To         string         `json:"to,omitempty" yaml:"to,omitempty"`
	Direction  Direction      `json:"direction,omitempty" yaml:"direction,omitempty"`
	State      CallState      `json:"state,omitempty" yaml:"state,omitempty"`
	Duration   int            `json:"duration,omitempty" yaml:"duration,omitempty"` // seconds, call_end only
	TransferTo string         `json:"transfer_to,omitempty" yaml:"transfer_to,omitempty"`
	Payload    map[string]any `json:"payload,omitempty" yaml:"payload,omitempty"`
}

// Event is an emitted, immutable simulator event.
type Event struct {
	Type        EventType `json:"type"`
	Timestamp   time.Time `json:"timestamp"`
	EventFields `yaml:",inline"`
}

func (e Event) String() string {
	s := fmt.Sprintf("%s call=%s", e.Type, e.CallID)
	if e.From != "" || e.To != "" {
		s += fmt.Sprintf(" %s -> %s", e.From, e.To)
	}
	if e.State != "" {
		s += " state=" + string(e.State)
	}
	if e.Type == EventCallEnd {
		s += fmt.Sprintf(" duration=%ds", e.Duration)
	}
	if e.TransferTo != "" {
		s += " transfer_to=" + e.TransferTo
	}
	return s
}

// ScriptedEvent is one step of a replay script.
type ScriptedEvent struct {
	Type        EventType `json:"type" yaml:"type"`
	EventFields `yaml:",inline"`
	Delay       int       `json:"delay,omitempty" yaml:"delay,omitempty"` // ms since previous step
}

// CallFlowOptions describes a start -> [screen pop] -> end call.
type CallFlowOptions struct {
	From          string
	To            string
	Duration      int // seconds
	WithScreenPop bool
	ScreenPopData map[string]any
}

type ConnectionStatus struct {
	Connected       bool       `json:"connected"`
	ConnectedAt     *time.Time `json:"connected_at"`
	DisconnectedAt  *time.Time `json:"disconnected_at"`
	EventsProcessed int        `json:"events_processed"`
}

type Stats struct {
	EventsProcessed  int               `json:"events_processed"`
	LogSize          int               `json:"log_size"`
	EventsByType     map[EventType]int `json:"events_by_type"`
	ListenerFailures int               `json:"listener_failures"`
}

type ReplayStatus int

const (
	ReplayIdle ReplayStatus = iota
	ReplayRunning
	ReplayCompleted
	ReplayError
)

func (s ReplayStatus) String() string {
	switch s {
	case ReplayRunning:
		return "running"
	case ReplayCompleted:
		return "completed"
	case ReplayError:
		return "error"
	default:
		return "idle"
	}
}
