package types

import (
	"strings"
	"testing"
	"time"
)

func TestEventTypeIsKnown(t *testing.T) {
	for _, et := range KnownEventTypes {
		if !et.IsKnown() {
			t.Errorf("%s.IsKnown() = false", et)
		}
	}
	if EventType("custom_event").IsKnown() {
		t.Error("custom_event.IsKnown() = true")
	}
}

func TestEventString(t *testing.T) {
	ev := Event{
		Type:      EventCallEnd,
		Timestamp: time.Date(2024, 3, 1, 9, 0, 0, 0, time.UTC),
		EventFields: EventFields{
			CallID:   "c1",
			From:     "A",
			To:       "B",
			State:    StateEnded,
			Duration: 42,
		},
	}
	want := "call_end call=c1 A -> B state=ended duration=42s"
	if got := ev.String(); got != want {
		t.Errorf("String() = %q, want %q", got, want)
	}
}

func TestScriptIndexCalls(t *testing.T) {
	s := &Script{Events: []ScriptedEvent{
		{Type: EventCallStart, EventFields: EventFields{CallID: "b"}},
		{Type: EventCallStart, EventFields: EventFields{CallID: "a"}, Delay: 10},
		{Type: EventScreenPop, Delay: 5},
		{Type: EventCallEnd, EventFields: EventFields{CallID: "b"}, Delay: 20},
	}}
	s.IndexCalls()

	if strings.Join(s.CallOrder, ",") != "b,a," {
		t.Errorf("CallOrder = %q", s.CallOrder)
	}
	if len(s.CallsByID["b"]) != 2 || len(s.CallsByID[""]) != 1 {
		t.Errorf("CallsByID = %v", s.CallsByID)
	}
	if got := s.TotalDelay(); got != 35 {
		t.Errorf("TotalDelay() = %d, want 35", got)
	}

	// Re-indexing does not duplicate entries
	s.IndexCalls()
	if len(s.CallOrder) != 3 || len(s.CallsByID["b"]) != 2 {
		t.Errorf("after re-index: CallOrder = %q", s.CallOrder)
	}
}

func TestScriptValidate(t *testing.T) {
	tests := []struct {
		name    string
		script  Script
		wantErr string
	}{
		{"valid", Script{Events: []ScriptedEvent{{Type: "anything"}}}, ""},
		{"empty", Script{}, ""},
		{"negative max log size", Script{Globals: Globals{MaxLogSize: -1}}, "negative max_log_size"},
		{"negative connect delay", Script{Globals: Globals{ConnectDelay: -1}}, "negative connect_delay"},
		{"missing type", Script{Events: []ScriptedEvent{{Type: EventCallStart}, {}}}, "event 1: missing type"},
		{"negative delay", Script{Events: []ScriptedEvent{{Type: EventCallEnd, Delay: -1}}}, "negative delay"},
		{"negative duration", Script{Events: []ScriptedEvent{{Type: EventCallEnd, EventFields: EventFields{Duration: -3}}}}, "negative duration"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.script.Validate()
			if tt.wantErr == "" {
				if err != nil {
					t.Errorf("Validate() error = %v", err)
				}
				return
			}
			if err == nil || !strings.Contains(err.Error(), tt.wantErr) {
				t.Errorf("Validate() error = %v, want containing %q", err, tt.wantErr)
			}
		})
	}
}

func TestReplayStatusString(t *testing.T) {
	tests := map[ReplayStatus]string{
		ReplayIdle:       "idle",
		ReplayRunning:    "running",
		ReplayCompleted:  "completed",
		ReplayError:      "error",
		ReplayStatus(42): "idle",
	}
	for status, want := range tests {
		if got := status.String(); got != want {
			t.Errorf("%d.String() = %q, want %q", int(status), got, want)
		}
	}
}
