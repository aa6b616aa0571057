package lua

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/samaelod/callsim/types"
)

const sampleScript = `
local script = {}

script.globals = {
	name = "inbound with pop",
	max_log_size = 50,
}

script.events = {
	{ type = "call_start", call_id = "c1", from = "+15550001234", to = "+15550005678", direction = "inbound", state = "ringing" },
	{ type = "screen_pop", call_id = "c1", delay = 100, payload = { caller_name = "Ada", account = { id = 7, tier = "gold" } } },
	{ type = "call_end", call_id = "c1", duration = 42, state = "ended", delay = 500 },
	{ type = "call_start", from = "+15550000000" },
}

return script
`

func writeLua(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "flow.lua")
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestReadLuaScript(t *testing.T) {
	s, err := ReadLuaScript(writeLua(t, sampleScript))
	if err != nil {
		t.Fatalf("ReadLuaScript() error = %v", err)
	}

	if s.Globals.Name != "inbound with pop" || s.Globals.MaxLogSize != 50 || s.Globals.Source != "lua" {
		t.Errorf("Globals = %+v", s.Globals)
	}
	if len(s.Events) != 4 {
		t.Fatalf("got %d events, want 4", len(s.Events))
	}

	start := s.Events[0]
	if start.Type != types.EventCallStart || start.CallID != "c1" || start.Direction != types.DirectionInbound {
		t.Errorf("events[0] = %+v", start)
	}

	pop := s.Events[1]
	if pop.Delay != 100 || pop.Payload["caller_name"] != "Ada" {
		t.Errorf("events[1] = %+v", pop)
	}
	account, ok := pop.Payload["account"].(map[string]any)
	if !ok || account["id"] != 7 || account["tier"] != "gold" {
		t.Errorf("nested payload = %#v", pop.Payload["account"])
	}

	if end := s.Events[2]; end.Duration != 42 || end.Delay != 500 {
		t.Errorf("events[2] = %+v", end)
	}

	if len(s.CallOrder) != 2 || s.CallOrder[0] != "c1" || s.CallOrder[1] != "" {
		t.Errorf("CallOrder = %q", s.CallOrder)
	}
	if len(s.CallsByID["c1"]) != 3 {
		t.Errorf("CallsByID[c1] = %d steps, want 3", len(s.CallsByID["c1"]))
	}
}

func TestReadLuaScriptErrors(t *testing.T) {
	tests := []struct {
		name    string
		content string
		wantErr string
	}{
		{"syntax error", "return {", ""},
		{"not a table", "return 42", "did not return a table"},
		{"missing type", "return { events = { { call_id = \"x\" } } }", "missing type"},
		{"negative delay", "return { events = { { type = \"call_end\", delay = -5 } } }", "negative delay"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ReadLuaScript(writeLua(t, tt.content))
			if err == nil {
				t.Fatal("ReadLuaScript() error = nil")
			}
			if tt.wantErr != "" && !strings.Contains(err.Error(), tt.wantErr) {
				t.Errorf("error = %v, want containing %q", err, tt.wantErr)
			}
		})
	}
}

func TestWriteScriptRoundTrip(t *testing.T) {
	in := &types.Script{
		Globals: types.Globals{Name: "transfer", ConnectDelay: 20},
		Events: []types.ScriptedEvent{
			{Type: types.EventCallStart, EventFields: types.EventFields{CallID: "c9", From: "A", To: "B", Direction: types.DirectionOutbound}},
			{Type: types.EventCallTransfer, EventFields: types.EventFields{CallID: "c9", TransferTo: "C"}, Delay: 250},
			{Type: types.EventDTMFReceived, EventFields: types.EventFields{CallID: "c9", Payload: map[string]any{"digits": "1#", "count": 2}}, Delay: 10},
		},
	}

	var buf bytes.Buffer
	if err := WriteScript(&buf, in); err != nil {
		t.Fatalf("WriteScript() error = %v", err)
	}

	out, err := ReadLuaScript(writeLua(t, buf.String()))
	if err != nil {
		t.Fatalf("ReadLuaScript() error = %v\n%s", err, buf.String())
	}

	if out.Globals.Name != "transfer" || out.Globals.ConnectDelay != 20 {
		t.Errorf("Globals = %+v", out.Globals)
	}
	if len(out.Events) != len(in.Events) {
		t.Fatalf("got %d events, want %d", len(out.Events), len(in.Events))
	}
	if out.Events[1].TransferTo != "C" || out.Events[1].Delay != 250 {
		t.Errorf("transfer step = %+v", out.Events[1])
	}
	if out.Events[2].Payload["digits"] != "1#" || out.Events[2].Payload["count"] != 2 {
		t.Errorf("dtmf payload = %v", out.Events[2].Payload)
	}
}

func TestSaveToDir(t *testing.T) {
	dir := t.TempDir()
	recent := filepath.Join(dir, "recent")
	s := &types.Script{Events: []types.ScriptedEvent{{Type: types.EventCallStart}}}

	first, err := saveToDir(s, "/captures/office.pcap", recent)
	if err != nil {
		t.Fatal(err)
	}
	second, err := saveToDir(s, "/captures/office.pcap", recent)
	if err != nil {
		t.Fatal(err)
	}

	if filepath.Base(first) != "office_1.lua" || filepath.Base(second) != "office_2.lua" {
		t.Errorf("paths = %s, %s", first, second)
	}
	if _, err := ReadLuaScript(first); err != nil {
		t.Errorf("saved script does not load: %v", err)
	}

	src := writeLua(t, sampleScript)
	copied, err := saveToDir(nil, src, recent)
	if err != nil {
		t.Fatal(err)
	}
	data, _ := os.ReadFile(copied)
	if string(data) != sampleScript {
		t.Error("lua source was not copied verbatim")
	}
}
