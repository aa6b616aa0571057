package script

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/samaelod/callsim/types"
)

const sampleYAML = `
globals:
  name: hold and resume
  max_log_size: 100
events:
  - type: call_start
    call_id: c1
    from: "+15550001234"
    to: "+15550005678"
    direction: inbound
    state: ringing
  - type: call_hold
    call_id: c1
    delay: 200
  - type: call_resume
    call_id: c1
    delay: 300
  - type: screen_pop
    delay: 10
    payload:
      caller_name: Ada
      visits: 3
`

func writeFile(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestLoadYAML(t *testing.T) {
	for _, name := range []string{"flow.yaml", "flow.YML"} {
		t.Run(name, func(t *testing.T) {
			s, err := Load(writeFile(t, name, sampleYAML))
			if err != nil {
				t.Fatalf("Load() error = %v", err)
			}

			if s.Globals.Name != "hold and resume" || s.Globals.MaxLogSize != 100 || s.Globals.Source != "yaml" {
				t.Errorf("Globals = %+v", s.Globals)
			}
			if len(s.Events) != 4 {
				t.Fatalf("got %d events, want 4", len(s.Events))
			}
			if s.Events[0].From != "+15550001234" || s.Events[0].Direction != types.DirectionInbound {
				t.Errorf("events[0] = %+v", s.Events[0])
			}
			if s.Events[1].Type != types.EventCallHold || s.Events[1].Delay != 200 {
				t.Errorf("events[1] = %+v", s.Events[1])
			}
			if s.Events[3].Payload["caller_name"] != "Ada" || s.Events[3].Payload["visits"] != 3 {
				t.Errorf("events[3].Payload = %v", s.Events[3].Payload)
			}
			if got := s.TotalDelay(); got != 510 {
				t.Errorf("TotalDelay() = %d, want 510", got)
			}
		})
	}
}

func TestLoadNamesScriptAfterFile(t *testing.T) {
	s, err := Load(writeFile(t, "smoke.yaml", "events:\n  - type: call_start\n"))
	if err != nil {
		t.Fatal(err)
	}
	if s.Globals.Name != "smoke" {
		t.Errorf("Name = %q, want smoke", s.Globals.Name)
	}
}

func TestLoadErrors(t *testing.T) {
	tests := []struct {
		name, file, content, wantErr string
	}{
		{"unsupported", "flow.txt", "", "unsupported script format"},
		{"bad yaml", "flow.yaml", "events: [", "parsing script file"},
		{"missing type", "flow.yaml", "events:\n  - call_id: x\n", "missing type"},
		{"missing file", "", "", "reading script file"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path := filepath.Join(t.TempDir(), "absent.yaml")
			if tt.file != "" {
				path = writeFile(t, tt.file, tt.content)
			}
			_, err := Load(path)
			if err == nil || !strings.Contains(err.Error(), tt.wantErr) {
				t.Errorf("Load() error = %v, want containing %q", err, tt.wantErr)
			}
		})
	}
}

func TestWriteFormats(t *testing.T) {
	in := &types.Script{
		Globals: types.Globals{Name: "export"},
		Events: []types.ScriptedEvent{
			{Type: types.EventCallStart, EventFields: types.EventFields{CallID: "c1", From: "A"}},
			{Type: types.EventCallEnd, EventFields: types.EventFields{CallID: "c1", Duration: 9}, Delay: 500},
		},
	}

	for _, format := range []string{"yaml", "lua"} {
		t.Run(format, func(t *testing.T) {
			var buf bytes.Buffer
			if err := Write(&buf, in, format); err != nil {
				t.Fatalf("Write() error = %v", err)
			}

			out, err := Load(writeFile(t, "export."+format, buf.String()))
			if err != nil {
				t.Fatalf("Load() error = %v\n%s", err, buf.String())
			}
			if len(out.Events) != 2 || out.Events[1].Duration != 9 || out.Events[1].Delay != 500 || out.Events[0].From != "A" {
				t.Errorf("round trip = %+v", out.Events)
			}
		})
	}

	if err := Write(&bytes.Buffer{}, in, "xml"); err == nil {
		t.Error("Write(xml) error = nil")
	}
}
