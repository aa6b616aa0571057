package logging

import (
	"bufio"
	"bytes"
	"encoding/json"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/samaelod/callsim/types"
)

func TestParseLevel(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  slog.Level
	}{
		{"info", "info", slog.LevelInfo},
		{"debug", "debug", slog.LevelDebug},
		{"warn", "warn", slog.LevelWarn},
		{"warning alias", "warning", slog.LevelWarn},
		{"error", "error", slog.LevelError},
		{"uppercase DEBUG", "DEBUG", slog.LevelDebug},
		{"mixed case Error", "Error", slog.LevelError},
		{"unknown defaults to info", "verbose", slog.LevelInfo},
		{"empty defaults to info", "", slog.LevelInfo},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := ParseLevel(tt.input); got != tt.want {
				t.Errorf("ParseLevel(%q) = %v, want %v", tt.input, got, tt.want)
			}
		})
	}
}

func TestNewLogger(t *testing.T) {
	var buf bytes.Buffer
	logger := NewLogger("warn", "text", &buf)

	logger.Info("hidden")
	logger.Warn("shown", "script", "smoke")

	out := buf.String()
	if strings.Contains(out, "hidden") {
		t.Errorf("info message logged at warn level: %s", out)
	}
	if !strings.Contains(out, "shown") || !strings.Contains(out, "script=smoke") {
		t.Errorf("warn message missing: %s", out)
	}
}

func TestNewLoggerJSON(t *testing.T) {
	var buf bytes.Buffer
	NewLogger("debug", "JSON", &buf).Debug("connected", "delay_ms", 100)

	var entry map[string]any
	if err := json.Unmarshal(buf.Bytes(), &entry); err != nil {
		t.Fatalf("output is not JSON: %v\n%s", err, buf.String())
	}
	if entry["msg"] != "connected" || entry["delay_ms"] != float64(100) {
		t.Errorf("entry = %v", entry)
	}
}

func TestTraceWriter(t *testing.T) {
	path := filepath.Join(t.TempDir(), "traces", "events.jsonl")
	tw, err := NewTraceWriter(path)
	if err != nil {
		t.Fatal(err)
	}

	ts := time.Date(2024, 3, 1, 9, 0, 0, 0, time.UTC)
	tw.Write("smoke", types.Event{Type: types.EventCallStart, Timestamp: ts, EventFields: types.EventFields{CallID: "c1"}})
	tw.Write("smoke", types.Event{Type: types.EventCallEnd, Timestamp: ts, EventFields: types.EventFields{CallID: "c1", Duration: 3}})
	if err := tw.Close(); err != nil {
		t.Fatal(err)
	}
	tw.Write("late", types.Event{Type: types.EventCallStart})

	f, err := os.Open(path)
	if err != nil {
		t.Fatal(err)
	}
	defer f.Close()

	var lines []map[string]any
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		var entry map[string]any
		if err := json.Unmarshal(scanner.Bytes(), &entry); err != nil {
			t.Fatalf("bad line %q: %v", scanner.Text(), err)
		}
		lines = append(lines, entry)
	}

	if len(lines) != 2 {
		t.Fatalf("got %d lines, want 2", len(lines))
	}
	if lines[0]["script"] != "smoke" || lines[0]["type"] != "call_start" || lines[0]["call_id"] != "c1" {
		t.Errorf("line 0 = %v", lines[0])
	}
	if lines[1]["duration"] != float64(3) {
		t.Errorf("line 1 = %v", lines[1])
	}
}

func TestTraceWriterNil(t *testing.T) {
	tw, err := NewTraceWriter("")
	if err != nil || tw != nil {
		t.Fatalf("NewTraceWriter(\"\") = %v, %v", tw, err)
	}
	tw.Write("x", types.Event{})
	if err := tw.Close(); err != nil {
		t.Errorf("Close() on nil = %v", err)
	}
}
