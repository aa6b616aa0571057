// Package logging provides leveled logging and event tracing for callsim.
// It offers two complementary outputs:
//   - A leveled slog.Logger for stderr (operational output)
//   - A TraceWriter for JSONL traces of every emitted event
package logging

import (
	"encoding/json"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/samaelod/callsim/types"
)

// ParseLevel maps a string level name to a slog.Level.
// Supported values: "debug", "info", "warn", "error" (case-insensitive).
// Unknown values default to info.
func ParseLevel(s string) slog.Level {
	switch strings.ToLower(s) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// NewLogger creates a leveled slog.Logger writing to w.
// format "json" selects the JSON handler, anything else is text.
func NewLogger(level, format string, w io.Writer) *slog.Logger {
	opts := &slog.HandlerOptions{Level: ParseLevel(level)}
	if strings.EqualFold(format, "json") {
		return slog.New(slog.NewJSONHandler(w, opts))
	}
	return slog.New(slog.NewTextHandler(w, opts))
}

// TraceWriter appends emitted events to a JSONL file, one event per line,
// tagged with the script that produced them.
// It is safe for concurrent use. A nil TraceWriter is safe to use;
// all methods are no-ops on nil receiver.
type TraceWriter struct {
	mu   sync.Mutex
	file *os.File
	enc  *json.Encoder
}

// NewTraceWriter opens path for append, creating parent directories.
// An empty path returns a nil writer.
func NewTraceWriter(path string) (*TraceWriter, error) {
	if path == "" {
		return nil, nil
	}
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return nil, err
	}
	f, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644)
	if err != nil {
		return nil, err
	}
	return &TraceWriter{file: f, enc: json.NewEncoder(f)}, nil
}

type traceEntry struct {
	Script string `json:"script"`
	types.Event
}

// Write records ev as produced by the named script.
// Safe to call on nil receiver.
func (tw *TraceWriter) Write(script string, ev types.Event) {
	if tw == nil {
		return
	}

	tw.mu.Lock()
	defer tw.mu.Unlock()

	if tw.file == nil {
		return
	}
	_ = tw.enc.Encode(traceEntry{Script: script, Event: ev})
}

// Close closes the underlying file. Safe to call on nil receiver.
func (tw *TraceWriter) Close() error {
	if tw == nil {
		return nil
	}

	tw.mu.Lock()
	defer tw.mu.Unlock()

	if tw.file == nil {
		return nil
	}
	err := tw.file.Close()
	tw.file = nil
	return err
}
