// Package script loads replay scripts from Lua, YAML or SIP capture files.
package script

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/samaelod/callsim/lua"
	"github.com/samaelod/callsim/pcapreader"
	"github.com/samaelod/callsim/types"
)

// Extensions accepted by Load, grouped by kind.
var (
	LuaExtensions     = []string{".lua"}
	YAMLExtensions    = []string{".yaml", ".yml"}
	CaptureExtensions = []string{".pcap", ".pcapng", ".cap"}
)

// Load reads a script, choosing the format from the file extension.
func Load(path string) (*types.Script, error) {
	ext := strings.ToLower(filepath.Ext(path))

	var (
		s   *types.Script
		err error
	)
	switch {
	case contains(LuaExtensions, ext):
		s, err = lua.ReadLuaScript(path)
	case contains(YAMLExtensions, ext):
		s, err = ReadYAML(path)
	case contains(CaptureExtensions, ext):
		s, err = pcapreader.ReadPCAP(path)
	default:
		return nil, fmt.Errorf("unsupported script format %q", ext)
	}
	if err != nil {
		return nil, fmt.Errorf("loading %s: %w", path, err)
	}

	if s.Globals.Name == "" {
		s.Globals.Name = strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
	}
	return s, nil
}

func contains(list []string, ext string) bool {
	for _, e := range list {
		if e == ext {
			return true
		}
	}
	return false
}

// ReadYAML parses a YAML script file.
func ReadYAML(path string) (*types.Script, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading script file: %w", err)
	}
	return ParseYAML(data)
}

func ParseYAML(data []byte) (*types.Script, error) {
	var s types.Script
	if err := yaml.Unmarshal(data, &s); err != nil {
		return nil, fmt.Errorf("parsing script file: %w", err)
	}

	s.Globals.Source = "yaml"
	if err := s.Validate(); err != nil {
		return nil, fmt.Errorf("invalid script: %w", err)
	}

	s.IndexCalls()
	return &s, nil
}

// WriteYAML renders s in the format ReadYAML accepts.
func WriteYAML(w io.Writer, s *types.Script) error {
	enc := yaml.NewEncoder(w)
	enc.SetIndent(2)
	if err := enc.Encode(s); err != nil {
		return fmt.Errorf("encoding script: %w", err)
	}
	return enc.Close()
}

// Write renders s as Lua or YAML depending on format ("lua" or "yaml").
func Write(w io.Writer, s *types.Script, format string) error {
	switch strings.ToLower(format) {
	case "lua", "":
		return lua.WriteScript(w, s)
	case "yaml", "yml":
		return WriteYAML(w, s)
	default:
		return fmt.Errorf("unknown output format %q", format)
	}
}
