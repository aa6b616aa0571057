package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/samaelod/callsim/engine"
	"github.com/samaelod/callsim/types"
)

type Config struct {
	LogLines  int    `json:"log_lines" yaml:"log_lines"`
	LogsDir   string `json:"logs_dir" yaml:"logs_dir"`
	RecentDir string `json:"recent_dir" yaml:"recent_dir"`

	// Simulator defaults, overridable per script.
	MaxLogSize       int  `json:"max_log_size" yaml:"max_log_size"`
	ConnectDelayMs   int  `json:"connect_delay_ms" yaml:"connect_delay_ms"`
	ReconnectDelayMs int  `json:"reconnect_delay_ms" yaml:"reconnect_delay_ms"`
	AutoReconnect    bool `json:"auto_reconnect" yaml:"auto_reconnect"`
}

var (
	defaultConfig *Config
	once          sync.Once
)

func Default() *Config {
	return &Config{
		LogLines:         1000,
		LogsDir:          "logs",
		RecentDir:        "recent",
		MaxLogSize:       1000,
		ConnectDelayMs:   100,
		ReconnectDelayMs: 1000,
	}
}

func defaultPaths() []string {
	home := os.Getenv("HOME")
	return []string{
		"callsim.json",
		"callsim.yaml",
		".callsim.json",
		".callsim.yaml",
		filepath.Join(home, ".config", "callsim", "config.json"),
		filepath.Join(home, ".config", "callsim", "config.yaml"),
	}
}

// Load reads path, or the first default location that exists when path is
// empty. A missing file yields the defaults.
func Load(path string) (*Config, error) {
	cfg := Default()

	if path == "" {
		for _, p := range defaultPaths() {
			if _, err := os.Stat(p); err == nil {
				path = p
				break
			}
		}

		if path == "" {
			return cfg, nil
		}
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return cfg, nil
		}
		return nil, fmt.Errorf("reading config file: %w", err)
	}

	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		err = yaml.Unmarshal(data, cfg)
	default:
		err = json.Unmarshal(data, cfg)
	}
	if err != nil {
		return nil, fmt.Errorf("parsing config file %s: %w", path, err)
	}

	cfg.applyDefaults()
	return cfg, nil
}

func (c *Config) applyDefaults() {
	def := Default()
	if c.LogLines <= 0 {
		c.LogLines = def.LogLines
	}
	if c.LogsDir == "" {
		c.LogsDir = def.LogsDir
	}
	if c.RecentDir == "" {
		c.RecentDir = def.RecentDir
	}
	if c.MaxLogSize <= 0 {
		c.MaxLogSize = def.MaxLogSize
	}
	if c.ConnectDelayMs <= 0 {
		c.ConnectDelayMs = def.ConnectDelayMs
	}
	if c.ReconnectDelayMs <= 0 {
		c.ReconnectDelayMs = def.ReconnectDelayMs
	}
}

// Options converts the config into simulator options.
func (c *Config) Options() engine.Options {
	return engine.Options{
		AutoReconnect:  c.AutoReconnect,
		ReconnectDelay: time.Duration(c.ReconnectDelayMs) * time.Millisecond,
		MaxLogSize:     c.MaxLogSize,
		ConnectDelay:   time.Duration(c.ConnectDelayMs) * time.Millisecond,
	}
}

// LoadDefault loads the config once and caches it
func LoadDefault() (*Config, error) {
	var err error
	once.Do(func() {
		defaultConfig, err = Load("")
	})
	if err != nil {
		return Default(), err
	}
	if defaultConfig == nil {
		return Default(), nil
	}
	return defaultConfig, nil
}

// OptionsFor applies a script's globals on top of the config defaults.
func (c *Config) OptionsFor(g types.Globals) engine.Options {
	opts := c.Options()
	if g.MaxLogSize > 0 {
		opts.MaxLogSize = g.MaxLogSize
	}
	if g.ConnectDelay > 0 {
		opts.ConnectDelay = time.Duration(g.ConnectDelay) * time.Millisecond
	}
	return opts
}
