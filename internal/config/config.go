package config

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"
)

// DefaultPath is where the config file lives unless --config says otherwise.
const DefaultPath = "calendar_config.json"

// Completion strategy methods.
const (
	MethodTitlePrefix = "title_prefix"
	MethodColorChange = "color_change"
)

// ErrCorrupt indicates the config file exists but is not valid JSON.
// Corrupt files are never auto-repaired; the operator has to fix or remove them.
var ErrCorrupt = errors.New("config file is corrupt")

// ColorRule maps a category pattern to a Google Calendar color ID ("1".."11").
// Patterns are matched against event names case-insensitively, exact match
// first, then containment, in the order the rules are defined.
type ColorRule struct {
	Match string `json:"match"`
	Color string `json:"color"`
}

// ColorScheme is an ordered list of color rules plus a required default color.
// The ordering is what makes first-match resolution deterministic, so the
// scheme is stored as a sequence rather than a map.
type ColorScheme struct {
	Rules   []ColorRule
	Default string
}

// MarshalJSON renders the scheme in its canonical array form, with the
// default color as a trailing rule matching "default".
func (s ColorScheme) MarshalJSON() ([]byte, error) {
	rules := make([]ColorRule, 0, len(s.Rules)+1)
	rules = append(rules, s.Rules...)
	rules = append(rules, ColorRule{Match: "default", Color: s.Default})
	return json.Marshal(rules)
}

// UnmarshalJSON accepts both the canonical array form and the legacy object
// form ({"Deep Work": "9", "default": "1"}). The object form is decoded with
// a token stream so the file's key order is preserved; encoding/json's map
// decoding would randomize it and break the first-match tie-break.
func (s *ColorScheme) UnmarshalJSON(data []byte) error {
	trimmed := firstNonSpace(data)
	switch trimmed {
	case '[':
		var rules []ColorRule
		if err := json.Unmarshal(data, &rules); err != nil {
			return err
		}
		s.Rules = nil
		for _, r := range rules {
			if r.Match == "default" {
				s.Default = r.Color
				continue
			}
			s.Rules = append(s.Rules, r)
		}
		return nil
	case '{':
		return s.decodeLegacyObject(data)
	default:
		return fmt.Errorf("color_scheme must be an array of rules or an object, got %q", string(data))
	}
}

func (s *ColorScheme) decodeLegacyObject(data []byte) error {
	dec := json.NewDecoder(bytes.NewReader(data))
	if _, err := dec.Token(); err != nil { // opening brace
		return err
	}
	s.Rules = nil
	for dec.More() {
		keyTok, err := dec.Token()
		if err != nil {
			return err
		}
		key, ok := keyTok.(string)
		if !ok {
			return fmt.Errorf("unexpected token %v in color_scheme", keyTok)
		}
		var color string
		if err := dec.Decode(&color); err != nil {
			return fmt.Errorf("color for %q must be a string: %w", key, err)
		}
		if key == "default" {
			s.Default = color
			continue
		}
		s.Rules = append(s.Rules, ColorRule{Match: key, Color: color})
	}
	if _, err := dec.Token(); err != nil { // closing brace
		return err
	}
	return nil
}

func firstNonSpace(data []byte) byte {
	for _, b := range data {
		switch b {
		case ' ', '\t', '\n', '\r':
			continue
		}
		return b
	}
	return 0
}

// CompletionStrategies selects how done events are marked.
type CompletionStrategies struct {
	Enabled bool   `json:"enabled"`
	Method  string `json:"method"`
}

// Config holds the settings for a run. Loaded once at startup and treated as
// read-only afterwards.
type Config struct {
	Timezone    string               `json:"timezone"`
	ColorScheme ColorScheme          `json:"color_scheme"`
	BatchSize   int                  `json:"batch_size"`
	Completion  CompletionStrategies `json:"completion_strategies"`
}

// DefaultConfig returns the configuration written on first run. The palette
// mirrors the Google Calendar color IDs:
// 1 Lavender, 2 Sage, 3 Grape, 4 Flamingo, 5 Banana, 6 Tangerine,
// 7 Peacock, 8 Graphite, 9 Blueberry, 10 Basil, 11 Tomato.
func DefaultConfig() *Config {
	return &Config{
		Timezone: "Europe/Tirane",
		ColorScheme: ColorScheme{
			Rules: []ColorRule{
				{Match: "Spanish video", Color: "10"},
				{Match: "Spanish writing", Color: "10"},
				{Match: "Spanish podcast", Color: "10"},
				{Match: "Deep Work 1 (deload)", Color: "1"},
				{Match: "Deep Work 1", Color: "9"},
				{Match: "Deep Work 2", Color: "9"},
				{Match: "Guitar practice", Color: "6"},
				{Match: "Guitar free play", Color: "6"},
				{Match: "Light analytics", Color: "7"},
				{Match: "Gym (deload)", Color: "4"},
				{Match: "Gym", Color: "11"},
				{Match: "Reflection", Color: "5"},
				{Match: "Family walk / light analytics", Color: "8"},
			},
			Default: "1",
		},
		BatchSize: 50,
		Completion: CompletionStrategies{
			Enabled: true,
			Method:  MethodTitlePrefix,
		},
	}
}

// Load reads the config file at path, creating it with defaults on first run.
// Existing files are merged with defaults for any missing fields so a user's
// customized scheme is never silently overwritten.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if !os.IsNotExist(err) {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
		cfg := DefaultConfig()
		if err := Save(path, cfg); err != nil {
			return nil, fmt.Errorf("failed to create default config: %w", err)
		}
		return cfg, nil
	}

	// Decode with a pointered shadow so we can tell absent sections from
	// zero-valued ones when merging defaults.
	var file struct {
		Timezone    string       `json:"timezone"`
		ColorScheme *ColorScheme `json:"color_scheme"`
		BatchSize   int          `json:"batch_size"`
		Completion  *struct {
			Enabled *bool  `json:"enabled"`
			Method  string `json:"method"`
		} `json:"completion_strategies"`
	}
	if err := json.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrCorrupt, err)
	}

	defaults := DefaultConfig()
	cfg := &Config{
		Timezone:   file.Timezone,
		BatchSize:  file.BatchSize,
		Completion: defaults.Completion,
	}
	if cfg.Timezone == "" {
		cfg.Timezone = defaults.Timezone
	}
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = defaults.BatchSize
	}
	if file.ColorScheme != nil && (len(file.ColorScheme.Rules) > 0 || file.ColorScheme.Default != "") {
		cfg.ColorScheme = *file.ColorScheme
		if cfg.ColorScheme.Default == "" {
			cfg.ColorScheme.Default = defaults.ColorScheme.Default
		}
	} else {
		cfg.ColorScheme = defaults.ColorScheme
	}
	if file.Completion != nil {
		cfg.Completion.Method = file.Completion.Method
		if cfg.Completion.Method == "" {
			cfg.Completion.Method = defaults.Completion.Method
		}
		// An absent "enabled" key means enabled; only an explicit false
		// switches completion off.
		if file.Completion.Enabled != nil {
			cfg.Completion.Enabled = *file.Completion.Enabled
		} else {
			cfg.Completion.Enabled = defaults.Completion.Enabled
		}
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrCorrupt, err)
	}
	return cfg, nil
}

// Save writes the config atomically: temp file in the same directory, then
// rename, so a crash mid-write cannot corrupt an existing file.
func Save(path string, cfg *Config) error {
	data, err := json.MarshalIndent(cfg, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}
	data = append(data, '\n')

	dir := filepath.Dir(path)
	tmp, err := os.CreateTemp(dir, ".calpush-config-*.tmp")
	if err != nil {
		return fmt.Errorf("failed to create temp config file: %w", err)
	}
	tmpName := tmp.Name()
	defer os.Remove(tmpName)

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("failed to write temp config file: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return fmt.Errorf("failed to sync temp config file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	if err := os.Chmod(tmpName, 0o600); err != nil {
		return err
	}
	if err := os.Rename(tmpName, path); err != nil {
		return fmt.Errorf("failed to replace config file: %w", err)
	}
	return nil
}

// Validate checks the fields the rest of the tool relies on.
func (c *Config) Validate() error {
	if _, err := time.LoadLocation(c.Timezone); err != nil {
		return fmt.Errorf("unknown timezone %q: %w", c.Timezone, err)
	}
	for _, r := range c.ColorScheme.Rules {
		if r.Match == "" {
			return fmt.Errorf("color rule with empty match pattern")
		}
		if !validColorID(r.Color) {
			return fmt.Errorf("color rule %q: invalid color ID %q (expected 1-11)", r.Match, r.Color)
		}
	}
	if c.ColorScheme.Default == "" {
		return fmt.Errorf("color scheme is missing a default color")
	}
	if !validColorID(c.ColorScheme.Default) {
		return fmt.Errorf("invalid default color ID %q (expected 1-11)", c.ColorScheme.Default)
	}
	switch c.Completion.Method {
	case MethodTitlePrefix, MethodColorChange:
	default:
		return fmt.Errorf("unknown completion method %q (expected %s or %s)", c.Completion.Method, MethodTitlePrefix, MethodColorChange)
	}
	return nil
}

// Location resolves the configured timezone. Validate has already checked it
// for configs that came through Load.
func (c *Config) Location() (*time.Location, error) {
	return time.LoadLocation(c.Timezone)
}

func validColorID(id string) bool {
	switch id {
	case "1", "2", "3", "4", "5", "6", "7", "8", "9", "10", "11":
		return true
	}
	return false
}
