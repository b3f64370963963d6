package config

import (
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestLoad_FirstRunCreatesDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "calendar_config.json")

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load() returned an error: %v", err)
	}

	if cfg.Timezone != "Europe/Tirane" {
		t.Errorf("Expected default timezone Europe/Tirane, got %q", cfg.Timezone)
	}
	if cfg.BatchSize != 50 {
		t.Errorf("Expected default batch size 50, got %d", cfg.BatchSize)
	}
	if !cfg.Completion.Enabled {
		t.Error("Expected completion to be enabled by default")
	}
	if cfg.Completion.Method != MethodTitlePrefix {
		t.Errorf("Expected default method %q, got %q", MethodTitlePrefix, cfg.Completion.Method)
	}
	if cfg.ColorScheme.Default != "1" {
		t.Errorf("Expected default color 1, got %q", cfg.ColorScheme.Default)
	}

	// First run must persist the defaults.
	if _, err := os.Stat(path); err != nil {
		t.Errorf("Expected config file to be created: %v", err)
	}

	// A second load reads the file back identically.
	again, err := Load(path)
	if err != nil {
		t.Fatalf("Second Load() returned an error: %v", err)
	}
	if len(again.ColorScheme.Rules) != len(cfg.ColorScheme.Rules) {
		t.Errorf("Expected %d rules after reload, got %d", len(cfg.ColorScheme.Rules), len(again.ColorScheme.Rules))
	}
}

func TestLoad_PreservesCustomScheme(t *testing.T) {
	path := filepath.Join(t.TempDir(), "calendar_config.json")
	custom := `{
		"timezone": "America/New_York",
		"color_scheme": {"Deep Work": "9", "default": "3"}
	}`
	if err := os.WriteFile(path, []byte(custom), 0o600); err != nil {
		t.Fatal(err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load() returned an error: %v", err)
	}

	if cfg.Timezone != "America/New_York" {
		t.Errorf("Expected custom timezone to be preserved, got %q", cfg.Timezone)
	}
	if len(cfg.ColorScheme.Rules) != 1 || cfg.ColorScheme.Rules[0].Match != "Deep Work" {
		t.Errorf("Expected the custom scheme to be preserved, got %+v", cfg.ColorScheme.Rules)
	}
	if cfg.ColorScheme.Default != "3" {
		t.Errorf("Expected custom default color 3, got %q", cfg.ColorScheme.Default)
	}
	// Missing fields are merged from defaults.
	if cfg.BatchSize != 50 {
		t.Errorf("Expected merged default batch size 50, got %d", cfg.BatchSize)
	}
	if cfg.Completion.Method != MethodTitlePrefix {
		t.Errorf("Expected merged default method, got %q", cfg.Completion.Method)
	}
}

func TestLoad_DisabledCompletionRespected(t *testing.T) {
	path := filepath.Join(t.TempDir(), "calendar_config.json")
	content := `{"completion_strategies": {"enabled": false, "method": "color_change"}}`
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatal(err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load() returned an error: %v", err)
	}
	if cfg.Completion.Enabled {
		t.Error("Expected completion to stay disabled")
	}
	if cfg.Completion.Method != MethodColorChange {
		t.Errorf("Expected method color_change, got %q", cfg.Completion.Method)
	}
}

func TestLoad_CompletionEnabledDefaultsTrue(t *testing.T) {
	path := filepath.Join(t.TempDir(), "calendar_config.json")
	content := `{"completion_strategies": {"method": "color_change"}}`
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatal(err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load() returned an error: %v", err)
	}
	if !cfg.Completion.Enabled {
		t.Error("Expected an absent enabled key to mean enabled")
	}
	if cfg.Completion.Method != MethodColorChange {
		t.Errorf("Expected method color_change, got %q", cfg.Completion.Method)
	}
}

func TestLoad_CorruptFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "calendar_config.json")
	if err := os.WriteFile(path, []byte("{not json"), 0o600); err != nil {
		t.Fatal(err)
	}

	_, err := Load(path)
	if err == nil {
		t.Fatal("Expected an error for a corrupt config file")
	}
	if !errors.Is(err, ErrCorrupt) {
		t.Errorf("Expected ErrCorrupt, got %v", err)
	}

	// No auto-repair: the file is left as it was.
	data, readErr := os.ReadFile(path)
	if readErr != nil {
		t.Fatal(readErr)
	}
	if string(data) != "{not json" {
		t.Errorf("Expected corrupt file to be left untouched, got %q", string(data))
	}
}

func TestSave_ReplacesAtomically(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "calendar_config.json")

	if err := Save(path, DefaultConfig()); err != nil {
		t.Fatalf("Save() returned an error: %v", err)
	}

	cfg := DefaultConfig()
	cfg.Timezone = "UTC"
	if err := Save(path, cfg); err != nil {
		t.Fatalf("Second Save() returned an error: %v", err)
	}

	loaded, err := Load(path)
	if err != nil {
		t.Fatalf("Load() returned an error: %v", err)
	}
	if loaded.Timezone != "UTC" {
		t.Errorf("Expected saved timezone UTC, got %q", loaded.Timezone)
	}

	// No temp files left behind.
	entries, err := os.ReadDir(dir)
	if err != nil {
		t.Fatal(err)
	}
	for _, e := range entries {
		if strings.Contains(e.Name(), ".tmp") {
			t.Errorf("Expected no leftover temp file, found %s", e.Name())
		}
	}
}

func TestColorScheme_LegacyObjectKeepsOrder(t *testing.T) {
	data := `{"Alpha": "1", "Beta": "2", "default": "3", "Gamma": "4"}`

	var scheme ColorScheme
	if err := json.Unmarshal([]byte(data), &scheme); err != nil {
		t.Fatalf("Unmarshal returned an error: %v", err)
	}

	want := []string{"Alpha", "Beta", "Gamma"}
	if len(scheme.Rules) != len(want) {
		t.Fatalf("Expected %d rules, got %d", len(want), len(scheme.Rules))
	}
	for i, name := range want {
		if scheme.Rules[i].Match != name {
			t.Errorf("Rule %d: expected %q, got %q", i, name, scheme.Rules[i].Match)
		}
	}
	if scheme.Default != "3" {
		t.Errorf("Expected default 3, got %q", scheme.Default)
	}
}

func TestColorScheme_ArrayRoundTrip(t *testing.T) {
	scheme := ColorScheme{
		Rules: []ColorRule{
			{Match: "Gym", Color: "11"},
			{Match: "Reflection", Color: "5"},
		},
		Default: "1",
	}

	data, err := json.Marshal(scheme)
	if err != nil {
		t.Fatalf("Marshal returned an error: %v", err)
	}

	var decoded ColorScheme
	if err := json.Unmarshal(data, &decoded); err != nil {
		t.Fatalf("Unmarshal returned an error: %v", err)
	}

	if len(decoded.Rules) != 2 || decoded.Rules[0].Match != "Gym" || decoded.Rules[1].Match != "Reflection" {
		t.Errorf("Expected rule order to survive the round trip, got %+v", decoded.Rules)
	}
	if decoded.Default != "1" {
		t.Errorf("Expected default 1, got %q", decoded.Default)
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr bool
	}{
		{"valid defaults", func(c *Config) {}, false},
		{"bad timezone", func(c *Config) { c.Timezone = "Mars/Olympus" }, true},
		{"bad rule color", func(c *Config) { c.ColorScheme.Rules[0].Color = "12" }, true},
		{"empty match", func(c *Config) { c.ColorScheme.Rules[0].Match = "" }, true},
		{"missing default", func(c *Config) { c.ColorScheme.Default = "" }, true},
		{"bad method", func(c *Config) { c.Completion.Method = "strikethrough" }, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tt.mutate(cfg)
			err := cfg.Validate()
			if tt.wantErr && err == nil {
				t.Error("Expected an error, got nil")
			}
			if !tt.wantErr && err != nil {
				t.Errorf("Expected no error, got %v", err)
			}
		})
	}
}
