package config

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"
)

// =============================================================================
// CONFIG TESTS
// =============================================================================

func clearEnv(t *testing.T) {
	t.Helper()
	for _, k := range []string{
		"BEDROCK_AGENT_ID", "BEDROCK_AGENT_ALIAS_ID",
		"BEDROCK_AGENT_TEST_UI_TITLE", "BEDROCK_AGENT_TEST_UI_ICON",
		"KBCHAT_GATEWAY_URL", "KBCHAT_DB",
	} {
		t.Setenv(k, "")
	}
}

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()
	if cfg.Agent.AliasID != "TSTALIASID" {
		t.Errorf("expected AliasID=TSTALIASID, got %s", cfg.Agent.AliasID)
	}
	if cfg.UI.Title != "Agents for Amazon Bedrock Test UI" {
		t.Errorf("unexpected default title %q", cfg.UI.Title)
	}
	if cfg.Citations.EmptyMode != EmptyModePlaceholder {
		t.Errorf("expected EmptyMode=placeholder, got %s", cfg.Citations.EmptyMode)
	}
	if cfg.Citations.SourcePrefix != "s3://kcknowledgebase/" {
		t.Errorf("unexpected source prefix %q", cfg.Citations.SourcePrefix)
	}
	if cfg.Citations.PublicPrefix != "https://miscdocsihave.s3.us-east-1.amazonaws.com/" {
		t.Errorf("unexpected public prefix %q", cfg.Citations.PublicPrefix)
	}
}

func TestConfig_SaveLoad(t *testing.T) {
	clearEnv(t)

	path := filepath.Join(t.TempDir(), "nested", "config.yaml")

	cfg := DefaultConfig()
	cfg.Agent.ID = "AGENT123"
	cfg.Citations.EmptyMode = EmptyModeOmit
	cfg.Logging.Categories = map[string]bool{"ui": false}

	if err := cfg.Save(path); err != nil {
		t.Fatalf("Save failed: %v", err)
	}

	loaded, err := Load(path)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if loaded.Agent.ID != "AGENT123" {
		t.Errorf("expected ID=AGENT123, got %s", loaded.Agent.ID)
	}
	if loaded.Citations.EmptyMode != EmptyModeOmit {
		t.Errorf("expected EmptyMode=omit, got %s", loaded.Citations.EmptyMode)
	}
	if loaded.Logging.IsCategoryEnabled("ui") {
		t.Error("ui category should be disabled (debug_mode off)")
	}
}

func TestLoad_MissingFileReturnsDefaults(t *testing.T) {
	clearEnv(t)
	cfg, err := Load(filepath.Join(t.TempDir(), "absent.yaml"))
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if cfg.Agent.Timeout != "120s" {
		t.Errorf("expected default timeout, got %s", cfg.Agent.Timeout)
	}
}

func TestLoad_PartialFileKeepsDefaults(t *testing.T) {
	clearEnv(t)
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte("agent:\n  id: ABC\n"), 0644); err != nil {
		t.Fatal(err)
	}
	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if cfg.Agent.ID != "ABC" {
		t.Errorf("expected ID=ABC, got %s", cfg.Agent.ID)
	}
	if cfg.Agent.AliasID != DefaultAliasID {
		t.Errorf("expected default alias, got %s", cfg.Agent.AliasID)
	}
	if cfg.Citations.Placeholder != DefaultPlaceholder {
		t.Errorf("expected default placeholder, got %s", cfg.Citations.Placeholder)
	}
}

func TestLoad_InvalidYAML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte("agent: [unterminated"), 0644); err != nil {
		t.Fatal(err)
	}
	if _, err := Load(path); err == nil {
		t.Error("expected parse error")
	}
}

func TestGetAgentTimeout(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Agent.Timeout = "5s"
	if got := cfg.GetAgentTimeout(); got != 5*time.Second {
		t.Errorf("expected 5s, got %s", got)
	}
	cfg.Agent.Timeout = "nonsense"
	if got := cfg.GetAgentTimeout(); got != 120*time.Second {
		t.Errorf("expected fallback 120s, got %s", got)
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr bool
	}{
		{"valid", func(c *Config) { c.Agent.ID = "A" }, false},
		{"missing agent id", func(c *Config) {}, true},
		{"fixtures without agent id", func(c *Config) { c.Agent.FixturesDir = "testdata" }, false},
		{"bad empty mode", func(c *Config) { c.Agent.ID = "A"; c.Citations.EmptyMode = "hide" }, true},
		{"zero timeout", func(c *Config) { c.Agent.ID = "A"; c.Agent.Timeout = "0s" }, true},
		{"negative timeout", func(c *Config) { c.Agent.ID = "A"; c.Agent.Timeout = "-1s" }, true},
		{"unparseable timeout", func(c *Config) { c.Agent.ID = "A"; c.Agent.Timeout = "soon" }, true},
		{"bad split ratio", func(c *Config) { c.Agent.ID = "A"; c.UI.SplitRatio = 1.5 }, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tt.mutate(cfg)
			err := cfg.Validate()
			if (err != nil) != tt.wantErr {
				t.Errorf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestValidate_NoAgentIDSentinel(t *testing.T) {
	err := DefaultConfig().Validate()
	if !errors.Is(err, ErrNoAgentID) {
		t.Fatalf("expected ErrNoAgentID, got %v", err)
	}
}

func TestLoggingConfig_Options(t *testing.T) {
	lc := LoggingConfig{Level: "debug", Format: "json", DebugMode: true, Categories: map[string]bool{"agent": false}}
	if lc.IsCategoryEnabled("agent") {
		t.Error("agent should be disabled")
	}
	if !lc.IsCategoryEnabled("trace") {
		t.Error("unlisted category should be enabled in debug mode")
	}
	opts := lc.Options()
	if !opts.DebugMode || opts.Level != "debug" || opts.Format != "json" || opts.Categories["agent"] {
		t.Errorf("unexpected options %+v", opts)
	}
}
