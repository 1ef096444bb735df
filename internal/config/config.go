package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"
)

// Config holds all kbchat configuration.
type Config struct {
	// Agent connection
	Agent AgentConfig `yaml:"agent"`

	// Chat UI chrome
	UI UIConfig `yaml:"ui"`

	// Citation resolution and display
	Citations CitationsConfig `yaml:"citations"`

	// Active session persistence
	Store StoreConfig `yaml:"store"`

	// Logging
	Logging LoggingConfig `yaml:"logging"`
}

// AgentConfig identifies the remote agent and how to reach it.
type AgentConfig struct {
	ID         string `yaml:"id"`
	AliasID    string `yaml:"alias_id"`
	GatewayURL string `yaml:"gateway_url"`
	Timeout    string `yaml:"timeout"`

	// FixturesDir, when set, serves recorded responses instead of calling the gateway.
	FixturesDir string `yaml:"fixtures_dir"`
}

// UIConfig configures the terminal chat.
type UIConfig struct {
	Title      string  `yaml:"title"`
	Icon       string  `yaml:"icon"`
	Theme      string  `yaml:"theme"` // auto, dark, light
	SplitRatio float64 `yaml:"split_ratio"`
}

// Empty citation display modes.
const (
	EmptyModePlaceholder = "placeholder"
	EmptyModeOmit        = "omit"
)

// CitationsConfig configures locator resolution and the empty-block marker.
type CitationsConfig struct {
	SourcePrefix string `yaml:"source_prefix"`
	PublicPrefix string `yaml:"public_prefix"`
	EmptyMode    string `yaml:"empty_mode"` // placeholder, omit
	Placeholder  string `yaml:"placeholder"`
}

// StoreConfig configures the SQLite session store.
type StoreConfig struct {
	Enabled bool   `yaml:"enabled"`
	Path    string `yaml:"path"`
}

const (
	DefaultAliasID      = "TSTALIASID"
	DefaultTitle        = "Agents for Amazon Bedrock Test UI"
	DefaultSourcePrefix = "s3://kcknowledgebase/"
	DefaultPublicPrefix = "https://miscdocsihave.s3.us-east-1.amazonaws.com/"
	DefaultPlaceholder  = "(No citations available)"
)

// DefaultConfig returns the default configuration.
func DefaultConfig() *Config {
	return &Config{
		Agent: AgentConfig{
			AliasID:    DefaultAliasID,
			GatewayURL: "http://localhost:8088",
			Timeout:    "120s",
		},

		UI: UIConfig{
			Title:      DefaultTitle,
			Theme:      "auto",
			SplitRatio: 0.62,
		},

		Citations: CitationsConfig{
			SourcePrefix: DefaultSourcePrefix,
			PublicPrefix: DefaultPublicPrefix,
			EmptyMode:    EmptyModePlaceholder,
			Placeholder:  DefaultPlaceholder,
		},

		Store: StoreConfig{
			Enabled: false,
			Path:    filepath.Join(".kbchat", "session.db"),
		},

		Logging: LoggingConfig{
			Level:  "info",
			Format: "console",
		},
	}
}

// DefaultPath returns the config path inside a workspace.
func DefaultPath(workspace string) string {
	return filepath.Join(workspace, ".kbchat", "config.yaml")
}

// Load loads configuration from a YAML file.
// A missing file yields defaults; environment overrides apply either way.
func Load(path string) (*Config, error) {
	cfg := DefaultConfig()

	data, err := os.ReadFile(path)
	if err != nil {
		if !os.IsNotExist(err) {
			return nil, fmt.Errorf("failed to read config: %w", err)
		}
	} else if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}

	cfg.applyEnvOverrides()

	return cfg, nil
}

// Save saves configuration to a YAML file.
func (c *Config) Save(path string) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("failed to write config: %w", err)
	}

	return nil
}

// applyEnvOverrides applies environment variable overrides.
func (c *Config) applyEnvOverrides() {
	if id := os.Getenv("BEDROCK_AGENT_ID"); id != "" {
		c.Agent.ID = id
	}
	if alias := os.Getenv("BEDROCK_AGENT_ALIAS_ID"); alias != "" {
		c.Agent.AliasID = alias
	}
	if c.Agent.AliasID == "" {
		c.Agent.AliasID = DefaultAliasID
	}

	if title := os.Getenv("BEDROCK_AGENT_TEST_UI_TITLE"); title != "" {
		c.UI.Title = title
	}
	if icon := os.Getenv("BEDROCK_AGENT_TEST_UI_ICON"); icon != "" {
		c.UI.Icon = icon
	}

	if url := os.Getenv("KBCHAT_GATEWAY_URL"); url != "" {
		c.Agent.GatewayURL = url
	}
	if path := os.Getenv("KBCHAT_DB"); path != "" {
		c.Store.Path = path
		c.Store.Enabled = true
	}
}

// GetAgentTimeout returns the agent call timeout as a duration.
func (c *Config) GetAgentTimeout() time.Duration {
	d, err := time.ParseDuration(c.Agent.Timeout)
	if err != nil {
		return 120 * time.Second
	}
	return d
}

// ErrNoAgentID is returned by Validate when neither an agent id nor a
// fixtures directory is configured. Commands that never call the agent
// may ignore it.
var ErrNoAgentID = errors.New("agent id not configured")

// ValidEmptyModes lists the supported empty citation display modes.
var ValidEmptyModes = []string{EmptyModePlaceholder, EmptyModeOmit}

// Validate validates the configuration.
func (c *Config) Validate() error {
	if c.Agent.ID == "" && c.Agent.FixturesDir == "" {
		return fmt.Errorf("%w (set BEDROCK_AGENT_ID or agent.id)", ErrNoAgentID)
	}

	validMode := false
	for _, m := range ValidEmptyModes {
		if c.Citations.EmptyMode == m {
			validMode = true
			break
		}
	}
	if !validMode {
		return fmt.Errorf("invalid citations.empty_mode: %s (valid: %v)", c.Citations.EmptyMode, ValidEmptyModes)
	}

	if c.Agent.Timeout != "" {
		d, err := time.ParseDuration(c.Agent.Timeout)
		if err != nil {
			return fmt.Errorf("invalid agent.timeout %q: %w", c.Agent.Timeout, err)
		}
		if d <= 0 {
			return fmt.Errorf("agent.timeout must be positive, got %s", d)
		}
	}

	if c.UI.SplitRatio < 0 || c.UI.SplitRatio >= 1 {
		return fmt.Errorf("ui.split_ratio must be in [0, 1), got %v", c.UI.SplitRatio)
	}

	return nil
}

// IsStoreEnabled returns whether the session store is enabled.
func (c *Config) IsStoreEnabled() bool {
	return c.Store.Enabled && c.Store.Path != ""
}
