package config

import (
	"fmt"

	"github.com/mitchellh/mapstructure"
)

// DaemonConfig holds settings for the studiod daemon.
type DaemonConfig struct {
	// SocketPath overrides the default unix socket location.
	SocketPath string `yaml:"socket_path,omitempty" toml:"socket_path,omitempty" jsonschema:"description=Path of the unix socket the daemon listens on"`
	// DatabasePath overrides the default sqlite database location.
	DatabasePath string `yaml:"database_path,omitempty" toml:"database_path,omitempty" jsonschema:"description=Path of the sqlite database holding records and snapshots"`
	// SnapshotInterval is the minimum time between best-effort snapshot
	// writes, e.g. "2s". Zero means snapshot after every commit.
	SnapshotInterval string `yaml:"snapshot_interval,omitempty" toml:"snapshot_interval,omitempty" jsonschema:"description=Minimum interval between state snapshot writes"`
}

// ChatConfig holds settings for the streaming chat backend.
type ChatConfig struct {
	// BaseURL of the completion API. Defaults to the Anthropic messages API.
	BaseURL string `yaml:"base_url,omitempty" toml:"base_url,omitempty" jsonschema:"description=Base URL of the completion API"`
	// Model identifier sent with completion requests.
	Model string `yaml:"model,omitempty" toml:"model,omitempty" jsonschema:"description=Model identifier for completion requests"`
	// APIKeyEnv names the environment variable holding the API key.
	APIKeyEnv string `yaml:"api_key_env,omitempty" toml:"api_key_env,omitempty" jsonschema:"description=Environment variable holding the API key"`
	// MaxTokens caps the completion length.
	MaxTokens int `yaml:"max_tokens,omitempty" toml:"max_tokens,omitempty" jsonschema:"description=Maximum tokens per completion"`
}

// ExplorerConfig holds settings for the file explorer.
type ExplorerConfig struct {
	// IgnorePatterns are dockerignore-style patterns excluded from
	// directory listings (e.g. node_modules, .git).
	IgnorePatterns []string `yaml:"ignore_patterns,omitempty" toml:"ignore_patterns,omitempty" jsonschema:"description=Patterns excluded from directory listings"`
}

// TerminalConfig holds settings for spawned terminal sessions.
type TerminalConfig struct {
	// Shell overrides $SHELL for spawned sessions.
	Shell string `yaml:"shell,omitempty" toml:"shell,omitempty" jsonschema:"description=Shell binary used for terminal sessions"`
}

// Config is the top-level studio.yml structure.
type Config struct {
	Name    string `yaml:"name,omitempty" toml:"name,omitempty" json:"name,omitempty" jsonschema:"description=Display name for this configuration"`
	Version string `yaml:"version,omitempty" toml:"version,omitempty" json:"version,omitempty" jsonschema:"description=Config schema version"`

	Daemon   *DaemonConfig   `yaml:"daemon,omitempty" toml:"daemon,omitempty" json:"daemon,omitempty" jsonschema:"description=Settings for the studiod daemon"`
	Chat     *ChatConfig     `yaml:"chat,omitempty" toml:"chat,omitempty" json:"chat,omitempty" jsonschema:"description=Settings for the streaming chat backend"`
	Explorer *ExplorerConfig `yaml:"explorer,omitempty" toml:"explorer,omitempty" json:"explorer,omitempty" jsonschema:"description=Settings for the file explorer"`
	Terminal *TerminalConfig `yaml:"terminal,omitempty" toml:"terminal,omitempty" json:"terminal,omitempty" jsonschema:"description=Settings for terminal sessions"`

	// Extensions captures all other top-level keys for extensibility.
	Extensions map[string]interface{} `yaml:",inline" toml:"-" json:"-" jsonschema:"-"`
}

// UnmarshalExtension decodes a specific extension's configuration from the
// loaded studio.yml into the provided target struct. The target must be a
// pointer. This provides a type-safe way for tools to access their custom
// configuration sections.
//
// Example:
//
//	var logCfg logging.Config
//	err := cfg.UnmarshalExtension("logging", &logCfg)
func (c *Config) UnmarshalExtension(key string, target interface{}) error {
	extensionConfig, ok := c.Extensions[key]
	if !ok {
		// It's not an error if the key doesn't exist.
		// The target struct will simply remain zero-valued.
		return nil
	}

	// Use mapstructure to decode the generic map[string]interface{}
	// into the strongly-typed target struct. We configure it to use
	// `yaml` tags for consistency.
	decoder, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		Result:  target,
		TagName: "yaml",
	})
	if err != nil {
		return fmt.Errorf("failed to create mapstructure decoder: %w", err)
	}

	if err := decoder.Decode(extensionConfig); err != nil {
		return fmt.Errorf("failed to decode extension config for '%s': %w", key, err)
	}

	return nil
}

// ChatOrDefault returns the chat section with defaults filled in.
func (c *Config) ChatOrDefault() ChatConfig {
	cfg := ChatConfig{
		BaseURL:   "https://api.anthropic.com/v1",
		Model:     "claude-sonnet-4-20250514",
		APIKeyEnv: "ANTHROPIC_API_KEY",
		MaxTokens: 4096,
	}
	if c == nil || c.Chat == nil {
		return cfg
	}
	if c.Chat.BaseURL != "" {
		cfg.BaseURL = c.Chat.BaseURL
	}
	if c.Chat.Model != "" {
		cfg.Model = c.Chat.Model
	}
	if c.Chat.APIKeyEnv != "" {
		cfg.APIKeyEnv = c.Chat.APIKeyEnv
	}
	if c.Chat.MaxTokens > 0 {
		cfg.MaxTokens = c.Chat.MaxTokens
	}
	return cfg
}

// DefaultIgnorePatterns are applied when no explorer config is present.
var DefaultIgnorePatterns = []string{".git", "node_modules", "*.swp", ".DS_Store"}

// IgnorePatternsOrDefault returns the explorer ignore patterns with defaults.
func (c *Config) IgnorePatternsOrDefault() []string {
	if c == nil || c.Explorer == nil || len(c.Explorer.IgnorePatterns) == 0 {
		return DefaultIgnorePatterns
	}
	return c.Explorer.IgnorePatterns
}
