package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/grovetools/studio/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))
	return path
}

func TestLoadYAML(t *testing.T) {
	dir := t.TempDir()
	path := writeConfig(t, dir, "studio.yml", `
name: demo
chat:
  model: test-model
  max_tokens: 128
explorer:
  ignore_patterns:
    - node_modules
    - "*.tmp"
`)

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "demo", cfg.Name)
	assert.Equal(t, "test-model", cfg.Chat.Model)
	assert.Equal(t, []string{"node_modules", "*.tmp"}, cfg.Explorer.IgnorePatterns)
}

func TestLoadTOML(t *testing.T) {
	dir := t.TempDir()
	path := writeConfig(t, dir, "studio.toml", `
name = "demo"

[daemon]
socket_path = "/tmp/studio-test.sock"
`)

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "demo", cfg.Name)
	assert.Equal(t, "/tmp/studio-test.sock", cfg.Daemon.SocketPath)
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "studio.yml"))
	assert.True(t, errors.Is(err, errors.ErrCodeConfigNotFound))
}

func TestFindConfigWalksUp(t *testing.T) {
	root := t.TempDir()
	writeConfig(t, root, "studio.yml", "name: parent\n")
	nested := filepath.Join(root, "a", "b")
	require.NoError(t, os.MkdirAll(nested, 0755))

	found, err := FindConfigFile(nested)
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(root, "studio.yml"), found)
}

func TestEnvVarExpansion(t *testing.T) {
	t.Setenv("STUDIO_TEST_MODEL", "env-model")
	dir := t.TempDir()
	path := writeConfig(t, dir, "studio.yml", `
chat:
  model: ${STUDIO_TEST_MODEL}
  base_url: ${STUDIO_TEST_MISSING:-https://fallback.example}
`)

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "env-model", cfg.Chat.Model)
	assert.Equal(t, "https://fallback.example", cfg.Chat.BaseURL)
}

func TestUnmarshalExtension(t *testing.T) {
	dir := t.TempDir()
	path := writeConfig(t, dir, "studio.yml", `
name: demo
logging:
  level: debug
  report_caller: true
`)

	cfg, err := Load(path)
	require.NoError(t, err)

	var logCfg struct {
		Level        string `yaml:"level"`
		ReportCaller bool   `yaml:"report_caller"`
	}
	require.NoError(t, cfg.UnmarshalExtension("logging", &logCfg))
	assert.Equal(t, "debug", logCfg.Level)
	assert.True(t, logCfg.ReportCaller)

	// Missing keys leave the target zero-valued
	var other struct {
		X int `yaml:"x"`
	}
	require.NoError(t, cfg.UnmarshalExtension("missing", &other))
	assert.Zero(t, other.X)
}

func TestChatOrDefault(t *testing.T) {
	var nilCfg *Config
	def := nilCfg.ChatOrDefault()
	assert.NotEmpty(t, def.BaseURL)
	assert.NotEmpty(t, def.Model)
	assert.Equal(t, 4096, def.MaxTokens)

	cfg := &Config{Chat: &ChatConfig{Model: "override"}}
	got := cfg.ChatOrDefault()
	assert.Equal(t, "override", got.Model)
	assert.Equal(t, def.BaseURL, got.BaseURL)
}

func TestValidateAcceptsLoadedConfig(t *testing.T) {
	cfg := &Config{
		Name:    "demo",
		Version: "1",
		Terminal: &TerminalConfig{Shell: "/bin/zsh"},
	}
	require.NoError(t, Validate(cfg))
}

func TestValidateEmptyConfig(t *testing.T) {
	// Everything is optional; an empty config is valid and defaults apply.
	require.NoError(t, Validate(&Config{}))
}
