package config

import (
	"os"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/grovetools/studio/errors"
	"github.com/grovetools/studio/pkg/paths"
	"github.com/pelletier/go-toml/v2"
	"gopkg.in/yaml.v3"
)

var envVarRegex = regexp.MustCompile(`\$\{([^}]+)\}`)

// Load reads and parses a Studio configuration file. Both YAML (studio.yml)
// and TOML (studio.toml) formats are supported, selected by extension.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, errors.ConfigNotFound(path)
		}
		return nil, errors.Wrap(err, errors.ErrCodeConfigInvalid, "failed to read config file").
			WithDetail("path", path)
	}

	expanded := expandEnvVars(string(data))

	var config Config
	if strings.HasSuffix(path, ".toml") {
		if err := toml.Unmarshal([]byte(expanded), &config); err != nil {
			return nil, errors.Wrap(err, errors.ErrCodeConfigInvalid, "failed to parse TOML config").
				WithDetail("path", path)
		}
	} else {
		if err := yaml.Unmarshal([]byte(expanded), &config); err != nil {
			return nil, errors.Wrap(err, errors.ErrCodeConfigInvalid, "failed to parse YAML config").
				WithDetail("path", path)
		}
	}

	return &config, nil
}

// LoadDefault finds and loads the configuration starting from the current
// working directory.
func LoadDefault() (*Config, error) {
	cwd, err := os.Getwd()
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrCodeConfigInvalid, "failed to get current directory")
	}
	return LoadFrom(cwd)
}

// LoadFrom loads configuration starting from the given directory.
func LoadFrom(startDir string) (*Config, error) {
	path, err := FindConfigFile(startDir)
	if err != nil {
		return nil, err
	}
	return Load(path)
}

// FindConfigFile searches for studio configuration files with the following precedence:
// 1. Current directory up to filesystem root
// 2. XDG config directory (~/.config/studio/studio.yml)
func FindConfigFile(startDir string) (string, error) {
	configNames := []string{
		"studio.yml",
		"studio.yaml",
		".studio.yml",
		".studio.yaml",
		"studio.toml",
	}

	// 1. Search from current directory up to filesystem root
	dir := startDir
	for {
		for _, name := range configNames {
			path := filepath.Join(dir, name)
			if info, err := os.Stat(path); err == nil && !info.IsDir() {
				return path, nil
			}
		}

		parent := filepath.Dir(dir)
		if parent == dir {
			break
		}
		dir = parent
	}

	// 2. Check XDG config directory
	if configDir := paths.ConfigDir(); configDir != "" {
		for _, name := range []string{"studio.yml", "studio.yaml", "studio.toml"} {
			path := filepath.Join(configDir, name)
			if info, err := os.Stat(path); err == nil && !info.IsDir() {
				return path, nil
			}
		}
	}

	return "", errors.ConfigNotFound(startDir).WithDetail("searchPath", startDir)
}

// expandEnvVars replaces ${VAR} and ${VAR:-default} with environment values.
func expandEnvVars(content string) string {
	return envVarRegex.ReplaceAllStringFunc(content, func(match string) string {
		varName := envVarRegex.FindStringSubmatch(match)[1]

		parts := strings.SplitN(varName, ":-", 2)
		varName = parts[0]
		defaultValue := ""
		if len(parts) > 1 {
			defaultValue = parts[1]
		}

		if value := os.Getenv(varName); value != "" {
			return value
		}
		return defaultValue
	})
}
