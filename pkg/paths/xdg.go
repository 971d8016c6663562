// Package paths provides XDG-compliant path resolution for Studio.
//
// Resolution order:
// 1. STUDIO_HOME (portable root) → $STUDIO_HOME/{config,data,state,cache}
// 2. XDG env vars → $XDG_*_HOME/studio
// 3. Platform defaults → ~/.config/studio, ~/.local/share/studio, etc.
package paths

import (
	"os"
	"path/filepath"
)

// getConfigHome returns the base config home directory.
func getConfigHome() string {
	if studioHome := os.Getenv("STUDIO_HOME"); studioHome != "" {
		return filepath.Join(studioHome, "config")
	}
	if xdgConfigHome := os.Getenv("XDG_CONFIG_HOME"); xdgConfigHome != "" {
		return xdgConfigHome
	}
	if homeDir, err := os.UserHomeDir(); err == nil {
		return filepath.Join(homeDir, ".config")
	}
	return ""
}

// getDataHome returns the base data home directory.
func getDataHome() string {
	if studioHome := os.Getenv("STUDIO_HOME"); studioHome != "" {
		return filepath.Join(studioHome, "data")
	}
	if xdgDataHome := os.Getenv("XDG_DATA_HOME"); xdgDataHome != "" {
		return xdgDataHome
	}
	if homeDir, err := os.UserHomeDir(); err == nil {
		return filepath.Join(homeDir, ".local", "share")
	}
	return ""
}

// getStateHome returns the base state home directory.
func getStateHome() string {
	if studioHome := os.Getenv("STUDIO_HOME"); studioHome != "" {
		return filepath.Join(studioHome, "state")
	}
	if xdgStateHome := os.Getenv("XDG_STATE_HOME"); xdgStateHome != "" {
		return xdgStateHome
	}
	if homeDir, err := os.UserHomeDir(); err == nil {
		return filepath.Join(homeDir, ".local", "state")
	}
	return ""
}

// getCacheHome returns the base cache home directory.
func getCacheHome() string {
	if studioHome := os.Getenv("STUDIO_HOME"); studioHome != "" {
		return filepath.Join(studioHome, "cache")
	}
	if xdgCacheHome := os.Getenv("XDG_CACHE_HOME"); xdgCacheHome != "" {
		return xdgCacheHome
	}
	if homeDir, err := os.UserHomeDir(); err == nil {
		return filepath.Join(homeDir, ".cache")
	}
	return ""
}

// ConfigDir returns the Studio configuration directory.
// Used for config files like studio.yml.
func ConfigDir() string {
	base := getConfigHome()
	if base == "" {
		return ""
	}
	return filepath.Join(base, "studio")
}

// DataDir returns the Studio data directory.
// Used for the record database and snapshots.
func DataDir() string {
	base := getDataHome()
	if base == "" {
		return ""
	}
	return filepath.Join(base, "studio")
}

// StateDir returns the Studio state directory.
// Used for runtime state, DBs, logs.
func StateDir() string {
	base := getStateHome()
	if base == "" {
		return ""
	}
	return filepath.Join(base, "studio")
}

// CacheDir returns the Studio cache directory.
// Used for temporary/regenerable data.
func CacheDir() string {
	base := getCacheHome()
	if base == "" {
		return ""
	}
	return filepath.Join(base, "studio")
}

// LogDir returns the directory daemon log files are written to.
func LogDir() string {
	state := StateDir()
	if state == "" {
		return ""
	}
	return filepath.Join(state, "logs")
}

// DatabasePath returns the path of the sqlite database holding records
// and snapshots.
func DatabasePath() string {
	data := DataDir()
	if data == "" {
		return ""
	}
	return filepath.Join(data, "studio.db")
}

// RuntimeDir returns the Studio runtime directory for sockets and pipes.
// Uses XDG_RUNTIME_DIR when available (Linux), falls back to StateDir (macOS).
func RuntimeDir() string {
	if studioHome := os.Getenv("STUDIO_HOME"); studioHome != "" {
		return filepath.Join(studioHome, "run")
	}
	if dir := os.Getenv("XDG_RUNTIME_DIR"); dir != "" {
		return filepath.Join(dir, "studio")
	}
	// Fallback: use state dir for socket on macOS/systems without XDG_RUNTIME_DIR
	return StateDir()
}

// SocketPath returns the path to the studio daemon unix socket.
func SocketPath() string {
	return filepath.Join(RuntimeDir(), "studiod.sock")
}

// PidFilePath returns the path to the studio daemon PID file.
func PidFilePath() string {
	return filepath.Join(StateDir(), "studiod.pid")
}

// EnsureDirs creates all Studio directories if they don't exist.
func EnsureDirs() error {
	dirs := []string{
		ConfigDir(),
		DataDir(),
		StateDir(),
		CacheDir(),
		LogDir(),
		RuntimeDir(),
	}

	for _, dir := range dirs {
		if dir == "" {
			continue
		}
		if err := os.MkdirAll(dir, 0755); err != nil {
			return err
		}
	}
	return nil
}
