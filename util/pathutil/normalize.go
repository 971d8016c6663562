package pathutil

import (
	"path/filepath"
	"runtime"
	"strings"
)

// NormalizeForLookup canonicalizes a path for use as an identity key:
// absolute, symlinks resolved, lowercased on case-insensitive filesystems.
// Project keys are derived from this form so a checkout and a symlink to
// it name the same project.
func NormalizeForLookup(path string) (string, error) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return "", err
	}
	canonical, err := filepath.EvalSymlinks(abs)
	if err != nil {
		// Path may not exist yet. The absolute form is still a stable key.
		canonical = abs
	}
	if runtime.GOOS == "darwin" || runtime.GOOS == "windows" {
		return strings.ToLower(canonical), nil
	}
	return canonical, nil
}
