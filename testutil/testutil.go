// Package testutil holds shared test fixtures.
package testutil

import (
	"os"
	"os/exec"
	"path/filepath"
	"testing"
)

// RequireGit skips the test if the git binary is not available.
func RequireGit(t *testing.T) {
	t.Helper()
	if _, err := exec.LookPath("git"); err != nil {
		t.Skip("git not available")
	}
}

func run(t *testing.T, dir string, args ...string) {
	t.Helper()
	cmd := exec.Command(args[0], args[1:]...)
	cmd.Dir = dir
	if out, err := cmd.CombinedOutput(); err != nil {
		t.Fatalf("%v failed: %v\n%s", args, err, out)
	}
}

// InitGitRepo initializes a git repository with one commit on branch main.
func InitGitRepo(t *testing.T, dir string) {
	t.Helper()

	run(t, dir, "git", "init")
	run(t, dir, "git", "config", "user.name", "Test User")
	run(t, dir, "git", "config", "user.email", "test@example.com")

	readme := filepath.Join(dir, "README.md")
	if err := os.WriteFile(readme, []byte("# Test Project\n"), 0600); err != nil {
		t.Fatalf("Failed to create README: %v", err)
	}

	run(t, dir, "git", "add", ".")
	run(t, dir, "git", "commit", "-m", "Initial commit")

	// Normalize the default branch name regardless of git config.
	cmd := exec.Command("git", "branch", "-m", "main")
	cmd.Dir = dir
	_ = cmd.Run()
}

// AddWorktree creates a linked worktree on a new branch and returns its path.
func AddWorktree(t *testing.T, repoDir, branch string) string {
	t.Helper()
	wtPath := filepath.Join(t.TempDir(), branch)
	run(t, repoDir, "git", "worktree", "add", "-b", branch, wtPath)
	return wtPath
}
