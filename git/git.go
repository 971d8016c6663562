// Package git shells out to the git binary for the small amount of
// repository awareness studio needs: which checkouts a project has and
// what branch each one is on.
package git

import (
	"context"
	"fmt"
	"os/exec"
	"strings"
)

// WorktreeInfo describes one checkout of a repository.
type WorktreeInfo struct {
	Path   string
	Branch string
	Commit string
	Bare   bool
}

// IsRepository reports whether dir is inside a git work tree.
func IsRepository(ctx context.Context, dir string) bool {
	cmd := exec.CommandContext(ctx, "git", "rev-parse", "--is-inside-work-tree")
	cmd.Dir = dir
	out, err := cmd.Output()
	return err == nil && strings.TrimSpace(string(out)) == "true"
}

// CurrentBranch returns the checked-out branch of dir. A detached HEAD
// reports "HEAD"; callers usually fall back to a default name.
func CurrentBranch(ctx context.Context, dir string) (string, error) {
	cmd := exec.CommandContext(ctx, "git", "rev-parse", "--abbrev-ref", "HEAD")
	cmd.Dir = dir
	out, err := cmd.Output()
	if err != nil {
		return "", fmt.Errorf("current branch: %w", err)
	}
	return strings.TrimSpace(string(out)), nil
}

// ListWorktrees returns every worktree of the repository containing
// repoPath, the main checkout included.
func ListWorktrees(ctx context.Context, repoPath string) ([]WorktreeInfo, error) {
	cmd := exec.CommandContext(ctx, "git", "worktree", "list", "--porcelain")
	cmd.Dir = repoPath
	out, err := cmd.Output()
	if err != nil {
		return nil, fmt.Errorf("list worktrees: %w", err)
	}
	return parseWorktreeList(string(out)), nil
}

// parseWorktreeList parses `git worktree list --porcelain` output: one
// stanza per worktree, blank-line separated.
func parseWorktreeList(output string) []WorktreeInfo {
	var worktrees []WorktreeInfo

	var current WorktreeInfo
	for _, line := range strings.Split(output, "\n") {
		if line == "" {
			if current.Path != "" {
				worktrees = append(worktrees, current)
				current = WorktreeInfo{}
			}
			continue
		}

		parts := strings.SplitN(line, " ", 2)
		switch parts[0] {
		case "worktree":
			if len(parts) == 2 {
				current.Path = parts[1]
			}
		case "HEAD":
			if len(parts) == 2 {
				current.Commit = parts[1]
			}
		case "branch":
			if len(parts) == 2 {
				current.Branch = strings.TrimPrefix(parts[1], "refs/heads/")
			}
		case "bare":
			current.Bare = true
		}
	}
	if current.Path != "" {
		worktrees = append(worktrees, current)
	}

	return worktrees
}
