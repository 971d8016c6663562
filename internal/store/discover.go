package store

import (
	"context"
	"time"

	"github.com/grovetools/studio/git"
	"github.com/grovetools/studio/internal/action"
)

// DiscoverFunc reports the checkouts of a project root. Returning an empty
// slice means a single checkout at the project path on the default branch.
type DiscoverFunc func(path string) []action.WorktreeRef

// DiscoverGitWorktrees is the default discovery: every linked git worktree
// of the repository containing path. Non-repositories and git failures
// degrade to the single-checkout fallback rather than blocking OpenProject.
func DiscoverGitWorktrees(path string) []action.WorktreeRef {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if !git.IsRepository(ctx, path) {
		return nil
	}
	worktrees, err := git.ListWorktrees(ctx, path)
	if err != nil {
		return nil
	}

	var refs []action.WorktreeRef
	for _, wt := range worktrees {
		if wt.Bare || wt.Branch == "" {
			continue
		}
		refs = append(refs, action.WorktreeRef{Path: wt.Path, Branch: wt.Branch})
	}
	return refs
}
