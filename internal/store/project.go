package store

import (
	"github.com/grovetools/studio/errors"
	"github.com/grovetools/studio/internal/action"
	"github.com/grovetools/studio/internal/state"
)

// Reducers are pure: clone the base tree, mutate the clone, return it.
// Anything nondeterministic (keys, listings, session ids) is computed in
// the store's prepare step and arrives on the payload.

// WorktreeID derives the stable worktree id for a project key and branch.
func WorktreeID(projectKey, branch string) string {
	return projectKey + ":" + branch
}

func reduceOpenProject(cur *state.App, p *action.OpenProject) (*state.App, error) {
	next := cur.Clone()

	if proj, ok := next.Projects[p.Path]; ok {
		// Reopening is idempotent; it just refocuses.
		next.ActiveProject = proj.Path
		return next, nil
	}

	refs := p.Worktrees
	if len(refs) == 0 {
		branch := p.Branch
		if branch == "" {
			branch = "main"
		}
		refs = []action.WorktreeRef{{Path: p.Path, Branch: branch}}
	}

	proj := &state.Project{Path: p.Path, Key: p.Key}
	for _, ref := range refs {
		wt := state.NewWorktree(WorktreeID(p.Key, ref.Branch), ref.Path, ref.Branch)
		proj.Worktrees = append(proj.Worktrees, wt)
		// The checkout at the project path itself becomes active; linked
		// worktrees elsewhere are opened alongside it.
		if ref.Path == p.Path || proj.ActiveWorktree == "" {
			proj.ActiveWorktree = wt.ID
		}
	}

	next.Projects[p.Path] = proj
	next.ActiveProject = p.Path
	return next, nil
}

func reduceCloseProject(cur *state.App, p *action.CloseProject) (*state.App, error) {
	next := cur.Clone()
	if _, ok := next.Projects[p.Path]; !ok {
		return nil, errors.New(errors.ErrCodeUnknownProject, "project is not open").
			WithDetail("path", p.Path)
	}
	delete(next.Projects, p.Path)
	if next.ActiveProject == p.Path {
		next.ActiveProject = ""
	}
	return next, nil
}

func reduceSetActiveView(cur *state.App, p *action.SetActiveView) (*state.App, error) {
	next := cur.Clone()
	next.ActiveView = state.View(p.View)
	return next, nil
}

func reduceSetActiveWorktree(cur *state.App, p *action.SetActiveWorktree) (*state.App, error) {
	next := cur.Clone()
	proj := next.ProjectOf(p.WorktreeID)
	if proj == nil {
		return nil, errors.UnknownWorktree(p.WorktreeID)
	}
	proj.ActiveWorktree = p.WorktreeID
	next.ActiveProject = proj.Path
	return next, nil
}

func reduceSetEnvSync(cur *state.App, p *action.SetEnvSync) (*state.App, error) {
	next := cur.Clone()
	proj, ok := next.Projects[p.ProjectPath]
	if !ok {
		return nil, errors.New(errors.ErrCodeUnknownProject, "project is not open").
			WithDetail("path", p.ProjectPath)
	}
	proj.EnvSync = &state.EnvSync{Enabled: p.Enabled, Files: append([]string(nil), p.Files...)}
	return next, nil
}

func reduceSetService(cur *state.App, p *action.SetService) (*state.App, error) {
	next := cur.Clone()
	if next.Services == nil {
		next.Services = &state.Services{}
	}
	if next.Services.Running == nil {
		next.Services.Running = make(map[string]bool)
	}
	next.Services.Running[p.Name] = p.Running
	return next, nil
}
