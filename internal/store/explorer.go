package store

import (
	"github.com/grovetools/studio/errors"
	"github.com/grovetools/studio/internal/action"
	"github.com/grovetools/studio/internal/state"
)

func explorerOf(next *state.App, worktreeID string) (*state.Explorer, error) {
	wt := next.FindWorktree(worktreeID)
	if wt == nil {
		return nil, errors.UnknownWorktree(worktreeID)
	}
	return wt.Explorer, nil
}

func toStateEntries(entries []action.DirEntry) []state.DirEntry {
	out := make([]state.DirEntry, len(entries))
	for i, e := range entries {
		out[i] = state.DirEntry{Name: e.Name, IsDir: e.IsDir}
	}
	return out
}

func reduceExploreDir(cur *state.App, p *action.ExploreDir) (*state.App, error) {
	next := cur.Clone()
	ex, err := explorerOf(next, p.WorktreeID)
	if err != nil {
		return nil, err
	}
	if p.Loaded {
		ex.DirCache[p.Path] = toStateEntries(p.Entries)
	}
	return next, nil
}

func reduceExpandDirectory(cur *state.App, p *action.ExpandDirectory) (*state.App, error) {
	next := cur.Clone()
	ex, err := explorerOf(next, p.WorktreeID)
	if err != nil {
		return nil, err
	}
	ex.ExpandedPaths[p.Path] = true
	if p.Loaded {
		ex.DirCache[p.Path] = toStateEntries(p.Entries)
	}
	return next, nil
}

func reduceCollapseDirectory(cur *state.App, p *action.CollapseDirectory) (*state.App, error) {
	next := cur.Clone()
	ex, err := explorerOf(next, p.WorktreeID)
	if err != nil {
		return nil, err
	}
	// The cached listing survives a collapse; re-expanding must not hit
	// the disk again.
	delete(ex.ExpandedPaths, p.Path)
	return next, nil
}

func reduceRefreshDirectory(cur *state.App, p *action.RefreshDirectory) (*state.App, error) {
	next := cur.Clone()
	ex, err := explorerOf(next, p.WorktreeID)
	if err != nil {
		return nil, err
	}
	if p.Loaded {
		ex.DirCache[p.Path] = toStateEntries(p.Entries)
	}
	return next, nil
}

// reduceOpenFile implements preview-tab semantics: an already-open path is
// focused in place, otherwise the single unpinned tab (if any) is
// retargeted, otherwise a new unpinned tab is appended.
func reduceOpenFile(cur *state.App, p *action.OpenFile) (*state.App, error) {
	next := cur.Clone()
	ex, err := explorerOf(next, p.WorktreeID)
	if err != nil {
		return nil, err
	}

	for i := range ex.OpenTabs {
		if ex.OpenTabs[i].Path == p.Path {
			ex.ActiveTabPath = p.Path
			return next, nil
		}
	}

	for i := range ex.OpenTabs {
		if !ex.OpenTabs[i].Pinned {
			ex.OpenTabs[i] = state.FileTab{Path: p.Path}
			ex.ActiveTabPath = p.Path
			return next, nil
		}
	}

	ex.OpenTabs = append(ex.OpenTabs, state.FileTab{Path: p.Path})
	ex.ActiveTabPath = p.Path
	return next, nil
}

func reducePinTab(cur *state.App, p *action.PinTab) (*state.App, error) {
	next := cur.Clone()
	ex, err := explorerOf(next, p.WorktreeID)
	if err != nil {
		return nil, err
	}
	for i := range ex.OpenTabs {
		if ex.OpenTabs[i].Path == p.Path {
			ex.OpenTabs[i].Pinned = true
			break
		}
	}
	// Pinning a path with no open tab is a no-op, like CloseTab.
	return next, nil
}

func reduceCloseTab(cur *state.App, p *action.CloseTab) (*state.App, error) {
	next := cur.Clone()
	ex, err := explorerOf(next, p.WorktreeID)
	if err != nil {
		return nil, err
	}
	idx := -1
	for i := range ex.OpenTabs {
		if ex.OpenTabs[i].Path == p.Path {
			idx = i
			break
		}
	}
	if idx < 0 {
		return next, nil
	}
	ex.OpenTabs = append(ex.OpenTabs[:idx], ex.OpenTabs[idx+1:]...)

	if ex.ActiveTabPath == p.Path {
		switch {
		case len(ex.OpenTabs) == 0:
			ex.ActiveTabPath = ""
		case idx < len(ex.OpenTabs):
			ex.ActiveTabPath = ex.OpenTabs[idx].Path
		default:
			ex.ActiveTabPath = ex.OpenTabs[len(ex.OpenTabs)-1].Path
		}
	}
	return next, nil
}

func reduceSetTabScroll(cur *state.App, p *action.SetTabScroll) (*state.App, error) {
	next := cur.Clone()
	ex, err := explorerOf(next, p.WorktreeID)
	if err != nil {
		return nil, err
	}
	for i := range ex.OpenTabs {
		if ex.OpenTabs[i].Path == p.Path {
			ex.OpenTabs[i].ScrollPos = p.ScrollPos
			break
		}
	}
	return next, nil
}
