package state

// Clone returns a deep copy of the tree. Reducers copy before mutating so a
// committed snapshot handed to subscribers is never written to again.
func (a *App) Clone() *App {
	if a == nil {
		return nil
	}
	out := &App{
		Projects:      make(map[string]*Project, len(a.Projects)),
		ActiveProject: a.ActiveProject,
		ActiveView:    a.ActiveView,
	}
	if a.Services != nil {
		out.Services = &Services{Running: make(map[string]bool, len(a.Services.Running))}
		for k, v := range a.Services.Running {
			out.Services.Running[k] = v
		}
	}
	for path, p := range a.Projects {
		out.Projects[path] = p.clone()
	}
	return out
}

func (p *Project) clone() *Project {
	out := &Project{
		Path:           p.Path,
		Key:            p.Key,
		ActiveWorktree: p.ActiveWorktree,
		Worktrees:      make([]*Worktree, len(p.Worktrees)),
	}
	if p.EnvSync != nil {
		es := *p.EnvSync
		es.Files = append([]string(nil), p.EnvSync.Files...)
		out.EnvSync = &es
	}
	for i, wt := range p.Worktrees {
		out.Worktrees[i] = wt.clone()
	}
	return out
}

func (w *Worktree) clone() *Worktree {
	out := &Worktree{
		ID:     w.ID,
		Path:   w.Path,
		Branch: w.Branch,
	}
	if w.Explorer != nil {
		out.Explorer = w.Explorer.clone()
	}
	if w.Terminal != nil {
		t := *w.Terminal
		out.Terminal = &t
	}
	if w.Chat != nil {
		out.Chat = &Chat{
			Messages: append([]ChatMessage(nil), w.Chat.Messages...),
			Seq:      w.Chat.Seq,
		}
	}
	return out
}

func (e *Explorer) clone() *Explorer {
	out := &Explorer{
		ExpandedPaths: make(map[string]bool, len(e.ExpandedPaths)),
		DirCache:      make(map[string][]DirEntry, len(e.DirCache)),
		OpenTabs:      append([]FileTab(nil), e.OpenTabs...),
		ActiveTabPath: e.ActiveTabPath,
	}
	for k, v := range e.ExpandedPaths {
		out.ExpandedPaths[k] = v
	}
	for k, v := range e.DirCache {
		out.DirCache[k] = append([]DirEntry(nil), v...)
	}
	return out
}
