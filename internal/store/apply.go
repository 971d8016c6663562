package store

import (
	"context"

	"github.com/grovetools/studio/errors"
	"github.com/grovetools/studio/internal/action"
	"github.com/grovetools/studio/internal/persist"
	"github.com/grovetools/studio/internal/state"
)

// peek returns the loop's view of the current tree. Only the mutation
// goroutine calls this.
func (s *Store) peek() *state.App {
	s.stateMu.RLock()
	defer s.stateMu.RUnlock()
	return s.current
}

// apply runs one action to completion: prepare (I/O that feeds the
// reducer), pure reduce, synchronous record writes, side-effect handoff,
// commit, broadcast. Exactly one apply runs at a time.
func (s *Store) apply(act action.Action) error {
	cur := s.peek()

	if err := resolveWorktree(cur, act); err != nil {
		return err
	}

	switch p := act.Payload.(type) {

	// --- Project / view ---

	case *action.OpenProject:
		key, err := state.ProjectKey(p.Path)
		if err != nil {
			return errors.InvalidAction(string(act.Kind), err.Error())
		}
		p.Key = key
		p.Worktrees = s.discover(p.Path)
		next, err := reduceOpenProject(cur, p)
		if err != nil {
			return err
		}
		s.commit(next)
		s.appendActivity(key, "project", "opened "+p.Path)
		return nil

	case *action.CloseProject:
		proj, ok := cur.Projects[p.Path]
		if !ok {
			return errors.New(errors.ErrCodeUnknownProject, "project is not open").
				WithDetail("path", p.Path)
		}
		next, err := reduceCloseProject(cur, p)
		if err != nil {
			return err
		}
		// No session may outlive its worktree, and no stale completion may
		// finalize against a closed project.
		for _, wt := range proj.Worktrees {
			s.registry.KillAllForWorktree(wt.ID)
			if s.scheduler != nil {
				s.scheduler.Cancel(wt.ID)
			}
		}
		s.commit(next)
		s.appendActivity(proj.Key, "project", "closed "+p.Path)
		return nil

	case *action.SetActiveView:
		return s.reduceAndCommit(reduceSetActiveView(cur, p))

	case *action.SetActiveWorktree:
		return s.reduceAndCommit(reduceSetActiveWorktree(cur, p))

	case *action.SetEnvSync:
		return s.reduceAndCommit(reduceSetEnvSync(cur, p))

	case *action.SetService:
		return s.reduceAndCommit(reduceSetService(cur, p))

	// --- Explorer ---

	case *action.ExploreDir:
		if err := s.prepareListing(cur, p.WorktreeID, p.Path, false, &p.Entries, &p.Loaded); err != nil {
			return err
		}
		return s.reduceAndCommit(reduceExploreDir(cur, p))

	case *action.ExpandDirectory:
		if err := s.prepareListing(cur, p.WorktreeID, p.Path, false, &p.Entries, &p.Loaded); err != nil {
			return err
		}
		return s.reduceAndCommit(reduceExpandDirectory(cur, p))

	case *action.CollapseDirectory:
		return s.reduceAndCommit(reduceCollapseDirectory(cur, p))

	case *action.RefreshDirectory:
		if err := s.prepareListing(cur, p.WorktreeID, p.Path, true, &p.Entries, &p.Loaded); err != nil {
			return err
		}
		return s.reduceAndCommit(reduceRefreshDirectory(cur, p))

	case *action.OpenFile:
		return s.reduceAndCommit(reduceOpenFile(cur, p))

	case *action.PinTab:
		return s.reduceAndCommit(reducePinTab(cur, p))

	case *action.CloseTab:
		return s.reduceAndCommit(reduceCloseTab(cur, p))

	case *action.SetTabScroll:
		return s.reduceAndCommit(reduceSetTabScroll(cur, p))

	// --- Records (no state transition) ---

	case *action.AddFileComment:
		key, err := projectKeyFor(cur, p.WorktreeID)
		if err != nil {
			return err
		}
		if s.persist == nil {
			return nil
		}
		// Written synchronously before the dispatch is acknowledged.
		return s.persist.AppendComment(context.Background(), persist.Comment{
			ProjectKey: key,
			Path:       p.Path,
			Content:    p.Content,
		})

	case *action.LogActivity:
		key, err := projectKeyFor(cur, p.WorktreeID)
		if err != nil {
			return err
		}
		if s.persist == nil {
			return nil
		}
		return s.persist.AppendActivity(context.Background(), persist.Activity{
			ProjectKey: key,
			Scope:      p.Scope,
			Content:    p.Content,
		})

	// --- Terminal ---

	case *action.SpawnTerminal:
		next, dir, err := reduceSpawnTerminal(cur, p)
		if err != nil {
			return err
		}
		s.commit(next)
		// Hand off to the registry without blocking the mutation queue;
		// the outcome re-enters as an ordinary follow-up action.
		go s.spawnTerminal(p.WorktreeID, dir, p.Cols, p.Rows)
		return nil

	case *action.TerminalSpawned:
		return s.reduceAndCommit(reduceTerminalSpawned(cur, p))

	case *action.TerminalSpawnFailed:
		return s.reduceAndCommit(reduceTerminalSpawnFailed(cur, p))

	case *action.TerminalOutput:
		// Output is not part of the state tree; it is re-broadcast as its
		// own update type. A chunk racing a kill is dropped.
		if !s.registry.Has(p.SessionID) {
			return nil
		}
		s.broadcast(Update{Type: UpdateTerminalOutput, Output: p})
		return nil

	case *action.TerminalExited:
		next, changed := reduceTerminalExited(cur, p)
		if changed {
			s.commit(next)
		}
		return nil

	case *action.WriteTerminal:
		return s.registry.Write(p.SessionID, []byte(p.Data))

	case *action.ResizeTerminal:
		if err := s.registry.Resize(p.SessionID, p.Cols, p.Rows); err != nil {
			return err
		}
		next, changed := reduceResizeTerminal(cur, p)
		if changed {
			s.commit(next)
		}
		return nil

	case *action.KillTerminal:
		// Registry entry removal and the state clearing below form one
		// logical step; both are idempotent.
		s.registry.Kill(p.SessionID)
		next, changed := reduceKillTerminal(cur, p)
		if changed {
			s.commit(next)
		}
		return nil

	// --- Chat ---

	case *action.SubmitChatMessage:
		if s.scheduler == nil {
			return errors.New(errors.ErrCodeCompletionFailure, "no completion backend configured")
		}
		// Rejected before any mutation: the in-flight policy is reject,
		// not queue.
		if s.scheduler.InFlight(p.WorktreeID) {
			return errors.CompletionInFlight(p.WorktreeID)
		}
		next, history, err := reduceSubmitChatMessage(cur, p)
		if err != nil {
			return err
		}
		s.commit(next)
		if err := s.scheduler.Run(p.WorktreeID, history); err != nil {
			return err
		}
		return nil

	case *action.UpdateChatMessage:
		next, changed := reduceUpdateChatMessage(cur, p)
		if changed {
			s.commit(next)
		}
		return nil

	case *action.CompleteChatMessage:
		next, changed := reduceCompleteChatMessage(cur, p)
		if changed {
			s.commit(next)
		}
		return nil

	case *action.FailChatMessage:
		next, changed := reduceFailChatMessage(cur, p)
		if changed {
			s.commit(next)
		}
		return nil

	case *action.ClearChat:
		// Cancel the stream task itself, not just our interest in it, so a
		// stale completion cannot finalize against the cleared history.
		if s.scheduler != nil {
			s.scheduler.Cancel(p.WorktreeID)
		}
		return s.reduceAndCommit(reduceClearChat(cur, p))

	default:
		return errors.InvalidAction(string(act.Kind), "no handler registered")
	}
}

// reduceAndCommit commits the reducer result unless it failed.
func (s *Store) reduceAndCommit(next *state.App, err error) error {
	if err != nil {
		return err
	}
	s.commit(next)
	return nil
}

// spawnTerminal runs on its own goroutine; registry spawn outcome re-enters
// the queue as a follow-up action.
func (s *Store) spawnTerminal(worktreeID, dir string, cols, rows int) {
	id, err := s.registry.Spawn(worktreeID, dir, cols, rows)
	if err != nil {
		s.logger.WithField("worktreeId", worktreeID).WithError(err).Error("Terminal spawn failed")
		s.enqueue(action.New(action.KindTerminalSpawnFailed, &action.TerminalSpawnFailed{
			WorktreeID: worktreeID,
			Error:      err.Error(),
		}))
		return
	}
	s.enqueue(action.New(action.KindTerminalSpawned, &action.TerminalSpawned{
		WorktreeID: worktreeID,
		SessionID:  id,
	}))
}

// prepareListing performs the disk read that feeds the explorer reducers.
// Unless force is set, a cached listing suppresses the read; the cache is
// an optimization invalidated only by explicit refresh.
func (s *Store) prepareListing(cur *state.App, worktreeID, path string, force bool, entries *[]action.DirEntry, loaded *bool) error {
	wt := cur.FindWorktree(worktreeID)
	if wt == nil {
		return errors.UnknownWorktree(worktreeID)
	}
	if !force {
		if _, ok := wt.Explorer.DirCache[path]; ok {
			return nil
		}
	}
	listed, err := s.listDir(path)
	if err != nil {
		return errors.Wrap(err, errors.ErrCodeInvalidInput, "failed to list directory").
			WithDetail("path", path)
	}
	out := make([]action.DirEntry, len(listed))
	for i, e := range listed {
		out[i] = action.DirEntry{Name: e.Name, IsDir: e.IsDir}
	}
	*entries = out
	*loaded = true
	return nil
}

// appendActivity best-effort records an activity entry; failures are
// logged, never surfaced, since memory is authoritative.
func (s *Store) appendActivity(projectKey, scope, content string) {
	if s.persist == nil {
		return
	}
	err := s.persist.AppendActivity(context.Background(), persist.Activity{
		ProjectKey: projectKey,
		Scope:      scope,
		Content:    content,
	})
	if err != nil {
		s.logger.WithError(err).Warn("Activity write failed")
	}
}

// projectKeyFor resolves the project key owning a worktree.
func projectKeyFor(cur *state.App, worktreeID string) (string, error) {
	proj := cur.ProjectOf(worktreeID)
	if proj == nil {
		return "", errors.UnknownWorktree(worktreeID)
	}
	return proj.Key, nil
}

// resolveWorktree fills empty worktree ids with the active worktree of the
// active project. Actions that need a worktree fail cleanly when none is
// resolvable.
func resolveWorktree(cur *state.App, act action.Action) error {
	target := worktreeField(act)
	if target == nil || *target != "" {
		return nil
	}
	wt := cur.CurrentWorktree()
	if wt == nil {
		return errors.UnknownWorktree("(active)")
	}
	*target = wt.ID
	return nil
}

// worktreeField returns the payload's resolvable worktree id field, or nil
// for kinds that don't carry one.
func worktreeField(act action.Action) *string {
	switch p := act.Payload.(type) {
	case *action.ExploreDir:
		return &p.WorktreeID
	case *action.ExpandDirectory:
		return &p.WorktreeID
	case *action.CollapseDirectory:
		return &p.WorktreeID
	case *action.RefreshDirectory:
		return &p.WorktreeID
	case *action.OpenFile:
		return &p.WorktreeID
	case *action.PinTab:
		return &p.WorktreeID
	case *action.CloseTab:
		return &p.WorktreeID
	case *action.SetTabScroll:
		return &p.WorktreeID
	case *action.AddFileComment:
		return &p.WorktreeID
	case *action.LogActivity:
		return &p.WorktreeID
	case *action.SpawnTerminal:
		return &p.WorktreeID
	case *action.SubmitChatMessage:
		return &p.WorktreeID
	case *action.UpdateChatMessage:
		return &p.WorktreeID
	case *action.CompleteChatMessage:
		return &p.WorktreeID
	case *action.FailChatMessage:
		return &p.WorktreeID
	case *action.ClearChat:
		return &p.WorktreeID
	}
	return nil
}
