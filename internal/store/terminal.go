package store

import (
	"github.com/grovetools/studio/errors"
	"github.com/grovetools/studio/internal/action"
	"github.com/grovetools/studio/internal/state"
)

// reduceSpawnTerminal moves the worktree's terminal to pending and returns
// the directory the session should start in. A terminal that is already
// pending or running is rejected rather than replaced.
func reduceSpawnTerminal(cur *state.App, p *action.SpawnTerminal) (*state.App, string, error) {
	next := cur.Clone()
	wt := next.FindWorktree(p.WorktreeID)
	if wt == nil {
		return nil, "", errors.UnknownWorktree(p.WorktreeID)
	}
	switch wt.Terminal.Status {
	case state.TerminalPending, state.TerminalRunning:
		return nil, "", errors.InvalidAction(string(action.KindSpawnTerminal), "terminal already active").
			WithDetail("worktreeId", p.WorktreeID)
	}
	wt.Terminal.Status = state.TerminalPending
	wt.Terminal.Cols = p.Cols
	wt.Terminal.Rows = p.Rows
	wt.Terminal.LastError = ""
	return next, wt.Path, nil
}

func reduceTerminalSpawned(cur *state.App, p *action.TerminalSpawned) (*state.App, error) {
	next := cur.Clone()
	wt := next.FindWorktree(p.WorktreeID)
	if wt == nil {
		return nil, errors.UnknownWorktree(p.WorktreeID)
	}
	wt.Terminal.SessionID = p.SessionID
	wt.Terminal.Status = state.TerminalRunning
	return next, nil
}

func reduceTerminalSpawnFailed(cur *state.App, p *action.TerminalSpawnFailed) (*state.App, error) {
	next := cur.Clone()
	wt := next.FindWorktree(p.WorktreeID)
	if wt == nil {
		return nil, errors.UnknownWorktree(p.WorktreeID)
	}
	wt.Terminal.SessionID = ""
	wt.Terminal.Status = state.TerminalError
	wt.Terminal.LastError = p.Error
	return next, nil
}

// terminalBySession finds the worktree terminal referencing a session id.
func terminalBySession(next *state.App, sessionID string) *state.Terminal {
	for _, proj := range next.Projects {
		for _, wt := range proj.Worktrees {
			if wt.Terminal != nil && wt.Terminal.SessionID == sessionID {
				return wt.Terminal
			}
		}
	}
	return nil
}

// reduceTerminalExited clears the terminal referencing the exited session.
// The session may already be gone from the tree (kill raced exit); that is
// a no-op, reported via the changed flag.
func reduceTerminalExited(cur *state.App, p *action.TerminalExited) (*state.App, bool) {
	next := cur.Clone()
	term := terminalBySession(next, p.SessionID)
	if term == nil {
		return nil, false
	}
	term.SessionID = ""
	term.Status = state.TerminalIdle
	return next, true
}

func reduceResizeTerminal(cur *state.App, p *action.ResizeTerminal) (*state.App, bool) {
	next := cur.Clone()
	term := terminalBySession(next, p.SessionID)
	if term == nil {
		return nil, false
	}
	term.Cols = p.Cols
	term.Rows = p.Rows
	return next, true
}

func reduceKillTerminal(cur *state.App, p *action.KillTerminal) (*state.App, bool) {
	next := cur.Clone()
	term := terminalBySession(next, p.SessionID)
	if term == nil {
		return nil, false
	}
	term.SessionID = ""
	term.Status = state.TerminalIdle
	return next, true
}
