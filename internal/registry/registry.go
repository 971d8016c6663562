// Package registry owns the live pseudo-terminal sessions.
//
// State holds only session ids; the OS handles live here, each owned by
// exactly one entry. Output is pumped back into the dispatch store as
// TerminalOutput actions, coalesced so a bursty process cannot flood the
// mutation queue.
package registry

import (
	"os"
	"os/exec"
	"sync"

	"github.com/creack/pty"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/grovetools/studio/errors"
	"github.com/grovetools/studio/internal/action"
)

// DispatchFunc feeds follow-up actions back into the store.
type DispatchFunc func(action.Action)

// session is one live pty-backed process. Fields are set once at spawn and
// never mutated; liveness is tracked by map membership.
type session struct {
	id         string
	worktreeID string
	cmd        *exec.Cmd
	ptmx       *os.File
}

// Registry owns all live sessions, keyed by session id.
type Registry struct {
	mu       sync.Mutex
	sessions map[string]*session
	dispatch DispatchFunc
	shell    string
	logger   *logrus.Entry
	wg       sync.WaitGroup
}

// New creates a Registry. shell may be empty, in which case $SHELL and then
// /bin/sh are used.
func New(dispatch DispatchFunc, shell string, logger *logrus.Entry) *Registry {
	if shell == "" {
		shell = os.Getenv("SHELL")
	}
	if shell == "" {
		shell = "/bin/sh"
	}
	return &Registry{
		sessions: make(map[string]*session),
		dispatch: dispatch,
		shell:    shell,
		logger:   logger,
	}
}

// Spawn starts a shell attached to a fresh pty and returns the new session
// id. It returns immediately; output arrives asynchronously as
// TerminalOutput actions, and process exit as TerminalExited.
func (r *Registry) Spawn(worktreeID, dir string, cols, rows int) (string, error) {
	cmd := exec.Command(r.shell)
	if dir != "" {
		cmd.Dir = dir
	}
	cmd.Env = append(os.Environ(), "TERM=xterm-256color")

	ptmx, err := pty.StartWithSize(cmd, &pty.Winsize{
		Rows: uint16(rows),
		Cols: uint16(cols),
	})
	if err != nil {
		return "", errors.SpawnFailure(worktreeID, err)
	}

	s := &session{
		id:         uuid.NewString(),
		worktreeID: worktreeID,
		cmd:        cmd,
		ptmx:       ptmx,
	}

	r.mu.Lock()
	r.sessions[s.id] = s
	r.mu.Unlock()

	r.logger.WithFields(logrus.Fields{
		"sessionId":  s.id,
		"worktreeId": worktreeID,
		"pid":        cmd.Process.Pid,
	}).Info("Spawned terminal session")

	r.wg.Add(2)
	go r.pump(s)
	go r.monitor(s)

	return s.id, nil
}

// Write sends bytes to the session's stdin.
func (r *Registry) Write(id string, data []byte) error {
	s, ok := r.lookup(id)
	if !ok {
		return errors.UnknownSession(id)
	}
	if _, err := s.ptmx.Write(data); err != nil {
		return errors.Wrap(err, errors.ErrCodeInternal, "pty write failed").
			WithDetail("sessionId", id)
	}
	return nil
}

// Resize changes the session's pty window size.
func (r *Registry) Resize(id string, cols, rows int) error {
	s, ok := r.lookup(id)
	if !ok {
		return errors.UnknownSession(id)
	}
	if err := pty.Setsize(s.ptmx, &pty.Winsize{Rows: uint16(rows), Cols: uint16(cols)}); err != nil {
		return errors.Wrap(err, errors.ErrCodeInternal, "pty resize failed").
			WithDetail("sessionId", id)
	}
	return nil
}

// Kill terminates the session and releases its entry. Killing an unknown or
// already-dead session is a no-op. The entry is removed before the process
// is signaled, so a concurrent Write/Resize on the same id fails cleanly
// with UNKNOWN_SESSION from that point on.
func (r *Registry) Kill(id string) {
	r.mu.Lock()
	s, ok := r.sessions[id]
	if ok {
		delete(r.sessions, id)
	}
	r.mu.Unlock()
	if !ok {
		return
	}
	r.terminate(s)
	r.logger.WithField("sessionId", id).Info("Killed terminal session")
}

// KillAllForWorktree kills every session owned by the given worktree.
func (r *Registry) KillAllForWorktree(worktreeID string) {
	for _, id := range r.idsForWorktree(worktreeID) {
		r.Kill(id)
	}
}

// KillAll terminates every live session. Called on shutdown so no process
// outlives its owning worktree.
func (r *Registry) KillAll() {
	r.mu.Lock()
	ids := make([]string, 0, len(r.sessions))
	for id := range r.sessions {
		ids = append(ids, id)
	}
	r.mu.Unlock()
	for _, id := range ids {
		r.Kill(id)
	}
}

// Close kills every session and waits for the pump and monitor goroutines
// to drain.
func (r *Registry) Close() {
	r.KillAll()
	r.wg.Wait()
}

// Has reports whether a live session with the given id exists.
func (r *Registry) Has(id string) bool {
	_, ok := r.lookup(id)
	return ok
}

// Count returns the number of live sessions.
func (r *Registry) Count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.sessions)
}

func (r *Registry) lookup(id string) (*session, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	s, ok := r.sessions[id]
	return s, ok
}

func (r *Registry) idsForWorktree(worktreeID string) []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	var ids []string
	for id, s := range r.sessions {
		if s.worktreeID == worktreeID {
			ids = append(ids, id)
		}
	}
	return ids
}

// remove deletes the entry if still present, returning whether it was.
func (r *Registry) remove(id string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.sessions[id]; !ok {
		return false
	}
	delete(r.sessions, id)
	return true
}

func (r *Registry) terminate(s *session) {
	if s.cmd.Process != nil {
		_ = s.cmd.Process.Kill()
	}
	_ = s.ptmx.Close()
}

// monitor reaps the process and, if the session was not explicitly killed,
// removes the entry and reports the exit. Removal happens before the
// TerminalExited dispatch so the reducer clearing session_id and the
// registry dropping the handle form one logical step with no orphan window.
func (r *Registry) monitor(s *session) {
	defer r.wg.Done()
	err := s.cmd.Wait()

	if !r.remove(s.id) {
		// Entry already gone: Kill or KillAll beat us here.
		return
	}
	_ = s.ptmx.Close()

	r.logger.WithFields(logrus.Fields{
		"sessionId": s.id,
		"err":       err,
	}).Debug("Terminal session exited")

	r.dispatch(action.New(action.KindTerminalExited, &action.TerminalExited{
		SessionID: s.id,
	}))
}
