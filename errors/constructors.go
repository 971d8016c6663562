package errors

import (
	"fmt"
)

// ConfigNotFound creates a configuration not found error
func ConfigNotFound(path string) *StudioError {
	return New(ErrCodeConfigNotFound, fmt.Sprintf("configuration file not found: %s", path)).
		WithDetail("path", path)
}

// ConfigInvalid creates an invalid configuration error
func ConfigInvalid(reason string) *StudioError {
	return New(ErrCodeConfigInvalid, fmt.Sprintf("invalid configuration: %s", reason))
}

// InvalidAction creates an error for a malformed or unknown action envelope.
// The state tree is guaranteed untouched when this is returned.
func InvalidAction(kind string, reason string) *StudioError {
	return New(ErrCodeInvalidAction, fmt.Sprintf("invalid action '%s': %s", kind, reason)).
		WithDetail("action", kind)
}

// UnknownSession creates an error for an operation against a session id
// that is not present in the registry
func UnknownSession(id string) *StudioError {
	return New(ErrCodeUnknownSession, fmt.Sprintf("no live session with id '%s'", id)).
		WithDetail("sessionId", id)
}

// UnknownWorktree creates an error for an operation against a worktree id
// that does not exist in the state tree
func UnknownWorktree(id string) *StudioError {
	return New(ErrCodeUnknownWorktree, fmt.Sprintf("no worktree with id '%s'", id)).
		WithDetail("worktreeId", id)
}

// SpawnFailure wraps an OS-level process creation failure
func SpawnFailure(worktreeID string, err error) *StudioError {
	return Wrap(err, ErrCodeSpawnFailure, "failed to spawn terminal session").
		WithDetail("worktreeId", worktreeID)
}

// PersistenceFailure wraps a durable write failure. In-memory state stays
// authoritative; callers log this rather than rolling back.
func PersistenceFailure(op string, err error) *StudioError {
	return Wrap(err, ErrCodePersistenceFailure, fmt.Sprintf("durable write failed: %s", op)).
		WithDetail("operation", op)
}

// CompletionInFlight creates an error for a chat submission while a
// completion is already streaming for the same worktree
func CompletionInFlight(worktreeID string) *StudioError {
	return New(ErrCodeCompletionInFlight,
		fmt.Sprintf("a completion is already streaming for worktree '%s'", worktreeID)).
		WithDetail("worktreeId", worktreeID)
}
