// Package effects runs long-lived asynchronous work (chat completion
// streaming) and translates its progress into ordinary actions re-entering
// the dispatch store.
package effects

import (
	"context"
	"sync"

	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"

	"github.com/grovetools/studio/errors"
	"github.com/grovetools/studio/internal/action"
	"github.com/grovetools/studio/internal/state"
)

// DispatchFunc feeds follow-up actions back into the store.
type DispatchFunc func(action.Action)

// CompletionClient is the streaming contract of the completion backend.
// Deltas arrive on the first channel; the second carries at most one error
// and both close when the stream ends.
type CompletionClient interface {
	StreamCompletion(ctx context.Context, messages []state.ChatMessage) (<-chan string, <-chan error)
}

// Scheduler owns in-flight completions, at most one per worktree chat.
// Submitting while one is in flight is rejected with COMPLETION_IN_FLIGHT
// rather than queued; the caller resubmits once the stream settles.
type Scheduler struct {
	mu       sync.Mutex
	inflight map[string]context.CancelFunc // by worktree id
	client   CompletionClient
	dispatch DispatchFunc
	logger   *logrus.Entry
	group    errgroup.Group
	closed   bool
}

// NewScheduler creates a Scheduler.
func NewScheduler(client CompletionClient, dispatch DispatchFunc, logger *logrus.Entry) *Scheduler {
	return &Scheduler{
		inflight: make(map[string]context.CancelFunc),
		client:   client,
		dispatch: dispatch,
		logger:   logger,
	}
}

// Run starts streaming a completion for the worktree's chat. The history
// must already contain the user's new message and the streaming assistant
// placeholder appended by the reducer.
func (s *Scheduler) Run(worktreeID string, history []state.ChatMessage) error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return errors.New(errors.ErrCodeStoreClosed, "effect scheduler is shut down")
	}
	if _, ok := s.inflight[worktreeID]; ok {
		s.mu.Unlock()
		return errors.CompletionInFlight(worktreeID)
	}
	ctx, cancel := context.WithCancel(context.Background())
	s.inflight[worktreeID] = cancel
	s.mu.Unlock()

	s.group.Go(func() error {
		defer s.finish(worktreeID, cancel)
		s.stream(ctx, worktreeID, history)
		return nil
	})
	return nil
}

func (s *Scheduler) stream(ctx context.Context, worktreeID string, history []state.ChatMessage) {
	contentCh, errCh := s.client.StreamCompletion(ctx, history)

	for delta := range contentCh {
		if ctx.Err() != nil {
			// Cancelled mid-stream: the conversation may be gone. Nothing
			// more may be dispatched for it.
			return
		}
		s.dispatch(action.New(action.KindUpdateChatMessage, &action.UpdateChatMessage{
			WorktreeID: worktreeID,
			Delta:      delta,
		}))
	}

	if ctx.Err() != nil {
		return
	}

	if err, ok := <-errCh; ok && err != nil {
		s.logger.WithField("worktreeId", worktreeID).WithError(err).Warn("Completion stream failed")
		s.dispatch(action.New(action.KindFailChatMessage, &action.FailChatMessage{
			WorktreeID: worktreeID,
			Error:      err.Error(),
		}))
		return
	}

	s.dispatch(action.New(action.KindCompleteChatMessage, &action.CompleteChatMessage{
		WorktreeID: worktreeID,
	}))
}

func (s *Scheduler) finish(worktreeID string, cancel context.CancelFunc) {
	cancel()
	s.mu.Lock()
	// Only clear if the cancel func is still ours; a Cancel call already
	// removed it otherwise.
	if _, ok := s.inflight[worktreeID]; ok {
		delete(s.inflight, worktreeID)
	}
	s.mu.Unlock()
}

// Cancel aborts the in-flight completion for the worktree, if any. The
// underlying stream task's context is cancelled, not merely abandoned, so a
// stale completion can never finalize against a cleared conversation.
func (s *Scheduler) Cancel(worktreeID string) {
	s.mu.Lock()
	cancel, ok := s.inflight[worktreeID]
	if ok {
		delete(s.inflight, worktreeID)
	}
	s.mu.Unlock()
	if ok {
		cancel()
	}
}

// InFlight reports whether a completion is currently streaming for the
// worktree.
func (s *Scheduler) InFlight(worktreeID string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.inflight[worktreeID]
	return ok
}

// Close cancels every in-flight completion and waits for the stream tasks
// to drain.
func (s *Scheduler) Close() {
	s.mu.Lock()
	s.closed = true
	cancels := make([]context.CancelFunc, 0, len(s.inflight))
	for _, cancel := range s.inflight {
		cancels = append(cancels, cancel)
	}
	s.inflight = make(map[string]context.CancelFunc)
	s.mu.Unlock()

	for _, cancel := range cancels {
		cancel()
	}
	_ = s.group.Wait()
}
