// Package store is the dispatch core: it owns the canonical state tree,
// applies one action at a time through pure reducers, persists durable
// records, and broadcasts the committed snapshot to every subscriber.
//
// Dispatch calls are linearized on a single mutation goroutine. However
// many callers submit concurrently, no two actions are ever applied against
// the same base state; that is the invariant that prevents lost updates.
package store

import (
	"context"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/grovetools/studio/errors"
	"github.com/grovetools/studio/internal/action"
	"github.com/grovetools/studio/internal/effects"
	"github.com/grovetools/studio/internal/persist"
	"github.com/grovetools/studio/internal/registry"
	"github.com/grovetools/studio/internal/state"
)

// UpdateType discriminates broadcast updates.
type UpdateType string

const (
	// UpdateState carries the full committed snapshot.
	UpdateState UpdateType = "state"
	// UpdateTerminalOutput carries a coalesced chunk of pty output.
	UpdateTerminalOutput UpdateType = "terminal_output"
	// UpdateConfigReload notifies clients that a config file changed.
	UpdateConfigReload UpdateType = "config_reload"
)

// Update is one broadcast event. Every committed transition produces an
// UpdateState with the whole snapshot (not a diff); terminal output and
// config reloads ride the same channel as separate types.
type Update struct {
	Type     UpdateType             `json:"type"`
	Snapshot *state.App             `json:"snapshot,omitempty"`
	Output   *action.TerminalOutput `json:"output,omitempty"`
	File     string                 `json:"file,omitempty"`
}

// ListDirFunc lists a directory for the explorer cache. Injectable so
// tests can count disk reads.
type ListDirFunc func(path string) ([]state.DirEntry, error)

// Options configures a Store.
type Options struct {
	// Persist is the durable layer; nil disables persistence entirely.
	Persist *persist.Store
	// Client streams chat completions; nil disables the effect scheduler
	// (SubmitChatMessage then fails the message immediately).
	Client effects.CompletionClient
	// ListDir overrides the default ignore-aware directory lister.
	ListDir ListDirFunc
	// DiscoverWorktrees overrides the default git-based checkout discovery
	// used by OpenProject.
	DiscoverWorktrees DiscoverFunc
	// IgnorePatterns for the default lister.
	IgnorePatterns []string
	// Shell for spawned terminal sessions.
	Shell string
	// SnapshotInterval throttles best-effort snapshot writes. Zero writes
	// after every commit.
	SnapshotInterval time.Duration
	Logger           *logrus.Entry
}

type dispatchReq struct {
	act   action.Action
	reply chan error
}

// Store is the central state engine.
type Store struct {
	logger  *logrus.Entry
	persist *persist.Store

	registry  *registry.Registry
	scheduler *effects.Scheduler
	listDir   ListDirFunc
	discover  DiscoverFunc

	snapshotInterval time.Duration
	lastSnapshot     time.Time

	reqs chan dispatchReq
	done chan struct{}
	wg   sync.WaitGroup

	// current is written only by the mutation goroutine.
	stateMu sync.RWMutex
	current *state.App

	subMu       sync.Mutex
	subscribers map[chan Update]struct{}
}

// New creates and starts a Store. If a persisted snapshot exists it is
// loaded as the initial state; live session ids recorded in it are cleared
// since no process survives a restart.
func New(opts Options) (*Store, error) {
	logger := opts.Logger
	if logger == nil {
		logger = logrus.NewEntry(logrus.New())
	}

	s := &Store{
		logger:           logger,
		persist:          opts.Persist,
		snapshotInterval: opts.SnapshotInterval,
		reqs:             make(chan dispatchReq, 256),
		done:             make(chan struct{}),
		current:          state.NewApp(),
		subscribers:      make(map[chan Update]struct{}),
	}

	s.listDir = opts.ListDir
	if s.listDir == nil {
		s.listDir = NewDirLister(opts.IgnorePatterns)
	}
	s.discover = opts.DiscoverWorktrees
	if s.discover == nil {
		s.discover = DiscoverGitWorktrees
	}

	if opts.Persist != nil {
		snap, err := opts.Persist.LoadSnapshot(context.Background())
		if err != nil {
			logger.WithError(err).Warn("Failed to load snapshot, starting fresh")
		} else if snap != nil {
			scrubSessions(snap)
			s.current = snap
			logger.WithField("projects", len(snap.Projects)).Info("Recovered state from snapshot")
		}
	}

	s.registry = registry.New(s.enqueue, opts.Shell, logger)
	if opts.Client != nil {
		s.scheduler = effects.NewScheduler(opts.Client, s.enqueue, logger)
	}

	s.wg.Add(1)
	go s.run()
	return s, nil
}

// scrubSessions drops live-session references from a recovered snapshot.
func scrubSessions(app *state.App) {
	for _, p := range app.Projects {
		for _, wt := range p.Worktrees {
			if wt.Terminal != nil && wt.Terminal.SessionID != "" {
				wt.Terminal.SessionID = ""
				wt.Terminal.Status = state.TerminalIdle
			}
		}
	}
}

// Dispatch submits an action and blocks until it is applied (or rejected).
func (s *Store) Dispatch(act action.Action) error {
	reply := make(chan error, 1)
	select {
	case <-s.done:
		return errors.New(errors.ErrCodeStoreClosed, "store is shut down")
	case s.reqs <- dispatchReq{act: act, reply: reply}:
	}
	select {
	case err := <-reply:
		return err
	case <-s.done:
		return errors.New(errors.ErrCodeStoreClosed, "store is shut down")
	}
}

// DispatchEnvelope decodes a wire envelope and dispatches it.
func (s *Store) DispatchEnvelope(env action.Envelope) error {
	act, err := action.Decode(env)
	if err != nil {
		return err
	}
	return s.Dispatch(act)
}

// enqueue submits a follow-up action from a background producer (terminal
// pump, completion stream) without waiting for the result. The reply
// channel is buffered so the mutation loop never blocks on it.
func (s *Store) enqueue(act action.Action) {
	reply := make(chan error, 1)
	select {
	case <-s.done:
	case s.reqs <- dispatchReq{act: act, reply: reply}:
	}
}

// GetState returns the latest committed snapshot without enqueuing an
// action. The returned tree is a deep copy; callers may keep it.
func (s *Store) GetState() *state.App {
	s.stateMu.RLock()
	defer s.stateMu.RUnlock()
	return s.current.Clone()
}

// Registry exposes the session registry (read-side helpers for tests and
// the server).
func (s *Store) Registry() *registry.Registry {
	return s.registry
}

// Subscribe registers a subscriber channel. Every committed transition
// delivers an UpdateState with the full snapshot; slow subscribers drop
// updates rather than stalling the store.
func (s *Store) Subscribe() chan Update {
	s.subMu.Lock()
	defer s.subMu.Unlock()
	ch := make(chan Update, 100)
	s.subscribers[ch] = struct{}{}
	return ch
}

// Unsubscribe removes a subscription and closes its channel.
func (s *Store) Unsubscribe(ch chan Update) {
	s.subMu.Lock()
	defer s.subMu.Unlock()
	if _, ok := s.subscribers[ch]; ok {
		delete(s.subscribers, ch)
		close(ch)
	}
}

func (s *Store) broadcast(u Update) {
	s.subMu.Lock()
	defer s.subMu.Unlock()
	for ch := range s.subscribers {
		select {
		case ch <- u:
		default:
			// Non-blocking send to prevent slow clients from stalling dispatch
		}
	}
}

// BroadcastConfigReload notifies subscribers that a config file changed.
// Used by the daemon's config watcher.
func (s *Store) BroadcastConfigReload(file string) {
	s.broadcast(Update{Type: UpdateConfigReload, File: file})
}

// Close shuts the store down: no further dispatches are accepted, every
// live session is killed, in-flight completions are cancelled, and a final
// snapshot is written.
func (s *Store) Close() {
	select {
	case <-s.done:
		return
	default:
	}
	close(s.done)
	s.wg.Wait()

	if s.scheduler != nil {
		s.scheduler.Close()
	}
	s.registry.Close()

	if s.persist != nil {
		if err := s.persist.SaveSnapshot(context.Background(), s.GetState()); err != nil {
			s.logger.WithError(err).Warn("Final snapshot failed")
		}
	}

	s.subMu.Lock()
	for ch := range s.subscribers {
		close(ch)
	}
	s.subscribers = make(map[chan Update]struct{})
	s.subMu.Unlock()
}

func (s *Store) run() {
	defer s.wg.Done()
	for {
		select {
		case <-s.done:
			return
		case req := <-s.reqs:
			req.reply <- s.apply(req.act)
		}
	}
}

// commit installs the new tree and broadcasts it. The previous tree is
// never touched again.
func (s *Store) commit(next *state.App) {
	s.stateMu.Lock()
	s.current = next
	s.stateMu.Unlock()

	snap := next.Clone()
	s.broadcast(Update{Type: UpdateState, Snapshot: snap})
	s.maybeSnapshot(snap)
}

// maybeSnapshot writes the recovery snapshot asynchronously and at most
// once per interval. Memory stays authoritative; failures are logged only.
func (s *Store) maybeSnapshot(snap *state.App) {
	if s.persist == nil {
		return
	}
	now := time.Now()
	if s.snapshotInterval > 0 && now.Sub(s.lastSnapshot) < s.snapshotInterval {
		return
	}
	s.lastSnapshot = now
	go func() {
		if err := s.persist.SaveSnapshot(context.Background(), snap); err != nil {
			s.logger.WithError(err).Warn("Snapshot write failed")
		}
	}()
}
