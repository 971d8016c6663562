package store

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/grovetools/studio/errors"
	"github.com/grovetools/studio/internal/action"
	"github.com/grovetools/studio/internal/persist"
	"github.com/grovetools/studio/internal/state"
)

func newTestStore(t *testing.T, opts Options) *Store {
	t.Helper()
	if opts.Shell == "" {
		opts.Shell = "/bin/sh"
	}
	if opts.ListDir == nil {
		opts.ListDir = func(path string) ([]state.DirEntry, error) {
			return []state.DirEntry{{Name: "README.md"}}, nil
		}
	}
	s, err := New(opts)
	require.NoError(t, err)
	t.Cleanup(s.Close)
	return s
}

func openProject(t *testing.T, s *Store) (string, string) {
	t.Helper()
	dir := t.TempDir()
	require.NoError(t, s.Dispatch(action.New(action.KindOpenProject, &action.OpenProject{Path: dir})))
	proj := s.GetState().Projects[dir]
	require.NotNil(t, proj)
	require.Len(t, proj.Worktrees, 1)
	return dir, proj.Worktrees[0].ID
}

func TestOpenProjectCreatesWorktree(t *testing.T) {
	s := newTestStore(t, Options{})
	dir, wtID := openProject(t, s)

	st := s.GetState()
	proj := st.Projects[dir]
	assert.Equal(t, dir, st.ActiveProject)
	assert.Len(t, proj.Key, 16)
	assert.Equal(t, wtID, proj.ActiveWorktree)
	assert.Equal(t, "main", proj.Worktrees[0].Branch)
	assert.Equal(t, state.TerminalIdle, proj.Worktrees[0].Terminal.Status)
}

func TestOpenProjectIdempotent(t *testing.T) {
	s := newTestStore(t, Options{})
	dir, _ := openProject(t, s)

	require.NoError(t, s.Dispatch(action.New(action.KindOpenFile, &action.OpenFile{Path: "a.go"})))
	require.NoError(t, s.Dispatch(action.New(action.KindOpenProject, &action.OpenProject{Path: dir})))

	proj := s.GetState().Projects[dir]
	require.Len(t, proj.Worktrees, 1)
	assert.Len(t, proj.Worktrees[0].Explorer.OpenTabs, 1, "reopening must not reset worktree state")
}

func TestOpenProjectDiscoversWorktrees(t *testing.T) {
	var discovered string
	s := newTestStore(t, Options{
		DiscoverWorktrees: func(path string) []action.WorktreeRef {
			discovered = path
			return []action.WorktreeRef{
				{Path: path + "-feature", Branch: "feature-x"},
				{Path: path, Branch: "main"},
			}
		},
	})
	dir := t.TempDir()
	require.NoError(t, s.Dispatch(action.New(action.KindOpenProject, &action.OpenProject{Path: dir})))

	proj := s.GetState().Projects[dir]
	require.NotNil(t, proj)
	assert.Equal(t, dir, discovered)
	require.Len(t, proj.Worktrees, 2)
	assert.Equal(t, "feature-x", proj.Worktrees[0].Branch)
	assert.Equal(t, dir+"-feature", proj.Worktrees[0].Path)
	// The checkout at the project path is the active one.
	active := proj.Active()
	require.NotNil(t, active)
	assert.Equal(t, "main", active.Branch)
	assert.Equal(t, dir, active.Path)
}

func TestCloseUnknownProjectRejected(t *testing.T) {
	s := newTestStore(t, Options{})
	err := s.Dispatch(action.New(action.KindCloseProject, &action.CloseProject{Path: "/nope"}))
	assert.Equal(t, errors.ErrCodeUnknownProject, errors.GetCode(err))
}

func TestConcurrentDispatchNoLostUpdates(t *testing.T) {
	s := newTestStore(t, Options{})
	_, wtID := openProject(t, s)

	const n = 50
	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			err := s.Dispatch(action.New(action.KindExpandDirectory, &action.ExpandDirectory{
				Path:       fmt.Sprintf("src/pkg%d", i),
				WorktreeID: wtID,
			}))
			assert.NoError(t, err)
		}(i)
	}
	wg.Wait()

	ex := s.GetState().FindWorktree(wtID).Explorer
	assert.Len(t, ex.ExpandedPaths, n, "every concurrent dispatch must land")
	assert.Len(t, ex.DirCache, n)
}

func TestDirectoryCacheSuppressesRelist(t *testing.T) {
	var mu sync.Mutex
	calls := map[string]int{}
	s := newTestStore(t, Options{
		ListDir: func(path string) ([]state.DirEntry, error) {
			mu.Lock()
			defer mu.Unlock()
			calls[path]++
			return []state.DirEntry{{Name: "main.go"}}, nil
		},
	})
	_, wtID := openProject(t, s)

	expand := func() {
		require.NoError(t, s.Dispatch(action.New(action.KindExpandDirectory, &action.ExpandDirectory{
			Path: "src", WorktreeID: wtID,
		})))
	}
	expand()
	require.NoError(t, s.Dispatch(action.New(action.KindCollapseDirectory, &action.CollapseDirectory{
		Path: "src", WorktreeID: wtID,
	})))
	expand()

	mu.Lock()
	assert.Equal(t, 1, calls["src"], "cached listing must not be re-read on re-expand")
	mu.Unlock()

	require.NoError(t, s.Dispatch(action.New(action.KindRefreshDirectory, &action.RefreshDirectory{
		Path: "src", WorktreeID: wtID,
	})))
	mu.Lock()
	assert.Equal(t, 2, calls["src"], "refresh must bypass the cache")
	mu.Unlock()
}

func TestPreviewTabSemantics(t *testing.T) {
	s := newTestStore(t, Options{})
	_, wtID := openProject(t, s)

	open := func(path string) {
		require.NoError(t, s.Dispatch(action.New(action.KindOpenFile, &action.OpenFile{Path: path, WorktreeID: wtID})))
	}

	open("a.go")
	open("b.go")
	ex := s.GetState().FindWorktree(wtID).Explorer
	require.Len(t, ex.OpenTabs, 1, "preview tab is retargeted, not duplicated")
	assert.Equal(t, "b.go", ex.OpenTabs[0].Path)

	require.NoError(t, s.Dispatch(action.New(action.KindPinTab, &action.PinTab{Path: "b.go", WorktreeID: wtID})))
	open("c.go")

	ex = s.GetState().FindWorktree(wtID).Explorer
	require.Len(t, ex.OpenTabs, 2)
	assert.Equal(t, state.FileTab{Path: "b.go", Pinned: true}, ex.OpenTabs[0])
	assert.Equal(t, "c.go", ex.OpenTabs[1].Path)
	assert.False(t, ex.OpenTabs[1].Pinned)
	assert.Equal(t, "c.go", ex.ActiveTabPath)

	// Re-opening an already-open path focuses it in place.
	open("b.go")
	ex = s.GetState().FindWorktree(wtID).Explorer
	assert.Len(t, ex.OpenTabs, 2)
	assert.Equal(t, "b.go", ex.ActiveTabPath)

	unpinned := 0
	for _, tab := range ex.OpenTabs {
		if !tab.Pinned {
			unpinned++
		}
	}
	assert.LessOrEqual(t, unpinned, 1, "at most one preview tab per worktree")
}

func TestCloseTabSelectsNeighbor(t *testing.T) {
	s := newTestStore(t, Options{})
	_, wtID := openProject(t, s)

	for _, p := range []string{"a.go", "b.go", "c.go"} {
		require.NoError(t, s.Dispatch(action.New(action.KindOpenFile, &action.OpenFile{Path: p, WorktreeID: wtID})))
		require.NoError(t, s.Dispatch(action.New(action.KindPinTab, &action.PinTab{Path: p, WorktreeID: wtID})))
	}

	require.NoError(t, s.Dispatch(action.New(action.KindOpenFile, &action.OpenFile{Path: "b.go", WorktreeID: wtID})))
	require.NoError(t, s.Dispatch(action.New(action.KindCloseTab, &action.CloseTab{Path: "b.go", WorktreeID: wtID})))

	ex := s.GetState().FindWorktree(wtID).Explorer
	require.Len(t, ex.OpenTabs, 2)
	assert.Equal(t, "c.go", ex.ActiveTabPath, "closing the active tab selects the next one")

	require.NoError(t, s.Dispatch(action.New(action.KindCloseTab, &action.CloseTab{Path: "c.go", WorktreeID: wtID})))
	require.NoError(t, s.Dispatch(action.New(action.KindCloseTab, &action.CloseTab{Path: "a.go", WorktreeID: wtID})))
	ex = s.GetState().FindWorktree(wtID).Explorer
	assert.Empty(t, ex.OpenTabs)
	assert.Empty(t, ex.ActiveTabPath)
}

func TestPinUnknownTabIsNoop(t *testing.T) {
	s := newTestStore(t, Options{})
	_, wtID := openProject(t, s)
	err := s.Dispatch(action.New(action.KindPinTab, &action.PinTab{Path: "ghost.go", WorktreeID: wtID}))
	require.NoError(t, err)
	assert.Empty(t, s.GetState().FindWorktree(wtID).Explorer.OpenTabs)
}

func TestUnknownWorktreeRejected(t *testing.T) {
	s := newTestStore(t, Options{})
	openProject(t, s)
	err := s.Dispatch(action.New(action.KindExpandDirectory, &action.ExpandDirectory{
		Path: "src", WorktreeID: "bogus",
	}))
	assert.Equal(t, errors.ErrCodeUnknownWorktree, errors.GetCode(err))
}

func TestEmptyWorktreeResolvesToActive(t *testing.T) {
	s := newTestStore(t, Options{})
	_, wtID := openProject(t, s)

	require.NoError(t, s.Dispatch(action.New(action.KindOpenFile, &action.OpenFile{Path: "a.go"})))
	ex := s.GetState().FindWorktree(wtID).Explorer
	assert.Equal(t, "a.go", ex.ActiveTabPath)
}

func TestNoActiveWorktreeRejected(t *testing.T) {
	s := newTestStore(t, Options{})
	err := s.Dispatch(action.New(action.KindOpenFile, &action.OpenFile{Path: "a.go"}))
	assert.Equal(t, errors.ErrCodeUnknownWorktree, errors.GetCode(err))
}

func waitForTerminal(t *testing.T, s *Store, wtID string, status state.TerminalStatus) *state.Terminal {
	t.Helper()
	var term *state.Terminal
	require.Eventually(t, func() bool {
		term = s.GetState().FindWorktree(wtID).Terminal
		return term.Status == status
	}, 5*time.Second, 10*time.Millisecond, "terminal never reached %s", status)
	return term
}

func TestTerminalLifecycle(t *testing.T) {
	s := newTestStore(t, Options{})
	_, wtID := openProject(t, s)

	require.NoError(t, s.Dispatch(action.New(action.KindSpawnTerminal, &action.SpawnTerminal{
		WorktreeID: wtID, Cols: 80, Rows: 24,
	})))
	term := waitForTerminal(t, s, wtID, state.TerminalRunning)
	require.NotEmpty(t, term.SessionID)
	assert.Equal(t, 1, s.Registry().Count())

	sub := s.Subscribe()
	defer s.Unsubscribe(sub)
	require.NoError(t, s.Dispatch(action.New(action.KindWriteTerminal, &action.WriteTerminal{
		SessionID: term.SessionID, Data: "echo studio-ok\n",
	})))

	deadline := time.After(5 * time.Second)
	var seen string
	for {
		var u Update
		select {
		case u = <-sub:
		case <-deadline:
			t.Fatalf("no terminal output observed, got so far: %q", seen)
		}
		if u.Type == UpdateTerminalOutput {
			seen += u.Output.Data
			if strings.Contains(seen, "studio-ok") {
				break
			}
		}
	}

	require.NoError(t, s.Dispatch(action.New(action.KindKillTerminal, &action.KillTerminal{
		SessionID: term.SessionID,
	})))
	waitForTerminal(t, s, wtID, state.TerminalIdle)
	require.Eventually(t, func() bool { return s.Registry().Count() == 0 }, 5*time.Second, 10*time.Millisecond)

	err := s.Dispatch(action.New(action.KindResizeTerminal, &action.ResizeTerminal{
		SessionID: term.SessionID, Cols: 100, Rows: 30,
	}))
	assert.Equal(t, errors.ErrCodeUnknownSession, errors.GetCode(err))
}

func TestSpawnRejectedWhileActive(t *testing.T) {
	s := newTestStore(t, Options{})
	_, wtID := openProject(t, s)

	require.NoError(t, s.Dispatch(action.New(action.KindSpawnTerminal, &action.SpawnTerminal{
		WorktreeID: wtID, Cols: 80, Rows: 24,
	})))
	err := s.Dispatch(action.New(action.KindSpawnTerminal, &action.SpawnTerminal{
		WorktreeID: wtID, Cols: 80, Rows: 24,
	}))
	assert.Equal(t, errors.ErrCodeInvalidAction, errors.GetCode(err))
}

func TestSessionExitClearsState(t *testing.T) {
	s := newTestStore(t, Options{})
	_, wtID := openProject(t, s)

	require.NoError(t, s.Dispatch(action.New(action.KindSpawnTerminal, &action.SpawnTerminal{
		WorktreeID: wtID, Cols: 80, Rows: 24,
	})))
	term := waitForTerminal(t, s, wtID, state.TerminalRunning)

	require.NoError(t, s.Dispatch(action.New(action.KindWriteTerminal, &action.WriteTerminal{
		SessionID: term.SessionID, Data: "exit\n",
	})))
	waitForTerminal(t, s, wtID, state.TerminalIdle)
	assert.Empty(t, s.GetState().FindWorktree(wtID).Terminal.SessionID)
}

// fakeCompletion is a scripted CompletionClient.
type fakeCompletion struct {
	deltas  []string
	fail    error
	release chan struct{} // when set, the stream blocks until closed
}

func (c *fakeCompletion) StreamCompletion(ctx context.Context, messages []state.ChatMessage) (<-chan string, <-chan error) {
	content := make(chan string)
	errCh := make(chan error, 1)
	go func() {
		defer close(content)
		defer close(errCh)
		if c.release != nil {
			select {
			case <-c.release:
			case <-ctx.Done():
				return
			}
		}
		for _, d := range c.deltas {
			select {
			case content <- d:
			case <-ctx.Done():
				return
			}
		}
		if c.fail != nil {
			errCh <- c.fail
		}
	}()
	return content, errCh
}

func waitForChat(t *testing.T, s *Store, wtID string, ok func(*state.Chat) bool) *state.Chat {
	t.Helper()
	var chat *state.Chat
	require.Eventually(t, func() bool {
		chat = s.GetState().FindWorktree(wtID).Chat
		return ok(chat)
	}, 5*time.Second, 10*time.Millisecond)
	return chat
}

func TestChatSubmitStreamsCompletion(t *testing.T) {
	s := newTestStore(t, Options{Client: &fakeCompletion{deltas: []string{"Hel", "lo"}}})
	_, wtID := openProject(t, s)

	require.NoError(t, s.Dispatch(action.New(action.KindSubmitChatMessage, &action.SubmitChatMessage{
		Text: "hi", WorktreeID: wtID,
	})))

	chat := waitForChat(t, s, wtID, func(c *state.Chat) bool {
		return len(c.Messages) == 2 && c.Messages[1].Status == state.MessageComplete
	})
	assert.Equal(t, "m1", chat.Messages[0].ID)
	assert.Equal(t, state.RoleUser, chat.Messages[0].Role)
	assert.Equal(t, "hi", chat.Messages[0].Content)
	assert.Equal(t, "m2", chat.Messages[1].ID)
	assert.Equal(t, state.RoleAssistant, chat.Messages[1].Role)
	assert.Equal(t, "Hello", chat.Messages[1].Content)
}

func TestChatStreamFailureMarksMessage(t *testing.T) {
	s := newTestStore(t, Options{Client: &fakeCompletion{
		deltas: []string{"partial"},
		fail:   fmt.Errorf("upstream 529"),
	}})
	_, wtID := openProject(t, s)

	require.NoError(t, s.Dispatch(action.New(action.KindSubmitChatMessage, &action.SubmitChatMessage{
		Text: "hi", WorktreeID: wtID,
	})))
	chat := waitForChat(t, s, wtID, func(c *state.Chat) bool {
		return len(c.Messages) == 2 && c.Messages[1].Status == state.MessageError
	})
	assert.Equal(t, "partial", chat.Messages[1].Content, "partial content survives a failed stream")
	assert.Contains(t, chat.Messages[1].Error, "529")
}

func TestChatSubmitRejectedWhileInFlight(t *testing.T) {
	release := make(chan struct{})
	s := newTestStore(t, Options{Client: &fakeCompletion{deltas: []string{"ok"}, release: release}})
	_, wtID := openProject(t, s)

	submit := func() error {
		return s.Dispatch(action.New(action.KindSubmitChatMessage, &action.SubmitChatMessage{
			Text: "hi", WorktreeID: wtID,
		}))
	}
	require.NoError(t, submit())
	assert.Equal(t, errors.ErrCodeCompletionInFlight, errors.GetCode(submit()))

	close(release)
	waitForChat(t, s, wtID, func(c *state.Chat) bool {
		return len(c.Messages) == 2 && c.Messages[1].Status == state.MessageComplete
	})
	assert.NoError(t, submit(), "settled stream frees the slot")
}

func TestClearChatCancelsStream(t *testing.T) {
	release := make(chan struct{})
	defer close(release)
	s := newTestStore(t, Options{Client: &fakeCompletion{deltas: []string{"late"}, release: release}})
	_, wtID := openProject(t, s)

	require.NoError(t, s.Dispatch(action.New(action.KindSubmitChatMessage, &action.SubmitChatMessage{
		Text: "hi", WorktreeID: wtID,
	})))
	require.NoError(t, s.Dispatch(action.New(action.KindClearChat, &action.ClearChat{WorktreeID: wtID})))

	chat := s.GetState().FindWorktree(wtID).Chat
	assert.Empty(t, chat.Messages)

	// The cancelled stream must not resurrect anything, and the sequence
	// keeps growing so later ids never collide with cleared ones.
	require.Eventually(t, func() bool {
		return !s.scheduler.InFlight(wtID)
	}, 5*time.Second, 10*time.Millisecond)
	assert.Empty(t, s.GetState().FindWorktree(wtID).Chat.Messages)

	require.NoError(t, s.Dispatch(action.New(action.KindSubmitChatMessage, &action.SubmitChatMessage{
		Text: "again", WorktreeID: wtID,
	})))
	chat = s.GetState().FindWorktree(wtID).Chat
	require.Len(t, chat.Messages, 2)
	assert.Equal(t, "m3", chat.Messages[0].ID)
}

func TestSubscribersReceiveSnapshots(t *testing.T) {
	s := newTestStore(t, Options{})
	sub := s.Subscribe()
	defer s.Unsubscribe(sub)

	dir, _ := openProject(t, s)

	select {
	case u := <-sub:
		require.Equal(t, UpdateState, u.Type)
		require.NotNil(t, u.Snapshot)
		assert.Contains(t, u.Snapshot.Projects, dir)
	case <-time.After(time.Second):
		t.Fatal("no update broadcast after commit")
	}
}

func TestSnapshotRecoveryScrubsSessions(t *testing.T) {
	db, err := persist.Open(context.Background(), t.TempDir()+"/studio.db")
	require.NoError(t, err)
	defer db.Close()

	s, err := New(Options{Persist: db, Shell: "/bin/sh"})
	require.NoError(t, err)
	dir, wtID := openProject(t, s)

	require.NoError(t, s.Dispatch(action.New(action.KindSpawnTerminal, &action.SpawnTerminal{
		WorktreeID: wtID, Cols: 80, Rows: 24,
	})))
	waitForTerminal(t, s, wtID, state.TerminalRunning)
	s.Close()

	recovered, err := New(Options{Persist: db, Shell: "/bin/sh"})
	require.NoError(t, err)
	defer recovered.Close()

	st := recovered.GetState()
	require.Contains(t, st.Projects, dir)
	term := st.FindWorktree(wtID).Terminal
	assert.Empty(t, term.SessionID, "no session survives a restart")
	assert.Equal(t, state.TerminalIdle, term.Status)
}

func TestDispatchEnvelope(t *testing.T) {
	s := newTestStore(t, Options{})
	require.NoError(t, s.DispatchEnvelope(action.Envelope{
		Type:    string(action.KindSetActiveView),
		Payload: map[string]interface{}{"view": "chat"},
	}))
	assert.Equal(t, state.ViewChat, s.GetState().ActiveView)

	err := s.DispatchEnvelope(action.Envelope{
		Type:    string(action.KindSetActiveView),
		Payload: map[string]interface{}{"view": "dashboard"},
	})
	assert.Equal(t, errors.ErrCodeInvalidAction, errors.GetCode(err))
}

func TestDispatchAfterCloseRejected(t *testing.T) {
	s := newTestStore(t, Options{})
	s.Close()
	err := s.Dispatch(action.New(action.KindSetActiveView, &action.SetActiveView{View: "chat"}))
	assert.Equal(t, errors.ErrCodeStoreClosed, errors.GetCode(err))
}
