package persist

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/grovetools/studio/errors"
	"github.com/grovetools/studio/internal/state"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := Open(context.Background(), filepath.Join(t.TempDir(), "studio.db"))
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

func TestCommentRoundTrip(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	require.NoError(t, s.AppendComment(ctx, Comment{
		ProjectKey: "aaaabbbbccccdddd",
		Path:       "/repo/main.go",
		Content:    "needs a nil check",
	}))
	require.NoError(t, s.AppendComment(ctx, Comment{
		ProjectKey: "aaaabbbbccccdddd",
		Path:       "/repo/main.go",
		Content:    "done",
	}))

	got, err := s.QueryComments(ctx, "aaaabbbbccccdddd", "/repo/main.go")
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, "needs a nil check", got[0].Content)
	assert.Equal(t, "done", got[1].Content)
	assert.False(t, got[0].CreatedAt.IsZero())
}

func TestProjectKeyIsolation(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	require.NoError(t, s.AppendComment(ctx, Comment{
		ProjectKey: "aaaaaaaaaaaaaaaa", Path: "/repo/a.go", Content: "from project A",
	}))
	require.NoError(t, s.AppendActivity(ctx, Activity{
		ProjectKey: "aaaaaaaaaaaaaaaa", Scope: "terminal", Content: "spawned",
	}))

	comments, err := s.QueryComments(ctx, "bbbbbbbbbbbbbbbb", "/repo/a.go")
	require.NoError(t, err)
	assert.Empty(t, comments)

	activity, err := s.QueryActivity(ctx, "bbbbbbbbbbbbbbbb", "terminal")
	require.NoError(t, err)
	assert.Empty(t, activity)
}

func TestQueryRequiresProjectKey(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	_, err := s.QueryComments(ctx, "", "/repo/a.go")
	assert.True(t, errors.Is(err, errors.ErrCodeInvalidInput))

	_, err = s.QueryActivity(ctx, "", "terminal")
	assert.True(t, errors.Is(err, errors.ErrCodeInvalidInput))

	err = s.AppendComment(ctx, Comment{Path: "/repo/a.go", Content: "x"})
	assert.True(t, errors.Is(err, errors.ErrCodeInvalidInput))
}

func TestSnapshotRoundTrip(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	app := state.NewApp()
	wt := state.NewWorktree("wt-1", "/repo", "main")
	wt.Explorer.OpenTabs = []state.FileTab{{Path: "/repo/a.go", Pinned: true, ScrollPos: 10}}
	wt.Explorer.ExpandedPaths["/repo/src"] = true
	wt.Chat.Messages = []state.ChatMessage{
		{ID: "m1", Role: state.RoleUser, Content: "hello", Status: state.MessageComplete},
	}
	// Live session handles are never part of the snapshot; the id is just a
	// string and survives, the registry entry does not.
	wt.Terminal.Cols = 80
	wt.Terminal.Rows = 24
	app.Projects["/repo"] = &state.Project{
		Path: "/repo", Key: "aaaabbbbccccdddd",
		Worktrees: []*state.Worktree{wt}, ActiveWorktree: "wt-1",
	}
	app.ActiveProject = "/repo"

	require.NoError(t, s.SaveSnapshot(ctx, app))

	got, err := s.LoadSnapshot(ctx)
	require.NoError(t, err)
	assert.Equal(t, app, got)
}

func TestSnapshotOverwrite(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	first := state.NewApp()
	first.ActiveView = state.ViewChat
	require.NoError(t, s.SaveSnapshot(ctx, first))

	second := state.NewApp()
	second.ActiveView = state.ViewTerminal
	require.NoError(t, s.SaveSnapshot(ctx, second))

	got, err := s.LoadSnapshot(ctx)
	require.NoError(t, err)
	assert.Equal(t, state.ViewTerminal, got.ActiveView)
}

func TestLoadSnapshotAbsent(t *testing.T) {
	s := openTestStore(t)

	got, err := s.LoadSnapshot(context.Background())
	require.NoError(t, err)
	assert.Nil(t, got)
}
