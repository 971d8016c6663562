package state

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestProjectKeyStable(t *testing.T) {
	dir := t.TempDir()

	k1, err := ProjectKey(dir)
	require.NoError(t, err)
	k2, err := ProjectKey(dir)
	require.NoError(t, err)

	assert.Equal(t, k1, k2)
	assert.Len(t, k1, 16)
}

func TestProjectKeyDistinctPaths(t *testing.T) {
	a := t.TempDir()
	b := t.TempDir()

	ka, err := ProjectKey(a)
	require.NoError(t, err)
	kb, err := ProjectKey(b)
	require.NoError(t, err)

	assert.NotEqual(t, ka, kb)
}

func TestProjectKeyResolvesSymlinks(t *testing.T) {
	real := t.TempDir()
	link := filepath.Join(t.TempDir(), "link")
	require.NoError(t, os.Symlink(real, link))

	kReal, err := ProjectKey(real)
	require.NoError(t, err)
	kLink, err := ProjectKey(link)
	require.NoError(t, err)

	assert.Equal(t, kReal, kLink)
}

func TestCloneIsDeep(t *testing.T) {
	app := NewApp()
	wt := NewWorktree("wt-1", "/repo", "main")
	wt.Explorer.OpenTabs = []FileTab{{Path: "/repo/a.go", Pinned: true}}
	wt.Explorer.ExpandedPaths["/repo/src"] = true
	wt.Explorer.DirCache["/repo/src"] = []DirEntry{{Name: "main.go"}}
	wt.Chat.Messages = []ChatMessage{{ID: "m1", Role: RoleUser, Content: "hi", Status: MessageComplete}}
	app.Projects["/repo"] = &Project{
		Path:           "/repo",
		Key:            "abcd1234abcd1234",
		Worktrees:      []*Worktree{wt},
		ActiveWorktree: "wt-1",
	}

	snap := app.Clone()

	// Mutating the original must not show through the snapshot
	wt.Explorer.OpenTabs[0].Path = "/repo/b.go"
	wt.Explorer.ExpandedPaths["/repo/lib"] = true
	wt.Explorer.DirCache["/repo/src"][0].Name = "other.go"
	wt.Chat.Messages[0].Content = "changed"
	wt.Terminal.SessionID = "sess"
	app.ActiveView = ViewChat

	got := snap.Projects["/repo"].Worktrees[0]
	assert.Equal(t, "/repo/a.go", got.Explorer.OpenTabs[0].Path)
	assert.False(t, got.Explorer.ExpandedPaths["/repo/lib"])
	assert.Equal(t, "main.go", got.Explorer.DirCache["/repo/src"][0].Name)
	assert.Equal(t, "hi", got.Chat.Messages[0].Content)
	assert.Empty(t, got.Terminal.SessionID)
	assert.Equal(t, ViewExplorer, snap.ActiveView)
}

func TestFindWorktreeAndOwner(t *testing.T) {
	app := NewApp()
	wt := NewWorktree("wt-1", "/repo", "main")
	app.Projects["/repo"] = &Project{Path: "/repo", Worktrees: []*Worktree{wt}}

	assert.Same(t, wt, app.FindWorktree("wt-1"))
	assert.Nil(t, app.FindWorktree("missing"))
	assert.Equal(t, "/repo", app.ProjectOf("wt-1").Path)
	assert.Nil(t, app.ProjectOf("missing"))
}

func TestSessionIDs(t *testing.T) {
	app := NewApp()
	wt1 := NewWorktree("wt-1", "/repo", "main")
	wt1.Terminal.SessionID = "s1"
	wt2 := NewWorktree("wt-2", "/repo-x", "main")
	app.Projects["/repo"] = &Project{Path: "/repo", Worktrees: []*Worktree{wt1, wt2}}

	assert.Equal(t, []string{"s1"}, app.SessionIDs())
}

func TestJSONRoundTrip(t *testing.T) {
	app := NewApp()
	wt := NewWorktree("wt-1", "/repo", "main")
	wt.Explorer.OpenTabs = []FileTab{{Path: "/repo/a.go", Pinned: false, ScrollPos: 42}}
	wt.Terminal.Cols = 80
	wt.Terminal.Rows = 24
	app.Projects["/repo"] = &Project{Path: "/repo", Key: "k", Worktrees: []*Worktree{wt}, ActiveWorktree: "wt-1"}

	data, err := json.Marshal(app)
	require.NoError(t, err)

	var back App
	require.NoError(t, json.Unmarshal(data, &back))
	assert.Equal(t, app, &back)
}
