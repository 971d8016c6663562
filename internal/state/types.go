// Package state defines the canonical application state tree.
//
// The tree is a plain serializable value: it never holds OS handles. Live
// terminal processes are owned by the session registry and referenced here
// only by id. The dispatch store replaces the tree wholesale on every
// committed transition; a previous version is never mutated afterwards.
package state

// View identifies the globally selected surface.
type View string

const (
	ViewExplorer View = "explorer"
	ViewTerminal View = "terminal"
	ViewChat     View = "chat"
)

// TerminalStatus describes the lifecycle of a worktree's terminal session.
type TerminalStatus string

const (
	TerminalIdle    TerminalStatus = "idle"
	TerminalPending TerminalStatus = "pending"
	TerminalRunning TerminalStatus = "running"
	TerminalError   TerminalStatus = "error"
)

// MessageStatus describes the lifecycle of a chat message.
type MessageStatus string

const (
	MessageComplete  MessageStatus = "complete"
	MessageStreaming MessageStatus = "streaming"
	MessageError     MessageStatus = "error"
)

// Role is a chat message role.
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// App is the root of the state tree.
type App struct {
	Projects      map[string]*Project `json:"projects"` // Keyed by canonical path
	ActiveProject string              `json:"active_project,omitempty"`
	ActiveView    View                `json:"active_view"`
	Services      *Services           `json:"services,omitempty"`
}

// CurrentWorktree resolves the active worktree of the active project, or nil.
func (a *App) CurrentWorktree() *Worktree {
	p, ok := a.Projects[a.ActiveProject]
	if !ok {
		return nil
	}
	return p.Active()
}

// Services holds global service state (container services etc.).
type Services struct {
	Running map[string]bool `json:"running,omitempty"` // Keyed by service name
}

// Project is an open project, identified by its canonical filesystem path.
type Project struct {
	Path string `json:"path"`
	// Key is the stable project key derived once from the canonical path.
	// All persisted records for this project are isolated under it.
	Key            string      `json:"key"`
	Worktrees      []*Worktree `json:"worktrees"`
	ActiveWorktree string      `json:"active_worktree"` // Worktree ID
	EnvSync        *EnvSync    `json:"env_sync,omitempty"`
}

// EnvSync is project-scoped environment sync configuration.
type EnvSync struct {
	Enabled bool     `json:"enabled"`
	Files   []string `json:"files,omitempty"`
}

// Worktree is a checkout of a project, identified by path + branch.
type Worktree struct {
	ID       string    `json:"id"`
	Path     string    `json:"path"`
	Branch   string    `json:"branch"`
	Explorer *Explorer `json:"explorer"`
	Terminal *Terminal `json:"terminal"`
	Chat     *Chat     `json:"chat"`
}

// Explorer holds the file-browser state for one worktree.
type Explorer struct {
	ExpandedPaths map[string]bool       `json:"expanded_paths"`
	DirCache      map[string][]DirEntry `json:"dir_cache"`
	OpenTabs      []FileTab             `json:"open_tabs"`
	ActiveTabPath string                `json:"active_tab_path,omitempty"`
}

// DirEntry is one cached directory listing entry.
type DirEntry struct {
	Name  string `json:"name"`
	IsDir bool   `json:"is_dir"`
}

// FileTab is an open editor tab. At most one tab in a worktree may have
// Pinned=false; that tab is the preview tab and is retargeted in place by
// OpenFile rather than spawning a new tab.
type FileTab struct {
	Path      string `json:"path"`
	Pinned    bool   `json:"pinned"`
	ScrollPos int    `json:"scroll_pos"`
}

// Terminal holds the serializable terminal state. The live pty handle lives
// in the registry, addressed by SessionID; an empty SessionID means no live
// session.
type Terminal struct {
	SessionID string         `json:"session_id,omitempty"`
	Cols      int            `json:"cols"`
	Rows      int            `json:"rows"`
	Status    TerminalStatus `json:"status"`
	LastError string         `json:"last_error,omitempty"`
}

// Chat holds the ordered message history for one worktree. Seq only ever
// grows, so message ids stay unique across ClearChat.
type Chat struct {
	Messages []ChatMessage `json:"messages"`
	Seq      int           `json:"seq"`
}

// ChatMessage is one entry in the history. A message with status
// "streaming" is mutable in place until finalized; afterwards it is frozen.
type ChatMessage struct {
	ID      string        `json:"id"`
	Role    Role          `json:"role"`
	Content string        `json:"content"`
	Status  MessageStatus `json:"status"`
	Error   string        `json:"error,omitempty"`
}

// NewApp returns a fresh empty state tree.
func NewApp() *App {
	return &App{
		Projects:   make(map[string]*Project),
		ActiveView: ViewExplorer,
	}
}

// NewWorktree returns a worktree with empty sub-state.
func NewWorktree(id, path, branch string) *Worktree {
	return &Worktree{
		ID:     id,
		Path:   path,
		Branch: branch,
		Explorer: &Explorer{
			ExpandedPaths: make(map[string]bool),
			DirCache:      make(map[string][]DirEntry),
		},
		Terminal: &Terminal{Status: TerminalIdle},
		Chat:     &Chat{},
	}
}

// FindWorktree returns the worktree with the given id, or nil.
func (a *App) FindWorktree(id string) *Worktree {
	for _, p := range a.Projects {
		for _, wt := range p.Worktrees {
			if wt.ID == id {
				return wt
			}
		}
	}
	return nil
}

// ProjectOf returns the project owning the worktree with the given id, or nil.
func (a *App) ProjectOf(worktreeID string) *Project {
	for _, p := range a.Projects {
		for _, wt := range p.Worktrees {
			if wt.ID == worktreeID {
				return p
			}
		}
	}
	return nil
}

// ActiveWorktree returns the active worktree of the project, or nil.
func (p *Project) Active() *Worktree {
	for _, wt := range p.Worktrees {
		if wt.ID == p.ActiveWorktree {
			return wt
		}
	}
	return nil
}

// SessionIDs returns every live session id referenced by the tree.
func (a *App) SessionIDs() []string {
	var ids []string
	for _, p := range a.Projects {
		for _, wt := range p.Worktrees {
			if wt.Terminal != nil && wt.Terminal.SessionID != "" {
				ids = append(ids, wt.Terminal.SessionID)
			}
		}
	}
	return ids
}
