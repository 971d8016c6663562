// Package action defines the tagged requests the dispatch store consumes.
//
// Over the wire an action is an envelope {type, payload}. The payload is
// decoded into the typed struct registered for its kind and validated
// against a JSON Schema generated from that struct; anything malformed is
// rejected with INVALID_ACTION before a reducer ever sees it.
package action

import (
	"github.com/grovetools/studio/errors"
	"github.com/mitchellh/mapstructure"
)

// Kind discriminates action variants.
type Kind string

const (
	// Project / view
	KindOpenProject       Kind = "OpenProject"
	KindCloseProject      Kind = "CloseProject"
	KindSetActiveView     Kind = "SetActiveView"
	KindSetActiveWorktree Kind = "SetActiveWorktree"
	KindSetEnvSync        Kind = "SetEnvSync"
	KindSetService        Kind = "SetService"

	// Explorer
	KindExploreDir        Kind = "ExploreDir"
	KindExpandDirectory   Kind = "ExpandDirectory"
	KindCollapseDirectory Kind = "CollapseDirectory"
	KindRefreshDirectory  Kind = "RefreshDirectory"
	KindOpenFile          Kind = "OpenFile"
	KindPinTab            Kind = "PinTab"
	KindCloseTab          Kind = "CloseTab"
	KindSetTabScroll      Kind = "SetTabScroll"
	KindAddFileComment    Kind = "AddFileComment"
	KindLogActivity       Kind = "LogActivity"

	// Terminal
	KindSpawnTerminal       Kind = "SpawnTerminal"
	KindTerminalSpawned     Kind = "TerminalSpawned"
	KindTerminalSpawnFailed Kind = "TerminalSpawnFailed"
	KindTerminalOutput      Kind = "TerminalOutput"
	KindTerminalExited      Kind = "TerminalExited"
	KindResizeTerminal      Kind = "ResizeTerminal"
	KindWriteTerminal       Kind = "WriteTerminal"
	KindKillTerminal        Kind = "KillTerminal"

	// Chat
	KindSubmitChatMessage   Kind = "SubmitChatMessage"
	KindUpdateChatMessage   Kind = "UpdateChatMessage"
	KindCompleteChatMessage Kind = "CompleteChatMessage"
	KindFailChatMessage     Kind = "FailChatMessage"
	KindClearChat           Kind = "ClearChat"
)

// Action is a decoded, validated request to change state.
type Action struct {
	Kind    Kind
	Payload interface{}
}

// Envelope is the wire format consumed by the store.
type Envelope struct {
	Type    string                 `json:"type"`
	Payload map[string]interface{} `json:"payload,omitempty"`
}

// Payload structs. Fields tagged json; required fields carry a jsonschema
// required marker picked up by the generated schemas.

type OpenProject struct {
	Path string `json:"path" jsonschema:"minLength=1"`
	// Branch of the initial worktree; defaults to "main".
	Branch string `json:"branch,omitempty"`

	// Key and Worktrees are filled by the store's prepare step, never by
	// callers. Worktrees lists the discovered checkouts of the project;
	// empty means a single checkout at the project path.
	Key       string        `json:"-"`
	Worktrees []WorktreeRef `json:"-"`
}

// WorktreeRef is one discovered checkout attached to an OpenProject.
type WorktreeRef struct {
	Path   string
	Branch string
}

type CloseProject struct {
	Path string `json:"path" jsonschema:"minLength=1"`
}

type SetActiveView struct {
	View string `json:"view" jsonschema:"enum=explorer,enum=terminal,enum=chat"`
}

type SetActiveWorktree struct {
	WorktreeID string `json:"worktree_id" jsonschema:"minLength=1"`
}

type SetEnvSync struct {
	ProjectPath string   `json:"project_path" jsonschema:"minLength=1"`
	Enabled     bool     `json:"enabled"`
	Files       []string `json:"files,omitempty"`
}

type SetService struct {
	Name    string `json:"name" jsonschema:"minLength=1"`
	Running bool   `json:"running"`
}

type ExploreDir struct {
	Path string `json:"path" jsonschema:"minLength=1"`
	// WorktreeID is optional; empty resolves to the active worktree.
	WorktreeID string `json:"worktree_id,omitempty"`

	// Entries is filled by the store's prepare step, never by callers.
	Entries []DirEntry `json:"-"`
	Loaded  bool       `json:"-"`
}

type ExpandDirectory struct {
	Path       string `json:"path" jsonschema:"minLength=1"`
	WorktreeID string `json:"worktree_id,omitempty"`

	Entries []DirEntry `json:"-"`
	Loaded  bool       `json:"-"`
}

type CollapseDirectory struct {
	Path       string `json:"path" jsonschema:"minLength=1"`
	WorktreeID string `json:"worktree_id,omitempty"`
}

type RefreshDirectory struct {
	Path       string `json:"path" jsonschema:"minLength=1"`
	WorktreeID string `json:"worktree_id,omitempty"`

	Entries []DirEntry `json:"-"`
	Loaded  bool       `json:"-"`
}

// DirEntry mirrors state.DirEntry for prepared listings.
type DirEntry struct {
	Name  string `json:"name"`
	IsDir bool   `json:"is_dir"`
}

type OpenFile struct {
	Path       string `json:"path" jsonschema:"minLength=1"`
	WorktreeID string `json:"worktree_id,omitempty"`
}

type PinTab struct {
	Path       string `json:"path" jsonschema:"minLength=1"`
	WorktreeID string `json:"worktree_id,omitempty"`
}

type CloseTab struct {
	Path       string `json:"path" jsonschema:"minLength=1"`
	WorktreeID string `json:"worktree_id,omitempty"`
}

type SetTabScroll struct {
	Path       string `json:"path" jsonschema:"minLength=1"`
	ScrollPos  int    `json:"scroll_pos" jsonschema:"minimum=0"`
	WorktreeID string `json:"worktree_id,omitempty"`
}

type AddFileComment struct {
	Path       string `json:"path" jsonschema:"minLength=1"`
	Content    string `json:"content" jsonschema:"minLength=1"`
	WorktreeID string `json:"worktree_id,omitempty"`
}

type LogActivity struct {
	Scope      string `json:"scope" jsonschema:"minLength=1"`
	Content    string `json:"content" jsonschema:"minLength=1"`
	WorktreeID string `json:"worktree_id,omitempty"`
}

type SpawnTerminal struct {
	WorktreeID string `json:"worktree_id,omitempty"`
	Cols       int    `json:"cols" jsonschema:"minimum=1"`
	Rows       int    `json:"rows" jsonschema:"minimum=1"`
}

type TerminalSpawned struct {
	WorktreeID string `json:"worktree_id" jsonschema:"minLength=1"`
	SessionID  string `json:"session_id" jsonschema:"minLength=1"`
}

type TerminalSpawnFailed struct {
	WorktreeID string `json:"worktree_id" jsonschema:"minLength=1"`
	Error      string `json:"error"`
}

type TerminalOutput struct {
	SessionID string `json:"session_id" jsonschema:"minLength=1"`
	Data      string `json:"data"`
}

type TerminalExited struct {
	SessionID string `json:"session_id" jsonschema:"minLength=1"`
}

type ResizeTerminal struct {
	SessionID string `json:"session_id" jsonschema:"minLength=1"`
	Cols      int    `json:"cols" jsonschema:"minimum=1"`
	Rows      int    `json:"rows" jsonschema:"minimum=1"`
}

type WriteTerminal struct {
	SessionID string `json:"session_id" jsonschema:"minLength=1"`
	Data      string `json:"data"`
}

type KillTerminal struct {
	SessionID string `json:"session_id" jsonschema:"minLength=1"`
}

type SubmitChatMessage struct {
	Text       string `json:"text" jsonschema:"minLength=1"`
	WorktreeID string `json:"worktree_id,omitempty"`
}

type UpdateChatMessage struct {
	Delta      string `json:"delta"`
	WorktreeID string `json:"worktree_id,omitempty"`
}

type CompleteChatMessage struct {
	WorktreeID string `json:"worktree_id,omitempty"`
}

type FailChatMessage struct {
	Error      string `json:"error"`
	WorktreeID string `json:"worktree_id,omitempty"`
}

type ClearChat struct {
	WorktreeID string `json:"worktree_id,omitempty"`
}

// payloadFactories maps every kind to a constructor for its payload type.
// Adding a kind without registering it here fails closed at decode time.
var payloadFactories = map[Kind]func() interface{}{
	KindOpenProject:         func() interface{} { return &OpenProject{} },
	KindCloseProject:        func() interface{} { return &CloseProject{} },
	KindSetActiveView:       func() interface{} { return &SetActiveView{} },
	KindSetActiveWorktree:   func() interface{} { return &SetActiveWorktree{} },
	KindSetEnvSync:          func() interface{} { return &SetEnvSync{} },
	KindSetService:          func() interface{} { return &SetService{} },
	KindExploreDir:          func() interface{} { return &ExploreDir{} },
	KindExpandDirectory:     func() interface{} { return &ExpandDirectory{} },
	KindCollapseDirectory:   func() interface{} { return &CollapseDirectory{} },
	KindRefreshDirectory:    func() interface{} { return &RefreshDirectory{} },
	KindOpenFile:            func() interface{} { return &OpenFile{} },
	KindPinTab:              func() interface{} { return &PinTab{} },
	KindCloseTab:            func() interface{} { return &CloseTab{} },
	KindSetTabScroll:        func() interface{} { return &SetTabScroll{} },
	KindAddFileComment:      func() interface{} { return &AddFileComment{} },
	KindLogActivity:         func() interface{} { return &LogActivity{} },
	KindSpawnTerminal:       func() interface{} { return &SpawnTerminal{} },
	KindTerminalSpawned:     func() interface{} { return &TerminalSpawned{} },
	KindTerminalSpawnFailed: func() interface{} { return &TerminalSpawnFailed{} },
	KindTerminalOutput:      func() interface{} { return &TerminalOutput{} },
	KindTerminalExited:      func() interface{} { return &TerminalExited{} },
	KindResizeTerminal:      func() interface{} { return &ResizeTerminal{} },
	KindWriteTerminal:       func() interface{} { return &WriteTerminal{} },
	KindKillTerminal:        func() interface{} { return &KillTerminal{} },
	KindSubmitChatMessage:   func() interface{} { return &SubmitChatMessage{} },
	KindUpdateChatMessage:   func() interface{} { return &UpdateChatMessage{} },
	KindCompleteChatMessage: func() interface{} { return &CompleteChatMessage{} },
	KindFailChatMessage:     func() interface{} { return &FailChatMessage{} },
	KindClearChat:           func() interface{} { return &ClearChat{} },
}

// Decode turns a wire envelope into a typed Action. Unknown kinds, schema
// violations, and unexpected payload fields all fail with INVALID_ACTION.
func Decode(env Envelope) (Action, error) {
	kind := Kind(env.Type)
	factory, ok := payloadFactories[kind]
	if !ok {
		return Action{}, errors.InvalidAction(env.Type, "unknown action kind")
	}

	payload := env.Payload
	if payload == nil {
		payload = map[string]interface{}{}
	}

	if err := validatePayload(kind, payload); err != nil {
		return Action{}, err
	}

	target := factory()
	decoder, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		Result:      target,
		TagName:     "json",
		ErrorUnused: true,
	})
	if err != nil {
		return Action{}, errors.Wrap(err, errors.ErrCodeInternal, "failed to create payload decoder")
	}
	if err := decoder.Decode(payload); err != nil {
		return Action{}, errors.InvalidAction(env.Type, err.Error())
	}

	return Action{Kind: kind, Payload: target}, nil
}

// New builds an Action from an already-typed payload. Used by internal
// producers (registry pump, effect scheduler) that bypass the wire format.
func New(kind Kind, payload interface{}) Action {
	return Action{Kind: kind, Payload: payload}
}
