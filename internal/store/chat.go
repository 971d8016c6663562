package store

import (
	"strconv"

	"github.com/grovetools/studio/errors"
	"github.com/grovetools/studio/internal/action"
	"github.com/grovetools/studio/internal/state"
)

// reduceSubmitChatMessage appends the user message plus a streaming
// assistant placeholder and returns the history handed to the completion
// scheduler. Message ids come off the worktree's monotonic sequence so
// they stay unique across ClearChat.
func reduceSubmitChatMessage(cur *state.App, p *action.SubmitChatMessage) (*state.App, []state.ChatMessage, error) {
	next := cur.Clone()
	wt := next.FindWorktree(p.WorktreeID)
	if wt == nil {
		return nil, nil, errors.UnknownWorktree(p.WorktreeID)
	}

	wt.Chat.Seq++
	user := state.ChatMessage{
		ID:      "m" + strconv.Itoa(wt.Chat.Seq),
		Role:    state.RoleUser,
		Content: p.Text,
		Status:  state.MessageComplete,
	}
	wt.Chat.Seq++
	placeholder := state.ChatMessage{
		ID:     "m" + strconv.Itoa(wt.Chat.Seq),
		Role:   state.RoleAssistant,
		Status: state.MessageStreaming,
	}
	wt.Chat.Messages = append(wt.Chat.Messages, user, placeholder)

	history := append([]state.ChatMessage(nil), wt.Chat.Messages...)
	return next, history, nil
}

// streamingMessage returns the worktree's in-flight assistant message, or
// nil. At most one exists at a time.
func streamingMessage(wt *state.Worktree) *state.ChatMessage {
	for i := len(wt.Chat.Messages) - 1; i >= 0; i-- {
		m := &wt.Chat.Messages[i]
		if m.Status == state.MessageStreaming {
			return m
		}
	}
	return nil
}

// Streaming updates that arrive after the placeholder is gone (ClearChat,
// CloseProject raced the stream) are dropped, not errors.

func reduceUpdateChatMessage(cur *state.App, p *action.UpdateChatMessage) (*state.App, bool) {
	next := cur.Clone()
	wt := next.FindWorktree(p.WorktreeID)
	if wt == nil {
		return nil, false
	}
	msg := streamingMessage(wt)
	if msg == nil {
		return nil, false
	}
	msg.Content += p.Delta
	return next, true
}

func reduceCompleteChatMessage(cur *state.App, p *action.CompleteChatMessage) (*state.App, bool) {
	next := cur.Clone()
	wt := next.FindWorktree(p.WorktreeID)
	if wt == nil {
		return nil, false
	}
	msg := streamingMessage(wt)
	if msg == nil {
		return nil, false
	}
	msg.Status = state.MessageComplete
	return next, true
}

func reduceFailChatMessage(cur *state.App, p *action.FailChatMessage) (*state.App, bool) {
	next := cur.Clone()
	wt := next.FindWorktree(p.WorktreeID)
	if wt == nil {
		return nil, false
	}
	msg := streamingMessage(wt)
	if msg == nil {
		return nil, false
	}
	msg.Status = state.MessageError
	msg.Error = p.Error
	return next, true
}

func reduceClearChat(cur *state.App, p *action.ClearChat) (*state.App, error) {
	next := cur.Clone()
	wt := next.FindWorktree(p.WorktreeID)
	if wt == nil {
		return nil, errors.UnknownWorktree(p.WorktreeID)
	}
	// Seq is preserved so ids never repeat within a worktree.
	wt.Chat.Messages = nil
	return next, nil
}
