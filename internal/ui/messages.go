package ui

import (
	"github.com/danhigham/tgcore/internal/domain"
)

// ChatsChangedMsg signals that the chat registry changed.
type ChatsChangedMsg struct{}

// AuthStateMsg carries a new authorization state.
type AuthStateMsg struct {
	State domain.AuthState
}

// NewMessageMsg carries a message that just arrived.
type NewMessageMsg struct {
	Message domain.Message
}

// ChatSelectedMsg is emitted when the user picks a chat.
type ChatSelectedMsg struct {
	ChatID int64
}

// HistoryLoadedMsg delivers fetched history for a chat.
type HistoryLoadedMsg struct {
	ChatID   int64
	Messages []domain.Message
}

// LoadOlderHistoryMsg is emitted when the user scrolls to the top of messages.
type LoadOlderHistoryMsg struct {
	ChatID int64
}

// OlderHistoryLoadedMsg delivers older history fetched asynchronously.
type OlderHistoryLoadedMsg struct {
	ChatID   int64
	Messages []domain.Message
}

// sendMessageMsg is emitted when the user presses Enter in the input.
type sendMessageMsg struct {
	text string
}

// authSubmitMsg is emitted when the user confirms an auth prompt.
type authSubmitMsg struct {
	kind  domain.AuthStateKind
	value string
}

// authResultMsg reports the backend's answer to a submitted credential.
type authResultMsg struct {
	err error
}

// ErrorMsg reports a failed request.
type ErrorMsg struct {
	Err error
}

// SplashDoneMsg signals that the splash screen timeout has elapsed.
type SplashDoneMsg struct{}
