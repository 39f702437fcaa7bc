package domain

import "time"

// Chat is one entry of the chat list.
type Chat struct {
	ID          int64
	Title       string
	UnreadCount int
	LastMessage *Message // nil until the chat has a message
}

// Clone returns a copy that shares no memory with c.
func (c Chat) Clone() Chat {
	if c.LastMessage != nil {
		msg := *c.LastMessage
		c.LastMessage = &msg
	}
	return c
}

type Message struct {
	ID         int
	ChatID     int64
	SenderName string
	Text       string
	Markdown   string // Text with formatting entities rendered as markdown
	Date       time.Time
	Out        bool // true if sent by us
}

// AuthPhase is the authorization phase reported by the backend.
type AuthPhase int

const (
	PhaseWaitParameters AuthPhase = iota + 1
	PhaseWaitEncryptionKey
	PhaseWaitPhoneNumber
	PhaseWaitCode
	PhaseWaitPassword
	PhaseReady
	PhaseLoggingOut
	PhaseClosing
	PhaseClosed
)

func (p AuthPhase) String() string {
	switch p {
	case PhaseWaitParameters:
		return "wait_parameters"
	case PhaseWaitEncryptionKey:
		return "wait_encryption_key"
	case PhaseWaitPhoneNumber:
		return "wait_phone_number"
	case PhaseWaitCode:
		return "wait_code"
	case PhaseWaitPassword:
		return "wait_password"
	case PhaseReady:
		return "ready"
	case PhaseLoggingOut:
		return "logging_out"
	case PhaseClosing:
		return "closing"
	case PhaseClosed:
		return "closed"
	default:
		return "unknown"
	}
}
