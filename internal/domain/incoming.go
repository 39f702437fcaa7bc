package domain

// Incoming is anything the backend pushes to the client: responses to
// earlier requests, authorization notifications and generic updates.
type Incoming interface {
	incoming()
}

// Response answers the request that was sent with correlation id ID. Exactly
// one of Result and Err is set.
type Response struct {
	ID     int64
	Result Result
	Err    *BackendError
}

type AuthorizationUpdate struct {
	Phase AuthPhase
}

// Update is a generic push notification. Updates are delivered to consumers
// in the order the backend produced them.
type Update interface {
	Incoming
	update()
}

type NewChat struct {
	Chat Chat
}

// ChatLastMessage replaces the last message of a chat. A nil Message clears it.
type ChatLastMessage struct {
	ChatID  int64
	Message *Message
}

type ChatTitle struct {
	ChatID int64
	Title  string
}

type ChatReadInbox struct {
	ChatID      int64
	UnreadCount int
}

type NewMessage struct {
	Message Message
}

func (Response) incoming()            {}
func (AuthorizationUpdate) incoming() {}
func (NewChat) incoming()             {}
func (ChatLastMessage) incoming()     {}
func (ChatTitle) incoming()           {}
func (ChatReadInbox) incoming()       {}
func (NewMessage) incoming()          {}

func (NewChat) update()         {}
func (ChatLastMessage) update() {}
func (ChatTitle) update()       {}
func (ChatReadInbox) update()   {}
func (NewMessage) update()      {}
