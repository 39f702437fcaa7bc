package domain

// Request is an outbound message for the backend. The set of requests is
// closed: only types in this package implement it.
type Request interface {
	Kind() string
	request()
}

type SetParameters struct {
	APIID              int
	APIHash            string
	DatabaseDirectory  string
	DeviceModel        string
	SystemLanguageCode string
	ApplicationVersion string
}

type CheckEncryptionKey struct {
	Key []byte
}

type SetPhoneNumber struct {
	PhoneNumber string
}

type CheckCode struct {
	Code string
}

type CheckPassword struct {
	Password string
}

// LoadChats asks for the first Limit chats of the main chat list.
type LoadChats struct {
	Limit int
}

type GetChat struct {
	ChatID int64
}

// GetChatHistory returns up to Limit messages older than FromMessageID, or
// the newest ones when FromMessageID is zero.
type GetChatHistory struct {
	ChatID        int64
	FromMessageID int
	Limit         int
}

type SendMessage struct {
	ChatID int64
	Text   string
}

type LogOut struct{}

type Close struct{}

func (SetParameters) Kind() string      { return "set_parameters" }
func (CheckEncryptionKey) Kind() string { return "check_encryption_key" }
func (SetPhoneNumber) Kind() string     { return "set_phone_number" }
func (CheckCode) Kind() string          { return "check_code" }
func (CheckPassword) Kind() string      { return "check_password" }
func (LoadChats) Kind() string          { return "load_chats" }
func (GetChat) Kind() string            { return "get_chat" }
func (GetChatHistory) Kind() string     { return "get_chat_history" }
func (SendMessage) Kind() string        { return "send_message" }
func (LogOut) Kind() string             { return "log_out" }
func (Close) Kind() string              { return "close" }

func (SetParameters) request()      {}
func (CheckEncryptionKey) request() {}
func (SetPhoneNumber) request()     {}
func (CheckCode) request()          {}
func (CheckPassword) request()      {}
func (LoadChats) request()          {}
func (GetChat) request()            {}
func (GetChatHistory) request()     {}
func (SendMessage) request()        {}
func (LogOut) request()             {}
func (Close) request()              {}

// Result is the payload of a successful response.
type Result interface {
	result()
}

type OK struct{}

type ChatIDs struct {
	IDs []int64
}

type ChatResult struct {
	Chat Chat
}

type Messages struct {
	Messages []Message
}

type MessageResult struct {
	Message Message
}

func (OK) result()            {}
func (ChatIDs) result()       {}
func (ChatResult) result()    {}
func (Messages) result()      {}
func (MessageResult) result() {}
