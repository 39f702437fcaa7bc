package ui

import (
	"context"
	"errors"
	"testing"
	"time"

	tea "charm.land/bubbletea/v2"

	"github.com/danhigham/tgcore/internal/domain"
)

type fakeSession struct {
	chats   []domain.Chat
	history []domain.Message
	err     error

	phone, code, password string
	sent                  []string
	historyFrom           []int
	loggedOut             bool
}

func (f *fakeSession) Chats() []domain.Chat { return f.chats }

func (f *fakeSession) SubmitPhoneNumber(_ context.Context, phone string) error {
	f.phone = phone
	return f.err
}

func (f *fakeSession) SubmitCode(_ context.Context, code string) error {
	f.code = code
	return f.err
}

func (f *fakeSession) SubmitPassword(_ context.Context, password string) error {
	f.password = password
	return f.err
}

func (f *fakeSession) SendMessage(_ context.Context, chatID int64, text string) (domain.Message, error) {
	f.sent = append(f.sent, text)
	if f.err != nil {
		return domain.Message{}, f.err
	}
	return domain.Message{ID: len(f.sent), ChatID: chatID, Text: text, Out: true}, nil
}

func (f *fakeSession) ChatHistory(_ context.Context, chatID int64, from, limit int) ([]domain.Message, error) {
	f.historyFrom = append(f.historyFrom, from)
	return f.history, f.err
}

func (f *fakeSession) LogOut(context.Context) error {
	f.loggedOut = true
	return f.err
}

func update(t *testing.T, m Model, msg tea.Msg) (Model, tea.Cmd) {
	t.Helper()
	next, cmd := m.Update(msg)
	model, ok := next.(Model)
	if !ok {
		t.Fatalf("Update() returned %T, want Model", next)
	}
	return model, cmd
}

func TestModel_CachedChatsUntilLive(t *testing.T) {
	s := &fakeSession{}
	cached := []domain.Chat{{ID: 1, Title: "cached"}}
	m := NewModel(s, cached)

	m, _ = update(t, m, ChatsChangedMsg{})
	if title, ok := m.chatList.Title(1); !ok || title != "cached" {
		t.Errorf("Title(1) = %q, %v, want cached", title, ok)
	}

	s.chats = []domain.Chat{{ID: 2, Title: "live"}, {ID: 3, Title: "other"}}
	m, _ = update(t, m, ChatsChangedMsg{})
	if _, ok := m.chatList.Title(1); ok {
		t.Error("cached chat still listed after live chats arrived")
	}
	if m.chatList.Len() != 2 {
		t.Errorf("Len() = %d, want 2", m.chatList.Len())
	}
	if m.status.chats != 2 {
		t.Errorf("status chats = %d, want 2", m.status.chats)
	}
}

func TestModel_AuthPromptFollowsState(t *testing.T) {
	m := NewModel(&fakeSession{}, nil)

	tests := []struct {
		kind    domain.AuthStateKind
		visible bool
	}{
		{domain.AuthUninitialized, false},
		{domain.AuthAwaitingPhoneNumber, true},
		{domain.AuthAwaitingCode, true},
		{domain.AuthAwaitingPassword, true},
		{domain.AuthReady, false},
	}
	for _, tt := range tests {
		m, _ = update(t, m, AuthStateMsg{State: domain.StateOf(tt.kind)})
		if got := m.auth.IsVisible(); got != tt.visible {
			t.Errorf("%v: auth visible = %v, want %v", tt.kind, got, tt.visible)
		}
		if m.status.state.Kind != tt.kind {
			t.Errorf("%v: status state = %v", tt.kind, m.status.state)
		}
	}
}

func TestModel_ClosedQuits(t *testing.T) {
	m := NewModel(&fakeSession{}, nil)
	_, cmd := update(t, m, AuthStateMsg{State: domain.StateOf(domain.AuthClosed)})
	if cmd == nil {
		t.Fatal("no command after closed")
	}
	if _, ok := cmd().(tea.QuitMsg); !ok {
		t.Error("closed state did not quit")
	}
}

func TestModel_SubmitCredential(t *testing.T) {
	tests := []struct {
		kind domain.AuthStateKind
		get  func(*fakeSession) string
	}{
		{domain.AuthAwaitingPhoneNumber, func(s *fakeSession) string { return s.phone }},
		{domain.AuthAwaitingCode, func(s *fakeSession) string { return s.code }},
		{domain.AuthAwaitingPassword, func(s *fakeSession) string { return s.password }},
	}
	for _, tt := range tests {
		s := &fakeSession{}
		m := NewModel(s, nil)
		_, cmd := update(t, m, authSubmitMsg{kind: tt.kind, value: "12345"})
		if cmd == nil {
			t.Fatalf("%v: no command", tt.kind)
		}
		res, ok := cmd().(authResultMsg)
		if !ok || res.err != nil {
			t.Errorf("%v: result = %#v, want nil error", tt.kind, res)
		}
		if got := tt.get(s); got != "12345" {
			t.Errorf("%v: submitted %q, want 12345", tt.kind, got)
		}
	}
}

func TestModel_SubmitErrorShown(t *testing.T) {
	s := &fakeSession{err: errors.New("PHONE_CODE_INVALID")}
	m := NewModel(s, nil)
	m, _ = update(t, m, AuthStateMsg{State: domain.StateOf(domain.AuthAwaitingCode)})

	_, cmd := update(t, m, authSubmitMsg{kind: domain.AuthAwaitingCode, value: "1"})
	m, _ = update(t, m, cmd())
	if m.auth.err != "PHONE_CODE_INVALID" {
		t.Errorf("auth error = %q, want PHONE_CODE_INVALID", m.auth.err)
	}
	if !m.auth.IsVisible() {
		t.Error("prompt hidden after a rejected code")
	}
}

func TestModel_SelectChatLoadsHistory(t *testing.T) {
	now := time.Now()
	s := &fakeSession{
		chats: []domain.Chat{{ID: 5, Title: "five"}},
		history: []domain.Message{
			{ID: 10, ChatID: 5, Text: "a", Date: now},
			{ID: 11, ChatID: 5, Text: "b", Date: now},
		},
	}
	m := NewModel(s, nil)
	m, _ = update(t, m, ChatsChangedMsg{})

	m, cmd := update(t, m, ChatSelectedMsg{ChatID: 5})
	if m.messageView.ChatID() != 5 || m.messageView.Title() != "five" {
		t.Errorf("open chat = %d %q, want 5 five", m.messageView.ChatID(), m.messageView.Title())
	}
	if m.focus != focusInput {
		t.Errorf("focus = %v, want input", m.focus)
	}

	m, _ = update(t, m, cmd())
	if got := m.messageView.OldestID(); got != 10 {
		t.Errorf("OldestID() = %d, want 10", got)
	}

	// Older pages start from the oldest loaded message.
	s.history = []domain.Message{{ID: 9, ChatID: 5, Text: "z", Date: now}}
	m, cmd = update(t, m, LoadOlderHistoryMsg{ChatID: 5})
	m, _ = update(t, m, cmd())
	if got := m.messageView.OldestID(); got != 9 {
		t.Errorf("OldestID() = %d, want 9", got)
	}
	if want := []int{0, 10}; len(s.historyFrom) != 2 || s.historyFrom[1] != want[1] {
		t.Errorf("history requested from %v, want %v", s.historyFrom, want)
	}
}

func TestModel_HistoryForOtherChatIgnored(t *testing.T) {
	m := NewModel(&fakeSession{}, nil)
	m, _ = update(t, m, ChatSelectedMsg{ChatID: 1})
	m, _ = update(t, m, HistoryLoadedMsg{ChatID: 2, Messages: []domain.Message{{ID: 4, ChatID: 2}}})
	if got := m.messageView.OldestID(); got != 0 {
		t.Errorf("OldestID() = %d, want 0", got)
	}
}

func TestModel_NewMessageAppendsOnce(t *testing.T) {
	m := NewModel(&fakeSession{}, nil)
	m, _ = update(t, m, ChatSelectedMsg{ChatID: 3})

	msg := domain.Message{ID: 1, ChatID: 3, Text: "hi", Date: time.Now()}
	m, _ = update(t, m, NewMessageMsg{Message: msg})
	m, _ = update(t, m, NewMessageMsg{Message: msg})
	m, _ = update(t, m, NewMessageMsg{Message: domain.Message{ID: 2, ChatID: 4, Text: "elsewhere"}})

	if n := len(m.messageView.messages); n != 1 {
		t.Errorf("messages = %d, want 1", n)
	}
}

func TestModel_SendMessage(t *testing.T) {
	s := &fakeSession{}
	m := NewModel(s, nil)

	if _, cmd := update(t, m, sendMessageMsg{text: "nowhere"}); cmd != nil {
		t.Error("send without an open chat produced a command")
	}

	m, _ = update(t, m, ChatSelectedMsg{ChatID: 8})
	_, cmd := update(t, m, sendMessageMsg{text: "hello"})
	if cmd == nil {
		t.Fatal("no send command")
	}
	if res := cmd(); res != nil {
		t.Errorf("send result = %#v, want nil", res)
	}
	if len(s.sent) != 1 || s.sent[0] != "hello" {
		t.Errorf("sent = %v, want [hello]", s.sent)
	}

	s.err = errors.New("CHAT_WRITE_FORBIDDEN")
	_, cmd = update(t, m, sendMessageMsg{text: "again"})
	errMsg, ok := cmd().(ErrorMsg)
	if !ok {
		t.Fatal("failed send did not report an error")
	}
	m, _ = update(t, m, errMsg)
	if m.status.note == "" {
		t.Error("status note empty after error")
	}
}

func TestApp_DeliversInOrder(t *testing.T) {
	got := make(chan tea.Msg, 256)
	a := newApp(nil, func(msg tea.Msg) { got <- msg })
	defer a.events.Close()

	const n = 200
	for i := 1; i <= n; i++ {
		a.MessageArrived(domain.Message{ID: i, ChatID: 1})
	}
	for want := 1; want <= n; want++ {
		select {
		case msg := <-got:
			nm, ok := msg.(NewMessageMsg)
			if !ok || nm.Message.ID != want {
				t.Fatalf("delivered %#v, want message %d", msg, want)
			}
		case <-time.After(time.Second):
			t.Fatalf("message %d not delivered", want)
		}
	}
}

func TestApp_FollowStartsWithCurrentState(t *testing.T) {
	got := make(chan tea.Msg, 8)
	a := newApp(nil, func(msg tea.Msg) { got <- msg })
	defer a.events.Close()

	later := func(yield func(domain.AuthState) bool) {
		for _, k := range []domain.AuthStateKind{domain.AuthAwaitingCode, domain.AuthReady} {
			if !yield(domain.StateOf(k)) {
				return
			}
		}
	}
	a.Follow(domain.StateOf(domain.AuthAwaitingPhoneNumber), later)

	want := []domain.AuthStateKind{domain.AuthAwaitingPhoneNumber, domain.AuthAwaitingCode, domain.AuthReady}
	for _, k := range want {
		select {
		case msg := <-got:
			if as, ok := msg.(AuthStateMsg); !ok || as.State.Kind != k {
				t.Fatalf("delivered %#v, want %v", msg, k)
			}
		case <-time.After(time.Second):
			t.Fatalf("state %v not delivered", k)
		}
	}
}
