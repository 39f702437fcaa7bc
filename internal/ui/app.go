// Package ui is the terminal front end: an auth prompt, the chat list, the
// open chat and a composer.
package ui

import (
	"context"
	"fmt"
	"iter"
	"time"

	tea "charm.land/bubbletea/v2"
	"charm.land/lipgloss/v2"

	"github.com/danhigham/tgcore/internal/domain"
	"github.com/danhigham/tgcore/internal/queue"
)

// Session is what the UI needs from the client core.
type Session interface {
	Chats() []domain.Chat
	SubmitPhoneNumber(ctx context.Context, phone string) error
	SubmitCode(ctx context.Context, code string) error
	SubmitPassword(ctx context.Context, password string) error
	SendMessage(ctx context.Context, chatID int64, text string) (domain.Message, error)
	ChatHistory(ctx context.Context, chatID int64, fromMessageID, limit int) ([]domain.Message, error)
	LogOut(ctx context.Context) error
}

type focusTarget int

const (
	focusChatList focusTarget = iota
	focusMessages
	focusInput
)

const (
	chatListWidth       = 36
	inputRenderedHeight = 3
	statusHeight        = 1
	historyPage         = 50
)

// Model is the root Bubble Tea model.
type Model struct {
	chatList    ChatListModel
	messageView MessageViewModel
	input       InputModel
	auth        AuthModel
	status      statusModel
	splash      SplashModel
	help        HelpModel

	session Session
	// cached is shown until the live registry has chats.
	cached []domain.Chat

	focus  focusTarget
	width  int
	height int
}

func NewModel(session Session, cached []domain.Chat) Model {
	return Model{
		chatList:    NewChatListModel(),
		messageView: NewMessageViewModel(),
		input:       NewInputModel(),
		auth:        NewAuthModel(),
		status:      newStatusModel(),
		splash:      NewSplashModel(),
		help:        NewHelpModel(),
		session:     session,
		cached:      cached,
		focus:       focusChatList,
	}
}

func (m Model) Init() tea.Cmd {
	return tea.Batch(
		func() tea.Msg { return ChatsChangedMsg{} },
		tea.Tick(2*time.Second, func(time.Time) tea.Msg { return SplashDoneMsg{} }),
	)
}

func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		return m.distributeSize(), nil

	case ChatsChangedMsg:
		chats := m.session.Chats()
		if len(chats) == 0 {
			chats = m.cached
		}
		m.chatList = m.chatList.WithItems(chats)
		m.status.chats = len(chats)
		return m, nil

	case AuthStateMsg:
		return m.applyAuthState(msg.State)

	case authSubmitMsg:
		return m, m.submitCredential(msg)

	case authResultMsg:
		m.auth = m.auth.Result(msg.err)
		return m, nil

	case ChatSelectedMsg:
		title, _ := m.chatList.Title(msg.ChatID)
		m.messageView = m.messageView.Open(msg.ChatID, title)
		m.status.chatTitle = title
		m.focus = focusInput
		m = m.updateFocus()
		return m, m.loadHistory(msg.ChatID)

	case HistoryLoadedMsg:
		if msg.ChatID == m.messageView.ChatID() {
			m.messageView = m.messageView.SetMessages(msg.Messages)
		}
		return m, nil

	case LoadOlderHistoryMsg:
		oldest := m.messageView.OldestID()
		if msg.ChatID != m.messageView.ChatID() || oldest == 0 {
			return m, nil
		}
		m.messageView = m.messageView.SetLoading(true)
		return m, m.loadOlderHistory(msg.ChatID, oldest)

	case OlderHistoryLoadedMsg:
		if msg.ChatID == m.messageView.ChatID() {
			m.messageView = m.messageView.PrependMessages(msg.Messages)
		}
		return m, nil

	case NewMessageMsg:
		m.messageView = m.messageView.Append(msg.Message)
		return m, nil

	case sendMessageMsg:
		chatID := m.messageView.ChatID()
		if chatID == 0 {
			return m, nil
		}
		session, text := m.session, msg.text
		return m, func() tea.Msg {
			// The sent message comes back through MessageArrived.
			if _, err := session.SendMessage(context.Background(), chatID, text); err != nil {
				return ErrorMsg{Err: err}
			}
			return nil
		}

	case ErrorMsg:
		m.status.note = fmt.Sprintf("error: %v", msg.Err)
		return m, nil

	case SplashDoneMsg:
		m.splash = m.splash.TimerDone()
		return m, nil

	case tea.KeyMsg:
		return m.handleKey(msg)
	}

	return m, nil
}

func (m Model) applyAuthState(s domain.AuthState) (tea.Model, tea.Cmd) {
	m.status.state = s
	m.status.note = ""
	if s.Kind != domain.AuthUninitialized {
		m.splash = m.splash.Started()
	}

	var cmd tea.Cmd
	m.auth, cmd = m.auth.Show(s.Kind)

	switch s.Kind {
	case domain.AuthReady:
		m.focus = focusChatList
		m = m.updateFocus()
	case domain.AuthClosed:
		return m, tea.Quit
	}
	return m, cmd
}

func (m Model) submitCredential(msg authSubmitMsg) tea.Cmd {
	session := m.session
	return func() tea.Msg {
		ctx := context.Background()
		var err error
		switch msg.kind {
		case domain.AuthAwaitingPhoneNumber:
			err = session.SubmitPhoneNumber(ctx, msg.value)
		case domain.AuthAwaitingCode:
			err = session.SubmitCode(ctx, msg.value)
		case domain.AuthAwaitingPassword:
			err = session.SubmitPassword(ctx, msg.value)
		}
		return authResultMsg{err: err}
	}
}

func (m Model) loadHistory(chatID int64) tea.Cmd {
	session := m.session
	return func() tea.Msg {
		history, err := session.ChatHistory(context.Background(), chatID, 0, historyPage)
		if err != nil {
			return ErrorMsg{Err: err}
		}
		return HistoryLoadedMsg{ChatID: chatID, Messages: history}
	}
}

func (m Model) loadOlderHistory(chatID int64, fromID int) tea.Cmd {
	session := m.session
	return func() tea.Msg {
		history, err := session.ChatHistory(context.Background(), chatID, fromID, historyPage)
		if err != nil {
			return ErrorMsg{Err: err}
		}
		return OlderHistoryLoadedMsg{ChatID: chatID, Messages: history}
	}
}

func (m Model) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	key := msg.String()
	if key == "ctrl+c" {
		return m, tea.Quit
	}
	if m.splash.IsVisible() {
		return m, nil
	}
	if m.help.IsVisible() {
		if key == "f1" || key == "esc" {
			m.help = m.help.Toggle()
		}
		return m, nil
	}
	if m.auth.IsVisible() {
		var cmd tea.Cmd
		m.auth, cmd = m.auth.Update(msg)
		return m, cmd
	}

	switch key {
	case "f1":
		m.help = m.help.Toggle()
		return m, nil
	case "ctrl+l":
		session := m.session
		return m, func() tea.Msg {
			if err := session.LogOut(context.Background()); err != nil {
				return ErrorMsg{Err: err}
			}
			return nil
		}
	case "q":
		if m.focus != focusInput {
			return m, tea.Quit
		}
	case "tab":
		m.focus = (m.focus + 1) % 3
		return m.updateFocus(), nil
	case "shift+tab":
		m.focus = (m.focus + 2) % 3
		return m.updateFocus(), nil
	case "esc":
		m.focus = focusChatList
		return m.updateFocus(), nil
	}

	var cmd tea.Cmd
	switch m.focus {
	case focusChatList:
		m.chatList, cmd = m.chatList.Update(msg)
	case focusMessages:
		m.messageView, cmd = m.messageView.Update(msg)
	case focusInput:
		m.input, cmd = m.input.Update(msg)
	}
	return m, cmd
}

func (m Model) View() tea.View {
	v := tea.NewView("")
	v.AltScreen = true

	if m.width == 0 || m.height == 0 {
		return v
	}

	if m.auth.IsVisible() {
		v.SetContent(lipgloss.JoinVertical(lipgloss.Left,
			m.auth.View(),
			m.statusView(),
		))
		return v
	}

	right := lipgloss.JoinVertical(lipgloss.Left, m.messageView.View(), m.input.View())
	body := lipgloss.JoinHorizontal(lipgloss.Top, m.chatList.View(), right)
	full := lipgloss.JoinVertical(lipgloss.Left, body, m.statusView())

	content := lipgloss.NewStyle().
		MaxWidth(m.width).
		MaxHeight(m.height).
		Render(full)

	var overlay string
	var x, y int
	switch {
	case m.splash.IsVisible():
		overlay = m.splash.View()
		x, y = m.splash.BoxOffset()
	case m.help.IsVisible():
		overlay = m.help.View()
		x, y = m.help.BoxOffset()
	}
	if overlay == "" {
		v.SetContent(content)
		return v
	}

	bg := lipgloss.NewLayer(content)
	fg := lipgloss.NewLayer(overlay).X(x).Y(y).Z(1)
	v.SetContent(lipgloss.NewCompositor(bg, fg).Render())
	return v
}

func (m Model) statusView() string {
	s := m.status
	s.width = m.width
	return s.View()
}

func (m Model) distributeSize() Model {
	contentHeight := max(m.height-statusHeight, 1)

	clWidth := min(chatListWidth, m.width)
	m.chatList = m.chatList.SetSize(clWidth, contentHeight)

	rightWidth := max(m.width-clWidth, 1)
	messagesHeight := max(contentHeight-inputRenderedHeight, 1)
	m.messageView = m.messageView.SetSize(rightWidth, messagesHeight)
	m.input = m.input.SetSize(rightWidth, inputRenderedHeight)

	m.auth = m.auth.SetSize(m.width, contentHeight)
	m.splash = m.splash.SetSize(m.width, m.height)
	m.help = m.help.SetSize(m.width, m.height)
	return m
}

func (m Model) updateFocus() Model {
	m.chatList = m.chatList.SetFocused(m.focus == focusChatList)
	m.messageView = m.messageView.SetFocused(m.focus == focusMessages)
	m.input = m.input.SetFocused(m.focus == focusInput)
	return m
}

// App wraps the Bubble Tea program for external use. Messages handed to it
// reach the event loop in the order they were sent.
type App struct {
	program *tea.Program
	events  *queue.Queue[tea.Msg]
	deliver func(tea.Msg)
}

func NewApp(session Session, cached []domain.Chat) *App {
	p := tea.NewProgram(NewModel(session, cached))
	return newApp(p, p.Send)
}

func newApp(p *tea.Program, deliver func(tea.Msg)) *App {
	a := &App{program: p, events: queue.New[tea.Msg](), deliver: deliver}
	go a.forward()
	return a
}

// forward is the only goroutine that calls deliver.
func (a *App) forward() {
	for msg := range a.events.All(context.Background()) {
		a.deliver(msg)
	}
}

// Run starts the event loop and blocks until quit.
func (a *App) Run() error {
	defer a.events.Close()
	_, err := a.program.Run()
	return err
}

// Send queues msg for the event loop. It never blocks.
func (a *App) Send(msg tea.Msg) {
	a.events.Push(msg)
}

// Follow forwards current and then every later state until states ends.
// states must be subscribed before current is read.
func (a *App) Follow(current domain.AuthState, states iter.Seq[domain.AuthState]) {
	a.Send(AuthStateMsg{State: current})
	for s := range states {
		a.Send(AuthStateMsg{State: s})
	}
}

// ChatsChanged is a registry change hook.
func (a *App) ChatsChanged() {
	a.Send(ChatsChangedMsg{})
}

// MessageArrived is a new-message hook.
func (a *App) MessageArrived(msg domain.Message) {
	a.Send(NewMessageMsg{Message: msg})
}
