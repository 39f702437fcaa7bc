package ui

import (
	"fmt"
	"io"
	"time"

	"charm.land/bubbles/v2/list"
	tea "charm.land/bubbletea/v2"
	"charm.land/lipgloss/v2"

	"github.com/danhigham/tgcore/internal/domain"
)

type chatItem struct {
	chat domain.Chat
}

func (i chatItem) FilterValue() string { return i.chat.Title }

func (i chatItem) preview() string {
	m := i.chat.LastMessage
	if m == nil {
		return ""
	}
	text := firstLine(m.Text)
	if m.Out {
		text = "You: " + text
	} else if m.SenderName != "" && m.SenderName != i.chat.Title {
		text = m.SenderName + ": " + text
	}
	return text
}

func (i chatItem) stamp(now time.Time) string {
	m := i.chat.LastMessage
	if m == nil || m.Date.IsZero() {
		return ""
	}
	d := m.Date.In(now.Location())
	if d.Year() == now.Year() && d.YearDay() == now.YearDay() {
		return d.Format("15:04")
	}
	return d.Format("Jan 2")
}

// chatItemDelegate renders a chat as a title line and a preview line.
type chatItemDelegate struct{}

func (d chatItemDelegate) Height() int                             { return 2 }
func (d chatItemDelegate) Spacing() int                            { return 1 }
func (d chatItemDelegate) Update(_ tea.Msg, _ *list.Model) tea.Cmd { return nil }

func (d chatItemDelegate) Render(w io.Writer, m list.Model, index int, item list.Item) {
	ci, ok := item.(chatItem)
	if !ok {
		return
	}

	title := ci.chat.Title
	if n := ci.chat.UnreadCount; n > 0 {
		title = fmt.Sprintf("%s (%d)", title, n)
	}
	stamp := ci.stamp(time.Now())

	// Leave room for the cursor prefix.
	contentWidth := max(m.Width()-2, 1)
	titleWidth := max(contentWidth-lipgloss.Width(stamp)-1, 1)

	titleStyle := lipgloss.NewStyle().MaxWidth(titleWidth).MaxHeight(1)
	descStyle := lipgloss.NewStyle().MaxWidth(contentWidth).MaxHeight(1).Foreground(lipgloss.Color("240"))

	cursor := "  "
	if index == m.Index() {
		cursor = "> "
		titleStyle = titleStyle.Foreground(lipgloss.Color("170")).Bold(true)
		descStyle = descStyle.Foreground(lipgloss.Color("250"))
	}
	if ci.chat.UnreadCount > 0 {
		titleStyle = titleStyle.Bold(true)
	}

	head := titleStyle.Render(title)
	if stamp != "" {
		gap := max(contentWidth-lipgloss.Width(head)-lipgloss.Width(stamp), 1)
		head += fmt.Sprintf("%*s", gap, "") + timeStyle.Render(stamp)
	}
	fmt.Fprintf(w, "%s%s\n  %s", cursor, head, descStyle.Render(ci.preview()))
}

// ChatListModel wraps bubbles/list for the chat sidebar.
type ChatListModel struct {
	list    list.Model
	focused bool
	width   int
	height  int
}

func NewChatListModel() ChatListModel {
	l := list.New(nil, chatItemDelegate{}, 0, 0)
	l.SetShowTitle(false)
	l.SetShowStatusBar(false)
	l.SetShowHelp(false)
	l.SetFilteringEnabled(true)
	l.DisableQuitKeybindings()
	return ChatListModel{list: l}
}

func (m ChatListModel) Update(msg tea.Msg) (ChatListModel, tea.Cmd) {
	if key, ok := msg.(tea.KeyMsg); ok && key.String() == "enter" && m.list.FilterState() != list.Filtering {
		if item, ok := m.list.SelectedItem().(chatItem); ok {
			id := item.chat.ID
			return m, func() tea.Msg { return ChatSelectedMsg{ChatID: id} }
		}
		return m, nil
	}

	var cmd tea.Cmd
	m.list, cmd = m.list.Update(msg)
	return m, cmd
}

func (m ChatListModel) View() string {
	content := truncateHeight(m.list.View(), max(m.height-2, 0))

	style := lipgloss.NewStyle().
		Border(lipgloss.RoundedBorder()).
		Width(m.width).
		Height(m.height)
	style = applyBorderColor(style, m.focused)
	return style.Render(content)
}

// WithItems replaces the list, keeping the cursor on the same chat when it
// is still present.
func (m ChatListModel) WithItems(chats []domain.Chat) ChatListModel {
	var selected int64
	if item, ok := m.list.SelectedItem().(chatItem); ok {
		selected = item.chat.ID
	}

	items := make([]list.Item, len(chats))
	cursor := -1
	for i, c := range chats {
		items[i] = chatItem{chat: c}
		if c.ID == selected {
			cursor = i
		}
	}
	m.list.SetItems(items)
	if cursor >= 0 {
		m.list.Select(cursor)
	}
	return m
}

// Title returns the title of chat id, if listed.
func (m ChatListModel) Title(id int64) (string, bool) {
	for _, it := range m.list.Items() {
		if ci, ok := it.(chatItem); ok && ci.chat.ID == id {
			return ci.chat.Title, true
		}
	}
	return "", false
}

func (m ChatListModel) Len() int { return len(m.list.Items()) }

func (m ChatListModel) SetSize(w, h int) ChatListModel {
	m.width = w
	m.height = h
	m.list.SetSize(max(w-2, 1), max(h-2, 1))
	return m
}

func (m ChatListModel) SetFocused(f bool) ChatListModel {
	m.focused = f
	return m
}
