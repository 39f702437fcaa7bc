package ui

import (
	"fmt"
	"slices"
	"strings"

	"charm.land/bubbles/v2/viewport"
	tea "charm.land/bubbletea/v2"
	"charm.land/lipgloss/v2"
	"github.com/charmbracelet/glamour"

	"github.com/danhigham/tgcore/internal/domain"
)

// MessageViewModel shows the open chat, rendering formatted messages with
// glamour.
type MessageViewModel struct {
	viewport viewport.Model
	renderer *glamour.TermRenderer
	focused  bool
	width    int
	height   int

	chatID   int64
	title    string
	messages []domain.Message
	loading  bool // fetching older history
	hasMore  bool // false once history is exhausted
}

func NewMessageViewModel() MessageViewModel {
	return MessageViewModel{viewport: viewport.New()}
}

func (m MessageViewModel) Update(msg tea.Msg) (MessageViewModel, tea.Cmd) {
	if key, ok := msg.(tea.KeyMsg); ok {
		switch key.String() {
		case "j":
			m.viewport.ScrollDown(1)
			return m, nil
		case "k":
			m.viewport.ScrollUp(1)
			return m, m.checkScrollTop()
		}
	}

	var cmd tea.Cmd
	m.viewport, cmd = m.viewport.Update(msg)
	return m, tea.Batch(cmd, m.checkScrollTop())
}

// checkScrollTop asks for older history once the top is reached.
func (m MessageViewModel) checkScrollTop() tea.Cmd {
	if m.viewport.YOffset() != 0 || m.loading || !m.hasMore || len(m.messages) == 0 {
		return nil
	}
	id := m.chatID
	return func() tea.Msg { return LoadOlderHistoryMsg{ChatID: id} }
}

func (m MessageViewModel) View() string {
	content := truncateHeight(m.viewport.View(), max(m.height-2, 0))

	style := lipgloss.NewStyle().
		Border(lipgloss.RoundedBorder()).
		Width(m.width).
		Height(m.height)
	style = applyBorderColor(style, m.focused)
	return style.Render(content)
}

func (m MessageViewModel) SetSize(w, h int) MessageViewModel {
	m.width = w
	m.height = h
	m.viewport.SetWidth(max(w-2, 1))
	m.viewport.SetHeight(max(h-2, 1))
	m = m.recreateRenderer()
	return m.render(true)
}

func (m MessageViewModel) SetFocused(f bool) MessageViewModel {
	m.focused = f
	return m
}

// Open switches to a chat and clears the previous one's messages.
func (m MessageViewModel) Open(chatID int64, title string) MessageViewModel {
	m.chatID = chatID
	m.title = title
	m.messages = nil
	m.hasMore = true
	m.loading = false
	return m.render(true)
}

func (m MessageViewModel) ChatID() int64 { return m.chatID }
func (m MessageViewModel) Title() string { return m.title }

// OldestID returns the id of the oldest loaded message, or 0.
func (m MessageViewModel) OldestID() int {
	if len(m.messages) == 0 {
		return 0
	}
	return m.messages[0].ID
}

func (m MessageViewModel) SetMessages(msgs []domain.Message) MessageViewModel {
	m.messages = msgs
	m.hasMore = len(msgs) > 0
	m.loading = false
	return m.render(true)
}

// Append adds a message that belongs to the open chat, ignoring ids already
// shown.
func (m MessageViewModel) Append(msg domain.Message) MessageViewModel {
	if msg.ChatID != m.chatID {
		return m
	}
	if msg.ID != 0 {
		for _, have := range m.messages {
			if have.ID == msg.ID {
				return m
			}
		}
	}
	atBottom := m.viewport.AtBottom()
	m.messages = append(m.messages, msg)
	return m.render(atBottom)
}

// PrependMessages adds older messages on top and keeps the scroll position.
func (m MessageViewModel) PrependMessages(msgs []domain.Message) MessageViewModel {
	m.loading = false
	m.hasMore = len(msgs) > 0
	if len(msgs) == 0 {
		return m
	}

	before := m.viewport.TotalLineCount()
	m.messages = append(slices.Clone(msgs), m.messages...)
	m = m.render(false)
	m.viewport.SetYOffset(max(m.viewport.TotalLineCount()-before, 0))
	return m
}

func (m MessageViewModel) SetLoading(v bool) MessageViewModel {
	m.loading = v
	return m
}

func (m MessageViewModel) recreateRenderer() MessageViewModel {
	r, err := glamour.NewTermRenderer(
		glamour.WithStylePath("dark"),
		glamour.WithWordWrap(max(m.viewport.Width()-2, 10)),
	)
	if err == nil {
		m.renderer = r
	}
	return m
}

func (m MessageViewModel) render(gotoBottom bool) MessageViewModel {
	var b strings.Builder
	var day string

	for _, msg := range m.messages {
		if d := msg.Date.Format("January 2, 2006"); d != day {
			if day != "" {
				b.WriteString("\n")
			}
			b.WriteString(daySeparatorStyle.Render(fmt.Sprintf("───── %s ─────", d)) + "\n")
			day = d
		}

		ts := timeStyle.Render(msg.Date.Format("15:04"))
		nameStyle := inNameStyle
		if msg.Out {
			nameStyle = outNameStyle
		}
		name := nameStyle.Render(msg.SenderName + ":")

		switch {
		case msg.Markdown != "" && msg.Markdown != msg.Text:
			fmt.Fprintf(&b, "%s %s\n%s\n\n", ts, name, m.renderMarkdown(msg.Markdown))
		case strings.Contains(msg.Text, "\n"):
			fmt.Fprintf(&b, "%s %s\n%s\n\n", ts, name, msg.Text)
		default:
			fmt.Fprintf(&b, "%s %s %s\n", ts, name, msg.Text)
		}
	}

	if len(m.messages) == 0 && m.chatID != 0 {
		b.WriteString(hintStyle.Render("no messages yet"))
	}

	m.viewport.SetContent(lipgloss.NewStyle().Width(m.viewport.Width()).Render(b.String()))
	if gotoBottom {
		m.viewport.GotoBottom()
	}
	return m
}

// renderMarkdown renders text through glamour. Glamour folds single line
// breaks, so ordinary blocks go line by line; fenced code and tables are
// rendered whole.
func (m MessageViewModel) renderMarkdown(text string) string {
	if m.renderer == nil {
		return text
	}

	blocks := strings.Split(text, "\n\n")
	for i, block := range blocks {
		if block == "" {
			continue
		}
		if isMultiLineMarkdown(block) {
			blocks[i] = m.renderBlock(block)
			continue
		}
		lines := strings.Split(block, "\n")
		for j, line := range lines {
			if line != "" {
				lines[j] = m.renderBlock(line)
			}
		}
		blocks[i] = strings.Join(lines, "\n")
	}
	return strings.Join(blocks, "\n")
}

func (m MessageViewModel) renderBlock(text string) string {
	r, err := m.renderer.Render(text)
	if err != nil {
		return text
	}
	return strings.TrimLeft(strings.TrimRight(r, "\n "), "\n")
}

// isMultiLineMarkdown reports whether block must be rendered as one unit.
func isMultiLineMarkdown(block string) bool {
	if !strings.Contains(block, "\n") {
		return false
	}
	trimmed := strings.TrimSpace(block)
	if strings.HasPrefix(trimmed, "```") {
		return true
	}
	for _, line := range strings.Split(trimmed, "\n") {
		if !strings.Contains(line, "|") {
			return false
		}
	}
	return true
}
