package ui

import (
	"fmt"
	"strings"
	"time"

	"charm.land/lipgloss/v2"

	"github.com/danhigham/tgcore/internal/domain"
)

var (
	statusBarBg     = lipgloss.Color("#353533")
	statusPillBg    = lipgloss.Color("#FF5FAF")
	statusPillBgOff = lipgloss.Color("#6C5098")
	statusTimeBg    = lipgloss.Color("#6124DF")
	statusCountBg   = lipgloss.Color("#7B5EA7")
)

// statusModel is the one-line bar at the bottom of the screen:
// [auth state] [chat title] ... [chat count] [time]
type statusModel struct {
	state     domain.AuthState
	note      string // transient message, such as the last error
	chatTitle string
	chats     int
	width     int
}

func newStatusModel() statusModel {
	return statusModel{state: domain.StateOf(domain.AuthUninitialized)}
}

func (m statusModel) pillText() string {
	if m.note != "" {
		return m.note
	}
	switch m.state.Kind {
	case domain.AuthUninitialized:
		return "connecting"
	case domain.AuthReady:
		return "online"
	case domain.AuthFailed:
		return "failed: " + m.state.Reason
	default:
		return strings.ReplaceAll(m.state.Kind.String(), "_", " ")
	}
}

func (m statusModel) View() string {
	pillBg := statusPillBgOff
	if m.state.Kind == domain.AuthReady && m.note == "" {
		pillBg = statusPillBg
	}
	pill := lipgloss.NewStyle().
		Background(pillBg).
		Foreground(lipgloss.Color("#FFFFFF")).
		Bold(true).
		Padding(0, 1).
		Render(strings.ToUpper(m.pillText()))

	title := lipgloss.NewStyle().
		Background(statusBarBg).
		Foreground(lipgloss.Color("#FFFFFF")).
		Bold(true).
		Padding(0, 1).
		Render(m.chatTitle)

	count := lipgloss.NewStyle().
		Background(statusCountBg).
		Foreground(lipgloss.Color("#FFFFFF")).
		Padding(0, 1).
		Render(pluralChats(m.chats))

	clock := lipgloss.NewStyle().
		Background(statusTimeBg).
		Foreground(lipgloss.Color("#FFFFFF")).
		Bold(true).
		Padding(0, 1).
		Render(time.Now().Format("15:04"))

	left := pill + title
	right := count + clock
	gap := max(m.width-lipgloss.Width(left)-lipgloss.Width(right), 0)
	filler := lipgloss.NewStyle().Background(statusBarBg).Render(strings.Repeat(" ", gap))

	return lipgloss.NewStyle().
		Background(statusBarBg).
		MaxWidth(m.width).
		Render(left + filler + right)
}

func pluralChats(n int) string {
	if n == 1 {
		return "1 chat"
	}
	return fmt.Sprintf("%d chats", n)
}
