package ui

import (
	"strings"

	"charm.land/bubbles/v2/textinput"
	tea "charm.land/bubbletea/v2"
	"charm.land/lipgloss/v2"

	"github.com/danhigham/tgcore/internal/domain"
)

// AuthModel prompts for whichever credential the session is waiting for.
type AuthModel struct {
	input   textinput.Model
	kind    domain.AuthStateKind
	visible bool
	busy    bool
	err     string

	width, height int
}

func NewAuthModel() AuthModel {
	ti := textinput.New()
	ti.CharLimit = 64
	return AuthModel{input: ti}
}

// promptFor returns the title and placeholder for an awaiting state, or
// false if the state needs no input.
func promptFor(kind domain.AuthStateKind) (title, placeholder string, ok bool) {
	switch kind {
	case domain.AuthAwaitingPhoneNumber:
		return "Phone number", "+15550100", true
	case domain.AuthAwaitingCode:
		return "Login code", "12345", true
	case domain.AuthAwaitingPassword:
		return "Two-step password", "", true
	default:
		return "", "", false
	}
}

// Show opens the prompt for kind, or hides it when kind needs no input.
func (m AuthModel) Show(kind domain.AuthStateKind) (AuthModel, tea.Cmd) {
	_, placeholder, ok := promptFor(kind)
	if !ok {
		m.visible = false
		m.input.Blur()
		return m, nil
	}

	m.kind = kind
	m.visible = true
	m.busy = false
	m.err = ""
	m.input.Reset()
	m.input.Placeholder = placeholder
	m.input.EchoMode = textinput.EchoNormal
	if kind == domain.AuthAwaitingPassword {
		m.input.EchoMode = textinput.EchoPassword
	}
	return m, m.input.Focus()
}

func (m AuthModel) IsVisible() bool { return m.visible }

// Result records the outcome of the last submission.
func (m AuthModel) Result(err error) AuthModel {
	m.busy = false
	if err != nil {
		m.err = err.Error()
		m.input.Reset()
	}
	return m
}

func (m AuthModel) SetSize(w, h int) AuthModel {
	m.width = w
	m.height = h
	return m
}

func (m AuthModel) Update(msg tea.Msg) (AuthModel, tea.Cmd) {
	if key, ok := msg.(tea.KeyMsg); ok && key.String() == "enter" {
		if m.busy {
			return m, nil
		}
		value := m.input.Value()
		if m.kind != domain.AuthAwaitingPassword {
			value = strings.TrimSpace(value)
		}
		if value == "" {
			m.err = "a value is required"
			return m, nil
		}
		m.busy = true
		m.err = ""
		kind := m.kind
		return m, func() tea.Msg { return authSubmitMsg{kind: kind, value: value} }
	}

	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)
	return m, cmd
}

func (m AuthModel) View() string {
	if !m.visible {
		return ""
	}
	title, _, _ := promptFor(m.kind)

	var b strings.Builder
	b.WriteString(lipgloss.NewStyle().Bold(true).Render(title))
	b.WriteString("\n\n")
	b.WriteString(m.input.View())
	b.WriteString("\n\n")
	switch {
	case m.busy:
		b.WriteString(hintStyle.Render("checking..."))
	case m.err != "":
		b.WriteString(errorStyle.Render(m.err))
	default:
		b.WriteString(hintStyle.Render("enter to submit, ctrl+c to quit"))
	}

	box := lipgloss.NewStyle().
		Border(lipgloss.RoundedBorder()).
		BorderForegroundBlend(rainbowBlend...).
		Padding(1, 3).
		Width(48).
		Render(b.String())
	return lipgloss.Place(m.width, m.height, lipgloss.Center, lipgloss.Center, box)
}
