package ui

import "charm.land/lipgloss/v2"

const splashArt = `
 _
| |_ __ _  ___ ___  _ __ ___
| __/ _` + "`" + ` |/ __/ _ \| '__/ _ \
| || (_| | (_| (_) | | |  __/
 \__\__, |\___\___/|_|  \___|
    |___/
`

// SplashModel is the startup overlay. It stays up for a minimum time and
// until the session has left the uninitialized state.
type SplashModel struct {
	visible       bool
	timerDone     bool
	started       bool
	width, height int
}

func NewSplashModel() SplashModel {
	return SplashModel{visible: true}
}

func (s SplashModel) SetSize(w, h int) SplashModel {
	s.width = w
	s.height = h
	return s
}

func (s SplashModel) IsVisible() bool { return s.visible }

// TimerDone marks the minimum display time as elapsed.
func (s SplashModel) TimerDone() SplashModel {
	s.timerDone = true
	s.visible = !s.started
	return s
}

// Started marks the session as past its first handshake.
func (s SplashModel) Started() SplashModel {
	s.started = true
	if s.timerDone {
		s.visible = false
	}
	return s
}

func (s SplashModel) View() string {
	if !s.visible || s.width == 0 || s.height == 0 {
		return ""
	}
	return lipgloss.NewStyle().
		Border(lipgloss.RoundedBorder()).
		BorderForeground(highlightColor).
		Padding(1, 3).
		Render(splashArt)
}

// BoxOffset centers the splash box on screen.
func (s SplashModel) BoxOffset() (int, int) {
	return centerOffset(s.View(), s.width, s.height)
}
