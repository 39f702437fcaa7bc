package ui

import "charm.land/lipgloss/v2"

// HelpModel is the keyboard shortcut overlay.
type HelpModel struct {
	visible       bool
	width, height int
}

func NewHelpModel() HelpModel { return HelpModel{} }

func (h HelpModel) IsVisible() bool { return h.visible }

func (h HelpModel) Toggle() HelpModel {
	h.visible = !h.visible
	return h
}

func (h HelpModel) SetSize(w, ht int) HelpModel {
	h.width = w
	h.height = ht
	return h
}

const helpText = ` Keyboard Shortcuts

 General
   Ctrl+C        Quit
   F1            Toggle this help
   Tab           Next pane
   Shift+Tab     Previous pane
   Esc           Back to chat list
   Ctrl+L        Log out

 Chat List
   j/k / ↑/↓     Navigate chats
   Enter         Open chat
   /             Filter chats

 Messages
   j / k         Scroll down / up
   PgUp / PgDn   Page scroll

 Input
   Enter         Send message

 Press F1 or Esc to close`

func (h HelpModel) View() string {
	if !h.visible || h.width == 0 || h.height == 0 {
		return ""
	}
	return lipgloss.NewStyle().
		Border(lipgloss.RoundedBorder()).
		Padding(1, 3).
		BorderForegroundBlend(rainbowBlend...).
		Render(helpText)
}

func (h HelpModel) BoxOffset() (int, int) {
	return centerOffset(h.View(), h.width, h.height)
}

// centerOffset returns the top-left corner that centers box on a w by h
// screen.
func centerOffset(box string, w, h int) (int, int) {
	x := max((w-lipgloss.Width(box))/2, 0)
	y := max((h-lipgloss.Height(box))/2, 0)
	return x, y
}
