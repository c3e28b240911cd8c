package ui

import (
	"time"

	tea "github.com/charmbracelet/bubbletea"
)

const TOAST_DURATION = 5 * time.Second

type toastKind int

const (
	toastInfo toastKind = iota
	toastError
)

// toast is a one-line notification that hides itself after TOAST_DURATION.
type toast struct {
	text string
	kind toastKind
	id   int
}

func (t *toast) show(text string, kind toastKind) tea.Cmd {
	t.id++
	t.text = text
	t.kind = kind
	id := t.id
	return tea.Tick(TOAST_DURATION, func(time.Time) tea.Msg {
		return toastExpiredMsg{id: id}
	})
}

// expire hides the toast unless a newer one replaced it.
func (t *toast) expire(id int) {
	if id == t.id {
		t.text = ""
	}
}

func (t toast) visible() bool {
	return t.text != ""
}

func (t toast) View() string {
	if t.kind == toastError {
		return errorToastStyle.Render("✗ " + t.text)
	}
	return infoToastStyle.Render("✓ " + t.text)
}
