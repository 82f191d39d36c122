package application

import (
	"context"

	"github.com/JonMunkholm/activity-import/internal/core"
	tea "github.com/charmbracelet/bubbletea"
)

// ConfirmRequestMsg asks the UI to open a confirmation dialog. The operation
// that asked stays blocked until Answer is called.
type ConfirmRequestMsg struct {
	Prompt core.Prompt
	reply  chan core.Confirmation
}

// Answer delivers the user's choice. It never blocks, even when the asking
// operation has already given up.
func (r ConfirmRequestMsg) Answer(c core.Confirmation) {
	select {
	case r.reply <- c:
	default:
	}
}

// Confirmer is a core.Confirmer whose dialogs are shown by the terminal UI.
// Operations call Confirm from command goroutines; the model receives the
// prompts through Listen.
type Confirmer struct {
	requests chan ConfirmRequestMsg
}

// NewConfirmer creates a Confirmer with no pending prompt.
func NewConfirmer() *Confirmer {
	return &Confirmer{requests: make(chan ConfirmRequestMsg)}
}

// Confirm shows p and waits for the answer or for ctx to end.
func (c *Confirmer) Confirm(ctx context.Context, p core.Prompt) (core.Confirmation, error) {
	req := ConfirmRequestMsg{Prompt: p, reply: make(chan core.Confirmation, 1)}

	select {
	case c.requests <- req:
	case <-ctx.Done():
		return core.Confirmation{}, ctx.Err()
	}

	select {
	case answer := <-req.reply:
		return answer, nil
	case <-ctx.Done():
		return core.Confirmation{}, ctx.Err()
	}
}

// Listen returns a command that waits for the next prompt.
func (c *Confirmer) Listen() tea.Cmd {
	return func() tea.Msg {
		return <-c.requests
	}
}
