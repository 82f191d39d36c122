// Package admin provides the bulk deletions of the terminal importer.
package admin

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/JonMunkholm/activity-import/internal/core"
	"github.com/JonMunkholm/activity-import/internal/handler"
	tea "github.com/charmbracelet/bubbletea"
)

// WipeTimeout is the maximum duration of a bulk deletion, including the time
// the confirmation dialog is open.
const WipeTimeout = 5 * time.Minute

// Wipe deletes activities in bulk. Each operation asks Confirmer first; the
// organization wipe also requires the typed token.
type Wipe struct {
	Ledger    *core.Ledger
	Confirmer core.Confirmer
	Period    func() string
}

type wipeFn func(ctx context.Context) (*core.DeletionSummary, error)

// WipePeriod deletes every activity of the selected reporting period.
func (w *Wipe) WipePeriod() tea.Cmd {
	periodID := w.Period()
	return w.run("Period "+periodID, func(ctx context.Context) (*core.DeletionSummary, error) {
		return w.Ledger.DeletePeriodActivities(ctx, periodID, w.Confirmer)
	})
}

// WipeOrganization deletes every activity of the organization.
// This is a destructive operation - use with caution.
func (w *Wipe) WipeOrganization() tea.Cmd {
	return w.run("Organization", func(ctx context.Context) (*core.DeletionSummary, error) {
		return w.Ledger.DeleteOrganizationActivities(ctx, w.Confirmer)
	})
}

func (w *Wipe) run(label string, fn wipeFn) tea.Cmd {
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), WipeTimeout)
		defer cancel()

		sum, err := fn(ctx)
		if err != nil {
			if errors.Is(err, core.ErrNotConfirmed) {
				return handler.WdMsg("Deletion cancelled")
			}
			return handler.ErrMsg{Err: err}
		}

		return handler.DoneMsg(fmt.Sprintf("%s wiped: %d activities, %d emissions deleted",
			label, sum.DeletedActivities, sum.DeletedEmissions))
	}
}
