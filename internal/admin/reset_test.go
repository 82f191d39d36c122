package admin

import (
	"testing"

	"github.com/JonMunkholm/activity-import/internal/core"
	"github.com/JonMunkholm/activity-import/internal/core/coretest"
	"github.com/JonMunkholm/activity-import/internal/handler"
	tea "github.com/charmbracelet/bubbletea"
)

func newWipe(t *testing.T, b *coretest.Backend, period string, confirmer core.Confirmer) *Wipe {
	t.Helper()
	wf, err := coretest.Workflow(b, core.NewStaticState(period), core.ModeStandard)
	if err != nil {
		t.Fatalf("Workflow() error = %v", err)
	}
	return &Wipe{
		Ledger:    wf.Ledger(),
		Confirmer: confirmer,
		Period:    func() string { return period },
	}
}

func TestWipePeriod(t *testing.T) {
	tests := []struct {
		name      string
		period    string
		answer    core.Answer
		wantMsg   tea.Msg
		wantCalls int
	}{
		{
			name:      "confirmed",
			period:    "p-2024",
			answer:    core.Accept(""),
			wantMsg:   handler.DoneMsg("Period p-2024 wiped: 4 activities, 3 emissions deleted"),
			wantCalls: 1,
		},
		{
			name:    "declined",
			period:  "p-2024",
			answer:  core.Decline(),
			wantMsg: handler.WdMsg("Deletion cancelled"),
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			b := &coretest.Backend{Deletion: &core.DeletionSummary{DeletedActivities: 4, DeletedEmissions: 3}}
			w := newWipe(t, b, tt.period, tt.answer)

			if msg := w.WipePeriod()(); msg != tt.wantMsg {
				t.Errorf("msg = %#v, want %#v", msg, tt.wantMsg)
			}
			if got := b.Count("DeletePeriodActivities"); got != tt.wantCalls {
				t.Errorf("backend calls = %d, want %d", got, tt.wantCalls)
			}
			if tt.wantCalls > 0 && b.LastPeriodID() != tt.period {
				t.Errorf("period = %q, want %q", b.LastPeriodID(), tt.period)
			}
		})
	}
}

func TestWipePeriod_NoPeriod(t *testing.T) {
	b := &coretest.Backend{}
	w := newWipe(t, b, "", core.Accept(""))

	if _, ok := w.WipePeriod()().(handler.ErrMsg); !ok {
		t.Error("WipePeriod() without a period should fail")
	}
	if len(b.Calls()) != 0 {
		t.Errorf("backend calls = %v, want none", b.Calls())
	}
}

func TestWipeOrganization_RequiresToken(t *testing.T) {
	tests := []struct {
		name      string
		typed     string
		wantCalls int
	}{
		{"missing token", "", 0},
		{"wrong token", "delete", 0},
		{"token", core.OrganizationWipeToken, 1},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			b := &coretest.Backend{Deletion: &core.DeletionSummary{DeletedActivities: 9}}
			w := newWipe(t, b, "p-2024", core.Accept(tt.typed))

			msg := w.WipeOrganization()()
			if got := b.Count("DeleteOrganizationActivities"); got != tt.wantCalls {
				t.Errorf("backend calls = %d, want %d", got, tt.wantCalls)
			}
			if tt.wantCalls == 0 {
				if msg != handler.WdMsg("Deletion cancelled") {
					t.Errorf("msg = %#v, want cancellation", msg)
				}
				return
			}
			if _, ok := msg.(handler.DoneMsg); !ok {
				t.Errorf("msg = %#v, want DoneMsg", msg)
			}
		})
	}
}
