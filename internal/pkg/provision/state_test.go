package provision

import (
	"testing"

	"github.com/BorisBinyaminov/eSIM/app/models"
)

func TestClassify(t *testing.T) {
	tests := []struct {
		name       string
		smdpStatus string
		esimStatus string
		want       CoarseState
	}{
		{"fresh profile", models.SmdpStatusReleased, models.EsimStatusGotResource, StateNew},
		{"active profile", models.SmdpStatusEnabled, models.EsimStatusInUse, StateInUse},
		{"installed not used", models.SmdpStatusEnabled, models.EsimStatusGotResource, StateOnboard},
		{"cancelled", models.SmdpStatusDeleted, models.EsimStatusGotResource, StateDeleted},
		{"deleted wins over used up", models.SmdpStatusDeleted, models.EsimStatusUsedUp, StateDeleted},
		{"allowance exhausted", models.SmdpStatusEnabled, models.EsimStatusUsedUp, StateDepleted},
		{"disabled used up still depleted", models.SmdpStatusDisabled, models.EsimStatusUsedUp, StateDepleted},
		{"unmapped pair passes through", models.SmdpStatusDisabled, models.EsimStatusInUse, CoarseState("DISABLED / IN_USE")},
		{"empty pair passes through", "", "", CoarseState(" / ")},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Classify(tt.smdpStatus, tt.esimStatus); got != tt.want {
				t.Fatalf("Classify(%q, %q) = %q, want %q", tt.smdpStatus, tt.esimStatus, got, tt.want)
			}
		})
	}
}

func TestStatePriorityOrdering(t *testing.T) {
	ordered := []CoarseState{StateNew, StateInUse, StateOnboard, StateDepleted, StateDeleted, CoarseState("DISABLED / IN_USE")}
	for i := 1; i < len(ordered); i++ {
		if StatePriority(ordered[i-1]) >= StatePriority(ordered[i]) {
			t.Fatalf("expected %q to sort before %q", ordered[i-1], ordered[i])
		}
	}
}

func TestAvailableActions(t *testing.T) {
	tests := []struct {
		name          string
		state         CoarseState
		supportsTopUp bool
		want          []string
	}{
		{"new rechargeable", StateNew, true, []string{ActionCancel, ActionTopUp}},
		{"new not rechargeable", StateNew, false, []string{ActionCancel}},
		{"in use rechargeable", StateInUse, true, []string{ActionTopUp, ActionRefreshUsage}},
		{"in use not rechargeable", StateInUse, false, []string{ActionRefreshUsage}},
		{"onboard rechargeable", StateOnboard, true, []string{ActionTopUp}},
		{"depleted", StateDepleted, true, []string{}},
		{"deleted", StateDeleted, true, []string{}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := AvailableActions(tt.state, tt.supportsTopUp)
			if len(got) != len(tt.want) {
				t.Fatalf("AvailableActions(%q, %v) = %v, want %v", tt.state, tt.supportsTopUp, got, tt.want)
			}
			for i := range got {
				if got[i] != tt.want[i] {
					t.Fatalf("AvailableActions(%q, %v) = %v, want %v", tt.state, tt.supportsTopUp, got, tt.want)
				}
			}
		})
	}
}
