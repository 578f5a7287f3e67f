package provision

import (
	"fmt"

	"github.com/BorisBinyaminov/eSIM/app/models"
)

// CoarseState is the lifecycle label derived from the provider's
// (smdpStatus, esimStatus) pair. Unrecognized pairs are passed through as a
// literal "<smdp> / <esim>" label, never coerced.
type CoarseState string

const (
	StateNew      CoarseState = "New"
	StateOnboard  CoarseState = "Onboard"
	StateInUse    CoarseState = "In Use"
	StateDepleted CoarseState = "Depleted"
	StateDeleted  CoarseState = "Deleted"
	StateUnknown  CoarseState = "Unknown"
)

// Classify maps a provider status pair to its coarse state. A deleted
// enrollment wins over an exhausted allowance, matching how the provider
// reports cancelled profiles.
func Classify(smdpStatus, esimStatus string) CoarseState {
	switch {
	case smdpStatus == models.SmdpStatusReleased && esimStatus == models.EsimStatusGotResource:
		return StateNew
	case smdpStatus == models.SmdpStatusEnabled && esimStatus == models.EsimStatusInUse:
		return StateInUse
	case smdpStatus == models.SmdpStatusEnabled && esimStatus == models.EsimStatusGotResource:
		return StateOnboard
	case smdpStatus == models.SmdpStatusDeleted:
		return StateDeleted
	case esimStatus == models.EsimStatusUsedUp:
		return StateDepleted
	}
	return CoarseState(fmt.Sprintf("%s / %s", smdpStatus, esimStatus))
}

// StatePriority orders profiles for display: fresh and active ones first,
// dead ones last.
func StatePriority(state CoarseState) int {
	switch state {
	case StateNew:
		return 0
	case StateInUse:
		return 1
	case StateOnboard:
		return 2
	case StateDepleted:
		return 3
	case StateDeleted:
		return 4
	}
	return 5
}

// Action names reported alongside a profile's status so the UI knows which
// buttons to offer.
const (
	ActionCancel       = "cancel"
	ActionTopUp        = "topup"
	ActionRefreshUsage = "refresh_usage"
)

// AvailableActions derives the legal lifecycle operations from the latest
// reconciled state and the provider's top-up eligibility flag.
func AvailableActions(state CoarseState, supportsTopUp bool) []string {
	actions := make([]string, 0, 3)
	if state == StateNew {
		actions = append(actions, ActionCancel)
	}
	if supportsTopUp && (state == StateNew || state == StateOnboard || state == StateInUse) {
		actions = append(actions, ActionTopUp)
	}
	if state == StateInUse {
		actions = append(actions, ActionRefreshUsage)
	}
	return actions
}
