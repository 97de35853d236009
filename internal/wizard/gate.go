package wizard

import "visa-portal/internal/models"

// GateDecision is what the application-form step does with a request status.
type GateDecision string

const (
	GateWaiting  GateDecision = "waiting"
	GateRejected GateDecision = "rejected"
	GateProceed  GateDecision = "proceed"
)

// DecideGate maps the backend request status onto the application-form gate.
// A missing request, or one the agency has not answered yet, waits.
func DecideGate(info *models.RequestStatusInfo) GateDecision {
	if info == nil {
		return GateWaiting
	}
	switch info.Status {
	case models.RequestStatusCancelled:
		return GateRejected
	case models.RequestStatusAgencySelected, models.RequestStatusInProgress, models.RequestStatusCompleted:
		return GateProceed
	default:
		return GateWaiting
	}
}
