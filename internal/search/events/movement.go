package events

import (
	"prisoner-search/internal/search/models"
	id "prisoner-search/pkg/domain"
)

// MovementChange is the closed set of outcomes the movement detector can
// produce. New transition kinds (release, court return) become new cases
// here rather than extra boolean flags on an existing one.
type MovementChange interface {
	movementChange()
}

// NoChange means the snapshot pair matches no recognised transition.
type NoChange struct{}

func (NoChange) movementChange() {}

// TransferIn means the prisoner was received into an establishment on
// transfer. The sending prison is not tracked: snapshots carry no movement
// history, so FromPrisonID is unknowable here and callers must treat the
// "from" side as absent.
type TransferIn struct {
	PrisonerNumber id.PrisonerNumber
	PrisonID       id.PrisonID
}

func (TransferIn) movementChange() {}

// DetectMovement classifies the (previous.inOutStatus, current.inOutStatus)
// pair. The only transition recognised today is TRN -> IN; every other
// pair, including a missing previous snapshot, is NoChange.
func DetectMovement(previous, current *models.Prisoner) MovementChange {
	if previous == nil {
		return NoChange{}
	}

	switch {
	case previous.InOutStatus == models.InOutStatusTransfer && current.InOutStatus == models.InOutStatusIn:
		return TransferIn{
			PrisonerNumber: current.PrisonerNumber,
			PrisonID:       current.PrisonID,
		}
	default:
		return NoChange{}
	}
}
