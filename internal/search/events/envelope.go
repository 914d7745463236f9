package events

import (
	"time"

	"github.com/google/uuid"

	"prisoner-search/internal/search/models"
	id "prisoner-search/pkg/domain"
)

// Event types published to the domain event topic.
const (
	TypeAlertsUpdated = "prisoner-offender-search.prisoner.alerts-updated"
	TypeReceived      = "prisoner-offender-search.prisoner.received"
)

// Envelope is the wire shape of a published domain event.
type Envelope struct {
	EventID               string    `json:"eventId"`
	EventType             string    `json:"eventType"`
	Version               int       `json:"version"`
	OccurredAt            time.Time `json:"occurredAt"`
	Description           string    `json:"description"`
	AdditionalInformation any       `json:"additionalInformation"`
}

// ReceivedInformation is the payload of a prisoner-received event.
// FromPrisonID is always empty: the detector cannot know the sending
// prison (see TransferIn).
type ReceivedInformation struct {
	PrisonerNumber id.PrisonerNumber `json:"nomsNumber"`
	PrisonID       id.PrisonID       `json:"prisonId"`
	FromPrisonID   id.PrisonID       `json:"fromPrisonId,omitempty"`
	Reason         string            `json:"reason"`
}

// NewAlertsUpdatedEnvelope wraps an alerts diff for publication.
func NewAlertsUpdatedEnvelope(occurredAt time.Time, update *AlertsUpdated) Envelope {
	return Envelope{
		EventID:               uuid.NewString(),
		EventType:             TypeAlertsUpdated,
		Version:               1,
		OccurredAt:            occurredAt,
		Description:           "A prisoner's alerts have been added or removed",
		AdditionalInformation: update,
	}
}

// NewReceivedEnvelope wraps a transfer-in detection for publication.
func NewReceivedEnvelope(occurredAt time.Time, transfer TransferIn) Envelope {
	return Envelope{
		EventID:     uuid.NewString(),
		EventType:   TypeReceived,
		Version:     1,
		OccurredAt:  occurredAt,
		Description: "A prisoner has been received into prison",
		AdditionalInformation: ReceivedInformation{
			PrisonerNumber: transfer.PrisonerNumber,
			PrisonID:       transfer.PrisonID,
			Reason:         models.MovementReasonTransfer,
		},
	}
}
