package events

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"prisoner-search/internal/search/models"
	id "prisoner-search/pkg/domain"
)

func snapshot(mutate func(*models.Prisoner)) *models.Prisoner {
	bookingID := int64(1203218)
	p := &models.Prisoner{
		PrisonerNumber: "A1234AA",
		BookingID:      &bookingID,
		PrisonID:       "MDI",
		InOutStatus:    models.InOutStatusIn,
		Alerts:         []string{"HA"},
	}
	if mutate != nil {
		mutate(p)
	}
	return p
}

func TestDiffAlerts(t *testing.T) {
	t.Run("no change yields no event", func(t *testing.T) {
		assert.Nil(t, DiffAlerts(snapshot(nil), snapshot(nil)))
	})

	t.Run("order never matters", func(t *testing.T) {
		previous := snapshot(func(p *models.Prisoner) { p.Alerts = []string{"HA", "ABC"} })
		current := snapshot(func(p *models.Prisoner) { p.Alerts = []string{"ABC", "HA"} })

		assert.Nil(t, DiffAlerts(previous, current))
	})

	t.Run("added alert emits event with empty removed set", func(t *testing.T) {
		previous := snapshot(func(p *models.Prisoner) { p.Alerts = []string{"HA"} })
		current := snapshot(func(p *models.Prisoner) { p.Alerts = []string{"HA", "XA"} })

		update := DiffAlerts(previous, current)
		require.NotNil(t, update)
		assert.Equal(t, current.PrisonerNumber, update.PrisonerNumber)
		assert.Equal(t, current.BookingID, update.BookingID)
		assert.Equal(t, []string{"XA"}, update.AlertsAdded)
		assert.Empty(t, update.AlertsRemoved)
	})

	t.Run("removed alert emits event", func(t *testing.T) {
		previous := snapshot(func(p *models.Prisoner) { p.Alerts = []string{"HA", "XA"} })
		current := snapshot(func(p *models.Prisoner) { p.Alerts = []string{"HA"} })

		update := DiffAlerts(previous, current)
		require.NotNil(t, update)
		assert.Empty(t, update.AlertsAdded)
		assert.Equal(t, []string{"XA"}, update.AlertsRemoved)
	})

	t.Run("absent previous treats all current alerts as added", func(t *testing.T) {
		current := snapshot(func(p *models.Prisoner) { p.Alerts = []string{"HA", "XA"} })

		update := DiffAlerts(nil, current)
		require.NotNil(t, update)
		assert.Equal(t, []string{"HA", "XA"}, update.AlertsAdded)
		assert.Empty(t, update.AlertsRemoved)
	})
}

func TestDetectMovement(t *testing.T) {
	t.Run("transfer to in emits received", func(t *testing.T) {
		previous := snapshot(func(p *models.Prisoner) { p.InOutStatus = models.InOutStatusTransfer })
		current := snapshot(func(p *models.Prisoner) {
			p.InOutStatus = models.InOutStatusIn
			p.PrisonID = "MDI"
		})

		change := DetectMovement(previous, current)
		transfer, ok := change.(TransferIn)
		require.True(t, ok, "expected TransferIn, got %T", change)
		assert.Equal(t, current.PrisonerNumber, transfer.PrisonerNumber)
		assert.Equal(t, current.PrisonID, transfer.PrisonID)
	})

	t.Run("unrecognised pairs yield no change", func(t *testing.T) {
		pairs := [][2]string{
			{models.InOutStatusIn, models.InOutStatusIn},
			{models.InOutStatusIn, models.InOutStatusOut},
			{models.InOutStatusOut, models.InOutStatusIn},
			{models.InOutStatusIn, models.InOutStatusTransfer},
			{models.InOutStatusTransfer, models.InOutStatusTransfer},
			{models.InOutStatusTransfer, models.InOutStatusOut},
		}
		for _, pair := range pairs {
			previous := snapshot(func(p *models.Prisoner) { p.InOutStatus = pair[0] })
			current := snapshot(func(p *models.Prisoner) { p.InOutStatus = pair[1] })
			assert.IsType(t, NoChange{}, DetectMovement(previous, current), "pair %v", pair)
		}
	})

	t.Run("absent previous yields no change", func(t *testing.T) {
		current := snapshot(func(p *models.Prisoner) { p.InOutStatus = models.InOutStatusIn })
		assert.IsType(t, NoChange{}, DetectMovement(nil, current))
	})
}

func TestReceivedEnvelope_CarriesTransferReason(t *testing.T) {
	occurredAt := time.Date(2026, 2, 3, 10, 30, 0, 0, time.UTC)
	transfer := TransferIn{PrisonerNumber: "A1234AA", PrisonID: "MDI"}

	envelope := NewReceivedEnvelope(occurredAt, transfer)

	assert.Equal(t, TypeReceived, envelope.EventType)
	assert.Equal(t, occurredAt, envelope.OccurredAt)
	assert.NotEmpty(t, envelope.EventID)

	info, ok := envelope.AdditionalInformation.(ReceivedInformation)
	require.True(t, ok)
	assert.Equal(t, models.MovementReasonTransfer, info.Reason)
	assert.Equal(t, id.PrisonID("MDI"), info.PrisonID)
	assert.Empty(t, info.FromPrisonID, "sending prison is not tracked")
}
