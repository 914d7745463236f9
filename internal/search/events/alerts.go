// Package events derives domain events from snapshot pairs. Both detectors
// are pure functions: they never fail for well-formed snapshots and are
// safe to call speculatively before the dedupe gate decides whether
// anything gets published.
package events

import (
	"prisoner-search/internal/search/models"
	id "prisoner-search/pkg/domain"
)

// AlertsUpdated reports the alert codes added to and removed from a
// prisoner's record between two snapshots.
type AlertsUpdated struct {
	PrisonerNumber id.PrisonerNumber `json:"nomsNumber"`
	BookingID      *int64            `json:"bookingId,omitempty"`
	AlertsAdded    []string          `json:"alertsAdded"`
	AlertsRemoved  []string          `json:"alertsRemoved"`
}

// DiffAlerts compares the alert code sets of two snapshots and returns an
// AlertsUpdated event when either side of the set difference is non-empty,
// nil otherwise. Order of the stored codes never matters. A nil previous
// snapshot contributes an empty set.
func DiffAlerts(previous, current *models.Prisoner) *AlertsUpdated {
	var previousAlerts []string
	if previous != nil {
		previousAlerts = previous.Alerts
	}

	added := subtract(current.Alerts, previousAlerts)
	removed := subtract(previousAlerts, current.Alerts)
	if len(added) == 0 && len(removed) == 0 {
		return nil
	}

	return &AlertsUpdated{
		PrisonerNumber: current.PrisonerNumber,
		BookingID:      current.BookingID,
		AlertsAdded:    added,
		AlertsRemoved:  removed,
	}
}

// subtract returns the elements of a not present in b, preserving a's
// order and dropping duplicates.
func subtract(a, b []string) []string {
	exclude := make(map[string]struct{}, len(b))
	for _, v := range b {
		exclude[v] = struct{}{}
	}

	result := []string{}
	for _, v := range a {
		if _, skip := exclude[v]; skip {
			continue
		}
		exclude[v] = struct{}{}
		result = append(result, v)
	}
	return result
}
