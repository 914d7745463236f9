// Package diff compares two prisoner snapshots into categorised field-level
// differences. The comparable-property set is a statically declared registry
// rather than anything discovered by reflection, so adding a property is a
// compile-checked, one-line change.
package diff

import (
	"time"

	"prisoner-search/internal/search/models"
)

// Category is one of the fixed semantic groupings used to classify a
// changed property.
type Category string

const (
	CategoryIdentifiers       Category = "IDENTIFIERS"
	CategoryPersonalDetails   Category = "PERSONAL_DETAILS"
	CategoryStatus            Category = "STATUS"
	CategoryLocation          Category = "LOCATION"
	CategorySentence          Category = "SENTENCE"
	CategoryRestrictedPatient Category = "RESTRICTED_PATIENT"
)

// Difference records one changed property. It is ephemeral: produced per
// comparison call, never persisted.
type Difference struct {
	Property string
	Category Category
	Old      any
	New      any
}

// property ties a name to its category, a value extractor, and the equality
// rule appropriate for the value's shape. Extractors normalise absent
// values to nil so "present on one side only" is just inequality.
type property struct {
	name     string
	category Category
	extract  func(*models.Prisoner) any
	equal    func(old, new any) bool
}

func scalarEqual(old, new any) bool { return old == new }

func setEqual(old, new any) bool {
	a, _ := old.([]string)
	b, _ := new.([]string)
	if len(a) != len(b) {
		return false
	}
	seen := make(map[string]int, len(a))
	for _, v := range a {
		seen[v]++
	}
	for _, v := range b {
		if seen[v] == 0 {
			return false
		}
		seen[v]--
	}
	return true
}

func str(v string) any {
	if v == "" {
		return nil
	}
	return v
}

func date(v *time.Time) any {
	if v == nil {
		return nil
	}
	return v.Format("2006-01-02")
}

func alerts(p *models.Prisoner) any {
	if len(p.Alerts) == 0 {
		return nil
	}
	return p.Alerts
}

// registry is the full set of diffable properties. The prisoner number is
// deliberately absent: identity is the comparison key, never a difference.
var registry = []property{
	{"pncNumber", CategoryIdentifiers, func(p *models.Prisoner) any { return str(p.PncNumber) }, scalarEqual},
	{"croNumber", CategoryIdentifiers, func(p *models.Prisoner) any { return str(p.CroNumber) }, scalarEqual},
	{"bookingId", CategoryIdentifiers, func(p *models.Prisoner) any {
		if p.BookingID == nil {
			return nil
		}
		return *p.BookingID
	}, scalarEqual},
	{"bookNumber", CategoryIdentifiers, func(p *models.Prisoner) any { return str(p.BookNumber) }, scalarEqual},

	{"firstName", CategoryPersonalDetails, func(p *models.Prisoner) any { return str(p.FirstName) }, scalarEqual},
	{"lastName", CategoryPersonalDetails, func(p *models.Prisoner) any { return str(p.LastName) }, scalarEqual},
	{"dateOfBirth", CategoryPersonalDetails, func(p *models.Prisoner) any { return date(p.DateOfBirth) }, scalarEqual},
	{"gender", CategoryPersonalDetails, func(p *models.Prisoner) any { return str(p.Gender) }, scalarEqual},
	{"ethnicity", CategoryPersonalDetails, func(p *models.Prisoner) any { return str(p.Ethnicity) }, scalarEqual},
	{"nationality", CategoryPersonalDetails, func(p *models.Prisoner) any { return str(p.Nationality) }, scalarEqual},
	{"religion", CategoryPersonalDetails, func(p *models.Prisoner) any { return str(p.Religion) }, scalarEqual},

	{"status", CategoryStatus, func(p *models.Prisoner) any { return str(p.Status) }, scalarEqual},
	{"inOutStatus", CategoryStatus, func(p *models.Prisoner) any { return str(p.InOutStatus) }, scalarEqual},
	{"legalStatus", CategoryStatus, func(p *models.Prisoner) any { return str(p.LegalStatus) }, scalarEqual},
	{"imprisonmentStatus", CategoryStatus, func(p *models.Prisoner) any { return str(p.ImprisonmentStatus) }, scalarEqual},
	{"recall", CategoryStatus, func(p *models.Prisoner) any {
		if p.Recall == nil {
			return nil
		}
		return *p.Recall
	}, scalarEqual},
	{"alerts", CategoryStatus, alerts, setEqual},

	{"prisonId", CategoryLocation, func(p *models.Prisoner) any { return str(string(p.PrisonID)) }, scalarEqual},
	{"prisonName", CategoryLocation, func(p *models.Prisoner) any { return str(p.PrisonName) }, scalarEqual},
	{"cellLocation", CategoryLocation, func(p *models.Prisoner) any { return str(p.CellLocation) }, scalarEqual},

	{"sentenceStartDate", CategorySentence, func(p *models.Prisoner) any { return date(p.SentenceStartDate) }, scalarEqual},
	{"releaseDate", CategorySentence, func(p *models.Prisoner) any { return date(p.ReleaseDate) }, scalarEqual},
	{"confirmedReleaseDate", CategorySentence, func(p *models.Prisoner) any { return date(p.ConfirmedReleaseDate) }, scalarEqual},
	{"sentenceExpiryDate", CategorySentence, func(p *models.Prisoner) any { return date(p.SentenceExpiryDate) }, scalarEqual},

	{"restrictedPatient", CategoryRestrictedPatient, func(p *models.Prisoner) any { return p.RestrictedPatient }, scalarEqual},
	{"supportingPrisonId", CategoryRestrictedPatient, func(p *models.Prisoner) any { return str(string(p.SupportingPrisonID)) }, scalarEqual},
}

// Compare reports the properties whose value differs between the previous
// and current snapshot, grouped by category. A nil previous means first
// observation: every populated property on current is a difference.
// Categories with no differences are omitted. The function is pure and
// total for well-formed snapshots.
func Compare(previous, current *models.Prisoner) map[Category][]Difference {
	result := make(map[Category][]Difference)
	for _, prop := range registry {
		var oldValue any
		if previous != nil {
			oldValue = prop.extract(previous)
		}
		newValue := prop.extract(current)

		if previous == nil {
			if newValue == nil {
				continue
			}
		} else if prop.equal(oldValue, newValue) {
			continue
		}

		result[prop.category] = append(result[prop.category], Difference{
			Property: prop.name,
			Category: prop.category,
			Old:      oldValue,
			New:      newValue,
		})
	}
	return result
}
