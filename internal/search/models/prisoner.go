// Package models holds the prisoner snapshot and index bookkeeping records.
package models

import (
	"crypto/sha256"
	"encoding/base64"
	"encoding/json"
	"sort"
	"time"

	id "prisoner-search/pkg/domain"
	dErrors "prisoner-search/pkg/domain-errors"
)

// In/out movement statuses as reported by the system of record.
const (
	InOutStatusIn          = "IN"
	InOutStatusOut         = "OUT"
	InOutStatusTransfer    = "TRN"
	MovementReasonTransfer = "TRANSFERRED"
)

// Prisoner is the full current-state snapshot of one person's record at a
// point in time. Snapshots are recomputed per change notification and never
// stored as history; the dedupe ledger's rolling hash is the only memory of
// what was last emitted.
type Prisoner struct {
	// Identifiers
	PrisonerNumber id.PrisonerNumber `json:"prisonerNumber"`
	PncNumber      string            `json:"pncNumber,omitempty"`
	CroNumber      string            `json:"croNumber,omitempty"`
	BookingID      *int64            `json:"bookingId,omitempty"`
	BookNumber     string            `json:"bookNumber,omitempty"`

	// Personal details
	FirstName   string     `json:"firstName,omitempty"`
	LastName    string     `json:"lastName,omitempty"`
	DateOfBirth *time.Time `json:"dateOfBirth,omitempty"`
	Gender      string     `json:"gender,omitempty"`
	Ethnicity   string     `json:"ethnicity,omitempty"`
	Nationality string     `json:"nationality,omitempty"`
	Religion    string     `json:"religion,omitempty"`

	// Status
	Status             string `json:"status,omitempty"`
	InOutStatus        string `json:"inOutStatus,omitempty"`
	LegalStatus        string `json:"legalStatus,omitempty"`
	ImprisonmentStatus string `json:"imprisonmentStatus,omitempty"`
	Recall             *bool  `json:"recall,omitempty"`

	// Location
	PrisonID     id.PrisonID `json:"prisonId,omitempty"`
	PrisonName   string      `json:"prisonName,omitempty"`
	CellLocation string      `json:"cellLocation,omitempty"`

	// Sentence
	SentenceStartDate    *time.Time `json:"sentenceStartDate,omitempty"`
	ReleaseDate          *time.Time `json:"releaseDate,omitempty"`
	ConfirmedReleaseDate *time.Time `json:"confirmedReleaseDate,omitempty"`
	SentenceExpiryDate   *time.Time `json:"sentenceExpiryDate,omitempty"`

	// Restricted patient
	RestrictedPatient  bool        `json:"restrictedPatient"`
	SupportingPrisonID id.PrisonID `json:"supportingPrisonId,omitempty"`

	// Alerts is the set of active alert codes; order carries no meaning.
	Alerts []string `json:"alerts,omitempty"`
}

// Validate rejects snapshots that must never reach the diff or ledger
// stages. Identity is the partition key everywhere, so a snapshot without
// one is malformed, not merely incomplete.
func (p *Prisoner) Validate() error {
	if p == nil {
		return dErrors.New(dErrors.CodeInvalidInput, "snapshot is nil")
	}
	if p.PrisonerNumber.IsNil() {
		return dErrors.New(dErrors.CodeInvalidInput, "snapshot has no prisoner number")
	}
	return nil
}

// Hash returns a stable digest of the snapshot's observable state, used by
// the dedupe ledger to decide whether this state was already emitted. The
// JSON encoding is canonical for a given struct definition: fields marshal
// in declaration order.
func (p *Prisoner) Hash() string {
	canonical := *p
	canonical.Alerts = sortedCopy(p.Alerts)

	encoded, err := json.Marshal(&canonical)
	if err != nil {
		// Marshalling a plain struct of scalars cannot fail at runtime.
		panic(err)
	}
	sum := sha256.Sum256(encoded)
	return base64.StdEncoding.EncodeToString(sum[:])
}

func sortedCopy(values []string) []string {
	if len(values) == 0 {
		return nil
	}
	out := make([]string, len(values))
	copy(out, values)
	sort.Strings(out)
	return out
}
