// Package domain holds the typed identifiers shared across service slices.
// Distinct string types keep a prisoner number from being passed where a
// prison id is expected; the compiler enforces what a review would miss.
package domain

import (
	"regexp"
	"strings"

	dErrors "prisoner-search/pkg/domain-errors"
)

// PrisonerNumber is the stable external key for one person's record (NOMS
// number, e.g. "A1234AA"). It is assigned once and never changes for a
// given physical person.
type PrisonerNumber string

// PrisonID identifies an establishment (e.g. "MDI").
type PrisonID string

var prisonerNumberPattern = regexp.MustCompile(`^[A-Z]\d{4}[A-Z]{2}$`)

// ParsePrisonerNumber validates and normalises a raw prisoner number.
// A snapshot with no valid identity must never reach the diff or ledger
// stages, so this is the single trust boundary for the key.
func ParsePrisonerNumber(raw string) (PrisonerNumber, error) {
	normalised := strings.ToUpper(strings.TrimSpace(raw))
	if normalised == "" {
		return "", dErrors.New(dErrors.CodeInvalidInput, "prisoner number is required")
	}
	if !prisonerNumberPattern.MatchString(normalised) {
		return "", dErrors.New(dErrors.CodeInvalidInput, "prisoner number has invalid format")
	}
	return PrisonerNumber(normalised), nil
}

// IsNil reports whether the prisoner number is unset.
func (p PrisonerNumber) IsNil() bool { return p == "" }

func (p PrisonerNumber) String() string { return string(p) }

func (p PrisonID) String() string { return string(p) }
