package models

import "time"

// SyncIndex names one of the two physical index slots. The set is closed:
// there is an A, a B, and nothing else.
type SyncIndex string

const (
	IndexA SyncIndex = "A"
	IndexB SyncIndex = "B"
)

// Other returns the opposite slot.
func (s SyncIndex) Other() SyncIndex {
	if s == IndexA {
		return IndexB
	}
	return IndexA
}

// Valid reports whether s names a real slot.
func (s SyncIndex) Valid() bool {
	return s == IndexA || s == IndexB
}

func (s SyncIndex) String() string { return string(s) }

// IndexStatus is the singleton record describing which slot is live and
// whether a rebuild is in flight. At most one rebuild runs system-wide;
// SwitchIndex is only valid while InProgress is false.
type IndexStatus struct {
	CurrentIndex SyncIndex  `json:"currentIndex"`
	InProgress   bool       `json:"inProgress"`
	StartTime    *time.Time `json:"startIndexTime,omitempty"`
	EndTime      *time.Time `json:"endIndexTime,omitempty"`
}

// NewIndexStatus returns the initial status: slot A live, no rebuild.
func NewIndexStatus() IndexStatus {
	return IndexStatus{CurrentIndex: IndexA}
}
