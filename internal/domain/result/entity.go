// Package result holds the computed outputs of the gradebook: per-period
// averages and the year-end outcome of a student in a class.
package result

import (
	"time"
)

// PeriodAverageKey is the natural key of a period average.
type PeriodAverageKey struct {
	StudentID           string
	ClassGroupID        string
	TeacherAssignmentID string
	PeriodID            string
}

// PeriodAverage is the stored result of one student in one assignment and period.
// It is recomputed in place; no history is kept.
type PeriodAverage struct {
	ID string
	PeriodAverageKey

	NumericAverage      *float64
	ConceptualAverage   *string
	TotalAbsences       int
	FrequencyPercentage float64
	CalculatedAt        time.Time
}

// Outcome is the year-end decision.
type Outcome string

const (
	OutcomeApproved Outcome = "approved"
	OutcomeRetained Outcome = "retained"
)

// FinalResultKey is the natural key of a final result.
type FinalResultKey struct {
	StudentID    string
	ClassGroupID string
	AcademicYear int
}

// FinalResult is the year-end outcome of a student in a class.
type FinalResult struct {
	ID string
	FinalResultKey

	Outcome          Outcome
	OverallAverage   *float64
	OverallFrequency float64
	// CouncilOverride is false at creation; only a class council may set it.
	CouncilOverride bool
	DeterminedBy    string
	DeterminedAt    time.Time
}
