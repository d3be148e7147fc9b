package assessment

import (
	"time"
)

// Grade is one recorded grade. At most one row exists per natural key; a
// recovery grade lives in its own slot (IsRecovery=true) next to the regular ones.
type Grade struct {
	ID                  string
	StudentID           string
	ClassGroupID        string
	TeacherAssignmentID string
	PeriodID            string
	InstrumentID        string
	IsRecovery          bool

	NumericValue    *float64
	ConceptualValue *string
	RecoveryType    string

	RecordedBy string
	CreatedAt  time.Time
	UpdatedAt  time.Time
}

// GradeKey is the natural key of a grade row.
type GradeKey struct {
	StudentID           string
	ClassGroupID        string
	TeacherAssignmentID string
	PeriodID            string
	InstrumentID        string
	IsRecovery          bool
}

// Key returns the natural key of the grade.
func (g Grade) Key() GradeKey {
	return GradeKey{
		StudentID:           g.StudentID,
		ClassGroupID:        g.ClassGroupID,
		TeacherAssignmentID: g.TeacherAssignmentID,
		PeriodID:            g.PeriodID,
		InstrumentID:        g.InstrumentID,
		IsRecovery:          g.IsRecovery,
	}
}

// GradeScope selects all grades of one student in one assignment and period.
type GradeScope struct {
	StudentID           string
	ClassGroupID        string
	TeacherAssignmentID string
	PeriodID            string
}

// Matches reports whether g belongs to the scope.
func (s GradeScope) Matches(g Grade) bool {
	return g.StudentID == s.StudentID &&
		g.ClassGroupID == s.ClassGroupID &&
		g.TeacherAssignmentID == s.TeacherAssignmentID &&
		g.PeriodID == s.PeriodID
}

// RegularGrades returns the grades that are not recovery grades.
func RegularGrades(grades []Grade) []Grade {
	out := make([]Grade, 0, len(grades))
	for _, g := range grades {
		if !g.IsRecovery {
			out = append(out, g)
		}
	}
	return out
}

// FindRecovery returns the recovery grade of the scope, or nil. If more than one
// recovery row exists (different instruments), the most recently updated wins.
func FindRecovery(grades []Grade) *Grade {
	var found *Grade
	for i := range grades {
		g := grades[i]
		if !g.IsRecovery {
			continue
		}
		if found == nil || g.UpdatedAt.After(found.UpdatedAt) {
			found = &g
		}
	}
	return found
}

// RecoveryValue returns the numeric value of the recovery grade. A conceptual
// code is mapped through the scale of cfg. 0 when neither resolves.
func (g Grade) RecoveryValue(cfg Config) float64 {
	if g.NumericValue != nil {
		return *g.NumericValue
	}
	if g.ConceptualValue != nil {
		if eq, ok := cfg.ScaleEquivalent(*g.ConceptualValue); ok {
			return eq
		}
	}
	return 0
}
