// Package academic holds the read-only school structure the grading core depends
// on: class groups, periods, teacher assignments and enrollments, plus the
// attendance frequency port. Writes to these entities happen elsewhere.
package academic

import (
	"time"

	"github.com/school-hub/gradebook/internal/domain/assessment"
)

// ClassGroup is a class of students in one academic year and grade level.
type ClassGroup struct {
	ID           string
	SchoolID     string
	Name         string
	AcademicYear int
	GradeLevel   string
	Active       bool
}

// ConfigScope returns the key of the assessment config that applies to the class.
func (c ClassGroup) ConfigScope() assessment.ScopeKey {
	return assessment.ScopeKey{
		SchoolID:     c.SchoolID,
		AcademicYear: c.AcademicYear,
		GradeLevel:   c.GradeLevel,
	}
}

// Period is a grading period (bimester, trimester) of an academic year.
type Period struct {
	ID           string
	SchoolID     string
	AcademicYear int
	Number       int
	Name         string
	StartDate    time.Time
	EndDate      time.Time
}

// TeacherAssignment binds a teacher and a subject to a class group.
type TeacherAssignment struct {
	ID           string
	ClassGroupID string
	TeacherID    string
	SubjectID    string
	Active       bool
}

// Student is an active member of a class group.
type Student struct {
	ID   string
	Name string
}
