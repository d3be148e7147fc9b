package academic

import (
	"context"
)

// Directory looks up the school structure by id.
// Missing ids return the matching shared.Err*NotFound error.
type Directory interface {
	ClassGroup(ctx context.Context, id string) (*ClassGroup, error)
	Period(ctx context.Context, id string) (*Period, error)
	TeacherAssignment(ctx context.Context, id string) (*TeacherAssignment, error)
}

// EnrollmentReader answers who currently belongs to a class group.
type EnrollmentReader interface {
	// ActiveStudents returns the students with an active assignment to the class.
	ActiveStudents(ctx context.Context, classGroupID string) ([]Student, error)

	// StudentsWithActiveEnrollment returns students with an active class
	// assignment whose enrollment for academicYear is also active.
	StudentsWithActiveEnrollment(ctx context.Context, classGroupID string, academicYear int) ([]Student, error)
}
