package closing

import (
	"context"
	"fmt"
	"time"

	"github.com/school-hub/gradebook/internal/domain/shared"
	"github.com/school-hub/gradebook/pkg/timeutil"
)

// Checklist areas, used as field names in incompleteness failures.
const (
	AreaGrades        = "grades"
	AreaAttendance    = "attendance"
	AreaLessonRecords = "lesson_records"
)

// Completeness holds the three checklist flags of a closing.
type Completeness struct {
	Grades        bool
	Attendance    bool
	LessonRecords bool
}

// All reports whether every area is complete.
func (c Completeness) All() bool {
	return c.Grades && c.Attendance && c.LessonRecords
}

// Missing maps each incomplete area to a label.
func (c Completeness) Missing() map[string]string {
	missing := make(map[string]string)
	if !c.Grades {
		missing[AreaGrades] = "grades pending"
	}
	if !c.Attendance {
		missing[AreaAttendance] = "attendance pending"
	}
	if !c.LessonRecords {
		missing[AreaLessonRecords] = "lesson records pending"
	}
	return missing
}

func (c Completeness) require(action Action) error {
	if c.All() {
		return nil
	}
	missing := c.Missing()
	return shared.NewValidationError("closing", string(action),
		fmt.Sprintf("cannot %s: %d checklist area(s) incomplete", action, len(missing)),
		missing).WithKind(shared.ErrIncomplete)
}

// Scope is the (class group, teacher assignment, period) a check runs over,
// with the period's date range resolved.
type Scope struct {
	SchoolID            string
	ClassGroupID        string
	TeacherAssignmentID string
	PeriodID            string
	From                time.Time
	To                  time.Time
}

// StudentInstrument identifies a grade cell.
type StudentInstrument struct {
	StudentID    string
	InstrumentID string
}

// StudentDay identifies an attendance cell. Day is a timeutil.DayKey.
type StudentDay struct {
	StudentID string
	Day       string
}

// CompletenessReader is the read port behind the completeness predicates.
type CompletenessReader interface {
	// ActiveStudentIDs lists the students currently active in the class.
	ActiveStudentIDs(ctx context.Context, classGroupID string) ([]string, error)
	// ActiveInstrumentIDs lists the active instruments of the config resolved
	// for the class. Empty when no config applies.
	ActiveInstrumentIDs(ctx context.Context, classGroupID string) ([]string, error)
	// SchoolDays lists the school days inside the scope's date range.
	SchoolDays(ctx context.Context, scope Scope) ([]time.Time, error)
	// RecordedGrades lists the regular grade rows present in scope, any value.
	RecordedGrades(ctx context.Context, scope Scope) ([]StudentInstrument, error)
	// RecordedAttendance lists the attendance rows present in scope.
	RecordedAttendance(ctx context.Context, scope Scope) ([]StudentDay, error)
	// RecordedLessonDays lists the days (DayKey) with a lesson record for the assignment.
	RecordedLessonDays(ctx context.Context, scope Scope) ([]string, error)
}

// ══════════════════════════════════════════════════════════════════════════════
// PREDICATES
// ══════════════════════════════════════════════════════════════════════════════

// GradesComplete reports whether every student has a row for every instrument.
func GradesComplete(students, instruments []string, recorded []StudentInstrument) bool {
	set := make(map[StudentInstrument]struct{}, len(recorded))
	for _, r := range recorded {
		set[r] = struct{}{}
	}
	for _, s := range students {
		for _, i := range instruments {
			if _, ok := set[StudentInstrument{s, i}]; !ok {
				return false
			}
		}
	}
	return true
}

// AttendanceComplete reports whether every student has a row for every school day.
func AttendanceComplete(students []string, days []time.Time, recorded []StudentDay) bool {
	set := make(map[StudentDay]struct{}, len(recorded))
	for _, r := range recorded {
		set[r] = struct{}{}
	}
	for _, d := range days {
		key := timeutil.DayKey(d)
		for _, s := range students {
			if _, ok := set[StudentDay{s, key}]; !ok {
				return false
			}
		}
	}
	return true
}

// LessonRecordsComplete reports whether every school day has a lesson record.
func LessonRecordsComplete(days []time.Time, recorded []string) bool {
	set := make(map[string]struct{}, len(recorded))
	for _, r := range recorded {
		set[r] = struct{}{}
	}
	for _, d := range days {
		if _, ok := set[timeutil.DayKey(d)]; !ok {
			return false
		}
	}
	return true
}

// ══════════════════════════════════════════════════════════════════════════════
// CHECKER
// ══════════════════════════════════════════════════════════════════════════════

// Checker evaluates the predicates against a CompletenessReader. It never writes.
type Checker struct {
	reader CompletenessReader
}

// NewChecker creates a Checker.
func NewChecker(reader CompletenessReader) *Checker {
	return &Checker{reader: reader}
}

// GradesComplete evaluates the grades predicate for scope.
func (c *Checker) GradesComplete(ctx context.Context, scope Scope) (bool, error) {
	students, err := c.reader.ActiveStudentIDs(ctx, scope.ClassGroupID)
	if err != nil {
		return false, err
	}
	instruments, err := c.reader.ActiveInstrumentIDs(ctx, scope.ClassGroupID)
	if err != nil {
		return false, err
	}
	if len(students) == 0 || len(instruments) == 0 {
		return true, nil
	}
	recorded, err := c.reader.RecordedGrades(ctx, scope)
	if err != nil {
		return false, err
	}
	return GradesComplete(students, instruments, recorded), nil
}

// AttendanceComplete evaluates the attendance predicate for scope.
func (c *Checker) AttendanceComplete(ctx context.Context, scope Scope) (bool, error) {
	students, err := c.reader.ActiveStudentIDs(ctx, scope.ClassGroupID)
	if err != nil {
		return false, err
	}
	days, err := c.reader.SchoolDays(ctx, scope)
	if err != nil {
		return false, err
	}
	if len(students) == 0 || len(days) == 0 {
		return true, nil
	}
	recorded, err := c.reader.RecordedAttendance(ctx, scope)
	if err != nil {
		return false, err
	}
	return AttendanceComplete(students, days, recorded), nil
}

// LessonRecordsComplete evaluates the lesson-record predicate for scope.
func (c *Checker) LessonRecordsComplete(ctx context.Context, scope Scope) (bool, error) {
	days, err := c.reader.SchoolDays(ctx, scope)
	if err != nil {
		return false, err
	}
	if len(days) == 0 {
		return true, nil
	}
	recorded, err := c.reader.RecordedLessonDays(ctx, scope)
	if err != nil {
		return false, err
	}
	return LessonRecordsComplete(days, recorded), nil
}

// Check evaluates all three predicates.
func (c *Checker) Check(ctx context.Context, scope Scope) (Completeness, error) {
	var (
		result Completeness
		err    error
	)
	if result.Grades, err = c.GradesComplete(ctx, scope); err != nil {
		return Completeness{}, err
	}
	if result.Attendance, err = c.AttendanceComplete(ctx, scope); err != nil {
		return Completeness{}, err
	}
	if result.LessonRecords, err = c.LessonRecordsComplete(ctx, scope); err != nil {
		return Completeness{}, err
	}
	return result, nil
}
