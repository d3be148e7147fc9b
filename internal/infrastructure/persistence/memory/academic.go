package memory

import (
	"context"
	"sort"
	"time"

	"github.com/school-hub/gradebook/internal/domain/academic"
	"github.com/school-hub/gradebook/internal/domain/closing"
	"github.com/school-hub/gradebook/internal/domain/shared"
	"github.com/school-hub/gradebook/pkg/timeutil"
)

// Directory implements academic.Directory.
type Directory struct {
	db *Store
}

// NewDirectory creates a Directory over db.
func NewDirectory(db *Store) *Directory {
	return &Directory{db: db}
}

// ClassGroup implements academic.Directory.
func (d *Directory) ClassGroup(_ context.Context, id string) (*academic.ClassGroup, error) {
	d.db.mu.RLock()
	defer d.db.mu.RUnlock()
	if c, ok := d.db.classGroups[id]; ok {
		return &c, nil
	}
	return nil, shared.ErrClassGroupNotFound
}

// Period implements academic.Directory.
func (d *Directory) Period(_ context.Context, id string) (*academic.Period, error) {
	d.db.mu.RLock()
	defer d.db.mu.RUnlock()
	if p, ok := d.db.periods[id]; ok {
		return &p, nil
	}
	return nil, shared.ErrPeriodNotFound
}

// TeacherAssignment implements academic.Directory.
func (d *Directory) TeacherAssignment(_ context.Context, id string) (*academic.TeacherAssignment, error) {
	d.db.mu.RLock()
	defer d.db.mu.RUnlock()
	if a, ok := d.db.assignments[id]; ok {
		return &a, nil
	}
	return nil, shared.ErrTeacherAssignmentNotFound
}

// EnrollmentReader implements academic.EnrollmentReader.
type EnrollmentReader struct {
	db *Store
}

// NewEnrollmentReader creates an EnrollmentReader over db.
func NewEnrollmentReader(db *Store) *EnrollmentReader {
	return &EnrollmentReader{db: db}
}

func (r *EnrollmentReader) students(classGroupID string, keep func(membership) bool) []academic.Student {
	r.db.mu.RLock()
	defer r.db.mu.RUnlock()
	out := make([]academic.Student, 0, len(r.db.members[classGroupID]))
	for _, m := range r.db.members[classGroupID] {
		if keep(m) {
			out = append(out, m.student)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// ActiveStudents implements academic.EnrollmentReader.
func (r *EnrollmentReader) ActiveStudents(_ context.Context, classGroupID string) ([]academic.Student, error) {
	return r.students(classGroupID, func(m membership) bool { return m.active }), nil
}

// StudentsWithActiveEnrollment implements academic.EnrollmentReader. The store
// keeps one enrollment per membership, so the year is implied by the class.
func (r *EnrollmentReader) StudentsWithActiveEnrollment(_ context.Context, classGroupID string, _ int) ([]academic.Student, error) {
	return r.students(classGroupID, func(m membership) bool { return m.active && m.enrollmentActive }), nil
}

// FrequencyCalculator implements academic.FrequencyCalculator from attendance rows.
type FrequencyCalculator struct {
	db *Store
}

// NewFrequencyCalculator creates a FrequencyCalculator over db.
func NewFrequencyCalculator(db *Store) *FrequencyCalculator {
	return &FrequencyCalculator{db: db}
}

// Calculate implements academic.FrequencyCalculator.
func (f *FrequencyCalculator) Calculate(_ context.Context, q academic.FrequencyQuery) (academic.Frequency, error) {
	f.db.mu.RLock()
	defer f.db.mu.RUnlock()

	rng := shared.DateRange{From: q.From, To: q.To}
	var present, absent, justified, excused int
	for k, status := range f.db.attendance {
		if k.studentID != q.StudentID || k.classGroupID != q.ClassGroupID {
			continue
		}
		if q.TeacherAssignmentID != nil && k.teacherAssignmentID != *q.TeacherAssignmentID {
			continue
		}
		day, err := timeutil.ParseDate(k.day)
		if err != nil || !rng.Contains(day) {
			continue
		}
		switch status {
		case academic.AttendancePresent:
			present++
		case academic.AttendanceAbsent:
			absent++
		case academic.AttendanceJustified:
			justified++
		case academic.AttendanceExcused:
			excused++
		}
	}
	return academic.NewFrequency(present, absent, justified, excused), nil
}

// CompletenessReader implements closing.CompletenessReader.
type CompletenessReader struct {
	db *Store
}

// NewCompletenessReader creates a CompletenessReader over db.
func NewCompletenessReader(db *Store) *CompletenessReader {
	return &CompletenessReader{db: db}
}

// ActiveStudentIDs implements closing.CompletenessReader.
func (r *CompletenessReader) ActiveStudentIDs(ctx context.Context, classGroupID string) ([]string, error) {
	students, err := NewEnrollmentReader(r.db).ActiveStudents(ctx, classGroupID)
	if err != nil {
		return nil, err
	}
	ids := make([]string, len(students))
	for i, s := range students {
		ids[i] = s.ID
	}
	return ids, nil
}

// ActiveInstrumentIDs implements closing.CompletenessReader.
func (r *CompletenessReader) ActiveInstrumentIDs(_ context.Context, classGroupID string) ([]string, error) {
	r.db.mu.RLock()
	defer r.db.mu.RUnlock()
	cg, ok := r.db.classGroups[classGroupID]
	if !ok {
		return nil, shared.ErrClassGroupNotFound
	}
	cfg, ok := r.db.configs[cg.ConfigScope()]
	if !ok {
		return nil, nil
	}
	active := cfg.ActiveInstruments()
	ids := make([]string, len(active))
	for i, in := range active {
		ids[i] = in.ID
	}
	return ids, nil
}

// SchoolDays implements closing.CompletenessReader.
func (r *CompletenessReader) SchoolDays(_ context.Context, scope closing.Scope) ([]time.Time, error) {
	r.db.mu.RLock()
	defer r.db.mu.RUnlock()
	return timeutil.SchoolDays(scope.From, scope.To, r.db.nonSchoolDays[scope.SchoolID]), nil
}

// RecordedGrades implements closing.CompletenessReader.
func (r *CompletenessReader) RecordedGrades(_ context.Context, scope closing.Scope) ([]closing.StudentInstrument, error) {
	r.db.mu.RLock()
	defer r.db.mu.RUnlock()
	var out []closing.StudentInstrument
	for k := range r.db.grades {
		if k.IsRecovery || k.ClassGroupID != scope.ClassGroupID ||
			k.TeacherAssignmentID != scope.TeacherAssignmentID || k.PeriodID != scope.PeriodID {
			continue
		}
		out = append(out, closing.StudentInstrument{StudentID: k.StudentID, InstrumentID: k.InstrumentID})
	}
	return out, nil
}

// RecordedAttendance implements closing.CompletenessReader.
func (r *CompletenessReader) RecordedAttendance(_ context.Context, scope closing.Scope) ([]closing.StudentDay, error) {
	r.db.mu.RLock()
	defer r.db.mu.RUnlock()
	rng := shared.Between(scope.From, scope.To)
	var out []closing.StudentDay
	for k := range r.db.attendance {
		if k.classGroupID != scope.ClassGroupID || k.teacherAssignmentID != scope.TeacherAssignmentID {
			continue
		}
		if day, err := timeutil.ParseDate(k.day); err != nil || !rng.Contains(day) {
			continue
		}
		out = append(out, closing.StudentDay{StudentID: k.studentID, Day: k.day})
	}
	return out, nil
}

// RecordedLessonDays implements closing.CompletenessReader.
func (r *CompletenessReader) RecordedLessonDays(_ context.Context, scope closing.Scope) ([]string, error) {
	r.db.mu.RLock()
	defer r.db.mu.RUnlock()
	var out []string
	for k := range r.db.lessons {
		if k.teacherAssignmentID == scope.TeacherAssignmentID {
			out = append(out, k.day)
		}
	}
	return out, nil
}
