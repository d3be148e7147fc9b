package postgres

import (
	"context"
	"time"

	"github.com/pkg/errors"

	"github.com/school-hub/gradebook/internal/domain/academic"
	"github.com/school-hub/gradebook/internal/domain/closing"
	"github.com/school-hub/gradebook/internal/domain/shared"
	"github.com/school-hub/gradebook/pkg/timeutil"
)

// ══════════════════════════════════════════════════════════════════════════════
// DIRECTORY
// ══════════════════════════════════════════════════════════════════════════════

// Directory implements academic.Directory for PostgreSQL.
type Directory struct {
	conn *Connection
}

// NewDirectory creates a new Directory.
func NewDirectory(conn *Connection) *Directory {
	return &Directory{conn: conn}
}

// ClassGroup implements academic.Directory.
func (d *Directory) ClassGroup(ctx context.Context, id string) (*academic.ClassGroup, error) {
	var c academic.ClassGroup
	err := d.conn.QueryRow(ctx, `
		SELECT id, school_id, name, academic_year, grade_level, active
		FROM class_groups WHERE id = $1
	`, id).Scan(&c.ID, &c.SchoolID, &c.Name, &c.AcademicYear, &c.GradeLevel, &c.Active)
	if IsNoRows(err) {
		return nil, shared.ErrClassGroupNotFound
	}
	if err != nil {
		return nil, errors.Wrapf(err, "get class group %s", id)
	}
	return &c, nil
}

// Period implements academic.Directory.
func (d *Directory) Period(ctx context.Context, id string) (*academic.Period, error) {
	var p academic.Period
	err := d.conn.QueryRow(ctx, `
		SELECT id, school_id, academic_year, number, name, start_date, end_date
		FROM periods WHERE id = $1
	`, id).Scan(&p.ID, &p.SchoolID, &p.AcademicYear, &p.Number, &p.Name, &p.StartDate, &p.EndDate)
	if IsNoRows(err) {
		return nil, shared.ErrPeriodNotFound
	}
	if err != nil {
		return nil, errors.Wrapf(err, "get period %s", id)
	}
	return &p, nil
}

// TeacherAssignment implements academic.Directory.
func (d *Directory) TeacherAssignment(ctx context.Context, id string) (*academic.TeacherAssignment, error) {
	var a academic.TeacherAssignment
	err := d.conn.QueryRow(ctx, `
		SELECT id, class_group_id, teacher_id, subject_id, active
		FROM teacher_assignments WHERE id = $1
	`, id).Scan(&a.ID, &a.ClassGroupID, &a.TeacherID, &a.SubjectID, &a.Active)
	if IsNoRows(err) {
		return nil, shared.ErrTeacherAssignmentNotFound
	}
	if err != nil {
		return nil, errors.Wrapf(err, "get teacher assignment %s", id)
	}
	return &a, nil
}

// ══════════════════════════════════════════════════════════════════════════════
// ENROLLMENTS
// ══════════════════════════════════════════════════════════════════════════════

// EnrollmentReader implements academic.EnrollmentReader for PostgreSQL.
type EnrollmentReader struct {
	conn *Connection
}

// NewEnrollmentReader creates a new EnrollmentReader.
func NewEnrollmentReader(conn *Connection) *EnrollmentReader {
	return &EnrollmentReader{conn: conn}
}

// ActiveStudents implements academic.EnrollmentReader.
func (r *EnrollmentReader) ActiveStudents(ctx context.Context, classGroupID string) ([]academic.Student, error) {
	return r.students(ctx, `
		SELECT s.id, s.name
		FROM class_members m
		JOIN students s ON s.id = m.student_id
		WHERE m.class_group_id = $1 AND m.active
		ORDER BY s.id
	`, classGroupID)
}

// StudentsWithActiveEnrollment implements academic.EnrollmentReader.
func (r *EnrollmentReader) StudentsWithActiveEnrollment(ctx context.Context, classGroupID string, academicYear int) ([]academic.Student, error) {
	return r.students(ctx, `
		SELECT s.id, s.name
		FROM class_members m
		JOIN students s ON s.id = m.student_id
		JOIN enrollments e ON e.student_id = m.student_id AND e.academic_year = $2
		WHERE m.class_group_id = $1 AND m.active AND e.active
		ORDER BY s.id
	`, classGroupID, academicYear)
}

func (r *EnrollmentReader) students(ctx context.Context, query string, args ...interface{}) ([]academic.Student, error) {
	rows, err := r.conn.Query(ctx, query, args...)
	if err != nil {
		return nil, errors.Wrap(err, "query students")
	}
	defer rows.Close()

	var out []academic.Student
	for rows.Next() {
		var s academic.Student
		if err := rows.Scan(&s.ID, &s.Name); err != nil {
			return nil, errors.Wrap(err, "scan student")
		}
		out = append(out, s)
	}
	return out, rows.Err()
}

// ══════════════════════════════════════════════════════════════════════════════
// FREQUENCY
// ══════════════════════════════════════════════════════════════════════════════

// FrequencyCalculator implements academic.FrequencyCalculator by counting
// attendance rows per status.
type FrequencyCalculator struct {
	conn *Connection
}

// NewFrequencyCalculator creates a new FrequencyCalculator.
func NewFrequencyCalculator(conn *Connection) *FrequencyCalculator {
	return &FrequencyCalculator{conn: conn}
}

// Calculate implements academic.FrequencyCalculator.
func (f *FrequencyCalculator) Calculate(ctx context.Context, q academic.FrequencyQuery) (academic.Frequency, error) {
	rows, err := f.conn.Query(ctx, `
		SELECT status, COUNT(*)
		FROM attendance
		WHERE student_id = $1
		  AND class_group_id = $2
		  AND ($3::text IS NULL OR teacher_assignment_id = $3)
		  AND ($4::date IS NULL OR day >= $4)
		  AND ($5::date IS NULL OR day <= $5)
		GROUP BY status
	`, q.StudentID, q.ClassGroupID, q.TeacherAssignmentID, q.From, q.To)
	if err != nil {
		return academic.Frequency{}, errors.Wrap(err, "count attendance")
	}
	defer rows.Close()

	counts := make(map[academic.AttendanceStatus]int, 4)
	for rows.Next() {
		var status string
		var n int
		if err := rows.Scan(&status, &n); err != nil {
			return academic.Frequency{}, errors.Wrap(err, "scan attendance count")
		}
		counts[academic.AttendanceStatus(status)] = n
	}
	if err := rows.Err(); err != nil {
		return academic.Frequency{}, err
	}

	return academic.NewFrequency(
		counts[academic.AttendancePresent],
		counts[academic.AttendanceAbsent],
		counts[academic.AttendanceJustified],
		counts[academic.AttendanceExcused],
	), nil
}

// ══════════════════════════════════════════════════════════════════════════════
// COMPLETENESS
// ══════════════════════════════════════════════════════════════════════════════

// CompletenessReader implements closing.CompletenessReader for PostgreSQL.
type CompletenessReader struct {
	conn *Connection
}

// NewCompletenessReader creates a new CompletenessReader.
func NewCompletenessReader(conn *Connection) *CompletenessReader {
	return &CompletenessReader{conn: conn}
}

// ActiveStudentIDs implements closing.CompletenessReader.
func (r *CompletenessReader) ActiveStudentIDs(ctx context.Context, classGroupID string) ([]string, error) {
	return r.strings(ctx, `
		SELECT student_id FROM class_members
		WHERE class_group_id = $1 AND active
		ORDER BY student_id
	`, classGroupID)
}

// ActiveInstrumentIDs implements closing.CompletenessReader. A class without
// an assessment config has no instruments.
func (r *CompletenessReader) ActiveInstrumentIDs(ctx context.Context, classGroupID string) ([]string, error) {
	if _, err := NewDirectory(r.conn).ClassGroup(ctx, classGroupID); err != nil {
		return nil, err
	}
	return r.strings(ctx, `
		SELECT i.id
		FROM class_groups cg
		JOIN assessment_configs c
		  ON c.school_id = cg.school_id AND c.academic_year = cg.academic_year AND c.grade_level = cg.grade_level
		JOIN assessment_instruments i ON i.config_id = c.id
		WHERE cg.id = $1 AND i.active
		ORDER BY i.sort_order, i.id
	`, classGroupID)
}

// SchoolDays implements closing.CompletenessReader.
func (r *CompletenessReader) SchoolDays(ctx context.Context, scope closing.Scope) ([]time.Time, error) {
	excluded, err := r.strings(ctx, `
		SELECT to_char(day, 'YYYY-MM-DD') FROM non_school_days
		WHERE school_id = $1 AND day BETWEEN $2::date AND $3::date
	`, scope.SchoolID, timeutil.DayKey(scope.From), timeutil.DayKey(scope.To))
	if err != nil {
		return nil, err
	}

	set := make(map[string]bool, len(excluded))
	for _, d := range excluded {
		set[d] = true
	}
	return timeutil.SchoolDays(scope.From, scope.To, set), nil
}

// RecordedGrades implements closing.CompletenessReader. Every regular
// (non-recovery) grade row counts, whether or not it carries a value.
func (r *CompletenessReader) RecordedGrades(ctx context.Context, scope closing.Scope) ([]closing.StudentInstrument, error) {
	rows, err := r.conn.Query(ctx, `
		SELECT student_id, instrument_id FROM grades
		WHERE class_group_id = $1 AND teacher_assignment_id = $2 AND period_id = $3
		  AND NOT is_recovery
	`, scope.ClassGroupID, scope.TeacherAssignmentID, scope.PeriodID)
	if err != nil {
		return nil, errors.Wrap(err, "query recorded grades")
	}
	defer rows.Close()

	var out []closing.StudentInstrument
	for rows.Next() {
		var si closing.StudentInstrument
		if err := rows.Scan(&si.StudentID, &si.InstrumentID); err != nil {
			return nil, errors.Wrap(err, "scan recorded grade")
		}
		out = append(out, si)
	}
	return out, rows.Err()
}

// RecordedAttendance implements closing.CompletenessReader.
func (r *CompletenessReader) RecordedAttendance(ctx context.Context, scope closing.Scope) ([]closing.StudentDay, error) {
	rows, err := r.conn.Query(ctx, `
		SELECT student_id, to_char(day, 'YYYY-MM-DD') FROM attendance
		WHERE class_group_id = $1 AND teacher_assignment_id = $2
		  AND day BETWEEN $3::date AND $4::date
	`, scope.ClassGroupID, scope.TeacherAssignmentID, timeutil.DayKey(scope.From), timeutil.DayKey(scope.To))
	if err != nil {
		return nil, errors.Wrap(err, "query recorded attendance")
	}
	defer rows.Close()

	var out []closing.StudentDay
	for rows.Next() {
		var sd closing.StudentDay
		if err := rows.Scan(&sd.StudentID, &sd.Day); err != nil {
			return nil, errors.Wrap(err, "scan recorded attendance")
		}
		out = append(out, sd)
	}
	return out, rows.Err()
}

// RecordedLessonDays implements closing.CompletenessReader.
func (r *CompletenessReader) RecordedLessonDays(ctx context.Context, scope closing.Scope) ([]string, error) {
	return r.strings(ctx, `
		SELECT to_char(day, 'YYYY-MM-DD') FROM lesson_records
		WHERE teacher_assignment_id = $1 AND day BETWEEN $2::date AND $3::date
	`, scope.TeacherAssignmentID, timeutil.DayKey(scope.From), timeutil.DayKey(scope.To))
}

func (r *CompletenessReader) strings(ctx context.Context, query string, args ...interface{}) ([]string, error) {
	rows, err := r.conn.Query(ctx, query, args...)
	if err != nil {
		return nil, errors.Wrap(err, "query completeness")
	}
	defer rows.Close()

	var out []string
	for rows.Next() {
		var s string
		if err := rows.Scan(&s); err != nil {
			return nil, errors.Wrap(err, "scan completeness row")
		}
		out = append(out, s)
	}
	return out, rows.Err()
}
