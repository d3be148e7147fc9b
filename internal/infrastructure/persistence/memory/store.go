// Package memory provides in-process implementations of every gradebook port,
// backed by one mutex-guarded Store. It is used by tests and by the CLI's
// dry-run mode.
package memory

import (
	"sync"
	"time"

	"github.com/school-hub/gradebook/internal/domain/academic"
	"github.com/school-hub/gradebook/internal/domain/assessment"
	"github.com/school-hub/gradebook/internal/domain/closing"
	"github.com/school-hub/gradebook/internal/domain/result"
	"github.com/school-hub/gradebook/pkg/timeutil"
)

type membership struct {
	student          academic.Student
	active           bool
	enrollmentActive bool
}

type attendanceKey struct {
	studentID           string
	classGroupID        string
	teacherAssignmentID string
	day                 string
}

type lessonKey struct {
	teacherAssignmentID string
	day                 string
}

// Store holds every table. All repositories created from the same Store share it.
type Store struct {
	mu sync.RWMutex

	classGroups   map[string]academic.ClassGroup
	periods       map[string]academic.Period
	assignments   map[string]academic.TeacherAssignment
	members       map[string][]membership
	attendance    map[attendanceKey]academic.AttendanceStatus
	lessons       map[lessonKey]struct{}
	nonSchoolDays map[string]map[string]bool

	configs  map[assessment.ScopeKey]assessment.Config
	grades   map[assessment.GradeKey]assessment.Grade
	averages map[result.PeriodAverageKey]result.PeriodAverage
	finals   map[result.FinalResultKey]result.FinalResult

	closings       map[string]closing.PeriodClosing
	rectifications map[string]closing.Rectification
}

// NewStore creates an empty store.
func NewStore() *Store {
	return &Store{
		classGroups:    make(map[string]academic.ClassGroup),
		periods:        make(map[string]academic.Period),
		assignments:    make(map[string]academic.TeacherAssignment),
		members:        make(map[string][]membership),
		attendance:     make(map[attendanceKey]academic.AttendanceStatus),
		lessons:        make(map[lessonKey]struct{}),
		nonSchoolDays:  make(map[string]map[string]bool),
		configs:        make(map[assessment.ScopeKey]assessment.Config),
		grades:         make(map[assessment.GradeKey]assessment.Grade),
		averages:       make(map[result.PeriodAverageKey]result.PeriodAverage),
		finals:         make(map[result.FinalResultKey]result.FinalResult),
		closings:       make(map[string]closing.PeriodClosing),
		rectifications: make(map[string]closing.Rectification),
	}
}

// ══════════════════════════════════════════════════════════════════════════════
// SEEDING
// ══════════════════════════════════════════════════════════════════════════════

// PutClassGroup inserts or replaces a class group.
func (s *Store) PutClassGroup(c academic.ClassGroup) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.classGroups[c.ID] = c
}

// PutPeriod inserts or replaces a period.
func (s *Store) PutPeriod(p academic.Period) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.periods[p.ID] = p
}

// PutTeacherAssignment inserts or replaces a teacher assignment.
func (s *Store) PutTeacherAssignment(a academic.TeacherAssignment) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.assignments[a.ID] = a
}

// Enroll adds a student to a class group. active is the class assignment
// status, enrollmentActive the status of the year's enrollment.
func (s *Store) Enroll(classGroupID string, student academic.Student, active, enrollmentActive bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.members[classGroupID] = append(s.members[classGroupID], membership{
		student:          student,
		active:           active,
		enrollmentActive: enrollmentActive,
	})
}

// PutConfig inserts or replaces an assessment config.
func (s *Store) PutConfig(c assessment.Config) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.configs[c.Scope] = c
}

// RecordAttendance upserts one attendance row.
func (s *Store) RecordAttendance(studentID, classGroupID, teacherAssignmentID string, day time.Time, status academic.AttendanceStatus) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.attendance[attendanceKey{studentID, classGroupID, teacherAssignmentID, timeutil.DayKey(day)}] = status
}

// DeleteAttendance removes one attendance row.
func (s *Store) DeleteAttendance(studentID, classGroupID, teacherAssignmentID string, day time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.attendance, attendanceKey{studentID, classGroupID, teacherAssignmentID, timeutil.DayKey(day)})
}

// RecordLesson marks a lesson record for the assignment on day.
func (s *Store) RecordLesson(teacherAssignmentID string, day time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.lessons[lessonKey{teacherAssignmentID, timeutil.DayKey(day)}] = struct{}{}
}

// AddNonSchoolDay excludes day from the school calendar.
func (s *Store) AddNonSchoolDay(schoolID string, day time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.nonSchoolDays[schoolID] == nil {
		s.nonSchoolDays[schoolID] = make(map[string]bool)
	}
	s.nonSchoolDays[schoolID][timeutil.DayKey(day)] = true
}

// CountPeriodAverages returns the number of stored period averages.
func (s *Store) CountPeriodAverages() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.averages)
}

// CountFinalResults returns the number of stored final results.
func (s *Store) CountFinalResults() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.finals)
}
