package command

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/school-hub/gradebook/internal/domain/academic"
	"github.com/school-hub/gradebook/internal/domain/assessment"
	"github.com/school-hub/gradebook/internal/domain/shared"
	"github.com/school-hub/gradebook/internal/infrastructure/persistence/memory"
	"github.com/school-hub/gradebook/pkg/logger"
	"github.com/school-hub/gradebook/pkg/timeutil"
)

const (
	schoolID     = "school-1"
	classID      = "class-1"
	assignmentID = "ta-1"
	period1      = "p1"
	period2      = "p2"
)

var (
	now         = time.Date(2024, 6, 28, 15, 0, 0, 0, time.UTC)
	teacher     = shared.Principal{UserID: "teacher-1", Role: shared.RoleTeacher, SchoolID: schoolID}
	coordinator = shared.Principal{UserID: "coord-1", Role: shared.RoleCoordinator, SchoolID: schoolID}
	students    = []string{"s1", "s2", "s3"}
	instruments = []string{"i1", "i2", "i3"}
)

func f64(v float64) *float64 { return &v }

// recordingPublisher keeps every published event.
type recordingPublisher struct {
	events []shared.Event
}

func (p *recordingPublisher) Publish(e shared.Event) error {
	p.events = append(p.events, e)
	return nil
}

func (p *recordingPublisher) types() []shared.EventType {
	out := make([]shared.EventType, len(p.events))
	for i, e := range p.events {
		out[i] = e.EventType()
	}
	return out
}

type fixture struct {
	store     *memory.Store
	clock     *timeutil.FixedClock
	publisher *recordingPublisher
	directory *memory.Directory
	grades    *memory.GradeRepository
	averages  *memory.PeriodAverageRepository
	finals    *memory.FinalResultRepository
	closings  *memory.ClosingRepository
}

// newFixture seeds one class with three active students, one inactive student,
// two periods of one school week each and a numeric config with three instruments.
func newFixture(t *testing.T) *fixture {
	t.Helper()

	store := memory.NewStore()
	store.PutClassGroup(academic.ClassGroup{ID: classID, SchoolID: schoolID, AcademicYear: 2024, GradeLevel: "5", Active: true})
	store.PutPeriod(academic.Period{ID: period1, SchoolID: schoolID, AcademicYear: 2024, Number: 1,
		StartDate: timeutil.Date(2024, 3, 4), EndDate: timeutil.Date(2024, 3, 8)})
	store.PutPeriod(academic.Period{ID: period2, SchoolID: schoolID, AcademicYear: 2024, Number: 2,
		StartDate: timeutil.Date(2024, 3, 11), EndDate: timeutil.Date(2024, 3, 15)})
	store.PutTeacherAssignment(academic.TeacherAssignment{ID: assignmentID, ClassGroupID: classID, TeacherID: teacher.UserID, Active: true})

	for _, s := range students {
		store.Enroll(classID, academic.Student{ID: s}, true, true)
	}
	store.Enroll(classID, academic.Student{ID: "s-gone"}, false, true)

	cfg := assessment.Config{
		ID:                "cfg-1",
		Scope:             assessment.ScopeKey{SchoolID: schoolID, AcademicYear: 2024, GradeLevel: "5"},
		GradeType:         assessment.GradeTypeNumeric,
		ScaleMin:          0,
		ScaleMax:          10,
		PassingGrade:      f64(6.0),
		Formula:           assessment.FormulaArithmetic,
		RoundingPrecision: 1,
		RecoveryEnabled:   true,
		RecoveryPolicy:    assessment.RecoveryHigher,
	}
	for i, id := range instruments {
		cfg.Instruments = append(cfg.Instruments, assessment.Instrument{ID: id, ConfigID: cfg.ID, Name: id, Order: i, Active: true})
	}
	store.PutConfig(cfg)

	return &fixture{
		store:     store,
		clock:     timeutil.NewFixedClock(now),
		publisher: &recordingPublisher{},
		directory: memory.NewDirectory(store),
		grades:    memory.NewGradeRepository(store),
		averages:  memory.NewPeriodAverageRepository(store),
		finals:    memory.NewFinalResultRepository(store),
		closings:  memory.NewClosingRepository(store),
	}
}

func (fx *fixture) periodDays(periodID string) []time.Time {
	p, _ := fx.directory.Period(context.Background(), periodID)
	return timeutil.SchoolDays(p.StartDate, p.EndDate, nil)
}

func (fx *fixture) grade(t *testing.T, studentID, periodID, instrumentID string, value *float64, recovery bool) {
	t.Helper()
	require.NoError(t, fx.grades.Upsert(context.Background(), &assessment.Grade{
		StudentID:           studentID,
		ClassGroupID:        classID,
		TeacherAssignmentID: assignmentID,
		PeriodID:            periodID,
		InstrumentID:        instrumentID,
		IsRecovery:          recovery,
		NumericValue:        value,
		UpdatedAt:           fx.clock.Now(),
	}))
}

// completePeriod records every grade, attendance row and lesson record of a period.
func (fx *fixture) completePeriod(t *testing.T, periodID string) {
	t.Helper()
	for _, s := range students {
		for _, i := range instruments {
			fx.grade(t, s, periodID, i, f64(7), false)
		}
	}
	for _, d := range fx.periodDays(periodID) {
		fx.store.RecordLesson(assignmentID, d)
		for _, s := range students {
			fx.store.RecordAttendance(s, classID, assignmentID, d, academic.AttendancePresent)
		}
	}
}

func (fx *fixture) periodAverageHandler() *CalculatePeriodAverageHandler {
	return NewCalculatePeriodAverageHandler(
		fx.directory,
		memory.NewConfigRepository(fx.store),
		fx.grades,
		fx.averages,
		memory.NewFrequencyCalculator(fx.store),
		fx.publisher,
		fx.clock,
		logger.Discard(),
	)
}

func (fx *fixture) closingHandler(features FeatureChecker) *PeriodClosingHandler {
	return NewPeriodClosingHandler(
		fx.closings,
		fx.directory,
		memory.NewCompletenessReader(fx.store),
		features,
		fx.publisher,
		fx.clock,
		logger.Discard(),
	)
}

func (fx *fixture) rectificationHandler(features FeatureChecker) *RectificationHandler {
	return NewRectificationHandler(
		memory.NewRectificationRepository(fx.store),
		fx.closings,
		fx.directory,
		features,
		fx.publisher,
		fx.clock,
		logger.Discard(),
	)
}

func (fx *fixture) finalResultHandler() *FinalResultHandler {
	return NewFinalResultHandler(
		fx.directory,
		memory.NewConfigRepository(fx.store),
		fx.averages,
		fx.finals,
		memory.NewFrequencyCalculator(fx.store),
		memory.NewEnrollmentReader(fx.store),
		fx.publisher,
		fx.clock,
		logger.Discard(),
		DefaultFinalResultHandlerConfig(),
	)
}

// disabled turns every feature off.
type disabled struct{}

func (disabled) EnabledForSchool(string, string) bool { return false }
