package command

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/school-hub/gradebook/internal/domain/academic"
	"github.com/school-hub/gradebook/internal/domain/assessment"
	"github.com/school-hub/gradebook/internal/domain/result"
	"github.com/school-hub/gradebook/internal/domain/shared"
	"github.com/school-hub/gradebook/internal/infrastructure/persistence/memory"
	"github.com/school-hub/gradebook/pkg/logger"
)

func periodCmd(studentID string) CalculatePeriodAverageCommand {
	return CalculatePeriodAverageCommand{
		StudentID:           studentID,
		ClassGroupID:        classID,
		TeacherAssignmentID: assignmentID,
		PeriodID:            period1,
	}
}

func TestCalculatePeriodAverage_BlendsGradesAndFrequency(t *testing.T) {
	fx := newFixture(t)
	fx.grade(t, "s1", period1, "i1", f64(8), false)
	fx.grade(t, "s1", period1, "i2", f64(6), false)

	days := fx.periodDays(period1)
	for i, d := range days {
		status := academic.AttendancePresent
		if i == 0 {
			status = academic.AttendanceAbsent
		}
		fx.store.RecordAttendance("s1", classID, assignmentID, d, status)
	}

	res, err := fx.periodAverageHandler().Handle(context.Background(), periodCmd("s1"))
	require.NoError(t, err)

	assert.True(t, res.ConfigResolved)
	assert.False(t, res.RecoveryApplied)
	require.NotNil(t, res.PeriodAverage.NumericAverage)
	assert.Equal(t, 7.0, *res.PeriodAverage.NumericAverage)
	assert.Equal(t, 1, res.PeriodAverage.TotalAbsences)
	assert.Equal(t, 80.0, res.PeriodAverage.FrequencyPercentage)
	assert.Equal(t, now, res.PeriodAverage.CalculatedAt)
	assert.Equal(t, []shared.EventType{shared.EventPeriodAverageCalculated}, fx.publisher.types())
}

func TestCalculatePeriodAverage_RecoveryReplacesAverage(t *testing.T) {
	fx := newFixture(t)
	fx.grade(t, "s1", period1, "i1", f64(5), false)
	fx.grade(t, "s1", period1, "i2", f64(5), false)
	fx.grade(t, "s1", period1, "rec", f64(7), true)

	res, err := fx.periodAverageHandler().Handle(context.Background(), periodCmd("s1"))
	require.NoError(t, err)

	assert.True(t, res.RecoveryApplied)
	assert.Equal(t, 7.0, *res.PeriodAverage.NumericAverage)
}

func TestCalculatePeriodAverage_RecoveryWithoutValueCountsAsZero(t *testing.T) {
	fx := newFixture(t)
	cfg, _ := memory.NewConfigRepository(fx.store).FindByScope(context.Background(),
		assessment.ScopeKey{SchoolID: schoolID, AcademicYear: 2024, GradeLevel: "5"})
	cfg.RecoveryPolicy = assessment.RecoveryLast
	fx.store.PutConfig(*cfg)

	fx.grade(t, "s1", period1, "i1", f64(5), false)
	fx.grade(t, "s1", period1, "rec", nil, true)

	res, err := fx.periodAverageHandler().Handle(context.Background(), periodCmd("s1"))
	require.NoError(t, err)
	assert.Equal(t, 0.0, *res.PeriodAverage.NumericAverage)
}

func TestCalculatePeriodAverage_ConceptualRecoveryUsesScale(t *testing.T) {
	fx := newFixture(t)
	cfg, _ := memory.NewConfigRepository(fx.store).FindByScope(context.Background(),
		assessment.ScopeKey{SchoolID: schoolID, AcademicYear: 2024, GradeLevel: "5"})
	cfg.GradeType = assessment.GradeTypeConceptual
	cfg.Scale = []assessment.ScaleEntry{
		{Code: "PS", NumericEquivalent: 9.0, Passing: true},
		{Code: "S", NumericEquivalent: 7.0, Passing: true},
	}
	fx.store.PutConfig(*cfg)

	for _, g := range []struct {
		instrument, code string
		recovery         bool
	}{{"i1", "S", false}, {"rec", "PS", true}} {
		code := g.code
		require.NoError(t, fx.grades.Upsert(context.Background(), &assessment.Grade{
			StudentID:           "s1",
			ClassGroupID:        classID,
			TeacherAssignmentID: assignmentID,
			PeriodID:            period1,
			InstrumentID:        g.instrument,
			IsRecovery:          g.recovery,
			ConceptualValue:     &code,
			UpdatedAt:           fx.clock.Now(),
		}))
	}

	res, err := fx.periodAverageHandler().Handle(context.Background(), periodCmd("s1"))
	require.NoError(t, err)
	assert.True(t, res.RecoveryApplied)
	require.NotNil(t, res.PeriodAverage.NumericAverage)
	assert.Equal(t, 9.0, *res.PeriodAverage.NumericAverage)
}

func TestCalculatePeriodAverage_NoConfigSkipsGrades(t *testing.T) {
	fx := newFixture(t)
	fx.store.PutClassGroup(academic.ClassGroup{ID: "class-2", SchoolID: schoolID, AcademicYear: 2024, GradeLevel: "9"})
	fx.store.RecordAttendance("s1", "class-2", assignmentID, fx.periodDays(period1)[0], academic.AttendanceAbsent)

	cmd := periodCmd("s1")
	cmd.ClassGroupID = "class-2"
	res, err := fx.periodAverageHandler().Handle(context.Background(), cmd)
	require.NoError(t, err)

	assert.False(t, res.ConfigResolved)
	assert.Nil(t, res.PeriodAverage.NumericAverage)
	assert.Equal(t, 0.0, res.PeriodAverage.FrequencyPercentage)
	assert.Equal(t, 1, res.PeriodAverage.TotalAbsences)
}

func TestCalculatePeriodAverage_Idempotent(t *testing.T) {
	fx := newFixture(t)
	fx.grade(t, "s1", period1, "i1", f64(9), false)
	h := fx.periodAverageHandler()

	first, err := h.Handle(context.Background(), periodCmd("s1"))
	require.NoError(t, err)
	second, err := h.Handle(context.Background(), periodCmd("s1"))
	require.NoError(t, err)

	assert.Equal(t, 1, fx.store.CountPeriodAverages())
	assert.Equal(t, first.PeriodAverage, second.PeriodAverage)

	stored, err := fx.averages.FindByKey(context.Background(), first.PeriodAverage.PeriodAverageKey)
	require.NoError(t, err)
	assert.Equal(t, *first.PeriodAverage, *stored)
}

func TestCalculatePeriodAverage_Errors(t *testing.T) {
	fx := newFixture(t)
	h := fx.periodAverageHandler()

	_, err := h.Handle(context.Background(), CalculatePeriodAverageCommand{})
	require.Error(t, err)
	ve, ok := shared.AsValidation(err)
	require.True(t, ok)
	assert.Contains(t, ve.Fields, "student_id")
	assert.Contains(t, ve.Fields, "period_id")

	cmd := periodCmd("s1")
	cmd.PeriodID = "missing"
	_, err = h.Handle(context.Background(), cmd)
	assert.True(t, shared.IsNotFound(err))
}

func TestCalculateClassPeriodAverages(t *testing.T) {
	fx := newFixture(t)
	fx.completePeriod(t, period1)

	bulk := NewCalculateClassPeriodAveragesHandler(fx.periodAverageHandler(), memory.NewEnrollmentReader(fx.store), logger.Discard())
	res, err := bulk.Handle(context.Background(), CalculateClassPeriodAveragesCommand{
		ClassGroupID:        classID,
		TeacherAssignmentID: assignmentID,
		PeriodID:            period1,
	})
	require.NoError(t, err)

	assert.Equal(t, students, res.Succeeded)
	assert.Empty(t, res.Failed)
	require.Len(t, res.Averages, 3)
	for _, avg := range res.Averages {
		assert.Equal(t, 7.0, *avg.NumericAverage)
		assert.Equal(t, 100.0, avg.FrequencyPercentage)
	}

	list, err := fx.averages.ListByStudent(context.Background(), "s2", classID)
	require.NoError(t, err)
	assert.Equal(t, []result.PeriodAverage{*res.Averages[1]}, list)
}
