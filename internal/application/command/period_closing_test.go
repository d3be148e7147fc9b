package command

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/school-hub/gradebook/internal/domain/academic"
	"github.com/school-hub/gradebook/internal/domain/closing"
	"github.com/school-hub/gradebook/internal/domain/shared"
)

func openClosing(t *testing.T, h *PeriodClosingHandler, periodID string) *closing.PeriodClosing {
	t.Helper()
	pc, err := h.Open(context.Background(), OpenPeriodClosingCommand{
		ClassGroupID:        classID,
		TeacherAssignmentID: assignmentID,
		PeriodID:            periodID,
	})
	require.NoError(t, err)
	return pc
}

func TestPeriodClosing_OpenIsGetOrCreate(t *testing.T) {
	fx := newFixture(t)
	h := fx.closingHandler(nil)

	first := openClosing(t, h, period1)
	second := openClosing(t, h, period1)

	assert.Equal(t, first.ID, second.ID)
	assert.Equal(t, closing.StatusPending, first.Status)
	assert.Equal(t, 1, first.Version)
	assert.Equal(t, []shared.EventType{shared.EventClosingOpened}, fx.publisher.types())

	_, err := h.Open(context.Background(), OpenPeriodClosingCommand{
		ClassGroupID:        classID,
		TeacherAssignmentID: "missing",
		PeriodID:            period1,
	})
	assert.True(t, shared.IsNotFound(err))
}

func TestPeriodClosing_FullWorkflow(t *testing.T) {
	fx := newFixture(t)
	h := fx.closingHandler(nil)
	ctx := context.Background()
	pc := openClosing(t, h, period1)

	// Stored flags start false, so submit is refused.
	_, err := h.Submit(ctx, SubmitPeriodClosingCommand{ClosingID: pc.ID, Actor: teacher})
	require.Error(t, err)
	assert.True(t, errors.Is(err, shared.ErrIncomplete))

	fx.completePeriod(t, period1)
	checked, err := h.CheckCompleteness(ctx, CheckCompletenessCommand{ClosingID: pc.ID})
	require.NoError(t, err)
	assert.True(t, checked.Completeness.All())
	assert.Equal(t, closing.StatusPending, checked.Status)
	require.NotNil(t, checked.CompletenessCheckedAt)

	submitted, err := h.Submit(ctx, SubmitPeriodClosingCommand{ClosingID: pc.ID, Actor: teacher})
	require.NoError(t, err)
	assert.Equal(t, closing.StatusInValidation, submitted.Status)
	assert.Equal(t, teacher.UserID, submitted.Submitted.By)

	_, err = h.Validate(ctx, ValidatePeriodClosingCommand{ClosingID: pc.ID, Approve: false, Actor: coordinator})
	ve, ok := shared.AsValidation(err)
	require.True(t, ok)
	assert.Contains(t, ve.Fields, "reason")

	rejected, err := h.Validate(ctx, ValidatePeriodClosingCommand{ClosingID: pc.ID, Reason: "missing notes", Actor: coordinator})
	require.NoError(t, err)
	assert.Equal(t, closing.StatusPending, rejected.Status)
	assert.Equal(t, "missing notes", rejected.RejectionReason)

	_, err = h.Submit(ctx, SubmitPeriodClosingCommand{ClosingID: pc.ID, Actor: teacher})
	require.NoError(t, err)
	approved, err := h.Validate(ctx, ValidatePeriodClosingCommand{ClosingID: pc.ID, Approve: true, Actor: coordinator})
	require.NoError(t, err)
	assert.Equal(t, closing.StatusApproved, approved.Status)
	assert.Empty(t, approved.RejectionReason)
	assert.Equal(t, coordinator.UserID, approved.Validated.By)

	closed, err := h.Close(ctx, ClosePeriodCommand{ClosingID: pc.ID, Actor: coordinator})
	require.NoError(t, err)
	assert.Equal(t, closing.StatusClosed, closed.Status)
	require.NotNil(t, closed.Approved)

	_, err = h.Close(ctx, ClosePeriodCommand{ClosingID: pc.ID, Actor: coordinator})
	assert.True(t, errors.Is(err, shared.ErrStateTransition))

	_, err = h.Reopen(ctx, ReopenPeriodClosingCommand{ClosingID: pc.ID, Reason: "   ", Actor: coordinator})
	assert.True(t, shared.IsValidation(err))

	reopened, err := h.Reopen(ctx, ReopenPeriodClosingCommand{ClosingID: pc.ID, Reason: "late grade fix", Actor: coordinator})
	require.NoError(t, err)
	assert.Equal(t, closing.StatusPending, reopened.Status)
	assert.Nil(t, reopened.Submitted)
	assert.Nil(t, reopened.Validated)
	assert.Nil(t, reopened.Approved)
	assert.Equal(t, "late grade fix", reopened.ReopenReason)
	require.NotNil(t, reopened.Reopened)
	assert.Equal(t, coordinator.UserID, reopened.Reopened.By)

	stored, err := fx.closings.FindByID(ctx, pc.ID)
	require.NoError(t, err)
	assert.Equal(t, *reopened, *stored)
}

func TestPeriodClosing_CloseFromPendingFails(t *testing.T) {
	fx := newFixture(t)
	h := fx.closingHandler(nil)
	pc := openClosing(t, h, period2)

	_, err := h.Close(context.Background(), ClosePeriodCommand{ClosingID: pc.ID, Actor: coordinator})
	require.Error(t, err)
	assert.True(t, errors.Is(err, shared.ErrStateTransition))

	stored, err := fx.closings.FindByID(context.Background(), pc.ID)
	require.NoError(t, err)
	assert.Equal(t, closing.StatusPending, stored.Status)
}

func TestPeriodClosing_ActorRequired(t *testing.T) {
	fx := newFixture(t)
	h := fx.closingHandler(nil)
	pc := openClosing(t, h, period1)

	_, err := h.Submit(context.Background(), SubmitPeriodClosingCommand{ClosingID: pc.ID})
	assert.True(t, shared.IsValidation(err))
}

func TestTeacherDirectClose(t *testing.T) {
	t.Run("complete period closes in one step", func(t *testing.T) {
		fx := newFixture(t)
		h := fx.closingHandler(nil)
		pc := openClosing(t, h, period1)
		fx.completePeriod(t, period1)

		closed, err := h.TeacherDirectClose(context.Background(), TeacherDirectCloseCommand{ClosingID: pc.ID, Actor: teacher})
		require.NoError(t, err)
		assert.Equal(t, closing.StatusClosed, closed.Status)
		assert.Equal(t, *closed.Submitted, *closed.Approved)
		assert.Nil(t, closed.Validated)
		assert.Contains(t, fx.publisher.types(), shared.EventClosingTransitioned)
	})

	t.Run("missing attendance keeps refreshed flags", func(t *testing.T) {
		fx := newFixture(t)
		h := fx.closingHandler(nil)
		pc := openClosing(t, h, period1)
		fx.completePeriod(t, period1)
		fx.store.DeleteAttendance("s2", classID, assignmentID, fx.periodDays(period1)[2])

		_, err := h.TeacherDirectClose(context.Background(), TeacherDirectCloseCommand{ClosingID: pc.ID, Actor: teacher})
		require.Error(t, err)
		assert.True(t, errors.Is(err, shared.ErrIncomplete))
		ve, ok := shared.AsValidation(err)
		require.True(t, ok)
		assert.Equal(t, map[string]string{closing.AreaAttendance: "attendance pending"}, ve.Fields)

		stored, err := fx.closings.FindByID(context.Background(), pc.ID)
		require.NoError(t, err)
		assert.Equal(t, closing.StatusPending, stored.Status)
		assert.Equal(t, closing.Completeness{Grades: true, Attendance: false, LessonRecords: true}, stored.Completeness)
		assert.NotNil(t, stored.CompletenessCheckedAt)
	})

	t.Run("feature disabled", func(t *testing.T) {
		fx := newFixture(t)
		h := fx.closingHandler(disabled{})
		pc := openClosing(t, h, period1)

		_, err := h.TeacherDirectClose(context.Background(), TeacherDirectCloseCommand{ClosingID: pc.ID, Actor: teacher})
		assert.True(t, errors.Is(err, shared.ErrForbidden))
	})
}

func TestBulkTeacherClose(t *testing.T) {
	t.Run("nothing pending", func(t *testing.T) {
		fx := newFixture(t)
		h := fx.closingHandler(nil)

		_, err := h.BulkTeacherClose(context.Background(), BulkTeacherCloseCommand{
			ClassGroupID:        classID,
			TeacherAssignmentID: assignmentID,
			Actor:               teacher,
		})
		require.Error(t, err)
		assert.True(t, errors.Is(err, shared.ErrInvalidState))
	})

	t.Run("partial success", func(t *testing.T) {
		fx := newFixture(t)
		h := fx.closingHandler(nil)
		complete := openClosing(t, h, period1)
		incomplete := openClosing(t, h, period2)
		fx.completePeriod(t, period1)

		res, err := h.BulkTeacherClose(context.Background(), BulkTeacherCloseCommand{
			ClassGroupID:        classID,
			TeacherAssignmentID: assignmentID,
			Actor:               teacher,
		})
		require.NoError(t, err)
		assert.Equal(t, []string{complete.ID}, res.Succeeded)
		require.Len(t, res.Failed, 1)
		assert.Equal(t, incomplete.ID, res.Failed[0].ID)
		assert.Equal(t, 2, res.Total())

		stored, err := fx.closings.FindByID(context.Background(), incomplete.ID)
		require.NoError(t, err)
		assert.Equal(t, closing.StatusPending, stored.Status)
	})

	t.Run("closed periods are skipped", func(t *testing.T) {
		fx := newFixture(t)
		h := fx.closingHandler(nil)
		pc := openClosing(t, h, period1)
		fx.completePeriod(t, period1)
		_, err := h.TeacherDirectClose(context.Background(), TeacherDirectCloseCommand{ClosingID: pc.ID, Actor: teacher})
		require.NoError(t, err)

		_, err = h.BulkTeacherClose(context.Background(), BulkTeacherCloseCommand{
			ClassGroupID:        classID,
			TeacherAssignmentID: assignmentID,
			Actor:               teacher,
		})
		assert.True(t, errors.Is(err, shared.ErrInvalidState))
	})
}

func TestCheckCompleteness_InactiveStudentIgnored(t *testing.T) {
	fx := newFixture(t)
	h := fx.closingHandler(nil)
	pc := openClosing(t, h, period1)
	fx.completePeriod(t, period1)

	// An inactive member has no rows and does not block the checklist.
	fx.store.Enroll(classID, academic.Student{ID: "s9"}, false, false)

	checked, err := h.CheckCompleteness(context.Background(), CheckCompletenessCommand{ClosingID: pc.ID})
	require.NoError(t, err)
	assert.True(t, checked.Completeness.All())
}
