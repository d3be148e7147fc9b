package closing

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/school-hub/gradebook/internal/domain/shared"
)

var (
	t0      = time.Date(2024, 4, 30, 12, 0, 0, 0, time.UTC)
	teacher = shared.Principal{UserID: "teacher-1", Role: shared.RoleTeacher}
	coord   = shared.Principal{UserID: "coord-1", Role: shared.RoleCoordinator}
	full    = Completeness{Grades: true, Attendance: true, LessonRecords: true}
)

func newClosing(status Status, c Completeness) *PeriodClosing {
	pc := NewPeriodClosing(Key{ClassGroupID: "class", TeacherAssignmentID: "ta", PeriodID: "p1"}, t0)
	pc.Status = status
	pc.Completeness = c
	return pc
}

func TestNextStatus_Table(t *testing.T) {
	legal := []struct {
		from   Status
		action Action
		to     Status
	}{
		{StatusPending, ActionSubmit, StatusInValidation},
		{StatusInValidation, ActionApprove, StatusApproved},
		{StatusInValidation, ActionReject, StatusPending},
		{StatusApproved, ActionClose, StatusClosed},
		{StatusPending, ActionDirectClose, StatusClosed},
		{StatusClosed, ActionReopen, StatusPending},
	}
	for _, tt := range legal {
		got, err := NextStatus(tt.from, tt.action)
		require.NoError(t, err, "%s/%s", tt.from, tt.action)
		assert.Equal(t, tt.to, got)
	}

	illegal := []struct {
		from   Status
		action Action
	}{
		{StatusPending, ActionClose},
		{StatusApproved, ActionDirectClose},
		{StatusInValidation, ActionDirectClose},
		{StatusClosed, ActionSubmit},
		{StatusPending, ActionReopen},
		{StatusApproved, ActionReopen},
		{StatusPending, ActionApprove},
	}
	for _, tt := range illegal {
		_, err := NextStatus(tt.from, tt.action)
		require.Error(t, err, "%s/%s", tt.from, tt.action)
		assert.True(t, errors.Is(err, shared.ErrValidation))
		assert.True(t, errors.Is(err, shared.ErrStateTransition))

		ve, ok := shared.AsValidation(err)
		require.True(t, ok)
		assert.Equal(t, string(tt.from), ve.Fields["status"])
		assert.Equal(t, string(tt.action), ve.Fields["action"])
	}
}

func TestSubmit_RequiresCompleteness(t *testing.T) {
	pc := newClosing(StatusPending, Completeness{Grades: true, Attendance: false, LessonRecords: true})

	err := pc.Submit(teacher, t0)
	require.Error(t, err)
	assert.True(t, errors.Is(err, shared.ErrIncomplete))
	ve, _ := shared.AsValidation(err)
	_, missing := ve.Field(AreaAttendance)
	assert.True(t, missing)
	assert.Len(t, ve.Fields, 1)
	assert.Equal(t, StatusPending, pc.Status)
	assert.Nil(t, pc.Submitted)

	pc.Completeness = full
	require.NoError(t, pc.Submit(teacher, t0))
	assert.Equal(t, StatusInValidation, pc.Status)
	require.NotNil(t, pc.Submitted)
	assert.Equal(t, "teacher-1", pc.Submitted.By)
	assert.Equal(t, t0, pc.Submitted.At)
}

func TestSubmit_WrongStateIsReportedFirst(t *testing.T) {
	pc := newClosing(StatusApproved, Completeness{})

	err := pc.Submit(teacher, t0)
	assert.True(t, errors.Is(err, shared.ErrStateTransition))
	assert.False(t, errors.Is(err, shared.ErrIncomplete))
}

func TestValidate_ApproveAndReject(t *testing.T) {
	pc := newClosing(StatusPending, full)
	require.NoError(t, pc.Submit(teacher, t0))

	require.NoError(t, pc.Reject("missing grades for Ana", t0.Add(time.Hour)))
	assert.Equal(t, StatusPending, pc.Status)
	assert.Equal(t, "missing grades for Ana", pc.RejectionReason)
	require.NotNil(t, pc.Submitted)
	assert.Equal(t, t0, pc.Submitted.At)

	require.NoError(t, pc.Submit(teacher, t0.Add(2*time.Hour)))
	require.NoError(t, pc.Approve(coord, t0.Add(3*time.Hour)))
	assert.Equal(t, StatusApproved, pc.Status)
	assert.Empty(t, pc.RejectionReason)
	require.NotNil(t, pc.Validated)
	assert.Equal(t, "coord-1", pc.Validated.By)
}

func TestClose_OnlyFromApproved(t *testing.T) {
	pc := newClosing(StatusPending, full)
	err := pc.Close(coord, t0)
	assert.True(t, shared.IsValidation(err))
	assert.Equal(t, StatusPending, pc.Status)

	pc.Status = StatusApproved
	require.NoError(t, pc.Close(coord, t0))
	assert.Equal(t, StatusClosed, pc.Status)
	require.NotNil(t, pc.Approved)
	assert.Equal(t, "coord-1", pc.Approved.By)
}

func TestDirectClose(t *testing.T) {
	pc := newClosing(StatusPending, Completeness{Grades: true})
	err := pc.DirectClose(teacher, t0)
	require.Error(t, err)
	ve, _ := shared.AsValidation(err)
	assert.Contains(t, ve.Fields, AreaAttendance)
	assert.Contains(t, ve.Fields, AreaLessonRecords)

	pc.Completeness = full
	require.NoError(t, pc.DirectClose(teacher, t0))
	assert.Equal(t, StatusClosed, pc.Status)
	assert.Equal(t, &Stamp{By: "teacher-1", At: t0}, pc.Submitted)
	assert.Equal(t, &Stamp{By: "teacher-1", At: t0}, pc.Approved)

	approved := newClosing(StatusApproved, full)
	assert.Error(t, approved.DirectClose(teacher, t0))
}

func TestReopen(t *testing.T) {
	pc := newClosing(StatusPending, full)
	require.NoError(t, pc.Submit(teacher, t0))
	require.NoError(t, pc.Approve(coord, t0))
	require.NoError(t, pc.Close(coord, t0))

	assert.Error(t, pc.Reopen(coord, "  ", t0))
	assert.Equal(t, StatusClosed, pc.Status)

	later := t0.Add(24 * time.Hour)
	require.NoError(t, pc.Reopen(coord, "wrong attendance on 04/12", later))
	assert.Equal(t, StatusPending, pc.Status)
	assert.Nil(t, pc.Submitted)
	assert.Nil(t, pc.Validated)
	assert.Nil(t, pc.Approved)
	assert.Equal(t, "wrong attendance on 04/12", pc.ReopenReason)
	assert.Equal(t, &Stamp{By: "coord-1", At: later}, pc.Reopened)

	for _, s := range []Status{StatusPending, StatusInValidation, StatusApproved} {
		other := newClosing(s, full)
		err := other.Reopen(coord, "reason", t0)
		assert.True(t, errors.Is(err, shared.ErrStateTransition), s)
	}
}

func TestRecordCompleteness_KeepsStatus(t *testing.T) {
	pc := newClosing(StatusApproved, Completeness{})
	pc.RecordCompleteness(full, t0)
	assert.Equal(t, StatusApproved, pc.Status)
	assert.True(t, pc.Completeness.All())
	require.NotNil(t, pc.CompletenessCheckedAt)
}

func TestRectification(t *testing.T) {
	req := RectificationRequest{EntityType: "grade", EntityID: "g1", FieldChanged: "numeric_value", OldValue: "5", NewValue: "7", Justification: "typo"}

	_, err := NewRectification(newClosing(StatusApproved, full), req, teacher, t0)
	assert.True(t, shared.IsValidation(err))

	closed := newClosing(StatusClosed, full)
	r, err := NewRectification(closed, req, teacher, t0)
	require.NoError(t, err)
	assert.Equal(t, RectificationRequested, r.Status)
	assert.Equal(t, closed.ID, r.ClosingID)
	assert.Equal(t, "teacher-1", r.RequestedBy)

	require.NoError(t, r.Decide(true, coord, t0))
	assert.Equal(t, RectificationApproved, r.Status)
	assert.Equal(t, "coord-1", r.DecidedBy)

	assert.True(t, errors.Is(r.Decide(false, coord, t0), shared.ErrStateTransition))
}
