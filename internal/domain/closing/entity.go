// Package closing governs when a class period's records become locked: the
// completeness checks that gate submission, the closing state machine and the
// rectification requests filed against closed periods.
package closing

import (
	"time"

	"github.com/school-hub/gradebook/internal/domain/shared"
)

// Status is the lifecycle state of a period closing. No state is terminal.
type Status string

const (
	StatusPending      Status = "pending"
	StatusInValidation Status = "in_validation"
	StatusApproved     Status = "approved"
	StatusClosed       Status = "closed"
)

// IsValid reports whether the status is known.
func (s Status) IsValid() bool {
	switch s {
	case StatusPending, StatusInValidation, StatusApproved, StatusClosed:
		return true
	default:
		return false
	}
}

// Key is the natural key of a period closing.
type Key struct {
	ClassGroupID        string
	TeacherAssignmentID string
	PeriodID            string
}

// Stamp records who performed a step and when.
type Stamp struct {
	By string
	At time.Time
}

func stamp(p shared.Principal, at time.Time) *Stamp {
	return &Stamp{By: p.UserID, At: at}
}

// PeriodClosing tracks one (class group, teacher assignment, period) from open
// to locked. Version increases on every save.
type PeriodClosing struct {
	ID                  string
	ClassGroupID        string
	TeacherAssignmentID string
	PeriodID            string
	Status              Status

	// Submitted is set by submit and direct close.
	Submitted *Stamp
	// Validated is set when a validator approves the submission.
	Validated *Stamp
	// Approved is set by close and direct close.
	Approved *Stamp
	// Reopened is set by reopen and kept across later transitions.
	Reopened *Stamp

	RejectionReason string
	ReopenReason    string

	Completeness          Completeness
	CompletenessCheckedAt *time.Time

	Version   int
	CreatedAt time.Time
	UpdatedAt time.Time
}

// NewPeriodClosing creates a Pending closing for key.
func NewPeriodClosing(key Key, now time.Time) *PeriodClosing {
	return &PeriodClosing{
		ID:                  shared.NewID(),
		ClassGroupID:        key.ClassGroupID,
		TeacherAssignmentID: key.TeacherAssignmentID,
		PeriodID:            key.PeriodID,
		Status:              StatusPending,
		CreatedAt:           now,
		UpdatedAt:           now,
	}
}

// Key returns the natural key of the closing.
func (c *PeriodClosing) Key() Key {
	return Key{
		ClassGroupID:        c.ClassGroupID,
		TeacherAssignmentID: c.TeacherAssignmentID,
		PeriodID:            c.PeriodID,
	}
}

// IsClosed reports whether the period is locked.
func (c *PeriodClosing) IsClosed() bool {
	return c.Status == StatusClosed
}
