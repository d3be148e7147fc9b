package closing

import (
	"fmt"
	"strings"
	"time"

	"github.com/school-hub/gradebook/internal/domain/shared"
)

// Action is an attempted lifecycle step.
type Action string

const (
	ActionSubmit      Action = "submit"
	ActionApprove     Action = "approve"
	ActionReject      Action = "reject"
	ActionClose       Action = "close"
	ActionDirectClose Action = "direct_close"
	ActionReopen      Action = "reopen"
)

type transitionKey struct {
	from   Status
	action Action
}

// transitions lists every legal (status, action) pair. Direct close and the
// Approved→Closed path are separate entries.
var transitions = map[transitionKey]Status{
	{StatusPending, ActionSubmit}:       StatusInValidation,
	{StatusInValidation, ActionApprove}: StatusApproved,
	{StatusInValidation, ActionReject}:  StatusPending,
	{StatusApproved, ActionClose}:       StatusClosed,
	{StatusPending, ActionDirectClose}:  StatusClosed,
	{StatusClosed, ActionReopen}:        StatusPending,
}

// NextStatus looks up the target of an action. Illegal pairs fail with a
// ValidationError matching shared.ErrStateTransition.
func NextStatus(from Status, action Action) (Status, error) {
	to, ok := transitions[transitionKey{from, action}]
	if !ok {
		return "", shared.NewValidationError("closing", string(action),
			fmt.Sprintf("cannot %s a closing in status %s", action, from),
			map[string]string{
				"status": string(from),
				"action": string(action),
			}).WithKind(shared.ErrStateTransition)
	}
	return to, nil
}

// CanTransition reports whether action is legal from the closing's status.
func (c *PeriodClosing) CanTransition(action Action) bool {
	_, ok := transitions[transitionKey{c.Status, action}]
	return ok
}

func (c *PeriodClosing) move(action Action, now time.Time) (Status, error) {
	to, err := NextStatus(c.Status, action)
	if err != nil {
		return "", err
	}
	c.Status = to
	c.UpdatedAt = now
	return to, nil
}

// RecordCompleteness stores the outcome of a completeness check. Status is untouched.
func (c *PeriodClosing) RecordCompleteness(result Completeness, now time.Time) {
	c.Completeness = result
	c.CompletenessCheckedAt = &now
	c.UpdatedAt = now
}

// Submit moves Pending → InValidation when every stored completeness flag is set.
func (c *PeriodClosing) Submit(actor shared.Principal, now time.Time) error {
	if _, err := NextStatus(c.Status, ActionSubmit); err != nil {
		return err
	}
	if err := c.Completeness.require(ActionSubmit); err != nil {
		return err
	}
	_, _ = c.move(ActionSubmit, now)
	c.Submitted = stamp(actor, now)
	return nil
}

// Approve moves InValidation → Approved and clears any rejection reason.
func (c *PeriodClosing) Approve(actor shared.Principal, now time.Time) error {
	if _, err := c.move(ActionApprove, now); err != nil {
		return err
	}
	c.Validated = stamp(actor, now)
	c.RejectionReason = ""
	return nil
}

// Reject sends an InValidation closing back to Pending. The submission stamp
// is left as it was.
func (c *PeriodClosing) Reject(reason string, now time.Time) error {
	if _, err := c.move(ActionReject, now); err != nil {
		return err
	}
	c.RejectionReason = reason
	return nil
}

// Close moves Approved → Closed.
func (c *PeriodClosing) Close(actor shared.Principal, now time.Time) error {
	if _, err := c.move(ActionClose, now); err != nil {
		return err
	}
	c.Approved = stamp(actor, now)
	return nil
}

// DirectClose moves Pending → Closed in one step. The caller refreshes the
// completeness flags first; any missing area fails the transition.
func (c *PeriodClosing) DirectClose(actor shared.Principal, now time.Time) error {
	if _, err := NextStatus(c.Status, ActionDirectClose); err != nil {
		return err
	}
	if err := c.Completeness.require(ActionDirectClose); err != nil {
		return err
	}
	_, _ = c.move(ActionDirectClose, now)
	c.Submitted = stamp(actor, now)
	c.Approved = stamp(actor, now)
	return nil
}

// Reopen moves Closed → Pending, clearing the submission, validation and
// approval stamps. A reason is mandatory.
func (c *PeriodClosing) Reopen(actor shared.Principal, reason string, now time.Time) error {
	if _, err := NextStatus(c.Status, ActionReopen); err != nil {
		return err
	}
	if strings.TrimSpace(reason) == "" {
		return shared.NewValidationError("closing", string(ActionReopen), "a reason is required to reopen a period",
			map[string]string{"reason": "required"})
	}
	_, _ = c.move(ActionReopen, now)
	c.Submitted = nil
	c.Validated = nil
	c.Approved = nil
	c.RejectionReason = ""
	c.Reopened = stamp(actor, now)
	c.ReopenReason = reason
	return nil
}
