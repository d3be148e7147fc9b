package closing

import (
	"fmt"
	"time"

	"github.com/school-hub/gradebook/internal/domain/shared"
)

// RectificationStatus is the state of a rectification request.
type RectificationStatus string

const (
	RectificationRequested RectificationStatus = "requested"
	RectificationApproved  RectificationStatus = "approved"
	RectificationRejected  RectificationStatus = "rejected"
)

// RectificationRequest describes a correction someone wants applied to a record
// of a closed period.
type RectificationRequest struct {
	EntityType    string
	EntityID      string
	FieldChanged  string
	OldValue      string
	NewValue      string
	Justification string
}

// Rectification is an approval trail for a post-closure correction. It never
// changes the referenced entity itself.
type Rectification struct {
	ID        string
	ClosingID string
	RectificationRequest

	Status      RectificationStatus
	RequestedBy string
	RequestedAt time.Time
	DecidedBy   string
	DecidedAt   *time.Time

	CreatedAt time.Time
	UpdatedAt time.Time
}

// NewRectification files a request against closing, which must be Closed.
func NewRectification(closing *PeriodClosing, req RectificationRequest, actor shared.Principal, now time.Time) (*Rectification, error) {
	if !closing.IsClosed() {
		return nil, shared.NewValidationError("closing", "RequestRectification",
			fmt.Sprintf("rectifications require a closed period, closing is %s", closing.Status),
			map[string]string{"status": string(closing.Status)}).WithKind(shared.ErrInvalidState)
	}
	return &Rectification{
		ID:                   shared.NewID(),
		ClosingID:            closing.ID,
		RectificationRequest: req,
		Status:               RectificationRequested,
		RequestedBy:          actor.UserID,
		RequestedAt:          now,
		CreatedAt:            now,
		UpdatedAt:            now,
	}, nil
}

// Decide approves or rejects a Requested rectification.
func (r *Rectification) Decide(approve bool, actor shared.Principal, now time.Time) error {
	if r.Status != RectificationRequested {
		return shared.NewValidationError("closing", "DecideRectification",
			fmt.Sprintf("rectification already %s", r.Status),
			map[string]string{"status": string(r.Status)}).WithKind(shared.ErrStateTransition)
	}
	if approve {
		r.Status = RectificationApproved
	} else {
		r.Status = RectificationRejected
	}
	r.DecidedBy = actor.UserID
	r.DecidedAt = &now
	r.UpdatedAt = now
	return nil
}
