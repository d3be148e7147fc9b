package query

import (
	"context"
	"fmt"
	"time"

	"github.com/school-hub/gradebook/internal/domain/closing"
	"github.com/school-hub/gradebook/internal/domain/shared"
)

// ══════════════════════════════════════════════════════════════════════════════
// PERIOD CLOSING QUERIES
// Read the lifecycle state of closings together with their rectifications.
// ══════════════════════════════════════════════════════════════════════════════

// GetPeriodClosingQuery reads one closing by id.
type GetPeriodClosingQuery struct {
	ClosingID string
}

// ListPeriodClosingsQuery lists the closings of a class group and assignment.
type ListPeriodClosingsQuery struct {
	ClassGroupID        string
	TeacherAssignmentID string
}

// StampDTO is an audit stamp.
type StampDTO struct {
	By string    `json:"by"`
	At time.Time `json:"at"`
}

// RectificationDTO is one correction request against a closed period.
type RectificationDTO struct {
	ID            string     `json:"id"`
	EntityType    string     `json:"entity_type"`
	EntityID      string     `json:"entity_id"`
	FieldChanged  string     `json:"field_changed"`
	OldValue      string     `json:"old_value"`
	NewValue      string     `json:"new_value"`
	Justification string     `json:"justification"`
	Status        string     `json:"status"`
	RequestedBy   string     `json:"requested_by"`
	RequestedAt   time.Time  `json:"requested_at"`
	DecidedBy     string     `json:"decided_by,omitempty"`
	DecidedAt     *time.Time `json:"decided_at,omitempty"`
}

// PeriodClosingDTO is the read model of a closing.
type PeriodClosingDTO struct {
	ID                    string             `json:"id"`
	ClassGroupID          string             `json:"class_group_id"`
	TeacherAssignmentID   string             `json:"teacher_assignment_id"`
	PeriodID              string             `json:"period_id"`
	Status                string             `json:"status"`
	GradesComplete        bool               `json:"grades_complete"`
	AttendanceComplete    bool               `json:"attendance_complete"`
	LessonRecordsComplete bool               `json:"lesson_records_complete"`
	CompletenessCheckedAt *time.Time         `json:"completeness_checked_at,omitempty"`
	Submitted             *StampDTO          `json:"submitted,omitempty"`
	Validated             *StampDTO          `json:"validated,omitempty"`
	Approved              *StampDTO          `json:"approved,omitempty"`
	Reopened              *StampDTO          `json:"reopened,omitempty"`
	RejectionReason       string             `json:"rejection_reason,omitempty"`
	ReopenReason          string             `json:"reopen_reason,omitempty"`
	Rectifications        []RectificationDTO `json:"rectifications,omitempty"`
}

// PeriodClosingHandler handles the closing queries.
type PeriodClosingHandler struct {
	closings       closing.Repository
	rectifications closing.RectificationRepository
}

// NewPeriodClosingHandler creates a new PeriodClosingHandler.
func NewPeriodClosingHandler(closings closing.Repository, rectifications closing.RectificationRepository) *PeriodClosingHandler {
	return &PeriodClosingHandler{closings: closings, rectifications: rectifications}
}

// Get returns one closing with its rectifications.
func (h *PeriodClosingHandler) Get(ctx context.Context, q GetPeriodClosingQuery) (*PeriodClosingDTO, error) {
	if q.ClosingID == "" {
		return nil, shared.NewValidationError("query", "GetPeriodClosing", "invalid query",
			map[string]string{"closing_id": "required"})
	}
	pc, err := h.closings.FindByID(ctx, q.ClosingID)
	if err != nil {
		return nil, fmt.Errorf("get_period_closing: %w", err)
	}
	dto := toClosingDTO(pc)

	recs, err := h.rectifications.ListByClosing(ctx, pc.ID)
	if err != nil {
		return nil, fmt.Errorf("get_period_closing: %w", err)
	}
	for _, r := range recs {
		dto.Rectifications = append(dto.Rectifications, toRectificationDTO(r))
	}
	return dto, nil
}

// List returns the closings of an assignment ordered by period.
func (h *PeriodClosingHandler) List(ctx context.Context, q ListPeriodClosingsQuery) ([]*PeriodClosingDTO, error) {
	if q.ClassGroupID == "" || q.TeacherAssignmentID == "" {
		return nil, shared.NewValidationError("query", "ListPeriodClosings", "invalid query",
			map[string]string{"class_group_id": "required", "teacher_assignment_id": "required"})
	}
	all, err := h.closings.ListByAssignment(ctx, q.ClassGroupID, q.TeacherAssignmentID)
	if err != nil {
		return nil, fmt.Errorf("list_period_closings: %w", err)
	}
	out := make([]*PeriodClosingDTO, len(all))
	for i, pc := range all {
		out[i] = toClosingDTO(pc)
	}
	return out, nil
}

func toClosingDTO(pc *closing.PeriodClosing) *PeriodClosingDTO {
	return &PeriodClosingDTO{
		ID:                    pc.ID,
		ClassGroupID:          pc.ClassGroupID,
		TeacherAssignmentID:   pc.TeacherAssignmentID,
		PeriodID:              pc.PeriodID,
		Status:                string(pc.Status),
		GradesComplete:        pc.Completeness.Grades,
		AttendanceComplete:    pc.Completeness.Attendance,
		LessonRecordsComplete: pc.Completeness.LessonRecords,
		CompletenessCheckedAt: pc.CompletenessCheckedAt,
		Submitted:             toStampDTO(pc.Submitted),
		Validated:             toStampDTO(pc.Validated),
		Approved:              toStampDTO(pc.Approved),
		Reopened:              toStampDTO(pc.Reopened),
		RejectionReason:       pc.RejectionReason,
		ReopenReason:          pc.ReopenReason,
	}
}

func toStampDTO(s *closing.Stamp) *StampDTO {
	if s == nil {
		return nil
	}
	return &StampDTO{By: s.By, At: s.At}
}

func toRectificationDTO(r *closing.Rectification) RectificationDTO {
	return RectificationDTO{
		ID:            r.ID,
		EntityType:    r.EntityType,
		EntityID:      r.EntityID,
		FieldChanged:  r.FieldChanged,
		OldValue:      r.OldValue,
		NewValue:      r.NewValue,
		Justification: r.Justification,
		Status:        string(r.Status),
		RequestedBy:   r.RequestedBy,
		RequestedAt:   r.RequestedAt,
		DecidedBy:     r.DecidedBy,
		DecidedAt:     r.DecidedAt,
	}
}
