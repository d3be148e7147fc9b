package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/pkg/errors"

	"github.com/school-hub/gradebook/internal/domain/closing"
	"github.com/school-hub/gradebook/internal/domain/shared"
)

// ══════════════════════════════════════════════════════════════════════════════
// PERIOD CLOSINGS
// ══════════════════════════════════════════════════════════════════════════════

// ClosingRepository implements closing.Repository for PostgreSQL with an
// optimistic version check on Save.
type ClosingRepository struct {
	conn *Connection
}

// NewClosingRepository creates a new ClosingRepository.
func NewClosingRepository(conn *Connection) *ClosingRepository {
	return &ClosingRepository{conn: conn}
}

const closingColumns = `
	id, class_group_id, teacher_assignment_id, period_id, status,
	submitted_by, submitted_at, validated_by, validated_at,
	approved_by, approved_at, reopened_by, reopened_at,
	rejection_reason, reopen_reason,
	grades_complete, attendance_complete, lesson_records_complete, completeness_checked_at,
	version, created_at, updated_at`

// FindByID implements closing.Repository.
func (r *ClosingRepository) FindByID(ctx context.Context, id string) (*closing.PeriodClosing, error) {
	return r.findOne(ctx, `SELECT `+closingColumns+` FROM period_closings WHERE id = $1`, id)
}

// FindByKey implements closing.Repository.
func (r *ClosingRepository) FindByKey(ctx context.Context, key closing.Key) (*closing.PeriodClosing, error) {
	return r.findOne(ctx, `
		SELECT `+closingColumns+` FROM period_closings
		WHERE class_group_id = $1 AND teacher_assignment_id = $2 AND period_id = $3
	`, key.ClassGroupID, key.TeacherAssignmentID, key.PeriodID)
}

func (r *ClosingRepository) findOne(ctx context.Context, query string, args ...interface{}) (*closing.PeriodClosing, error) {
	pc, err := scanClosing(r.conn.QueryRow(ctx, query, args...))
	if IsNoRows(err) {
		return nil, shared.ErrClosingNotFound
	}
	if err != nil {
		return nil, errors.Wrap(err, "get period closing")
	}
	return pc, nil
}

// ListByAssignment implements closing.Repository.
func (r *ClosingRepository) ListByAssignment(ctx context.Context, classGroupID, teacherAssignmentID string) ([]*closing.PeriodClosing, error) {
	rows, err := r.conn.Query(ctx, `
		SELECT `+closingColumns+` FROM period_closings
		WHERE class_group_id = $1 AND teacher_assignment_id = $2
		ORDER BY period_id
	`, classGroupID, teacherAssignmentID)
	if err != nil {
		return nil, errors.Wrap(err, "query period closings")
	}
	defer rows.Close()

	var out []*closing.PeriodClosing
	for rows.Next() {
		pc, err := scanClosing(rows)
		if err != nil {
			return nil, errors.Wrap(err, "scan period closing")
		}
		out = append(out, pc)
	}
	return out, rows.Err()
}

// Create implements closing.Repository.
func (r *ClosingRepository) Create(ctx context.Context, pc *closing.PeriodClosing) error {
	if pc.ID == "" {
		pc.ID = shared.NewID()
	}
	pc.Version = 1

	args := append([]interface{}{pc.ID, pc.ClassGroupID, pc.TeacherAssignmentID, pc.PeriodID}, closingState(pc)...)
	args = append(args, pc.Version, pc.CreatedAt, pc.UpdatedAt)

	_, err := r.conn.Exec(ctx, `
		INSERT INTO period_closings (`+closingColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, $18, $19, $20, $21, $22)
	`, args...)
	if IsUniqueViolation(err) {
		return shared.NewDomainError("closing", "Create", shared.ErrAlreadyExists,
			fmt.Sprintf("closing for period %s already exists", pc.PeriodID))
	}
	if err != nil {
		return errors.Wrap(err, "insert period closing")
	}
	return nil
}

// Save implements closing.Repository.
func (r *ClosingRepository) Save(ctx context.Context, pc *closing.PeriodClosing) error {
	args := append(closingState(pc), pc.UpdatedAt, pc.ID, pc.Version)

	tag, err := r.conn.Exec(ctx, `
		UPDATE period_closings SET
			status = $1,
			submitted_by = $2, submitted_at = $3,
			validated_by = $4, validated_at = $5,
			approved_by = $6, approved_at = $7,
			reopened_by = $8, reopened_at = $9,
			rejection_reason = $10, reopen_reason = $11,
			grades_complete = $12, attendance_complete = $13, lesson_records_complete = $14,
			completeness_checked_at = $15,
			updated_at = $16,
			version = version + 1
		WHERE id = $17 AND version = $18
	`, args...)
	if err != nil {
		return errors.Wrap(err, "update period closing")
	}
	if tag.RowsAffected() == 0 {
		if _, err := r.FindByID(ctx, pc.ID); err != nil {
			return err
		}
		return shared.ErrClosingStale
	}
	pc.Version++
	return nil
}

// closingState returns the mutable columns in closingColumns order, status
// through completeness_checked_at.
func closingState(pc *closing.PeriodClosing) []interface{} {
	submittedBy, submittedAt := stampColumns(pc.Submitted)
	validatedBy, validatedAt := stampColumns(pc.Validated)
	approvedBy, approvedAt := stampColumns(pc.Approved)
	reopenedBy, reopenedAt := stampColumns(pc.Reopened)
	return []interface{}{
		string(pc.Status),
		submittedBy, submittedAt,
		validatedBy, validatedAt,
		approvedBy, approvedAt,
		reopenedBy, reopenedAt,
		pc.RejectionReason, pc.ReopenReason,
		pc.Completeness.Grades, pc.Completeness.Attendance, pc.Completeness.LessonRecords,
		pc.CompletenessCheckedAt,
	}
}

func stampColumns(s *closing.Stamp) (*string, *time.Time) {
	if s == nil {
		return nil, nil
	}
	by, at := s.By, s.At
	return &by, &at
}

func stampFrom(by *string, at *time.Time) *closing.Stamp {
	if by == nil || at == nil {
		return nil
	}
	return &closing.Stamp{By: *by, At: *at}
}

func scanClosing(row scanner) (*closing.PeriodClosing, error) {
	var (
		pc                       closing.PeriodClosing
		status                   string
		submittedBy, validatedBy *string
		approvedBy, reopenedBy   *string
		submittedAt, validatedAt *time.Time
		approvedAt, reopenedAt   *time.Time
	)
	err := row.Scan(
		&pc.ID, &pc.ClassGroupID, &pc.TeacherAssignmentID, &pc.PeriodID, &status,
		&submittedBy, &submittedAt, &validatedBy, &validatedAt,
		&approvedBy, &approvedAt, &reopenedBy, &reopenedAt,
		&pc.RejectionReason, &pc.ReopenReason,
		&pc.Completeness.Grades, &pc.Completeness.Attendance, &pc.Completeness.LessonRecords, &pc.CompletenessCheckedAt,
		&pc.Version, &pc.CreatedAt, &pc.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	pc.Status = closing.Status(status)
	pc.Submitted = stampFrom(submittedBy, submittedAt)
	pc.Validated = stampFrom(validatedBy, validatedAt)
	pc.Approved = stampFrom(approvedBy, approvedAt)
	pc.Reopened = stampFrom(reopenedBy, reopenedAt)
	return &pc, nil
}

// ══════════════════════════════════════════════════════════════════════════════
// RECTIFICATIONS
// ══════════════════════════════════════════════════════════════════════════════

// RectificationRepository implements closing.RectificationRepository for PostgreSQL.
type RectificationRepository struct {
	conn *Connection
}

// NewRectificationRepository creates a new RectificationRepository.
func NewRectificationRepository(conn *Connection) *RectificationRepository {
	return &RectificationRepository{conn: conn}
}

const rectificationColumns = `
	id, closing_id, entity_type, entity_id, field_changed, old_value, new_value, justification,
	status, requested_by, requested_at, decided_by, decided_at, created_at, updated_at`

// FindByID implements closing.RectificationRepository.
func (r *RectificationRepository) FindByID(ctx context.Context, id string) (*closing.Rectification, error) {
	rec, err := scanRectification(r.conn.QueryRow(ctx,
		`SELECT `+rectificationColumns+` FROM closing_rectifications WHERE id = $1`, id))
	if IsNoRows(err) {
		return nil, shared.ErrRectificationNotFound
	}
	if err != nil {
		return nil, errors.Wrap(err, "get rectification")
	}
	return rec, nil
}

// ListByClosing implements closing.RectificationRepository.
func (r *RectificationRepository) ListByClosing(ctx context.Context, closingID string) ([]*closing.Rectification, error) {
	rows, err := r.conn.Query(ctx, `
		SELECT `+rectificationColumns+` FROM closing_rectifications
		WHERE closing_id = $1
		ORDER BY requested_at
	`, closingID)
	if err != nil {
		return nil, errors.Wrap(err, "query rectifications")
	}
	defer rows.Close()

	var out []*closing.Rectification
	for rows.Next() {
		rec, err := scanRectification(rows)
		if err != nil {
			return nil, errors.Wrap(err, "scan rectification")
		}
		out = append(out, rec)
	}
	return out, rows.Err()
}

// Create implements closing.RectificationRepository.
func (r *RectificationRepository) Create(ctx context.Context, rec *closing.Rectification) error {
	_, err := r.conn.Exec(ctx, `
		INSERT INTO closing_rectifications (`+rectificationColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15)
	`,
		rec.ID, rec.ClosingID, rec.EntityType, rec.EntityID, rec.FieldChanged, rec.OldValue, rec.NewValue,
		rec.Justification, string(rec.Status), rec.RequestedBy, rec.RequestedAt, rec.DecidedBy, rec.DecidedAt,
		rec.CreatedAt, rec.UpdatedAt,
	)
	return rectificationInsertError(err)
}

// rectificationInsertError maps a missing parent closing to ErrClosingNotFound.
func rectificationInsertError(err error) error {
	switch {
	case err == nil:
		return nil
	case IsForeignKeyViolation(err):
		return shared.ErrClosingNotFound
	default:
		return errors.Wrap(err, "insert rectification")
	}
}

// Save implements closing.RectificationRepository. Only the decision columns change.
func (r *RectificationRepository) Save(ctx context.Context, rec *closing.Rectification) error {
	tag, err := r.conn.Exec(ctx, `
		UPDATE closing_rectifications
		SET status = $2, decided_by = $3, decided_at = $4, updated_at = $5
		WHERE id = $1
	`, rec.ID, string(rec.Status), rec.DecidedBy, rec.DecidedAt, rec.UpdatedAt)
	if err != nil {
		return errors.Wrap(err, "update rectification")
	}
	if tag.RowsAffected() == 0 {
		return shared.ErrRectificationNotFound
	}
	return nil
}

func scanRectification(row scanner) (*closing.Rectification, error) {
	var rec closing.Rectification
	var status string
	err := row.Scan(
		&rec.ID, &rec.ClosingID, &rec.EntityType, &rec.EntityID, &rec.FieldChanged, &rec.OldValue, &rec.NewValue,
		&rec.Justification, &status, &rec.RequestedBy, &rec.RequestedAt, &rec.DecidedBy, &rec.DecidedAt,
		&rec.CreatedAt, &rec.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	rec.Status = closing.RectificationStatus(status)
	return &rec, nil
}
