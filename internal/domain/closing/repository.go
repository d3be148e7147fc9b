package closing

import (
	"context"
)

// Repository persists period closings.
type Repository interface {
	// FindByID returns shared.ErrClosingNotFound when absent.
	FindByID(ctx context.Context, id string) (*PeriodClosing, error)

	// FindByKey returns shared.ErrClosingNotFound when absent.
	FindByKey(ctx context.Context, key Key) (*PeriodClosing, error)

	// ListByAssignment returns every closing of a class group and teacher
	// assignment, ordered by period.
	ListByAssignment(ctx context.Context, classGroupID, teacherAssignmentID string) ([]*PeriodClosing, error)

	// Create inserts a new closing. A duplicate natural key fails with
	// shared.ErrAlreadyExists.
	Create(ctx context.Context, closing *PeriodClosing) error

	// Save writes the closing if its Version still matches the stored one and
	// increments Version. A mismatch fails with shared.ErrOptimisticLock.
	Save(ctx context.Context, closing *PeriodClosing) error
}

// RectificationRepository persists rectification requests.
type RectificationRepository interface {
	// FindByID returns shared.ErrRectificationNotFound when absent.
	FindByID(ctx context.Context, id string) (*Rectification, error)
	ListByClosing(ctx context.Context, closingID string) ([]*Rectification, error)
	Create(ctx context.Context, r *Rectification) error
	Save(ctx context.Context, r *Rectification) error
}
