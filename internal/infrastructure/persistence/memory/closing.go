package memory

import (
	"context"
	"fmt"
	"sort"

	"github.com/school-hub/gradebook/internal/domain/closing"
	"github.com/school-hub/gradebook/internal/domain/shared"
)

// ClosingRepository implements closing.Repository.
type ClosingRepository struct {
	db *Store
}

// NewClosingRepository creates a ClosingRepository over db.
func NewClosingRepository(db *Store) *ClosingRepository {
	return &ClosingRepository{db: db}
}

// FindByID implements closing.Repository.
func (r *ClosingRepository) FindByID(_ context.Context, id string) (*closing.PeriodClosing, error) {
	r.db.mu.RLock()
	defer r.db.mu.RUnlock()
	if c, ok := r.db.closings[id]; ok {
		return &c, nil
	}
	return nil, shared.ErrClosingNotFound
}

// FindByKey implements closing.Repository.
func (r *ClosingRepository) FindByKey(_ context.Context, key closing.Key) (*closing.PeriodClosing, error) {
	r.db.mu.RLock()
	defer r.db.mu.RUnlock()
	for _, c := range r.db.closings {
		if c.Key() == key {
			return &c, nil
		}
	}
	return nil, shared.ErrClosingNotFound
}

// ListByAssignment implements closing.Repository.
func (r *ClosingRepository) ListByAssignment(_ context.Context, classGroupID, teacherAssignmentID string) ([]*closing.PeriodClosing, error) {
	r.db.mu.RLock()
	defer r.db.mu.RUnlock()

	var out []*closing.PeriodClosing
	for _, c := range r.db.closings {
		if c.ClassGroupID == classGroupID && c.TeacherAssignmentID == teacherAssignmentID {
			c := c
			out = append(out, &c)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].PeriodID < out[j].PeriodID })
	return out, nil
}

// Create implements closing.Repository.
func (r *ClosingRepository) Create(_ context.Context, pc *closing.PeriodClosing) error {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()

	for _, c := range r.db.closings {
		if c.Key() == pc.Key() {
			return shared.NewDomainError("closing", "Create", shared.ErrAlreadyExists,
				fmt.Sprintf("closing for period %s already exists", pc.PeriodID))
		}
	}
	if pc.ID == "" {
		pc.ID = shared.NewID()
	}
	pc.Version = 1
	r.db.closings[pc.ID] = *pc
	return nil
}

// Save implements closing.Repository.
func (r *ClosingRepository) Save(_ context.Context, pc *closing.PeriodClosing) error {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()

	stored, ok := r.db.closings[pc.ID]
	if !ok {
		return shared.ErrClosingNotFound
	}
	if stored.Version != pc.Version {
		return shared.ErrClosingStale
	}
	pc.Version++
	r.db.closings[pc.ID] = *pc
	return nil
}

// RectificationRepository implements closing.RectificationRepository.
type RectificationRepository struct {
	db *Store
}

// NewRectificationRepository creates a RectificationRepository over db.
func NewRectificationRepository(db *Store) *RectificationRepository {
	return &RectificationRepository{db: db}
}

// FindByID implements closing.RectificationRepository.
func (r *RectificationRepository) FindByID(_ context.Context, id string) (*closing.Rectification, error) {
	r.db.mu.RLock()
	defer r.db.mu.RUnlock()
	if rec, ok := r.db.rectifications[id]; ok {
		return &rec, nil
	}
	return nil, shared.ErrRectificationNotFound
}

// ListByClosing implements closing.RectificationRepository.
func (r *RectificationRepository) ListByClosing(_ context.Context, closingID string) ([]*closing.Rectification, error) {
	r.db.mu.RLock()
	defer r.db.mu.RUnlock()

	var out []*closing.Rectification
	for _, rec := range r.db.rectifications {
		if rec.ClosingID == closingID {
			rec := rec
			out = append(out, &rec)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].RequestedAt.Before(out[j].RequestedAt) })
	return out, nil
}

// Create implements closing.RectificationRepository.
func (r *RectificationRepository) Create(_ context.Context, rec *closing.Rectification) error {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	r.db.rectifications[rec.ID] = *rec
	return nil
}

// Save implements closing.RectificationRepository.
func (r *RectificationRepository) Save(_ context.Context, rec *closing.Rectification) error {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	if _, ok := r.db.rectifications[rec.ID]; !ok {
		return shared.ErrRectificationNotFound
	}
	r.db.rectifications[rec.ID] = *rec
	return nil
}
