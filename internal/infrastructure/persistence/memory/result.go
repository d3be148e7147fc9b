package memory

import (
	"context"
	"sort"

	"github.com/school-hub/gradebook/internal/domain/result"
	"github.com/school-hub/gradebook/internal/domain/shared"
)

// PeriodAverageRepository implements result.PeriodAverageRepository.
type PeriodAverageRepository struct {
	db *Store
}

// NewPeriodAverageRepository creates a PeriodAverageRepository over db.
func NewPeriodAverageRepository(db *Store) *PeriodAverageRepository {
	return &PeriodAverageRepository{db: db}
}

// Upsert implements result.PeriodAverageRepository.
func (r *PeriodAverageRepository) Upsert(_ context.Context, avg *result.PeriodAverage) error {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()

	if existing, ok := r.db.averages[avg.PeriodAverageKey]; ok {
		avg.ID = existing.ID
	} else if avg.ID == "" {
		avg.ID = shared.NewID()
	}
	r.db.averages[avg.PeriodAverageKey] = *avg
	return nil
}

// FindByKey implements result.PeriodAverageRepository.
func (r *PeriodAverageRepository) FindByKey(_ context.Context, key result.PeriodAverageKey) (*result.PeriodAverage, error) {
	r.db.mu.RLock()
	defer r.db.mu.RUnlock()
	if avg, ok := r.db.averages[key]; ok {
		return &avg, nil
	}
	return nil, shared.ErrPeriodAverageNotFound
}

// ListByStudent implements result.PeriodAverageRepository.
func (r *PeriodAverageRepository) ListByStudent(_ context.Context, studentID, classGroupID string) ([]result.PeriodAverage, error) {
	r.db.mu.RLock()
	defer r.db.mu.RUnlock()

	var out []result.PeriodAverage
	for k, avg := range r.db.averages {
		if k.StudentID == studentID && k.ClassGroupID == classGroupID {
			out = append(out, avg)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].PeriodID != out[j].PeriodID {
			return out[i].PeriodID < out[j].PeriodID
		}
		return out[i].TeacherAssignmentID < out[j].TeacherAssignmentID
	})
	return out, nil
}

// FinalResultRepository implements result.FinalResultRepository.
type FinalResultRepository struct {
	db *Store
}

// NewFinalResultRepository creates a FinalResultRepository over db.
func NewFinalResultRepository(db *Store) *FinalResultRepository {
	return &FinalResultRepository{db: db}
}

// Upsert implements result.FinalResultRepository.
func (r *FinalResultRepository) Upsert(_ context.Context, fr *result.FinalResult) error {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()

	if existing, ok := r.db.finals[fr.FinalResultKey]; ok {
		fr.ID = existing.ID
	} else if fr.ID == "" {
		fr.ID = shared.NewID()
	}
	r.db.finals[fr.FinalResultKey] = *fr
	return nil
}

// FindByKey implements result.FinalResultRepository.
func (r *FinalResultRepository) FindByKey(_ context.Context, key result.FinalResultKey) (*result.FinalResult, error) {
	r.db.mu.RLock()
	defer r.db.mu.RUnlock()
	if fr, ok := r.db.finals[key]; ok {
		return &fr, nil
	}
	return nil, shared.ErrFinalResultNotFound
}

// ListByClass implements result.FinalResultRepository.
func (r *FinalResultRepository) ListByClass(_ context.Context, classGroupID string, academicYear int) ([]result.FinalResult, error) {
	r.db.mu.RLock()
	defer r.db.mu.RUnlock()

	var out []result.FinalResult
	for k, fr := range r.db.finals {
		if k.ClassGroupID == classGroupID && k.AcademicYear == academicYear {
			out = append(out, fr)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].StudentID < out[j].StudentID })
	return out, nil
}
