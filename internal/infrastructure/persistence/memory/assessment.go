package memory

import (
	"context"
	"sort"

	"github.com/school-hub/gradebook/internal/domain/assessment"
	"github.com/school-hub/gradebook/internal/domain/shared"
)

// ConfigRepository implements assessment.ConfigRepository.
type ConfigRepository struct {
	db *Store
}

// NewConfigRepository creates a ConfigRepository over db.
func NewConfigRepository(db *Store) *ConfigRepository {
	return &ConfigRepository{db: db}
}

// FindByScope implements assessment.ConfigRepository.
func (r *ConfigRepository) FindByScope(_ context.Context, scope assessment.ScopeKey) (*assessment.Config, error) {
	r.db.mu.RLock()
	defer r.db.mu.RUnlock()
	if c, ok := r.db.configs[scope]; ok {
		return &c, nil
	}
	return nil, shared.ErrConfigNotFound
}

// GradeRepository implements assessment.GradeRepository.
type GradeRepository struct {
	db *Store
}

// NewGradeRepository creates a GradeRepository over db.
func NewGradeRepository(db *Store) *GradeRepository {
	return &GradeRepository{db: db}
}

// Upsert implements assessment.GradeRepository.
func (r *GradeRepository) Upsert(_ context.Context, g *assessment.Grade) error {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()

	key := g.Key()
	if existing, ok := r.db.grades[key]; ok {
		g.ID = existing.ID
		g.CreatedAt = existing.CreatedAt
	} else if g.ID == "" {
		g.ID = shared.NewID()
	}
	r.db.grades[key] = *g
	return nil
}

// FindByScope implements assessment.GradeRepository.
func (r *GradeRepository) FindByScope(_ context.Context, scope assessment.GradeScope) ([]assessment.Grade, error) {
	r.db.mu.RLock()
	defer r.db.mu.RUnlock()

	var out []assessment.Grade
	for _, g := range r.db.grades {
		if scope.Matches(g) {
			out = append(out, g)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].IsRecovery != out[j].IsRecovery {
			return !out[i].IsRecovery
		}
		return out[i].InstrumentID < out[j].InstrumentID
	})
	return out, nil
}

// Delete implements assessment.GradeRepository.
func (r *GradeRepository) Delete(_ context.Context, key assessment.GradeKey) error {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	delete(r.db.grades, key)
	return nil
}
