package assessment

import (
	"context"
)

// ConfigRepository reads grading configurations.
type ConfigRepository interface {
	// FindByScope returns the config of a (school, year, grade level).
	// Returns shared.ErrConfigNotFound if none is defined.
	FindByScope(ctx context.Context, scope ScopeKey) (*Config, error)
}

// GradeRepository stores grade rows keyed by their natural key.
type GradeRepository interface {
	// Upsert inserts the grade or overwrites the row with the same natural key.
	Upsert(ctx context.Context, grade *Grade) error

	// FindByScope returns all grade rows (regular and recovery) of a scope.
	FindByScope(ctx context.Context, scope GradeScope) ([]Grade, error)

	// Delete removes the row with the given natural key. Missing rows are ignored.
	Delete(ctx context.Context, key GradeKey) error
}
