package redis

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/school-hub/gradebook/internal/domain/assessment"
)

// ConfigRepository is a read-through cache in front of an
// assessment.ConfigRepository. Misses of the inner repository are not cached.
type ConfigRepository struct {
	inner  assessment.ConfigRepository
	cache  *Cache
	ttl    time.Duration
	logger *slog.Logger
}

// NewConfigRepository wraps inner with a cache.
func NewConfigRepository(inner assessment.ConfigRepository, cache *Cache, ttl time.Duration, log *slog.Logger) *ConfigRepository {
	if ttl <= 0 {
		ttl = TTLConfigCache
	}
	if log == nil {
		log = slog.Default()
	}
	return &ConfigRepository{
		inner:  inner,
		cache:  cache,
		ttl:    ttl,
		logger: log.With("component", "config_cache"),
	}
}

// FindByScope implements assessment.ConfigRepository.
func (r *ConfigRepository) FindByScope(ctx context.Context, scope assessment.ScopeKey) (*assessment.Config, error) {
	key := ConfigKey(scope.SchoolID, scope.AcademicYear, scope.GradeLevel)

	var cfg assessment.Config
	err := r.cache.Get(ctx, key, &cfg)
	if err == nil {
		return &cfg, nil
	}
	if !errors.Is(err, ErrCacheMiss) {
		r.logger.Warn("config cache read failed", "key", key, "error", err)
	}

	found, err := r.inner.FindByScope(ctx, scope)
	if err != nil {
		return nil, err
	}
	if err := r.cache.Set(ctx, key, found, r.ttl); err != nil {
		r.logger.Warn("config cache write failed", "key", key, "error", err)
	}
	return found, nil
}

// Invalidate drops the cached config of a scope.
func (r *ConfigRepository) Invalidate(ctx context.Context, scope assessment.ScopeKey) error {
	return r.cache.Delete(ctx, ConfigKey(scope.SchoolID, scope.AcademicYear, scope.GradeLevel))
}
