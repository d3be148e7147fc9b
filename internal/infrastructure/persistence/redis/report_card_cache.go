package redis

import (
	"context"
	"errors"
	"time"

	"github.com/school-hub/gradebook/internal/application/query"
)

// ReportCardCache implements query.ReportCardCache on top of Cache.
type ReportCardCache struct {
	cache *Cache
	ttl   time.Duration
}

// NewReportCardCache creates a new ReportCardCache. A non-positive ttl uses
// TTLReportCard.
func NewReportCardCache(cache *Cache, ttl time.Duration) *ReportCardCache {
	if ttl <= 0 {
		ttl = TTLReportCard
	}
	return &ReportCardCache{cache: cache, ttl: ttl}
}

// Get implements query.ReportCardCache.
func (r *ReportCardCache) Get(ctx context.Context, studentID, classGroupID string) (*query.ReportCardDTO, error) {
	var card query.ReportCardDTO
	if err := r.cache.Get(ctx, ReportCardKey(studentID, classGroupID), &card); err != nil {
		if errors.Is(err, ErrCacheMiss) {
			return nil, query.ErrReportCardMiss
		}
		return nil, err
	}
	return &card, nil
}

// Set implements query.ReportCardCache.
func (r *ReportCardCache) Set(ctx context.Context, card *query.ReportCardDTO) error {
	if card == nil {
		return ErrCacheNilValue
	}
	return r.cache.Set(ctx, ReportCardKey(card.StudentID, card.ClassGroupID), card, r.ttl)
}

// Invalidate implements query.ReportCardCache.
func (r *ReportCardCache) Invalidate(ctx context.Context, studentID, classGroupID string) error {
	return r.cache.Delete(ctx, ReportCardKey(studentID, classGroupID))
}
