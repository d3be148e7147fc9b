// Package eventhandler contains domain event handlers.
package eventhandler

import (
	"context"
	"log/slog"
	"time"

	"github.com/school-hub/gradebook/internal/application/query"
	"github.com/school-hub/gradebook/internal/domain/shared"
	"github.com/school-hub/gradebook/pkg/logger"
)

// ═══════════════════════════════════════════════════════════════════════════
// ON RESULTS CHANGED HANDLER
// Drops the cached report card of a student whenever one of their period
// averages or their final result is recomputed.
// ═══════════════════════════════════════════════════════════════════════════

// OnResultsChangedHandler invalidates report card cache entries.
type OnResultsChangedHandler struct {
	cache  query.ReportCardCache
	logger *slog.Logger
	config ResultsChangedConfig
}

// ResultsChangedConfig contains configuration for the handler.
type ResultsChangedConfig struct {
	// InvalidateTimeout bounds each cache call.
	InvalidateTimeout time.Duration
}

// DefaultResultsChangedConfig returns default configuration.
func DefaultResultsChangedConfig() ResultsChangedConfig {
	return ResultsChangedConfig{InvalidateTimeout: 2 * time.Second}
}

// NewOnResultsChangedHandler creates a new OnResultsChangedHandler.
func NewOnResultsChangedHandler(cache query.ReportCardCache, log *slog.Logger, config ResultsChangedConfig) *OnResultsChangedHandler {
	if log == nil {
		log = slog.Default()
	}
	if config.InvalidateTimeout <= 0 {
		config = DefaultResultsChangedConfig()
	}
	return &OnResultsChangedHandler{
		cache:  cache,
		logger: log.With("handler", "on_results_changed"),
		config: config,
	}
}

// Subscribe registers the handler for the result events.
func (h *OnResultsChangedHandler) Subscribe(bus shared.EventSubscriber) error {
	for _, t := range []shared.EventType{shared.EventPeriodAverageCalculated, shared.EventFinalResultDetermined} {
		if err := bus.Subscribe(t, h.Handle); err != nil {
			return err
		}
	}
	return nil
}

// Handle implements shared.EventHandler. Cache failures are logged and
// swallowed; the cache entry expires on its own.
func (h *OnResultsChangedHandler) Handle(event shared.Event) error {
	var studentID, classGroupID string
	switch e := event.(type) {
	case shared.PeriodAverageCalculatedEvent:
		studentID, classGroupID = e.StudentID, e.ClassGroupID
	case shared.FinalResultDeterminedEvent:
		studentID, classGroupID = e.StudentID, e.ClassGroupID
	default:
		h.logger.Warn("unexpected event", "event_type", string(event.EventType()))
		return nil
	}

	ctx, cancel := context.WithTimeout(context.Background(), h.config.InvalidateTimeout)
	defer cancel()

	if err := h.cache.Invalidate(ctx, studentID, classGroupID); err != nil {
		h.logger.Warn("report card invalidation failed",
			logger.StudentID(studentID),
			logger.ClassGroupID(classGroupID),
			logger.Err(err),
		)
		return nil
	}
	h.logger.Debug("report card invalidated",
		logger.StudentID(studentID),
		logger.ClassGroupID(classGroupID),
		"event_type", string(event.EventType()),
	)
	return nil
}
