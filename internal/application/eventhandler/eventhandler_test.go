package eventhandler

import (
	"bytes"
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/school-hub/gradebook/internal/application/query"
	"github.com/school-hub/gradebook/internal/domain/shared"
	"github.com/school-hub/gradebook/internal/infrastructure/messaging"
	"github.com/school-hub/gradebook/pkg/logger"
)

var at = time.Date(2024, 6, 28, 15, 0, 0, 0, time.UTC)

type recordingCache struct {
	invalidated []string
	err         error
}

func (c *recordingCache) Get(context.Context, string, string) (*query.ReportCardDTO, error) {
	return nil, query.ErrReportCardMiss
}

func (c *recordingCache) Set(context.Context, *query.ReportCardDTO) error { return nil }

func (c *recordingCache) Invalidate(_ context.Context, studentID, classGroupID string) error {
	c.invalidated = append(c.invalidated, studentID+"/"+classGroupID)
	return c.err
}

func newBus() *messaging.InMemoryEventBus {
	return messaging.NewInMemoryEventBus(messaging.InMemoryEventBusConfig{Logger: logger.Discard()})
}

func TestOnResultsChanged_InvalidatesReportCard(t *testing.T) {
	cache := &recordingCache{}
	bus := newBus()
	require.NoError(t, NewOnResultsChangedHandler(cache, logger.Discard(), ResultsChangedConfig{}).Subscribe(bus))

	avg := 7.5
	require.NoError(t, bus.Publish(shared.NewPeriodAverageCalculatedEvent("pa-1", "s1", "class-1", "ta-1", "p1", &avg, 90, at)))
	require.NoError(t, bus.Publish(shared.NewFinalResultDeterminedEvent("fr-1", "s2", "class-1", 2024, "approved", "coord-1", at)))

	assert.Equal(t, []string{"s1/class-1", "s2/class-1"}, cache.invalidated)
}

func TestOnResultsChanged_SwallowsCacheErrors(t *testing.T) {
	cache := &recordingCache{err: errors.New("redis down")}
	h := NewOnResultsChangedHandler(cache, logger.Discard(), DefaultResultsChangedConfig())

	err := h.Handle(shared.NewFinalResultDeterminedEvent("fr-1", "s1", "class-1", 2024, "retained", "coord-1", at))
	assert.NoError(t, err)
	assert.Len(t, cache.invalidated, 1)
}

func TestOnResultsChanged_IgnoresOtherEvents(t *testing.T) {
	cache := &recordingCache{}
	h := NewOnResultsChangedHandler(cache, logger.Discard(), DefaultResultsChangedConfig())

	assert.NoError(t, h.Handle(shared.ClosingTransitionedEvent{BaseEvent: shared.NewBaseEvent(shared.EventClosingTransitioned, "pc-1", at)}))
	assert.Empty(t, cache.invalidated)
}

func TestOnClosingTransitioned_WritesAuditLine(t *testing.T) {
	var buf bytes.Buffer
	log := logger.New(logger.Options{Output: &buf, Format: logger.FormatJSON})
	bus := newBus()
	require.NoError(t, NewOnClosingTransitionedHandler(log).Subscribe(bus))

	require.NoError(t, bus.Publish(shared.ClosingTransitionedEvent{
		BaseEvent:    shared.NewBaseEvent(shared.EventClosingTransitioned, "pc-1", at),
		ClassGroupID: "class-1",
		PeriodID:     "p1",
		Action:       "reopen",
		From:         "closed",
		To:           "pending",
		Actor:        "coord-1",
		Reason:       "late grade",
	}))

	out := buf.String()
	assert.Contains(t, out, `"msg":"closing audit"`)
	assert.Contains(t, out, `"closing_id":"pc-1"`)
	assert.Contains(t, out, `"action":"reopen"`)
	assert.Contains(t, out, `"reason":"late grade"`)
}
