package messaging

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/school-hub/gradebook/internal/domain/shared"
	"github.com/school-hub/gradebook/pkg/logger"
	"github.com/school-hub/gradebook/pkg/retry"
)

func newTestDispatcher(bus shared.EventSubscriber, attempts int) *Dispatcher {
	return NewDispatcher(DispatcherConfig{
		Bus:                 bus,
		Retry:               retry.Policy{MaxAttempts: attempts, InitialDelay: time.Millisecond, Multiplier: 1},
		DeadLetterQueueSize: 2,
		Logger:              logger.Discard(),
	})
}

func TestDispatcher_RetriesUntilSuccess(t *testing.T) {
	bus := newSyncBus()
	d := newTestDispatcher(bus, 3)

	calls := 0
	require.NoError(t, d.Subscribe(shared.EventFinalResultDetermined, func(shared.Event) error {
		calls++
		if calls < 2 {
			return errors.New("cache timeout")
		}
		return nil
	}))

	require.NoError(t, bus.Publish(testEvent()))
	assert.Equal(t, 2, calls)
	assert.Empty(t, d.DeadLetters())
}

func TestDispatcher_DeadLettersAfterLastAttempt(t *testing.T) {
	bus := newSyncBus()
	d := newTestDispatcher(bus, 2)

	calls := 0
	require.NoError(t, d.SubscribeAll(func(shared.Event) error {
		calls++
		return errors.New("down")
	}))

	require.NoError(t, bus.Publish(testEvent()))

	assert.Equal(t, 2, calls)
	dead := d.DeadLetters()
	require.Len(t, dead, 1)
	assert.Equal(t, 2, dead[0].Attempts)
	assert.EqualError(t, dead[0].Error, "down")
	assert.Equal(t, shared.EventFinalResultDetermined, dead[0].Event.EventType())
}

func TestDispatcher_MiddlewareRecoversPanicWithoutRetry(t *testing.T) {
	bus := newSyncBus()
	d := newTestDispatcher(bus, 3)
	d.Use(RecoveryMiddleware(logger.Discard()), LoggingMiddleware(logger.Discard()))

	calls := 0
	require.NoError(t, d.SubscribeAll(func(shared.Event) error {
		calls++
		panic("nil cache")
	}))

	require.NoError(t, bus.Publish(testEvent()))
	assert.Equal(t, 1, calls)
	require.Len(t, d.DeadLetters(), 1)
	assert.Contains(t, d.DeadLetters()[0].Error.Error(), "handler panic: nil cache")
}

func TestDispatcher_RejectsNilHandler(t *testing.T) {
	d := newTestDispatcher(newSyncBus(), 1)
	assert.ErrorIs(t, d.Subscribe(shared.EventClosingOpened, nil), ErrNilHandler)
	assert.ErrorIs(t, d.SubscribeAll(nil), ErrNilHandler)
}

func TestDeadLetterQueue_DropsOldest(t *testing.T) {
	q := NewDeadLetterQueue(2)
	for i := 1; i <= 3; i++ {
		q.Add(DeadLetterEntry{Attempts: i})
	}
	require.Equal(t, 2, q.Len())
	assert.Equal(t, 2, q.Entries()[0].Attempts)
	assert.Equal(t, 3, q.Entries()[1].Attempts)
}
