package messaging

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/school-hub/gradebook/internal/domain/shared"
	"github.com/school-hub/gradebook/pkg/logger"
)

var at = time.Date(2024, 6, 28, 15, 0, 0, 0, time.UTC)

func testEvent() shared.Event {
	return shared.NewFinalResultDeterminedEvent("fr-1", "s1", "class-1", 2024, "approved", "coord-1", at)
}

func newSyncBus() *InMemoryEventBus {
	return NewInMemoryEventBus(InMemoryEventBusConfig{Logger: logger.Discard(), EnableMetrics: true})
}

func TestInMemoryEventBus_DeliversByType(t *testing.T) {
	bus := newSyncBus()
	var typed, all, other int
	require.NoError(t, bus.Subscribe(shared.EventFinalResultDetermined, func(shared.Event) error { typed++; return nil }))
	require.NoError(t, bus.Subscribe(shared.EventClosingOpened, func(shared.Event) error { other++; return nil }))
	require.NoError(t, bus.SubscribeAll(func(shared.Event) error { all++; return nil }))

	require.NoError(t, bus.Publish(testEvent()))

	assert.Equal(t, 1, typed)
	assert.Equal(t, 1, all)
	assert.Zero(t, other)
}

func TestInMemoryEventBus_HandlerFailuresDoNotFailPublish(t *testing.T) {
	bus := newSyncBus()
	require.NoError(t, bus.SubscribeAll(func(shared.Event) error { return errors.New("boom") }))
	require.NoError(t, bus.SubscribeAll(func(shared.Event) error { panic("worse") }))

	require.NoError(t, bus.Publish(testEvent()))

	snap := bus.Metrics().Snapshot()
	assert.Equal(t, int64(1), snap.TotalPublished)
	assert.Equal(t, int64(2), snap.TotalHandlerExecs)
	assert.Equal(t, int64(2), snap.HandlerFailures)
}

func TestInMemoryEventBus_AsyncCloseWaits(t *testing.T) {
	bus := NewInMemoryEventBus(InMemoryEventBusConfig{AsyncMode: true, WorkerPoolSize: 2, Logger: logger.Discard()})
	var mu sync.Mutex
	seen := 0
	require.NoError(t, bus.SubscribeAll(func(shared.Event) error {
		mu.Lock()
		seen++
		mu.Unlock()
		return nil
	}))

	for i := 0; i < 5; i++ {
		require.NoError(t, bus.Publish(testEvent()))
	}
	require.NoError(t, bus.Close())

	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, 5, seen)
	assert.ErrorIs(t, bus.Publish(testEvent()), ErrEventBusClosed)
	assert.ErrorIs(t, bus.Subscribe(shared.EventClosingOpened, func(shared.Event) error { return nil }), ErrEventBusClosed)
}

type fakeRedis struct {
	channel string
	message []byte
	err     error
}

func (f *fakeRedis) Publish(ctx context.Context, channel string, message interface{}) *redis.IntCmd {
	f.channel = channel
	f.message, _ = message.([]byte)
	cmd := redis.NewIntCmd(ctx)
	if f.err != nil {
		cmd.SetErr(f.err)
	} else {
		cmd.SetVal(1)
	}
	return cmd
}

func TestRedisEventBus_FansOutEnvelope(t *testing.T) {
	client := &fakeRedis{}
	bus, err := NewRedisEventBus(RedisEventBusConfig{Client: client, Logger: logger.Discard()})
	require.NoError(t, err)

	local := 0
	require.NoError(t, bus.Subscribe(shared.EventFinalResultDetermined, func(shared.Event) error { local++; return nil }))
	require.NoError(t, bus.Publish(testEvent()))

	assert.Equal(t, 1, local)
	assert.Equal(t, DefaultChannel, client.channel)

	var envelope shared.EventEnvelope
	require.NoError(t, json.Unmarshal(client.message, &envelope))
	assert.Equal(t, shared.EventFinalResultDetermined, envelope.Type)
	assert.Equal(t, "fr-1", envelope.AggregateID)
}

func TestRedisEventBus_PublishError(t *testing.T) {
	client := &fakeRedis{err: errors.New("connection refused")}
	bus, err := NewRedisEventBus(RedisEventBusConfig{Client: client, Logger: logger.Discard()})
	require.NoError(t, err)

	assert.Error(t, bus.Publish(testEvent()))

	_, err = NewRedisEventBus(RedisEventBusConfig{})
	assert.Error(t, err)
}
