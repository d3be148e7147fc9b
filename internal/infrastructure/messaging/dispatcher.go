package messaging

import (
	"context"
	"fmt"
	"log/slog"
	"runtime/debug"
	"sync"
	"time"

	"github.com/school-hub/gradebook/internal/domain/shared"
	"github.com/school-hub/gradebook/pkg/logger"
	"github.com/school-hub/gradebook/pkg/retry"
)

// ══════════════════════════════════════════════════════════════════════════════
// DISPATCHER
// Sits between a bus and the event handlers: every handler subscribed through
// it runs inside the middleware chain and is retried on failure. Events whose
// handler still fails are kept in a bounded dead letter queue.
// ══════════════════════════════════════════════════════════════════════════════

// Middleware wraps handler execution.
type Middleware func(shared.EventHandler) shared.EventHandler

// DispatcherConfig contains configuration for the Dispatcher.
type DispatcherConfig struct {
	// Bus is the underlying subscriber.
	Bus shared.EventSubscriber

	// Retry controls re-running a failed handler. Zero MaxAttempts runs once.
	Retry retry.Policy

	// DeadLetterQueueSize bounds the DLQ; zero disables it.
	DeadLetterQueueSize int

	Logger *slog.Logger
}

// DefaultDispatcherConfig returns sensible defaults.
func DefaultDispatcherConfig(bus shared.EventSubscriber) DispatcherConfig {
	return DispatcherConfig{
		Bus:                 bus,
		Retry:               retry.TransientPolicy(),
		DeadLetterQueueSize: 100,
	}
}

// Dispatcher implements shared.EventSubscriber on top of another subscriber.
type Dispatcher struct {
	bus         shared.EventSubscriber
	policy      retry.Policy
	middlewares []Middleware
	deadLetterQ *DeadLetterQueue
	logger      *slog.Logger
	mu          sync.RWMutex
}

// NewDispatcher creates a new event dispatcher.
func NewDispatcher(config DispatcherConfig) *Dispatcher {
	if config.Logger == nil {
		config.Logger = slog.Default()
	}
	d := &Dispatcher{
		bus:    config.Bus,
		policy: config.Retry,
		logger: config.Logger.With(logger.Component("event_dispatcher")),
	}
	if config.DeadLetterQueueSize > 0 {
		d.deadLetterQ = NewDeadLetterQueue(config.DeadLetterQueueSize)
	}
	return d
}

// Use adds middleware. Middleware applies to handlers subscribed afterwards;
// the first added is the outermost.
func (d *Dispatcher) Use(middleware ...Middleware) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.middlewares = append(d.middlewares, middleware...)
}

// Subscribe implements shared.EventSubscriber.
func (d *Dispatcher) Subscribe(eventType shared.EventType, handler shared.EventHandler) error {
	if handler == nil {
		return ErrNilHandler
	}
	return d.bus.Subscribe(eventType, d.wrap(handler))
}

// SubscribeAll implements shared.EventSubscriber.
func (d *Dispatcher) SubscribeAll(handler shared.EventHandler) error {
	if handler == nil {
		return ErrNilHandler
	}
	return d.bus.SubscribeAll(d.wrap(handler))
}

// DeadLetters returns the events whose handler gave up.
func (d *Dispatcher) DeadLetters() []DeadLetterEntry {
	if d.deadLetterQ == nil {
		return nil
	}
	return d.deadLetterQ.Entries()
}

func (d *Dispatcher) wrap(handler shared.EventHandler) shared.EventHandler {
	d.mu.RLock()
	chain := handler
	for i := len(d.middlewares) - 1; i >= 0; i-- {
		chain = d.middlewares[i](chain)
	}
	d.mu.RUnlock()

	return func(event shared.Event) error {
		attempts := 0
		err := retry.Do(context.Background(), d.policy, func(context.Context) error {
			attempts++
			return chain(event)
		})
		if err == nil {
			return nil
		}
		d.logger.Warn("handler gave up",
			"event_type", string(event.EventType()),
			"aggregate_id", event.AggregateID(),
			"attempts", attempts,
			logger.Err(err),
		)
		if d.deadLetterQ != nil {
			d.deadLetterQ.Add(DeadLetterEntry{
				Event:    event,
				Error:    err,
				Attempts: attempts,
				FailedAt: time.Now(),
			})
		}
		return err
	}
}

// ══════════════════════════════════════════════════════════════════════════════
// MIDDLEWARE
// ══════════════════════════════════════════════════════════════════════════════

// RecoveryMiddleware turns a handler panic into an error.
func RecoveryMiddleware(log *slog.Logger) Middleware {
	return func(next shared.EventHandler) shared.EventHandler {
		return func(event shared.Event) (err error) {
			defer func() {
				if r := recover(); r != nil {
					log.Error("handler panic recovered",
						"event_type", string(event.EventType()),
						"panic", r,
						"stack", string(debug.Stack()),
					)
					err = retry.Permanent(fmt.Errorf("handler panic: %v", r))
				}
			}()
			return next(event)
		}
	}
}

// LoggingMiddleware logs handler execution.
func LoggingMiddleware(log *slog.Logger) Middleware {
	return func(next shared.EventHandler) shared.EventHandler {
		return func(event shared.Event) error {
			start := time.Now()
			err := next(event)
			attrs := []any{
				"event_type", string(event.EventType()),
				"aggregate_id", event.AggregateID(),
				logger.Latency(time.Since(start)),
			}
			if err != nil {
				log.Error("handler failed", append(attrs, logger.Err(err))...)
			} else {
				log.Debug("handler completed", attrs...)
			}
			return err
		}
	}
}

// ══════════════════════════════════════════════════════════════════════════════
// DEAD LETTER QUEUE
// ══════════════════════════════════════════════════════════════════════════════

// DeadLetterEntry is an event whose handler failed every attempt.
type DeadLetterEntry struct {
	Event    shared.Event
	Error    error
	Attempts int
	FailedAt time.Time
}

// DeadLetterQueue keeps the most recent failed events.
type DeadLetterQueue struct {
	entries []DeadLetterEntry
	maxSize int
	mu      sync.Mutex
}

// NewDeadLetterQueue creates a new DLQ.
func NewDeadLetterQueue(maxSize int) *DeadLetterQueue {
	return &DeadLetterQueue{maxSize: maxSize}
}

// Add adds an entry, dropping the oldest when full.
func (q *DeadLetterQueue) Add(entry DeadLetterEntry) {
	q.mu.Lock()
	defer q.mu.Unlock()
	if len(q.entries) >= q.maxSize {
		q.entries = q.entries[1:]
	}
	q.entries = append(q.entries, entry)
}

// Entries returns a copy of the entries, oldest first.
func (q *DeadLetterQueue) Entries() []DeadLetterEntry {
	q.mu.Lock()
	defer q.mu.Unlock()
	out := make([]DeadLetterEntry, len(q.entries))
	copy(out, q.entries)
	return out
}

// Len returns the number of entries.
func (q *DeadLetterQueue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.entries)
}
