// Package circuitbreaker stops calling a failing dependency for a cool-down
// period. The gradebook puts one in front of Redis so that an unavailable
// cache degrades to direct reads instead of timing out on every request.
package circuitbreaker

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/school-hub/gradebook/pkg/timeutil"
)

// State represents the current state of the circuit breaker.
type State int

const (
	// StateClosed lets every call through.
	StateClosed State = iota
	// StateOpen rejects calls until the cool-down has elapsed.
	StateOpen
	// StateHalfOpen lets probe calls through to test recovery.
	StateHalfOpen
)

// String returns the string representation of the state.
func (s State) String() string {
	switch s {
	case StateClosed:
		return "closed"
	case StateOpen:
		return "open"
	case StateHalfOpen:
		return "half-open"
	default:
		return "unknown"
	}
}

// ErrOpen is returned without calling the dependency while the circuit is open.
var ErrOpen = errors.New("circuit breaker is open")

// Config holds circuit breaker configuration.
type Config struct {
	Name string

	// FailureThreshold is the number of consecutive failures that opens the circuit.
	FailureThreshold int

	// SuccessThreshold is the number of half-open successes that closes it again.
	SuccessThreshold int

	// CoolDown is how long the circuit stays open before probing.
	CoolDown time.Duration

	// IsFailure decides which errors count. Nil counts every error.
	IsFailure func(error) bool

	// OnStateChange is called with the breaker lock held; keep it short.
	OnStateChange func(name string, from, to State)

	Clock timeutil.Clock
}

// DefaultConfig returns a Config with sensible defaults.
func DefaultConfig(name string) Config {
	return Config{
		Name:             name,
		FailureThreshold: 5,
		SuccessThreshold: 1,
		CoolDown:         30 * time.Second,
	}
}

// Counts holds the lifetime counters of a breaker.
type Counts struct {
	Requests            int
	Rejected            int
	TotalFailures       int
	ConsecutiveFailures int
}

// Breaker implements the circuit breaker pattern.
type Breaker struct {
	config Config
	clock  timeutil.Clock

	mu                sync.Mutex
	state             State
	counts            Counts
	halfOpenSuccesses int
	openedAt          time.Time
}

// New creates a Breaker. Zero thresholds and cool-down take the defaults.
func New(config Config) *Breaker {
	def := DefaultConfig(config.Name)
	if config.FailureThreshold <= 0 {
		config.FailureThreshold = def.FailureThreshold
	}
	if config.SuccessThreshold <= 0 {
		config.SuccessThreshold = def.SuccessThreshold
	}
	if config.CoolDown <= 0 {
		config.CoolDown = def.CoolDown
	}
	return &Breaker{config: config, clock: timeutil.OrSystem(config.Clock)}
}

// Execute runs fn unless the circuit is open, and records its outcome.
func (b *Breaker) Execute(ctx context.Context, fn func(context.Context) error) error {
	if err := b.allow(); err != nil {
		return err
	}
	err := fn(ctx)
	b.record(err)
	return err
}

func (b *Breaker) allow() error {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.counts.Requests++
	if b.state == StateOpen {
		if b.clock.Now().Sub(b.openedAt) < b.config.CoolDown {
			b.counts.Rejected++
			return ErrOpen
		}
		b.setState(StateHalfOpen)
	}
	return nil
}

func (b *Breaker) record(err error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	failed := err != nil
	if failed && b.config.IsFailure != nil {
		failed = b.config.IsFailure(err)
	}

	if !failed {
		b.counts.ConsecutiveFailures = 0
		if b.state == StateHalfOpen {
			b.halfOpenSuccesses++
			if b.halfOpenSuccesses >= b.config.SuccessThreshold {
				b.setState(StateClosed)
			}
		}
		return
	}

	b.counts.TotalFailures++
	b.counts.ConsecutiveFailures++
	switch b.state {
	case StateClosed:
		if b.counts.ConsecutiveFailures >= b.config.FailureThreshold {
			b.open()
		}
	case StateHalfOpen:
		b.open()
	}
}

func (b *Breaker) open() {
	b.openedAt = b.clock.Now()
	b.setState(StateOpen)
}

func (b *Breaker) setState(to State) {
	if b.state == to {
		return
	}
	from := b.state
	b.state = to
	b.halfOpenSuccesses = 0
	if to == StateClosed {
		b.counts.ConsecutiveFailures = 0
	}
	if b.config.OnStateChange != nil {
		b.config.OnStateChange(b.config.Name, from, to)
	}
}

// State returns the current state. An open circuit whose cool-down has
// elapsed still reports open until the next call probes it.
func (b *Breaker) State() State {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.state
}

// Counts returns the current counts.
func (b *Breaker) Counts() Counts {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.counts
}

// Name returns the name of the circuit breaker.
func (b *Breaker) Name() string {
	return b.config.Name
}
