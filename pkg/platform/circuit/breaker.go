// Package circuit provides a small circuit breaker for calls to external read models.
package circuit

import (
	"sync"
	"time"
)

// State represents the circuit breaker state.
type State int

const (
	// StateClosed lets every call through.
	StateClosed State = iota
	// StateOpen rejects calls until the cooldown elapses.
	StateOpen
	// StateHalfOpen lets probe calls through; one failure reopens the circuit.
	StateHalfOpen
)

func (s State) String() string {
	switch s {
	case StateOpen:
		return "open"
	case StateHalfOpen:
		return "half_open"
	default:
		return "closed"
	}
}

// Breaker opens after FailureThreshold consecutive failures, rejects calls for
// Cooldown, then admits probes. SuccessThreshold consecutive probe successes
// close it again.
type Breaker struct {
	mu               sync.Mutex
	name             string
	state            State
	failures         int
	successes        int
	openedAt         time.Time
	failureThreshold int
	successThreshold int
	cooldown         time.Duration
	now              func() time.Time
	onChange         func(name string, from, to State)
}

// Option configures a Breaker instance.
type Option func(*Breaker)

// WithFailureThreshold sets the number of consecutive failures to open the circuit.
// Default is 5.
func WithFailureThreshold(n int) Option {
	return func(b *Breaker) {
		if n > 0 {
			b.failureThreshold = n
		}
	}
}

// WithSuccessThreshold sets the number of consecutive probe successes to close
// the circuit. Default is 2.
func WithSuccessThreshold(n int) Option {
	return func(b *Breaker) {
		if n > 0 {
			b.successThreshold = n
		}
	}
}

// WithCooldown sets how long an open circuit rejects calls. Default is 10s.
func WithCooldown(d time.Duration) Option {
	return func(b *Breaker) {
		if d > 0 {
			b.cooldown = d
		}
	}
}

func WithClock(now func() time.Time) Option {
	return func(b *Breaker) {
		if now != nil {
			b.now = now
		}
	}
}

// WithStateChange registers a callback invoked outside the lock on every transition.
func WithStateChange(fn func(name string, from, to State)) Option {
	return func(b *Breaker) {
		b.onChange = fn
	}
}

func New(name string, opts ...Option) *Breaker {
	b := &Breaker{
		name:             name,
		state:            StateClosed,
		failureThreshold: 5,
		successThreshold: 2,
		cooldown:         10 * time.Second,
		now:              time.Now,
	}
	for _, opt := range opts {
		if opt != nil {
			opt(b)
		}
	}
	return b
}

func (b *Breaker) Name() string {
	return b.name
}

// State returns the current state, moving an open circuit to half-open once
// its cooldown has elapsed.
func (b *Breaker) State() State {
	b.mu.Lock()
	from, to := b.refresh()
	state := b.state
	b.mu.Unlock()
	b.notify(from, to)
	return state
}

// Allow reports whether a call may proceed.
func (b *Breaker) Allow() bool {
	return b.State() != StateOpen
}

// RecordFailure counts a failed call.
func (b *Breaker) RecordFailure() {
	b.mu.Lock()
	from := b.state
	b.successes = 0
	b.failures++
	switch {
	case b.state == StateHalfOpen:
		b.open()
	case b.state == StateClosed && b.failures >= b.failureThreshold:
		b.open()
	}
	to := b.state
	b.mu.Unlock()
	b.notify(from, to)
}

// RecordSuccess counts a successful call.
func (b *Breaker) RecordSuccess() {
	b.mu.Lock()
	from := b.state
	b.failures = 0
	if b.state == StateHalfOpen {
		b.successes++
		if b.successes >= b.successThreshold {
			b.state = StateClosed
			b.successes = 0
		}
	}
	to := b.state
	b.mu.Unlock()
	b.notify(from, to)
}

// Reset closes the circuit and clears all counters.
func (b *Breaker) Reset() {
	b.mu.Lock()
	from := b.state
	b.state = StateClosed
	b.failures = 0
	b.successes = 0
	b.mu.Unlock()
	b.notify(from, StateClosed)
}

func (b *Breaker) open() {
	b.state = StateOpen
	b.openedAt = b.now()
	b.failures = 0
	b.successes = 0
}

// refresh must be called with mu held.
func (b *Breaker) refresh() (State, State) {
	from := b.state
	if b.state == StateOpen && !b.now().Before(b.openedAt.Add(b.cooldown)) {
		b.state = StateHalfOpen
	}
	return from, b.state
}

func (b *Breaker) notify(from, to State) {
	if from != to && b.onChange != nil {
		b.onChange(b.name, from, to)
	}
}
