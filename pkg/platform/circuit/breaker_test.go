package circuit

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

type fakeClock struct{ t time.Time }

func (c *fakeClock) now() time.Time { return c.t }

func TestBreakerLifecycle(t *testing.T) {
	clock := &fakeClock{t: time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)}
	var transitions []string
	b := New("registry",
		WithFailureThreshold(3),
		WithSuccessThreshold(2),
		WithCooldown(time.Minute),
		WithClock(clock.now),
		WithStateChange(func(_ string, from, to State) {
			transitions = append(transitions, from.String()+"->"+to.String())
		}),
	)

	b.RecordFailure()
	b.RecordFailure()
	assert.True(t, b.Allow(), "below threshold stays closed")
	b.RecordSuccess()
	b.RecordFailure()
	b.RecordFailure()
	assert.Equal(t, StateClosed, b.State(), "success resets the failure streak")

	b.RecordFailure()
	assert.Equal(t, StateOpen, b.State())
	assert.False(t, b.Allow())

	clock.t = clock.t.Add(59 * time.Second)
	assert.False(t, b.Allow())
	clock.t = clock.t.Add(time.Second)
	assert.Equal(t, StateHalfOpen, b.State())

	b.RecordFailure()
	assert.Equal(t, StateOpen, b.State(), "a failed probe reopens the circuit")

	clock.t = clock.t.Add(time.Minute)
	assert.True(t, b.Allow())
	b.RecordSuccess()
	assert.Equal(t, StateHalfOpen, b.State())
	b.RecordSuccess()
	assert.Equal(t, StateClosed, b.State())

	assert.Equal(t, []string{
		"closed->open",
		"open->half_open",
		"half_open->open",
		"open->half_open",
		"half_open->closed",
	}, transitions)
}

func TestReset(t *testing.T) {
	b := New("registry", WithFailureThreshold(1))
	b.RecordFailure()
	assert.Equal(t, StateOpen, b.State())
	b.Reset()
	assert.Equal(t, StateClosed, b.State())
	assert.Equal(t, "registry", b.Name())
}
