package models

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	id "mutualpool/pkg/domain"
	dErrors "mutualpool/pkg/domain-errors"
)

var t0 = time.Date(2026, 1, 10, 12, 0, 0, 0, time.UTC)

func newActive(t *testing.T) *Credential {
	t.Helper()
	c, err := NewCredential("dr-lee", "board", "LIC-1", "ipfs://cv", t0.Add(365*24*time.Hour), t0)
	require.NoError(t, err)
	return c
}

func TestNewCredential(t *testing.T) {
	c := newActive(t)
	assert.Equal(t, StatusActive, c.Status)
	assert.Equal(t, id.InitialReputation, c.Reputation)
	assert.True(t, c.IsValid(t0))

	_, err := NewCredential("dr-lee", "board", "LIC-1", "", t0, t0)
	assert.True(t, dErrors.HasCode(err, dErrors.CodeValidation), "expiry equal to now is not in the future")

	_, err = NewCredential("dr-lee", "board", "  ", "", t0.Add(time.Hour), t0)
	assert.True(t, dErrors.HasCode(err, dErrors.CodeValidation))
}

func TestIsValidChecksExpiryIndependentlyOfStatus(t *testing.T) {
	c, err := NewCredential("dr-lee", "board", "LIC-1", "", t0.Add(time.Second), t0)
	require.NoError(t, err)

	assert.True(t, c.IsValid(t0))
	assert.False(t, c.IsValid(t0.Add(2*time.Second)))
	assert.Equal(t, StatusActive, c.Status)
}

func TestLifecycleTransitions(t *testing.T) {
	c := newActive(t)

	require.NoError(t, c.Suspend("audit", t0))
	assert.False(t, c.IsValid(t0))
	assert.True(t, dErrors.HasCode(c.Suspend("again", t0), dErrors.CodeInvalidState))

	require.NoError(t, c.Reactivate("cleared", t0))
	assert.True(t, dErrors.HasCode(c.Reactivate("again", t0), dErrors.CodeInvalidState))

	require.NoError(t, c.Revoke("fraud", t0))
	assert.Equal(t, "fraud", c.StatusReason)
	assert.True(t, dErrors.HasCode(c.Revoke("again", t0), dErrors.CodeInvalidState))
	assert.True(t, dErrors.HasCode(c.Reactivate("nope", t0), dErrors.CodeInvalidState))
	assert.True(t, dErrors.HasCode(c.Renew(t0.Add(1000*24*time.Hour), t0), dErrors.CodeInvalidState))
}

func TestRenew(t *testing.T) {
	c, err := NewCredential("dr-lee", "board", "LIC-1", "", t0.Add(time.Hour), t0)
	require.NoError(t, err)

	later := t0.Add(2 * time.Hour)
	require.NoError(t, c.Expire(later))
	assert.Equal(t, StatusExpired, c.Status)

	err = c.Renew(later.Add(-time.Minute), later)
	assert.True(t, dErrors.HasCode(err, dErrors.CodeValidation), "must be after now")

	require.NoError(t, c.Renew(later.Add(24*time.Hour), later))
	assert.Equal(t, StatusActive, c.Status)
	assert.True(t, c.IsValid(later))

	err = c.Renew(later.Add(12*time.Hour), later)
	assert.True(t, dErrors.HasCode(err, dErrors.CodeValidation), "must be after prior expiry")
}

func TestExpireBeforeDeadline(t *testing.T) {
	c := newActive(t)
	assert.True(t, dErrors.HasCode(c.Expire(t0), dErrors.CodeInvalidState))
}

func TestUsageCallbacksSaturate(t *testing.T) {
	c := newActive(t)
	c.Reputation = 999

	c.RecordIssued(t0)
	assert.Equal(t, 1000, c.Reputation)
	c.ApproveClaim(t0)
	assert.Equal(t, 1000, c.Reputation)
	assert.Equal(t, uint64(1), c.RecordsIssued)
	assert.Equal(t, uint64(1), c.ClaimsApproved)
}
