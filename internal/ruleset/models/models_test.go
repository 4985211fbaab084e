package models

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestSettingsAdvanceIsMonotonic(t *testing.T) {
	t0 := time.Date(2026, 5, 1, 0, 0, 0, 0, time.UTC)
	s := &Settings{}

	assert.Equal(t, t0, s.Advance(t0))
	assert.Equal(t, t0, s.Advance(t0.Add(-time.Hour)), "clock skew backwards is clamped")
	assert.Equal(t, t0, s.LastTimestamp)
	assert.Equal(t, t0.Add(time.Minute), s.Advance(t0.Add(time.Minute)))
}

func TestParseRole(t *testing.T) {
	r, ok := ParseRole("verifier")
	assert.True(t, ok)
	assert.Equal(t, RoleVerifier, r)

	_, ok = ParseRole("admin")
	assert.False(t, ok)
}
