package models

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	id "mutualpool/pkg/domain"
	dErrors "mutualpool/pkg/domain-errors"
)

var t0 = time.Date(2026, 4, 1, 0, 0, 0, 0, time.UTC)

var policy = Policy{MinReputation: 400, MinStake: 100, InactivityWindow: 30 * 24 * time.Hour}

func verified(t *testing.T) *Participant {
	t.Helper()
	p, err := NewParticipant("alice", "did:example:alice", "", t0)
	require.NoError(t, err)
	require.True(t, p.Verify(t0))
	p.Stake = 100
	return p
}

func TestNewParticipant(t *testing.T) {
	_, err := NewParticipant("alice", "  ", "", t0)
	assert.True(t, dErrors.HasCode(err, dErrors.CodeValidation))

	p, err := NewParticipant("alice", "did:example:alice", "proof-1", t0)
	require.NoError(t, err)
	assert.Equal(t, StatusUnverified, p.Status)
	assert.True(t, p.Active)
	assert.Equal(t, id.InitialReputation, p.Reputation)
	assert.Equal(t, t0, p.LastActivity)
}

func TestIsEligible(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(p *Participant)
		at     time.Time
		want   bool
	}{
		{name: "all conditions hold", mutate: func(*Participant) {}, at: t0, want: true},
		{name: "unverified", mutate: func(p *Participant) { p.Status = StatusUnverified }, at: t0},
		{name: "suspended", mutate: func(p *Participant) { p.Status = StatusSuspended }, at: t0},
		{name: "inactive", mutate: func(p *Participant) { p.Active = false }, at: t0},
		{name: "reputation below floor", mutate: func(p *Participant) { p.Reputation = 399 }, at: t0},
		{name: "reputation at floor", mutate: func(p *Participant) { p.Reputation = 400 }, at: t0, want: true},
		{name: "stake below floor", mutate: func(p *Participant) { p.Stake = 99 }, at: t0},
		{name: "inactivity window reached", mutate: func(*Participant) {}, at: t0.Add(30 * 24 * time.Hour)},
		{name: "just inside inactivity window", mutate: func(*Participant) {}, at: t0.Add(30*24*time.Hour - time.Second), want: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := verified(t)
			tt.mutate(p)
			assert.Equal(t, tt.want, p.IsEligible(policy, tt.at))
		})
	}
}

func TestTransitions(t *testing.T) {
	p := verified(t)
	assert.False(t, p.Verify(t0), "verify only applies to unverified participants")

	require.NoError(t, p.Suspend(t0))
	assert.True(t, dErrors.HasCode(p.Suspend(t0), dErrors.CodeInvalidState))
	require.NoError(t, p.Reinstate(t0))
	assert.True(t, dErrors.HasCode(p.Reinstate(t0), dErrors.CodeInvalidState))

	require.NoError(t, p.Ban(t0))
	assert.False(t, p.Active)
	assert.True(t, dErrors.HasCode(p.Ban(t0), dErrors.CodeInvalidState))
	assert.True(t, dErrors.HasCode(p.Reinstate(t0), dErrors.CodeInvalidState))
}

func TestRecordVote(t *testing.T) {
	p := verified(t)
	later := t0.Add(time.Hour)

	change, err := p.RecordVote(1, true, later)
	require.NoError(t, err)
	assert.Equal(t, AlignedVoteDelta, change.Delta)
	assert.Equal(t, 505, change.Score)
	assert.Equal(t, later, p.LastActivity)
	assert.Equal(t, uint64(1), p.MajorityVotes)

	_, err = p.RecordVote(1, false, later)
	assert.True(t, dErrors.HasCode(err, dErrors.CodeDuplicate))

	change, err = p.RecordVote(2, false, later)
	require.NoError(t, err)
	assert.Equal(t, MisalignedVoteDelta, change.Delta)
	assert.Equal(t, 503, p.Reputation)
	assert.Equal(t, uint64(2), p.TotalVotes)
	assert.Equal(t, []id.ClaimID{1, 2}, p.Claims)
}

func TestRecordVoteSaturatesAtMaximum(t *testing.T) {
	p := verified(t)
	p.Reputation = 998
	for c := id.ClaimID(1); c <= 3; c++ {
		change, err := p.RecordVote(c, true, t0)
		require.NoError(t, err)
		assert.Equal(t, AlignedVoteDelta, change.Delta)
		assert.Equal(t, id.MaxReputation, change.Score)
	}
	assert.Equal(t, id.MaxReputation, p.Reputation)
}

func TestCloneIsIndependent(t *testing.T) {
	p := verified(t)
	p.Claims = []id.ClaimID{7}
	c := p.Clone()
	c.Claims[0] = 8
	assert.Equal(t, id.ClaimID(7), p.Claims[0])
}
