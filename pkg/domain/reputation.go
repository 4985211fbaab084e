package domain

// Reputation bounds shared by credentials and eligibility records.
const (
	MinReputation     = 0
	MaxReputation     = 1000
	InitialReputation = 500
)

// ClampReputation applies delta to score and saturates at the bounds.
func ClampReputation(score, delta int) int {
	next := score + delta
	if next < MinReputation {
		return MinReputation
	}
	if next > MaxReputation {
		return MaxReputation
	}
	return next
}
