package ledger

import (
	"time"

	claimsservice "mutualpool/internal/claims/service"
	eligibilitymodels "mutualpool/internal/eligibility/models"
	"mutualpool/internal/platform/config"
)

// Params are the ruleset parameters every bound service reads.
type Params struct {
	PanelSize        int
	VotingWindow     time.Duration
	SubmissionFee    uint64
	BasePremium      uint64
	PanelistReward   uint64
	MinReputation    int
	MinStake         uint64
	InactivityWindow time.Duration
}

// DefaultParams returns the reference pool parameters.
func DefaultParams() Params {
	return Params{
		PanelSize:        21,
		VotingWindow:     72 * time.Hour,
		SubmissionFee:    10,
		BasePremium:      100,
		PanelistReward:   1,
		MinReputation:    400,
		MinStake:         100,
		InactivityWindow: 30 * 24 * time.Hour,
	}
}

// ParamsFromConfig overlays the configured values on the defaults. The fee
// and reward override whenever set, including to zero.
func ParamsFromConfig(cfg config.Ledger) Params {
	p := DefaultParams()
	if cfg.PanelSize > 0 {
		p.PanelSize = cfg.PanelSize
	}
	if cfg.VotingWindow > 0 {
		p.VotingWindow = cfg.VotingWindow
	}
	if cfg.SubmissionFee != nil {
		p.SubmissionFee = *cfg.SubmissionFee
	}
	if cfg.BasePremium > 0 {
		p.BasePremium = cfg.BasePremium
	}
	if cfg.PanelistReward != nil {
		p.PanelistReward = *cfg.PanelistReward
	}
	if cfg.MinReputation > 0 {
		p.MinReputation = cfg.MinReputation
	}
	if cfg.MinStake > 0 {
		p.MinStake = cfg.MinStake
	}
	if cfg.InactivityWindow > 0 {
		p.InactivityWindow = cfg.InactivityWindow
	}
	return p
}

func (p Params) policy() eligibilitymodels.Policy {
	return eligibilitymodels.Policy{
		MinReputation:    p.MinReputation,
		MinStake:         p.MinStake,
		InactivityWindow: p.InactivityWindow,
	}
}

func (p Params) claims() claimsservice.Config {
	return claimsservice.Config{
		PanelSize:      p.PanelSize,
		VotingWindow:   p.VotingWindow,
		SubmissionFee:  p.SubmissionFee,
		PanelistReward: p.PanelistReward,
	}
}
