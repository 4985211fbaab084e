package ledger

import (
	"context"
	"time"

	claimsmodels "mutualpool/internal/claims/models"
	claimsservice "mutualpool/internal/claims/service"
	credentialmodels "mutualpool/internal/credential/models"
	credentialservice "mutualpool/internal/credential/service"
	eligibilitymodels "mutualpool/internal/eligibility/models"
	eligibilityservice "mutualpool/internal/eligibility/service"
	fundmodels "mutualpool/internal/fund/models"
	rulesetmodels "mutualpool/internal/ruleset/models"
	id "mutualpool/pkg/domain"
)

// Quote is the premium breakdown for a subject.
type Quote struct {
	Subject     id.SubjectID
	BasePremium uint64
	Multiplier  uint64
	Premium     uint64
}

type none struct{}

// Ruleset

func (e *Engine) GrantRole(ctx context.Context, account id.AccountID, role rulesetmodels.Role) error {
	_, err := mutate(ctx, e, "grant_role", func(ctx context.Context, svc *services) (none, error) {
		return none{}, svc.ruleset.GrantRole(ctx, account, role)
	})
	return err
}

func (e *Engine) RevokeRole(ctx context.Context, account id.AccountID, role rulesetmodels.Role) error {
	_, err := mutate(ctx, e, "revoke_role", func(ctx context.Context, svc *services) (none, error) {
		return none{}, svc.ruleset.RevokeRole(ctx, account, role)
	})
	return err
}

func (e *Engine) Grants(ctx context.Context, role rulesetmodels.Role) ([]rulesetmodels.Grant, error) {
	return view(ctx, e, "grants", func(ctx context.Context, svc *services) ([]rulesetmodels.Grant, error) {
		return svc.ruleset.ListGrants(ctx, role)
	})
}

func (e *Engine) SetOpenRegistration(ctx context.Context, open bool) error {
	_, err := mutate(ctx, e, "set_open_registration", func(ctx context.Context, svc *services) (none, error) {
		return none{}, svc.ruleset.SetOpenRegistration(ctx, open)
	})
	return err
}

// Credentials

func (e *Engine) IssueCredential(ctx context.Context, cmd credentialservice.IssueCommand) (*credentialmodels.Credential, error) {
	return mutate(ctx, e, "issue_credential", func(ctx context.Context, svc *services) (*credentialmodels.Credential, error) {
		return svc.credentials.Issue(ctx, cmd)
	})
}

func (e *Engine) SuspendCredential(ctx context.Context, holder id.AccountID, reason string) (*credentialmodels.Credential, error) {
	return mutate(ctx, e, "suspend_credential", func(ctx context.Context, svc *services) (*credentialmodels.Credential, error) {
		return svc.credentials.Suspend(ctx, holder, reason)
	})
}

func (e *Engine) ReactivateCredential(ctx context.Context, holder id.AccountID, reason string) (*credentialmodels.Credential, error) {
	return mutate(ctx, e, "reactivate_credential", func(ctx context.Context, svc *services) (*credentialmodels.Credential, error) {
		return svc.credentials.Reactivate(ctx, holder, reason)
	})
}

func (e *Engine) RevokeCredential(ctx context.Context, holder id.AccountID, reason string) (*credentialmodels.Credential, error) {
	return mutate(ctx, e, "revoke_credential", func(ctx context.Context, svc *services) (*credentialmodels.Credential, error) {
		return svc.credentials.Revoke(ctx, holder, reason)
	})
}

func (e *Engine) RenewCredential(ctx context.Context, holder id.AccountID, expiresAt time.Time) (*credentialmodels.Credential, error) {
	return mutate(ctx, e, "renew_credential", func(ctx context.Context, svc *services) (*credentialmodels.Credential, error) {
		return svc.credentials.Renew(ctx, holder, expiresAt)
	})
}

func (e *Engine) ExpireCredential(ctx context.Context, holder id.AccountID) (*credentialmodels.Credential, error) {
	return mutate(ctx, e, "expire_credential", func(ctx context.Context, svc *services) (*credentialmodels.Credential, error) {
		return svc.credentials.Expire(ctx, holder)
	})
}

func (e *Engine) RecordIssued(ctx context.Context, holder id.AccountID) (*credentialmodels.Credential, error) {
	return mutate(ctx, e, "record_issued", func(ctx context.Context, svc *services) (*credentialmodels.Credential, error) {
		return svc.credentials.RecordIssued(ctx, holder)
	})
}

func (e *Engine) Credential(ctx context.Context, holder id.AccountID) (*credentialmodels.Credential, error) {
	return view(ctx, e, "credential", func(ctx context.Context, svc *services) (*credentialmodels.Credential, error) {
		return svc.credentials.Get(ctx, holder)
	})
}

func (e *Engine) CredentialValidity(ctx context.Context, holders []id.AccountID) ([]credentialmodels.Validity, error) {
	return view(ctx, e, "credential_validity", func(ctx context.Context, svc *services) ([]credentialmodels.Validity, error) {
		return svc.credentials.Validity(ctx, holders)
	})
}

// Eligibility

func (e *Engine) RegisterParticipant(ctx context.Context, cmd eligibilityservice.RegisterCommand) (*eligibilitymodels.Participant, error) {
	return mutate(ctx, e, "register_participant", func(ctx context.Context, svc *services) (*eligibilitymodels.Participant, error) {
		return svc.eligibility.Register(ctx, cmd)
	})
}

func (e *Engine) PerformCheck(ctx context.Context, account id.AccountID, identityHash string, passed bool) (*eligibilitymodels.Checkpoint, error) {
	return mutate(ctx, e, "perform_check", func(ctx context.Context, svc *services) (*eligibilitymodels.Checkpoint, error) {
		return svc.eligibility.PerformCheck(ctx, account, identityHash, passed)
	})
}

func (e *Engine) SuspendParticipant(ctx context.Context, account id.AccountID, reason string) (*eligibilitymodels.Participant, error) {
	return mutate(ctx, e, "suspend_participant", func(ctx context.Context, svc *services) (*eligibilitymodels.Participant, error) {
		return svc.eligibility.Suspend(ctx, account, reason)
	})
}

func (e *Engine) ReinstateParticipant(ctx context.Context, account id.AccountID, reason string) (*eligibilitymodels.Participant, error) {
	return mutate(ctx, e, "reinstate_participant", func(ctx context.Context, svc *services) (*eligibilitymodels.Participant, error) {
		return svc.eligibility.Reinstate(ctx, account, reason)
	})
}

func (e *Engine) BanParticipant(ctx context.Context, account id.AccountID, reason string) (*eligibilitymodels.Participant, error) {
	return mutate(ctx, e, "ban_participant", func(ctx context.Context, svc *services) (*eligibilitymodels.Participant, error) {
		return svc.eligibility.Ban(ctx, account, reason)
	})
}

func (e *Engine) Participant(ctx context.Context, account id.AccountID) (*eligibilitymodels.Participant, error) {
	return view(ctx, e, "participant", func(ctx context.Context, svc *services) (*eligibilitymodels.Participant, error) {
		return svc.eligibility.Get(ctx, account)
	})
}

func (e *Engine) Eligibility(ctx context.Context, accounts []id.AccountID) ([]eligibilitymodels.Eligibility, error) {
	return view(ctx, e, "eligibility", func(ctx context.Context, svc *services) ([]eligibilitymodels.Eligibility, error) {
		return svc.eligibility.Eligibility(ctx, accounts)
	})
}

func (e *Engine) ReputationHistory(ctx context.Context, account id.AccountID) ([]eligibilitymodels.ReputationChange, error) {
	return view(ctx, e, "reputation_history", func(ctx context.Context, svc *services) ([]eligibilitymodels.ReputationChange, error) {
		return svc.eligibility.History(ctx, account)
	})
}

func (e *Engine) Checkpoints(ctx context.Context, account id.AccountID) ([]eligibilitymodels.Checkpoint, error) {
	return view(ctx, e, "checkpoints", func(ctx context.Context, svc *services) ([]eligibilitymodels.Checkpoint, error) {
		return svc.eligibility.Checkpoints(ctx, account)
	})
}

// Fund

func (e *Engine) FundAccount(ctx context.Context, account id.AccountID, amount uint64) (*fundmodels.Balance, error) {
	return mutate(ctx, e, "fund_account", func(ctx context.Context, svc *services) (*fundmodels.Balance, error) {
		return svc.fund.FundAccount(ctx, account, amount)
	})
}

func (e *Engine) Withdraw(ctx context.Context, amount uint64) (*fundmodels.Balance, error) {
	return mutate(ctx, e, "withdraw", func(ctx context.Context, svc *services) (*fundmodels.Balance, error) {
		return svc.fund.Withdraw(ctx, amount)
	})
}

func (e *Engine) Deposit(ctx context.Context, subject id.SubjectID, amount uint64) (*fundmodels.Pool, error) {
	return mutate(ctx, e, "deposit", func(ctx context.Context, svc *services) (*fundmodels.Pool, error) {
		return svc.fund.Deposit(ctx, subject, amount)
	})
}

func (e *Engine) Stake(ctx context.Context, amount uint64) (*fundmodels.Balance, error) {
	return mutate(ctx, e, "stake", func(ctx context.Context, svc *services) (*fundmodels.Balance, error) {
		return svc.fund.Stake(ctx, amount)
	})
}

func (e *Engine) Unstake(ctx context.Context, amount uint64) (*fundmodels.Balance, error) {
	return mutate(ctx, e, "unstake", func(ctx context.Context, svc *services) (*fundmodels.Balance, error) {
		return svc.fund.Unstake(ctx, amount)
	})
}

func (e *Engine) Pool(ctx context.Context) (*fundmodels.Pool, error) {
	return view(ctx, e, "pool", func(ctx context.Context, svc *services) (*fundmodels.Pool, error) {
		return svc.fund.Pool(ctx)
	})
}

func (e *Engine) Balance(ctx context.Context, account id.AccountID) (*fundmodels.Balance, error) {
	return view(ctx, e, "balance", func(ctx context.Context, svc *services) (*fundmodels.Balance, error) {
		return svc.fund.Balance(ctx, account)
	})
}

func (e *Engine) Stakers(ctx context.Context) ([]id.AccountID, error) {
	return view(ctx, e, "stakers", func(ctx context.Context, svc *services) ([]id.AccountID, error) {
		return svc.fund.Stakers(ctx)
	})
}

func (e *Engine) Quote(ctx context.Context, subject id.SubjectID) (*Quote, error) {
	return view(ctx, e, "quote", func(ctx context.Context, svc *services) (*Quote, error) {
		multiplier, err := svc.premium.RiskMultiplier(ctx, subject)
		if err != nil {
			return nil, err
		}
		amount, err := svc.premium.Premium(ctx, subject)
		if err != nil {
			return nil, err
		}
		return &Quote{
			Subject:     subject,
			BasePremium: svc.premium.BasePremium(),
			Multiplier:  multiplier,
			Premium:     amount,
		}, nil
	})
}

// Claims

func (e *Engine) SubmitClaim(ctx context.Context, cmd claimsservice.SubmitCommand) (*claimsmodels.Claim, error) {
	return mutate(ctx, e, "submit_claim", func(ctx context.Context, svc *services) (*claimsmodels.Claim, error) {
		return svc.claims.Submit(ctx, cmd)
	})
}

func (e *Engine) SelectPanel(ctx context.Context, claimID id.ClaimID) (*claimsmodels.Claim, error) {
	return mutate(ctx, e, "select_panel", func(ctx context.Context, svc *services) (*claimsmodels.Claim, error) {
		return svc.claims.SelectPanel(ctx, claimID)
	})
}

func (e *Engine) Vote(ctx context.Context, claimID id.ClaimID, approve bool) (*claimsmodels.Claim, error) {
	return mutate(ctx, e, "vote", func(ctx context.Context, svc *services) (*claimsmodels.Claim, error) {
		return svc.claims.Vote(ctx, claimID, approve)
	})
}

func (e *Engine) Finalize(ctx context.Context, claimID id.ClaimID) (*claimsmodels.Claim, error) {
	return mutate(ctx, e, "finalize", func(ctx context.Context, svc *services) (*claimsmodels.Claim, error) {
		return svc.claims.Finalize(ctx, claimID)
	})
}

func (e *Engine) Payout(ctx context.Context, claimID id.ClaimID) (*claimsmodels.Claim, error) {
	return mutate(ctx, e, "payout", func(ctx context.Context, svc *services) (*claimsmodels.Claim, error) {
		return svc.claims.Payout(ctx, claimID)
	})
}

func (e *Engine) Claim(ctx context.Context, claimID id.ClaimID) (*claimsmodels.Claim, error) {
	return view(ctx, e, "claim", func(ctx context.Context, svc *services) (*claimsmodels.Claim, error) {
		return svc.claims.Get(ctx, claimID)
	})
}
