package seeder

import (
	"context"
	"fmt"
	"log/slog"
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
	dErrors "mutualpool/pkg/domain-errors"
	"mutualpool/pkg/requestcontext"
)

// Ledger is the subset of the engine the seeder drives.
type Ledger interface {
	Admin() id.AccountID
	GrantRole(ctx context.Context, account id.AccountID, role rulesetmodels.Role) error
	IssueCredential(ctx context.Context, cmd credentialservice.IssueCommand) (*credentialmodels.Credential, error)
	Credential(ctx context.Context, holder id.AccountID) (*credentialmodels.Credential, error)
	RegisterParticipant(ctx context.Context, cmd eligibilityservice.RegisterCommand) (*eligibilitymodels.Participant, error)
	PerformCheck(ctx context.Context, account id.AccountID, identityHash string, passed bool) (*eligibilitymodels.Checkpoint, error)
	FundAccount(ctx context.Context, account id.AccountID, amount uint64) (*fundmodels.Balance, error)
	Stake(ctx context.Context, amount uint64) (*fundmodels.Balance, error)
	Deposit(ctx context.Context, subject id.SubjectID, amount uint64) (*fundmodels.Pool, error)
	SubmitClaim(ctx context.Context, cmd claimsservice.SubmitCommand) (*claimsmodels.Claim, error)
}

// AssetRegistry is implemented by the in-memory asset registry. Redis-backed
// registries are owned by the operator and are never seeded.
type AssetRegistry interface {
	Register(subject id.SubjectID, owner id.AccountID)
	AddRecords(subject id.SubjectID, n uint64)
	AuthorizeAttester(subject id.SubjectID, attester id.AccountID)
}

// Demo accounts created by SeedAll.
const (
	Insurer  = id.AccountID("insurer-demo")
	Verifier = id.AccountID("kyc-demo")
	Attester = id.AccountID("dr-demo")
	Owner    = id.AccountID("alice")
	Subject  = id.SubjectID("vehicle-demo")
)

// Config sizes the demo pool.
type Config struct {
	Panelists    int
	Stake        uint64
	OwnerFunds   uint64
	Deposit      uint64
	PendingClaim uint64
}

// Seeder populates a fresh ledger with a demo pool.
type Seeder struct {
	ledger Ledger
	assets AssetRegistry
	cfg    Config
	logger *slog.Logger
	now    func() time.Time
}

func New(ledger Ledger, assets AssetRegistry, cfg Config, logger *slog.Logger) *Seeder {
	return &Seeder{
		ledger: ledger,
		assets: assets,
		cfg:    cfg,
		logger: logger,
		now:    time.Now,
	}
}

func (s *Seeder) as(ctx context.Context, caller id.AccountID) context.Context {
	return requestcontext.WithTime(requestcontext.WithCaller(ctx, caller), s.now())
}

// SeedAll is a no-op when the demo attester already holds a credential.
func (s *Seeder) SeedAll(ctx context.Context) error {
	_, err := s.ledger.Credential(s.as(ctx, Owner), Attester)
	if err == nil {
		s.logger.Info("demo data already present, skipping seed")
		return nil
	}
	if !dErrors.HasCode(err, dErrors.CodeNotFound) {
		return fmt.Errorf("failed to probe demo data: %w", err)
	}

	s.logger.Info("seeding demo data...")
	if s.assets != nil {
		s.assets.Register(Subject, Owner)
		s.assets.AuthorizeAttester(Subject, Attester)
		s.assets.AddRecords(Subject, 2)
	}
	if err := s.seedRoles(ctx); err != nil {
		return fmt.Errorf("failed to seed roles: %w", err)
	}
	if err := s.seedCredential(ctx); err != nil {
		return fmt.Errorf("failed to seed credential: %w", err)
	}
	panel, err := s.seedPanelists(ctx)
	if err != nil {
		return fmt.Errorf("failed to seed panelists: %w", err)
	}
	if err := s.seedPool(ctx); err != nil {
		return fmt.Errorf("failed to seed pool: %w", err)
	}

	s.logger.Info("demo data seeded successfully",
		"panelists", len(panel),
		"subject", Subject,
	)
	return nil
}

func (s *Seeder) seedRoles(ctx context.Context) error {
	admin := s.as(ctx, s.ledger.Admin())
	if err := s.ledger.GrantRole(admin, Insurer, rulesetmodels.RoleIssuer); err != nil {
		return err
	}
	return s.ledger.GrantRole(admin, Verifier, rulesetmodels.RoleVerifier)
}

func (s *Seeder) seedCredential(ctx context.Context) error {
	_, err := s.ledger.IssueCredential(s.as(ctx, Insurer), credentialservice.IssueCommand{
		Holder:      Attester,
		LicenseRef:  "LIC-DEMO-0001",
		EvidenceRef: "ipfs://demo-license",
		ExpiresAt:   s.now().AddDate(1, 0, 0),
	})
	return err
}

func (s *Seeder) seedPanelists(ctx context.Context) ([]id.AccountID, error) {
	panel := make([]id.AccountID, 0, s.cfg.Panelists)
	for i := range s.cfg.Panelists {
		p := id.AccountID(fmt.Sprintf("juror-%02d", i))
		if _, err := s.ledger.RegisterParticipant(s.as(ctx, s.ledger.Admin()), eligibilityservice.RegisterCommand{
			Participant: p,
			DID:         "did:example:" + p.String(),
		}); err != nil {
			return nil, err
		}
		if _, err := s.ledger.PerformCheck(s.as(ctx, Verifier), p, fmt.Sprintf("demo-identity-%02d", i), true); err != nil {
			return nil, err
		}
		if _, err := s.ledger.FundAccount(s.as(ctx, s.ledger.Admin()), p, s.cfg.Stake); err != nil {
			return nil, err
		}
		if _, err := s.ledger.Stake(s.as(ctx, p), s.cfg.Stake); err != nil {
			return nil, err
		}
		panel = append(panel, p)
	}
	return panel, nil
}

func (s *Seeder) seedPool(ctx context.Context) error {
	if _, err := s.ledger.FundAccount(s.as(ctx, s.ledger.Admin()), Owner, s.cfg.OwnerFunds); err != nil {
		return err
	}
	if s.assets == nil {
		return nil
	}
	if _, err := s.ledger.Deposit(s.as(ctx, Owner), Subject, s.cfg.Deposit); err != nil {
		return err
	}
	if s.cfg.PendingClaim == 0 {
		return nil
	}
	_, err := s.ledger.SubmitClaim(s.as(ctx, Owner), claimsservice.SubmitCommand{
		Subject:     Subject,
		Attester:    Attester,
		EvidenceRef: "ipfs://demo-assessment",
		Amount:      s.cfg.PendingClaim,
	})
	return err
}
