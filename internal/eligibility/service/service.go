package service

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"time"

	"mutualpool/internal/eligibility/metrics"
	"mutualpool/internal/eligibility/models"
	rulesetmodels "mutualpool/internal/ruleset/models"
	id "mutualpool/pkg/domain"
	dErrors "mutualpool/pkg/domain-errors"
	"mutualpool/pkg/platform/events"
	"mutualpool/pkg/platform/sentinel"
	"mutualpool/pkg/requestcontext"
)

// Store defines the persistence interface for eligibility records.
type Store interface {
	Create(ctx context.Context, p *models.Participant) error
	Find(ctx context.Context, account id.AccountID) (*models.Participant, error)
	FindByDID(ctx context.Context, did string) (*models.Participant, error)
	Update(ctx context.Context, p *models.Participant) error
	ListByAccounts(ctx context.Context, accounts []id.AccountID) (map[id.AccountID]*models.Participant, error)
	HashOwner(ctx context.Context, hash string) (id.AccountID, error)
	MarkHashUsed(ctx context.Context, hash string, account id.AccountID) error
	AppendCheckpoint(ctx context.Context, cp models.Checkpoint) error
	ListCheckpoints(ctx context.Context, account id.AccountID) ([]models.Checkpoint, error)
	AppendReputationChange(ctx context.Context, change models.ReputationChange) error
	ListReputationChanges(ctx context.Context, account id.AccountID) ([]models.ReputationChange, error)
}

// Authorizer answers role and registration-mode questions against the ruleset.
type Authorizer interface {
	IsAdmin(account id.AccountID) bool
	HasRole(ctx context.Context, account id.AccountID, role rulesetmodels.Role) (bool, error)
	RequireAdminOrRole(ctx context.Context, role rulesetmodels.Role) error
	OpenRegistration(ctx context.Context) (bool, error)
}

// RegisterCommand carries the inputs of a participant registration.
type RegisterCommand struct {
	Participant id.AccountID
	DID         string
	ProofRef    string
}

// Service is the sybil-resistant eligibility registry.
type Service struct {
	store   Store
	auth    Authorizer
	policy  models.Policy
	events  events.Emitter
	metrics *metrics.Metrics
	logger  *slog.Logger
}

type Option func(*Service)

func WithEvents(e events.Emitter) Option {
	return func(s *Service) {
		s.events = e
	}
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(s *Service) {
		s.metrics = m
	}
}

func WithLogger(logger *slog.Logger) Option {
	return func(s *Service) {
		s.logger = logger
	}
}

func New(store Store, auth Authorizer, policy models.Policy, opts ...Option) *Service {
	s := &Service{store: store, auth: auth, policy: policy}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *Service) Policy() models.Policy {
	return s.policy
}

// Register admits a new Unverified participant. Registrants and the administrator
// may register anyone; while registration is open any caller may register itself.
func (s *Service) Register(ctx context.Context, cmd RegisterCommand) (*models.Participant, error) {
	if err := s.authorizeRegistration(ctx, cmd.Participant); err != nil {
		return nil, err
	}
	now := requestcontext.Now(ctx)
	participant, err := models.NewParticipant(cmd.Participant, cmd.DID, cmd.ProofRef, now)
	if err != nil {
		return nil, err
	}

	if _, err := s.store.Find(ctx, participant.Account); err == nil {
		return nil, dErrors.New(dErrors.CodeDuplicate, "participant already registered")
	} else if !errors.Is(err, sentinel.ErrNotFound) {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to read participant")
	}
	if _, err := s.store.FindByDID(ctx, participant.DID); err == nil {
		return nil, dErrors.New(dErrors.CodeDuplicate, "did is already bound to another participant")
	} else if !errors.Is(err, sentinel.ErrNotFound) {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to read participant")
	}

	if err := s.store.Create(ctx, participant); err != nil {
		if errors.Is(err, sentinel.ErrAlreadyUsed) {
			return nil, dErrors.Wrap(err, dErrors.CodeDuplicate, "participant already registered")
		}
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to store participant")
	}

	if s.metrics != nil {
		s.metrics.IncRegistered()
	}
	s.log(ctx, "participant registered", participant)
	if err := s.emit(ctx, events.ParticipantRegistered, participant.Account, map[string]any{
		"did": participant.DID,
	}); err != nil {
		return nil, err
	}
	return participant, nil
}

func (s *Service) authorizeRegistration(ctx context.Context, participant id.AccountID) error {
	caller := requestcontext.Caller(ctx)
	if caller.IsNil() {
		return dErrors.New(dErrors.CodeUnauthorized, "missing caller")
	}
	if s.auth.IsAdmin(caller) {
		return nil
	}
	ok, err := s.auth.HasRole(ctx, caller, rulesetmodels.RoleRegistrant)
	if err != nil {
		return err
	}
	if ok {
		return nil
	}
	open, err := s.auth.OpenRegistration(ctx)
	if err != nil {
		return err
	}
	if open && caller == participant {
		return nil
	}
	return dErrors.New(dErrors.CodeUnauthorized, "registration is restricted")
}

// PerformCheck records a sybil checkpoint. A passing check claims the identity hash
// for the participant and verifies an Unverified participant.
func (s *Service) PerformCheck(ctx context.Context, account id.AccountID, identityHash string, passed bool) (*models.Checkpoint, error) {
	if err := s.auth.RequireAdminOrRole(ctx, rulesetmodels.RoleVerifier); err != nil {
		return nil, err
	}
	identityHash = strings.TrimSpace(identityHash)
	if identityHash == "" {
		return nil, dErrors.New(dErrors.CodeValidation, "identity hash is required")
	}
	participant, err := s.Get(ctx, account)
	if err != nil {
		return nil, err
	}
	if participant.Status == models.StatusBanned {
		return nil, dErrors.New(dErrors.CodeInvalidState, "participant is banned")
	}
	now := requestcontext.Now(ctx)

	verified := false
	if passed {
		if err := s.claimHash(ctx, identityHash, account); err != nil {
			return nil, err
		}
		if participant.Verify(now) {
			verified = true
			if err := s.update(ctx, participant); err != nil {
				return nil, err
			}
		}
	}

	checkpoint := models.Checkpoint{
		Participant:  account,
		IdentityHash: identityHash,
		Verifier:     requestcontext.Caller(ctx),
		Passed:       passed,
		At:           now,
	}
	if err := s.store.AppendCheckpoint(ctx, checkpoint); err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to store checkpoint")
	}

	if s.metrics != nil {
		s.metrics.IncCheck(outcome(passed))
	}
	if err := s.emit(ctx, events.ParticipantCheckRecorded, account, map[string]any{
		"identity_hash": identityHash,
		"passed":        passed,
	}); err != nil {
		return nil, err
	}
	if verified {
		if s.metrics != nil {
			s.metrics.IncTransition(string(models.StatusVerified))
		}
		s.log(ctx, "participant verified", participant)
		if err := s.emit(ctx, events.ParticipantVerified, account, nil); err != nil {
			return nil, err
		}
	}
	return &checkpoint, nil
}

func (s *Service) claimHash(ctx context.Context, hash string, account id.AccountID) error {
	owner, err := s.store.HashOwner(ctx, hash)
	switch {
	case err == nil && owner != account:
		if s.metrics != nil {
			s.metrics.IncCheck("duplicate")
		}
		return dErrors.New(dErrors.CodeDuplicate, "identity hash already used by another participant")
	case err == nil:
		return nil
	case !errors.Is(err, sentinel.ErrNotFound):
		return dErrors.Wrap(err, dErrors.CodeInternal, "failed to read identity hash")
	}
	if err := s.store.MarkHashUsed(ctx, hash, account); err != nil {
		if errors.Is(err, sentinel.ErrAlreadyUsed) {
			return dErrors.Wrap(err, dErrors.CodeDuplicate, "identity hash already used by another participant")
		}
		return dErrors.Wrap(err, dErrors.CodeInternal, "failed to mark identity hash")
	}
	return nil
}

func outcome(passed bool) string {
	if passed {
		return "passed"
	}
	return "failed"
}

func (s *Service) Get(ctx context.Context, account id.AccountID) (*models.Participant, error) {
	p, err := s.store.Find(ctx, account)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return nil, dErrors.New(dErrors.CodeNotFound, "participant not found")
		}
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to read participant")
	}
	return p, nil
}

// IsEligible evaluates the eligibility predicate. Unknown participants are not eligible.
func (s *Service) IsEligible(ctx context.Context, account id.AccountID) (bool, error) {
	p, err := s.store.Find(ctx, account)
	if errors.Is(err, sentinel.ErrNotFound) {
		s.observe(false)
		return false, nil
	}
	if err != nil {
		return false, dErrors.Wrap(err, dErrors.CodeInternal, "failed to read participant")
	}
	eligible := p.IsEligible(s.policy, requestcontext.Now(ctx))
	s.observe(eligible)
	return eligible, nil
}

// Eligibility evaluates many participants in one read. A missing entry is reported
// ineligible and does not fail the batch.
func (s *Service) Eligibility(ctx context.Context, accounts []id.AccountID) ([]models.Eligibility, error) {
	found, err := s.store.ListByAccounts(ctx, accounts)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to read participants")
	}
	now := requestcontext.Now(ctx)
	out := make([]models.Eligibility, len(accounts))
	for i, a := range accounts {
		p, ok := found[a]
		eligible := ok && p.IsEligible(s.policy, now)
		s.observe(eligible)
		out[i] = models.Eligibility{Participant: a, Eligible: eligible}
	}
	return out, nil
}

// FilterEligible returns the eligible subset of candidates in their original order.
func (s *Service) FilterEligible(ctx context.Context, candidates []id.AccountID) ([]id.AccountID, error) {
	batch, err := s.Eligibility(ctx, candidates)
	if err != nil {
		return nil, err
	}
	out := make([]id.AccountID, 0, len(batch))
	for _, e := range batch {
		if e.Eligible {
			out = append(out, e.Participant)
		}
	}
	return out, nil
}

// UpdateStake sets the absolute staked amount mirrored from the fund ledger.
func (s *Service) UpdateStake(ctx context.Context, account id.AccountID, amount uint64) error {
	p, err := s.Get(ctx, account)
	if err != nil {
		return err
	}
	p.Stake = amount
	p.UpdatedAt = requestcontext.Now(ctx)
	return s.update(ctx, p)
}

// RecordVote feeds a finalized vote back into the participant's reputation.
func (s *Service) RecordVote(ctx context.Context, account id.AccountID, claim id.ClaimID, withMajority bool) (*models.ReputationChange, error) {
	p, err := s.Get(ctx, account)
	if err != nil {
		return nil, err
	}
	change, err := p.RecordVote(claim, withMajority, requestcontext.Now(ctx))
	if err != nil {
		return nil, err
	}
	if err := s.update(ctx, p); err != nil {
		return nil, err
	}
	if err := s.store.AppendReputationChange(ctx, change); err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to store reputation change")
	}
	if s.metrics != nil {
		s.metrics.IncFeedback(withMajority)
	}
	if err := s.emit(ctx, events.ParticipantReputationChanged, account, map[string]any{
		"claim_id": claim.String(),
		"delta":    change.Delta,
		"score":    change.Score,
		"reason":   change.Reason,
	}); err != nil {
		return nil, err
	}
	return &change, nil
}

func (s *Service) Suspend(ctx context.Context, account id.AccountID, reason string) (*models.Participant, error) {
	return s.discipline(ctx, account, reason, events.ParticipantSuspended, (*models.Participant).Suspend)
}

func (s *Service) Reinstate(ctx context.Context, account id.AccountID, reason string) (*models.Participant, error) {
	return s.discipline(ctx, account, reason, events.ParticipantReinstated, (*models.Participant).Reinstate)
}

func (s *Service) Ban(ctx context.Context, account id.AccountID, reason string) (*models.Participant, error) {
	return s.discipline(ctx, account, reason, events.ParticipantBanned, (*models.Participant).Ban)
}

func (s *Service) discipline(
	ctx context.Context,
	account id.AccountID,
	reason string,
	eventType events.Type,
	apply func(*models.Participant, time.Time) error,
) (*models.Participant, error) {
	if err := s.auth.RequireAdminOrRole(ctx, rulesetmodels.RoleVerifier); err != nil {
		return nil, err
	}
	p, err := s.Get(ctx, account)
	if err != nil {
		return nil, err
	}
	if err := apply(p, requestcontext.Now(ctx)); err != nil {
		return nil, err
	}
	if err := s.update(ctx, p); err != nil {
		return nil, err
	}
	if s.metrics != nil {
		s.metrics.IncTransition(string(p.Status))
	}
	s.log(ctx, "participant status changed", p)
	if err := s.emit(ctx, eventType, account, map[string]any{"reason": reason}); err != nil {
		return nil, err
	}
	return p, nil
}

func (s *Service) History(ctx context.Context, account id.AccountID) ([]models.ReputationChange, error) {
	if _, err := s.Get(ctx, account); err != nil {
		return nil, err
	}
	changes, err := s.store.ListReputationChanges(ctx, account)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to read reputation history")
	}
	return changes, nil
}

func (s *Service) Checkpoints(ctx context.Context, account id.AccountID) ([]models.Checkpoint, error) {
	if _, err := s.Get(ctx, account); err != nil {
		return nil, err
	}
	checkpoints, err := s.store.ListCheckpoints(ctx, account)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to read checkpoints")
	}
	return checkpoints, nil
}

func (s *Service) update(ctx context.Context, p *models.Participant) error {
	if err := s.store.Update(ctx, p); err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return dErrors.New(dErrors.CodeNotFound, "participant not found")
		}
		return dErrors.Wrap(err, dErrors.CodeInternal, "failed to update participant")
	}
	return nil
}

func (s *Service) observe(eligible bool) {
	if s.metrics != nil {
		s.metrics.ObserveEligibility(eligible)
	}
}

func (s *Service) log(ctx context.Context, msg string, p *models.Participant) {
	if s.logger == nil {
		return
	}
	s.logger.InfoContext(ctx, msg,
		"participant", p.Account.String(),
		"status", string(p.Status),
		"request_id", requestcontext.RequestID(ctx),
	)
}

func (s *Service) emit(ctx context.Context, t events.Type, account id.AccountID, attrs map[string]any) error {
	if s.events == nil {
		return nil
	}
	return s.events.Emit(ctx, events.Event{
		Type:          t,
		AggregateType: events.AggregateParticipant,
		AggregateID:   account.String(),
		Actor:         requestcontext.Caller(ctx),
		Timestamp:     requestcontext.Now(ctx),
		Attributes:    attrs,
	})
}
