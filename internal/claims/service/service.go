package service

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"mutualpool/internal/claims/metrics"
	"mutualpool/internal/claims/models"
	"mutualpool/internal/claims/selection"
	credentialmodels "mutualpool/internal/credential/models"
	eligibilitymodels "mutualpool/internal/eligibility/models"
	fundmodels "mutualpool/internal/fund/models"
	id "mutualpool/pkg/domain"
	dErrors "mutualpool/pkg/domain-errors"
	"mutualpool/pkg/platform/events"
	"mutualpool/pkg/platform/sentinel"
	"mutualpool/pkg/requestcontext"
)

// Store defines the persistence interface for claims.
type Store interface {
	NextID(ctx context.Context) (id.ClaimID, error)
	Create(ctx context.Context, claim *models.Claim) error
	Find(ctx context.Context, claimID id.ClaimID) (*models.Claim, error)
	Update(ctx context.Context, claim *models.Claim) error
}

// Authorizer gates administrator-only panel selection.
type Authorizer interface {
	RequireAdmin(ctx context.Context) error
}

// AttesterRegistry answers whether an attester may attest for a subject.
type AttesterRegistry interface {
	IsAttesterAuthorized(ctx context.Context, subject id.SubjectID, attester id.AccountID) (bool, error)
}

// Credentials is the slice of the credential registry the state machine calls.
type Credentials interface {
	RequireValid(ctx context.Context, holder id.AccountID) error
	OnClaimApproved(ctx context.Context, holder id.AccountID) (*credentialmodels.Credential, error)
}

// Eligibility is the slice of the eligibility registry the state machine calls.
type Eligibility interface {
	FilterEligible(ctx context.Context, candidates []id.AccountID) ([]id.AccountID, error)
	RecordVote(ctx context.Context, account id.AccountID, claim id.ClaimID, withMajority bool) (*eligibilitymodels.ReputationChange, error)
}

// Fund is the slice of the fund ledger the state machine calls.
type Fund interface {
	RequireOwner(ctx context.Context, subject id.SubjectID, account id.AccountID) error
	CollectFee(ctx context.Context, payer id.AccountID, fee uint64) error
	Disburse(ctx context.Context, transfers []fundmodels.Transfer) error
	Stakers(ctx context.Context) ([]id.AccountID, error)
}

// Config holds the adjudication parameters.
type Config struct {
	PanelSize      int
	VotingWindow   time.Duration
	SubmissionFee  uint64
	PanelistReward uint64
}

// SubmitCommand carries the inputs of a claim submission.
type SubmitCommand struct {
	Subject     id.SubjectID
	Attester    id.AccountID
	EvidenceRef string
	Amount      uint64
}

// Service is the claims state machine.
type Service struct {
	store       Store
	auth        Authorizer
	assets      AttesterRegistry
	credentials Credentials
	eligibility Eligibility
	fund        Fund
	selector    selection.PanelSelector
	cfg         Config
	events      events.Emitter
	metrics     *metrics.Metrics
	logger      *slog.Logger
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

// WithSelector replaces the default first-eligible panel strategy.
func WithSelector(sel selection.PanelSelector) Option {
	return func(s *Service) {
		s.selector = sel
	}
}

func New(
	store Store,
	auth Authorizer,
	assets AttesterRegistry,
	credentials Credentials,
	eligibility Eligibility,
	fund Fund,
	cfg Config,
	opts ...Option,
) *Service {
	s := &Service{
		store:       store,
		auth:        auth,
		assets:      assets,
		credentials: credentials,
		eligibility: eligibility,
		fund:        fund,
		selector:    selection.FirstEligible{},
		cfg:         cfg,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Submit files a Pending claim for a subject the caller owns and collects the
// submission fee.
func (s *Service) Submit(ctx context.Context, cmd SubmitCommand) (*models.Claim, error) {
	caller := requestcontext.Caller(ctx)
	if caller.IsNil() {
		return nil, dErrors.New(dErrors.CodeUnauthorized, "missing caller")
	}
	now := requestcontext.Now(ctx)
	claim, err := models.NewClaim(cmd.Subject, caller, cmd.Attester, cmd.EvidenceRef, cmd.Amount, s.cfg.SubmissionFee, now, s.cfg.VotingWindow)
	if err != nil {
		return nil, err
	}

	if err := s.fund.RequireOwner(ctx, claim.Subject, caller); err != nil {
		return nil, err
	}
	authorized, err := s.assets.IsAttesterAuthorized(ctx, claim.Subject, claim.Attester)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to read attester authorization")
	}
	if !authorized {
		return nil, dErrors.New(dErrors.CodeUnauthorized, "attester is not authorized for the subject")
	}
	if err := s.credentials.RequireValid(ctx, claim.Attester); err != nil {
		return nil, err
	}
	if err := s.fund.CollectFee(ctx, caller, claim.Fee); err != nil {
		return nil, err
	}

	claim.ID, err = s.store.NextID(ctx)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to allocate claim id")
	}
	if err := s.store.Create(ctx, claim); err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to store claim")
	}

	if s.metrics != nil {
		s.metrics.IncSubmitted()
	}
	s.log(ctx, "claim submitted", claim)
	if err := s.emit(ctx, events.ClaimSubmitted, claim, map[string]any{
		"subject":  claim.Subject.String(),
		"attester": claim.Attester.String(),
		"amount":   claim.Amount,
		"fee":      claim.Fee,
	}); err != nil {
		return nil, err
	}
	return claim, nil
}

func (s *Service) Get(ctx context.Context, claimID id.ClaimID) (*models.Claim, error) {
	claim, err := s.store.Find(ctx, claimID)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return nil, dErrors.New(dErrors.CodeNotFound, "claim not found")
		}
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to read claim")
	}
	return claim, nil
}

// SelectPanel filters the staker set through the eligibility predicate and
// freezes a panel for a Pending claim.
func (s *Service) SelectPanel(ctx context.Context, claimID id.ClaimID) (*models.Claim, error) {
	if err := s.auth.RequireAdmin(ctx); err != nil {
		return nil, err
	}
	claim, err := s.Get(ctx, claimID)
	if err != nil {
		return nil, err
	}
	if claim.Status != models.StatusPending {
		return nil, dErrors.New(dErrors.CodeInvalidState, "panel can only be selected for a pending claim")
	}
	stakers, err := s.fund.Stakers(ctx)
	if err != nil {
		return nil, err
	}
	eligible, err := s.eligibility.FilterEligible(ctx, stakers)
	if err != nil {
		return nil, err
	}
	panel, err := s.selector.SelectPanel(claim.ID, eligible, s.cfg.PanelSize)
	if err != nil {
		if s.metrics != nil && dErrors.HasCode(err, dErrors.CodeInsufficientResource) {
			s.metrics.IncPanelShortfall()
		}
		return nil, err
	}
	if err := claim.AssignPanel(panel, requestcontext.Now(ctx)); err != nil {
		return nil, err
	}
	if err := s.update(ctx, claim); err != nil {
		return nil, err
	}

	if s.metrics != nil {
		s.metrics.IncPanelSelected()
	}
	s.log(ctx, "claim panel selected", claim)
	members := make([]string, len(panel))
	for i, p := range panel {
		members[i] = p.String()
	}
	if err := s.emit(ctx, events.ClaimPanelSelected, claim, map[string]any{
		"panel":    members,
		"eligible": len(eligible),
	}); err != nil {
		return nil, err
	}
	return claim, nil
}

// Vote records the caller's ballot. The claim is evaluated as soon as the whole
// panel has voted.
func (s *Service) Vote(ctx context.Context, claimID id.ClaimID, approve bool) (*models.Claim, error) {
	caller := requestcontext.Caller(ctx)
	if caller.IsNil() {
		return nil, dErrors.New(dErrors.CodeUnauthorized, "missing caller")
	}
	claim, err := s.Get(ctx, claimID)
	if err != nil {
		return nil, err
	}
	if err := claim.CastVote(caller, approve, requestcontext.Now(ctx)); err != nil {
		return nil, err
	}
	if s.metrics != nil {
		s.metrics.IncVote(approve)
	}
	if err := s.emit(ctx, events.ClaimVoteRecorded, claim, map[string]any{
		"voter":   caller.String(),
		"approve": approve,
	}); err != nil {
		return nil, err
	}
	if claim.AllVoted() {
		if err := s.evaluate(ctx, claim); err != nil {
			return nil, err
		}
	}
	if err := s.update(ctx, claim); err != nil {
		return nil, err
	}
	return claim, nil
}

// Finalize evaluates a claim whose voting window has elapsed. Anyone may call it.
func (s *Service) Finalize(ctx context.Context, claimID id.ClaimID) (*models.Claim, error) {
	claim, err := s.Get(ctx, claimID)
	if err != nil {
		return nil, err
	}
	if err := claim.CanFinalize(requestcontext.Now(ctx)); err != nil {
		return nil, err
	}
	if err := s.evaluate(ctx, claim); err != nil {
		return nil, err
	}
	if err := s.update(ctx, claim); err != nil {
		return nil, err
	}
	return claim, nil
}

// Payout retries the disbursement of an Approved claim left unpaid at evaluation.
func (s *Service) Payout(ctx context.Context, claimID id.ClaimID) (*models.Claim, error) {
	claim, err := s.Get(ctx, claimID)
	if err != nil {
		return nil, err
	}
	if claim.Status != models.StatusApproved {
		return nil, dErrors.New(dErrors.CodeInvalidState, "only approved claims are paid")
	}
	if claim.PaidOut {
		return nil, dErrors.New(dErrors.CodeInvalidState, "claim is already paid")
	}
	if err := s.pay(ctx, claim); err != nil {
		return nil, err
	}
	if err := s.update(ctx, claim); err != nil {
		return nil, err
	}
	return claim, nil
}

// evaluate decides the claim, feeds every vote back into the eligibility
// registry and, on approval, rewards the attester and attempts payout. The
// caller persists the claim.
func (s *Service) evaluate(ctx context.Context, claim *models.Claim) error {
	status := claim.Decide(requestcontext.Now(ctx))
	approved := status == models.StatusApproved

	for _, v := range claim.Votes {
		if _, err := s.eligibility.RecordVote(ctx, v.Voter, claim.ID, v.Approve == approved); err != nil {
			return err
		}
	}

	if s.metrics != nil {
		s.metrics.ObserveOutcome(string(status), len(claim.Votes), len(claim.Panel))
	}
	s.log(ctx, "claim evaluated", claim)
	if err := s.emit(ctx, events.ClaimStatusChanged, claim, map[string]any{
		"approvals":  claim.Approvals,
		"rejections": claim.Rejections,
	}); err != nil {
		return err
	}

	if !approved {
		return nil
	}
	if _, err := s.credentials.OnClaimApproved(ctx, claim.Attester); err != nil {
		return err
	}
	err := s.pay(ctx, claim)
	if dErrors.HasCode(err, dErrors.CodeInsufficientResource) {
		if s.metrics != nil {
			s.metrics.IncPayoutDeferred()
		}
		return s.emit(ctx, events.ClaimPayoutDeferred, claim, map[string]any{
			"amount": claim.Amount,
		})
	}
	return err
}

func (s *Service) pay(ctx context.Context, claim *models.Claim) error {
	plan := claim.PayoutPlan(s.cfg.PanelistReward)
	if err := s.fund.Disburse(ctx, plan); err != nil {
		return err
	}
	if err := claim.MarkPaid(plan, requestcontext.Now(ctx)); err != nil {
		return err
	}
	transfers := make([]map[string]any, len(plan))
	for i, t := range plan {
		transfers[i] = map[string]any{"to": t.To.String(), "amount": t.Amount}
	}
	return s.emit(ctx, events.ClaimPayoutExecuted, claim, map[string]any{
		"transfers": transfers,
	})
}

func (s *Service) update(ctx context.Context, claim *models.Claim) error {
	if err := s.store.Update(ctx, claim); err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return dErrors.New(dErrors.CodeNotFound, "claim not found")
		}
		return dErrors.Wrap(err, dErrors.CodeInternal, "failed to update claim")
	}
	return nil
}

func (s *Service) log(ctx context.Context, msg string, claim *models.Claim) {
	if s.logger == nil {
		return
	}
	s.logger.InfoContext(ctx, msg,
		"claim_id", claim.ID.String(),
		"status", string(claim.Status),
		"request_id", requestcontext.RequestID(ctx),
	)
}

func (s *Service) emit(ctx context.Context, t events.Type, claim *models.Claim, attrs map[string]any) error {
	if s.events == nil {
		return nil
	}
	if attrs == nil {
		attrs = map[string]any{}
	}
	attrs["status"] = string(claim.Status)
	return s.events.Emit(ctx, events.Event{
		Type:          t,
		AggregateType: events.AggregateClaim,
		AggregateID:   claim.ID.String(),
		Actor:         requestcontext.Caller(ctx),
		Timestamp:     requestcontext.Now(ctx),
		Attributes:    attrs,
	})
}
