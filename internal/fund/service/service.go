package service

import (
	"context"
	"errors"
	"log/slog"
	"math/bits"

	"mutualpool/internal/fund/metrics"
	"mutualpool/internal/fund/models"
	id "mutualpool/pkg/domain"
	dErrors "mutualpool/pkg/domain-errors"
	"mutualpool/pkg/platform/events"
	"mutualpool/pkg/platform/sentinel"
	"mutualpool/pkg/requestcontext"
)

// Store defines the persistence interface for the fund ledger.
// Wallet and Stake read as zero for unknown accounts.
type Store interface {
	State(ctx context.Context) (*models.State, error)
	SaveState(ctx context.Context, state *models.State) error
	Wallet(ctx context.Context, account id.AccountID) (uint64, error)
	SetWallet(ctx context.Context, account id.AccountID, balance uint64) error
	Stake(ctx context.Context, account id.AccountID) (uint64, error)
	SetStake(ctx context.Context, account id.AccountID, amount uint64) error
}

// Authorizer gates administrator-only funding.
type Authorizer interface {
	RequireAdmin(ctx context.Context) error
}

// OwnerReader resolves the recorded owner of an insured subject.
type OwnerReader interface {
	OwnerOf(ctx context.Context, subject id.SubjectID) (id.AccountID, error)
}

// PremiumQuoter prices a deposit for a subject.
type PremiumQuoter interface {
	Premium(ctx context.Context, subject id.SubjectID) (uint64, error)
}

// StakeSink receives the absolute stake after every stake change.
type StakeSink interface {
	UpdateStake(ctx context.Context, account id.AccountID, amount uint64) error
}

// Service is the fund ledger: wallets, the three-bucket pool and stakes.
type Service struct {
	store   Store
	auth    Authorizer
	owners  OwnerReader
	premium PremiumQuoter
	stakes  StakeSink
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

func New(store Store, auth Authorizer, owners OwnerReader, premium PremiumQuoter, stakes StakeSink, opts ...Option) *Service {
	s := &Service{store: store, auth: auth, owners: owners, premium: premium, stakes: stakes}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// FundAccount credits an account wallet from the external on-ramp.
func (s *Service) FundAccount(ctx context.Context, account id.AccountID, amount uint64) (*models.Balance, error) {
	if err := s.auth.RequireAdmin(ctx); err != nil {
		return nil, err
	}
	if account.IsNil() {
		return nil, dErrors.New(dErrors.CodeValidation, "account is required")
	}
	if err := requirePositive(amount); err != nil {
		return nil, err
	}
	if err := s.credit(ctx, account, amount); err != nil {
		return nil, err
	}
	if err := s.emit(ctx, events.LedgerAccountFunded, account.String(), map[string]any{
		"account": account.String(),
		"amount":  amount,
	}); err != nil {
		return nil, err
	}
	return s.Balance(ctx, account)
}

// Withdraw debits the caller's wallet to the external off-ramp.
func (s *Service) Withdraw(ctx context.Context, amount uint64) (*models.Balance, error) {
	caller, err := requireCaller(ctx)
	if err != nil {
		return nil, err
	}
	if err := requirePositive(amount); err != nil {
		return nil, err
	}
	if err := s.debit(ctx, caller, amount); err != nil {
		return nil, err
	}
	if err := s.emit(ctx, events.LedgerWithdrawn, caller.String(), map[string]any{
		"amount": amount,
	}); err != nil {
		return nil, err
	}
	return s.Balance(ctx, caller)
}

// Deposit pays a premium for subject from the caller's wallet into the pool.
func (s *Service) Deposit(ctx context.Context, subject id.SubjectID, amount uint64) (*models.Pool, error) {
	caller, err := requireCaller(ctx)
	if err != nil {
		return nil, err
	}
	if err := s.RequireOwner(ctx, subject, caller); err != nil {
		return nil, err
	}
	premium, err := s.premium.Premium(ctx, subject)
	if err != nil {
		return nil, err
	}
	if amount == 0 || amount < premium {
		return nil, dErrors.New(dErrors.CodeValidation, "deposit is below the required premium")
	}

	state, err := s.state(ctx)
	if err != nil {
		return nil, err
	}
	parts, err := state.Pool.Deposit(amount)
	if err != nil {
		return nil, err
	}
	if err := s.debit(ctx, caller, amount); err != nil {
		return nil, err
	}
	if err := s.saveState(ctx, state); err != nil {
		return nil, err
	}

	if s.metrics != nil {
		s.metrics.AddDeposit(amount)
	}
	s.log(ctx, "premium deposited", "subject", subject.String(), "amount", amount)
	if err := s.emit(ctx, events.LedgerPremiumPaid, subject.String(), map[string]any{
		"subject":   subject.String(),
		"amount":    amount,
		"premium":   premium,
		"immediate": parts.Immediate,
		"stable":    parts.Stable,
		"risk":      parts.Risk,
	}); err != nil {
		return nil, err
	}
	return &state.Pool, nil
}

// RequireOwner fails unless account is the subject's recorded owner.
func (s *Service) RequireOwner(ctx context.Context, subject id.SubjectID, account id.AccountID) error {
	owner, err := s.owners.OwnerOf(ctx, subject)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return dErrors.New(dErrors.CodeNotFound, "subject not found")
		}
		return dErrors.Wrap(err, dErrors.CodeInternal, "failed to read subject owner")
	}
	if owner != account {
		return dErrors.New(dErrors.CodeUnauthorized, "caller does not own the subject")
	}
	return nil
}

// CollectFee moves a submission fee from payer's wallet into the risk reserve.
func (s *Service) CollectFee(ctx context.Context, payer id.AccountID, fee uint64) error {
	if fee == 0 {
		return nil
	}
	state, err := s.state(ctx)
	if err != nil {
		return err
	}
	if err := state.Pool.CreditRisk(fee); err != nil {
		return err
	}
	if err := s.debit(ctx, payer, fee); err != nil {
		return err
	}
	if err := s.saveState(ctx, state); err != nil {
		return err
	}
	if s.metrics != nil {
		s.metrics.AddFee(fee)
	}
	return nil
}

// Disburse pays every transfer out of the pool or none of them.
func (s *Service) Disburse(ctx context.Context, transfers []models.Transfer) error {
	total, err := models.TotalOf(transfers)
	if err != nil {
		return err
	}
	state, err := s.state(ctx)
	if err != nil {
		return err
	}
	if err := state.Pool.Withdraw(total); err != nil {
		if s.metrics != nil {
			s.metrics.IncRejectedPayout()
		}
		return err
	}
	for _, t := range transfers {
		if t.Amount == 0 {
			continue
		}
		if err := s.credit(ctx, t.To, t.Amount); err != nil {
			return err
		}
	}
	if err := s.saveState(ctx, state); err != nil {
		return err
	}
	if s.metrics != nil {
		s.metrics.AddDisbursed(total)
	}
	return nil
}

// Stake moves amount from the caller's wallet into its stake.
func (s *Service) Stake(ctx context.Context, amount uint64) (*models.Balance, error) {
	caller, err := requireCaller(ctx)
	if err != nil {
		return nil, err
	}
	if err := requirePositive(amount); err != nil {
		return nil, err
	}
	current, err := s.stake(ctx, caller)
	if err != nil {
		return nil, err
	}
	next, carry := bits.Add64(current, amount, 0)
	if carry != 0 {
		return nil, dErrors.New(dErrors.CodeValidation, "stake overflows")
	}
	wallet, err := s.wallet(ctx, caller)
	if err != nil {
		return nil, err
	}
	if wallet < amount {
		return nil, dErrors.New(dErrors.CodeInsufficientResource, "wallet balance is insufficient")
	}
	if err := s.setStake(ctx, caller, next); err != nil {
		return nil, err
	}
	if err := s.debit(ctx, caller, amount); err != nil {
		return nil, err
	}
	if err := s.emit(ctx, events.LedgerStaked, caller.String(), map[string]any{
		"amount": amount,
		"stake":  next,
	}); err != nil {
		return nil, err
	}
	return s.Balance(ctx, caller)
}

// Unstake returns amount from the caller's stake to its wallet. A stake of zero
// leaves the staker set.
func (s *Service) Unstake(ctx context.Context, amount uint64) (*models.Balance, error) {
	caller, err := requireCaller(ctx)
	if err != nil {
		return nil, err
	}
	if err := requirePositive(amount); err != nil {
		return nil, err
	}
	current, err := s.stake(ctx, caller)
	if err != nil {
		return nil, err
	}
	if current < amount {
		return nil, dErrors.New(dErrors.CodeInsufficientResource, "stake is insufficient")
	}
	next := current - amount
	if err := s.setStake(ctx, caller, next); err != nil {
		return nil, err
	}
	if err := s.credit(ctx, caller, amount); err != nil {
		return nil, err
	}
	if err := s.emit(ctx, events.LedgerUnstaked, caller.String(), map[string]any{
		"amount": amount,
		"stake":  next,
	}); err != nil {
		return nil, err
	}
	return s.Balance(ctx, caller)
}

// setStake pushes the new total to the eligibility registry, then persists the
// stake and maintains the staker set. Unregistered accounts cannot stake.
func (s *Service) setStake(ctx context.Context, account id.AccountID, amount uint64) error {
	if err := s.stakes.UpdateStake(ctx, account, amount); err != nil {
		return err
	}
	state, err := s.state(ctx)
	if err != nil {
		return err
	}
	set := models.NewStakerSet(state.Stakers)
	if amount == 0 {
		set.Remove(account)
	} else {
		set.Add(account)
	}
	state.Stakers = set.Members()

	if err := s.store.SetStake(ctx, account, amount); err != nil {
		return dErrors.Wrap(err, dErrors.CodeInternal, "failed to store stake")
	}
	return s.saveState(ctx, state)
}

// Stakers returns the staker set in enumeration order.
func (s *Service) Stakers(ctx context.Context) ([]id.AccountID, error) {
	state, err := s.state(ctx)
	if err != nil {
		return nil, err
	}
	return state.Stakers, nil
}

func (s *Service) Pool(ctx context.Context) (*models.Pool, error) {
	state, err := s.state(ctx)
	if err != nil {
		return nil, err
	}
	return &state.Pool, nil
}

// ObserveMetrics copies the committed pool state into the gauges.
func (s *Service) ObserveMetrics(ctx context.Context) error {
	if s.metrics == nil {
		return nil
	}
	state, err := s.state(ctx)
	if err != nil {
		return err
	}
	s.metrics.ObserveState(state)
	return nil
}

func (s *Service) Balance(ctx context.Context, account id.AccountID) (*models.Balance, error) {
	wallet, err := s.wallet(ctx, account)
	if err != nil {
		return nil, err
	}
	stake, err := s.stake(ctx, account)
	if err != nil {
		return nil, err
	}
	return &models.Balance{Account: account, Wallet: wallet, Stake: stake}, nil
}

func (s *Service) credit(ctx context.Context, account id.AccountID, amount uint64) error {
	current, err := s.wallet(ctx, account)
	if err != nil {
		return err
	}
	next, carry := bits.Add64(current, amount, 0)
	if carry != 0 {
		return dErrors.New(dErrors.CodeValidation, "wallet balance overflows")
	}
	if err := s.store.SetWallet(ctx, account, next); err != nil {
		return dErrors.Wrap(err, dErrors.CodeInternal, "failed to store wallet")
	}
	return nil
}

func (s *Service) debit(ctx context.Context, account id.AccountID, amount uint64) error {
	current, err := s.wallet(ctx, account)
	if err != nil {
		return err
	}
	if current < amount {
		return dErrors.New(dErrors.CodeInsufficientResource, "wallet balance is insufficient")
	}
	if err := s.store.SetWallet(ctx, account, current-amount); err != nil {
		return dErrors.Wrap(err, dErrors.CodeInternal, "failed to store wallet")
	}
	return nil
}

func (s *Service) wallet(ctx context.Context, account id.AccountID) (uint64, error) {
	w, err := s.store.Wallet(ctx, account)
	if err != nil {
		return 0, dErrors.Wrap(err, dErrors.CodeInternal, "failed to read wallet")
	}
	return w, nil
}

func (s *Service) stake(ctx context.Context, account id.AccountID) (uint64, error) {
	st, err := s.store.Stake(ctx, account)
	if err != nil {
		return 0, dErrors.Wrap(err, dErrors.CodeInternal, "failed to read stake")
	}
	return st, nil
}

func (s *Service) state(ctx context.Context) (*models.State, error) {
	state, err := s.store.State(ctx)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to read fund state")
	}
	return state, nil
}

func (s *Service) saveState(ctx context.Context, state *models.State) error {
	if err := s.store.SaveState(ctx, state); err != nil {
		return dErrors.Wrap(err, dErrors.CodeInternal, "failed to store fund state")
	}
	return nil
}

func requireCaller(ctx context.Context) (id.AccountID, error) {
	caller := requestcontext.Caller(ctx)
	if caller.IsNil() {
		return "", dErrors.New(dErrors.CodeUnauthorized, "missing caller")
	}
	return caller, nil
}

func requirePositive(amount uint64) error {
	if amount == 0 {
		return dErrors.New(dErrors.CodeValidation, "amount must be greater than zero")
	}
	return nil
}

func (s *Service) log(ctx context.Context, msg string, args ...any) {
	if s.logger == nil {
		return
	}
	args = append(args, "request_id", requestcontext.RequestID(ctx))
	s.logger.InfoContext(ctx, msg, args...)
}

func (s *Service) emit(ctx context.Context, t events.Type, aggregateID string, attrs map[string]any) error {
	if s.events == nil {
		return nil
	}
	return s.events.Emit(ctx, events.Event{
		Type:          t,
		AggregateType: events.AggregateLedger,
		AggregateID:   aggregateID,
		Actor:         requestcontext.Caller(ctx),
		Timestamp:     requestcontext.Now(ctx),
		Attributes:    attrs,
	})
}
