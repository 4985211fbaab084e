package service

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"mutualpool/internal/credential/metrics"
	"mutualpool/internal/credential/models"
	rulesetmodels "mutualpool/internal/ruleset/models"
	id "mutualpool/pkg/domain"
	dErrors "mutualpool/pkg/domain-errors"
	"mutualpool/pkg/platform/events"
	"mutualpool/pkg/platform/sentinel"
	"mutualpool/pkg/requestcontext"
)

// Store defines the persistence interface for credentials.
// Error Contract:
// - FindByHolder/FindByLicense/Update return sentinel.ErrNotFound when absent
// - Create returns sentinel.ErrAlreadyUsed when the holder or license is bound
type Store interface {
	Create(ctx context.Context, credential *models.Credential) error
	FindByHolder(ctx context.Context, holder id.AccountID) (*models.Credential, error)
	FindByLicense(ctx context.Context, licenseRef string) (*models.Credential, error)
	Update(ctx context.Context, credential *models.Credential) error
	ListByHolders(ctx context.Context, holders []id.AccountID) (map[id.AccountID]*models.Credential, error)
}

// Authorizer answers role questions against the ruleset.
type Authorizer interface {
	IsAdmin(account id.AccountID) bool
	RequireAdmin(ctx context.Context) error
	RequireRole(ctx context.Context, role rulesetmodels.Role) error
}

// IssueCommand carries the inputs of a credential issuance.
type IssueCommand struct {
	Holder      id.AccountID
	LicenseRef  string
	EvidenceRef string
	ExpiresAt   time.Time
}

// Service owns the credential lifecycle. Every mutation reads "now" from the
// request context, which the ledger pins per operation.
type Service struct {
	store   Store
	auth    Authorizer
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

func New(store Store, auth Authorizer, opts ...Option) *Service {
	s := &Service{store: store, auth: auth}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Issue creates an Active credential on behalf of the calling issuer.
func (s *Service) Issue(ctx context.Context, cmd IssueCommand) (*models.Credential, error) {
	if err := s.auth.RequireRole(ctx, rulesetmodels.RoleIssuer); err != nil {
		return nil, err
	}
	now := requestcontext.Now(ctx)
	issuer := requestcontext.Caller(ctx)

	credential, err := models.NewCredential(cmd.Holder, issuer, cmd.LicenseRef, cmd.EvidenceRef, cmd.ExpiresAt, now)
	if err != nil {
		return nil, err
	}

	if _, err := s.store.FindByHolder(ctx, credential.Holder); err == nil {
		return nil, dErrors.New(dErrors.CodeDuplicate, "holder already has a credential")
	} else if !errors.Is(err, sentinel.ErrNotFound) {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to read credential")
	}
	if _, err := s.store.FindByLicense(ctx, credential.LicenseRef); err == nil {
		return nil, dErrors.New(dErrors.CodeDuplicate, "license is already bound to another holder")
	} else if !errors.Is(err, sentinel.ErrNotFound) {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to read credential")
	}

	if err := s.store.Create(ctx, credential); err != nil {
		if errors.Is(err, sentinel.ErrAlreadyUsed) {
			return nil, dErrors.Wrap(err, dErrors.CodeDuplicate, "credential already exists")
		}
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to store credential")
	}

	if s.metrics != nil {
		s.metrics.IncIssued()
	}
	s.log(ctx, "credential issued", credential)
	if err := s.emit(ctx, events.CredentialIssued, credential, map[string]any{
		"license_ref": credential.LicenseRef,
		"expires_at":  credential.ExpiresAt,
	}); err != nil {
		return nil, err
	}
	return credential, nil
}

func (s *Service) Get(ctx context.Context, holder id.AccountID) (*models.Credential, error) {
	credential, err := s.store.FindByHolder(ctx, holder)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return nil, dErrors.New(dErrors.CodeNotFound, "credential not found")
		}
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to read credential")
	}
	return credential, nil
}

// IsValid reports whether holder has an Active, unexpired credential.
// An unknown holder is simply not valid.
func (s *Service) IsValid(ctx context.Context, holder id.AccountID) (bool, error) {
	credential, err := s.store.FindByHolder(ctx, holder)
	if errors.Is(err, sentinel.ErrNotFound) {
		s.observeValidity(false)
		return false, nil
	}
	if err != nil {
		return false, dErrors.Wrap(err, dErrors.CodeInternal, "failed to read credential")
	}
	valid := credential.IsValid(requestcontext.Now(ctx))
	s.observeValidity(valid)
	return valid, nil
}

// RequireValid fails with a Validation error wrapping sentinel.ErrCredentialInvalid.
func (s *Service) RequireValid(ctx context.Context, holder id.AccountID) error {
	valid, err := s.IsValid(ctx, holder)
	if err != nil {
		return err
	}
	if !valid {
		return dErrors.Wrap(sentinel.ErrCredentialInvalid, dErrors.CodeValidation, "attester credential is not valid")
	}
	return nil
}

// Validity evaluates many holders in one read. Unknown holders are reported invalid.
func (s *Service) Validity(ctx context.Context, holders []id.AccountID) ([]models.Validity, error) {
	found, err := s.store.ListByHolders(ctx, holders)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to read credentials")
	}
	now := requestcontext.Now(ctx)
	out := make([]models.Validity, len(holders))
	for i, h := range holders {
		c, ok := found[h]
		out[i] = models.Validity{Holder: h, Valid: ok && c.IsValid(now)}
	}
	return out, nil
}

// Suspend may be invoked by the issuer of record, the administrator or the holder.
func (s *Service) Suspend(ctx context.Context, holder id.AccountID, reason string) (*models.Credential, error) {
	return s.transition(ctx, holder, events.CredentialSuspended,
		func(c *models.Credential, caller id.AccountID) bool {
			return caller == c.Issuer || caller == c.Holder || s.auth.IsAdmin(caller)
		},
		func(c *models.Credential, now time.Time) error { return c.Suspend(reason, now) },
		map[string]any{"reason": reason},
	)
}

func (s *Service) Reactivate(ctx context.Context, holder id.AccountID, reason string) (*models.Credential, error) {
	return s.transition(ctx, holder, events.CredentialReactivated, s.issuerOrAdmin,
		func(c *models.Credential, now time.Time) error { return c.Reactivate(reason, now) },
		map[string]any{"reason": reason},
	)
}

func (s *Service) Revoke(ctx context.Context, holder id.AccountID, reason string) (*models.Credential, error) {
	return s.transition(ctx, holder, events.CredentialRevoked, s.issuerOrAdmin,
		func(c *models.Credential, now time.Time) error { return c.Revoke(reason, now) },
		map[string]any{"reason": reason},
	)
}

func (s *Service) Renew(ctx context.Context, holder id.AccountID, newExpiry time.Time) (*models.Credential, error) {
	return s.transition(ctx, holder, events.CredentialRenewed, s.issuerOrAdmin,
		func(c *models.Credential, now time.Time) error { return c.Renew(newExpiry, now) },
		map[string]any{"expires_at": newExpiry},
	)
}

// Expire lets anyone record that a credential has passed its expiry.
func (s *Service) Expire(ctx context.Context, holder id.AccountID) (*models.Credential, error) {
	return s.transition(ctx, holder, events.CredentialExpired,
		func(*models.Credential, id.AccountID) bool { return true },
		func(c *models.Credential, now time.Time) error { return c.Expire(now) },
		nil,
	)
}

// RecordIssued is the asset-registry usage callback, invoked by the administrator.
func (s *Service) RecordIssued(ctx context.Context, holder id.AccountID) (*models.Credential, error) {
	if err := s.auth.RequireAdmin(ctx); err != nil {
		return nil, err
	}
	return s.usage(ctx, holder, "record_issued", models.RecordIssuedBonus, (*models.Credential).RecordIssued)
}

// OnClaimApproved is called by the claims engine inside the finalizing operation.
func (s *Service) OnClaimApproved(ctx context.Context, holder id.AccountID) (*models.Credential, error) {
	return s.usage(ctx, holder, "claim_approved", models.ClaimApprovedBonus, (*models.Credential).ApproveClaim)
}

func (s *Service) usage(ctx context.Context, holder id.AccountID, kind string, bonus int, apply func(*models.Credential, time.Time)) (*models.Credential, error) {
	credential, err := s.Get(ctx, holder)
	if err != nil {
		return nil, err
	}
	before := credential.Reputation
	apply(credential, requestcontext.Now(ctx))
	if err := s.update(ctx, credential); err != nil {
		return nil, err
	}
	if s.metrics != nil {
		s.metrics.AddReputation(credential.Reputation - before)
	}
	if err := s.emit(ctx, events.CredentialUsage, credential, map[string]any{
		"kind":       kind,
		"bonus":      bonus,
		"reputation": credential.Reputation,
	}); err != nil {
		return nil, err
	}
	return credential, nil
}

func (s *Service) issuerOrAdmin(c *models.Credential, caller id.AccountID) bool {
	return caller == c.Issuer || s.auth.IsAdmin(caller)
}

func (s *Service) transition(
	ctx context.Context,
	holder id.AccountID,
	eventType events.Type,
	allowed func(*models.Credential, id.AccountID) bool,
	apply func(*models.Credential, time.Time) error,
	attrs map[string]any,
) (*models.Credential, error) {
	caller := requestcontext.Caller(ctx)
	if caller.IsNil() {
		return nil, dErrors.New(dErrors.CodeUnauthorized, "missing caller")
	}
	credential, err := s.Get(ctx, holder)
	if err != nil {
		return nil, err
	}
	if !allowed(credential, caller) {
		return nil, dErrors.New(dErrors.CodeUnauthorized, "caller may not change this credential")
	}
	if err := apply(credential, requestcontext.Now(ctx)); err != nil {
		return nil, err
	}
	if err := s.update(ctx, credential); err != nil {
		return nil, err
	}
	if s.metrics != nil {
		s.metrics.IncTransition(string(credential.Status))
	}
	s.log(ctx, "credential status changed", credential)
	if err := s.emit(ctx, eventType, credential, attrs); err != nil {
		return nil, err
	}
	return credential, nil
}

func (s *Service) update(ctx context.Context, credential *models.Credential) error {
	if err := s.store.Update(ctx, credential); err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return dErrors.New(dErrors.CodeNotFound, "credential not found")
		}
		return dErrors.Wrap(err, dErrors.CodeInternal, "failed to update credential")
	}
	return nil
}

func (s *Service) observeValidity(valid bool) {
	if s.metrics != nil {
		s.metrics.ObserveValidity(valid)
	}
}

func (s *Service) log(ctx context.Context, msg string, c *models.Credential) {
	if s.logger == nil {
		return
	}
	s.logger.InfoContext(ctx, msg,
		"holder", c.Holder.String(),
		"status", string(c.Status),
		"issuer", c.Issuer.String(),
		"request_id", requestcontext.RequestID(ctx),
	)
}

func (s *Service) emit(ctx context.Context, t events.Type, c *models.Credential, attrs map[string]any) error {
	if s.events == nil {
		return nil
	}
	if attrs == nil {
		attrs = map[string]any{}
	}
	attrs["status"] = string(c.Status)
	return s.events.Emit(ctx, events.Event{
		Type:          t,
		AggregateType: events.AggregateCredential,
		AggregateID:   c.Holder.String(),
		Actor:         requestcontext.Caller(ctx),
		Timestamp:     requestcontext.Now(ctx),
		Attributes:    attrs,
	})
}
