package service

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"mutualpool/internal/ruleset/models"
	id "mutualpool/pkg/domain"
	dErrors "mutualpool/pkg/domain-errors"
	"mutualpool/pkg/platform/events"
	"mutualpool/pkg/requestcontext"
)

// Store persists role grants and ledger settings.
type Store interface {
	HasRole(ctx context.Context, account id.AccountID, role models.Role) (bool, error)
	GrantRole(ctx context.Context, grant models.Grant) error
	RevokeRole(ctx context.Context, account id.AccountID, role models.Role) (bool, error)
	ListGrants(ctx context.Context, role models.Role) ([]models.Grant, error)
	Settings(ctx context.Context) (*models.Settings, error)
	SaveSettings(ctx context.Context, settings *models.Settings) error
}

// Service answers "who may do what" for every other context and owns the
// ledger clock floor. The administrator is fixed at construction.
type Service struct {
	store  Store
	admin  id.AccountID
	events events.Emitter
	logger *slog.Logger
}

type Option func(*Service)

func WithEvents(e events.Emitter) Option {
	return func(s *Service) {
		s.events = e
	}
}

func WithLogger(logger *slog.Logger) Option {
	return func(s *Service) {
		s.logger = logger
	}
}

func New(store Store, admin id.AccountID, opts ...Option) *Service {
	s := &Service{store: store, admin: admin}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *Service) Admin() id.AccountID {
	return s.admin
}

func (s *Service) IsAdmin(account id.AccountID) bool {
	return !account.IsNil() && account == s.admin
}

func (s *Service) HasRole(ctx context.Context, account id.AccountID, role models.Role) (bool, error) {
	if account.IsNil() {
		return false, nil
	}
	ok, err := s.store.HasRole(ctx, account, role)
	if err != nil {
		return false, dErrors.Wrap(err, dErrors.CodeInternal, "failed to read role grants")
	}
	return ok, nil
}

// RequireAdmin fails with Unauthorized unless the caller is the administrator.
func (s *Service) RequireAdmin(ctx context.Context) error {
	caller := requestcontext.Caller(ctx)
	if !s.IsAdmin(caller) {
		return dErrors.New(dErrors.CodeUnauthorized, "administrator privileges required")
	}
	return nil
}

// RequireRole fails with Unauthorized unless the caller holds role.
func (s *Service) RequireRole(ctx context.Context, role models.Role) error {
	ok, err := s.HasRole(ctx, requestcontext.Caller(ctx), role)
	if err != nil {
		return err
	}
	if !ok {
		return dErrors.New(dErrors.CodeUnauthorized, fmt.Sprintf("%s role required", role))
	}
	return nil
}

// RequireAdminOrRole accepts the administrator or any holder of role.
func (s *Service) RequireAdminOrRole(ctx context.Context, role models.Role) error {
	if s.IsAdmin(requestcontext.Caller(ctx)) {
		return nil
	}
	return s.RequireRole(ctx, role)
}

func (s *Service) GrantRole(ctx context.Context, account id.AccountID, role models.Role) error {
	if err := s.RequireAdmin(ctx); err != nil {
		return err
	}
	if account.IsNil() {
		return dErrors.New(dErrors.CodeValidation, "account is required")
	}
	if !role.IsValid() {
		return dErrors.New(dErrors.CodeValidation, fmt.Sprintf("unknown role: %s", role))
	}
	now := requestcontext.Now(ctx)
	if err := s.store.GrantRole(ctx, models.Grant{Account: account, Role: role, GrantedAt: now}); err != nil {
		return dErrors.Wrap(err, dErrors.CodeInternal, "failed to grant role")
	}
	return s.emit(ctx, events.RulesetRoleGranted, account, map[string]any{"role": string(role)})
}

func (s *Service) RevokeRole(ctx context.Context, account id.AccountID, role models.Role) error {
	if err := s.RequireAdmin(ctx); err != nil {
		return err
	}
	if !role.IsValid() {
		return dErrors.New(dErrors.CodeValidation, fmt.Sprintf("unknown role: %s", role))
	}
	removed, err := s.store.RevokeRole(ctx, account, role)
	if err != nil {
		return dErrors.Wrap(err, dErrors.CodeInternal, "failed to revoke role")
	}
	if !removed {
		return dErrors.New(dErrors.CodeNotFound, fmt.Sprintf("%s does not hold role %s", account, role))
	}
	return s.emit(ctx, events.RulesetRoleRevoked, account, map[string]any{"role": string(role)})
}

func (s *Service) ListGrants(ctx context.Context, role models.Role) ([]models.Grant, error) {
	if !role.IsValid() {
		return nil, dErrors.New(dErrors.CodeValidation, fmt.Sprintf("unknown role: %s", role))
	}
	grants, err := s.store.ListGrants(ctx, role)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to list grants")
	}
	return grants, nil
}

func (s *Service) SetOpenRegistration(ctx context.Context, open bool) error {
	if err := s.RequireAdmin(ctx); err != nil {
		return err
	}
	settings, err := s.settings(ctx)
	if err != nil {
		return err
	}
	settings.OpenRegistration = open
	if err := s.store.SaveSettings(ctx, settings); err != nil {
		return dErrors.Wrap(err, dErrors.CodeInternal, "failed to save settings")
	}
	return s.emit(ctx, events.RulesetRegistration, s.admin, map[string]any{"open": open})
}

func (s *Service) OpenRegistration(ctx context.Context) (bool, error) {
	settings, err := s.settings(ctx)
	if err != nil {
		return false, err
	}
	return settings.OpenRegistration, nil
}

// Advance raises the persisted clock floor to now and returns the operation time.
func (s *Service) Advance(ctx context.Context, now time.Time) (time.Time, error) {
	settings, err := s.settings(ctx)
	if err != nil {
		return time.Time{}, err
	}
	before := settings.LastTimestamp
	at := settings.Advance(now)
	if at.Equal(before) {
		return at, nil
	}
	if err := s.store.SaveSettings(ctx, settings); err != nil {
		return time.Time{}, dErrors.Wrap(err, dErrors.CodeInternal, "failed to advance ledger clock")
	}
	return at, nil
}

// Now returns max(now, floor) without persisting anything.
func (s *Service) Now(ctx context.Context, now time.Time) (time.Time, error) {
	settings, err := s.settings(ctx)
	if err != nil {
		return time.Time{}, err
	}
	if now.Before(settings.LastTimestamp) {
		return settings.LastTimestamp, nil
	}
	return now, nil
}

func (s *Service) settings(ctx context.Context) (*models.Settings, error) {
	settings, err := s.store.Settings(ctx)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to load settings")
	}
	return settings, nil
}

func (s *Service) emit(ctx context.Context, t events.Type, subject id.AccountID, attrs map[string]any) error {
	if s.events == nil {
		return nil
	}
	return s.events.Emit(ctx, events.Event{
		Type:          t,
		AggregateType: events.AggregateRuleset,
		AggregateID:   subject.String(),
		Actor:         requestcontext.Caller(ctx),
		Timestamp:     requestcontext.Now(ctx),
		Attributes:    attrs,
	})
}
