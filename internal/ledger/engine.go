package ledger

import (
	"context"
	"log/slog"

	"github.com/prometheus/client_golang/prometheus"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"mutualpool/internal/assets/ports"
	claimsmetrics "mutualpool/internal/claims/metrics"
	"mutualpool/internal/claims/selection"
	claimsservice "mutualpool/internal/claims/service"
	credentialmetrics "mutualpool/internal/credential/metrics"
	credentialservice "mutualpool/internal/credential/service"
	eligibilitymetrics "mutualpool/internal/eligibility/metrics"
	eligibilityservice "mutualpool/internal/eligibility/service"
	fundmetrics "mutualpool/internal/fund/metrics"
	fundservice "mutualpool/internal/fund/service"
	"mutualpool/internal/premium"
	rulesetservice "mutualpool/internal/ruleset/service"
	id "mutualpool/pkg/domain"
	"mutualpool/pkg/platform/events"
	"mutualpool/pkg/requestcontext"
)

const tracerName = "mutualpool/ledger"

// Metrics bundles the collectors of every bounded context.
type Metrics struct {
	Credentials *credentialmetrics.Metrics
	Eligibility *eligibilitymetrics.Metrics
	Fund        *fundmetrics.Metrics
	Claims      *claimsmetrics.Metrics
}

func NewMetrics(reg prometheus.Registerer) *Metrics {
	return &Metrics{
		Credentials: credentialmetrics.New(reg),
		Eligibility: eligibilitymetrics.New(reg),
		Fund:        fundmetrics.New(reg),
		Claims:      claimsmetrics.New(reg),
	}
}

// Engine is the single entry point of the pool. Every operation runs as one
// serialized transaction against the ledger with services bound to that
// transaction's stores.
type Engine struct {
	tx       Tx
	params   Params
	admin    id.AccountID
	assets   ports.RegistryPort
	selector selection.PanelSelector
	metrics  *Metrics
	logger   *slog.Logger
	tracer   trace.Tracer
}

type Option func(*Engine)

func WithMetrics(m *Metrics) Option {
	return func(e *Engine) {
		e.metrics = m
	}
}

func WithLogger(logger *slog.Logger) Option {
	return func(e *Engine) {
		e.logger = logger
	}
}

// WithSelector sets the panel selection strategy. Defaults to first-eligible.
func WithSelector(sel selection.PanelSelector) Option {
	return func(e *Engine) {
		e.selector = sel
	}
}

func WithTracer(t trace.Tracer) Option {
	return func(e *Engine) {
		e.tracer = t
	}
}

func New(tx Tx, assets ports.RegistryPort, admin id.AccountID, params Params, opts ...Option) *Engine {
	e := &Engine{
		tx:       tx,
		params:   params,
		admin:    admin,
		assets:   assets,
		selector: selection.FirstEligible{},
	}
	for _, opt := range opts {
		opt(e)
	}
	if e.metrics == nil {
		e.metrics = &Metrics{}
	}
	if e.tracer == nil {
		e.tracer = otel.Tracer(tracerName)
	}
	return e
}

func (e *Engine) Params() Params {
	return e.params
}

func (e *Engine) Admin() id.AccountID {
	return e.admin
}

type services struct {
	ruleset     *rulesetservice.Service
	credentials *credentialservice.Service
	eligibility *eligibilityservice.Service
	fund        *fundservice.Service
	claims      *claimsservice.Service
	premium     *premium.Calculator
}

func (e *Engine) bind(stores Stores) *services {
	emitter := events.NewOutboxEmitter(stores.Outbox)

	ruleset := rulesetservice.New(stores.Ruleset, e.admin,
		rulesetservice.WithEvents(emitter),
		rulesetservice.WithLogger(e.logger),
	)
	credentials := credentialservice.New(stores.Credentials, ruleset,
		credentialservice.WithEvents(emitter),
		credentialservice.WithMetrics(e.metrics.Credentials),
		credentialservice.WithLogger(e.logger),
	)
	eligibility := eligibilityservice.New(stores.Eligibility, ruleset, e.params.policy(),
		eligibilityservice.WithEvents(emitter),
		eligibilityservice.WithMetrics(e.metrics.Eligibility),
		eligibilityservice.WithLogger(e.logger),
	)
	calculator := premium.NewCalculator(premium.NewHistoryOracle(e.assets), e.params.BasePremium)
	fund := fundservice.New(stores.Fund, ruleset, e.assets, calculator, eligibility,
		fundservice.WithEvents(emitter),
		fundservice.WithMetrics(e.metrics.Fund),
		fundservice.WithLogger(e.logger),
	)
	claims := claimsservice.New(stores.Claims, ruleset, e.assets, credentials, eligibility, fund, e.params.claims(),
		claimsservice.WithEvents(emitter),
		claimsservice.WithMetrics(e.metrics.Claims),
		claimsservice.WithLogger(e.logger),
		claimsservice.WithSelector(e.selector),
	)
	return &services{
		ruleset:     ruleset,
		credentials: credentials,
		eligibility: eligibility,
		fund:        fund,
		claims:      claims,
		premium:     calculator,
	}
}

// mutate runs fn in a write transaction at the advanced ledger time.
func mutate[T any](ctx context.Context, e *Engine, op string, fn func(ctx context.Context, svc *services) (T, error)) (T, error) {
	ctx, span := e.start(ctx, op)
	var out T
	err := e.tx.RunInTx(ctx, func(ctx context.Context, stores Stores) error {
		svc := e.bind(stores)
		now, err := svc.ruleset.Advance(ctx, requestcontext.Now(ctx))
		if err != nil {
			return err
		}
		out, err = fn(requestcontext.WithTime(ctx, now), svc)
		return err
	})
	if err != nil {
		e.end(span, err)
		var zero T
		return zero, err
	}
	e.observe(ctx)
	e.end(span, nil)
	return out, nil
}

// view runs fn against a snapshot without moving the ledger clock.
func view[T any](ctx context.Context, e *Engine, op string, fn func(ctx context.Context, svc *services) (T, error)) (T, error) {
	ctx, span := e.start(ctx, op)
	var out T
	err := e.tx.View(ctx, func(ctx context.Context, stores Stores) error {
		svc := e.bind(stores)
		now, err := svc.ruleset.Now(ctx, requestcontext.Now(ctx))
		if err != nil {
			return err
		}
		out, err = fn(requestcontext.WithTime(ctx, now), svc)
		return err
	})
	e.end(span, err)
	if err != nil {
		var zero T
		return zero, err
	}
	return out, nil
}

func (e *Engine) start(ctx context.Context, op string) (context.Context, trace.Span) {
	return e.tracer.Start(ctx, "ledger."+op, trace.WithAttributes(
		attribute.String("ledger.operation", op),
		attribute.String("ledger.caller", requestcontext.Caller(ctx).String()),
		attribute.String("request_id", requestcontext.RequestID(ctx)),
	))
}

func (e *Engine) end(span trace.Span, err error) {
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
	span.End()
}

// observe copies committed pool balances into the fund gauges.
func (e *Engine) observe(ctx context.Context) {
	if e.metrics.Fund == nil {
		return
	}
	err := e.tx.View(ctx, func(ctx context.Context, stores Stores) error {
		return e.bind(stores).fund.ObserveMetrics(ctx)
	})
	if err != nil && e.logger != nil {
		e.logger.WarnContext(ctx, "failed to observe fund metrics", "error", err)
	}
}
