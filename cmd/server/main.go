package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"golang.org/x/sync/errgroup"

	"mutualpool/internal/assets/adapters"
	"mutualpool/internal/assets/ports"
	"mutualpool/internal/claims/selection"
	jwttoken "mutualpool/internal/jwt_token"
	"mutualpool/internal/ledger"
	ledgerhandler "mutualpool/internal/ledger/handler"
	"mutualpool/internal/platform/config"
	"mutualpool/internal/platform/database"
	"mutualpool/internal/platform/health"
	"mutualpool/internal/platform/kafka"
	"mutualpool/internal/platform/kafka/producer"
	"mutualpool/internal/platform/logger"
	"mutualpool/internal/platform/redis"
	"mutualpool/internal/seeder"
	id "mutualpool/pkg/domain"
	"mutualpool/pkg/platform/circuit"
	"mutualpool/pkg/platform/middleware/auth"
	"mutualpool/pkg/platform/middleware/request"
	"mutualpool/pkg/platform/middleware/requesttime"
	"mutualpool/pkg/platform/outbox"
	outboxmetrics "mutualpool/pkg/platform/outbox/metrics"
	outboxmemory "mutualpool/pkg/platform/outbox/store/memory"
	outboxpostgres "mutualpool/pkg/platform/outbox/store/postgres"
	"mutualpool/pkg/platform/outbox/worker"
	"mutualpool/pkg/requestcontext"
)

const (
	shutdownTimeout   = 10 * time.Second
	requestTimeout    = 30 * time.Second
	maxBodyBytes      = 1 << 20
	poolStatsInterval = 15 * time.Second
)

// infra holds the optional backing services selected by configuration.
type infra struct {
	db       *database.Pool
	redis    *redis.Client
	tx       ledger.Tx
	outbox   outbox.Store
	assets   ports.RegistryPort
	producer worker.Publisher
	closers  []func() error
}

func main() {
	cfg, err := config.FromEnv()
	if err != nil {
		fmt.Fprintln(os.Stderr, "config:", err)
		os.Exit(1)
	}
	log := logger.New(cfg.LogLevel)

	if err := run(cfg, log); err != nil {
		log.Error("server exited", "error", err)
		os.Exit(1)
	}
}

func run(cfg config.Server, log *slog.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))

	deps, err := buildInfra(cfg, reg, log)
	if err != nil {
		return err
	}
	defer deps.close(log)

	params := ledger.ParamsFromConfig(cfg.Ledger)
	opts := []ledger.Option{
		ledger.WithMetrics(ledger.NewMetrics(reg)),
		ledger.WithLogger(log),
	}
	if cfg.Ledger.PanelSeed != "" {
		opts = append(opts, ledger.WithSelector(selection.NewSeededShuffle([]byte(cfg.Ledger.PanelSeed))))
	}
	admin := id.AccountID(cfg.Admin)
	engine := ledger.New(deps.tx, deps.assets, admin, params, opts...)

	bootCtx := requestcontext.WithTime(requestcontext.WithCaller(ctx, admin), time.Now())
	if err := engine.SetOpenRegistration(bootCtx, cfg.Ledger.OpenRegistration); err != nil {
		return fmt.Errorf("apply registration setting: %w", err)
	}

	if cfg.SeedDemo {
		if err := seedDemo(ctx, engine, deps, params, log); err != nil {
			return err
		}
	}

	log.Info("initializing mutualpool",
		"addr", cfg.Addr,
		"environment", cfg.Environment,
		"postgres", deps.db != nil,
		"redis", deps.redis != nil,
		"kafka", cfg.Kafka.Brokers != "",
		"panel_size", params.PanelSize,
		"voting_window", params.VotingWindow,
	)

	router := newRouter(cfg, reg, log, engine, deps)
	srv := &http.Server{
		Addr:              cfg.Addr,
		Handler:           router,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      requestTimeout + 5*time.Second,
		IdleTimeout:       60 * time.Second,
	}

	outboxWorker := worker.New(deps.outbox, deps.producer,
		worker.WithTopic(cfg.Kafka.LedgerTopic),
		worker.WithPollInterval(cfg.Kafka.PollInterval),
		worker.WithRetention(cfg.Kafka.Retention),
		worker.WithMetrics(outboxmetrics.New(reg)),
		worker.WithLogger(log),
	)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		log.Info("starting http server", "addr", cfg.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("http server: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		outboxWorker.Start()
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		return outboxWorker.Stop(shutdownCtx)
	})
	if deps.redis != nil {
		g.Go(func() error {
			recordPoolStats(gctx, deps.redis)
			return nil
		})
	}
	g.Go(func() error {
		<-gctx.Done()
		log.Info("shutting down server gracefully")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})

	if err := g.Wait(); err != nil {
		return err
	}
	log.Info("server stopped")
	return nil
}

func buildInfra(cfg config.Server, reg prometheus.Registerer, log *slog.Logger) (*infra, error) {
	deps := &infra{}

	db, err := database.New(cfg.Database, reg)
	if err != nil {
		return nil, err
	}
	if db != nil {
		deps.db = db
		deps.closers = append(deps.closers, db.Close)
		deps.tx = ledger.NewPostgresTx(db.DB())
		deps.outbox = outboxpostgres.New(db.DB())
	} else {
		log.Warn("DATABASE_URL not set, ledger state is kept in memory")
		mem := outboxmemory.New()
		deps.tx = ledger.NewMemoryTx(mem)
		deps.outbox = mem
	}

	rc, err := redis.New(cfg.Redis, reg)
	if err != nil {
		deps.close(log)
		return nil, err
	}
	if rc != nil {
		deps.redis = rc
		deps.closers = append(deps.closers, rc.Close)
		breaker := circuit.New("asset-registry",
			circuit.WithStateChange(func(name string, from, to circuit.State) {
				log.Warn("circuit breaker state changed", "breaker", name, "from", from.String(), "to", to.String())
			}),
		)
		deps.assets = adapters.NewGuardedRegistry(adapters.NewRedisRegistry(rc.Client), breaker)
	} else {
		log.Warn("REDIS_URL not set, asset registry is kept in memory")
		deps.assets = adapters.NewMemoryRegistry()
	}

	if cfg.Kafka.Brokers != "" {
		p, err := producer.New(producer.DefaultConfig(cfg.Kafka.Brokers), log)
		if err != nil {
			deps.close(log)
			return nil, err
		}
		deps.producer = p
		deps.closers = append(deps.closers, p.Close)
	} else {
		deps.producer = producer.NewNoopProducer(log)
	}
	return deps, nil
}

func (d *infra) close(log *slog.Logger) {
	for i := len(d.closers) - 1; i >= 0; i-- {
		if err := d.closers[i](); err != nil {
			log.Warn("failed to close dependency", "error", err)
		}
	}
	d.closers = nil
}

func newRouter(cfg config.Server, reg *prometheus.Registry, log *slog.Logger, engine *ledger.Engine, deps *infra) http.Handler {
	r := chi.NewRouter()
	r.Use(request.Recovery(log))
	r.Use(request.RequestID)
	r.Use(request.Logger(log))
	r.Use(request.LatencyMiddleware(request.NewMetrics(reg)))
	r.Use(requesttime.Middleware)

	checks := health.New(cfg.Environment)
	if deps.db != nil {
		checks.RegisterCheck("postgres", deps.db.Health)
	}
	if deps.redis != nil {
		checks.RegisterCheck("redis", deps.redis.Health)
	}
	if cfg.Kafka.Brokers != "" {
		checks.RegisterOptionalCheck("kafka", kafka.NewHealthChecker(cfg.Kafka.Brokers).Check)
	}
	checks.Register(r)
	r.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{Registry: reg}))

	jwt := jwttoken.NewJWTService(cfg.JWTSigningKey, cfg.JWTIssuer, cfg.JWTAudience, cfg.TokenTTL)
	r.Group(func(r chi.Router) {
		r.Use(request.BodyLimit(maxBodyBytes))
		r.Use(request.Timeout(requestTimeout))
		r.Use(request.ContentTypeJSON)
		r.Use(auth.RequireAuth(jwttoken.NewJWTServiceAdapter(jwt), log))
		ledgerhandler.New(engine, log).Register(r)
	})
	return r
}

func seedDemo(ctx context.Context, engine *ledger.Engine, deps *infra, params ledger.Params, log *slog.Logger) error {
	var assets seeder.AssetRegistry
	if mem, ok := deps.assets.(*adapters.MemoryRegistry); ok {
		assets = mem
	}
	cfg := seeder.Config{
		Panelists:  params.PanelSize,
		Stake:      params.MinStake,
		OwnerFunds: 10_000,
		Deposit:    1_000,
	}
	if err := seeder.New(engine, assets, cfg, log).SeedAll(ctx); err != nil {
		return fmt.Errorf("seed demo data: %w", err)
	}
	return nil
}

func recordPoolStats(ctx context.Context, c *redis.Client) {
	ticker := time.NewTicker(poolStatsInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			c.RecordPoolStats()
		}
	}
}
