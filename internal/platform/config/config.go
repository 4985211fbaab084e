package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// Server captures process-level configuration.
type Server struct {
	Addr          string
	Environment   string
	LogLevel      string
	JWTSigningKey string
	JWTIssuer     string
	JWTAudience   string
	TokenTTL      time.Duration
	Admin         string
	SeedDemo      bool

	Database Database
	Redis    Redis
	Kafka    Kafka
	Ledger   Ledger
}

// Database configures the PostgreSQL pool. An empty URL selects in-memory stores.
type Database struct {
	URL             string
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
}

// Redis configures the asset registry cache. An empty URL selects the in-memory registry.
type Redis struct {
	URL          string
	PoolSize     int
	MinIdleConns int
	DialTimeout  time.Duration
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
}

// Kafka configures event publication. An empty broker list disables it.
type Kafka struct {
	Brokers      string
	LedgerTopic  string
	PollInterval time.Duration
	// Retention is how long published outbox entries are kept. Zero keeps
	// them forever.
	Retention time.Duration
}

// Ledger holds the tunable pool parameters. Zero values mean "use the
// default", except for the fee and reward where nil does and zero is a
// valid setting.
type Ledger struct {
	PanelSize        int
	VotingWindow     time.Duration
	SubmissionFee    *uint64
	BasePremium      uint64
	PanelistReward   *uint64
	MinReputation    int
	MinStake         uint64
	InactivityWindow time.Duration
	OpenRegistration bool
	PanelSeed        string
}

// FromEnv builds a Server config from environment variables so main stays lean.
func FromEnv() (Server, error) {
	cfg := Server{
		Addr:          getenv("POOL_ADDR", ":8080"),
		Environment:   getenv("POOL_ENV", "dev"),
		LogLevel:      getenv("LOG_LEVEL", "info"),
		JWTSigningKey: getenv("JWT_SIGNING_KEY", "dev-secret-key-change-in-production"),
		JWTIssuer:     getenv("JWT_ISSUER", "mutualpool"),
		JWTAudience:   getenv("JWT_AUDIENCE", "mutualpool-api"),
		Admin:         strings.TrimSpace(os.Getenv("POOL_ADMIN")),
		Database: Database{
			URL:             os.Getenv("DATABASE_URL"),
			MaxOpenConns:    25,
			MaxIdleConns:    5,
			ConnMaxLifetime: 5 * time.Minute,
		},
		Redis: Redis{
			URL:          os.Getenv("REDIS_URL"),
			PoolSize:     10,
			MinIdleConns: 2,
			DialTimeout:  5 * time.Second,
			ReadTimeout:  3 * time.Second,
			WriteTimeout: 3 * time.Second,
		},
		Kafka: Kafka{
			Brokers:      os.Getenv("KAFKA_BROKERS"),
			LedgerTopic:  getenv("KAFKA_LEDGER_TOPIC", "mutualpool.ledger.events"),
			PollInterval: 100 * time.Millisecond,
		},
	}

	var err error
	if cfg.TokenTTL, err = durationEnv("TOKEN_TTL", 15*time.Minute); err != nil {
		return Server{}, err
	}
	if cfg.Kafka.Retention, err = durationEnv("OUTBOX_RETENTION", 168*time.Hour); err != nil {
		return Server{}, err
	}
	if cfg.Ledger.PanelSize, err = intEnv("PANEL_SIZE"); err != nil {
		return Server{}, err
	}
	if cfg.Ledger.VotingWindow, err = durationEnv("VOTING_WINDOW", 0); err != nil {
		return Server{}, err
	}
	if cfg.Ledger.SubmissionFee, err = optionalUintEnv("SUBMISSION_FEE"); err != nil {
		return Server{}, err
	}
	if cfg.Ledger.BasePremium, err = uintEnv("BASE_PREMIUM"); err != nil {
		return Server{}, err
	}
	if cfg.Ledger.PanelistReward, err = optionalUintEnv("PANELIST_REWARD"); err != nil {
		return Server{}, err
	}
	if cfg.Ledger.MinReputation, err = intEnv("MIN_REPUTATION"); err != nil {
		return Server{}, err
	}
	if cfg.Ledger.MinStake, err = uintEnv("MIN_STAKE"); err != nil {
		return Server{}, err
	}
	if cfg.Ledger.InactivityWindow, err = durationEnv("INACTIVITY_WINDOW", 0); err != nil {
		return Server{}, err
	}
	cfg.Ledger.OpenRegistration = os.Getenv("OPEN_REGISTRATION") == "true"
	cfg.Ledger.PanelSeed = os.Getenv("PANEL_SEED")
	cfg.SeedDemo = os.Getenv("SEED_DEMO") == "true"

	if cfg.Admin == "" {
		return Server{}, fmt.Errorf("POOL_ADMIN must name the administrator account")
	}
	return cfg, nil
}

func getenv(key, fallback string) string {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		return v
	}
	return fallback
}

func durationEnv(key string, fallback time.Duration) (time.Duration, error) {
	raw := strings.TrimSpace(os.Getenv(key))
	if raw == "" {
		return fallback, nil
	}
	d, err := time.ParseDuration(raw)
	if err != nil {
		return 0, fmt.Errorf("%s: %w", key, err)
	}
	return d, nil
}

func intEnv(key string) (int, error) {
	raw := strings.TrimSpace(os.Getenv(key))
	if raw == "" {
		return 0, nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil {
		return 0, fmt.Errorf("%s: %w", key, err)
	}
	return n, nil
}

func uintEnv(key string) (uint64, error) {
	raw := strings.TrimSpace(os.Getenv(key))
	if raw == "" {
		return 0, nil
	}
	n, err := strconv.ParseUint(raw, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("%s: %w", key, err)
	}
	return n, nil
}

func optionalUintEnv(key string) (*uint64, error) {
	if strings.TrimSpace(os.Getenv(key)) == "" {
		return nil, nil
	}
	n, err := uintEnv(key)
	if err != nil {
		return nil, err
	}
	return &n, nil
}
