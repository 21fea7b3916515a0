package app

import (
	"fmt"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/yungbote/marketplace-backend/internal/platform/redis"
	"github.com/yungbote/marketplace-backend/internal/data/aggregates"
	"github.com/yungbote/marketplace-backend/internal/data/db"
	"github.com/yungbote/marketplace-backend/internal/observability"
	"github.com/yungbote/marketplace-backend/internal/platform/envutil"
	"github.com/yungbote/marketplace-backend/internal/platform/logger"
	"github.com/yungbote/marketplace-backend/internal/services"
)

// Ledger backends for idempotent replays.
const (
	LedgerDB    = "db"
	LedgerRedis = "redis"
	LedgerOff   = "off"
)

type HTTPConfig struct {
	Addr            string        `yaml:"addr"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout"`
	CORSOrigins     []string      `yaml:"cors_origins"`
}

type CheckerConfig struct {
	// Interval of the scheduled sweep; zero disables it.
	Interval time.Duration `yaml:"interval"`
	// Policy is report_only or attach_and_strip.
	Policy string `yaml:"policy"`
	// Repair applies Policy on scheduled sweeps.
	Repair bool `yaml:"repair"`
	// OrphanGrace is how long an orphan must stay orphaned across sweeps
	// before repair re-attaches it.
	OrphanGrace time.Duration `yaml:"orphan_grace"`
}

type LedgerConfig struct {
	Backend       string        `yaml:"backend"`
	PruneInterval time.Duration `yaml:"prune_interval"`
	Retention     time.Duration `yaml:"retention"`
}

type Config struct {
	LogMode      string                   `yaml:"log_mode"`
	HTTP         HTTPConfig               `yaml:"http"`
	DB           db.Config                `yaml:"db"`
	Redis        redis.Config             `yaml:"redis"`
	Auth         services.AuthConfig      `yaml:"auth"`
	Otel         observability.OtelConfig `yaml:"otel"`
	Aggregates   aggregates.Config        `yaml:"aggregates"`
	StoreTimeout time.Duration            `yaml:"store_timeout"`
	Checker      CheckerConfig            `yaml:"checker"`
	Ledger       LedgerConfig             `yaml:"ledger"`
	MetricsAddr  string                   `yaml:"metrics_addr"`
}

func defaultConfig() Config {
	return Config{
		LogMode: "development",
		HTTP: HTTPConfig{
			Addr:            ":8080",
			ShutdownTimeout: 10 * time.Second,
		},
		DB: db.Config{
			Driver:        db.DriverPostgres,
			MaxOpenConns:  20,
			SlowThreshold: time.Second,
		},
		Redis: redis.Config{
			KeyPrefix: "marketplace",
			LedgerTTL: 24 * time.Hour,
		},
		Auth: services.AuthConfig{
			AccessTTL: 24 * time.Hour,
		},
		Otel: observability.OtelConfig{
			ServiceName: "marketplace-backend",
			Environment: "development",
			SampleRatio: 1,
		},
		StoreTimeout: 5 * time.Second,
		Checker: CheckerConfig{
			Interval:    15 * time.Minute,
			Policy:      aggregates.ReportOnly{}.Name(),
			OrphanGrace: time.Minute,
		},
		Ledger: LedgerConfig{
			Backend:       LedgerDB,
			PruneInterval: time.Hour,
			Retention:     7 * 24 * time.Hour,
		},
	}
}

// LoadConfig layers defaults, the optional CONFIG_FILE yaml and environment
// variables, in that order.
func LoadConfig(log *logger.Logger) (Config, error) {
	cfg := defaultConfig()
	if path := envutil.String("CONFIG_FILE", ""); path != "" {
		raw, err := os.ReadFile(path)
		if err != nil {
			return cfg, fmt.Errorf("read config file: %w", err)
		}
		if err := yaml.Unmarshal(raw, &cfg); err != nil {
			return cfg, fmt.Errorf("parse config file %s: %w", path, err)
		}
		if log != nil {
			log.Info("Loaded config file", "path", path)
		}
	}
	applyEnv(&cfg)
	if err := cfg.validate(); err != nil {
		return cfg, err
	}
	return cfg, nil
}

func applyEnv(cfg *Config) {
	cfg.LogMode = envutil.String("LOG_MODE", cfg.LogMode)

	cfg.HTTP.Addr = envutil.String("HTTP_ADDR", cfg.HTTP.Addr)
	if port := envutil.String("PORT", ""); port != "" {
		cfg.HTTP.Addr = ":" + strings.TrimPrefix(port, ":")
	}
	cfg.HTTP.ShutdownTimeout = envutil.Duration("HTTP_SHUTDOWN_TIMEOUT", cfg.HTTP.ShutdownTimeout)
	if origins := envutil.String("CORS_ORIGINS", ""); origins != "" {
		cfg.HTTP.CORSOrigins = splitList(origins)
	}

	cfg.DB.Driver = envutil.String("DB_DRIVER", cfg.DB.Driver)
	cfg.DB.DSN = envutil.String("DATABASE_URL", cfg.DB.DSN)
	cfg.DB.MaxOpenConns = envutil.Int("DB_MAX_OPEN_CONNS", cfg.DB.MaxOpenConns)
	cfg.DB.SlowThreshold = envutil.Duration("DB_SLOW_THRESHOLD", cfg.DB.SlowThreshold)

	cfg.Redis.Addr = envutil.String("REDIS_ADDR", cfg.Redis.Addr)
	cfg.Redis.Password = envutil.String("REDIS_PASSWORD", cfg.Redis.Password)
	cfg.Redis.DB = envutil.Int("REDIS_DB", cfg.Redis.DB)
	cfg.Redis.KeyPrefix = envutil.String("REDIS_KEY_PREFIX", cfg.Redis.KeyPrefix)
	cfg.Redis.LedgerTTL = envutil.Duration("REDIS_LEDGER_TTL", cfg.Redis.LedgerTTL)

	cfg.Auth.JWTSecret = envutil.String("JWT_SECRET_KEY", cfg.Auth.JWTSecret)
	cfg.Auth.AccessTTL = envutil.Duration("ACCESS_TOKEN_TTL", cfg.Auth.AccessTTL)
	if admins := envutil.String("ADMIN_EMAILS", ""); admins != "" {
		cfg.Auth.AdminEmails = splitList(admins)
	}

	cfg.Otel.Enabled = envutil.Bool("OTEL_ENABLED", cfg.Otel.Enabled)
	cfg.Otel.ServiceName = envutil.String("OTEL_SERVICE_NAME", cfg.Otel.ServiceName)
	cfg.Otel.Environment = envutil.String("APP_ENV", cfg.Otel.Environment)
	cfg.Otel.Endpoint = envutil.String("OTEL_EXPORTER_OTLP_ENDPOINT", cfg.Otel.Endpoint)
	cfg.Otel.Insecure = envutil.Bool("OTEL_EXPORTER_OTLP_INSECURE", cfg.Otel.Insecure)
	if raw := envutil.String("OTEL_EXPORTER_OTLP_HEADERS", ""); raw != "" {
		cfg.Otel.Headers = observability.ParseHeaders(raw)
	}

	cfg.Aggregates.AccountSaveMaxAttempts = envutil.Int("ACCOUNT_SAVE_MAX_ATTEMPTS", cfg.Aggregates.AccountSaveMaxAttempts)
	cfg.Aggregates.AccountSaveBackoff = envutil.Duration("ACCOUNT_SAVE_BACKOFF", cfg.Aggregates.AccountSaveBackoff)
	cfg.StoreTimeout = envutil.Duration("STORE_CALL_TIMEOUT", cfg.StoreTimeout)

	cfg.Checker.Interval = envutil.Duration("CHECKER_INTERVAL", cfg.Checker.Interval)
	cfg.Checker.Policy = envutil.String("CHECKER_REPAIR_POLICY", cfg.Checker.Policy)
	cfg.Checker.Repair = envutil.Bool("CHECKER_REPAIR", cfg.Checker.Repair)
	cfg.Checker.OrphanGrace = envutil.Duration("CHECKER_ORPHAN_GRACE", cfg.Checker.OrphanGrace)

	cfg.Ledger.Backend = envutil.String("LEDGER_BACKEND", cfg.Ledger.Backend)
	cfg.Ledger.PruneInterval = envutil.Duration("LEDGER_PRUNE_INTERVAL", cfg.Ledger.PruneInterval)
	cfg.Ledger.Retention = envutil.Duration("LEDGER_RETENTION", cfg.Ledger.Retention)

	cfg.MetricsAddr = envutil.String("METRICS_ADDR", cfg.MetricsAddr)
}

func (c Config) validate() error {
	if strings.TrimSpace(c.Auth.JWTSecret) == "" {
		return fmt.Errorf("JWT_SECRET_KEY is required")
	}
	if _, err := aggregates.RepairPolicyByName(c.Checker.Policy); err != nil {
		return err
	}
	switch c.Ledger.Backend {
	case LedgerDB, LedgerOff:
	case LedgerRedis:
		if strings.TrimSpace(c.Redis.Addr) == "" {
			return fmt.Errorf("ledger backend redis requires REDIS_ADDR")
		}
	default:
		return fmt.Errorf("unknown ledger backend %q", c.Ledger.Backend)
	}
	return nil
}

func splitList(raw string) []string {
	var out []string
	for _, part := range strings.Split(raw, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
