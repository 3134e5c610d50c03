package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Config is the process configuration read from the environment.
type Config struct {
	Port string

	// AuthMode is "jwt" (default) or "dev".
	AuthMode   string
	DevSubject string
	JWT        JWTConfig

	// StorageBackend is "memory" (default) or "postgres".
	StorageBackend string
	DatabaseURL    string
	DBMaxConns     int32
	AutoMigrate    bool

	// IdempotencyBackend is "storage" (default, same as StorageBackend) or "redis".
	IdempotencyBackend string
	RedisURL           string
	IdempotencyTTL     time.Duration

	LogLevel       string
	LogFormat      string
	MetricsEnabled bool

	Jurisdiction    string
	FormCodeSegment string

	BootstrapOperatorSubject string
	BootstrapOperatorRole    string
	BootstrapOperatorName    string
}

// LoadDotEnv reads files (default ".env") into the environment without overriding
// variables that are already set. Missing files are ignored.
func LoadDotEnv(files ...string) error {
	if len(files) == 0 {
		files = []string{".env"}
	}
	for _, f := range files {
		if err := godotenv.Load(f); err != nil && !errors.Is(err, os.ErrNotExist) {
			return fmt.Errorf("load %s: %w", f, err)
		}
	}
	return nil
}

// Load reads Config from the environment. JWT settings are required only when
// AuthMode is "jwt".
func Load() (Config, error) {
	cfg := Config{
		Port:                     getenv("PORT", "8080"),
		AuthMode:                 strings.ToLower(getenv("AUTH_MODE", "jwt")),
		DevSubject:               getenv("DEV_SUBJECT", "dev|local"),
		StorageBackend:           strings.ToLower(getenv("STORAGE_BACKEND", "memory")),
		DatabaseURL:              os.Getenv("DATABASE_URL"),
		IdempotencyBackend:       strings.ToLower(getenv("IDEMPOTENCY_BACKEND", "storage")),
		RedisURL:                 os.Getenv("REDIS_URL"),
		IdempotencyTTL:           24 * time.Hour,
		LogLevel:                 getenv("LOG_LEVEL", "info"),
		LogFormat:                getenv("LOG_FORMAT", "json"),
		MetricsEnabled:           true,
		Jurisdiction:             getenv("MEMBERSHIP_JURISDICTION", "HQ"),
		FormCodeSegment:          getenv("FORM_CODE_SEGMENT", "ASSOC"),
		BootstrapOperatorSubject: os.Getenv("BOOTSTRAP_OPERATOR_SUBJECT"),
		BootstrapOperatorRole:    strings.ToUpper(getenv("BOOTSTRAP_OPERATOR_ROLE", "ADMIN")),
		BootstrapOperatorName:    getenv("BOOTSTRAP_OPERATOR_NAME", "Association Administrator"),
	}

	switch cfg.AuthMode {
	case "jwt":
		jwtCfg, err := LoadJWTConfigFromEnv()
		if err != nil {
			return Config{}, err
		}
		cfg.JWT = jwtCfg
	case "dev":
	default:
		return Config{}, fmt.Errorf("AUTH_MODE must be jwt or dev, got %q", cfg.AuthMode)
	}

	switch cfg.StorageBackend {
	case "memory":
	case "postgres":
		if cfg.DatabaseURL == "" {
			return Config{}, errors.New("DATABASE_URL is required when STORAGE_BACKEND=postgres")
		}
	default:
		return Config{}, fmt.Errorf("STORAGE_BACKEND must be memory or postgres, got %q", cfg.StorageBackend)
	}

	switch cfg.IdempotencyBackend {
	case "storage":
	case "redis":
		if cfg.RedisURL == "" {
			return Config{}, errors.New("REDIS_URL is required when IDEMPOTENCY_BACKEND=redis")
		}
	default:
		return Config{}, fmt.Errorf("IDEMPOTENCY_BACKEND must be storage or redis, got %q", cfg.IdempotencyBackend)
	}

	var err error
	if cfg.AutoMigrate, err = boolEnv("AUTO_MIGRATE", false); err != nil {
		return Config{}, err
	}
	if cfg.MetricsEnabled, err = boolEnv("METRICS_ENABLED", true); err != nil {
		return Config{}, err
	}
	if v := os.Getenv("IDEMPOTENCY_TTL"); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil {
			return Config{}, fmt.Errorf("IDEMPOTENCY_TTL must be a duration (e.g. 24h): %w", err)
		}
		cfg.IdempotencyTTL = d
	}
	if v := os.Getenv("DB_MAX_CONNS"); v != "" {
		n, err := strconv.ParseInt(v, 10, 32)
		if err != nil || n < 1 {
			return Config{}, fmt.Errorf("DB_MAX_CONNS must be a positive integer, got %q", v)
		}
		cfg.DBMaxConns = int32(n)
	}
	return cfg, nil
}

func getenv(k, def string) string {
	if v := os.Getenv(k); v != "" {
		return v
	}
	return def
}

func boolEnv(k string, def bool) (bool, error) {
	v := os.Getenv(k)
	if v == "" {
		return def, nil
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return false, fmt.Errorf("%s must be a boolean, got %q", k, v)
	}
	return b, nil
}
