package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/robfig/cron/v3"
)

const (
	defaultAppName         = "NightLab Exchange"
	defaultAppEnv          = "development"
	defaultPort            = "8080"
	defaultLogLevel        = "info"
	defaultShutdownDelay   = 10 * time.Second
	defaultIdempotencyTTL  = 24 * time.Hour
	defaultAuthMaxAge      = 24 * time.Hour
	defaultRequisitesTTL   = 20 * time.Minute
	defaultCatalogCacheTTL = 5 * time.Minute
	defaultSweepSchedule   = "@every 1m"
	defaultAuthFailures    = 20
	idemTTLSecondsEnvVar   = "IDEMPOTENCY_TTL_SECONDS"
	idemTTLDurEnvVar       = "IDEMPOTENCY_TTL"
	shutdownSecondsEnvVar  = "SHUTDOWN_TIMEOUT_SECONDS"
	shutdownDurationEnvVar = "SHUTDOWN_TIMEOUT"
	sweepScheduleEnvVar    = "EXPIRY_SWEEP_SCHEDULE"
)

// Config captures application runtime configuration loaded from environment variables.
type Config struct {
	AppName               string
	AppEnv                string
	Port                  string
	LogLevel              string
	BotToken              string
	AuthTestMode          bool
	AuthMaxAge            time.Duration
	DatabaseURL           string
	RedisURL              string
	ShutdownPeriod        time.Duration
	IdempotencyTTL        time.Duration
	RequisitesTTL         time.Duration
	CatalogCacheTTL       time.Duration
	// SweepSchedule is a cron spec; empty disables the background sweep.
	SweepSchedule         string
	MerchantKeyHash       string
	AuthFailuresPerMinute int
}

// Load reads configuration values from the environment and populates a Config instance.
func Load() (Config, error) {
	cfg := Config{
		AppName:               getEnv("APP_NAME", defaultAppName),
		AppEnv:                strings.ToLower(getEnv("APP_ENV", defaultAppEnv)),
		Port:                  getEnv("PORT", defaultPort),
		LogLevel:              strings.ToLower(getEnv("LOG_LEVEL", defaultLogLevel)),
		BotToken:              strings.TrimSpace(os.Getenv("BOT_TOKEN")),
		DatabaseURL:           os.Getenv("DATABASE_URL"),
		RedisURL:              os.Getenv("REDIS_URL"),
		MerchantKeyHash:       strings.TrimSpace(os.Getenv("MERCHANT_KEY_HASH")),
		ShutdownPeriod:        defaultShutdownDelay,
		IdempotencyTTL:        defaultIdempotencyTTL,
		SweepSchedule:         defaultSweepSchedule,
		AuthFailuresPerMinute: defaultAuthFailures,
	}

	var err error
	if cfg.ShutdownPeriod, err = secondsOrDuration(shutdownSecondsEnvVar, shutdownDurationEnvVar, defaultShutdownDelay); err != nil {
		return Config{}, err
	}
	if cfg.IdempotencyTTL, err = secondsOrDuration(idemTTLSecondsEnvVar, idemTTLDurEnvVar, defaultIdempotencyTTL); err != nil {
		return Config{}, err
	}
	if cfg.AuthMaxAge, err = duration("AUTH_MAX_AGE", defaultAuthMaxAge); err != nil {
		return Config{}, err
	}
	if cfg.RequisitesTTL, err = duration("REQUISITES_TTL", defaultRequisitesTTL); err != nil {
		return Config{}, err
	}
	if cfg.CatalogCacheTTL, err = duration("CATALOG_CACHE_TTL", defaultCatalogCacheTTL); err != nil {
		return Config{}, err
	}

	if v, ok := os.LookupEnv("AUTH_TEST_MODE"); ok && v != "" {
		if cfg.AuthTestMode, err = strconv.ParseBool(v); err != nil {
			return Config{}, fmt.Errorf("invalid AUTH_TEST_MODE: %w", err)
		}
	}
	if v := os.Getenv("AUTH_FAILURES_PER_MINUTE"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n <= 0 {
			return Config{}, fmt.Errorf("invalid AUTH_FAILURES_PER_MINUTE: %q", v)
		}
		cfg.AuthFailuresPerMinute = n
	}
	if v, ok := os.LookupEnv(sweepScheduleEnvVar); ok {
		cfg.SweepSchedule = strings.TrimSpace(v)
	}

	if err := cfg.validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func (c Config) validate() error {
	var errs []error
	if c.AuthTestMode && !c.IsDevelopment() {
		errs = append(errs, fmt.Errorf("AUTH_TEST_MODE is only allowed in development, APP_ENV=%s", c.AppEnv))
	}
	if c.BotToken == "" && !c.AuthTestMode {
		errs = append(errs, errors.New("BOT_TOKEN must be set"))
	}
	if !c.IsDevelopment() {
		if c.DatabaseURL == "" {
			errs = append(errs, errors.New("DATABASE_URL must be set"))
		}
		if c.RedisURL == "" {
			errs = append(errs, errors.New("REDIS_URL must be set"))
		}
	}
	if c.RequisitesTTL <= 0 {
		errs = append(errs, errors.New("REQUISITES_TTL must be positive"))
	}
	if c.AuthMaxAge <= 0 {
		errs = append(errs, errors.New("AUTH_MAX_AGE must be positive"))
	}
	if c.SweepSchedule != "" {
		if _, err := cron.ParseStandard(c.SweepSchedule); err != nil {
			errs = append(errs, fmt.Errorf("invalid %s: %w", sweepScheduleEnvVar, err))
		}
	}
	return errors.Join(errs...)
}

// IsDevelopment reports whether APP_ENV names a local environment.
func (c Config) IsDevelopment() bool {
	switch c.AppEnv {
	case "development", "dev", "local", "test":
		return true
	}
	return false
}

// Address returns the listen address in the format Fiber expects.
func (c Config) Address() string {
	if strings.HasPrefix(c.Port, ":") {
		return c.Port
	}
	return fmt.Sprintf(":%s", c.Port)
}

func getEnv(key, fallback string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return fallback
}

func duration(key string, fallback time.Duration) (time.Duration, error) {
	v := os.Getenv(key)
	if v == "" {
		return fallback, nil
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return 0, fmt.Errorf("invalid %s: %w", key, err)
	}
	return d, nil
}

// secondsOrDuration prefers the integer seconds variable over the duration one.
func secondsOrDuration(secondsKey, durationKey string, fallback time.Duration) (time.Duration, error) {
	if v := os.Getenv(secondsKey); v != "" {
		seconds, err := strconv.Atoi(v)
		if err != nil {
			return 0, fmt.Errorf("invalid %s: %w", secondsKey, err)
		}
		return time.Duration(seconds) * time.Second, nil
	}
	return duration(durationKey, fallback)
}
