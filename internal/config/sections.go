package config

import (
	"fmt"
	"io"
	"log/slog"
	"math"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/abhisek/taxassign/internal/classify"
)

const (
	EnvMinIdentity     = "TAXASSIGN_MIN_IDENTITY"
	EnvMinCoverage     = "TAXASSIGN_MIN_COVERAGE"
	EnvMinEvalueRatio  = "TAXASSIGN_MIN_EVALUE_RATIO"
	EnvDBDriver        = "TAXASSIGN_DB_DRIVER"
	EnvDBDSN           = "TAXASSIGN_DB_DSN"
	EnvRedisURL        = "TAXASSIGN_REDIS_URL"
	EnvCacheTTL        = "TAXASSIGN_CACHE_TTL"
	EnvRetryAttempts   = "TAXASSIGN_RETRY_MAX_ATTEMPTS"
	EnvRetryWait       = "TAXASSIGN_RETRY_INITIAL_WAIT"
	EnvRetryMaxWait    = "TAXASSIGN_RETRY_MAX_WAIT"
	EnvRetryMultiplier = "TAXASSIGN_RETRY_MULTIPLIER"
	EnvLogLevel        = "TAXASSIGN_LOG_LEVEL"
	EnvLogFormat       = "TAXASSIGN_LOG_FORMAT"
)

// CutoffsConfig holds the hit filtering thresholds. Nil fields are unset so
// that an explicit zero survives merging.
type CutoffsConfig struct {
	MinIdentity    *float64 `toml:"min_identity"`
	MinCoverage    *float64 `toml:"min_coverage"`
	MinEvalueRatio *float64 `toml:"min_evalue_ratio"`
}

func (c *CutoffsConfig) Merge(o *CutoffsConfig) {
	if o.MinIdentity != nil {
		c.MinIdentity = o.MinIdentity
	}
	if o.MinCoverage != nil {
		c.MinCoverage = o.MinCoverage
	}
	if o.MinEvalueRatio != nil {
		c.MinEvalueRatio = o.MinEvalueRatio
	}
}

func (c *CutoffsConfig) Finalize() error {
	for _, f := range []struct {
		env string
		dst **float64
		def float64
	}{
		{EnvMinIdentity, &c.MinIdentity, 90},
		{EnvMinCoverage, &c.MinCoverage, 80},
		{EnvMinEvalueRatio, &c.MinEvalueRatio, 100},
	} {
		if v := os.Getenv(f.env); v != "" {
			n, err := strconv.ParseFloat(v, 64)
			if err != nil {
				return fmt.Errorf("%s: %w", f.env, err)
			}
			*f.dst = &n
		}
		if *f.dst == nil {
			d := f.def
			*f.dst = &d
		}
	}
	_, err := c.Policy()
	return err
}

// Policy builds the cutoff policy from finalized values.
func (c *CutoffsConfig) Policy() (classify.CutoffPolicy, error) {
	return classify.NewCutoffPolicy(deref(c.MinIdentity), deref(c.MinCoverage), deref(c.MinEvalueRatio))
}

func deref(p *float64) float64 {
	if p == nil {
		return math.NaN()
	}
	return *p
}

// DatabaseConfig selects the taxonomy database. An empty DSN with the sqlite
// driver means the default data path.
type DatabaseConfig struct {
	Driver string `toml:"driver"`
	DSN    string `toml:"dsn"`
}

func (c *DatabaseConfig) Merge(o *DatabaseConfig) {
	if o.Driver != "" {
		c.Driver = o.Driver
	}
	if o.DSN != "" {
		c.DSN = o.DSN
	}
}

func (c *DatabaseConfig) Finalize() error {
	if v := os.Getenv(EnvDBDriver); v != "" {
		c.Driver = v
	}
	if v := os.Getenv(EnvDBDSN); v != "" {
		c.DSN = v
	}
	if c.Driver == "" {
		c.Driver = "sqlite"
	}

	switch c.Driver {
	case "sqlite":
	case "pgx":
		if c.DSN == "" {
			return fmt.Errorf("dsn is required for driver %q", c.Driver)
		}
	default:
		return fmt.Errorf("unsupported driver %q", c.Driver)
	}
	return nil
}

// CacheConfig enables the shared Redis row cache when RedisURL is set.
type CacheConfig struct {
	RedisURL string `toml:"redis_url"`
	TTL      string `toml:"ttl"`
}

func (c *CacheConfig) Merge(o *CacheConfig) {
	if o.RedisURL != "" {
		c.RedisURL = o.RedisURL
	}
	if o.TTL != "" {
		c.TTL = o.TTL
	}
}

func (c *CacheConfig) Finalize() error {
	if v := os.Getenv(EnvRedisURL); v != "" {
		c.RedisURL = v
	}
	if v := os.Getenv(EnvCacheTTL); v != "" {
		c.TTL = v
	}
	if c.TTL == "" {
		c.TTL = "24h"
	}
	if d, err := time.ParseDuration(c.TTL); err != nil || d < 0 {
		return fmt.Errorf("invalid ttl %q", c.TTL)
	}
	return nil
}

// Enabled reports whether a Redis cache is configured.
func (c *CacheConfig) Enabled() bool {
	return c.RedisURL != ""
}

// TTLDuration returns TTL as a time.Duration.
func (c *CacheConfig) TTLDuration() time.Duration {
	d, _ := time.ParseDuration(c.TTL)
	return d
}

// RetryConfig controls whole-query retries on taxonomy lookup failures.
type RetryConfig struct {
	MaxAttempts int     `toml:"max_attempts"`
	InitialWait string  `toml:"initial_wait"`
	MaxWait     string  `toml:"max_wait"`
	Multiplier  float64 `toml:"multiplier"`
}

func (c *RetryConfig) Merge(o *RetryConfig) {
	if o.MaxAttempts != 0 {
		c.MaxAttempts = o.MaxAttempts
	}
	if o.InitialWait != "" {
		c.InitialWait = o.InitialWait
	}
	if o.MaxWait != "" {
		c.MaxWait = o.MaxWait
	}
	if o.Multiplier != 0 {
		c.Multiplier = o.Multiplier
	}
}

func (c *RetryConfig) Finalize() error {
	if v := os.Getenv(EnvRetryAttempts); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("%s: %w", EnvRetryAttempts, err)
		}
		c.MaxAttempts = n
	}
	if v := os.Getenv(EnvRetryWait); v != "" {
		c.InitialWait = v
	}
	if v := os.Getenv(EnvRetryMaxWait); v != "" {
		c.MaxWait = v
	}
	if v := os.Getenv(EnvRetryMultiplier); v != "" {
		n, err := strconv.ParseFloat(v, 64)
		if err != nil {
			return fmt.Errorf("%s: %w", EnvRetryMultiplier, err)
		}
		c.Multiplier = n
	}

	def := classify.DefaultRetryConfig()
	if c.MaxAttempts == 0 {
		c.MaxAttempts = def.MaxAttempts
	}
	if c.InitialWait == "" {
		c.InitialWait = def.InitialWait.String()
	}
	if c.MaxWait == "" {
		c.MaxWait = def.MaxWait.String()
	}
	if c.Multiplier == 0 {
		c.Multiplier = def.Multiplier
	}

	if c.MaxAttempts < 1 {
		return fmt.Errorf("max_attempts must be at least 1, got %d", c.MaxAttempts)
	}
	if c.Multiplier < 1 {
		return fmt.Errorf("multiplier must be at least 1, got %g", c.Multiplier)
	}
	for name, v := range map[string]string{"initial_wait": c.InitialWait, "max_wait": c.MaxWait} {
		if _, err := time.ParseDuration(v); err != nil {
			return fmt.Errorf("invalid %s: %w", name, err)
		}
	}
	return nil
}

// Classify converts the finalized values for classify.WithRetry.
func (c *RetryConfig) Classify() classify.RetryConfig {
	initial, _ := time.ParseDuration(c.InitialWait)
	maxWait, _ := time.ParseDuration(c.MaxWait)
	return classify.RetryConfig{
		MaxAttempts: c.MaxAttempts,
		InitialWait: initial,
		MaxWait:     maxWait,
		Multiplier:  c.Multiplier,
	}
}

// LogConfig selects the slog handler.
type LogConfig struct {
	Level  string `toml:"level"`
	Format string `toml:"format"`
}

func (c *LogConfig) Merge(o *LogConfig) {
	if o.Level != "" {
		c.Level = o.Level
	}
	if o.Format != "" {
		c.Format = o.Format
	}
}

func (c *LogConfig) Finalize() error {
	if v := os.Getenv(EnvLogLevel); v != "" {
		c.Level = v
	}
	if v := os.Getenv(EnvLogFormat); v != "" {
		c.Format = v
	}
	if c.Level == "" {
		c.Level = "info"
	}
	if c.Format == "" {
		c.Format = "text"
	}

	if _, err := ParseLevel(c.Level); err != nil {
		return err
	}
	if c.Format != "text" && c.Format != "json" {
		return fmt.Errorf("unsupported format %q (want text or json)", c.Format)
	}
	return nil
}

// ParseLevel maps a level name to its slog.Level.
func ParseLevel(name string) (slog.Level, error) {
	var l slog.Level
	if err := l.UnmarshalText([]byte(strings.ToUpper(name))); err != nil {
		return 0, fmt.Errorf("invalid log level %q", name)
	}
	return l, nil
}

// Logger builds a logger writing to w.
func (c *LogConfig) Logger(w io.Writer) *slog.Logger {
	level, _ := ParseLevel(c.Level)
	opts := &slog.HandlerOptions{Level: level}
	if c.Format == "json" {
		return slog.New(slog.NewJSONHandler(w, opts))
	}
	return slog.New(slog.NewTextHandler(w, opts))
}
