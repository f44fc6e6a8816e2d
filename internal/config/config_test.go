package config

import (
	"bytes"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/pelletier/go-toml/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	p := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(p, []byte(content), 0o644))
	return p
}

func TestDefault(t *testing.T) {
	cfg, err := Default()
	require.NoError(t, err)

	assert.Equal(t, 90.0, *cfg.Cutoffs.MinIdentity)
	assert.Equal(t, 80.0, *cfg.Cutoffs.MinCoverage)
	assert.Equal(t, 100.0, *cfg.Cutoffs.MinEvalueRatio)
	assert.Equal(t, "sqlite", cfg.Database.Driver)
	assert.Empty(t, cfg.Database.DSN)
	assert.False(t, cfg.Cache.Enabled())
	assert.Equal(t, 24*time.Hour, cfg.Cache.TTLDuration())
	assert.Equal(t, 3, cfg.Retry.MaxAttempts)
	assert.Equal(t, 200*time.Millisecond, cfg.Retry.Classify().InitialWait)
	assert.Equal(t, 5*time.Second, cfg.Retry.Classify().MaxWait)
	assert.Equal(t, "info", cfg.Log.Level)
	assert.Equal(t, "text", cfg.Log.Format)

	p, err := cfg.Cutoffs.Policy()
	require.NoError(t, err)
	assert.Equal(t, 100.0, p.MinEvalueRatio())
}

func TestLoad_File(t *testing.T) {
	dir := t.TempDir()
	path := writeFile(t, dir, "taxassign.toml", `
[cutoffs]
min_identity = 0
min_coverage = 50.5

[database]
driver = "pgx"
dsn = "postgres://localhost/taxonomy"

[cache]
redis_url = "redis://localhost:6379/0"
ttl = "1h"

[retry]
max_attempts = 5

[log]
level = "debug"
format = "json"
`)

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, 0.0, *cfg.Cutoffs.MinIdentity, "explicit zero is kept")
	assert.Equal(t, 50.5, *cfg.Cutoffs.MinCoverage)
	assert.Equal(t, 100.0, *cfg.Cutoffs.MinEvalueRatio)
	assert.Equal(t, "pgx", cfg.Database.Driver)
	assert.True(t, cfg.Cache.Enabled())
	assert.Equal(t, time.Hour, cfg.Cache.TTLDuration())
	assert.Equal(t, 5, cfg.Retry.MaxAttempts)
	assert.Equal(t, 2.0, cfg.Retry.Multiplier)
	assert.Equal(t, "json", cfg.Log.Format)
}

func TestLoad_Overlay(t *testing.T) {
	dir := t.TempDir()
	path := writeFile(t, dir, "taxassign.toml", `
[cutoffs]
min_identity = 95
min_coverage = 85
`)
	writeFile(t, dir, "taxassign.strict.toml", `
[cutoffs]
min_identity = 99
`)
	t.Setenv(EnvTaxassignEnv, "strict")

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, 99.0, *cfg.Cutoffs.MinIdentity)
	assert.Equal(t, 85.0, *cfg.Cutoffs.MinCoverage)
}

func TestLoad_EnvOverridesFile(t *testing.T) {
	dir := t.TempDir()
	path := writeFile(t, dir, "taxassign.toml", `
[cutoffs]
min_identity = 95

[log]
level = "warn"
`)
	t.Setenv(EnvMinIdentity, "97.5")
	t.Setenv(EnvLogLevel, "error")
	t.Setenv(EnvRetryAttempts, "1")

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, 97.5, *cfg.Cutoffs.MinIdentity)
	assert.Equal(t, "error", cfg.Log.Level)
	assert.Equal(t, 1, cfg.Retry.MaxAttempts)
}

func TestLoad_ConfigEnvVar(t *testing.T) {
	dir := t.TempDir()
	path := writeFile(t, dir, "custom.toml", "[cutoffs]\nmin_evalue_ratio = 10\n")
	t.Setenv(EnvTaxassignConfig, path)

	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, 10.0, *cfg.Cutoffs.MinEvalueRatio)
}

func TestLoad_MissingDefaultFileIsFine(t *testing.T) {
	t.Chdir(t.TempDir())

	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, 90.0, *cfg.Cutoffs.MinIdentity)
}

func TestLoad_Errors(t *testing.T) {
	tests := []struct {
		name    string
		content string
		env     map[string]string
		wantErr string
	}{
		{name: "malformed toml", content: "[cutoffs\n", wantErr: "parse config"},
		{name: "negative cutoff", content: "[cutoffs]\nmin_identity = -1\n", wantErr: "cutoffs"},
		{name: "unknown driver", content: "[database]\ndriver = \"mysql\"\n", wantErr: "unsupported driver"},
		{name: "pgx without dsn", content: "[database]\ndriver = \"pgx\"\n", wantErr: "dsn is required"},
		{name: "bad ttl", content: "[cache]\nttl = \"soon\"\n", wantErr: "invalid ttl"},
		{name: "bad wait", content: "[retry]\ninitial_wait = \"x\"\n", wantErr: "initial_wait"},
		{name: "zero attempts", content: "[retry]\nmax_attempts = -2\n", wantErr: "max_attempts"},
		{name: "bad level", content: "[log]\nlevel = \"loud\"\n", wantErr: "invalid log level"},
		{name: "bad format", content: "[log]\nformat = \"xml\"\n", wantErr: "unsupported format"},
		{name: "bad env number", env: map[string]string{EnvMinCoverage: "most"}, wantErr: EnvMinCoverage},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			for k, v := range tt.env {
				t.Setenv(k, v)
			}
			path := writeFile(t, t.TempDir(), "taxassign.toml", tt.content)

			_, err := Load(path)
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestLoad_MissingExplicitFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nope.toml"))
	assert.Error(t, err)
}

func TestEncode(t *testing.T) {
	cfg, err := Default()
	require.NoError(t, err)

	data, err := cfg.Encode()
	require.NoError(t, err)

	var back Config
	require.NoError(t, toml.Unmarshal(data, &back))
	assert.Equal(t, *cfg.Cutoffs.MinIdentity, *back.Cutoffs.MinIdentity)
	assert.Equal(t, cfg.Retry, back.Retry)
	assert.Contains(t, string(data), "[cutoffs]")
}

func TestLogConfig_Logger(t *testing.T) {
	var buf bytes.Buffer
	lc := LogConfig{Level: "warn", Format: "json"}
	logger := lc.Logger(&buf)

	logger.Info("hidden")
	logger.Warn("shown", "k", 1)

	out := buf.String()
	assert.NotContains(t, out, "hidden")
	assert.True(t, strings.HasPrefix(out, "{"), "json handler")
	assert.Contains(t, out, `"msg":"shown"`)
}

func TestParseLevel(t *testing.T) {
	l, err := ParseLevel("debug")
	require.NoError(t, err)
	assert.Equal(t, slog.LevelDebug, l)

	_, err = ParseLevel("verbose")
	assert.Error(t, err)
}
