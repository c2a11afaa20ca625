package config_test

import (
	"log/slog"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/inaiurai/settlement/internal/config"
)

var envKeys = []string{
	"SETTLEMENT_CONFIG", "PORT", "LOG_LEVEL", "SETTLEMENT_STORE", "DATABASE_URL", "JWT_SECRET",
	"SETTLEMENT_OWNER", "SETTLEMENT_OWNER_PASSWORD", "TRACE_EXPORTER", "CORS_ALLOWED_ORIGINS",
	"RATE_LIMIT_RPS", "RATE_LIMIT_BURST", "RIVER_MAX_WORKERS", "TRACE_SAMPLE_RATIO",
}

func clearEnv(t *testing.T) {
	t.Helper()
	for _, k := range envKeys {
		t.Setenv(k, "")
	}
}

func TestLoad_Defaults(t *testing.T) {
	clearEnv(t)

	cfg, err := config.Load()
	require.NoError(t, err)

	assert.Equal(t, "8080", cfg.Port)
	assert.Equal(t, config.StoreMemory, cfg.Store)
	assert.True(t, cfg.UsesDefaultSecret())
	assert.Equal(t, slog.LevelInfo, cfg.SlogLevel())
	owner, err := cfg.OwnerAddress()
	require.NoError(t, err)
	assert.False(t, owner.IsZero())
}

func TestLoad_FileThenEnv(t *testing.T) {
	clearEnv(t)
	path := filepath.Join(t.TempDir(), "settlement.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
port: "9000"
store: postgres
database_url: postgres://file/db
log_level: debug
cors_origins: ["https://app.example"]
rate_limit:
  per_second: 5
  burst: 10
tracing:
  exporter: stdout
`), 0o600))
	t.Setenv("SETTLEMENT_CONFIG", path)
	t.Setenv("DATABASE_URL", "postgres://env/db")
	t.Setenv("RATE_LIMIT_BURST", "3")

	cfg, err := config.Load()
	require.NoError(t, err)

	assert.Equal(t, "9000", cfg.Port)
	assert.Equal(t, config.StorePostgres, cfg.Store)
	assert.Equal(t, "postgres://env/db", cfg.DatabaseURL)
	assert.Equal(t, []string{"https://app.example"}, cfg.CORSOrigins)
	assert.Equal(t, 5.0, cfg.RateLimit.PerSecond)
	assert.Equal(t, 3, cfg.RateLimit.Burst)
	assert.Equal(t, "stdout", cfg.Tracing.Exporter)
	assert.Equal(t, slog.LevelDebug, cfg.SlogLevel())
}

func TestLoad_Rejects(t *testing.T) {
	cases := map[string]map[string]string{
		"unknown store":    {"SETTLEMENT_STORE": "sqlite"},
		"bad owner":        {"SETTLEMENT_OWNER": "0x1234"},
		"zero owner":       {"SETTLEMENT_OWNER": "0x0000000000000000000000000000000000000000"},
		"bad rate":         {"RATE_LIMIT_RPS": "fast"},
		"missing file":     {"SETTLEMENT_CONFIG": "/nonexistent/settlement.yaml"},
		"negative burst":   {"RATE_LIMIT_BURST": "-1"},
		"bad worker count": {"RIVER_MAX_WORKERS": "many"},
	}
	for name, env := range cases {
		t.Run(name, func(t *testing.T) {
			clearEnv(t)
			for k, v := range env {
				t.Setenv(k, v)
			}
			_, err := config.Load()
			assert.Error(t, err)
		})
	}
}

func TestLoad_CORSList(t *testing.T) {
	clearEnv(t)
	t.Setenv("CORS_ALLOWED_ORIGINS", "https://a.example, ,https://b.example")

	cfg, err := config.Load()
	require.NoError(t, err)
	assert.Equal(t, []string{"https://a.example", "https://b.example"}, cfg.CORSOrigins)
}
