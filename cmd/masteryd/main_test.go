package main

import (
	"bytes"
	"context"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/alem-hub/mastery-tracker/config"
	"github.com/alem-hub/mastery-tracker/internal/infrastructure/persistence/postgres"
	"github.com/alem-hub/mastery-tracker/pkg/logger"
)

func sqliteEnv(t *testing.T) {
	t.Helper()
	dir := t.TempDir()
	t.Setenv("MASTERY_ENV_FILE", filepath.Join(dir, ".env"))
	t.Setenv("MASTERY_CONFIG_FILE", "")
	t.Setenv("DATABASE_URL", "")
	t.Setenv("STORAGE_DRIVER", "sqlite")
	t.Setenv("SQLITE_PATH", filepath.Join(dir, "mastery.db"))
	t.Setenv("REDIS_ENABLED", "false")
	t.Setenv("HTTP_RATE_LIMIT_PER_MINUTE", "0")
}

func TestVersionCommand(t *testing.T) {
	var out bytes.Buffer
	cmd := newRootCmd()
	cmd.SetOut(&out)
	cmd.SetArgs([]string{"version"})

	require.NoError(t, cmd.Execute())
	assert.Equal(t, "masteryd dev\n", out.String())
}

func TestMigrate_RejectsSQLite(t *testing.T) {
	sqliteEnv(t)

	cmd := newRootCmd()
	cmd.SetOut(&bytes.Buffer{})
	cmd.SetErr(&bytes.Buffer{})
	cmd.SetArgs([]string{"migrate", "status"})

	assert.ErrorIs(t, cmd.Execute(), errNotPostgres)
}

func TestBuildApp_SQLite(t *testing.T) {
	sqliteEnv(t)
	cfg, err := loadConfig()
	require.NoError(t, err)

	a, err := buildApp(context.Background(), cfg, logger.Nop())
	require.NoError(t, err)
	t.Cleanup(a.close)

	h := a.server.Handler()

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/ready", nil))
	assert.Equal(t, http.StatusOK, rec.Code)

	req := httptest.NewRequest(http.MethodPost, "/api/v1/progress/assessments",
		strings.NewReader(`{"subject":"Math","topic":"Algebra","score":0.9}`))
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set(cfg.HTTP.UserIDHeader, "user-1")
	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	req = httptest.NewRequest(http.MethodGet, "/api/v1/progress/heatmap", nil)
	req.Header.Set(cfg.HTTP.UserIDHeader, "user-1")
	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"Algebra":"learning"`)
}

func TestBuildApp_RedisUnavailableFallsBack(t *testing.T) {
	sqliteEnv(t)
	t.Setenv("REDIS_ENABLED", "true")
	t.Setenv("REDIS_HOST", "127.0.0.1")
	t.Setenv("REDIS_PORT", "1")
	t.Setenv("REDIS_DIAL_TIMEOUT", "200ms")
	cfg, err := loadConfig()
	require.NoError(t, err)

	a, err := buildApp(context.Background(), cfg, logger.Nop())
	require.NoError(t, err)
	t.Cleanup(a.close)

	rec := httptest.NewRecorder()
	a.server.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.NotContains(t, rec.Body.String(), "redis")
}

func TestOpenStore_UnknownDriver(t *testing.T) {
	cfg := &config.Config{Storage: config.StorageConfig{Driver: "mongo"}}
	_, _, err := openStore(context.Background(), cfg, logger.Nop())
	assert.ErrorContains(t, err, `unknown storage driver "mongo"`)
}

func TestRedisConfig_KeepsDefaultsForZeroValues(t *testing.T) {
	rc := redisConfig(config.RedisConfig{Host: "cache", DB: 2, KeyPrefix: "p:"})
	assert.Equal(t, "cache:6379", rc.Addr())
	assert.Equal(t, 2, rc.DB)
	assert.Equal(t, "p:", rc.KeyPrefix)
	assert.Equal(t, 10, rc.PoolSize)
}

func TestPrintStatus(t *testing.T) {
	var out bytes.Buffer
	require.NoError(t, printStatus(&out, []postgres.Migration{
		{Version: 1, Name: "create_mastery_records", IsApplied: true, AppliedAt: time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)},
		{Version: 2, Name: "create_learning_goals"},
	}))

	lines := strings.Split(strings.TrimSpace(out.String()), "\n")
	require.Len(t, lines, 3)
	assert.Contains(t, lines[1], "2024-06-01 12:00:00")
	assert.True(t, strings.HasSuffix(lines[2], "no"))
}
