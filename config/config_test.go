package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/alem-hub/mastery-tracker/internal/domain/mastery"
)

// isolate points the optional files at a fresh directory so a developer's
// .env never leaks into a test.
func isolate(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	t.Setenv("MASTERY_ENV_FILE", filepath.Join(dir, ".env"))
	t.Setenv("MASTERY_CONFIG_FILE", "")
	t.Setenv("DATABASE_URL", "")
	t.Setenv("STORAGE_DRIVER", "")
	return dir
}

func write(t *testing.T, path, content string) {
	t.Helper()
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
}

func TestLoad_Defaults(t *testing.T) {
	isolate(t)

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, DriverSQLite, cfg.Storage.Driver)
	assert.Equal(t, mastery.DefaultPolicy(), cfg.Mastery)
	assert.Equal(t, mastery.DefaultWeights(), cfg.Ranking.Weights)
	assert.Equal(t, 100, cfg.Ranking.MaxLimit)
	assert.Equal(t, time.UTC, cfg.Analytics.Location)
	assert.Equal(t, "X-User-ID", cfg.HTTP.UserIDHeader)
	assert.False(t, cfg.Redis.Enabled)
	assert.True(t, cfg.IsDevelopment())
}

func TestLoad_DatabaseURLSelectsPostgres(t *testing.T) {
	isolate(t)
	t.Setenv("DATABASE_URL", "postgres://u:p@localhost:5432/mastery")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, DriverPostgres, cfg.Storage.Driver)
}

func TestLoad_DotEnvDoesNotOverrideEnvironment(t *testing.T) {
	dir := isolate(t)
	write(t, filepath.Join(dir, ".env"), "HTTP_PORT=9191\nANALYTICS_TIMEZONE=Asia/Almaty\n")
	t.Setenv("ANALYTICS_TIMEZONE", "Europe/Berlin")
	// t.Setenv restores HTTP_PORT after godotenv writes it.
	t.Setenv("HTTP_PORT", "")
	require.NoError(t, os.Unsetenv("HTTP_PORT"))

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, 9191, cfg.HTTP.Port)
	assert.Equal(t, "Europe/Berlin", cfg.Analytics.Location.String())
}

func TestLoad_TOMLOverlay(t *testing.T) {
	dir := isolate(t)
	path := filepath.Join(dir, "mastery.toml")
	write(t, path, `
[mastery]
assessment_weight = 0.4
decay_window = "240h"

[mastery.thresholds]
mastered = 0.9

[ranking]
max_limit = 50

[ranking.weights]
goal = 0.5
`)
	t.Setenv("MASTERY_CONFIG_FILE", path)

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, 0.4, cfg.Mastery.AssessmentWeight)
	assert.Equal(t, 240*time.Hour, cfg.Mastery.DecayWindow)
	assert.Equal(t, 0.9, cfg.Mastery.Thresholds.Mastered)
	assert.Equal(t, 0.5, cfg.Mastery.Thresholds.Practicing, "absent keys keep defaults")
	assert.Equal(t, 50, cfg.Ranking.MaxLimit)
	assert.Equal(t, mastery.Weights{Confidence: 0.5, Recency: 0.3, Goal: 0.5}, cfg.Ranking.Weights)
}

func TestLoad_TOMLMissingFileIsIgnored(t *testing.T) {
	dir := isolate(t)
	t.Setenv("MASTERY_CONFIG_FILE", filepath.Join(dir, "absent.toml"))

	_, err := Load()
	assert.NoError(t, err)
}

func TestLoad_TOMLUnknownKey(t *testing.T) {
	dir := isolate(t)
	path := filepath.Join(dir, "mastery.toml")
	write(t, path, "[mastery]\nema = 0.3\n")
	t.Setenv("MASTERY_CONFIG_FILE", path)

	_, err := Load()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "mastery.ema")
}

func TestValidate_AggregatesErrors(t *testing.T) {
	isolate(t)
	t.Setenv("STORAGE_DRIVER", "mongo")
	t.Setenv("MASTERY_THRESHOLD_PRACTICING", "0.1")
	t.Setenv("RANKING_WEIGHT_CONFIDENCE", "-1")
	t.Setenv("ANALYTICS_TIMEZONE", "Mars/Olympus")

	_, err := Load()
	require.Error(t, err)
	msg := err.Error()
	assert.Contains(t, msg, `unknown STORAGE_DRIVER "mongo"`)
	assert.Contains(t, msg, "thresholds must be strictly ascending")
	assert.Contains(t, msg, "ranking:")
	assert.Contains(t, msg, `unknown ANALYTICS_TIMEZONE "Mars/Olympus"`)
}

func TestValidate_HeatmapTTLBounded(t *testing.T) {
	isolate(t)
	t.Setenv("REDIS_ENABLED", "true")
	t.Setenv("REDIS_HEATMAP_TTL", "2h")

	_, err := Load()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "REDIS_HEATMAP_TTL must be in (0, 10m0s], got 2h0m0s")

	t.Setenv("REDIS_HEATMAP_TTL", "10m")
	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, MaxHeatmapTTL, cfg.Redis.HeatmapTTL)

	// Unused when the cache is off.
	t.Setenv("REDIS_ENABLED", "false")
	t.Setenv("REDIS_HEATMAP_TTL", "2h")
	_, err = Load()
	assert.NoError(t, err)
}

func TestGetEnvSlice(t *testing.T) {
	t.Setenv("ORIGINS", " https://a.example , ,https://b.example")
	assert.Equal(t, []string{"https://a.example", "https://b.example"}, getEnvSlice("ORIGINS", nil))
	t.Setenv("ORIGINS", " , ")
	assert.Equal(t, []string{"*"}, getEnvSlice("ORIGINS", []string{"*"}))
}
