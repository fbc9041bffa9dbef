package config

import (
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	chdirTemp(t)

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, EnvDevelopment, cfg.Env)
	assert.Equal(t, 8080, cfg.Port)
	assert.Equal(t, "/api/v1", cfg.APIPrefix)
	assert.True(t, cfg.Grading.CacheEnabled)
	assert.Equal(t, 5*time.Minute, cfg.Grading.CacheTTL)
	assert.True(t, cfg.Exports.Enabled)
	assert.Equal(t, "./exports", cfg.Exports.StorageDir)
	assert.Equal(t, 1, cfg.Exports.WorkerConcurrency)
	assert.Equal(t, 3, cfg.Exports.WorkerRetries)
}

func TestLoadFromEnvironment(t *testing.T) {
	chdirTemp(t)
	t.Setenv("PORT", "9090")
	t.Setenv("GRADING_CACHE_ENABLED", "false")
	t.Setenv("GRADING_CACHE_TTL", "90s")
	t.Setenv("EXPORTS_WORKER_CONCURRENCY", "0")
	t.Setenv("EXPORTS_SIGNED_URL_TTL", "not-a-duration")
	t.Setenv("ALLOWED_ORIGINS", " http://a.test , ,http://b.test")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, 9090, cfg.Port)
	assert.False(t, cfg.Grading.CacheEnabled)
	assert.Equal(t, 90*time.Second, cfg.Grading.CacheTTL)
	assert.Equal(t, 1, cfg.Exports.WorkerConcurrency)
	assert.Equal(t, 24*time.Hour, cfg.Exports.SignedURLTTL)
	assert.Equal(t, []string{"http://a.test", "http://b.test"}, cfg.CORS.AllowedOrigins)
}

func chdirTemp(t *testing.T) {
	t.Helper()
	wd, err := os.Getwd()
	require.NoError(t, err)
	require.NoError(t, os.Chdir(t.TempDir()))
	t.Cleanup(func() { _ = os.Chdir(wd) })
}

func TestConnectionStrings(t *testing.T) {
	db := DatabaseConfig{Host: "db", Port: 5432, User: "u", Password: "p", Name: "grades", SSLMode: "disable"}
	assert.Equal(t, "host=db port=5432 user=u password=p dbname=grades sslmode=disable", db.DSN())

	redis := RedisConfig{Host: "cache", Port: 6380}
	assert.Equal(t, "cache:6380", redis.Addr())
}
