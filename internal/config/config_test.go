package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "missing.env"))
	require.NoError(t, err)

	assert.Equal(t, "local", cfg.StorageBackend)
	assert.Equal(t, 300*time.Second, cfg.FetchTimeout)
	assert.Equal(t, int64(1<<30), cfg.MaxUploadSize)
	assert.Equal(t, "memory", cfg.TaskQueue)
	assert.Equal(t, "auto", cfg.R2.Region)
	assert.Equal(t, "admin", cfg.Admin.Username)
}

func TestLoadEnvOverrides(t *testing.T) {
	t.Setenv("PORT", "9090")
	t.Setenv("TASK_WORKERS", "8")
	t.Setenv("FETCH_TIMEOUT", "2m")
	t.Setenv("CORS_ORIGINS", "https://a.example, https://b.example")

	cfg, err := Load(filepath.Join(t.TempDir(), "missing.env"))
	require.NoError(t, err)

	assert.Equal(t, "9090", cfg.Port)
	assert.Equal(t, 8, cfg.TaskWorkers)
	assert.Equal(t, 2*time.Minute, cfg.FetchTimeout)
	assert.Equal(t, []string{"https://a.example", "https://b.example"}, cfg.CorsConfig().AllowedOrigins)
}

func TestLoadEnvFile(t *testing.T) {
	file := filepath.Join(t.TempDir(), "test.env")
	require.NoError(t, os.WriteFile(file, []byte("STORAGE_PATH=/srv/softvault\n"), 0o600))
	t.Cleanup(func() { os.Unsetenv("STORAGE_PATH") })

	cfg, err := Load(file)
	require.NoError(t, err)
	assert.Equal(t, "/srv/softvault", cfg.StoragePath)
}

func TestValidate(t *testing.T) {
	t.Setenv("STORAGE_BACKEND", "s3")
	_, err := Load(filepath.Join(t.TempDir(), "missing.env"))
	assert.ErrorContains(t, err, "R2_BUCKET_NAME")

	t.Setenv("STORAGE_BACKEND", "local")
	t.Setenv("TASK_QUEUE", "kafka")
	_, err = Load(filepath.Join(t.TempDir(), "missing.env"))
	assert.ErrorContains(t, err, "unknown task queue")
}

func TestValidateProductionSecrets(t *testing.T) {
	t.Setenv("ENV", "production")
	_, err := Load(filepath.Join(t.TempDir(), "missing.env"))
	assert.ErrorContains(t, err, "JWT_SECRET")

	t.Setenv("JWT_SECRET", "a-real-secret")
	_, err = Load(filepath.Join(t.TempDir(), "missing.env"))
	assert.ErrorContains(t, err, "FIRST_ADMIN_PASSWORD")

	t.Setenv("FIRST_ADMIN_PASSWORD", "s3cure-admin")
	cfg, err := Load(filepath.Join(t.TempDir(), "missing.env"))
	require.NoError(t, err)
	assert.True(t, cfg.IsProduction())
}
