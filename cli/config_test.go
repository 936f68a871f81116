package main

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	return path
}

func TestLoadConfig(t *testing.T) {
	path := writeConfig(t, `
adminutils:
  port: ":9000"
  db_path: /data/admin.db
  dashboard_columns: 3
  is_debug: true
  log_sampling_tick_ms: 250
other_service:
  port: ":1"
`)
	cfg, err := loadConfig(path)
	require.NoError(t, err)
	assert.Equal(t, ":9000", cfg.Port)
	assert.Equal(t, "/data/admin.db", cfg.DatabasePath)
	assert.Equal(t, 3, cfg.DashboardColumns)
	assert.True(t, cfg.IsDebug)
	assert.Equal(t, 250, cfg.LogSamplingTickMs)
	assert.Equal(t, "/admin", cfg.AdminPrefix)
	assert.Equal(t, 180, cfg.TokenTTLMinutes)
}

func TestLoadConfig_EnvOverrides(t *testing.T) {
	path := writeConfig(t, "adminutils:\n  port: \":9000\"\n  redis_addr: cache:6379\n")
	t.Setenv("ADMINUTILS_PORT", ":9100")
	t.Setenv("ADMINUTILS_REDIS_DB", "2")
	t.Setenv("ADMINUTILS_ADMIN_PREFIX", "/backoffice")

	cfg, err := loadConfig(path)
	require.NoError(t, err)
	assert.Equal(t, ":9100", cfg.Port)
	assert.Equal(t, "cache:6379", cfg.RedisAddr)
	assert.Equal(t, 2, cfg.RedisDB)
	assert.Equal(t, "/backoffice", cfg.AdminPrefix)
}

func TestLoadConfig_MissingFile(t *testing.T) {
	cfg, err := loadConfig(filepath.Join(t.TempDir(), "nope.yaml"))
	require.NoError(t, err)
	assert.Equal(t, ":8080", cfg.Port)
	assert.Equal(t, 2, cfg.DashboardColumns)
}

func TestLoadConfig_Invalid(t *testing.T) {
	tests := []struct {
		name string
		body string
		env  map[string]string
	}{
		{"columns out of range", "adminutils:\n  dashboard_columns: 9\n", nil},
		{"prefix without slash", "adminutils:\n  admin_prefix: admin\n", nil},
		{"bootstrap user without password", "adminutils:\n  bootstrap_user: root\n", nil},
		{"bad env int", "adminutils: {}\n", map[string]string{"ADMINUTILS_REDIS_DB": "two"}},
		{"broken yaml", "adminutils: [\n", nil},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			for k, v := range tt.env {
				t.Setenv(k, v)
			}
			_, err := loadConfig(writeConfig(t, tt.body))
			assert.Error(t, err)
		})
	}
}

func TestMergeConfig(t *testing.T) {
	base := map[string]interface{}{
		"adminutils": map[string]interface{}{"port": ":9000", "jwt_secret": "", "redis_addr": "cache:6379"},
	}
	secrets := map[string]interface{}{
		"adminutils": map[string]interface{}{"jwt_secret": "s3cret", "redis_addr": ""},
	}
	merged := mergeConfig(base, secrets).(map[string]interface{})
	assert.Equal(t, map[string]interface{}{
		"port":       ":9000",
		"jwt_secret": "s3cret",
		"redis_addr": "cache:6379",
	}, getMap(merged, "adminutils"))
	assert.Nil(t, getMap(merged, "missing"))
}

func TestConfigureLogger(t *testing.T) {
	sampling := configureLogger(Config{IsDebug: true, LogSamplingAfterMs: 100})
	assert.Equal(t, defaultLogSamplingTick, sampling.Tick)
	assert.Equal(t, int64(100), sampling.After.Milliseconds())
	assert.True(t, logrusLogger.ReportCaller)

	configureLogger(Config{})
	assert.False(t, logrusLogger.ReportCaller)
}
