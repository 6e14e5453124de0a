package config_test

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/agentoven/promptplane/internal/config"
	"github.com/agentoven/promptplane/pkg/models"
)

func writeYAML(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "promptplane.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))
	return path
}

func TestLoadFile(t *testing.T) {
	t.Run("Should fall back to defaults when the file is absent", func(t *testing.T) {
		cfg, err := config.LoadFile(filepath.Join(t.TempDir(), "missing.yaml"))
		require.NoError(t, err)
		assert.Equal(t, config.Default(), cfg)
	})

	t.Run("Should overlay the YAML file on defaults", func(t *testing.T) {
		path := writeYAML(t, `
server:
  port: 9090
cache:
  driver: redis
  redis_url: redis://localhost:6379/0
  ttl: 90s
retrieval:
  timeout: 250ms
`)
		cfg, err := config.LoadFile(path)
		require.NoError(t, err)
		assert.Equal(t, 9090, cfg.Server.Port)
		assert.Equal(t, "redis", cfg.Cache.Driver)
		assert.Equal(t, 90*time.Second, cfg.Cache.TTL)
		assert.Equal(t, 250*time.Millisecond, cfg.Retrieval.Timeout)
		assert.Equal(t, "memory", cfg.Store.Configs)
	})

	t.Run("Should let environment variables win over the file", func(t *testing.T) {
		path := writeYAML(t, "log:\n  level: debug\n")
		t.Setenv("PROMPTPLANE_LOG__LEVEL", "warn")
		t.Setenv("PROMPTPLANE_STORE__MAX_CONNECTIONS", "42")
		t.Setenv("PROMPTPLANE_COACH_API__RETRY_COUNT", "5")

		cfg, err := config.LoadFile(path)
		require.NoError(t, err)
		assert.Equal(t, "warn", cfg.Log.Level)
		assert.EqualValues(t, 42, cfg.Store.MaxConnections)
		assert.Equal(t, 5, cfg.CoachAPI.RetryCount)
	})

	t.Run("Should reject invalid drivers and missing driver settings", func(t *testing.T) {
		path := writeYAML(t, `
store:
  configs: postgres
cache:
  driver: memcached
`)
		_, err := config.LoadFile(path)
		var verr *models.ValidationError
		require.True(t, errors.As(err, &verr))
		fields := make([]string, 0, len(verr.Fields))
		for _, f := range verr.Fields {
			fields = append(fields, f.Field)
		}
		assert.Contains(t, fields, "Store.PostgresURL")
		assert.Contains(t, fields, "Cache.Driver")
	})

	t.Run("Should report unreadable YAML", func(t *testing.T) {
		path := writeYAML(t, "server: [unterminated\n")
		_, err := config.LoadFile(path)
		assert.Error(t, err)
	})
}
