package config

import (
	"os"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// unsetEnv clears keys for the duration of the test.
func unsetEnv(t *testing.T, keys ...string) {
	t.Helper()
	for _, k := range keys {
		t.Setenv(k, "")
		os.Unsetenv(k)
	}
}

func TestLoadDefaults(t *testing.T) {
	unsetEnv(t, "MESSAGE_DELETE_WINDOW", "REDIS_ADDR", "LOG_LEVEL")
	t.Setenv("STORE", "memory")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, "memory", cfg.Store)
	assert.Equal(t, 15*time.Minute, cfg.MessageDeleteWindow)
	assert.False(t, cfg.UsesRedis())
	assert.Equal(t, logrus.InfoLevel, cfg.Level())
}

func TestLoadOverrides(t *testing.T) {
	t.Setenv("STORE", "postgres")
	t.Setenv("MESSAGE_DELETE_WINDOW", "5m")
	t.Setenv("REDIS_ADDR", "localhost:6379")
	t.Setenv("LOG_LEVEL", "debug")
	t.Setenv("CORS_ALLOWED_ORIGINS", "https://a.example,https://b.example")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, 5*time.Minute, cfg.MessageDeleteWindow)
	assert.True(t, cfg.UsesRedis())
	assert.Equal(t, logrus.DebugLevel, cfg.Level())
	assert.Equal(t, []string{"https://a.example", "https://b.example"}, cfg.CORSAllowedOrigins)
}

func TestLoadRejectsUnknownStore(t *testing.T) {
	t.Setenv("STORE", "sqlite")
	_, err := Load()
	assert.ErrorContains(t, err, "STORE")
}
