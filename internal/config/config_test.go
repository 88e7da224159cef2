package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestFromEnv_Defaults(t *testing.T) {
	for _, k := range []string{"MODE", "HTTP_ADDR", "DB_DRIVER", "LOG_MODE", "LOCK_TTL", "CAT_THETA_MIN", "REDIS_ADDR"} {
		t.Setenv(k, "")
	}
	cfg := FromEnv()
	assert.Equal(t, ModeOffline, cfg.Mode)
	assert.Equal(t, ":8080", cfg.HTTPAddr)
	assert.Equal(t, "sqlite", cfg.DBDriver)
	assert.Equal(t, "", cfg.LogMode)
	assert.Equal(t, 10*time.Second, cfg.LockTTL)
	assert.Equal(t, -4.0, cfg.ThetaMin)
	assert.Empty(t, cfg.RedisAddr)
	assert.Equal(t, cfg.CORSOriginsOffline, cfg.CORSOrigins())
}

func TestFromEnv_Overrides(t *testing.T) {
	t.Setenv("MODE", "online")
	t.Setenv("LOCK_TTL", "3s")
	t.Setenv("CAT_DEGENERATE_STEP", "0.5")
	t.Setenv("CAT_MAX_ITERATIONS", "x")
	t.Setenv("CORS_ORIGINS_ONLINE", " https://a.example , ,https://b.example")
	t.Setenv("ENABLE_LOCAL_AUTH", "no")
	t.Setenv("LOG_MODE", "")

	cfg := FromEnv()
	assert.Equal(t, ModeOnline, cfg.Mode)
	assert.Equal(t, "prod", cfg.LogMode)
	assert.Equal(t, 3*time.Second, cfg.LockTTL)
	assert.Equal(t, 0.5, cfg.DegenerateStep)
	assert.Equal(t, 50, cfg.MaxIterations, "unparsable falls back")
	assert.False(t, cfg.EnableLocalAuth)
	assert.Equal(t, []string{"https://a.example", "https://b.example"}, cfg.CORSOrigins())
}
