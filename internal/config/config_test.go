package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testSecret = "0123456789abcdef0123456789abcdef"

func TestLoadConfig_Defaults(t *testing.T) {
	t.Setenv("JWT_SECRET", testSecret)

	cfg, err := LoadConfig()
	require.NoError(t, err)

	assert.Equal(t, "8000", cfg.Port)
	assert.Equal(t, BackendPostgres, cfg.Store)
	assert.Equal(t, BackendRedis, cfg.Broker)
	assert.Equal(t, 24*time.Hour, cfg.JWTTTL)
	assert.Equal(t, 30*time.Second, cfg.WebSocket.PingInterval)
	assert.Equal(t, 60*time.Second, cfg.WebSocket.PongWait)
	assert.Equal(t, "herdstream", cfg.Minio.Bucket)
}

func TestLoadConfig_Overrides(t *testing.T) {
	t.Setenv("JWT_SECRET", testSecret)
	t.Setenv("PORT", "9090")
	t.Setenv("STORE", "memory")
	t.Setenv("BROKER", "memory")
	t.Setenv("WS_CONN_BURST", "3")

	cfg, err := LoadConfig()
	require.NoError(t, err)

	assert.Equal(t, "9090", cfg.Port)
	assert.Equal(t, BackendMemory, cfg.Store)
	assert.Equal(t, BackendMemory, cfg.Broker)
	assert.Equal(t, 3, cfg.WebSocket.ConnBurst)
}

func TestLoadConfig_RejectsShortSecret(t *testing.T) {
	t.Setenv("JWT_SECRET", "short")

	_, err := LoadConfig()
	assert.ErrorContains(t, err, "JWT_SECRET")
}

func TestLoadConfig_RejectsUnknownBackend(t *testing.T) {
	t.Setenv("JWT_SECRET", testSecret)
	t.Setenv("STORE", "sqlite")

	_, err := LoadConfig()
	assert.ErrorContains(t, err, "STORE")
}

func TestValidate_PingMustBeShorterThanPongWait(t *testing.T) {
	cfg := &Config{
		JWTSecret: testSecret,
		Store:     BackendMemory,
		Broker:    BackendMemory,
		WebSocket: WebSocketConfig{PingInterval: time.Minute, PongWait: time.Second},
	}
	assert.Error(t, cfg.Validate())
}
