package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	t.Setenv("APP_ENV", "dev")
	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "8081", cfg.HTTPPort)
	assert.Equal(t, 800*time.Millisecond, cfg.SearchDebounce)
	assert.Equal(t, 5*time.Second, cfg.StaleTime)
	assert.Equal(t, "redis", cfg.CacheBackend)
	assert.False(t, cfg.Cloudinary.Enabled())
	assert.Equal(t, []string{"http://localhost:3000"}, cfg.CORSOrigins)
}

func TestCORSOriginsList(t *testing.T) {
	t.Setenv("CORS_ORIGINS", "https://console.school.example,http://localhost:5173")
	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, []string{"https://console.school.example", "http://localhost:5173"}, cfg.CORSOrigins)
}

func TestBackendURL(t *testing.T) {
	tests := []struct {
		name string
		app  App
		want string
	}{
		{name: "explicit", app: App{Env: "prod", APIBaseURL: "https://school.example/api"}, want: "https://school.example/api"},
		{name: "dev proxy", app: App{Env: "dev"}, want: "http://localhost:3000/api"},
		{name: "production", app: App{Env: "production"}, want: "http://localhost:8000/api"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.app.BackendURL())
		})
	}
}

func TestLoadRejectsInvalidValues(t *testing.T) {
	tests := []struct {
		name string
		key  string
		val  string
	}{
		{name: "cache backend", key: "CACHE_BACKEND", val: "memcached"},
		{name: "queue backend", key: "QUEUE_BACKEND", val: "kafka"},
		{name: "timezone", key: "SCHOOL_TIMEZONE", val: "Mars/Olympus"},
		{name: "debounce", key: "SEARCH_DEBOUNCE", val: "0s"},
		{name: "duration syntax", key: "CACHE_STALE_TIME", val: "soon"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Setenv(tt.key, tt.val)
			_, err := Load()
			assert.Error(t, err)
		})
	}
}

func TestProductionNeedsSigningKey(t *testing.T) {
	t.Setenv("APP_ENV", "production")
	t.Setenv("JWT_SIGNING_KEY", "")

	_, err := Load()
	assert.ErrorContains(t, err, "JWT_SIGNING_KEY")

	t.Setenv("JWT_SIGNING_KEY", devSigningKey)
	_, err = Load()
	assert.Error(t, err)

	t.Setenv("JWT_SIGNING_KEY", "a-real-production-secret")
	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, "a-real-production-secret", cfg.JWTSigningKey)
}
