package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestLoad_Defaults(t *testing.T) {
	for _, key := range []string{
		"PORT", "SYNC_DAYS_WITHIN", "SYNC_MAX_PAGES", "SYNC_POLL_INTERVAL",
		"SYNC_POLL_MAX_ATTEMPTS", "SYNC_RESYNC_INTERVAL", "REMOTE_TIMEOUT",
		"EMBEDDING_PROVIDER", "NYLAS_API_BASE_URL",
	} {
		t.Setenv(key, "")
	}

	cfg := Load()

	assert.Equal(t, "8080", cfg.Port)
	assert.Equal(t, 3, cfg.SyncDaysWithin)
	assert.Equal(t, 100, cfg.SyncMaxPages)
	assert.Equal(t, time.Second, cfg.SyncPollInterval)
	assert.Equal(t, 60, cfg.SyncPollMaxAttempts)
	assert.Equal(t, 5*time.Minute, cfg.SyncResyncInterval)
	assert.Equal(t, 30*time.Second, cfg.RemoteTimeout)
	assert.Equal(t, "auto", cfg.EmbeddingProvider)
	assert.Equal(t, "https://api.eu.nylas.com/v3", cfg.NylasAPIBaseURL)
}

func TestLoad_Overrides(t *testing.T) {
	t.Setenv("PORT", "9090")
	t.Setenv("SYNC_MAX_PAGES", "7")
	t.Setenv("SYNC_POLL_INTERVAL", "250ms")
	t.Setenv("EMBEDDING_PROVIDER", "ollama")

	cfg := Load()

	assert.Equal(t, "9090", cfg.Port)
	assert.Equal(t, 7, cfg.SyncMaxPages)
	assert.Equal(t, 250*time.Millisecond, cfg.SyncPollInterval)
	assert.Equal(t, "ollama", cfg.EmbeddingProvider)
}

func TestLoad_InvalidValuesFallBack(t *testing.T) {
	t.Setenv("SYNC_MAX_PAGES", "not-a-number")
	t.Setenv("SYNC_POLL_INTERVAL", "soon")

	cfg := Load()

	assert.Equal(t, 100, cfg.SyncMaxPages)
	assert.Equal(t, time.Second, cfg.SyncPollInterval)
}
