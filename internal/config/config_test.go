package config_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"agentlinker/internal/config"
)

func TestGetConfigDefaults(t *testing.T) {
	t.Setenv("AGENTLINKER_ENV", config.Test)
	config.Reset()
	t.Cleanup(config.Reset)

	cfg := config.GetConfig()

	assert.Equal(t, "agentlinker", cfg.AppName)
	assert.True(t, cfg.IsTest())
	assert.False(t, cfg.IsProduction())
	assert.Equal(t, 365, cfg.AnalyticsMaxDays)
	assert.Equal(t, 7*24*time.Hour, cfg.GetJWTTTL())
	assert.Equal(t, 1, cfg.GetMaxOpenConns())
	assert.Equal(t, "storage/agentlinker-test.db", cfg.DatabaseDSN())
}

func TestGetConfigEnvironmentOverrides(t *testing.T) {
	t.Setenv("AGENTLINKER_ENV", config.Test)
	t.Setenv("AGENTLINKER_ANALYTICS_MAX_DAYS", "90")
	t.Setenv("AGENTLINKER_DB_MAX_OPEN_CONNS", "4")
	t.Setenv("AGENTLINKER_WEBHOOK_SECRET", "whsec")
	config.Reset()
	t.Cleanup(config.Reset)

	cfg := config.GetConfig()

	assert.Equal(t, 90, cfg.AnalyticsMaxDays)
	assert.Equal(t, 4, cfg.GetMaxOpenConns())
	assert.Equal(t, "whsec", cfg.WebhookSecret)
}
