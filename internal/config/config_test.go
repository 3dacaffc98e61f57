package config

import (
	"testing"
	"time"

	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
)

func TestFromViperDefaults(t *testing.T) {
	v := viper.New()
	SetDefaults(v)

	cfg := FromViper(v)

	assert.Equal(t, 365, cfg.Forecast.LookbackDays)
	assert.Equal(t, 30, cfg.Forecast.HorizonDays)
	assert.Equal(t, 365, cfg.Forecast.MaxHorizonDays)
	assert.True(t, cfg.Forecast.AllowML)
	assert.Equal(t, 10*time.Second, cfg.Forecast.ModelTimeout)
	assert.InDelta(t, 0.95, cfg.Policy.ServiceLevel, 1e-9)
	assert.Equal(t, 7, cfg.Policy.ReviewPeriodDays)
	assert.Equal(t, 0, cfg.Policy.MinOrderQty)
	assert.False(t, cfg.Cache.Enabled)
	assert.Equal(t, 900, cfg.Cache.ForecastTTLSeconds)
	assert.Equal(t, "none", cfg.Tracing.Exporter)
	assert.Greater(t, cfg.Pipeline.Workers, 0)
}

func TestFromViperEnvOverrides(t *testing.T) {
	t.Setenv("FORECAST_ALLOW_ML", "false")
	t.Setenv("FORECAST_HORIZON_DAYS", "14")
	t.Setenv("POLICY_SERVICE_LEVEL", "0.9")
	t.Setenv("CACHE_ENABLED", "true")
	t.Setenv("REDIS_URL", "redis://localhost:6380/2")

	v := viper.New()
	SetDefaults(v)
	v.AutomaticEnv()

	cfg := FromViper(v)

	assert.False(t, cfg.Forecast.AllowML)
	assert.Equal(t, 14, cfg.Forecast.HorizonDays)
	assert.InDelta(t, 0.9, cfg.Policy.ServiceLevel, 1e-9)
	assert.True(t, cfg.Cache.Enabled)
	assert.Equal(t, "redis://localhost:6380/2", cfg.Cache.RedisURL)
}
