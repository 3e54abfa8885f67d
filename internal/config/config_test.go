package config

import (
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_WithDefaults(t *testing.T) {
	// Clear any existing environment variables that might interfere
	os.Clearenv()

	config, err := Load()
	require.NoError(t, err)
	require.NotNil(t, config)

	assert.Equal(t, "development", config.Environment)
	assert.Equal(t, "info", config.LogLevel)
	assert.Equal(t, 8080, config.Server.Port)
	assert.Equal(t, "localhost", config.Database.Host)
	assert.Equal(t, 5432, config.Database.Port)
	assert.Equal(t, "gridquote", config.Database.DBName)
	assert.Equal(t, "localhost", config.Redis.Host)
	assert.Equal(t, 6379, config.Redis.Port)
	assert.Equal(t, 90, config.Pricing.WindowDays)
	assert.Equal(t, "3m", config.Pricing.EstimateCacheTTL)
	assert.Empty(t, config.Admin.APIKey)
	assert.False(t, config.Telemetry.Enabled)
	assert.Equal(t, "gridquote-pricing", config.Telemetry.ServiceName)
}

func TestLoad_WithEnvironmentVariables(t *testing.T) {
	os.Clearenv()
	t.Setenv("ENVIRONMENT", "Production")
	t.Setenv("ADMIN_API_KEY", "operator-secret")

	config, err := Load()
	require.NoError(t, err)

	// Environment is normalized to lowercase.
	assert.Equal(t, "production", config.Environment)
	assert.Equal(t, "operator-secret", config.Admin.APIKey)
}

func TestEstimateCacheTTL(t *testing.T) {
	tests := []struct {
		name string
		ttl  string
		want time.Duration
	}{
		{"configured duration", "45s", 45 * time.Second},
		{"empty falls back to default", "", 3 * time.Minute},
		{"unparseable falls back to default", "soon", 3 * time.Minute},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			config := &Config{Pricing: PricingConfig{EstimateCacheTTL: tt.ttl}}
			assert.Equal(t, tt.want, config.EstimateCacheTTL())
		})
	}
}

func TestPricingConfig_Struct(t *testing.T) {
	config := PricingConfig{
		WindowDays:       30,
		EstimateCacheTTL: "1m",
	}

	assert.Equal(t, 30, config.WindowDays)
	assert.Equal(t, "1m", config.EstimateCacheTTL)
}

func TestTelemetryConfig_Struct(t *testing.T) {
	config := TelemetryConfig{
		Enabled:      true,
		OTLPEndpoint: "otel-collector:4318",
		ServiceName:  "gridquote-pricing",
		SampleRatio:  0.25,
	}

	assert.True(t, config.Enabled)
	assert.Equal(t, "otel-collector:4318", config.OTLPEndpoint)
	assert.Equal(t, 0.25, config.SampleRatio)
}
