package observability

import (
	"testing"

	"github.com/smallbiznis/pgbilling/internal/config"
	"github.com/stretchr/testify/assert"
)

func TestLoadConfigNormalizesExporterSettings(t *testing.T) {
	cfg := LoadConfig(config.Config{
		Environment: "production",
		AppVersion:  "1.2.0",
		Observability: config.ObservabilityConfig{
			LogLevel:      "info",
			OtelEnabled:   true,
			OTLPProtocol:  "udp",
			SamplingRatio: 3,
		},
	})

	assert.Equal(t, "pgbilling", cfg.ServiceName)
	assert.Equal(t, "grpc", cfg.OtelExporterProtocol)
	assert.Equal(t, 1.0, cfg.OtelSamplingRatio)
	assert.False(t, cfg.Debug())
	assert.False(t, cfg.Logger().IncludeStackOnError)
	assert.True(t, cfg.Tracing().Enabled)
	assert.Equal(t, "1.2.0", cfg.Tracing().ServiceVersion)
}

func TestDebugInDevelopment(t *testing.T) {
	cfg := LoadConfig(config.Config{Environment: "local", Observability: config.ObservabilityConfig{LogLevel: "warn"}})
	assert.True(t, cfg.Debug())

	cfg = LoadConfig(config.Config{Environment: "production", Observability: config.ObservabilityConfig{LogLevel: "debug"}})
	assert.True(t, cfg.Debug())
}
