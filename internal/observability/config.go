package observability

import (
	"strings"

	"github.com/smallbiznis/pgbilling/internal/config"
	"github.com/smallbiznis/pgbilling/internal/observability/logger"
	"github.com/smallbiznis/pgbilling/internal/observability/metrics"
	"github.com/smallbiznis/pgbilling/internal/observability/tracing"
)

const defaultServiceName = "pgbilling"

// Config is the resolved observability setup shared by the logger, the
// tracer provider, the OTLP meter provider and the gin middleware.
type Config struct {
	ServiceName string
	Environment string
	Version     string

	LogLevel  string
	LogFormat string

	OtelEnabled          bool
	OtelExporterEndpoint string
	OtelExporterProtocol string
	OtelSamplingRatio    float64
}

func LoadConfig(cfg config.Config) Config {
	serviceName := strings.TrimSpace(cfg.AppName)
	if serviceName == "" {
		serviceName = defaultServiceName
	}

	obs := cfg.Observability
	ratio := obs.SamplingRatio
	if ratio < 0 || ratio > 1 {
		ratio = 1
	}
	protocol := obs.OTLPProtocol
	if protocol != "http" {
		protocol = "grpc"
	}

	return Config{
		ServiceName:          serviceName,
		Environment:          strings.TrimSpace(cfg.Environment),
		Version:              strings.TrimSpace(cfg.AppVersion),
		LogLevel:             obs.LogLevel,
		LogFormat:            obs.LogFormat,
		OtelEnabled:          obs.OtelEnabled,
		OtelExporterEndpoint: obs.OTLPEndpoint,
		OtelExporterProtocol: protocol,
		OtelSamplingRatio:    ratio,
	}
}

// Debug enables verbose request logs and stack traces outside production.
func (c Config) Debug() bool {
	if c.LogLevel == "debug" {
		return true
	}
	switch strings.ToLower(c.Environment) {
	case "dev", "development", "local", "test":
		return true
	}
	return false
}

func (c Config) Logger() logger.Config {
	return logger.Config{
		ServiceName:         c.ServiceName,
		Environment:         c.Environment,
		Version:             c.Version,
		Level:               c.LogLevel,
		Format:              c.LogFormat,
		IncludeCaller:       true,
		IncludeStackOnError: c.Debug(),
	}
}

func (c Config) Tracing() tracing.Config {
	return tracing.Config{
		Enabled:          c.OtelEnabled,
		ServiceName:      c.ServiceName,
		ServiceVersion:   c.Version,
		Environment:      c.Environment,
		ExporterEndpoint: c.OtelExporterEndpoint,
		ExporterProtocol: c.OtelExporterProtocol,
		SamplingRatio:    c.OtelSamplingRatio,
	}
}

func (c Config) Metrics() metrics.Config {
	return metrics.Config{
		Enabled:          c.OtelEnabled,
		ExporterEndpoint: c.OtelExporterEndpoint,
		ExporterProtocol: c.OtelExporterProtocol,
		ServiceName:      c.ServiceName,
		Environment:      c.Environment,
	}
}
