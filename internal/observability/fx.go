package observability

import (
	"github.com/smallbiznis/pgbilling/internal/observability/logger"
	"github.com/smallbiznis/pgbilling/internal/observability/metrics"
	"github.com/smallbiznis/pgbilling/internal/observability/tracing"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

// Module wires logging, tracing and the entitlement/pricing instruments.
var Module = fx.Module("observability",
	fx.Provide(
		LoadConfig,
		Config.Logger,
		Config.Tracing,
		Config.Metrics,
		logger.New,
		tracing.NewProvider,
		metrics.NewProvider,
		metrics.New,
		metrics.DefaultRegisterer,
		metrics.NewHTTPMetrics,
	),
	fx.Invoke(announce),
)

func announce(cfg Config, _ *sdktrace.TracerProvider, log *zap.Logger) {
	log.Info("observability configured",
		zap.String("service", cfg.ServiceName),
		zap.String("environment", cfg.Environment),
		zap.Bool("otel_enabled", cfg.OtelEnabled),
		zap.String("otlp_protocol", cfg.OtelExporterProtocol),
		zap.Float64("sampling_ratio", cfg.OtelSamplingRatio),
	)
}
