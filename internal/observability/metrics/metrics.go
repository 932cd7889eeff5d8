package metrics

import (
	"context"
	"fmt"
	"strings"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/otlp/otlpmetric/otlpmetricgrpc"
	"go.opentelemetry.io/otel/exporters/otlp/otlpmetric/otlpmetrichttp"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/metric/noop"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

// Config configures the metrics provider.
type Config struct {
	Enabled          bool
	ExporterEndpoint string
	ExporterProtocol string
	ServiceName      string
	Environment      string
}

// Metrics exposes application-level instruments.
type Metrics struct {
	entitlementDecisions metric.Int64Counter
	pricingCalculations  metric.Int64Counter
	plansUnavailable     metric.Int64Counter
}

// NewProvider configures and registers the meter provider.
func NewProvider(lc fx.Lifecycle, cfg Config, log *zap.Logger) (metric.MeterProvider, error) {
	if !cfg.Enabled {
		provider := noop.NewMeterProvider()
		otel.SetMeterProvider(provider)
		return provider, nil
	}

	exporter, err := newExporter(cfg.ExporterProtocol, cfg.ExporterEndpoint)
	if err != nil {
		return nil, err
	}

	reader := sdkmetric.NewPeriodicReader(exporter, sdkmetric.WithInterval(10*time.Second))
	provider := sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader))
	otel.SetMeterProvider(provider)

	if lc != nil {
		lc.Append(fx.Hook{
			OnStop: func(ctx context.Context) error {
				log.Info("shutting down meter provider")
				return provider.Shutdown(ctx)
			},
		})
	}

	log.Info("metrics initialized",
		zap.String("endpoint", cfg.ExporterEndpoint),
		zap.String("protocol", cfg.ExporterProtocol),
	)
	return provider, nil
}

// New configures the domain metrics instruments.
func New(cfg Config, provider metric.MeterProvider) (*Metrics, error) {
	name := strings.TrimSpace(cfg.ServiceName)
	if name == "" {
		name = "pgbilling"
	}
	meter := provider.Meter(name)

	entitlementDecisions, err := meter.Int64Counter("pgbilling_entitlement_decisions_total")
	if err != nil {
		return nil, err
	}
	pricingCalculations, err := meter.Int64Counter("pgbilling_pricing_calculations_total")
	if err != nil {
		return nil, err
	}
	plansUnavailable, err := meter.Int64Counter("pgbilling_pricing_plans_unavailable_total")
	if err != nil {
		return nil, err
	}

	return &Metrics{
		entitlementDecisions: entitlementDecisions,
		pricingCalculations:  pricingCalculations,
		plansUnavailable:     plansUnavailable,
	}, nil
}

// NewNoop returns instruments backed by a no-op provider, for tests and CLI use.
func NewNoop() *Metrics {
	m, _ := New(Config{}, noop.NewMeterProvider())
	return m
}

// RecordEntitlementDecision counts allow/deny answers per check kind.
func (m *Metrics) RecordEntitlementDecision(ctx context.Context, check string, allowed bool) {
	if m == nil {
		return
	}
	decision := "deny"
	if allowed {
		decision = "allow"
	}
	attrs := FilterAttributes(
		attribute.String("check", strings.TrimSpace(check)),
		attribute.String("decision", decision),
	)
	m.entitlementDecisions.Add(ctx, 1, metric.WithAttributes(attrs...))
}

// RecordPricingCalculation counts pricing operations by kind and billing cycle.
func (m *Metrics) RecordPricingCalculation(ctx context.Context, operation, billingCycle string) {
	if m == nil {
		return
	}
	attrs := FilterAttributes(
		attribute.String("operation", strings.TrimSpace(operation)),
		attribute.String("billing_cycle", strings.TrimSpace(billingCycle)),
	)
	m.pricingCalculations.Add(ctx, 1, metric.WithAttributes(attrs...))
}

// RecordPlanUnavailable counts plans skipped by batch pricing operations.
func (m *Metrics) RecordPlanUnavailable(ctx context.Context, operation, reason string) {
	if m == nil {
		return
	}
	attrs := FilterAttributes(
		attribute.String("operation", strings.TrimSpace(operation)),
		attribute.String("reason", strings.TrimSpace(reason)),
	)
	m.plansUnavailable.Add(ctx, 1, metric.WithAttributes(attrs...))
}

func newExporter(protocol, endpoint string) (sdkmetric.Exporter, error) {
	protocol = strings.ToLower(strings.TrimSpace(protocol))
	switch protocol {
	case "http", "http/protobuf":
		opts := []otlpmetrichttp.Option{otlpmetrichttp.WithInsecure()}
		if endpoint != "" {
			opts = append(opts, otlpmetrichttp.WithEndpoint(endpoint))
		}
		return otlpmetrichttp.New(context.Background(), opts...)
	case "grpc", "grpc/protobuf", "":
		opts := []otlpmetricgrpc.Option{otlpmetricgrpc.WithInsecure()}
		if endpoint != "" {
			opts = append(opts, otlpmetricgrpc.WithEndpoint(endpoint))
		}
		return otlpmetricgrpc.New(context.Background(), opts...)
	default:
		return nil, fmt.Errorf("unsupported OTLP protocol %q", protocol)
	}
}

var allowedLabelKeys = map[attribute.Key]struct{}{
	"check":         {},
	"decision":      {},
	"operation":     {},
	"billing_cycle": {},
	"reason":        {},
	"plan_tier":     {},
}

// FilterAttributes strips disallowed labels to keep metrics low-cardinality.
func FilterAttributes(attrs ...attribute.KeyValue) []attribute.KeyValue {
	filtered := make([]attribute.KeyValue, 0, len(attrs))
	for _, attr := range attrs {
		if _, ok := allowedLabelKeys[attr.Key]; !ok {
			continue
		}
		filtered = append(filtered, attr)
	}
	return filtered
}
