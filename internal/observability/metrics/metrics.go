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
	verifications  metric.Int64Counter
	keysIssued     metric.Int64Counter
	creditsDebited metric.Int64Counter
	creditsGranted metric.Int64Counter
	tokensConsumed metric.Int64Counter
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
				if log != nil {
					log.Info("shutting down meter provider")
				}
				return provider.Shutdown(ctx)
			},
		})
	}

	return provider, nil
}

// New configures the domain metrics instruments.
func New(cfg Config, provider metric.MeterProvider) (*Metrics, error) {
	name := strings.TrimSpace(cfg.ServiceName)
	if name == "" {
		name = "keymaster"
	}
	meter := provider.Meter(name)

	verifications, err := meter.Int64Counter("keymaster_verifications_total")
	if err != nil {
		return nil, err
	}
	keysIssued, err := meter.Int64Counter("keymaster_keys_issued_total")
	if err != nil {
		return nil, err
	}
	creditsDebited, err := meter.Int64Counter("keymaster_credits_debited_total")
	if err != nil {
		return nil, err
	}
	creditsGranted, err := meter.Int64Counter("keymaster_credits_granted_total")
	if err != nil {
		return nil, err
	}
	tokensConsumed, err := meter.Int64Counter("keymaster_referral_tokens_consumed_total")
	if err != nil {
		return nil, err
	}

	return &Metrics{
		verifications:  verifications,
		keysIssued:     keysIssued,
		creditsDebited: creditsDebited,
		creditsGranted: creditsGranted,
		tokensConsumed: tokensConsumed,
	}, nil
}

// RecordVerification counts one verification decision by outcome.
func (m *Metrics) RecordVerification(ctx context.Context, game, outcome string) {
	if m == nil {
		return
	}
	attrs := FilterAttributes(
		attribute.String("game", strings.TrimSpace(game)),
		attribute.String("outcome", strings.TrimSpace(outcome)),
	)
	m.verifications.Add(ctx, 1, metric.WithAttributes(attrs...))
}

// RecordKeysIssued counts minted keys per game.
func (m *Metrics) RecordKeysIssued(ctx context.Context, game string, count int64) {
	if m == nil {
		return
	}
	attrs := FilterAttributes(attribute.String("game", strings.TrimSpace(game)))
	m.keysIssued.Add(ctx, count, metric.WithAttributes(attrs...))
}

// RecordCreditsDebited counts credits consumed by issuance.
func (m *Metrics) RecordCreditsDebited(ctx context.Context, amount int64) {
	if m == nil {
		return
	}
	m.creditsDebited.Add(ctx, amount)
}

// RecordCreditsGranted counts credits granted by admins.
func (m *Metrics) RecordCreditsGranted(ctx context.Context, amount int64) {
	if m == nil {
		return
	}
	m.creditsGranted.Add(ctx, amount)
}

// RecordTokenConsumed counts referral tokens consumed by registration.
func (m *Metrics) RecordTokenConsumed(ctx context.Context) {
	if m == nil {
		return
	}
	m.tokensConsumed.Add(ctx, 1)
}

func newExporter(protocol, endpoint string) (sdkmetric.Exporter, error) {
	protocol = strings.ToLower(strings.TrimSpace(protocol))
	switch protocol {
	case "http", "http/protobuf":
		opts := []otlpmetrichttp.Option{}
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
	"game":        {},
	"outcome":     {},
	"endpoint":    {},
	"status_code": {},
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
