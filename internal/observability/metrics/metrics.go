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
	overdueReports       metric.Int64Counter
	overdueReportErrors  metric.Int64Counter
	overdueReasonUpdates metric.Int64Counter
	periodsGenerated     metric.Int64Counter
	invoicesIssued       metric.Int64Counter
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

	if log != nil {
		log.Info("metrics initialized",
			zap.String("endpoint", cfg.ExporterEndpoint),
			zap.String("protocol", cfg.ExporterProtocol),
		)
	}

	return provider, nil
}

// New configures the domain metrics instruments.
func New(cfg Config, provider metric.MeterProvider) (*Metrics, error) {
	name := strings.TrimSpace(cfg.ServiceName)
	if name == "" {
		name = "opsdesk"
	}
	meter := provider.Meter(name)

	overdueReports, err := meter.Int64Counter("opsdesk_overdue_reports_total")
	if err != nil {
		return nil, err
	}
	overdueReportErrors, err := meter.Int64Counter("opsdesk_overdue_report_errors_total")
	if err != nil {
		return nil, err
	}
	overdueReasonUpdates, err := meter.Int64Counter("opsdesk_overdue_reason_updates_total")
	if err != nil {
		return nil, err
	}
	periodsGenerated, err := meter.Int64Counter("opsdesk_recurring_periods_generated_total")
	if err != nil {
		return nil, err
	}
	invoicesIssued, err := meter.Int64Counter("opsdesk_invoices_issued_total")
	if err != nil {
		return nil, err
	}

	return &Metrics{
		overdueReports:       overdueReports,
		overdueReportErrors:  overdueReportErrors,
		overdueReasonUpdates: overdueReasonUpdates,
		periodsGenerated:     periodsGenerated,
		invoicesIssued:       invoicesIssued,
	}, nil
}

// RecordOverdueReport counts a completed overdue aggregation.
func (m *Metrics) RecordOverdueReport(ctx context.Context, orgID string) {
	if m == nil {
		return
	}
	attrs := FilterAttributes(attribute.String("org_id", strings.TrimSpace(orgID)))
	m.overdueReports.Add(ctx, 1, metric.WithAttributes(attrs...))
}

// RecordOverdueReportError counts an aborted overdue aggregation.
func (m *Metrics) RecordOverdueReportError(ctx context.Context, orgID, source string) {
	if m == nil {
		return
	}
	attrs := FilterAttributes(
		attribute.String("org_id", strings.TrimSpace(orgID)),
		attribute.String("source", strings.TrimSpace(source)),
	)
	m.overdueReportErrors.Add(ctx, 1, metric.WithAttributes(attrs...))
}

// RecordOverdueReasonUpdate counts reason annotations on works.
func (m *Metrics) RecordOverdueReasonUpdate(ctx context.Context, orgID string, cleared bool) {
	if m == nil {
		return
	}
	action := "set"
	if cleared {
		action = "cleared"
	}
	attrs := FilterAttributes(
		attribute.String("org_id", strings.TrimSpace(orgID)),
		attribute.String("action", action),
	)
	m.overdueReasonUpdates.Add(ctx, 1, metric.WithAttributes(attrs...))
}

// RecordPeriodGenerated counts recurring periods materialized by the scheduler.
func (m *Metrics) RecordPeriodGenerated(ctx context.Context, orgID string) {
	if m == nil {
		return
	}
	attrs := FilterAttributes(attribute.String("org_id", strings.TrimSpace(orgID)))
	m.periodsGenerated.Add(ctx, 1, metric.WithAttributes(attrs...))
}

// RecordInvoiceIssued counts invoices moved out of draft.
func (m *Metrics) RecordInvoiceIssued(ctx context.Context, orgID string) {
	if m == nil {
		return
	}
	attrs := FilterAttributes(attribute.String("org_id", strings.TrimSpace(orgID)))
	m.invoicesIssued.Add(ctx, 1, metric.WithAttributes(attrs...))
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
	"org_id": {},
	"source": {},
	"action": {},
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
