// Package telemetry exports workout session metrics over OTLP.
package telemetry

import (
	"context"
	"fmt"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/otlp/otlpmetric/otlpmetricgrpc"
	"go.opentelemetry.io/otel/metric"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/resource"
	semconv "go.opentelemetry.io/otel/semconv/v1.24.0"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"

	"github.com/claude/circuitrunner/internal/config"
	"github.com/claude/circuitrunner/internal/models"
)

const serviceName = "circuitrunner"

// Exporter records finished sessions as OTLP metrics. It satisfies
// history.Hook.
type Exporter struct {
	provider      *sdkmetric.MeterProvider
	sessionsTotal metric.Int64Counter
	durationHist  metric.Float64Histogram
	caloriesTotal metric.Int64Counter
}

// NewExporter creates an exporter pushing to cfg.Endpoint.
func NewExporter(ctx context.Context, cfg config.TelemetryConfig, version string) (*Exporter, error) {
	if !cfg.Enabled || cfg.Endpoint == "" {
		return nil, fmt.Errorf("telemetry is disabled or endpoint not configured")
	}

	opts := []otlpmetricgrpc.Option{
		otlpmetricgrpc.WithEndpoint(cfg.Endpoint),
	}
	if cfg.Insecure {
		opts = append(opts, otlpmetricgrpc.WithDialOption(grpc.WithTransportCredentials(insecure.NewCredentials())))
		opts = append(opts, otlpmetricgrpc.WithInsecure())
	}

	exp, err := otlpmetricgrpc.New(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("creating OTLP exporter: %w", err)
	}

	res, err := resource.New(ctx,
		resource.WithAttributes(
			semconv.ServiceName(serviceName),
			semconv.ServiceVersion(version),
		),
	)
	if err != nil {
		return nil, fmt.Errorf("creating resource: %w", err)
	}

	provider := sdkmetric.NewMeterProvider(
		sdkmetric.WithReader(sdkmetric.NewPeriodicReader(exp)),
		sdkmetric.WithResource(res),
	)
	otel.SetMeterProvider(provider)

	return newExporter(provider)
}

func newExporter(provider *sdkmetric.MeterProvider) (*Exporter, error) {
	meter := provider.Meter(serviceName)

	sessionsTotal, err := meter.Int64Counter(
		"circuitrunner_sessions_total",
		metric.WithDescription("Finished workout sessions"),
		metric.WithUnit("{session}"),
	)
	if err != nil {
		return nil, fmt.Errorf("creating sessions counter: %w", err)
	}

	durationHist, err := meter.Float64Histogram(
		"circuitrunner_session_duration_seconds",
		metric.WithDescription("Time spent in a session, rests included"),
		metric.WithUnit("s"),
	)
	if err != nil {
		return nil, fmt.Errorf("creating duration histogram: %w", err)
	}

	caloriesTotal, err := meter.Int64Counter(
		"circuitrunner_calories_total",
		metric.WithDescription("Estimated calories burned"),
		metric.WithUnit("kcal"),
	)
	if err != nil {
		return nil, fmt.Errorf("creating calories counter: %w", err)
	}

	return &Exporter{
		provider:      provider,
		sessionsTotal: sessionsTotal,
		durationHist:  durationHist,
		caloriesTotal: caloriesTotal,
	}, nil
}

// SessionRecorded records one finished session.
func (e *Exporter) SessionRecorded(ctx context.Context, s models.WorkoutSession) {
	opt := metric.WithAttributes(
		attribute.String("status", string(s.Status)),
		attribute.String("difficulty", string(s.Workout.Difficulty)),
		attribute.Bool("manual", s.Workout.IsManual),
	)
	e.sessionsTotal.Add(ctx, 1, opt)
	e.durationHist.Record(ctx, float64(s.ActualDurationWorked), opt)
	e.caloriesTotal.Add(ctx, int64(s.EstimatedCaloriesBurned), opt)
}

// Shutdown flushes pending metrics and stops the provider.
func (e *Exporter) Shutdown(ctx context.Context) error {
	return e.provider.Shutdown(ctx)
}
