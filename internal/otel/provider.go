// Package otel installs the OpenTelemetry meter provider behind the
// environment and recorder instruments.
package otel

import (
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/stdout/stdoutmetric"
	"go.opentelemetry.io/otel/metric"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/resource"
)

// DefaultInterval is the export period used when Config.Interval is zero
const DefaultInterval = 10 * time.Second

// ErrNoExporter is returned when OTel is enabled without a writer or reader
var ErrNoExporter = errors.New("OTel enabled but no metric writer or reader configured")

// Config holds OTel configuration
type Config struct {
	Enabled     bool
	ServiceName string
	Interval    time.Duration
	Writer      io.Writer        // metrics are exported here as JSON lines
	Reader      sdkmetric.Reader // overrides Writer, used by tests
}

// Provider manages the OpenTelemetry meter provider
type Provider struct {
	meterProvider *sdkmetric.MeterProvider
	previous      metric.MeterProvider
	config        Config
}

// New creates a provider and installs it as the global meter provider.
// If OTel is disabled, the global no-op provider is left in place.
func New(cfg Config) (*Provider, error) {
	p := &Provider{
		config: cfg,
	}

	if !cfg.Enabled {
		return p, nil
	}

	reader := cfg.Reader
	if reader == nil {
		if cfg.Writer == nil {
			return nil, ErrNoExporter
		}
		exporter, err := stdoutmetric.New(stdoutmetric.WithWriter(cfg.Writer))
		if err != nil {
			return nil, fmt.Errorf("failed to create metric exporter: %w", err)
		}
		interval := cfg.Interval
		if interval <= 0 {
			interval = DefaultInterval
		}
		reader = sdkmetric.NewPeriodicReader(exporter, sdkmetric.WithInterval(interval))
	}

	res := resource.NewSchemaless(attribute.String("service.name", cfg.ServiceName))
	p.meterProvider = sdkmetric.NewMeterProvider(
		sdkmetric.WithResource(res),
		sdkmetric.WithReader(reader),
	)
	p.previous = otel.GetMeterProvider()
	otel.SetMeterProvider(p.meterProvider)

	return p, nil
}

// Meter returns a meter from the installed provider, or the global one when disabled.
func (p *Provider) Meter(name string) metric.Meter {
	if p.meterProvider == nil {
		return otel.Meter(name)
	}
	return p.meterProvider.Meter(name)
}

// Flush forces an export of all pending metrics.
// Called at the end of each episode.
func (p *Provider) Flush(ctx context.Context) error {
	if p.meterProvider == nil {
		return nil
	}
	if err := p.meterProvider.ForceFlush(ctx); err != nil {
		return fmt.Errorf("metric flush failed: %w", err)
	}
	return nil
}

// Shutdown flushes, stops the provider and restores the previous global one.
// Should be called when the application exits.
func (p *Provider) Shutdown(ctx context.Context) error {
	if p.meterProvider == nil {
		return nil
	}
	err := p.meterProvider.Shutdown(ctx)
	otel.SetMeterProvider(p.previous)
	p.meterProvider = nil
	if err != nil {
		return fmt.Errorf("metric shutdown failed: %w", err)
	}
	return nil
}

// Enabled returns whether OTel is enabled
func (p *Provider) Enabled() bool {
	return p.config.Enabled
}
