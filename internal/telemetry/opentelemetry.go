// Package telemetry bridges OpenTelemetry metrics into the Prometheus registry
// served on /metrics.
package telemetry

import (
	"context"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog/log"
	"go.opentelemetry.io/otel"
	prometheusexporter "go.opentelemetry.io/otel/exporters/prometheus"
	"go.opentelemetry.io/otel/sdk/metric"
)

// InitMeterProvider installs a global MeterProvider whose instruments are
// exported through reg. otelgin, otelmongo and the Airtable transport
// record into it.
func InitMeterProvider(reg prometheus.Registerer) (*metric.MeterProvider, error) {
	exporter, err := prometheusexporter.New(prometheusexporter.WithRegisterer(reg))
	if err != nil {
		return nil, err
	}

	mp := metric.NewMeterProvider(metric.WithReader(exporter))
	otel.SetMeterProvider(mp)
	log.Debug().Msg("OpenTelemetry MeterProvider initialized with Prometheus exporter")
	return mp, nil
}

// Shutdown flushes and stops mp. A nil provider is ignored.
func Shutdown(ctx context.Context, mp *metric.MeterProvider) {
	if mp == nil {
		return
	}
	if err := mp.Shutdown(ctx); err != nil {
		log.Ctx(ctx).Error().Err(err).Msg("MeterProvider shutdown failed")
	}
}
