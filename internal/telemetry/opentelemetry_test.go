package telemetry

import (
	"context"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel"
)

func TestInitMeterProvider_ExportsToRegistry(t *testing.T) {
	reg := prometheus.NewRegistry()

	mp, err := InitMeterProvider(reg)
	require.NoError(t, err)
	t.Cleanup(func() { Shutdown(context.Background(), mp) })

	counter, err := otel.Meter("telemetry-test").Int64Counter("airform_test_events")
	require.NoError(t, err)
	counter.Add(context.Background(), 3)

	families, err := reg.Gather()
	require.NoError(t, err)

	var names []string
	for _, f := range families {
		names = append(names, f.GetName())
	}
	assert.Contains(t, names, "airform_test_events_total")
}

func TestShutdown_Nil(t *testing.T) {
	assert.NotPanics(t, func() { Shutdown(context.Background(), nil) })
}
