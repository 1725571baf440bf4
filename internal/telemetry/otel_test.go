package telemetry

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
	semconv "go.opentelemetry.io/otel/semconv/v1.24.0"
)

func TestInitTracer_Disabled(t *testing.T) {
	shutdown, err := InitTracer(context.Background(), Config{})
	require.NoError(t, err)
	assert.NoError(t, shutdown(context.Background()))
}

func TestNewProvider_ExportsSpansWithServiceName(t *testing.T) {
	ctx := context.Background()
	exp := tracetest.NewInMemoryExporter()
	tp := newProvider(Config{ServiceName: "parkwise-booking-core", Environment: "test", Version: "dev"}, exp)

	_, span := tp.Tracer("test").Start(ctx, "ReservationService.CreateBooking")
	span.End()
	require.NoError(t, tp.ForceFlush(ctx))

	spans := exp.GetSpans()
	require.Len(t, spans, 1)
	assert.Equal(t, "ReservationService.CreateBooking", spans[0].Name)

	name, ok := spans[0].Resource.Set().Value(semconv.ServiceNameKey)
	require.True(t, ok)
	assert.Equal(t, "parkwise-booking-core", name.AsString())

	require.NoError(t, tp.Shutdown(ctx))
}
