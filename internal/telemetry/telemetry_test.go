package telemetry

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/metric/noop"
)

func TestInstrumentsWithGlobalMeter(t *testing.T) {
	in, err := New()
	require.NoError(t, err)

	ctx := context.Background()
	assert.NotPanics(t, func() {
		in.Tick(ctx)
		in.BroadcastFailed(ctx)
		in.Feedback(ctx, "quadcopter")
		in.Applied(ctx)
	})
}

func TestInstrumentsWithNoopMeter(t *testing.T) {
	in, err := NewWithMeter(noop.NewMeterProvider().Meter("test"))
	require.NoError(t, err)
	assert.NotNil(t, in)
}
