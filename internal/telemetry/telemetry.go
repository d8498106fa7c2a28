// Package telemetry holds the node's OpenTelemetry instruments. They record
// through the global meter provider, which is a no-op until one is installed.
package telemetry

import (
	"context"
	"fmt"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

const instrumentationName = "github.com/relabs-tech/stateviz/internal/telemetry"

// Instruments counts node activity.
type Instruments struct {
	ticks          metric.Int64Counter
	broadcastFails metric.Int64Counter
	feedback       metric.Int64Counter
	applies        metric.Int64Counter
}

// New creates the instruments from the global meter.
func New() (*Instruments, error) {
	return NewWithMeter(otel.Meter(instrumentationName))
}

// NewWithMeter creates the instruments from m.
func NewWithMeter(m metric.Meter) (*Instruments, error) {
	var (
		in  Instruments
		err error
	)
	if in.ticks, err = m.Int64Counter("stateviz.oscillator.ticks",
		metric.WithDescription("Timer ticks handled by the frame oscillator")); err != nil {
		return nil, fmt.Errorf("ticks counter: %w", err)
	}
	if in.broadcastFails, err = m.Int64Counter("stateviz.tf.broadcast_failures",
		metric.WithDescription("Transforms that failed to publish")); err != nil {
		return nil, fmt.Errorf("broadcast failures counter: %w", err)
	}
	if in.feedback, err = m.Int64Counter("stateviz.markers.feedback",
		metric.WithDescription("Feedback events received from clients")); err != nil {
		return nil, fmt.Errorf("feedback counter: %w", err)
	}
	if in.applies, err = m.Int64Counter("stateviz.markers.apply_changes",
		metric.WithDescription("ApplyChanges calls made by the node")); err != nil {
		return nil, fmt.Errorf("apply counter: %w", err)
	}
	return &in, nil
}

// Tick records one oscillator tick.
func (in *Instruments) Tick(ctx context.Context) {
	in.ticks.Add(ctx, 1)
}

// BroadcastFailed records a failed transform publish.
func (in *Instruments) BroadcastFailed(ctx context.Context) {
	in.broadcastFails.Add(ctx, 1)
}

// Feedback records a feedback event for a marker.
func (in *Instruments) Feedback(ctx context.Context, marker string) {
	in.feedback.Add(ctx, 1, metric.WithAttributes(attribute.String("marker", marker)))
}

// Applied records an ApplyChanges call.
func (in *Instruments) Applied(ctx context.Context) {
	in.applies.Add(ctx, 1)
}
