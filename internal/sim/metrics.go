package sim

import (
	"context"
	"fmt"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

const instrumentationName = "github.com/OCAP2/dronesim/internal/sim"

type metrics struct {
	ticks       metric.Int64Counter
	completed   metric.Int64Counter
	safetyStops metric.Int64Counter
	battery     metric.Float64ObservableGauge
	queueLen    metric.Int64ObservableGauge
}

// newMetrics registers the simulation instruments on the global meter
// (no-op if no provider is installed).
func newMetrics(s *Simulation) (*metrics, error) {
	m := otel.Meter(instrumentationName)
	out := &metrics{}

	var err error
	out.ticks, err = m.Int64Counter(
		"sim.ticks",
		metric.WithDescription("Simulation ticks executed"),
	)
	if err != nil {
		return nil, fmt.Errorf("creating tick counter: %w", err)
	}

	out.completed, err = m.Int64Counter(
		"sim.commands.completed",
		metric.WithDescription("Script commands run to completion"),
	)
	if err != nil {
		return nil, fmt.Errorf("creating command counter: %w", err)
	}

	out.safetyStops, err = m.Int64Counter(
		"sim.safety_stops",
		metric.WithDescription("Motion commands ended early by a safety check"),
	)
	if err != nil {
		return nil, fmt.Errorf("creating safety stop counter: %w", err)
	}

	out.battery, err = m.Float64ObservableGauge(
		"sim.vehicle.battery",
		metric.WithDescription("Remaining battery"),
		metric.WithUnit("%"),
	)
	if err != nil {
		return nil, fmt.Errorf("creating battery gauge: %w", err)
	}

	out.queueLen, err = m.Int64ObservableGauge(
		"sim.queue.length",
		metric.WithDescription("Commands waiting in the mission queue"),
	)
	if err != nil {
		return nil, fmt.Errorf("creating queue gauge: %w", err)
	}

	_, err = m.RegisterCallback(
		func(ctx context.Context, o metric.Observer) error {
			snap := s.Snapshot()
			o.ObserveFloat64(out.battery, snap.Battery)
			o.ObserveInt64(out.queueLen, int64(snap.QueueLen))
			return nil
		},
		out.battery, out.queueLen,
	)
	if err != nil {
		return nil, fmt.Errorf("registering gauge callback: %w", err)
	}

	return out, nil
}

func (m *metrics) tick() {
	m.ticks.Add(context.Background(), 1)
}

func (m *metrics) commandDone(e CommandEvent) {
	ctx := context.Background()
	m.completed.Add(ctx, 1, metric.WithAttributes(attribute.String("kind", string(e.Kind))))
	if e.Outcome.SafetyStop() {
		m.safetyStops.Add(ctx, 1, metric.WithAttributes(attribute.String("reason", e.Outcome.String())))
	}
}
