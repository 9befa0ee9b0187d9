package room

import (
	"context"
	"fmt"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

const instrumentationName = "github.com/gillesie/tankwars-online/internal/room"

// Metrics are the room counters. They go through the global meter, which
// is a no-op unless the binary installs a provider.
type Metrics struct {
	roomsCreated metric.Int64Counter
	ticks        metric.Int64Counter
	snapshots    metric.Int64Counter
	dropped      metric.Int64Counter
	joined       metric.Int64Counter
	activeRooms  metric.Int64ObservableGauge
}

// NewMetrics creates the instruments. activeRooms is polled by the gauge
// callback.
func NewMetrics(activeRooms func() int) (*Metrics, error) {
	m := otel.Meter(instrumentationName)
	var (
		out Metrics
		err error
	)

	if out.roomsCreated, err = m.Int64Counter("rooms.created", metric.WithDescription("Rooms created")); err != nil {
		return nil, fmt.Errorf("creating rooms counter: %w", err)
	}
	if out.ticks, err = m.Int64Counter("room.ticks", metric.WithDescription("Room ticks processed")); err != nil {
		return nil, fmt.Errorf("creating ticks counter: %w", err)
	}
	if out.snapshots, err = m.Int64Counter("room.snapshots", metric.WithDescription("Snapshot frames sent")); err != nil {
		return nil, fmt.Errorf("creating snapshots counter: %w", err)
	}
	if out.dropped, err = m.Int64Counter("room.frames.dropped", metric.WithDescription("Frames dropped for slow connections")); err != nil {
		return nil, fmt.Errorf("creating dropped counter: %w", err)
	}
	if out.joined, err = m.Int64Counter("room.players.joined", metric.WithDescription("Players joined")); err != nil {
		return nil, fmt.Errorf("creating joined counter: %w", err)
	}
	if out.activeRooms, err = m.Int64ObservableGauge("rooms.active", metric.WithDescription("Rooms currently open")); err != nil {
		return nil, fmt.Errorf("creating active rooms gauge: %w", err)
	}
	if activeRooms != nil {
		_, err = m.RegisterCallback(func(_ context.Context, o metric.Observer) error {
			o.ObserveInt64(out.activeRooms, int64(activeRooms()))
			return nil
		}, out.activeRooms)
		if err != nil {
			return nil, fmt.Errorf("registering rooms callback: %w", err)
		}
	}
	return &out, nil
}

func (m *Metrics) roomCreated() {
	if m != nil {
		m.roomsCreated.Add(context.Background(), 1)
	}
}

func (m *Metrics) tick(room string) {
	if m != nil {
		m.ticks.Add(context.Background(), 1, metric.WithAttributes(attribute.String("room", room)))
	}
}

func (m *Metrics) snapshot(n int) {
	if m != nil {
		m.snapshots.Add(context.Background(), int64(n))
	}
}

func (m *Metrics) drop() {
	if m != nil {
		m.dropped.Add(context.Background(), 1)
	}
}

func (m *Metrics) join() {
	if m != nil {
		m.joined.Add(context.Background(), 1)
	}
}
