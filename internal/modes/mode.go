package modes

import "github.com/gillesie/tankwars-online/internal/sim"

// Status is the lifecycle of a single-player mode
type Status uint8

const (
	StatusRunning Status = iota
	StatusWon
	StatusLost
)

func (s Status) String() string {
	switch s {
	case StatusWon:
		return "won"
	case StatusLost:
		return "lost"
	default:
		return "running"
	}
}

// Mode reacts to the events a world produced during a tick
type Mode interface {
	Handle(events []sim.Event)
	Status() Status
}

// Step advances w one tick and feeds its events to m. The events are
// returned so a renderer can still consume them.
func Step(w *sim.World, m Mode) []sim.Event {
	w.Step()
	events := w.DrainEvents()
	m.Handle(events)
	return events
}

// TicksPerSecond is the single-player simulation rate
const TicksPerSecond = 60

func seconds(s float64) uint64 {
	return uint64(s * TicksPerSecond)
}

func randomCrate(w *sim.World, kinds []sim.CrateKind) sim.CrateKind {
	return kinds[sim.Intn(w.FX(), len(kinds))]
}
