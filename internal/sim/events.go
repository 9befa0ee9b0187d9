package sim

// EventKind tags something that happened during a tick
type EventKind uint8

const (
	EventFire EventKind = iota + 1
	EventExplosion
	EventHit
	EventDeath
	EventEliminated
	EventRespawn
	EventKill
	EventPlatformDamaged
	EventPlatformDestroyed
	EventPlatformBuilt
	EventBlockDestroyed
	EventCrateCollected
	EventPlaneHit
)

// Event is drained by whoever owns the world: a mode orchestrator, the
// reconciliation layer or a renderer.
type Event struct {
	Kind     EventKind
	Tick     uint64
	TankID   string // acting or affected tank
	TargetID string // platform, block, crate or plane id
	X, Y     float64
	Angle    float64 // degrees
	Power    float64
	Munition Munition
	Damage   float64
	Platform *Platform // for EventPlatformBuilt
	Crate    CrateKind
}

func (w *World) emit(e Event) {
	e.Tick = w.Tick
	w.events = append(w.events, e)
}

// DrainEvents returns and clears the pending events
func (w *World) DrainEvents() []Event {
	out := w.events
	w.events = nil
	return out
}
