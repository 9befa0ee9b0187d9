package sim

import (
	"math"

	"github.com/rs/zerolog"
)

const maxProjectiles = 500

// TickRate is the fixed simulation rate in ticks per second
const TickRate = 60

// Config describes a new world
type Config struct {
	Geometry  *Geometry
	Networked bool   // health of the local tank is decided by a room
	FXSeed    uint32 // stream for AI jitter and local hazards
	Logger    zerolog.Logger
}

// World is the simulation context. One instance exists per room on the
// server side and per session on a client; nothing in this package keeps
// global state.
type World struct {
	Tick        uint64
	Geo         *Geometry
	Tanks       []*Tank
	Projectiles []*Projectile
	Crates      []*Crate
	Planes      []*Plane
	Active      bool
	Networked   bool
	Sched       *Scheduler

	// SpawnPoint picks respawn positions for locally decided respawns.
	// When nil the tank's team spawn is used.
	SpawnPoint func(t *Tank) (float64, float64)

	fx       uint32
	events   []Event
	grid     *SpatialGrid
	queryBuf []int
	log      zerolog.Logger
}

// NewWorld creates a world over the given geometry
func NewWorld(cfg Config) *World {
	geo := cfg.Geometry
	if geo == nil {
		geo = GenerateSeeded(0, DefaultProfile(), nil)
	}
	w := &World{
		Geo:       geo,
		Networked: cfg.Networked,
		Sched:     NewScheduler(),
		fx:        cfg.FXSeed,
		grid:      NewSpatialGrid(geo.Terrain.Width),
		log:       cfg.Logger,
	}
	w.indexBlocks()
	return w
}

// Width returns the level width
func (w *World) Width() float64 { return w.Geo.Terrain.Width }

// HeightAt is the terrain height at x
func (w *World) HeightAt(x float64) float64 { return w.Geo.Terrain.HeightAt(x) }

// FX exposes the world's effect stream to mode orchestrators
func (w *World) FX() *uint32 { return &w.fx }

// Step advances the simulation one tick
func (w *World) Step() {
	w.Tick++
	w.Sched.Advance()

	w.stepBlocks()
	w.indexBlocks()

	for _, t := range w.Tanks {
		t.Update(w)
	}

	for _, p := range w.Projectiles {
		w.stepProjectile(p)
	}
	kept := w.Projectiles[:0]
	for _, p := range w.Projectiles {
		if !p.Exploded {
			kept = append(kept, p)
		}
	}
	for i := len(kept); i < len(w.Projectiles); i++ {
		w.Projectiles[i] = nil
	}
	w.Projectiles = kept

	for _, c := range w.Crates {
		c.Update(w)
	}
	w.collectCrates()
	w.stepPlanes()
	w.compactBlocks()
}

// AddTank inserts or replaces a tank
func (w *World) AddTank(t *Tank) {
	for i, old := range w.Tanks {
		if old.ID == t.ID {
			w.Tanks[i] = t
			return
		}
	}
	w.Tanks = append(w.Tanks, t)
}

// RemoveTank drops a tank and any respawn pending for it
func (w *World) RemoveTank(id string) bool {
	w.Sched.CancelKey(respawnKey(id))
	for i, t := range w.Tanks {
		if t.ID == id {
			w.Tanks = append(w.Tanks[:i], w.Tanks[i+1:]...)
			return true
		}
	}
	return false
}

// Tank looks a tank up by id
func (w *World) Tank(id string) *Tank {
	for _, t := range w.Tanks {
		if t.ID == id {
			return t
		}
	}
	return nil
}

// Alive counts living tanks on team
func (w *World) Alive(team int) int {
	n := 0
	for _, t := range w.Tanks {
		if t.Team == team && !t.Dead {
			n++
		}
	}
	return n
}

func (w *World) spawnPoint(t *Tank) (float64, float64) {
	if w.SpawnPoint != nil {
		return w.SpawnPoint(t)
	}
	return SpawnPoint(t.Team, w.Width())
}

// Launch spawns shells without ammo or ownership checks. Relayed remote
// shots use it with OwnerEnemy.
func (w *World) Launch(x, y, angle, power float64, m Munition, team int, ownerID string, owner OwnerKind) {
	w.launch(x, y, angle, power, m, team, ownerID, owner)
}

func (w *World) launch(x, y, angle, power float64, m Munition, team int, ownerID string, owner OwnerKind) {
	prof := m.Profile()
	shells := prof.Shells
	if shells < 1 {
		shells = 1
	}
	start := angle - prof.Spread*float64(shells-1)/2
	for i := 0; i < shells; i++ {
		if len(w.Projectiles) >= maxProjectiles {
			w.log.Debug().Str("owner", ownerID).Msg("projectile cap reached")
			return
		}
		a := start + prof.Spread*float64(i)
		w.Projectiles = append(w.Projectiles, NewProjectile(x, y, a, power, m, team, ownerID, owner))
	}
}

// Platform looks a platform up by id
func (w *World) Platform(id string) *Platform {
	for _, p := range w.Geo.Platforms {
		if p.ID == id {
			return p
		}
	}
	return nil
}

// AddPlatform inserts a platform unless one with the same id exists
func (w *World) AddPlatform(p *Platform) bool {
	if w.Platform(p.ID) != nil {
		return false
	}
	w.Geo.Platforms = append(w.Geo.Platforms, p)
	return true
}

// RemovePlatform drops a platform by id
func (w *World) RemovePlatform(id string) bool {
	for i, p := range w.Geo.Platforms {
		if p.ID == id {
			w.Geo.Platforms = append(w.Geo.Platforms[:i], w.Geo.Platforms[i+1:]...)
			return true
		}
	}
	return false
}

// DamagePlatform applies damage to a platform and removes it once its hp
// is gone. report emits events for the authoritative layer. Unknown ids
// are ignored.
func (w *World) DamagePlatform(id string, amount float64, report bool) bool {
	p := w.Platform(id)
	if p == nil || p.Indestructible() {
		return false
	}
	destroyed := p.Damage(amount)
	if report {
		w.emit(Event{Kind: EventPlatformDamaged, TargetID: id, Damage: amount, X: p.X, Y: p.Y})
	}
	if !destroyed {
		return false
	}
	w.RemovePlatform(id)
	if report {
		w.emit(Event{Kind: EventPlatformDestroyed, TargetID: id, X: p.X, Y: p.Y})
	}
	return true
}

// Block looks a live block up by id
func (w *World) Block(id string) *Block {
	for _, b := range w.Geo.Blocks {
		if b.ID == id && b.HP > 0 {
			return b
		}
	}
	return nil
}

// DamageBlock applies damage to a block; destroyed blocks are removed at
// the end of the tick
func (w *World) DamageBlock(id string, amount float64, report bool) bool {
	b := w.Block(id)
	if b == nil {
		return false
	}
	if !b.Damage(amount) {
		return false
	}
	if report {
		w.emit(Event{Kind: EventBlockDestroyed, TargetID: id, X: b.X, Y: b.Y})
	}
	return true
}

// RemoveBlock destroys a block outright
func (w *World) RemoveBlock(id string) bool {
	b := w.Block(id)
	if b == nil {
		return false
	}
	b.HP = 0
	return true
}

func (w *World) compactBlocks() {
	kept := w.Geo.Blocks[:0]
	for _, b := range w.Geo.Blocks {
		if b.HP > 0 {
			kept = append(kept, b)
		}
	}
	for i := len(kept); i < len(w.Geo.Blocks); i++ {
		w.Geo.Blocks[i] = nil
	}
	w.Geo.Blocks = kept
}

// AddCrate inserts a crate unless one with the same id exists
func (w *World) AddCrate(c *Crate) bool {
	for _, old := range w.Crates {
		if old.ID == c.ID {
			return false
		}
	}
	w.Crates = append(w.Crates, c)
	return true
}

// RemoveCrate drops a crate by id
func (w *World) RemoveCrate(id string) bool {
	for i, c := range w.Crates {
		if c.ID == id {
			w.Crates = append(w.Crates[:i], w.Crates[i+1:]...)
			return true
		}
	}
	return false
}

// Settle steps only the blocks until they stop moving or maxTicks pass
func (w *World) Settle(maxTicks int) int {
	for i := 0; i < maxTicks; i++ {
		w.stepBlocks()
		moving := false
		for _, b := range w.Geo.Blocks {
			if !b.Resting || math.Abs(b.VY) > 0 {
				moving = true
				break
			}
		}
		if !moving {
			return i + 1
		}
	}
	return maxTicks
}
