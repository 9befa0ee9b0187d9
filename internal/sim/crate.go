package sim

import (
	"fmt"
	"math"
)

const (
	CrateFallSpeed    = 2.0
	CrateRestOffset   = 15.0
	CratePickupRadius = 40.0
	crateSwayRate     = 0.08
	CrateRepairHP     = 30.0
	CrateShield       = 50.0
)

// CrateKind selects the pickup effect
type CrateKind uint8

const (
	CrateRepair CrateKind = iota
	CrateAmmo
	CrateShieldKind
	CrateScatter
	CrateSeeker
	CrateNuke
	crateKindCount
)

var crateNames = [crateKindCount]string{"repair", "ammo", "shield", "scatter", "seeker", "nuke"}

func (k CrateKind) String() string {
	if k >= crateKindCount {
		return fmt.Sprintf("crate(%d)", k)
	}
	return crateNames[k]
}

// MarshalText encodes the kind by name
func (k CrateKind) MarshalText() ([]byte, error) {
	if k >= crateKindCount {
		return nil, fmt.Errorf("unknown crate kind %d", k)
	}
	return []byte(crateNames[k]), nil
}

// UnmarshalText decodes a kind name
func (k *CrateKind) UnmarshalText(b []byte) error {
	for i, n := range crateNames {
		if n == string(b) {
			*k = CrateKind(i)
			return nil
		}
	}
	return fmt.Errorf("unknown crate kind %q", b)
}

// CrateKinds lists every kind the room may drop
func CrateKinds() []CrateKind {
	out := make([]CrateKind, crateKindCount)
	for i := range out {
		out[i] = CrateKind(i)
	}
	return out
}

// Crate drops from the sky and waits to be collected
type Crate struct {
	ID     string
	X, Y   float64
	Kind   CrateKind
	Landed bool
	age    int
}

// Update drifts the crate down until it rests on terrain or a platform
func (c *Crate) Update(w *World) {
	if c.Landed {
		return
	}
	c.age++
	c.Y += CrateFallSpeed
	c.X += math.Sin(float64(c.age)*crateSwayRate) * 0.5

	if floor := w.Geo.Terrain.HeightAt(c.X); c.Y >= floor-CrateRestOffset {
		c.Y = floor - CrateRestOffset
		c.Landed = true
		return
	}
	for _, p := range w.Geo.Platforms {
		if !p.SpansX(c.X) {
			continue
		}
		surf := p.SurfaceY(c.X)
		if c.Y >= surf-CrateRestOffset && c.Y < surf-CrateRestOffset+CrateFallSpeed*2 {
			c.Y = surf - CrateRestOffset
			c.Landed = true
			return
		}
	}
}

// Apply gives the crate's effect to t
func (k CrateKind) Apply(t *Tank) {
	switch k {
	case CrateRepair:
		t.HP = math.Min(t.MaxHP, t.HP+CrateRepairHP)
	case CrateAmmo:
		t.Ammo.Add(MunitionScatter, 5)
		t.Ammo.Add(MunitionLaser, 3)
		t.Ammo.Add(MunitionSeeker, 3)
	case CrateShieldKind:
		t.Shield = CrateShield
	case CrateScatter:
		t.Ammo.Add(MunitionScatter, 10)
	case CrateSeeker:
		t.Ammo.Add(MunitionSeeker, 5)
	case CrateNuke:
		t.Ammo.Add(MunitionNuke, 1)
	}
}

// collectCrates lets local tanks pick up nearby crates
func (w *World) collectCrates() {
	kept := w.Crates[:0]
	for _, c := range w.Crates {
		if t := w.collector(c); t != nil {
			c.Kind.Apply(t)
			w.emit(Event{Kind: EventCrateCollected, TankID: t.ID, TargetID: c.ID, X: c.X, Y: c.Y, Crate: c.Kind})
			continue
		}
		kept = append(kept, c)
	}
	for i := len(kept); i < len(w.Crates); i++ {
		w.Crates[i] = nil
	}
	w.Crates = kept
}

func (w *World) collector(c *Crate) *Tank {
	for _, t := range w.Tanks {
		if t.Dead || !t.IsLocal() {
			continue
		}
		if Distance(c.X, c.Y, t.X, t.Y) < CratePickupRadius {
			return t
		}
	}
	return nil
}
