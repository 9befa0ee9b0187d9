package sim

import (
	"math"

	"github.com/go-gl/mathgl/mgl64"
)

const (
	TrailCapacity   = 10
	SubStepLength   = 5.0  // no sub-step moves further than this
	ArmTicks        = 10   // player shells ignore platforms until this age
	TankHitRadius   = 30.0 // distance from the tank origin that counts as a hit
	PlaneHitRadius  = 30.0
	PlaneHitDamage  = 10.0
	escapeMargin    = 500.0
	escapeCeiling   = -5000.0
	seekerAimOffset = 10.0
)

// OwnerKind says whose authority a projectile's effects belong to
type OwnerKind uint8

const (
	OwnerPlayer OwnerKind = iota // fired by the locally authoritative player
	OwnerEnemy                   // AI, remote players and hazards
)

// Trail is a fixed ring of recent positions
type Trail struct {
	pts  [TrailCapacity]Point
	head int
	n    int
}

// Push records a position, dropping the oldest when full
func (t *Trail) Push(p Point) {
	t.pts[t.head] = p
	t.head = (t.head + 1) % TrailCapacity
	if t.n < TrailCapacity {
		t.n++
	}
}

// Len returns the number of stored points
func (t *Trail) Len() int { return t.n }

// Points returns the stored positions, oldest first
func (t *Trail) Points() []Point {
	out := make([]Point, 0, t.n)
	start := (t.head - t.n + TrailCapacity) % TrailCapacity
	for i := 0; i < t.n; i++ {
		out = append(out, t.pts[(start+i)%TrailCapacity])
	}
	return out
}

// Projectile is a flying shell. Once Exploded it is removed at the end of
// the tick and never reused.
type Projectile struct {
	X, Y     float64
	VX, VY   float64
	Team     int
	OwnerID  string
	Owner    OwnerKind
	Munition Munition
	Radius   float64
	Age      int
	Exploded bool
	Trail    Trail
}

// NewProjectile launches a shell at angle degrees with the given power
func NewProjectile(x, y, angle, power float64, m Munition, team int, ownerID string, owner OwnerKind) *Projectile {
	prof := m.Profile()
	speed := power * prof.SpeedScale
	rad := angle * deg
	return &Projectile{
		X:        x,
		Y:        y,
		VX:       math.Cos(rad) * speed,
		VY:       math.Sin(rad) * speed,
		Team:     team,
		OwnerID:  ownerID,
		Owner:    owner,
		Munition: m,
		Radius:   prof.Radius,
	}
}

// Heading returns the direction of travel in radians
func (p *Projectile) Heading() float64 {
	return math.Atan2(p.VY, p.VX)
}

// Speed returns the velocity magnitude
func (p *Projectile) Speed() float64 {
	return math.Hypot(p.VX, p.VY)
}

func (w *World) stepProjectile(p *Projectile) {
	if p.Exploded {
		return
	}
	prof := p.Munition.Profile()
	p.Age++
	p.Trail.Push(Point{X: p.X, Y: p.Y})

	if prof.Homing {
		w.steerSeeker(p)
	} else if prof.Gravity {
		p.VY += Gravity
	}
	if prof.Wind {
		p.VX += w.Geo.Wind
	}

	steps := int(math.Ceil(p.Speed()/SubStepLength)) + 1
	sx := p.VX / float64(steps)
	sy := p.VY / float64(steps)
	for i := 0; i < steps; i++ {
		p.X += sx
		p.Y += sy
		if w.checkImpact(p) {
			return
		}
	}

	if p.X < -escapeMargin || p.X > w.Width()+escapeMargin || p.Y < escapeCeiling {
		p.Exploded = true
	}
}

// steerSeeker turns the velocity toward the nearest opponent by at most
// SeekerTurnRate, keeping the speed
func (w *World) steerSeeker(p *Projectile) {
	target := w.nearestOpponent(p.X, p.Y, p.Team, SeekerSearchRadius)
	if target == nil {
		return
	}
	desired := math.Atan2(target.Y-seekerAimOffset-p.Y, target.X-p.X)
	turn := Clamp(NormalizeAngle(desired-p.Heading()), -SeekerTurnRate, SeekerTurnRate)
	v := mgl64.Rotate2D(turn).Mul2x1(mgl64.Vec2{p.VX, p.VY})
	p.VX, p.VY = v.X(), v.Y()
}

func (w *World) nearestOpponent(x, y float64, team int, radius float64) *Tank {
	var best *Tank
	bestDist := radius
	for _, t := range w.Tanks {
		if t.Dead || t.Team == team {
			continue
		}
		if d := Distance(x, y, t.X, t.Y); d < bestDist {
			bestDist = d
			best = t
		}
	}
	return best
}

// checkImpact tests planes, terrain, platforms, blocks and tanks in that
// order and explodes the projectile on the first hit
func (w *World) checkImpact(p *Projectile) bool {
	prof := p.Munition.Profile()

	if p.Owner == OwnerPlayer {
		for _, pl := range w.Planes {
			if pl.HP > 0 && Distance(p.X, p.Y, pl.X, pl.Y) < PlaneHitRadius {
				w.hitPlane(pl, p.OwnerID)
				w.explode(p)
				return true
			}
		}
	}

	if p.Y >= w.Geo.Terrain.HeightAt(p.X) {
		w.explode(p)
		return true
	}

	if p.Age > ArmTicks || p.Owner != OwnerPlayer {
		for _, pl := range w.Geo.Platforms {
			if !pl.Contains(p.X, p.Y) {
				continue
			}
			if p.Owner == OwnerPlayer {
				w.DamagePlatform(pl.ID, prof.PlatformDamage, true)
			}
			w.explode(p)
			return true
		}
	}

	for _, b := range w.Geo.Blocks {
		if b.HP <= 0 || !b.Contains(p.X, p.Y) {
			continue
		}
		if p.Owner == OwnerPlayer {
			w.DamageBlock(b.ID, prof.PlatformDamage, true)
		}
		w.explode(p)
		return true
	}

	for _, t := range w.Tanks {
		if t.Dead || t.Team == p.Team {
			continue
		}
		if Distance(p.X, p.Y, t.X, t.Y) < TankHitRadius {
			w.explode(p)
			return true
		}
	}
	return false
}

// explode ends the projectile and applies splash damage to opposing
// tanks whose health this world owns
func (w *World) explode(p *Projectile) {
	prof := p.Munition.Profile()
	p.Exploded = true
	w.emit(Event{Kind: EventExplosion, TankID: p.OwnerID, X: p.X, Y: p.Y, Munition: p.Munition})

	for _, t := range w.Tanks {
		if t.Dead || t.Team == p.Team {
			continue
		}
		if Distance(p.X, p.Y, t.X, t.Y) < prof.BlastRadius {
			t.TakeDamage(w, prof.Damage, p.OwnerID)
		}
	}
}
