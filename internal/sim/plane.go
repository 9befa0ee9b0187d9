package sim

const (
	PlaneHP           = 50.0
	PlaneSpeed        = 5.0
	PlaneEntryOffset  = 200.0
	PlaneMinY         = 100.0
	PlaneMaxY         = 300.0
	PlaneSpawnChance  = 0.005 // per tick while no plane is up
	ClusterDropChance = 0.02
	ClusterShells     = 5
	clusterDropMargin = 200.0
	planeExitMargin   = 1000.0
	clusterSpread     = 20.0 // degrees either side of straight down
	clusterMinPower   = 5.0
	clusterMaxPower   = 15.0

	SuperTankHP = 200.0
	SuperNukes  = 10
	SuperLasers = 99
)

// Plane is the patrol aircraft hazard crossing the map
type Plane struct {
	ID   string
	X, Y float64
	VX   float64
	HP   float64
}

// NewPlane enters from a random side at a random altitude
func NewPlane(id string, rng *uint32, width float64) *Plane {
	p := &Plane{ID: id, HP: PlaneHP}
	if Chance(rng, 0.5) {
		p.X, p.VX = -PlaneEntryOffset, PlaneSpeed
	} else {
		p.X, p.VX = width+PlaneEntryOffset, -PlaneSpeed
	}
	p.Y = Range(rng, PlaneMinY, PlaneMaxY)
	return p
}

// Advance moves the plane one tick
func (p *Plane) Advance() {
	p.X += p.VX
}

// WantsDrop rolls for a cluster bomb while the plane is over the map
func (p *Plane) WantsDrop(rng *uint32, width float64) bool {
	if p.X <= clusterDropMargin || p.X >= width-clusterDropMargin {
		return false
	}
	return Chance(rng, ClusterDropChance)
}

// Gone reports whether the plane has left the level for good
func (p *Plane) Gone(width float64) bool {
	return p.X < -planeExitMargin || p.X > width+planeExitMargin
}

// Damage applies amount and reports whether the plane went down
func (p *Plane) Damage(amount float64) bool {
	p.HP -= amount
	return p.HP <= 0
}

// Promote turns the tank that downed a plane into a super tank
func (t *Tank) Promote() {
	t.HP = SuperTankHP
	t.MaxHP = SuperTankHP
	t.Lives++
}

// GrantSuperpower hands out the plane kill reward
func (t *Tank) GrantSuperpower() {
	t.Ammo.Add(MunitionNuke, SuperNukes)
	t.Ammo.Set(MunitionLaser, SuperLasers)
}

// DropClusterBomb releases cluster shells at (x, y). The shells come from
// a stream seeded by seed so every participant spawns the same ones.
func (w *World) DropClusterBomb(x, y float64, seed uint32) {
	state := seed
	for i := 0; i < ClusterShells; i++ {
		angle := 90 + Range(&state, -clusterSpread, clusterSpread)
		power := Range(&state, clusterMinPower, clusterMaxPower)
		w.Projectiles = append(w.Projectiles, NewProjectile(x, y, angle, power, MunitionCluster, 0, "", OwnerEnemy))
	}
}

// SpawnPlane adds a plane to the world
func (w *World) SpawnPlane(p *Plane) {
	w.Planes = append(w.Planes, p)
}

// Plane looks a plane up by id
func (w *World) Plane(id string) *Plane {
	for _, p := range w.Planes {
		if p.ID == id {
			return p
		}
	}
	return nil
}

// RemovePlane drops a plane by id
func (w *World) RemovePlane(id string) bool {
	for i, p := range w.Planes {
		if p.ID == id {
			w.Planes = append(w.Planes[:i], w.Planes[i+1:]...)
			return true
		}
	}
	return false
}

func (w *World) hitPlane(pl *Plane, shooterID string) {
	w.emit(Event{Kind: EventPlaneHit, TankID: shooterID, TargetID: pl.ID, X: pl.X, Y: pl.Y, Damage: PlaneHitDamage})
	if w.Networked {
		return
	}
	if !pl.Damage(PlaneHitDamage) {
		return
	}
	w.RemovePlane(pl.ID)
	if t := w.Tank(shooterID); t != nil {
		t.Promote()
		t.GrantSuperpower()
	}
}

// stepPlanes flies locally owned planes; networked worlds take plane
// positions from snapshots instead
func (w *World) stepPlanes() {
	if w.Networked {
		return
	}
	kept := w.Planes[:0]
	for _, p := range w.Planes {
		p.Advance()
		if p.WantsDrop(&w.fx, w.Width()) {
			w.DropClusterBomb(p.X, p.Y, uint32(Next(&w.fx)*4294967296))
		}
		if !p.Gone(w.Width()) {
			kept = append(kept, p)
		}
	}
	w.Planes = kept
}
