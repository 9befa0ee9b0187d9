package sim

import (
	"math"
)

const (
	TankMaxHP         = 100.0
	TankLives         = 5
	TankSpawnY        = -500.0
	TankSpawnInset    = 200.0
	RespawnDelayTicks = 180 // 3s at 60 ticks/s
	RemoteSnapDist    = 500.0
	RemoteLerp        = 0.2
	muzzleLength      = 20.0
	muzzleHeight      = 15.0
	turretPivot       = 10.0
	MinFirePower      = 2.0
	MaxFirePower      = 25.0
	chargeMsPerPower  = 40.0
)

// Control is the tagged variant selecting who drives a tank
type Control interface {
	isControl()
}

// Intent is one tick of human input
type Intent struct {
	Left, Right bool
	Jump        bool
	AimX, AimY  float64 // world-space cursor
}

// LocalControl is a tank simulated and owned by this process
type LocalControl struct {
	Intent      Intent
	jumpOriginY float64
	jumpTicks   int
}

// RemoteControl is a tank owned elsewhere; it only follows reports
type RemoteControl struct {
	TargetX, TargetY float64
}

// Behavior is the AI movement pattern
type Behavior uint8

const (
	BehaviorStatic Behavior = iota
	BehaviorPatrol
	BehaviorChase
	BehaviorBoss
)

func (b Behavior) String() string {
	switch b {
	case BehaviorPatrol:
		return "patrol"
	case BehaviorChase:
		return "chase"
	case BehaviorBoss:
		return "boss"
	default:
		return "static"
	}
}

// AIControl is a tank driven by the aiming heuristic in ai.go
type AIControl struct {
	Difficulty int
	Behavior   Behavior
	HomeX      float64
	fireCD     int
	moveTimer  int
	jumpTimer  int
	strafeDir  float64
}

func (*LocalControl) isControl()  {}
func (*RemoteControl) isControl() {}
func (*AIControl) isControl()     {}

// Tank is a combat entity. Its control variant decides how it updates and
// whether this world owns its health.
type Tank struct {
	Body
	ID          string
	Name        string
	Team        int
	TurretAngle float64 // degrees
	HP          float64
	MaxHP       float64
	Shield      float64
	Lives       int
	Dead        bool
	Eliminated  bool
	Ammo        Ammo
	Weapon      Munition
	Control     Control
}

// NewTank creates a tank at its team's spawn point with full stats
func NewTank(id, name string, team int, width float64, ctrl Control) *Tank {
	t := &Tank{
		ID:      id,
		Name:    name,
		Team:    team,
		HP:      TankMaxHP,
		MaxHP:   TankMaxHP,
		Lives:   TankLives,
		Ammo:    DefaultAmmo(),
		Weapon:  MunitionStandard,
		Control: ctrl,
	}
	t.X, t.Y = SpawnPoint(team, width)
	if team == 1 {
		t.TurretAngle = 315
	} else {
		t.TurretAngle = 225
	}
	if r, ok := ctrl.(*RemoteControl); ok {
		r.TargetX, r.TargetY = t.X, t.Y
	}
	return t
}

// SpawnPoint returns the team's starting position
func SpawnPoint(team int, width float64) (float64, float64) {
	if team == 1 {
		return TankSpawnInset, TankSpawnY
	}
	return width - TankSpawnInset, TankSpawnY
}

// FirePower maps a charge duration to launch power
func FirePower(heldMs float64) float64 {
	return Clamp(heldMs/chargeMsPerPower, MinFirePower, MaxFirePower)
}

// IsLocal reports whether this process drives the tank from input
func (t *Tank) IsLocal() bool {
	_, ok := t.Control.(*LocalControl)
	return ok
}

// IsAI reports whether the tank is AI driven
func (t *Tank) IsAI() bool {
	_, ok := t.Control.(*AIControl)
	return ok
}

// Authoritative reports whether this world owns the tank's health
func (t *Tank) Authoritative() bool {
	_, remote := t.Control.(*RemoteControl)
	return !remote
}

// Update advances the tank one tick according to its control variant
func (t *Tank) Update(w *World) {
	if t.Dead {
		return
	}
	switch c := t.Control.(type) {
	case *LocalControl:
		t.updateLocal(w, c)
	case *AIControl:
		t.updateAI(w, c)
	case *RemoteControl:
		t.updateRemote(c)
	}
}

func (t *Tank) updateLocal(w *World, c *LocalControl) {
	in := c.Intent
	t.VX = 0
	if w.Active {
		if in.Left {
			t.VX = -MoveSpeed
		}
		if in.Right {
			t.VX = MoveSpeed
		}
		t.jump(c, in.Jump)
	}
	t.TurretAngle = math.Atan2(in.AimY-(t.Y-turretPivot), in.AimX-t.X) / deg

	t.integrate()
	w.resolveBody(&t.Body)
}

// jump starts on ground contact and sustains while held, for a bounded
// number of ticks and only until the rise since launch reaches JumpMaxRise
func (t *Tank) jump(c *LocalControl, held bool) {
	if !held {
		c.jumpTicks = JumpSustainTicks
		return
	}
	if t.OnGround {
		t.VY = JumpForce
		t.OnGround = false
		c.jumpOriginY = t.Y
		c.jumpTicks = 0
		return
	}
	if t.VY < 0 && c.jumpTicks < JumpSustainTicks && math.Abs(t.Y-c.jumpOriginY) < JumpMaxRise {
		t.VY += JumpSustain
		c.jumpTicks++
	}
}

func (t *Tank) updateRemote(c *RemoteControl) {
	if Distance(t.X, t.Y, c.TargetX, c.TargetY) > RemoteSnapDist {
		t.X, t.Y = c.TargetX, c.TargetY
		return
	}
	t.X = Lerp(t.X, c.TargetX, RemoteLerp)
	t.Y = Lerp(t.Y, c.TargetY, RemoteLerp)
}

// SetTarget stores the latest authoritative position for a remote tank
func (t *Tank) SetTarget(x, y float64) {
	if c, ok := t.Control.(*RemoteControl); ok {
		c.TargetX, c.TargetY = x, y
	}
}

// AimPoint returns a cursor position that turns the turret to angle degrees
func (t *Tank) AimPoint(angle float64) (float64, float64) {
	rad := angle * deg
	return t.X + math.Cos(rad)*100, t.Y - turretPivot + math.Sin(rad)*100
}

// Muzzle returns where shells leave the barrel
func (t *Tank) Muzzle() (float64, float64) {
	rad := t.TurretAngle * deg
	return t.X + math.Cos(rad)*muzzleLength, t.Y - muzzleHeight + math.Sin(rad)*muzzleLength
}

// Fire launches the selected munition at power. It does nothing when the
// weapon is a utility, the match is inactive, the tank is dead or the
// weapon is empty.
func (t *Tank) Fire(w *World, power float64) bool {
	if !w.Active || t.Dead || !t.Weapon.Offensive() || !t.Ammo.Has(t.Weapon) {
		return false
	}
	x, y := t.Muzzle()
	owner := OwnerEnemy
	if t.IsLocal() {
		owner = OwnerPlayer
	}
	w.launch(x, y, t.TurretAngle, power, t.Weapon, t.Team, t.ID, owner)
	if t.IsLocal() {
		w.emit(Event{Kind: EventFire, TankID: t.ID, X: x, Y: y, Angle: t.TurretAngle, Power: power, Munition: t.Weapon})
	}
	if t.Ammo.Use(t.Weapon) {
		t.Weapon = MunitionStandard
	}
	return true
}

// SelectWeapon switches munitions when rounds are left
func (t *Tank) SelectWeapon(m Munition) bool {
	if !t.Ammo.Has(m) {
		return false
	}
	t.Weapon = m
	return true
}

// TakeDamage applies amount through the shield. Remote tanks are ignored
// because their health is owned elsewhere.
func (t *Tank) TakeDamage(w *World, amount float64, sourceID string) {
	if t.Dead || !w.Active || !t.Authoritative() {
		return
	}
	if t.Shield > 0 {
		t.Shield -= amount
		if t.Shield < 0 {
			t.HP += t.Shield
			t.Shield = 0
		}
	} else {
		t.HP -= amount
	}
	if t.IsLocal() {
		w.emit(Event{Kind: EventHit, TankID: t.ID, TargetID: sourceID, X: t.X, Y: t.Y, Damage: amount})
	}
	if t.HP <= 0 {
		t.HP = 0
		t.die(w, sourceID)
	}
}

func (t *Tank) die(w *World, killerID string) {
	t.Dead = true
	t.VX, t.VY = 0, 0

	switch {
	case t.IsAI():
		w.emit(Event{Kind: EventKill, TankID: t.ID, TargetID: killerID, X: t.X, Y: t.Y})
	case w.Networked:
		// The room decides lives and respawn.
		w.emit(Event{Kind: EventDeath, TankID: t.ID, TargetID: killerID, X: t.X, Y: t.Y})
	default:
		t.Lives--
		w.emit(Event{Kind: EventDeath, TankID: t.ID, TargetID: killerID, X: t.X, Y: t.Y})
		if t.Lives <= 0 {
			t.Eliminated = true
			w.emit(Event{Kind: EventEliminated, TankID: t.ID})
			return
		}
		id := t.ID
		w.Sched.After(RespawnDelayTicks, respawnKey(id), func() {
			tank := w.Tank(id)
			if tank == nil || !tank.Dead {
				return
			}
			x, y := w.spawnPoint(tank)
			tank.Respawn(x, y)
			w.emit(Event{Kind: EventRespawn, TankID: id, X: x, Y: y})
		})
	}
}

// Respawn brings the tank back at (x, y) with full health
func (t *Tank) Respawn(x, y float64) {
	t.Dead = false
	t.HP = t.MaxHP
	t.Shield = 0
	t.X, t.Y = x, y
	t.VX, t.VY = 0, 0
	t.OnGround = false
	if r, ok := t.Control.(*RemoteControl); ok {
		r.TargetX, r.TargetY = x, y
	}
}

// BuildPlatform turns a builder drag into a platform. The match must be
// active, the builder selected and the drag longer than minBuildLength.
func (w *World) BuildPlatform(t *Tank, x0, y0, x1, y1 float64) (*Platform, bool) {
	if !w.Active || t.Dead || t.Weapon != MunitionBuilder {
		return nil, false
	}
	length := Distance(x0, y0, x1, y1)
	if length <= minBuildLength {
		return nil, false
	}
	if x1 < x0 {
		x0, y0, x1, y1 = x1, y1, x0, y0
	}
	p := &Platform{
		ID:     NewDynamicPlatformID(),
		X:      x0,
		Y:      y0,
		Width:  length,
		Height: platformHeight,
		Angle:  math.Atan2(y1-y0, x1-x0) / deg,
		HP:     PlatformMaxHP,
		MaxHP:  PlatformMaxHP,
		Kind:   PlatformStandard,
	}
	// Networked worlds wait for the room to echo the platform back.
	if !w.Networked {
		w.AddPlatform(p)
	}
	w.emit(Event{Kind: EventPlatformBuilt, TankID: t.ID, TargetID: p.ID, Platform: p.Clone()})
	return p, true
}

func respawnKey(id string) string { return "respawn:" + id }
