package sim

import "math"

const (
	AIDetectRange    = 1500.0
	AIFireTolerance  = 3.0   // degrees of aim error allowed when firing
	AITurretTurnRate = 2.0   // degrees per tick
	AIBaseCooldown   = 150   // ticks between shots at difficulty 0
	AIMinCooldown    = 40
	AIBasePower      = 14.0
	AIPreferredRange = 600.0 // stand-off distance for chasers
	AIBossRange      = 800.0
	AIRangeBand      = 150.0
	AIPatrolRadius   = 200.0
	AIPatrolSpeed    = 2.0
	AIChaseSpeed     = 2.5
	AIStrafeMin      = 60 // ticks before a strafe flip
	AIStrafeMax      = 180
	AIJumpMin        = 120
	AIJumpMax        = 360
	aiMaxJitter      = 8.0 // degrees at difficulty 1
)

// NewAIControl seeds an AI controller's timers from the world stream
func NewAIControl(w *World, difficulty int, b Behavior, homeX float64) *AIControl {
	c := &AIControl{
		Difficulty: difficulty,
		Behavior:   b,
		HomeX:      homeX,
		strafeDir:  1,
		moveTimer:  int(Range(&w.fx, AIStrafeMin, AIStrafeMax)),
		jumpTimer:  int(Range(&w.fx, AIJumpMin, AIJumpMax)),
		fireCD:     int(Range(&w.fx, 30, 90)),
	}
	if Chance(&w.fx, 0.5) {
		c.strafeDir = -1
	}
	return c
}

func (c *AIControl) cooldown() int {
	cd := AIBaseCooldown - c.Difficulty*10
	if c.Behavior == BehaviorBoss {
		cd /= 2
	}
	if cd < AIMinCooldown {
		cd = AIMinCooldown
	}
	return cd
}

func (c *AIControl) power() float64 {
	return Clamp(AIBasePower+float64(c.Difficulty)*0.5, MinFirePower, MaxFirePower)
}

func (c *AIControl) jitter() float64 {
	d := c.Difficulty
	if d < 1 {
		d = 1
	}
	return aiMaxJitter / float64(d)
}

func (t *Tank) updateAI(w *World, c *AIControl) {
	t.VX = 0
	if w.Active {
		target := w.nearestOpponent(t.X, t.Y, t.Team, AIDetectRange)
		t.aiMove(w, c, target)
		if target != nil {
			t.aiAim(w, c, target)
		}
	}
	t.integrate()
	w.resolveBody(&t.Body)
}

func (t *Tank) aiMove(w *World, c *AIControl, target *Tank) {
	if c.Behavior == BehaviorStatic {
		return
	}

	switch {
	case c.Behavior == BehaviorPatrol || target == nil:
		if t.X > c.HomeX+AIPatrolRadius {
			c.strafeDir = -1
		} else if t.X < c.HomeX-AIPatrolRadius {
			c.strafeDir = 1
		}
		t.VX = c.strafeDir * AIPatrolSpeed
	default:
		pref := AIPreferredRange - float64(c.Difficulty)*20
		if c.Behavior == BehaviorBoss {
			pref = AIBossRange
		}
		dx := target.X - t.X
		dist := math.Abs(dx)
		dir := math.Copysign(1, dx)
		switch {
		case dist > pref+AIRangeBand:
			t.VX = dir * AIChaseSpeed
		case dist < pref-AIRangeBand:
			t.VX = -dir * AIChaseSpeed
		default:
			c.moveTimer--
			if c.moveTimer <= 0 {
				c.strafeDir = -c.strafeDir
				c.moveTimer = int(Range(&w.fx, AIStrafeMin, AIStrafeMax))
			}
			t.VX = c.strafeDir * AIChaseSpeed * 0.5
		}
	}

	c.jumpTimer--
	if c.jumpTimer <= 0 {
		if t.OnGround {
			t.VY = JumpForce
			t.OnGround = false
		}
		c.jumpTimer = int(Range(&w.fx, AIJumpMin, AIJumpMax))
	}
}

// aiAim turns the turret toward a lead-corrected ballistic solution and
// fires once the error is inside AIFireTolerance and the cooldown is done
func (t *Tank) aiAim(w *World, c *AIControl, target *Tank) {
	power := c.power()
	ox, oy := t.X, t.Y-muzzleHeight
	tx, ty := target.X, target.Y-seekerAimOffset

	flight := math.Abs(tx-ox) / (power * math.Cos(math.Pi/4))
	tx += target.VX * flight

	desired, ok := BallisticAngle(tx-ox, ty-oy, power)
	if !ok {
		desired = 225
		if tx > ox {
			desired = 315
		}
	}

	diff := NormalizeDegrees(desired - t.TurretAngle)
	t.TurretAngle = NormalizeDegrees(t.TurretAngle + Clamp(diff, -AITurretTurnRate, AITurretTurnRate))

	if c.fireCD > 0 {
		c.fireCD--
		return
	}
	if math.Abs(diff) > AIFireTolerance {
		return
	}
	aim := t.TurretAngle
	t.TurretAngle += Range(&w.fx, -c.jitter(), c.jitter())
	if t.Fire(w, power) {
		c.fireCD = c.cooldown()
	}
	t.TurretAngle = aim
}

// BallisticAngle returns the low-arc launch angle in degrees (screen
// coordinates, y down) that lands a shell of speed v at offset (dx, dy)
// under Gravity. ok is false when the target is out of range.
func BallisticAngle(dx, dy, v float64) (float64, bool) {
	ax := math.Abs(dx)
	up := -dy
	v2 := v * v
	disc := v2*v2 - Gravity*(Gravity*ax*ax+2*up*v2)
	if disc < 0 || ax < 1e-9 {
		return 0, false
	}
	theta := math.Atan2(v2-math.Sqrt(disc), Gravity*ax)
	return math.Atan2(-math.Sin(theta), math.Copysign(math.Cos(theta), dx)) / deg, true
}
