package main

import (
	"math"

	"github.com/gillesie/tankwars-online/internal/protocol"
	"github.com/gillesie/tankwars-online/internal/reconcile"
	"github.com/gillesie/tankwars-online/internal/sim"
)

// pilot drives the own tank: walk toward the nearest enemy until a
// ballistic solution exists, then shoot on a fixed cadence
type pilot struct {
	power     float64
	fireEvery int
	cooldown  int
}

func newPilot(power float64, fireEvery int) *pilot {
	return &pilot{
		power:     sim.Clamp(power, sim.MinFirePower, sim.MaxFirePower),
		fireEvery: max(fireEvery, 1),
		cooldown:  fireEvery,
	}
}

// target returns the closest living tank of the other team
func target(s *reconcile.Session) *sim.Tank {
	var best *sim.Tank
	bestDist := math.Inf(1)
	for _, t := range s.World.Tanks {
		if t == s.Self || t.Dead || t.Team == s.Self.Team {
			continue
		}
		if d := math.Abs(t.X - s.Self.X); d < bestDist {
			best, bestDist = t, d
		}
	}
	return best
}

// next returns this tick's input and whether to pull the trigger
func (p *pilot) next(s *reconcile.Session) (sim.Intent, bool) {
	self := s.Self
	if self.Dead || s.Status != protocol.StatusPlaying {
		return sim.Intent{}, false
	}
	enemy := target(s)
	if enemy == nil {
		x, y := self.AimPoint(-90)
		return sim.Intent{AimX: x, AimY: y}, false
	}

	mx, my := self.Muzzle()
	speed := p.power * self.Weapon.Profile().SpeedScale
	angle, ok := sim.BallisticAngle(enemy.X-mx, enemy.Y-my, speed)
	if !ok {
		in := sim.Intent{AimX: enemy.X, AimY: enemy.Y, Right: enemy.X > self.X}
		in.Left = !in.Right
		return in, false
	}

	x, y := self.AimPoint(angle)
	in := sim.Intent{AimX: x, AimY: y}
	p.cooldown--
	if p.cooldown > 0 {
		return in, false
	}
	p.cooldown = p.fireEvery
	return in, true
}
