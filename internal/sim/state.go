package sim

import "github.com/gillesie/tankwars-online/internal/protocol"

// ToState converts to protocol state
func (t *Tank) ToState() protocol.PlayerState {
	return protocol.PlayerState{
		ID:          t.ID,
		Name:        t.Name,
		Team:        t.Team,
		X:           round1(t.X),
		Y:           round1(t.Y),
		Angle:       t.Angle,
		TurretAngle: round1(t.TurretAngle),
		HP:          t.HP,
		MaxHP:       t.MaxHP,
		Shield:      t.Shield,
		Lives:       t.Lives,
		Dead:        t.Dead,
	}
}

// Report builds the owning client's kinematic report
func (t *Tank) Report() protocol.StateReport {
	return protocol.StateReport{
		X:           round1(t.X),
		Y:           round1(t.Y),
		Angle:       t.Angle,
		TurretAngle: round1(t.TurretAngle),
		HP:          t.HP,
		Shield:      t.Shield,
	}
}

// ToState converts to protocol state
func (p *Platform) ToState() protocol.PlatformState {
	return protocol.PlatformState{
		ID:     p.ID,
		X:      p.X,
		Y:      p.Y,
		Width:  p.Width,
		Height: p.Height,
		Angle:  p.Angle,
		HP:     p.HP,
		MaxHP:  p.MaxHP,
		Kind:   p.Kind.String(),
	}
}

// PlatformFromState rebuilds a platform sent over the wire
func PlatformFromState(s protocol.PlatformState) *Platform {
	p := &Platform{
		ID:     s.ID,
		X:      s.X,
		Y:      s.Y,
		Width:  s.Width,
		Height: s.Height,
		Angle:  s.Angle,
		HP:     s.HP,
		MaxHP:  s.MaxHP,
	}
	if s.Kind == PlatformUnbreakable.String() {
		p.Kind = PlatformUnbreakable
	}
	if p.Height <= 0 {
		p.Height = platformHeight
	}
	return p
}

// ToState converts to protocol state
func (c *Crate) ToState() protocol.CrateState {
	return protocol.CrateState{ID: c.ID, X: round1(c.X), Y: round1(c.Y), Kind: c.Kind.String()}
}

// CrateFromState rebuilds a crate; unknown kinds fall back to repair
func CrateFromState(s protocol.CrateState) *Crate {
	c := &Crate{ID: s.ID, X: s.X, Y: s.Y}
	_ = c.Kind.UnmarshalText([]byte(s.Kind))
	return c
}

// ToState converts to protocol state
func (p *Plane) ToState() protocol.PlaneState {
	return protocol.PlaneState{ID: p.ID, X: round1(p.X), Y: round1(p.Y), VX: p.VX, HP: p.HP}
}

// PlaneFromState rebuilds a plane
func PlaneFromState(s protocol.PlaneState) *Plane {
	return &Plane{ID: s.ID, X: s.X, Y: s.Y, VX: s.VX, HP: s.HP}
}
