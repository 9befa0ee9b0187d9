package sim

import "fmt"

// Munition is the closed set of weapon classes
type Munition uint8

const (
	MunitionStandard Munition = iota
	MunitionScatter
	MunitionLaser
	MunitionNuke
	MunitionSeeker
	MunitionCluster
	MunitionBuilder
	munitionCount
)

// Unlimited marks a munition that never runs out
const Unlimited = -1

const (
	SeekerTurnRate     = 0.1 // radians per tick
	SeekerSearchRadius = 2000.0
)

// MunitionProfile holds the physics and damage numbers for one munition
type MunitionProfile struct {
	Name           string
	Gravity        bool
	Wind           bool
	Homing         bool
	Offensive      bool
	SpeedScale     float64
	Radius         float64
	BlastRadius    float64
	Damage         float64
	PlatformDamage float64
	Shells         int
	Spread         float64 // degrees between shells
}

var munitionProfiles = [munitionCount]MunitionProfile{
	MunitionStandard: {Name: "standard", Gravity: true, Wind: true, Offensive: true, SpeedScale: 1, Radius: 3, BlastRadius: 80, Damage: 20, PlatformDamage: 25, Shells: 1},
	MunitionScatter:  {Name: "scatter", Gravity: true, Wind: true, Offensive: true, SpeedScale: 1, Radius: 3, BlastRadius: 80, Damage: 20, PlatformDamage: 25, Shells: 3, Spread: 6},
	MunitionLaser:    {Name: "laser", Wind: true, Offensive: true, SpeedScale: 2, Radius: 3, BlastRadius: 80, Damage: 30, PlatformDamage: 25, Shells: 1},
	MunitionNuke:     {Name: "nuke", Gravity: true, Wind: true, Offensive: true, SpeedScale: 1, Radius: 6, BlastRadius: 300, Damage: 100, PlatformDamage: 100, Shells: 1},
	MunitionSeeker:   {Name: "seeker", Homing: true, Offensive: true, SpeedScale: 0.5, Radius: 3, BlastRadius: 80, Damage: 20, PlatformDamage: 25, Shells: 1},
	MunitionCluster:  {Name: "cluster", Gravity: true, Wind: true, Offensive: true, SpeedScale: 1, Radius: 3, BlastRadius: 100, Damage: 15, PlatformDamage: 25, Shells: 1},
	MunitionBuilder:  {Name: "builder"},
}

// Profile returns the munition's numbers
func (m Munition) Profile() MunitionProfile {
	if m >= munitionCount {
		return munitionProfiles[MunitionStandard]
	}
	return munitionProfiles[m]
}

// Offensive reports whether firing spawns projectiles
func (m Munition) Offensive() bool {
	return m < munitionCount && munitionProfiles[m].Offensive
}

func (m Munition) String() string {
	if m >= munitionCount {
		return fmt.Sprintf("munition(%d)", m)
	}
	return munitionProfiles[m].Name
}

// MarshalText encodes the munition by name
func (m Munition) MarshalText() ([]byte, error) {
	if m >= munitionCount {
		return nil, fmt.Errorf("unknown munition %d", m)
	}
	return []byte(m.String()), nil
}

// UnmarshalText decodes a munition name
func (m *Munition) UnmarshalText(b []byte) error {
	v, err := ParseMunition(string(b))
	if err != nil {
		return err
	}
	*m = v
	return nil
}

// ParseMunition looks a munition up by name
func ParseMunition(name string) (Munition, error) {
	for i, p := range munitionProfiles {
		if p.Name == name {
			return Munition(i), nil
		}
	}
	return MunitionStandard, fmt.Errorf("unknown munition %q", name)
}

// Munitions lists every munition in order
func Munitions() []Munition {
	out := make([]Munition, munitionCount)
	for i := range out {
		out[i] = Munition(i)
	}
	return out
}

// Ammo is the per-munition round count; Unlimited never decrements
type Ammo [munitionCount]int

// DefaultAmmo is the standard starting loadout
func DefaultAmmo() Ammo {
	return Ammo{
		MunitionStandard: Unlimited,
		MunitionScatter:  5,
		MunitionLaser:    3,
		MunitionNuke:     0,
		MunitionSeeker:   3,
		MunitionCluster:  0,
		MunitionBuilder:  Unlimited,
	}
}

// LoadedAmmo is the abundant starting loadout
func LoadedAmmo() Ammo {
	a := DefaultAmmo()
	for m := range a {
		if a[m] != Unlimited {
			a[m] = 99
		}
	}
	return a
}

// Has reports whether at least one round is left
func (a *Ammo) Has(m Munition) bool {
	return m < munitionCount && (a[m] == Unlimited || a[m] > 0)
}

// Use spends one round and reports whether the munition is now empty
func (a *Ammo) Use(m Munition) bool {
	if m >= munitionCount || a[m] == Unlimited {
		return false
	}
	if a[m] > 0 {
		a[m]--
	}
	return a[m] == 0
}

// Add gives n rounds unless the munition is unlimited
func (a *Ammo) Add(m Munition, n int) {
	if m >= munitionCount || a[m] == Unlimited {
		return
	}
	a[m] += n
}

// Set overrides the round count
func (a *Ammo) Set(m Munition, n int) {
	if m < munitionCount {
		a[m] = n
	}
}
