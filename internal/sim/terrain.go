package sim

import (
	"math"
	"sort"
)

const (
	WorldHeight   = 1500.0
	TerrainWidth  = 6000.0 // default versus map width
	SegmentSize   = 20.0   // height-field sample spacing
	VoidHeight    = WorldHeight + 1000
	baseAmplitude = 150.0

	platformCount     = 25
	platformStartX    = 400.0
	platformEndMargin = 500.0
	platformHeight    = 20.0
	PlatformMaxHP     = 200.0
	unbreakableChance = 0.2

	campaignStartFlat = 600.0
	bossArenaLength   = 1500.0
	pitThreshold      = 0.92
	pitDepth          = 120.0
)

// ProfileMode selects the height-field rules
type ProfileMode int

const (
	ProfileDefault ProfileMode = iota
	ProfileCampaign
	ProfileBossArena
)

// Profile describes the level a geometry is generated for
type Profile struct {
	Width float64
	Mode  ProfileMode
}

// DefaultProfile is the versus and waves map
func DefaultProfile() Profile {
	return Profile{Width: TerrainWidth, Mode: ProfileDefault}
}

// Point is a height-field sample
type Point struct {
	X, Y float64
}

// HeightField is the sampled ground profile. Y grows downward.
type HeightField struct {
	Width   float64
	Spacing float64
	Points  []Point
}

// HeightAt interpolates the ground height at x. Outside [0, Width] it
// returns VoidHeight so anything there falls through.
func (h *HeightField) HeightAt(x float64) float64 {
	if x < 0 || x > h.Width || len(h.Points) == 0 {
		return VoidHeight
	}
	i := int(x / h.Spacing)
	if i >= len(h.Points)-1 {
		return h.Points[len(h.Points)-1].Y
	}
	p1 := h.Points[i]
	p2 := h.Points[i+1]
	t := (x - p1.X) / (p2.X - p1.X)
	return p1.Y + t*(p2.Y-p1.Y)
}

// SlopeAt returns the ground angle in radians at x
func (h *HeightField) SlopeAt(x float64) float64 {
	return math.Atan2(h.HeightAt(x+10)-h.HeightAt(x-10), 20)
}

// Geometry is everything the generator produces for one level
type Geometry struct {
	Seed      uint32
	Profile   Profile
	Terrain   HeightField
	Platforms []*Platform
	Blocks    []*Block
	Wind      float64
}

// DestroyedSet holds ids of geometry removed earlier in a match
type DestroyedSet map[string]struct{}

// NewDestroyedSet builds a set from id slices
func NewDestroyedSet(ids ...[]string) DestroyedSet {
	s := make(DestroyedSet)
	for _, list := range ids {
		for _, id := range list {
			s[id] = struct{}{}
		}
	}
	return s
}

// Has reports whether id was destroyed
func (s DestroyedSet) Has(id string) bool {
	_, ok := s[id]
	return ok
}

// IDs returns the ids sorted
func (s DestroyedSet) IDs() []string {
	out := make([]string, 0, len(s))
	for id := range s {
		out = append(out, id)
	}
	sort.Strings(out)
	return out
}

// Generate builds terrain, platforms and blocks from the stream in rng.
// Destroyed ids are skipped after their draws are consumed, so the rest of
// the level is identical to what the other participants generated.
func Generate(rng *uint32, profile Profile, destroyed DestroyedSet) *Geometry {
	if profile.Width <= 0 {
		profile.Width = TerrainWidth
	}
	g := &Geometry{
		Seed:    *rng,
		Profile: profile,
		Terrain: buildHeightField(profile),
	}
	g.Platforms = placePlatforms(rng, &g.Terrain, destroyed)
	g.Blocks = placeStructures(rng, &g.Terrain, destroyed)
	g.Wind = Range(rng, -0.02, 0.02)
	return g
}

// GenerateSeeded is Generate with a fresh stream started at seed
func GenerateSeeded(seed uint32, profile Profile, destroyed DestroyedSet) *Geometry {
	state := seed
	return Generate(&state, profile, destroyed)
}

func buildHeightField(profile Profile) HeightField {
	n := int(profile.Width/SegmentSize) + 1
	h := HeightField{Width: profile.Width, Spacing: SegmentSize, Points: make([]Point, 0, n)}
	for i := 0; i < n; i++ {
		x := float64(i) * SegmentSize
		h.Points = append(h.Points, Point{X: x, Y: sampleHeight(x, profile)})
	}
	return h
}

func sampleHeight(x float64, profile Profile) float64 {
	base := WorldHeight * 0.8
	switch profile.Mode {
	case ProfileCampaign, ProfileBossArena:
		if x < campaignStartFlat {
			return base
		}
		if profile.Mode == ProfileBossArena && x > profile.Width-bossArenaLength {
			return base
		}
		y := base + math.Sin(x*0.002)*baseAmplitude*0.5 + math.Sin(x*0.01)*baseAmplitude*0.15
		if profile.Mode == ProfileCampaign && x < profile.Width-campaignStartFlat &&
			math.Sin(x*0.004) > pitThreshold {
			y += pitDepth
		}
		return y
	default:
		return base + math.Sin(x*0.002)*baseAmplitude + math.Sin(x*0.01)*(baseAmplitude*0.3*1.1)
	}
}

func placePlatforms(rng *uint32, terrain *HeightField, destroyed DestroyedSet) []*Platform {
	var out []*Platform
	currentX := platformStartX
	for i := 0; i < platformCount; i++ {
		w := Range(rng, 100, 600)
		x := currentX + Range(rng, 100, 400)
		y := terrain.HeightAt(x) - Range(rng, 100, 300)
		if y < 0 {
			y = 100
		}
		unbreakable := Next(rng) > 1-unbreakableChance
		angle := Range(rng, -15, 15)

		id := StaticPlatformID(i)
		if !destroyed.Has(id) {
			p := &Platform{
				ID:     id,
				X:      x,
				Y:      y,
				Width:  w,
				Height: platformHeight,
				Angle:  angle,
				HP:     PlatformMaxHP,
				MaxHP:  PlatformMaxHP,
				Kind:   PlatformStandard,
			}
			if unbreakable {
				p.Kind = PlatformUnbreakable
			}
			out = append(out, p)
		}

		currentX = x + w
		if currentX > terrain.Width-platformEndMargin {
			break
		}
	}
	return out
}
