package sim

import (
	"math"
	"strconv"
	"strings"

	"github.com/go-gl/mathgl/mgl64"
	"github.com/google/uuid"
)

const (
	staticPlatformPrefix  = "static_"
	dynamicPlatformPrefix = "dyn_"
	minBuildLength        = 20.0
)

// PlatformKind separates breakable from indestructible platforms
type PlatformKind uint8

const (
	PlatformStandard PlatformKind = iota
	PlatformUnbreakable
)

func (k PlatformKind) String() string {
	if k == PlatformUnbreakable {
		return "unbreakable"
	}
	return "standard"
}

// Platform is a tilted rectangle anchored at its top-left corner (X, Y)
// and rotated by Angle degrees around that corner.
type Platform struct {
	ID     string
	X, Y   float64
	Width  float64
	Height float64
	Angle  float64 // degrees
	HP     float64
	MaxHP  float64
	Kind   PlatformKind
}

// StaticPlatformID names the i-th generated platform
func StaticPlatformID(i int) string {
	return staticPlatformPrefix + strconv.Itoa(i)
}

// NewDynamicPlatformID names a platform built during a match
func NewDynamicPlatformID() string {
	return dynamicPlatformPrefix + uuid.NewString()[:8]
}

// IsStaticPlatform reports whether id came from the generator
func IsStaticPlatform(id string) bool {
	return strings.HasPrefix(id, staticPlatformPrefix)
}

// Indestructible reports whether damage is ignored
func (p *Platform) Indestructible() bool {
	return p.Kind == PlatformUnbreakable
}

// SurfaceY returns the height of the top edge at world x
func (p *Platform) SurfaceY(x float64) float64 {
	return p.Y + (x-p.X)*math.Tan(p.Angle*deg)
}

// SpansX reports whether x lies within the platform's horizontal extent
func (p *Platform) SpansX(x float64) bool {
	return x >= p.X && x <= p.X+p.Width
}

// Local rotates a world point into the platform's unrotated frame
func (p *Platform) Local(x, y float64) mgl64.Vec2 {
	return mgl64.Rotate2D(-p.Angle * deg).Mul2x1(mgl64.Vec2{x - p.X, y - p.Y})
}

// Contains reports whether a world point is inside the rotated box
func (p *Platform) Contains(x, y float64) bool {
	l := p.Local(x, y)
	return l.X() >= 0 && l.X() <= p.Width && l.Y() >= 0 && l.Y() <= p.Height
}

// Damage applies amount and reports whether the platform is now destroyed
func (p *Platform) Damage(amount float64) bool {
	if p.Indestructible() {
		return false
	}
	p.HP -= amount
	return p.HP <= 0
}

// Clone returns a copy
func (p *Platform) Clone() *Platform {
	c := *p
	return &c
}
