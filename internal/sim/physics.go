package sim

import "math"

// Per-tick kinematics
const (
	Gravity          = 0.4
	JumpForce        = -10.0
	JumpSustain      = -0.5
	JumpSustainTicks = 15    // max ticks the sustain can be held
	JumpMaxRise      = 200.0 // sustain stops past this rise since launch
	MoveSpeed        = 4.0
	EdgeMargin       = 20.0
	TankRestOffset   = 10.0 // distance from Y to the ground contact
	TankHalfWidth    = 15.0
	TankTopOffset    = 15.0

	platformCatchAbove = 25.0
	platformCatchBelow = 10.0
	landingSlack       = 1.0
	contactEpsilon     = 1e-6
)

// Body is the kinematic state shared by tanks
type Body struct {
	X, Y     float64
	VX, VY   float64
	Angle    float64 // body angle in radians, follows the ground
	OnGround bool
	prevY    float64
}

// integrate applies gravity then velocity
func (b *Body) integrate() {
	b.prevY = b.Y
	b.VY += Gravity
	b.X += b.VX
	b.Y += b.VY
}

// resolveBody pushes a tank body out of terrain, platforms and blocks
func (w *World) resolveBody(b *Body) {
	b.X = Clamp(b.X, EdgeMargin, w.Width()-EdgeMargin)
	b.OnGround = false

	terrain := &w.Geo.Terrain
	floor := terrain.HeightAt(b.X)
	if b.Y >= floor-TankRestOffset {
		b.Y = floor - TankRestOffset
		b.VY = 0
		b.OnGround = true
		b.Angle = terrain.SlopeAt(b.X)
	}

	for _, p := range w.Geo.Platforms {
		if !p.SpansX(b.X) || b.VY < 0 {
			continue
		}
		surf := p.SurfaceY(b.X)
		if b.Y > surf-platformCatchAbove && b.Y < surf+platformCatchBelow {
			b.Y = surf - TankRestOffset
			b.VY = 0
			b.OnGround = true
			b.Angle = p.Angle * deg
		}
	}

	w.resolveBodyBlocks(b)
}

func (w *World) resolveBodyBlocks(b *Body) {
	if len(w.Geo.Blocks) == 0 {
		return
	}
	w.queryBuf = w.grid.QueryBuf(b.X-TankHalfWidth, b.Y-TankTopOffset, b.X+TankHalfWidth, b.Y+TankRestOffset, w.queryBuf[:0])
	for _, idx := range w.queryBuf {
		if idx >= len(w.Geo.Blocks) {
			continue
		}
		blk := w.Geo.Blocks[idx]
		if blk.HP <= 0 {
			continue
		}
		left, right := b.X-TankHalfWidth, b.X+TankHalfWidth
		top, bottom := b.Y-TankTopOffset, b.Y+TankRestOffset
		ox := math.Min(right, blk.X+blk.Size) - math.Max(left, blk.X)
		oy := math.Min(bottom, blk.Y+blk.Size) - math.Max(top, blk.Y)
		if ox <= contactEpsilon || oy <= contactEpsilon {
			continue
		}

		prevBottom := b.prevY + TankRestOffset
		landing := b.VY >= 0 && prevBottom <= blk.Y+landingSlack
		switch {
		case landing || (oy <= ox && (top+bottom)/2 < blk.Y+blk.Size/2):
			b.Y = blk.Y - TankRestOffset
			b.VY = 0
			b.OnGround = true
			b.Angle = 0
		case oy <= ox:
			b.Y += oy
			if b.VY < 0 {
				b.VY = 0
			}
		case b.X < blk.CenterX():
			b.X -= ox
			b.VX = 0
		default:
			b.X += ox
			b.VX = 0
		}
	}
}

// stepBlocks settles every block under gravity. Blocks are processed in
// generation order, which is bottom row first for each structure.
func (w *World) stepBlocks() {
	terrain := &w.Geo.Terrain
	w.indexBlocks()
	for i, b := range w.Geo.Blocks {
		prevBottom := b.Y + b.Size
		b.VY += Gravity
		b.Y += b.VY
		b.Resting = false
		cx := b.CenterX()

		if floor := terrain.HeightAt(cx); b.Y+b.Size >= floor {
			b.Y = floor - b.Size
			b.VY = 0
			b.Resting = true
		}

		for _, p := range w.Geo.Platforms {
			if !p.SpansX(cx) {
				continue
			}
			surf := p.SurfaceY(cx)
			if prevBottom <= surf+landingSlack && b.Y+b.Size >= surf {
				b.Y = surf - b.Size
				b.VY = 0
				b.Resting = true
			}
		}

		w.queryBuf = w.grid.QueryBuf(b.X, b.Y, b.X+b.Size, b.Y+b.Size, w.queryBuf[:0])
		for _, j := range w.queryBuf {
			if j == i || j >= len(w.Geo.Blocks) {
				continue
			}
			o := w.Geo.Blocks[j]
			if o.HP <= 0 {
				continue
			}
			ox := math.Min(b.X+b.Size, o.X+o.Size) - math.Max(b.X, o.X)
			oy := math.Min(b.Y+b.Size, o.Y+o.Size) - math.Max(b.Y, o.Y)
			if ox <= contactEpsilon || oy <= contactEpsilon {
				continue
			}
			landing := prevBottom <= o.Y+landingSlack
			switch {
			case landing || (oy <= ox && b.Y < o.Y):
				b.Y = o.Y - b.Size
				b.VY = 0
				b.Resting = true
			case oy <= ox:
				// the block above resolves against this one
			case b.X < o.X:
				b.X -= ox
			default:
				b.X += ox
			}
		}
	}
}

func (w *World) indexBlocks() {
	w.grid.Clear()
	for i, b := range w.Geo.Blocks {
		// Index the swept box so fast falling blocks are still found.
		w.grid.InsertRect(b.X, b.Y, b.X+b.Size, b.Y+b.Size+math.Max(b.VY+Gravity, 0), i)
	}
}
