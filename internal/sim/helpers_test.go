package sim

import "math"

// flatGeometry builds a level with constant ground height and no wind
func flatGeometry(width, ground float64) *Geometry {
	h := HeightField{Width: width, Spacing: SegmentSize}
	for x := 0.0; x <= width; x += SegmentSize {
		h.Points = append(h.Points, Point{X: x, Y: ground})
	}
	return &Geometry{Profile: Profile{Width: width}, Terrain: h}
}

func newFlatWorld() *World {
	w := NewWorld(Config{Geometry: flatGeometry(TerrainWidth, 1200), FXSeed: 1})
	w.Active = true
	return w
}

func stepUntilQuiet(w *World, max int) {
	for i := 0; i < max && len(w.Projectiles) > 0; i++ {
		w.Step()
	}
}

func cosDeg(a float64) float64 { return math.Cos(a * deg) }
func sinDeg(a float64) float64 { return math.Sin(a * deg) }
