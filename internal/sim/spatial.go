package sim

import "math"

const (
	SpatialCellSize = 60.0 // 2x BlockSize
	spatialOriginY  = -1000.0
)

// SpatialGrid buckets block indices for broad-phase queries. Cells outside
// the grid clamp to the border, so off-map entities still land somewhere.
type SpatialGrid struct {
	cols, rows int
	cells      [][]int
}

// NewSpatialGrid sizes a grid for a level of the given width
func NewSpatialGrid(width float64) *SpatialGrid {
	cols := int(math.Ceil(width/SpatialCellSize)) + 1
	rows := int(math.Ceil((VoidHeight-spatialOriginY)/SpatialCellSize)) + 1
	return &SpatialGrid{cols: cols, rows: rows, cells: make([][]int, cols*rows)}
}

// Clear resets all cells (keeps allocated capacity)
func (g *SpatialGrid) Clear() {
	for i := range g.cells {
		g.cells[i] = g.cells[i][:0]
	}
}

func (g *SpatialGrid) cellRange(minX, minY, maxX, maxY float64) (int, int, int, int) {
	clampCol := func(v float64) int {
		c := int(math.Floor(v / SpatialCellSize))
		if c < 0 {
			return 0
		}
		if c >= g.cols {
			return g.cols - 1
		}
		return c
	}
	clampRow := func(v float64) int {
		r := int(math.Floor((v - spatialOriginY) / SpatialCellSize))
		if r < 0 {
			return 0
		}
		if r >= g.rows {
			return g.rows - 1
		}
		return r
	}
	return clampCol(minX), clampRow(minY), clampCol(maxX), clampRow(maxY)
}

// InsertRect adds idx to every cell overlapping the rectangle
func (g *SpatialGrid) InsertRect(minX, minY, maxX, maxY float64, idx int) {
	c0, r0, c1, r1 := g.cellRange(minX, minY, maxX, maxY)
	for r := r0; r <= r1; r++ {
		for c := c0; c <= c1; c++ {
			i := r*g.cols + c
			g.cells[i] = append(g.cells[i], idx)
		}
	}
}

// QueryBuf appends the indices of cells overlapping the rectangle to buf,
// without duplicates, and returns the extended slice
func (g *SpatialGrid) QueryBuf(minX, minY, maxX, maxY float64, buf []int) []int {
	start := len(buf)
	c0, r0, c1, r1 := g.cellRange(minX, minY, maxX, maxY)
	for r := r0; r <= r1; r++ {
		for c := c0; c <= c1; c++ {
		next:
			for _, idx := range g.cells[r*g.cols+c] {
				for _, seen := range buf[start:] {
					if seen == idx {
						continue next
					}
				}
				buf = append(buf, idx)
			}
		}
	}
	return buf
}
