package sim

import "fmt"

const (
	BlockSize       = 30.0
	BlockHP         = 30.0
	blockDropHeight = 400.0
)

var blockPalette = []string{"#8d6e63", "#a1887f", "#795548", "#9e9e9e", "#78909c"}

// Block is a free-falling square that stacks on terrain, platforms and
// other blocks.
type Block struct {
	ID      string
	X, Y    float64 // top-left corner
	Size    float64
	VY      float64
	HP      float64
	Color   string
	Resting bool
}

// Damage applies amount and reports whether the block is now destroyed
func (b *Block) Damage(amount float64) bool {
	b.HP -= amount
	return b.HP <= 0
}

// Contains reports whether a world point is inside the block
func (b *Block) Contains(x, y float64) bool {
	return x >= b.X && x <= b.X+b.Size && y >= b.Y && y <= b.Y+b.Size
}

// CenterX returns the horizontal centre
func (b *Block) CenterX() float64 { return b.X + b.Size/2 }

// Clone returns a copy
func (b *Block) Clone() *Block {
	c := *b
	return &c
}

// BlockID names block n of structure s
func BlockID(s, n int) string {
	return fmt.Sprintf("block_%d_%d", s, n)
}

// placeStructures drops pyramids and towers above the terrain. Shapes are
// fixed here; resting positions come from the physics step.
func placeStructures(rng *uint32, terrain *HeightField, destroyed DestroyedSet) []*Block {
	var out []*Block
	count := 3 + Intn(rng, 3)
	for s := 0; s < count; s++ {
		pyramid := Next(rng) < 0.5
		cx := Range(rng, 600, terrain.Width-600)
		color := blockPalette[Intn(rng, len(blockPalette))]
		top := terrain.HeightAt(cx) - blockDropHeight

		n := 0
		add := func(x, y float64) {
			id := BlockID(s, n)
			n++
			if destroyed.Has(id) {
				return
			}
			out = append(out, &Block{ID: id, X: x, Y: y, Size: BlockSize, HP: BlockHP, Color: color})
		}

		if pyramid {
			base := 3 + Intn(rng, 3)
			left := cx - float64(base)*BlockSize/2
			for row := 0; row < base; row++ {
				width := base - row
				rowLeft := left + float64(row)*BlockSize/2
				y := top - float64(row)*BlockSize
				for col := 0; col < width; col++ {
					add(rowLeft+float64(col)*BlockSize, y)
				}
			}
			continue
		}

		cols := 2 + Intn(rng, 2)
		left := cx - float64(cols)*BlockSize/2
		for col := 0; col < cols; col++ {
			height := 2 + Intn(rng, 4)
			for row := 0; row < height; row++ {
				add(left+float64(col)*BlockSize, top-float64(row)*BlockSize)
			}
		}
	}
	return out
}
