package filter

import "math/bits"

// MaxChaosLevels bounds the number of chaos bins the encoder may sweep.
const MaxChaosLevels = 16

// residualScore maps a residual byte to a small monotone magnitude score:
// zero scores zero, and small positive and small negative residuals (which
// wrap near 255) score the same.
var residualScore [256]uint8

// chaosTables[L-1] maps a summed neighbor score to a bin in [0, L).
var chaosTables [MaxChaosLevels][]uint8

func init() {
	for r := 0; r < 256; r++ {
		s := r
		if s > 128 {
			s = 256 - s
		}
		residualScore[r] = uint8(s)
	}
	for l := 1; l <= MaxChaosLevels; l++ {
		tab := make([]uint8, 257)
		for s := range tab {
			bin := bits.Len(uint(s))
			if bin > l-1 {
				bin = l - 1
			}
			tab[s] = uint8(bin)
		}
		chaosTables[l-1] = tab
	}
}

// ResidualScore returns the magnitude score of a residual byte.
func ResidualScore(r uint8) uint8 {
	return residualScore[r]
}

// Chaos models the per-channel context of one plane. It keeps one row of
// residual scores; before position x is overwritten, row[x] still holds the
// up neighbor while row[x-1] already holds the left neighbor, so a single
// row serves both lookups. Encoder and decoder must drive it identically.
type Chaos struct {
	table []uint8
	row   []uint8
}

// NewChaos creates a chaos model with the given level count over a plane of
// the given width. Levels must be in [1, MaxChaosLevels].
func NewChaos(levels, width int) *Chaos {
	return &Chaos{
		table: chaosTables[levels-1],
		row:   make([]uint8, width),
	}
}

// Reset clears the model for a fresh top-of-plane pass.
func (c *Chaos) Reset() {
	for i := range c.row {
		c.row[i] = 0
	}
}

// Get returns the chaos bin for position x of the current row.
func (c *Chaos) Get(x int) int {
	up := int(c.row[x])
	left := 0
	if x > 0 {
		left = int(c.row[x-1])
	}
	return int(c.table[left+up])
}

// Store records the residual produced at position x.
func (c *Chaos) Store(x int, residual uint8) {
	c.row[x] = residualScore[residual]
}

// StoreZero records a zero residual at position x; masked pixels, palette
// tiles and LZ-copied pixels all advance the model this way.
func (c *Chaos) StoreZero(x int) {
	c.row[x] = 0
}
