// Package mono implements the tiled monochrome sub-compressor used by the
// GCIF codec for the alpha plane, the spatial/color filter tile maps, and,
// recursively, for its own tile map.
//
// The writer is driven in two passes over the identical pixel sequence:
// an Add pass that gathers statistics and a Write pass that emits bits.
// The reader consumes the same sequence. Tile filters are emitted lazily,
// but always left to right within a tile row: when a tile is first needed,
// any unseen unmasked tiles to its left are emitted first, so encoder and
// decoder agree on a raster emission order regardless of mask shape.
package mono

import (
	"errors"

	"github.com/mrjoshuak/go-gcif/entropy"
	"github.com/mrjoshuak/go-gcif/filter"
)

// Mono codec errors.
var (
	// ErrBadParams is returned for parameters outside the allowed ranges.
	ErrBadParams = errors.New("mono: parameters out of range")

	// ErrCorrupt is returned when decoding hits an invalid filter index or
	// a truncated stream.
	ErrCorrupt = errors.New("mono: corrupt bitstream")
)

const (
	// MaskTile marks a tile whose elements are all masked; it emits no
	// filter bits and no residual bits.
	MaskTile = 255

	todoTile = 0

	// MaxPalette bounds the palette-filter set; the count is a 4-bit wire
	// field.
	MaxPalette = 15

	// MaxFilters bounds the normal filter set; the count is a 5-bit wire
	// field.
	MaxFilters = 32

	// RecursiveThresh is the tile count at or above which the tile map is
	// itself handed to a recursive writer.
	RecursiveThresh = 256

	maxPasses    = 4
	maxRowPasses = 4

	// Row filter codes for the non-recursive tile map path.
	rfNoop  = 0
	rfA     = 1
	rfB     = 2
	rfC     = 3
	rfCount = 4
)

// Params configures a Writer.
type Params struct {
	Data   []byte // Width*Height grid, row-major
	Width  int
	Height int

	// NumSyms is the alphabet size; unmasked grid values must be below it.
	NumSyms int

	// MinBits and MaxBits bound the tile size sweep; tiles are square with
	// side 1<<bits.
	MinBits, MaxBits int

	// Mask reports elements supplied externally; nil means nothing masked.
	Mask func(x, y int) bool

	// SympalThresh is the tile-coverage fraction a uniform value needs to
	// earn a palette filter.
	SympalThresh float64

	// FilterThresh is the tile-coverage fraction at which filter selection
	// stops adding normal filters.
	FilterThresh float64

	// RevisitCount bounds how many tiles the revisit passes re-decide.
	RevisitCount int
}

// withDefaults fills the tuning knobs of p with the shipping defaults.
func (p Params) withDefaults() Params {
	if p.SympalThresh == 0 {
		p.SympalThresh = 0.6
	}
	if p.FilterThresh == 0 {
		p.FilterThresh = 0.9
	}
	if p.RevisitCount == 0 {
		p.RevisitCount = 4096
	}
	if p.Mask == nil {
		p.Mask = func(x, y int) bool { return false }
	}
	return p
}

// Writer compresses one byte grid.
type Writer struct {
	params Params

	// Chosen tiling.
	tileBits  int
	tileSize  int
	tilesX    int
	tilesY    int
	tileCount int

	// pdata is the prediction grid: Data with masked elements zeroed, so
	// predictions match what the decoder reconstructs.
	pdata []byte

	tiles         []uint8 // per-tile filter index, MaskTile when fully masked
	normalIndices []int   // catalog ordinals of the chosen normal filters
	normalFilters []filter.Mono
	sympal        []uint8 // palette filter values
	residuals     []byte

	rowFilters    []uint8
	rowFilterCost uint32
	chaosLevels   int
	chaosCost     uint32
	recursive     *Writer
	estimate      uint32

	// Emission state, shared shape between the Add and Write passes.
	chaos      *filter.Chaos
	seen       []bool
	encoders   []*entropy.Encoder
	rowEncoder *entropy.Encoder
	curTileRow int
}

// filterCount is the combined normal+palette filter space the tile map
// indexes into.
func (w *Writer) filterCount() int {
	return len(w.normalIndices) + len(w.sympal)
}

// NewWriter designs the compression for the grid described by p: tiling,
// palette and normal filter sets, per-tile choices, row filters or a
// recursive tile-map writer, and the chaos level. No bits are emitted yet.
func NewWriter(p Params) (*Writer, error) {
	p = p.withDefaults()
	if p.NumSyms < 1 || p.NumSyms > 256 || p.Width < 1 || p.Height < 1 {
		return nil, ErrBadParams
	}
	if p.MinBits < 1 || p.MaxBits > 8 || p.MinBits > p.MaxBits {
		return nil, ErrBadParams
	}
	if len(p.Data) < p.Width*p.Height {
		return nil, ErrBadParams
	}

	var best *Writer
	for bits := p.MinBits; bits <= p.MaxBits; bits++ {
		w := &Writer{params: p}
		w.design(bits)
		if best == nil || w.estimate < best.estimate {
			best = w
		}
	}
	return best, nil
}

func (w *Writer) design(bits int) {
	p := w.params
	w.tileBits = bits
	w.tileSize = 1 << bits
	w.tilesX = (p.Width + w.tileSize - 1) >> bits
	w.tilesY = (p.Height + w.tileSize - 1) >> bits
	w.tileCount = w.tilesX * w.tilesY
	w.tiles = make([]uint8, w.tileCount)
	w.residuals = make([]byte, p.Width*p.Height)

	w.pdata = make([]byte, p.Width*p.Height)
	copy(w.pdata, p.Data[:len(w.pdata)])
	for y := 0; y < p.Height; y++ {
		for x := 0; x < p.Width; x++ {
			if p.Mask(x, y) {
				w.pdata[y*p.Width+x] = 0
			}
		}
	}

	w.maskTiles()
	provisional := w.designPaletteFilters()
	w.designFilters(provisional)
	w.designPaletteTiles(provisional)
	w.designTiles()
	w.computeResiduals()
	w.designRowFilters()
	w.recurseCompress()
	w.designChaos()

	w.estimate = w.chaosCost + w.mapCost() + uint32(len(w.normalIndices)*7+len(w.sympal)*8+16)*16
}

// mapCost is the estimated cost of the tile map itself.
func (w *Writer) mapCost() uint32 {
	if w.recursive != nil {
		return w.recursive.estimate
	}
	return w.rowFilterCost + uint32(2*w.tilesY)*16
}

func (w *Writer) maskTiles() {
	p := w.params
	for ty := 0; ty < w.tilesY; ty++ {
		for tx := 0; tx < w.tilesX; tx++ {
			masked := true
			for y := ty << w.tileBits; masked && y < min((ty+1)<<w.tileBits, p.Height); y++ {
				for x := tx << w.tileBits; x < min((tx+1)<<w.tileBits, p.Width); x++ {
					if !p.Mask(x, y) {
						masked = false
						break
					}
				}
			}
			if masked {
				w.tiles[ty*w.tilesX+tx] = MaskTile
			} else {
				w.tiles[ty*w.tilesX+tx] = todoTile
			}
		}
	}
}

// forEachTileElement visits the unmasked elements of tile (tx, ty).
func (w *Writer) forEachTileElement(tx, ty int, fn func(x, y int, value uint8)) {
	p := w.params
	for y := ty << w.tileBits; y < min((ty+1)<<w.tileBits, p.Height); y++ {
		for x := tx << w.tileBits; x < min((tx+1)<<w.tileBits, p.Width); x++ {
			if !p.Mask(x, y) {
				fn(x, y, w.pdata[y*p.Width+x])
			}
		}
	}
}

// uniformValue reports whether the tile's unmasked elements share a value.
func (w *Writer) uniformValue(tx, ty int) (uint8, bool) {
	uniform := true
	seen := false
	var value uint8
	w.forEachTileElement(tx, ty, func(x, y int, v uint8) {
		if !seen {
			value = v
			seen = true
		} else if v != value {
			uniform = false
		}
	})
	return value, uniform && seen
}

// designPaletteFilters finds grid values that cover enough uniform tiles to
// deserve a constant predictor. It returns the provisional palette list;
// tiles that matched are stamped with a provisional marker above the
// normal-filter space so the later passes can find them again.
func (w *Writer) designPaletteFilters() []uint8 {
	var hist [256]uint32
	for ty := 0; ty < w.tilesY; ty++ {
		for tx := 0; tx < w.tilesX; tx++ {
			if w.tiles[ty*w.tilesX+tx] == MaskTile {
				continue
			}
			if v, ok := w.uniformValue(tx, ty); ok {
				hist[v]++
			}
		}
	}
	thresh := uint32(w.params.SympalThresh * float64(w.tileCount))
	var provisional []uint8
	for sym := 0; sym < w.params.NumSyms; sym++ {
		if hist[sym] > thresh {
			provisional = append(provisional, uint8(sym))
			if len(provisional) >= MaxPalette {
				break
			}
		}
	}
	return provisional
}

// designFilters scores the filter catalog across all tiles and selects the
// active normal set plus the surviving palette filters.
func (w *Writer) designFilters(provisional []uint8) {
	p := w.params
	awards := entropy.NewScorer(filter.MonoCount + len(provisional))
	numSyms := p.NumSyms

	for ty := 0; ty < w.tilesY; ty++ {
		for tx := 0; tx < w.tilesX; tx++ {
			if w.tiles[ty*w.tilesX+tx] == MaskTile {
				continue
			}
			scores := entropy.NewScorer(filter.MonoCount)
			w.forEachTileElement(tx, ty, func(x, y int, v uint8) {
				a, b, c, d := filter.SampleMonoNeighbors(w.pdata, x, y, p.Width)
				for f := 0; f < filter.MonoCount; f++ {
					pred := int(filter.Monos[f](a, b, c, d)) % numSyms
					residual := uint8((int(v) + numSyms - pred) % numSyms)
					scores.Add(f, int(filter.ResidualScore(residual)))
				}
			})

			offset := 0
			if v, ok := w.uniformValue(tx, ty); ok {
				for i, sv := range provisional {
					if sv == v {
						awards.Add(filter.MonoCount+i, entropy.Awards[0])
						w.tiles[ty*w.tilesX+tx] = uint8(filter.MonoCount + i)
						offset = 1
						break
					}
				}
			}

			top := scores.Lowest(entropy.AwardCount)
			for rank := offset; rank < entropy.AwardCount && rank-offset < len(top); rank++ {
				awards.Add(top[rank-offset].Index, entropy.Awards[rank])
			}
		}
	}

	// Always keep the fixed defaults.
	w.normalIndices = w.normalIndices[:0]
	for f := 0; f < filter.MonoFixed; f++ {
		w.normalIndices = append(w.normalIndices, f)
	}

	filterThresh := int64(p.FilterThresh * float64(w.tileCount) * float64(entropy.Awards[0]))
	var coverage int64
	sympalKeep := make([]bool, len(provisional))

	for _, e := range awards.Highest(filter.MonoCount + len(provisional)) {
		if coverage >= filterThresh || e.Score == 0 {
			break
		}
		coverage += e.Score
		if e.Index >= filter.MonoCount {
			sympalKeep[e.Index-filter.MonoCount] = true
		} else if !contains(w.normalIndices, e.Index) {
			if len(w.normalIndices) < MaxFilters {
				w.normalIndices = append(w.normalIndices, e.Index)
			}
		}
	}

	w.sympal = w.sympal[:0]
	for i, keep := range sympalKeep {
		if keep {
			w.sympal = append(w.sympal, provisional[i])
		}
	}

	w.normalFilters = make([]filter.Mono, len(w.normalIndices))
	for i, idx := range w.normalIndices {
		w.normalFilters[i] = filter.Monos[idx]
	}
}

func contains(s []int, v int) bool {
	for _, e := range s {
		if e == v {
			return true
		}
	}
	return false
}

// designPaletteTiles remaps provisionally-stamped palette tiles into the
// final filter index space, or unlocks them when their palette filter was
// not kept.
func (w *Writer) designPaletteTiles(provisional []uint8) {
	for i, t := range w.tiles {
		if t == MaskTile || t < filter.MonoCount {
			continue
		}
		value := provisional[t-filter.MonoCount]
		mapped := -1
		for j, sv := range w.sympal {
			if sv == value {
				mapped = j
				break
			}
		}
		if mapped >= 0 {
			w.tiles[i] = uint8(len(w.normalIndices) + mapped)
		} else {
			w.tiles[i] = todoTile
		}
	}
}

// tileCodes computes the residual codes of tile (tx, ty) under normal
// filter f.
func (w *Writer) tileCodes(tx, ty, f int, out []byte) []byte {
	p := w.params
	numSyms := p.NumSyms
	out = out[:0]
	w.forEachTileElement(tx, ty, func(x, y int, v uint8) {
		a, b, c, d := filter.SampleMonoNeighbors(w.pdata, x, y, p.Width)
		pred := int(w.normalFilters[f](a, b, c, d)) % numSyms
		out = append(out, uint8((int(v)+numSyms-pred)%numSyms))
	})
	return out
}

// designTiles picks the entropy-minimizing filter per tile, with revisit
// passes that subtract the stale contribution before re-choosing and a
// small reward for agreeing with neighbor tiles.
func (w *Writer) designTiles() {
	const neighborReward = 16 // 1/16 bit units
	var ee entropy.Estimator
	ee.Init()

	normalCount := len(w.normalIndices)
	codes := make([]byte, 0, w.tileSize*w.tileSize)
	revisits := w.params.RevisitCount

	for pass := 0; pass < maxPasses; pass++ {
		for ty := 0; ty < w.tilesY; ty++ {
			for tx := 0; tx < w.tilesX; tx++ {
				t := w.tiles[ty*w.tilesX+tx]
				if t == MaskTile || int(t) >= normalCount {
					continue
				}
				if pass > 0 {
					if revisits--; revisits < 0 {
						return
					}
					codes = w.tileCodes(tx, ty, int(t), codes)
					ee.Subtract(codes)
				}

				a, b, c, d := w.tileNeighbors(tx, ty)
				bestF := 0
				bestCost := int64(1) << 62
				for f := 0; f < normalCount; f++ {
					codes = w.tileCodes(tx, ty, f, codes)
					cost := int64(ee.Entropy(codes))
					if cost == 0 {
						cost -= neighborReward
					}
					for _, n := range []int{a, b, c, d} {
						if n == f {
							cost -= neighborReward
						}
					}
					if cost < bestCost {
						bestCost = cost
						bestF = f
					}
				}
				w.tiles[ty*w.tilesX+tx] = uint8(bestF)
				codes = w.tileCodes(tx, ty, bestF, codes)
				ee.Add(codes)
			}
		}
	}
}

// tileNeighbors returns the filter choices of the four decided neighbors,
// -1 where unavailable.
func (w *Writer) tileNeighbors(tx, ty int) (a, b, c, d int) {
	a, b, c, d = -1, -1, -1, -1
	if tx > 0 {
		a = int(w.tiles[ty*w.tilesX+tx-1])
	}
	if ty > 0 {
		b = int(w.tiles[(ty-1)*w.tilesX+tx])
		if tx > 0 {
			c = int(w.tiles[(ty-1)*w.tilesX+tx-1])
		}
		if tx < w.tilesX-1 {
			d = int(w.tiles[(ty-1)*w.tilesX+tx+1])
		}
	}
	return
}

// computeResiduals materializes the residual grid for the chosen tiles.
// Palette and masked tiles leave zeros; they emit nothing.
func (w *Writer) computeResiduals() {
	p := w.params
	normalCount := len(w.normalIndices)
	for ty := 0; ty < w.tilesY; ty++ {
		for tx := 0; tx < w.tilesX; tx++ {
			t := w.tiles[ty*w.tilesX+tx]
			if t == MaskTile || int(t) >= normalCount {
				continue
			}
			w.forEachTileElement(tx, ty, func(x, y int, v uint8) {
				a, b, c, d := filter.SampleMonoNeighbors(w.pdata, x, y, p.Width)
				pred := int(w.normalFilters[t](a, b, c, d)) % p.NumSyms
				w.residuals[y*p.Width+x] = uint8((int(v) + p.NumSyms - pred) % p.NumSyms)
			})
		}
	}
}

// rowCode computes the row-filtered code for tile (tx, ty) under row
// filter rf, with masked neighbors contributing zero.
func (w *Writer) rowCode(tx, ty, rf int) uint8 {
	nf := w.filterCount()
	f := int(w.tiles[ty*w.tilesX+tx])
	var n int
	switch rf {
	case rfA:
		if tx > 0 {
			n = w.unmaskedTileValue(tx-1, ty)
		}
	case rfB:
		if ty > 0 {
			n = w.unmaskedTileValue(tx, ty-1)
		}
	case rfC:
		if tx > 0 && ty > 0 {
			n = w.unmaskedTileValue(tx-1, ty-1)
		}
	}
	return uint8((f + nf - n) % nf)
}

func (w *Writer) unmaskedTileValue(tx, ty int) int {
	t := w.tiles[ty*w.tilesX+tx]
	if t == MaskTile {
		return 0
	}
	return int(t)
}

// designRowFilters picks the per-tile-row predictor for the tile map with
// the subtract-then-rechoose refinement passes.
func (w *Writer) designRowFilters() {
	w.rowFilters = make([]uint8, w.tilesY)
	var ee entropy.Estimator
	ee.Init()

	codes := make([][]byte, rfCount)
	var total uint32
	for pass := 0; pass < maxRowPasses; pass++ {
		total = 0
		for ty := 0; ty < w.tilesY; ty++ {
			for rf := 0; rf < rfCount; rf++ {
				codes[rf] = codes[rf][:0]
			}
			for tx := 0; tx < w.tilesX; tx++ {
				if w.tiles[ty*w.tilesX+tx] == MaskTile {
					continue
				}
				for rf := 0; rf < rfCount; rf++ {
					codes[rf] = append(codes[rf], w.rowCode(tx, ty, rf))
				}
			}
			if pass > 0 {
				ee.Subtract(codes[w.rowFilters[ty]])
			}
			best := 0
			bestCost := ee.Entropy(codes[0])
			for rf := 1; rf < rfCount; rf++ {
				if cost := ee.Entropy(codes[rf]); cost < bestCost {
					bestCost = cost
					best = rf
				}
			}
			w.rowFilters[ty] = uint8(best)
			total += bestCost
			ee.Add(codes[best])
		}
	}
	w.rowFilterCost = total
}

// recurseCompress hands the tile map to a nested writer when it is large
// enough to pay for a second level of context modeling, keeping whichever
// of the two tile-map codecs estimates smaller.
func (w *Writer) recurseCompress() {
	if w.tileCount < RecursiveThresh {
		return
	}
	child, err := NewWriter(Params{
		Data:         w.tiles,
		Width:        w.tilesX,
		Height:       w.tilesY,
		NumSyms:      w.filterCount(),
		MinBits:      w.params.MinBits,
		MaxBits:      w.params.MaxBits,
		Mask:         func(x, y int) bool { return w.tiles[y*w.tilesX+x] == MaskTile },
		SympalThresh: w.params.SympalThresh,
		FilterThresh: w.params.FilterThresh,
		RevisitCount: w.params.RevisitCount,
	})
	if err != nil {
		return
	}
	if child.estimate < w.rowFilterCost+uint32(2*w.tilesY)*16 {
		w.recursive = child
	}
}

// designChaos sweeps the chaos level count, pricing each candidate by the
// summed cross-entropy of its per-bin histograms plus table overhead.
func (w *Writer) designChaos() {
	p := w.params
	normalCount := len(w.normalIndices)
	bestLevels := 1
	bestCost := uint32(1) << 31

	for levels := 1; levels <= filter.MaxChaosLevels; levels++ {
		ee := make([]entropy.Estimator, levels)
		for i := range ee {
			ee[i].Init()
		}
		chaos := filter.NewChaos(levels, p.Width)
		chaos.Reset()
		for y := 0; y < p.Height; y++ {
			for x := 0; x < p.Width; x++ {
				t := w.tiles[(y>>w.tileBits)*w.tilesX+(x>>w.tileBits)]
				if t == MaskTile || p.Mask(x, y) || int(t) >= normalCount {
					chaos.StoreZero(x)
					continue
				}
				res := w.residuals[y*p.Width+x]
				ee[chaos.Get(x)].AddSingle(res)
				chaos.Store(x, res)
			}
		}
		var cost uint32
		for i := range ee {
			cost += ee[i].EntropyOverall() + ee[i].TableCost()
		}
		if cost < bestCost {
			bestCost = cost
			bestLevels = levels
		}
	}
	w.chaosLevels = bestLevels
	w.chaosCost = bestCost
}
