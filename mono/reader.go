package mono

import (
	mathbits "math/bits"

	"github.com/mrjoshuak/go-gcif/entropy"
	"github.com/mrjoshuak/go-gcif/filter"
	"github.com/mrjoshuak/go-gcif/internal/bitio"
)

// Reader decompresses one byte grid written by Writer. The caller drives
// it over the same pixel sequence the writer emitted: ReadRowHeader at the
// start of each image row, then ReadPixel per element (or SkipPixel for
// elements whose value arrives by another path).
type Reader struct {
	width   int
	height  int
	numSyms int
	mask    func(x, y int) bool

	tileBits int
	tileSize int
	tilesX   int
	tilesY   int

	normalFilters []filter.Mono
	sympal        []uint8

	chaosLevels int
	decoders    []*entropy.Decoder
	rowDecoder  *entropy.Decoder
	recursive   *Reader

	tiles      []uint8 // decoded filter per tile; MaskTile where masked
	maskedTile []bool
	data       []byte // reconstruction grid, masked elements stay zero
	seen       []bool
	rowFilter  uint8
	curTileRow int
	chaos      *filter.Chaos
}

// ReaderConfig describes the grid a Reader decodes; it must match the
// writer's Params.
type ReaderConfig struct {
	Width, Height    int
	NumSyms          int
	MinBits, MaxBits int
	Mask             func(x, y int) bool
}

// NewReader reads the header written by WriteTables and prepares the
// decode state.
func NewReader(r *bitio.Reader, cfg ReaderConfig) (*Reader, error) {
	if cfg.NumSyms < 1 || cfg.NumSyms > 256 || cfg.Width < 1 || cfg.Height < 1 {
		return nil, ErrBadParams
	}
	if cfg.MinBits < 1 || cfg.MaxBits > 8 || cfg.MinBits > cfg.MaxBits {
		return nil, ErrBadParams
	}
	mask := cfg.Mask
	if mask == nil {
		mask = func(x, y int) bool { return false }
	}
	rd := &Reader{
		width:   cfg.Width,
		height:  cfg.Height,
		numSyms: cfg.NumSyms,
		mask:    mask,
	}

	rd.tileBits = cfg.MinBits
	if cfg.MaxBits > cfg.MinBits {
		width := uint(mathbits.Len(uint(cfg.MaxBits - cfg.MinBits)))
		rd.tileBits = cfg.MinBits + int(r.ReadBits(width))
		if rd.tileBits > cfg.MaxBits {
			return nil, ErrCorrupt
		}
	}
	rd.tileSize = 1 << rd.tileBits
	rd.tilesX = (cfg.Width + rd.tileSize - 1) >> rd.tileBits
	rd.tilesY = (cfg.Height + rd.tileSize - 1) >> rd.tileBits

	normalCount := int(r.ReadBits(5)) + 1
	rd.normalFilters = make([]filter.Mono, normalCount)
	for i := range rd.normalFilters {
		idx := int(r.ReadBits(7))
		if idx >= filter.MonoCount {
			return nil, ErrCorrupt
		}
		rd.normalFilters[i] = filter.Monos[idx]
	}
	sympalCount := int(r.ReadBits(4))
	rd.sympal = make([]uint8, sympalCount)
	for i := range rd.sympal {
		rd.sympal[i] = uint8(r.ReadBits(8))
	}
	if normalCount+sympalCount > MaxFilters+MaxPalette {
		return nil, ErrCorrupt
	}

	rd.chaosLevels = int(r.ReadBits(4)) + 1
	if r.Overflowed() {
		return nil, ErrCorrupt
	}
	rd.decoders = make([]*entropy.Decoder, rd.chaosLevels)
	for i := range rd.decoders {
		dec, err := entropy.NewDecoder(r, cfg.NumSyms)
		if err != nil {
			return nil, err
		}
		rd.decoders[i] = dec
	}

	// Tile mask is derived, not transmitted: both sides compute it from
	// the mask predicate.
	rd.tiles = make([]uint8, rd.tilesX*rd.tilesY)
	rd.maskedTile = make([]bool, rd.tilesX*rd.tilesY)
	for ty := 0; ty < rd.tilesY; ty++ {
		for tx := 0; tx < rd.tilesX; tx++ {
			masked := true
		scan:
			for y := ty << rd.tileBits; y < minInt((ty+1)<<rd.tileBits, cfg.Height); y++ {
				for x := tx << rd.tileBits; x < minInt((tx+1)<<rd.tileBits, cfg.Width); x++ {
					if !mask(x, y) {
						masked = false
						break scan
					}
				}
			}
			rd.maskedTile[ty*rd.tilesX+tx] = masked
			if masked {
				rd.tiles[ty*rd.tilesX+tx] = MaskTile
			}
		}
	}

	if r.ReadBit() == 1 {
		child, err := NewReader(r, ReaderConfig{
			Width:   rd.tilesX,
			Height:  rd.tilesY,
			NumSyms: normalCount + sympalCount,
			MinBits: cfg.MinBits,
			MaxBits: cfg.MaxBits,
			Mask: func(x, y int) bool {
				return rd.maskedTile[y*rd.tilesX+x]
			},
		})
		if err != nil {
			return nil, err
		}
		rd.recursive = child
	} else {
		dec, err := entropy.NewDecoder(r, normalCount+sympalCount)
		if err != nil {
			return nil, err
		}
		rd.rowDecoder = dec
	}

	rd.data = make([]byte, cfg.Width*cfg.Height)
	rd.seen = make([]bool, rd.tilesX)
	rd.curTileRow = -1
	rd.chaos = filter.NewChaos(rd.chaosLevels, cfg.Width)
	rd.chaos.Reset()
	if r.Overflowed() {
		return nil, ErrCorrupt
	}
	return rd, nil
}

// ReadRowHeader consumes the row header for image row y, first draining
// any tile filters of the finished row the writer flushed there.
func (rd *Reader) ReadRowHeader(y int, r *bitio.Reader) error {
	if y&(rd.tileSize-1) != 0 {
		return nil
	}
	if rd.curTileRow >= 0 {
		if err := rd.readTilesThrough(rd.tilesX-1, rd.curTileRow, r); err != nil {
			return err
		}
	}
	for i := range rd.seen {
		rd.seen[i] = false
	}
	ty := y >> rd.tileBits
	rd.curTileRow = ty
	if rd.recursive != nil {
		return rd.recursive.ReadRowHeader(ty, r)
	}
	rd.rowFilter = uint8(r.ReadBits(2))
	if r.Overflowed() {
		return ErrCorrupt
	}
	return nil
}

// FinishRead drains the trailing tile row after the last pixel.
func (rd *Reader) FinishRead(r *bitio.Reader) error {
	if rd.curTileRow >= 0 {
		if err := rd.readTilesThrough(rd.tilesX-1, rd.curTileRow, r); err != nil {
			return err
		}
	}
	if rd.recursive != nil {
		return rd.recursive.FinishRead(r)
	}
	return nil
}

// ReadPixel decodes element (x, y). Masked elements consume no bits and
// return zero.
func (rd *Reader) ReadPixel(x, y int, r *bitio.Reader) (uint8, error) {
	if rd.mask(x, y) {
		rd.chaos.StoreZero(x)
		return 0, nil
	}
	tx := x >> rd.tileBits
	ty := y >> rd.tileBits
	if !rd.seen[tx] {
		if err := rd.readTilesThrough(tx, ty, r); err != nil {
			return 0, err
		}
	}
	f := rd.tiles[ty*rd.tilesX+tx]
	normalCount := len(rd.normalFilters)
	if int(f) >= normalCount {
		v := uint8(int(rd.sympal[int(f)-normalCount]) % rd.numSyms)
		rd.data[y*rd.width+x] = v
		rd.chaos.StoreZero(x)
		return v, nil
	}
	bin := rd.chaos.Get(x)
	res, err := rd.decoders[bin].Next(r)
	if err != nil {
		return 0, err
	}
	a, b, c, d := filter.SampleMonoNeighbors(rd.data, x, y, rd.width)
	pred := int(rd.normalFilters[f](a, b, c, d)) % rd.numSyms
	v := uint8((res + pred) % rd.numSyms)
	rd.data[y*rd.width+x] = v
	rd.chaos.Store(x, uint8(res))
	return v, nil
}

// SkipPixel records an element whose value arrived by another path (an
// LZ-copied pixel), keeping the prediction grid and chaos model aligned
// with the writer.
func (rd *Reader) SkipPixel(x, y int, value uint8) {
	rd.data[y*rd.width+x] = value
	rd.chaos.StoreZero(x)
}

// readTilesThrough decodes the filters of all unseen unmasked tiles up to
// and including tx in tile row ty, mirroring the writer's catch-up.
func (rd *Reader) readTilesThrough(tx, ty int, r *bitio.Reader) error {
	nf := len(rd.normalFilters) + len(rd.sympal)
	for t := 0; t <= tx; t++ {
		if rd.seen[t] {
			continue
		}
		rd.seen[t] = true
		if rd.maskedTile[ty*rd.tilesX+t] {
			continue
		}
		var f int
		if rd.recursive != nil {
			v, err := rd.recursive.ReadPixel(t, ty, r)
			if err != nil {
				return err
			}
			f = int(v)
		} else {
			code, err := rd.rowDecoder.Next(r)
			if err != nil {
				return err
			}
			var n int
			switch rd.rowFilter {
			case rfA:
				if t > 0 {
					n = rd.neighborTileValue(t-1, ty)
				}
			case rfB:
				if ty > 0 {
					n = rd.neighborTileValue(t, ty-1)
				}
			case rfC:
				if t > 0 && ty > 0 {
					n = rd.neighborTileValue(t-1, ty-1)
				}
			}
			f = (code + n) % nf
		}
		if f >= nf {
			return ErrCorrupt
		}
		rd.tiles[ty*rd.tilesX+t] = uint8(f)
	}
	return nil
}

func (rd *Reader) neighborTileValue(tx, ty int) int {
	if rd.maskedTile[ty*rd.tilesX+tx] {
		return 0
	}
	return int(rd.tiles[ty*rd.tilesX+tx])
}

// TileBits returns the tile size exponent read from the header.
func (rd *Reader) TileBits() int {
	return rd.tileBits
}

func minInt(a, b int) int {
	if a < b {
		return a
	}
	return b
}
