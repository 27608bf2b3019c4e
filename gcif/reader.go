package gcif

import (
	"github.com/mrjoshuak/go-gcif/entropy"
	"github.com/mrjoshuak/go-gcif/filter"
	"github.com/mrjoshuak/go-gcif/internal/bitio"
	"github.com/mrjoshuak/go-gcif/lz"
	"github.com/mrjoshuak/go-gcif/mono"
)

// rgbaReader rebuilds the tables written by rgbaWriter and decodes the
// pixel stream in a single raster pass.
type rgbaReader struct {
	img  *Image
	mask *maskPlane
	w, h int

	tileBits int
	tileSize int
	tilesX   int
	tilesY   int

	declaredMatches int
	decodedMatches  int

	sfFuncs []filter.Spatial
	cfs     []filter.Color

	chaosLevels int
	chaosY      *filter.Chaos
	chaosU      *filter.Chaos
	chaosV      *filter.Chaos
	decY        []*entropy.Decoder
	decU        []*entropy.Decoder
	decV        []*entropy.Decoder

	sfReader *mono.Reader
	cfReader *mono.Reader
	aReader  *mono.Reader

	// Per-tile filter selections, decoded lazily.
	tileSF     []uint8
	tileCF     []uint8
	maskedTile []bool
	seen       []bool
	curTileRow int
}

func newRGBAReader(r *bitio.Reader, img *Image, mask *maskPlane) (*rgbaReader, error) {
	rd := &rgbaReader{
		img:  img,
		mask: mask,
		w:    img.Width,
		h:    img.Height,
	}

	rd.declaredMatches = int(r.ReadBitClass(5))

	rd.tileBits = int(r.ReadBits(3)) + 1
	if rd.tileBits > 4 {
		return nil, ErrCorrupt
	}
	rd.tileSize = 1 << rd.tileBits
	rd.tilesX = (rd.w + rd.tileSize - 1) >> rd.tileBits
	rd.tilesY = (rd.h + rd.tileSize - 1) >> rd.tileBits

	sfCount := int(r.ReadBits(5)) + 1
	rd.sfFuncs = make([]filter.Spatial, sfCount)
	for i := range rd.sfFuncs {
		idx := int(r.ReadBits(7))
		if idx >= filter.SpatialCount {
			return nil, ErrCorrupt
		}
		rd.sfFuncs[i] = filter.Spatials[idx]
	}
	cfCount := int(r.ReadBits(5)) + 1
	rd.cfs = make([]filter.Color, cfCount)
	for i := range rd.cfs {
		idx := int(r.ReadBits(5))
		if idx >= filter.ColorCount {
			return nil, ErrCorrupt
		}
		rd.cfs[i] = filter.Colors[idx]
	}

	rd.chaosLevels = int(r.ReadBits(4)) + 1
	if r.Overflowed() {
		return nil, ErrCorrupt
	}

	// Derive the fully-masked tiles; the stream never carries them.
	rd.maskedTile = make([]bool, rd.tilesX*rd.tilesY)
	for ty := 0; ty < rd.tilesY; ty++ {
		for tx := 0; tx < rd.tilesX; tx++ {
			masked := true
		scan:
			for y := ty << rd.tileBits; y < min((ty+1)<<rd.tileBits, rd.h); y++ {
				for x := tx << rd.tileBits; x < min((tx+1)<<rd.tileBits, rd.w); x++ {
					if !mask.masked(x, y) {
						masked = false
						break scan
					}
				}
			}
			rd.maskedTile[ty*rd.tilesX+tx] = masked
		}
	}
	tileMask := func(x, y int) bool {
		return rd.maskedTile[y*rd.tilesX+x]
	}

	var err error
	rd.sfReader, err = mono.NewReader(r, mono.ReaderConfig{
		Width: rd.tilesX, Height: rd.tilesY, NumSyms: sfCount,
		MinBits: monoMinBits, MaxBits: monoMaxBits, Mask: tileMask,
	})
	if err != nil {
		return nil, err
	}
	rd.cfReader, err = mono.NewReader(r, mono.ReaderConfig{
		Width: rd.tilesX, Height: rd.tilesY, NumSyms: cfCount,
		MinBits: monoMinBits, MaxBits: monoMaxBits, Mask: tileMask,
	})
	if err != nil {
		return nil, err
	}
	rd.aReader, err = mono.NewReader(r, mono.ReaderConfig{
		Width: rd.w, Height: rd.h, NumSyms: 256,
		MinBits: monoMinBits, MaxBits: monoMaxBits, Mask: mask.masked,
	})
	if err != nil {
		return nil, err
	}

	rd.decY = make([]*entropy.Decoder, rd.chaosLevels)
	rd.decU = make([]*entropy.Decoder, rd.chaosLevels)
	rd.decV = make([]*entropy.Decoder, rd.chaosLevels)
	for i := 0; i < rd.chaosLevels; i++ {
		if rd.decY[i], err = entropy.NewDecoder(r, numYSyms); err != nil {
			return nil, err
		}
		if rd.decU[i], err = entropy.NewDecoder(r, numLitSyms); err != nil {
			return nil, err
		}
		if rd.decV[i], err = entropy.NewDecoder(r, numLitSyms); err != nil {
			return nil, err
		}
	}

	rd.tileSF = make([]uint8, rd.tilesX*rd.tilesY)
	rd.tileCF = make([]uint8, rd.tilesX*rd.tilesY)
	rd.seen = make([]bool, rd.tilesX)
	rd.curTileRow = -1
	rd.chaosY = filter.NewChaos(rd.chaosLevels, rd.w)
	rd.chaosU = filter.NewChaos(rd.chaosLevels, rd.w)
	rd.chaosV = filter.NewChaos(rd.chaosLevels, rd.w)
	rd.chaosY.Reset()
	rd.chaosU.Reset()
	rd.chaosV.Reset()
	return rd, nil
}

// read decodes every pixel in raster order.
func (rd *rgbaReader) read(r *bitio.Reader) error {
	out := rd.img.Pix
	lzLeft := 0
	lzDist := 0

	for y := 0; y < rd.h; y++ {
		if err := rd.rowHeader(y, r); err != nil {
			return err
		}
		for x := 0; x < rd.w; x++ {
			i := y*rd.w + x
			off := i * 4

			if rd.mask.masked(x, y) {
				copy(out[off:off+4], rd.mask.color[:])
				rd.chaosY.StoreZero(x)
				rd.chaosU.StoreZero(x)
				rd.chaosV.StoreZero(x)
				if _, err := rd.aReader.ReadPixel(x, y, r); err != nil {
					return err
				}
				if lzLeft > 0 {
					lzLeft--
				}
				continue
			}
			if lzLeft > 0 {
				lzLeft--
				src := (i - lzDist) * 4
				copy(out[off:off+4], out[src:src+4])
				rd.chaosY.StoreZero(x)
				rd.chaosU.StoreZero(x)
				rd.chaosV.StoreZero(x)
				rd.aReader.SkipPixel(x, y, ^out[off+3])
				continue
			}

			cy := rd.chaosY.Get(x)
			sym, err := rd.decY[cy].Next(r)
			if err != nil {
				return err
			}
			if sym >= numLitSyms {
				m, err := lz.ReadMatch(r, sym-numLitSyms, i, rd.w*rd.h)
				if err != nil {
					return err
				}
				rd.decodedMatches++
				lzDist = int(m.Distance)
				src := (i - lzDist) * 4
				copy(out[off:off+4], out[src:src+4])
				lzLeft = m.Length - 1
				rd.chaosY.StoreZero(x)
				rd.chaosU.StoreZero(x)
				rd.chaosV.StoreZero(x)
				rd.aReader.SkipPixel(x, y, ^out[off+3])
				continue
			}

			cu := rd.chaosU.Get(x)
			resU, err := rd.decU[cu].Next(r)
			if err != nil {
				return err
			}
			cv := rd.chaosV.Get(x)
			resV, err := rd.decV[cv].Next(r)
			if err != nil {
				return err
			}

			tx := x >> rd.tileBits
			ty := y >> rd.tileBits
			if !rd.seen[tx] {
				if err := rd.readTilesThrough(tx, ty, r); err != nil {
					return err
				}
			}
			ti := ty*rd.tilesX + tx

			yuv := [3]uint8{uint8(sym), uint8(resU), uint8(resV)}
			rgb := rd.cfs[rd.tileCF[ti]].Inverse(yuv)
			safe := x == 0 || y == 0 || x == rd.w-1
			a, b, c, d := filter.SampleNeighbors(out, x, y, rd.w, safe)
			pred := rd.sfFuncs[rd.tileSF[ti]](a, b, c, d)
			out[off] = rgb[0] + pred[0]
			out[off+1] = rgb[1] + pred[1]
			out[off+2] = rgb[2] + pred[2]

			av, err := rd.aReader.ReadPixel(x, y, r)
			if err != nil {
				return err
			}
			out[off+3] = ^av

			rd.chaosY.Store(x, uint8(sym))
			rd.chaosU.Store(x, uint8(resU))
			rd.chaosV.Store(x, uint8(resV))
		}
	}

	// Drain the trailing tile row's filters and the sub-decoders.
	if rd.curTileRow >= 0 {
		if err := rd.readTilesThrough(rd.tilesX-1, rd.curTileRow, r); err != nil {
			return err
		}
	}
	if err := rd.sfReader.FinishRead(r); err != nil {
		return err
	}
	if err := rd.cfReader.FinishRead(r); err != nil {
		return err
	}
	if err := rd.aReader.FinishRead(r); err != nil {
		return err
	}
	if rd.decodedMatches != rd.declaredMatches {
		return ErrCorrupt
	}
	return nil
}

func (rd *rgbaReader) rowHeader(y int, r *bitio.Reader) error {
	if y&(rd.tileSize-1) == 0 {
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
		if err := rd.sfReader.ReadRowHeader(ty, r); err != nil {
			return err
		}
		if err := rd.cfReader.ReadRowHeader(ty, r); err != nil {
			return err
		}
	}
	return rd.aReader.ReadRowHeader(y, r)
}

// readTilesThrough reads the SF then CF selections of every unseen
// unmasked tile up to and including tx in tile row ty.
func (rd *rgbaReader) readTilesThrough(tx, ty int, r *bitio.Reader) error {
	for t := 0; t <= tx; t++ {
		if rd.seen[t] {
			continue
		}
		rd.seen[t] = true
		ti := ty*rd.tilesX + t
		if rd.maskedTile[ti] {
			continue
		}
		sf, err := rd.sfReader.ReadPixel(t, ty, r)
		if err != nil {
			return err
		}
		cf, err := rd.cfReader.ReadPixel(t, ty, r)
		if err != nil {
			return err
		}
		if int(sf) >= len(rd.sfFuncs) || int(cf) >= len(rd.cfs) {
			return ErrCorrupt
		}
		rd.tileSF[ti] = sf
		rd.tileCF[ti] = cf
	}
	return nil
}
