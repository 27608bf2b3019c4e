package gcif

import (
	"math"

	"github.com/mrjoshuak/go-gcif/entropy"
	"github.com/mrjoshuak/go-gcif/filter"
	"github.com/mrjoshuak/go-gcif/internal/bitio"
	"github.com/mrjoshuak/go-gcif/lz"
	"github.com/mrjoshuak/go-gcif/mono"
)

// Active filter set limits. The spatial set indexes a 7-bit catalog, the
// color set a 5-bit catalog; both are narrowed per image.
const (
	sfFixed = 5
	sfMax   = 32
	cfFixed = 2
	cfMax   = filter.ColorCount

	filterCoverageThresh = 0.8

	// The monochrome sub-compressor sweep range is part of the wire
	// format: the decoder reconstructs each sub-header against it.
	monoMinBits = 2
	monoMaxBits = 4

	// Escape symbols sit above the literal byte range in the Y alphabet.
	numLitSyms = 256
	numYSyms   = numLitSyms + lz.EscapeSyms
)

// rgbaWriter orchestrates the full encode: masking, tile-based filter
// design, residuals, LZ, alpha, chaos design, and the interleaved emission
// of tile filters and pixel residuals.
type rgbaWriter struct {
	opts *Options
	rgba []byte
	w, h int
	mask *maskPlane

	tileBits int
	tileSize int
	tilesX   int
	tilesY   int

	sfTiles []uint8 // active-set index per tile; mono.MaskTile when fully masked
	cfTiles []uint8

	sfIndices []int // catalog ordinals of the active spatial set
	cfIndices []int

	residuals []byte // W*H*4: Y, U, V residuals (4th byte unused)
	alpha     []byte // inverted alpha plane
	costs     []uint8
	covered   []bool
	finder    *lz.Finder

	chaosLevels int
	chaosY      *filter.Chaos
	chaosU      *filter.Chaos
	chaosV      *filter.Chaos
	encY        []*entropy.Encoder
	encU        []*entropy.Encoder
	encV        []*entropy.Encoder

	sfWriter *mono.Writer
	cfWriter *mono.Writer
	aWriter  *mono.Writer

	seen       []bool
	curTileRow int

	tableBits int
	pixelBits int
}

func newRGBAWriter(img *Image, mask *maskPlane, opts *Options) (*rgbaWriter, error) {
	w := &rgbaWriter{
		opts: opts,
		rgba: img.Pix,
		w:    img.Width,
		h:    img.Height,
		mask: mask,
	}
	w.tileBits = opts.TileBits
	w.tileSize = 1 << w.tileBits
	w.tilesX = (w.w + w.tileSize - 1) >> w.tileBits
	w.tilesY = (w.h + w.tileSize - 1) >> w.tileBits

	w.maskTiles()
	w.designFilters()
	w.designTiles()
	w.sortFilters()
	w.computeResiduals()
	w.priceResiduals()
	w.designLZ()
	if err := w.compressAlpha(); err != nil {
		return nil, err
	}
	w.designChaos()
	if err := w.compressTileMaps(); err != nil {
		return nil, err
	}
	return w, nil
}

func (w *rgbaWriter) masked(x, y int) bool {
	return w.mask.masked(x, y)
}

// tileMasked reports whether tile (tx, ty) contains no unmasked pixels.
func (w *rgbaWriter) tileMasked(tx, ty int) bool {
	return w.sfTiles[ty*w.tilesX+tx] == mono.MaskTile
}

func (w *rgbaWriter) maskTiles() {
	w.sfTiles = make([]uint8, w.tilesX*w.tilesY)
	w.cfTiles = make([]uint8, w.tilesX*w.tilesY)
	for ty := 0; ty < w.tilesY; ty++ {
		for tx := 0; tx < w.tilesX; tx++ {
			masked := true
		scan:
			for y := ty << w.tileBits; y < min((ty+1)<<w.tileBits, w.h); y++ {
				for x := tx << w.tileBits; x < min((tx+1)<<w.tileBits, w.w); x++ {
					if !w.masked(x, y) {
						masked = false
						break scan
					}
				}
			}
			if masked {
				w.sfTiles[ty*w.tilesX+tx] = mono.MaskTile
				w.cfTiles[ty*w.tilesX+tx] = mono.MaskTile
			}
		}
	}
}

// forEachTilePixel visits the unmasked pixels of tile (tx, ty).
func (w *rgbaWriter) forEachTilePixel(tx, ty int, fn func(x, y int)) {
	for y := ty << w.tileBits; y < min((ty+1)<<w.tileBits, w.h); y++ {
		for x := tx << w.tileBits; x < min((tx+1)<<w.tileBits, w.w); x++ {
			if !w.masked(x, y) {
				fn(x, y)
			}
		}
	}
}

// pixelResidual applies spatial filter sf then color filter cf to the
// pixel and returns the YUV residual triplet.
func (w *rgbaWriter) pixelResidual(x, y, sf, cf int) [3]uint8 {
	off := (y*w.w + x) * 4
	safe := x == 0 || y == 0 || x == w.w-1
	a, b, c, d := filter.SampleNeighbors(w.rgba, x, y, w.w, safe)
	pred := filter.Spatials[sf](a, b, c, d)
	var tmp [3]uint8
	for i := 0; i < 3; i++ {
		tmp[i] = w.rgba[off+i] - pred[i]
	}
	return filter.Colors[cf].Forward(tmp)
}

// designFilters jointly scores every (SF, CF) pair per tile and selects
// the active subsets by accumulated awards.
func (w *rgbaWriter) designFilters() {
	awardsSF := entropy.NewScorer(filter.SpatialCount)
	awardsCF := entropy.NewScorer(filter.ColorCount)

	type pairScore struct {
		sf, cf int
		score  int64
	}
	tiles := 0
	for ty := 0; ty < w.tilesY; ty++ {
		for tx := 0; tx < w.tilesX; tx++ {
			if w.tileMasked(tx, ty) {
				continue
			}
			tiles++
			var pairs []pairScore
			for sf := 0; sf < filter.SpatialCount; sf++ {
				for cf := 0; cf < filter.ColorCount; cf++ {
					pairs = append(pairs, pairScore{sf: sf, cf: cf})
				}
			}
			w.forEachTilePixel(tx, ty, func(x, y int) {
				off := (y*w.w + x) * 4
				safe := x == 0 || y == 0 || x == w.w-1
				a, b, c, d := filter.SampleNeighbors(w.rgba, x, y, w.w, safe)
				for sf := 0; sf < filter.SpatialCount; sf++ {
					pred := filter.Spatials[sf](a, b, c, d)
					var tmp [3]uint8
					for i := 0; i < 3; i++ {
						tmp[i] = w.rgba[off+i] - pred[i]
					}
					for cf := 0; cf < filter.ColorCount; cf++ {
						yuv := filter.Colors[cf].Forward(tmp)
						s := int64(filter.ResidualScore(yuv[0])) +
							int64(filter.ResidualScore(yuv[1])) +
							int64(filter.ResidualScore(yuv[2]))
						pairs[sf*filter.ColorCount+cf].score += s
					}
				}
			})

			// Award the tile's best few pairs.
			for rank := 0; rank < entropy.AwardCount; rank++ {
				best := -1
				for i, p := range pairs {
					if p.score < 0 {
						continue
					}
					if best < 0 || p.score < pairs[best].score {
						best = i
					}
				}
				if best < 0 {
					break
				}
				awardsSF.Add(pairs[best].sf, entropy.Awards[rank])
				awardsCF.Add(pairs[best].cf, entropy.Awards[rank])
				pairs[best].score = -1
			}
		}
	}

	w.sfIndices = selectFilterSet(awardsSF, sfFixed, sfMax, tiles)
	w.cfIndices = selectFilterSet(awardsCF, cfFixed, cfMax, tiles)
}

// selectFilterSet keeps the first fixed catalog entries and adds the
// highest-awarded filters until coverage is satisfied or the cap is hit.
func selectFilterSet(awards *entropy.Scorer, fixed, limit, tiles int) []int {
	set := make([]int, 0, limit)
	for f := 0; f < fixed; f++ {
		set = append(set, f)
	}
	thresh := int64(filterCoverageThresh * float64(tiles) * float64(entropy.Awards[0]))
	var coverage int64
	for _, e := range awards.Highest(limit * 2) {
		if coverage >= thresh || e.Score == 0 {
			break
		}
		coverage += e.Score
		if !containsInt(set, e.Index) && len(set) < limit {
			set = append(set, e.Index)
		}
	}
	return set
}

func containsInt(s []int, v int) bool {
	for _, e := range s {
		if e == v {
			return true
		}
	}
	return false
}

// designTiles chooses the entropy-minimizing (SF, CF) pair per tile, with
// revisit passes and a neighbor-coherence reward that keeps the tile maps
// friendly to the monochrome sub-compressor.
func (w *rgbaWriter) designTiles() {
	const neighborReward = 16
	const maxPasses = 2
	var eeY, eeU, eeV entropy.Estimator
	eeY.Init()
	eeU.Init()
	eeV.Init()

	area := w.tileSize * w.tileSize
	ybuf := make([]byte, 0, area)
	ubuf := make([]byte, 0, area)
	vbuf := make([]byte, 0, area)

	collect := func(tx, ty, sf, cf int) {
		ybuf, ubuf, vbuf = ybuf[:0], ubuf[:0], vbuf[:0]
		w.forEachTilePixel(tx, ty, func(x, y int) {
			yuv := w.pixelResidual(x, y, sf, cf)
			ybuf = append(ybuf, yuv[0])
			ubuf = append(ubuf, yuv[1])
			vbuf = append(vbuf, yuv[2])
		})
	}

	revisits := w.opts.RevisitCount
	for pass := 0; pass < maxPasses; pass++ {
		for ty := 0; ty < w.tilesY; ty++ {
			for tx := 0; tx < w.tilesX; tx++ {
				ti := ty*w.tilesX + tx
				if w.tileMasked(tx, ty) {
					continue
				}
				if pass > 0 {
					if revisits--; revisits < 0 {
						return
					}
					collect(tx, ty, w.sfIndices[w.sfTiles[ti]], w.cfIndices[w.cfTiles[ti]])
					eeY.Subtract(ybuf)
					eeU.Subtract(ubuf)
					eeV.Subtract(vbuf)
				}

				bestSF, bestCF := 0, 0
				bestCost := int64(1) << 62
				for sfi := range w.sfIndices {
					for cfi := range w.cfIndices {
						collect(tx, ty, w.sfIndices[sfi], w.cfIndices[cfi])
						cost := int64(eeY.Entropy(ybuf)) + int64(eeU.Entropy(ubuf)) + int64(eeV.Entropy(vbuf))
						cost -= w.neighborBonus(tx, ty, sfi, cfi) * neighborReward
						if cost < bestCost {
							bestCost = cost
							bestSF, bestCF = sfi, cfi
						}
					}
				}
				w.sfTiles[ti] = uint8(bestSF)
				w.cfTiles[ti] = uint8(bestCF)
				collect(tx, ty, w.sfIndices[bestSF], w.cfIndices[bestCF])
				eeY.Add(ybuf)
				eeU.Add(ubuf)
				eeV.Add(vbuf)
			}
		}
	}
}

func (w *rgbaWriter) neighborBonus(tx, ty, sfi, cfi int) int64 {
	var bonus int64
	check := func(ntx, nty int) {
		if ntx < 0 || nty < 0 || ntx >= w.tilesX || nty >= w.tilesY {
			return
		}
		ti := nty*w.tilesX + ntx
		if w.sfTiles[ti] != mono.MaskTile && int(w.sfTiles[ti]) == sfi {
			bonus++
		}
		if w.cfTiles[ti] != mono.MaskTile && int(w.cfTiles[ti]) == cfi {
			bonus++
		}
	}
	check(tx-1, ty)
	check(tx, ty-1)
	check(tx-1, ty-1)
	check(tx+1, ty-1)
	return bonus
}

// sortFilters permutes the active sets into first-use order so the tile
// maps hand the monochrome sub-compressor small, spatially coherent
// symbols.
func (w *rgbaWriter) sortFilters() {
	w.sfIndices = relabelFirstUse(w.sfTiles, w.sfIndices)
	w.cfIndices = relabelFirstUse(w.cfTiles, w.cfIndices)
}

func relabelFirstUse(tiles []uint8, indices []int) []int {
	remap := make([]int, len(indices))
	for i := range remap {
		remap[i] = -1
	}
	order := make([]int, 0, len(indices))
	for _, t := range tiles {
		if t == mono.MaskTile {
			continue
		}
		if remap[t] < 0 {
			remap[t] = len(order)
			order = append(order, indices[t])
		}
	}
	// Unused set entries keep their relative order after the used ones.
	for i := range remap {
		if remap[i] < 0 {
			remap[i] = len(order)
			order = append(order, indices[i])
		}
	}
	for i, t := range tiles {
		if t != mono.MaskTile {
			tiles[i] = uint8(remap[t])
		}
	}
	return order
}

// computeResiduals materializes the YUV residual plane and the inverted
// alpha plane.
func (w *rgbaWriter) computeResiduals() {
	w.residuals = make([]byte, w.w*w.h*4)
	w.alpha = make([]byte, w.w*w.h)
	for i := 0; i < w.w*w.h; i++ {
		w.alpha[i] = ^w.rgba[i*4+3]
	}
	for ty := 0; ty < w.tilesY; ty++ {
		for tx := 0; tx < w.tilesX; tx++ {
			if w.tileMasked(tx, ty) {
				continue
			}
			ti := ty*w.tilesX + tx
			sf := w.sfIndices[w.sfTiles[ti]]
			cf := w.cfIndices[w.cfTiles[ti]]
			w.forEachTilePixel(tx, ty, func(x, y int) {
				yuv := w.pixelResidual(x, y, sf, cf)
				off := (y*w.w + x) * 4
				w.residuals[off] = yuv[0]
				w.residuals[off+1] = yuv[1]
				w.residuals[off+2] = yuv[2]
			})
		}
	}
}

// priceResiduals estimates entropy-coded bits per pixel from global
// channel histograms; the LZ cost model consumes the estimate.
func (w *rgbaWriter) priceResiduals() {
	var histY, histU, histV [256]uint32
	var total uint32
	for y := 0; y < w.h; y++ {
		for x := 0; x < w.w; x++ {
			if w.masked(x, y) {
				continue
			}
			off := (y*w.w + x) * 4
			histY[w.residuals[off]]++
			histU[w.residuals[off+1]]++
			histV[w.residuals[off+2]]++
			total++
		}
	}
	w.costs = make([]uint8, w.w*w.h)
	if total == 0 {
		return
	}
	price := func(hist *[256]uint32, v uint8) float64 {
		p := float64(hist[v]) / float64(total)
		if p <= 0 {
			return 16
		}
		return -math.Log2(p)
	}
	for y := 0; y < w.h; y++ {
		for x := 0; x < w.w; x++ {
			i := y*w.w + x
			if w.masked(x, y) {
				continue
			}
			off := i * 4
			bits := price(&histY, w.residuals[off]) +
				price(&histU, w.residuals[off+1]) +
				price(&histV, w.residuals[off+2]) + 2
			if bits < 1 {
				bits = 1
			}
			if bits > 31 {
				bits = 31
			}
			w.costs[i] = uint8(bits)
		}
	}
}

// designLZ runs the match finder and marks the covered pixels.
func (w *rgbaWriter) designLZ() {
	w.covered = make([]bool, w.w*w.h)
	if w.opts.DisableLZ {
		w.finder = lz.FindMatches(nil, 0, 0, nil, nil)
		return
	}
	w.finder = lz.FindMatches(w.rgba, w.w, w.h, w.costs, w.masked)
	w.finder.Reset()
	for w.finder.PeekOffset() >= 0 {
		m := w.finder.Pop()
		for i := int(m.Offset); i < int(m.Offset)+m.Length; i++ {
			w.covered[i] = true
		}
	}
	w.finder.Reset()
}

// compressAlpha designs the monochrome compression of the inverted alpha
// plane on the same tile grid.
func (w *rgbaWriter) compressAlpha() error {
	aw, err := mono.NewWriter(mono.Params{
		Data:         w.alpha,
		Width:        w.w,
		Height:       w.h,
		NumSyms:      256,
		MinBits:      monoMinBits,
		MaxBits:      monoMaxBits,
		Mask:         w.masked,
		RevisitCount: w.opts.RevisitCount,
	})
	if err != nil {
		return err
	}
	w.aWriter = aw
	return nil
}

// designChaos sweeps the chaos level count over the residual plane.
func (w *rgbaWriter) designChaos() {
	bestLevels := 1
	bestCost := uint32(1) << 31
	for levels := 1; levels <= filter.MaxChaosLevels; levels++ {
		eeY := make([]entropy.Estimator, levels)
		eeU := make([]entropy.Estimator, levels)
		eeV := make([]entropy.Estimator, levels)
		for i := 0; i < levels; i++ {
			eeY[i].Init()
			eeU[i].Init()
			eeV[i].Init()
		}
		cy := filter.NewChaos(levels, w.w)
		cu := filter.NewChaos(levels, w.w)
		cv := filter.NewChaos(levels, w.w)
		cy.Reset()
		cu.Reset()
		cv.Reset()
		for y := 0; y < w.h; y++ {
			for x := 0; x < w.w; x++ {
				i := y*w.w + x
				if w.masked(x, y) || w.covered[i] {
					cy.StoreZero(x)
					cu.StoreZero(x)
					cv.StoreZero(x)
					continue
				}
				off := i * 4
				eeY[cy.Get(x)].AddSingle(w.residuals[off])
				eeU[cu.Get(x)].AddSingle(w.residuals[off+1])
				eeV[cv.Get(x)].AddSingle(w.residuals[off+2])
				cy.Store(x, w.residuals[off])
				cu.Store(x, w.residuals[off+1])
				cv.Store(x, w.residuals[off+2])
			}
		}
		var cost uint32
		for i := 0; i < levels; i++ {
			cost += eeY[i].EntropyOverall() + eeY[i].TableCost()
			cost += eeU[i].EntropyOverall() + eeU[i].TableCost()
			cost += eeV[i].EntropyOverall() + eeV[i].TableCost()
		}
		if cost < bestCost {
			bestCost = cost
			bestLevels = levels
		}
	}
	w.chaosLevels = bestLevels
}

// compressTileMaps hands the SF and CF tile maps to monochrome writers.
func (w *rgbaWriter) compressTileMaps() error {
	tileMask := func(x, y int) bool {
		return w.sfTiles[y*w.tilesX+x] == mono.MaskTile
	}
	sfw, err := mono.NewWriter(mono.Params{
		Data:         w.sfTiles,
		Width:        w.tilesX,
		Height:       w.tilesY,
		NumSyms:      len(w.sfIndices),
		MinBits:      monoMinBits,
		MaxBits:      monoMaxBits,
		Mask:         tileMask,
		RevisitCount: w.opts.RevisitCount,
	})
	if err != nil {
		return err
	}
	cfw, err := mono.NewWriter(mono.Params{
		Data:         w.cfTiles,
		Width:        w.tilesX,
		Height:       w.tilesY,
		NumSyms:      len(w.cfIndices),
		MinBits:      monoMinBits,
		MaxBits:      monoMaxBits,
		Mask:         tileMask,
		RevisitCount: w.opts.RevisitCount,
	})
	if err != nil {
		return err
	}
	w.sfWriter = sfw
	w.cfWriter = cfw
	return nil
}

// write runs the statistics pass, serializes all tables, then runs the
// emission pass.
func (w *rgbaWriter) write(bw *bitio.Writer) error {
	// Statistics pass.
	w.encY = makeEncoders(w.chaosLevels, numYSyms)
	w.encU = makeEncoders(w.chaosLevels, numLitSyms)
	w.encV = makeEncoders(w.chaosLevels, numLitSyms)
	w.sfWriter.BeginAdd()
	w.cfWriter.BeginAdd()
	w.aWriter.BeginAdd()
	w.drivePixels(nil)
	w.sfWriter.FinishAdd()
	w.cfWriter.FinishAdd()
	w.aWriter.FinishAdd()
	w.sfWriter.Finalize()
	w.cfWriter.Finalize()
	w.aWriter.Finalize()
	for i := 0; i < w.chaosLevels; i++ {
		w.encY[i].Finalize()
		w.encU[i].Finalize()
		w.encV[i].Finalize()
	}

	start := bw.BitCount()
	w.writeTables(bw)
	w.tableBits = bw.BitCount() - start

	start = bw.BitCount()
	w.sfWriter.BeginWrite()
	w.cfWriter.BeginWrite()
	w.aWriter.BeginWrite()
	w.drivePixels(bw)
	w.sfWriter.FinishWrite(bw)
	w.cfWriter.FinishWrite(bw)
	w.aWriter.FinishWrite(bw)
	w.pixelBits = bw.BitCount() - start
	return nil
}

func makeEncoders(n, numSyms int) []*entropy.Encoder {
	out := make([]*entropy.Encoder, n)
	for i := range out {
		out[i] = entropy.NewEncoder(numSyms)
	}
	return out
}

// writeTables emits the stream header after the mask payload: LZ match
// count, tiling, active filter sets, chaos level, the three monochrome
// sub-headers, and the per-context Huffman tables.
func (w *rgbaWriter) writeTables(bw *bitio.Writer) {
	bw.WriteBitClass(uint32(w.finder.Len()), 5)

	bw.WriteBits(uint32(w.tileBits-1), 3)

	bw.WriteBits(uint32(len(w.sfIndices)-1), 5)
	for _, idx := range w.sfIndices {
		bw.WriteBits(uint32(idx), 7)
	}
	bw.WriteBits(uint32(len(w.cfIndices)-1), 5)
	for _, idx := range w.cfIndices {
		bw.WriteBits(uint32(idx), 5)
	}

	bw.WriteBits(uint32(w.chaosLevels-1), 4)

	w.sfWriter.WriteTables(bw)
	w.cfWriter.WriteTables(bw)
	w.aWriter.WriteTables(bw)

	for i := 0; i < w.chaosLevels; i++ {
		w.encY[i].WriteTable(bw)
		w.encU[i].WriteTable(bw)
		w.encV[i].WriteTable(bw)
	}
}

// drivePixels walks the image in raster order, once per pass: bw == nil
// gathers statistics, bw != nil emits bits. The decoder replays the exact
// same walk.
func (w *rgbaWriter) drivePixels(bw *bitio.Writer) {
	w.chaosY = filter.NewChaos(w.chaosLevels, w.w)
	w.chaosU = filter.NewChaos(w.chaosLevels, w.w)
	w.chaosV = filter.NewChaos(w.chaosLevels, w.w)
	w.chaosY.Reset()
	w.chaosU.Reset()
	w.chaosV.Reset()
	w.seen = make([]bool, w.tilesX)
	w.curTileRow = -1
	w.finder.Reset()
	lzLeft := 0

	for y := 0; y < w.h; y++ {
		w.rowHeader(y, bw)
		for x := 0; x < w.w; x++ {
			i := y*w.w + x
			if w.masked(x, y) {
				w.chaosY.StoreZero(x)
				w.chaosU.StoreZero(x)
				w.chaosV.StoreZero(x)
				w.monoPixel(w.aWriter, x, y, bw)
				if lzLeft > 0 {
					lzLeft--
				}
				continue
			}
			if lzLeft > 0 {
				lzLeft--
				w.chaosY.StoreZero(x)
				w.chaosU.StoreZero(x)
				w.chaosV.StoreZero(x)
				w.aWriter.SkipPixel(x)
				continue
			}
			if w.finder.PeekOffset() == i {
				m := w.finder.Pop()
				cy := w.chaosY.Get(x)
				escape := numLitSyms + m.EscapeClass()
				if bw == nil {
					w.encY[cy].Add(escape)
				} else {
					w.encY[cy].Write(bw, escape)
					m.WriteTail(bw)
				}
				w.chaosY.StoreZero(x)
				w.chaosU.StoreZero(x)
				w.chaosV.StoreZero(x)
				w.aWriter.SkipPixel(x)
				lzLeft = m.Length - 1
				continue
			}

			off := i * 4
			cy := w.chaosY.Get(x)
			cu := w.chaosU.Get(x)
			cv := w.chaosV.Get(x)
			resY := w.residuals[off]
			resU := w.residuals[off+1]
			resV := w.residuals[off+2]
			if bw == nil {
				w.encY[cy].Add(int(resY))
				w.encU[cu].Add(int(resU))
				w.encV[cv].Add(int(resV))
			} else {
				w.encY[cy].Write(bw, int(resY))
				w.encU[cu].Write(bw, int(resU))
				w.encV[cv].Write(bw, int(resV))
			}

			tx := x >> w.tileBits
			if !w.seen[tx] {
				w.emitTilesThrough(tx, y>>w.tileBits, bw)
			}
			w.monoPixel(w.aWriter, x, y, bw)

			w.chaosY.Store(x, resY)
			w.chaosU.Store(x, resU)
			w.chaosV.Store(x, resV)
		}
	}
	// Flush the trailing tile row's filters.
	if w.curTileRow >= 0 {
		w.emitTilesThrough(w.tilesX-1, w.curTileRow, bw)
	}
}

func (w *rgbaWriter) monoPixel(mw *mono.Writer, x, y int, bw *bitio.Writer) {
	if bw == nil {
		mw.AddPixel(x, y)
	} else {
		mw.WritePixel(x, y, bw)
	}
}

// rowHeader emits the per-row headers: at tile-row boundaries the previous
// row's pending filters, then the SF and CF sub-headers; the alpha
// sub-header every row.
func (w *rgbaWriter) rowHeader(y int, bw *bitio.Writer) {
	if y&(w.tileSize-1) == 0 {
		if w.curTileRow >= 0 {
			w.emitTilesThrough(w.tilesX-1, w.curTileRow, bw)
		}
		for i := range w.seen {
			w.seen[i] = false
		}
		ty := y >> w.tileBits
		w.curTileRow = ty
		if bw == nil {
			w.sfWriter.AddRowHeader(ty)
			w.cfWriter.AddRowHeader(ty)
		} else {
			w.sfWriter.WriteRowHeader(ty, bw)
			w.cfWriter.WriteRowHeader(ty, bw)
		}
	}
	if bw == nil {
		w.aWriter.AddRowHeader(y)
	} else {
		w.aWriter.WriteRowHeader(y, bw)
	}
}

// emitTilesThrough emits the SF then CF filter of every unseen unmasked
// tile up to and including tx in tile row ty.
func (w *rgbaWriter) emitTilesThrough(tx, ty int, bw *bitio.Writer) {
	for t := 0; t <= tx; t++ {
		if w.seen[t] {
			continue
		}
		w.seen[t] = true
		if w.tileMasked(t, ty) {
			continue
		}
		w.monoPixel(w.sfWriter, t, ty, bw)
		w.monoPixel(w.cfWriter, t, ty, bw)
	}
}
