package mono

import (
	mathbits "math/bits"

	"github.com/mrjoshuak/go-gcif/entropy"
	"github.com/mrjoshuak/go-gcif/filter"
	"github.com/mrjoshuak/go-gcif/internal/bitio"
)

// The writer emits in two passes driven by the caller over the identical
// pixel sequence: BeginAdd + AddRowHeader/AddPixel/SkipPixel gathers
// statistics and records zero-run boundaries, Finalize builds the tables,
// then BeginWrite + WriteTables/WriteRowHeader/WritePixel replays the same
// sequence emitting bits. The decoder consumes the sequence a third time.

// BeginAdd prepares the statistics pass.
func (w *Writer) BeginAdd() {
	w.encoders = make([]*entropy.Encoder, w.chaosLevels)
	for i := range w.encoders {
		w.encoders[i] = entropy.NewEncoder(w.params.NumSyms)
	}
	if w.recursive != nil {
		w.recursive.BeginAdd()
	} else {
		w.rowEncoder = entropy.NewEncoder(w.filterCount())
	}
	w.beginPass()
}

// BeginWrite prepares the emission pass. Call after Finalize.
func (w *Writer) BeginWrite() {
	if w.recursive != nil {
		w.recursive.BeginWrite()
	}
	w.beginPass()
}

func (w *Writer) beginPass() {
	w.chaos = filter.NewChaos(w.chaosLevels, w.params.Width)
	w.chaos.Reset()
	w.seen = make([]bool, w.tilesX)
	w.curTileRow = -1
}

// FinishAdd flushes the trailing tile row of the statistics pass. Call
// after the last AddPixel and before Finalize.
func (w *Writer) FinishAdd() {
	w.finishPass(nil)
}

// FinishWrite flushes the trailing tile row of the emission pass. Call
// after the last WritePixel.
func (w *Writer) FinishWrite(bw *bitio.Writer) {
	w.finishPass(bw)
}

func (w *Writer) finishPass(bw *bitio.Writer) {
	if w.curTileRow >= 0 {
		w.emitTilesThrough(w.tilesX-1, w.curTileRow, bw)
	}
	if w.recursive != nil {
		w.recursive.finishPass(bw)
	}
}

// Finalize flushes pending zero runs and builds all Huffman tables. Call
// exactly once, between the Add pass and the Write pass.
func (w *Writer) Finalize() {
	for _, e := range w.encoders {
		e.Finalize()
	}
	if w.recursive != nil {
		w.recursive.Finalize()
	} else {
		w.rowEncoder.Finalize()
	}
}

// AddRowHeader accounts the row header for image row y during the
// statistics pass.
func (w *Writer) AddRowHeader(y int) {
	w.rowHeader(y, nil)
}

// WriteRowHeader emits the row header for image row y: at each tile-row
// boundary, the recursive writer's row header or the 2-bit row filter.
func (w *Writer) WriteRowHeader(y int, bw *bitio.Writer) {
	w.rowHeader(y, bw)
}

func (w *Writer) rowHeader(y int, bw *bitio.Writer) {
	if y&(w.tileSize-1) != 0 {
		return
	}
	// Emit any tiles of the finished row nothing triggered; the next tile
	// row predicts from them, so they cannot stay pending.
	if w.curTileRow >= 0 {
		w.emitTilesThrough(w.tilesX-1, w.curTileRow, bw)
	}
	for i := range w.seen {
		w.seen[i] = false
	}
	ty := y >> w.tileBits
	w.curTileRow = ty
	if w.recursive != nil {
		w.recursive.rowHeader(ty, bw)
	} else if bw != nil {
		bw.WriteBits(uint32(w.rowFilters[ty]), 2)
	}
}

// AddPixel accounts element (x, y) during the statistics pass.
func (w *Writer) AddPixel(x, y int) {
	w.pixel(x, y, nil)
}

// WritePixel emits element (x, y) during the emission pass.
func (w *Writer) WritePixel(x, y int, bw *bitio.Writer) {
	w.pixel(x, y, bw)
}

// SkipPixel advances the chaos model past an element whose value the
// decoder obtains elsewhere (an LZ-copied pixel). Nothing is emitted and
// no tile filter is triggered.
func (w *Writer) SkipPixel(x int) {
	w.chaos.StoreZero(x)
}

func (w *Writer) pixel(x, y int, bw *bitio.Writer) {
	if w.params.Mask(x, y) {
		w.chaos.StoreZero(x)
		return
	}
	tx := x >> w.tileBits
	ty := y >> w.tileBits
	if !w.seen[tx] {
		w.emitTilesThrough(tx, ty, bw)
	}
	f := w.tiles[ty*w.tilesX+tx]
	if int(f) >= len(w.normalIndices) {
		// Palette tile: the filter index alone reconstructs the value.
		w.chaos.StoreZero(x)
		return
	}
	res := w.residuals[y*w.params.Width+x]
	bin := w.chaos.Get(x)
	if bw == nil {
		w.encoders[bin].Add(int(res))
	} else {
		w.encoders[bin].Write(bw, int(res))
	}
	w.chaos.Store(x, res)
}

// emitTilesThrough emits the filters of all unseen unmasked tiles up to
// and including tx in tile row ty, left to right. Forcing the catch-up
// keeps the emission order raster regardless of mask shape, so the decoder
// can predict from its fully-decoded left neighbors.
func (w *Writer) emitTilesThrough(tx, ty int, bw *bitio.Writer) {
	for t := 0; t <= tx; t++ {
		if w.seen[t] {
			continue
		}
		w.seen[t] = true
		if w.tiles[ty*w.tilesX+t] == MaskTile {
			continue
		}
		if w.recursive != nil {
			w.recursive.pixel(t, ty, bw)
			continue
		}
		code := w.rowCode(t, ty, int(w.rowFilters[ty]))
		if bw == nil {
			w.rowEncoder.Add(int(code))
		} else {
			w.rowEncoder.Write(bw, int(code))
		}
	}
}

// WriteTables serializes the header: tiling, filter sets, chaos level,
// per-chaos coder tables, and the tile-map codec (recursive header or the
// row-filter code table).
func (w *Writer) WriteTables(bw *bitio.Writer) {
	p := w.params
	if p.MaxBits > p.MinBits {
		width := uint(mathbits.Len(uint(p.MaxBits - p.MinBits)))
		bw.WriteBits(uint32(w.tileBits-p.MinBits), width)
	}

	bw.WriteBits(uint32(len(w.normalIndices)-1), 5)
	for _, idx := range w.normalIndices {
		bw.WriteBits(uint32(idx), 7)
	}
	bw.WriteBits(uint32(len(w.sympal)), 4)
	for _, v := range w.sympal {
		bw.WriteBits(uint32(v), 8)
	}

	bw.WriteBits(uint32(w.chaosLevels-1), 4)
	for _, e := range w.encoders {
		e.WriteTable(bw)
	}

	if w.recursive != nil {
		bw.WriteBit(1)
		w.recursive.WriteTables(bw)
	} else {
		bw.WriteBit(0)
		w.rowEncoder.WriteTable(bw)
	}
}

// TileBits returns the chosen tile size exponent.
func (w *Writer) TileBits() int {
	return w.tileBits
}

// TilesAcross returns the tile grid width.
func (w *Writer) TilesAcross() int {
	return w.tilesX
}

// TileIsMasked reports whether tile (tx, ty) is fully masked.
func (w *Writer) TileIsMasked(tx, ty int) bool {
	return w.tiles[ty*w.tilesX+tx] == MaskTile
}
