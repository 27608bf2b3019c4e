// Package filter provides the closed filter catalogs and the chaos metric
// used by the GCIF codec.
//
// Three catalogs are defined: spatial filters predicting an RGB triplet from
// the already-decoded 3-neighborhood of a pixel, reversible color transforms
// between RGB and a decorrelated YUV-like space, and monochrome filters
// predicting a single byte for the tiled sub-compressor. All catalogs are
// fixed at build time and must be bit-exact between encoder and decoder.
package filter

// Neighbor naming for a pixel P follows the usual raster convention:
//
//	C B D
//	A P
//
// A is left, B is up, C is up-left, D is up-right.

// SpatialCount is the number of spatial filters in the catalog. Wire indices
// into the catalog occupy 7 bits.
const SpatialCount = 30

// Spatial is a spatial filter: it predicts the (R, G, B) bytes of a pixel
// from its neighbors.
type Spatial func(a, b, c, d [3]uint8) [3]uint8

// Spatials is the fixed spatial filter catalog, indexed by wire ordinal.
var Spatials = [SpatialCount]Spatial{
	sfZero,      // 0
	sfA,         // 1
	sfB,         // 2
	sfC,         // 3
	sfD,         // 4
	sfAvgAB,     // 5
	sfAvgAC,     // 6
	sfAvgAD,     // 7
	sfAvgBC,     // 8
	sfAvgBD,     // 9
	sfAvgCD,     // 10
	sfAvgABCD,   // 11
	sfAAB,       // 12
	sfABB,       // 13
	sfBBD,       // 14
	sfBDD,       // 15
	sfAAC,       // 16
	sfBBC,       // 17
	sfGrad,      // 18
	sfClampGrad, // 19
	sfPaeth,     // 20
	sfSelect,    // 21
	sfGradD,     // 22
	sfAvgABC,    // 23
	sfAvgBCD,    // 24
	sfHalfGradA, // 25
	sfHalfGradB, // 26
	sfAAAB,      // 27
	sfABBB,      // 28
	sfPaethD,    // 29
}

// SampleNeighbors gathers the A, B, C, D neighbor triplets for pixel (x, y)
// in a row-major RGBA plane of the given width.
//
// When safe is set, out-of-image neighbors read as zero except that a
// missing C or D on an interior row falls back to B, which keeps gradient
// predictors usable along the left and right edges. Interior callers pass
// safe=false and skip all bounds checks.
func SampleNeighbors(p []byte, x, y, width int, safe bool) (a, b, c, d [3]uint8) {
	off := (y*width + x) * 4
	stride := width * 4
	if !safe {
		a = [3]uint8{p[off-4], p[off-3], p[off-2]}
		b = [3]uint8{p[off-stride], p[off-stride+1], p[off-stride+2]}
		c = [3]uint8{p[off-stride-4], p[off-stride-3], p[off-stride-2]}
		d = [3]uint8{p[off-stride+4], p[off-stride+5], p[off-stride+6]}
		return
	}
	if x > 0 {
		a = [3]uint8{p[off-4], p[off-3], p[off-2]}
	}
	if y > 0 {
		b = [3]uint8{p[off-stride], p[off-stride+1], p[off-stride+2]}
		if x > 0 {
			c = [3]uint8{p[off-stride-4], p[off-stride-3], p[off-stride-2]}
		} else {
			c = b
		}
		if x < width-1 {
			d = [3]uint8{p[off-stride+4], p[off-stride+5], p[off-stride+6]}
		} else {
			d = b
		}
	}
	return
}

func sfZero(a, b, c, d [3]uint8) [3]uint8 { return [3]uint8{} }
func sfA(a, b, c, d [3]uint8) [3]uint8    { return a }
func sfB(a, b, c, d [3]uint8) [3]uint8    { return b }
func sfC(a, b, c, d [3]uint8) [3]uint8    { return c }
func sfD(a, b, c, d [3]uint8) [3]uint8    { return d }

func avg2(x, y [3]uint8) [3]uint8 {
	var o [3]uint8
	for i := range o {
		o[i] = uint8((int(x[i]) + int(y[i])) >> 1)
	}
	return o
}

func sfAvgAB(a, b, c, d [3]uint8) [3]uint8 { return avg2(a, b) }
func sfAvgAC(a, b, c, d [3]uint8) [3]uint8 { return avg2(a, c) }
func sfAvgAD(a, b, c, d [3]uint8) [3]uint8 { return avg2(a, d) }
func sfAvgBC(a, b, c, d [3]uint8) [3]uint8 { return avg2(b, c) }
func sfAvgBD(a, b, c, d [3]uint8) [3]uint8 { return avg2(b, d) }
func sfAvgCD(a, b, c, d [3]uint8) [3]uint8 { return avg2(c, d) }

func sfAvgABCD(a, b, c, d [3]uint8) [3]uint8 {
	var o [3]uint8
	for i := range o {
		o[i] = uint8((int(a[i]) + int(b[i]) + int(c[i]) + int(d[i])) >> 2)
	}
	return o
}

func weight3(x, y [3]uint8) [3]uint8 {
	var o [3]uint8
	for i := range o {
		o[i] = uint8((2*int(x[i]) + int(y[i])) / 3)
	}
	return o
}

func sfAAB(a, b, c, d [3]uint8) [3]uint8 { return weight3(a, b) }
func sfABB(a, b, c, d [3]uint8) [3]uint8 { return weight3(b, a) }
func sfBBD(a, b, c, d [3]uint8) [3]uint8 { return weight3(b, d) }
func sfBDD(a, b, c, d [3]uint8) [3]uint8 { return weight3(d, b) }
func sfAAC(a, b, c, d [3]uint8) [3]uint8 { return weight3(a, c) }
func sfBBC(a, b, c, d [3]uint8) [3]uint8 { return weight3(b, c) }

func weight4(x, y [3]uint8) [3]uint8 {
	var o [3]uint8
	for i := range o {
		o[i] = uint8((3*int(x[i]) + int(y[i])) >> 2)
	}
	return o
}

func sfAAAB(a, b, c, d [3]uint8) [3]uint8 { return weight4(a, b) }
func sfABBB(a, b, c, d [3]uint8) [3]uint8 { return weight4(b, a) }

// sfGrad is the wrapping planar gradient A + B - C.
func sfGrad(a, b, c, d [3]uint8) [3]uint8 {
	var o [3]uint8
	for i := range o {
		o[i] = uint8(int(a[i]) + int(b[i]) - int(c[i]))
	}
	return o
}

// sfClampGrad clamps the planar gradient to the [min(A,B), max(A,B)] range,
// the LOCO-I median predictor.
func sfClampGrad(a, b, c, d [3]uint8) [3]uint8 {
	var o [3]uint8
	for i := range o {
		o[i] = clampGrad(a[i], b[i], c[i])
	}
	return o
}

func clampGrad(a, b, c uint8) uint8 {
	lo, hi := a, b
	if lo > hi {
		lo, hi = hi, lo
	}
	g := int(a) + int(b) - int(c)
	if g < int(lo) {
		return lo
	}
	if g > int(hi) {
		return hi
	}
	return uint8(g)
}

func sfPaeth(a, b, c, d [3]uint8) [3]uint8 {
	var o [3]uint8
	for i := range o {
		o[i] = paeth(a[i], b[i], c[i])
	}
	return o
}

// sfPaethD runs the Paeth selector over the (D, B, C) neighborhood instead
// of (A, B, C), which favors down-left diagonal structure.
func sfPaethD(a, b, c, d [3]uint8) [3]uint8 {
	var o [3]uint8
	for i := range o {
		o[i] = paeth(d[i], b[i], c[i])
	}
	return o
}

func paeth(a, b, c uint8) uint8 {
	g := int(a) + int(b) - int(c)
	pa := abs(g - int(a))
	pb := abs(g - int(b))
	pc := abs(g - int(c))
	if pa <= pb && pa <= pc {
		return a
	}
	if pb <= pc {
		return b
	}
	return c
}

// sfSelect predicts from the neighbor along the weaker gradient: a vertical
// edge (B differs from C more than A does) favors the up neighbor, a
// horizontal edge favors the left neighbor.
func sfSelect(a, b, c, d [3]uint8) [3]uint8 {
	var o [3]uint8
	for i := range o {
		if abs(int(a[i])-int(c[i])) < abs(int(b[i])-int(c[i])) {
			o[i] = b[i]
		} else {
			o[i] = a[i]
		}
	}
	return o
}

// sfGradD is a diagonal gradient built from the up row: B + (D-C)/2.
func sfGradD(a, b, c, d [3]uint8) [3]uint8 {
	var o [3]uint8
	for i := range o {
		o[i] = uint8(int(b[i]) + (int(d[i])-int(c[i]))/2)
	}
	return o
}

func sfAvgABC(a, b, c, d [3]uint8) [3]uint8 {
	var o [3]uint8
	for i := range o {
		o[i] = uint8((int(a[i]) + int(b[i]) + int(c[i])) / 3)
	}
	return o
}

func sfAvgBCD(a, b, c, d [3]uint8) [3]uint8 {
	var o [3]uint8
	for i := range o {
		o[i] = uint8((int(b[i]) + int(c[i]) + int(d[i])) / 3)
	}
	return o
}

func sfHalfGradA(a, b, c, d [3]uint8) [3]uint8 {
	var o [3]uint8
	for i := range o {
		o[i] = uint8(int(a[i]) + (int(b[i])-int(c[i]))/2)
	}
	return o
}

func sfHalfGradB(a, b, c, d [3]uint8) [3]uint8 {
	var o [3]uint8
	for i := range o {
		o[i] = uint8(int(b[i]) + (int(a[i])-int(c[i]))/2)
	}
	return o
}

func abs(v int) int {
	if v < 0 {
		return -v
	}
	return v
}
