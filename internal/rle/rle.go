// Package rle codes the dominant-color mask bitmap: a 1-bpp plane, packed
// row-major with rows padded to byte boundaries.
//
// Each row is XOR-differenced against the row above as it is scanned, so
// only mask edges survive and the delta plane is almost entirely zero
// bytes. The stream alternates a zero-byte run count with a literal run
// (count plus raw bytes), both counts written base-255 with 0xFF
// continuation, starting with a zero run (possibly empty). A DEFLATE pass
// downstream squeezes what little structure remains.
package rle

import "errors"

// ErrCorrupt is returned when a mask bitmap stream is truncated or does
// not decode to exactly the declared plane size.
var ErrCorrupt = errors.New("rle: corrupted mask bitmap")

const maxCountByte = 0xFF

func appendCount(dst []byte, n int) []byte {
	for n >= maxCountByte {
		dst = append(dst, maxCountByte)
		n -= maxCountByte
	}
	return append(dst, byte(n))
}

func readCount(src []byte, pos int) (int, int, error) {
	n := 0
	for {
		if pos >= len(src) {
			return 0, 0, ErrCorrupt
		}
		b := src[pos]
		pos++
		n += int(b)
		if b != maxCountByte {
			return n, pos, nil
		}
	}
}

// CompressBitmap row-differences and run-codes a packed bitmap of height
// rows of rowBytes bytes each.
func CompressBitmap(bits []byte, rowBytes, height int) []byte {
	dst := make([]byte, 0, rowBytes*height/8+16)

	// Run state carries across row boundaries: a pending zero count, or an
	// open literal run whose count byte at litStart is fixed up when the
	// run closes.
	zeros := 0
	litStart := -1

	prevRow := make([]byte, rowBytes)
	for y := 0; y < height; y++ {
		row := bits[y*rowBytes : (y+1)*rowBytes]
		for i := 0; i < rowBytes; i++ {
			b := row[i] ^ prevRow[i]
			if b == 0 {
				if litStart >= 0 {
					dst = closeLiteral(dst, litStart)
					litStart = -1
				}
				zeros++
				continue
			}
			if litStart < 0 {
				dst = appendCount(dst, zeros)
				zeros = 0
				litStart = len(dst)
				dst = append(dst, 0) // literal count, fixed on close
			}
			dst = append(dst, b)
		}
		copy(prevRow, row)
	}
	if litStart >= 0 {
		dst = closeLiteral(dst, litStart)
	} else {
		dst = appendCount(dst, zeros)
	}
	return dst
}

// closeLiteral rewrites the count placeholder at litStart with the run's
// real length, expanding it to continuation form when the run is long.
func closeLiteral(dst []byte, litStart int) []byte {
	n := len(dst) - litStart - 1
	if n < maxCountByte {
		dst[litStart] = byte(n)
		return dst
	}
	lits := make([]byte, n)
	copy(lits, dst[litStart+1:])
	dst = appendCount(dst[:litStart], n)
	return append(dst, lits...)
}

// DecompressBitmap reverses CompressBitmap into a rowBytes*height plane.
func DecompressBitmap(src []byte, rowBytes, height int) ([]byte, error) {
	out := make([]byte, rowBytes*height)
	pos := 0
	at := 0
	wantLit := false
	for pos < len(src) {
		n, next, err := readCount(src, pos)
		if err != nil {
			return nil, err
		}
		pos = next
		if wantLit {
			if pos+n > len(src) || at+n > len(out) {
				return nil, ErrCorrupt
			}
			copy(out[at:], src[pos:pos+n])
			pos += n
			at += n
		} else {
			if at+n > len(out) {
				return nil, ErrCorrupt
			}
			at += n // the delta plane starts zeroed
		}
		wantLit = !wantLit
	}
	if at != len(out) {
		return nil, ErrCorrupt
	}

	// Undo the row differencing top to bottom.
	for y := 1; y < height; y++ {
		for i := 0; i < rowBytes; i++ {
			out[y*rowBytes+i] ^= out[(y-1)*rowBytes+i]
		}
	}
	return out, nil
}
