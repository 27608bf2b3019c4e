package gcif

import (
	"bytes"
	"io"

	"github.com/klauspost/compress/zlib"

	"github.com/mrjoshuak/go-gcif/internal/bitio"
	"github.com/mrjoshuak/go-gcif/internal/rle"
)

// The dominant-color mask layer pre-identifies pixels of one globally
// chosen color, typically the fully-transparent background of sprites.
// Those pixels are excluded from the context-modeling core entirely: the
// decoder fills them from the declared color.
//
// The bitmap is serialized as one bit per pixel, rows XOR-differenced
// against the previous row, run-length collapsed, then DEFLATE compressed.

// maskMinCoverage is the fraction denominator: the mask ships only when the
// dominant color covers at least pixels/maskMinCoverage of the image.
const maskMinCoverage = 16

type maskPlane struct {
	enabled bool
	color   [4]uint8
	bits    []byte // 1 bpp, row-major, rows padded to byte boundaries
	width   int
	height  int
}

func (m *maskPlane) masked(x, y int) bool {
	if !m.enabled {
		return false
	}
	rowBytes := (m.width + 7) / 8
	return m.bits[y*rowBytes+x/8]&(0x80>>uint(x%8)) != 0
}

// buildMask analyzes the image and constructs the mask plane. The dominant
// color is the most frequent fully-transparent pixel value; a mask is only
// worth its payload when it covers a meaningful share of the image.
func buildMask(rgba []byte, width, height int) *maskPlane {
	m := &maskPlane{width: width, height: height}
	counts := make(map[[4]uint8]int)
	for i := 0; i < width*height; i++ {
		if rgba[i*4+3] != 0 {
			continue
		}
		var c [4]uint8
		copy(c[:], rgba[i*4:i*4+4])
		counts[c]++
	}
	best := 0
	var bestColor [4]uint8
	for c, n := range counts {
		if n > best || (n == best && less(c, bestColor)) {
			best = n
			bestColor = c
		}
	}
	if best < max(16, width*height/maskMinCoverage) {
		return m
	}

	m.enabled = true
	m.color = bestColor
	rowBytes := (width + 7) / 8
	m.bits = make([]byte, rowBytes*height)
	for y := 0; y < height; y++ {
		for x := 0; x < width; x++ {
			i := y*width + x
			if rgba[i*4] == bestColor[0] && rgba[i*4+1] == bestColor[1] &&
				rgba[i*4+2] == bestColor[2] && rgba[i*4+3] == bestColor[3] {
				m.bits[y*rowBytes+x/8] |= 0x80 >> uint(x%8)
			}
		}
	}
	return m
}

func less(a, b [4]uint8) bool {
	for i := range a {
		if a[i] != b[i] {
			return a[i] < b[i]
		}
	}
	return false
}

// write serializes the mask payload: an enable bit, then the color, then
// the row-differenced RLE+DEFLATE bitmap with a byte-count prefix.
func (m *maskPlane) write(bw *bitio.Writer) error {
	if !m.enabled {
		bw.WriteBit(0)
		return nil
	}
	bw.WriteBit(1)
	for _, c := range m.color {
		bw.WriteBits(uint32(c), 8)
	}

	rowBytes := (m.width + 7) / 8
	var buf bytes.Buffer
	zw := zlib.NewWriter(&buf)
	if _, err := zw.Write(rle.CompressBitmap(m.bits, rowBytes, m.height)); err != nil {
		return err
	}
	if err := zw.Close(); err != nil {
		return err
	}

	bw.WriteBitClass(uint32(buf.Len()), 5)
	for _, b := range buf.Bytes() {
		bw.WriteBits(uint32(b), 8)
	}
	return nil
}

// readMask deserializes the mask payload.
func readMask(r *bitio.Reader, width, height int) (*maskPlane, error) {
	m := &maskPlane{width: width, height: height}
	if r.ReadBit() == 0 {
		if r.Overflowed() {
			return nil, ErrCorrupt
		}
		return m, nil
	}
	m.enabled = true
	for i := range m.color {
		m.color[i] = uint8(r.ReadBits(8))
	}

	n := int(r.ReadBitClass(5))
	if r.Overflowed() || n > width*height+1024 {
		return nil, ErrCorrupt
	}
	payload := make([]byte, n)
	for i := range payload {
		payload[i] = byte(r.ReadBits(8))
	}
	if r.Overflowed() {
		return nil, ErrCorrupt
	}

	zr, err := zlib.NewReader(bytes.NewReader(payload))
	if err != nil {
		return nil, ErrCorrupt
	}
	defer zr.Close()
	packed, err := io.ReadAll(zr)
	if err != nil {
		return nil, ErrCorrupt
	}

	rowBytes := (width + 7) / 8
	bits, err := rle.DecompressBitmap(packed, rowBytes, height)
	if err != nil {
		return nil, ErrCorrupt
	}
	m.bits = bits
	return m, nil
}
