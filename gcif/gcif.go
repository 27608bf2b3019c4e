// Package gcif implements a lossless still-image codec for 32-bit RGBA
// raster data.
//
// The codec targets UI sprites and computer-generated artwork: sharp
// edges, flat regions, and high alpha variance. A dominant-color mask
// removes the background, per-tile spatial and color filters decorrelate
// the rest, an LZ layer copies repeated pixel runs, and the residuals are
// coded by static Huffman tables selected by a per-pixel "chaos" context.
// Decoding is a single raster pass over the pixels.
//
// Encode and Decode are the entry points:
//
//	data, err := gcif.Encode(img, nil)
//	img, err := gcif.Decode(data)
package gcif

import (
	"encoding/binary"
	"errors"
	"fmt"

	"github.com/mrjoshuak/go-gcif/internal/bitio"
)

// Codec errors.
var (
	// ErrCorrupt is returned when a bitstream fails validation during
	// decode. No partial image is returned.
	ErrCorrupt = errors.New("gcif: corrupt bitstream")

	// ErrBadOptions is returned when encode options are outside allowed
	// ranges.
	ErrBadOptions = errors.New("gcif: options out of range")

	// ErrImageTooLarge is returned when a dimension exceeds the 16-bit
	// header fields.
	ErrImageTooLarge = errors.New("gcif: image dimension exceeds 65535")

	// ErrBadImage is returned when the pixel buffer does not match the
	// declared dimensions.
	ErrBadImage = errors.New("gcif: pixel buffer size mismatch")
)

// Container constants.
const (
	magic   = 0x47434946 // "GCIF"
	version = 2
)

// Image is a 32-bit RGBA raster: Pix holds Width*Height*4 bytes, row-major,
// [R, G, B, A] per pixel.
type Image struct {
	Width  int
	Height int
	Pix    []byte
}

// NewImage allocates an Image of the given dimensions.
func NewImage(width, height int) *Image {
	return &Image{Width: width, Height: height, Pix: make([]byte, width*height*4)}
}

// Options tunes the encoder. The zero value of each field selects the
// shipping default.
type Options struct {
	// TileBits is the spatial/color filter tile size exponent; tiles are
	// square with side 1<<TileBits. Valid range 1..4; default 2 (4x4).
	TileBits int

	// DisableLZ turns the pixel-copy layer off.
	DisableLZ bool

	// RevisitCount bounds how many tiles the tile-design refinement passes
	// re-decide.
	RevisitCount int

	// Stats, when non-nil, receives encoder-side accounting. It never
	// influences the bitstream.
	Stats *EncodeStats
}

// EncodeStats is the optional encoder side channel: bit counts per stream.
type EncodeStats struct {
	HeaderBits  int
	MaskBits    int
	TableBits   int
	PixelBits   int
	TotalBits   int
	LZMatches   int
	ChaosLevels int
	SFCount     int
	CFCount     int
}

func (o *Options) withDefaults() (*Options, error) {
	out := Options{TileBits: 2, RevisitCount: 4096}
	if o != nil {
		if o.TileBits != 0 {
			out.TileBits = o.TileBits
		}
		if o.RevisitCount != 0 {
			out.RevisitCount = o.RevisitCount
		}
		out.DisableLZ = o.DisableLZ
		out.Stats = o.Stats
	}
	if out.TileBits < 1 || out.TileBits > 4 {
		return nil, fmt.Errorf("%w: tile bits %d", ErrBadOptions, out.TileBits)
	}
	return &out, nil
}

// Encode compresses img. A nil opts selects defaults. Encoding never
// produces a partially valid stream: any failure discards the output.
func Encode(img *Image, opts *Options) ([]byte, error) {
	if img.Width < 1 || img.Height < 1 {
		return nil, ErrBadImage
	}
	if img.Width > 0xFFFF || img.Height > 0xFFFF {
		return nil, ErrImageTooLarge
	}
	if len(img.Pix) != img.Width*img.Height*4 {
		return nil, ErrBadImage
	}
	o, err := opts.withDefaults()
	if err != nil {
		return nil, err
	}

	bw := bitio.NewWriter(img.Width*img.Height/2 + 1024)
	bw.WriteBits(magic, 32)
	bw.WriteBits(version, 8)
	bw.WriteBits(uint32(img.Width), 16)
	bw.WriteBits(uint32(img.Height), 16)
	headerBits := bw.BitCount()

	mask := buildMask(img.Pix, img.Width, img.Height)
	if err := mask.write(bw); err != nil {
		return nil, err
	}
	maskBits := bw.BitCount() - headerBits

	w, err := newRGBAWriter(img, mask, o)
	if err != nil {
		return nil, err
	}
	if err := w.write(bw); err != nil {
		return nil, err
	}

	if o.Stats != nil {
		o.Stats.HeaderBits = headerBits
		o.Stats.MaskBits = maskBits
		o.Stats.TableBits = w.tableBits
		o.Stats.PixelBits = w.pixelBits
		o.Stats.TotalBits = bw.BitCount()
		o.Stats.LZMatches = w.finder.Len()
		o.Stats.ChaosLevels = w.chaosLevels
		o.Stats.SFCount = len(w.sfIndices)
		o.Stats.CFCount = len(w.cfIndices)
	}

	bits := bw.BitCount()
	payload := bw.Bytes()
	out := make([]byte, len(payload)+4)
	copy(out, payload)
	binary.BigEndian.PutUint32(out[len(payload):], uint32(bits))
	return out, nil
}

// Decode decompresses a GCIF stream. Decode fails fast: the first
// validation failure aborts with ErrCorrupt and no partial image.
func Decode(data []byte) (*Image, error) {
	if len(data) < 4+9 {
		return nil, ErrCorrupt
	}
	declaredBits := int(binary.BigEndian.Uint32(data[len(data)-4:]))
	payload := data[:len(data)-4]
	if declaredBits > len(payload)*8 {
		return nil, ErrCorrupt
	}

	r := bitio.NewReader(payload)
	if r.ReadBits(32) != magic {
		return nil, ErrCorrupt
	}
	if r.ReadBits(8) != version {
		return nil, ErrCorrupt
	}
	width := int(r.ReadBits(16))
	height := int(r.ReadBits(16))
	if width < 1 || height < 1 || r.Overflowed() {
		return nil, ErrCorrupt
	}

	mask, err := readMask(r, width, height)
	if err != nil {
		return nil, err
	}

	// Failures in the entropy, mono and lz layers surface as ErrCorrupt,
	// wrapping that layer's own error.
	corrupt := func(err error) error {
		if errors.Is(err, ErrCorrupt) {
			return err
		}
		return fmt.Errorf("%w: %w", ErrCorrupt, err)
	}

	img := NewImage(width, height)
	rd, err := newRGBAReader(r, img, mask)
	if err != nil {
		return nil, corrupt(err)
	}
	if err := rd.read(r); err != nil {
		return nil, corrupt(err)
	}
	if r.Overflowed() || r.BitCount() != declaredBits {
		return nil, ErrCorrupt
	}
	return img, nil
}
