package gcif

import (
	"bytes"
	"math/rand"
	"testing"
)

func roundTrip(t *testing.T, img *Image, opts *Options) []byte {
	t.Helper()
	data, err := Encode(img, opts)
	if err != nil {
		t.Fatalf("Encode: %v", err)
	}
	got, err := Decode(data)
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}
	if got.Width != img.Width || got.Height != img.Height {
		t.Fatalf("dimensions: got %dx%d, want %dx%d", got.Width, got.Height, img.Width, img.Height)
	}
	if !bytes.Equal(got.Pix, img.Pix) {
		for i := 0; i < len(img.Pix); i += 4 {
			if !bytes.Equal(got.Pix[i:i+4], img.Pix[i:i+4]) {
				x, y := (i/4)%img.Width, (i/4)/img.Width
				t.Fatalf("first mismatch at (%d,%d): got %v, want %v",
					x, y, got.Pix[i:i+4], img.Pix[i:i+4])
			}
		}
	}
	return data
}

func fill(img *Image, r, g, b, a uint8) {
	for i := 0; i < len(img.Pix); i += 4 {
		img.Pix[i], img.Pix[i+1], img.Pix[i+2], img.Pix[i+3] = r, g, b, a
	}
}

func TestRoundTripUniformBlack(t *testing.T) {
	// 4x4, all opaque black: the palette-filter path, near-zero payload.
	img := NewImage(4, 4)
	fill(img, 0, 0, 0, 255)
	stats := &EncodeStats{}
	data := roundTrip(t, img, &Options{Stats: stats})
	if len(data) > 200 {
		t.Errorf("uniform 4x4 compressed to %d bytes, expected a small stream", len(data))
	}
	if stats.ChaosLevels != 1 {
		t.Errorf("uniform input chose %d chaos levels, want 1", stats.ChaosLevels)
	}
}

func TestRoundTripAlternatingRows(t *testing.T) {
	// 8x8 alternating red/green rows: subtract-up territory.
	img := NewImage(8, 8)
	for y := 0; y < 8; y++ {
		for x := 0; x < 8; x++ {
			i := (y*8 + x) * 4
			if y%2 == 0 {
				img.Pix[i], img.Pix[i+3] = 255, 255
			} else {
				img.Pix[i+1], img.Pix[i+3] = 255, 255
			}
		}
	}
	roundTrip(t, img, nil)
}

func TestRoundTripHorizontalRamp(t *testing.T) {
	// 64x1 ramp R=G=B=x: subtract-left territory, constant residuals.
	img := NewImage(64, 1)
	for x := 0; x < 64; x++ {
		i := x * 4
		img.Pix[i], img.Pix[i+1], img.Pix[i+2], img.Pix[i+3] = uint8(x), uint8(x), uint8(x), 255
	}
	roundTrip(t, img, nil)
}

func TestRoundTripRandom(t *testing.T) {
	// 32x32 random RGBA: round trip holds even when compression loses.
	img := NewImage(32, 32)
	rng := rand.New(rand.NewSource(1))
	rng.Read(img.Pix)
	roundTrip(t, img, nil)
}

func TestRoundTripRepeatedRow(t *testing.T) {
	// 256x2 with identical rows: the LZ layer should carry row two.
	img := NewImage(256, 2)
	rng := rand.New(rand.NewSource(2))
	rng.Read(img.Pix[:256*4])
	// Keep alpha opaque so the mask stays out of the way.
	for i := 3; i < 256*4; i += 4 {
		img.Pix[i] = 255
	}
	copy(img.Pix[256*4:], img.Pix[:256*4])

	stats := &EncodeStats{}
	roundTrip(t, img, &Options{Stats: stats})
	if stats.LZMatches == 0 {
		t.Error("expected at least one LZ match on a repeated row")
	}
}

func TestRoundTripMaskedRegion(t *testing.T) {
	// 16x16 with a fully-transparent region large enough to earn the
	// dominant-color mask; decoded pixels there equal the mask color.
	img := NewImage(16, 16)
	rng := rand.New(rand.NewSource(3))
	rng.Read(img.Pix)
	for i := 3; i < len(img.Pix); i += 4 {
		img.Pix[i] = 255
	}
	for y := 0; y < 8; y++ {
		for x := 0; x < 8; x++ {
			i := (y*16 + x) * 4
			img.Pix[i], img.Pix[i+1], img.Pix[i+2], img.Pix[i+3] = 0, 0, 0, 0
		}
	}
	roundTrip(t, img, nil)
}

func TestRoundTripAllTransparent(t *testing.T) {
	// Fully masked image: header-only stream, decoder fills from the mask.
	img := NewImage(16, 16)
	data := roundTrip(t, img, nil)
	if len(data) > 300 {
		t.Errorf("all-masked 16x16 compressed to %d bytes", len(data))
	}
}

func TestRoundTripSinglePixel(t *testing.T) {
	img := NewImage(1, 1)
	img.Pix[0], img.Pix[1], img.Pix[2], img.Pix[3] = 10, 20, 30, 40
	roundTrip(t, img, nil)
}

func TestRoundTripNonTileMultiple(t *testing.T) {
	// Dimensions that leave partial tiles on the right and bottom.
	for _, dim := range [][2]int{{5, 3}, {17, 9}, {33, 31}, {1, 64}, {64, 1}} {
		img := NewImage(dim[0], dim[1])
		rng := rand.New(rand.NewSource(int64(dim[0]*100 + dim[1])))
		rng.Read(img.Pix)
		roundTrip(t, img, nil)
	}
}

func TestRoundTripSpriteLike(t *testing.T) {
	// Flat regions, sharp edges, transparent background: the target
	// workload. Must round trip and beat raw size comfortably.
	img := NewImage(64, 64)
	for y := 0; y < 64; y++ {
		for x := 0; x < 64; x++ {
			i := (y*64 + x) * 4
			switch {
			case x > 8 && x < 56 && y > 8 && y < 56:
				img.Pix[i], img.Pix[i+1], img.Pix[i+2], img.Pix[i+3] = 200, 60, 40, 255
			case x > 16 && x < 48 && y > 40:
				img.Pix[i], img.Pix[i+1], img.Pix[i+2], img.Pix[i+3] = 20, 20, 90, 255
			default:
				// Transparent background.
			}
		}
	}
	data := roundTrip(t, img, nil)
	if len(data) >= 64*64*4 {
		t.Errorf("sprite compressed to %d bytes, raw is %d", len(data), 64*64*4)
	}
}

func TestRoundTripGradients(t *testing.T) {
	img := NewImage(48, 48)
	for y := 0; y < 48; y++ {
		for x := 0; x < 48; x++ {
			i := (y*48 + x) * 4
			img.Pix[i] = uint8(x * 5)
			img.Pix[i+1] = uint8(y * 5)
			img.Pix[i+2] = uint8((x + y) * 3)
			img.Pix[i+3] = 255
		}
	}
	roundTrip(t, img, nil)
}

func TestRoundTripAlphaVariance(t *testing.T) {
	// High alpha variance exercises the monochrome alpha path.
	img := NewImage(24, 24)
	rng := rand.New(rand.NewSource(9))
	for i := 0; i < len(img.Pix); i += 4 {
		img.Pix[i] = 128
		img.Pix[i+1] = 128
		img.Pix[i+2] = 128
		img.Pix[i+3] = uint8(rng.Intn(256))
	}
	roundTrip(t, img, nil)
}

func TestRoundTripDisableLZ(t *testing.T) {
	img := NewImage(64, 4)
	rng := rand.New(rand.NewSource(10))
	rng.Read(img.Pix[:64*4])
	for r := 1; r < 4; r++ {
		copy(img.Pix[r*64*4:(r+1)*64*4], img.Pix[:64*4])
	}
	stats := &EncodeStats{}
	roundTrip(t, img, &Options{DisableLZ: true, Stats: stats})
	if stats.LZMatches != 0 {
		t.Errorf("DisableLZ produced %d matches", stats.LZMatches)
	}
}

func TestRoundTripTileBitsRange(t *testing.T) {
	img := NewImage(20, 20)
	rng := rand.New(rand.NewSource(11))
	rng.Read(img.Pix)
	for bits := 1; bits <= 4; bits++ {
		roundTrip(t, img, &Options{TileBits: bits})
	}
}

func TestEncodeIdempotentOnPixels(t *testing.T) {
	// encode(decode(B)) decodes to the same pixels as B.
	img := NewImage(32, 16)
	rng := rand.New(rand.NewSource(14))
	rng.Read(img.Pix)
	first := roundTrip(t, img, nil)
	decoded, err := Decode(first)
	if err != nil {
		t.Fatal(err)
	}
	roundTrip(t, decoded, nil)
}

func TestBadOptionsRejected(t *testing.T) {
	img := NewImage(4, 4)
	if _, err := Encode(img, &Options{TileBits: 5}); err == nil {
		t.Error("TileBits 5 accepted")
	}
	if _, err := Encode(img, &Options{TileBits: -1}); err == nil {
		t.Error("TileBits -1 accepted")
	}
}

func TestBadImageRejected(t *testing.T) {
	if _, err := Encode(&Image{Width: 4, Height: 4, Pix: make([]byte, 8)}, nil); err == nil {
		t.Error("short pixel buffer accepted")
	}
	if _, err := Encode(&Image{Width: 0, Height: 4, Pix: nil}, nil); err == nil {
		t.Error("zero width accepted")
	}
	if _, err := Encode(&Image{Width: 70000, Height: 1, Pix: make([]byte, 70000*4)}, nil); err == nil {
		t.Error("oversized width accepted")
	}
}

func TestDecodeGarbageFails(t *testing.T) {
	cases := [][]byte{
		nil,
		{1, 2, 3},
		bytes.Repeat([]byte{0xFF}, 64),
		bytes.Repeat([]byte{0x00}, 64),
	}
	for i, data := range cases {
		if _, err := Decode(data); err == nil {
			t.Errorf("case %d: garbage decoded without error", i)
		}
	}
}

func TestDecodeTruncatedFails(t *testing.T) {
	img := NewImage(32, 32)
	rng := rand.New(rand.NewSource(15))
	rng.Read(img.Pix)
	data, err := Encode(img, nil)
	if err != nil {
		t.Fatal(err)
	}
	for _, cut := range []int{10, len(data) / 4, len(data) / 2, len(data) - 5} {
		if _, err := Decode(data[:cut]); err == nil {
			t.Errorf("truncation at %d decoded without error", cut)
		}
	}
}

func TestDecodeBitFlipNeverPanics(t *testing.T) {
	img := NewImage(16, 16)
	rng := rand.New(rand.NewSource(16))
	rng.Read(img.Pix)
	data, err := Encode(img, nil)
	if err != nil {
		t.Fatal(err)
	}
	for trial := 0; trial < 200; trial++ {
		corrupt := make([]byte, len(data))
		copy(corrupt, data)
		corrupt[rng.Intn(len(corrupt))] ^= 1 << uint(rng.Intn(8))
		// Either an error or a (wrong) image; never a panic.
		Decode(corrupt)
	}
}
