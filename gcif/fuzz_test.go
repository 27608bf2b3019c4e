package gcif

import (
	"bytes"
	"testing"
)

// FuzzDecode checks that arbitrary input never panics the decoder and that
// whatever decodes re-encodes and decodes to the same pixels.
func FuzzDecode(f *testing.F) {
	seed := NewImage(8, 8)
	for i := 0; i < len(seed.Pix); i += 4 {
		seed.Pix[i], seed.Pix[i+3] = byte(i), 255
	}
	if data, err := Encode(seed, nil); err == nil {
		f.Add(data)
	}
	f.Add([]byte{0x47, 0x43, 0x49, 0x46, 2, 0, 1, 0, 1})
	f.Add([]byte{})

	f.Fuzz(func(t *testing.T, data []byte) {
		img, err := Decode(data)
		if err != nil {
			return
		}
		reencoded, err := Encode(img, nil)
		if err != nil {
			t.Fatalf("re-encode of decoded image failed: %v", err)
		}
		again, err := Decode(reencoded)
		if err != nil {
			t.Fatalf("decode of re-encoded image failed: %v", err)
		}
		if !bytes.Equal(again.Pix, img.Pix) {
			t.Fatal("pixels changed across re-encode")
		}
	})
}

// FuzzRoundTrip checks encode/decode over arbitrary small pixel buffers.
func FuzzRoundTrip(f *testing.F) {
	f.Add(3, 2, []byte{1, 2, 3, 4, 5, 6, 7, 8, 9, 10, 11, 12, 13, 14, 15, 16, 17, 18, 19, 20, 21, 22, 23, 24})
	f.Fuzz(func(t *testing.T, width, height int, pix []byte) {
		if width < 1 || height < 1 || width > 64 || height > 64 {
			return
		}
		if len(pix) != width*height*4 {
			return
		}
		img := &Image{Width: width, Height: height, Pix: pix}
		data, err := Encode(img, nil)
		if err != nil {
			t.Fatalf("Encode: %v", err)
		}
		got, err := Decode(data)
		if err != nil {
			t.Fatalf("Decode: %v", err)
		}
		if !bytes.Equal(got.Pix, pix) {
			t.Fatal("round trip mismatch")
		}
	})
}
