package gcif

import (
	"testing"

	"github.com/mrjoshuak/go-gcif/internal/bitio"
)

func TestMaskDisabledForOpaqueImage(t *testing.T) {
	img := NewImage(16, 16)
	fill(img, 10, 20, 30, 255)
	m := buildMask(img.Pix, 16, 16)
	if m.enabled {
		t.Error("mask enabled with no transparent pixels")
	}
	if m.masked(0, 0) {
		t.Error("disabled mask reported a masked pixel")
	}
}

func TestMaskPicksDominantTransparent(t *testing.T) {
	img := NewImage(16, 16)
	fill(img, 50, 60, 70, 255)
	for y := 0; y < 8; y++ {
		for x := 0; x < 16; x++ {
			i := (y*16 + x) * 4
			img.Pix[i], img.Pix[i+1], img.Pix[i+2], img.Pix[i+3] = 0, 0, 0, 0
		}
	}
	m := buildMask(img.Pix, 16, 16)
	if !m.enabled {
		t.Fatal("mask not enabled")
	}
	if m.color != [4]uint8{0, 0, 0, 0} {
		t.Errorf("mask color = %v", m.color)
	}
	for y := 0; y < 16; y++ {
		for x := 0; x < 16; x++ {
			want := y < 8
			if m.masked(x, y) != want {
				t.Fatalf("masked(%d,%d) = %v, want %v", x, y, m.masked(x, y), want)
			}
		}
	}
}

func TestMaskSerializationRoundTrip(t *testing.T) {
	img := NewImage(33, 21) // odd width exercises row bit padding
	for y := 0; y < 21; y++ {
		for x := 0; x < 33; x++ {
			i := (y*33 + x) * 4
			if (x/3+y/2)%2 == 0 {
				img.Pix[i+3] = 0
			} else {
				img.Pix[i], img.Pix[i+3] = 100, 255
			}
		}
	}
	m := buildMask(img.Pix, 33, 21)
	if !m.enabled {
		t.Fatal("mask not enabled")
	}

	bw := bitio.NewWriter(256)
	if err := m.write(bw); err != nil {
		t.Fatalf("write: %v", err)
	}
	r := bitio.NewReader(bw.Bytes())
	got, err := readMask(r, 33, 21)
	if err != nil {
		t.Fatalf("readMask: %v", err)
	}
	if got.color != m.color {
		t.Errorf("color = %v, want %v", got.color, m.color)
	}
	for y := 0; y < 21; y++ {
		for x := 0; x < 33; x++ {
			if got.masked(x, y) != m.masked(x, y) {
				t.Fatalf("masked(%d,%d) mismatch", x, y)
			}
		}
	}
}

func TestMaskCorruptPayload(t *testing.T) {
	bw := bitio.NewWriter(64)
	bw.WriteBit(1)
	bw.WriteBits(0, 32) // color
	bw.WriteBitClass(8, 5)
	for i := 0; i < 8; i++ {
		bw.WriteBits(0xAB, 8) // not a zlib stream
	}
	r := bitio.NewReader(bw.Bytes())
	if _, err := readMask(r, 16, 16); err == nil {
		t.Error("corrupt mask payload accepted")
	}
}
