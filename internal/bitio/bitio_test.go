package bitio

import (
	"bytes"
	"math/rand"
	"testing"
)

func TestWriteReadSingleBits(t *testing.T) {
	w := NewWriter(16)
	pattern := []uint32{1, 0, 1, 1, 0, 0, 1, 0, 1, 1, 1}
	for _, b := range pattern {
		w.WriteBit(b)
	}
	r := NewReader(w.Bytes())
	for i, want := range pattern {
		if got := r.ReadBit(); got != want {
			t.Fatalf("bit %d: got %d, want %d", i, got, want)
		}
	}
	if r.Overflowed() {
		t.Error("unexpected overflow")
	}
}

func TestMSBFirstOrder(t *testing.T) {
	w := NewWriter(4)
	w.WriteBits(0xA, 4) // 1010
	w.WriteBits(0x5, 4) // 0101
	got := w.Bytes()
	if !bytes.Equal(got, []byte{0xA5}) {
		t.Fatalf("got % x, want a5", got)
	}
}

func TestPaddingAlignment(t *testing.T) {
	w := NewWriter(4)
	w.WriteBits(0x7, 3) // 111 -> padded to 1110_0000
	got := w.Bytes()
	if !bytes.Equal(got, []byte{0xE0}) {
		t.Fatalf("got % x, want e0", got)
	}
}

func TestRoundTripRandomWidths(t *testing.T) {
	rng := rand.New(rand.NewSource(1))
	type field struct {
		v uint32
		n uint
	}
	var fields []field
	w := NewWriter(1024)
	for i := 0; i < 1000; i++ {
		n := uint(rng.Intn(32) + 1)
		v := rng.Uint32() & (1<<n - 1)
		fields = append(fields, field{v, n})
		w.WriteBits(v, n)
	}
	r := NewReader(w.Bytes())
	for i, f := range fields {
		if got := r.ReadBits(f.n); got != f.v {
			t.Fatalf("field %d (%d bits): got %#x, want %#x", i, f.n, got, f.v)
		}
	}
	if r.Overflowed() {
		t.Error("unexpected overflow")
	}
}

func TestOverflowSticky(t *testing.T) {
	r := NewReader([]byte{0xFF})
	if got := r.ReadBits(8); got != 0xFF {
		t.Fatalf("got %#x, want ff", got)
	}
	if r.Overflowed() {
		t.Fatal("premature overflow")
	}
	if got := r.ReadBits(4); got != 0 {
		t.Errorf("past-end read: got %#x, want 0", got)
	}
	if !r.Overflowed() {
		t.Error("overflow flag not set")
	}
	if r.Err() != ErrOverflow {
		t.Errorf("Err() = %v, want ErrOverflow", r.Err())
	}
}

func TestBitCount(t *testing.T) {
	w := NewWriter(16)
	w.WriteBits(1, 1)
	w.WriteBits(0x3FF, 10)
	if w.BitCount() != 11 {
		t.Errorf("writer BitCount = %d, want 11", w.BitCount())
	}
	r := NewReader(w.Bytes())
	r.ReadBits(5)
	r.ReadBits(6)
	if r.BitCount() != 11 {
		t.Errorf("reader BitCount = %d, want 11", r.BitCount())
	}
}
