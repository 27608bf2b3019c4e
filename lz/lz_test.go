package lz

import (
	"math/rand"
	"testing"

	"github.com/mrjoshuak/go-gcif/internal/bitio"
)

func TestRepeatedRowFindsLongMatch(t *testing.T) {
	// 256x2 image whose second row equals the first: a single 256-pixel
	// copy at distance 256 must be found.
	const w, h = 256, 2
	rgba := make([]byte, w*h*4)
	rng := rand.New(rand.NewSource(3))
	rng.Read(rgba[:w*4])
	copy(rgba[w*4:], rgba[:w*4])

	f := FindMatches(rgba, w, h, nil, nil)
	if f.Len() != 1 {
		t.Fatalf("got %d matches, want 1", f.Len())
	}
	m := f.Pop()
	if m.Offset != w || m.Distance != w || m.Length != w {
		t.Errorf("match = %+v, want offset %d distance %d length %d", m, w, w, w)
	}
}

func TestMatchesInShortRandomNoiseAreValid(t *testing.T) {
	const w, h = 16, 16
	rgba := make([]byte, w*h*4)
	rng := rand.New(rand.NewSource(7))
	rng.Read(rgba)
	f := FindMatches(rgba, w, h, nil, nil)
	for f.PeekOffset() >= 0 {
		m := f.Pop()
		// Random noise rarely repeats; any match found must still honor
		// the window and bounds invariants.
		if m.Distance < 1 || int(m.Offset)-int(m.Distance) < 0 ||
			int(m.Offset)+m.Length > w*h || m.Length < MinMatch {
			t.Errorf("invalid match %+v", m)
		}
	}
}

func TestMatchInvariants(t *testing.T) {
	const w, h = 64, 64
	rgba := make([]byte, w*h*4)
	rng := rand.New(rand.NewSource(11))
	// Tiled pattern with plenty of repeats.
	for i := 0; i < w*h; i++ {
		v := byte(i % 32)
		rgba[i*4], rgba[i*4+1], rgba[i*4+2], rgba[i*4+3] = v, v+1, v+2, 255
	}
	_ = rng
	f := FindMatches(rgba, w, h, nil, nil)
	if f.Len() == 0 {
		t.Fatal("expected matches on a tiled pattern")
	}
	prevEnd := 0
	for f.PeekOffset() >= 0 {
		m := f.Pop()
		if int(m.Offset) < prevEnd {
			t.Errorf("match %+v overlaps previous end %d", m, prevEnd)
		}
		if m.Distance < 1 || int(m.Offset)-int(m.Distance) < 0 ||
			int(m.Offset)+m.Length > w*h || m.Length < MinMatch || m.Length > MaxMatch {
			t.Errorf("invalid match %+v", m)
		}
		prevEnd = int(m.Offset) + m.Length
	}
}

func TestMaskedPixelsCannotStartMatch(t *testing.T) {
	const w, h = 32, 4
	rgba := make([]byte, w*h*4)
	for i := 0; i < w*h; i++ {
		rgba[i*4+3] = 255
	}
	masked := func(x, y int) bool { return y >= 2 }
	f := FindMatches(rgba, w, h, nil, masked)
	for f.PeekOffset() >= 0 {
		m := f.Pop()
		if int(m.Offset)/w >= 2 {
			t.Errorf("match %+v starts on a masked pixel", m)
		}
	}
}

func TestEscapeTailRoundTrip(t *testing.T) {
	cases := []Match{
		{Offset: 100, Distance: 1, Length: 2},
		{Offset: 100, Distance: 7, Length: 3},
		{Offset: 500, Distance: 256, Length: 256},
		{Offset: 5000, Distance: 4999, Length: 4096},
		{Offset: 9000, Distance: 1, Length: 4096},
	}
	for _, m := range cases {
		w := bitio.NewWriter(64)
		m.WriteTail(w)
		r := bitio.NewReader(w.Bytes())
		got, err := ReadMatch(r, m.EscapeClass(), int(m.Offset), 1<<24)
		if err != nil {
			t.Fatalf("%+v: ReadMatch: %v", m, err)
		}
		if got.Distance != m.Distance || got.Length != m.Length {
			t.Errorf("round trip %+v -> %+v", m, got)
		}
	}
}

func TestEscapeClassRange(t *testing.T) {
	for length := MinMatch; length <= MaxMatch; length++ {
		c := (Match{Length: length}).EscapeClass()
		if c < 0 || c >= EscapeSyms {
			t.Fatalf("length %d: class %d out of range", length, c)
		}
	}
}

func TestReadMatchRejectsBadDistance(t *testing.T) {
	m := Match{Offset: 4, Distance: 100, Length: 8}
	w := bitio.NewWriter(64)
	m.WriteTail(w)
	r := bitio.NewReader(w.Bytes())
	// Offset 4 cannot reach back 100 pixels.
	if _, err := ReadMatch(r, m.EscapeClass(), 4, 1<<24); err == nil {
		t.Error("expected error for distance beyond decoded window")
	}
}
