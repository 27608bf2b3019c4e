package entropy

import (
	"math/rand"
	"testing"

	"github.com/mrjoshuak/go-gcif/internal/bitio"
)

// encodeDecode runs the full two-pass encoder over syms and decodes the
// result back.
func encodeDecode(t *testing.T, numSyms int, syms []int) []int {
	t.Helper()
	enc := NewEncoder(numSyms)
	for _, s := range syms {
		enc.Add(s)
	}
	enc.Finalize()
	w := bitio.NewWriter(1024)
	enc.WriteTable(w)
	for _, s := range syms {
		enc.Write(w, s)
	}
	r := bitio.NewReader(w.Bytes())
	dec, err := NewDecoder(r, numSyms)
	if err != nil {
		t.Fatalf("NewDecoder: %v", err)
	}
	out := make([]int, len(syms))
	for i := range out {
		v, err := dec.Next(r)
		if err != nil {
			t.Fatalf("Next at %d: %v", i, err)
		}
		out[i] = v
	}
	if r.Overflowed() {
		t.Fatal("reader overflowed")
	}
	return out
}

func TestEncoderRoundTripLiterals(t *testing.T) {
	rng := rand.New(rand.NewSource(2))
	syms := make([]int, 4000)
	for i := range syms {
		syms[i] = rng.Intn(256)
	}
	got := encodeDecode(t, 256, syms)
	for i := range syms {
		if got[i] != syms[i] {
			t.Fatalf("symbol %d: got %d, want %d", i, got[i], syms[i])
		}
	}
}

func TestEncoderRoundTripSkewed(t *testing.T) {
	rng := rand.New(rand.NewSource(5))
	syms := make([]int, 8000)
	for i := range syms {
		// Heavily skewed toward small residuals, like real filter output.
		v := int(rng.ExpFloat64() * 3)
		if v > 255 {
			v = 255
		}
		syms[i] = v
	}
	got := encodeDecode(t, 256, syms)
	for i := range syms {
		if got[i] != syms[i] {
			t.Fatalf("symbol %d: got %d, want %d", i, got[i], syms[i])
		}
	}
}

func TestZeroRunsShortAndLong(t *testing.T) {
	var syms []int
	for _, runLen := range []int{1, 2, 127, 128, 129, 300, 5000} {
		syms = append(syms, 7)
		for i := 0; i < runLen; i++ {
			syms = append(syms, 0)
		}
	}
	syms = append(syms, 9)
	got := encodeDecode(t, 256, syms)
	for i := range syms {
		if got[i] != syms[i] {
			t.Fatalf("symbol %d: got %d, want %d", i, got[i], syms[i])
		}
	}
}

func TestTrailingZeroRunFlushedByFinalize(t *testing.T) {
	syms := []int{1, 2, 0, 0, 0, 0}
	got := encodeDecode(t, 256, syms)
	for i := range syms {
		if got[i] != syms[i] {
			t.Fatalf("symbol %d: got %d, want %d", i, got[i], syms[i])
		}
	}
}

func TestLongZeroRunCodesCompactly(t *testing.T) {
	syms := make([]int, 10001)
	syms[0] = 1
	enc := NewEncoder(256)
	for _, s := range syms {
		enc.Add(s)
	}
	enc.Finalize()
	w := bitio.NewWriter(1024)
	enc.WriteTable(w)
	for _, s := range syms {
		enc.Write(w, s)
	}
	// 10000 zeros must cost O(log run) payload bits, not one code per zero.
	if w.BitCount() > 400 {
		t.Errorf("10000-zero run cost %d bits", w.BitCount())
	}
}

func TestInterleavedContextsStayAligned(t *testing.T) {
	// Two coders sharing one bitstream, written pixel-interleaved the way
	// the Y/U planes are. Zero runs in one must not shift the other.
	rng := rand.New(rand.NewSource(9))
	n := 3000
	a := make([]int, n)
	b := make([]int, n)
	for i := range a {
		if rng.Intn(4) != 0 {
			a[i] = 0
		} else {
			a[i] = rng.Intn(256)
		}
		b[i] = rng.Intn(16)
	}

	encA, encB := NewEncoder(256), NewEncoder(256)
	for i := 0; i < n; i++ {
		encA.Add(a[i])
		encB.Add(b[i])
	}
	encA.Finalize()
	encB.Finalize()
	w := bitio.NewWriter(4096)
	encA.WriteTable(w)
	encB.WriteTable(w)
	for i := 0; i < n; i++ {
		encA.Write(w, a[i])
		encB.Write(w, b[i])
	}

	r := bitio.NewReader(w.Bytes())
	decA, err := NewDecoder(r, 256)
	if err != nil {
		t.Fatal(err)
	}
	decB, err := NewDecoder(r, 256)
	if err != nil {
		t.Fatal(err)
	}
	for i := 0; i < n; i++ {
		va, err := decA.Next(r)
		if err != nil {
			t.Fatalf("A at %d: %v", i, err)
		}
		vb, err := decB.Next(r)
		if err != nil {
			t.Fatalf("B at %d: %v", i, err)
		}
		if va != a[i] || vb != b[i] {
			t.Fatalf("pixel %d: got (%d,%d), want (%d,%d)", i, va, vb, a[i], b[i])
		}
	}
}

func TestExtendedAlphabet(t *testing.T) {
	// Y-style alphabet with escape symbols above 255.
	numSyms := 256 + 13
	syms := []int{0, 0, 256, 5, 268, 0, 255, 267}
	got := encodeDecode(t, numSyms, syms)
	for i := range syms {
		if got[i] != syms[i] {
			t.Fatalf("symbol %d: got %d, want %d", i, got[i], syms[i])
		}
	}
}

func TestTableRoundTripSingleSymbol(t *testing.T) {
	syms := make([]int, 100)
	for i := range syms {
		syms[i] = 42
	}
	got := encodeDecode(t, 256, syms)
	for i := range syms {
		if got[i] != 42 {
			t.Fatalf("symbol %d: got %d, want 42", i, got[i])
		}
	}
}

func TestEmptyTable(t *testing.T) {
	enc := NewEncoder(256)
	enc.Finalize()
	w := bitio.NewWriter(16)
	enc.WriteTable(w)
	r := bitio.NewReader(w.Bytes())
	dec, err := NewDecoder(r, 256)
	if err != nil {
		t.Fatalf("NewDecoder: %v", err)
	}
	if _, err := dec.Next(r); err == nil {
		t.Error("decoding from an empty table should fail")
	}
}

func TestCorruptTableRejected(t *testing.T) {
	// A table flag bit followed by garbage meta lengths must either error
	// out or produce a decoder that errors on use; it must never panic.
	data := []byte{0xFF, 0xFF, 0xFF, 0xFF, 0xFF, 0xFF, 0xFF, 0xFF, 0xFF, 0xFF, 0xFF, 0xFF}
	r := bitio.NewReader(data)
	dec, err := NewDecoder(r, 256)
	if err != nil {
		return
	}
	if _, err := dec.Next(r); err == nil && !r.Overflowed() {
		t.Error("corrupt table decoded without error")
	}
}

func TestTruncatedStream(t *testing.T) {
	enc := NewEncoder(256)
	for i := 0; i < 1000; i++ {
		enc.Add(i % 200)
	}
	enc.Finalize()
	w := bitio.NewWriter(1024)
	enc.WriteTable(w)
	for i := 0; i < 1000; i++ {
		enc.Write(w, i%200)
	}
	full := w.Bytes()
	r := bitio.NewReader(full[:len(full)/4])
	dec, err := NewDecoder(r, 256)
	if err != nil {
		return
	}
	for i := 0; i < 1000; i++ {
		if _, err := dec.Next(r); err != nil {
			return
		}
	}
	t.Error("truncated stream decoded fully without error")
}

func TestEstimatorAddSubtract(t *testing.T) {
	var e Estimator
	e.Init()
	codes := []byte{1, 1, 2, 3, 3, 3}
	e.Add(codes)
	before := e.EntropyOverall()
	if before == 0 {
		t.Fatal("entropy of mixed codes should be positive")
	}
	e.Subtract(codes)
	if got := e.EntropyOverall(); got != 0 {
		t.Errorf("after subtract, overall entropy = %d, want 0", got)
	}
}

func TestEstimatorPrefersMatchingDistribution(t *testing.T) {
	var e Estimator
	e.Init()
	for i := 0; i < 100; i++ {
		e.AddSingle(0)
	}
	zeros := make([]byte, 50)
	spread := make([]byte, 50)
	for i := range spread {
		spread[i] = byte(i * 5)
	}
	if e.Entropy(zeros) >= e.Entropy(spread) {
		t.Error("codes matching the histogram should price below novel codes")
	}
}

func TestScorerOrdering(t *testing.T) {
	s := NewScorer(5)
	s.Add(0, 10)
	s.Add(1, 3)
	s.Add(2, 7)
	s.Add(3, 3)

	low := s.Lowest(2)
	if low[0].Index != 4 || low[1].Index != 1 {
		t.Errorf("Lowest = %v, want indices 4 then 1", low)
	}
	high := s.Highest(3)
	if high[0].Index != 0 || high[1].Index != 2 || high[2].Index != 1 {
		t.Errorf("Highest = %v, want indices 0, 2, 1", high)
	}
}
