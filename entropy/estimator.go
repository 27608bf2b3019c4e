package entropy

import "math"

// Estimator prices symbol batches against a running global histogram. The
// tile designers use it incrementally: add the codes for a chosen filter,
// and on revisit passes subtract the old choice before re-scoring, so the
// estimate always reflects the current global selection.
//
// Scores are in 1/16 bit units. The estimator only steers encoder choices;
// the chosen result is always serialized, so float rounding here cannot
// desynchronize the decoder.
type Estimator struct {
	hist  [256]uint32
	total uint32
}

// Init resets the histogram.
func (e *Estimator) Init() {
	e.hist = [256]uint32{}
	e.total = 0
}

// Add merges codes into the histogram.
func (e *Estimator) Add(codes []byte) {
	for _, c := range codes {
		e.hist[c]++
	}
	e.total += uint32(len(codes))
}

// AddSingle merges one code into the histogram.
func (e *Estimator) AddSingle(c byte) {
	e.hist[c]++
	e.total++
}

// Subtract removes codes previously merged with Add.
func (e *Estimator) Subtract(codes []byte) {
	for _, c := range codes {
		e.hist[c]--
	}
	e.total -= uint32(len(codes))
}

// Entropy estimates the bits needed to code codes, assuming they join the
// current histogram.
func (e *Estimator) Entropy(codes []byte) uint32 {
	if len(codes) == 0 {
		return 0
	}
	var local [256]uint32
	for _, c := range codes {
		local[c]++
	}
	total := float64(e.total) + float64(len(codes))
	bitsSum := 0.0
	for s, n := range local {
		if n == 0 {
			continue
		}
		p := float64(e.hist[s]+n) / total
		bitsSum += float64(n) * -math.Log2(p)
	}
	return uint32(bitsSum * 16)
}

// EntropyOverall estimates the bits needed to code the entire histogram
// against itself, the self-entropy of everything added so far.
func (e *Estimator) EntropyOverall() uint32 {
	if e.total == 0 {
		return 0
	}
	total := float64(e.total)
	bitsSum := 0.0
	for _, n := range e.hist {
		if n == 0 {
			continue
		}
		p := float64(n) / total
		bitsSum += float64(n) * -math.Log2(p)
	}
	return uint32(bitsSum * 16)
}

// TableCost approximates the serialized table overhead in 1/16 bit units
// for a coder built over this histogram: roughly five bits of length
// payload per distinct symbol. Chaos-level sweeps add this in so extra
// contexts must pay for their tables.
func (e *Estimator) TableCost() uint32 {
	distinct := uint32(0)
	for _, n := range e.hist {
		if n != 0 {
			distinct++
		}
	}
	return (32 + distinct*5) * 16
}
