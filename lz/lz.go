// Package lz implements the sliding-window pixel-copy layer of the GCIF
// codec. The finder scans 32-bit RGBA pixels for prior occurrences worth
// copying; accepted matches are signaled in the Y entropy stream by escape
// symbols that carry the length bit-class, with the length tail and the
// distance following as raw varint bits.
package lz

import (
	"errors"
	mathbits "math/bits"

	"github.com/mrjoshuak/go-gcif/internal/bitio"
)

// ErrCorrupt is returned when a decoded match would read outside the
// already-decoded window.
var ErrCorrupt = errors.New("lz: corrupt match")

const (
	// WinSize is the sliding window, in pixels.
	WinSize = 1 << 20

	// MaxMatch is the longest accepted copy, in pixels.
	MaxMatch = 4096

	// MinMatch is the shortest accepted copy, in pixels. Two pixels is
	// about break-even, and on computer-generated artwork short
	// neighboring-scanline copies are common enough to pay off.
	MinMatch = 2

	// EscapeSyms is the number of Y-stream escape codes; escape c carries
	// the bit length of (length - MinMatch), which spans 0..4094.
	EscapeSyms = 13

	hashBits = 18
	hashSize = 1 << hashBits
	hashMult = 0xc6a4a7935bd1e995

	distPrefixBits = 5

	// Cost model constants, in bits.
	lenPrefixCost  = 5
	distPrefixCost = 7

	// savedPixelBits is the default estimate of entropy-coded bits per
	// pixel when the caller supplies no per-pixel costs.
	savedPixelBits = 9

	maxChainDepth = 64
)

// Monochrome LZ parameters. The search structure is shared with the RGBA
// finder but the shipping encoder does not wire a mono LZ pass in.
const (
	MonoMinMatch       = 6
	monoSavedPixelBits = 2
)

// Match is one accepted pixel copy: Length pixels at Offset are copied
// from Distance pixels earlier.
type Match struct {
	Offset   uint32
	Distance uint32
	Length   int
}

// EscapeClass returns the escape ordinal carrying the match's length
// bit-class; the Y symbol is the literal alphabet size plus this value.
func (m Match) EscapeClass() int {
	return mathbits.Len32(uint32(m.Length - MinMatch))
}

// WriteTail emits the match's length tail and distance varint. These raw
// bits follow the Y escape symbol directly, before any U/V/A of the pixel.
func (m Match) WriteTail(w *bitio.Writer) {
	v := uint32(m.Length - MinMatch)
	if c := uint(mathbits.Len32(v)); c > 1 {
		w.WriteBits(v&(1<<(c-1)-1), c-1)
	}
	w.WriteBitClass(m.Distance-1, distPrefixBits)
}

// ReadMatch decodes the length tail and distance for escape class c, as
// written by WriteTail. offset is the pixel index the match starts at;
// total is the pixel count of the image.
func ReadMatch(r *bitio.Reader, c, offset, total int) (Match, error) {
	if c < 0 || c >= EscapeSyms {
		return Match{}, ErrCorrupt
	}
	var v uint32
	switch {
	case c == 0:
		v = 0
	case c == 1:
		v = 1
	default:
		v = 1<<(c-1) | r.ReadBits(uint(c-1))
	}
	length := MinMatch + int(v)
	dist := 1 + r.ReadBitClass(distPrefixBits)
	if r.Overflowed() {
		return Match{}, ErrCorrupt
	}
	m := Match{Offset: uint32(offset), Distance: dist, Length: length}
	if length > MaxMatch || int(dist) > offset || offset+length > total ||
		int(dist)+length > WinSize+MaxMatch {
		return Match{}, ErrCorrupt
	}
	return m, nil
}

// cost is the match's bitstream overhead under the wire format.
func (m Match) cost() int {
	return lenPrefixCost + mathbits.Len32(uint32(m.Length-MinMatch)) +
		distPrefixCost + mathbits.Len32(m.Distance-1)
}

// Finder holds the ordered, non-overlapping match list for one image.
type Finder struct {
	matches []Match
	next    int
}

// FindMatches scans the RGBA plane for profitable pixel copies. costs, when
// non-nil, gives the estimated entropy-coded bits of each pixel (from the
// residual pricing pass); a copy is accepted only when the bits it saves
// exceed its escape overhead. masked reports pixels supplied by the mask
// layer: they save nothing and cannot start a match, because the decoder
// never reads a Y symbol there.
func FindMatches(rgba []byte, width, height int, costs []uint8, masked func(x, y int) bool) *Finder {
	n := width * height
	px := make([]uint32, n)
	for i := 0; i < n; i++ {
		px[i] = uint32(rgba[i*4])<<24 | uint32(rgba[i*4+1])<<16 |
			uint32(rgba[i*4+2])<<8 | uint32(rgba[i*4+3])
	}

	pixelCost := func(i int) int {
		if masked != nil && masked(i%width, i/width) {
			return 0
		}
		if costs != nil {
			return int(costs[i])
		}
		return savedPixelBits
	}

	table := make([]int32, hashSize)
	for i := range table {
		table[i] = -1
	}
	chain := make([]int32, n)

	f := &Finder{}
	pos := 0
	for pos+MinMatch <= n {
		h := hashPair(px[pos], px[pos+1])

		var best Match
		bestNet := 0
		depth := 0
		canStart := masked == nil || !masked(pos%width, pos/width)
		for cand := table[h]; cand >= 0 && depth < maxChainDepth; cand = chain[cand] {
			depth++
			dist := pos - int(cand)
			if dist > WinSize {
				break
			}
			if !canStart {
				continue
			}
			length := matchLength(px, int(cand), pos, n)
			if length < MinMatch {
				continue
			}
			m := Match{Offset: uint32(pos), Distance: uint32(dist), Length: length}
			saved := 0
			for i := pos; i < pos+length; i++ {
				saved += pixelCost(i)
			}
			net := saved - m.cost()
			if net > bestNet || (net == bestNet && net > 0 && m.Distance < best.Distance) {
				best = m
				bestNet = net
			}
		}

		if bestNet > 0 {
			f.matches = append(f.matches, best)
			// Index every covered position so later matches can reach
			// back into this run, then continue past it.
			end := pos + best.Length
			for ; pos < end && pos+MinMatch <= n; pos++ {
				h := hashPair(px[pos], px[pos+1])
				chain[pos] = table[h]
				table[h] = int32(pos)
			}
			pos = end
			continue
		}

		chain[pos] = table[h]
		table[h] = int32(pos)
		pos++
	}
	return f
}

func hashPair(a, b uint32) uint32 {
	return uint32((uint64(a)<<32 | uint64(b)) * hashMult >> (64 - hashBits))
}

func matchLength(px []uint32, src, dst, n int) int {
	length := 0
	for dst+length < n && length < MaxMatch && px[src+length] == px[dst+length] {
		length++
	}
	return length
}

// Len returns the number of accepted matches.
func (f *Finder) Len() int {
	return len(f.matches)
}

// Reset rewinds the consumption cursor.
func (f *Finder) Reset() {
	f.next = 0
}

// PeekOffset returns the start offset of the next match, or -1 when none
// remain.
func (f *Finder) PeekOffset() int {
	if f.next >= len(f.matches) {
		return -1
	}
	return int(f.matches[f.next].Offset)
}

// Pop consumes and returns the next match.
func (f *Finder) Pop() Match {
	m := f.matches[f.next]
	f.next++
	return m
}
