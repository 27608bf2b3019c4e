// Package entropy implements the static Huffman entropy layer of the GCIF
// codec: canonical code construction, compressed table serialization, the
// zero-run-length symbol extension, and the encoder-side estimation
// heuristics (entropy estimator, filter scorer).
package entropy

import (
	"container/heap"
	"errors"
	"sort"

	"github.com/mrjoshuak/go-gcif/internal/bitio"
)

// Entropy coder errors.
var (
	// ErrCorrupt is returned when a bitstream contains an invalid
	// code-length sequence or an undecodable symbol.
	ErrCorrupt = errors.New("entropy: corrupt bitstream")
)

const (
	// MaxCodeLen is the longest Huffman code emitted or accepted.
	MaxCodeLen = 15

	// lutBits is the first-level decode table width: the most probable
	// prefixes decode with a single lookup, longer codes fall through to a
	// canonical range walk.
	lutBits = 7

	// Code-length alphabet for table serialization: literal lengths 0..15,
	// then a zero-run symbol and a repeat-previous symbol.
	clsZeroRun = 16
	clsRepeat  = 17
	clsCount   = 18
)

// buildCodeLengths computes length-limited Huffman code lengths for freqs.
// Symbols with zero frequency get length 0. A single used symbol gets
// length 1. If the plain Huffman tree exceeds MaxCodeLen the frequencies
// are halved and the tree rebuilt, which converges quickly and keeps the
// construction deterministic.
func buildCodeLengths(freqs []uint32) []uint8 {
	lengths := make([]uint8, len(freqs))
	used := 0
	only := -1
	for s, f := range freqs {
		if f > 0 {
			used++
			only = s
		}
	}
	if used == 0 {
		return lengths
	}
	if used == 1 {
		lengths[only] = 1
		return lengths
	}

	work := make([]uint32, len(freqs))
	copy(work, freqs)
	for {
		plainLengths(work, lengths)
		maxLen := uint8(0)
		for _, l := range lengths {
			if l > maxLen {
				maxLen = l
			}
		}
		if maxLen <= MaxCodeLen {
			return lengths
		}
		for s, f := range work {
			if f > 1 {
				work[s] = f >> 1
			}
		}
	}
}

type huffNode struct {
	freq  uint64
	order int // lowest symbol index in subtree, for deterministic ties
	sym   int // >= 0 for leaves
	left  int
	right int
}

type huffHeap struct {
	nodes []huffNode
	order []int
}

func (h *huffHeap) Len() int { return len(h.order) }
func (h *huffHeap) Less(i, j int) bool {
	a, b := h.nodes[h.order[i]], h.nodes[h.order[j]]
	if a.freq != b.freq {
		return a.freq < b.freq
	}
	return a.order < b.order
}
func (h *huffHeap) Swap(i, j int) { h.order[i], h.order[j] = h.order[j], h.order[i] }
func (h *huffHeap) Push(x any)    { h.order = append(h.order, x.(int)) }
func (h *huffHeap) Pop() any {
	n := len(h.order)
	v := h.order[n-1]
	h.order = h.order[:n-1]
	return v
}

// plainLengths fills lengths with unconstrained Huffman code lengths.
func plainLengths(freqs []uint32, lengths []uint8) {
	h := &huffHeap{}
	for s, f := range freqs {
		lengths[s] = 0
		if f > 0 {
			h.nodes = append(h.nodes, huffNode{freq: uint64(f), order: s, sym: s, left: -1, right: -1})
			h.order = append(h.order, len(h.nodes)-1)
		}
	}
	heap.Init(h)
	for h.Len() > 1 {
		a := heap.Pop(h).(int)
		b := heap.Pop(h).(int)
		n := huffNode{
			freq:  h.nodes[a].freq + h.nodes[b].freq,
			order: min(h.nodes[a].order, h.nodes[b].order),
			sym:   -1,
			left:  a,
			right: b,
		}
		h.nodes = append(h.nodes, n)
		heap.Push(h, len(h.nodes)-1)
	}
	root := h.order[0]
	var walk func(idx int, depth uint8)
	walk = func(idx int, depth uint8) {
		n := h.nodes[idx]
		if n.sym >= 0 {
			lengths[n.sym] = depth
			return
		}
		walk(n.left, depth+1)
		walk(n.right, depth+1)
	}
	walk(root, 0)
}

// canonicalCodes assigns canonical code values: codes sort by (length,
// symbol) and increase numerically, so the decoder can rebuild them from
// lengths alone.
func canonicalCodes(lengths []uint8) []uint16 {
	codes := make([]uint16, len(lengths))
	var countByLen [MaxCodeLen + 1]uint16
	for _, l := range lengths {
		if l > 0 {
			countByLen[l]++
		}
	}
	var next [MaxCodeLen + 1]uint16
	code := uint16(0)
	for l := 1; l <= MaxCodeLen; l++ {
		code = (code + countByLen[l-1]) << 1
		next[l] = code
	}
	for s, l := range lengths {
		if l > 0 {
			codes[s] = next[l]
			next[l]++
		}
	}
	return codes
}

// Table is an encoder-side Huffman table: per-symbol canonical codes.
type Table struct {
	lengths []uint8
	codes   []uint16
}

// NewTable builds a canonical, length-limited table from frequencies.
func NewTable(freqs []uint32) *Table {
	lengths := buildCodeLengths(freqs)
	return &Table{lengths: lengths, codes: canonicalCodes(lengths)}
}

// WriteSymbol emits the code for sym.
func (t *Table) WriteSymbol(w *bitio.Writer, sym int) {
	w.WriteBits(uint32(t.codes[sym]), uint(t.lengths[sym]))
}

// CodeLen returns the code length of sym (0 if unused).
func (t *Table) CodeLen(sym int) int {
	return int(t.lengths[sym])
}

// WriteTable serializes the table's code lengths. The lengths are tokenized
// with zero-run and repeat-previous codes, the tokens are coded by a
// meta-Huffman whose own lengths lead the payload as fixed 4-bit fields.
func (t *Table) WriteTable(w *bitio.Writer) {
	used := false
	for _, l := range t.lengths {
		if l != 0 {
			used = true
			break
		}
	}
	if !used {
		w.WriteBit(0)
		return
	}
	w.WriteBit(1)

	tokens := tokenizeLengths(t.lengths)
	var freqs [clsCount]uint32
	for _, tok := range tokens {
		freqs[tok.code]++
	}
	meta := NewTable(freqs[:])
	for _, l := range meta.lengths {
		w.WriteBits(uint32(l), 4)
	}
	for _, tok := range tokens {
		meta.WriteSymbol(w, tok.code)
		switch tok.code {
		case clsZeroRun:
			w.WriteBits(uint32(tok.extra), 7)
		case clsRepeat:
			w.WriteBits(uint32(tok.extra), 2)
		}
	}
}

type lengthToken struct {
	code  int
	extra int
}

// tokenizeLengths turns a length sequence into literal/run tokens:
// zero runs of 3..130 become clsZeroRun with a 7-bit count bias 3, repeats
// of the previous length 3..6 become clsRepeat with a 2-bit count bias 3.
func tokenizeLengths(lengths []uint8) []lengthToken {
	var tokens []lengthToken
	i := 0
	for i < len(lengths) {
		l := lengths[i]
		run := 1
		for i+run < len(lengths) && lengths[i+run] == l {
			run++
		}
		if l == 0 && run >= 3 {
			n := run
			if n > 130 {
				n = 130
			}
			tokens = append(tokens, lengthToken{clsZeroRun, n - 3})
			i += n
			continue
		}
		if l != 0 && run >= 4 {
			// One literal then repeat-previous for up to 6 more.
			tokens = append(tokens, lengthToken{int(l), 0})
			n := run - 1
			if n > 6 {
				n = 6
			}
			tokens = append(tokens, lengthToken{clsRepeat, n - 3})
			i += 1 + n
			continue
		}
		tokens = append(tokens, lengthToken{int(l), 0})
		i++
	}
	return tokens
}

// TableDecoder is a canonical Huffman decoder with a 7-bit first-level lookup
// table and a range walk for longer codes.
type TableDecoder struct {
	maxLen     uint8
	lut        []lutEntry
	firstCode  [MaxCodeLen + 1]uint32
	firstIndex [MaxCodeLen + 1]int
	counts     [MaxCodeLen + 1]int
	symbols    []int
	empty      bool
}

type lutEntry struct {
	sym int32
	len uint8
}

// ReadTable deserializes a table written by WriteTable and prepares the
// decode structures for an alphabet of numSyms symbols.
func ReadTable(r *bitio.Reader, numSyms int) (*TableDecoder, error) {
	if r.ReadBit() == 0 {
		if r.Overflowed() {
			return nil, ErrCorrupt
		}
		return &TableDecoder{empty: true}, nil
	}

	metaLengths := make([]uint8, clsCount)
	for i := range metaLengths {
		metaLengths[i] = uint8(r.ReadBits(4))
	}
	meta, err := newTableDecoder(metaLengths)
	if err != nil {
		return nil, err
	}

	lengths := make([]uint8, numSyms)
	pos := 0
	for pos < numSyms {
		code, err := meta.Decode(r)
		if err != nil {
			return nil, err
		}
		switch {
		case code < clsZeroRun:
			lengths[pos] = uint8(code)
			pos++
		case code == clsZeroRun:
			run := int(r.ReadBits(7)) + 3
			if pos+run > numSyms {
				return nil, ErrCorrupt
			}
			pos += run
		default: // clsRepeat
			if pos == 0 {
				return nil, ErrCorrupt
			}
			run := int(r.ReadBits(2)) + 3
			if pos+run > numSyms {
				return nil, ErrCorrupt
			}
			prev := lengths[pos-1]
			for i := 0; i < run; i++ {
				lengths[pos] = prev
				pos++
			}
		}
		if r.Overflowed() {
			return nil, ErrCorrupt
		}
	}
	return newTableDecoder(lengths)
}

// newTableDecoder builds decode structures from code lengths, rejecting
// over-subscribed length sets.
func newTableDecoder(lengths []uint8) (*TableDecoder, error) {
	d := &TableDecoder{}
	used := 0
	for _, l := range lengths {
		if l > MaxCodeLen {
			return nil, ErrCorrupt
		}
		if l > 0 {
			used++
			d.counts[l]++
			if l > d.maxLen {
				d.maxLen = l
			}
		}
	}
	if used == 0 {
		d.empty = true
		return d, nil
	}

	// Kraft check: an over-subscribed code set cannot be canonical.
	space := uint64(0)
	for l := 1; l <= MaxCodeLen; l++ {
		space += uint64(d.counts[l]) << uint(MaxCodeLen-l)
	}
	if space > 1<<MaxCodeLen {
		return nil, ErrCorrupt
	}

	// Symbols in (length, symbol) order with canonical first codes.
	type ls struct {
		sym int
		l   uint8
	}
	var all []ls
	for s, l := range lengths {
		if l > 0 {
			all = append(all, ls{s, l})
		}
	}
	sort.Slice(all, func(i, j int) bool {
		if all[i].l != all[j].l {
			return all[i].l < all[j].l
		}
		return all[i].sym < all[j].sym
	})
	d.symbols = make([]int, len(all))
	for i, e := range all {
		d.symbols[i] = e.sym
	}
	code := uint32(0)
	idx := 0
	prevLen := uint8(0)
	for l := uint8(1); l <= d.maxLen; l++ {
		if prevLen != 0 {
			code <<= l - prevLen
		}
		d.firstCode[l] = code
		d.firstIndex[l] = idx
		code += uint32(d.counts[l])
		idx += d.counts[l]
		prevLen = l
	}

	// First-level LUT over the leading lutBits of each short code.
	d.lut = make([]lutEntry, 1<<lutBits)
	for _, e := range all {
		if e.l > lutBits {
			continue
		}
		c := canonicalCodeOf(d, e.sym, e.l)
		base := c << (lutBits - uint32(e.l))
		n := uint32(1) << (lutBits - uint32(e.l))
		for i := uint32(0); i < n; i++ {
			d.lut[base+i] = lutEntry{sym: int32(e.sym), len: e.l}
		}
	}
	return d, nil
}

func canonicalCodeOf(d *TableDecoder, sym int, l uint8) uint32 {
	// Position of sym among same-length symbols.
	off := 0
	for i := d.firstIndex[l]; i < d.firstIndex[l]+d.counts[l]; i++ {
		if d.symbols[i] == sym {
			off = i - d.firstIndex[l]
			break
		}
	}
	return d.firstCode[l] + uint32(off)
}

// Empty reports whether the table carries no symbols; decoding from an
// empty table is a bitstream error.
func (d *TableDecoder) Empty() bool {
	return d.empty
}

// Decode reads one symbol.
func (d *TableDecoder) Decode(r *bitio.Reader) (int, error) {
	if d.empty {
		return 0, ErrCorrupt
	}
	v := r.Peek(lutBits)
	if e := d.lut[v]; e.len != 0 {
		r.Skip(uint(e.len))
		if r.Overflowed() {
			return 0, ErrCorrupt
		}
		return int(e.sym), nil
	}
	peek := r.Peek(uint(d.maxLen))
	for l := uint8(lutBits + 1); l <= d.maxLen; l++ {
		code := peek >> (uint(d.maxLen) - uint(l))
		if d.counts[l] == 0 {
			continue
		}
		off := int(code) - int(d.firstCode[l])
		if off >= 0 && off < d.counts[l] {
			r.Skip(uint(l))
			if r.Overflowed() {
				return 0, ErrCorrupt
			}
			return d.symbols[d.firstIndex[l]+off], nil
		}
	}
	return 0, ErrCorrupt
}
