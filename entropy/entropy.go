package entropy

import (
	"github.com/mrjoshuak/go-gcif/internal/bitio"
)

const (
	// ZRLESyms is the size of the zero-run sub-alphabet appended after the
	// literal (and escape) symbols of every coder.
	ZRLESyms = 128

	// zrleOverflowPrefix is the varint prefix width for runs too long for
	// the run sub-alphabet; six bits cover any run a 16-bit-dimension
	// image can produce.
	zrleOverflowPrefix = 6
)

// Encoder is a per-context static Huffman encoder with the zero-run
// extension. The caller drives it in two passes over the identical symbol
// sequence: Add during counting, then Finalize, WriteTable, and Write
// during emission. Runs of the zero symbol collapse into run symbols; the
// run boundaries recorded during the counting pass are replayed during the
// write pass so the run symbol lands at the first zero of each run, where
// the decoder will look for it.
type Encoder struct {
	numSyms int
	freqs   []uint32
	table   *Table

	// Counting-pass run state.
	zeroRun int
	runs    []int

	// Write-pass run state.
	runIndex int
	zeroLeft int
}

// NewEncoder creates an encoder for numSyms literal symbols plus the
// zero-run sub-alphabet.
func NewEncoder(numSyms int) *Encoder {
	return &Encoder{
		numSyms: numSyms,
		freqs:   make([]uint32, numSyms+ZRLESyms),
	}
}

// Add counts one symbol during the statistics pass.
func (e *Encoder) Add(sym int) {
	if sym == 0 {
		e.zeroRun++
		return
	}
	e.flushRun()
	e.freqs[sym]++
}

func (e *Encoder) flushRun() {
	r := e.zeroRun
	if r == 0 {
		return
	}
	e.zeroRun = 0
	e.runs = append(e.runs, r)
	if r <= ZRLESyms-1 {
		e.freqs[e.numSyms+r-1]++
	} else {
		e.freqs[e.numSyms+ZRLESyms-1]++
	}
}

// Finalize flushes any trailing zero run and builds the Huffman table.
// Call exactly once, after the last Add and before WriteTable.
func (e *Encoder) Finalize() {
	e.flushRun()
	e.table = NewTable(e.freqs)
}

// WriteTable serializes the coder's Huffman table.
func (e *Encoder) WriteTable(w *bitio.Writer) {
	e.table.WriteTable(w)
}

// Write emits one symbol during the emission pass. The symbol sequence must
// match the Add sequence exactly.
func (e *Encoder) Write(w *bitio.Writer, sym int) {
	if sym == 0 {
		if e.zeroLeft == 0 {
			r := e.runs[e.runIndex]
			e.runIndex++
			if r <= ZRLESyms-1 {
				e.table.WriteSymbol(w, e.numSyms+r-1)
			} else {
				e.table.WriteSymbol(w, e.numSyms+ZRLESyms-1)
				w.WriteBitClass(uint32(r-ZRLESyms), zrleOverflowPrefix)
			}
			e.zeroLeft = r
		}
		e.zeroLeft--
		return
	}
	e.table.WriteSymbol(w, sym)
}

// Price returns the cost in bits of coding sym right now, ignoring run
// collapsing. Symbols absent from the table price at MaxCodeLen.
func (e *Encoder) Price(sym int) int {
	l := e.table.CodeLen(sym)
	if l == 0 {
		return MaxCodeLen
	}
	return l
}

// Decoder is the matching per-context decoder. A run symbol loads a
// pending-zero counter that satisfies the following Next calls without
// touching the bitstream, mirroring the encoder's run replay.
type Decoder struct {
	numSyms  int
	dec      *TableDecoder
	zeroLeft int
}

// NewDecoder reads the coder's table from the stream and prepares a decoder
// for numSyms literal symbols plus the zero-run sub-alphabet.
func NewDecoder(r *bitio.Reader, numSyms int) (*Decoder, error) {
	dec, err := ReadTable(r, numSyms+ZRLESyms)
	if err != nil {
		return nil, err
	}
	return &Decoder{numSyms: numSyms, dec: dec}, nil
}

// Next decodes one symbol.
func (d *Decoder) Next(r *bitio.Reader) (int, error) {
	if d.zeroLeft > 0 {
		d.zeroLeft--
		return 0, nil
	}
	sym, err := d.dec.Decode(r)
	if err != nil {
		return 0, err
	}
	if sym < d.numSyms {
		return sym, nil
	}
	run := sym - d.numSyms + 1
	if run == ZRLESyms {
		run = ZRLESyms + int(r.ReadBitClass(zrleOverflowPrefix))
		if r.Overflowed() {
			return 0, ErrCorrupt
		}
	}
	d.zeroLeft = run - 1
	return 0, nil
}
