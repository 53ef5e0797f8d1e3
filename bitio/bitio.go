/*
DESCRIPTION
  bitio.go implements a word-cached bit writer that produces a conforming
  HEVC RBSP: Exp-Golomb (ue/se) binarization, byte-aligned start codes,
  RBSP trailing bits, and Annex-B emulation-prevention byte insertion.

LICENSE
  ces265 implements HEVC intra-only encoding derived from the CES265
  project (Chair for Embedded Systems, KIT).

  This program is free software: you can redistribute it and/or modify
  it under the terms of the GNU General Public License as published by
  the Free Software Foundation, either version 3 of the License, or
  (at your option) any later version.

  This program is distributed in the hope that it will be useful,
  but WITHOUT ANY WARRANTY; without even the implied warranty of
  MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the
  GNU General Public License for more details.

  You should have received a copy of the GNU General Public License
  along with this program.  If not, see <http://www.gnu.org/licenses/>.
*/

// Package bitio provides a bit-level writer for building HEVC RBSP byte
// streams, including Exp-Golomb binarization and emulation-prevention.
package bitio

import (
	"math/bits"

	"github.com/pkg/errors"
)

// sentinel is the non-zero byte the writer's emulation-prevention lookback
// is primed with before any real byte has been written, so the "last two
// bytes were 0x00" check never has to read out of bounds at the start of a
// stream.
const sentinel = 0xFF

// Writer accumulates RBSP bytes through a 32-bit word cache. Each Writer
// owns its cache and bit pointer; there is no shared mutable state between
// Writer instances, so one Writer per tile is safe to use from its own
// goroutine with no synchronization.
type Writer struct {
	out    []byte
	word   uint32
	bitLoc int // bits remaining in word before it must flush; starts at 32
	prev1  byte
	prev2  byte
}

// NewWriter returns a Writer with its output buffer pre-sized to
// capacityHint bytes.
func NewWriter(capacityHint int) *Writer {
	return &Writer{
		out:    make([]byte, 0, capacityHint),
		bitLoc: 32,
		prev1:  sentinel,
		prev2:  sentinel,
	}
}

// PutBits appends the low nBits of code, MSB first. When emuPrev is true,
// emulation-prevention bytes are inserted as whole words flush to the
// output buffer.
func (w *Writer) PutBits(code uint32, nBits int, emuPrev bool) {
	if nBits <= 0 {
		return
	}
	if nBits < 32 {
		code &= (uint32(1) << uint(nBits)) - 1
	}
	w.bitLoc -= nBits
	if w.bitLoc > 0 {
		w.word |= code << uint(w.bitLoc)
		return
	}
	w.word |= code >> uint(-w.bitLoc)
	w.flushWord(emuPrev)
	w.bitLoc += 32
	if w.bitLoc == 32 {
		w.word = 0
	} else {
		w.word = code << uint(w.bitLoc)
	}
}

// flushWord emits the four bytes of the current word cache, MSB first.
func (w *Writer) flushWord(emuPrev bool) {
	w.emitByte(byte(w.word>>24), emuPrev)
	w.emitByte(byte(w.word>>16), emuPrev)
	w.emitByte(byte(w.word>>8), emuPrev)
	w.emitByte(byte(w.word), emuPrev)
}

// emitByte appends b to the output, inserting 0x03 first if the previous
// two output bytes were both 0x00 and b <= 0x03.
func (w *Writer) emitByte(b byte, emuPrev bool) {
	if emuPrev && w.prev2 == 0 && w.prev1 == 0 && b <= 0x03 {
		w.out = append(w.out, 0x03)
		w.prev2, w.prev1 = w.prev1, 0x03
	}
	w.out = append(w.out, b)
	w.prev2, w.prev1 = w.prev1, b
}

// PutStartCode appends the 0x00000001 start code. The writer must be at a
// fresh word boundary (immediately after Flush or at construction).
func (w *Writer) PutStartCode() error {
	if w.bitLoc != 32 {
		return errors.New("bitio: PutStartCode called off a word boundary")
	}
	w.PutBits(0x00000001, 32, false)
	return nil
}

// PutUE appends the Exp-Golomb code for the unsigned value v.
func (w *Writer) PutUE(v uint32) {
	code := v + 1
	length := bits.Len32(code) - 1
	w.PutBits(0, length, true)
	w.PutBits(code, length+1, true)
}

// PutSE appends the Exp-Golomb code for the signed value v, mapped via
// v>0 ? 2v-1 : -2v.
func (w *Writer) PutSE(v int32) {
	var code uint32
	if v > 0 {
		code = uint32(2*v - 1)
	} else {
		code = uint32(-2 * v)
	}
	w.PutUE(code)
}

// WriteAlignZeroBits appends 0 bits until the stream is byte-aligned.
func (w *Writer) WriteAlignZeroBits() {
	length := (8 - (32 - w.bitLoc)) & 0x7
	w.PutBits(0, length, true)
}

// WriteRBSPTrailingBits appends a 1 bit followed by alignment zero bits,
// per the HEVC rbsp_trailing_bits() syntax.
func (w *Writer) WriteRBSPTrailingBits() {
	w.PutBits(1, 1, true)
	w.WriteAlignZeroBits()
}

// Flush emits any partial-word bytes still pending in the word cache. The
// pending bit count must be a multiple of 8.
func (w *Writer) Flush() error {
	pending := 32 - w.bitLoc
	if pending&0x7 != 0 {
		return errors.Errorf("bitio: Flush called with %d pending bits, not byte-aligned", pending)
	}
	nBytes := pending / 8
	word := w.word
	for i := 0; i < nBytes; i++ {
		w.emitByte(byte(word>>24), true)
		word <<= 8
	}
	w.word = 0
	w.bitLoc = 32
	return nil
}

// FixZeroTermination appends 0x03 if the last emitted byte is 0x00, so a
// stream that would otherwise end in a start-code-like tail is fixed up.
func (w *Writer) FixZeroTermination() {
	if len(w.out) > 0 && w.out[len(w.out)-1] == 0x00 {
		w.out = append(w.out, 0x03)
		w.prev2, w.prev1 = w.prev1, 0x03
	}
}

// Bytes returns the RBSP bytes written so far. The returned slice aliases
// the Writer's internal buffer and must not be retained across further
// writes.
func (w *Writer) Bytes() []byte { return w.out }

// Len returns the number of bytes written so far.
func (w *Writer) Len() int { return len(w.out) }
