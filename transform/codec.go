/*
DESCRIPTION
  codec.go wraps the raw transform primitives into the per-CU operations
  a CtuCoder drives: residual -> coefficients -> quantized levels, and
  the reverse path back to a reconstructed sample block.

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

package transform

import "github.com/mukk10/ces265/hevctab"

// Codec binds a fixed QP to the shift/scale constants the transform and
// quantization stages need. One Codec belongs to exactly one Coder;
// nothing here is package-level mutable state.
type Codec struct {
	qp int32
}

// NewCodec returns a Codec for slice QP qp.
func NewCodec(qp int32) *Codec {
	return &Codec{qp: qp}
}

// shifts returns the forward transform's two pass shifts for a block of
// this log2 size, per the standard's dynamic-range-preserving shift
// schedule for an 8-bit source (first pass shift = log2(size)-1, second
// pass shift = log2(size)+6).
func shifts(log2Size int) (shift1, shift2 uint) {
	return uint(log2Size - 1), uint(log2Size + 6)
}

// quantParams returns the forward-quantization scale, shift, and I-slice
// rounding offset for QP qp and a block of this log2 size, per
// iQBits = QUANT_SHIFT + qp/6 + iTransShift and, for I slices,
// iRound = 171 << (iQBits-9) (H265Transform.cpp:640-641).
func quantParams(qp int32, log2Size int) (scale int32, shift uint, round int64) {
	iTransShift := hevctab.MaxTRDynRange - 8 - log2Size
	scale = hevctab.QuantScales[qp%6]
	shift = uint(hevctab.QuantShift + int(qp/6) + iTransShift)
	// 171/512 is the HEVC I-slice forward-quantization dead-zone bias
	// (85/512 for P/B slices, which this intra-only encoder never emits).
	const iSliceRoundNum = 171
	round = int64(iSliceRoundNum) << (shift - 9)
	return scale, shift, round
}

// dequantParams returns the inverse-quantization scale, shift, and
// rounding offset for QP qp and a block of this log2 size, per
// iScale = InvQuantScales[qp%6] << qp/6 and
// iShift = IQUANT_SHIFT - QUANT_SHIFT - iTransShift (H265Transform.cpp:662-669).
func dequantParams(qp int32, log2Size int) (scale int64, shift uint, round int64) {
	iTransShift := hevctab.MaxTRDynRange - 8 - log2Size
	scale = int64(hevctab.InvQuantScales[qp%6]) << (qp / 6)
	shift = uint(hevctab.InvQuantShift - hevctab.QuantShift - iTransShift)
	if shift > 0 {
		round = int64(1) << (shift - 1)
	}
	return scale, shift, round
}

// ResidualDCT transforms and quantizes a size x size residual block
// (src, row-major, already src-minus-prediction) into levels, returning
// whether any coefficient is nonzero.
func (c *Codec) ResidualDCT(levels []int32, src []int32, tmp []int32, size int, isLumaIntra bool) bool {
	log2Size := log2(size)
	shift1, shift2 := shifts(log2Size)
	useDST := isLumaIntra && size == 4
	coeff := make([]int32, size*size)
	Forward2D(coeff, src, tmp, size, useDST, shift1, shift2)

	qScale, qShift, round := quantParams(c.qp, log2Size)
	nonZero := false
	for i, v := range coeff {
		sign := int64(1)
		av := int64(v)
		if av < 0 {
			sign = -1
			av = -av
		}
		level := sign * ((av*int64(qScale) + round) >> qShift)
		levels[i] = int32(level)
		if level != 0 {
			nonZero = true
		}
	}
	return nonZero
}

// InverseQuantDCT dequantizes levels and runs the inverse transform,
// writing the size x size residual into dst.
func (c *Codec) InverseQuantDCT(dst []int32, levels []int32, tmp []int32, size int, isLumaIntra bool) {
	log2Size := log2(size)
	useDST := isLumaIntra && size == 4

	invScale, invShift, round := dequantParams(c.qp, log2Size)
	deq := make([]int32, size*size)
	for i, lvl := range levels {
		deq[i] = int32((int64(lvl)*invScale + round) >> invShift)
	}
	Inverse2D(dst, deq, tmp, size, useDST, hevctab.ShiftInv1, hevctab.ShiftInv2)
}

func log2(v int) int {
	n := 0
	for (1 << uint(n)) < v {
		n++
	}
	return n
}
