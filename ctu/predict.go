/*
DESCRIPTION
  predict.go builds the 1-D intra reference sample array for a coding
  unit (with neighbor-availability substitution and optional [1,2,1]
  smoothing), and generates DC, Planar and Angular intra predictions
  from it.

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

package ctu

import (
	"github.com/mukk10/ces265/hevctab"
	"github.com/mukk10/ces265/params"
)

// neighbor availability bit positions, in the order the reference
// assembly sweep expects them.
const (
	availBL = iota // bottom-left
	availL         // left
	availTL        // top-left
	availT         // top
	availTR        // top-right
)

// refSamples holds the 4*size+1 1-D reference array: index size*2 is the
// corner sample, indices [0, 2*size) are bottom-left..left (bottom to
// top), indices (2*size, 4*size] are top..top-right (left to right).
type refSamples struct {
	raw      []byte
	filtered []byte
}

func newRefSamples(size int) *refSamples {
	n := 4*size + 1
	return &refSamples{raw: make([]byte, n), filtered: make([]byte, n)}
}

// buildReferenceSamples assembles the raw reference array for a size x
// size block at CTU-local offset (x,y) from the reconstruction buffers
// and top-reference line, substituting unavailable neighbors and
// generating the filtered copy.
func (c *Coder) buildReferenceSamples(r *refSamples, x, y, size int, avail [5]bool) {
	n := 4*size + 1
	mid := 2 * size

	// top-left corner and top row, read from the row directly above the
	// block: either reconstructed samples within this CTU (y>0) or the
	// tile top-reference line (y==0).
	for i := 0; i <= 2*size; i++ {
		px := x - 1 + i
		r.raw[mid+i] = c.sampleAbove(px, y, size)
	}
	// left column and bottom-left, read from the column directly left of
	// the block, bottom to top.
	for i := 0; i < 2*size; i++ {
		py := y + 2*size - 1 - i
		r.raw[i] = c.sampleLeft(x, py, size)
	}

	valid := [5]bool{avail[availBL], avail[availL], avail[availTL], avail[availT], avail[availTR]}
	substituteReference(r.raw, valid, size)

	copy(r.filtered, r.raw)
	filterReference(r.filtered, n)
}

// sampleAbove and sampleLeft read one neighboring reconstructed luma
// sample: from topY (the row above the CTU) when y is 0, otherwise from
// the CTU's own reconstruction buffer.
func (c *Coder) sampleAbove(px, y int, size int) byte {
	if y == 0 {
		idx := c.ctuCol*params.CTUSize + px + 1 // topY is offset by the one leading sentinel byte
		if idx < 0 || idx >= len(c.topY) {
			return invalidSample
		}
		return c.topY[idx]
	}
	if px < 0 || px >= params.CTUSize {
		return invalidSample
	}
	return c.recY[(y-1)*params.CTUSize+px]
}

func (c *Coder) sampleLeft(x, py int, size int) byte {
	if x == 0 || py < 0 || py >= params.CTUSize {
		return invalidSample
	}
	return c.recY[py*params.CTUSize+(x-1)]
}

// invalidSample marks a reference-array slot whose neighbor is not
// available; substituteReference replaces every such slot before use.
const invalidSample = 0xFE

// substituteReference replaces unavailable-neighbor slots (marked
// invalidSample) with the nearest available sample in a two-pass sweep
// from bottom-left to top-right, matching the source's
// SubstituteReference behavior. If no neighbor is available at all, the
// whole array is filled with 0x80.
func substituteReference(ref []byte, avail [5]bool, size int) {
	anyAvail := false
	for _, a := range avail {
		if a {
			anyAvail = true
			break
		}
	}
	if !anyAvail {
		for i := range ref {
			ref[i] = 0x80
		}
		return
	}
	first := -1
	for i, b := range ref {
		if b != invalidSample {
			first = i
			break
		}
	}
	if first > 0 {
		for i := 0; i < first; i++ {
			ref[i] = ref[first]
		}
	}
	for i := 1; i < len(ref); i++ {
		if ref[i] == invalidSample {
			ref[i] = ref[i-1]
		}
	}
}

// filterReference applies the 3-tap [1,2,1]/4 smoothing in place, n
// being the reference array length (endpoints are left unfiltered).
func filterReference(ref []byte, n int) {
	if n < 3 {
		return
	}
	prev := ref[0]
	for i := 1; i < n-1; i++ {
		cur := ref[i]
		ref[i] = byte((int(prev) + 2*int(cur) + int(ref[i+1]) + 2) >> 2)
		prev = cur
	}
}

// chooseReference returns the raw or filtered reference copy per the
// per-mode filter-usage table.
func chooseReference(r *refSamples, size, mode int) []byte {
	sizeIdx := log2(size) - 2
	if hevctab.IntraFilterUsage[sizeIdx][mode] != 0 {
		return r.filtered
	}
	return r.raw
}

func log2(v int) int {
	n := 0
	for (1 << uint(n)) < v {
		n++
	}
	return n
}

// predictDC fills dst (size x size) with the DC prediction: the mean of
// the top row and left column, then the HEVC edge filter on row 0 and
// column 0 for luma.
func predictDC(dst []byte, ref []byte, size int, isChroma bool) {
	mid := 2 * size
	var sum int
	for i := 0; i < size; i++ {
		sum += int(ref[mid+1+i]) // top row
		sum += int(ref[mid-1-i]) // left column, nearest-to-corner first
	}
	dc := byte((sum + size) / (2 * size))
	for i := range dst[:size*size] {
		dst[i] = dc
	}
	if isChroma || size >= 32 {
		return
	}
	dst[0] = byte((int(ref[mid-1]) + 2*int(dc) + int(ref[mid+1]) + 2) >> 2)
	for x := 1; x < size; x++ {
		dst[x] = byte((int(ref[mid+1+x]) + 3*int(dc) + 2) >> 2)
	}
	for y := 1; y < size; y++ {
		dst[y*size] = byte((int(ref[mid-1-y]) + 3*int(dc) + 2) >> 2)
	}
}

// predictPlanar fills dst with the Planar prediction: a weighted average
// of the top/left edges and the top-right/bottom-left corner samples.
func predictPlanar(dst []byte, ref []byte, size int) {
	mid := 2 * size
	topRight := ref[mid+1+size]
	bottomLeft := ref[mid-1-size]
	shift := log2(size) + 1
	for y := 0; y < size; y++ {
		left := int(ref[mid-1-y])
		for x := 0; x < size; x++ {
			top := int(ref[mid+1+x])
			v := (size-1-x)*left + (x+1)*int(topRight) +
				(size-1-y)*top + (y+1)*int(bottomLeft)
			dst[y*size+x] = byte((v + size) >> uint(shift))
		}
	}
}

// predictAngular fills dst with the angular prediction for intra mode
// (2..34), building an extended 1-D main reference when the angle is
// negative and performing 5-bit fractional interpolation per sample.
func predictAngular(dst []byte, ref []byte, size, mode int) {
	mid := 2 * size
	angle := int(hevctab.IntraPredAngle[mode])
	horizontal := mode < 18

	// main reference runs along the "near" axis: for vertical-class
	// modes that's the top row, for horizontal-class modes, the left
	// column (handled via the transpose at the end).
	mainLen := 2*size + 1
	main := make([]int, mainLen+size)
	off := size
	if horizontal {
		for i := 0; i <= 2*size; i++ {
			main[off+i] = int(ref[mid-i]) // left column nearest-first, reversed to match angle convention
		}
	} else {
		for i := 0; i <= 2*size; i++ {
			main[off+i] = int(ref[mid+i])
		}
	}
	if angle < 0 && (size*angle)>>5 < -1 {
		invAngle := int(hevctab.InvAngle[mode])
		lastIdx := (size * angle) >> 5
		for k := -1; k >= lastIdx; k-- {
			proj := (-k*invAngle + 128) >> 8
			var src int
			if horizontal {
				src = int(ref[mid+proj])
			} else {
				src = int(ref[mid-proj])
			}
			main[off+k] = src
		}
	}

	for row := 0; row < size; row++ {
		pos := (row + 1) * angle
		idx := pos >> 5
		frac := pos & 31
		for col := 0; col < size; col++ {
			a := main[off+idx+col+1]
			v := a
			if frac != 0 {
				b := main[off+idx+col+2]
				v = ((32-frac)*a + frac*b + 16) >> 5
			}
			if horizontal {
				dst[col*size+row] = byte(v)
			} else {
				dst[row*size+col] = byte(v)
			}
		}
	}

	if (mode == hevctab.HorModeIdx || mode == hevctab.VerModeIdx) && size < 32 {
		edgeSmooth(dst, ref, size, mode == hevctab.VerModeIdx)
	}
}

// edgeSmooth applies the HOR/VER edge-smoothing adjustment to the first
// row (VER) or column (HOR) of an angular prediction.
func edgeSmooth(dst []byte, ref []byte, size int, vertical bool) {
	mid := 2 * size
	if vertical {
		top := int(ref[mid])
		for x := 0; x < size; x++ {
			left := int(ref[mid-1-x])
			v := int(dst[x]) + ((left - top) >> 1)
			dst[x] = clampByte(v)
		}
		return
	}
	left0 := int(ref[mid])
	for y := 0; y < size; y++ {
		top := int(ref[mid+1+y])
		v := int(dst[y*size]) + ((top - left0) >> 1)
		dst[y*size] = clampByte(v)
	}
}

func clampByte(v int) byte {
	if v < 0 {
		return 0
	}
	if v > 255 {
		return 255
	}
	return byte(v)
}

// GenIntraPrediction dispatches to the DC, Planar or Angular generator
// for intra mode.
func GenIntraPrediction(dst []byte, ref *refSamples, size, mode int, isChroma bool) {
	r := chooseReference(ref, size, mode)
	switch mode {
	case hevctab.PlanarModeIdx:
		predictPlanar(dst, r, size)
	case hevctab.DCModeIdx:
		predictDC(dst, r, size, isChroma)
	default:
		predictAngular(dst, r, size, mode)
	}
}
