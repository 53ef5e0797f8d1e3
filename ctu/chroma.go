/*
DESCRIPTION
  chroma.go implements the chroma companion pass: a fixed 4x4-chroma
  grid (8x8 luma) walk evaluating the four explicit chroma modes plus
  the luma-derived DM mode, picking a single SAD winner shared by Cb and
  Cr, and committing the residual/reconstruction for both planes.
  Chroma-from-luma (LM) mode is out of scope (Open Question, omitted).

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

// chromaBlockSize is the fixed TU granularity the chroma companion pass
// operates at (one TU per 2x2 luma PU group).
const chromaBlockSize = 4

// compressChroma runs the chroma companion pass over a whole CTU.
func (c *Coder) compressChroma(cbBuf, crBuf []byte, cStride int) {
	chromaCTU := params.CTUSize / 2
	for cy := 0; cy < chromaCTU; cy += chromaBlockSize {
		for cx := 0; cx < chromaCTU; cx += chromaBlockSize {
			c.compressChromaBlock(cx, cy, cbBuf, crBuf, cStride)
		}
	}
}

// chromaModeCandidates returns the four explicit chroma modes plus the
// luma-derived DM mode, substituting mode 34 for whichever explicit
// mode the DM mode duplicates, per 8.4.3.
func chromaModeCandidates(dm uint8) [5]uint8 {
	cands := [4]uint8{hevctab.PlanarModeIdx, hevctab.VerModeIdx, hevctab.HorModeIdx, hevctab.DCModeIdx}
	for i, m := range cands {
		if m == dm {
			cands[i] = 34
		}
	}
	return [5]uint8{cands[0], cands[1], cands[2], cands[3], dm}
}

func genChromaPrediction(dst, ref []byte, size int, mode uint8) {
	switch mode {
	case hevctab.PlanarModeIdx:
		predictPlanar(dst, ref, size)
	case hevctab.DCModeIdx:
		predictDC(dst, ref, size, true)
	default:
		predictAngular(dst, ref, size, int(mode))
	}
}

// buildChromaReferenceSamples assembles the raw (unfiltered, per HEVC's
// chroma rule) 4*size+1 reference array for a chroma plane.
func (c *Coder) buildChromaReferenceSamples(rec, top []byte, cx, cy, size int, avail [5]bool) []byte {
	n := 4*size + 1
	mid := 2 * size
	ref := make([]byte, n)
	chromaCTU := params.CTUSize / 2

	for i := 0; i <= 2*size; i++ {
		px := cx - 1 + i
		switch {
		case cy == 0:
			idx := c.ctuCol*chromaCTU + px + 1
			if idx < 0 || idx >= len(top) {
				ref[mid+i] = invalidSample
			} else {
				ref[mid+i] = top[idx]
			}
		case px < 0 || px >= chromaCTU:
			ref[mid+i] = invalidSample
		default:
			ref[mid+i] = rec[(cy-1)*chromaCTU+px]
		}
	}
	for i := 0; i < 2*size; i++ {
		py := cy + 2*size - 1 - i
		if cx == 0 || py < 0 || py >= chromaCTU {
			ref[i] = invalidSample
		} else {
			ref[i] = rec[py*chromaCTU+(cx-1)]
		}
	}

	valid := [5]bool{avail[availBL], avail[availL], avail[availTL], avail[availT], avail[availTR]}
	substituteReference(ref, valid, size)
	return ref
}

func (c *Coder) compressChromaBlock(cx, cy int, cbSrc, crSrc []byte, cStride int) {
	size := chromaBlockSize
	chromaCTU := params.CTUSize / 2
	lumaX, lumaY := 2*cx, 2*cy

	avail := c.checkNeighborAvailability(lumaX, lumaY, 2*size)
	dm := c.neighborMode(lumaX/params.MinCUSize, lumaY/params.MinCUSize)
	candidates := chromaModeCandidates(dm)

	refCb := c.buildChromaReferenceSamples(c.recCb, c.topCb, cx, cy, size, avail)
	refCr := c.buildChromaReferenceSamples(c.recCr, c.topCr, cx, cy, size, avail)

	predCb := make([]byte, size*size)
	predCr := make([]byte, size*size)
	bestPredCb := make([]byte, size*size)
	bestPredCr := make([]byte, size*size)
	bestSAD := -1
	var bestMode uint8

	for _, mode := range candidates {
		genChromaPrediction(predCb, refCb, size, mode)
		genChromaPrediction(predCr, refCr, size, mode)
		sad := sadBlock(cbSrc, cStride, cx, cy, predCb, size) + sadBlock(crSrc, cStride, cx, cy, predCr, size)
		if bestSAD < 0 || sad < bestSAD {
			bestSAD = sad
			bestMode = mode
			copy(bestPredCb, predCb)
			copy(bestPredCr, predCr)
		}
	}

	cbfCb := c.commitChromaPlane(cx, cy, size, bestPredCb, cbSrc, cStride, c.recCb, c.coeffCb, chromaCTU)
	cbfCr := c.commitChromaPlane(cx, cy, size, bestPredCr, crSrc, cStride, c.recCr, c.coeffCr, chromaCTU)

	c.chromaCUs = append(c.chromaCUs, chromaInfo{x: cx, y: cy, size: size, mode: bestMode, cbfCb: cbfCb, cbfCr: cbfCr})
}

// commitChromaPlane transforms, quantizes and reconstructs one chroma
// plane's block in place, returning whether any level is nonzero.
func (c *Coder) commitChromaPlane(cx, cy, size int, pred, src []byte, srcStride int, rec []byte, coeff []int16, recStride int) bool {
	srcBlock := make([]int32, size*size)
	for r := 0; r < size; r++ {
		for cc := 0; cc < size; cc++ {
			srcBlock[r*size+cc] = int32(src[(cy+r)*srcStride+cx+cc]) - int32(pred[r*size+cc])
		}
	}

	levels := make([]int32, size*size)
	tmp := make([]int32, size*size)
	nonZero := c.trn.ResidualDCT(levels, srcBlock, tmp, size, false)

	recon := make([]int32, size*size)
	if nonZero {
		c.trn.InverseQuantDCT(recon, levels, tmp, size, false)
	}
	for r := 0; r < size; r++ {
		for cc := 0; cc < size; cc++ {
			v := int(pred[r*size+cc])
			if nonZero {
				v += int(recon[r*size+cc])
			}
			rec[(cy+r)*recStride+cx+cc] = clampByte(v)
		}
	}
	for r := 0; r < size; r++ {
		rowStart := (cy+r)*recStride + cx
		copy(coeff[rowStart:rowStart+size], int16Slice(levels[r*size:r*size+size]))
	}
	return nonZero
}
