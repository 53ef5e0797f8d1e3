/*
DESCRIPTION
  compress.go implements the luma quadtree rate-distortion search (the
  chroma companion pass is in chroma.go). The quadtree walk is an explicit stack of
  frames rather than recursion (REDESIGN FLAG): each frame resolves its
  own whole-block candidate before visiting children, and an aborted
  split is handled by recommitting the whole block over whatever the
  children already wrote, rather than unwinding a call stack.

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

import "github.com/mukk10/ces265/params"

// quadtreeFrame is one pending node of the explicit-stack quadtree walk.
// state counts how many of the 4 children have finished; wholeCand is
// this node's own whole-block candidate, evaluated once on first visit
// before any child is pushed.
type quadtreeFrame struct {
	x, y, size     int
	state          int
	wholeCand      candidate
	wholeEvaluated bool
	childSAD       int
	resultSAD      int
	done           bool
}

var childOffsets = [4][2]int{{0, 0}, {1, 0}, {0, 1}, {1, 1}}

// compressLumaTree drives the iterative quadtree search over the whole
// CTU, committing every decided leaf into the shared reconstruction,
// coefficient and mode-map buffers as it goes.
func (c *Coder) compressLumaTree(srcY []byte, yStride int) {
	stack := []*quadtreeFrame{{x: 0, y: 0, size: params.CTUSize}}

	for len(stack) > 0 {
		f := stack[len(stack)-1]

		if f.done {
			stack = stack[:len(stack)-1]
			if len(stack) > 0 {
				parent := stack[len(stack)-1]
				parent.childSAD += f.resultSAD
				parent.state++
			}
			continue
		}

		if !f.wholeEvaluated {
			cand := c.tryWholeBlock(f.x, f.y, f.size, srcY, yStride)
			f.wholeCand = cand
			f.wholeEvaluated = true
			if f.size <= params.MinCUSize {
				c.commitLumaLeaf(f.x, f.y, f.size, cand)
				f.resultSAD = cand.sad
				f.done = true
			}
			continue
		}

		if f.state > 0 && f.childSAD >= f.wholeCand.sad {
			// The subtree already costs at least as much as the whole
			// block: abort the split by recommitting the whole block,
			// overwriting whatever the already-processed children
			// wrote into the shared buffers. Nothing outside this
			// subtree has read those buffers yet, so the overwrite is
			// safe.
			c.commitLumaLeaf(f.x, f.y, f.size, f.wholeCand)
			f.resultSAD = f.wholeCand.sad
			f.done = true
			continue
		}

		if f.state >= 4 {
			// Split wins; every child already committed for real.
			f.resultSAD = f.childSAD
			f.done = true
			continue
		}

		half := f.size / 2
		co := childOffsets[f.state]
		stack = append(stack, &quadtreeFrame{x: f.x + co[0]*half, y: f.y + co[1]*half, size: half})
	}
}

// candidate is the result of evaluating one intra mode against a block.
type candidate struct {
	mode int
	sad  int
	pred []byte
}

// tryWholeBlock evaluates all 35 intra modes for a size x size luma
// block and returns the winner, without writing any shared state beyond
// the Coder's private scratch arena.
func (c *Coder) tryWholeBlock(x, y, size int, srcY []byte, yStride int) candidate {
	avail := c.checkNeighborAvailability(x, y, size)
	cands := c.candidateModeList(x, y, size, avail)

	ref := newRefSamples(size)
	c.buildReferenceSamples(ref, x, y, size, avail)

	pred := c.scr.predBuf(size)
	best := c.scr.bestBuf(size)
	bestSAD := -1
	bestMode := 0

	for mode := 0; mode < 35; mode++ {
		GenIntraPrediction(pred, ref, size, mode, false)
		sad := sadBlock(srcY, yStride, x, y, pred, size) + modeBias(mode, cands, int(c.qp))
		if bestSAD < 0 || sad < bestSAD {
			bestSAD = sad
			bestMode = mode
			copy(best, pred)
		}
	}
	return candidate{mode: bestMode, sad: bestSAD, pred: best}
}

// modeBias biases the SAD of non-MPM modes, matching the source's
// cost model: MPM[0] costs qp, MPM[1..2] cost 2*qp, everything else 3*qp.
func modeBias(mode int, mpm [3]uint8, qp int) int {
	for i, m := range mpm {
		if int(m) == mode {
			if i == 0 {
				return qp
			}
			return 2 * qp
		}
	}
	return 3 * qp
}

func sadBlock(src []byte, stride, x, y int, pred []byte, size int) int {
	sad := 0
	for r := 0; r < size; r++ {
		srcRow := src[(y+r)*stride+x:]
		predRow := pred[r*size:]
		for cIdx := 0; cIdx < size; cIdx++ {
			d := int(srcRow[cIdx]) - int(predRow[cIdx])
			if d < 0 {
				d = -d
			}
			sad += d
		}
	}
	return sad
}

// commitLumaLeaf writes a winning whole-block candidate's prediction and
// residual into the shared reconstruction/coefficient buffers and
// records the decision for the encode phase to replay.
func (c *Coder) commitLumaLeaf(x, y, size int, best candidate) {
	srcBlock := make([]int32, size*size)
	for r := 0; r < size; r++ {
		for cIdx := 0; cIdx < size; cIdx++ {
			s := int32(c.lastSrcY[(y+r)*c.lastSrcStride+x+cIdx])
			p := int32(best.pred[r*size+cIdx])
			srcBlock[r*size+cIdx] = s - p
		}
	}

	levels := c.scr.coeff[:size*size]
	tmp := c.scr.residual[:size*size]
	isLumaIntra4x4 := size == 4
	nonZero := c.trn.ResidualDCT(levels, srcBlock, tmp, size, isLumaIntra4x4)

	recon := make([]int32, size*size)
	if nonZero {
		c.trn.InverseQuantDCT(recon, levels, tmp, size, isLumaIntra4x4)
	}
	for r := 0; r < size; r++ {
		for cIdx := 0; cIdx < size; cIdx++ {
			p := int(best.pred[r*size+cIdx])
			v := p
			if nonZero {
				v = p + int(recon[r*size+cIdx])
			}
			c.recY[(y+r)*params.CTUSize+x+cIdx] = clampByte(v)
		}
	}
	for r := 0; r < size; r++ {
		rowStart := (y + r) * params.CTUSize + x
		copy(c.coeffY[rowStart:rowStart+size], int16Slice(levels[r*size:r*size+size]))
	}

	c.writeModeMap(x, y, size, uint8(best.mode))
	c.lumaCUs = append(c.lumaCUs, cuInfo{x: x, y: y, size: size, lumaMode: uint8(best.mode), cbfLuma: nonZero})
}

func int16Slice(src []int32) []int16 {
	out := make([]int16, len(src))
	for i, v := range src {
		out[i] = int16(v)
	}
	return out
}
