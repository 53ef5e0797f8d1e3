/*
DESCRIPTION
  encode.go replays a CTU's already-committed luma/chroma decisions as
  CABAC syntax: quadtree split flags (explicit-stack walk, matching the
  compress-phase REDESIGN), partition/mode syntax, coded-block flags,
  and per-transform-block coefficient emission.

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
	"github.com/mukk10/ces265/cabac"
	"github.com/mukk10/ces265/hevctab"
	"github.com/mukk10/ces265/params"
)

// findLumaLeaf returns the committed leaf exactly matching (x,y,size),
// if the luma quadtree search settled on that node as a leaf rather
// than splitting it.
func (c *Coder) findLumaLeaf(x, y, size int) (cuInfo, bool) {
	for _, leaf := range c.lumaCUs {
		if leaf.x == x && leaf.y == y && leaf.size == size {
			return leaf, true
		}
	}
	return cuInfo{}, false
}

// encodeFrame is one pending node of the explicit-stack encode walk.
type encodeFrame struct {
	x, y, size int
	started    bool
	childIdx   int
}

// encodeLumaTree walks the committed luma quadtree and emits its CABAC
// syntax, iteratively rather than recursively (REDESIGN FLAG).
func (c *Coder) encodeLumaTree(e *cabac.Engine, x, y, size int) {
	stack := []*encodeFrame{{x: x, y: y, size: size}}
	for len(stack) > 0 {
		f := stack[len(stack)-1]

		if !f.started {
			f.started = true
			if leaf, ok := c.findLumaLeaf(f.x, f.y, f.size); ok {
				if f.size > params.MinCUSize {
					e.EncodeSplitFlag(false, 0)
				}
				c.encodeLumaLeaf(e, leaf)
				stack = stack[:len(stack)-1]
				continue
			}
			e.EncodeSplitFlag(true, 0)
			continue
		}

		if f.childIdx >= 4 {
			stack = stack[:len(stack)-1]
			continue
		}

		half := f.size / 2
		co := childOffsets[f.childIdx]
		f.childIdx++
		stack = append(stack, &encodeFrame{x: f.x + co[0]*half, y: f.y + co[1]*half, size: half})
	}
}

// intraRemCode derives the 5-bit remainder index for a luma mode not in
// its MPM list: the mode's rank among the 32 non-MPM candidates.
func intraRemCode(mode uint8, mpm [3]uint8) int {
	sorted := mpm
	if sorted[0] > sorted[1] {
		sorted[0], sorted[1] = sorted[1], sorted[0]
	}
	if sorted[1] > sorted[2] {
		sorted[1], sorted[2] = sorted[2], sorted[1]
	}
	if sorted[0] > sorted[1] {
		sorted[0], sorted[1] = sorted[1], sorted[0]
	}
	rem := int(mode)
	for _, m := range sorted {
		if int(mode) > int(m) {
			rem--
		}
	}
	return rem
}

func (c *Coder) encodeLumaLeaf(e *cabac.Engine, leaf cuInfo) {
	e.EncodePartSize(0) // this encoder only ever emits 2Nx2N
	e.EncodePredMode(true)

	avail := c.checkNeighborAvailability(leaf.x, leaf.y, leaf.size)
	mpm := c.candidateModeList(leaf.x, leaf.y, leaf.size, avail)

	usesMPM, mpmIdx := false, 0
	for i, m := range mpm {
		if m == leaf.lumaMode {
			usesMPM, mpmIdx = true, i
			break
		}
	}
	e.EncodeIntraLumaMPMFlag(usesMPM)
	if usesMPM {
		e.EncodeIntraLumaMPMIdx(mpmIdx)
	} else {
		e.EncodeIntraLumaRem(intraRemCode(leaf.lumaMode, mpm))
	}

	depthBucket := log2(params.CTUSize) - log2(leaf.size)
	e.EncodeCBF(leaf.cbfLuma, 0, depthBucket)
	if leaf.cbfLuma {
		c.encodeResidualBlock(e, leaf.x, leaf.y, leaf.size, 0)
	}
}

// encodeChromaTree emits the chroma companion pass's committed TUs: DM
// vs explicit direction syntax, per-component CBF, and residuals.
func (c *Coder) encodeChromaTree(e *cabac.Engine) {
	for _, cu := range c.chromaCUs {
		lumaX, lumaY := 2*cu.x, 2*cu.y
		dm := c.neighborMode(lumaX/params.MinCUSize, lumaY/params.MinCUSize)
		candidates := chromaModeCandidates(dm)

		isDM := cu.mode == dm
		explicitIdx := 0
		if !isDM {
			for i, m := range candidates[:4] {
				if m == cu.mode {
					explicitIdx = i
					break
				}
			}
		}
		e.EncodeIntraChromaPredMode(isDM, explicitIdx)

		depthBucket := log2(params.CTUSize/2) - log2(cu.size)
		e.EncodeCBF(cu.cbfCb, 1, depthBucket)
		if cu.cbfCb {
			c.encodeResidualBlock(e, cu.x, cu.y, cu.size, 1)
		}
		e.EncodeCBF(cu.cbfCr, 2, depthBucket)
		if cu.cbfCr {
			c.encodeResidualBlock(e, cu.x, cu.y, cu.size, 2)
		}
	}
}

// scanOrderFor returns the coefficient scan order for a size x size
// block: a diagonal sweep of 4x4 groups, each group itself diagonally
// scanned via hevctab.ScanDiag4.
func scanOrderFor(log2Size int) []hevctab.Pos {
	size := 1 << uint(log2Size)
	groupsPerSide := size / 4
	scan := make([]hevctab.Pos, 0, size*size)
	for _, g := range diagGroupScan(groupsPerSide) {
		for _, p := range hevctab.ScanDiag4 {
			scan = append(scan, hevctab.Pos{X: g.X*4 + p.X, Y: g.Y*4 + p.Y})
		}
	}
	return scan
}

func diagGroupScan(n int) []hevctab.Pos {
	out := make([]hevctab.Pos, 0, n*n)
	for d := 0; d < 2*n-1; d++ {
		for y := 0; y < n; y++ {
			x := d - y
			if x >= 0 && x < n {
				out = append(out, hevctab.Pos{X: x, Y: y})
			}
		}
	}
	return out
}

func abs32(v int32) int32 {
	if v < 0 {
		return -v
	}
	return v
}

// encodeResidualBlock emits one transform block's coefficients: last
// significant position, then per-4x4-group significance, greater-1/
// greater-2 flags, signs and remainders, processed from the last
// significant group back to the DC group.
func (c *Coder) encodeResidualBlock(e *cabac.Engine, x, y, size, comp int) {
	var coeff []int16
	var stride int
	switch comp {
	case 0:
		coeff, stride = c.coeffY, params.CTUSize
	case 1:
		coeff, stride = c.coeffCb, params.CTUSize/2
	default:
		coeff, stride = c.coeffCr, params.CTUSize/2
	}

	log2Size := log2(size)
	levels := make([]int32, size*size)
	for r := 0; r < size; r++ {
		for cc := 0; cc < size; cc++ {
			levels[r*size+cc] = int32(coeff[(y+r)*stride+x+cc])
		}
	}

	scan := scanOrderFor(log2Size)
	lastScanPos := -1
	for i := len(scan) - 1; i >= 0; i-- {
		p := scan[i]
		if levels[p.Y*size+p.X] != 0 {
			lastScanPos = i
			break
		}
	}
	if lastScanPos < 0 {
		return
	}
	last := scan[lastScanPos]
	e.EncodeLastSigXY(last.X, last.Y, log2Size, comp)

	lastGroup := lastScanPos / 16
	riceParam := 0

	for gi := lastGroup; gi >= 0; gi-- {
		groupSig := false
		for pi := 0; pi < 16; pi++ {
			scanIdx := gi*16 + pi
			if scanIdx > lastScanPos {
				continue
			}
			p := scan[scanIdx]
			if levels[p.Y*size+p.X] != 0 {
				groupSig = true
				break
			}
		}
		if gi != 0 && gi != lastGroup {
			e.EncodeSigCoeffGroupFlag(groupSig, 0)
		}
		if !groupSig {
			continue
		}

		var sigPositions []hevctab.Pos
		for pi := 15; pi >= 0; pi-- {
			scanIdx := gi*16 + pi
			if scanIdx > lastScanPos {
				continue
			}
			p := scan[scanIdx]
			if scanIdx == lastScanPos {
				sigPositions = append(sigPositions, p)
				continue
			}
			sig := levels[p.Y*size+p.X] != 0
			e.EncodeSigCoeffFlag(sig, 0)
			if sig {
				sigPositions = append(sigPositions, p)
			}
		}

		absLevels := make([]int32, len(sigPositions))
		for i, p := range sigPositions {
			absLevels[i] = abs32(levels[p.Y*size+p.X])
		}

		ctxSet := gi / 4
		numGT1 := 0
		firstGT1Idx := -1
		for i, lvl := range absLevels {
			if numGT1 >= 8 {
				break
			}
			gt1 := lvl > 1
			e.EncodeCoeffAbsGreater1(gt1, ctxSet, numGT1%4)
			numGT1++
			if gt1 && firstGT1Idx < 0 {
				firstGT1Idx = i
			}
		}
		if firstGT1Idx >= 0 {
			e.EncodeCoeffAbsGreater2(absLevels[firstGT1Idx] > 2, ctxSet)
		}

		for _, p := range sigPositions {
			e.EncodeCoeffSign(levels[p.Y*size+p.X] < 0)
		}

		for i, lvl := range absLevels {
			var baseLevel int32 = 1
			switch {
			case i == firstGT1Idx:
				baseLevel = 3
			case i < numGT1:
				baseLevel = 2
			}
			if lvl < baseLevel {
				continue
			}
			remaining := uint32(lvl - baseLevel)
			e.EncodeCoeffRemainExpGolomb(remaining, riceParam)
			if remaining > uint32(3<<uint(riceParam)) && riceParam < 4 {
				riceParam++
			}
		}
	}
}
