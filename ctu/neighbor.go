/*
DESCRIPTION
  neighbor.go maintains the per-tile neighborhood mode map: availability
  checks against already-decided neighbor coding units, most-probable-
  mode list derivation (8.4.1), mode-map writeback for a committed leaf,
  and the end-of-CTU rotation/top-reference update a tile's CTUs share.

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

// puIndex maps PU-grid coordinates, including the one-PU ring of
// neighbors to the left (-1) and above (-1), into modeMap's flat index.
func puIndex(px, py int) int {
	return (py+1)*(totPUsLine+2) + (px + 1)
}

// neighborMode returns the mode committed at PU (px,py), or DC if that
// PU is out of the tracked window or was never decided. The top ring
// (py == -1) always reads as undecided: this Coder only keeps a pixel
// top-reference line across CTU rows, not a mode line, so an MPM
// candidate from the CTU row above falls back to DC (a simplification
// noted in DESIGN.md).
func (c *Coder) neighborMode(px, py int) uint8 {
	if px < -1 || py < -1 || px >= totPUsLine || py >= totPUsLine {
		return hevctab.DCModeIdx
	}
	m := c.modeMap[puIndex(px, py)]
	if m == invalidMode {
		return hevctab.DCModeIdx
	}
	return m
}

// checkNeighborAvailability reports, for a size x size luma block at
// CTU-local pixel offset (x,y), whether each of the five HEVC neighbor
// directions has already been decided. Availability is judged from a
// representative corner PU per edge rather than a full z-scan sweep,
// matching this encoder's reduced-fidelity neighbor model.
func (c *Coder) checkNeighborAvailability(x, y, size int) [5]bool {
	pux, puy := x/params.MinCUSize, y/params.MinCUSize
	wpu := size / params.MinCUSize

	avail := func(px, py int) bool {
		if px < -1 || py < -1 || px >= totPUsLine || py >= totPUsLine {
			return false
		}
		return c.modeMap[puIndex(px, py)] != invalidMode
	}

	var a [5]bool
	a[availTL] = avail(pux-1, puy-1)
	a[availT] = avail(pux, puy-1) && avail(pux+wpu-1, puy-1)
	a[availTR] = avail(pux+wpu, puy-1)
	a[availL] = avail(pux-1, puy) && avail(pux-1, puy+wpu-1)
	a[availBL] = avail(pux-1, puy+wpu)
	return a
}

// candidateModeList derives the 3-entry most-probable-mode list for a
// block at CTU-local offset (x,y), per 8.4.1.
func (c *Coder) candidateModeList(x, y, size int, avail [5]bool) [3]uint8 {
	pux, puy := x/params.MinCUSize, y/params.MinCUSize
	candA, candB := uint8(hevctab.DCModeIdx), uint8(hevctab.DCModeIdx)
	if avail[availL] {
		candA = c.neighborMode(pux-1, puy)
	}
	if avail[availT] {
		candB = c.neighborMode(pux, puy-1)
	}

	var mpm [3]uint8
	if candA == candB {
		if candA < 2 {
			mpm = [3]uint8{hevctab.PlanarModeIdx, hevctab.DCModeIdx, hevctab.VerModeIdx}
		} else {
			mpm[0] = candA
			mpm[1] = uint8(2 + (int(candA)+29)%32)
			mpm[2] = uint8(2 + (int(candA)-2+1)%32)
		}
		return mpm
	}

	mpm[0], mpm[1] = candA, candB
	switch {
	case candA != hevctab.PlanarModeIdx && candB != hevctab.PlanarModeIdx:
		mpm[2] = hevctab.PlanarModeIdx
	case candA != hevctab.DCModeIdx && candB != hevctab.DCModeIdx:
		mpm[2] = hevctab.DCModeIdx
	default:
		mpm[2] = hevctab.VerModeIdx
	}
	return mpm
}

// writeModeMap records mode across every PU a just-committed leaf
// covers, so later blocks' availability/MPM lookups see it.
func (c *Coder) writeModeMap(x, y, size int, mode uint8) {
	pux, puy := x/params.MinCUSize, y/params.MinCUSize
	wpu := size / params.MinCUSize
	for py := puy; py < puy+wpu; py++ {
		for px := pux; px < pux+wpu; px++ {
			c.modeMap[puIndex(px, py)] = mode
		}
	}
}

// SetCTUPosition tells the Coder which CTU column, within its tile, is
// about to be processed, so Update can place this CTU's bottom
// reconstructed row at the right offset of the tile-wide top-reference
// line.
func (c *Coder) SetCTUPosition(col int) {
	c.ctuCol = col
}

// rotateModeMap copies this CTU's rightmost PU column into the left
// ring, so the next CTU in the row sees it as its immediate left
// neighbor.
func (c *Coder) rotateModeMap() {
	for py := -1; py < totPUsLine; py++ {
		c.modeMap[puIndex(-1, py)] = c.modeMap[puIndex(totPUsLine-1, py)]
	}
}

// resetLeftRing marks the left ring as undecided; called at the start
// of a tile's CTU row, since the first CTU of a row has no left
// neighbor.
func (c *Coder) resetLeftRing() {
	for py := -1; py < totPUsLine; py++ {
		c.modeMap[puIndex(-1, py)] = invalidMode
	}
}

// updateTopReference copies this CTU's bottom reconstructed row into
// the tile-wide top-reference lines at this CTU's column offset.
func (c *Coder) updateTopReference() {
	baseY := c.ctuCol*params.CTUSize + 1
	bottom := (params.CTUSize - 1) * params.CTUSize
	for i := 0; i < params.CTUSize; i++ {
		c.topY[baseY+i] = c.recY[bottom+i]
	}

	chromaCTU := params.CTUSize / 2
	baseC := c.ctuCol*chromaCTU + 1
	bottomC := (chromaCTU - 1) * chromaCTU
	for i := 0; i < chromaCTU; i++ {
		c.topCb[baseC+i] = c.recCb[bottomC+i]
		c.topCr[baseC+i] = c.recCr[bottomC+i]
	}
}
