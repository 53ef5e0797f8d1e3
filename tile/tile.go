/*
DESCRIPTION
  tile.go implements TileWorker: one CtuCoder, one CabacEngine and one
  BitWriter bound to a single tile rectangle, sequencing that tile's
  CTUs in raster order through compress -> encode -> update.

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

// Package tile implements TileWorker, the sequential per-tile CTU
// driver a SliceDriver dispatches one-per-goroutine.
package tile

import (
	"github.com/mukk10/ces265/bitio"
	"github.com/mukk10/ces265/cabac"
	"github.com/mukk10/ces265/ctu"
	"github.com/mukk10/ces265/params"
)

// Worker drives one tile's CTUs to completion: its CtuCoder, CabacEngine
// and BitWriter are private to the goroutine that owns it, so no
// synchronization is needed between tiles.
type Worker struct {
	tile params.Tile
	qp   int32

	coder  *ctu.Coder
	engine *cabac.Engine
	writer *bitio.Writer
}

// NewWorker returns a Worker pre-sized for t, coding at QP qp.
func NewWorker(t params.Tile, qp int32) *Worker {
	widthPx := t.WidthInCTUs * params.CTUSize
	heightPx := t.HeightInCTUs * params.CTUSize
	capacityHint := t.WidthInCTUs * t.HeightInCTUs * params.BytesPerCTU

	w := bitio.NewWriter(capacityHint)
	return &Worker{
		tile:   t,
		qp:     qp,
		coder:  ctu.NewCoder(qp, widthPx, heightPx),
		engine: cabac.NewEngine(w, qp),
		writer: w,
	}
}

// frameAt returns the plane slice starting at pixel (pixX, pixY) of a
// full-picture Y/Cb/Cr plane with the given stride.
func frameAt(plane []byte, stride, pixX, pixY int) []byte {
	return plane[pixY*stride+pixX:]
}

// Run sequences every CTU of the tile in raster order, each through
// compress -> encode -> update, against the full picture's planes.
// isLastTileOfSlice gates whether this tile's last CTU also emits the
// slice-terminating bit (only one tile in a slice is the last).
func (w *Worker) Run(yPlane, cbPlane, crPlane []byte, yStride, cStride int, isLastTileOfSlice bool) error {
	w.coder.InitBuffersNewTile()
	// each Run codes a new substream: empty writer, freshly initialized contexts
	w.writer = bitio.NewWriter(w.tile.WidthInCTUs * w.tile.HeightInCTUs * params.BytesPerCTU)
	w.engine = cabac.NewEngine(w.writer, w.qp)

	numCTUsX := w.tile.WidthInCTUs
	numCTUsY := w.tile.HeightInCTUs
	lastCol, lastRow := numCTUsX-1, numCTUsY-1

	for row := 0; row < numCTUsY; row++ {
		w.coder.InitBuffersNewCTULine()
		for col := 0; col < numCTUsX; col++ {
			w.coder.SetCTUPosition(col)

			ctuX := (w.tile.StartCTUX + col) * params.CTUSize
			ctuY := (w.tile.StartCTUY + row) * params.CTUSize
			cCtuX, cCtuY := ctuX/2, ctuY/2

			yBuf := frameAt(yPlane, yStride, ctuX, ctuY)
			cbBuf := frameAt(cbPlane, cStride, cCtuX, cCtuY)
			crBuf := frameAt(crPlane, cStride, cCtuX, cCtuY)

			if err := w.coder.Compress(yBuf, cbBuf, crBuf, yStride, cStride); err != nil {
				return err
			}
			isLastCTUOfTile := row == lastRow && col == lastCol
			w.coder.Encode(w.engine, isLastCTUOfTile, isLastCTUOfTile && isLastTileOfSlice)
			w.coder.Update(yBuf, cbBuf, crBuf, yStride, cStride)
		}
	}

	w.engine.Flush()
	if err := w.writer.Flush(); err != nil {
		return err
	}
	return nil
}

// Bytes returns the tile's encoded bitstream bytes, valid only after
// Run has completed.
func (w *Worker) Bytes() []byte {
	return w.writer.Bytes()
}
