/*
DESCRIPTION
  slicedriver.go implements SliceDriver: one TileWorker per tile, a
  bounded-channel goroutine pool dispatching N-1 tiles while the caller
  processes the Nth itself (§9: channel + WaitGroup, not mutex+condvar),
  entry-point-offset patching, and forward-ordered stitching of the
  slice header and tile byte buffers into one output slice.

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

// Package slicedriver implements SliceDriver, the per-frame tile-
// parallel dispatcher and bitstream stitcher.
package slicedriver

import (
	"sync"

	"github.com/mukk10/ces265/headers"
	"github.com/mukk10/ces265/params"
	"github.com/mukk10/ces265/tile"
)

// job is one dispatched unit of work: the tile index to run.
type job struct {
	tileIdx int
}

// Driver owns one tile.Worker per tile of an ImageParams and encodes
// one slice (one frame, since GOP size is pinned to 1) per Encode call.
type Driver struct {
	params  *params.ImageParams
	workers []*tile.Worker

	tileWorkerCount int
}

// New returns a Driver with one tile.Worker pre-allocated per tile in
// p, coding at QP p.QP.
func New(p *params.ImageParams, tileWorkerCount int) *Driver {
	workers := make([]*tile.Worker, len(p.Tiles))
	for i, t := range p.Tiles {
		workers[i] = tile.NewWorker(t, p.QP)
	}
	if tileWorkerCount <= 0 {
		tileWorkerCount = 1
	}
	return &Driver{params: p, workers: workers, tileWorkerCount: tileWorkerCount}
}

// Encode runs one slice's tiles against the given picture planes,
// first-in-GOP flag idr and picture-order-count poc, and returns the
// complete Annex-B slice NAL payload (header + tile substreams, entry
// points patched in).
func (d *Driver) Encode(yPlane, cbPlane, crPlane []byte, yStride, cStride int, idr bool, poc uint32) []byte {
	d.dispatch(yPlane, cbPlane, crPlane, yStride, cStride)

	tileLengths := make([]uint32, len(d.workers))
	for i, w := range d.workers {
		tileLengths[i] = uint32(len(w.Bytes()))
	}

	sh := headers.SliceHeader{
		FirstSliceInPic: true,
		POCLsb:          poc,
		QP:              d.params.QP,
		LastSliceOfPicture: true,
	}
	if len(d.workers) > 1 {
		sh.EntryPointOffsets = tileLengths[:len(tileLengths)-1]
	}
	headerBytes := headers.GenSliceHeader(sh, idr)

	return stitch(headerBytes, d.workers)
}

// dispatch runs tiles[0:N-1] on a bounded pool of goroutines reading
// from a buffered job channel with a close()-as-sentinel shutdown
// (§9: channel + WaitGroup, not mutex + two condition variables), and
// runs the last tile on the calling goroutine.
func (d *Driver) dispatch(yPlane, cbPlane, crPlane []byte, yStride, cStride int) {
	n := len(d.workers)
	if n == 0 {
		return
	}

	jobs := make(chan job, n)
	for i := 0; i < n-1; i++ {
		jobs <- job{tileIdx: i}
	}
	close(jobs)

	var wg sync.WaitGroup
	poolSize := d.tileWorkerCount
	if poolSize > n-1 {
		poolSize = n - 1
	}
	for p := 0; p < poolSize; p++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := range jobs {
				// The job channel only ever holds tiles [0, n-2]; the
				// last tile always runs on the driver's own goroutine
				// below, so no dispatched job is ever the slice's last.
				if err := d.workers[j.tileIdx].Run(yPlane, cbPlane, crPlane, yStride, cStride, false); err != nil {
					panic(err)
				}
			}
		}()
	}

	// The driver's own goroutine executes the last tile.
	lastIdx := n - 1
	if err := d.workers[lastIdx].Run(yPlane, cbPlane, crPlane, yStride, cStride, true); err != nil {
		panic(err)
	}

	wg.Wait()
}

// stitch concatenates the header bytes and every tile's byte buffer,
// in raster tile order, as a forward-ordered slice of independently-
// owned buffers (§9: not a linked list of handler pointers), then
// fixes zero-termination on the combined stream.
func stitch(header []byte, workers []*tile.Worker) []byte {
	total := len(header)
	for _, w := range workers {
		total += len(w.Bytes())
	}
	out := make([]byte, 0, total)
	out = append(out, header...)
	for _, w := range workers {
		out = append(out, w.Bytes()...)
	}
	if len(out) > 0 && out[len(out)-1] == 0x00 {
		out = append(out, 0x03)
	}
	return out
}
