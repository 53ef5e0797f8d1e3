/*
DESCRIPTION
  params.go defines ImageParams, the frame geometry and coding
  configuration built once per frame and shared read-only by every tile
  worker for that frame's encode.

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

// Package params defines the immutable, frame-wide coding configuration
// shared by every package downstream of the GOP driver.
package params

import "github.com/pkg/errors"

const (
	// CTUSize is the fixed luma CTU width/height this encoder supports.
	CTUSize = 32
	// MinCUSize is the smallest luma coding-unit size.
	MinCUSize = 4
	// BytesPerCTU is the per-CTU output byte budget used to pre-size
	// each TileWorker's BitWriter.
	BytesPerCTU = 800
)

// Tile describes one tile's CTU-grid rectangle within the frame.
type Tile struct {
	ID                               int
	StartCTUX, StartCTUY             int // inclusive, in CTU units
	EndCTUX, EndCTUY                 int // inclusive, in CTU units
	WidthInCTUs, HeightInCTUs        int
}

// ImageParams is built once per frame by the gop/cmd boundary and handed
// down immutably; no component mutates it after construction.
type ImageParams struct {
	FrameWidth, FrameHeight             int // luma, pixels
	FrameWidthChroma, FrameHeightChroma int
	CTUGridWidth, CTUGridHeight         int // in CTUs
	Tiles                               []Tile
	QP                                  int32
}

// New validates frame/tile geometry and derives the CTU grid.
func New(width, height int, qp int32, tileCols, tileRows int) (*ImageParams, error) {
	if width%CTUSize != 0 || height%CTUSize != 0 {
		return nil, errors.Errorf("params: frame %dx%d is not a multiple of CTU size %d", width, height, CTUSize)
	}
	if width%2 != 0 || height%2 != 0 {
		return nil, errors.New("params: frame dimensions must be even for 4:2:0 chroma")
	}
	gridW, gridH := width/CTUSize, height/CTUSize
	if tileCols <= 0 || tileRows <= 0 || tileCols > gridW || tileRows > gridH {
		return nil, errors.Errorf("params: invalid tile grid %dx%d for CTU grid %dx%d", tileCols, tileRows, gridW, gridH)
	}

	p := &ImageParams{
		FrameWidth:        width,
		FrameHeight:       height,
		FrameWidthChroma:  width / 2,
		FrameHeightChroma: height / 2,
		CTUGridWidth:      gridW,
		CTUGridHeight:     gridH,
		QP:                qp,
	}
	p.Tiles = uniformTiles(gridW, gridH, tileCols, tileRows)
	return p, nil
}

// uniformTiles splits a gridW x gridH CTU grid into tileCols x tileRows
// tiles with uniform spacing (cut points at i*grid/n, so sizes differ by
// at most one CTU), matching the PPS's uniform_spacing_flag=1 convention.
func uniformTiles(gridW, gridH, tileCols, tileRows int) []Tile {
	colBounds := splitBounds(gridW, tileCols)
	rowBounds := splitBounds(gridH, tileRows)

	var tiles []Tile
	id := 0
	for ty := 0; ty < tileRows; ty++ {
		for tx := 0; tx < tileCols; tx++ {
			tiles = append(tiles, Tile{
				ID:           id,
				StartCTUX:    colBounds[tx],
				StartCTUY:    rowBounds[ty],
				EndCTUX:      colBounds[tx+1] - 1,
				EndCTUY:      rowBounds[ty+1] - 1,
				WidthInCTUs:  colBounds[tx+1] - colBounds[tx],
				HeightInCTUs: rowBounds[ty+1] - rowBounds[ty],
			})
			id++
		}
	}
	return tiles
}

// splitBounds returns n+1 cut points splitting total units into n
// uniformly-sized (HEVC uniform_spacing) groups.
func splitBounds(total, n int) []int {
	bounds := make([]int, n+1)
	for i := 0; i <= n; i++ {
		bounds[i] = i * total / n
	}
	return bounds
}

// CTUStartPel returns the top-left pixel coordinate of CTU (ctuX, ctuY).
func (p *ImageParams) CTUStartPel(ctuX, ctuY int) (x, y int) {
	return ctuX * CTUSize, ctuY * CTUSize
}
