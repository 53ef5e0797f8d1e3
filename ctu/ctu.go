/*
DESCRIPTION
  ctu.go defines Coder, the per-tile CTU compressor: the neighborhood
  mode map, top-reference lines, reconstruction and coefficient buffers,
  and the named scratch arenas used by the luma/chroma quadtree walk.
  Coder.Compress, Coder.Encode and Coder.Update are the three phases a
  TileWorker drives once per CTU.

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

// Package ctu implements the per-CTU intra coding-unit analyzer: the
// luma quadtree with try-split/abort rate-distortion search, the chroma
// companion pass, CABAC syntax emission, and the reconstruction/mode-map
// bookkeeping a tile's CTUs share between each other.
package ctu

import (
	"github.com/mukk10/ces265/cabac"
	"github.com/mukk10/ces265/hevctab"
	"github.com/mukk10/ces265/params"
	"github.com/mukk10/ces265/transform"

	"github.com/pkg/errors"
)

// totPUsLine is the number of 4x4 prediction units along one CTU edge.
const totPUsLine = params.CTUSize / params.MinCUSize

// invalidMode marks a mode-map or chroma-info entry as unavailable.
const invalidMode = hevctab.InvalidMode

// cuInfo records one committed coding unit's decision, used by both the
// compress phase (to fill the mode map) and the encode phase (to replay
// the same quadtree for CABAC emission).
type cuInfo struct {
	x, y, size int // pixel offsets within the CTU, luma
	lumaMode   uint8
	cbfLuma    bool
	split      bool // true only for interior quadtree nodes, never a leaf
}

// chromaInfo records one committed chroma TU's decision.
type chromaInfo struct {
	x, y, size int // pixel offsets within the CTU, chroma scale
	mode       uint8
	cbfCb      bool
	cbfCr      bool
}

// scratchArena holds one distinctly-allocated prediction buffer per
// candidate block size, plus a best-so-far buffer, so the quadtree
// search never aliases a "ping" buffer as its own "pong" (REDESIGN
// FLAG: no aliased ping-pong buffers).
type scratchArena struct {
	pred4, pred8, pred16, pred32 []byte
	best4, best8, best16, best32 []byte
	residual                     []int32 // size*size scratch for DCT input/output
	coeff                        []int32 // size*size scratch for quantized levels
}

func newScratchArena() *scratchArena {
	return &scratchArena{
		pred4:    make([]byte, 4*4),
		pred8:    make([]byte, 8*8),
		pred16:   make([]byte, 16*16),
		pred32:   make([]byte, 32*32),
		best4:    make([]byte, 4*4),
		best8:    make([]byte, 8*8),
		best16:   make([]byte, 16*16),
		best32:   make([]byte, 32*32),
		residual: make([]int32, 32*32),
		coeff:    make([]int32, 32*32),
	}
}

func (s *scratchArena) predBuf(size int) []byte {
	switch size {
	case 4:
		return s.pred4
	case 8:
		return s.pred8
	case 16:
		return s.pred16
	default:
		return s.pred32
	}
}

func (s *scratchArena) bestBuf(size int) []byte {
	switch size {
	case 4:
		return s.best4
	case 8:
		return s.best8
	case 16:
		return s.best16
	default:
		return s.best32
	}
}

// Coder holds all per-tile state carried between CTUs of the same tile.
// One Coder belongs to exactly one TileWorker and is never shared across
// goroutines.
type Coder struct {
	qp   int32
	trn  *transform.Codec
	scr  *scratchArena

	// neighborhood mode map: (totPUsLine+2)^2, with a one-PU ring of
	// neighbors to the left/above; entries are a mode index or
	// invalidMode. Reset on InitBuffersNewTile, rotated every CTU.
	modeMap []uint8

	// per-tile top-reference lines: reconstructed bottom row of the CTU
	// row above, one leading sentinel byte per row so a lookup one
	// position left of the tile's first CTU never reads out of bounds
	// (Open Question: sentinel-priming contract preserved).
	topY, topCb, topCr []byte

	// reconstruction buffers for the current CTU, luma full-size,
	// chroma half-size each dimension.
	recY, recCb, recCr []byte

	// quantized coefficient buffers for the current CTU.
	coeffY, coeffCb, coeffCr []int16

	// committed decisions from the most recent Compress call, replayed
	// verbatim by Encode.
	lumaCUs   []cuInfo
	chromaCUs []chromaInfo

	tileWidthPx, tileHeightPx int
	firstCTUInTileRow         bool

	// lastSrcY/lastSrcStride point at the caller's source luma plane
	// for the CTU currently being compressed, so leaf commits can read
	// the original samples without threading them through every stack
	// frame.
	lastSrcY      []byte
	lastSrcStride int

	// ctuCol is the CTU column, within the tile, most recently set via
	// SetCTUPosition; Update uses it to place this CTU's reconstructed
	// bottom row into the tile-wide top-reference line.
	ctuCol int
}

// NewCoder returns a Coder sized for a tile of tileWidthPx x
// tileHeightPx luma pixels, coding at QP qp.
func NewCoder(qp int32, tileWidthPx, tileHeightPx int) *Coder {
	c := &Coder{
		qp:           qp,
		trn:          transform.NewCodec(qp),
		scr:          newScratchArena(),
		modeMap:      make([]uint8, (totPUsLine+2)*(totPUsLine+2)),
		recY:         make([]byte, params.CTUSize*params.CTUSize),
		recCb:        make([]byte, (params.CTUSize/2)*(params.CTUSize/2)),
		recCr:        make([]byte, (params.CTUSize/2)*(params.CTUSize/2)),
		coeffY:       make([]int16, params.CTUSize*params.CTUSize),
		coeffCb:      make([]int16, (params.CTUSize/2)*(params.CTUSize/2)),
		coeffCr:      make([]int16, (params.CTUSize/2)*(params.CTUSize/2)),
		tileWidthPx:  tileWidthPx,
		tileHeightPx: tileHeightPx,
	}
	topLen := tileWidthPx + params.CTUSize + 1
	c.topY = make([]byte, topLen)
	c.topCb = make([]byte, topLen/2+1)
	c.topCr = make([]byte, topLen/2+1)
	c.InitBuffersNewTile()
	return c
}

// InitBuffersNewTile resets all per-tile state: mode map to invalidMode,
// top-reference lines primed with one leading sentinel byte.
func (c *Coder) InitBuffersNewTile() {
	for i := range c.modeMap {
		c.modeMap[i] = invalidMode
	}
	primeSentinel(c.topY)
	primeSentinel(c.topCb)
	primeSentinel(c.topCr)
	c.firstCTUInTileRow = true
}

func primeSentinel(buf []byte) {
	for i := range buf {
		buf[i] = 0x80
	}
	if len(buf) > 0 {
		buf[0] = 0xFF // leading sentinel byte, never read as a real sample
	}
}

// InitBuffersNewCTULine resets the part of the mode map that must not
// carry over across a tile's CTU rows (the left ring); the top ring is
// left as it is. The reconstructed row above lives in topY/topCb/topCr,
// which updateTopReference maintains.
func (c *Coder) InitBuffersNewCTULine() {
	c.resetLeftRing()
	c.firstCTUInTileRow = true
}

// Compress runs the luma quadtree and chroma companion pass over one
// CTU of source pixels, filling the Coder's reconstruction/coefficient
// buffers and the lumaCUs/chromaCUs decision lists that Encode replays.
// The reference encoder's CABAC coefficient syntax is undefined for
// block sizes above 32, so a CTU size above 32 is rejected explicitly
// here rather than left as undefined behavior (Open Question, §9).
func (c *Coder) Compress(yBuf, cbBuf, crBuf []byte, yStride, cStride int) error {
	if params.CTUSize > 32 {
		return errors.New("ctu: CTU sizes above 32 are not supported")
	}
	c.lumaCUs = c.lumaCUs[:0]
	c.chromaCUs = c.chromaCUs[:0]
	c.lastSrcY = yBuf
	c.lastSrcStride = yStride

	c.compressLumaTree(yBuf, yStride)
	c.compressChroma(cbBuf, crBuf, cStride)
	return nil
}

// Encode walks the same quadtree structure Compress just built and emits
// its CABAC syntax: split flags, partition/mode syntax, CBF bits, and
// coefficient blocks.
func (c *Coder) Encode(e *cabac.Engine, isLastCTUOfTile, isLastCTUOfSlice bool) {
	c.encodeLumaTree(e, 0, 0, params.CTUSize)
	c.encodeChromaTree(e)
	if isLastCTUOfTile {
		e.EncodeTerminatingBit(boolBin(isLastCTUOfSlice))
	}
}

// Update writes this CTU's reconstruction back into the frame buffers,
// rotates the neighborhood mode map's right edge into the left ring for
// the next CTU, and copies the bottom row into the tile top-reference
// line.
func (c *Coder) Update(yBuf, cbBuf, crBuf []byte, yStride, cStride int) {
	copyBlock(yBuf, yStride, c.recY, params.CTUSize, params.CTUSize, params.CTUSize)
	copyBlock(cbBuf, cStride, c.recCb, params.CTUSize/2, params.CTUSize/2, params.CTUSize/2)
	copyBlock(crBuf, cStride, c.recCr, params.CTUSize/2, params.CTUSize/2, params.CTUSize/2)
	c.rotateModeMap()
	c.updateTopReference()
	c.firstCTUInTileRow = false
}

func copyBlock(dst []byte, dstStride int, src []byte, srcStride, w, h int) {
	for row := 0; row < h; row++ {
		copy(dst[row*dstStride:row*dstStride+w], src[row*srcStride:row*srcStride+w])
	}
}

func boolBin(b bool) uint8 {
	if b {
		return 1
	}
	return 0
}
