/*
DESCRIPTION
  yuv.go implements the planar 4:2:0 frame reader/writer boundary
  package: sequential per-frame reads of an 8-bit Y/Cb/Cr file and
  writes of the optional reconstructed-YUV output.

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

// Package yuv reads and writes planar 4:2:0 8-bit frames (Y plane,
// then Cb, then Cr, per frame), the "raw YUV file I/O" collaborator
// the encoding core treats as an external boundary.
package yuv

import (
	"io"
	"os"

	"github.com/pkg/errors"
)

// Frame holds one decoded 4:2:0 frame's three planes, each tightly
// packed row-major at its own stride.
type Frame struct {
	Y, Cb, Cr             []byte
	Width, Height         int
	ChromaWidth, ChromaHeight int
}

// Reader sequentially reads frames from a planar 4:2:0 YUV file.
type Reader struct {
	f                         *os.File
	width, height             int
	chromaWidth, chromaHeight int
	frameSize                 int
}

// NewReader opens path for sequential frame reads at the given luma
// dimensions (width and height must be even, matching 4:2:0 subsampling).
func NewReader(path string, width, height int) (*Reader, error) {
	if width <= 0 || height <= 0 || width%2 != 0 || height%2 != 0 {
		return nil, errors.Errorf("yuv: invalid frame dimensions %dx%d", width, height)
	}
	f, err := os.Open(path)
	if err != nil {
		return nil, errors.Wrap(err, "yuv: opening input")
	}
	cw, ch := width/2, height/2
	return &Reader{
		f: f, width: width, height: height,
		chromaWidth: cw, chromaHeight: ch,
		frameSize: width*height + 2*cw*ch,
	}, nil
}

// ReadFrame reads the next frame, returning io.EOF once the file is
// exhausted exactly on a frame boundary.
func (r *Reader) ReadFrame() (*Frame, error) {
	buf := make([]byte, r.frameSize)
	if _, err := io.ReadFull(r.f, buf); err != nil {
		if err == io.ErrUnexpectedEOF {
			return nil, errors.Wrap(io.EOF, "yuv: short read, truncated frame")
		}
		return nil, err
	}
	ySize := r.width * r.height
	cSize := r.chromaWidth * r.chromaHeight
	return &Frame{
		Y:  buf[:ySize],
		Cb: buf[ySize : ySize+cSize],
		Cr: buf[ySize+cSize : ySize+2*cSize],
		Width: r.width, Height: r.height,
		ChromaWidth: r.chromaWidth, ChromaHeight: r.chromaHeight,
	}, nil
}

// Close releases the underlying file handle.
func (r *Reader) Close() error {
	return r.f.Close()
}

// Writer appends frames, in the same planar layout, to an output file.
type Writer struct {
	f *os.File
}

// NewWriter creates (truncating) path for sequential frame writes.
func NewWriter(path string) (*Writer, error) {
	f, err := os.Create(path)
	if err != nil {
		return nil, errors.Wrap(err, "yuv: creating output")
	}
	return &Writer{f: f}, nil
}

// WriteFrame appends one frame's three planes in Y, Cb, Cr order.
func (w *Writer) WriteFrame(fr *Frame) error {
	for _, plane := range [][]byte{fr.Y, fr.Cb, fr.Cr} {
		if _, err := w.f.Write(plane); err != nil {
			return errors.Wrap(err, "yuv: writing frame")
		}
	}
	return nil
}

// Close releases the underlying file handle.
func (w *Writer) Close() error {
	return w.f.Close()
}
