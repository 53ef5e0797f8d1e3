/*
DESCRIPTION
  gop.go implements the sequential per-frame driver: reads raw YUV
  frames, hands each to a SliceDriver, stitches VPS/SPS/PPS and every
  frame's slice NAL into the output Annex-B stream, and accumulates
  PSNR/byte-rate statistics. GOP size is pinned to 1 (§9): each frame is
  coded independently as its own IDR picture.

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

// Package gop implements the GOP driver: the sequential frame-by-frame
// loop that owns the output file, the optional reconstructed-YUV
// mirror, and the run's accumulated statistics.
package gop

import (
	"context"
	"os"

	"github.com/pkg/errors"

	"github.com/mukk10/ces265/config"
	"github.com/mukk10/ces265/headers"
	"github.com/mukk10/ces265/params"
	"github.com/mukk10/ces265/slicedriver"
	"github.com/mukk10/ces265/stats"
	"github.com/mukk10/ces265/yuv"
)

// Driver sequences a whole run's frames. GOP size is pinned to 1, so
// every frame is its own IDR picture and poc only ever increments by
// one (Open Question: the restriction is kept, not lifted, §9).
type Driver struct {
	cfg *config.Config
	ip  *params.ImageParams

	reader *yuv.Reader
	recon  *yuv.Writer
	out    *os.File

	sd   *slicedriver.Driver
	coll *stats.Collector
}

// New builds a Driver from a validated Config, deriving the frame's
// ImageParams and opening the input (and, if requested, reconstructed-
// YUV output) files.
func New(cfg *config.Config) (*Driver, error) {
	ip, err := params.New(cfg.Width, cfg.Height, cfg.QP, cfg.TileCols, cfg.TileRows)
	if err != nil {
		return nil, errors.Wrap(err, "gop: building image params")
	}

	reader, err := yuv.NewReader(cfg.InputPath, cfg.Width, cfg.Height)
	if err != nil {
		return nil, errors.Wrap(err, "gop: opening input")
	}

	var recon *yuv.Writer
	if cfg.WriteRecon {
		recon, err = yuv.NewWriter(cfg.ReconPath)
		if err != nil {
			reader.Close()
			return nil, errors.Wrap(err, "gop: opening reconstructed-YUV output")
		}
	}

	out, err := os.Create(cfg.OutputPath)
	if err != nil {
		reader.Close()
		if recon != nil {
			recon.Close()
		}
		return nil, errors.Wrap(err, "gop: creating output bitstream")
	}

	return &Driver{
		cfg:    cfg,
		ip:     ip,
		reader: reader,
		recon:  recon,
		out:    out,
		sd:     slicedriver.New(ip, cfg.TileWorkers),
		coll:   stats.NewCollector(),
	}, nil
}

// Close releases every file the Driver opened.
func (d *Driver) Close() error {
	d.reader.Close()
	if d.recon != nil {
		d.recon.Close()
	}
	return d.out.Close()
}

// Run encodes cfg.NumFrames frames, writing the parameter sets once up
// front and one IDR slice NAL per frame, checking ctx between frames so
// a long run can be cancelled cleanly (no partial frame is ever
// written).
func (d *Driver) Run(ctx context.Context) error {
	d.cfg.Logger.Info("writing parameter sets")
	if _, err := d.out.Write(headers.GenVPS()); err != nil {
		return errors.Wrap(err, "gop: writing VPS")
	}
	if _, err := d.out.Write(headers.GenSPS(d.ip)); err != nil {
		return errors.Wrap(err, "gop: writing SPS")
	}
	if _, err := d.out.Write(headers.GenPPS(d.ip)); err != nil {
		return errors.Wrap(err, "gop: writing PPS")
	}

	for poc := 0; poc < d.cfg.NumFrames; poc++ {
		select {
		case <-ctx.Done():
			d.cfg.Logger.Warning("run cancelled", "frames encoded", poc)
			return ctx.Err()
		default:
		}

		if err := d.runFrame(uint32(poc)); err != nil {
			return errors.Wrapf(err, "gop: encoding frame %d", poc)
		}
	}

	if d.cfg.WriteStats {
		if err := d.coll.WriteStatistics(d.cfg.StatsPath); err != nil {
			return errors.Wrap(err, "gop: writing statistics")
		}
		if err := d.coll.WriteRD(d.cfg.RDPath); err != nil {
			return errors.Wrap(err, "gop: writing RD data")
		}
	}

	meanPSNR, total := d.coll.Summary()
	d.cfg.Logger.Info("run complete", "frames", d.cfg.NumFrames, "mean Y-PSNR", meanPSNR, "total bytes", total)
	return nil
}

// runFrame reads, encodes and accounts for a single frame, always as
// its own IDR picture.
func (d *Driver) runFrame(poc uint32) error {
	frame, err := d.reader.ReadFrame()
	if err != nil {
		return errors.Wrap(err, "reading frame")
	}

	orig := cloneFrame(frame)

	slice := d.sd.Encode(frame.Y, frame.Cb, frame.Cr, frame.Width, frame.ChromaWidth, true, poc)
	if _, err := d.out.Write(slice); err != nil {
		return errors.Wrap(err, "writing slice NAL")
	}

	// frame.Y/Cb/Cr now hold the lossy reconstruction, written back
	// in place by every tile's Coder.Update during Encode above.
	fs := stats.FrameStats{
		POC:    poc,
		PSNRY:  stats.SquaredErrorPSNR(squaredError(orig.Y, frame.Y)),
		PSNRCb: stats.SquaredErrorPSNR(squaredError(orig.Cb, frame.Cb)),
		PSNRCr: stats.SquaredErrorPSNR(squaredError(orig.Cr, frame.Cr)),
		Bytes:  len(slice),
	}
	d.coll.Add(fs)
	d.cfg.Logger.Debug("frame encoded", "poc", poc, "bytes", fs.Bytes, "Y-PSNR", fs.PSNRY)

	if d.recon != nil {
		if err := d.recon.WriteFrame(frame); err != nil {
			return errors.Wrap(err, "writing reconstructed frame")
		}
	}
	return nil
}

func cloneFrame(f *yuv.Frame) *yuv.Frame {
	return &yuv.Frame{
		Y:  append([]byte(nil), f.Y...),
		Cb: append([]byte(nil), f.Cb...),
		Cr: append([]byte(nil), f.Cr...),
	}
}

func squaredError(a, b []byte) []float64 {
	out := make([]float64, len(a))
	for i := range a {
		d := float64(a[i]) - float64(b[i])
		out[i] = d * d
	}
	return out
}
