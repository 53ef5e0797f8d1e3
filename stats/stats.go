/*
DESCRIPTION
  stats.go aggregates per-frame PSNR and byte-rate samples across an
  encode run and writes them to Statistics.txt and RD.txt, with an
  optional rate-distortion scatter plot.

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

// Package stats collects per-frame PSNR and byte-rate samples and
// reports them as the encoder's Statistics.txt and RD.txt collaborator
// output files, the "PSNR/statistics" boundary the encoding core treats
// as external.
package stats

import (
	"fmt"
	"math"
	"os"

	"github.com/pkg/errors"
	"gonum.org/v1/gonum/stat"
	"gonum.org/v1/plot"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/vg"
)

// psnrNumerator is 8-bit luma's peak signal squared (255^2), the
// numerator of the PSNR formula.
const psnrNumerator = 255 * 255

// FrameStats holds one frame's quality and size measurements.
type FrameStats struct {
	POC       uint32
	PSNRY     float64
	PSNRCb    float64
	PSNRCr    float64
	Bytes     int
}

// Collector accumulates FrameStats across an encode run.
type Collector struct {
	frames []FrameStats
}

// NewCollector returns an empty Collector.
func NewCollector() *Collector {
	return &Collector{}
}

// SquaredErrorPSNR computes PSNR in dB from a plane's per-sample
// squared errors, via gonum's stat.Mean over the error samples (the
// mean squared error, per Defines.h's PSNR_NUMERATOR convention).
func SquaredErrorPSNR(sqErr []float64) float64 {
	mse := stat.Mean(sqErr, nil)
	if mse == 0 {
		return 99.99 // conventional ceiling for a lossless match
	}
	return 10 * math.Log10(psnrNumerator/mse)
}

// Add records one frame's measurements.
func (c *Collector) Add(fs FrameStats) {
	c.frames = append(c.frames, fs)
}

// WriteStatistics writes one line per frame to path: POC, per-component
// PSNR and byte count, matching the original encoder's Statistics.txt.
func (c *Collector) WriteStatistics(path string) error {
	f, err := os.Create(path)
	if err != nil {
		return errors.Wrap(err, "stats: creating statistics file")
	}
	defer f.Close()

	for _, fr := range c.frames {
		_, err := fmt.Fprintf(f, "POC %d\tY-PSNR %.4f\tU-PSNR %.4f\tV-PSNR %.4f\tbytes %d\n",
			fr.POC, fr.PSNRY, fr.PSNRCb, fr.PSNRCr, fr.Bytes)
		if err != nil {
			return errors.Wrap(err, "stats: writing statistics line")
		}
	}
	return nil
}

// WriteRD writes one line per frame to path: that frame's bits and luma
// PSNR, the rate-distortion pair the original encoder's RD.txt
// reports for later plotting.
func (c *Collector) WriteRD(path string) error {
	f, err := os.Create(path)
	if err != nil {
		return errors.Wrap(err, "stats: creating RD file")
	}
	defer f.Close()

	for _, fr := range c.frames {
		_, err := fmt.Fprintf(f, "%d\t%.4f\n", fr.Bytes*8, fr.PSNRY)
		if err != nil {
			return errors.Wrap(err, "stats: writing RD line")
		}
	}
	return nil
}

// Summary returns the run's mean luma PSNR and total output bytes,
// via stat.Mean over the per-frame PSNR-Y samples.
func (c *Collector) Summary() (meanPSNRY float64, totalBytes int) {
	if len(c.frames) == 0 {
		return 0, 0
	}
	samples := make([]float64, len(c.frames))
	for i, fr := range c.frames {
		samples[i] = fr.PSNRY
		totalBytes += fr.Bytes
	}
	return stat.Mean(samples, nil), totalBytes
}

// PlotRateDistortion renders a bits-vs-PSNR scatter plot of every
// collected frame to path as a PNG, an optional companion to RD.txt.
func (c *Collector) PlotRateDistortion(path string) error {
	pts := make(plotter.XYs, len(c.frames))
	for i, fr := range c.frames {
		pts[i].X = float64(fr.Bytes * 8)
		pts[i].Y = fr.PSNRY
	}

	p := plot.New()
	p.Title.Text = "Rate-Distortion"
	p.X.Label.Text = "bits"
	p.Y.Label.Text = "Y-PSNR (dB)"

	scatter, err := plotter.NewScatter(pts)
	if err != nil {
		return errors.Wrap(err, "stats: building scatter plot")
	}
	p.Add(scatter)

	if err := p.Save(6*vg.Inch, 4*vg.Inch, path); err != nil {
		return errors.Wrap(err, "stats: saving rate-distortion plot")
	}
	return nil
}
