/*
DESCRIPTION
  config.go defines Config, the settings bag threaded from cmd/ces265
  down through gop, slicedriver and tile: encode parameters, output
  paths, and the shared Logger.

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

// Package config holds the settings shared by every layer of an
// encode run: input/output paths, coding parameters, parallelism
// limits, and the Logger every other package logs through.
package config

import (
	"github.com/ausocean/utils/logging"
	"github.com/pkg/errors"
)

// Default values applied by Validate when the corresponding field is
// left at its zero value.
const (
	DefaultQP        = 32
	DefaultGOPSize   = 1
	DefaultFrameRate = 25
)

// Config mirrors the shape of the teacher's revid/config.Config: plain
// exported fields, defaulted and validated once at startup, holding the
// Logger alongside every CLI-derived setting.
type Config struct {
	// Input/output.
	InputPath  string
	Width      int
	Height     int
	NumFrames  int
	FrameRate  int
	OutputPath string

	ReconPath string // written only when WriteRecon is true
	WriteRecon bool

	StatsPath    string
	RDPath       string
	WriteStats   bool

	// Coding parameters.
	QP      int32
	GOPSize int

	// Parallelism.
	GOPWorkers   int
	SliceWorkers int
	TileCount    int
	TileCols     int
	TileRows     int
	TileWorkers  int

	Verbose bool

	Logger logging.Logger
}

// Validate fills in defaults and checks the invariants this encoder's
// non-goals and REDESIGN FLAGS require: dimensions a multiple of the
// CTU size, a tile grid whose product matches, GOP/slice parallelism
// pinned to 1 (Open Question: reject rather than silently clamp, §9).
func (c *Config) Validate(ctuSize int) error {
	if c.InputPath == "" {
		return errors.New("config: input path is required")
	}
	if c.Width <= 0 || c.Height <= 0 {
		return errors.New("config: width and height must be positive")
	}
	if c.Width%ctuSize != 0 || c.Height%ctuSize != 0 {
		return errors.Errorf("config: frame %dx%d is not a multiple of the %d CTU size", c.Width, c.Height, ctuSize)
	}
	if c.NumFrames <= 0 {
		return errors.New("config: number of frames must be positive")
	}
	if c.QP <= 0 {
		c.QP = DefaultQP
	}
	if c.QP < 1 || c.QP > 51 {
		return errors.Errorf("config: QP %d out of range [1,51]", c.QP)
	}
	if c.FrameRate <= 0 {
		c.FrameRate = DefaultFrameRate
	}
	if c.GOPSize == 0 {
		c.GOPSize = DefaultGOPSize
	}
	if c.GOPSize != 1 {
		return errors.New("config: GOP sizes other than 1 are not yet supported")
	}
	if c.GOPWorkers > 1 {
		return errors.New("config: GOP-level parallelism is not yet supported")
	}
	if c.SliceWorkers > 1 {
		return errors.New("config: slice-level parallelism is not yet supported")
	}
	if c.TileCols*c.TileRows == 0 {
		c.TileCols, c.TileRows = 1, 1
		c.TileCount = 1
	}
	if c.TileCount != c.TileCols*c.TileRows {
		return errors.Errorf("config: tile count %d does not match %dx%d grid", c.TileCount, c.TileCols, c.TileRows)
	}
	if c.TileWorkers <= 0 {
		c.TileWorkers = 1
	}
	if c.OutputPath == "" {
		c.OutputPath = "Video.h265"
	}
	return nil
}
