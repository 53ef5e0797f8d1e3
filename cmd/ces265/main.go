/*
DESCRIPTION
  ces265 is the command-line entry point for an intra-only HEVC encoder:
  flag parsing, logging setup, and wiring config/yuv/gop/stats.

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

// Package main is the ces265 command-line tool.
package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"

	"gopkg.in/natefinch/lumberjack.v2"

	"github.com/ausocean/utils/logging"
	"github.com/pkg/errors"

	"github.com/mukk10/ces265/config"
	"github.com/mukk10/ces265/gop"
	"github.com/mukk10/ces265/params"
)

// Current software version.
const version = "v0.1.0"

// Logging configuration, matching the teacher's cmd/rv rotating-log
// convention.
const (
	logMaxSize   = 100 // MB
	logMaxBackup = 5
	logMaxAge    = 28 // days
)

func main() {
	showVersion := flag.Bool("version", false, "show version")

	input := flag.String("i", "", "input planar YUV file")
	width := flag.Int("w", 0, "frame width")
	height := flag.Int("h", 0, "frame height")
	numFrames := flag.Int("Nframes", 0, "frames to encode")
	fps := flag.Int("fps", 25, "frame rate (metadata only)")
	qp := flag.Int("QP", int(config.DefaultQP), "quantization parameter, 1..51")
	gopSize := flag.Int("gop", int(config.DefaultGOPSize), "GOP size (currently only 1 supported)")
	gopWorkers := flag.Int("Ngopth", 1, "max GOP-level workers")
	sliceWorkers := flag.Int("Nsliceth", 1, "max slice-level workers")
	tileGrid := flag.String("Ntiles", "1,1,1", "tile grid as t,cols,rows (t must = cols*rows)")
	tileWorkers := flag.Int("Ntileth", 1, "tile worker count")
	verbose := flag.Bool("ver", false, "verbose trace")
	writeRecon := flag.Bool("rec", false, "write reconstructed YUV")
	writeStats := flag.Bool("stat", false, "write statistics file")
	logPath := flag.String("log", "", "rotating log file path (defaults to stderr only)")
	flag.Parse()

	if *showVersion {
		fmt.Println(version)
		return
	}

	tileCount, tileCols, tileRows, err := parseTileGrid(*tileGrid)
	if err != nil {
		fmt.Fprintln(os.Stderr, errors.Wrap(err, "parsing -Ntiles"))
		os.Exit(1)
	}

	var out io.Writer = os.Stderr
	if *logPath != "" {
		fileLog := &lumberjack.Logger{
			Filename:   *logPath,
			MaxSize:    logMaxSize,
			MaxBackups: logMaxBackup,
			MaxAge:     logMaxAge,
		}
		out = io.MultiWriter(fileLog, os.Stderr)
	}
	verbosity := logging.Info
	if *verbose {
		verbosity = logging.Debug
	}
	log := logging.New(verbosity, out, true)

	cfg := &config.Config{
		InputPath:    *input,
		Width:        *width,
		Height:       *height,
		NumFrames:    *numFrames,
		FrameRate:    *fps,
		OutputPath:   "Video.h265",
		ReconPath:    reconPath(*input),
		WriteRecon:   *writeRecon,
		StatsPath:    "Statistics.txt",
		RDPath:       "RD.txt",
		WriteStats:   *writeStats,
		QP:           int32(*qp),
		GOPSize:      *gopSize,
		GOPWorkers:   *gopWorkers,
		SliceWorkers: *sliceWorkers,
		TileCount:    tileCount,
		TileCols:     tileCols,
		TileRows:     tileRows,
		TileWorkers:  *tileWorkers,
		Verbose:      *verbose,
		Logger:       log,
	}
	if err := cfg.Validate(params.CTUSize); err != nil {
		fmt.Fprintln(os.Stderr, errors.Wrap(err, "invalid configuration"))
		os.Exit(1)
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt)
	defer cancel()

	if err := run(ctx, cfg); err != nil {
		log.Error("run failed", "error", err.Error())
		os.Exit(1)
	}
}

// run drives a complete encode: flag-driven config into a GOP loop.
func run(ctx context.Context, cfg *config.Config) error {
	driver, err := gop.New(cfg)
	if err != nil {
		return errors.Wrap(err, "building gop driver")
	}
	defer driver.Close()

	return driver.Run(ctx)
}

func parseTileGrid(s string) (count, cols, rows int, err error) {
	parts := strings.Split(s, ",")
	if len(parts) != 3 {
		return 0, 0, 0, errors.Errorf("expected t,cols,rows, got %q", s)
	}
	if _, err := fmt.Sscanf(parts[0], "%d", &count); err != nil {
		return 0, 0, 0, errors.Wrap(err, "parsing tile count")
	}
	if _, err := fmt.Sscanf(parts[1], "%d", &cols); err != nil {
		return 0, 0, 0, errors.Wrap(err, "parsing tile columns")
	}
	if _, err := fmt.Sscanf(parts[2], "%d", &rows); err != nil {
		return 0, 0, 0, errors.Wrap(err, "parsing tile rows")
	}
	if count != cols*rows {
		return 0, 0, 0, errors.Errorf("tile count %d does not match %dx%d grid", count, cols, rows)
	}
	return count, cols, rows, nil
}

func reconPath(input string) string {
	return strings.TrimSuffix(input, ".yuv") + "_HEVCRecon.yuv"
}
