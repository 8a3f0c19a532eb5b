// Package capture produces JPEG frames from cameras, pipes, files and a
// synthetic test pattern. Every source writes exactly one complete JPEG image
// per Write call to the io.Writer it is given.
package capture

import (
	"context"
	"io"

	"github.com/lanikai/mjpegcam/internal/logging"
)

var log = logging.DefaultLogger.WithTag("capture")

// A Source delivers frames until its context ends or it runs out.
type Source interface {
	// Run writes frames to w until ctx ends (returning ctx.Err()), the input
	// is exhausted (returning nil) or capture fails.
	Run(ctx context.Context, w io.Writer) error

	// Close releases the underlying device or file.
	Close() error
}

// Config holds settings shared by all source types. Each source uses the
// fields that make sense for it.
type Config struct {
	Width   int
	Height  int
	Quality int // JPEG quality 1-100
	HFlip   bool
	VFlip   bool

	// Frames per second for sources that pace themselves (pattern, file).
	FPS int

	// Restart a file source from the beginning when it ends.
	Loop bool
}

func (cfg *Config) setDefaults() {
	if cfg.Width <= 0 {
		cfg.Width = 640
	}
	if cfg.Height <= 0 {
		cfg.Height = 480
	}
	if cfg.Quality <= 0 || cfg.Quality > 100 {
		cfg.Quality = 80
	}
	if cfg.FPS <= 0 {
		cfg.FPS = 30
	}
}
