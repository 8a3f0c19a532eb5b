package capture

import (
	"context"
	"io"
	"time"

	"github.com/pkg/errors"

	"github.com/lanikai/mjpegcam/internal/v4l2"
)

// How long a single device read may block before the run loop rechecks its
// context.
const pollInterval = 250 * time.Millisecond

// A Source wrapping a V4L2 device that encodes MJPEG in hardware, such as a
// UVC webcam or the Raspberry Pi camera through its V4L2 driver.
type v4l2Source struct {
	dev *v4l2.Device
}

func openV4L2(path string, cfg Config) (Source, error) {
	if path == "" {
		path = "/dev/video0"
	}
	dev, err := v4l2.Open(path, v4l2.Config{
		Format:  v4l2.PixelFormatMJPEG,
		Width:   cfg.Width,
		Height:  cfg.Height,
		HFlip:   cfg.HFlip,
		VFlip:   cfg.VFlip,
		Quality: cfg.Quality,
	})
	if err != nil {
		return nil, err
	}
	if dev.Width() != cfg.Width || dev.Height() != cfg.Height {
		log.Warn("%s: requested %dx%d, driver chose %dx%d",
			path, cfg.Width, cfg.Height, dev.Width(), dev.Height())
	}
	return &v4l2Source{dev: dev}, nil
}

func (src *v4l2Source) Run(ctx context.Context, w io.Writer) error {
	if err := src.dev.Start(); err != nil {
		return err
	}
	defer src.dev.Stop()

	for {
		if err := ctx.Err(); err != nil {
			return err
		}

		frame, err := src.dev.ReadFrame(pollInterval)
		if err == v4l2.ErrTimeout {
			continue
		}
		if err != nil {
			return errors.Wrap(err, "capture")
		}

		if _, err := w.Write(frame); err != nil {
			return err
		}
	}
}

func (src *v4l2Source) Close() error {
	return src.dev.Close()
}

func init() {
	Register("v4l2", openV4L2)
}
