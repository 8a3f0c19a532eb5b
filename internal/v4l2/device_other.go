//go:build !linux

package v4l2

import (
	"time"

	errors "golang.org/x/xerrors"
)

// ErrTimeout is returned by ReadFrame when no frame arrived in time.
var ErrTimeout = errors.New("v4l2: timed out waiting for frame")

var errUnsupported = errors.New("v4l2: Video4Linux is only available on Linux")

// Device is unavailable off Linux; Open always fails.
type Device struct{}

func Open(path string, cfg Config) (*Device, error) {
	return nil, errors.Errorf("open %s: %w", path, errUnsupported)
}

func (dev *Device) Width() int                              { return 0 }
func (dev *Device) Height() int                             { return 0 }
func (dev *Device) Start() error                            { return errUnsupported }
func (dev *Device) Stop() error                             { return nil }
func (dev *Device) Close() error                            { return nil }
func (dev *Device) ReadFrame(time.Duration) ([]byte, error) { return nil, errUnsupported }
