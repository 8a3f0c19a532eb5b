//////////////////////////////////////////////////////////////////////////////
//
// Errors
//
// Copyright 2019 Lanikai Labs LLC. All rights reserved.
//
//////////////////////////////////////////////////////////////////////////////

package mjpegcam

import "errors"

var (
	// Returned by FrameBuffer waits once the buffer is closed.
	ErrClosed = errors.New("frame buffer closed")

	// Returned when a stream is requested before a frame source exists.
	ErrNoSource = errors.New("no frame source")
)

var errTerminated = errors.New("session already terminated")
