package mjpegcam

import "time"

// A Frame is one complete JPEG image. Frames are immutable once published;
// the FrameBuffer replaces them, it never modifies them.
type Frame struct {
	// Encoded JPEG bytes, starting with the SOI marker.
	Data []byte

	// Sequence number assigned by the FrameBuffer. The first published frame
	// is 1; each publish increments by one.
	Seq uint64

	// Time of publication.
	Time time.Time
}

// Len returns the payload length in bytes.
func (f *Frame) Len() int {
	return len(f.Data)
}
