package mjpegcam

import (
	"bytes"
	"sync/atomic"

	"github.com/lanikai/mjpegcam/internal/logging"
)

var log = logging.DefaultLogger.WithTag("mjpegcam")

// JPEG start-of-image marker.
var soiMarker = []byte{0xFF, 0xD8}

// A Publisher accepts complete frames. *FrameBuffer is a Publisher.
type Publisher interface {
	Publish(data []byte) *Frame
}

// Ingest is the write side of the stream: an io.Writer that the capture
// pipeline writes one encoded frame into per Write call.
//
// Chunks beginning with the JPEG SOI marker are published as frames. All
// other chunks are consumed and discarded. Write never fails, so an upstream
// encoder is never stalled or made to retry.
type Ingest struct {
	pub Publisher

	accepted atomic.Uint64
	dropped  atomic.Uint64
}

// IngestStats counts chunks seen by an Ingest.
type IngestStats struct {
	Accepted uint64
	Dropped  uint64
}

func NewIngest(pub Publisher) *Ingest {
	return &Ingest{pub: pub}
}

// Write publishes a copy of p if it starts with the SOI marker. It always
// reports the full length as consumed.
func (in *Ingest) Write(p []byte) (int, error) {
	if !bytes.HasPrefix(p, soiMarker) {
		n := in.dropped.Add(1)
		log.Trace(5, "dropped %d byte chunk without SOI marker (%d dropped)", len(p), n)
		return len(p), nil
	}

	// io.Writer implementations must not retain p.
	frame := make([]byte, len(p))
	copy(frame, p)

	in.pub.Publish(frame)
	in.accepted.Add(1)
	return len(p), nil
}

func (in *Ingest) Stats() IngestStats {
	return IngestStats{
		Accepted: in.accepted.Load(),
		Dropped:  in.dropped.Load(),
	}
}
