package mjpegcam

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"sync/atomic"
	"time"
)

// Multipart boundary used on /stream.mjpg.
const Boundary = "FRAME"

// Content type announced for the stream.
const StreamContentType = "multipart/x-mixed-replace; boundary=" + Boundary

// SessionState is the lifecycle state of a StreamSession.
type SessionState int32

const (
	AwaitingFrame SessionState = iota
	WritingPart
	Terminated
)

func (s SessionState) String() string {
	switch s {
	case AwaitingFrame:
		return "AwaitingFrame"
	case WritingPart:
		return "WritingPart"
	case Terminated:
		return "Terminated"
	default:
		return fmt.Sprintf("SessionState(%d)", int32(s))
	}
}

// A frameWriter delivers one frame to a client.
type frameWriter interface {
	writeFrame(f *Frame) error
}

// A StreamSession serves one client connection: it waits for frames on the
// FrameBuffer and writes each one out until the client goes away or the
// buffer is closed.
type StreamSession struct {
	buf *FrameBuffer
	out frameWriter

	state   atomic.Int32
	lastSeq uint64
	sent    atomic.Uint64
}

// NewStreamSession returns a session writing multipart parts to w. When w is
// an http.ResponseWriter each part is flushed to the client as soon as it is
// written.
func NewStreamSession(buf *FrameBuffer, w io.Writer) *StreamSession {
	return newSession(buf, newMultipartWriter(w, 0))
}

func newSession(buf *FrameBuffer, out frameWriter) *StreamSession {
	return &StreamSession{buf: buf, out: out}
}

// State returns the current state. Safe to call from any goroutine.
func (s *StreamSession) State() SessionState {
	return SessionState(s.state.Load())
}

// Sent returns the number of frames written so far.
func (s *StreamSession) Sent() uint64 {
	return s.sent.Load()
}

func (s *StreamSession) setState(state SessionState) {
	s.state.Store(int32(state))
}

// Run streams frames until a write fails or waiting for a frame fails, and
// returns that error. The first frame sent is the latest
// one available, or the first one published if there is none yet. Once Run
// returns the session is Terminated and cannot be run again.
func (s *StreamSession) Run(ctx context.Context) error {
	if s.State() == Terminated {
		return errTerminated
	}
	defer s.setState(Terminated)

	for {
		s.setState(AwaitingFrame)
		f, err := s.buf.NextAfter(ctx, s.lastSeq)
		if err != nil {
			return err
		}

		s.setState(WritingPart)
		if err := s.out.writeFrame(f); err != nil {
			return err
		}
		s.lastSeq = f.Seq
		s.sent.Add(1)
	}
}

// WritePart writes one multipart body part carrying a JPEG image:
//
//	--FRAME\r\n
//	Content-Type: image/jpeg\r\n
//	Content-Length: <len>\r\n
//	\r\n
//	<data>\r\n
func WritePart(w io.Writer, data []byte) error {
	if _, err := fmt.Fprintf(w, "--%s\r\nContent-Type: image/jpeg\r\nContent-Length: %d\r\n\r\n", Boundary, len(data)); err != nil {
		return err
	}
	if _, err := w.Write(data); err != nil {
		return err
	}
	_, err := io.WriteString(w, "\r\n")
	return err
}

type multipartWriter struct {
	w io.Writer

	// Non-nil when w is an http.ResponseWriter.
	rc *http.ResponseController

	// Per-part write deadline, zero for none.
	timeout time.Duration
}

func newMultipartWriter(w io.Writer, timeout time.Duration) *multipartWriter {
	mw := &multipartWriter{w: w, timeout: timeout}
	if rw, ok := w.(http.ResponseWriter); ok {
		mw.rc = http.NewResponseController(rw)
	}
	return mw
}

func (mw *multipartWriter) writeFrame(f *Frame) error {
	if mw.rc != nil && mw.timeout > 0 {
		// Not every ResponseWriter supports deadlines; without one the write
		// simply blocks until the client reads or goes away.
		mw.rc.SetWriteDeadline(time.Now().Add(mw.timeout))
	}

	if err := WritePart(mw.w, f.Data); err != nil {
		return err
	}

	if mw.rc != nil {
		if err := mw.rc.Flush(); err != nil && !errors.Is(err, http.ErrNotSupported) {
			return err
		}
		return nil
	}
	if fl, ok := mw.w.(http.Flusher); ok {
		fl.Flush()
	}
	return nil
}
