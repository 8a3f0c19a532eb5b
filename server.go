package mjpegcam

import (
	"bufio"
	"context"
	"errors"
	"net"
	"net/http"
	"strconv"
	"sync"
	"sync/atomic"

	"github.com/gorilla/websocket"
)

// Server is the HTTP side of the camera: a landing page, the MJPEG stream and
// optionally a websocket stream. It implements http.Handler.
//
// A new stream starts with the frame already in the buffer, so a client that
// reconnects may first see a frame up to one capture interval old.
type Server struct {
	cfg  Config
	buf  *FrameBuffer
	mux  *http.ServeMux
	page []byte

	upgrader websocket.Upgrader

	// Cancelled on shutdown to terminate every running session.
	ctx    context.Context
	cancel context.CancelFunc

	mu       sync.Mutex
	closing  bool
	sessions sync.WaitGroup
	active   atomic.Int64
}

// NewServer returns a server streaming frames from buf. A nil buf means no
// frame source is active, and stream requests are answered with 503.
func NewServer(buf *FrameBuffer, cfg Config) *Server {
	cfg.setDefaults()

	ctx, cancel := context.WithCancel(context.Background())
	s := &Server{
		cfg:    cfg,
		buf:    buf,
		mux:    http.NewServeMux(),
		page:   renderPage(cfg),
		ctx:    ctx,
		cancel: cancel,
	}

	s.mux.HandleFunc(rootPath, s.handleRoot)
	s.mux.HandleFunc(streamPath, s.handleStream)
	if cfg.WebSocket {
		s.mux.HandleFunc(websocketPath, s.handleWebSocket)
	}
	return s
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	rec := &statusRecorder{ResponseWriter: w}
	s.mux.ServeHTTP(rec, r)
	log.Info("%s - %s %s %d", r.RemoteAddr, r.Method, r.URL.RequestURI(), rec.status())
}

// Sessions returns the number of clients currently streaming.
func (s *Server) Sessions() int {
	return int(s.active.Load())
}

func (s *Server) handleRoot(w http.ResponseWriter, r *http.Request) {
	// The "/" pattern matches every path not registered elsewhere.
	if r.URL.Path != rootPath {
		http.NotFound(w, r)
		return
	}
	if !allowGet(w, r) {
		return
	}

	w.Header().Set("Content-Type", "text/html")
	w.Header().Set("Content-Length", strconv.Itoa(len(s.page)))
	w.WriteHeader(http.StatusOK)
	if r.Method != http.MethodHead {
		w.Write(s.page)
	}
}

func (s *Server) handleStream(w http.ResponseWriter, r *http.Request) {
	if !allowGet(w, r) {
		return
	}

	ctx, done, err := s.beginSession(r.Context())
	if err != nil {
		http.Error(w, "Camera not initialised", http.StatusServiceUnavailable)
		return
	}
	defer done()

	h := w.Header()
	h.Set("Age", "0")
	h.Set("Cache-Control", "no-cache, private")
	h.Set("Pragma", "no-cache")
	h.Set("Content-Type", StreamContentType)
	w.WriteHeader(http.StatusOK)
	if r.Method == http.MethodHead {
		return
	}
	http.NewResponseController(w).Flush()

	sess := newSession(s.buf, newMultipartWriter(w, s.cfg.WriteTimeout))
	s.runSession(ctx, sess, r.RemoteAddr)
}

// beginSession registers a new session. It fails when there is no frame
// source or the server is shutting down. The returned context ends when the
// client goes away or the server shuts down; done must be called when the
// session is over.
func (s *Server) beginSession(parent context.Context) (context.Context, func(), error) {
	if s.buf == nil || s.buf.Closed() {
		return nil, nil, ErrNoSource
	}

	s.mu.Lock()
	if s.closing {
		s.mu.Unlock()
		return nil, nil, ErrClosed
	}
	s.sessions.Add(1)
	s.mu.Unlock()

	ctx, cancel := context.WithCancel(parent)
	stop := context.AfterFunc(s.ctx, cancel)
	s.active.Add(1)

	return ctx, func() {
		stop()
		cancel()
		s.active.Add(-1)
		s.sessions.Done()
	}, nil
}

func (s *Server) runSession(ctx context.Context, sess *StreamSession, remote string) {
	log.Info("%s: stream started (%d active)", remote, s.Sessions())

	err := sess.Run(ctx)
	switch {
	case errors.Is(err, context.Canceled) && s.ctx.Err() != nil:
		log.Debug("%s: stream stopped for shutdown after %d frames", remote, sess.Sent())
	case errors.Is(err, context.Canceled), errors.Is(err, ErrClosed):
		log.Info("%s: stream ended after %d frames", remote, sess.Sent())
	default:
		log.Info("%s: client disconnected after %d frames: %v", remote, sess.Sent(), err)
	}
}

// Shutdown terminates all running sessions and waits for them to release
// their connections, or for ctx to end. New stream requests get 503.
func (s *Server) Shutdown(ctx context.Context) error {
	s.closeSessions()

	finished := make(chan struct{})
	go func() {
		s.sessions.Wait()
		close(finished)
	}()

	select {
	case <-finished:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (s *Server) closeSessions() {
	s.mu.Lock()
	s.closing = true
	s.mu.Unlock()
	s.cancel()
}

func allowGet(w http.ResponseWriter, r *http.Request) bool {
	if r.Method == http.MethodGet || r.Method == http.MethodHead {
		return true
	}
	w.Header().Set("Allow", "GET, HEAD")
	http.Error(w, http.StatusText(http.StatusMethodNotAllowed), http.StatusMethodNotAllowed)
	return false
}

// statusRecorder remembers the response status for the request log.
type statusRecorder struct {
	http.ResponseWriter
	code int
}

func (rec *statusRecorder) WriteHeader(code int) {
	if rec.code == 0 {
		rec.code = code
	}
	rec.ResponseWriter.WriteHeader(code)
}

func (rec *statusRecorder) Write(p []byte) (int, error) {
	if rec.code == 0 {
		rec.code = http.StatusOK
	}
	return rec.ResponseWriter.Write(p)
}

func (rec *statusRecorder) status() int {
	if rec.code == 0 {
		return http.StatusOK
	}
	return rec.code
}

// Unwrap lets http.ResponseController reach flush and deadline support.
func (rec *statusRecorder) Unwrap() http.ResponseWriter {
	return rec.ResponseWriter
}

// FlushError is what http.ResponseController.Flush calls, so flush failures
// reach the session.
func (rec *statusRecorder) FlushError() error {
	return http.NewResponseController(rec.ResponseWriter).Flush()
}

// Flush and Hijack are needed by callers that type-assert instead of using
// http.ResponseController, such as the websocket upgrader.
func (rec *statusRecorder) Flush() {
	rec.FlushError()
}

func (rec *statusRecorder) Hijack() (net.Conn, *bufio.ReadWriter, error) {
	if rec.code == 0 {
		rec.code = http.StatusSwitchingProtocols
	}
	return http.NewResponseController(rec.ResponseWriter).Hijack()
}
