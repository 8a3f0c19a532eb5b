package mjpegcam

import (
	"context"
	"io"
	"mime"
	"mime/multipart"
	"net"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestServer(t *testing.T, buf *FrameBuffer, cfg Config) (*Server, *httptest.Server) {
	t.Helper()
	srv := NewServer(buf, cfg)
	ts := httptest.NewServer(srv)
	t.Cleanup(func() {
		srv.Shutdown(context.Background())
		ts.Close()
	})
	return srv, ts
}

// publishUntilDone keeps publishing numbered JPEG-ish frames until the test
// ends.
func publishUntilDone(t *testing.T, buf *FrameBuffer) {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	go func() {
		ticker := time.NewTicker(2 * time.Millisecond)
		defer ticker.Stop()
		for i := 0; ; i++ {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				buf.Publish([]byte("\xff\xd8frame-" + strconv.Itoa(i) + "\xff\xd9"))
			}
		}
	}()
}

func TestRootPage(t *testing.T) {
	_, ts := newTestServer(t, NewFrameBuffer(), Config{Title: "Garage"})

	res, err := http.Get(ts.URL + "/")
	require.NoError(t, err)
	defer res.Body.Close()

	assert.Equal(t, http.StatusOK, res.StatusCode)
	assert.Equal(t, "text/html", res.Header.Get("Content-Type"))

	body, err := io.ReadAll(res.Body)
	require.NoError(t, err)
	assert.Contains(t, string(body), `<img src="/stream.mjpg" width="640" height="480" />`)
	assert.Contains(t, string(body), "<title>Garage</title>")
	assert.Equal(t, strconv.Itoa(len(body)), res.Header.Get("Content-Length"))
}

func TestUnknownPath(t *testing.T) {
	_, ts := newTestServer(t, NewFrameBuffer(), Config{})

	for _, path := range []string{"/index.html", "/stream.mjpeg", "/stream.ws", "/stream.mjpg/extra"} {
		res, err := http.Get(ts.URL + path)
		require.NoError(t, err)
		res.Body.Close()
		assert.Equal(t, http.StatusNotFound, res.StatusCode, path)
	}
}

func TestMethodNotAllowed(t *testing.T) {
	_, ts := newTestServer(t, NewFrameBuffer(), Config{})

	res, err := http.Post(ts.URL+"/", "text/plain", strings.NewReader("hi"))
	require.NoError(t, err)
	res.Body.Close()
	assert.Equal(t, http.StatusMethodNotAllowed, res.StatusCode)
	assert.Equal(t, "GET, HEAD", res.Header.Get("Allow"))
}

func TestStreamWithoutSource(t *testing.T) {
	_, ts := newTestServer(t, nil, Config{})

	res, err := http.Get(ts.URL + "/stream.mjpg")
	require.NoError(t, err)
	res.Body.Close()
	assert.Equal(t, http.StatusServiceUnavailable, res.StatusCode)

	// The landing page does not depend on the source.
	res, err = http.Get(ts.URL + "/")
	require.NoError(t, err)
	res.Body.Close()
	assert.Equal(t, http.StatusOK, res.StatusCode)
}

func TestStreamAfterBufferClosed(t *testing.T) {
	buf := NewFrameBuffer()
	buf.Close()
	_, ts := newTestServer(t, buf, Config{})

	res, err := http.Get(ts.URL + "/stream.mjpg")
	require.NoError(t, err)
	res.Body.Close()
	assert.Equal(t, http.StatusServiceUnavailable, res.StatusCode)
}

func TestStream(t *testing.T) {
	buf := NewFrameBuffer()
	_, ts := newTestServer(t, buf, Config{})
	publishUntilDone(t, buf)

	res, err := http.Get(ts.URL + "/stream.mjpg")
	require.NoError(t, err)
	defer res.Body.Close()

	require.Equal(t, http.StatusOK, res.StatusCode)
	assert.Equal(t, "0", res.Header.Get("Age"))
	assert.Equal(t, "no-cache, private", res.Header.Get("Cache-Control"))
	assert.Equal(t, "no-cache", res.Header.Get("Pragma"))
	assert.Equal(t, "multipart/x-mixed-replace; boundary=FRAME", res.Header.Get("Content-Type"))

	_, params, err := mime.ParseMediaType(res.Header.Get("Content-Type"))
	require.NoError(t, err)
	mr := multipart.NewReader(res.Body, params["boundary"])

	last := -1
	for i := 0; i < 3; i++ {
		part, err := mr.NextPart()
		require.NoError(t, err)
		assert.Equal(t, "image/jpeg", part.Header.Get("Content-Type"))

		data, err := io.ReadAll(part)
		require.NoError(t, err)
		assert.Equal(t, strconv.Itoa(len(data)), part.Header.Get("Content-Length"))
		require.True(t, strings.HasPrefix(string(data), "\xff\xd8frame-"), "%q", data)

		n, err := strconv.Atoi(strings.TrimSuffix(strings.TrimPrefix(string(data), "\xff\xd8frame-"), "\xff\xd9"))
		require.NoError(t, err)
		assert.Greater(t, n, last)
		last = n
	}
}

func TestStreamClientDisconnect(t *testing.T) {
	buf := NewFrameBuffer()
	srv, ts := newTestServer(t, buf, Config{})
	publishUntilDone(t, buf)

	first, err := http.Get(ts.URL + "/stream.mjpg")
	require.NoError(t, err)
	second, err := http.Get(ts.URL + "/stream.mjpg")
	require.NoError(t, err)
	defer second.Body.Close()

	require.Eventually(t, func() bool { return srv.Sessions() == 2 }, 5*time.Second, time.Millisecond)

	first.Body.Close()
	require.Eventually(t, func() bool { return srv.Sessions() == 1 }, 5*time.Second, time.Millisecond)

	mr := multipart.NewReader(second.Body, Boundary)
	for i := 0; i < 2; i++ {
		part, err := mr.NextPart()
		require.NoError(t, err)
		_, err = io.ReadAll(part)
		require.NoError(t, err)
	}
}

func TestShutdownEndsSessions(t *testing.T) {
	buf := NewFrameBuffer()
	srv, ts := newTestServer(t, buf, Config{})

	res, err := http.Get(ts.URL + "/stream.mjpg")
	require.NoError(t, err)
	defer res.Body.Close()
	require.Eventually(t, func() bool { return srv.Sessions() == 1 }, 5*time.Second, time.Millisecond)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	require.NoError(t, srv.Shutdown(ctx))
	assert.Equal(t, 0, srv.Sessions())

	// The response ends once the session has returned.
	_, err = io.ReadAll(res.Body)
	assert.NoError(t, err)

	res, err = http.Get(ts.URL + "/stream.mjpg")
	require.NoError(t, err)
	res.Body.Close()
	assert.Equal(t, http.StatusServiceUnavailable, res.StatusCode)
}

func TestWebSocketStream(t *testing.T) {
	buf := NewFrameBuffer()
	srv, ts := newTestServer(t, buf, Config{WebSocket: true})
	publishUntilDone(t, buf)

	url := "ws" + strings.TrimPrefix(ts.URL, "http") + "/stream.ws"
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)

	for i := 0; i < 3; i++ {
		typ, data, err := conn.ReadMessage()
		require.NoError(t, err)
		assert.Equal(t, websocket.BinaryMessage, typ)
		assert.True(t, strings.HasPrefix(string(data), "\xff\xd8frame-"))
	}

	conn.Close()
	require.Eventually(t, func() bool { return srv.Sessions() == 0 }, 5*time.Second, time.Millisecond)
}

func TestWebSocketWithoutSource(t *testing.T) {
	_, ts := newTestServer(t, nil, Config{WebSocket: true})

	url := "ws" + strings.TrimPrefix(ts.URL, "http") + "/stream.ws"
	_, res, err := websocket.DefaultDialer.Dial(url, nil)
	require.Error(t, err)
	require.NotNil(t, res)
	assert.Equal(t, http.StatusServiceUnavailable, res.StatusCode)
}

func TestWriteTimeoutDropsStalledClient(t *testing.T) {
	buf := NewFrameBuffer()
	srv, ts := newTestServer(t, buf, Config{WriteTimeout: 100 * time.Millisecond})

	frame := make([]byte, 1<<20)
	frame[0], frame[1] = 0xff, 0xd8
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go func() {
		for ctx.Err() == nil {
			buf.Publish(frame)
			time.Sleep(time.Millisecond)
		}
	}()

	// Request the stream and never read the response.
	conn, err := net.Dial("tcp", ts.Listener.Addr().String())
	require.NoError(t, err)
	defer conn.Close()
	_, err = io.WriteString(conn, "GET /stream.mjpg HTTP/1.1\r\nHost: camera\r\n\r\n")
	require.NoError(t, err)

	require.Eventually(t, func() bool { return srv.Sessions() == 1 }, 5*time.Second, time.Millisecond)
	require.Eventually(t, func() bool { return srv.Sessions() == 0 }, 10*time.Second, 10*time.Millisecond)
}

// flushFailure is a ResponseWriter whose flushes fail.
type flushFailure struct {
	*httptest.ResponseRecorder
}

func (flushFailure) FlushError() error {
	return errBrokenPipe
}

func TestFlushErrorEndsSession(t *testing.T) {
	rec := &statusRecorder{ResponseWriter: flushFailure{httptest.NewRecorder()}}
	assert.ErrorIs(t, rec.FlushError(), errBrokenPipe)

	mw := newMultipartWriter(rec, 0)
	err := mw.writeFrame(&Frame{Data: []byte("\xff\xd8x\xff\xd9"), Seq: 1})
	assert.ErrorIs(t, err, errBrokenPipe)
}
