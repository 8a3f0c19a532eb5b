package mjpegcam

import (
	"context"
	"net/http"
	"time"

	"github.com/gorilla/websocket"
)

// handleWebSocket streams frames as binary websocket messages, one JPEG per
// message. Clients need not send anything; incoming messages are discarded.
func (s *Server) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	ctx, done, err := s.beginSession(r.Context())
	if err != nil {
		http.Error(w, "Camera not initialised", http.StatusServiceUnavailable)
		return
	}
	defer done()

	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		// Upgrade has already replied to the client.
		log.Warn("%s: websocket upgrade: %v", r.RemoteAddr, err)
		return
	}
	defer conn.Close()

	// A hijacked connection is no longer tied to the request context, so
	// watch the read side to notice the client leaving.
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	go func() {
		defer cancel()
		for {
			if _, _, err := conn.NextReader(); err != nil {
				return
			}
		}
	}()

	sess := newSession(s.buf, &websocketWriter{conn, s.cfg.WriteTimeout})
	s.runSession(ctx, sess, r.RemoteAddr)

	deadline := time.Now().Add(time.Second)
	conn.WriteControl(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseGoingAway, ""), deadline)
}

type websocketWriter struct {
	conn    *websocket.Conn
	timeout time.Duration
}

func (ww *websocketWriter) writeFrame(f *Frame) error {
	if ww.timeout > 0 {
		ww.conn.SetWriteDeadline(time.Now().Add(ww.timeout))
	}
	return ww.conn.WriteMessage(websocket.BinaryMessage, f.Data)
}
