package mjpegcam

import (
	"context"
	"crypto/tls"
	"errors"
	"net"
	"net/http"
	"os"
	"time"

	perrors "github.com/pkg/errors"
	"golang.org/x/net/netutil"

	"github.com/lanikai/mjpegcam/internal/logging"
)

// Listen loads the TLS material and opens the listening socket. All startup
// failures (missing certificate or key, address in use) are reported here,
// before any connection is accepted.
func (s *Server) Listen() (net.Listener, error) {
	tlsConfig, err := s.cfg.tlsConfig()
	if err != nil {
		return nil, err
	}

	ln, err := net.Listen("tcp", s.cfg.Addr)
	if err != nil {
		return nil, perrors.Wrapf(err, "listen on %s", s.cfg.Addr)
	}
	if s.cfg.MaxClients > 0 {
		ln = netutil.LimitListener(ln, s.cfg.MaxClients)
	}
	return tls.NewListener(ln, tlsConfig), nil
}

// Serve accepts connections on ln until ctx ends, then shuts down
// gracefully: running sessions are cancelled and the server waits up to
// ShutdownTimeout for connections to close.
func (s *Server) Serve(ctx context.Context, ln net.Listener) error {
	hs := &http.Server{
		Handler:           s,
		ReadHeaderTimeout: 10 * time.Second,
		ErrorLog:          log.StdLogger(logging.Debug),
	}
	// Streaming connections never go idle, so http.Server.Shutdown would
	// wait on them forever unless the sessions are stopped first.
	hs.RegisterOnShutdown(s.closeSessions)

	serveErr := make(chan error, 1)
	go func() {
		serveErr <- hs.Serve(ln)
	}()

	select {
	case err := <-serveErr:
		s.closeSessions()
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), s.cfg.ShutdownTimeout)
	defer cancel()

	err := hs.Shutdown(shutdownCtx)
	if serr := s.Shutdown(shutdownCtx); err == nil {
		err = serr
	}
	if err != nil {
		hs.Close()
		return perrors.Wrap(err, "graceful shutdown")
	}
	return nil
}

func (cfg *Config) tlsConfig() (*tls.Config, error) {
	certs := cfg.Certificates
	if len(certs) == 0 {
		if cfg.CertFile == "" || cfg.KeyFile == "" {
			return nil, errors.New("both TLS certificate and private key must be provided")
		}
		if _, err := os.Stat(cfg.CertFile); err != nil {
			return nil, perrors.Wrap(err, "TLS certificate not found")
		}
		if _, err := os.Stat(cfg.KeyFile); err != nil {
			return nil, perrors.Wrap(err, "TLS private key not found")
		}
		cert, err := tls.LoadX509KeyPair(cfg.CertFile, cfg.KeyFile)
		if err != nil {
			return nil, perrors.Wrap(err, "load TLS key pair")
		}
		certs = []tls.Certificate{cert}
	}

	return &tls.Config{
		Certificates: certs,
		MinVersion:   tls.VersionTLS12,
		NextProtos:   []string{"http/1.1"},
	}, nil
}
