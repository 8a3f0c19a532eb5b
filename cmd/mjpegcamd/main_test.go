package main

import (
	"crypto/tls"
	"net"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lanikai/mjpegcam"
	"github.com/lanikai/mjpegcam/internal/capture"
	"github.com/lanikai/mjpegcam/internal/certs"
)

func TestListenAddr(t *testing.T) {
	assert.Equal(t, "0.0.0.0:8443", listenAddr("0.0.0.0", 8443))
	assert.Equal(t, "[::1]:9000", listenAddr("::1", 9000))
	assert.Equal(t, ":8443", listenAddr("", 8443))
}

func TestCertHosts(t *testing.T) {
	assert.Empty(t, certHosts("0.0.0.0"))
	assert.Empty(t, certHosts("::"))
	assert.Empty(t, certHosts(""))
	assert.Equal(t, []string{"camera.lan"}, certHosts("camera.lan"))
	assert.Equal(t, []string{"192.168.1.20"}, certHosts("192.168.1.20"))
}

func testServer(t *testing.T, addr string) *mjpegcam.Server {
	t.Helper()
	cert, err := certs.Generate(time.Hour)
	require.NoError(t, err)
	return mjpegcam.NewServer(mjpegcam.NewFrameBuffer(), mjpegcam.Config{
		Addr:         addr,
		Certificates: []tls.Certificate{cert.TLS},
	})
}

func TestStartOpensSourceBeforeListening(t *testing.T) {
	// Hold the port so that listening would fail too. The source error must
	// be the one reported.
	busy, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	defer busy.Close()

	_, _, err = start(testServer(t, busy.Addr().String()), "nope:", capture.Config{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "not registered")
}

func TestStartListenFailure(t *testing.T) {
	busy, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	defer busy.Close()

	_, _, err = start(testServer(t, busy.Addr().String()), "pattern:", capture.Config{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "listen on")
}

func TestStart(t *testing.T) {
	src, ln, err := start(testServer(t, "127.0.0.1:0"), "pattern:", capture.Config{})
	require.NoError(t, err)
	assert.NoError(t, ln.Close())
	assert.NoError(t, src.Close())
}
