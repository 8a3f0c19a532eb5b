package certs

import (
	"crypto/tls"
	"crypto/x509"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGenerate(t *testing.T) {
	c, err := Generate(24*time.Hour, "camera.example", "192.0.2.7")
	require.NoError(t, err)

	leaf, err := x509.ParseCertificate(c.TLS.Certificate[0])
	require.NoError(t, err)

	assert.Contains(t, leaf.DNSNames, "localhost")
	assert.Contains(t, leaf.DNSNames, "camera.example")
	assert.NoError(t, leaf.VerifyHostname("192.0.2.7"))
	assert.NoError(t, leaf.VerifyHostname("127.0.0.1"))
	assert.WithinDuration(t, time.Now().Add(24*time.Hour), c.NotAfter, 2*time.Minute)

	fp := c.Fingerprint()
	assert.Len(t, strings.Split(fp, ":"), 32)
}

func TestWriteFilesRoundTrip(t *testing.T) {
	c, err := Generate(time.Hour)
	require.NoError(t, err)

	dir := t.TempDir()
	certFile := filepath.Join(dir, "cert.pem")
	keyFile := filepath.Join(dir, "key.pem")
	require.NoError(t, c.WriteFiles(certFile, keyFile))

	loaded, err := tls.LoadX509KeyPair(certFile, keyFile)
	require.NoError(t, err)
	assert.Equal(t, c.TLS.Certificate[0], loaded.Certificate[0])
}
