// Package certs generates self-signed TLS certificates, for serving HTTPS
// when no certificate has been provisioned.
package certs

import (
	"crypto/ecdsa"
	"crypto/elliptic"
	"crypto/rand"
	"crypto/sha256"
	"crypto/tls"
	"crypto/x509"
	"crypto/x509/pkix"
	"encoding/pem"
	"fmt"
	"math/big"
	"net"
	"os"
	"time"

	"github.com/pkg/errors"
)

// Certificate is a generated key pair.
type Certificate struct {
	TLS tls.Certificate

	// PEM encodings, for writing to disk.
	CertPEM []byte
	KeyPEM  []byte

	NotAfter time.Time
}

// Fingerprint returns the SHA-256 fingerprint of the certificate in the
// colon-separated hex form browsers display.
func (c *Certificate) Fingerprint() string {
	h := sha256.Sum256(c.TLS.Certificate[0])
	s := make([]byte, 0, len(h)*3)
	for i, b := range h {
		if i > 0 {
			s = append(s, ':')
		}
		s = append(s, fmt.Sprintf("%02X", b)...)
	}
	return string(s)
}

// Generate creates a self-signed certificate valid for the given duration.
//
// * Use elliptic curve digital signature algorithm (ECDSA) over the
//   P-256 curve.
// * Use a randomly generated 128-bit serial number.
// * Cover localhost, the loopback addresses and any extra hosts (names or
//   IP addresses).
// * Backdate by a minute to tolerate clock skew.
func Generate(validity time.Duration, hosts ...string) (*Certificate, error) {
	key, err := ecdsa.GenerateKey(elliptic.P256(), rand.Reader)
	if err != nil {
		return nil, errors.Wrap(err, "generate private key")
	}

	serial, err := rand.Int(rand.Reader, new(big.Int).Lsh(big.NewInt(1), 128))
	if err != nil {
		return nil, errors.Wrap(err, "generate serial number")
	}

	notBefore := time.Now().Add(-time.Minute)
	template := x509.Certificate{
		SerialNumber:          serial,
		Subject:               pkix.Name{CommonName: "mjpegcam"},
		NotBefore:             notBefore,
		NotAfter:              notBefore.Add(validity),
		KeyUsage:              x509.KeyUsageDigitalSignature,
		ExtKeyUsage:           []x509.ExtKeyUsage{x509.ExtKeyUsageServerAuth},
		BasicConstraintsValid: true,
		DNSNames:              []string{"localhost"},
		IPAddresses:           []net.IP{net.IPv4(127, 0, 0, 1), net.IPv6loopback},
	}
	if hostname, err := os.Hostname(); err == nil {
		template.DNSNames = append(template.DNSNames, hostname, hostname+".local")
	}
	for _, h := range hosts {
		if ip := net.ParseIP(h); ip != nil {
			template.IPAddresses = append(template.IPAddresses, ip)
		} else if h != "" {
			template.DNSNames = append(template.DNSNames, h)
		}
	}

	der, err := x509.CreateCertificate(rand.Reader, &template, &template, &key.PublicKey, key)
	if err != nil {
		return nil, errors.Wrap(err, "create certificate")
	}

	keyDER, err := x509.MarshalECPrivateKey(key)
	if err != nil {
		return nil, errors.Wrap(err, "marshal private key")
	}

	return &Certificate{
		TLS: tls.Certificate{
			Certificate: [][]byte{der},
			PrivateKey:  key,
		},
		CertPEM:  pem.EncodeToMemory(&pem.Block{Type: "CERTIFICATE", Bytes: der}),
		KeyPEM:   pem.EncodeToMemory(&pem.Block{Type: "EC PRIVATE KEY", Bytes: keyDER}),
		NotAfter: template.NotAfter,
	}, nil
}

// WriteFiles saves the certificate and key in PEM form. The key file is
// readable by the owner only.
func (c *Certificate) WriteFiles(certFile, keyFile string) error {
	if err := os.WriteFile(certFile, c.CertPEM, 0644); err != nil {
		return errors.Wrap(err, "write certificate")
	}
	if err := os.WriteFile(keyFile, c.KeyPEM, 0600); err != nil {
		return errors.Wrap(err, "write private key")
	}
	return nil
}
