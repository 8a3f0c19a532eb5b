//////////////////////////////////////////////////////////////////////////////
//
// Config contains configuration data for Server
//
// Copyright 2019 Lanikai Labs LLC. All rights reserved.
//
//////////////////////////////////////////////////////////////////////////////

package mjpegcam

import (
	"crypto/tls"
	"time"
)

const (
	DefaultAddr            = "0.0.0.0:8443"
	DefaultCertFile        = "cert.pem"
	DefaultKeyFile         = "key.pem"
	DefaultTitle           = "Raspberry Pi Camera"
	DefaultWidth           = 640
	DefaultHeight          = 480
	DefaultShutdownTimeout = 10 * time.Second
)

type Config struct {
	// Address to listen on, host:port.
	Addr string

	// PEM certificate and private key. Ignored when Certificates is set.
	CertFile string
	KeyFile  string

	// Certificates to serve instead of loading CertFile/KeyFile, e.g. a
	// generated self-signed certificate.
	Certificates []tls.Certificate

	// Landing page title and displayed image size.
	Title  string
	Width  int
	Height int

	// Maximum simultaneous connections. Zero means unlimited.
	MaxClients int

	// Serve frames as binary websocket messages on /stream.ws.
	WebSocket bool

	// Deadline for writing a single frame to a client. Zero means no deadline.
	WriteTimeout time.Duration

	// Bound on graceful shutdown.
	ShutdownTimeout time.Duration
}

// DefaultConfig returns a Config with every field at its default.
func DefaultConfig() Config {
	var cfg Config
	cfg.setDefaults()
	return cfg
}

func (cfg *Config) setDefaults() {
	if cfg.Addr == "" {
		cfg.Addr = DefaultAddr
	}
	if cfg.CertFile == "" && cfg.KeyFile == "" {
		cfg.CertFile = DefaultCertFile
		cfg.KeyFile = DefaultKeyFile
	}
	if cfg.Title == "" {
		cfg.Title = DefaultTitle
	}
	if cfg.Width <= 0 {
		cfg.Width = DefaultWidth
	}
	if cfg.Height <= 0 {
		cfg.Height = DefaultHeight
	}
	if cfg.ShutdownTimeout <= 0 {
		cfg.ShutdownTimeout = DefaultShutdownTimeout
	}
}
