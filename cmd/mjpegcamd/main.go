package main

import (
	"context"
	"errors"
	"net"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	perrors "github.com/pkg/errors"
	flag "github.com/spf13/pflag"
	"golang.org/x/sync/errgroup"

	"github.com/lanikai/mjpegcam"
	"github.com/lanikai/mjpegcam/internal/capture"
	"github.com/lanikai/mjpegcam/internal/certs"
	"github.com/lanikai/mjpegcam/internal/logging"
)

// Populated via -ldflags="-X ...".
var GitRevisionId string

var log = logging.DefaultLogger.WithTag("mjpegcamd")

var (
	flagHost           string
	flagPort           int
	flagCertFile       string
	flagKeyFile        string
	flagSelfSigned     bool
	flagSource         string
	flagWidth          int
	flagHeight         int
	flagQuality        int
	flagFPS            int
	flagLoop           bool
	flagHorizontalFlip bool
	flagVerticalFlip   bool
	flagMaxClients     int
	flagWebSocket      bool
	flagWriteTimeout   time.Duration
	flagLogLevel       string
	flagHelp           bool
	flagVersion        bool
)

func init() {
	flag.StringVarP(&flagHost, "host", "", "0.0.0.0", "Address to listen on")
	flag.IntVarP(&flagPort, "port", "p", 8443, "Port to listen on")
	flag.StringVarP(&flagCertFile, "cert", "c", mjpegcam.DefaultCertFile, "TLS certificate")
	flag.StringVarP(&flagKeyFile, "key", "k", mjpegcam.DefaultKeyFile, "TLS private key")
	flag.BoolVarP(&flagSelfSigned, "self-signed", "", false, "Generate a self-signed certificate")
	flag.StringVarP(&flagSource, "source", "i", "/dev/video0", "Frame source")
	flag.IntVarP(&flagWidth, "width", "x", mjpegcam.DefaultWidth, "Video width")
	flag.IntVarP(&flagHeight, "height", "y", mjpegcam.DefaultHeight, "Video height")
	flag.IntVarP(&flagQuality, "quality", "q", 80, "JPEG quality")
	flag.IntVarP(&flagFPS, "fps", "", 30, "Frame rate of file and pattern sources")
	flag.BoolVarP(&flagLoop, "loop", "", false, "Restart a file source when it ends")
	flag.BoolVarP(&flagHorizontalFlip, "hflip", "", false, "Flip horizontally")
	flag.BoolVarP(&flagVerticalFlip, "vflip", "", false, "Flip vertically")
	flag.IntVarP(&flagMaxClients, "max-clients", "", 0, "Maximum simultaneous connections")
	flag.BoolVarP(&flagWebSocket, "websocket", "", false, "Stream over a websocket at /stream.ws")
	flag.DurationVarP(&flagWriteTimeout, "write-timeout", "", 0, "Per-frame write deadline")
	flag.StringVarP(&flagLogLevel, "log-level", "", "", "Log levels")

	flag.BoolVarP(&flagHelp, "help", "h", false, "Print usage information and exit")
	flag.BoolVarP(&flagVersion, "version", "v", false, "Print version information and exit")
}

func main() {
	flag.Usage = help
	flag.Parse()

	if flagHelp {
		help()
		os.Exit(0)
	}
	if flagVersion {
		version()
		os.Exit(0)
	}

	if flagLogLevel != "" {
		if err := logging.Configure(flagLogLevel); err != nil {
			log.Fatal("--log-level: %v", err)
		}
	}

	if err := run(); err != nil {
		log.Fatal("%v", err)
	}
}

// run wires the capture source, the frame buffer and the HTTPS server
// together and blocks until a signal arrives or either side fails.
func run() error {
	cfg, err := serverConfig()
	if err != nil {
		return err
	}

	buf := mjpegcam.NewFrameBuffer()
	srv := mjpegcam.NewServer(buf, cfg)

	src, ln, err := start(srv, flagSource, captureConfig())
	if err != nil {
		return err
	}
	defer func() {
		if err := src.Close(); err != nil {
			log.Warn("close source: %v", err)
		}
	}()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	log.Info("serving %s on https://%s", flagSource, ln.Addr())

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		// Closing the buffer ends every stream and turns new ones away.
		defer buf.Close()

		ingest := mjpegcam.NewIngest(buf)
		err := src.Run(ctx, ingest)
		stats := ingest.Stats()
		switch {
		case errors.Is(err, context.Canceled):
			return nil
		case err != nil:
			return perrors.Wrap(err, "capture")
		}
		log.Warn("source %s ended after %d frames (%d dropped)", flagSource, stats.Accepted, stats.Dropped)
		return nil
	})
	g.Go(func() error {
		return srv.Serve(ctx, ln)
	})

	err = g.Wait()
	log.Info("shut down")
	return err
}

// start opens the frame source and then the listener. The camera must be
// available before anything listens.
func start(srv *mjpegcam.Server, spec string, cfg capture.Config) (capture.Source, net.Listener, error) {
	src, err := capture.Open(spec, cfg)
	if err != nil {
		return nil, nil, err
	}

	ln, err := srv.Listen()
	if err != nil {
		src.Close()
		return nil, nil, err
	}
	return src, ln, nil
}

func serverConfig() (mjpegcam.Config, error) {
	cfg := mjpegcam.Config{
		Addr:         listenAddr(flagHost, flagPort),
		CertFile:     flagCertFile,
		KeyFile:      flagKeyFile,
		Width:        flagWidth,
		Height:       flagHeight,
		MaxClients:   flagMaxClients,
		WebSocket:    flagWebSocket,
		WriteTimeout: flagWriteTimeout,
	}

	if flagSelfSigned {
		cert, err := certs.Generate(365*24*time.Hour, certHosts(flagHost)...)
		if err != nil {
			return cfg, err
		}
		log.Info("self-signed certificate fingerprint %s", cert.Fingerprint())
		cfg.Certificates = append(cfg.Certificates, cert.TLS)
	}
	return cfg, nil
}

func captureConfig() capture.Config {
	return capture.Config{
		Width:   flagWidth,
		Height:  flagHeight,
		Quality: flagQuality,
		HFlip:   flagHorizontalFlip,
		VFlip:   flagVerticalFlip,
		FPS:     flagFPS,
		Loop:    flagLoop,
	}
}

func listenAddr(host string, port int) string {
	return net.JoinHostPort(host, strconv.Itoa(port))
}

// certHosts returns the extra names a generated certificate should cover.
// Wildcard listen addresses name no particular host.
func certHosts(host string) []string {
	if ip := net.ParseIP(host); ip != nil && ip.IsUnspecified() {
		return nil
	}
	if host == "" {
		return nil
	}
	return []string{host}
}
