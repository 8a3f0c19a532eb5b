package capture

import (
	"bufio"
	"context"
	"io"
	"os"
	"sync"
	"time"

	"github.com/pkg/errors"
)

// Largest JPEG accepted from a byte stream.
const maxFrameSize = 16 << 20

// readerSource splits an MJPEG byte stream (e.g. the output of
// "rpicam-vid --codec mjpeg -o -") into frames.
type readerSource struct {
	r io.Reader

	// Reopens the input for looping; nil if the input can't be rewound.
	rewind func() (io.Reader, error)

	// Delay between frames; zero delivers frames as fast as they are read.
	interval time.Duration

	closer    io.Closer
	closeOnce sync.Once
	closeErr  error
}

func openPipe(path string, cfg Config) (Source, error) {
	if path != "" && path != "-" {
		return nil, errors.Errorf("pipe source reads standard input only, not %q", path)
	}
	return &readerSource{r: os.Stdin, closer: os.Stdin}, nil
}

func openFile(path string, cfg Config) (Source, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}

	src := &readerSource{
		r:        f,
		closer:   f,
		interval: time.Second / time.Duration(cfg.FPS),
	}
	if cfg.Loop {
		src.rewind = func() (io.Reader, error) {
			_, err := f.Seek(0, io.SeekStart)
			return f, err
		}
	}
	return src, nil
}

// NewReaderSource returns a source splitting r into frames. If fps is
// positive frames are delivered at that rate.
func NewReaderSource(r io.Reader, fps int) Source {
	src := &readerSource{r: r}
	if fps > 0 {
		src.interval = time.Second / time.Duration(fps)
	}
	if c, ok := r.(io.Closer); ok {
		src.closer = c
	}
	return src
}

// Run returns ctx.Err() promptly when ctx ends, even while a read is
// blocked. The input is closed at that point to release the read.
func (src *readerSource) Run(ctx context.Context, w io.Writer) error {
	stop := context.AfterFunc(ctx, func() {
		src.Close()
	})
	defer stop()

	done := make(chan error, 1)
	go func() {
		done <- src.run(ctx, w)
	}()

	select {
	case err := <-done:
		if cerr := ctx.Err(); cerr != nil {
			// Reading from the closed input fails with an unrelated error.
			return cerr
		}
		return err
	case <-ctx.Done():
		// A blocking stdin descriptor is not interrupted by Close; leave its
		// reader behind. It checks ctx before delivering anything else.
		return ctx.Err()
	}
}

func (src *readerSource) run(ctx context.Context, w io.Writer) error {
	var tick <-chan time.Time
	if src.interval > 0 {
		ticker := time.NewTicker(src.interval)
		defer ticker.Stop()
		tick = ticker.C
	}

	r := src.r
	for {
		n, err := src.scan(ctx, r, w, tick)
		if err != nil {
			return err
		}
		if src.rewind == nil || n == 0 {
			// Nothing more to read, or looping an input with no frames in it.
			return nil
		}
		if r, err = src.rewind(); err != nil {
			return errors.Wrap(err, "rewind")
		}
	}
}

// scan delivers every frame in r and returns how many there were.
func (src *readerSource) scan(ctx context.Context, r io.Reader, w io.Writer, tick <-chan time.Time) (int, error) {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 256<<10), maxFrameSize)
	scanner.Split(SplitJPEG)

	n := 0
	for scanner.Scan() {
		if tick != nil {
			select {
			case <-tick:
			case <-ctx.Done():
			}
		}
		if err := ctx.Err(); err != nil {
			return n, err
		}

		// The scanner reuses its buffer; writers must copy, which Ingest does.
		if _, err := w.Write(scanner.Bytes()); err != nil {
			return n, err
		}
		n++
	}
	if err := scanner.Err(); err != nil {
		return n, errors.Wrap(err, "read MJPEG stream")
	}
	return n, nil
}

// Close closes the input. It may be called more than once.
func (src *readerSource) Close() error {
	src.closeOnce.Do(func() {
		if src.closer != nil {
			src.closeErr = src.closer.Close()
		}
	})
	return src.closeErr
}

func init() {
	Register("pipe", openPipe)
	Register("file", openFile)
}
