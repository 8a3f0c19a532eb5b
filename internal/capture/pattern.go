package capture

import (
	"bytes"
	"context"
	"image"
	"image/color"
	"image/draw"
	"image/jpeg"
	"io"
	"time"
)

// patternSource renders a moving test pattern, for running without a camera.
type patternSource struct {
	cfg   Config
	frame int
}

func openPattern(path string, cfg Config) (Source, error) {
	return &patternSource{cfg: cfg}, nil
}

func (src *patternSource) Run(ctx context.Context, w io.Writer) error {
	ticker := time.NewTicker(time.Second / time.Duration(src.cfg.FPS))
	defer ticker.Stop()

	var buf bytes.Buffer
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}

		buf.Reset()
		if err := src.render(&buf); err != nil {
			return err
		}
		if _, err := w.Write(buf.Bytes()); err != nil {
			return err
		}
	}
}

// render draws the next frame: a background cycling through colors with a
// square bouncing across it.
func (src *patternSource) render(w io.Writer) error {
	width, height := src.cfg.Width, src.cfg.Height
	n := src.frame
	src.frame++

	img := image.NewRGBA(image.Rect(0, 0, width, height))

	bg := color.RGBA{uint8(n * 2), uint8(n * 3), uint8(n * 5), 255}
	draw.Draw(img, img.Bounds(), &image.Uniform{bg}, image.Point{}, draw.Src)

	size := height / 5
	if size < 1 {
		size = 1
	}
	x := bounce(n*5, width-size)
	y := bounce(n*3, height-size)
	fg := color.RGBA{255 - bg.R, 255 - bg.G, 255 - bg.B, 255}
	draw.Draw(img, image.Rect(x, y, x+size, y+size), &image.Uniform{fg}, image.Point{}, draw.Src)

	if src.cfg.HFlip || src.cfg.VFlip {
		img = flip(img, src.cfg.HFlip, src.cfg.VFlip)
	}

	return jpeg.Encode(w, img, &jpeg.Options{Quality: src.cfg.Quality})
}

// bounce maps a monotonically increasing position onto [0, span] going back
// and forth.
func bounce(pos, span int) int {
	if span <= 0 {
		return 0
	}
	pos %= 2 * span
	if pos > span {
		pos = 2*span - pos
	}
	return pos
}

func flip(img *image.RGBA, h, v bool) *image.RGBA {
	b := img.Bounds()
	out := image.NewRGBA(b)
	for y := b.Min.Y; y < b.Max.Y; y++ {
		for x := b.Min.X; x < b.Max.X; x++ {
			sx, sy := x, y
			if h {
				sx = b.Max.X - 1 - (x - b.Min.X)
			}
			if v {
				sy = b.Max.Y - 1 - (y - b.Min.Y)
			}
			out.SetRGBA(x, y, img.RGBAAt(sx, sy))
		}
	}
	return out
}

func (src *patternSource) Close() error {
	return nil
}

func init() {
	Register("pattern", openPattern)
}
