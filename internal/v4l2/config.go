package v4l2

// Pixel format four-character codes.
const (
	PixelFormatMJPEG uint32 = 'M' | 'J'<<8 | 'P'<<16 | 'G'<<24
	PixelFormatJPEG  uint32 = 'J' | 'P'<<8 | 'E'<<16 | 'G'<<24
)

type Config struct {
	Format uint32 // Pixel format (e.g. PixelFormatMJPEG)
	Width  int    // Video width in pixels
	Height int    // Video height in pixels

	HFlip bool // Flip video horizontally
	VFlip bool // Flip video vertically

	// JPEG compression quality, 1-100. Zero leaves the driver default.
	Quality int

	// Number of kernel buffers to request. The driver may grant fewer.
	Buffers int
}

func (cfg *Config) setDefaults() {
	if cfg.Format == 0 {
		cfg.Format = PixelFormatMJPEG
	}
	if cfg.Width <= 0 {
		cfg.Width = 640
	}
	if cfg.Height <= 0 {
		cfg.Height = 480
	}
	if cfg.Buffers <= 0 {
		cfg.Buffers = 4
	}
}

// FourCC renders a pixel format code, e.g. "MJPG".
func FourCC(format uint32) string {
	return string([]byte{byte(format), byte(format >> 8), byte(format >> 16), byte(format >> 24)})
}
