package v4l2

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestFourCC(t *testing.T) {
	assert.Equal(t, "MJPG", FourCC(PixelFormatMJPEG))
	assert.Equal(t, "JPEG", FourCC(PixelFormatJPEG))
}

func TestConfigDefaults(t *testing.T) {
	var cfg Config
	cfg.setDefaults()
	assert.Equal(t, PixelFormatMJPEG, cfg.Format)
	assert.Equal(t, 640, cfg.Width)
	assert.Equal(t, 480, cfg.Height)
	assert.Equal(t, 4, cfg.Buffers)
}
