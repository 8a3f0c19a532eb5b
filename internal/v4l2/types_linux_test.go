//go:build linux && amd64

package v4l2

import (
	"testing"
	"unsafe"

	"github.com/stretchr/testify/assert"
)

// Request codes as defined by the kernel headers on x86-64.
func TestIoctlCodes(t *testing.T) {
	assert.EqualValues(t, 0xc0d05605, VIDIOC_S_FMT)
	assert.EqualValues(t, 0xc0145608, VIDIOC_REQBUFS)
	assert.EqualValues(t, 0xc0585609, VIDIOC_QUERYBUF)
	assert.EqualValues(t, 0xc058560f, VIDIOC_QBUF)
	assert.EqualValues(t, 0xc0585611, VIDIOC_DQBUF)
	assert.EqualValues(t, 0x40045612, VIDIOC_STREAMON)
	assert.EqualValues(t, 0x40045613, VIDIOC_STREAMOFF)
	assert.EqualValues(t, 0xc008561c, VIDIOC_S_CTRL)
}

func TestStructLayout(t *testing.T) {
	var b v4l2_buffer
	assert.EqualValues(t, 24, unsafe.Offsetof(b.timestamp))
	assert.EqualValues(t, 64, unsafe.Offsetof(b.m))
	assert.EqualValues(t, 72, unsafe.Offsetof(b.length))

	var f v4l2_format
	assert.EqualValues(t, 8, unsafe.Offsetof(f.fmt))
	assert.EqualValues(t, 48, unsafe.Sizeof(v4l2_pix_format{}))
}
