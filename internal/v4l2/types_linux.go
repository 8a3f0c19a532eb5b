package v4l2

import (
	"unsafe"

	"golang.org/x/sys/unix"
)

// Kernel ABI from <linux/videodev2.h>. Struct layouts follow the kernel's
// natural alignment, so the ioctl request codes below are derived from the Go
// struct sizes and come out right on both 32- and 64-bit targets.

const (
	V4L2_BUF_TYPE_VIDEO_CAPTURE = 1
	V4L2_MEMORY_MMAP            = 1
	V4L2_FIELD_ANY              = 0

	V4L2_CID_BASE                     = 0x00980900
	V4L2_CID_HFLIP                    = V4L2_CID_BASE + 20
	V4L2_CID_VFLIP                    = V4L2_CID_BASE + 21
	V4L2_CID_JPEG_COMPRESSION_QUALITY = 0x009d0903
)

type v4l2_pix_format struct {
	width        uint32
	height       uint32
	pixelformat  uint32
	field        uint32
	bytesperline uint32
	sizeimage    uint32
	colorspace   uint32
	priv         uint32
	flags        uint32
	encoding     uint32
	quantization uint32
	xferFunc     uint32
}

type v4l2_format struct {
	typ uint32
	// The kernel union contains pointers, which align it to the word size.
	_   [unsafe.Sizeof(uintptr(0)) - 4]byte
	fmt [200]byte
}

func (f *v4l2_format) pix() *v4l2_pix_format {
	return (*v4l2_pix_format)(unsafe.Pointer(&f.fmt[0]))
}

type v4l2_requestbuffers struct {
	count        uint32
	typ          uint32
	memory       uint32
	capabilities uint32
	flags        uint8
	reserved     [3]uint8
}

type v4l2_timecode struct {
	typ      uint32
	flags    uint32
	frames   uint8
	seconds  uint8
	minutes  uint8
	hours    uint8
	userbits [4]uint8
}

type v4l2_buffer struct {
	index     uint32
	typ       uint32
	bytesused uint32
	flags     uint32
	field     uint32
	timestamp unix.Timeval
	timecode  v4l2_timecode
	sequence  uint32
	memory    uint32
	m         uintptr // union { offset; userptr; planes; fd }
	length    uint32
	reserved2 uint32
	requestFD int32
}

// The mmap offset lives in the low 32 bits of the union.
func (b *v4l2_buffer) offset() uint32 {
	return uint32(b.m)
}

type v4l2_control struct {
	id    uint32
	value int32
}

const (
	iocWrite = 1
	iocRead  = 2

	iocTypeShift = 8
	iocSizeShift = 16
	iocDirShift  = 30

	iocTypeV4L2 = 'V'
)

const (
	VIDIOC_S_FMT     = (iocRead|iocWrite)<<iocDirShift | unsafe.Sizeof(v4l2_format{})<<iocSizeShift | iocTypeV4L2<<iocTypeShift | 5
	VIDIOC_REQBUFS   = (iocRead|iocWrite)<<iocDirShift | unsafe.Sizeof(v4l2_requestbuffers{})<<iocSizeShift | iocTypeV4L2<<iocTypeShift | 8
	VIDIOC_QUERYBUF  = (iocRead|iocWrite)<<iocDirShift | unsafe.Sizeof(v4l2_buffer{})<<iocSizeShift | iocTypeV4L2<<iocTypeShift | 9
	VIDIOC_QBUF      = (iocRead|iocWrite)<<iocDirShift | unsafe.Sizeof(v4l2_buffer{})<<iocSizeShift | iocTypeV4L2<<iocTypeShift | 15
	VIDIOC_DQBUF     = (iocRead|iocWrite)<<iocDirShift | unsafe.Sizeof(v4l2_buffer{})<<iocSizeShift | iocTypeV4L2<<iocTypeShift | 17
	VIDIOC_STREAMON  = iocWrite<<iocDirShift | unsafe.Sizeof(int32(0))<<iocSizeShift | iocTypeV4L2<<iocTypeShift | 18
	VIDIOC_STREAMOFF = iocWrite<<iocDirShift | unsafe.Sizeof(int32(0))<<iocSizeShift | iocTypeV4L2<<iocTypeShift | 19
	VIDIOC_S_CTRL    = (iocRead|iocWrite)<<iocDirShift | unsafe.Sizeof(v4l2_control{})<<iocSizeShift | iocTypeV4L2<<iocTypeShift | 28
)
