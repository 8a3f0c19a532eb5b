package v4l2

import (
	"syscall"
	"time"
	"unsafe"

	errors "golang.org/x/xerrors"

	"golang.org/x/sys/unix"

	"github.com/lanikai/mjpegcam/internal/logging"
)

var log = logging.DefaultLogger.WithTag("v4l2")

// ErrTimeout is returned by ReadFrame when no frame arrived in time.
var ErrTimeout = errors.New("v4l2: timed out waiting for frame")

// A V4L2 capture device producing compressed (MJPEG) frames.
type Device struct {
	// Device path, usually "/dev/video0".
	path string

	// File descriptor of v4l2 device, opened non-blocking.
	fd int

	// Negotiated format.
	width, height int
	format        uint32

	// Memory-mapped kernel buffers, indexed by buffer index.
	bufs [][]byte

	streaming bool
}

// Open a V4L2 device and negotiate the pixel format. The driver may adjust
// width and height; the negotiated values are reported by Width and Height.
func Open(path string, cfg Config) (*Device, error) {
	cfg.setDefaults()

	fd, err := unix.Open(path, unix.O_RDWR|unix.O_NONBLOCK|unix.O_CLOEXEC, 0)
	if err != nil {
		return nil, errors.Errorf("open %s: %w", path, err)
	}

	dev := &Device{path: path, fd: fd}
	if err := dev.configure(cfg); err != nil {
		unix.Close(fd)
		return nil, err
	}
	return dev, nil
}

func (dev *Device) configure(cfg Config) error {
	if err := dev.setPixelFormat(cfg.Width, cfg.Height, cfg.Format); err != nil {
		return err
	}
	if dev.format != cfg.Format {
		return errors.Errorf("%s: pixel format %s not supported (driver offered %s)",
			dev.path, FourCC(cfg.Format), FourCC(dev.format))
	}

	// Controls are optional; plenty of UVC cameras lack them.
	if cfg.HFlip {
		if err := dev.setControl(V4L2_CID_HFLIP, 1); err != nil {
			log.Warn("%s: horizontal flip unsupported: %v", dev.path, err)
		}
	}
	if cfg.VFlip {
		if err := dev.setControl(V4L2_CID_VFLIP, 1); err != nil {
			log.Warn("%s: vertical flip unsupported: %v", dev.path, err)
		}
	}
	if cfg.Quality > 0 {
		if err := dev.setControl(V4L2_CID_JPEG_COMPRESSION_QUALITY, int32(cfg.Quality)); err != nil {
			log.Warn("%s: JPEG quality unsupported: %v", dev.path, err)
		}
	}

	return dev.mapBuffers(cfg.Buffers)
}

func (dev *Device) Width() int  { return dev.width }
func (dev *Device) Height() int { return dev.height }

// Close stops capture, unmaps the buffers and closes the device.
func (dev *Device) Close() error {
	if err := dev.Stop(); err != nil {
		return err
	}
	if err := dev.unmapBuffers(); err != nil {
		return err
	}
	return unix.Close(dev.fd)
}

func (dev *Device) ioctl(request uintptr, arg unsafe.Pointer) error {
	for {
		_, _, errno := unix.Syscall(unix.SYS_IOCTL, uintptr(dev.fd), request, uintptr(arg))
		switch errno {
		case 0:
			return nil
		case unix.EINTR:
			continue
		default:
			return errno
		}
	}
}

func (dev *Device) setPixelFormat(width, height int, format uint32) error {
	f := v4l2_format{typ: V4L2_BUF_TYPE_VIDEO_CAPTURE}
	*f.pix() = v4l2_pix_format{
		width:       uint32(width),
		height:      uint32(height),
		pixelformat: format,
		field:       V4L2_FIELD_ANY,
	}
	if err := dev.ioctl(VIDIOC_S_FMT, unsafe.Pointer(&f)); err != nil {
		return errors.Errorf("VIDIOC_S_FMT: %w", err)
	}

	// The driver writes back what it actually configured.
	pix := f.pix()
	dev.width = int(pix.width)
	dev.height = int(pix.height)
	dev.format = pix.pixelformat
	log.Debug("%s: format %s %dx%d", dev.path, FourCC(dev.format), dev.width, dev.height)
	return nil
}

func (dev *Device) setControl(id uint32, value int32) error {
	ctrl := v4l2_control{id: id, value: value}
	if err := dev.ioctl(VIDIOC_S_CTRL, unsafe.Pointer(&ctrl)); err != nil {
		return errors.Errorf("VIDIOC_S_CTRL %#x: %w", id, err)
	}
	return nil
}

// Request n kernel buffers. Returns the number granted.
func (dev *Device) requestBuffers(n int) (int, error) {
	rb := v4l2_requestbuffers{
		count:  uint32(n),
		typ:    V4L2_BUF_TYPE_VIDEO_CAPTURE,
		memory: V4L2_MEMORY_MMAP,
	}
	if err := dev.ioctl(VIDIOC_REQBUFS, unsafe.Pointer(&rb)); err != nil {
		return 0, errors.Errorf("VIDIOC_REQBUFS: %w", err)
	}
	return int(rb.count), nil
}

func (dev *Device) mapBuffers(n int) error {
	granted, err := dev.requestBuffers(n)
	if err != nil {
		return err
	}
	if granted == 0 {
		return errors.Errorf("%s: driver granted no capture buffers", dev.path)
	}

	dev.bufs = make([][]byte, 0, granted)
	for i := 0; i < granted; i++ {
		qb := v4l2_buffer{
			index:  uint32(i),
			typ:    V4L2_BUF_TYPE_VIDEO_CAPTURE,
			memory: V4L2_MEMORY_MMAP,
		}
		if err := dev.ioctl(VIDIOC_QUERYBUF, unsafe.Pointer(&qb)); err != nil {
			dev.unmapBuffers()
			return errors.Errorf("VIDIOC_QUERYBUF %d: %w", i, err)
		}

		mem, err := unix.Mmap(dev.fd, int64(qb.offset()), int(qb.length),
			unix.PROT_READ|unix.PROT_WRITE, unix.MAP_SHARED)
		if err != nil {
			dev.unmapBuffers()
			return errors.Errorf("mmap buffer %d: %w", i, err)
		}
		dev.bufs = append(dev.bufs, mem)
	}
	return nil
}

func (dev *Device) unmapBuffers() error {
	for _, mem := range dev.bufs {
		if err := unix.Munmap(mem); err != nil {
			return err
		}
	}
	dev.bufs = nil

	_, err := dev.requestBuffers(0)
	return err
}

func (dev *Device) enqueue(index uint32) error {
	qbuf := v4l2_buffer{
		typ:    V4L2_BUF_TYPE_VIDEO_CAPTURE,
		memory: V4L2_MEMORY_MMAP,
		index:  index,
	}
	if err := dev.ioctl(VIDIOC_QBUF, unsafe.Pointer(&qbuf)); err != nil {
		return errors.Errorf("VIDIOC_QBUF %d: %w", index, err)
	}
	return nil
}

// Start video capture.
func (dev *Device) Start() error {
	if dev.streaming {
		return nil
	}
	for i := range dev.bufs {
		if err := dev.enqueue(uint32(i)); err != nil {
			return err
		}
	}

	typ := int32(V4L2_BUF_TYPE_VIDEO_CAPTURE)
	if err := dev.ioctl(VIDIOC_STREAMON, unsafe.Pointer(&typ)); err != nil {
		return errors.Errorf("VIDIOC_STREAMON: %w", err)
	}
	dev.streaming = true
	return nil
}

// Stop video capture. Outstanding buffers are dequeued by the driver.
func (dev *Device) Stop() error {
	if !dev.streaming {
		return nil
	}
	typ := int32(V4L2_BUF_TYPE_VIDEO_CAPTURE)
	if err := dev.ioctl(VIDIOC_STREAMOFF, unsafe.Pointer(&typ)); err != nil {
		return errors.Errorf("VIDIOC_STREAMOFF: %w", err)
	}
	dev.streaming = false
	return nil
}

// ReadFrame waits up to timeout for the next frame and returns a copy of it.
// A timeout yields ErrTimeout, leaving the device ready for another call.
func (dev *Device) ReadFrame(timeout time.Duration) ([]byte, error) {
	if !dev.streaming {
		return nil, errors.New("v4l2: capture not started")
	}

	fds := []unix.PollFd{{Fd: int32(dev.fd), Events: unix.POLLIN}}
	for {
		n, err := unix.Poll(fds, int(timeout/time.Millisecond))
		if err == unix.EINTR {
			continue
		}
		if err != nil {
			return nil, errors.Errorf("poll: %w", err)
		}
		if n == 0 {
			return nil, ErrTimeout
		}
		break
	}

	dqbuf := v4l2_buffer{
		typ:    V4L2_BUF_TYPE_VIDEO_CAPTURE,
		memory: V4L2_MEMORY_MMAP,
	}
	if err := dev.ioctl(VIDIOC_DQBUF, unsafe.Pointer(&dqbuf)); err != nil {
		if err == syscall.EAGAIN {
			return nil, ErrTimeout
		}
		return nil, errors.Errorf("VIDIOC_DQBUF: %w", err)
	}

	// Copy data to new heap-allocated buffer before handing the kernel
	// buffer back.
	mem := dev.bufs[dqbuf.index]
	out := append([]byte(nil), mem[:dqbuf.bytesused]...)

	return out, dev.enqueue(dqbuf.index)
}
