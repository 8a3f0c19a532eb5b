package capture

import "bytes"

// JPEG markers.
const (
	markerPrefix = 0xFF
	markerSOI    = 0xD8
	markerEOI    = 0xD9
	markerSOS    = 0xDA
	markerTEM    = 0x01
	markerRST0   = 0xD0
	markerRST7   = 0xD7
)

var soi = []byte{markerPrefix, markerSOI}

// SplitJPEG is a bufio.SplitFunc that splits an MJPEG byte stream (concatenated
// JPEG images) into individual images, each running from SOI to EOI
// inclusive. Bytes before an SOI marker are skipped.
//
// Marker segments are walked by their length fields, so an EOI inside
// metadata (such as an EXIF thumbnail) does not end the frame early. A frame
// that turns out to be malformed is abandoned and the scan resumes at the
// next SOI.
func SplitJPEG(data []byte, atEOF bool) (advance int, token []byte, err error) {
	start := bytes.Index(data, soi)
	if start < 0 {
		if atEOF {
			return len(data), nil, nil
		}
		// Keep a trailing 0xFF, it may be the first half of an SOI.
		if n := len(data); n > 0 && data[n-1] == markerPrefix {
			return n - 1, nil, nil
		}
		return len(data), nil, nil
	}

	end, ok := scanJPEG(data[start:])
	switch {
	case end > 0:
		return start + end, data[start : start+end], nil
	case !ok:
		// Malformed: drop this SOI and look for the next one.
		return start + len(soi), nil, nil
	case atEOF:
		// Truncated final frame.
		return len(data), nil, nil
	default:
		// Skip leading garbage and request more data.
		return start, nil, nil
	}
}

// scanJPEG walks the marker segments of the image at the start of b. It
// returns the length of the image through EOI, or 0 if b ends first. ok is
// false if the data is not a well-formed JPEG.
func scanJPEG(b []byte) (end int, ok bool) {
	i := len(soi)
	for {
		// Fill bytes (0xFF) may precede any marker.
		for i+1 < len(b) && b[i] == markerPrefix && b[i+1] == markerPrefix {
			i++
		}
		if i+1 >= len(b) {
			return 0, true
		}
		if b[i] != markerPrefix {
			return 0, false
		}

		marker := b[i+1]
		i += 2

		switch {
		case marker == markerEOI:
			return i, true
		case marker == markerSOI, marker == 0x00:
			return 0, false
		case marker == markerTEM, marker >= markerRST0 && marker <= markerRST7:
			// Standalone markers carry no length.
			continue
		}

		// Segment length includes its own two bytes.
		if i+2 > len(b) {
			return 0, true
		}
		length := int(b[i])<<8 | int(b[i+1])
		if length < 2 {
			return 0, false
		}
		i += length
		if i > len(b) {
			return 0, true
		}

		if marker == markerSOS {
			// Entropy-coded data follows. It ends at the first marker other
			// than a stuffed 0xFF00 or a restart marker.
			for {
				if i+1 >= len(b) {
					return 0, true
				}
				if b[i] == markerPrefix {
					next := b[i+1]
					if next != 0x00 && !(next >= markerRST0 && next <= markerRST7) {
						break
					}
				}
				i++
			}
		}
	}
}
