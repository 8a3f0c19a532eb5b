package mjpegcam

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type countingPublisher struct {
	published [][]byte
}

func (p *countingPublisher) Publish(data []byte) *Frame {
	p.published = append(p.published, data)
	return &Frame{Data: data, Seq: uint64(len(p.published))}
}

func TestIngestPublishesJPEG(t *testing.T) {
	var pub countingPublisher
	in := NewIngest(&pub)

	chunk := []byte{0xFF, 0xD8, 0xFF, 0xE0, 1, 2, 3, 0xFF, 0xD9}
	n, err := in.Write(chunk)
	require.NoError(t, err)
	assert.Equal(t, len(chunk), n)

	require.Len(t, pub.published, 1)
	assert.Equal(t, chunk, pub.published[0])

	// The published frame must not alias the caller's buffer.
	chunk[4] = 99
	assert.EqualValues(t, 1, pub.published[0][4])

	assert.Equal(t, IngestStats{Accepted: 1}, in.Stats())
}

func TestIngestDropsNonJPEG(t *testing.T) {
	var pub countingPublisher
	in := NewIngest(&pub)

	for _, chunk := range [][]byte{
		{0x00, 0x00, 0x00, 0x01, 0x67},
		{0xFF, 0xD9},
		{0xD8, 0xFF},
		{0xFF},
		{},
	} {
		n, err := in.Write(chunk)
		assert.NoError(t, err)
		assert.Equal(t, len(chunk), n)
	}

	assert.Empty(t, pub.published)
	assert.Equal(t, IngestStats{Dropped: 5}, in.Stats())
}

func TestIngestIntoFrameBuffer(t *testing.T) {
	b := NewFrameBuffer()
	in := NewIngest(b)

	in.Write([]byte{0xFF, 0xD8, 'a'})
	in.Write([]byte("not a frame"))
	in.Write([]byte{0xFF, 0xD8, 'b'})

	latest := b.Latest()
	require.NotNil(t, latest)
	assert.Equal(t, []byte{0xFF, 0xD8, 'b'}, latest.Data)
	assert.EqualValues(t, 2, latest.Seq)
}
