//////////////////////////////////////////////////////////////////////////////
//
// Single-slot frame buffer with broadcast wakeup.
//
// The buffer holds only the latest frame. Publishing overwrites the slot and
// wakes every waiting reader at once by closing a notification channel, then
// installs a fresh channel for the next publish. Readers that were busy when
// a frame was published simply pick up whatever is latest next time they
// look; nothing is queued, so a slow reader can never hold up the writer.
//
// Copyright 2019 Lanikai Labs LLC. All rights reserved.
//
//////////////////////////////////////////////////////////////////////////////

package mjpegcam

import (
	"context"
	"sync"
	"time"
)

type FrameBuffer struct {
	mu sync.Mutex

	// Latest frame, nil until the first publish.
	frame *Frame

	// Closed (and replaced) on every publish.
	notify chan struct{}

	// Closed once by Close.
	done   chan struct{}
	closed bool

	waiters int
}

// BufferStats is a point-in-time snapshot of FrameBuffer counters.
type BufferStats struct {
	// Sequence number of the latest frame; also the number of publishes.
	Seq uint64

	// Size of the latest frame in bytes.
	Bytes int

	// Readers currently blocked waiting for a frame.
	Waiters int

	Closed bool
}

// NewFrameBuffer returns an empty buffer. Readers block until the first
// publish.
func NewFrameBuffer() *FrameBuffer {
	return &FrameBuffer{
		notify: make(chan struct{}),
		done:   make(chan struct{}),
	}
}

// Publish makes data the latest frame and wakes all waiting readers. It never
// waits on readers. The buffer takes ownership of data. Publishing to a closed
// buffer does nothing and returns nil.
func (b *FrameBuffer) Publish(data []byte) *Frame {
	now := time.Now()

	b.mu.Lock()
	defer b.mu.Unlock()

	if b.closed {
		return nil
	}

	var seq uint64 = 1
	if b.frame != nil {
		seq = b.frame.Seq + 1
	}
	f := &Frame{Data: data, Seq: seq, Time: now}
	b.frame = f

	close(b.notify)
	b.notify = make(chan struct{})

	return f
}

// WaitForNext blocks until the next publish after the call begins and
// returns the latest frame at wakeup, which is that publish's frame or a
// newer one. It returns ctx.Err() if the context ends first and ErrClosed if
// the buffer is closed.
func (b *FrameBuffer) WaitForNext(ctx context.Context) (*Frame, error) {
	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		return nil, ErrClosed
	}
	return b.wait(ctx)
}

// NextAfter returns the latest frame immediately if its sequence number is
// greater than seq. Otherwise it waits like WaitForNext. Passing the Seq of
// the last frame a reader handled yields every frame that reader has not
// seen, skipping any that were overwritten in the meantime, and never the
// same frame twice.
func (b *FrameBuffer) NextAfter(ctx context.Context, seq uint64) (*Frame, error) {
	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		return nil, ErrClosed
	}
	if b.frame != nil && b.frame.Seq > seq {
		f := b.frame
		b.mu.Unlock()
		return f, nil
	}
	return b.wait(ctx)
}

// wait must be called with b.mu held; it releases it.
func (b *FrameBuffer) wait(ctx context.Context) (*Frame, error) {
	notify := b.notify
	b.waiters++
	b.mu.Unlock()

	var err error
	select {
	case <-notify:
	case <-b.done:
		err = ErrClosed
	case <-ctx.Done():
		err = ctx.Err()
	}

	b.mu.Lock()
	defer b.mu.Unlock()
	b.waiters--
	if err != nil {
		return nil, err
	}
	return b.frame, nil
}

// Latest returns the most recently published frame, or nil if nothing has
// been published yet.
func (b *FrameBuffer) Latest() *Frame {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.frame
}

// Close wakes all waiting readers with ErrClosed. Later waits fail
// immediately and later publishes are ignored. Close is idempotent.
func (b *FrameBuffer) Close() error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if !b.closed {
		b.closed = true
		close(b.done)
	}
	return nil
}

// Closed reports whether Close has been called.
func (b *FrameBuffer) Closed() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.closed
}

func (b *FrameBuffer) Stats() BufferStats {
	b.mu.Lock()
	defer b.mu.Unlock()

	s := BufferStats{
		Waiters: b.waiters,
		Closed:  b.closed,
	}
	if b.frame != nil {
		s.Seq = b.frame.Seq
		s.Bytes = len(b.frame.Data)
	}
	return s
}
