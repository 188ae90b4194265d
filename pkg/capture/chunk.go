package capture

import (
	"errors"
	"sync"
	"time"

	"github.com/familyreel/capture-agent/pkg/clock"
)

var ErrSinkClosed = errors.New("sink closed")

// chunkBuffer is the in-memory sink a track recorder writes into. Writes are
// grouped into segments rotated once per interval of wall-clock time;
// segment order is capture order. The cadence only bounds how much data a
// crash can lose, it is not a correctness property.
type chunkBuffer struct {
	mu       sync.Mutex
	clock    clock.Clock
	interval time.Duration
	rotated  time.Time
	segments [][]byte
	closed   bool
}

func newChunkBuffer(c clock.Clock, interval time.Duration) *chunkBuffer {
	return &chunkBuffer{
		clock:    c,
		interval: interval,
		rotated:  c.Now(),
	}
}

func (b *chunkBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.closed {
		return 0, ErrSinkClosed
	}

	now := b.clock.Now()
	if len(b.segments) == 0 || now.Sub(b.rotated) >= b.interval {
		b.segments = append(b.segments, nil)
		b.rotated = now
	}

	// Writers reuse their buffers, so the bytes must be copied
	i := len(b.segments) - 1
	b.segments[i] = append(b.segments[i], p...)
	return len(p), nil
}

func (b *chunkBuffer) Close() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.closed = true
	return nil
}

// Segments reports how many chunks have been buffered so far.
func (b *chunkBuffer) Segments() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.segments)
}

// Bytes concatenates all buffered chunks in capture order.
func (b *chunkBuffer) Bytes() []byte {
	b.mu.Lock()
	defer b.mu.Unlock()

	var size int
	for _, s := range b.segments {
		size += len(s)
	}
	out := make([]byte, 0, size)
	for _, s := range b.segments {
		out = append(out, s...)
	}
	return out
}

// Release drops the buffered chunks so their storage can be reclaimed.
func (b *chunkBuffer) Release() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.segments = nil
}
