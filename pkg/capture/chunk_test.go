package capture

import (
	"testing"
	"time"

	"github.com/familyreel/capture-agent/pkg/clock"
	"github.com/stretchr/testify/require"
)

func TestChunkBufferRotatesPerInterval(t *testing.T) {
	c := clock.NewFake()
	b := newChunkBuffer(c, time.Second)

	_, err := b.Write([]byte("aa"))
	require.NoError(t, err)
	_, err = b.Write([]byte("bb"))
	require.NoError(t, err)
	require.Equal(t, 1, b.Segments())

	c.Advance(time.Second)
	_, err = b.Write([]byte("cc"))
	require.NoError(t, err)
	require.Equal(t, 2, b.Segments())

	c.Advance(time.Second)
	_, err = b.Write([]byte("dd"))
	require.NoError(t, err)
	require.Equal(t, 3, b.Segments())
}

func TestChunkBufferConcatenatesInCaptureOrder(t *testing.T) {
	c := clock.NewFake()
	b := newChunkBuffer(c, time.Second)

	for _, chunk := range []string{"one ", "two ", "three"} {
		_, err := b.Write([]byte(chunk))
		require.NoError(t, err)
		c.Advance(time.Second)
	}

	require.Equal(t, []byte("one two three"), b.Bytes())
}

func TestChunkBufferCopiesWriterBytes(t *testing.T) {
	c := clock.NewFake()
	b := newChunkBuffer(c, time.Second)

	p := []byte("hello")
	_, err := b.Write(p)
	require.NoError(t, err)

	// Writers reuse their buffers between calls
	copy(p, "XXXXX")
	require.Equal(t, []byte("hello"), b.Bytes())
}

func TestChunkBufferRejectsWritesAfterClose(t *testing.T) {
	c := clock.NewFake()
	b := newChunkBuffer(c, time.Second)

	require.NoError(t, b.Close())
	_, err := b.Write([]byte("late"))
	require.ErrorIs(t, err, ErrSinkClosed)
}

func TestChunkBufferRelease(t *testing.T) {
	c := clock.NewFake()
	b := newChunkBuffer(c, time.Second)

	_, err := b.Write([]byte("data"))
	require.NoError(t, err)

	b.Release()
	require.Equal(t, 0, b.Segments())
	require.Empty(t, b.Bytes())
}
