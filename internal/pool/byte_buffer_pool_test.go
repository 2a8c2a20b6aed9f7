package pool

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestScratchBuffer_ZeroedResizesAndClears(t *testing.T) {
	bb := GetScratchBuffer()
	defer PutScratchBuffer(bb)

	buf := bb.Zeroed(16)
	require.Len(t, buf, 16)
	for i := range buf {
		buf[i] = 0xff
	}

	buf = bb.Zeroed(8)
	require.Len(t, buf, 8)
	for _, b := range buf {
		require.Zero(t, b)
	}
}

func TestScratchBuffer_ZeroedGrowsBeyondCapacity(t *testing.T) {
	bb := &ByteBuffer{B: make([]byte, 0, 4)}
	buf := bb.Zeroed(32)
	require.Len(t, buf, 32)
	require.GreaterOrEqual(t, bb.Cap(), 32)
}

func TestScratchBuffer_PutDropsOversized(t *testing.T) {
	bb := &ByteBuffer{B: make([]byte, 0, ScratchMaxThreshold+1)}
	PutScratchBuffer(bb) // must not panic and must not be retained
	PutScratchBuffer(nil)
}
