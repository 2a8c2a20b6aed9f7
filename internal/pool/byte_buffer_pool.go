// Package pool provides a pooled scratch buffer for transient byte work
// during container encoding.
package pool

import "sync"

const (
	// ScratchDefaultSize is the capacity of a fresh scratch buffer.
	ScratchDefaultSize = 4 * 1024

	// ScratchMaxThreshold caps the capacity of buffers returned to the
	// pool. Buffers that grew beyond it are dropped so one oversized
	// payload does not pin memory forever.
	ScratchMaxThreshold = 1024 * 1024
)

// ByteBuffer is a reusable byte slice wrapper handed out by the pool.
type ByteBuffer struct {
	B []byte
}

// Bytes returns the underlying byte slice.
func (bb *ByteBuffer) Bytes() []byte {
	return bb.B
}

// Reset empties the buffer while keeping its capacity.
func (bb *ByteBuffer) Reset() {
	bb.B = bb.B[:0]
}

// Cap returns the buffer's capacity.
func (bb *ByteBuffer) Cap() int {
	return cap(bb.B)
}

// Zeroed returns the buffer resized to exactly n bytes, all zero. The
// returned slice is only valid until the buffer goes back to the pool.
func (bb *ByteBuffer) Zeroed(n int) []byte {
	if cap(bb.B) < n {
		bb.B = make([]byte, n)
		return bb.B
	}
	bb.B = bb.B[:n]
	for i := range bb.B {
		bb.B[i] = 0
	}

	return bb.B
}

var scratchPool = sync.Pool{
	New: func() any {
		return &ByteBuffer{B: make([]byte, 0, ScratchDefaultSize)}
	},
}

// GetScratchBuffer retrieves a reset scratch buffer from the pool.
func GetScratchBuffer() *ByteBuffer {
	bb, _ := scratchPool.Get().(*ByteBuffer)
	bb.Reset()

	return bb
}

// PutScratchBuffer returns a buffer to the pool, dropping oversized ones.
func PutScratchBuffer(bb *ByteBuffer) {
	if bb == nil || cap(bb.B) > ScratchMaxThreshold {
		return
	}
	scratchPool.Put(bb)
}
