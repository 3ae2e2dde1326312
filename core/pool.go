package core

import (
	"bytes"
	"sync"
	"sync/atomic"
)

// bufferPool is a mutex-protected slice of reusable buffers. Unlike sync.Pool,
// its contents are not cleared by the garbage collector, which suits the archive
// writer and the block compressors that need a scratch buffer per entry.
type bufferPool struct {
	mu       sync.Mutex
	items    []*bytes.Buffer
	maxItems int
	newFunc  func() *bytes.Buffer

	// Metrics
	hits        atomic.Uint64 // Number of times a buffer was successfully retrieved from the pool.
	misses      atomic.Uint64 // Number of times a buffer was requested but the pool was empty.
	created     atomic.Uint64 // Total number of new buffers created.
	currentSize atomic.Int64  // Current number of items in the pool.
}

// DefaultBufferCapacity is the initial capacity of pooled buffers.
const DefaultBufferCapacity = 4 * 1024

// initialPoolSize is the number of buffers created up front.
const initialPoolSize = 32

// maxPoolSize caps the number of idle buffers kept by a pool.
const maxPoolSize = 1024

var BufferPool = NewBufferPool(DefaultBufferCapacity)

// NewBufferPool creates a new buffer pool.
// initialCapacity is the pre-allocated capacity for each new buffer.
func NewBufferPool(initialCapacity ...int) *bufferPool {
	capacity := 0
	if len(initialCapacity) > 0 && initialCapacity[0] > 0 {
		capacity = initialCapacity[0]
	}
	bp := &bufferPool{
		items:    make([]*bytes.Buffer, 0, initialPoolSize),
		maxItems: maxPoolSize,
	}
	bp.newFunc = func() *bytes.Buffer {
		bp.created.Add(1)
		return bytes.NewBuffer(make([]byte, 0, capacity))
	}

	for i := 0; i < initialPoolSize; i++ {
		bp.items = append(bp.items, bp.newFunc())
	}
	bp.currentSize.Store(int64(initialPoolSize))

	return bp
}

// Get retrieves a buffer from the pool. If the pool is empty, it creates a new one.
func (bp *bufferPool) Get() *bytes.Buffer {
	bp.mu.Lock()
	if len(bp.items) == 0 {
		bp.mu.Unlock()
		bp.misses.Add(1)
		return bp.newFunc()
	}
	bp.hits.Add(1)
	bp.currentSize.Add(-1)
	item := bp.items[len(bp.items)-1]
	bp.items = bp.items[:len(bp.items)-1]
	bp.mu.Unlock()
	return item
}

// GetMetrics returns the current metrics for the pool.
func (bp *bufferPool) GetMetrics() (hits, misses, created uint64, currentSize int64) {
	return bp.hits.Load(), bp.misses.Load(), bp.created.Load(), bp.currentSize.Load()
}

// Put resets buf and returns it to the pool. Buffers beyond the pool limit are dropped.
func (bp *bufferPool) Put(buf *bytes.Buffer) {
	buf.Reset()
	bp.mu.Lock()
	if len(bp.items) >= bp.maxItems {
		bp.mu.Unlock()
		return
	}
	bp.items = append(bp.items, buf)
	bp.currentSize.Add(1)
	bp.mu.Unlock()
}
