package pool

import "sync"

// ChunkSize is the copy buffer size used when relaying media bytes
const ChunkSize = 64 * 1024

// SlicePool hands out fixed-size byte slices for copy loops
type SlicePool struct {
	pool sync.Pool
	size int
}

// NewSlicePool creates a pool of slices of the given size
func NewSlicePool(size int) *SlicePool {
	return &SlicePool{
		size: size,
		pool: sync.Pool{
			New: func() interface{} {
				b := make([]byte, size)
				return &b
			},
		},
	}
}

// Get retrieves a slice of exactly the pool size
func (p *SlicePool) Get() []byte {
	return (*p.pool.Get().(*[]byte))[:p.size]
}

// Put returns a slice to the pool. Slices of other sizes are dropped.
func (p *SlicePool) Put(b []byte) {
	if cap(b) != p.size {
		return
	}
	p.pool.Put(&b)
}

// Chunks is the shared 64KB pool for proxy streaming and archive downloads
var Chunks = NewSlicePool(ChunkSize)
