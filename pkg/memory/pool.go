package memory

import (
	"bytes"
	"errors"
	"io"
	"sync"
)

// maxPooledSize caps the capacity of buffers returned to the pool.
const maxPooledSize = 64 * 1024

// ErrLimitExceeded is returned by ReadLimited when the source is larger than
// the requested limit.
var ErrLimitExceeded = errors.New("read limit exceeded")

// BufferPool manages a pool of reusable bytes.Buffer instances
type BufferPool struct {
	pool sync.Pool
}

// NewBufferPool creates a new buffer pool
func NewBufferPool() *BufferPool {
	return &BufferPool{
		pool: sync.Pool{
			New: func() interface{} {
				return &bytes.Buffer{}
			},
		},
	}
}

// Get retrieves a buffer from the pool
func (bp *BufferPool) Get() *bytes.Buffer {
	buf := bp.pool.Get().(*bytes.Buffer)
	buf.Reset() // Clear any existing content
	return buf
}

// Put returns a buffer to the pool for reuse
func (bp *BufferPool) Put(buf *bytes.Buffer) {
	// Only pool buffers under a reasonable size to prevent memory bloat
	if buf.Cap() <= maxPooledSize {
		bp.pool.Put(buf)
	}
}

// ReadLimited reads r to EOF through a pooled buffer and returns a copy of
// the bytes read. A limit <= 0 disables the size check.
func (bp *BufferPool) ReadLimited(r io.Reader, limit int64) ([]byte, error) {
	buf := bp.Get()
	defer bp.Put(buf)

	src := r
	if limit > 0 {
		src = io.LimitReader(r, limit+1)
	}
	if _, err := buf.ReadFrom(src); err != nil {
		return nil, err
	}
	if limit > 0 && int64(buf.Len()) > limit {
		return nil, ErrLimitExceeded
	}
	out := make([]byte, buf.Len())
	copy(out, buf.Bytes())
	return out, nil
}
