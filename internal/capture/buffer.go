// Package capture provides the bounded output window used while classifying
// build output.
//
// The primary component is RollingBuffer, a circular byte buffer that keeps
// the most recent N bytes of a stream. When a write would exceed the ceiling,
// the oldest bytes are evicted first, so the buffer behaves as a sliding
// window over everything written since the last Reset.
package capture

import "sync"

// DefaultSize is the default ceiling for a RollingBuffer (100 KiB).
const DefaultSize = 100 * 1024

// RollingBuffer is a thread-safe circular buffer holding the tail of a stream.
//
// The buffer maintains two positions:
//   - start: the oldest byte in the buffer
//   - end: where the next byte will be written
//
// Visual example with a 5-byte buffer:
//
//	Initial:     [_, _, _, _, _]  start=0, end=0
//	Write "abc": [a, b, c, _, _]  start=0, end=3
//	Write "de":  [a, b, c, d, e]  start=0, end=0, full=true
//	Write "fg":  [f, g, c, d, e]  start=2, end=2 → String() returns "cdefg"
//
// RollingBuffer implements io.Writer.
type RollingBuffer struct {
	mu    sync.RWMutex
	data  []byte
	size  int
	start int
	end   int
	full  bool
}

// NewRollingBuffer creates a buffer holding at most size bytes.
// A non-positive size selects DefaultSize.
func NewRollingBuffer(size int) *RollingBuffer {
	if size <= 0 {
		size = DefaultSize
	}
	return &RollingBuffer{
		data: make([]byte, size),
		size: size,
	}
}

// Write appends p, evicting the oldest bytes when the ceiling is exceeded.
// Write always succeeds and returns len(p), nil.
func (r *RollingBuffer) Write(p []byte) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.write(p)
	return len(p), nil
}

// WriteString is Write for strings.
func (r *RollingBuffer) WriteString(s string) (int, error) {
	return r.Write([]byte(s))
}

// write copies p into the ring in at most two segments. Caller must hold mu.
func (r *RollingBuffer) write(p []byte) {
	n := len(p)
	if n == 0 {
		return
	}

	// Only the last size bytes of an oversized write can survive.
	if n >= r.size {
		copy(r.data, p[n-r.size:])
		r.start, r.end, r.full = 0, 0, true
		return
	}

	free := r.size - r.len()
	first := copy(r.data[r.end:], p)
	if first < n {
		copy(r.data, p[first:])
	}
	r.end = (r.end + n) % r.size

	if n >= free {
		r.full = true
		r.start = r.end
	}
}

// Bytes returns a copy of the buffered data, oldest first.
func (r *RollingBuffer) Bytes() []byte {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]byte, 0, r.len())
	if r.full || r.end < r.start {
		out = append(out, r.data[r.start:]...)
		out = append(out, r.data[:r.end]...)
	} else {
		out = append(out, r.data[r.start:r.end]...)
	}
	return out
}

// String returns the buffered data as a string, oldest first.
func (r *RollingBuffer) String() string {
	return string(r.Bytes())
}

// Len returns the number of bytes currently stored, never more than Cap.
func (r *RollingBuffer) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.len()
}

func (r *RollingBuffer) len() int {
	if r.full {
		return r.size
	}
	if r.end >= r.start {
		return r.end - r.start
	}
	return r.size - r.start + r.end
}

// Cap returns the byte ceiling.
func (r *RollingBuffer) Cap() int {
	return r.size
}

// Reset discards all stored data. The backing array is kept.
func (r *RollingBuffer) Reset() {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.start = 0
	r.end = 0
	r.full = false
}
