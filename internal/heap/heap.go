// ABOUTME: Transient packet regions for handing bytes to a codec engine
// ABOUTME: Scoped acquire/copy/release with a reusable per-session slab
package heap

import "sync"

// Heap hands out transient regions for one decoder session.
// A Heap is never shared between sessions.
type Heap struct {
	mu       sync.Mutex
	slab     []byte
	live     int
	acquired uint64
}

// Region is a byte range valid between Acquire and Release
type Region struct {
	heap     *Heap
	buf      []byte
	released bool
}

// New creates an empty heap
func New() *Heap {
	return &Heap{}
}

// Acquire returns a region of exactly n bytes.
// The slab is reused while no other region is live.
func (h *Heap) Acquire(n int) *Region {
	h.mu.Lock()
	defer h.mu.Unlock()

	var buf []byte
	if h.live == 0 {
		if cap(h.slab) < n {
			h.slab = make([]byte, n)
		}
		buf = h.slab[:n:n]
	} else {
		buf = make([]byte, n)
	}

	h.live++
	h.acquired++
	return &Region{heap: h, buf: buf}
}

// Release returns the region to the heap. Releasing twice is a no-op.
func (h *Heap) Release(r *Region) {
	if r == nil || r.heap != h {
		return
	}

	h.mu.Lock()
	defer h.mu.Unlock()

	if r.released {
		return
	}
	r.released = true
	r.buf = nil
	h.live--
}

// With copies packet into a fresh region, calls fn with it and releases the
// region on every exit path. fn must not keep the slice after returning.
func (h *Heap) With(packet []byte, fn func(region []byte) error) error {
	r := h.Acquire(len(packet))
	defer h.Release(r)

	copy(r.buf, packet)
	return fn(r.buf)
}

// Live returns the number of regions not yet released
func (h *Heap) Live() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.live
}

// Acquired returns how many regions have been handed out in total
func (h *Heap) Acquired() uint64 {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.acquired
}

// Bytes returns the region's memory, nil once released
func (r *Region) Bytes() []byte {
	return r.buf
}
