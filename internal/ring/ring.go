// Package ring implements the single-producer/single-consumer egress ring
// buffer that spec.md §4.3 (C3) specifies only by contract: application
// threads push framed bytes, the network-progress goroutine peeks and pops
// the largest contiguous readable slice. None of the retrieved example
// repositories ships a userspace lock-free SPSC byte queue (the closest,
// github.com/cilium/ebpf's ringbuf, wraps a kernel-side perf ring and isn't
// usable here), so this is built directly on sync.Mutex/sync.Cond — see
// DESIGN.md.
package ring

import (
	"context"
	"errors"
	"sync"
)

// ErrRingFull is returned by TryPush when the ring has no room and the
// caller asked not to block.
var ErrRingFull = errors.New("ring: full")

// ErrClosed is returned by Push/TryPush once the ring has been closed.
var ErrClosed = errors.New("ring: closed")

// Ring is a fixed-capacity byte queue. Bytes come out in FIFO order; the
// producer side may be called from multiple application goroutines (the
// contract only requires the consumer side — Peek/Pop — be single-threaded),
// guarded here by producerMu so the module can widen single-producer to
// multi-producer per spec.md §5's note that either choice is acceptable if
// documented.
type Ring struct {
	buf  []byte
	size int

	mu         sync.Mutex
	cond       *sync.Cond
	head, tail int  // byte offsets mod size
	count      int  // bytes currently queued
	closed     bool

	producerMu sync.Mutex
}

// New constructs a ring with the given capacity in bytes.
func New(capacityBytes int) *Ring {
	if capacityBytes <= 0 {
		capacityBytes = 20 * 1024 * 1024 // spec.md §6: 0 -> 20 MiB default
	}
	r := &Ring{buf: make([]byte, capacityBytes), size: capacityBytes}
	r.cond = sync.NewCond(&r.mu)
	return r
}

// TryPush pushes p without blocking, failing with ErrRingFull if there is
// not enough room.
func (r *Ring) TryPush(p []byte) error {
	r.producerMu.Lock()
	defer r.producerMu.Unlock()

	r.mu.Lock()
	defer r.mu.Unlock()
	if r.closed {
		return ErrClosed
	}
	if r.size-r.count < len(p) {
		return ErrRingFull
	}
	r.writeLocked(p)
	r.cond.Broadcast()
	return nil
}

// Push pushes p, blocking until there is room, ctx is done, or the ring is
// closed. Backpressure is the only flow control this module provides
// (spec.md §1 non-goals).
func (r *Ring) Push(ctx context.Context, p []byte) error {
	if len(p) > r.size {
		return errors.New("ring: message larger than ring capacity")
	}

	r.producerMu.Lock()
	defer r.producerMu.Unlock()

	done := make(chan struct{})
	defer close(done)
	go func() {
		select {
		case <-ctx.Done():
			r.mu.Lock()
			r.cond.Broadcast()
			r.mu.Unlock()
		case <-done:
		}
	}()

	r.mu.Lock()
	defer r.mu.Unlock()
	for {
		if r.closed {
			return ErrClosed
		}
		if r.size-r.count >= len(p) {
			r.writeLocked(p)
			r.cond.Broadcast()
			return nil
		}
		if err := ctx.Err(); err != nil {
			return err
		}
		r.cond.Wait()
	}
}

func (r *Ring) writeLocked(p []byte) {
	n := copy(r.buf[r.tail:], p)
	if n < len(p) {
		copy(r.buf, p[n:])
	}
	r.tail = (r.tail + len(p)) % r.size
	r.count += len(p)
}

// Peek blocks until at least one byte is available, ctx is done, or the ring
// is closed and drained, then returns the largest contiguous readable slice
// (which may wrap at the end of the backing array, hence "largest
// contiguous" rather than "all queued bytes"). Returns nil with ctx.Err()
// if ctx is done before any bytes are available.
func (r *Ring) Peek(ctx context.Context) ([]byte, error) {
	done := make(chan struct{})
	defer close(done)
	go func() {
		select {
		case <-ctx.Done():
			r.mu.Lock()
			r.cond.Broadcast()
			r.mu.Unlock()
		case <-done:
		}
	}()

	r.mu.Lock()
	defer r.mu.Unlock()
	for r.count == 0 && !r.closed {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		r.cond.Wait()
	}
	if r.count == 0 {
		return nil, ctx.Err()
	}
	contig := r.size - r.head
	if contig > r.count {
		contig = r.count
	}
	return r.buf[r.head : r.head+contig], nil
}

// Pop advances the read cursor by n (n must be <= the length of the slice
// last returned by Peek).
func (r *Ring) Pop(n int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.head = (r.head + n) % r.size
	r.count -= n
	r.cond.Broadcast()
}

// Close marks the ring closed and wakes any blocked Push/Peek callers. The
// consumer may continue to Peek/Pop any bytes already queued; once drained,
// Peek returns nil. This is the cooperative wake spec.md §9 calls for so the
// progress goroutine can observe shutdown instead of spinning forever.
func (r *Ring) Close() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.closed = true
	r.cond.Broadcast()
}

// Len returns the number of bytes currently queued (for metrics/diagnostics,
// not part of the core contract).
func (r *Ring) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.count
}

// Cap returns the ring's total capacity in bytes.
func (r *Ring) Cap() int { return r.size }

// Drained reports whether the ring is closed and has no bytes left to
// consume — the progress goroutine's exit condition.
func (r *Ring) Drained() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.closed && r.count == 0
}
