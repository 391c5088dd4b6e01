// Package progress runs the network-progress loop (spec.md §4.6, C6): it
// drains the egress ring into the up socket. While the ring is empty and
// open the loop waits inside ring.Peek, which blocks on a condition
// variable; it does not busy-spin.
package progress

import (
	"context"
	"log/slog"
	"runtime"

	"github.com/ocx/ambrosia-client/internal/ring"
)

// defaultHotSpinAmount is how many consecutive iterations in which Peek
// returns no bytes and no error on a ring that is not drained the loop
// allows before it calls runtime.Gosched() between attempts. Peek blocks
// while the ring is empty and open, so with the current ring this count
// does not advance.
const defaultHotSpinAmount = 256

// Writer is the subset of net.Conn the loop needs; satisfied by net.Conn.
type Writer interface {
	Write(p []byte) (int, error)
}

// Loop drains r into w until ctx is cancelled or r is closed and drained.
type Loop struct {
	r             *ring.Ring
	w             Writer
	hotSpinAmount int

	bytesSent  uint64
	sendErrors uint64
}

// New constructs a Loop with the default adaptive-spin threshold.
func New(r *ring.Ring, w Writer) *Loop {
	return &Loop{r: r, w: w, hotSpinAmount: defaultHotSpinAmount}
}

// WithHotSpinAmount overrides the spin threshold before flowing idle polls
// into scheduler yields; mainly useful for tests that want fast teardown.
func (l *Loop) WithHotSpinAmount(n int) *Loop {
	l.hotSpinAmount = n
	return l
}

// BytesSent returns the cumulative number of bytes written to the socket.
func (l *Loop) BytesSent() uint64 { return l.bytesSent }

// Run blocks until ctx is cancelled or the ring is closed and fully
// drained, writing every byte it pops to w in the order it was pushed.
func (l *Loop) Run(ctx context.Context) error {
	idle := 0
	for {
		if err := ctx.Err(); err != nil {
			return err
		}

		chunk, err := l.r.Peek(ctx)
		if len(chunk) == 0 {
			if l.r.Drained() {
				slog.Debug("progress: ring drained, exiting")
				return nil
			}
			if err != nil {
				return err
			}
			idle++
			if idle > l.hotSpinAmount {
				runtime.Gosched()
			}
			continue
		}
		idle = 0

		n, err := writeAll(l.w, chunk)
		l.r.Pop(n)
		if err != nil {
			l.sendErrors++
			slog.Error("progress: write to up socket failed", "err", err, "bytesWritten", n)
			return err
		}
		l.bytesSent += uint64(n)
	}
}

// writeAll writes p to w in full, returning the number of bytes actually
// written even on error (so the caller can still Pop the bytes it knows the
// socket accepted).
func writeAll(w Writer, p []byte) (int, error) {
	total := 0
	for total < len(p) {
		n, err := w.Write(p[total:])
		total += n
		if err != nil {
			return total, err
		}
	}
	return total, nil
}
