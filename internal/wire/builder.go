package wire

import (
	"errors"

	"github.com/ocx/ambrosia-client/internal/varint"
)

// ErrBufferOverflow is returned by Builder when a write would exceed the
// caller-supplied capacity. The source's write_* functions took no capacity
// argument at all; spec.md §4.2/§9 calls that an identified bug this rewrite
// must close.
var ErrBufferOverflow = errors.New("wire: frame would exceed buffer capacity")

// Builder is a bounded cursor over a caller-owned byte slice. Every Write*
// method checks capacity before mutating buf.
type Builder struct {
	buf []byte
	pos int
}

// NewBuilder wraps buf for writing, starting at offset 0.
func NewBuilder(buf []byte) *Builder {
	return &Builder{buf: buf}
}

// Len returns the number of bytes written so far.
func (b *Builder) Len() int { return b.pos }

// Bytes returns the written prefix of the underlying buffer.
func (b *Builder) Bytes() []byte { return b.buf[:b.pos] }

func (b *Builder) remaining() int { return len(b.buf) - b.pos }

// WriteByte appends a single byte.
func (b *Builder) WriteByte(c byte) error {
	if b.remaining() < 1 {
		return ErrBufferOverflow
	}
	b.buf[b.pos] = c
	b.pos++
	return nil
}

// WriteBytes appends p verbatim.
func (b *Builder) WriteBytes(p []byte) error {
	if b.remaining() < len(p) {
		return ErrBufferOverflow
	}
	copy(b.buf[b.pos:], p)
	b.pos += len(p)
	return nil
}

// WriteVarint appends the zig-zag base-128 encoding of v.
func (b *Builder) WriteVarint(v int32) error {
	n, err := varint.Encode(v, b.buf[b.pos:])
	if err != nil {
		return ErrBufferOverflow
	}
	b.pos += n
	return nil
}
