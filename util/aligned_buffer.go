package util

import (
	"unsafe"
)

// AlignedBuffer is a growable byte buffer whose storage starts at an address
// that is a multiple of its alignment, as required by direct I/O.
//
// Capacity is always a multiple of the alignment and the cursor never
// exceeds the capacity.
type AlignedBuffer struct {
	alignment int
	backing   []byte // over-allocated raw storage
	buf       []byte // aligned window of backing, len(buf) == capacity
	cursor    int
}

func NewAlignedBuffer(alignment int) *AlignedBuffer {
	b := &AlignedBuffer{}
	b.SetAlignment(alignment)
	return b
}

func (b *AlignedBuffer) SetAlignment(alignment int) {
	Assert(IsPowerOfTwo(alignment))
	b.alignment = alignment
}

func (b *AlignedBuffer) Alignment() int {
	return b.alignment
}

func (b *AlignedBuffer) Capacity() int {
	return len(b.buf)
}

func (b *AlignedBuffer) Size() int {
	return b.cursor
}

func (b *AlignedBuffer) Free() int {
	return len(b.buf) - b.cursor
}

func (b *AlignedBuffer) SetSize(n int) {
	Assert(n >= 0 && n <= len(b.buf))
	b.cursor = n
}

// Bytes returns the filled part of the buffer. The slice is only valid until
// the next mutating call.
func (b *AlignedBuffer) Bytes() []byte {
	return b.buf[:b.cursor]
}

// AllocateNewBuffer replaces the storage with one of at least requested
// bytes rounded up to the alignment. When copyData is set the filled bytes
// are carried over, otherwise the buffer is reset.
func (b *AlignedBuffer) AllocateNewBuffer(requested int, copyData bool) {
	Assert(b.alignment > 0)
	newCapacity := Roundup(requested, b.alignment)
	Assert(!copyData || newCapacity >= b.cursor)

	backing := make([]byte, newCapacity+b.alignment)
	offset := alignOffset(backing, b.alignment)
	buf := backing[offset : offset+newCapacity : offset+newCapacity]

	if copyData {
		copy(buf, b.buf[:b.cursor])
	} else {
		b.cursor = 0
	}
	b.backing = backing
	b.buf = buf
}

// Append copies as much of src as fits and returns the number of bytes
// copied.
func (b *AlignedBuffer) Append(src []byte) int {
	n := copy(b.buf[b.cursor:], src)
	b.cursor += n
	return n
}

// Read returns a copy of up to n bytes starting at offset.
func (b *AlignedBuffer) Read(offset, n int) []byte {
	if offset >= b.cursor || n <= 0 {
		return nil
	}
	end := MinInt(offset+n, b.cursor)
	out := make([]byte, end-offset)
	copy(out, b.buf[offset:end])
	return out
}

// PadToAlignmentWith fills the buffer with padding up to the next multiple
// of the alignment.
func (b *AlignedBuffer) PadToAlignmentWith(padding byte) {
	padded := Roundup(b.cursor, b.alignment)
	Assert(padded <= len(b.buf))
	for i := b.cursor; i < padded; i++ {
		b.buf[i] = padding
	}
	b.cursor = padded
}

// RefitTail moves tailSize bytes starting at tailOffset to the front of the
// buffer.
func (b *AlignedBuffer) RefitTail(tailOffset, tailSize int) {
	Assert(tailOffset+tailSize <= len(b.buf))
	if tailSize > 0 {
		copy(b.buf, b.buf[tailOffset:tailOffset+tailSize])
	}
	b.cursor = tailSize
}

// IsAligned reports whether the first byte of p sits on an alignment
// boundary.
func IsAligned(p []byte, alignment int) bool {
	if len(p) == 0 {
		return true
	}
	return uintptr(unsafe.Pointer(&p[0]))&uintptr(alignment-1) == 0
}

// AlignedSlice returns a zeroed slice of length n whose first byte is aligned.
func AlignedSlice(n, alignment int) []byte {
	backing := make([]byte, n+alignment)
	offset := alignOffset(backing, alignment)
	return backing[offset : offset+n : offset+n]
}

func alignOffset(p []byte, alignment int) int {
	addr := uintptr(unsafe.Pointer(&p[0]))
	rem := int(addr & uintptr(alignment-1))
	if rem == 0 {
		return 0
	}
	return alignment - rem
}
