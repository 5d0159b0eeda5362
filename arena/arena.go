// Package arena implements the LIFO scratch allocator that supplies every
// temporary buffer used by the detectors.
//
// Allocations are carved from one fixed region in stack order and must be
// released in exact reverse order. Detectors take a Mark on entry and defer
// Release so that every exit path, including errors, leaves the arena exactly as
// it was found.
//
// An Arena is not safe for concurrent use. Interleaving pushes and pops from two
// callers corrupts the stack discipline; Pop and Release panic when they detect
// it.
package arena

import (
	"fmt"
	"unsafe"

	"github.com/ironsheep/vision-engine/imaging"
)

// Align is the byte alignment of every allocation.
const Align = 8

// Word lists the pointer-free element types an allocation may hold.
type Word interface {
	~int8 | ~uint8 | ~int16 | ~uint16 | ~int32 | ~uint32 | ~int64 | ~uint64 | ~float32 | ~float64
}

// Arena is a fixed-size LIFO region.
type Arena struct {
	mem   []uint64 // backing store, uint64 for alignment
	top   int      // bytes in use
	stack []int    // offsets where each live allocation starts
	high  int
}

// Mark records a stack depth for Release.
type Mark struct {
	depth int
	top   int
}

// New returns an arena holding size bytes, rounded down to Align.
func New(size int) *Arena {
	if size < 0 {
		size = 0
	}
	return &Arena{mem: make([]uint64, size/Align)}
}

// Size returns the capacity in bytes.
func (a *Arena) Size() int { return len(a.mem) * Align }

// Used returns the bytes held by live allocations.
func (a *Arena) Used() int { return a.top }

// Free returns the bytes still available.
func (a *Arena) Free() int { return a.Size() - a.top }

// Depth returns the number of live allocations.
func (a *Arena) Depth() int { return len(a.stack) }

// HighWater returns the largest Used value seen since creation or the last
// ResetHighWater.
func (a *Arena) HighWater() int { return a.high }

// ResetHighWater sets the high-water mark to the current usage.
func (a *Arena) ResetHighWater() { a.high = a.top }

// Aligned rounds n bytes up to the allocation granularity.
func Aligned(n int) int {
	return (n + Align - 1) &^ (Align - 1)
}

// SizeOf returns the arena bytes consumed by an allocation of n elements of T.
func SizeOf[T Word](n int) int {
	var zero T
	return Aligned(n * int(unsafe.Sizeof(zero)))
}

// Push allocates n zeroed elements of T on top of the stack. On failure the
// arena is unchanged and the error wraps imaging.ErrOutOfMemory.
func Push[T Word](a *Arena, n int) ([]T, error) {
	if n < 0 {
		return nil, fmt.Errorf("negative allocation of %d elements: %w", n, imaging.ErrInvalidParameter)
	}
	size := SizeOf[T](n)
	if size > a.Free() {
		return nil, fmt.Errorf("scratch arena needs %d bytes, %d free: %w", size, a.Free(), imaging.ErrOutOfMemory)
	}

	start := a.top
	a.stack = append(a.stack, start)
	a.top += size
	if a.top > a.high {
		a.high = a.top
	}
	if n == 0 {
		return []T{}, nil
	}

	words := a.mem[start/Align : a.top/Align]
	clear(words)
	return unsafe.Slice((*T)(unsafe.Pointer(&words[0])), n), nil
}

// Pop releases the most recent allocation.
func (a *Arena) Pop() {
	if len(a.stack) == 0 {
		panic("arena: pop on empty stack")
	}
	a.top = a.stack[len(a.stack)-1]
	a.stack = a.stack[:len(a.stack)-1]
}

// Mark returns the current stack position.
func (a *Arena) Mark() Mark {
	return Mark{depth: len(a.stack), top: a.top}
}

// Release pops every allocation made after m, newest first.
func (a *Arena) Release(m Mark) {
	if m.depth > len(a.stack) {
		panic("arena: release of a mark above the stack top")
	}
	for len(a.stack) > m.depth {
		a.Pop()
	}
	if a.top != m.top {
		panic("arena: release does not restore the marked position")
	}
}

// Need returns an error wrapping imaging.ErrOutOfMemory when fewer than n bytes
// are free. Detectors call it before scanning so that exhaustion is reported
// before any work starts.
func (a *Arena) Need(n int) error {
	if n > a.Free() {
		return fmt.Errorf("scratch arena needs %d bytes, %d free: %w", n, a.Free(), imaging.ErrOutOfMemory)
	}
	return nil
}
