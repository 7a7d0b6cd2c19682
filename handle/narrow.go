package handle

import (
	"fmt"
)

const (
	narrowIndexBits = 24
	narrowIndexMask = 1<<narrowIndexBits - 1
	narrowRevMask   = 0xff
)

// NarrowID is a 32-bit handle: 24-bit index, 8-bit revision.
type NarrowID uint32

// Index returns the slot index.
func (id NarrowID) Index() uint32 { return uint32(id) & narrowIndexMask }

// Revision returns the slot revision.
func (id NarrowID) Revision() uint32 { return uint32(id) >> narrowIndexBits }

func (id NarrowID) String() string {
	return fmt.Sprintf("%d@%d", id.Index(), id.Revision())
}

func makeNarrow(index, revision uint32) NarrowID {
	return NarrowID(revision<<narrowIndexBits | index)
}

// NarrowTable is a generational slot map keyed by narrow handles.
type NarrowTable[T any] struct {
	a arena[T]
}

// NewNarrowTable creates an empty narrow table.
func NewNarrowTable[T any]() *NarrowTable[T] {
	return &NarrowTable[T]{a: newArena[T](narrowRevMask, narrowIndexMask)}
}

// Add stores v and returns its handle. It fails with ErrTableFull once
// every 24-bit index is live.
func (t *NarrowTable[T]) Add(v T) (NarrowID, error) {
	index, rev, err := t.a.add(v)
	if err != nil {
		return 0, err
	}
	return makeNarrow(index, rev), nil
}

// Get returns the value for id, or ErrInvalidHandle.
func (t *NarrowTable[T]) Get(id NarrowID) (T, error) {
	s := t.a.lookup(id.Index(), id.Revision())
	if s == nil {
		var zero T
		return zero, ErrInvalidHandle
	}
	return s.value, nil
}

// Set replaces the value stored under a valid id.
func (t *NarrowTable[T]) Set(id NarrowID, v T) error {
	s := t.a.lookup(id.Index(), id.Revision())
	if s == nil {
		return ErrInvalidHandle
	}
	s.value = v
	return nil
}

// Valid reports whether id refers to a live value.
func (t *NarrowTable[T]) Valid(id NarrowID) bool {
	return t.a.lookup(id.Index(), id.Revision()) != nil
}

// Remove frees the slot and bumps its revision, dropping the value.
func (t *NarrowTable[T]) Remove(id NarrowID) (T, bool) {
	v, ok := t.a.remove(id.Index(), id.Revision())
	if ok {
		drop(v)
	}
	return v, ok
}

// Len returns the number of live values.
func (t *NarrowTable[T]) Len() int {
	return t.a.live
}

// Each visits live values. fn may add or remove entries.
func (t *NarrowTable[T]) Each(fn func(id NarrowID, v T) bool) {
	t.a.each(func(index, revision uint32, v T) bool {
		return fn(makeNarrow(index, revision), v)
	})
}

// Clear removes and drops every live value.
func (t *NarrowTable[T]) Clear() {
	t.a.clear(drop[T])
}
