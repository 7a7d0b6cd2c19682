package handle

import (
	"fmt"
	"math"
)

// ID is a wide handle: index in the low 32 bits, revision in the high 32.
type ID uint64

// Index returns the slot index.
func (id ID) Index() uint32 { return uint32(id) }

// Revision returns the slot revision.
func (id ID) Revision() uint32 { return uint32(id >> 32) }

func (id ID) String() string {
	return fmt.Sprintf("%d@%d", id.Index(), id.Revision())
}

func makeID(index, revision uint32) ID {
	return ID(uint64(revision)<<32 | uint64(index))
}

// Table is a generational slot map keyed by wide handles.
type Table[T any] struct {
	a arena[T]
}

// NewTable creates an empty wide table.
func NewTable[T any]() *Table[T] {
	return &Table[T]{a: newArena[T](math.MaxUint32, math.MaxUint32-1)}
}

// NewScriptTable creates a wide table whose revisions wrap at 2^21, so
// every id is below 2^53 and survives a round trip through a script number.
func NewScriptTable[T any]() *Table[T] {
	return &Table[T]{a: newArena[T](scriptRevMask, math.MaxUint32-1)}
}

const scriptRevMask = 1<<21 - 1

// Add stores v and returns its handle.
func (t *Table[T]) Add(v T) ID {
	index, rev, err := t.a.add(v)
	if err != nil {
		// 2^32 live slots cannot be allocated in practice
		panic(err)
	}
	return makeID(index, rev)
}

// Get returns the value for id, or ErrInvalidHandle.
func (t *Table[T]) Get(id ID) (T, error) {
	s := t.a.lookup(id.Index(), id.Revision())
	if s == nil {
		var zero T
		return zero, ErrInvalidHandle
	}
	return s.value, nil
}

// Set replaces the value stored under a valid id.
func (t *Table[T]) Set(id ID, v T) error {
	s := t.a.lookup(id.Index(), id.Revision())
	if s == nil {
		return ErrInvalidHandle
	}
	s.value = v
	return nil
}

// Valid reports whether id refers to a live value.
func (t *Table[T]) Valid(id ID) bool {
	return t.a.lookup(id.Index(), id.Revision()) != nil
}

// Remove frees the slot and bumps its revision. The removed value is
// dropped if it implements Dropper.
func (t *Table[T]) Remove(id ID) (T, bool) {
	v, ok := t.a.remove(id.Index(), id.Revision())
	if ok {
		drop(v)
	}
	return v, ok
}

// Take frees the slot without dropping the value.
func (t *Table[T]) Take(id ID) (T, bool) {
	return t.a.remove(id.Index(), id.Revision())
}

// Len returns the number of live values.
func (t *Table[T]) Len() int {
	return t.a.live
}

// Each visits live values. fn may add or remove entries.
func (t *Table[T]) Each(fn func(id ID, v T) bool) {
	t.a.each(func(index, revision uint32, v T) bool {
		return fn(makeID(index, revision), v)
	})
}

// Clear removes and drops every live value.
func (t *Table[T]) Clear() {
	t.a.clear(drop[T])
}
