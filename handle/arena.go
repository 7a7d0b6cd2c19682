package handle

import (
	"errors"
)

var (
	// ErrInvalidHandle is returned for zero, stale or out-of-range handles.
	ErrInvalidHandle = errors.New("invalid handle")
	// ErrTableFull is returned when no index fits the handle width.
	ErrTableFull = errors.New("handle table full")
)

// Dropper is implemented by values that release resources when removed.
type Dropper interface {
	Drop()
}

type slot[T any] struct {
	value    T
	revision uint32
	used     bool
}

// arena is the slot storage shared by both handle widths.
type arena[T any] struct {
	slots    []slot[T]
	free     []uint32
	live     int
	revMask  uint32
	maxIndex uint32
}

func newArena[T any](revMask, maxIndex uint32) arena[T] {
	return arena[T]{
		slots:    make([]slot[T], 0, 64),
		free:     make([]uint32, 0, 16),
		revMask:  revMask,
		maxIndex: maxIndex,
	}
}

func (a *arena[T]) nextRevision(r uint32) uint32 {
	r = (r + 1) & a.revMask
	if r == 0 {
		r = 1
	}
	return r
}

func (a *arena[T]) add(v T) (index, revision uint32, err error) {
	if n := len(a.free); n > 0 {
		index = a.free[n-1]
		a.free = a.free[:n-1]
		s := &a.slots[index]
		s.value = v
		s.used = true
		a.live++
		return index, s.revision, nil
	}

	if uint64(len(a.slots)) > uint64(a.maxIndex) {
		return 0, 0, ErrTableFull
	}
	a.slots = append(a.slots, slot[T]{value: v, revision: 1, used: true})
	a.live++
	return uint32(len(a.slots) - 1), 1, nil
}

func (a *arena[T]) lookup(index, revision uint32) *slot[T] {
	if revision == 0 || int(index) >= len(a.slots) {
		return nil
	}
	s := &a.slots[index]
	if !s.used || s.revision != revision {
		return nil
	}
	return s
}

func (a *arena[T]) remove(index, revision uint32) (T, bool) {
	var zero T
	s := a.lookup(index, revision)
	if s == nil {
		return zero, false
	}
	v := s.value
	s.value = zero
	s.used = false
	s.revision = a.nextRevision(s.revision)
	a.free = append(a.free, index)
	a.live--
	return v, true
}

func (a *arena[T]) clear(each func(T)) {
	for i := range a.slots {
		s := &a.slots[i]
		if !s.used {
			continue
		}
		v := s.value
		var zero T
		s.value = zero
		s.used = false
		s.revision = a.nextRevision(s.revision)
		a.free = append(a.free, uint32(i))
		a.live--
		if each != nil {
			each(v)
		}
	}
}

// each visits used slots in index order. Slots appended during iteration
// are not visited; slots removed during iteration are skipped.
func (a *arena[T]) each(fn func(index, revision uint32, v T) bool) {
	n := len(a.slots)
	for i := 0; i < n && i < len(a.slots); i++ {
		s := a.slots[i]
		if !s.used {
			continue
		}
		if !fn(uint32(i), s.revision, s.value) {
			return
		}
	}
}

func drop[T any](v T) {
	if d, ok := any(v).(Dropper); ok {
		d.Drop()
	}
}
