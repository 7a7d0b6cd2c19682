// Package affinity pins components to the goroutine that created them.
package affinity

import (
	"fmt"

	"github.com/petermattis/goid"
)

// Owner records the goroutine that owns a component.
type Owner struct {
	id int64
}

// Capture returns an Owner for the calling goroutine.
func Capture() Owner {
	return Owner{id: goid.Get()}
}

// ID returns the owning goroutine id.
func (o Owner) ID() int64 { return o.id }

// Owned reports whether the caller runs on the owning goroutine. A zero
// Owner is never owned.
func (o Owner) Owned() bool {
	return o.id != 0 && goid.Get() == o.id
}

// Check panics when called from a goroutine other than the owner. Crossing
// goroutines is a programming error, not a recoverable condition.
func (o Owner) Check(op string) {
	if o.id == 0 {
		return
	}
	if g := goid.Get(); g != o.id {
		panic(fmt.Sprintf("jsbridge: %s called from goroutine %d, owner is %d", op, g, o.id))
	}
}
