package binding

import (
	"weak"

	"github.com/dop251/goja"
)

// wrapperRef holds a wrapper either weakly or strongly. The weak pointer is
// kept in both states so a demoted reference still resolves while the
// wrapper is reachable from script. promote and demote are the only
// transitions.
type wrapperRef struct {
	weak   weak.Pointer[goja.Object]
	strong *goja.Object
}

func weakRef(w *goja.Object) wrapperRef {
	return wrapperRef{weak: weak.Make(w)}
}

func (r wrapperRef) isStrong() bool { return r.strong != nil }

// value returns the wrapper, or nil once a weak wrapper was collected.
func (r wrapperRef) value() *goja.Object {
	if r.strong != nil {
		return r.strong
	}
	return r.weak.Value()
}

// promote captures the wrapper strongly. It fails when the wrapper is gone.
func (r wrapperRef) promote() (wrapperRef, bool) {
	if r.strong != nil {
		return r, true
	}
	w := r.weak.Value()
	if w == nil {
		return r, false
	}
	return wrapperRef{weak: r.weak, strong: w}, true
}

func (r wrapperRef) demote() wrapperRef {
	return wrapperRef{weak: r.weak}
}
