package host

import (
	"github.com/wippyai/jsbridge/errors"
	"github.com/wippyai/jsbridge/handle"
	"github.com/wippyai/jsbridge/variant"
)

// Binding is attached to an instance by a bridge.
type Binding interface {
	// Freed is called when the owner destroys the instance. The binding is
	// already detached when Freed runs.
	Freed(inst *Instance)
	// ReferenceChanged is called after the reference count of a refcounted
	// instance changes. On decrement the result reports whether the binding
	// allows the instance to die.
	ReferenceChanged(inst *Instance, increment bool) bool
}

// Instance is a native object.
type Instance struct {
	// Data is free for class implementations.
	Data      any
	binding   Binding
	engine    *Engine
	class     *ClassInfo
	props     map[string]variant.Value
	signals   map[string][]variant.Callable
	id        handle.ID
	refs      int32
	refInit   bool
	destroyed bool
}

func (i *Instance) InstanceID() uint64 { return uint64(i.id) }
func (i *Instance) ClassName() string  { return i.class.Name }
func (i *Instance) Class() *ClassInfo  { return i.class }
func (i *Instance) Engine() *Engine    { return i.engine }
func (i *Instance) IsRefCounted() bool { return i.class.RefCounted }
func (i *Instance) Destroyed() bool    { return i.destroyed }
func (i *Instance) RefCount() int32    { return i.refs }
func (i *Instance) Binding() Binding   { return i.binding }

// Pending reports whether a refcounted instance has never been referenced.
// A pending instance is destroyed by the first owner that drops it.
func (i *Instance) Pending() bool {
	return i.class.RefCounted && !i.refInit && !i.destroyed
}

// SetBinding attaches b. Only one binding may be attached.
func (i *Instance) SetBinding(b Binding) error {
	if i.destroyed {
		return errors.Disposed(errors.PhaseBind, i.class.Name)
	}
	if i.binding != nil && b != nil {
		return errors.AlreadyExists(errors.PhaseBind, "binding for", i.class.Name)
	}
	i.binding = b
	return nil
}

// InitRef moves a pending instance into the live state with one reference.
// On an already live instance it behaves like Reference.
func (i *Instance) InitRef() bool {
	if !i.class.RefCounted || i.destroyed {
		return false
	}
	if i.refInit {
		return i.Reference()
	}
	i.refInit = true
	i.refs = 1
	return true
}

// Reference increments the reference count.
func (i *Instance) Reference() bool {
	if !i.class.RefCounted || i.destroyed {
		return false
	}
	i.refInit = true
	i.refs++
	if i.binding != nil {
		i.binding.ReferenceChanged(i, true)
	}
	return true
}

// Unreference decrements the reference count and reports whether the
// instance should be destroyed.
func (i *Instance) Unreference() bool {
	if !i.class.RefCounted || i.destroyed || i.refs == 0 {
		return false
	}
	i.refs--
	die := i.refs == 0
	if i.binding != nil {
		die = i.binding.ReferenceChanged(i, false) && die
	}
	return die
}

// Get reads a stored property value.
func (i *Instance) Get(name string) variant.Value {
	return i.props[name]
}

// Set stores a property value.
func (i *Instance) Set(name string, v variant.Value) {
	if i.props == nil {
		i.props = make(map[string]variant.Value)
	}
	i.props[name] = v
}

// Connect subscribes target to a declared signal.
func (i *Instance) Connect(signal string, target variant.Callable) error {
	if i.engine.db.FindSignal(i.class.Name, signal) == nil {
		return errors.NotFound(errors.PhaseRuntime, "signal", i.class.Name+"."+signal)
	}
	if i.IsConnected(signal, target) {
		return errors.AlreadyExists(errors.PhaseRuntime, "connection to", signal)
	}
	if i.signals == nil {
		i.signals = make(map[string][]variant.Callable)
	}
	i.signals[signal] = append(i.signals[signal], target)
	return nil
}

// Disconnect removes a connection made with Connect.
func (i *Instance) Disconnect(signal string, target variant.Callable) error {
	list := i.signals[signal]
	for n, c := range list {
		if sameCallable(c, target) {
			i.signals[signal] = append(list[:n:n], list[n+1:]...)
			return nil
		}
	}
	return errors.NotFound(errors.PhaseRuntime, "connection to", signal)
}

func (i *Instance) IsConnected(signal string, target variant.Callable) bool {
	for _, c := range i.signals[signal] {
		if sameCallable(c, target) {
			return true
		}
	}
	return false
}

// Emit calls every connected target. Targets connected or disconnected
// during emission take effect on the next Emit.
func (i *Instance) Emit(signal string, args ...variant.Value) error {
	if i.engine.db.FindSignal(i.class.Name, signal) == nil {
		return errors.NotFound(errors.PhaseRuntime, "signal", i.class.Name+"."+signal)
	}
	targets := append([]variant.Callable(nil), i.signals[signal]...)
	for _, c := range targets {
		if _, err := c.Call(args...); err != nil {
			return err
		}
	}
	return nil
}

// Equaler lets callables that wrap the same underlying function compare
// equal even when the wrappers differ.
type Equaler interface {
	Equal(other variant.Callable) bool
}

func sameCallable(a, b variant.Callable) bool {
	if eq, ok := a.(Equaler); ok {
		return eq.Equal(b)
	}
	return a == b
}
