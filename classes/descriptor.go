package classes

import (
	"github.com/dop251/goja"

	"github.com/wippyai/jsbridge/handle"
	"github.com/wippyai/jsbridge/host"
	"github.com/wippyai/jsbridge/variant"
)

// Category tags a descriptor.
type Category uint8

const (
	HostObjectClass Category = iota
	HostValueClass
	ScriptDefinedClass
)

func (c Category) String() string {
	switch c {
	case HostObjectClass:
		return "host-object"
	case HostValueClass:
		return "host-value"
	case ScriptDefinedClass:
		return "script"
	}
	return "unknown"
}

// ConstructFunc creates the native object behind a new script instance.
type ConstructFunc func(d *Descriptor, args []variant.Value) (variant.Object, error)

// FinalizeFunc releases the native side of an object whose wrapper was
// collected.
type FinalizeFunc func(d *Descriptor, obj variant.Object)

// ScriptInfo describes a class defined by a script module.
type ScriptInfo struct {
	Module     string
	Methods    []string
	Properties []string
	Signals    []string
	// Generation counts registrations; 1 after the first load.
	Generation int
}

// Descriptor is the registry record for one exposed type.
type Descriptor struct {
	Constructor ConstructFunc
	Finalizer   FinalizeFunc
	// Ctor and Prototype are nil until the class is exposed.
	Ctor      *goja.Object
	Prototype *goja.Object
	Parent    *Descriptor
	Native    *host.ClassInfo
	Script    *ScriptInfo
	Name      string
	ID        handle.NarrowID
	ValueKind variant.Kind
	Category  Category
}

// Exposed reports whether a script constructor exists for the class.
func (d *Descriptor) Exposed() bool { return d.Ctor != nil }

// NativeAncestor returns the nearest host object class in the chain.
func (d *Descriptor) NativeAncestor() *Descriptor {
	for c := d; c != nil; c = c.Parent {
		if c.Category == HostObjectClass {
			return c
		}
	}
	return nil
}
