// Package classes mirrors native classes into a goja runtime.
//
// The Registry keeps one Descriptor per exposed type. Host object classes
// come from the reflection catalog and are exposed recursively: the parent
// chain is exposed first and linked into both the prototype chain and the
// constructor chain, so static members and instanceof work across the
// hierarchy. Exposure is memoized; exposing a class twice returns the same
// descriptor.
//
// Value classes (Vector2, Vector3, Vector4, Color) are copied across the
// boundary instead of being bound. Script-defined classes are registered when
// a module exports a constructor that extends an exposed class; their id is
// keyed by module and survives reloads.
//
// The registry does not own wrappers. Binding native objects to script
// objects goes through a Binder, and value conversion through a Marshaller,
// both supplied by the realm.
package classes
