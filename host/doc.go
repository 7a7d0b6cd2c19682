// Package host is a small native object system with a reflection catalog.
//
// It plays the role of the engine side of the bridge: classes are described
// by ClassInfo entries in a ClassDB (methods, properties, signals, enums,
// constants, inheritance), and instances live in an Engine object database
// keyed by generational handles. Classes marked RefCounted use cooperative
// reference counting; everything else is freed explicitly.
//
// A bridge attaches to an instance through a Binding, which is told when the
// instance is freed by its owner and when its reference count changes.
package host
