// Package variant is the native value model shared by the host object
// system and the script bridge.
//
// A Value is a closed tagged union: nil, bool, 64-bit integer, double,
// string, object reference, the fixed-size math kinds (Vector2, Vector3,
// Vector4, Color), arrays, ordered dictionaries and callables.
//
// The package also owns the numeric narrowing rules used when a 64-bit
// native integer crosses into the script value model, and the type
// descriptors used by method signatures. Descriptors reuse the WIT type
// vocabulary (s32, u8, list<T>, option<T>, ...) for primitives.
package variant
