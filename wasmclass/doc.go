// Package wasmclass turns core WebAssembly modules into host classes.
//
// Every exported function whose signature uses only numeric value types
// becomes a static method of the class. Parameters map i32, i64, f32 and
// f64 to s32, s64, f32 and f64 descriptors; multiple results come back
// as an array.
package wasmclass
