// Package errors provides structured error types for the bridge.
//
// Errors are categorized by Phase (which component produced the error) and
// Kind (error category). The Error type carries the member path, native and
// script type names, and a cause chain.
//
// Use the Builder for structured error construction:
//
//	err := errors.New(errors.PhaseMarshal, errors.KindTypeMismatch).
//		Path("Node", "set_name").
//		Native("String").
//		Script("object").
//		Detail("cannot convert object to string").
//		Build()
//
// Or use convenience constructors for common patterns:
//
//	err := errors.ClassNotFound("Sprite3D")
//	err := errors.InvalidPath("../../x", "escapes root")
//
// All errors implement the standard error interface and support errors.Is/As.
package errors
