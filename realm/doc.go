// Package realm wires the bridge together for one goja runtime: the class
// registry, the object binding table, the module manager and the timer
// wheel, plus the script-facing globals (require, define, console, timers).
//
// A Realm is owned by the goroutine that created it. Every method except
// Post and ID asserts ownership and panics when called from elsewhere.
// Work that originates on other goroutines, including GC notifications
// for collected wrappers, is queued and drained by Update.
//
// The host drives a realm once per frame:
//
//	for running {
//		r.Update(frameTime)
//	}
//
// Close cancels timers and releases modules and bindings before the
// runtime is dropped.
package realm
