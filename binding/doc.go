// Package binding tracks the association between native objects and their
// script wrappers.
//
// Every bound object has one ObjectHandle. The handle holds the wrapper
// through a two-state reference: weak while the reference count is zero, so
// the Go collector may reclaim the wrapper, and strong while the native side
// holds references. When a weakly held wrapper is collected, a cleanup posts
// the handle id to the owning realm, which calls Collected on its own
// goroutine; the class finalizer then runs exactly once.
//
// Native-initiated unbinds (the owner destroyed the object) skip the
// finalizer, since the object is already being torn down.
package binding
