// Package handle provides generational slot maps.
//
// A handle packs a slot index with a revision counter. Removing a value bumps
// the slot revision, so a stale handle never aliases the value that later
// reuses the slot. Revision 0 is reserved: the zero handle is never valid.
//
// Two widths are provided:
//
//   - ID (64 bits): 32-bit index, 32-bit revision. Used for native object
//     bindings where a long-running process must not see collisions.
//   - NarrowID (32 bits): 24-bit index, 8-bit revision. Used for class and
//     timer identifiers. The revision wraps after 255 reuses of one slot;
//     a handle held across that many reuses of the same slot can alias.
//
// Tables are not safe for concurrent use. Callers serialize access.
package handle
