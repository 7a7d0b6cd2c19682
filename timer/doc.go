// Package timer implements a hierarchical timing wheel driven by elapsed
// frame time.
//
// Level L has Slots slots, each spanning Granularity*Slots^L. A timer is
// placed on the lowest level whose span holds its remaining delay. Every
// base tick advances level 0; when a level completes a rotation the next
// slot of the level above cascades down and its timers are re-placed at
// the finer granularity. Due timers move to an activated list that Invoke
// drains.
//
// The wheel is not safe for concurrent use. Tick and Invoke are called
// from the goroutine that owns the callbacks, and callbacks may schedule
// or cancel timers re-entrantly.
package timer
