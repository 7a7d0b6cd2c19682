//go:build bridgedebug

package assert

// Enabled is true in bridgedebug builds.
const Enabled = true
