package variant

import (
	"math"

	"github.com/wippyai/jsbridge/errors"
)

// Rep is the script-side numeric representation chosen for a native integer.
type Rep uint8

const (
	RepInt32 Rep = iota
	RepUint32
	RepFloat64
)

func (r Rep) String() string {
	switch r {
	case RepInt32:
		return "int32"
	case RepUint32:
		return "uint32"
	}
	return "float64"
}

// Narrowed is the result of fitting a 64-bit integer into the script
// number model.
type Narrowed struct {
	Int   int64
	Float float64
	Rep   Rep
	// Exact is false when the double cannot reproduce the original integer.
	Exact bool
}

// Narrow picks the representation for v. Values in [-2^31, 2^31) become
// int32, values in [2^31, 2^32) become uint32 and everything else becomes a
// double.
func Narrow(v int64) Narrowed {
	switch {
	case v >= math.MinInt32 && v <= math.MaxInt32:
		return Narrowed{Int: v, Float: float64(v), Rep: RepInt32, Exact: true}
	case v > math.MaxInt32 && v <= math.MaxUint32:
		return Narrowed{Int: v, Float: float64(v), Rep: RepUint32, Exact: true}
	}
	f := float64(v)
	return Narrowed{Int: v, Float: f, Rep: RepFloat64, Exact: roundTrips(v, f)}
}

func roundTrips(v int64, f float64) bool {
	// 2^63 rounds up from MaxInt64 and has no int64 form
	if f >= math.MaxInt64 || f < math.MinInt64 {
		return false
	}
	return int64(f) == v
}

// Policy decides what happens when a 64-bit integer cannot be narrowed
// without loss.
type Policy uint8

const (
	// NarrowLossy falls back to the nearest double. Callers log a diagnostic.
	NarrowLossy Policy = iota
	// NarrowStrict rejects integers a double cannot reproduce.
	NarrowStrict
)

func (p Policy) String() string {
	if p == NarrowStrict {
		return "strict"
	}
	return "lossy"
}

// ParsePolicy parses "lossy" or "strict". Empty selects lossy.
func ParsePolicy(s string) (Policy, error) {
	switch s {
	case "", "lossy":
		return NarrowLossy, nil
	case "strict":
		return NarrowStrict, nil
	}
	return 0, errors.InvalidInput(errors.PhaseConfig, "unknown narrowing policy "+s)
}

// Apply narrows v under the policy.
func (p Policy) Apply(v int64) (Narrowed, error) {
	n := Narrow(v)
	if !n.Exact && p == NarrowStrict {
		return n, errors.Overflow(errors.PhaseMarshal, nil, v, "float64")
	}
	return n, nil
}
