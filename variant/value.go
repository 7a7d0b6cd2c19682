package variant

import (
	"fmt"
	"math"
	"strconv"
	"strings"
)

// Kind identifies the case of a Value.
type Kind uint8

const (
	KindNil Kind = iota
	KindBool
	KindInt
	KindFloat
	KindString
	KindObject
	KindVector2
	KindVector3
	KindVector4
	KindColor
	KindArray
	KindDictionary
	KindCallable
)

var kindNames = [...]string{
	KindNil:        "nil",
	KindBool:       "bool",
	KindInt:        "int",
	KindFloat:      "float",
	KindString:     "string",
	KindObject:     "object",
	KindVector2:    "vector2",
	KindVector3:    "vector3",
	KindVector4:    "vector4",
	KindColor:      "color",
	KindArray:      "array",
	KindDictionary: "dictionary",
	KindCallable:   "callable",
}

func (k Kind) String() string {
	if int(k) < len(kindNames) {
		return kindNames[k]
	}
	return "kind(" + strconv.Itoa(int(k)) + ")"
}

// Components returns the number of float components of a math kind, or 0.
func (k Kind) Components() int {
	switch k {
	case KindVector2:
		return 2
	case KindVector3:
		return 3
	case KindVector4, KindColor:
		return 4
	}
	return 0
}

// Object is a native object as seen by the value model.
type Object interface {
	InstanceID() uint64
	ClassName() string
}

// Callable is a native function value.
type Callable interface {
	Call(args ...Value) (Value, error)
	Name() string
}

// Value is a native value. The zero Value is nil.
type Value struct {
	ref  any
	s    string
	vec  [4]float64
	i    int64
	f    float64
	kind Kind
}

func Nil() Value { return Value{} }

func Bool(b bool) Value {
	v := Value{kind: KindBool}
	if b {
		v.i = 1
	}
	return v
}

func Int(i int64) Value { return Value{kind: KindInt, i: i} }

func Float(f float64) Value { return Value{kind: KindFloat, f: f} }

func String(s string) Value { return Value{kind: KindString, s: s} }

func Vec2(x, y float64) Value {
	return Value{kind: KindVector2, vec: [4]float64{x, y}}
}

func Vec3(x, y, z float64) Value {
	return Value{kind: KindVector3, vec: [4]float64{x, y, z}}
}

func Vec4(x, y, z, w float64) Value {
	return Value{kind: KindVector4, vec: [4]float64{x, y, z, w}}
}

func RGBA(r, g, b, a float64) Value {
	return Value{kind: KindColor, vec: [4]float64{r, g, b, a}}
}

// Math builds a math kind from its components. Missing components are zero.
func Math(kind Kind, c ...float64) Value {
	v := Value{kind: kind}
	copy(v.vec[:kind.Components()], c)
	return v
}

// FromObject wraps an object reference. A nil object yields Nil.
func FromObject(o Object) Value {
	if o == nil {
		return Value{}
	}
	return Value{kind: KindObject, ref: o}
}

// Array builds an array value. The slice is not copied.
func Array(items ...Value) Value {
	if items == nil {
		items = []Value{}
	}
	return Value{kind: KindArray, ref: items}
}

// Dict wraps a dictionary. A nil dictionary becomes an empty one.
func Dict(d *Dictionary) Value {
	if d == nil {
		d = NewDictionary()
	}
	return Value{kind: KindDictionary, ref: d}
}

// FromCallable wraps a callable. A nil callable yields Nil.
func FromCallable(c Callable) Value {
	if c == nil {
		return Value{}
	}
	return Value{kind: KindCallable, ref: c}
}

func (v Value) Kind() Kind { return v.kind }

func (v Value) IsNil() bool { return v.kind == KindNil }

// Bool returns the truthiness of the value.
func (v Value) Bool() bool { return v.truthy() }

// Str returns the string payload. Use String for a display form.
func (v Value) Str() string { return v.s }

// Int returns the integer value. Floats are truncated.
func (v Value) Int() int64 {
	switch v.kind {
	case KindInt, KindBool:
		return v.i
	case KindFloat:
		return int64(v.f)
	}
	return 0
}

// Float returns the numeric value as a double.
func (v Value) Float() float64 {
	switch v.kind {
	case KindInt, KindBool:
		return float64(v.i)
	case KindFloat:
		return v.f
	}
	return 0
}

// Components returns the float components of a math value.
func (v Value) Components() []float64 {
	n := v.kind.Components()
	out := make([]float64, n)
	copy(out, v.vec[:n])
	return out
}

// Component returns component i of a math value.
func (v Value) Component(i int) float64 {
	if i < 0 || i >= v.kind.Components() {
		return 0
	}
	return v.vec[i]
}

func (v Value) Object() Object {
	o, _ := v.ref.(Object)
	return o
}

func (v Value) Items() []Value {
	items, _ := v.ref.([]Value)
	return items
}

func (v Value) Dictionary() *Dictionary {
	d, _ := v.ref.(*Dictionary)
	return d
}

func (v Value) Callable() Callable {
	c, _ := v.ref.(Callable)
	return c
}

func (v Value) truthy() bool {
	switch v.kind {
	case KindNil:
		return false
	case KindBool, KindInt:
		return v.i != 0
	case KindFloat:
		return v.f != 0 && !math.IsNaN(v.f)
	case KindString:
		return v.s != ""
	}
	return true
}

// Equal reports deep equality. Objects and callables compare by identity.
func Equal(a, b Value) bool {
	if a.kind != b.kind {
		return false
	}
	switch a.kind {
	case KindNil:
		return true
	case KindBool, KindInt:
		return a.i == b.i
	case KindFloat:
		return a.f == b.f
	case KindString:
		return a.s == b.s
	case KindVector2, KindVector3, KindVector4, KindColor:
		return a.vec == b.vec
	case KindObject, KindCallable:
		return a.ref == b.ref
	case KindArray:
		x, y := a.Items(), b.Items()
		if len(x) != len(y) {
			return false
		}
		for i := range x {
			if !Equal(x[i], y[i]) {
				return false
			}
		}
		return true
	case KindDictionary:
		return a.Dictionary().equal(b.Dictionary())
	}
	return false
}

func (v Value) String() string {
	switch v.kind {
	case KindNil:
		return "null"
	case KindBool:
		return strconv.FormatBool(v.i != 0)
	case KindInt:
		return strconv.FormatInt(v.i, 10)
	case KindFloat:
		return strconv.FormatFloat(v.f, 'g', -1, 64)
	case KindString:
		return v.s
	case KindVector2, KindVector3, KindVector4, KindColor:
		parts := make([]string, v.kind.Components())
		for i := range parts {
			parts[i] = strconv.FormatFloat(v.vec[i], 'g', -1, 64)
		}
		return "(" + strings.Join(parts, ", ") + ")"
	case KindObject:
		o := v.Object()
		return fmt.Sprintf("<%s#%d>", o.ClassName(), o.InstanceID())
	case KindArray:
		items := v.Items()
		parts := make([]string, len(items))
		for i, it := range items {
			parts[i] = it.String()
		}
		return "[" + strings.Join(parts, ", ") + "]"
	case KindDictionary:
		d := v.Dictionary()
		parts := make([]string, 0, d.Len())
		for _, k := range d.Keys() {
			val, _ := d.Get(k)
			parts = append(parts, k+": "+val.String())
		}
		return "{" + strings.Join(parts, ", ") + "}"
	case KindCallable:
		return "<callable " + v.Callable().Name() + ">"
	}
	return v.kind.String()
}

// Dictionary is a string-keyed map that preserves insertion order.
type Dictionary struct {
	values map[string]Value
	keys   []string
}

func NewDictionary() *Dictionary {
	return &Dictionary{values: make(map[string]Value)}
}

// Set inserts or replaces a key. Replacing keeps the original position.
func (d *Dictionary) Set(key string, v Value) {
	if _, ok := d.values[key]; !ok {
		d.keys = append(d.keys, key)
	}
	d.values[key] = v
}

func (d *Dictionary) Get(key string) (Value, bool) {
	v, ok := d.values[key]
	return v, ok
}

func (d *Dictionary) Delete(key string) {
	if _, ok := d.values[key]; !ok {
		return
	}
	delete(d.values, key)
	for i, k := range d.keys {
		if k == key {
			d.keys = append(d.keys[:i], d.keys[i+1:]...)
			break
		}
	}
}

func (d *Dictionary) Keys() []string {
	out := make([]string, len(d.keys))
	copy(out, d.keys)
	return out
}

func (d *Dictionary) Len() int { return len(d.keys) }

func (d *Dictionary) equal(o *Dictionary) bool {
	if d.Len() != o.Len() {
		return false
	}
	for i, k := range d.keys {
		if o.keys[i] != k || !Equal(d.values[k], o.values[k]) {
			return false
		}
	}
	return true
}
