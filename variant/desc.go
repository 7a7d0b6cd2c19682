package variant

import (
	"math"
	"strconv"
	"strings"

	"go.bytecodealliance.org/wit"

	"github.com/wippyai/jsbridge/errors"
)

// TypeDesc describes the expected type of a method argument, return value
// or property.
type TypeDesc struct {
	// Wit is set for primitive, list and option types.
	Wit wit.Type
	// Elem is the element type of a list. An option shares its payload's
	// fields, so option<list<T>> keeps T here.
	Elem *TypeDesc
	// Name is the descriptor text, e.g. "s32" or "list<Node>".
	Name string
	// Class is set for object types.
	Class string
	Kind  Kind
	// Any accepts every kind.
	Any      bool
	Optional bool
}

var builtins = map[string]Kind{
	"vector2":    KindVector2,
	"vector3":    KindVector3,
	"vector4":    KindVector4,
	"color":      KindColor,
	"dictionary": KindDictionary,
	"callable":   KindCallable,
	"array":      KindArray,
}

var primitives = map[string]func() wit.Type{
	"bool":   func() wit.Type { return wit.Bool{} },
	"s8":     func() wit.Type { return wit.S8{} },
	"u8":     func() wit.Type { return wit.U8{} },
	"s16":    func() wit.Type { return wit.S16{} },
	"u16":    func() wit.Type { return wit.U16{} },
	"s32":    func() wit.Type { return wit.S32{} },
	"u32":    func() wit.Type { return wit.U32{} },
	"s64":    func() wit.Type { return wit.S64{} },
	"u64":    func() wit.Type { return wit.U64{} },
	"f32":    func() wit.Type { return wit.F32{} },
	"f64":    func() wit.Type { return wit.F64{} },
	"char":   func() wit.Type { return wit.Char{} },
	"string": func() wit.Type { return wit.String{} },
}

// MustParse is ParseTypeDesc for static signatures.
func MustParse(s string) *TypeDesc {
	d, err := ParseTypeDesc(s)
	if err != nil {
		panic(err)
	}
	return d
}

// ParseTypeDesc parses a descriptor. Accepted forms are WIT primitives
// (bool, s8..u64, f32, f64, char, string), list<T>, option<T>, the bridge
// kinds (vector2, vector3, vector4, color, array, dictionary, callable),
// "variant" for any value, and class names starting with an upper-case
// letter.
func ParseTypeDesc(s string) (*TypeDesc, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil, errors.InvalidInput(errors.PhaseRegister, "empty type descriptor")
	}

	if inner, ok := generic(s, "list"); ok {
		elem, err := ParseTypeDesc(inner)
		if err != nil {
			return nil, err
		}
		d := &TypeDesc{Name: s, Kind: KindArray, Elem: elem}
		if elem.Wit != nil {
			d.Wit = &wit.TypeDef{Kind: &wit.List{Type: elem.Wit}}
		}
		return d, nil
	}
	if inner, ok := generic(s, "option"); ok {
		elem, err := ParseTypeDesc(inner)
		if err != nil {
			return nil, err
		}
		d := *elem
		d.Name = s
		d.Optional = true
		if elem.Wit != nil {
			d.Wit = &wit.TypeDef{Kind: &wit.Option{Type: elem.Wit}}
		}
		return &d, nil
	}

	if s == "variant" {
		return &TypeDesc{Name: s, Any: true}, nil
	}
	if mk, ok := primitives[s]; ok {
		return &TypeDesc{Name: s, Wit: mk(), Kind: primitiveKind(s)}, nil
	}
	if k, ok := builtins[s]; ok {
		return &TypeDesc{Name: s, Kind: k}, nil
	}
	if c := s[0]; c >= 'A' && c <= 'Z' && !strings.ContainsAny(s, "<> ,") {
		return &TypeDesc{Name: s, Kind: KindObject, Class: s, Optional: true}, nil
	}
	return nil, errors.New(errors.PhaseRegister, errors.KindUnsupported).
		Detail("unknown type descriptor %q", s).
		Build()
}

func generic(s, name string) (string, bool) {
	if !strings.HasPrefix(s, name+"<") || !strings.HasSuffix(s, ">") {
		return "", false
	}
	return s[len(name)+1 : len(s)-1], true
}

func primitiveKind(s string) Kind {
	switch s {
	case "bool":
		return KindBool
	case "f32", "f64":
		return KindFloat
	case "string", "char":
		return KindString
	}
	return KindInt
}

// Check validates v against the descriptor, including integer ranges of
// fixed-width types.
func (d *TypeDesc) Check(v Value) error {
	if d == nil || d.Any {
		return nil
	}
	if v.IsNil() {
		if d.Optional {
			return nil
		}
		return errors.TypeMismatch(errors.PhaseMarshal, nil, d.Name, "null")
	}
	if v.Kind() != d.Kind {
		return errors.TypeMismatch(errors.PhaseMarshal, nil, d.Name, v.Kind().String())
	}

	switch d.Kind {
	case KindInt:
		return checkRange(d, v.Int())
	case KindFloat:
		if _, ok := d.base().(wit.F32); ok {
			f := v.Float()
			if !math.IsInf(f, 0) && !math.IsNaN(f) && math.Abs(f) > math.MaxFloat32 {
				return errors.Overflow(errors.PhaseMarshal, nil, f, d.Name)
			}
		}
	case KindString:
		if _, ok := d.base().(wit.Char); ok && len([]rune(v.Str())) != 1 {
			return errors.InvalidData(errors.PhaseMarshal, nil, "char requires exactly one code point")
		}
	case KindArray:
		if d.Elem != nil {
			for i, it := range v.Items() {
				if err := d.Elem.Check(it); err != nil {
					if e, ok := err.(*errors.Error); ok {
						e.Path = append([]string{strconv.Itoa(i)}, e.Path...)
					}
					return err
				}
			}
		}
	}
	return nil
}

// base strips an option wrapper.
func (d *TypeDesc) base() wit.Type {
	if td, ok := d.Wit.(*wit.TypeDef); ok {
		if opt, ok := td.Kind.(*wit.Option); ok {
			return opt.Type
		}
	}
	return d.Wit
}

func checkRange(d *TypeDesc, n int64) error {
	var lo, hi int64
	switch d.base().(type) {
	case wit.S8:
		lo, hi = math.MinInt8, math.MaxInt8
	case wit.U8:
		lo, hi = 0, math.MaxUint8
	case wit.S16:
		lo, hi = math.MinInt16, math.MaxInt16
	case wit.U16:
		lo, hi = 0, math.MaxUint16
	case wit.S32:
		lo, hi = math.MinInt32, math.MaxInt32
	case wit.U32:
		lo, hi = 0, math.MaxUint32
	case wit.U64:
		lo, hi = 0, math.MaxInt64
	default:
		return nil
	}
	if n < lo || n > hi {
		return errors.Overflow(errors.PhaseMarshal, nil, n, d.Name)
	}
	return nil
}
