package classes

import (
	"math"

	"github.com/dop251/goja"

	"github.com/wippyai/jsbridge/errors"
	"github.com/wippyai/jsbridge/variant"
)

type valueClass struct {
	name   string
	fields []string
	// defaults for omitted constructor arguments
	defaults []float64
}

var valueClasses = map[variant.Kind]valueClass{
	variant.KindVector2: {"Vector2", []string{"x", "y"}, []float64{0, 0}},
	variant.KindVector3: {"Vector3", []string{"x", "y", "z"}, []float64{0, 0, 0}},
	variant.KindVector4: {"Vector4", []string{"x", "y", "z", "w"}, []float64{0, 0, 0, 0}},
	variant.KindColor:   {"Color", []string{"r", "g", "b", "a"}, []float64{0, 0, 0, 1}},
}

var valueOrder = []variant.Kind{variant.KindVector2, variant.KindVector3, variant.KindVector4, variant.KindColor}

func (r *Registry) exposeValueClasses(target *goja.Object) error {
	for _, k := range valueOrder {
		d, err := r.ValueClass(k)
		if err != nil {
			return err
		}
		if err := target.Set(d.Name, d.Ctor); err != nil {
			return err
		}
	}
	return nil
}

// ValueClass returns the descriptor of a math value kind, exposing it on
// first use.
func (r *Registry) ValueClass(kind variant.Kind) (*Descriptor, error) {
	if d, ok := r.values[kind]; ok {
		return d, nil
	}
	vc, ok := valueClasses[kind]
	if !ok {
		return nil, errors.Unsupported(errors.PhaseExpose, "no value class for "+kind.String())
	}

	id, err := r.Register(HostValueClass, vc.name, nil, nil)
	if err != nil {
		return nil, err
	}
	d, _ := r.classes.Get(id)
	d.ValueKind = kind

	ctor, err := r.constructor(vc.name, func(this, _ *goja.Object, args []goja.Value) {
		for i, f := range vc.fields {
			x := vc.defaults[i]
			if i < len(args) && !goja.IsUndefined(args[i]) {
				x = args[i].ToFloat()
			}
			_ = this.Set(f, x)
		}
	})
	if err != nil {
		r.classes.Remove(id)
		return nil, err
	}
	proto := ctor.Get("prototype").(*goja.Object)
	if err := proto.DefineDataPropertySymbol(r.kindKey, r.vm.ToValue(int64(kind)), goja.FLAG_FALSE, goja.FLAG_FALSE, goja.FLAG_FALSE); err != nil {
		r.classes.Remove(id)
		return nil, errors.Wrap(errors.PhaseExpose, errors.KindInvalidData, err, vc.name)
	}

	d.Ctor = ctor
	d.Prototype = proto
	r.installValueMethods(d, vc)
	r.values[kind] = d
	r.byCtor[ctor] = id
	return d, nil
}

func (r *Registry) installValueMethods(d *Descriptor, vc valueClass) {
	this := func(call goja.FunctionCall, member string) variant.Value {
		v, ok := r.ValueFromScript(call.This)
		if !ok || v.Kind() != d.ValueKind {
			panic(r.vm.NewTypeError("%s.%s called on incompatible receiver", vc.name, member))
		}
		return v
	}
	arg := func(call goja.FunctionCall, member string) variant.Value {
		v, ok := r.ValueFromScript(call.Argument(0))
		if !ok || v.Kind() != d.ValueKind {
			panic(r.vm.NewTypeError("%s.%s expects a %s", vc.name, member, vc.name))
		}
		return v
	}

	_ = d.Prototype.Set("toString", r.function("toString", func(call goja.FunctionCall) goja.Value {
		return r.vm.ToValue(vc.name + this(call, "toString").String())
	}))
	_ = d.Prototype.Set("equals", r.function("equals", func(call goja.FunctionCall) goja.Value {
		a := this(call, "equals")
		b, ok := r.ValueFromScript(call.Argument(0))
		return r.vm.ToValue(ok && variant.Equal(a, b))
	}))
	_ = d.Prototype.Set("add", r.function("add", func(call goja.FunctionCall) goja.Value {
		a, b := this(call, "add").Components(), arg(call, "add").Components()
		for i := range a {
			a[i] += b[i]
		}
		out, _ := r.ValueToScript(variant.Math(d.ValueKind, a...))
		return out
	}))
	if d.ValueKind == variant.KindColor {
		return
	}
	_ = d.Prototype.Set("length", r.function("length", func(call goja.FunctionCall) goja.Value {
		sum := 0.0
		for _, c := range this(call, "length").Components() {
			sum += c * c
		}
		return r.vm.ToValue(math.Sqrt(sum))
	}))
}

// ValueToScript copies a math value into a new script object.
func (r *Registry) ValueToScript(v variant.Value) (goja.Value, error) {
	d, err := r.ValueClass(v.Kind())
	if err != nil {
		return nil, err
	}
	obj := r.vm.CreateObject(d.Prototype)
	for i, f := range valueClasses[v.Kind()].fields {
		if err := obj.Set(f, v.Component(i)); err != nil {
			return nil, err
		}
	}
	return obj, nil
}

// ValueFromScript reads a math value from an instance of a value class.
func (r *Registry) ValueFromScript(v goja.Value) (variant.Value, bool) {
	obj, ok := v.(*goja.Object)
	if !ok {
		return variant.Nil(), false
	}
	tag := obj.GetSymbol(r.kindKey)
	if tag == nil || goja.IsUndefined(tag) {
		return variant.Nil(), false
	}
	kind := variant.Kind(tag.ToInteger())
	vc, ok := valueClasses[kind]
	if !ok {
		return variant.Nil(), false
	}
	comps := make([]float64, len(vc.fields))
	for i, f := range vc.fields {
		if fv := obj.Get(f); fv != nil {
			comps[i] = fv.ToFloat()
		}
	}
	return variant.Math(kind, comps...), true
}
