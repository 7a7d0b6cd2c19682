package realm

import (
	"math"
	"math/big"
	"strconv"

	"github.com/dop251/goja"
	"go.uber.org/zap"

	"github.com/wippyai/jsbridge/errors"
	"github.com/wippyai/jsbridge/variant"
)

// marshaller converts between variant values and script values. Math
// values, arrays and dictionaries are copied; objects go through the
// binding table; callables keep their identity in both directions.
type marshaller struct {
	r *Realm
}

func (m *marshaller) ToScript(v variant.Value) (goja.Value, error) {
	vm := m.r.vm
	switch v.Kind() {
	case variant.KindNil:
		return goja.Null(), nil
	case variant.KindBool:
		return vm.ToValue(v.Bool()), nil
	case variant.KindInt:
		return m.integer(v.Int())
	case variant.KindFloat:
		return vm.ToValue(v.Float()), nil
	case variant.KindString:
		return vm.ToValue(v.Str()), nil
	case variant.KindVector2, variant.KindVector3, variant.KindVector4, variant.KindColor:
		return m.r.classes.ValueToScript(v)
	case variant.KindArray:
		items := v.Items()
		out := make([]any, len(items))
		for i, it := range items {
			sv, err := m.ToScript(it)
			if err != nil {
				return nil, annotate(err, strconv.Itoa(i))
			}
			out[i] = sv
		}
		return vm.NewArray(out...), nil
	case variant.KindDictionary:
		obj := vm.NewObject()
		d := v.Dictionary()
		for _, k := range d.Keys() {
			it, _ := d.Get(k)
			sv, err := m.ToScript(it)
			if err != nil {
				return nil, annotate(err, k)
			}
			if err := obj.Set(k, sv); err != nil {
				return nil, err
			}
		}
		return obj, nil
	case variant.KindObject:
		return m.r.wrap(v.Object())
	case variant.KindCallable:
		return m.callable(v.Callable()), nil
	}
	return nil, errors.Unsupported(errors.PhaseMarshal, "value kind "+v.Kind().String())
}

func (m *marshaller) integer(i int64) (goja.Value, error) {
	n, err := m.r.opts.Narrowing.Apply(i)
	if err != nil {
		return nil, err
	}
	if n.Rep != variant.RepFloat64 {
		return m.r.vm.ToValue(n.Int), nil
	}
	if !n.Exact {
		m.r.logger.Warn("integer narrowed to double",
			zap.Int64("value", i),
			zap.Float64("double", n.Float),
			zap.Bool("exact", false))
	}
	return m.r.vm.ToValue(n.Float), nil
}

func (m *marshaller) ToNative(v goja.Value, want *variant.TypeDesc) (variant.Value, error) {
	if want != nil && want.Any {
		want = nil
	}
	if v == nil || goja.IsUndefined(v) || goja.IsNull(v) {
		return variant.Nil(), nil
	}
	if obj, ok := v.(*goja.Object); ok {
		return m.object(obj, want)
	}

	if sym, ok := v.(*goja.Symbol); ok {
		return variant.Nil(), errors.Unsupported(errors.PhaseMarshal, "script value "+sym.String())
	}
	switch x := v.Export().(type) {
	case bool:
		return variant.Bool(x), nil
	case int64:
		if wants(want, variant.KindFloat) {
			return variant.Float(float64(x)), nil
		}
		return variant.Int(x), nil
	case float64:
		if !wants(want, variant.KindInt) {
			return variant.Float(x), nil
		}
		if math.IsNaN(x) || math.IsInf(x, 0) || x != math.Trunc(x) ||
			x < math.MinInt64 || x >= math.MaxInt64 {
			return variant.Nil(), errors.TypeMismatch(errors.PhaseMarshal, nil, want.Name, "non-integral number")
		}
		return variant.Int(int64(x)), nil
	case string:
		return variant.String(x), nil
	case *big.Int:
		if !x.IsInt64() {
			return variant.Nil(), errors.Overflow(errors.PhaseMarshal, nil, x.String(), "s64")
		}
		return variant.Int(x.Int64()), nil
	}
	return variant.Nil(), errors.Unsupported(errors.PhaseMarshal, "script value "+v.String())
}

func (m *marshaller) object(obj *goja.Object, want *variant.TypeDesc) (variant.Value, error) {
	r := m.r
	if native, ok := r.bindings.Unwrap(obj); ok {
		if want != nil && want.Class != "" && !r.engine.ClassDB().Inherits(native.ClassName(), want.Class) {
			return variant.Nil(), errors.TypeMismatch(errors.PhaseMarshal, nil, want.Class, native.ClassName())
		}
		return variant.FromObject(native), nil
	}
	if r.bindings.Linked(obj) {
		return variant.Nil(), errors.Disposed(errors.PhaseMarshal, "native object behind wrapper")
	}
	if val, ok := r.classes.ValueFromScript(obj); ok {
		return val, nil
	}
	if fn, ok := goja.AssertFunction(obj); ok {
		return variant.FromCallable(&scriptCallable{realm: r, obj: obj, fn: fn}), nil
	}

	if obj.ClassName() == "Array" {
		var elem *variant.TypeDesc
		if want != nil {
			elem = want.Elem
		}
		n := int(obj.Get("length").ToInteger())
		items := make([]variant.Value, n)
		for i := 0; i < n; i++ {
			it, err := m.ToNative(obj.Get(strconv.Itoa(i)), elem)
			if err != nil {
				return variant.Nil(), annotate(err, strconv.Itoa(i))
			}
			items[i] = it
		}
		return variant.Array(items...), nil
	}

	dict := variant.NewDictionary()
	for _, k := range obj.Keys() {
		it, err := m.ToNative(obj.Get(k), nil)
		if err != nil {
			return variant.Nil(), annotate(err, k)
		}
		dict.Set(k, it)
	}
	return variant.Dict(dict), nil
}

func (m *marshaller) callable(c variant.Callable) goja.Value {
	if sc, ok := c.(*scriptCallable); ok && sc.realm == m.r {
		return sc.obj
	}
	r := m.r
	fn := r.vm.ToValue(func(call goja.FunctionCall) goja.Value {
		args := make([]variant.Value, len(call.Arguments))
		for i, a := range call.Arguments {
			v, err := m.ToNative(a, nil)
			if err != nil {
				r.classes.Throw(annotate(err, c.Name(), strconv.Itoa(i)))
			}
			args[i] = v
		}
		ret, err := c.Call(args...)
		if err != nil {
			r.classes.Throw(err)
		}
		out, err := m.ToScript(ret)
		if err != nil {
			r.classes.Throw(err)
		}
		return out
	}).(*goja.Object)
	_ = fn.DefineDataProperty("name", r.vm.ToValue(c.Name()), goja.FLAG_FALSE, goja.FLAG_TRUE, goja.FLAG_FALSE)
	return fn
}

func wants(d *variant.TypeDesc, k variant.Kind) bool {
	return d != nil && d.Kind == k
}

// annotate prefixes the path of a bridge error.
func annotate(err error, path ...string) error {
	if e, ok := err.(*errors.Error); ok {
		e.Path = append(append([]string(nil), path...), e.Path...)
	}
	return err
}
