package classes

import (
	stderrors "errors"
	"math"
	"testing"

	"github.com/dop251/goja"
	"go.uber.org/zap"

	"github.com/wippyai/jsbridge/binding"
	"github.com/wippyai/jsbridge/errors"
	"github.com/wippyai/jsbridge/handle"
	"github.com/wippyai/jsbridge/host"
	"github.com/wippyai/jsbridge/variant"
)

// harness wires a registry to a binding table with a minimal marshaller.
type harness struct {
	vm     *goja.Runtime
	engine *host.Engine
	reg    *Registry
	table  *binding.Table
}

func newHarness(t *testing.T, policy variant.Policy, logger *zap.Logger, extra ...*host.ClassInfo) *harness {
	t.Helper()
	db := host.NewClassDB()
	if err := host.RegisterCore(db); err != nil {
		t.Fatal(err)
	}
	db.MustRegister(
		&host.ClassInfo{
			Name:         "Base",
			Parent:       host.ClassObject,
			Instantiable: true,
			Properties:   []*host.PropertyInfo{{Name: "hp", Type: variant.MustParse("s32")}},
			Methods: []*host.MethodInfo{
				{
					Name: "m",
					Call: func(self *host.Instance, _ []variant.Value) (variant.Value, error) {
						return variant.String("m:" + self.ClassName()), nil
					},
				},
				{
					Name: "add",
					Args: []host.Arg{
						{Name: "a", Type: variant.MustParse("s32")},
						{Name: "b", Type: variant.MustParse("s32"), Default: ptr(variant.Int(10))},
					},
					Call: func(_ *host.Instance, args []variant.Value) (variant.Value, error) {
						return variant.Int(args[0].Int() + args[1].Int()), nil
					},
				},
				{
					Name:  "make",
					Flags: host.MethodStatic,
					Call: func(_ *host.Instance, _ []variant.Value) (variant.Value, error) {
						return variant.String("static"), nil
					},
				},
			},
		},
		&host.ClassInfo{Name: "Derived", Parent: "Base", Instantiable: true},
		&host.ClassInfo{Name: "Abstract", Parent: host.ClassObject},
		&host.ClassInfo{Name: "Item", Parent: host.ClassRefCounted, Instantiable: true},
	)
	db.MustRegister(extra...)

	if logger == nil {
		logger = zap.NewNop()
	}
	h := &harness{vm: goja.New(), engine: host.NewEngine(db)}
	h.reg = New(h.vm, h.engine, Options{Logger: logger, Narrowing: policy})
	h.table = binding.New(h.vm, h.reg, binding.Options{Logger: logger})
	h.reg.Attach(testMarshal{h}, h.table)
	return h
}

func (h *harness) expose(t *testing.T, names ...string) {
	t.Helper()
	for _, n := range names {
		d, err := h.reg.Expose(n)
		if err != nil {
			t.Fatalf("expose %s: %v", n, err)
		}
		// ancestors too, except the builtin Object
		for ; d != nil && d.Name != host.ClassObject; d = d.Parent {
			h.vm.Set(d.Name, d.Ctor)
		}
	}
}

func (h *harness) run(t *testing.T, src string) goja.Value {
	t.Helper()
	v, err := h.vm.RunString(src)
	if err != nil {
		t.Fatalf("run %q: %v", src, err)
	}
	return v
}

// boundClass returns the class id the binding of wrapper v carries.
func (h *harness) boundClass(t *testing.T, v goja.Value) handle.NarrowID {
	t.Helper()
	native, ok := h.table.Unwrap(v)
	if !ok {
		t.Fatalf("%v is not bound", v)
	}
	id, ok := h.table.Check(native)
	if !ok {
		t.Fatalf("%v has no binding", v)
	}
	bound, err := h.table.Get(id)
	if err != nil {
		t.Fatal(err)
	}
	return bound.Class
}

func ptr(v variant.Value) *variant.Value { return &v }

func kindOf(err error) errors.Kind {
	var e *errors.Error
	if stderrors.As(err, &e) {
		return e.Kind
	}
	return ""
}

type testMarshal struct{ h *harness }

func (m testMarshal) ToScript(v variant.Value) (goja.Value, error) {
	vm := m.h.vm
	switch v.Kind() {
	case variant.KindNil:
		return goja.Null(), nil
	case variant.KindBool:
		return vm.ToValue(v.Bool()), nil
	case variant.KindInt:
		return vm.ToValue(v.Int()), nil
	case variant.KindFloat:
		return vm.ToValue(v.Float()), nil
	case variant.KindString:
		return vm.ToValue(v.Str()), nil
	case variant.KindObject:
		obj := v.Object()
		if id, ok := m.h.table.Check(obj); ok {
			if w, ok := m.h.table.Wrapper(id); ok {
				return w, nil
			}
		}
		d, err := m.h.reg.Expose(obj.ClassName())
		if err != nil {
			return nil, err
		}
		w := vm.CreateObject(d.Prototype)
		if _, err := m.h.table.Bind(d.ID, obj, w); err != nil {
			return nil, err
		}
		return w, nil
	}
	return m.h.reg.ValueToScript(v)
}

func (m testMarshal) ToNative(v goja.Value, want *variant.TypeDesc) (variant.Value, error) {
	if v == nil || goja.IsUndefined(v) || goja.IsNull(v) {
		return variant.Nil(), nil
	}
	if obj, ok := v.(*goja.Object); ok {
		if native, ok := m.h.table.Unwrap(obj); ok {
			return variant.FromObject(native), nil
		}
		if val, ok := m.h.reg.ValueFromScript(obj); ok {
			return val, nil
		}
		if fn, ok := goja.AssertFunction(obj); ok {
			return variant.FromCallable(&testCallable{vm: m.h.vm, obj: obj, fn: fn}), nil
		}
		return variant.Nil(), errors.Unsupported(errors.PhaseMarshal, "plain object")
	}
	switch x := v.Export().(type) {
	case bool:
		return variant.Bool(x), nil
	case int64:
		return variant.Int(x), nil
	case float64:
		if want != nil && want.Kind == variant.KindInt && x == math.Trunc(x) {
			return variant.Int(int64(x)), nil
		}
		return variant.Float(x), nil
	case string:
		return variant.String(x), nil
	}
	return variant.Nil(), errors.Unsupported(errors.PhaseMarshal, v.String())
}

type testCallable struct {
	vm  *goja.Runtime
	obj *goja.Object
	fn  goja.Callable
}

func (c *testCallable) Call(args ...variant.Value) (variant.Value, error) {
	in := make([]goja.Value, len(args))
	for i, a := range args {
		in[i] = c.vm.ToValue(a.Int())
	}
	_, err := c.fn(goja.Undefined(), in...)
	return variant.Nil(), err
}

func (c *testCallable) Name() string { return c.obj.Get("name").String() }

func (c *testCallable) Equal(other variant.Callable) bool {
	o, ok := other.(*testCallable)
	return ok && o.obj == c.obj
}
