package realm

import (
	stderrors "errors"
	"math"
	"testing"

	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"

	"github.com/wippyai/jsbridge/errors"
	"github.com/wippyai/jsbridge/variant"
)

func kindOf(err error) errors.Kind {
	var e *errors.Error
	if stderrors.As(err, &e) {
		return e.Kind
	}
	return ""
}

type nativeFunc struct {
	name string
	fn   func(args ...variant.Value) (variant.Value, error)
}

func (f nativeFunc) Call(args ...variant.Value) (variant.Value, error) { return f.fn(args...) }
func (f nativeFunc) Name() string                                      { return f.name }

func TestToScript_Integers(t *testing.T) {
	core, logs := observer.New(zap.WarnLevel)
	r := newRealm(t, Options{Logger: zap.New(core)})

	tests := []struct {
		in   int64
		want float64
	}{
		{0, 0},
		{-1 << 31, -1 << 31},
		{1 << 31, 1 << 31},
		{1<<32 - 1, 1<<32 - 1},
		{1 << 40, 1 << 40},
		{1 << 53, 1 << 53},
	}
	for _, tt := range tests {
		v, err := r.ToScript(variant.Int(tt.in))
		if err != nil {
			t.Fatalf("ToScript(%d): %v", tt.in, err)
		}
		if v.ToFloat() != tt.want {
			t.Errorf("ToScript(%d) = %v", tt.in, v)
		}
		back, err := r.ToNative(v, variant.MustParse("s64"))
		if err != nil || back.Int() != tt.in {
			t.Errorf("round trip %d = %v, %v", tt.in, back, err)
		}
	}
	if logs.Len() != 0 {
		t.Errorf("exact values logged %d warnings", logs.Len())
	}

	v, err := r.ToScript(variant.Int(1<<62 + 1))
	if err != nil {
		t.Fatal(err)
	}
	if v.ToFloat() != math.Ldexp(1, 62) {
		t.Errorf("lossy narrowing = %v", v)
	}
	if logs.FilterMessage("integer narrowed to double").Len() != 1 {
		t.Error("inexact narrowing should be reported")
	}
}

func TestToScript_StrictNarrowing(t *testing.T) {
	r := newRealm(t, Options{Narrowing: variant.NarrowStrict})
	if _, err := r.ToScript(variant.Int(1 << 40)); err != nil {
		t.Errorf("exact value rejected: %v", err)
	}
	if _, err := r.ToScript(variant.Int(math.MaxInt64)); kindOf(err) != errors.KindOverflow {
		t.Errorf("err = %v, want overflow", err)
	}
}

func TestRoundTrip(t *testing.T) {
	r := newRealm(t, Options{Globals: true})
	dict := variant.NewDictionary()
	dict.Set("name", variant.String("x"))
	dict.Set("pos", variant.Vec2(1, 2))

	values := []variant.Value{
		variant.Nil(),
		variant.Bool(true),
		variant.Int(5),
		variant.Float(1.5),
		variant.String("héllo"),
		variant.Vec2(1, 2),
		variant.Vec3(1, 2, 3),
		variant.Vec4(1, 2, 3, 4),
		variant.RGBA(0.5, 0.25, 1, 1),
		variant.Array(variant.Int(1), variant.String("x"), variant.Array()),
		variant.Dict(dict),
	}
	for _, in := range values {
		sv, err := r.ToScript(in)
		if err != nil {
			t.Fatalf("ToScript(%v): %v", in, err)
		}
		out, err := r.ToNative(sv, nil)
		if err != nil {
			t.Fatalf("ToNative(%v): %v", in, err)
		}
		if !variant.Equal(in, out) {
			t.Errorf("round trip %v = %v", in, out)
		}
	}
}

func TestToNative_Want(t *testing.T) {
	r := newRealm(t, Options{})
	vm := r.Runtime()

	v, err := r.ToNative(vm.ToValue(3), variant.MustParse("f64"))
	if err != nil || v.Kind() != variant.KindFloat {
		t.Errorf("int as f64 = %v, %v", v, err)
	}
	if _, err := r.ToNative(vm.ToValue(3.5), variant.MustParse("s32")); kindOf(err) != errors.KindTypeMismatch {
		t.Errorf("3.5 as s32: %v", err)
	}
	if _, err := r.ToNative(vm.ToValue("x"), variant.MustParse("s32")); kindOf(err) != errors.KindTypeMismatch {
		t.Errorf("string as s32: %v", err)
	}
	if _, err := r.ToNative(vm.ToValue(1<<40), variant.MustParse("u8")); kindOf(err) != errors.KindOverflow {
		t.Errorf("2^40 as u8: %v", err)
	}

	arr := eval(t, r, `[1, 2, "x"]`)
	_, err = r.ToNative(arr, variant.MustParse("list<s32>"))
	var e *errors.Error
	if !stderrors.As(err, &e) || len(e.Path) == 0 || e.Path[0] != "2" {
		t.Errorf("element error should carry its index: %v", err)
	}
	v, err = r.ToNative(eval(t, r, `[1, 2]`), variant.MustParse("list<f64>"))
	if err != nil || v.Items()[0].Kind() != variant.KindFloat {
		t.Errorf("list<f64> = %v, %v", v, err)
	}
	v, err = r.ToNative(eval(t, r, `[1, 2]`), variant.MustParse("option<list<f64>>"))
	if err != nil || v.Items()[1].Kind() != variant.KindFloat {
		t.Errorf("option<list<f64>> = %v, %v", v, err)
	}
}

func TestToNative_ObjectClass(t *testing.T) {
	r := newRealm(t, Options{})
	inst, _ := r.Engine().Instantiate("Item")
	w, err := r.Wrap(inst)
	if err != nil {
		t.Fatal(err)
	}
	if _, err := r.ToNative(w, variant.MustParse("RefCounted")); err != nil {
		t.Errorf("Item as RefCounted: %v", err)
	}
	if _, err := r.ToNative(w, variant.MustParse("Base")); kindOf(err) != errors.KindTypeMismatch {
		t.Errorf("Item as Base: %v", err)
	}
}

func TestCallables(t *testing.T) {
	r := newRealm(t, Options{})
	fn := eval(t, r, `(function twice(n) { return n * 2; })`)

	v, err := r.ToNative(fn, variant.MustParse("callable"))
	if err != nil {
		t.Fatal(err)
	}
	c := v.Callable()
	if c.Name() != "twice" {
		t.Errorf("name = %q", c.Name())
	}
	out, err := c.Call(variant.Int(21))
	if err != nil || out.Int() != 42 {
		t.Errorf("Call = %v, %v", out, err)
	}

	back, err := r.ToScript(v)
	if err != nil {
		t.Fatal(err)
	}
	if back != fn {
		t.Error("script callable should return to script as the same function")
	}

	native := variant.FromCallable(nativeFunc{"add", func(args ...variant.Value) (variant.Value, error) {
		return variant.Int(args[0].Int() + args[1].Int()), nil
	}})
	sv, err := r.ToScript(native)
	if err != nil {
		t.Fatal(err)
	}
	r.Runtime().Set("add", sv)
	if got := eval(t, r, `add.name + "=" + add(2, 3)`).String(); got != "add=5" {
		t.Errorf("native callable from script = %q", got)
	}

	thrower := eval(t, r, `(function () { throw new Error("boom"); })`)
	tv, _ := r.ToNative(thrower, nil)
	if _, err := tv.Callable().Call(); err == nil {
		t.Error("script exception should surface as an error")
	}
}

func TestToNative_Unsupported(t *testing.T) {
	r := newRealm(t, Options{})
	for _, src := range []string{`Symbol("s")`, `Symbol.iterator`} {
		v, err := r.ToNative(eval(t, r, src), nil)
		if kindOf(err) != errors.KindUnsupported {
			t.Errorf("%s = %v, %v", src, v, err)
		}
	}
	if _, err := r.ToNative(eval(t, r, `Symbol("s")`), variant.MustParse("string")); kindOf(err) != errors.KindUnsupported {
		t.Errorf("symbol as string: %v", err)
	}
}
