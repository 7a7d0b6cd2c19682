package wasmclass

import (
	"context"
	stderrors "errors"
	"testing"

	"github.com/wippyai/jsbridge/errors"
	"github.com/wippyai/jsbridge/host"
	"github.com/wippyai/jsbridge/realm"
	"github.com/wippyai/jsbridge/variant"
)

// (module (func (export "add") (param i32 i32) (result i32)
//
//	local.get 0 local.get 1 i32.add))
var addWasm = []byte{
	0x00, 0x61, 0x73, 0x6d, 0x01, 0x00, 0x00, 0x00,
	0x01, 0x07, 0x01, 0x60, 0x02, 0x7f, 0x7f, 0x01, 0x7f,
	0x03, 0x02, 0x01, 0x00,
	0x07, 0x07, 0x01, 0x03, 0x61, 0x64, 0x64, 0x00, 0x00,
	0x0a, 0x09, 0x01, 0x07, 0x00, 0x20, 0x00, 0x20, 0x01, 0x6a, 0x0b,
}

func kindOf(err error) errors.Kind {
	var e *errors.Error
	if stderrors.As(err, &e) {
		return e.Kind
	}
	return ""
}

func newRuntime(t *testing.T) *Runtime {
	t.Helper()
	rt := NewRuntime(context.Background(), &Config{MemoryLimitPages: 16}, nil)
	t.Cleanup(func() { _ = rt.Close(context.Background()) })
	return rt
}

func TestLoad_DescribesExports(t *testing.T) {
	rt := newRuntime(t)
	c, err := rt.Load(context.Background(), "Adder", addWasm)
	if err != nil {
		t.Fatal(err)
	}
	if c.Info.Name != "Adder" || c.Info.Parent != host.ClassObject || c.Info.Instantiable {
		t.Errorf("info = %+v", c.Info)
	}
	if len(c.Info.Methods) != 1 {
		t.Fatalf("methods = %d", len(c.Info.Methods))
	}
	m := c.Info.Methods[0]
	if m.Name != "add" || !m.Static() || len(m.Args) != 2 || m.Args[0].Type.Name != "s32" || m.Return.Name != "s32" {
		t.Errorf("method = %+v", m)
	}
}

func TestLoad_Errors(t *testing.T) {
	rt := newRuntime(t)
	if _, err := rt.Load(context.Background(), "Bad", []byte("not wasm")); kindOf(err) != errors.KindInvalidData {
		t.Errorf("garbage: %v", err)
	}
	if _, err := rt.Load(context.Background(), "Adder", addWasm); err != nil {
		t.Fatal(err)
	}
	if _, err := rt.Load(context.Background(), "Adder", addWasm); kindOf(err) != errors.KindAlreadyExists {
		t.Errorf("duplicate: %v", err)
	}
}

func TestCall_ThroughEngine(t *testing.T) {
	rt := newRuntime(t)
	db := host.NewClassDB()
	if err := host.RegisterCore(db); err != nil {
		t.Fatal(err)
	}
	if _, err := rt.Register(context.Background(), db, "Adder", addWasm); err != nil {
		t.Fatal(err)
	}
	eng := host.NewEngine(db)

	tests := []struct {
		a, b, want int64
	}{
		{2, 3, 5},
		{-7, 2, -5},
		{2147483647, 1, -2147483648},
	}
	for _, tt := range tests {
		got, err := eng.CallStatic("Adder", "add", []variant.Value{variant.Int(tt.a), variant.Int(tt.b)})
		if err != nil {
			t.Fatalf("add(%d, %d): %v", tt.a, tt.b, err)
		}
		if got.Int() != tt.want {
			t.Errorf("add(%d, %d) = %d, want %d", tt.a, tt.b, got.Int(), tt.want)
		}
	}

	_, err := eng.CallStatic("Adder", "add", []variant.Value{variant.Int(1 << 40), variant.Int(1)})
	if kindOf(err) != errors.KindOverflow {
		t.Errorf("out of range argument: %v", err)
	}
	if _, err := eng.CallStatic("Adder", "add", []variant.Value{variant.Int(1)}); kindOf(err) != errors.KindArgumentCount {
		t.Errorf("missing argument: %v", err)
	}
}

func TestRegister_DuplicateCatalogName(t *testing.T) {
	rt := newRuntime(t)
	db := host.NewClassDB()
	if err := host.RegisterCore(db); err != nil {
		t.Fatal(err)
	}
	if _, err := rt.Register(context.Background(), db, host.ClassObject, addWasm); err == nil {
		t.Fatal("clash with a catalog class accepted")
	}
	// the failed name is free again
	if _, err := rt.Load(context.Background(), host.ClassObject, addWasm); err != nil {
		t.Errorf("name not released: %v", err)
	}
}

func TestRealm_CallsWasm(t *testing.T) {
	rt := newRuntime(t)
	eng, err := realm.NewEngine()
	if err != nil {
		t.Fatal(err)
	}
	if _, err := rt.Register(context.Background(), eng.ClassDB(), "Adder", addWasm); err != nil {
		t.Fatal(err)
	}
	r, err := realm.New(realm.Options{Engine: eng, Globals: true})
	if err != nil {
		t.Fatal(err)
	}
	defer r.Close()

	v, err := r.Eval("wasm.js", `Adder.add(40, 2)`)
	if err != nil {
		t.Fatal(err)
	}
	if v.ToInteger() != 42 {
		t.Errorf("Adder.add = %v", v)
	}
	v, err = r.Eval("wasm.js", `try { new Adder(); "no" } catch (e) { e.name }`)
	if err != nil || v.String() != "TypeError" {
		t.Errorf("static class constructed: %v %v", v, err)
	}
}
