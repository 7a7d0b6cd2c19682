package modules

import (
	"context"
	"testing"

	"github.com/dop251/goja"
)

func TestSQLResolver(t *testing.T) {
	ctx := context.Background()
	res, err := OpenSQLResolver(ctx, ":memory:")
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	defer res.Close()

	if err := res.Put(ctx, "lib/greet.js", `module.exports = function(n) { return "hi " + n; };`); err != nil {
		t.Fatal(err)
	}
	if err := res.Put(ctx, "main.js", `module.exports = require("./lib/greet")("db");`); err != nil {
		t.Fatal(err)
	}

	a, ok := res.Resolve("lib/greet")
	if !ok || a.ID != "lib/greet.js" || a.Path != "sqlite:lib/greet.js" {
		t.Fatalf("resolve = %+v, %v", a, ok)
	}
	if _, ok := res.Resolve("nope"); ok {
		t.Error("unexpected match")
	}
	if _, err := res.Read("sqlite:nope"); err == nil {
		t.Error("read of missing id should fail")
	}

	vm := goja.New()
	m := NewManager(vm, Options{})
	m.AddResolver(res)
	mod, err := m.Require(nil, "main")
	if err != nil {
		t.Fatal(err)
	}
	if mod.Exports().String() != "hi db" {
		t.Errorf("exports = %v", mod.Exports())
	}
	if mod.Resolver != "sqlite" {
		t.Errorf("resolver = %q", mod.Resolver)
	}

	// updated source is picked up on reload
	if err := res.Put(ctx, "main.js", `module.exports = "v2";`); err != nil {
		t.Fatal(err)
	}
	if err := m.MarkReload("main"); err != nil {
		t.Fatal(err)
	}
	if mod, err = m.Require(nil, "main"); err != nil || mod.Exports().String() != "v2" {
		t.Errorf("reload = %v, %v", mod, err)
	}
}
