package classes

import (
	"testing"

	"github.com/dop251/goja"

	"github.com/wippyai/jsbridge/errors"
	"github.com/wippyai/jsbridge/host"
	"github.com/wippyai/jsbridge/variant"
)

func scriptCtor(t *testing.T, h *harness, src string) *goja.Object {
	t.Helper()
	ctor, ok := h.run(t, src).(*goja.Object)
	if !ok {
		t.Fatalf("%s did not produce an object", src)
	}
	return ctor
}

func TestScriptClass_Register(t *testing.T) {
	h := newHarness(t, variant.NarrowLossy, nil)
	h.expose(t, "Derived")

	ctor := scriptCtor(t, h, `(function () {
		class Player extends Derived {
			jump() { return "jump " + this.m(); }
			get level() { return 1; }
		}
		Player.signals = ["scored"];
		Player.properties = { speed: "f64" };
		return Player;
	})()`)
	d, err := h.reg.RegisterScriptClass("player.js", ctor)
	if err != nil {
		t.Fatal(err)
	}
	if d.Category != ScriptDefinedClass || d.Name != "Player" {
		t.Errorf("descriptor = %s %q", d.Category, d.Name)
	}
	derived, _ := h.reg.ByName("Derived")
	if d.Parent != derived || d.NativeAncestor() != derived {
		t.Error("script class should extend Derived")
	}
	if got := d.Script.Methods; len(got) != 1 || got[0] != "jump" {
		t.Errorf("methods = %v", got)
	}
	if got := d.Script.Properties; len(got) != 2 || got[0] != "level" || got[1] != "speed" {
		t.Errorf("properties = %v", got)
	}
	if got := d.Script.Signals; len(got) != 1 || got[0] != "scored" {
		t.Errorf("signals = %v", got)
	}
	if found, ok := h.reg.ForConstructor(ctor); !ok || found != d {
		t.Error("constructor lookup failed")
	}

	h.vm.Set("Player", ctor)
	v := h.run(t, `var p = new Player(); p.jump()`)
	if v.String() != "jump m:Derived" {
		t.Errorf("jump() = %v", v)
	}
	if got := h.boundClass(t, h.vm.Get("p")); got != d.ID {
		t.Errorf("instance bound to %v, want %v", got, d.ID)
	}
	native, _ := h.table.Unwrap(h.vm.Get("p"))
	if native.ClassName() != "Derived" {
		t.Errorf("native class = %s", native.ClassName())
	}

	// an unregistered subclass binds to its nearest registered ancestor
	v = h.run(t, `class Elite extends Player { constructor(n) { super(); this.n = n; } }
		var e = new Elite(3); e.n + ":" + e.jump()`)
	if v.String() != "3:jump m:Derived" {
		t.Errorf("Elite = %v", v)
	}
	if got := h.boundClass(t, h.vm.Get("e")); got != d.ID {
		t.Errorf("subclass instance bound to %v, want %v", got, d.ID)
	}
	if got := h.boundClass(t, h.run(t, `new Derived()`)); got != derived.ID {
		t.Errorf("native instance bound to %v, want %v", got, derived.ID)
	}
}

func TestScriptClass_ReloadKeepsID(t *testing.T) {
	h := newHarness(t, variant.NarrowLossy, nil)
	h.expose(t, "Derived")

	first := scriptCtor(t, h, `(class Player extends Derived { a() {} })`)
	d1, err := h.reg.RegisterScriptClass("player.js", first)
	if err != nil {
		t.Fatal(err)
	}
	second := scriptCtor(t, h, `(class Player extends Base { b() {} c() {} })`)
	d2, err := h.reg.RegisterScriptClass("player.js", second)
	if err != nil {
		t.Fatal(err)
	}
	if d1.ID != d2.ID || d2.Script.Generation != 2 {
		t.Errorf("reload: id %v -> %v, generation %d", d1.ID, d2.ID, d2.Script.Generation)
	}
	if len(d2.Script.Methods) != 2 {
		t.Errorf("methods not replaced: %v", d2.Script.Methods)
	}
	if _, ok := h.reg.ForConstructor(first); ok {
		t.Error("old constructor still maps to the class")
	}
	h.vm.Set("Player", second)
	if got := h.boundClass(t, h.run(t, `new Player()`)); got != d1.ID {
		t.Errorf("instance after reload bound to %v, want %v", got, d1.ID)
	}
	if d2.NativeAncestor().Name != "Base" {
		t.Errorf("ancestor = %s", d2.NativeAncestor().Name)
	}

	other := scriptCtor(t, h, `(class Player extends Derived {})`)
	d3, err := h.reg.RegisterScriptClass("other/player.js", other)
	if err != nil {
		t.Fatal(err)
	}
	if d3.ID == d1.ID {
		t.Error("modules must not share class ids")
	}
	if got, _ := h.reg.ScriptClass("player.js"); got != d2 {
		t.Error("ScriptClass returned the wrong descriptor")
	}
}

func TestScriptClass_Rejected(t *testing.T) {
	h := newHarness(t, variant.NarrowLossy, nil)
	h.expose(t, "Derived")
	if err := h.reg.ExposeAll(h.vm.GlobalObject()); err != nil {
		t.Fatal(err)
	}

	tests := []struct {
		name string
		src  string
		kind errors.Kind
	}{
		{"plain", `(class Plain {})`, errors.KindInvalidInput},
		{"value", `(class V extends Vector2 {})`, errors.KindInvalidInput},
		{"signals", `(function () { class S extends Derived {} S.signals = 5; return S; })()`, errors.KindTypeMismatch},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ctor := scriptCtor(t, h, tt.src)
			_, err := h.reg.RegisterScriptClass(tt.name+".js", ctor)
			if kindOf(err) != tt.kind {
				t.Fatalf("err = %v, want %s", err, tt.kind)
			}
			if _, ok := h.reg.ScriptClass(tt.name + ".js"); ok {
				t.Error("rejected class registered")
			}
		})
	}
}

func TestScriptClass_AnonymousName(t *testing.T) {
	h := newHarness(t, variant.NarrowLossy, nil)
	h.expose(t, "Derived")
	ctor := scriptCtor(t, h, `(function () { return class extends Derived {}; })()`)
	d, err := h.reg.RegisterScriptClass("lib/enemy.js", ctor)
	if err != nil {
		t.Fatal(err)
	}
	if d.Name != "enemy" {
		t.Errorf("name = %q", d.Name)
	}
}

func TestClose_DropsDescriptors(t *testing.T) {
	h := newHarness(t, variant.NarrowLossy, nil)
	h.expose(t, "Derived")
	ctor := h.vm.Get("Derived").(*goja.Object)
	h.reg.Close()
	if h.reg.Len() != 0 {
		t.Errorf("len = %d", h.reg.Len())
	}
	if _, ok := h.reg.ForConstructor(ctor); ok {
		t.Error("constructor still resolves")
	}
	if _, ok := h.reg.ByName(host.ClassObject); ok {
		t.Error("class still registered")
	}
}
