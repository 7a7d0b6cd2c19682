// Package jsbridge binds a native class catalog to a JavaScript realm.
//
// The library lets scripts instantiate, extend and call native classes
// while native code holds references to script-created objects, with
// object lifetimes reconciled across both garbage domains.
//
// # Architecture Overview
//
//	jsbridge/
//	├── handle/           Generational handle tables (64-bit and 32-bit ids)
//	├── variant/          Native value model, type descriptors, narrowing
//	├── host/             Class catalog and native object engine
//	├── classes/          Per-realm class registry and constructor synthesis
//	├── binding/          Native object <-> script wrapper binding table
//	├── modules/          CommonJS module system with pluggable resolvers
//	├── timer/            Hierarchical timer wheel
//	├── realm/            Realm glue: marshalling, timers, console, registry
//	├── wasmclass/        Core wasm modules exposed as static host classes
//	├── errors/           Structured error types
//	└── cmd/jsbridge/     Script runner with an interactive REPL
//
// # Quick Start
//
//	r, err := realm.New(realm.Options{FS: os.DirFS("scripts"), Globals: true})
//	if err != nil {
//		return err
//	}
//	defer r.Close()
//
//	if _, err := r.Require("main"); err != nil {
//		return err
//	}
//	for r.Timers().Len() > 0 {
//		r.Update(16 * time.Millisecond)
//	}
//
// A realm is owned by the goroutine that created it. Other goroutines hand
// work over with Realm.Post or through a realm.Registry.
package jsbridge
