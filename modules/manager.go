package modules

import (
	stderrors "errors"
	"strings"

	"github.com/dop251/goja"
	"github.com/dop251/goja/parser"
	"go.uber.org/zap"

	"github.com/wippyai/jsbridge/errors"
)

const (
	wrapperHead = "(function(exports, require, module, __filename, __dirname){"
	wrapperTail = "\n})"
)

// Loader populates a synthetic module. module is the script-visible module
// object; loaders assign module.exports or add properties to it.
type Loader func(vm *goja.Runtime, module *goja.Object) error

// Options configures a Manager.
type Options struct {
	Logger *zap.Logger
	// OnLoaded runs after a resolver-backed module body completes. An error
	// fails the load.
	OnLoaded func(*Module) error
	// SourceMaps enables sourceMappingURL handling; maps are read through
	// the resolver that produced the module.
	SourceMaps bool
}

// Manager owns the module cache of one runtime. It is not safe for
// concurrent use.
type Manager struct {
	vm        *goja.Runtime
	logger    *zap.Logger
	onLoaded  func(*Module) error
	loaders   map[string]Loader
	cache     map[string]*Module
	cacheObj  *goja.Object
	main      *Module
	resolvers []Resolver
	order     []string
	maps      bool
}

// NewManager creates a manager bound to vm.
func NewManager(vm *goja.Runtime, opts Options) *Manager {
	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Manager{
		vm:       vm,
		logger:   logger.Named("modules"),
		onLoaded: opts.OnLoaded,
		maps:     opts.SourceMaps,
		loaders:  make(map[string]Loader),
		cache:    make(map[string]*Module),
		cacheObj: vm.NewObject(),
	}
}

// AddResolver appends a resolver. Resolvers are consulted in order.
func (m *Manager) AddResolver(r Resolver) {
	m.resolvers = append(m.resolvers, r)
}

// AddLoader registers a synthetic module under id.
func (m *Manager) AddLoader(id string, l Loader) error {
	if _, ok := m.loaders[id]; ok {
		return errors.AlreadyExists(errors.PhaseLoad, "module", id)
	}
	m.loaders[id] = l
	return nil
}

// Define registers an AMD-style synthetic module. Dependencies are required
// relative to id; the names require, exports and module refer to the
// module's own bindings. A nil deps list means all three. If factory is not
// callable it becomes the exports value.
func (m *Manager) Define(id string, deps []string, factory goja.Value) error {
	id, err := Extract(id)
	if err != nil {
		return err
	}
	if deps == nil {
		deps = []string{"require", "exports", "module"}
	}
	return m.AddLoader(id, func(vm *goja.Runtime, module *goja.Object) error {
		fn, ok := goja.AssertFunction(factory)
		if !ok {
			module.Set("exports", factory)
			return nil
		}
		rec := m.cache[id]
		args := make([]goja.Value, len(deps))
		for i, d := range deps {
			switch d {
			case "require":
				args[i] = module.Get("require")
			case "exports":
				args[i] = module.Get("exports")
			case "module":
				args[i] = module
			default:
				dep, err := m.Require(rec, d)
				if err != nil {
					return err
				}
				args[i] = dep.Exports()
			}
		}
		ret, err := fn(goja.Undefined(), args...)
		if err != nil {
			return err
		}
		if ret != nil && !goja.IsUndefined(ret) {
			module.Set("exports", ret)
		}
		return nil
	})
}

// Require resolves spec relative to parent (nil for top level) and returns
// the loaded module, loading or reloading it as needed.
func (m *Manager) Require(parent *Module, spec string) (*Module, error) {
	id, err := m.normalize(parent, spec)
	if err != nil {
		return nil, err
	}
	if l, ok := m.loaders[id]; ok {
		return m.load(parent, id, Asset{ID: id, Path: id}, func(rec *Module) error {
			return l(m.vm, rec.Meta)
		}, true)
	}
	for _, r := range m.resolvers {
		if a, ok := r.Resolve(id); ok {
			res := r
			return m.load(parent, res.Name(), a, func(rec *Module) error {
				return m.evaluate(res, rec)
			}, false)
		}
	}
	return nil, errors.ModuleNotFound(id)
}

// Resolve returns the canonical id spec refers to, without loading it.
func (m *Manager) Resolve(parent *Module, spec string) (string, error) {
	id, err := m.normalize(parent, spec)
	if err != nil {
		return "", err
	}
	if _, ok := m.loaders[id]; ok {
		return id, nil
	}
	for _, r := range m.resolvers {
		if a, ok := r.Resolve(id); ok {
			return a.ID, nil
		}
	}
	return "", errors.ModuleNotFound(id)
}

func (m *Manager) normalize(parent *Module, spec string) (string, error) {
	if spec == "" {
		return "", errors.InvalidPath(spec, "empty specifier")
	}
	if !IsRelative(spec) {
		return Extract(spec)
	}
	dir := ""
	if parent != nil {
		dir = Dirname(parent.ID)
	}
	return Combine(dir, spec)
}

func (m *Manager) load(parent *Module, resolver string, a Asset, run func(*Module) error, synthetic bool) (*Module, error) {
	key := a.Path
	if rec, ok := m.cache[key]; ok {
		m.link(parent, key)
		if rec.State == StateLoading || !rec.ReloadRequested {
			return rec, nil
		}
		return rec, m.reload(rec, run)
	}

	rec := &Module{
		ID:        a.ID,
		Path:      key,
		Resolver:  resolver,
		Synthetic: synthetic,
		State:     StateLoading,
	}
	if synthetic {
		rec.Resolver = ""
	}
	m.cache[key] = rec
	m.order = append(m.order, key)
	if m.main == nil {
		m.main = rec
		rec.Main = true
	}
	m.link(parent, key)

	if err := m.execute(rec, run); err != nil {
		m.evict(rec)
		if parent != nil {
			parent.removeChild(key)
			m.syncChildren(parent)
		}
		m.logger.Debug("module load failed", zap.String("id", rec.ID), zap.Error(err))
		return nil, err
	}
	m.logger.Debug("module loaded", zap.String("id", rec.ID), zap.String("path", key))
	return rec, nil
}

func (m *Manager) reload(rec *Module, run func(*Module) error) error {
	oldMeta, oldChildren := rec.Meta, rec.Children
	rec.Children = nil
	rec.State = StateLoading
	if err := m.execute(rec, run); err != nil {
		rec.Meta, rec.Children = oldMeta, oldChildren
		rec.State = StateReloadPending
		m.cacheObj.Set(rec.Path, oldMeta)
		m.logger.Warn("module reload failed, keeping previous exports",
			zap.String("id", rec.ID), zap.Error(err))
		return err
	}
	rec.ReloadRequested = false
	m.logger.Debug("module reloaded", zap.String("id", rec.ID))
	return nil
}

func (m *Manager) execute(rec *Module, run func(*Module) error) error {
	rec.Meta = m.newMeta(rec)
	m.cacheObj.Set(rec.Path, rec.Meta)
	if err := run(rec); err != nil {
		return errors.Load(rec.ID, err)
	}
	if m.onLoaded != nil && !rec.Synthetic {
		if err := m.onLoaded(rec); err != nil {
			return errors.Load(rec.ID, err)
		}
	}
	rec.Meta.Set("loaded", true)
	rec.State = StateLoaded
	return nil
}

func (m *Manager) evaluate(res Resolver, rec *Module) error {
	src, err := res.Read(rec.Path)
	if err != nil {
		return err
	}
	if strings.HasSuffix(rec.Path, ".json") {
		json := m.vm.Get("JSON").ToObject(m.vm)
		parse, _ := goja.AssertFunction(json.Get("parse"))
		v, err := parse(json, m.vm.ToValue(string(src)))
		if err != nil {
			return err
		}
		rec.Meta.Set("exports", v)
		return nil
	}

	prg, err := m.compile(res, rec.Path, wrapperHead+string(src)+wrapperTail)
	if err != nil {
		return err
	}
	v, err := m.vm.RunProgram(prg)
	if err != nil {
		return err
	}
	fn, ok := goja.AssertFunction(v)
	if !ok {
		return errors.InvalidData(errors.PhaseLoad, []string{rec.ID}, "module wrapper is not a function")
	}
	exports := rec.Meta.Get("exports")
	_, err = fn(exports,
		exports,
		rec.Meta.Get("require"),
		rec.Meta,
		m.vm.ToValue(rec.Path),
		m.vm.ToValue(Dirname(rec.Path)),
	)
	return err
}

func (m *Manager) compile(res Resolver, name, src string) (*goja.Program, error) {
	var opt parser.Option = parser.WithDisableSourceMaps
	if m.maps {
		opt = parser.WithSourceMapLoader(func(p string) ([]byte, error) {
			data, err := res.Read(strings.TrimPrefix(p, sqlPrefix))
			if err != nil {
				// a missing map is not fatal
				m.logger.Debug("source map unavailable", zap.String("path", p), zap.Error(err))
				return nil, nil
			}
			return data, nil
		})
	}
	ast, err := goja.Parse(name, src, opt)
	if err != nil {
		return nil, err
	}
	return goja.CompileAST(ast, false)
}

func (m *Manager) newMeta(rec *Module) *goja.Object {
	meta := m.vm.NewObject()
	meta.Set("id", rec.ID)
	meta.Set("filename", rec.Path)
	meta.Set("loaded", false)
	meta.Set("exports", m.vm.NewObject())
	meta.Set("children", m.vm.NewArray())
	meta.Set("require", m.requireFunc(rec))
	return meta
}

func (m *Manager) link(parent *Module, key string) {
	if parent == nil || parent.Path == key {
		return
	}
	parent.addChild(key)
	m.syncChildren(parent)
}

func (m *Manager) syncChildren(rec *Module) {
	if rec.Meta == nil {
		return
	}
	items := make([]any, len(rec.Children))
	for i, c := range rec.Children {
		items[i] = c
	}
	rec.Meta.Set("children", m.vm.NewArray(items...))
}

func (m *Manager) evict(rec *Module) {
	delete(m.cache, rec.Path)
	m.cacheObj.Delete(rec.Path)
	for i, k := range m.order {
		if k == rec.Path {
			m.order = append(m.order[:i], m.order[i+1:]...)
			break
		}
	}
	if m.main == rec {
		m.main = nil
		rec.Main = false
	}
}

// MarkReload flags a cached module so the next require re-executes it.
// Synthetic modules cannot be reloaded.
func (m *Manager) MarkReload(key string) error {
	rec, ok := m.Get(key)
	if !ok {
		return errors.ModuleNotFound(key)
	}
	if rec.Synthetic {
		return errors.Unsupported(errors.PhaseLoad, "reload of synthetic module "+rec.ID)
	}
	rec.ReloadRequested = true
	if rec.State == StateLoaded {
		rec.State = StateReloadPending
	}
	return nil
}

// Get finds a cached module by asset path, id, or any specifier that
// resolves to a cached id.
func (m *Manager) Get(key string) (*Module, bool) {
	if rec, ok := m.cache[key]; ok {
		return rec, true
	}
	if rec := m.byID(key); rec != nil {
		return rec, true
	}
	if id, err := m.Resolve(nil, key); err == nil {
		if rec := m.byID(id); rec != nil {
			return rec, true
		}
	}
	return nil, false
}

func (m *Manager) byID(id string) *Module {
	for _, rec := range m.cache {
		if rec.ID == id {
			return rec
		}
	}
	return nil
}

// Modules returns cached modules in load order.
func (m *Manager) Modules() []*Module {
	out := make([]*Module, 0, len(m.order))
	for _, k := range m.order {
		out = append(out, m.cache[k])
	}
	return out
}

// Main returns the first module loaded, or nil.
func (m *Manager) Main() *Module {
	return m.main
}

// Install defines the global require and define functions on global.
func (m *Manager) Install(global *goja.Object) error {
	if err := global.Set("require", m.requireFunc(nil)); err != nil {
		return err
	}
	return global.Set("define", m.defineFunc())
}

// Close drops the cache and all synthetic loaders.
func (m *Manager) Close() {
	for _, k := range m.order {
		m.cacheObj.Delete(k)
	}
	m.cache = make(map[string]*Module)
	m.loaders = make(map[string]Loader)
	m.order = nil
	m.main = nil
}

func (m *Manager) requireFunc(rec *Module) *goja.Object {
	vm := m.vm
	fn := vm.ToValue(func(call goja.FunctionCall) goja.Value {
		spec, ok := call.Argument(0).Export().(string)
		if !ok {
			panic(vm.NewTypeError("require: module id must be a string"))
		}
		mod, err := m.Require(rec, spec)
		if err != nil {
			m.throw(err)
		}
		return mod.Exports()
	}).ToObject(vm)

	moduleID := ""
	if rec != nil {
		moduleID = rec.ID
	}
	fn.Set("cache", m.cacheObj)
	fn.Set("moduleId", moduleID)
	fn.Set("resolve", func(call goja.FunctionCall) goja.Value {
		id, err := m.Resolve(rec, call.Argument(0).String())
		if err != nil {
			m.throw(err)
		}
		return vm.ToValue(id)
	})
	main := vm.ToValue(func(goja.FunctionCall) goja.Value {
		if m.main == nil || m.main.Meta == nil {
			return goja.Undefined()
		}
		return m.main.Meta
	})
	fn.DefineAccessorProperty("main", main, nil, goja.FLAG_FALSE, goja.FLAG_TRUE)
	return fn
}

func (m *Manager) defineFunc() goja.Value {
	vm := m.vm
	return vm.ToValue(func(call goja.FunctionCall) goja.Value {
		id, ok := call.Argument(0).Export().(string)
		if !ok {
			panic(vm.NewTypeError("define: module id must be a string"))
		}
		var deps []string
		factory := call.Argument(1)
		if len(call.Arguments) > 2 {
			if err := vm.ExportTo(call.Argument(1), &deps); err != nil {
				panic(vm.NewTypeError("define: dependencies must be an array of strings"))
			}
			factory = call.Argument(2)
		}
		if err := m.Define(id, deps, factory); err != nil {
			m.throw(err)
		}
		return goja.Undefined()
	})
}

// throw rethrows script exceptions unchanged so the original stack
// survives; other errors surface as Go errors.
func (m *Manager) throw(err error) {
	var ex *goja.Exception
	if stderrors.As(err, &ex) {
		panic(ex)
	}
	panic(m.vm.NewGoError(err))
}
