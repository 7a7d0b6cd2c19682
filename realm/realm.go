package realm

import (
	"time"

	"github.com/dop251/goja"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/wippyai/jsbridge/binding"
	"github.com/wippyai/jsbridge/classes"
	"github.com/wippyai/jsbridge/errors"
	"github.com/wippyai/jsbridge/host"
	"github.com/wippyai/jsbridge/internal/affinity"
	"github.com/wippyai/jsbridge/modules"
	"github.com/wippyai/jsbridge/timer"
	"github.com/wippyai/jsbridge/variant"
)

// Realm is one scripting context bridged to a native engine.
type Realm struct {
	vm       *goja.Runtime
	engine   *host.Engine
	classes  *classes.Registry
	bindings *binding.Table
	modules  *modules.Manager
	wheel    *timer.Wheel[*Realm]
	marshal  *marshaller
	registry *Registry
	logger   *zap.Logger
	inbox    inbox
	rejected []*goja.Promise
	opts     Options
	owner    affinity.Owner
	id       uuid.UUID
	closed   bool
	owned    bool // engine created by New, destroyed by Close
}

// New creates a realm owned by the calling goroutine.
func New(opts Options) (*Realm, error) {
	opts = opts.withDefaults()
	r := &Realm{
		vm:       goja.New(),
		id:       uuid.New(),
		opts:     opts,
		owner:    affinity.Capture(),
		registry: opts.Registry,
	}
	r.logger = opts.Logger.With(zap.String("realm", r.id.String()))

	r.engine = opts.Engine
	if r.engine == nil {
		eng, err := NewEngine()
		if err != nil {
			return nil, err
		}
		r.engine = eng
		r.owned = true
	}

	wheel, err := timer.New[*Realm](opts.Timer)
	if err != nil {
		return nil, err
	}
	r.wheel = wheel

	r.classes = classes.New(r.vm, r.engine, classes.Options{
		Logger:    r.logger,
		Narrowing: opts.Narrowing,
	})
	r.bindings = binding.New(r.vm, r.classes, binding.Options{
		Logger: r.logger,
		Notify: r.inbox.collect,
	})
	r.marshal = &marshaller{r: r}
	r.classes.Attach(r.marshal, r.bindings)

	r.modules = modules.NewManager(r.vm, modules.Options{
		Logger:     r.logger,
		OnLoaded:   r.detectClass,
		SourceMaps: opts.SourceMaps,
	})
	if opts.FS != nil {
		r.modules.AddResolver(modules.NewFileResolver(opts.FS,
			modules.WithRoots(opts.Roots...),
			modules.WithExtensions(opts.Extensions...)))
	}
	for _, res := range opts.Resolvers {
		r.modules.AddResolver(res)
	}

	if err := r.install(); err != nil {
		return nil, err
	}
	r.vm.SetPromiseRejectionTracker(r.trackRejection)

	if r.registry != nil {
		r.registry.Register(r)
	}
	r.logger.Debug("realm created", zap.Int("classes", len(r.engine.ClassDB().ClassNames())))
	return r, nil
}

func (r *Realm) install() error {
	global := r.vm.GlobalObject()
	if err := r.modules.AddLoader(ModuleName, func(_ *goja.Runtime, module *goja.Object) error {
		return r.classes.ExposeAll(module.Get("exports").ToObject(r.vm))
	}); err != nil {
		return err
	}
	if err := r.modules.Install(global); err != nil {
		return err
	}
	if err := r.installConsole(global); err != nil {
		return err
	}
	if err := r.installTimers(global); err != nil {
		return err
	}
	if r.opts.Globals {
		return r.classes.ExposeAll(global)
	}
	return nil
}

// ID returns the realm identifier used by the Registry.
func (r *Realm) ID() uuid.UUID { return r.id }

func (r *Realm) Runtime() *goja.Runtime       { return r.vm }
func (r *Realm) Engine() *host.Engine         { return r.engine }
func (r *Realm) Classes() *classes.Registry   { return r.classes }
func (r *Realm) Bindings() *binding.Table     { return r.bindings }
func (r *Realm) Modules() *modules.Manager    { return r.modules }
func (r *Realm) Timers() *timer.Wheel[*Realm] { return r.wheel }

// Post queues fn for the owner's next Update. It is safe to call from any
// goroutine and reports false after Close.
func (r *Realm) Post(fn func(*Realm)) bool {
	return r.inbox.post(fn)
}

// Expose returns the constructor of a catalog class.
func (r *Realm) Expose(class string) (*goja.Object, error) {
	r.owner.Check("realm.Expose")
	if err := r.usable(); err != nil {
		return nil, err
	}
	d, err := r.classes.Expose(class)
	if err != nil {
		return nil, err
	}
	return d.Ctor, nil
}

// Wrap returns the script wrapper of obj, binding it on first use. The
// same wrapper is returned while script code keeps it reachable.
func (r *Realm) Wrap(obj variant.Object) (goja.Value, error) {
	r.owner.Check("realm.Wrap")
	if err := r.usable(); err != nil {
		return nil, err
	}
	return r.wrap(obj)
}

func (r *Realm) wrap(obj variant.Object) (goja.Value, error) {
	if obj == nil {
		return goja.Null(), nil
	}
	if id, ok := r.bindings.Check(obj); ok {
		if w, ok := r.bindings.Wrapper(id); ok {
			return w, nil
		}
		// collected, notice not drained yet: keep the binding and its class
		h, err := r.bindings.Get(id)
		if err != nil {
			return nil, err
		}
		d, err := r.classes.Lookup(h.Class)
		if err != nil {
			return nil, err
		}
		w := r.vm.CreateObject(d.Prototype)
		if err := r.bindings.Rewrap(id, w); err != nil {
			return nil, err
		}
		return w, nil
	}
	if inst, ok := obj.(*host.Instance); ok && inst.Destroyed() {
		return nil, errors.Disposed(errors.PhaseMarshal, obj.ClassName()+" instance")
	}

	d, err := r.classes.Expose(obj.ClassName())
	if err != nil {
		return nil, err
	}
	w := r.vm.CreateObject(d.Prototype)
	if _, err := r.bindings.Bind(d.ID, obj, w); err != nil {
		return nil, err
	}
	return w, nil
}

// ToScript converts a native value.
func (r *Realm) ToScript(v variant.Value) (goja.Value, error) {
	r.owner.Check("realm.ToScript")
	return r.marshal.ToScript(v)
}

// ToNative converts a script value and checks it against want, which may
// be nil.
func (r *Realm) ToNative(v goja.Value, want *variant.TypeDesc) (variant.Value, error) {
	r.owner.Check("realm.ToNative")
	out, err := r.marshal.ToNative(v, want)
	if err != nil || want == nil {
		return out, err
	}
	return out, want.Check(out)
}

// Eval runs a script in the global scope.
func (r *Realm) Eval(name, src string) (goja.Value, error) {
	r.owner.Check("realm.Eval")
	if err := r.usable(); err != nil {
		return nil, err
	}
	return r.vm.RunScript(name, src)
}

// Require loads a module from the top level and returns its exports.
func (r *Realm) Require(spec string) (goja.Value, error) {
	r.owner.Check("realm.Require")
	if err := r.usable(); err != nil {
		return nil, err
	}
	mod, err := r.modules.Require(nil, spec)
	if err != nil {
		return nil, err
	}
	return mod.Exports(), nil
}

// Update runs one frame: queued work and collection notices, then the
// timer wheel advanced by elapsed, then rejection reporting. It returns
// the number of timer callbacks run.
func (r *Realm) Update(elapsed time.Duration) int {
	r.owner.Check("realm.Update")
	if r.closed {
		return 0
	}
	r.drain()
	r.wheel.Tick(elapsed)
	n := r.wheel.Invoke(r, r.timerFailed)
	r.reportRejections()
	return n
}

func (r *Realm) drain() {
	ids, tasks := r.inbox.take()
	for _, id := range ids {
		if err := r.bindings.Collected(id); err != nil {
			r.logger.Error("finalize collected wrapper", zap.Stringer("handle", id), zap.Error(err))
		}
	}
	for _, fn := range tasks {
		fn(r)
	}
}

func (r *Realm) trackRejection(p *goja.Promise, op goja.PromiseRejectionOperation) {
	switch op {
	case goja.PromiseRejectionReject:
		r.rejected = append(r.rejected, p)
	case goja.PromiseRejectionHandle:
		for i, q := range r.rejected {
			if q == p {
				r.rejected = append(r.rejected[:i], r.rejected[i+1:]...)
				break
			}
		}
	}
}

func (r *Realm) reportRejections() {
	for _, p := range r.rejected {
		reason := "undefined"
		if v := p.Result(); v != nil {
			reason = v.String()
		}
		r.logger.Warn("unhandled promise rejection", zap.String("reason", reason))
	}
	r.rejected = r.rejected[:0]
}

// detectClass registers the class a module exports when it extends an
// exposed native class. Either the default export or the module export
// itself may be the class.
func (r *Realm) detectClass(mod *modules.Module) error {
	exp, ok := mod.Exports().(*goja.Object)
	if !ok {
		return nil
	}
	ctor := exp
	if def, ok := exp.Get("default").(*goja.Object); ok {
		if _, isFn := goja.AssertConstructor(def); isFn {
			ctor = def
		}
	}
	if _, ok := goja.AssertConstructor(ctor); !ok {
		return nil
	}
	if _, ok := r.classes.Extends(ctor); !ok {
		return nil
	}
	_, err := r.classes.RegisterScriptClass(mod.ID, ctor)
	return err
}

func (r *Realm) usable() error {
	if r.closed {
		return errors.Disposed(errors.PhaseRuntime, "realm")
	}
	return nil
}

// Close tears the realm down: timers are cancelled, queued work is
// dropped, modules and bindings are released (running finalizers) and the
// realm leaves its registry. The runtime must not be used afterwards.
func (r *Realm) Close() error {
	r.owner.Check("realm.Close")
	if r.closed {
		return nil
	}
	r.closed = true
	if r.registry != nil {
		r.registry.unregister(r.id)
	}

	r.wheel.Clear()
	_, tasks := r.inbox.close()
	if len(tasks) > 0 {
		r.logger.Debug("dropping queued work", zap.Int("tasks", len(tasks)))
	}
	r.modules.Close()
	err := r.bindings.Close()
	r.classes.Close()
	if r.owned {
		r.engine.Close()
	}
	r.rejected = nil

	r.logger.Debug("realm closed")
	return err
}
