package classes

import (
	"github.com/dop251/goja"
	"go.uber.org/zap"

	"github.com/wippyai/jsbridge/errors"
	"github.com/wippyai/jsbridge/handle"
	"github.com/wippyai/jsbridge/host"
	"github.com/wippyai/jsbridge/variant"
)

// Marshaller converts values across the boundary.
type Marshaller interface {
	ToScript(v variant.Value) (goja.Value, error)
	// ToNative converts v. want may be nil to accept any kind.
	ToNative(v goja.Value, want *variant.TypeDesc) (variant.Value, error)
}

// Binder associates native objects with script wrappers.
type Binder interface {
	Bind(class handle.NarrowID, obj variant.Object, wrapper *goja.Object) (handle.ID, error)
	// Unwrap returns the native object bound to a wrapper.
	Unwrap(v goja.Value) (variant.Object, bool)
}

// Options configures a Registry.
type Options struct {
	Logger    *zap.Logger
	Narrowing variant.Policy
}

// Registry is the per-realm class table. It is not safe for concurrent use.
type Registry struct {
	vm       *goja.Runtime
	engine   *host.Engine
	marshal  Marshaller
	binder   Binder
	logger   *zap.Logger
	classes  *handle.NarrowTable[*Descriptor]
	byName   map[string]handle.NarrowID
	byCtor   map[*goja.Object]handle.NarrowID
	byModule map[string]handle.NarrowID
	values   map[variant.Kind]*Descriptor
	kindKey  *goja.Symbol
	freeze   goja.Callable
	members  goja.Callable
	factory  goja.Callable
	policy   variant.Policy
}

// New creates a registry for vm backed by engine's class catalog.
func New(vm *goja.Runtime, engine *host.Engine, opts Options) *Registry {
	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	r := &Registry{
		vm:       vm,
		engine:   engine,
		logger:   logger,
		policy:   opts.Narrowing,
		classes:  handle.NewNarrowTable[*Descriptor](),
		byName:   make(map[string]handle.NarrowID),
		byCtor:   make(map[*goja.Object]handle.NarrowID),
		byModule: make(map[string]handle.NarrowID),
		values:   make(map[variant.Kind]*Descriptor),
		kindKey:  goja.NewSymbol("jsbridge.kind"),
	}
	freeze, _ := goja.AssertFunction(vm.Get("Object").ToObject(vm).Get("freeze"))
	r.freeze = freeze
	if fn, err := vm.RunString(membersSource); err == nil {
		r.members, _ = goja.AssertFunction(fn)
	}
	if fn, err := vm.RunString(classSource); err == nil {
		r.factory, _ = goja.AssertFunction(fn)
	}
	return r
}

// classSource builds a script class whose constructor hands this, new.target
// and the arguments to a native init function. Calling it without new is a
// TypeError raised by the engine itself.
const classSource = `(function (init) {
	return class {
		constructor(...args) {
			init(this, new.target, ...args);
		}
	};
})`

// constructor creates a named class constructor running init for every new
// instance.
func (r *Registry) constructor(name string, init func(this, newTarget *goja.Object, args []goja.Value)) (*goja.Object, error) {
	if r.factory == nil {
		return nil, errors.NotInitialized(errors.PhaseExpose, "class factory")
	}
	fn := r.vm.ToValue(func(call goja.FunctionCall) goja.Value {
		this, _ := call.Argument(0).(*goja.Object)
		newTarget, _ := call.Argument(1).(*goja.Object)
		var args []goja.Value
		if len(call.Arguments) > 2 {
			args = call.Arguments[2:]
		}
		init(this, newTarget, args)
		return goja.Undefined()
	})
	v, err := r.factory(goja.Undefined(), fn)
	if err != nil {
		return nil, errors.Wrap(errors.PhaseExpose, errors.KindInvalidData, err, "constructor "+name)
	}
	ctor, ok := v.(*goja.Object)
	if !ok {
		return nil, errors.NotInitialized(errors.PhaseExpose, name+" constructor")
	}
	if err := r.rename(ctor, name); err != nil {
		return nil, err
	}
	return ctor, nil
}

// Attach installs the marshaller and binder. It must be called before any
// class is exposed.
func (r *Registry) Attach(m Marshaller, b Binder) {
	r.marshal = m
	r.binder = b
}

func (r *Registry) Runtime() *goja.Runtime { return r.vm }
func (r *Registry) Engine() *host.Engine   { return r.engine }
func (r *Registry) Len() int               { return r.classes.Len() }

// Register allocates a class id. Host object class names are unique.
func (r *Registry) Register(category Category, name string, ctor ConstructFunc, fin FinalizeFunc) (handle.NarrowID, error) {
	if category == HostObjectClass {
		if _, ok := r.byName[name]; ok {
			return 0, errors.AlreadyExists(errors.PhaseRegister, "class", name)
		}
	}
	d := &Descriptor{
		Name:        name,
		Category:    category,
		Constructor: ctor,
		Finalizer:   fin,
	}
	id, err := r.classes.Add(d)
	if err != nil {
		return 0, errors.Registration(name, err)
	}
	d.ID = id
	if category == HostObjectClass {
		r.byName[name] = id
	}
	return id, nil
}

// Lookup returns the descriptor for id.
func (r *Registry) Lookup(id handle.NarrowID) (*Descriptor, error) {
	d, err := r.classes.Get(id)
	if err != nil {
		return nil, errors.InvalidHandle(errors.PhaseRegister, uint64(id))
	}
	return d, nil
}

// ByName returns a registered host object class.
func (r *Registry) ByName(name string) (*Descriptor, bool) {
	id, ok := r.byName[name]
	if !ok {
		return nil, false
	}
	d, err := r.classes.Get(id)
	return d, err == nil
}

// ForConstructor returns the descriptor whose script constructor is ctor.
func (r *Registry) ForConstructor(ctor *goja.Object) (*Descriptor, bool) {
	id, ok := r.byCtor[ctor]
	if !ok {
		return nil, false
	}
	d, err := r.classes.Get(id)
	return d, err == nil
}

// Finalize runs the class finalizer for obj.
func (r *Registry) Finalize(class handle.NarrowID, obj variant.Object) error {
	d, err := r.Lookup(class)
	if err != nil {
		return err
	}
	if d.Finalizer != nil {
		d.Finalizer(d, obj)
	}
	return nil
}

// Expose returns the descriptor for a catalog class, building the script
// constructor on first use.
func (r *Registry) Expose(name string) (*Descriptor, error) {
	d, registered := r.ByName(name)
	if registered && d.Exposed() {
		return d, nil
	}

	info, ok := r.engine.ClassDB().Class(name)
	if !ok {
		return nil, errors.ClassNotFound(name)
	}

	var parent *Descriptor
	if info.Parent != "" {
		p, err := r.Expose(info.Parent)
		if err != nil {
			return nil, err
		}
		parent = p
	}

	if !registered {
		id, err := r.Register(HostObjectClass, name, r.instantiate, r.release)
		if err != nil {
			return nil, err
		}
		d, _ = r.classes.Get(id)
	}
	d.Native = info
	d.Parent = parent

	if err := r.build(d); err != nil {
		d.Ctor, d.Prototype = nil, nil
		if !registered {
			r.classes.Remove(d.ID)
			delete(r.byName, name)
		}
		return nil, err
	}
	r.byCtor[d.Ctor] = d.ID

	r.logger.Debug("class exposed",
		zap.String("class", name),
		zap.Stringer("id", d.ID),
		zap.Bool("refcounted", info.RefCounted))
	return d, nil
}

// ExposeAll exposes every catalog class and installs the constructors on
// target. Names target already holds, such as the builtin Object on a
// global object, are left alone.
func (r *Registry) ExposeAll(target *goja.Object) error {
	for _, name := range r.engine.ClassDB().ClassNames() {
		d, err := r.Expose(name)
		if err != nil {
			return err
		}
		if cur, ok := target.Get(name).(*goja.Object); ok && cur != d.Ctor {
			r.logger.Debug("name already taken, constructor not installed", zap.String("class", name))
			continue
		}
		if err := target.Set(name, d.Ctor); err != nil {
			return err
		}
	}
	return r.exposeValueClasses(target)
}

func (r *Registry) build(d *Descriptor) error {
	ctor, err := r.constructor(d.Name, r.nativeConstructor(d))
	if err != nil {
		return err
	}
	proto, ok := ctor.Get("prototype").(*goja.Object)
	if !ok {
		return errors.NotInitialized(errors.PhaseExpose, d.Name+".prototype")
	}
	d.Ctor = ctor
	d.Prototype = proto

	if d.Parent != nil {
		if err := proto.SetPrototype(d.Parent.Prototype); err != nil {
			return errors.Wrap(errors.PhaseExpose, errors.KindInvalidData, err, "link prototype of "+d.Name)
		}
		if err := ctor.SetPrototype(d.Parent.Ctor); err != nil {
			return errors.Wrap(errors.PhaseExpose, errors.KindInvalidData, err, "link constructor of "+d.Name)
		}
	}
	return r.populate(d)
}

func (r *Registry) nativeConstructor(d *Descriptor) func(this, newTarget *goja.Object, args []goja.Value) {
	return func(this, newTarget *goja.Object, args []goja.Value) {
		if d.Native != nil && !d.Native.Instantiable {
			panic(r.vm.NewTypeError("%s is not instantiable", d.Name))
		}
		if this == nil {
			panic(r.vm.NewTypeError("Class constructor %s called without a receiver", d.Name))
		}
		bound := r.boundClass(d, newTarget)

		values := make([]variant.Value, len(args))
		for i, a := range args {
			v, err := r.marshal.ToNative(a, nil)
			if err != nil {
				r.throw(err)
			}
			values[i] = v
		}

		obj, err := d.Constructor(d, values)
		if err != nil {
			r.throw(err)
		}
		if _, err := r.binder.Bind(bound.ID, obj, this); err != nil {
			r.throw(err)
		}
	}
}

// boundClass returns the class an instance constructed through d binds to:
// the nearest registered class on newTarget's constructor chain, so script
// subclasses keep their own class id.
func (r *Registry) boundClass(d *Descriptor, newTarget *goja.Object) *Descriptor {
	for c := newTarget; c != nil && c != d.Ctor; c = c.Prototype() {
		if sd, ok := r.ForConstructor(c); ok {
			return sd
		}
	}
	return d
}

func (r *Registry) instantiate(d *Descriptor, _ []variant.Value) (variant.Object, error) {
	return r.engine.Instantiate(d.Name)
}

// release is the default finalizer: refcounted instances drop the wrapper's
// reference, other instances belong to their native owner.
func (r *Registry) release(_ *Descriptor, obj variant.Object) {
	inst, ok := obj.(*host.Instance)
	if !ok || inst.Destroyed() || !inst.IsRefCounted() {
		return
	}
	if r.engine.Release(inst) {
		r.logger.Debug("instance released", zap.String("class", inst.ClassName()), zap.Uint64("id", inst.InstanceID()))
	}
}

func (r *Registry) rename(fn *goja.Object, name string) error {
	return fn.DefineDataProperty("name", r.vm.ToValue(name), goja.FLAG_FALSE, goja.FLAG_TRUE, goja.FLAG_FALSE)
}

func (r *Registry) function(name string, fn func(goja.FunctionCall) goja.Value) *goja.Object {
	obj := r.vm.ToValue(fn).(*goja.Object)
	_ = r.rename(obj, name)
	return obj
}

// Close drops every descriptor. Script constructors stay reachable from
// script but no longer map back to classes.
func (r *Registry) Close() {
	r.classes.Clear()
	clear(r.byName)
	clear(r.byCtor)
	clear(r.byModule)
	clear(r.values)
}
