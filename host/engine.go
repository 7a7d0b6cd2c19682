package host

import (
	"strconv"

	"github.com/wippyai/jsbridge/errors"
	"github.com/wippyai/jsbridge/handle"
	"github.com/wippyai/jsbridge/variant"
)

// Engine is the native object database. It is confined to one goroutine.
type Engine struct {
	db      *ClassDB
	objects *handle.Table[*Instance]
	onFree  []func(*Instance)
}

func NewEngine(db *ClassDB) *Engine {
	return &Engine{
		db:      db,
		objects: handle.NewTable[*Instance](),
	}
}

func (e *Engine) ClassDB() *ClassDB { return e.db }

// Len returns the number of live instances.
func (e *Engine) Len() int { return e.objects.Len() }

// OnFree registers a hook that runs after an instance is destroyed.
func (e *Engine) OnFree(fn func(*Instance)) {
	e.onFree = append(e.onFree, fn)
}

// Instantiate creates an instance of class. Init hooks run from the root
// class down. Refcounted instances start pending.
func (e *Engine) Instantiate(class string) (*Instance, error) {
	info, ok := e.db.Class(class)
	if !ok {
		return nil, errors.ClassNotFound(class)
	}
	if !info.Instantiable {
		return nil, errors.New(errors.PhaseRuntime, errors.KindUnsupported).
			Native(class).
			Detail("class is not instantiable").
			Build()
	}

	inst := &Instance{engine: e, class: info}
	inst.id = e.objects.Add(inst)

	var chain []*ClassInfo
	for c := info; c != nil; {
		chain = append(chain, c)
		if c.Parent == "" {
			break
		}
		c, _ = e.db.Class(c.Parent)
	}
	for n := len(chain) - 1; n >= 0; n-- {
		if chain[n].Init != nil {
			chain[n].Init(inst)
		}
	}
	return inst, nil
}

// Lookup returns a live instance by id.
func (e *Engine) Lookup(id uint64) (*Instance, bool) {
	inst, err := e.objects.Get(handle.ID(id))
	if err != nil {
		return nil, false
	}
	return inst, true
}

// Free destroys a non-refcounted instance.
func (e *Engine) Free(inst *Instance) error {
	if inst.destroyed {
		return errors.Disposed(errors.PhaseRuntime, inst.class.Name+" instance")
	}
	if inst.class.RefCounted {
		return errors.New(errors.PhaseRuntime, errors.KindUnsupported).
			Native(inst.class.Name).
			Detail("refcounted instances are released, not freed").
			Build()
	}
	e.destroy(inst)
	return nil
}

// Release drops one reference and destroys the instance when the count
// reaches zero. A pending instance is destroyed directly.
func (e *Engine) Release(inst *Instance) bool {
	if inst.destroyed {
		return false
	}
	if inst.Pending() {
		e.destroy(inst)
		return true
	}
	if inst.Unreference() {
		e.destroy(inst)
		return true
	}
	return false
}

func (e *Engine) destroy(inst *Instance) {
	if inst.destroyed {
		return
	}
	inst.destroyed = true
	b := inst.binding
	inst.binding = nil
	if b != nil {
		b.Freed(inst)
	}
	e.objects.Take(inst.id)
	inst.signals = nil
	for _, fn := range e.onFree {
		fn(inst)
	}
}

// Close destroys every remaining instance.
func (e *Engine) Close() {
	var live []*Instance
	e.objects.Each(func(_ handle.ID, inst *Instance) bool {
		live = append(live, inst)
		return true
	})
	for _, inst := range live {
		e.destroy(inst)
	}
}

// Call invokes an instance method resolved through the class chain.
func (e *Engine) Call(inst *Instance, method string, args []variant.Value) (variant.Value, error) {
	if inst.destroyed {
		return variant.Nil(), errors.Disposed(errors.PhaseRuntime, inst.class.Name+" instance")
	}
	m, owner := e.db.FindMethod(inst.class.Name, method)
	if m == nil {
		return variant.Nil(), errors.NotFound(errors.PhaseRuntime, "method", inst.class.Name+"."+method)
	}
	if m.Static() {
		return e.Invoke(owner.Name, m, nil, args)
	}
	return e.Invoke(owner.Name, m, inst, args)
}

// CallStatic invokes a static method.
func (e *Engine) CallStatic(class, method string, args []variant.Value) (variant.Value, error) {
	m, owner := e.db.FindMethod(class, method)
	if m == nil {
		return variant.Nil(), errors.NotFound(errors.PhaseRuntime, "method", class+"."+method)
	}
	if !m.Static() {
		return variant.Nil(), errors.New(errors.PhaseRuntime, errors.KindInvalidInput).
			Path(class, method).
			Detail("method is not static").
			Build()
	}
	return e.Invoke(owner.Name, m, nil, args)
}

// Invoke validates arguments against the method signature, fills defaults
// and calls the implementation.
func (e *Engine) Invoke(class string, m *MethodInfo, self *Instance, args []variant.Value) (variant.Value, error) {
	if len(args) < m.Required() {
		return variant.Nil(), errors.ArgumentCount([]string{class, m.Name}, m.Required(), len(args))
	}
	if !m.Vararg() && len(args) > len(m.Args) {
		return variant.Nil(), errors.ArgumentCount([]string{class, m.Name}, len(m.Args), len(args))
	}

	if len(args) < len(m.Args) {
		full := make([]variant.Value, len(m.Args))
		copy(full, args)
		for n := len(args); n < len(m.Args); n++ {
			full[n] = *m.Args[n].Default
		}
		args = full
	}
	for n, a := range m.Args {
		if err := a.Type.Check(args[n]); err != nil {
			if be, ok := err.(*errors.Error); ok {
				be.Path = append([]string{class, m.Name, argName(a, n)}, be.Path...)
			}
			return variant.Nil(), err
		}
	}
	if m.Call == nil {
		return variant.Nil(), errors.NotInitialized(errors.PhaseRuntime, class+"."+m.Name)
	}
	return m.Call(self, args)
}

func argName(a Arg, n int) string {
	if a.Name != "" {
		return a.Name
	}
	return strconv.Itoa(n)
}

// GetProperty reads a property through its getter or the instance store.
func (e *Engine) GetProperty(inst *Instance, name string) (variant.Value, error) {
	p := e.db.FindProperty(inst.class.Name, name)
	if p == nil {
		return variant.Nil(), errors.NotFound(errors.PhaseRuntime, "property", inst.class.Name+"."+name)
	}
	if p.Getter != "" {
		return e.Call(inst, p.Getter, nil)
	}
	return inst.Get(name), nil
}

// SetProperty writes a property through its setter or the instance store.
func (e *Engine) SetProperty(inst *Instance, name string, v variant.Value) error {
	p := e.db.FindProperty(inst.class.Name, name)
	if p == nil {
		return errors.NotFound(errors.PhaseRuntime, "property", inst.class.Name+"."+name)
	}
	if p.Setter != "" {
		_, err := e.Call(inst, p.Setter, []variant.Value{v})
		return err
	}
	if err := p.Type.Check(v); err != nil {
		return err
	}
	inst.Set(name, v)
	return nil
}
