package binding

import (
	"runtime"

	"github.com/dop251/goja"
	"go.uber.org/zap"

	"github.com/wippyai/jsbridge/errors"
	"github.com/wippyai/jsbridge/handle"
	"github.com/wippyai/jsbridge/host"
	"github.com/wippyai/jsbridge/internal/affinity"
	"github.com/wippyai/jsbridge/internal/assert"
	"github.com/wippyai/jsbridge/variant"
)

// FinalizerSource runs class finalizers.
type FinalizerSource interface {
	Finalize(class handle.NarrowID, obj variant.Object) error
}

// refCounter is implemented by objects with cooperative reference counting.
type refCounter interface {
	IsRefCounted() bool
	Pending() bool
	InitRef() bool
	Reference() bool
}

// bindable objects accept a binding for owner notifications.
type bindable interface {
	Binding() host.Binding
	SetBinding(b host.Binding) error
	Destroyed() bool
}

// ObjectHandle binds one native object to one wrapper.
type ObjectHandle struct {
	Native  variant.Object
	ref     wrapperRef
	cleanup runtime.Cleanup
	Class   handle.NarrowID
	count   int32
	watched bool
}

// Count returns the reference count.
func (h *ObjectHandle) Count() int32 { return h.count }

// Strong reports whether the wrapper is held strongly.
func (h *ObjectHandle) Strong() bool { return h.ref.isStrong() }

type link struct {
	id handle.ID
}

// Options configures a Table.
type Options struct {
	Logger *zap.Logger
	// Notify receives the ids of collected wrappers. It runs on the
	// collector's goroutine and must hand the id to the owner. When nil,
	// collection is not observed and objects stay bound until unbound.
	Notify func(id handle.ID)
}

// Table is the object binding table of one realm. It implements
// host.Binding so owners can report destruction and refcount changes.
type Table struct {
	vm         *goja.Runtime
	finalizers FinalizerSource
	handles    *handle.Table[*ObjectHandle]
	index      map[variant.Object]handle.ID
	key        *goja.Symbol
	notify     func(handle.ID)
	logger     *zap.Logger
	owner      affinity.Owner
}

var _ host.Binding = (*Table)(nil)

// New creates a table for vm. The calling goroutine becomes the owner.
func New(vm *goja.Runtime, finalizers FinalizerSource, opts Options) *Table {
	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Table{
		vm:         vm,
		finalizers: finalizers,
		handles:    handle.NewTable[*ObjectHandle](),
		index:      make(map[variant.Object]handle.ID),
		key:        goja.NewSymbol("jsbridge.binding"),
		notify:     opts.Notify,
		logger:     logger,
		owner:      affinity.Capture(),
	}
}

// Len returns the number of bound objects.
func (t *Table) Len() int { return t.handles.Len() }

// Bind associates obj with wrapper. The wrapper starts weakly held.
// Refcounted objects gain one reference owned by the binding; a pending
// object is resurrected into the live state first.
func (t *Table) Bind(class handle.NarrowID, obj variant.Object, wrapper *goja.Object) (handle.ID, error) {
	t.owner.Check("binding.Bind")
	if obj == nil || wrapper == nil {
		return 0, assert.Fail(errors.InvalidInput(errors.PhaseBind, "bind requires an object and a wrapper"))
	}
	if id, ok := t.index[obj]; ok {
		return 0, assert.Fail(errors.New(errors.PhaseBind, errors.KindAlreadyExists).
			Native(obj.ClassName()).
			Value(id).
			Detail("object %d is already bound", obj.InstanceID()).
			Build())
	}

	b, hasBinding := obj.(bindable)
	if hasBinding {
		if b.Destroyed() {
			return 0, errors.Disposed(errors.PhaseBind, obj.ClassName()+" instance")
		}
		if b.Binding() != nil {
			return 0, errors.New(errors.PhaseBind, errors.KindAlreadyExists).
				Native(obj.ClassName()).
				Detail("object %d is bound by another realm", obj.InstanceID()).
				Build()
		}
	}
	if rc, ok := obj.(refCounter); ok && rc.IsRefCounted() {
		if rc.Pending() {
			rc.InitRef()
		} else {
			rc.Reference()
		}
	}

	h := &ObjectHandle{
		Native: obj,
		Class:  class,
		ref:    weakRef(wrapper),
	}
	id := t.handles.Add(h)
	t.index[obj] = id
	if err := t.link(wrapper, id); err != nil {
		t.handles.Take(id)
		delete(t.index, obj)
		return 0, err
	}
	t.watch(h, wrapper, id)
	if hasBinding {
		_ = b.SetBinding(t)
	}

	t.logger.Debug("object bound",
		zap.String("class", obj.ClassName()),
		zap.Uint64("object", obj.InstanceID()),
		zap.Stringer("handle", id))
	return id, nil
}

func (t *Table) link(wrapper *goja.Object, id handle.ID) error {
	box := t.vm.ToValue(&link{id: id})
	if err := wrapper.DefineDataPropertySymbol(t.key, box, goja.FLAG_FALSE, goja.FLAG_TRUE, goja.FLAG_FALSE); err != nil {
		return errors.Wrap(errors.PhaseBind, errors.KindInvalidData, err, "link wrapper")
	}
	return nil
}

func (t *Table) watch(h *ObjectHandle, wrapper *goja.Object, id handle.ID) {
	if t.notify == nil {
		return
	}
	h.cleanup = runtime.AddCleanup(wrapper, t.notify, id)
	h.watched = true
}

func (h *ObjectHandle) unwatch() {
	if h.watched {
		h.cleanup.Stop()
		h.watched = false
	}
}

// Check reports whether obj is bound.
func (t *Table) Check(obj variant.Object) (handle.ID, bool) {
	id, ok := t.index[obj]
	return id, ok
}

// Get returns the handle for id.
func (t *Table) Get(id handle.ID) (*ObjectHandle, error) {
	h, err := t.handles.Get(id)
	if err != nil {
		return nil, assert.Fail(errors.InvalidHandle(errors.PhaseBind, uint64(id)))
	}
	return h, nil
}

// Wrapper returns the wrapper bound under id. It returns false when the
// wrapper was collected and the notification has not been processed yet.
func (t *Table) Wrapper(id handle.ID) (*goja.Object, bool) {
	h, err := t.handles.Get(id)
	if err != nil {
		return nil, false
	}
	w := h.ref.value()
	return w, w != nil
}

// Unwrap returns the native object bound to a wrapper.
func (t *Table) Unwrap(v goja.Value) (variant.Object, bool) {
	obj, ok := v.(*goja.Object)
	if !ok {
		return nil, false
	}
	lv := obj.GetSymbol(t.key)
	if lv == nil || goja.IsUndefined(lv) {
		return nil, false
	}
	l, ok := lv.Export().(*link)
	if !ok {
		return nil, false
	}
	h, err := t.handles.Get(l.id)
	if err != nil || h.ref.value() != obj {
		return nil, false
	}
	return h.Native, true
}

// Linked reports whether obj was ever bound by this table, including
// wrappers whose binding has since been removed.
func (t *Table) Linked(obj *goja.Object) bool {
	lv := obj.GetSymbol(t.key)
	if lv == nil || goja.IsUndefined(lv) {
		return false
	}
	_, ok := lv.Export().(*link)
	return ok
}

// Rewrap attaches a fresh wrapper to a binding whose wrapper was collected
// before its notification was processed. The binding, its references and
// its finalizer obligation carry over.
func (t *Table) Rewrap(id handle.ID, wrapper *goja.Object) error {
	t.owner.Check("binding.Rewrap")
	h, err := t.Get(id)
	if err != nil {
		return err
	}
	if h.ref.value() != nil {
		return assert.Fail(errors.New(errors.PhaseBind, errors.KindAlreadyExists).
			Value(id).
			Detail("binding %v still has a live wrapper", id).
			Build())
	}
	if err := t.link(wrapper, id); err != nil {
		return err
	}
	h.unwatch()
	h.ref = weakRef(wrapper)
	if h.count > 0 {
		h.ref, _ = h.ref.promote()
	}
	t.watch(h, wrapper, id)
	return nil
}

// IncreaseReference increments the count, promoting the wrapper to a
// strong reference on the 0 -> 1 transition. It fails if the wrapper was
// already collected.
func (t *Table) IncreaseReference(id handle.ID) (int32, error) {
	t.owner.Check("binding.IncreaseReference")
	h, err := t.Get(id)
	if err != nil {
		return 0, err
	}
	if h.count == 0 {
		ref, ok := h.ref.promote()
		if !ok {
			return 0, errors.New(errors.PhaseBind, errors.KindDisposed).
				Value(id).
				Detail("wrapper of %s was collected", h.Native.ClassName()).
				Build()
		}
		h.ref = ref
	}
	h.count++
	return h.count, nil
}

// DecreaseReference decrements the count, demoting the wrapper to a weak
// reference at zero. The result reports whether the object may die.
func (t *Table) DecreaseReference(id handle.ID) (bool, error) {
	t.owner.Check("binding.DecreaseReference")
	h, err := t.Get(id)
	if err != nil {
		return false, err
	}
	if h.count == 0 {
		return true, assert.Fail(errors.New(errors.PhaseBind, errors.KindOutOfBounds).
			Value(id).
			Detail("reference count underflow for %s", h.Native.ClassName()).
			Build())
	}
	h.count--
	if h.count == 0 {
		h.ref = h.ref.demote()
	}
	return h.count == 0, nil
}

// Unbind removes the binding of obj. The class finalizer runs unless the
// unbind was initiated by the object's own destruction.
func (t *Table) Unbind(obj variant.Object, nativeInitiated bool) error {
	t.owner.Check("binding.Unbind")
	id, ok := t.index[obj]
	if !ok {
		return assert.Fail(errors.New(errors.PhaseBind, errors.KindNotFound).
			Native(obj.ClassName()).
			Detail("object %d is not bound", obj.InstanceID()).
			Build())
	}
	h, err := t.Get(id)
	if err != nil {
		return err
	}
	return t.unbind(id, h, nativeInitiated)
}

func (t *Table) unbind(id handle.ID, h *ObjectHandle, nativeInitiated bool) error {
	obj := h.Native
	if b, ok := obj.(bindable); ok && b.Binding() == host.Binding(t) {
		_ = b.SetBinding(nil)
	}
	delete(t.index, obj)
	h.unwatch()
	h.ref = wrapperRef{}
	h.count = 0
	t.handles.Take(id)

	t.logger.Debug("object unbound",
		zap.String("class", obj.ClassName()),
		zap.Uint64("object", obj.InstanceID()),
		zap.Bool("native", nativeInitiated))

	if nativeInitiated || t.finalizers == nil {
		return nil
	}
	return t.finalizers.Finalize(h.Class, obj)
}

// Collected processes a collection notice for id. Stale notices (the slot
// was freed, the wrapper was promoted or replaced) are ignored.
func (t *Table) Collected(id handle.ID) error {
	t.owner.Check("binding.Collected")
	h, err := t.handles.Get(id)
	if err != nil {
		return nil
	}
	if h.ref.isStrong() || h.ref.value() != nil {
		return nil
	}
	return t.unbind(id, h, false)
}

// Freed implements host.Binding.
func (t *Table) Freed(inst *host.Instance) {
	if _, ok := t.index[inst]; !ok {
		return
	}
	if err := t.Unbind(inst, true); err != nil {
		t.logger.Error("unbind freed instance", zap.Error(err))
	}
}

// ReferenceChanged implements host.Binding. Native references beyond the
// binding's own keep the wrapper strongly held.
func (t *Table) ReferenceChanged(inst *host.Instance, increment bool) bool {
	id, ok := t.index[inst]
	if !ok {
		return true
	}
	if increment {
		if _, err := t.IncreaseReference(id); err != nil {
			t.logger.Debug("reference on collected wrapper", zap.Uint64("object", inst.InstanceID()), zap.Error(err))
		}
		return false
	}
	h, err := t.handles.Get(id)
	if err != nil || h.count == 0 {
		return true
	}
	mayDie, _ := t.DecreaseReference(id)
	return mayDie
}

// Close unbinds every object, running finalizers. The first finalizer error
// is returned after all objects are released.
func (t *Table) Close() error {
	t.owner.Check("binding.Close")
	var ids []handle.ID
	t.handles.Each(func(id handle.ID, _ *ObjectHandle) bool {
		ids = append(ids, id)
		return true
	})
	var first error
	for _, id := range ids {
		h, err := t.handles.Get(id)
		if err != nil {
			continue
		}
		if err := t.unbind(id, h, false); err != nil && first == nil {
			first = err
		}
	}
	return first
}
