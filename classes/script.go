package classes

import (
	"path"
	"strings"

	"github.com/dop251/goja"
	"go.uber.org/zap"

	"github.com/wippyai/jsbridge/errors"
	"github.com/wippyai/jsbridge/variant"
)

const membersSource = `(function (proto) {
	var methods = [], accessors = [];
	Object.getOwnPropertyNames(proto).forEach(function (k) {
		if (k === "constructor") return;
		var d = Object.getOwnPropertyDescriptor(proto, k);
		if (typeof d.value === "function") methods.push(k);
		else if (d.get || d.set) accessors.push(k);
	});
	return [methods, accessors];
})`

// Extends returns the nearest registered class ctor inherits from.
func (r *Registry) Extends(ctor *goja.Object) (*Descriptor, bool) {
	for p := ctor.Prototype(); p != nil; p = p.Prototype() {
		if d, ok := r.ForConstructor(p); ok {
			if d.Category == HostValueClass {
				return nil, false
			}
			return d, d.NativeAncestor() != nil
		}
	}
	return nil, false
}

// RegisterScriptClass records ctor as the class exported by module. A
// module that registers again (after a reload) keeps its class id; the
// descriptor is cleared and repopulated.
func (r *Registry) RegisterScriptClass(module string, ctor *goja.Object) (*Descriptor, error) {
	parent, ok := r.Extends(ctor)
	if !ok {
		return nil, errors.New(errors.PhaseRegister, errors.KindInvalidInput).
			Path(module).
			Detail("exported class does not extend an exposed native class").
			Build()
	}

	info, err := r.scriptMembers(module, ctor)
	if err != nil {
		return nil, err
	}
	name := ctor.Get("name").String()
	if name == "" {
		name = strings.TrimSuffix(path.Base(module), path.Ext(module))
	}

	if id, ok := r.byModule[module]; ok {
		if d, err := r.classes.Get(id); err == nil {
			if d.Ctor != nil {
				delete(r.byCtor, d.Ctor)
			}
			info.Generation = d.Script.Generation + 1
			d.Name = name
			d.Parent = parent
			d.Script = info
			d.Ctor = ctor
			d.Prototype, _ = ctor.Get("prototype").(*goja.Object)
			r.byCtor[ctor] = id
			r.logger.Debug("script class reloaded",
				zap.String("class", name),
				zap.String("module", module),
				zap.Int("generation", info.Generation))
			return d, nil
		}
	}

	id, err := r.Register(ScriptDefinedClass, name, scriptConstruct, scriptFinalize)
	if err != nil {
		return nil, err
	}
	d, _ := r.classes.Get(id)
	info.Generation = 1
	d.Parent = parent
	d.Script = info
	d.Ctor = ctor
	d.Prototype, _ = ctor.Get("prototype").(*goja.Object)
	r.byCtor[ctor] = id
	r.byModule[module] = id

	r.logger.Debug("script class registered",
		zap.String("class", name),
		zap.String("module", module),
		zap.String("native", parent.NativeAncestor().Name),
		zap.Stringer("id", id))
	return d, nil
}

// ScriptClass returns the class registered by module.
func (r *Registry) ScriptClass(module string) (*Descriptor, bool) {
	id, ok := r.byModule[module]
	if !ok {
		return nil, false
	}
	d, err := r.classes.Get(id)
	return d, err == nil
}

func scriptConstruct(d *Descriptor, args []variant.Value) (variant.Object, error) {
	base := d.NativeAncestor()
	if base == nil {
		return nil, errors.NotInitialized(errors.PhaseRuntime, d.Name+" native base")
	}
	return base.Constructor(base, args)
}

func scriptFinalize(d *Descriptor, obj variant.Object) {
	if base := d.NativeAncestor(); base != nil && base.Finalizer != nil {
		base.Finalizer(base, obj)
	}
}

func (r *Registry) scriptMembers(module string, ctor *goja.Object) (*ScriptInfo, error) {
	info := &ScriptInfo{Module: module}

	if proto, ok := ctor.Get("prototype").(*goja.Object); ok {
		if r.members == nil {
			return nil, errors.NotInitialized(errors.PhaseRegister, "member inspection")
		}
		res, err := r.members(goja.Undefined(), proto)
		if err != nil {
			return nil, errors.Wrap(errors.PhaseRegister, errors.KindInvalidData, err, "inspect "+module)
		}
		var lists [][]string
		if err := r.vm.ExportTo(res, &lists); err == nil && len(lists) == 2 {
			info.Methods = lists[0]
			info.Properties = lists[1]
		}
	}

	if sv := ctor.Get("signals"); sv != nil && !goja.IsUndefined(sv) && !goja.IsNull(sv) {
		var signals []string
		if err := r.vm.ExportTo(sv, &signals); err != nil {
			return nil, errors.New(errors.PhaseRegister, errors.KindTypeMismatch).
				Path(module, "signals").
				Detail("static signals must be an array of strings").
				Cause(err).
				Build()
		}
		info.Signals = signals
	}
	if pv, ok := ctor.Get("properties").(*goja.Object); ok {
		info.Properties = append(info.Properties, pv.Keys()...)
	}
	return info, nil
}
