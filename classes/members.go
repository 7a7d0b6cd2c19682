package classes

import (
	stderrors "errors"
	"strconv"
	"strings"

	"github.com/dop251/goja"
	"go.uber.org/zap"

	"github.com/wippyai/jsbridge/errors"
	"github.com/wippyai/jsbridge/host"
	"github.com/wippyai/jsbridge/variant"
)

var callableDesc = variant.MustParse("callable")

func (r *Registry) populate(d *Descriptor) error {
	info := d.Native

	for _, m := range info.Methods {
		fn := r.method(d, m)
		target := d.Prototype
		if m.Static() {
			target = d.Ctor
		}
		if err := target.Set(m.Name, fn); err != nil {
			return errors.Wrap(errors.PhaseExpose, errors.KindInvalidData, err, d.Name+"."+m.Name)
		}
	}

	for _, p := range info.Properties {
		getter, setter := r.property(d, p)
		if err := d.Prototype.DefineAccessorProperty(p.Name, getter, setter, goja.FLAG_TRUE, goja.FLAG_TRUE); err != nil {
			return errors.Wrap(errors.PhaseExpose, errors.KindInvalidData, err, d.Name+"."+p.Name)
		}
	}

	for _, s := range info.Signals {
		getter := r.signal(d, s)
		if err := d.Prototype.DefineAccessorProperty(s.Name, getter, nil, goja.FLAG_TRUE, goja.FLAG_FALSE); err != nil {
			return errors.Wrap(errors.PhaseExpose, errors.KindInvalidData, err, d.Name+"."+s.Name)
		}
	}

	enumMembers := make(map[string]struct{})
	for _, e := range info.Enums {
		ns := r.vm.NewObject()
		for _, c := range e.Values {
			enumMembers[c.Name] = struct{}{}
			v, err := r.constant(d, e.Name+"."+c.Name, c.Value)
			if err != nil {
				return err
			}
			if err := ns.DefineDataProperty(c.Name, v, goja.FLAG_FALSE, goja.FLAG_FALSE, goja.FLAG_TRUE); err != nil {
				return errors.Wrap(errors.PhaseExpose, errors.KindInvalidData, err, d.Name+"."+e.Name)
			}
		}
		if _, err := r.freeze(goja.Undefined(), ns); err != nil {
			return errors.Wrap(errors.PhaseExpose, errors.KindInvalidData, err, "freeze "+d.Name+"."+e.Name)
		}
		if err := d.Ctor.DefineDataProperty(e.Name, ns, goja.FLAG_FALSE, goja.FLAG_FALSE, goja.FLAG_TRUE); err != nil {
			return errors.Wrap(errors.PhaseExpose, errors.KindInvalidData, err, d.Name+"."+e.Name)
		}
	}

	for _, c := range info.Constants {
		if _, dup := enumMembers[c.Name]; dup {
			continue
		}
		if strings.Contains(c.Name, ".") {
			return errors.New(errors.PhaseExpose, errors.KindUnsupported).
				Path(d.Name, c.Name).
				Detail("dotted constant names are not supported").
				Build()
		}
		v, err := r.constant(d, c.Name, c.Value)
		if err != nil {
			return err
		}
		if err := d.Ctor.DefineDataProperty(c.Name, v, goja.FLAG_FALSE, goja.FLAG_FALSE, goja.FLAG_TRUE); err != nil {
			return errors.Wrap(errors.PhaseExpose, errors.KindInvalidData, err, d.Name+"."+c.Name)
		}
	}
	return nil
}

// constant narrows a 64-bit constant into the script number model.
func (r *Registry) constant(d *Descriptor, name string, v int64) (goja.Value, error) {
	n, err := r.policy.Apply(v)
	if err != nil {
		if be, ok := err.(*errors.Error); ok {
			be.Path = []string{d.Name, name}
		}
		return nil, err
	}
	if n.Rep == variant.RepFloat64 {
		r.logger.Warn("constant exceeds 32-bit range, exposed as double",
			zap.String("class", d.Name),
			zap.String("constant", name),
			zap.Int64("value", v),
			zap.Bool("exact", n.Exact))
		return r.vm.ToValue(n.Float), nil
	}
	return r.vm.ToValue(n.Int), nil
}

func (r *Registry) self(d *Descriptor, member string, this goja.Value) *host.Instance {
	obj, ok := r.binder.Unwrap(this)
	if !ok {
		panic(r.vm.NewTypeError("%s.%s called on an object that is not a bound %s", d.Name, member, d.Name))
	}
	inst, ok := obj.(*host.Instance)
	if !ok || inst.Destroyed() {
		panic(r.vm.NewTypeError("%s.%s called on a freed instance", d.Name, member))
	}
	if !r.engine.ClassDB().Inherits(inst.ClassName(), d.Name) {
		panic(r.vm.NewTypeError("%s.%s called on incompatible receiver %s", d.Name, member, inst.ClassName()))
	}
	return inst
}

func (r *Registry) method(d *Descriptor, m *host.MethodInfo) *goja.Object {
	return r.function(m.Name, func(call goja.FunctionCall) goja.Value {
		var self *host.Instance
		if !m.Static() {
			self = r.self(d, m.Name, call.This)
		}

		args := make([]variant.Value, len(call.Arguments))
		for i, a := range call.Arguments {
			var want *variant.TypeDesc
			if i < len(m.Args) {
				want = m.Args[i].Type
			}
			v, err := r.marshal.ToNative(a, want)
			if err != nil {
				r.throw(annotate(err, d.Name, m.Name, i))
			}
			args[i] = v
		}

		res, err := r.engine.Invoke(d.Name, m, self, args)
		if err != nil {
			r.throw(err)
		}
		out, err := r.marshal.ToScript(res)
		if err != nil {
			r.throw(err)
		}
		return out
	})
}

func (r *Registry) property(d *Descriptor, p *host.PropertyInfo) (getter, setter goja.Value) {
	getter = r.function("get "+p.Name, func(call goja.FunctionCall) goja.Value {
		self := r.self(d, p.Name, call.This)
		v, err := r.engine.GetProperty(self, p.Name)
		if err != nil {
			r.throw(err)
		}
		out, err := r.marshal.ToScript(v)
		if err != nil {
			r.throw(err)
		}
		return out
	})
	setter = r.function("set "+p.Name, func(call goja.FunctionCall) goja.Value {
		self := r.self(d, p.Name, call.This)
		v, err := r.marshal.ToNative(call.Argument(0), p.Type)
		if err != nil {
			r.throw(err)
		}
		if err := r.engine.SetProperty(self, p.Name, v); err != nil {
			r.throw(err)
		}
		return goja.Undefined()
	})
	return getter, setter
}

// signal returns a getter producing {connect, disconnect, emit} bound to
// the receiver.
func (r *Registry) signal(d *Descriptor, s *host.SignalInfo) goja.Value {
	return r.function("get "+s.Name, func(call goja.FunctionCall) goja.Value {
		self := r.self(d, s.Name, call.This)
		obj := r.vm.NewObject()

		target := func(call goja.FunctionCall) variant.Callable {
			v, err := r.marshal.ToNative(call.Argument(0), callableDesc)
			if err != nil {
				r.throw(err)
			}
			if v.Kind() != variant.KindCallable {
				panic(r.vm.NewTypeError("%s.%s: callback must be a function", d.Name, s.Name))
			}
			return v.Callable()
		}

		_ = obj.Set("name", s.Name)
		_ = obj.Set("connect", r.function("connect", func(call goja.FunctionCall) goja.Value {
			if err := self.Connect(s.Name, target(call)); err != nil {
				r.throw(err)
			}
			return goja.Undefined()
		}))
		_ = obj.Set("disconnect", r.function("disconnect", func(call goja.FunctionCall) goja.Value {
			if err := self.Disconnect(s.Name, target(call)); err != nil {
				r.throw(err)
			}
			return goja.Undefined()
		}))
		_ = obj.Set("emit", r.function("emit", func(call goja.FunctionCall) goja.Value {
			args := make([]variant.Value, len(call.Arguments))
			for i, a := range call.Arguments {
				v, err := r.marshal.ToNative(a, nil)
				if err != nil {
					r.throw(err)
				}
				args[i] = v
			}
			if err := self.Emit(s.Name, args...); err != nil {
				r.throw(err)
			}
			return goja.Undefined()
		}))
		return obj
	})
}

func annotate(err error, class, method string, arg int) error {
	var be *errors.Error
	if stderrors.As(err, &be) && len(be.Path) == 0 {
		be.Path = []string{class, method, strconv.Itoa(arg)}
	}
	return err
}

// throw raises err as a script exception. Protocol violations become
// TypeErrors, script exceptions are rethrown unchanged.
func (r *Registry) throw(err error) {
	var ex *goja.Exception
	if stderrors.As(err, &ex) {
		panic(ex)
	}
	var be *errors.Error
	if stderrors.As(err, &be) {
		switch be.Kind {
		case errors.KindArgumentCount, errors.KindTypeMismatch, errors.KindInvalidHandle:
			panic(r.vm.NewTypeError("%s", err.Error()))
		}
	}
	panic(r.vm.NewGoError(err))
}

// Throw is throw for collaborators that raise bridge errors from native
// callbacks.
func (r *Registry) Throw(err error) {
	r.throw(err)
}
