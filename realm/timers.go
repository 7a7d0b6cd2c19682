package realm

import (
	"math"
	"time"

	"github.com/dop251/goja"
	"go.uber.org/zap"

	"github.com/wippyai/jsbridge/handle"
)

func (r *Realm) installTimers(global *goja.Object) error {
	fns := map[string]func(goja.FunctionCall) goja.Value{
		"setTimeout": func(call goja.FunctionCall) goja.Value {
			return r.schedule("setTimeout", call, delayArg(call.Argument(1)), 0, 2)
		},
		"setInterval": func(call goja.FunctionCall) goja.Value {
			period := delayArg(call.Argument(1))
			return r.schedule("setInterval", call, period, max(period, time.Nanosecond), 2)
		},
		"setImmediate": func(call goja.FunctionCall) goja.Value {
			return r.schedule("setImmediate", call, 0, 0, 1)
		},
		"clearTimeout":   r.clearTimer,
		"clearInterval":  r.clearTimer,
		"clearImmediate": r.clearTimer,
	}
	for name, fn := range fns {
		if err := global.Set(name, fn); err != nil {
			return err
		}
	}
	return nil
}

func (r *Realm) schedule(api string, call goja.FunctionCall, delay, period time.Duration, argStart int) goja.Value {
	fn, ok := goja.AssertFunction(call.Argument(0))
	if !ok {
		panic(r.vm.NewTypeError("%s requires a function as first argument", api))
	}
	var args []goja.Value
	if len(call.Arguments) > argStart {
		args = append(args, call.Arguments[argStart:]...)
	}
	id := r.wheel.Schedule(delay, period, func(_ *Realm, _ handle.ID) error {
		_, err := fn(goja.Undefined(), args...)
		return err
	})
	return r.vm.ToValue(int64(id))
}

func (r *Realm) clearTimer(call goja.FunctionCall) goja.Value {
	v := call.Argument(0)
	if goja.IsUndefined(v) || goja.IsNull(v) {
		return goja.Undefined()
	}
	r.wheel.Cancel(handle.ID(v.ToInteger()))
	return goja.Undefined()
}

// timerFailed logs a callback error. Timer failures never abort a frame.
func (r *Realm) timerFailed(id handle.ID, err error) {
	fields := []zap.Field{zap.Stringer("timer", id), zap.Error(err)}
	if ex, ok := err.(*goja.Exception); ok {
		fields = append(fields, zap.String("stack", ex.String()))
	}
	r.logger.Error("timer callback failed", fields...)
}

// delayArg converts a millisecond argument. Missing, negative and NaN
// delays are zero.
func delayArg(v goja.Value) time.Duration {
	if v == nil || goja.IsUndefined(v) {
		return 0
	}
	ms := v.ToFloat()
	if math.IsNaN(ms) || ms <= 0 {
		return 0
	}
	if ms > float64(math.MaxInt64/int64(time.Millisecond)) {
		return math.MaxInt64
	}
	return time.Duration(ms * float64(time.Millisecond))
}
