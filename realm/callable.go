package realm

import (
	"github.com/dop251/goja"

	"github.com/wippyai/jsbridge/host"
	"github.com/wippyai/jsbridge/variant"
)

// scriptCallable exposes a script function to native code. Calls must
// happen on the realm's owner.
type scriptCallable struct {
	realm *Realm
	obj   *goja.Object
	fn    goja.Callable
}

var (
	_ variant.Callable = (*scriptCallable)(nil)
	_ host.Equaler     = (*scriptCallable)(nil)
)

func (c *scriptCallable) Call(args ...variant.Value) (variant.Value, error) {
	c.realm.owner.Check("realm.Callable.Call")
	in := make([]goja.Value, len(args))
	for i, a := range args {
		v, err := c.realm.marshal.ToScript(a)
		if err != nil {
			return variant.Nil(), err
		}
		in[i] = v
	}
	out, err := c.fn(goja.Undefined(), in...)
	if err != nil {
		return variant.Nil(), err
	}
	return c.realm.marshal.ToNative(out, nil)
}

func (c *scriptCallable) Name() string {
	if n := c.obj.Get("name"); n != nil {
		return n.String()
	}
	return ""
}

// Equal matches wrappers of the same script function, so a function
// connected to a signal can be disconnected with a fresh conversion.
func (c *scriptCallable) Equal(other variant.Callable) bool {
	o, ok := other.(*scriptCallable)
	return ok && o.obj == c.obj
}
