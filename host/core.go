package host

import (
	"github.com/wippyai/jsbridge/errors"
	"github.com/wippyai/jsbridge/variant"
)

// Core class names every catalog is expected to carry.
const (
	ClassObject     = "Object"
	ClassRefCounted = "RefCounted"
)

// RegisterCore adds Object and RefCounted to db.
func RegisterCore(db *ClassDB) error {
	object := &ClassInfo{
		Name:         ClassObject,
		Instantiable: true,
		Methods: []*MethodInfo{
			{
				Name:   "get_class",
				Flags:  MethodConst,
				Return: variant.MustParse("string"),
				Call: func(self *Instance, _ []variant.Value) (variant.Value, error) {
					return variant.String(self.ClassName()), nil
				},
			},
			{
				Name:   "is_class",
				Flags:  MethodConst,
				Args:   []Arg{{Name: "class", Type: variant.MustParse("string")}},
				Return: variant.MustParse("bool"),
				Call: func(self *Instance, args []variant.Value) (variant.Value, error) {
					return variant.Bool(self.engine.db.Inherits(self.ClassName(), args[0].Str())), nil
				},
			},
			{
				Name:   "get_instance_id",
				Flags:  MethodConst,
				Return: variant.MustParse("u64"),
				Call: func(self *Instance, _ []variant.Value) (variant.Value, error) {
					return variant.Int(int64(self.InstanceID())), nil
				},
			},
			{
				Name: "free",
				Call: func(self *Instance, _ []variant.Value) (variant.Value, error) {
					return variant.Nil(), self.engine.Free(self)
				},
			},
			{
				Name:  "emit_signal",
				Flags: MethodVararg,
				Args:  []Arg{{Name: "signal", Type: variant.MustParse("string")}},
				Call: func(self *Instance, args []variant.Value) (variant.Value, error) {
					return variant.Nil(), self.Emit(args[0].Str(), args[1:]...)
				},
			},
			{
				Name: "connect",
				Args: []Arg{
					{Name: "signal", Type: variant.MustParse("string")},
					{Name: "target", Type: variant.MustParse("callable")},
				},
				Call: func(self *Instance, args []variant.Value) (variant.Value, error) {
					return variant.Nil(), self.Connect(args[0].Str(), args[1].Callable())
				},
			},
			{
				Name: "disconnect",
				Args: []Arg{
					{Name: "signal", Type: variant.MustParse("string")},
					{Name: "target", Type: variant.MustParse("callable")},
				},
				Call: func(self *Instance, args []variant.Value) (variant.Value, error) {
					return variant.Nil(), self.Disconnect(args[0].Str(), args[1].Callable())
				},
			},
		},
	}
	refCounted := &ClassInfo{
		Name:         ClassRefCounted,
		Parent:       ClassObject,
		RefCounted:   true,
		Instantiable: true,
		Methods: []*MethodInfo{
			{
				Name:   "get_reference_count",
				Flags:  MethodConst,
				Return: variant.MustParse("s32"),
				Call: func(self *Instance, _ []variant.Value) (variant.Value, error) {
					return variant.Int(int64(self.RefCount())), nil
				},
			},
		},
	}
	for _, c := range []*ClassInfo{object, refCounted} {
		if err := db.Register(c); err != nil {
			return errors.Registration(c.Name, err)
		}
	}
	return nil
}
