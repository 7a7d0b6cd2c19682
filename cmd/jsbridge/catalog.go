package main

import (
	"github.com/wippyai/jsbridge/host"
	"github.com/wippyai/jsbridge/variant"
)

// registerDemo adds the sample classes scripts can extend.
func registerDemo(db *host.ClassDB) error {
	str := variant.MustParse("string")
	one := variant.Int(1)

	node := &host.ClassInfo{
		Name:         "Node",
		Parent:       host.ClassObject,
		Instantiable: true,
		Init: func(inst *host.Instance) {
			inst.Set("name", variant.String(inst.ClassName()))
		},
		Signals: []*host.SignalInfo{
			{Name: "renamed", Args: []host.Arg{{Name: "name", Type: str}}},
		},
		Properties: []*host.PropertyInfo{
			{Name: "name", Type: str, Getter: "get_name", Setter: "set_name"},
		},
		Methods: []*host.MethodInfo{
			{
				Name:   "get_name",
				Flags:  host.MethodConst,
				Return: str,
				Call: func(self *host.Instance, _ []variant.Value) (variant.Value, error) {
					return self.Get("name"), nil
				},
			},
			{
				Name: "set_name",
				Args: []host.Arg{{Name: "name", Type: str}},
				Call: func(self *host.Instance, args []variant.Value) (variant.Value, error) {
					if variant.Equal(self.Get("name"), args[0]) {
						return variant.Nil(), nil
					}
					self.Set("name", args[0])
					return variant.Nil(), self.Emit("renamed", args[0])
				},
			},
		},
	}

	counter := &host.ClassInfo{
		Name:         "Counter",
		Parent:       host.ClassRefCounted,
		Instantiable: true,
		Enums: []*host.EnumInfo{
			{Name: "Mode", Values: []host.Constant{{Name: "UP", Value: 0}, {Name: "DOWN", Value: 1}}},
		},
		Constants: []host.Constant{{Name: "LIMIT", Value: 1 << 40}},
		Properties: []*host.PropertyInfo{
			{Name: "mode", Type: variant.MustParse("s32")},
		},
		Methods: []*host.MethodInfo{
			{
				Name:   "step",
				Args:   []host.Arg{{Name: "by", Type: variant.MustParse("s64"), Default: &one}},
				Return: variant.MustParse("s64"),
				Call: func(self *host.Instance, args []variant.Value) (variant.Value, error) {
					by := args[0].Int()
					if self.Get("mode").Int() == 1 {
						by = -by
					}
					n := variant.Int(self.Get("value").Int() + by)
					self.Set("value", n)
					return n, nil
				},
			},
			{
				Name:   "value",
				Flags:  host.MethodConst,
				Return: variant.MustParse("s64"),
				Call: func(self *host.Instance, _ []variant.Value) (variant.Value, error) {
					return variant.Int(self.Get("value").Int()), nil
				},
			},
		},
	}

	for _, c := range []*host.ClassInfo{node, counter} {
		if err := db.Register(c); err != nil {
			return err
		}
	}
	return nil
}
