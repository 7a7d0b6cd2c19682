package host

import (
	"sort"

	"github.com/wippyai/jsbridge/errors"
	"github.com/wippyai/jsbridge/variant"
)

// MethodFlags describe how a method is bound.
type MethodFlags uint8

const (
	MethodStatic MethodFlags = 1 << iota
	MethodConst
	MethodVararg
)

// MethodFunc implements a native method. self is nil for static methods.
type MethodFunc func(self *Instance, args []variant.Value) (variant.Value, error)

// Arg is one declared method or signal argument.
type Arg struct {
	Type    *variant.TypeDesc
	Default *variant.Value
	Name    string
}

type MethodInfo struct {
	Call   MethodFunc
	Return *variant.TypeDesc
	Name   string
	Args   []Arg
	Flags  MethodFlags
}

func (m *MethodInfo) Static() bool { return m.Flags&MethodStatic != 0 }
func (m *MethodInfo) Vararg() bool { return m.Flags&MethodVararg != 0 }

// Required returns the number of leading arguments a call must supply: every
// argument up to the last one without a default.
func (m *MethodInfo) Required() int {
	for n := len(m.Args); n > 0; n-- {
		if m.Args[n-1].Default == nil {
			return n
		}
	}
	return 0
}

// PropertyInfo is a property accessor. When Getter or Setter is empty the
// value is kept in the instance property store.
type PropertyInfo struct {
	Type   *variant.TypeDesc
	Name   string
	Getter string
	Setter string
}

type SignalInfo struct {
	Name string
	Args []Arg
}

type Constant struct {
	Name  string
	Value int64
}

type EnumInfo struct {
	Name   string
	Values []Constant
}

// ClassInfo is one reflection catalog entry.
type ClassInfo struct {
	// Init runs once for every new instance.
	Init       func(inst *Instance)
	Name       string
	Parent     string
	Methods    []*MethodInfo
	Properties []*PropertyInfo
	Signals    []*SignalInfo
	Enums      []*EnumInfo
	// Constants may repeat enum members; exposure skips those.
	Constants    []Constant
	RefCounted   bool
	Instantiable bool
}

func (c *ClassInfo) Method(name string) *MethodInfo {
	for _, m := range c.Methods {
		if m.Name == name {
			return m
		}
	}
	return nil
}

func (c *ClassInfo) Property(name string) *PropertyInfo {
	for _, p := range c.Properties {
		if p.Name == name {
			return p
		}
	}
	return nil
}

func (c *ClassInfo) Signal(name string) *SignalInfo {
	for _, s := range c.Signals {
		if s.Name == name {
			return s
		}
	}
	return nil
}

// Catalog is the read-only view of the reflection database.
type Catalog interface {
	Class(name string) (*ClassInfo, bool)
	ClassNames() []string
}

// ClassDB stores class entries. Registration happens before any bridge
// reads it; afterwards it is treated as immutable.
type ClassDB struct {
	classes map[string]*ClassInfo
}

func NewClassDB() *ClassDB {
	return &ClassDB{classes: make(map[string]*ClassInfo)}
}

// Register adds a class. The parent must already be registered.
func (db *ClassDB) Register(c *ClassInfo) error {
	if c.Name == "" {
		return errors.InvalidInput(errors.PhaseRegister, "class name is empty")
	}
	if _, ok := db.classes[c.Name]; ok {
		return errors.AlreadyExists(errors.PhaseRegister, "class", c.Name)
	}
	if c.Parent != "" {
		parent, ok := db.classes[c.Parent]
		if !ok {
			return errors.Registration(c.Name, errors.NotFound(errors.PhaseRegister, "parent class", c.Parent))
		}
		if parent.RefCounted {
			c.RefCounted = true
		}
	}
	db.classes[c.Name] = c
	return nil
}

// MustRegister registers classes and panics on error. Intended for static
// catalogs.
func (db *ClassDB) MustRegister(classes ...*ClassInfo) {
	for _, c := range classes {
		if err := db.Register(c); err != nil {
			panic(err)
		}
	}
}

func (db *ClassDB) Class(name string) (*ClassInfo, bool) {
	c, ok := db.classes[name]
	return c, ok
}

func (db *ClassDB) ClassNames() []string {
	names := make([]string, 0, len(db.classes))
	for n := range db.classes {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}

// Inherits reports whether class is ancestor or derives from it.
func (db *ClassDB) Inherits(class, ancestor string) bool {
	for class != "" {
		if class == ancestor {
			return true
		}
		c, ok := db.classes[class]
		if !ok {
			return false
		}
		class = c.Parent
	}
	return false
}

// FindMethod resolves a method through the inheritance chain.
func (db *ClassDB) FindMethod(class, name string) (*MethodInfo, *ClassInfo) {
	for class != "" {
		c, ok := db.classes[class]
		if !ok {
			return nil, nil
		}
		if m := c.Method(name); m != nil {
			return m, c
		}
		class = c.Parent
	}
	return nil, nil
}

// FindProperty resolves a property through the inheritance chain.
func (db *ClassDB) FindProperty(class, name string) *PropertyInfo {
	for class != "" {
		c, ok := db.classes[class]
		if !ok {
			return nil
		}
		if p := c.Property(name); p != nil {
			return p
		}
		class = c.Parent
	}
	return nil
}

// FindSignal resolves a signal through the inheritance chain.
func (db *ClassDB) FindSignal(class, name string) *SignalInfo {
	for class != "" {
		c, ok := db.classes[class]
		if !ok {
			return nil
		}
		if s := c.Signal(name); s != nil {
			return s
		}
		class = c.Parent
	}
	return nil
}
