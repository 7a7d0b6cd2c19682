package modules

import (
	"github.com/dop251/goja"
)

// State tracks where a module record is in its lifecycle.
type State uint8

const (
	StateLoading State = iota
	StateLoaded
	StateReloadPending
)

func (s State) String() string {
	switch s {
	case StateLoading:
		return "loading"
	case StateLoaded:
		return "loaded"
	case StateReloadPending:
		return "reload_pending"
	default:
		return "unknown"
	}
}

// Module is a cached module record.
type Module struct {
	// Meta is the script-visible module object ({id, filename, exports, ...}).
	Meta *goja.Object
	// ID is the canonical root-relative id; relative requires are resolved
	// against its directory.
	ID string
	// Path is the asset path and cache key. Synthetic modules use their id.
	Path string
	// Resolver names the resolver that produced Path, empty for synthetic
	// modules.
	Resolver string
	Children []string

	State           State
	ReloadRequested bool
	Main            bool
	Synthetic       bool
}

// Exports returns the current module.exports value.
func (m *Module) Exports() goja.Value {
	if m.Meta == nil {
		return goja.Undefined()
	}
	return m.Meta.Get("exports")
}

func (m *Module) addChild(key string) {
	for _, c := range m.Children {
		if c == key {
			return
		}
	}
	m.Children = append(m.Children, key)
}

func (m *Module) removeChild(key string) {
	for i, c := range m.Children {
		if c == key {
			m.Children = append(m.Children[:i], m.Children[i+1:]...)
			return
		}
	}
}
