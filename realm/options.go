package realm

import (
	"io/fs"

	"go.uber.org/zap"

	"github.com/wippyai/jsbridge/host"
	"github.com/wippyai/jsbridge/modules"
	"github.com/wippyai/jsbridge/timer"
	"github.com/wippyai/jsbridge/variant"
)

// ModuleName is the synthetic module exporting every exposed class.
const ModuleName = "jsbridge"

// Options configures a Realm.
type Options struct {
	Logger *zap.Logger
	// Engine supplies the class catalog and object database. A fresh engine
	// with the core classes is created when nil.
	Engine *host.Engine
	// Registry records the realm for cross-goroutine access. Optional.
	Registry *Registry

	// FS, Roots and Extensions configure the file resolver. No file
	// resolver is installed when FS is nil.
	FS         fs.FS
	Roots      []string
	Extensions []string
	// Resolvers are consulted after the file resolver.
	Resolvers []modules.Resolver

	Narrowing variant.Policy
	Timer     timer.Config

	// Globals also installs every class constructor on the global object.
	Globals    bool
	SourceMaps bool
}

func (o Options) withDefaults() Options {
	if o.Logger == nil {
		o.Logger = zap.NewNop()
	}
	if len(o.Roots) == 0 {
		o.Roots = []string{"."}
	}
	if len(o.Extensions) == 0 {
		o.Extensions = []string{".js", ".json"}
	}
	return o
}

// NewEngine returns an engine whose catalog holds the core classes.
func NewEngine() (*host.Engine, error) {
	db := host.NewClassDB()
	if err := host.RegisterCore(db); err != nil {
		return nil, err
	}
	return host.NewEngine(db), nil
}
