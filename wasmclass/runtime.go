package wasmclass

import (
	"context"
	"sort"
	"sync"

	"github.com/tetratelabs/wazero"
	"github.com/tetratelabs/wazero/api"
	"go.uber.org/zap"

	"github.com/wippyai/jsbridge/errors"
	"github.com/wippyai/jsbridge/host"
	"github.com/wippyai/jsbridge/variant"
)

// Config holds configuration for the wasm runtime.
type Config struct {
	// MemoryLimitPages caps memory per module in 64KB pages. 0 keeps the
	// wazero default.
	MemoryLimitPages uint32 `yaml:"memory_limit_pages"`
}

// Runtime owns a wazero runtime and the modules loaded into it.
type Runtime struct {
	rt      wazero.Runtime
	logger  *zap.Logger
	classes map[string]*Class
	mu      sync.Mutex
}

// NewRuntime creates a runtime. A nil logger discards output.
func NewRuntime(ctx context.Context, cfg *Config, logger *zap.Logger) *Runtime {
	runtimeCfg := wazero.NewRuntimeConfig()
	if cfg != nil && cfg.MemoryLimitPages > 0 {
		runtimeCfg = runtimeCfg.WithMemoryLimitPages(cfg.MemoryLimitPages)
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Runtime{
		rt:      wazero.NewRuntimeWithConfig(ctx, runtimeCfg),
		logger:  logger.Named("wasm"),
		classes: make(map[string]*Class),
	}
}

// Class is a loaded module described as a host class.
type Class struct {
	Info   *host.ClassInfo
	module api.Module
	// serializes calls: a module instance is not safe for concurrent use
	mu sync.Mutex
}

// Load compiles and instantiates wasm and describes it as className, a
// static class deriving from Object. Names are unique per runtime.
func (r *Runtime) Load(ctx context.Context, className string, wasm []byte) (*Class, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.classes[className]; ok {
		return nil, errors.AlreadyExists(errors.PhaseRegister, "wasm class", className)
	}

	compiled, err := r.rt.CompileModule(ctx, wasm)
	if err != nil {
		return nil, errors.Wrap(errors.PhaseRegister, errors.KindInvalidData, err, "compile "+className)
	}
	mod, err := r.rt.InstantiateModule(ctx, compiled, wazero.NewModuleConfig().WithName(className))
	if err != nil {
		return nil, errors.Wrap(errors.PhaseRegister, errors.KindInvalidData, err, "instantiate "+className)
	}

	c := &Class{
		module: mod,
		Info: &host.ClassInfo{
			Name:   className,
			Parent: host.ClassObject,
		},
	}

	defs := mod.ExportedFunctionDefinitions()
	names := make([]string, 0, len(defs))
	for name := range defs {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		m, ok := c.method(name, defs[name])
		if !ok {
			r.logger.Debug("export skipped, unsupported signature",
				zap.String("class", className),
				zap.String("export", name))
			continue
		}
		c.Info.Methods = append(c.Info.Methods, m)
	}

	r.classes[className] = c
	r.logger.Debug("wasm class loaded",
		zap.String("class", className),
		zap.Int("methods", len(c.Info.Methods)))
	return c, nil
}

// Register loads wasm and adds the class to db.
func (r *Runtime) Register(ctx context.Context, db *host.ClassDB, className string, wasm []byte) (*Class, error) {
	c, err := r.Load(ctx, className, wasm)
	if err != nil {
		return nil, err
	}
	if err := db.Register(c.Info); err != nil {
		r.mu.Lock()
		delete(r.classes, className)
		r.mu.Unlock()
		_ = c.module.Close(ctx)
		return nil, err
	}
	return c, nil
}

// Close releases every module and the runtime.
func (r *Runtime) Close(ctx context.Context) error {
	r.mu.Lock()
	clear(r.classes)
	r.mu.Unlock()
	return r.rt.Close(ctx)
}

var descs = map[api.ValueType]*variant.TypeDesc{
	api.ValueTypeI32: variant.MustParse("s32"),
	api.ValueTypeI64: variant.MustParse("s64"),
	api.ValueTypeF32: variant.MustParse("f32"),
	api.ValueTypeF64: variant.MustParse("f64"),
}

func (c *Class) method(name string, def api.FunctionDefinition) (*host.MethodInfo, bool) {
	params, results := def.ParamTypes(), def.ResultTypes()
	m := &host.MethodInfo{
		Name:  name,
		Flags: host.MethodStatic,
	}
	for i, vt := range params {
		d, ok := descs[vt]
		if !ok {
			return nil, false
		}
		argName := ""
		if names := def.ParamNames(); i < len(names) {
			argName = names[i]
		}
		m.Args = append(m.Args, host.Arg{Name: argName, Type: d})
	}
	for _, vt := range results {
		if _, ok := descs[vt]; !ok {
			return nil, false
		}
	}
	if len(results) == 1 {
		m.Return = descs[results[0]]
	}

	fn := c.module.ExportedFunction(name)
	m.Call = func(_ *host.Instance, args []variant.Value) (variant.Value, error) {
		stack := make([]uint64, max(len(params), len(results)))
		for i, vt := range params {
			stack[i] = encode(vt, args[i])
		}
		c.mu.Lock()
		err := fn.CallWithStack(context.Background(), stack)
		c.mu.Unlock()
		if err != nil {
			return variant.Nil(), errors.New(errors.PhaseRuntime, errors.KindInvalidData).
				Path(c.Info.Name, name).
				Detail("wasm call failed").
				Cause(err).
				Build()
		}
		switch len(results) {
		case 0:
			return variant.Nil(), nil
		case 1:
			return decode(results[0], stack[0]), nil
		}
		out := make([]variant.Value, len(results))
		for i, vt := range results {
			out[i] = decode(vt, stack[i])
		}
		return variant.Array(out...), nil
	}
	return m, true
}

func encode(vt api.ValueType, v variant.Value) uint64 {
	switch vt {
	case api.ValueTypeI32:
		return api.EncodeI32(int32(v.Int()))
	case api.ValueTypeI64:
		return api.EncodeI64(v.Int())
	case api.ValueTypeF32:
		return api.EncodeF32(float32(v.Float()))
	}
	return api.EncodeF64(v.Float())
}

func decode(vt api.ValueType, x uint64) variant.Value {
	switch vt {
	case api.ValueTypeI32:
		return variant.Int(int64(api.DecodeI32(x)))
	case api.ValueTypeI64:
		return variant.Int(int64(x))
	case api.ValueTypeF32:
		return variant.Float(float64(api.DecodeF32(x)))
	}
	return variant.Float(api.DecodeF64(x))
}
