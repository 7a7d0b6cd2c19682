package main

import (
	"context"
	"flag"
	"fmt"
	"io/fs"
	"os"
	"os/signal"
	"path"
	"path/filepath"
	"slices"
	"time"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"golang.org/x/term"

	"github.com/wippyai/jsbridge/modules"
	"github.com/wippyai/jsbridge/realm"
	"github.com/wippyai/jsbridge/variant"
	"github.com/wippyai/jsbridge/wasmclass"
)

func main() {
	var (
		configFile  = flag.String("config", "", "YAML configuration file")
		root        = flag.String("root", "", "Script root directory")
		mainModule  = flag.String("main", "", "Module to run")
		fps         = flag.Int("fps", 0, "Frames per second")
		frames      = flag.Int("frames", -1, "Stop after this many frames (0 runs until no timers remain)")
		moduleDB    = flag.String("module-db", "", "SQLite module database consulted after -root")
		importDB    = flag.Bool("import", false, "Copy the scripts under -root into -module-db and exit")
		logLevel    = flag.String("log", "", "Log level (debug, info, warn, error)")
		interactive = flag.Bool("i", false, "Interactive mode with TUI")
	)
	flag.Parse()

	cfg, err := loadConfig(*configFile)
	if err != nil {
		fatal(err)
	}
	if *root != "" {
		cfg.Root = *root
	}
	if *mainModule != "" {
		cfg.Main = *mainModule
	}
	if *fps > 0 {
		cfg.FPS = *fps
	}
	if *frames >= 0 {
		cfg.MaxFrames = *frames
	}
	if *moduleDB != "" {
		cfg.ModuleDB = *moduleDB
	}
	if *logLevel != "" {
		cfg.LogLevel = *logLevel
	}
	if err := cfg.validate(); err != nil {
		fatal(err)
	}
	if err := run(cfg, *importDB, *interactive); err != nil {
		fatal(err)
	}
}

func fatal(err error) {
	fmt.Fprintf(os.Stderr, "Error: %v\n", err)
	os.Exit(1)
}

// run executes the selected mode. Everything it opens is closed before it
// returns, including on failure.
func run(cfg Config, importOnly, interactive bool) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	if importOnly {
		return importModules(ctx, cfg)
	}
	if interactive {
		if !term.IsTerminal(int(os.Stdin.Fd())) {
			return fmt.Errorf("interactive mode needs a terminal on stdin")
		}
		return runInteractive(ctx, cfg)
	}

	logger, err := newLogger(cfg.LogLevel, zapcore.Lock(os.Stderr))
	if err != nil {
		return err
	}
	defer func() { _ = logger.Sync() }()

	s, err := newSession(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer s.Close(ctx)

	return s.run(ctx)
}

func newLogger(level string, out zapcore.WriteSyncer) (*zap.Logger, error) {
	lvl, err := zap.ParseAtomicLevel(level)
	if err != nil {
		return nil, fmt.Errorf("log level: %w", err)
	}
	enc := zap.NewDevelopmentEncoderConfig()
	enc.EncodeTime = zapcore.TimeEncoderOfLayout(time.TimeOnly)
	return zap.New(zapcore.NewCore(zapcore.NewConsoleEncoder(enc), out, lvl)), nil
}

// session is one realm with the collaborators the configuration asks for.
type session struct {
	cfg    Config
	realm  *realm.Realm
	wasm   *wasmclass.Runtime
	db     *modules.SQLResolver
	logger *zap.Logger
}

func newSession(ctx context.Context, cfg Config, logger *zap.Logger) (*session, error) {
	s := &session{cfg: cfg, logger: logger}

	engine, err := realm.NewEngine()
	if err != nil {
		return nil, err
	}
	if err := registerDemo(engine.ClassDB()); err != nil {
		return nil, err
	}

	s.wasm = wasmclass.NewRuntime(ctx, &cfg.Wasm, logger)
	names := make([]string, 0, len(cfg.WasmClasses))
	for name := range cfg.WasmClasses {
		names = append(names, name)
	}
	slices.Sort(names)
	for _, name := range names {
		file := cfg.WasmClasses[name]
		if !filepath.IsAbs(file) {
			file = filepath.Join(cfg.Root, file)
		}
		data, err := os.ReadFile(file)
		if err != nil {
			s.Close(ctx)
			return nil, fmt.Errorf("wasm class %s: %w", name, err)
		}
		if _, err := s.wasm.Register(ctx, engine.ClassDB(), name, data); err != nil {
			s.Close(ctx)
			return nil, fmt.Errorf("wasm class %s: %w", name, err)
		}
	}

	var resolvers []modules.Resolver
	if cfg.ModuleDB != "" {
		db, err := modules.OpenSQLResolver(ctx, cfg.ModuleDB)
		if err != nil {
			s.Close(ctx)
			return nil, err
		}
		s.db = db
		resolvers = append(resolvers, db)
	}

	policy, _ := variant.ParsePolicy(cfg.Narrowing)
	s.realm, err = realm.New(realm.Options{
		Logger:     logger,
		Engine:     engine,
		FS:         os.DirFS(cfg.Root),
		Roots:      cfg.Roots,
		Extensions: cfg.Extensions,
		Resolvers:  resolvers,
		Narrowing:  policy,
		Timer:      cfg.Timer,
		Globals:    cfg.Globals,
		SourceMaps: cfg.SourceMaps,
	})
	if err != nil {
		s.Close(ctx)
		return nil, err
	}
	return s, nil
}

// run loads the main module and drives frames until no timers remain, the
// frame limit is hit or ctx ends.
func (s *session) run(ctx context.Context) error {
	if _, err := s.realm.Require(s.cfg.Main); err != nil {
		return err
	}

	ticker := time.NewTicker(s.cfg.frame())
	defer ticker.Stop()
	last := time.Now()
	for frame := 1; ; frame++ {
		if s.realm.Timers().Len() == 0 {
			s.logger.Debug("no timers pending", zap.Int("frames", frame-1))
			return nil
		}
		if s.cfg.MaxFrames > 0 && frame > s.cfg.MaxFrames {
			s.logger.Info("frame limit reached", zap.Int("frames", s.cfg.MaxFrames))
			return nil
		}
		select {
		case <-ctx.Done():
			return nil
		case now := <-ticker.C:
			s.realm.Update(now.Sub(last))
			last = now
		}
	}
}

func (s *session) Close(ctx context.Context) {
	if s.realm != nil {
		if err := s.realm.Close(); err != nil {
			s.logger.Warn("close realm", zap.Error(err))
		}
	}
	if s.db != nil {
		_ = s.db.Close()
	}
	if s.wasm != nil {
		_ = s.wasm.Close(ctx)
	}
}

// importModules copies every script under the root into the module
// database, keyed by its path relative to the root.
func importModules(ctx context.Context, cfg Config) error {
	if cfg.ModuleDB == "" {
		return fmt.Errorf("-import needs a module database")
	}
	db, err := modules.OpenSQLResolver(ctx, cfg.ModuleDB)
	if err != nil {
		return err
	}
	defer db.Close()

	exts := cfg.Extensions
	if len(exts) == 0 {
		exts = []string{".js", ".json"}
	}
	fsys := os.DirFS(cfg.Root)
	n := 0
	err = fs.WalkDir(fsys, ".", func(p string, d fs.DirEntry, err error) error {
		if err != nil || d.IsDir() || !slices.Contains(exts, path.Ext(p)) {
			return err
		}
		src, err := fs.ReadFile(fsys, p)
		if err != nil {
			return err
		}
		n++
		return db.Put(ctx, p, string(src))
	})
	if err != nil {
		return err
	}
	fmt.Printf("imported %d modules into %s\n", n, cfg.ModuleDB)
	return nil
}
