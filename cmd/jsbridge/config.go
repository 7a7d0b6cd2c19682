package main

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/wippyai/jsbridge/timer"
	"github.com/wippyai/jsbridge/variant"
	"github.com/wippyai/jsbridge/wasmclass"
)

// Config is the on-disk runner configuration. Flags override it.
type Config struct {
	Root       string   `yaml:"root"`
	Main       string   `yaml:"main"`
	Roots      []string `yaml:"roots"`
	Extensions []string `yaml:"extensions"`
	// ModuleDB is a sqlite database consulted after the file system.
	ModuleDB string `yaml:"module_db"`
	// WasmClasses maps class names to core wasm modules.
	WasmClasses map[string]string `yaml:"wasm_classes"`
	Narrowing   string            `yaml:"narrowing"`
	LogLevel    string            `yaml:"log_level"`
	Timer       timer.Config      `yaml:"timer"`
	Wasm        wasmclass.Config  `yaml:"wasm"`
	FPS         int               `yaml:"fps"`
	MaxFrames   int               `yaml:"max_frames"`
	Globals     bool              `yaml:"globals"`
	SourceMaps  bool              `yaml:"source_maps"`
}

func defaultConfig() Config {
	return Config{
		Root:       ".",
		Main:       "main.js",
		Narrowing:  "lossy",
		LogLevel:   "info",
		Timer:      timer.DefaultConfig(),
		FPS:        60,
		Globals:    true,
		SourceMaps: true,
	}
}

// loadConfig reads path over the defaults. An empty path yields the
// defaults.
func loadConfig(path string) (Config, error) {
	cfg := defaultConfig()
	if path == "" {
		return cfg, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return cfg, fmt.Errorf("read config: %w", err)
	}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return cfg, fmt.Errorf("parse config %s: %w", path, err)
	}
	return cfg, cfg.validate()
}

func (c Config) validate() error {
	if c.FPS <= 0 {
		return fmt.Errorf("fps must be positive, got %d", c.FPS)
	}
	if c.MaxFrames < 0 {
		return fmt.Errorf("max_frames must not be negative, got %d", c.MaxFrames)
	}
	if _, err := variant.ParsePolicy(c.Narrowing); err != nil {
		return err
	}
	return nil
}

func (c Config) frame() time.Duration {
	return time.Second / time.Duration(c.FPS)
}
