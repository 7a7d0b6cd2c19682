package main

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "jsbridge.yaml")
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestLoadConfig(t *testing.T) {
	path := writeConfig(t, `
root: scripts
main: game.js
fps: 30
max_frames: 10
narrowing: strict
module_db: modules.db
wasm_classes:
  Adder: add.wasm
timer:
  granularity: 2ms
  slots: 32
wasm:
  memory_limit_pages: 16
`)
	cfg, err := loadConfig(path)
	if err != nil {
		t.Fatal(err)
	}
	if cfg.Root != "scripts" || cfg.Main != "game.js" || cfg.MaxFrames != 10 {
		t.Errorf("cfg = %+v", cfg)
	}
	if cfg.frame() != time.Second/30 {
		t.Errorf("frame = %v", cfg.frame())
	}
	if cfg.Timer.Granularity != 2*time.Millisecond || cfg.Timer.Slots != 32 || cfg.Timer.Levels != 4 {
		t.Errorf("timer = %+v", cfg.Timer)
	}
	if cfg.WasmClasses["Adder"] != "add.wasm" || cfg.Wasm.MemoryLimitPages != 16 {
		t.Errorf("wasm = %v %+v", cfg.WasmClasses, cfg.Wasm)
	}
	if !cfg.Globals || cfg.LogLevel != "info" {
		t.Error("unset keys should keep their defaults")
	}
}

func TestLoadConfig_Invalid(t *testing.T) {
	for _, body := range []string{
		"fps: 0",
		"max_frames: -1",
		"narrowing: sometimes",
		"fps: [",
	} {
		if _, err := loadConfig(writeConfig(t, body)); err == nil {
			t.Errorf("%q accepted", body)
		}
	}
	if _, err := loadConfig(filepath.Join(t.TempDir(), "missing.yaml")); err == nil {
		t.Error("missing file accepted")
	}
}
