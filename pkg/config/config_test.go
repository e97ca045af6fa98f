package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/rs/zerolog"
)

func TestParse(t *testing.T) {
	cfg, err := Parse([]byte(`
logging:
  min_level: debug
  writers:
    - type: stdout
      format: json
machine:
  backend: wasm
natives:
  enable: [string, json]
  bcrypt_cost: 5
`))
	if err != nil {
		t.Fatal(err)
	}
	if cfg.Machine.Backend != BackendWasm || cfg.Machine.Cells != 4096 {
		t.Errorf("machine = %+v", cfg.Machine)
	}
	if len(cfg.Natives.Enable) != 2 || cfg.Settings().BcryptCost != 5 {
		t.Errorf("natives = %+v", cfg.Natives)
	}
	if cfg.Logging.MinLevel == nil || *cfg.Logging.MinLevel != zerolog.DebugLevel {
		t.Errorf("min level = %v", cfg.Logging.MinLevel)
	}
	if _, err := cfg.Logger(); err != nil {
		t.Errorf("Logger: %v", err)
	}
}

func TestDefaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	if err != nil {
		t.Fatal(err)
	}
	if cfg.Machine.Backend != BackendMemory || cfg.Settings().BcryptCost != 0 {
		t.Errorf("defaults = %+v", cfg)
	}
}

func TestLoadFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte("machine:\n  cells: 128\n"), 0o600); err != nil {
		t.Fatal(err)
	}
	cfg, err := Load(path)
	if err != nil {
		t.Fatal(err)
	}
	if cfg.Machine.Cells != 128 {
		t.Errorf("cells = %d", cfg.Machine.Cells)
	}
}

func TestValidate(t *testing.T) {
	for _, doc := range []string{
		"machine:\n  backend: jvm\n",
		"machine:\n  cells: 0\n",
		"natives:\n  enable: [sockets]\n",
		"machine: [",
	} {
		if _, err := Parse([]byte(doc)); err == nil {
			t.Errorf("Parse(%q) succeeded", doc)
		}
	}
}
