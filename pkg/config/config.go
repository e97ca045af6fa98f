// Package config loads the YAML configuration of the pawn-natives tool.
package config

import (
	"fmt"
	"os"
	"slices"

	"github.com/rs/zerolog"
	"go.mau.fi/util/ptr"
	"go.mau.fi/zeroconfig"
	"gopkg.in/yaml.v3"

	"github.com/highesttt/pawn-natives/pkg/stdnatives"
)

const (
	BackendMemory = "memory"
	BackendWasm   = "wasm"
)

type Config struct {
	Logging zeroconfig.Config `yaml:"logging"`
	Machine MachineConfig     `yaml:"machine"`
	Natives NativesConfig     `yaml:"natives"`
}

type MachineConfig struct {
	// Backend is either "memory" for the in-process machine or "wasm" for a
	// wazero guest.
	Backend string `yaml:"backend"`
	// Cells is the data segment size of the memory backend.
	Cells int `yaml:"cells"`
	// WasmModule is the guest module of the wasm backend. Empty means a
	// guest with one page of memory and no code.
	WasmModule string `yaml:"wasm_module"`
}

type NativesConfig struct {
	// Enable lists the stdnatives groups to register, all when empty.
	Enable     []string `yaml:"enable"`
	BcryptCost *int     `yaml:"bcrypt_cost"`
}

func Default() *Config {
	return &Config{
		Logging: zeroconfig.Config{
			MinLevel: ptr.Ptr(zerolog.InfoLevel),
			Writers: []zeroconfig.WriterConfig{{
				Type:   zeroconfig.WriterTypeStderr,
				Format: zeroconfig.LogFormatPrettyColored,
			}},
		},
		Machine: MachineConfig{
			Backend: BackendMemory,
			Cells:   4096,
		},
	}
}

// Load reads path on top of the defaults. A missing file is not an error.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return Default(), nil
	} else if err != nil {
		return nil, fmt.Errorf("config: %w", err)
	}
	return Parse(data)
}

func Parse(data []byte) (*Config, error) {
	cfg := Default()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) Validate() error {
	switch c.Machine.Backend {
	case BackendMemory:
		if c.Machine.Cells < 1 {
			return fmt.Errorf("config: machine.cells must be positive, got %d", c.Machine.Cells)
		}
	case BackendWasm:
	default:
		return fmt.Errorf("config: unknown machine.backend %q", c.Machine.Backend)
	}
	for _, g := range c.Natives.Enable {
		if !slices.Contains(stdnatives.Groups, g) {
			return fmt.Errorf("config: unknown natives group %q", g)
		}
	}
	return nil
}

// Settings returns the host settings natives are given.
func (c *Config) Settings() stdnatives.Settings {
	return stdnatives.Settings{BcryptCost: ptr.Val(c.Natives.BcryptCost)}
}

// Logger builds the logger described by the logging section.
func (c *Config) Logger() (*zerolog.Logger, error) {
	return c.Logging.Compile()
}
