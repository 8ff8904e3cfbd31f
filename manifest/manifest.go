// Package manifest handles xvm.toml engine configuration.
package manifest

import (
	"fmt"
	"path/filepath"
	"strings"

	"github.com/BurntSushi/toml"
	"github.com/spf13/afero"

	"github.com/xtclang/xvm-sub016/pkg/bytecode"
	"github.com/xtclang/xvm-sub016/vm"
	"github.com/xtclang/xvm-sub016/vm/object"
)

// FileName is the name of the configuration file.
const FileName = "xvm.toml"

// Config represents an xvm.toml configuration.
type Config struct {
	Engine  Engine      `toml:"engine"`
	Cache   Cache       `toml:"cache"`
	Log     Log         `toml:"log"`
	Metrics Metrics     `toml:"metrics"`
	Image   ImageConfig `toml:"image"`
	Run     Run         `toml:"run"`

	// Dir is the directory containing the xvm.toml file (set at load time).
	Dir string `toml:"-"`
}

// Engine configures call stacks.
type Engine struct {
	OpBudget int      `toml:"op_budget"`
	MaxDepth int      `toml:"max_depth"`
	Trace    []string `toml:"trace"` // opcode mnemonics logged on dispatch
}

// Cache configures the runtime's call-chain cache.
type Cache struct {
	CallChains int `toml:"call_chains"`
}

// Log configures logging.
type Log struct {
	Verbosity int    `toml:"verbosity"`
	File      string `toml:"file"` // stderr when empty
}

// Metrics configures Prometheus counters.
type Metrics struct {
	Enabled   bool   `toml:"enabled"`
	Namespace string `toml:"namespace"`
}

// ImageConfig configures where images are looked up.
type ImageConfig struct {
	Path []string `toml:"path"` // directories, relative to Dir
}

// Run configures the run command.
type Run struct {
	Entries []string `toml:"entries"` // "Class.method"
}

// Default returns the configuration used when no xvm.toml exists.
func Default() *Config {
	opts := vm.DefaultOptions()
	return &Config{
		Engine:  Engine{OpBudget: opts.OpBudget, MaxDepth: opts.MaxDepth},
		Cache:   Cache{CallChains: object.DefaultChainCacheSize},
		Metrics: Metrics{Namespace: "xvm"},
		Image:   ImageConfig{Path: []string{"."}},
	}
}

// Load parses the xvm.toml file in dir. Keys missing from the file keep
// their Default values; unknown keys are an error.
func Load(fs afero.Fs, dir string) (*Config, error) {
	path := filepath.Join(dir, FileName)
	data, err := afero.ReadFile(fs, path)
	if err != nil {
		return nil, fmt.Errorf("cannot read %s: %w", path, err)
	}

	c := Default()
	md, err := toml.Decode(string(data), c)
	if err != nil {
		return nil, fmt.Errorf("parse error in %s: %w", path, err)
	}
	if undecoded := md.Undecoded(); len(undecoded) > 0 {
		keys := make([]string, len(undecoded))
		for i, k := range undecoded {
			keys[i] = k.String()
		}
		return nil, fmt.Errorf("%s: unknown keys: %s", path, strings.Join(keys, ", "))
	}
	if err := c.validate(); err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}

	c.Dir, err = filepath.Abs(dir)
	if err != nil {
		return nil, fmt.Errorf("cannot resolve path %s: %w", dir, err)
	}
	return c, nil
}

// FindAndLoad walks up from startDir to find an xvm.toml file, then loads
// and returns it. Returns nil if no file is found.
func FindAndLoad(fs afero.Fs, startDir string) (*Config, error) {
	dir, err := filepath.Abs(startDir)
	if err != nil {
		return nil, err
	}

	for {
		if ok, _ := afero.Exists(fs, filepath.Join(dir, FileName)); ok {
			return Load(fs, dir)
		}

		parent := filepath.Dir(dir)
		if parent == dir {
			return nil, nil
		}
		dir = parent
	}
}

func (c *Config) validate() error {
	switch {
	case c.Engine.OpBudget <= 0:
		return fmt.Errorf("engine.op_budget must be positive, got %d", c.Engine.OpBudget)
	case c.Engine.MaxDepth <= 0:
		return fmt.Errorf("engine.max_depth must be positive, got %d", c.Engine.MaxDepth)
	case c.Cache.CallChains < 0:
		return fmt.Errorf("cache.call_chains must not be negative, got %d", c.Cache.CallChains)
	}
	_, err := c.TraceOpcodes()
	return err
}

// TraceOpcodes parses the engine.trace mnemonics.
func (c *Config) TraceOpcodes() ([]bytecode.Opcode, error) {
	ops := make([]bytecode.Opcode, 0, len(c.Engine.Trace))
	for _, name := range c.Engine.Trace {
		op, ok := bytecode.ParseOpcode(name)
		if !ok {
			return nil, fmt.Errorf("engine.trace: unknown opcode %q", name)
		}
		ops = append(ops, op)
	}
	return ops, nil
}

// EngineOptions returns call stack options for the configuration.
// metrics may be nil.
func (c *Config) EngineOptions(metrics *vm.Metrics) (vm.Options, error) {
	trace, err := c.TraceOpcodes()
	if err != nil {
		return vm.Options{}, err
	}
	return vm.Options{
		OpBudget: c.Engine.OpBudget,
		MaxDepth: c.Engine.MaxDepth,
		Trace:    trace,
		Metrics:  metrics,
	}, nil
}

// RuntimeOptions returns runtime options for the configuration.
func (c *Config) RuntimeOptions() object.Options {
	opts := object.Options{ChainCacheSize: c.Cache.CallChains}
	if c.Metrics.Enabled {
		opts.Namespace = c.Metrics.Namespace
	}
	return opts
}
