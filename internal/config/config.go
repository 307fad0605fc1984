// Package config loads the YAML configuration shared by the CLI and the
// engine.
//
//	agent_id: 0
//	limits: {scalar: 256, baseline: 16, tensor: 16}
//	trace: {min_severity: DEBUG}
//	cache: {baselines: 64}
//	store: {path: scrawl.db}
//	compiler: {strict: true, macros: [macros/]}
//
// Every field is optional; missing fields keep their Default value. Unknown
// fields are rejected so typos surface instead of being ignored.
package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"go.uber.org/multierr"
	"gopkg.in/yaml.v3"

	"github.com/roach88/scrawl/internal/engine"
	"github.com/roach88/scrawl/internal/identity"
	"github.com/roach88/scrawl/internal/trace"
)

// Config is the full configuration.
type Config struct {
	AgentID  int64          `yaml:"agent_id"`
	Limits   engine.Limits  `yaml:"limits"`
	Trace    TraceConfig    `yaml:"trace"`
	Cache    CacheConfig    `yaml:"cache"`
	Store    StoreConfig    `yaml:"store"`
	Compiler CompilerConfig `yaml:"compiler"`
}

// TraceConfig controls which audit events are shown.
type TraceConfig struct {
	MinSeverity trace.Severity `yaml:"min_severity"`
}

// CacheConfig sizes the baseline derivation cache. Zero disables it.
type CacheConfig struct {
	Baselines int `yaml:"baselines"`
}

// StoreConfig locates the run database. An empty path disables storage.
type StoreConfig struct {
	Path string `yaml:"path"`
}

// CompilerConfig configures pseudocode compilation.
type CompilerConfig struct {
	Strict bool     `yaml:"strict"`
	Macros []string `yaml:"macros"` // directories of CUE macro files
}

// Default returns the configuration used when no file is given.
func Default() Config {
	return Config{
		Limits: engine.DefaultLimits,
		Trace:  TraceConfig{MinSeverity: trace.Debug},
		Cache:  CacheConfig{Baselines: 64},
		Compiler: CompilerConfig{
			Strict: true,
		},
	}
}

// Load reads path over Default. Relative macro directories resolve against
// the directory holding the file.
func Load(path string) (Config, error) {
	f, err := os.Open(path)
	if err != nil {
		return Config{}, fmt.Errorf("failed to read config file: %w", err)
	}
	defer f.Close()

	cfg, err := Decode(f)
	if err != nil {
		return Config{}, fmt.Errorf("%s: %w", path, err)
	}
	base := filepath.Dir(path)
	for i, dir := range cfg.Compiler.Macros {
		if !filepath.IsAbs(dir) {
			cfg.Compiler.Macros[i] = filepath.Join(base, dir)
		}
	}
	return cfg, nil
}

// Decode reads YAML from r over Default and validates the result.
func Decode(r io.Reader) (Config, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return Config{}, fmt.Errorf("failed to read config: %w", err)
	}

	cfg := Default()
	decoder := yaml.NewDecoder(bytes.NewReader(data))
	decoder.KnownFields(true)
	if err := decoder.Decode(&cfg); err != nil && !errors.Is(err, io.EOF) {
		return Config{}, fmt.Errorf("failed to parse YAML: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return Config{}, fmt.Errorf("invalid config: %w", err)
	}
	return cfg, nil
}

// Validate reports every problem at once.
func (c Config) Validate() error {
	var err error
	if c.AgentID < 0 {
		err = multierr.Append(err, fmt.Errorf("agent_id: %d is negative", c.AgentID))
	}
	if lerr := c.Limits.Validate(); lerr != nil {
		err = multierr.Append(err, fmt.Errorf("limits: %w", lerr))
	}
	if c.Trace.MinSeverity < trace.Debug || c.Trace.MinSeverity > trace.Error {
		err = multierr.Append(err, fmt.Errorf("trace.min_severity: %d out of range", int(c.Trace.MinSeverity)))
	}
	if c.Cache.Baselines < 0 {
		err = multierr.Append(err, fmt.Errorf("cache.baselines: %d is negative", c.Cache.Baselines))
	}
	for i, dir := range c.Compiler.Macros {
		if dir == "" {
			err = multierr.Append(err, fmt.Errorf("compiler.macros[%d]: empty path", i))
		}
	}
	return err
}

// EngineOptions translates the configuration into VM options.
func (c Config) EngineOptions() ([]engine.Option, error) {
	opts := []engine.Option{
		engine.WithAgentID(c.AgentID),
		engine.WithLimits(c.Limits),
	}
	if c.Cache.Baselines > 0 {
		cache, err := identity.NewCache(c.Cache.Baselines)
		if err != nil {
			return nil, fmt.Errorf("baseline cache: %w", err)
		}
		opts = append(opts, engine.WithBaselineCache(cache))
	}
	return opts, nil
}
