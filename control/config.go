// control/config.go
// Author: momentics <momentics@gmail.com>
//
// Engine configuration: YAML file, defaults and validation, plus a
// thread-safe store with reload listeners.

package control

import (
	"fmt"
	"os"
	"sync"
	"sync/atomic"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/momentics/hioload-io/api"
)

// Config holds engine parameters.
type Config struct {
	Message   MessageConfig  `yaml:"message"`
	Arena     ArenaConfig    `yaml:"arena"`
	Session   SessionConfig  `yaml:"session"`
	Executor  ExecutorConfig `yaml:"executor"`
	Loops     int            `yaml:"loops"`
	LoopBatch int            `yaml:"loop_batch"`
	Log       LogConfig      `yaml:"log"`
	Metrics   MetricsConfig  `yaml:"metrics"`
}

type MessageConfig struct {
	// DefaultSize is the arena size of every inbound message.
	DefaultSize int `yaml:"default_size"`
}

type ArenaConfig struct {
	// MaxBytes caps the memory held by all arenas; 0 disables the cap.
	MaxBytes int64 `yaml:"max_bytes"`
}

type SessionConfig struct {
	DefaultTimeout time.Duration `yaml:"default_timeout"`
}

type ExecutorConfig struct {
	Workers  int  `yaml:"workers"`
	PreAlloc bool `yaml:"prealloc"`
}

type LogConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

type MetricsConfig struct {
	Enabled bool   `yaml:"enabled"`
	Addr    string `yaml:"addr"`
	Path    string `yaml:"path"`
}

// DefaultConfig returns default configuration values.
func DefaultConfig() *Config {
	return &Config{
		Message:   MessageConfig{DefaultSize: 4096},
		Session:   SessionConfig{DefaultTimeout: 5 * time.Second},
		Executor:  ExecutorConfig{Workers: 4},
		Loops:     1,
		LoopBatch: 64,
		Log:       LogConfig{Level: "info", Format: "text"},
		Metrics:   MetricsConfig{Addr: ":9090", Path: "/metrics"},
	}
}

// ParseConfig decodes YAML on top of the defaults and validates the result.
func ParseConfig(data []byte) (*Config, error) {
	cfg := DefaultConfig()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("decode config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// LoadConfig reads and parses a YAML file.
func LoadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config %q: %w", path, err)
	}
	return ParseConfig(data)
}

// Validate checks value ranges.
func (c *Config) Validate() error {
	invalid := func(field string, v any) error {
		return api.Wrap(api.ErrCodeInvalidArgument, api.ErrInvalidArgument, "invalid config").
			WithContext("field", field).
			WithContext("value", v)
	}
	switch {
	case c.Message.DefaultSize <= 0:
		return invalid("message.default_size", c.Message.DefaultSize)
	case c.Arena.MaxBytes < 0:
		return invalid("arena.max_bytes", c.Arena.MaxBytes)
	case c.Session.DefaultTimeout <= 0:
		return invalid("session.default_timeout", c.Session.DefaultTimeout)
	case c.Executor.Workers < 0:
		return invalid("executor.workers", c.Executor.Workers)
	case c.Loops <= 0:
		return invalid("loops", c.Loops)
	case c.LoopBatch <= 0:
		return invalid("loop_batch", c.LoopBatch)
	}
	if _, err := ParseLevel(c.Log.Level); err != nil {
		return invalid("log.level", c.Log.Level)
	}
	if c.Log.Format != "" && c.Log.Format != "text" && c.Log.Format != "json" {
		return invalid("log.format", c.Log.Format)
	}
	return nil
}

// Clone returns a copy safe to mutate.
func (c *Config) Clone() *Config {
	cp := *c
	return &cp
}

// YAML renders the configuration.
func (c *Config) YAML() ([]byte, error) {
	return yaml.Marshal(c)
}

// ConfigStore holds the current configuration snapshot.
type ConfigStore struct {
	cur       atomic.Pointer[Config]
	mu        sync.Mutex
	listeners []func(old, cur *Config)
}

// NewConfigStore initializes a store with cfg.
func NewConfigStore(cfg *Config) *ConfigStore {
	cs := &ConfigStore{}
	cs.cur.Store(cfg.Clone())
	return cs
}

// Snapshot returns the current configuration; callers must not mutate it.
func (cs *ConfigStore) Snapshot() *Config {
	return cs.cur.Load()
}

// Update validates and installs cfg, then calls listeners in registration order.
func (cs *ConfigStore) Update(cfg *Config) error {
	if err := cfg.Validate(); err != nil {
		return err
	}
	cs.mu.Lock()
	defer cs.mu.Unlock()
	old := cs.cur.Swap(cfg.Clone())
	cur := cs.cur.Load()
	for _, fn := range cs.listeners {
		fn(old, cur)
	}
	return nil
}

// OnReload registers a listener hook called on config changes.
func (cs *ConfigStore) OnReload(fn func(old, cur *Config)) {
	cs.mu.Lock()
	defer cs.mu.Unlock()
	cs.listeners = append(cs.listeners, fn)
}
