package config

import (
	"fmt"
	"sync"

	"github.com/BurntSushi/toml"
)

// Config is a nested category -> name -> value document. Values not
// present in the loaded TOML fall back to their schema default on
// Get.
type Config struct {
	mu     sync.RWMutex
	values map[string]map[string]any
}

// New returns an empty Config; every Get resolves to schema defaults
// until overridden by Set.
func New() *Config {
	return &Config{values: make(map[string]map[string]any)}
}

// Load decodes a TOML document at path into a Config.
func Load(path string) (*Config, error) {
	var raw map[string]map[string]any
	if _, err := toml.DecodeFile(path, &raw); err != nil {
		return nil, fmt.Errorf("config: decode %s: %w", path, err)
	}
	return &Config{values: raw}, nil
}

// Get returns the value for category.name, falling back to the
// schema default if the document does not set it. ok is false only
// when neither the document nor the schema knows the key.
func (c *Config) Get(category, name string) (any, bool) {
	c.mu.RLock()
	if cat, ok := c.values[category]; ok {
		if v, ok := cat[name]; ok {
			c.mu.RUnlock()
			return v, true
		}
	}
	c.mu.RUnlock()

	if flags, ok := Schema[key(category, name)]; ok {
		return flags.Default, true
	}
	return nil, false
}

// Set overwrites category.name, rejecting the write if the schema
// marks the key ReadOnly.
func (c *Config) Set(category, name string, value any) error {
	if flags, ok := Schema[key(category, name)]; ok && flags.ReadOnly {
		return fmt.Errorf("config: %s.%s is read-only", category, name)
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.values[category] == nil {
		c.values[category] = make(map[string]any)
	}
	c.values[category][name] = value
	return nil
}

// IsSecurity reports whether category.name is flagged as carrying a
// security-sensitive value (auth keys, passwords), per
// ConfigurationSchema.cc's security-context attribute.
func IsSecurity(category, name string) bool {
	return Schema[key(category, name)].Security
}

// IsReadOnly reports whether category.name rejects Set.
func IsReadOnly(category, name string) bool {
	return Schema[key(category, name)].ReadOnly
}
