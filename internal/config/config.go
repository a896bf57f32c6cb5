// Package config resolves runtime settings from defaults, an optional YAML
// file and TASKS_* environment variables, in that order.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/idilsaglam/tasklist/internal/store"
	"github.com/idilsaglam/tasklist/internal/validate"
)

const (
	BackendFile   = "file"
	BackendMemory = "memory"
	BackendRedis  = "redis"
	BackendBadger = "badger"
)

type Config struct {
	// Backend is one of file, memory, redis or badger.
	Backend string `yaml:"backend"`
	// Path is the JSON file for the file backend and the directory for badger.
	Path     string `yaml:"path"`
	RedisURL string `yaml:"redis_url"`
	// Key is the storage key holding the task envelope.
	Key       string `yaml:"key"`
	Quota     int64  `yaml:"quota"`
	MaxLength int    `yaml:"max_length"`
	Theme     string `yaml:"theme"`
	Group     bool   `yaml:"group"`
	Debug     bool   `yaml:"debug"`
}

// Default is what an empty environment yields.
func Default() Config {
	return Config{
		Backend:   BackendFile,
		Key:       store.DefaultKey,
		Quota:     store.DefaultQuota,
		MaxLength: validate.DefaultRules.MaxLength,
		Theme:     "classic",
	}
}

// Dir is ~/.tasklist.
func Dir() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("home: %w", err)
	}
	return filepath.Join(home, ".tasklist"), nil
}

// Load layers the YAML file at path (or ~/.tasklist/config.yaml when path is
// empty and that file exists) and then the environment over Default.
func Load(path string, getenv func(string) string) (Config, error) {
	cfg := Default()
	explicit := path != ""
	if !explicit {
		if dir, err := Dir(); err == nil {
			path = filepath.Join(dir, "config.yaml")
		}
	}
	if path != "" {
		if err := cfg.readFile(path, explicit); err != nil {
			return Config{}, err
		}
	}
	if err := cfg.applyEnv(getenv); err != nil {
		return Config{}, err
	}
	return cfg, cfg.Validate()
}

func (c *Config) readFile(path string, required bool) error {
	b, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) && !required {
			return nil
		}
		return fmt.Errorf("read config: %w", err)
	}
	if err := yaml.Unmarshal(b, c); err != nil {
		return fmt.Errorf("parse config %s: %w", path, err)
	}
	return nil
}

func (c *Config) applyEnv(getenv func(string) string) error {
	if getenv == nil {
		getenv = os.Getenv
	}
	if v := strings.TrimSpace(getenv("TASKS_BACKEND")); v != "" {
		c.Backend = strings.ToLower(v)
	}
	if v := getenv("TASKS_PATH"); v != "" {
		c.Path = v
	}
	if v := getenv("TASKS_REDIS_URL"); v != "" {
		c.RedisURL = v
	}
	if v := getenv("TASKS_KEY"); v != "" {
		c.Key = v
	}
	if v := getenv("TASKS_THEME"); v != "" {
		c.Theme = v
	}
	if v := getenv("TASKS_QUOTA"); v != "" {
		n, err := strconv.ParseInt(v, 10, 64)
		if err != nil {
			return fmt.Errorf("invalid TASKS_QUOTA: %w", err)
		}
		c.Quota = n
	}
	if v := getenv("TASKS_MAX_LENGTH"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("invalid TASKS_MAX_LENGTH: %w", err)
		}
		c.MaxLength = n
	}
	if v := getenv("DEBUG"); v != "" {
		if dbg, err := strconv.ParseBool(v); err == nil {
			c.Debug = dbg
		}
	}
	return nil
}

// Validate rejects settings no backend can run with.
func (c Config) Validate() error {
	switch c.Backend {
	case BackendFile, BackendMemory, BackendBadger:
	case BackendRedis:
		if c.RedisURL == "" {
			return errors.New("redis backend needs redis_url or TASKS_REDIS_URL")
		}
	default:
		return fmt.Errorf("unknown backend %q (want file, memory, redis or badger)", c.Backend)
	}
	if c.Key == "" {
		return errors.New("storage key must not be empty")
	}
	if c.MaxLength <= 0 {
		return fmt.Errorf("max_length must be positive, got %d", c.MaxLength)
	}
	return nil
}
