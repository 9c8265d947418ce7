// Package config holds the service configuration for cmd/server.
package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

// Storage backends
const (
	StorageMemory = "memory"
	StorageSQL    = "sql"
)

// Config is the service configuration. Zero values in a file keep the
// defaults.
type Config struct {
	HTTPAddr     string `yaml:"http_addr"`
	TemporalAddr string `yaml:"temporal_addr"`
	Namespace    string `yaml:"namespace"`
	TaskQueue    string `yaml:"task_queue"`
	LogLevel     string `yaml:"log_level"`
	Storage      string `yaml:"storage"`
	SQLPath      string `yaml:"sql_path"`
}

// Default returns the configuration used when no file is given
func Default() Config {
	return Config{
		HTTPAddr:     ":8080",
		TemporalAddr: "localhost:7233",
		Namespace:    "default",
		TaskQueue:    "chronology-task-queue",
		LogLevel:     "info",
		Storage:      StorageMemory,
		SQLPath:      "chronology.db",
	}
}

// Load reads a YAML config file over the defaults. An empty path returns the
// defaults.
func Load(path string) (Config, error) {
	cfg := Default()
	if path == "" {
		return cfg, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return cfg, fmt.Errorf("failed to read config: %w", err)
	}
	if err := cfg.decode(data); err != nil {
		return cfg, fmt.Errorf("config %s: %w", path, err)
	}
	return cfg, nil
}

func (c *Config) decode(data []byte) error {
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(c); err != nil && !errors.Is(err, io.EOF) {
		return fmt.Errorf("failed to decode YAML: %w", err)
	}
	return c.Validate()
}

// Validate checks the enumerated fields
func (c Config) Validate() error {
	switch c.Storage {
	case StorageMemory:
	case StorageSQL:
		if c.SQLPath == "" {
			return fmt.Errorf("sql_path is required for sql storage")
		}
	default:
		return fmt.Errorf("storage must be %q or %q, got %q", StorageMemory, StorageSQL, c.Storage)
	}
	if _, err := ParseLogLevel(c.LogLevel); err != nil {
		return err
	}
	if c.TaskQueue == "" {
		return fmt.Errorf("task_queue is required")
	}
	return nil
}

// ParseLogLevel maps debug, info, warn and error onto slog levels
func ParseLogLevel(level string) (slog.Level, error) {
	switch strings.ToLower(level) {
	case "debug":
		return slog.LevelDebug, nil
	case "info", "":
		return slog.LevelInfo, nil
	case "warn":
		return slog.LevelWarn, nil
	case "error":
		return slog.LevelError, nil
	}
	return slog.LevelInfo, fmt.Errorf("unknown log level %q", level)
}
