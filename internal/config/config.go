// Engage - Commerce Behavioral Tracking and Content Personalization
// Copyright 2026 Platewise
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/platewise/engage

// Package config loads layered configuration: built-in defaults, an
// optional YAML file, then ENGAGE_-prefixed environment variables, in
// increasing precedence.
package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/providers/structs"
	"github.com/knadh/koanf/v2"

	"github.com/platewise/engage/internal/batcher"
	"github.com/platewise/engage/internal/content"
	"github.com/platewise/engage/internal/ingest"
	"github.com/platewise/engage/internal/logging"
	"github.com/platewise/engage/internal/personalize"
)

// DefaultConfigPaths lists where config files are searched, in order.
var DefaultConfigPaths = []string{
	"config.yaml",
	"config.yml",
	"/etc/engage/config.yaml",
	"/etc/engage/config.yml",
}

// ConfigPathEnvVar overrides the config file path.
const ConfigPathEnvVar = "ENGAGE_CONFIG_PATH"

// envPrefix scopes which environment variables are read.
const envPrefix = "ENGAGE_"

// Config is the full service configuration.
type Config struct {
	Server      ServerConfig       `koanf:"server"`
	Logging     logging.Config     `koanf:"logging"`
	Batcher     batcher.Config     `koanf:"batcher"`
	Tags        TagsConfig         `koanf:"tags"`
	Ingest      ingest.Config      `koanf:"ingest"`
	Content     content.Config     `koanf:"content"`
	Personalize personalize.Config `koanf:"personalize"`
	API         APIConfig          `koanf:"api"`
}

// ServerConfig holds HTTP listener settings.
type ServerConfig struct {
	Host            string        `koanf:"host"`
	Port            int           `koanf:"port"`
	ReadTimeout     time.Duration `koanf:"read_timeout"`
	WriteTimeout    time.Duration `koanf:"write_timeout"`
	IdleTimeout     time.Duration `koanf:"idle_timeout"`
	ShutdownTimeout time.Duration `koanf:"shutdown_timeout"`
}

// Addr returns the listen address.
func (c ServerConfig) Addr() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}

// TagsConfig selects and configures the session tag store.
type TagsConfig struct {
	// Store is "badger" for durable persistence or "memory" for
	// single-process ephemeral state.
	Store string `koanf:"store"`
	Path  string `koanf:"path"`
}

// APIConfig holds HTTP API behavior settings.
type APIConfig struct {
	RateLimit       int           `koanf:"rate_limit"`
	RateLimitWindow time.Duration `koanf:"rate_limit_window"`
	CORSOrigins     []string      `koanf:"cors_origins"`
}

// defaultConfig returns the built-in defaults, overridden by config file
// and environment variables.
func defaultConfig() *Config {
	return &Config{
		Server: ServerConfig{
			Host:            "0.0.0.0",
			Port:            8080,
			ReadTimeout:     15 * time.Second,
			WriteTimeout:    15 * time.Second,
			IdleTimeout:     60 * time.Second,
			ShutdownTimeout: 30 * time.Second,
		},
		Logging: logging.Config{
			Level:  "info",
			Format: "json",
		},
		Batcher: batcher.DefaultConfig(),
		Tags: TagsConfig{
			Store: "badger",
			Path:  "/data/engage-tags",
		},
		Ingest:  ingest.DefaultConfig(),
		Content: content.DefaultConfig(),
		Personalize: personalize.Config{
			Limits: map[string]int{},
		},
		API: APIConfig{
			RateLimit:       100,
			RateLimitWindow: time.Minute,
			CORSOrigins:     []string{"*"},
		},
	}
}

// Load builds the configuration from defaults, an optional YAML file, and
// ENGAGE_-prefixed environment variables, then validates it.
func Load() (*Config, error) {
	k := koanf.New(".")

	if err := k.Load(structs.Provider(defaultConfig(), "koanf"), nil); err != nil {
		return nil, fmt.Errorf("failed to load defaults: %w", err)
	}

	if configPath := findConfigFile(); configPath != "" {
		if err := k.Load(file.Provider(configPath), yaml.Parser()); err != nil {
			return nil, fmt.Errorf("failed to load config file %s: %w", configPath, err)
		}
	}

	envProvider := env.Provider(envPrefix, ".", envTransform)
	if err := k.Load(envProvider, nil); err != nil {
		return nil, fmt.Errorf("failed to load environment variables: %w", err)
	}

	if err := processSliceFields(k); err != nil {
		return nil, fmt.Errorf("failed to process slice fields: %w", err)
	}

	cfg := &Config{}
	if err := k.Unmarshal("", cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal configuration: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}
	return cfg, nil
}

// envTransform maps environment variable names to koanf paths:
// ENGAGE_SERVER_PORT -> server.port, ENGAGE_TAGS_STORE -> tags.store.
//
// Section names are single words, so the first underscore separates the
// section from the key and remaining underscores stay in the key name
// (ENGAGE_API_RATE_LIMIT -> api.rate_limit).
func envTransform(s string) string {
	s = strings.TrimPrefix(s, envPrefix)
	s = strings.ToLower(s)
	return strings.Replace(s, "_", ".", 1)
}

// findConfigFile returns the first existing config file path, or "".
func findConfigFile() string {
	if envPath := os.Getenv(ConfigPathEnvVar); envPath != "" {
		if _, err := os.Stat(envPath); err == nil {
			return envPath
		}
	}
	for _, path := range DefaultConfigPaths {
		if _, err := os.Stat(path); err == nil {
			return path
		}
	}
	return ""
}

// sliceConfigPaths lists config paths parsed as comma-separated slices
// when set from environment variables.
var sliceConfigPaths = []string{
	"api.cors_origins",
}

// processSliceFields converts comma-separated env var strings into
// slices for known slice fields. YAML-sourced slices pass through.
func processSliceFields(k *koanf.Koanf) error {
	for _, path := range sliceConfigPaths {
		val := k.Get(path)
		if val == nil {
			continue
		}
		if _, ok := val.([]interface{}); ok {
			continue
		}
		if _, ok := val.([]string); ok {
			continue
		}
		str, ok := val.(string)
		if !ok {
			return fmt.Errorf("unexpected type %T for %s", val, path)
		}
		parts := strings.Split(str, ",")
		out := make([]string, 0, len(parts))
		for _, p := range parts {
			if trimmed := strings.TrimSpace(p); trimmed != "" {
				out = append(out, trimmed)
			}
		}
		if err := k.Set(path, out); err != nil {
			return fmt.Errorf("setting %s: %w", path, err)
		}
	}
	return nil
}
