// Plexmap - Tautulli Playback Origin Mapper
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/plexmap

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
)

// DefaultConfigPaths lists the paths where config files are searched in
// order of priority. The first file found wins.
var DefaultConfigPaths = []string{
	"config.yaml",
	"config.yml",
}

// ConfigPathEnvVar is the environment variable that can override the config file path.
const ConfigPathEnvVar = "CONFIG_PATH"

// defaultConfig returns a Config with all sensible default values.
// These defaults are applied first, then overridden by config file,
// environment variables, and command-line flags.
func defaultConfig() *Config {
	return &Config{
		Tautulli: TautulliConfig{
			URL:         "",
			APIKey:      "",
			RecordLimit: 0,    // fetch everything
			PageSize:    1000, // Tautulli's get_history batch maximum
		},
		GeoIP: GeoIPConfig{
			BaseURL:      "http://ip-api.com/json",
			RateInterval: 1500 * time.Millisecond, // stays under ip-api.com's 45 req/min free tier
			Timeout:      10 * time.Second,
		},
		Cache: CacheConfig{
			Path:       "ip_location_cache.json",
			FlushEvery: 10,
		},
		Output: OutputConfig{
			Path: "plex_map.html",
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "console",
			Caller: false,
		},
	}
}

// Load builds the configuration from defaults, an optional YAML config
// file, and environment variables. configPath overrides the file search
// when non-empty. Validation is NOT performed here: the CLI merges flag
// overrides first and then calls Validate().
func Load(configPath string) (*Config, error) {
	k := koanf.New(".")

	// Layer 1: defaults from struct
	if err := k.Load(structs.Provider(defaultConfig(), "koanf"), nil); err != nil {
		return nil, fmt.Errorf("failed to load defaults: %w", err)
	}

	// Layer 2: optional config file
	path := configPath
	if path == "" {
		path = findConfigFile()
	}
	if path != "" {
		if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
			return nil, fmt.Errorf("failed to load config file %s: %w", path, err)
		}
	}

	// Layer 3: environment variables (highest priority)
	if err := k.Load(env.Provider("", ".", envTransformFunc), nil); err != nil {
		return nil, fmt.Errorf("failed to load environment variables: %w", err)
	}

	cfg := &Config{}
	if err := k.Unmarshal("", cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal configuration: %w", err)
	}

	return cfg, nil
}

// findConfigFile searches for a config file in the default paths.
// Returns the path to the first file found, or empty string if none found.
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

// envTransformFunc maps environment variable names to koanf config paths.
// Unmapped keys are skipped so random environment variables don't pollute
// the configuration.
func envTransformFunc(key string) string {
	envMappings := map[string]string{
		"tautulli_url":        "tautulli.url",
		"tautulli_api_key":    "tautulli.api_key",
		"record_limit":        "tautulli.record_limit",
		"tautulli_page_size":  "tautulli.page_size",
		"geoip_base_url":      "geoip.base_url",
		"geoip_rate_interval": "geoip.rate_interval",
		"geoip_timeout":       "geoip.timeout",
		"cache_file":          "cache.path",
		"cache_flush_every":   "cache.flush_every",
		"output_file":         "output.path",
		"log_level":           "logging.level",
		"log_format":          "logging.format",
		"log_caller":          "logging.caller",
	}

	if mapped, ok := envMappings[strings.ToLower(key)]; ok {
		return mapped
	}
	return ""
}
