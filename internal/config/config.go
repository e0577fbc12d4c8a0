// Plexmap - Tautulli Playback Origin Mapper
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/plexmap

// Package config loads and validates plexmap configuration.
//
// Configuration is layered via Koanf v2 (highest priority wins):
//
//  1. Built-in defaults
//  2. Optional YAML config file (config.yaml, or CONFIG_PATH)
//  3. Environment variables (TAUTULLI_URL, TAUTULLI_API_KEY, ...)
//
// Command-line flags are applied on top by the CLI after Load(), so
// validation runs once all sources have been merged.
package config

import (
	"fmt"
	"net/url"
	"time"
)

// Config holds all plexmap settings. Immutable after the CLI finishes
// merging flags; safe for concurrent reads.
type Config struct {
	Tautulli TautulliConfig `koanf:"tautulli"`
	GeoIP    GeoIPConfig    `koanf:"geoip"`
	Cache    CacheConfig    `koanf:"cache"`
	Output   OutputConfig   `koanf:"output"`
	Logging  LoggingConfig  `koanf:"logging"`
}

// TautulliConfig holds connection settings for the Tautulli history source.
//
// Environment Variables:
//   - TAUTULLI_URL: Tautulli server URL (e.g., http://localhost:8181)
//   - TAUTULLI_API_KEY: API key from Tautulli Settings > Web Interface
//   - RECORD_LIMIT: Maximum history records to fetch (0 = all)
type TautulliConfig struct {
	URL         string `koanf:"url"`
	APIKey      string `koanf:"api_key"`
	RecordLimit int    `koanf:"record_limit"` // 0 = fetch all available records
	PageSize    int    `koanf:"page_size"`    // records per get_history request
}

// GeoIPConfig holds settings for the external geolocation provider.
// The defaults target ip-api.com's free tier (45 requests/minute).
type GeoIPConfig struct {
	BaseURL      string        `koanf:"base_url"`
	RateInterval time.Duration `koanf:"rate_interval"` // minimum gap between lookups
	Timeout      time.Duration `koanf:"timeout"`       // per-request HTTP timeout
}

// CacheConfig holds settings for the on-disk IP geolocation cache.
type CacheConfig struct {
	Path       string `koanf:"path"`
	FlushEvery int    `koanf:"flush_every"` // flush after this many cache-mutating resolutions
}

// OutputConfig holds settings for the rendered map artifact.
type OutputConfig struct {
	Path string `koanf:"path"`
}

// LoggingConfig holds log output settings.
type LoggingConfig struct {
	Level  string `koanf:"level"`
	Format string `koanf:"format"`
	Caller bool   `koanf:"caller"`
}

// Validate checks that required configuration is present and valid.
// It must be called before any network activity so credential problems
// surface as configuration errors, not mid-run transport failures.
func (c *Config) Validate() error {
	if c.Tautulli.URL == "" {
		return fmt.Errorf("tautulli.url is required (set TAUTULLI_URL)")
	}
	u, err := url.Parse(c.Tautulli.URL)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return fmt.Errorf("tautulli.url %q is not a valid URL", c.Tautulli.URL)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return fmt.Errorf("tautulli.url must use http or https, got %q", u.Scheme)
	}
	if c.Tautulli.APIKey == "" {
		return fmt.Errorf("tautulli.api_key is required (set TAUTULLI_API_KEY)")
	}
	if c.Tautulli.RecordLimit < 0 {
		return fmt.Errorf("tautulli.record_limit must be >= 0, got %d", c.Tautulli.RecordLimit)
	}
	if c.Tautulli.PageSize <= 0 {
		return fmt.Errorf("tautulli.page_size must be > 0, got %d", c.Tautulli.PageSize)
	}
	if c.GeoIP.BaseURL == "" {
		return fmt.Errorf("geoip.base_url is required")
	}
	if c.GeoIP.RateInterval < 0 {
		return fmt.Errorf("geoip.rate_interval must be >= 0, got %s", c.GeoIP.RateInterval)
	}
	if c.Cache.Path == "" {
		return fmt.Errorf("cache.path is required")
	}
	if c.Cache.FlushEvery <= 0 {
		return fmt.Errorf("cache.flush_every must be > 0, got %d", c.Cache.FlushEvery)
	}
	if c.Output.Path == "" {
		return fmt.Errorf("output.path is required")
	}
	return nil
}
