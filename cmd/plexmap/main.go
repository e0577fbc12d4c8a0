// Plexmap - Tautulli Playback Origin Mapper
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/plexmap

// Command plexmap fetches playback history from a Tautulli server,
// geolocates the client IPs through ip-api.com (cached and rate limited),
// and writes an interactive heatmap of playback origins as a standalone
// HTML file.
package main

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"syscall"

	"github.com/alecthomas/kong"

	"github.com/tomtom215/plexmap/internal/config"
	"github.com/tomtom215/plexmap/internal/geo"
	"github.com/tomtom215/plexmap/internal/logging"
	"github.com/tomtom215/plexmap/internal/pipeline"
	"github.com/tomtom215/plexmap/internal/progress"
	"github.com/tomtom215/plexmap/internal/render"
	"github.com/tomtom215/plexmap/internal/tautulli"
)

var version = "dev"

// cli defines the command-line flags. Flags override the config file and
// environment variables; -1 sentinels mean "flag not given" so an explicit
// --limit 0 (fetch all) stays distinguishable from no flag at all.
type cli struct {
	Config    string           `help:"Path to YAML config file." type:"path" placeholder:"PATH"`
	URL       string           `help:"Tautulli server URL." placeholder:"URL"`
	APIKey    string           `name:"api-key" help:"Tautulli API key." placeholder:"KEY"`
	Limit     int              `default:"-1" help:"Maximum history records to fetch (0 = all)."`
	Output    string           `short:"o" help:"Output HTML file path." placeholder:"PATH"`
	Cache     string           `help:"IP geolocation cache file path." placeholder:"PATH"`
	LogLevel  string           `help:"Log level: trace, debug, info, warn, error." placeholder:"LEVEL"`
	LogFormat string           `help:"Log format: console or json." placeholder:"FORMAT"`
	Version   kong.VersionFlag `help:"Print version and exit."`
}

func main() {
	os.Exit(run())
}

func run() int {
	var flags cli
	kong.Parse(&flags,
		kong.Name("plexmap"),
		kong.Description("Map the geographic origins of Plex playback sessions recorded by Tautulli."),
		kong.Vars{"version": version},
	)

	cfg, err := config.Load(flags.Config)
	if err != nil {
		logging.Err(err).Msg("Failed to load configuration")
		return 1
	}
	applyFlags(cfg, &flags)

	logging.Init(logging.Config{
		Level:  cfg.Logging.Level,
		Format: cfg.Logging.Format,
		Caller: cfg.Logging.Caller,
	})

	if err := cfg.Validate(); err != nil {
		logging.Err(err).Msg("Invalid configuration")
		return 1
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	client := tautulli.NewClient(&cfg.Tautulli)
	if err := client.Ping(ctx); err != nil {
		logging.Err(err).Str("url", cfg.Tautulli.URL).Msg("Tautulli is unreachable")
		return 1
	}

	sink := progress.NewLogSink()

	records, err := client.FetchHistory(ctx, cfg.Tautulli.RecordLimit, sink)
	if err != nil {
		if len(records) == 0 {
			logging.Err(err).Msg("Failed to fetch history")
			return 1
		}
		logging.Warn().Err(err).Int("records", len(records)).Msg("History fetch incomplete, continuing with partial data")
	}
	if len(records) == 0 {
		logging.Info().Msg("No playback history found, nothing to map")
		return 0
	}
	logging.Info().Int("records", len(records)).Msg("History fetched")

	counts := pipeline.AggregateIPs(records)
	logging.Info().Int("distinct_ips", counts.Len()).Msg("Aggregated plays per IP")

	cache, err := geo.LoadCache(cfg.Cache.Path)
	if err != nil {
		logging.Warn().Err(err).Str("path", cfg.Cache.Path).Msg("Cache unusable, starting with an empty cache")
		cache = geo.NewCache(cfg.Cache.Path)
	}
	logging.Debug().Int("cached_ips", cache.Len()).Msg("Geolocation cache loaded")

	provider := geo.NewIPAPIProvider(&cfg.GeoIP)
	resolver := geo.NewResolver(cache, provider, cfg.GeoIP.RateInterval, cfg.Cache.FlushEvery)

	locations, buildErr := pipeline.BuildLocations(ctx, counts, resolver, sink)

	// Persist whatever resolved, even on interrupt; next run starts warm.
	if cache.Dirty() > 0 {
		if err := cache.Flush(); err != nil {
			logging.Warn().Err(err).Msg("Final cache flush failed")
		}
	}

	if buildErr != nil {
		if errors.Is(buildErr, context.Canceled) {
			logging.Warn().Msg("Interrupted, geolocation results saved to cache")
			return 1
		}
		logging.Warn().Err(buildErr).Msg("Geolocation pass incomplete")
	}

	if len(locations) == 0 {
		logging.Info().Msg("No geolocatable IPs found, nothing to render")
		return 0
	}

	groups := pipeline.GroupByCoordinate(locations)

	if err := render.WriteMap(cfg.Output.Path, locations, groups); err != nil {
		logging.Err(err).Str("path", cfg.Output.Path).Msg("Failed to write map")
		return 1
	}

	logging.Info().
		Str("path", cfg.Output.Path).
		Int("locations", len(locations)).
		Int("markers", len(groups)).
		Msg("Map written")
	return 0
}

// applyFlags overlays explicitly given command-line flags on the merged
// configuration. Flags are the highest-priority source.
func applyFlags(cfg *config.Config, flags *cli) {
	if flags.URL != "" {
		cfg.Tautulli.URL = flags.URL
	}
	if flags.APIKey != "" {
		cfg.Tautulli.APIKey = flags.APIKey
	}
	if flags.Limit >= 0 {
		cfg.Tautulli.RecordLimit = flags.Limit
	}
	if flags.Output != "" {
		cfg.Output.Path = flags.Output
	}
	if flags.Cache != "" {
		cfg.Cache.Path = flags.Cache
	}
	if flags.LogLevel != "" {
		cfg.Logging.Level = flags.LogLevel
	}
	if flags.LogFormat != "" {
		cfg.Logging.Format = flags.LogFormat
	}
}
