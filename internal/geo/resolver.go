// Plexmap - Tautulli Playback Origin Mapper
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/plexmap

package geo

import (
	"context"
	"fmt"
	"time"

	"golang.org/x/time/rate"

	"github.com/tomtom215/plexmap/internal/logging"
)

// Resolver resolves IPs to coordinates: private ranges short-circuit to
// absent, cache hits return immediately, and only genuine misses go to the
// provider, paced by a fixed-interval rate limiter.
//
// The cache is flushed after every flushEvery cache-mutating resolutions.
// Cache hits never trigger disk writes; a long run of hits costs nothing.
// Callers must issue a final Cache.Flush() after the batch.
type Resolver struct {
	cache      *Cache
	provider   Provider
	limiter    *rate.Limiter
	flushEvery int
}

// NewResolver creates a resolver over the given cache and provider.
// interval is the minimum gap between provider calls (0 disables pacing,
// for tests); flushEvery is the cache-mutation flush cadence.
func NewResolver(cache *Cache, provider Provider, interval time.Duration, flushEvery int) *Resolver {
	limiter := rate.NewLimiter(rate.Inf, 1)
	if interval > 0 {
		limiter = rate.NewLimiter(rate.Every(interval), 1)
	}
	return &Resolver{
		cache:      cache,
		provider:   provider,
		limiter:    limiter,
		flushEvery: flushEvery,
	}
}

// Resolve returns the coordinate for ip, or nil when the address has no
// usable location: private/reserved ranges resolve to nil immediately
// (no rate-limit delay, no cache entry), and provider failures return nil
// with the error. Failures are never cached, so a transient failure is
// retried on the next run.
func (r *Resolver) Resolve(ctx context.Context, ip string) (*Coordinate, error) {
	ip = NormalizeIPAddress(ip)

	if IsPrivateIP(ip) {
		logging.Debug().Str("ip", ip).Msg("IP is private/LAN, skipping geolocation")
		return nil, nil
	}

	if coord, ok := r.cache.Lookup(ip); ok {
		return &coord, nil
	}

	// Pace the external call to stay under the provider's free-tier quota.
	if err := r.limiter.Wait(ctx); err != nil {
		return nil, err
	}

	loc, err := r.provider.Lookup(ctx, ip)
	if err != nil {
		return nil, fmt.Errorf("%s lookup failed: %w", r.provider.Name(), err)
	}

	r.cache.Store(ip, loc.Coord)
	logging.Info().Str("ip", ip).Str("city", loc.City).Str("country", loc.Country).Msg("Geolocated new IP")

	if r.cache.Dirty() >= r.flushEvery {
		if err := r.cache.Flush(); err != nil {
			logging.Warn().Err(err).Msg("Periodic cache flush failed")
		}
	}

	coord := loc.Coord
	return &coord, nil
}
