// Plexmap - Tautulli Playback Origin Mapper
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/plexmap

package pipeline

import (
	"context"

	"github.com/tomtom215/plexmap/internal/geo"
	"github.com/tomtom215/plexmap/internal/logging"
	"github.com/tomtom215/plexmap/internal/progress"
)

// Resolver resolves an IP address to a coordinate. A nil coordinate with
// a nil error means the address has no mappable location (private/LAN).
type Resolver interface {
	Resolve(ctx context.Context, ip string) (*geo.Coordinate, error)
}

// Location is a geolocated IP with its play weight.
type Location struct {
	IP     string
	Coord  geo.Coordinate
	Weight int
}

// LocationGroup merges all IPs that resolved to the exact same coordinate.
// Geolocation providers place many IPs at a city centroid, so exact
// equality is a meaningful grouping, not a coincidence.
type LocationGroup struct {
	Coord       geo.Coordinate
	TotalWeight int
	IPs         []string
}

// BuildLocations resolves every aggregated IP to a coordinate, in
// first-seen order. Private IPs and failed lookups are skipped with a
// log entry; one bad address never aborts the batch. Context
// cancellation stops the walk and returns what resolved so far.
func BuildLocations(ctx context.Context, counts *IPCounts, resolver Resolver, sink progress.Sink) ([]Location, error) {
	if sink == nil {
		sink = progress.Nop()
	}

	ips := counts.IPs()
	locations := make([]Location, 0, len(ips))

	for i, ip := range ips {
		if ctx.Err() != nil {
			return locations, ctx.Err()
		}

		coord, err := resolver.Resolve(ctx, ip)
		if err != nil {
			if ctx.Err() != nil {
				return locations, ctx.Err()
			}
			logging.Warn().Err(err).Str("ip", ip).Msg("Geolocation failed, skipping IP")
			continue
		}
		if coord == nil {
			continue
		}

		locations = append(locations, Location{
			IP:     ip,
			Coord:  *coord,
			Weight: counts.Count(ip),
		})
		sink.Publish(progress.Event{Stage: progress.StageGeolocate, Done: i + 1, Total: len(ips)})
	}

	return locations, nil
}

// GroupByCoordinate merges locations sharing an exact coordinate into
// groups, keeping the first-seen order of coordinates. Weights add up;
// every member IP is retained for the popup listing.
func GroupByCoordinate(locations []Location) []LocationGroup {
	index := make(map[geo.Coordinate]int)
	groups := make([]LocationGroup, 0, len(locations))

	for _, loc := range locations {
		if i, ok := index[loc.Coord]; ok {
			groups[i].TotalWeight += loc.Weight
			groups[i].IPs = append(groups[i].IPs, loc.IP)
			continue
		}
		index[loc.Coord] = len(groups)
		groups = append(groups, LocationGroup{
			Coord:       loc.Coord,
			TotalWeight: loc.Weight,
			IPs:         []string{loc.IP},
		})
	}
	return groups
}
