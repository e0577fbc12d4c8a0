// Plexmap - Tautulli Playback Origin Mapper
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/plexmap

// Package pipeline turns raw playback history into weighted, geolocated
// map inputs: count plays per client IP, resolve each distinct IP once,
// and group resolutions that share an exact coordinate.
package pipeline

import (
	models "github.com/tomtom215/plexmap/internal/models/tautulli"
)

// IPCounts is a play count per client IP, preserving the order in which
// each IP was first seen in the history. Deterministic order keeps the
// rendered output and the resolver's request sequence stable across runs.
type IPCounts struct {
	counts map[string]int
	order  []string
}

// AggregateIPs tallies plays per client IP across the history records.
// Records with no usable IP address are skipped; every other record
// counts as one play regardless of duration or media type.
func AggregateIPs(records []models.HistoryRecord) *IPCounts {
	agg := &IPCounts{counts: make(map[string]int)}
	for _, rec := range records {
		ip := rec.ClientIP()
		if ip == "" {
			continue
		}
		if _, seen := agg.counts[ip]; !seen {
			agg.order = append(agg.order, ip)
		}
		agg.counts[ip]++
	}
	return agg
}

// Count returns the play count for ip, zero if unseen.
func (a *IPCounts) Count(ip string) int {
	return a.counts[ip]
}

// IPs returns the distinct IPs in first-seen order.
func (a *IPCounts) IPs() []string {
	return a.order
}

// Len returns the number of distinct IPs.
func (a *IPCounts) Len() int {
	return len(a.order)
}
