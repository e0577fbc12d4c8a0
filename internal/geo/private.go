// Plexmap - Tautulli Playback Origin Mapper
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/plexmap

// Package geo resolves IP addresses to coordinates through an external
// geolocation provider, backed by a durable JSON cache and a fixed-interval
// rate limit.
package geo

import (
	"net"
	"strings"
)

// privateCIDRs lists the address blocks that are never sent to a public
// geolocation service: RFC 1918, loopback, link-local, and their IPv6
// equivalents. Containment checks use proper CIDR parsing; prefix string
// matching misclassifies addresses like 172.32.0.1.
var privateCIDRs = mustParseCIDRs(
	"10.0.0.0/8",
	"172.16.0.0/12",
	"192.168.0.0/16",
	"127.0.0.0/8",
	"169.254.0.0/16",
	"::1/128",   // IPv6 loopback
	"fc00::/7",  // IPv6 unique local
	"fe80::/10", // IPv6 link-local
)

func mustParseCIDRs(cidrs ...string) []*net.IPNet {
	nets := make([]*net.IPNet, 0, len(cidrs))
	for _, cidr := range cidrs {
		_, network, err := net.ParseCIDR(cidr)
		if err != nil {
			panic("geo: invalid built-in CIDR " + cidr)
		}
		nets = append(nets, network)
	}
	return nets
}

// IsPrivateIP reports whether the address is in a private/local range.
// Private IPs cannot be geolocated and are handled without network calls.
// Unparseable addresses report false; the provider rejects them later.
func IsPrivateIP(ipStr string) bool {
	ip := net.ParseIP(ipStr)
	if ip == nil {
		return false
	}

	for _, network := range privateCIDRs {
		if network.Contains(ip) {
			return true
		}
	}
	return false
}

// NormalizeIPAddress strips a port from an IP address if present.
// Tautulli occasionally reports client addresses as host:port.
func NormalizeIPAddress(ipAddr string) string {
	if strings.HasPrefix(ipAddr, "[") {
		// IPv6 with port: [::1]:32400 -> ::1
		if idx := strings.LastIndex(ipAddr, "]:"); idx != -1 {
			return ipAddr[1:idx]
		}
		return strings.Trim(ipAddr, "[]")
	}

	// IPv4 with port: 192.168.1.1:32400 -> 192.168.1.1.
	// Only strip when it looks like host:port; bare IPv6 has more colons.
	if strings.Count(ipAddr, ":") == 1 {
		if idx := strings.LastIndex(ipAddr, ":"); idx != -1 {
			return ipAddr[:idx]
		}
	}

	return ipAddr
}
