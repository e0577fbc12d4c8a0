// Plexmap - Tautulli Playback Origin Mapper
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/plexmap

package geo

import "testing"

func TestIsPrivateIP(t *testing.T) {
	tests := []struct {
		name     string
		ip       string
		expected bool
	}{
		// RFC 1918 ranges
		{"10.0.0.0/8 start", "10.0.0.1", true},
		{"10.0.0.0/8 middle", "10.100.50.25", true},
		{"10.0.0.0/8 end", "10.255.255.255", true},
		{"192.168.0.0/16 start", "192.168.0.1", true},
		{"192.168.0.0/16 sample", "192.168.1.50", true},
		{"192.168.0.0/16 end", "192.168.255.255", true},

		// 172.16.0.0/12 block boundaries: a naive string-prefix check gets
		// these wrong (e.g. treating 172.20.x or 172.32.x by prefix).
		{"just below 172.16/12", "172.15.255.255", false},
		{"172.16/12 first", "172.16.0.0", true},
		{"172.16/12 start", "172.16.0.1", true},
		{"172.16/12 middle", "172.20.0.1", true},
		{"172.16/12 last", "172.31.255.255", true},
		{"just above 172.16/12", "172.32.0.0", false},
		{"well above 172.16/12", "172.200.1.1", false},

		// Loopback and link-local
		{"loopback", "127.0.0.1", true},
		{"loopback high", "127.100.50.25", true},
		{"link-local", "169.254.0.1", true},

		// IPv6 private/local
		{"IPv6 loopback", "::1", true},
		{"IPv6 link-local", "fe80::1", true},
		{"IPv6 unique local", "fd00::1234", true},

		// Public addresses
		{"public 8.8.8.8", "8.8.8.8", false},
		{"public 1.1.1.1", "1.1.1.1", false},
		{"public 93.184.216.34", "93.184.216.34", false},
		{"public IPv6", "2001:4860:4860::8888", false},

		// Garbage
		{"invalid", "not-an-ip", false},
		{"empty", "", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := IsPrivateIP(tt.ip); got != tt.expected {
				t.Errorf("IsPrivateIP(%q) = %v, expected %v", tt.ip, got, tt.expected)
			}
		})
	}
}

func TestNormalizeIPAddress(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		expected string
	}{
		{"IPv4 plain", "8.8.8.8", "8.8.8.8"},
		{"IPv4 with port", "192.168.1.1:32400", "192.168.1.1"},
		{"IPv6 plain", "2001:4860:4860::8888", "2001:4860:4860::8888"},
		{"IPv6 bracketed", "[::1]", "::1"},
		{"IPv6 bracketed with port", "[2001:4860:4860::8888]:32400", "2001:4860:4860::8888"},
		{"empty", "", ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := NormalizeIPAddress(tt.input); got != tt.expected {
				t.Errorf("NormalizeIPAddress(%q) = %q, expected %q", tt.input, got, tt.expected)
			}
		})
	}
}
