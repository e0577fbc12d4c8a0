// Plexmap - Tautulli Playback Origin Mapper
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/plexmap

package geo

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/tomtom215/plexmap/internal/config"
)

func newTestProvider(baseURL string) *IPAPIProvider {
	return NewIPAPIProvider(&config.GeoIPConfig{
		BaseURL: baseURL,
		Timeout: 5 * time.Second,
	})
}

func TestIPAPIProviderLookup(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !strings.HasSuffix(r.URL.Path, "/8.8.8.8") {
			t.Errorf("request path = %s, expected suffix /8.8.8.8", r.URL.Path)
		}
		if fields := r.URL.Query().Get("fields"); !strings.Contains(fields, "lat") {
			t.Errorf("fields = %q, expected lat requested", fields)
		}
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"status":"success","country":"United States","city":"Mountain View","lat":37.386,"lon":-122.0838,"query":"8.8.8.8"}`))
	}))
	defer server.Close()

	p := newTestProvider(server.URL)
	loc, err := p.Lookup(context.Background(), "8.8.8.8")
	if err != nil {
		t.Fatalf("Lookup() error = %v", err)
	}
	if loc.Coord.Lat != 37.386 || loc.Coord.Lon != -122.0838 {
		t.Errorf("Coord = %+v, expected lat 37.386 lon -122.0838", loc.Coord)
	}
	if loc.City != "Mountain View" || loc.Country != "United States" {
		t.Errorf("City/Country = %q/%q, expected Mountain View/United States", loc.City, loc.Country)
	}
}

func TestIPAPIProviderLookupFailStatus(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"status":"fail","message":"reserved range","query":"203.0.113.7"}`))
	}))
	defer server.Close()

	p := newTestProvider(server.URL)
	if _, err := p.Lookup(context.Background(), "203.0.113.7"); err == nil {
		t.Fatal("Lookup() expected error for fail status, got nil")
	} else if !strings.Contains(err.Error(), "reserved range") {
		t.Errorf("error = %v, expected provider message included", err)
	}
}

func TestIPAPIProviderLookupHTTPError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
	}))
	defer server.Close()

	p := newTestProvider(server.URL)
	if _, err := p.Lookup(context.Background(), "8.8.8.8"); err == nil {
		t.Fatal("Lookup() expected error for HTTP 429, got nil")
	}
}

func TestIPAPIProviderLookupInvalidIP(t *testing.T) {
	p := newTestProvider("http://ip-api.example")
	if _, err := p.Lookup(context.Background(), "not-an-ip"); err == nil {
		t.Fatal("Lookup() expected error for invalid IP, got nil")
	}
}
