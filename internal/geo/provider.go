// Plexmap - Tautulli Playback Origin Mapper
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/plexmap

package geo

import (
	"context"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/goccy/go-json"

	"github.com/tomtom215/plexmap/internal/config"
)

// Geolocation is a successful provider lookup: the coordinate plus the
// city/country context logged for each fresh resolution.
type Geolocation struct {
	IP      string
	Coord   Coordinate
	City    string
	Country string
}

// Provider is a geolocation lookup service.
type Provider interface {
	// Lookup returns geolocation data for the given IP address.
	// Returns nil and an error if the lookup fails or the IP is invalid.
	Lookup(ctx context.Context, ipAddress string) (*Geolocation, error)

	// Name returns the provider name for logging.
	Name() string
}

// IPAPIProvider implements Provider using the free ip-api.com service.
// No API key is required; the free tier allows 45 requests per minute,
// which the Resolver's rate limiter stays under.
type IPAPIProvider struct {
	client  *http.Client
	baseURL string
}

// ipAPIResponse represents the JSON response from ip-api.com.
type ipAPIResponse struct {
	Status  string  `json:"status"`  // "success" or "fail"
	Message string  `json:"message"` // error detail when status is "fail"
	Country string  `json:"country"`
	City    string  `json:"city"`
	Lat     float64 `json:"lat"`
	Lon     float64 `json:"lon"`
	Query   string  `json:"query"`
}

// NewIPAPIProvider creates an ip-api.com provider from configuration.
func NewIPAPIProvider(cfg *config.GeoIPConfig) *IPAPIProvider {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &IPAPIProvider{
		client:  &http.Client{Timeout: timeout},
		baseURL: cfg.BaseURL,
	}
}

// Name returns the provider name.
func (p *IPAPIProvider) Name() string {
	return "ip-api.com"
}

// Lookup queries ip-api.com for geolocation data.
func (p *IPAPIProvider) Lookup(ctx context.Context, ipAddress string) (*Geolocation, error) {
	if ip := net.ParseIP(ipAddress); ip == nil {
		return nil, fmt.Errorf("invalid IP address: %s", ipAddress)
	}

	// The fields parameter trims the response to what we consume.
	url := fmt.Sprintf("%s/%s?fields=status,message,country,city,lat,lon,query", p.baseURL, ipAddress)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, http.NoBody)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	resp, err := p.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to query ip-api.com: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("ip-api.com returned status %d", resp.StatusCode)
	}

	var result ipAPIResponse
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return nil, fmt.Errorf("failed to decode ip-api.com response: %w", err)
	}

	if result.Status != "success" {
		return nil, fmt.Errorf("ip-api.com lookup failed: %s", result.Message)
	}

	return &Geolocation{
		IP:      ipAddress,
		Coord:   Coordinate{Lat: result.Lat, Lon: result.Lon},
		City:    result.City,
		Country: result.Country,
	}, nil
}
