// Plexmap - Tautulli Playback Origin Mapper
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/plexmap

// Package tautulli defines the wire types for Tautulli API v2 responses.
package tautulli

// History represents the API response from Tautulli's get_history endpoint.
// Every Tautulli response shares the same envelope: a "response" wrapper
// with a "result" status ("success" or "error"), an optional message, and
// the payload under "data".
type History struct {
	Response HistoryResponse `json:"response"`
}

type HistoryResponse struct {
	Result  string      `json:"result"`
	Message *string     `json:"message,omitempty"`
	Data    HistoryData `json:"data"`
}

// HistoryData carries one page of history records plus the table totals.
// RecordsFiltered is the total matching the current filter and is the
// closest thing to a full record count Tautulli exposes; treat it as a
// display hint, not a pagination terminator.
type HistoryData struct {
	RecordsFiltered int             `json:"recordsFiltered"`
	RecordsTotal    int             `json:"recordsTotal"`
	Data            []HistoryRecord `json:"data"`
}

// HistoryRecord is a single playback history record. Tautulli returns far
// more fields than these; only the ones plexmap consumes or logs are
// declared, the rest are dropped during decoding.
//
// Note: IPAddressPublic is preferred over IPAddress when present, since
// relayed connections report the relay address in ip_address.
type HistoryRecord struct {
	Date    int64 `json:"date"`
	Started int64 `json:"started"`
	Stopped int64 `json:"stopped"`

	User         string `json:"user"`
	FriendlyName string `json:"friendly_name"`

	IPAddress       string `json:"ip_address"`
	IPAddressPublic string `json:"ip_address_public"`

	MediaType string `json:"media_type"`
	Title     string `json:"title"`
	FullTitle string `json:"full_title"`

	Platform string `json:"platform"`
	Player   string `json:"player"`
	Location string `json:"location"` // lan or wan, as reported by Plex
}

// ClientIP returns the best available client address for geolocation:
// the public address when Tautulli reports one, the raw address otherwise.
func (r *HistoryRecord) ClientIP() string {
	if r.IPAddressPublic != "" {
		return r.IPAddressPublic
	}
	return r.IPAddress
}
