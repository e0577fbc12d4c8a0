// Plexmap - Tautulli Playback Origin Mapper
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/plexmap

package geo

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/goccy/go-json"
)

// Coordinate is a resolved geographic position.
type Coordinate struct {
	Lat float64
	Lon float64
}

// Cache is the durable IP -> coordinate mapping. On disk it is a JSON
// object mapping IP strings to [lat, lon] pairs, the format the original
// cache files already use, so existing caches keep working.
//
// Entries are append-only across runs: once an IP resolves, it is never
// re-queried. Failed and private lookups are never stored.
//
// Not safe for concurrent use; the pipeline is strictly sequential.
type Cache struct {
	path    string
	entries map[string]Coordinate
	dirty   int // mutations since last successful flush
}

// NewCache returns an empty cache that will persist to path.
func NewCache(path string) *Cache {
	return &Cache{
		path:    path,
		entries: make(map[string]Coordinate),
	}
}

// LoadCache reads the persisted cache from path. A missing file yields an
// empty cache, not an error; a present-but-unreadable file is an error so
// the caller can decide whether to proceed without the cache.
func LoadCache(path string) (*Cache, error) {
	c := NewCache(path)

	raw, err := os.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		return c, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read cache file %s: %w", path, err)
	}

	var stored map[string][2]float64
	if err := json.Unmarshal(raw, &stored); err != nil {
		return nil, fmt.Errorf("failed to parse cache file %s: %w", path, err)
	}

	for ip, ll := range stored {
		c.entries[ip] = Coordinate{Lat: ll[0], Lon: ll[1]}
	}
	return c, nil
}

// Lookup returns the cached coordinate for ip, if present.
func (c *Cache) Lookup(ip string) (Coordinate, bool) {
	coord, ok := c.entries[ip]
	return coord, ok
}

// Store records a resolved coordinate in memory. Persistence happens on
// the next Flush.
func (c *Cache) Store(ip string, coord Coordinate) {
	if existing, ok := c.entries[ip]; ok && existing == coord {
		return
	}
	c.entries[ip] = coord
	c.dirty++
}

// Len returns the number of cached entries.
func (c *Cache) Len() int {
	return len(c.entries)
}

// Dirty returns the number of mutations since the last successful flush.
func (c *Cache) Dirty() int {
	return c.dirty
}

// Flush durably persists the full cache contents, replacing the previous
// file. The write goes to a temp file in the same directory followed by a
// rename, so a crash mid-flush never corrupts the existing cache.
func (c *Cache) Flush() error {
	stored := make(map[string][2]float64, len(c.entries))
	for ip, coord := range c.entries {
		stored[ip] = [2]float64{coord.Lat, coord.Lon}
	}

	data, err := json.Marshal(stored)
	if err != nil {
		return fmt.Errorf("failed to encode cache: %w", err)
	}

	dir := filepath.Dir(c.path)
	tmp, err := os.CreateTemp(dir, ".ip_location_cache-*")
	if err != nil {
		return fmt.Errorf("failed to create temp cache file: %w", err)
	}
	tmpName := tmp.Name()

	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()
		_ = os.Remove(tmpName)
		return fmt.Errorf("failed to write temp cache file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		_ = os.Remove(tmpName)
		return fmt.Errorf("failed to close temp cache file: %w", err)
	}

	if err := os.Rename(tmpName, c.path); err != nil {
		_ = os.Remove(tmpName)
		return fmt.Errorf("failed to replace cache file: %w", err)
	}

	c.dirty = 0
	return nil
}
