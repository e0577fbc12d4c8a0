// Plexmap - Tautulli Playback Origin Mapper
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/plexmap

// Package progress decouples pipeline progress reporting from its
// presentation. The pipeline publishes events; sinks decide whether they
// become log lines, a console bar, or nothing.
package progress

import "github.com/tomtom215/plexmap/internal/logging"

// Stage identifies which phase of the pipeline an event belongs to.
type Stage string

const (
	StageHistory   Stage = "history"
	StageGeolocate Stage = "geolocate"
)

// Event describes pipeline progress at a point in time. Total is -1 when
// the source does not report one; it is display-only and never drives
// pipeline decisions.
type Event struct {
	Stage Stage
	Done  int
	Total int
}

// Sink consumes progress events.
type Sink interface {
	Publish(Event)
}

type nopSink struct{}

func (nopSink) Publish(Event) {}

// Nop returns a sink that discards all events.
func Nop() Sink {
	return nopSink{}
}

// LogSink renders progress events as structured log lines. History-fetch
// progress arrives once per page and is logged at info; geolocation
// progress arrives once per IP and is logged at debug to keep the default
// output quiet.
type LogSink struct{}

// NewLogSink returns a sink that logs through the global logger.
func NewLogSink() *LogSink {
	return &LogSink{}
}

// Publish implements Sink.
func (*LogSink) Publish(ev Event) {
	e := logging.Debug()
	if ev.Stage == StageHistory {
		e = logging.Info()
	}
	e = e.Str("stage", string(ev.Stage)).Int("done", ev.Done)
	if ev.Total >= 0 {
		e = e.Int("total", ev.Total)
	}
	e.Msg("Progress")
}
