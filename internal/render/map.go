// Plexmap - Tautulli Playback Origin Mapper
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/plexmap

// Package render writes the final self-contained HTML map: a heat layer
// weighted by play counts plus clustered markers with per-location popups.
package render

import (
	"fmt"
	"html/template"
	"os"
	"strings"

	"github.com/goccy/go-json"
	geojson "github.com/paulmach/go.geojson"

	"github.com/tomtom215/plexmap/internal/pipeline"
)

// maxPopupIPs caps how many member IPs a marker popup lists before
// truncating with an ellipsis.
const maxPopupIPs = 3

// mapData is the template payload. HeatJSON and MarkersJSON are
// pre-marshalled so the template embeds them as JavaScript literals.
type mapData struct {
	Title       string
	CenterLat   float64
	CenterLon   float64
	Zoom        int
	HeatJSON    template.JS
	MarkersJSON template.JS
}

// heatPoints converts locations into the [lat, lon, weight] triples
// leaflet.heat consumes. Every geolocated IP contributes its own point;
// coincident points stack, which is exactly what a heat layer wants.
func heatPoints(locations []pipeline.Location) [][3]float64 {
	points := make([][3]float64, 0, len(locations))
	for _, loc := range locations {
		points = append(points, [3]float64{loc.Coord.Lat, loc.Coord.Lon, float64(loc.Weight)})
	}
	return points
}

// markerFeatures builds a GeoJSON FeatureCollection with one point per
// coordinate group. GeoJSON positions are [lon, lat].
func markerFeatures(groups []pipeline.LocationGroup) *geojson.FeatureCollection {
	fc := geojson.NewFeatureCollection()
	for _, g := range groups {
		f := geojson.NewPointFeature([]float64{g.Coord.Lon, g.Coord.Lat})
		f.SetProperty("plays", g.TotalWeight)
		f.SetProperty("popup", popupHTML(g))
		fc.AddFeature(f)
	}
	return fc
}

// popupHTML renders the marker popup body: the combined play count and
// up to maxPopupIPs member IPs.
func popupHTML(g pipeline.LocationGroup) string {
	ips := g.IPs
	truncated := false
	if len(ips) > maxPopupIPs {
		ips = ips[:maxPopupIPs]
		truncated = true
	}

	var b strings.Builder
	fmt.Fprintf(&b, "<b>Plays:</b> %d<br><b>IPs:</b> %s", g.TotalWeight, strings.Join(ips, ", "))
	if truncated {
		b.WriteString(", ...")
	}
	return b.String()
}

// WriteMap renders the interactive map for the given locations and
// coordinate groups and writes it to path. The caller guarantees at
// least one location; the map centers on the first.
func WriteMap(path string, locations []pipeline.Location, groups []pipeline.LocationGroup) error {
	heat, err := json.Marshal(heatPoints(locations))
	if err != nil {
		return fmt.Errorf("failed to encode heat data: %w", err)
	}

	markers, err := json.Marshal(markerFeatures(groups))
	if err != nil {
		return fmt.Errorf("failed to encode marker data: %w", err)
	}

	data := mapData{
		Title:       "Plex Playback Origins",
		CenterLat:   locations[0].Coord.Lat,
		CenterLon:   locations[0].Coord.Lon,
		Zoom:        3,
		HeatJSON:    template.JS(heat),
		MarkersJSON: template.JS(markers),
	}

	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create output file %s: %w", path, err)
	}

	if err := mapTemplate.Execute(f, data); err != nil {
		_ = f.Close()
		_ = os.Remove(path)
		return fmt.Errorf("failed to render map: %w", err)
	}
	if err := f.Close(); err != nil {
		return fmt.Errorf("failed to write output file %s: %w", path, err)
	}
	return nil
}

var mapTemplate = template.Must(template.New("map").Parse(`<!DOCTYPE html>
<html>
<head>
<meta charset="utf-8">
<meta name="viewport" content="width=device-width, initial-scale=1.0">
<title>{{.Title}}</title>
<link rel="stylesheet" href="https://unpkg.com/leaflet@1.9.4/dist/leaflet.css">
<link rel="stylesheet" href="https://unpkg.com/leaflet.markercluster@1.5.3/dist/MarkerCluster.css">
<link rel="stylesheet" href="https://unpkg.com/leaflet.markercluster@1.5.3/dist/MarkerCluster.Default.css">
<script src="https://unpkg.com/leaflet@1.9.4/dist/leaflet.js"></script>
<script src="https://unpkg.com/leaflet.heat@0.2.0/dist/leaflet-heat.js"></script>
<script src="https://unpkg.com/leaflet.markercluster@1.5.3/dist/leaflet.markercluster.js"></script>
<style>
html, body { margin: 0; height: 100%; }
#map { height: 100%; }
</style>
</head>
<body>
<div id="map"></div>
<script>
var map = L.map('map').setView([{{.CenterLat}}, {{.CenterLon}}], {{.Zoom}});

L.tileLayer('https://tile.openstreetmap.org/{z}/{x}/{y}.png', {
	maxZoom: 19,
	attribution: '&copy; <a href="https://www.openstreetmap.org/copyright">OpenStreetMap</a> contributors'
}).addTo(map);

var heatData = {{.HeatJSON}};
L.heatLayer(heatData, {radius: 25, blur: 15, maxZoom: 1}).addTo(map);

var markerData = {{.MarkersJSON}};
var clusters = L.markerClusterGroup();
L.geoJSON(markerData, {
	onEachFeature: function (feature, layer) {
		layer.bindPopup(feature.properties.popup);
	}
}).eachLayer(function (layer) {
	clusters.addLayer(layer);
});
map.addLayer(clusters);
</script>
</body>
</html>
`))
