// Package field loads externally managed field boundaries and detects when
// the tracked position crosses into a different field.
package field

import (
	"fmt"
	"os"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geojson"

	"swathtrack/pkg/geo"
	"swathtrack/pkg/model"
)

// LoadFields reads a GeoJSON FeatureCollection of field boundaries from disk.
func LoadFields(path string) ([]model.Field, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read fields file: %w", err)
	}
	return ParseFields(data)
}

// ParseFields decodes field boundaries from GeoJSON. Coordinates arrive in
// GeoJSON [lng,lat] order and are converted to [lat,lng] points here, once,
// so the geometry code never sees GeoJSON ordering. Features without a
// usable polygon geometry are skipped.
func ParseFields(data []byte) ([]model.Field, error) {
	fc, err := geojson.UnmarshalFeatureCollection(data)
	if err != nil {
		return nil, fmt.Errorf("failed to parse fields geojson: %w", err)
	}

	fields := make([]model.Field, 0, len(fc.Features))
	for _, f := range fc.Features {
		var polys [][][]geo.Point
		switch g := f.Geometry.(type) {
		case orb.Polygon:
			polys = append(polys, convertPolygon(g))
		case orb.MultiPolygon:
			for _, poly := range g {
				polys = append(polys, convertPolygon(poly))
			}
		default:
			continue
		}

		fields = append(fields, model.Field{
			ID:       stringProp(f, "id"),
			Name:     stringProp(f, "name"),
			Polygons: polys,
		})
	}

	return fields, nil
}

func convertPolygon(poly orb.Polygon) [][]geo.Point {
	rings := make([][]geo.Point, 0, len(poly))
	for _, ring := range poly {
		pts := make([]geo.Point, 0, len(ring))
		for _, p := range ring {
			pts = append(pts, geo.Point{Lat: p[1], Lon: p[0]})
		}
		rings = append(rings, pts)
	}
	return rings
}

func stringProp(f *geojson.Feature, key string) string {
	if v, ok := f.Properties[key].(string); ok {
		return v
	}
	if f.ID != nil && key == "id" {
		return fmt.Sprintf("%v", f.ID)
	}
	return ""
}
