// Command shp2fields converts a field boundary shapefile into the GeoJSON
// FeatureCollection format the tracker loads at startup. Only polygon shapes
// are carried over; the id and name properties are taken from the named
// attribute columns when present.
package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"os"
	"strings"

	"github.com/google/uuid"
	"github.com/jonas-p/go-shp"
	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geojson"
)

func main() {
	inputPath := flag.String("input", "", "Path to input .shp file")
	outputPath := flag.String("output", "", "Path to output .geojson file")
	idAttr := flag.String("id-attr", "ID", "Attribute column holding the field id")
	nameAttr := flag.String("name-attr", "NAME", "Attribute column holding the field name")
	flag.Parse()

	if *inputPath == "" || *outputPath == "" {
		flag.Usage()
		log.Fatal("Input and output paths are required")
	}

	if err := run(*inputPath, *outputPath, *idAttr, *nameAttr); err != nil {
		log.Fatal(err)
	}
}

func run(inputPath, outputPath, idAttr, nameAttr string) error {
	shape, err := shp.Open(inputPath)
	if err != nil {
		return fmt.Errorf("failed to open shapefile: %w", err)
	}
	defer shape.Close()

	fields := shape.Fields()
	idCol, nameCol := -1, -1
	for i, f := range fields {
		switch strings.ToUpper(f.String()) {
		case strings.ToUpper(idAttr):
			idCol = i
		case strings.ToUpper(nameAttr):
			nameCol = i
		}
	}

	fc := geojson.NewFeatureCollection()
	skipped := 0

	for shape.Next() {
		n, p := shape.Shape()

		poly, ok := p.(*shp.Polygon)
		if !ok {
			skipped++
			continue
		}

		f := geojson.NewFeature(convertPolygon(poly))

		if idCol >= 0 {
			f.Properties["id"] = strings.TrimSpace(shape.ReadAttribute(n, idCol))
		}
		if id, _ := f.Properties["id"].(string); id == "" {
			f.Properties["id"] = uuid.New().String()
		}
		if nameCol >= 0 {
			f.Properties["name"] = strings.TrimSpace(shape.ReadAttribute(n, nameCol))
		}

		fc.Append(f)
	}

	if err := shape.Err(); err != nil {
		return fmt.Errorf("error iterating shapes: %w", err)
	}

	data, err := json.MarshalIndent(fc, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal GeoJSON: %w", err)
	}

	if err := os.WriteFile(outputPath, data, 0o644); err != nil {
		return fmt.Errorf("failed to write output file: %w", err)
	}

	fmt.Printf("Converted %d field boundaries to %s", len(fc.Features), outputPath)
	if skipped > 0 {
		fmt.Printf(" (%d non-polygon shapes skipped)", skipped)
	}
	fmt.Println()
	return nil
}

func convertPolygon(s *shp.Polygon) orb.Polygon {
	// All parts become rings of a single polygon; ring 0 is the outer
	// boundary, the rest are holes.
	var poly orb.Polygon

	for i := 0; i < int(s.NumParts); i++ {
		start := s.Parts[i]
		end := s.NumPoints
		if i < int(s.NumParts)-1 {
			end = s.Parts[i+1]
		}

		var ring orb.Ring
		for j := start; j < end; j++ {
			ring = append(ring, orb.Point{s.Points[j].X, s.Points[j].Y})
		}
		poly = append(poly, ring)
	}
	return poly
}
