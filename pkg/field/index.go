package field

import (
	"log/slog"

	h3 "github.com/uber/h3-go/v4"

	"swathtrack/pkg/geo"
	"swathtrack/pkg/model"
)

// DefaultResolution is the H3 resolution used for the coarse field index.
// Resolution 7 cells average ~5 km2, comfortably larger than a fix's
// positional error and small enough to discriminate between farms.
const DefaultResolution = 7

// Index is a coarse H3 cell index over field boundaries, used to pre-filter
// candidate fields before the exact point-in-polygon tests. If any field
// cannot be indexed the lookup degrades to a full scan, so the index never
// changes which field matches, only how many are examined.
type Index struct {
	resolution int
	cells      map[h3.Cell][]int
	scanAll    bool
	numFields  int
}

// NewIndex builds the cell index for the given fields.
func NewIndex(fields []model.Field, resolution int) *Index {
	if resolution <= 0 {
		resolution = DefaultResolution
	}
	ix := &Index{
		resolution: resolution,
		cells:      make(map[h3.Cell][]int),
		numFields:  len(fields),
	}

	for i := range fields {
		cells, err := coveringCells(&fields[i], resolution)
		if err != nil {
			slog.Warn("Field index: falling back to full scans", "field", fields[i].ID, "error", err)
			ix.scanAll = true
			return ix
		}
		seen := make(map[h3.Cell]struct{}, len(cells))
		for _, c := range cells {
			if _, ok := seen[c]; ok {
				continue
			}
			seen[c] = struct{}{}
			ix.cells[c] = append(ix.cells[c], i)
		}
	}

	return ix
}

// Candidates returns the indices of fields whose covering cells include the
// given point, in original field order so first-match-wins is preserved.
func (ix *Index) Candidates(p geo.Point) []int {
	if ix.scanAll {
		return ix.allIndices()
	}

	cell, err := h3.LatLngToCell(h3.NewLatLng(p.Lat, p.Lon), ix.resolution)
	if err != nil {
		return ix.allIndices()
	}

	// Built in ascending field order, so already sorted.
	return ix.cells[cell]
}

func (ix *Index) allIndices() []int {
	out := make([]int, ix.numFields)
	for i := range out {
		out[i] = i
	}
	return out
}

// coveringCells returns the H3 cells covering a field's outer rings, padded
// by one ring of neighbors. PolygonToCells only includes cells whose centers
// fall inside the ring, which misses fields narrower than a cell entirely
// and the far reaches of elongated ones, so the boundary is also traced
// edge by edge through the grid.
func coveringCells(f *model.Field, resolution int) ([]h3.Cell, error) {
	var all []h3.Cell

	for _, poly := range f.Polygons {
		if len(poly) == 0 || len(poly[0]) == 0 {
			continue
		}
		loop := make(h3.GeoLoop, 0, len(poly[0]))
		for _, p := range poly[0] {
			loop = append(loop, h3.NewLatLng(p.Lat, p.Lon))
		}

		cells, err := h3.PolygonToCells(h3.GeoPolygon{GeoLoop: loop}, resolution)
		if err != nil {
			return nil, err
		}

		boundary, err := boundaryCells(loop, resolution)
		if err != nil {
			return nil, err
		}
		cells = append(cells, boundary...)

		for _, c := range cells {
			disk, err := h3.GridDisk(c, 1)
			if err != nil {
				return nil, err
			}
			all = append(all, disk...)
		}
	}

	return all, nil
}

// boundaryCells returns the chain of cells along each edge of the loop.
func boundaryCells(loop h3.GeoLoop, resolution int) ([]h3.Cell, error) {
	out := make([]h3.Cell, 0, len(loop))
	for i := range loop {
		a, err := h3.LatLngToCell(loop[i], resolution)
		if err != nil {
			return nil, err
		}
		b, err := h3.LatLngToCell(loop[(i+1)%len(loop)], resolution)
		if err != nil {
			return nil, err
		}
		if a == b {
			out = append(out, a)
			continue
		}
		path, err := h3.GridPath(a, b)
		if err != nil {
			return nil, err
		}
		out = append(out, path...)
	}
	return out, nil
}
