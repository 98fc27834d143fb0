package model

import (
	"time"

	"swathtrack/pkg/geo"
)

// TrackedFix is one raw sample from the location source. Accuracy, heading
// and speed are optional; nil means the sensor supplied no information.
type TrackedFix struct {
	Lat       float64    `json:"lat"`
	Lon       float64    `json:"lng"`
	Time      time.Time  `json:"time"`
	AccuracyM *float64   `json:"accuracy,omitempty"`
	Heading   *float64   `json:"heading,omitempty"`
	SpeedMPS  *float64   `json:"speed,omitempty"`
}

// Point returns the fix position as a geo.Point.
func (f *TrackedFix) Point() geo.Point {
	return geo.Point{Lat: f.Lat, Lon: f.Lon}
}

// PathPoint is a fix retained in the session path. The path is append-only
// and strictly time-ordered; rejected fixes never appear here.
type PathPoint struct {
	Lat      float64   `json:"lat"`
	Lon      float64   `json:"lng"`
	Time     time.Time `json:"time"`
	Accuracy float64   `json:"accuracy"`
	Heading  float64   `json:"heading"`
	SpeedMPS float64   `json:"speed"`
	SpeedMph float64   `json:"speedMph"`
}

// Point returns the path point position as a geo.Point.
func (p *PathPoint) Point() geo.Point {
	return geo.Point{Lat: p.Lat, Lon: p.Lon}
}

// Session is one continuous tracked spreading pass, bounded by start/stop or
// a confirmed field crossing.
type Session struct {
	ID              string      `json:"id"`
	FieldID         string      `json:"fieldId,omitempty"`
	ManureColor     string      `json:"manureColor,omitempty"`
	SpreadWidthFeet float64     `json:"spreadWidthFeet"`
	EquipmentID     string      `json:"equipmentId,omitempty"`
	CapacityGallons float64     `json:"capacityGallons,omitempty"`
	LoadCount       int         `json:"loadCount,omitempty"`
	StorageID       string      `json:"storageId,omitempty"`
	TargetRate      float64     `json:"targetRate,omitempty"`
	StartTime       time.Time   `json:"startTime"`
	EndTime         time.Time   `json:"endTime,omitempty"` // zero while active
	Path            []PathPoint `json:"path"`
	TotalDistanceM  float64     `json:"totalDistanceMeters"`
	AcresCovered    float64     `json:"acresCovered"`
	CalculatedRate  *float64    `json:"calculatedRate,omitempty"`
}

// Active reports whether the session is still open.
func (s *Session) Active() bool {
	return s.EndTime.IsZero()
}

// Acres derives the covered acreage from accumulated distance and the
// configured spread width. Distance is kept in meters; the conversion to
// feet and acres happens here, at read time.
func (s *Session) Acres() float64 {
	return (s.TotalDistanceM * geo.MetersToFeet * s.SpreadWidthFeet) / geo.SquareFeetPerAcre
}

// Rate derives the application rate (gallons per acre) when capacity and
// load count are known and acreage is positive. Returns nil otherwise.
func (s *Session) Rate() *float64 {
	acres := s.Acres()
	if s.CapacityGallons <= 0 || s.LoadCount <= 0 || acres <= 0 {
		return nil
	}
	r := (s.CapacityGallons * float64(s.LoadCount)) / acres
	return &r
}

// Field is an externally supplied boundary the core reads for crossing
// detection. Polygons holds one or more polygons, each a list of rings in
// [lat,lng] order (outer ring first, holes after).
type Field struct {
	ID       string          `json:"id"`
	Name     string          `json:"name"`
	Polygons [][][]geo.Point `json:"-"`
}

// Contains reports whether p falls inside the field boundary using the
// even-odd rule across each polygon's rings, so holes are excluded.
func (f *Field) Contains(p geo.Point) bool {
	for _, poly := range f.Polygons {
		inside := false
		for _, ring := range poly {
			if geo.PointInRing(p, ring) {
				inside = !inside
			}
		}
		if inside {
			return true
		}
	}
	return false
}
