// Package swath builds the buffered coverage polygon for a spreading pass:
// a constant-width strip following the recorded path, with rounded end caps
// and rounded-or-collapsed joins at turns.
package swath

import (
	"math"

	"swathtrack/pkg/geo"
)

const (
	// capStepDeg is the angular step used for end caps and the
	// single-point circle.
	capStepDeg = 15.0
	// straightThresholdDeg is the turn angle below which a vertex is
	// treated as straight.
	straightThresholdDeg = 5.0
	// arcStepDeg controls join arc discretization: one arc segment per
	// arcStepDeg of turn, with a minimum of minArcSteps segments.
	arcStepDeg  = 20.0
	minArcSteps = 3
)

// Build returns the coverage ring for the given path at halfWidthM meters to
// each side. The ring is implicitly closed. An empty path yields nil; a
// single point yields a full circle. The outer side of each turn gets an arc
// so the strip leaves no gap; the inner side collapses to a single bisector
// point and may self-overlap. For very sharp turns or spacing tight relative
// to the width the ring is not guaranteed simple; it is a display and area
// approximation, not exact cartography.
//
// Build recomputes the whole ring from scratch. Callers invoke it after every
// recorded point and must not assume incremental updates.
func Build(path []geo.Point, halfWidthM float64) []geo.Point {
	pts := dedupe(path)

	switch len(pts) {
	case 0:
		return nil
	case 1:
		return circle(pts[0], halfWidthM)
	}

	var left, right []geo.Point

	for i := range pts {
		switch i {
		case 0:
			// Rounded start cap: trailing semicircle swept from
			// bearing+90 to bearing+270, landing on the left offset.
			b := geo.Bearing(pts[0], pts[1])
			left = append(left, arc(pts[0], halfWidthM, b+90, 180)...)

		case len(pts) - 1:
			// Rounded end cap: left offset, then the forward
			// semicircle reversed onto the right chain.
			b := geo.Bearing(pts[i-1], pts[i])
			left = append(left, geo.DestinationPoint(pts[i], halfWidthM, b-90))
			right = append(right, reversed(arc(pts[i], halfWidthM, b-90, 180))...)

		default:
			bIn := geo.Bearing(pts[i-1], pts[i])
			bOut := geo.Bearing(pts[i], pts[i+1])
			turn := geo.NormalizeAngle(bOut - bIn)
			bisector := bIn + turn/2

			switch {
			case math.Abs(turn) < straightThresholdDeg:
				left = append(left, geo.DestinationPoint(pts[i], halfWidthM, bisector-90))
				right = append(right, geo.DestinationPoint(pts[i], halfWidthM, bisector+90))

			case turn > 0:
				// Right turn: left side is outer and gets the
				// arc, right side collapses to the bisector.
				left = append(left, arc(pts[i], halfWidthM, bIn-90, turn)...)
				right = append(right, geo.DestinationPoint(pts[i], halfWidthM, bisector+90))

			default:
				// Left turn: mirror image.
				left = append(left, geo.DestinationPoint(pts[i], halfWidthM, bisector-90))
				right = append(right, arc(pts[i], halfWidthM, bIn+90, turn)...)
			}
		}
	}

	// Outer-then-inner traversal: left chain forward, right chain reversed.
	ring := make([]geo.Point, 0, len(left)+len(right))
	ring = append(ring, left...)
	ring = append(ring, reversed(right)...)
	return ring
}

// circle approximates a full circle around center, for the stationary-at-
// start case.
func circle(center geo.Point, radius float64) []geo.Point {
	n := int(360 / capStepDeg)
	ring := make([]geo.Point, 0, n)
	for i := 0; i < n; i++ {
		ring = append(ring, geo.DestinationPoint(center, radius, float64(i)*capStepDeg))
	}
	return ring
}

// arc sweeps sweepDeg degrees from startDeg around center, inclusive of both
// endpoints. Negative sweeps run counterclockwise. Step count scales with the
// sweep for caps, and with the turn angle for joins.
func arc(center geo.Point, radius, startDeg, sweepDeg float64) []geo.Point {
	var steps int
	if math.Abs(sweepDeg) >= 180 {
		steps = int(math.Abs(sweepDeg) / capStepDeg)
	} else {
		steps = int(math.Abs(sweepDeg) / arcStepDeg)
		if steps < minArcSteps {
			steps = minArcSteps
		}
	}

	pts := make([]geo.Point, 0, steps+1)
	for i := 0; i <= steps; i++ {
		ang := startDeg + sweepDeg*float64(i)/float64(steps)
		pts = append(pts, geo.DestinationPoint(center, radius, ang))
	}
	return pts
}

// dedupe drops consecutive identical points so zero-length segments never
// reach the bearing math.
func dedupe(path []geo.Point) []geo.Point {
	if len(path) < 2 {
		return path
	}
	out := make([]geo.Point, 0, len(path))
	out = append(out, path[0])
	for _, p := range path[1:] {
		if p != out[len(out)-1] {
			out = append(out, p)
		}
	}
	return out
}

func reversed(pts []geo.Point) []geo.Point {
	out := make([]geo.Point, len(pts))
	for i, p := range pts {
		out[len(pts)-1-i] = p
	}
	return out
}
