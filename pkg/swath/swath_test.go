package swath

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"swathtrack/pkg/geo"
)

func validRing(t *testing.T, ring []geo.Point) {
	t.Helper()
	for i, p := range ring {
		if math.IsNaN(p.Lat) || math.IsNaN(p.Lon) || math.IsInf(p.Lat, 0) || math.IsInf(p.Lon, 0) {
			t.Fatalf("ring[%d] = %+v, not finite", i, p)
		}
	}
}

// northPath returns n points heading due north, spacingM meters apart.
func northPath(n int, spacingM float64) []geo.Point {
	pts := make([]geo.Point, 0, n)
	p := geo.Point{Lat: 44.9770, Lon: -93.2650}
	for i := 0; i < n; i++ {
		pts = append(pts, p)
		p = geo.DestinationPoint(p, spacingM, 0)
	}
	return pts
}

func TestBuildEmptyPath(t *testing.T) {
	assert.Nil(t, Build(nil, 7.62))
	assert.Nil(t, Build([]geo.Point{}, 7.62))
}

func TestBuildSinglePointCircle(t *testing.T) {
	center := geo.Point{Lat: 44.9770, Lon: -93.2650}
	const radius = 7.62

	ring := Build([]geo.Point{center}, radius)

	require.Len(t, ring, 24)
	validRing(t, ring)
	for i, p := range ring {
		d := geo.Distance(center, p)
		assert.InDelta(t, radius, d, radius*0.01, "ring[%d] at %v m from center", i, d)
	}
}

func TestBuildDuplicatePointsCollapseToCircle(t *testing.T) {
	p := geo.Point{Lat: 44.9770, Lon: -93.2650}

	ring := Build([]geo.Point{p, p, p}, 5)

	require.Len(t, ring, 24)
	validRing(t, ring)
}

func TestBuildStraightLineWidth(t *testing.T) {
	const halfWidth = 7.62 // 50 ft spread
	path := northPath(5, 20)

	ring := Build(path, halfWidth)

	require.GreaterOrEqual(t, len(ring), 3)
	validRing(t, ring)

	// Every ring vertex lies on an offset or cap at exactly halfWidth from
	// some path point; for a straight run the nearest-path distance is the
	// half width throughout.
	for i, rp := range ring {
		nearest := math.MaxFloat64
		for _, pp := range path {
			if d := geo.Distance(pp, rp); d < nearest {
				nearest = d
			}
		}
		assert.InDelta(t, halfWidth, nearest, halfWidth*0.05, "ring[%d]", i)
	}

	// Interior path points must be inside the ring.
	for _, pp := range path[1 : len(path)-1] {
		assert.True(t, geo.PointInRing(pp, ring), "path point %+v not covered", pp)
	}
}

func TestBuildTwoPointSegment(t *testing.T) {
	path := northPath(2, 30)

	ring := Build(path, 7.62)

	require.GreaterOrEqual(t, len(ring), 3)
	validRing(t, ring)

	mid := geo.Point{
		Lat: (path[0].Lat + path[1].Lat) / 2,
		Lon: path[0].Lon,
	}
	assert.True(t, geo.PointInRing(mid, ring), "segment midpoint not covered")

	// For a due-north path the strip spans halfWidth to each side, 2x
	// halfWidth across.
	var east, west float64
	for _, rp := range ring {
		d := geo.Distance(rp, geo.Point{Lat: rp.Lat, Lon: path[0].Lon})
		if rp.Lon > path[0].Lon && d > east {
			east = d
		}
		if rp.Lon < path[0].Lon && d > west {
			west = d
		}
	}
	assert.InDelta(t, 2*7.62, east+west, 2*7.62*0.02)
}

func TestBuildRightTurnOuterArc(t *testing.T) {
	// North then east: a 90 degree right turn at the corner.
	corner := geo.DestinationPoint(geo.Point{Lat: 44.9770, Lon: -93.2650}, 50, 0)
	path := []geo.Point{
		{Lat: 44.9770, Lon: -93.2650},
		corner,
		geo.DestinationPoint(corner, 50, 90),
	}

	const halfWidth = 7.62
	ring := Build(path, halfWidth)
	validRing(t, ring)

	// The left (outer) side of a right turn gets an arc, so the ring is
	// strictly longer than the straight-vertex rendering of the same path.
	straight := Build(northPath(3, 50), halfWidth)
	assert.Greater(t, len(ring), len(straight))

	// The outer corner region must be covered: a point halfWidth/2 out
	// along the turn bisector's outside.
	outer := geo.DestinationPoint(corner, halfWidth/2, 315)
	assert.True(t, geo.PointInRing(outer, ring), "outer corner not covered")

	// The corner itself is covered.
	assert.True(t, geo.PointInRing(corner, ring))
}

func TestBuildLeftTurnMirrors(t *testing.T) {
	corner := geo.DestinationPoint(geo.Point{Lat: 44.9770, Lon: -93.2650}, 50, 0)
	path := []geo.Point{
		{Lat: 44.9770, Lon: -93.2650},
		corner,
		geo.DestinationPoint(corner, 50, 270),
	}

	ring := Build(path, 7.62)
	validRing(t, ring)

	straight := Build(northPath(3, 50), 7.62)
	assert.Greater(t, len(ring), len(straight))
	assert.True(t, geo.PointInRing(corner, ring))
}

func TestBuildNearStraightVertexNoArc(t *testing.T) {
	// A 3 degree wiggle stays under the straight threshold: one offset
	// point per side at the vertex, same vertex count as dead straight.
	start := geo.Point{Lat: 44.9770, Lon: -93.2650}
	mid := geo.DestinationPoint(start, 50, 0)
	path := []geo.Point{start, mid, geo.DestinationPoint(mid, 50, 3)}

	wiggle := Build(path, 7.62)
	straight := Build(northPath(3, 50), 7.62)

	assert.Equal(t, len(straight), len(wiggle))
}

func TestBuildSharpTurnStaysFinite(t *testing.T) {
	// Near-reversal: a 170 degree hook.
	start := geo.Point{Lat: 44.9770, Lon: -93.2650}
	mid := geo.DestinationPoint(start, 40, 0)
	path := []geo.Point{start, mid, geo.DestinationPoint(mid, 40, 170)}

	ring := Build(path, 7.62)

	require.GreaterOrEqual(t, len(ring), 3)
	validRing(t, ring)
}

func TestBuildLongPathGrowsLinearly(t *testing.T) {
	const halfWidth = 7.62
	short := Build(northPath(10, 15), halfWidth)
	long := Build(northPath(100, 15), halfWidth)

	validRing(t, long)
	// Straight vertices contribute one point per side, so vertex count
	// scales with the path and never explodes.
	assert.Greater(t, len(long), len(short))
	assert.Less(t, len(long), 100*2+60)
}
