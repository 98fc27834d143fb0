package field

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"swathtrack/pkg/geo"
	"swathtrack/pkg/model"
)

// stripField is roughly 200 m north-south by 6 km east-west, far narrower
// than a default-resolution cell.
func stripField() model.Field {
	return model.Field{
		ID:   "strip",
		Name: "strip",
		Polygons: [][][]geo.Point{{{
			{Lat: 44.9990, Lon: -93.3400},
			{Lat: 44.9990, Lon: -93.2640},
			{Lat: 45.0008, Lon: -93.2640},
			{Lat: 45.0008, Lon: -93.3400},
		}}},
	}
}

func TestIndexCoversThinStrip(t *testing.T) {
	f := stripField()
	ix := NewIndex([]model.Field{f}, 0)
	require.False(t, ix.scanAll)

	// Sample the midline from end to end. Every point the field contains
	// must survive the pre-filter.
	for _, lon := range []float64{-93.339, -93.320, -93.300, -93.280, -93.265} {
		p := geo.Point{Lat: 44.9999, Lon: lon}
		require.True(t, f.Contains(p))
		assert.Contains(t, ix.Candidates(p), 0, "lon %v", lon)
	}
}

func TestDetectorFindsThinStrip(t *testing.T) {
	det := NewDetector([]model.Field{stripField()}, 0)

	match := det.CheckCrossing("", geo.Point{Lat: 44.9999, Lon: -93.2650})
	require.NotNil(t, match)
	assert.Equal(t, "strip", match.ID)
}

func TestIndexOutsidePointYieldsNoCandidates(t *testing.T) {
	ix := NewIndex([]model.Field{stripField()}, 0)

	// Well away from the strip and its neighbor padding.
	assert.Empty(t, ix.Candidates(geo.Point{Lat: 44.80, Lon: -93.30}))
}
