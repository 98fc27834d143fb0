package field

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"swathtrack/pkg/geo"
	"swathtrack/pkg/model"
)

// squareField builds a field covering half a degree-minute around center.
func squareField(id, name string, center geo.Point) model.Field {
	const d = 0.005
	return model.Field{
		ID:   id,
		Name: name,
		Polygons: [][][]geo.Point{{{
			{Lat: center.Lat - d, Lon: center.Lon - d},
			{Lat: center.Lat - d, Lon: center.Lon + d},
			{Lat: center.Lat + d, Lon: center.Lon + d},
			{Lat: center.Lat + d, Lon: center.Lon - d},
		}}},
	}
}

var (
	northCenter = geo.Point{Lat: 44.990, Lon: -93.265}
	southCenter = geo.Point{Lat: 44.960, Lon: -93.265}
	outside     = geo.Point{Lat: 44.975, Lon: -93.100}
)

func newTestDetector() *Detector {
	return NewDetector([]model.Field{
		squareField("north-40", "North 40", northCenter),
		squareField("south-40", "South 40", southCenter),
	}, DefaultResolution)
}

func TestCheckCrossingMatchesContainingField(t *testing.T) {
	d := newTestDetector()

	match := d.CheckCrossing("", northCenter)
	require.NotNil(t, match)
	assert.Equal(t, "north-40", match.ID)
}

func TestCheckCrossingIgnoresCurrentField(t *testing.T) {
	d := newTestDetector()

	assert.Nil(t, d.CheckCrossing("north-40", northCenter))
}

func TestCheckCrossingOutsideAllFields(t *testing.T) {
	d := newTestDetector()

	assert.Nil(t, d.CheckCrossing("", outside))
}

func TestObserveCreatesPendingOnce(t *testing.T) {
	d := newTestDetector()

	pending := d.Observe("south-40", northCenter)
	require.NotNil(t, pending)
	assert.Equal(t, "north-40", pending.Field.ID)
	assert.NotEmpty(t, pending.Token)

	// Further observations while pending are suppressed, including for a
	// different field.
	assert.Nil(t, d.Observe("south-40", northCenter))
	assert.Nil(t, d.Observe("north-40", southCenter))
	assert.Equal(t, pending.Token, d.Pending().Token)
}

func TestConfirmResolvesPending(t *testing.T) {
	d := newTestDetector()

	pending := d.Observe("", northCenter)
	require.NotNil(t, pending)

	entered, err := d.Confirm(pending.Token)
	require.NoError(t, err)
	assert.Equal(t, "north-40", entered.ID)
	assert.Nil(t, d.Pending())

	// Idempotence: a second confirm with the same token fails cleanly.
	_, err = d.Confirm(pending.Token)
	assert.ErrorIs(t, err, ErrNoPendingCrossing)
}

func TestConfirmTokenMismatch(t *testing.T) {
	d := newTestDetector()

	pending := d.Observe("", northCenter)
	require.NotNil(t, pending)

	_, err := d.Confirm("bogus")
	assert.ErrorIs(t, err, ErrTokenMismatch)
	// The pending crossing survives a mismatched confirm.
	require.NotNil(t, d.Pending())
	assert.Equal(t, pending.Token, d.Pending().Token)
}

func TestConfirmWithNoPending(t *testing.T) {
	d := newTestDetector()

	_, err := d.Confirm("anything")
	assert.ErrorIs(t, err, ErrNoPendingCrossing)
}

func TestRejectMutesFieldUntilExit(t *testing.T) {
	d := newTestDetector()

	pending := d.Observe("", northCenter)
	require.NotNil(t, pending)
	require.NoError(t, d.Reject(pending.Token))

	// Still inside the rejected field: no re-trigger.
	assert.Nil(t, d.Observe("", northCenter))
	assert.Nil(t, d.Observe("", northCenter))

	// Leave it, come back: the crossing fires again.
	assert.Nil(t, d.Observe("", outside))
	again := d.Observe("", northCenter)
	require.NotNil(t, again)
	assert.Equal(t, "north-40", again.Field.ID)
	assert.NotEqual(t, pending.Token, again.Token)
}

func TestRejectThenDifferentFieldTriggers(t *testing.T) {
	d := newTestDetector()

	pending := d.Observe("", northCenter)
	require.NotNil(t, pending)
	require.NoError(t, d.Reject(pending.Token))

	// Entering a different field is a fresh crossing, not muted.
	next := d.Observe("", southCenter)
	require.NotNil(t, next)
	assert.Equal(t, "south-40", next.Field.ID)
}

func TestRejectTokenMismatch(t *testing.T) {
	d := newTestDetector()

	pending := d.Observe("", northCenter)
	require.NotNil(t, pending)

	assert.ErrorIs(t, d.Reject("bogus"), ErrTokenMismatch)
	require.NotNil(t, d.Pending())
}

func TestFirstMatchWinsOnOverlap(t *testing.T) {
	// Two fields over the same area; list order decides.
	d := NewDetector([]model.Field{
		squareField("first", "First", northCenter),
		squareField("second", "Second", northCenter),
	}, DefaultResolution)

	match := d.CheckCrossing("", northCenter)
	require.NotNil(t, match)
	assert.Equal(t, "first", match.ID)

	// With the first one as the current field, the overlap falls through
	// to the second.
	match = d.CheckCrossing("first", northCenter)
	require.NotNil(t, match)
	assert.Equal(t, "second", match.ID)
}

func TestFieldWithHoleExcludesHole(t *testing.T) {
	const d = 0.005
	c := northCenter
	f := model.Field{
		ID: "holed",
		Polygons: [][][]geo.Point{{
			{
				{Lat: c.Lat - d, Lon: c.Lon - d},
				{Lat: c.Lat - d, Lon: c.Lon + d},
				{Lat: c.Lat + d, Lon: c.Lon + d},
				{Lat: c.Lat + d, Lon: c.Lon - d},
			},
			{
				{Lat: c.Lat - d/4, Lon: c.Lon - d/4},
				{Lat: c.Lat - d/4, Lon: c.Lon + d/4},
				{Lat: c.Lat + d/4, Lon: c.Lon + d/4},
				{Lat: c.Lat + d/4, Lon: c.Lon - d/4},
			},
		}},
	}

	assert.False(t, f.Contains(c), "center is in the hole")
	assert.True(t, f.Contains(geo.Point{Lat: c.Lat + d/2, Lon: c.Lon}), "between hole and boundary")
	assert.False(t, f.Contains(outside))
}

func TestSetFieldsReplacesList(t *testing.T) {
	d := newTestDetector()

	d.SetFields([]model.Field{squareField("only", "Only", southCenter)})

	assert.Nil(t, d.CheckCrossing("", northCenter))
	match := d.CheckCrossing("", southCenter)
	require.NotNil(t, match)
	assert.Equal(t, "only", match.ID)
	assert.Len(t, d.Fields(), 1)
}
