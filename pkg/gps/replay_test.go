package gps

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestReplaySourceDeliversFixes(t *testing.T) {
	path := filepath.Join(t.TempDir(), "drive.ndjson")
	lines := `{"lat":44.9770,"lng":-93.2650,"time":"2026-04-12T14:00:00Z","accuracy":4}
{"lat":44.9771,"lng":-93.2650,"time":"2026-04-12T14:00:03Z"}
not json at all
{"lat":44.9772,"lng":-93.2650,"time":"2026-04-12T14:00:06Z","speed":3.5}
`
	require.NoError(t, os.WriteFile(path, []byte(lines), 0o644))

	src, err := NewReplaySource(path, time.Millisecond)
	require.NoError(t, err)
	defer src.Close()

	var lats []float64
	timeout := time.After(2 * time.Second)
	for {
		select {
		case fix, ok := <-src.Fixes():
			if !ok {
				// Malformed line skipped, the rest delivered in order.
				require.Len(t, lats, 3)
				assert.Equal(t, []float64{44.9770, 44.9771, 44.9772}, lats)
				return
			}
			lats = append(lats, fix.Lat)
		case <-timeout:
			t.Fatal("timed out waiting for replay fixes")
		}
	}
}

func TestReplaySourceCarriesOptionalFields(t *testing.T) {
	path := filepath.Join(t.TempDir(), "drive.ndjson")
	line := `{"lat":44.9770,"lng":-93.2650,"time":"2026-04-12T14:00:00Z","accuracy":4,"heading":92.5,"speed":3.5}` + "\n"
	require.NoError(t, os.WriteFile(path, []byte(line), 0o644))

	src, err := NewReplaySource(path, time.Millisecond)
	require.NoError(t, err)
	defer src.Close()

	select {
	case fix := <-src.Fixes():
		require.NotNil(t, fix.AccuracyM)
		assert.Equal(t, 4.0, *fix.AccuracyM)
		require.NotNil(t, fix.Heading)
		assert.Equal(t, 92.5, *fix.Heading)
		require.NotNil(t, fix.SpeedMPS)
		assert.Equal(t, 3.5, *fix.SpeedMPS)
		assert.False(t, fix.Time.IsZero())
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for replay fix")
	}
}

func TestReplaySourceMissingFile(t *testing.T) {
	_, err := NewReplaySource(filepath.Join(t.TempDir(), "nope.ndjson"), time.Millisecond)
	assert.Error(t, err)
}

func TestReplaySourceCloseStopsDelivery(t *testing.T) {
	path := filepath.Join(t.TempDir(), "drive.ndjson")
	var lines []byte
	for i := 0; i < 1000; i++ {
		lines = append(lines, []byte(`{"lat":44.9770,"lng":-93.2650,"time":"2026-04-12T14:00:00Z"}`+"\n")...)
	}
	require.NoError(t, os.WriteFile(path, lines, 0o644))

	src, err := NewReplaySource(path, time.Millisecond)
	require.NoError(t, err)

	<-src.Fixes()
	require.NoError(t, src.Close())

	// The channel closes shortly after Close.
	timeout := time.After(2 * time.Second)
	for {
		select {
		case _, ok := <-src.Fixes():
			if !ok {
				return
			}
		case <-timeout:
			t.Fatal("channel not closed after Close()")
		}
	}
}
