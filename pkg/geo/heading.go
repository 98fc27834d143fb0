package geo

import "sync"

// HeadingBuffer maintains a rolling window of positions and derives the
// average ground track from it. Used to smooth the heading reported for
// display when the GPS fix carries none.
type HeadingBuffer struct {
	mu         sync.RWMutex
	samples    []Point
	windowSize int
}

// NewHeadingBuffer creates a new buffer with the specified sample window size.
func NewHeadingBuffer(windowSize int) *HeadingBuffer {
	if windowSize < 2 {
		windowSize = 2
	}
	return &HeadingBuffer{
		windowSize: windowSize,
	}
}

// Push adds a new position to the buffer and returns the current track (bearing).
// If the buffer has fewer than 2 points, it returns the provided default heading.
func (b *HeadingBuffer) Push(p Point, defaultHeading float64) float64 {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.samples = append(b.samples, p)
	if len(b.samples) > b.windowSize {
		b.samples = b.samples[1:]
	}

	if len(b.samples) < 2 {
		return defaultHeading
	}

	// Bearing from oldest to newest point in the window.
	return Bearing(b.samples[0], b.samples[len(b.samples)-1])
}

// Reset clears the buffer history.
func (b *HeadingBuffer) Reset() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.samples = nil
}
