// Package gps provides location sources that push TrackedFix values at
// sensor cadence. There is no backpressure; the consumer must process each
// fix before the next arrives.
package gps

import (
	"fmt"

	"swathtrack/pkg/config"
	"swathtrack/pkg/model"
)

// Source is a push-style stream of GPS fixes. The channel closes when the
// source is exhausted or closed.
type Source interface {
	// Fixes returns the channel fixes are delivered on.
	Fixes() <-chan model.TrackedFix
	// Close stops the source and releases its resources.
	Close() error
}

// NewSource builds the configured location source.
func NewSource(cfg *config.GPSConfig) (Source, error) {
	switch cfg.Provider {
	case "sim":
		return NewSimSource(cfg), nil
	case "replay":
		return NewReplaySource(cfg.Replay.Path, cfg.Interval.Std())
	default:
		return nil, fmt.Errorf("unknown gps provider: %q", cfg.Provider)
	}
}
