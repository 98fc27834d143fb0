package gps

import (
	"log/slog"
	"math/rand"
	"sync"
	"time"

	"swathtrack/pkg/config"
	"swathtrack/pkg/geo"
	"swathtrack/pkg/model"
)

// SimSource generates a plausible spreading drive: steady forward motion
// with gentle heading wander and gaussian position noise. Useful for
// development without hardware.
type SimSource struct {
	cfg      config.SimGPSConfig
	interval time.Duration

	ch        chan model.TrackedFix
	stop      chan struct{}
	closeOnce sync.Once

	pos     geo.Point
	heading float64
}

// NewSimSource creates and starts a simulated location source.
func NewSimSource(cfg *config.GPSConfig) *SimSource {
	interval := cfg.Interval.Std()
	if interval <= 0 {
		interval = time.Second
	}

	s := &SimSource{
		cfg:      cfg.Sim,
		interval: interval,
		ch:       make(chan model.TrackedFix),
		stop:     make(chan struct{}),
		pos:      geo.Point{Lat: cfg.Sim.StartLat, Lon: cfg.Sim.StartLon},
		heading:  cfg.Sim.StartHeading,
	}

	go s.run()
	return s
}

// Fixes implements Source.
func (s *SimSource) Fixes() <-chan model.TrackedFix {
	return s.ch
}

// Close implements Source.
func (s *SimSource) Close() error {
	s.closeOnce.Do(func() { close(s.stop) })
	return nil
}

func (s *SimSource) run() {
	defer close(s.ch)

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	slog.Info("Sim GPS started", "lat", s.pos.Lat, "lon", s.pos.Lon, "speed_mps", s.cfg.SpeedMPS)

	for {
		select {
		case <-s.stop:
			return
		case <-ticker.C:
			fix := s.step()
			select {
			case s.ch <- fix:
			case <-s.stop:
				return
			}
		}
	}
}

// step advances the simulated position by one interval and samples a fix.
func (s *SimSource) step() model.TrackedFix {
	// Gentle wander, occasionally a firmer turn like a headland pass.
	s.heading += rand.NormFloat64() * 2
	if rand.Float64() < 0.02 {
		s.heading += 90 * (rand.Float64()*2 - 1)
	}

	dist := s.cfg.SpeedMPS * s.interval.Seconds()
	s.pos = geo.DestinationPoint(s.pos, dist, s.heading)

	// Observed position wobbles around the true one.
	noisy := s.pos
	if s.cfg.NoiseM > 0 {
		noisy = geo.DestinationPoint(s.pos, rand.Float64()*s.cfg.NoiseM, rand.Float64()*360)
	}

	accuracy := 3 + rand.Float64()*5
	heading := s.heading
	speed := s.cfg.SpeedMPS

	return model.TrackedFix{
		Lat:       noisy.Lat,
		Lon:       noisy.Lon,
		Time:      time.Now(),
		AccuracyM: &accuracy,
		Heading:   &heading,
		SpeedMPS:  &speed,
	}
}
