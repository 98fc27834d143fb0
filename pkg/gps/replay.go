package gps

import (
	"bufio"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"sync"
	"time"

	"swathtrack/pkg/model"
)

// ReplaySource replays fixes recorded as NDJSON, one TrackedFix per line.
// Fixes are delivered at the configured interval regardless of their
// recorded timestamps, which the filter and tracker still use for their
// time-based decisions.
type ReplaySource struct {
	path     string
	interval time.Duration

	ch        chan model.TrackedFix
	stop      chan struct{}
	closeOnce sync.Once
}

// NewReplaySource opens an NDJSON fix recording for replay.
func NewReplaySource(path string, interval time.Duration) (*ReplaySource, error) {
	if _, err := os.Stat(path); err != nil {
		return nil, fmt.Errorf("replay file not readable: %w", err)
	}
	if interval <= 0 {
		interval = time.Second
	}

	s := &ReplaySource{
		path:     path,
		interval: interval,
		ch:       make(chan model.TrackedFix),
		stop:     make(chan struct{}),
	}

	go s.run()
	return s, nil
}

// Fixes implements Source.
func (s *ReplaySource) Fixes() <-chan model.TrackedFix {
	return s.ch
}

// Close implements Source.
func (s *ReplaySource) Close() error {
	s.closeOnce.Do(func() { close(s.stop) })
	return nil
}

func (s *ReplaySource) run() {
	defer close(s.ch)

	f, err := os.Open(s.path)
	if err != nil {
		slog.Error("Replay: failed to open recording", "path", s.path, "error", err)
		return
	}
	defer f.Close()

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	scanner := bufio.NewScanner(f)
	lineNo := 0
	for scanner.Scan() {
		lineNo++
		line := scanner.Bytes()
		if len(line) == 0 {
			continue
		}

		var fix model.TrackedFix
		if err := json.Unmarshal(line, &fix); err != nil {
			slog.Warn("Replay: skipping malformed fix", "line", lineNo, "error", err)
			continue
		}

		select {
		case <-s.stop:
			return
		case <-ticker.C:
		}

		select {
		case s.ch <- fix:
		case <-s.stop:
			return
		}
	}

	if err := scanner.Err(); err != nil {
		slog.Error("Replay: read error", "path", s.path, "error", err)
	}
	slog.Info("Replay finished", "path", s.path, "fixes", lineNo)
}
