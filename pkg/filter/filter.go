// Package filter decides whether an incoming GPS fix is trustworthy, given
// its reported accuracy and the speed it implies relative to the last
// accepted fix. Rejection is a normal policy outcome, never an error.
package filter

import (
	"swathtrack/pkg/geo"
	"swathtrack/pkg/model"
)

// Reason describes why a fix was rejected.
type Reason string

const (
	// ReasonAccuracy means the fix's reported accuracy exceeded the limit.
	ReasonAccuracy Reason = "accuracy"
	// ReasonSpeed means the speed implied since the last accepted fix
	// exceeded the limit.
	ReasonSpeed Reason = "speed"
)

// Config holds the filter thresholds.
type Config struct {
	MaxAccuracyM             float64
	MaxSpeedMPS              float64
	MaxConsecutiveRejections int
}

// DefaultConfig returns the standard thresholds.
func DefaultConfig() Config {
	return Config{
		MaxAccuracyM:             80,
		MaxSpeedMPS:              15,
		MaxConsecutiveRejections: 5,
	}
}

// State carries the filter memory between fixes. The zero value is a valid
// initial state.
type State struct {
	LastAccepted          *model.TrackedFix
	ConsecutiveRejections int
}

// Result is the outcome of evaluating a single fix.
type Result struct {
	Accepted bool
	Reason   Reason // set when rejected
	FailOpen bool   // accepted only because the rejection run hit its bound
}

// Evaluate applies the outlier policy to a fix and returns the verdict along
// with the successor state. It never fails: missing accuracy or speed fields
// count as "no information", not as grounds for rejection.
//
// Single bad fixes (multipath, cold-start jumps) are common and transient; a
// sustained run of "too fast" fixes is more likely genuine movement than that
// many consecutive glitches, so after MaxConsecutiveRejections rejections in
// a row the filter fails open and accepts.
func Evaluate(fix model.TrackedFix, st State, cfg Config) (Result, State) {
	if fix.AccuracyM != nil && *fix.AccuracyM > cfg.MaxAccuracyM {
		return reject(fix, st, cfg, ReasonAccuracy)
	}

	if st.LastAccepted == nil {
		// Nothing to compare against; cannot evaluate implied speed.
		return accept(fix, st)
	}

	elapsed := fix.Time.Sub(st.LastAccepted.Time).Seconds()
	if elapsed <= 0 {
		// No reliable basis to reject.
		return accept(fix, st)
	}

	implied := geo.Distance(st.LastAccepted.Point(), fix.Point()) / elapsed
	if implied > cfg.MaxSpeedMPS {
		return reject(fix, st, cfg, ReasonSpeed)
	}

	return accept(fix, st)
}

func accept(fix model.TrackedFix, st State) (Result, State) {
	f := fix
	st.LastAccepted = &f
	st.ConsecutiveRejections = 0
	return Result{Accepted: true}, st
}

func reject(fix model.TrackedFix, st State, cfg Config, reason Reason) (Result, State) {
	st.ConsecutiveRejections++
	if st.ConsecutiveRejections > cfg.MaxConsecutiveRejections {
		// Treat the run as genuine rapid movement rather than noise.
		res, st := accept(fix, st)
		res.FailOpen = true
		return res, st
	}
	return Result{Accepted: false, Reason: reason}, st
}
