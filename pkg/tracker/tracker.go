// Package tracker owns the tracking session state machine. It orchestrates
// the outlier filter, swath builder and field-crossing detector for each
// incoming fix, and hands completed sessions to the persistence store.
package tracker

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"swathtrack/pkg/field"
	"swathtrack/pkg/filter"
	"swathtrack/pkg/geo"
	"swathtrack/pkg/model"
	"swathtrack/pkg/store"
	"swathtrack/pkg/swath"
)

var (
	// ErrAlreadyTracking is returned when starting while a session is active.
	ErrAlreadyTracking = errors.New("a tracking session is already active")
	// ErrNotTracking is returned for operations that need an active session.
	ErrNotTracking = errors.New("no active tracking session")
	// ErrNoDetector is returned for crossing operations without a field detector.
	ErrNoDetector = errors.New("no field detector configured")
	// ErrNothingToSave is returned by RetrySave when no save is outstanding.
	ErrNothingToSave = errors.New("no unsaved session")
	// ErrSessionNotFound is returned when continuing from an unknown session.
	ErrSessionNotFound = errors.New("session not found")
)

// State is the tracker lifecycle state.
type State string

const (
	StateIdle     State = "idle"
	StateTracking State = "tracking"
)

// Config holds tracking policy knobs.
type Config struct {
	Filter filter.Config
	// MinRecordInterval and MinRecordDistanceM gate which accepted fixes
	// become permanent path points, bounding path growth under GPS
	// chatter while stationary.
	MinRecordInterval  time.Duration
	MinRecordDistanceM float64
	// DefaultWidthFeet is used when a session starts with a non-positive
	// spread width.
	DefaultWidthFeet float64
	// HeadingWindow is the rolling sample window used to smooth headings
	// for fixes that carry none.
	HeadingWindow int
}

// DefaultConfig returns the standard tracking policy.
func DefaultConfig() Config {
	return Config{
		Filter:             filter.DefaultConfig(),
		MinRecordInterval:  3 * time.Second,
		MinRecordDistanceM: 5,
		DefaultWidthFeet:   50,
		HeadingWindow:      5,
	}
}

// StartOptions configures a new session. Equipment and storage metadata are
// opaque to the geometry and carried through to persistence. When
// ContinueSessionID is set the named stored session is reopened with its path
// and totals intact, and the other fields are ignored.
type StartOptions struct {
	FieldID           string  `json:"fieldId"`
	ManureColor       string  `json:"manureColor"`
	SpreadWidthFeet   float64 `json:"spreadWidthFeet"`
	EquipmentID       string  `json:"equipmentId"`
	CapacityGallons   float64 `json:"capacityGallons"`
	LoadCount         int     `json:"loadCount"`
	StorageID         string  `json:"storageId"`
	TargetRate        float64 `json:"targetRate"`
	ContinueSessionID string  `json:"continueSessionId,omitempty"`
}

// Snapshot is a read-only copy of the live tracking state for rendering
// collaborators.
type Snapshot struct {
	State          State             `json:"state"`
	Live           *model.TrackedFix `json:"live,omitempty"`
	Session        *model.Session    `json:"session,omitempty"`
	Swath          []geo.Point       `json:"swath,omitempty"`
	TotalDistanceM float64           `json:"totalDistanceMeters"`
	AcresCovered   float64           `json:"acresCovered"`
}

// Observer receives tracking lifecycle notifications. Callbacks run on the
// fix-processing goroutine and must return quickly.
type Observer interface {
	OnFixEvaluated(res filter.Result)
	OnPathUpdated(snap Snapshot)
	OnCrossingDetected(pending field.PendingCrossing)
	OnSessionClosed(sess *model.Session)
}

// Tracker is the session state machine. One tracker processes fixes from a
// single location source; all methods are safe for concurrent use.
type Tracker struct {
	mu        sync.Mutex
	cfg       Config
	store     store.SessionStore
	detector  *field.Detector // may be nil when no fields are loaded
	observers []Observer

	state        State
	session      *model.Session
	filterState  filter.State
	swathRing    []geo.Point
	lastFix      *model.TrackedFix
	lastRecorded *model.PathPoint
	headings     *geo.HeadingBuffer
	unsaved      *model.Session // finalized session whose save failed
}

// New creates an idle tracker. The detector may be nil when field boundaries
// are unavailable; crossing detection is then disabled.
func New(cfg Config, st store.SessionStore, det *field.Detector) *Tracker {
	if cfg.HeadingWindow < 2 {
		cfg.HeadingWindow = DefaultConfig().HeadingWindow
	}
	return &Tracker{
		cfg:      cfg,
		store:    st,
		detector: det,
		state:    StateIdle,
		headings: geo.NewHeadingBuffer(cfg.HeadingWindow),
	}
}

// Subscribe registers an observer for lifecycle notifications.
func (t *Tracker) Subscribe(o Observer) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.observers = append(t.observers, o)
}

// Start opens a new session and transitions to tracking. Starting while
// already tracking leaves the active session untouched and reports failure.
// A non-positive spread width falls back to the configured default.
func (t *Tracker) Start(ctx context.Context, opts StartOptions) (*model.Session, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.state == StateTracking {
		slog.Warn("Tracking start ignored: session already active", "session", t.session.ID)
		return nil, ErrAlreadyTracking
	}

	if opts.ContinueSessionID != "" {
		return t.continueLocked(ctx, opts.ContinueSessionID)
	}

	width := opts.SpreadWidthFeet
	if width <= 0 {
		slog.Warn("Invalid spread width, using default", "requested", opts.SpreadWidthFeet, "default", t.cfg.DefaultWidthFeet)
		width = t.cfg.DefaultWidthFeet
	}

	t.session = &model.Session{
		ID:              uuid.NewString(),
		FieldID:         opts.FieldID,
		ManureColor:     opts.ManureColor,
		SpreadWidthFeet: width,
		EquipmentID:     opts.EquipmentID,
		CapacityGallons: opts.CapacityGallons,
		LoadCount:       opts.LoadCount,
		StorageID:       opts.StorageID,
		TargetRate:      opts.TargetRate,
		StartTime:       time.Now(),
	}
	t.state = StateTracking
	t.filterState = filter.State{}
	t.swathRing = nil
	t.lastRecorded = nil
	t.headings.Reset()

	slog.Info("Tracking started", "session", t.session.ID, "field", opts.FieldID, "width_ft", width)
	return t.sessionCopy(), nil
}

// continueLocked reopens a stored session: path, distance and metadata come
// back as saved, the end time clears and tracking resumes where it left off.
func (t *Tracker) continueLocked(ctx context.Context, id string) (*model.Session, error) {
	prior, err := t.store.GetSession(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("failed to load session %s: %w", id, err)
	}
	if prior == nil {
		return nil, fmt.Errorf("%w: %s", ErrSessionNotFound, id)
	}

	prior.EndTime = time.Time{}
	prior.AcresCovered = 0
	prior.CalculatedRate = nil

	t.session = prior
	t.state = StateTracking
	t.filterState = filter.State{}
	t.lastRecorded = nil
	t.headings.Reset()
	t.swathRing = nil

	if len(prior.Path) > 0 {
		last := prior.Path[len(prior.Path)-1]
		t.lastRecorded = &last
		t.swathRing = swath.Build(pathPoints(prior.Path), t.halfWidthM())
	}

	slog.Info("Tracking resumed", "session", prior.ID, "points", len(prior.Path), "distance_m", prior.TotalDistanceM)
	return t.sessionCopy(), nil
}

// OnFix processes one fix from the location source. Fixes are handled to
// completion, one at a time; rejected fixes update only the live marker
// status, never the path.
func (t *Tracker) OnFix(fix model.TrackedFix) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.state != StateTracking {
		// Keep the live marker fresh even while idle.
		f := fix
		t.lastFix = &f
		return
	}

	res, newState := filter.Evaluate(fix, t.filterState, t.cfg.Filter)
	t.filterState = newState
	t.notifyFixEvaluated(res)

	if !res.Accepted {
		slog.Debug("Fix rejected", "reason", res.Reason, "consecutive", t.filterState.ConsecutiveRejections)
		return
	}
	if res.FailOpen {
		slog.Info("Outlier filter failed open, accepting fix as genuine movement")
	}

	f := fix
	t.lastFix = &f

	if t.detector != nil {
		if pending := t.detector.Observe(t.session.FieldID, fix.Point()); pending != nil {
			t.notifyCrossingDetected(*pending)
		}
	}

	if !t.significant(&fix) {
		// Still shown as the live marker, just not recorded.
		return
	}
	t.record(&fix)
	t.notifyPathUpdated(t.snapshotLocked())
}

// significant reports whether the fix should become a permanent path point:
// the first point of a session always is, later ones only after enough time
// or distance since the last recorded point.
func (t *Tracker) significant(fix *model.TrackedFix) bool {
	if t.lastRecorded == nil {
		return true
	}
	if fix.Time.Sub(t.lastRecorded.Time) >= t.cfg.MinRecordInterval {
		return true
	}
	return geo.Distance(t.lastRecorded.Point(), fix.Point()) > t.cfg.MinRecordDistanceM
}

func (t *Tracker) record(fix *model.TrackedFix) {
	heading := t.headings.Push(fix.Point(), 0)
	if fix.Heading != nil {
		heading = *fix.Heading
	}

	var accuracy, speed float64
	if fix.AccuracyM != nil {
		accuracy = *fix.AccuracyM
	}
	if fix.SpeedMPS != nil {
		speed = *fix.SpeedMPS
	}

	pp := model.PathPoint{
		Lat:      fix.Lat,
		Lon:      fix.Lon,
		Time:     fix.Time,
		Accuracy: accuracy,
		Heading:  heading,
		SpeedMPS: speed,
		SpeedMph: speed * geo.MetersPerSecToMph,
	}

	if t.lastRecorded != nil {
		t.session.TotalDistanceM += geo.Distance(t.lastRecorded.Point(), pp.Point())
	}
	t.session.Path = append(t.session.Path, pp)
	t.lastRecorded = &pp

	t.swathRing = swath.Build(pathPoints(t.session.Path), t.halfWidthM())
}

// Stop finalizes the active session, persists it and transitions to idle.
// On a store failure the finalized session stays in memory and is returned
// alongside the error so the caller can retry the save without losing the
// recorded path.
func (t *Tracker) Stop(ctx context.Context) (*model.Session, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.state != StateTracking {
		return nil, ErrNotTracking
	}

	sess := t.finalizeLocked()
	t.state = StateIdle
	t.session = nil
	t.swathRing = nil
	t.lastRecorded = nil

	slog.Info("Tracking stopped", "session", sess.ID,
		"points", len(sess.Path), "distance_m", sess.TotalDistanceM, "acres", sess.AcresCovered)
	t.notifySessionClosed(sess)

	if err := t.store.SaveSession(ctx, sess); err != nil {
		t.unsaved = sess
		return sess, fmt.Errorf("session %s recorded but not saved: %w", sess.ID, err)
	}
	t.unsaved = nil
	return sess, nil
}

// ConfirmCrossing resolves a pending field crossing: the current session is
// closed and persisted, and a new one opens for the entered field, carrying
// over equipment and storage metadata but resetting path, distance and
// swath. Returns the closed session. A persistence failure is surfaced but
// the new session still opens; the closed session stays retryable in memory.
func (t *Tracker) ConfirmCrossing(ctx context.Context, token string) (*model.Session, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.state != StateTracking {
		return nil, ErrNotTracking
	}
	if t.detector == nil {
		return nil, ErrNoDetector
	}

	entered, err := t.detector.Confirm(token)
	if err != nil {
		return nil, err
	}

	closed := t.finalizeLocked()
	t.notifySessionClosed(closed)

	var saveErr error
	if err := t.store.SaveSession(ctx, closed); err != nil {
		t.unsaved = closed
		saveErr = fmt.Errorf("session %s recorded but not saved: %w", closed.ID, err)
	} else {
		t.unsaved = nil
	}

	t.session = &model.Session{
		ID:              uuid.NewString(),
		FieldID:         entered.ID,
		ManureColor:     closed.ManureColor,
		SpreadWidthFeet: closed.SpreadWidthFeet,
		EquipmentID:     closed.EquipmentID,
		CapacityGallons: closed.CapacityGallons,
		LoadCount:       closed.LoadCount,
		StorageID:       closed.StorageID,
		TargetRate:      closed.TargetRate,
		StartTime:       time.Now(),
	}
	t.swathRing = nil
	t.lastRecorded = nil
	t.headings.Reset()
	// Filter state is kept: the fix stream is continuous across the split.

	slog.Info("Session split at field boundary",
		"closed", closed.ID, "opened", t.session.ID, "field", entered.ID)
	return closed, saveErr
}

// RejectCrossing discards a pending field crossing; the current session
// continues unmodified.
func (t *Tracker) RejectCrossing(token string) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.detector == nil {
		return ErrNoDetector
	}
	return t.detector.Reject(token)
}

// RetrySave retries persisting the last session whose save failed.
func (t *Tracker) RetrySave(ctx context.Context) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.unsaved == nil {
		return ErrNothingToSave
	}
	if err := t.store.SaveSession(ctx, t.unsaved); err != nil {
		return fmt.Errorf("session %s still not saved: %w", t.unsaved.ID, err)
	}
	t.unsaved = nil
	return nil
}

// PendingCrossing returns the crossing awaiting operator confirmation, if any.
func (t *Tracker) PendingCrossing() *field.PendingCrossing {
	if t.detector == nil {
		return nil
	}
	return t.detector.Pending()
}

// State returns the current lifecycle state.
func (t *Tracker) State() State {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.state
}

// Snapshot returns a copy of the live tracking state.
func (t *Tracker) Snapshot() Snapshot {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.snapshotLocked()
}

func (t *Tracker) snapshotLocked() Snapshot {
	snap := Snapshot{State: t.state}
	if t.lastFix != nil {
		f := *t.lastFix
		snap.Live = &f
	}
	if t.session != nil {
		snap.Session = t.sessionCopy()
		snap.Swath = append([]geo.Point(nil), t.swathRing...)
		snap.TotalDistanceM = t.session.TotalDistanceM
		snap.AcresCovered = t.session.Acres()
	}
	return snap
}

// finalizeLocked stamps the end time and computes final metrics.
func (t *Tracker) finalizeLocked() *model.Session {
	sess := t.sessionCopy()
	sess.EndTime = time.Now()
	sess.AcresCovered = sess.Acres()
	sess.CalculatedRate = sess.Rate()
	return sess
}

func (t *Tracker) sessionCopy() *model.Session {
	sess := *t.session
	sess.Path = append([]model.PathPoint(nil), t.session.Path...)
	return &sess
}

func (t *Tracker) halfWidthM() float64 {
	return (t.session.SpreadWidthFeet * geo.FeetToMeters) / 2
}

func pathPoints(path []model.PathPoint) []geo.Point {
	pts := make([]geo.Point, len(path))
	for i := range path {
		pts[i] = path[i].Point()
	}
	return pts
}

func (t *Tracker) notifyFixEvaluated(res filter.Result) {
	for _, o := range t.observers {
		o.OnFixEvaluated(res)
	}
}

func (t *Tracker) notifyPathUpdated(snap Snapshot) {
	for _, o := range t.observers {
		o.OnPathUpdated(snap)
	}
}

func (t *Tracker) notifyCrossingDetected(p field.PendingCrossing) {
	for _, o := range t.observers {
		o.OnCrossingDetected(p)
	}
}

func (t *Tracker) notifySessionClosed(sess *model.Session) {
	for _, o := range t.observers {
		o.OnSessionClosed(sess)
	}
}
