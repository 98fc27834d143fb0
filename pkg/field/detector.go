package field

import (
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"swathtrack/pkg/geo"
	"swathtrack/pkg/model"
)

var (
	// ErrNoPendingCrossing is returned when confirming or rejecting with
	// no crossing awaiting a decision.
	ErrNoPendingCrossing = errors.New("no pending field crossing")
	// ErrTokenMismatch is returned when the supplied token does not match
	// the pending crossing.
	ErrTokenMismatch = errors.New("crossing token does not match pending crossing")
)

// PendingCrossing is a detected-but-unconfirmed transition into a new field.
// Detection never mutates session state on its own; the operator resolves
// the pending change via Confirm or Reject.
type PendingCrossing struct {
	Token      string      `json:"token"`
	Field      model.Field `json:"field"`
	DetectedAt time.Time   `json:"detectedAt"`
}

// Detector checks the tracked position against the field list and runs the
// two-phase crossing confirmation protocol. The field list is read-only from
// the detector's perspective and may be swapped wholesale between fixes.
//
// Fields are assumed non-overlapping in practice; where they do overlap the
// first field in list order wins. This is deliberate, documented ambiguity.
type Detector struct {
	mu              sync.Mutex
	fields          []model.Field
	index           *Index
	pending         *PendingCrossing
	rejectedFieldID string
}

// NewDetector creates a detector over the given fields.
func NewDetector(fields []model.Field, resolution int) *Detector {
	return &Detector{
		fields: fields,
		index:  NewIndex(fields, resolution),
	}
}

// SetFields replaces the field list, e.g. after the collaborator refreshed
// boundaries. Any pending crossing survives; it references a field copy.
func (d *Detector) SetFields(fields []model.Field) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.fields = fields
	d.index = NewIndex(fields, d.index.resolution)
}

// Fields returns the current field list.
func (d *Detector) Fields() []model.Field {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.fields
}

// CheckCrossing returns the first field in list order that contains p and
// whose id differs from currentFieldID, or nil when p is in no field or
// still in the current one.
func (d *Detector) CheckCrossing(currentFieldID string, p geo.Point) *model.Field {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.checkCrossingLocked(currentFieldID, p)
}

func (d *Detector) checkCrossingLocked(currentFieldID string, p geo.Point) *model.Field {
	for _, i := range d.index.Candidates(p) {
		f := &d.fields[i]
		if f.ID == currentFieldID {
			continue
		}
		if f.Contains(p) {
			out := *f
			return &out
		}
	}
	return nil
}

// Observe evaluates a newly accepted position. When it detects a transition
// into a new field it records and returns a pending crossing; otherwise it
// returns nil. While a pending crossing awaits resolution further checks are
// suppressed, and a field the operator rejected stays muted until the
// position leaves it.
func (d *Detector) Observe(currentFieldID string, p geo.Point) *PendingCrossing {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.pending != nil {
		return nil
	}

	match := d.checkCrossingLocked(currentFieldID, p)
	if match == nil {
		// Outside any foreign field; a previously rejected field can
		// trigger again once re-entered.
		d.rejectedFieldID = ""
		return nil
	}
	if match.ID == d.rejectedFieldID {
		return nil
	}
	d.rejectedFieldID = ""

	d.pending = &PendingCrossing{
		Token:      uuid.NewString(),
		Field:      *match,
		DetectedAt: time.Now(),
	}
	slog.Info("Field crossing detected", "field", match.ID, "name", match.Name, "token", d.pending.Token)
	return d.pending
}

// Pending returns the crossing awaiting confirmation, or nil.
func (d *Detector) Pending() *PendingCrossing {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.pending
}

// Confirm resolves the pending crossing identified by token and returns the
// field entered. The caller (the tracker) performs the session split.
func (d *Detector) Confirm(token string) (*model.Field, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.pending == nil {
		return nil, ErrNoPendingCrossing
	}
	if d.pending.Token != token {
		return nil, ErrTokenMismatch
	}

	f := d.pending.Field
	d.pending = nil
	d.rejectedFieldID = ""
	return &f, nil
}

// Reject discards the pending crossing identified by token. The rejected
// field will not re-trigger until the position leaves it.
func (d *Detector) Reject(token string) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.pending == nil {
		return ErrNoPendingCrossing
	}
	if d.pending.Token != token {
		return ErrTokenMismatch
	}

	d.rejectedFieldID = d.pending.Field.ID
	d.pending = nil
	return nil
}
