package store

import (
	"context"

	"swathtrack/pkg/model"
)

// SessionStore handles tracking session persistence. The tracker treats a
// failed save as retryable: it keeps the session in memory and surfaces the
// error to its caller rather than discarding recorded path data.
type SessionStore interface {
	SaveSession(ctx context.Context, sess *model.Session) error
	GetSession(ctx context.Context, id string) (*model.Session, error)
	ListSessions(ctx context.Context, limit int) ([]*model.Session, error)
}
