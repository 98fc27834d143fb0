package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"swathtrack/pkg/db"
	"swathtrack/pkg/geo"
	"swathtrack/pkg/model"
)

// SQLiteStore implements SessionStore on the local SQLite database.
type SQLiteStore struct {
	db *db.DB
}

// NewSQLiteStore creates a new store.
func NewSQLiteStore(db *db.DB) *SQLiteStore {
	return &SQLiteStore{db: db}
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// SaveSession upserts a session and its path points in one transaction.
func (s *SQLiteStore) SaveSession(ctx context.Context, sess *model.Session) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin tx: %w", err)
	}
	defer tx.Rollback()

	var endTime sql.NullTime
	if !sess.EndTime.IsZero() {
		endTime = sql.NullTime{Time: sess.EndTime, Valid: true}
	}
	var rate sql.NullFloat64
	if sess.CalculatedRate != nil {
		rate = sql.NullFloat64{Float64: *sess.CalculatedRate, Valid: true}
	}

	_, err = tx.ExecContext(ctx,
		`INSERT OR REPLACE INTO session
		 (id, field_id, equipment_id, storage_id, manure_color, spread_width_ft,
		  capacity_gallons, load_count, target_rate, start_time, end_time,
		  distance_m, acres, calculated_rate)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		sess.ID, sess.FieldID, sess.EquipmentID, sess.StorageID, sess.ManureColor,
		sess.SpreadWidthFeet, sess.CapacityGallons, sess.LoadCount, sess.TargetRate,
		sess.StartTime, endTime, sess.TotalDistanceM, sess.AcresCovered, rate)
	if err != nil {
		return fmt.Errorf("failed to save session: %w", err)
	}

	if _, err := tx.ExecContext(ctx, `DELETE FROM session_point WHERE session_id = ?`, sess.ID); err != nil {
		return fmt.Errorf("failed to clear session points: %w", err)
	}

	for i, p := range sess.Path {
		_, err := tx.ExecContext(ctx,
			`INSERT INTO session_point (session_id, seq, lat, lng, time, accuracy, heading, speed)
			 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
			sess.ID, i, p.Lat, p.Lon, p.Time, p.Accuracy, p.Heading, p.SpeedMPS)
		if err != nil {
			return fmt.Errorf("failed to save session point %d: %w", i, err)
		}
	}

	return tx.Commit()
}

// GetSession loads a session and its path. Returns nil when not found.
func (s *SQLiteStore) GetSession(ctx context.Context, id string) (*model.Session, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT id, field_id, equipment_id, storage_id, manure_color, spread_width_ft,
		        capacity_gallons, load_count, target_rate, start_time, end_time,
		        distance_m, acres, calculated_rate
		 FROM session WHERE id = ?`, id)

	sess, err := scanSession(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}

	rows, err := s.db.QueryContext(ctx,
		`SELECT lat, lng, time, accuracy, heading, speed
		 FROM session_point WHERE session_id = ? ORDER BY seq`, id)
	if err != nil {
		return nil, fmt.Errorf("failed to load session points: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var p model.PathPoint
		if err := rows.Scan(&p.Lat, &p.Lon, &p.Time, &p.Accuracy, &p.Heading, &p.SpeedMPS); err != nil {
			return nil, err
		}
		p.SpeedMph = p.SpeedMPS * geo.MetersPerSecToMph
		sess.Path = append(sess.Path, p)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	return sess, nil
}

// ListSessions returns recent sessions, newest first, without path points.
func (s *SQLiteStore) ListSessions(ctx context.Context, limit int) ([]*model.Session, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, field_id, equipment_id, storage_id, manure_color, spread_width_ft,
		        capacity_gallons, load_count, target_rate, start_time, end_time,
		        distance_m, acres, calculated_rate
		 FROM session ORDER BY start_time DESC LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list sessions: %w", err)
	}
	defer rows.Close()

	var out []*model.Session
	for rows.Next() {
		sess, err := scanSession(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, sess)
	}
	return out, rows.Err()
}

type scanner interface {
	Scan(dest ...any) error
}

func scanSession(row scanner) (*model.Session, error) {
	var sess model.Session
	var endTime sql.NullTime
	var rate sql.NullFloat64

	err := row.Scan(
		&sess.ID, &sess.FieldID, &sess.EquipmentID, &sess.StorageID, &sess.ManureColor,
		&sess.SpreadWidthFeet, &sess.CapacityGallons, &sess.LoadCount, &sess.TargetRate,
		&sess.StartTime, &endTime, &sess.TotalDistanceM, &sess.AcresCovered, &rate)
	if err != nil {
		return nil, err
	}

	if endTime.Valid {
		sess.EndTime = endTime.Time
	}
	if rate.Valid {
		sess.CalculatedRate = &rate.Float64
	}
	return &sess, nil
}
