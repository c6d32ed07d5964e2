package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"
)

// Session retrieves one monitoring session by its UUID. Returns nil without
// error when no such session exists.
func (s *Store) Session(ctx context.Context, id string) (*Session, error) {
	db, err := s.getReadDB()
	if err != nil {
		return nil, fmt.Errorf("getting read connection: %w", err)
	}

	var sess Session
	var config sql.NullString
	err = db.QueryRowContext(ctx, selectSessionSQL, id).
		Scan(&sess.ID, &sess.StartTime, &sess.DeviceType, &sess.DeviceID, &config)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("scanning session: %w", err)
	}
	if config.Valid {
		sess.Config = &config.String
	}

	return &sess, nil
}

// Sessions returns all monitoring sessions ordered by start time.
func (s *Store) Sessions(ctx context.Context) (sessions []*Session, err error) {
	db, err := s.getReadDB()
	if err != nil {
		return nil, fmt.Errorf("getting read connection: %w", err)
	}

	rows, err := db.QueryContext(ctx, selectSessionsSQL)
	if err != nil {
		return nil, fmt.Errorf("querying sessions: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var sess Session
		var config sql.NullString
		if err = rows.Scan(&sess.ID, &sess.StartTime, &sess.DeviceType, &sess.DeviceID, &config); err != nil {
			return nil, fmt.Errorf("scanning session: %w", err)
		}
		if config.Valid {
			sess.Config = &config.String
		}
		sessions = append(sessions, &sess)
	}
	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating sessions: %w", err)
	}

	return sessions, nil
}

// Detections returns a session's accepted detections ordered by start time.
func (s *Store) Detections(ctx context.Context, sessionID string) (detections []Detection, err error) {
	db, err := s.getReadDB()
	if err != nil {
		return nil, fmt.Errorf("getting read connection: %w", err)
	}

	rows, err := db.QueryContext(ctx, selectDetectionsSQL, sessionID)
	if err != nil {
		return nil, fmt.Errorf("querying detections: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var d Detection
		var durationMs float64
		if err = rows.Scan(&d.ID, &d.SessionID, &d.Start, &d.End, &durationMs, &d.Peak); err != nil {
			return nil, fmt.Errorf("scanning detection: %w", err)
		}
		d.Duration = time.Duration(durationMs * float64(time.Millisecond))
		detections = append(detections, d)
	}
	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating detections: %w", err)
	}

	return detections, nil
}

// PowerTrace returns a session's power trace ordered by timestamp.
func (s *Store) PowerTrace(ctx context.Context, sessionID string) (points []TracePoint, err error) {
	db, err := s.getReadDB()
	if err != nil {
		return nil, fmt.Errorf("getting read connection: %w", err)
	}

	rows, err := db.QueryContext(ctx, selectTraceSQL, sessionID)
	if err != nil {
		return nil, fmt.Errorf("querying power trace: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var p TracePoint
		if err = rows.Scan(&p.Timestamp, &p.Mean, &p.Peak); err != nil {
			return nil, fmt.Errorf("scanning trace point: %w", err)
		}
		points = append(points, p)
	}
	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating trace points: %w", err)
	}

	return points, nil
}
