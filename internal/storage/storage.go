package storage

import (
	"context"
	"database/sql"
	_ "embed"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/google/uuid"
	_ "github.com/mattn/go-sqlite3"
)

//go:embed schema.sql
var schemaSQL string

// Store is the sqlite-backed event log: sessions, accepted detections and
// the downsampled power trace used by the survey tool. Connections are
// opened lazily; a read-only store never creates the file.
type Store struct {
	dbPath string

	writeDB     *sql.DB
	writeDBOnce sync.Once
	writeDBErr  error

	readDB     *sql.DB
	readDBOnce sync.Once
	readDBErr  error

	closeOnce sync.Once
	closeErr  error
}

// New creates a store for the database at dbPath. The schema is initialized
// on first write.
func New(dbPath string) *Store {
	return &Store{dbPath: dbPath}
}

func (s *Store) getWriteDB() (*sql.DB, error) {
	s.writeDBOnce.Do(func() {
		db, err := sql.Open("sqlite3", fmt.Sprintf("file:%s?%s", s.dbPath, "_journal_mode=WAL&_synchronous=NORMAL"))
		if err != nil {
			s.writeDBErr = fmt.Errorf("opening write connection: %w", err)
			return
		}

		if _, err = db.Exec(schemaSQL); err != nil {
			_ = db.Close()
			s.writeDBErr = fmt.Errorf("initializing schema: %w", err)
			return
		}

		s.writeDB = db
	})

	return s.writeDB, s.writeDBErr
}

func (s *Store) getReadDB() (*sql.DB, error) {
	s.readDBOnce.Do(func() {
		db, err := sql.Open("sqlite3", fmt.Sprintf("file:%s?%s", s.dbPath, "mode=ro"))
		if err != nil {
			s.readDBErr = fmt.Errorf("opening read connection: %w", err)
			return
		}
		s.readDB = db
	})

	return s.readDB, s.readDBErr
}

// CreateSession inserts a new monitoring session and returns its UUID.
// config can be a string, []byte, or any JSON-serializable value.
func (s *Store) CreateSession(ctx context.Context, deviceType, deviceID string, config any) (sessionID string, err error) {
	var configData sql.NullString

	if config != nil {
		switch v := config.(type) {
		case string:
			configData = sql.NullString{String: v, Valid: true}

		case []byte:
			configData = sql.NullString{String: string(v), Valid: true}

		default:
			var p []byte
			if p, err = json.Marshal(config); err != nil {
				return "", fmt.Errorf("marshaling config: %w", err)
			}
			configData = sql.NullString{String: string(p), Valid: true}
		}
	}

	db, err := s.getWriteDB()
	if err != nil {
		return "", fmt.Errorf("getting write connection: %w", err)
	}

	sessionID = uuid.NewString()
	if _, err = db.ExecContext(ctx, insertSessionSQL, sessionID, deviceType, deviceID, configData); err != nil {
		return "", fmt.Errorf("inserting session: %w", err)
	}

	return sessionID, nil
}

// InsertDetection appends one accepted detection to the session's event log.
func (s *Store) InsertDetection(ctx context.Context, sessionID string, d Detection) error {
	db, err := s.getWriteDB()
	if err != nil {
		return fmt.Errorf("getting write connection: %w", err)
	}

	_, err = db.ExecContext(ctx, insertDetectionSQL,
		sessionID,
		d.Start.UTC(),
		d.End.UTC(),
		float64(d.Duration.Microseconds())/1000,
		d.Peak,
	)
	if err != nil {
		return fmt.Errorf("inserting detection: %w", err)
	}

	return nil
}

// InsertTracePoints batch-inserts power trace points for a session in a
// single transaction.
func (s *Store) InsertTracePoints(ctx context.Context, sessionID string, points []TracePoint) (err error) {
	if len(points) == 0 {
		return nil
	}

	db, err := s.getWriteDB()
	if err != nil {
		return fmt.Errorf("getting write connection: %w", err)
	}

	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	defer func() {
		if err != nil {
			err = errors.Join(err, tx.Rollback())
		}
	}()

	values := make([]interface{}, 0, len(points)*4)

	var sb strings.Builder
	sb.WriteString(insertTraceSQL)

	for i, p := range points {
		values = append(values, sessionID, p.Timestamp.UTC(), p.Mean, p.Peak)

		if i > 0 {
			sb.WriteString(", ")
		}
		sb.WriteString("(?, ?, ?, ?)")
	}

	if _, err = tx.ExecContext(ctx, sb.String(), values...); err != nil {
		return fmt.Errorf("batch inserting trace points: %w", err)
	}

	if err = tx.Commit(); err != nil {
		return fmt.Errorf("committing transaction: %w", err)
	}

	return nil
}

// Close releases all database connections. Safe to call multiple times.
func (s *Store) Close() error {
	s.closeOnce.Do(func() {
		var writeErr, readErr error

		if s.writeDB != nil {
			writeErr = s.writeDB.Close()
			s.writeDB = nil
		}

		if s.readDB != nil {
			readErr = s.readDB.Close()
			s.readDB = nil
		}

		s.closeErr = errors.Join(writeErr, readErr)
	})

	return s.closeErr
}
