// Package telemetry records non-content call metrics — duration,
// language, result/alternative counts, diarization speaker count — and
// exposes OpenTelemetry metric instruments for them (spec.md's
// Non-goal: never transcript text or audio content). It is an optional
// ambient component: a Store is only built when config.Config.TelemetryDB
// is set.
package telemetry

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"
)

// CallStatus is the terminal outcome recorded for a call.
type CallStatus string

const (
	StatusOK         CallStatus = "ok"
	StatusCancelled  CallStatus = "cancelled"
	StatusFailed     CallStatus = "failed"
	StatusInvalidArg CallStatus = "invalid_argument"
)

// CallRecord is one completed Recognize or StreamingRecognize call's
// non-content summary.
type CallRecord struct {
	ID               string
	LanguageCode     string
	Streaming        bool
	StartedAt        time.Time
	Duration         time.Duration
	ResultCount      int
	AlternativeCount int
	SpeakerCount     int
	Status           CallStatus
}

// Store is a single-writer SQLite-backed log of CallRecords, following
// NeboLoop-nebo/internal/db/sqlite.go's WAL-mode, single-connection
// discipline (SQLite serializes writers poorly; one *sql.DB connection
// avoids SQLITE_BUSY under concurrent streaming calls).
type Store struct {
	db *sql.DB
}

// OpenStore opens (creating if necessary) the SQLite database at path and
// runs its migrations.
func OpenStore(path string) (*Store, error) {
	dir := filepath.Dir(path)
	if dir != "" && dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("telemetry: create database directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite", path+"?_pragma=journal_mode(WAL)&_pragma=synchronous(NORMAL)&_pragma=foreign_keys(1)")
	if err != nil {
		return nil, fmt.Errorf("telemetry: open database: %w", err)
	}
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("telemetry: ping database: %w", err)
	}

	if err := runMigrations(db); err != nil {
		db.Close()
		return nil, err
	}

	return &Store{db: db}, nil
}

// Close releases the underlying database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// RecordCall persists rec, assigning it a fresh ID if one wasn't set.
func (s *Store) RecordCall(ctx context.Context, rec CallRecord) error {
	if rec.ID == "" {
		rec.ID = uuid.NewString()
	}
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO calls (id, language_code, streaming, started_at, duration_ms, result_count, alternative_count, speaker_count, status)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		rec.ID, rec.LanguageCode, rec.Streaming, rec.StartedAt.UTC().Format(time.RFC3339Nano),
		rec.Duration.Milliseconds(), rec.ResultCount, rec.AlternativeCount, rec.SpeakerCount, string(rec.Status),
	)
	if err != nil {
		return fmt.Errorf("telemetry: record call: %w", err)
	}
	return nil
}

// CountByLanguage returns the number of recorded calls per language code,
// used by cmd/speech-server's periodic registry-stats log.
func (s *Store) CountByLanguage(ctx context.Context) (map[string]int64, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT language_code, COUNT(*) FROM calls GROUP BY language_code`)
	if err != nil {
		return nil, fmt.Errorf("telemetry: count by language: %w", err)
	}
	defer rows.Close()

	counts := make(map[string]int64)
	for rows.Next() {
		var lang string
		var n int64
		if err := rows.Scan(&lang, &n); err != nil {
			return nil, fmt.Errorf("telemetry: scan count row: %w", err)
		}
		counts[lang] = n
	}
	return counts, rows.Err()
}
