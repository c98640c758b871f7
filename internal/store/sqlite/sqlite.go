// Package sqlite implements the store interfaces on SQLite. It is the
// default backend: a single file, no server, good enough for one school.
// Embeddings are stored as JSON arrays since SQLite has no vector type.
package sqlite

import (
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/kozaktomas/rollcall/internal/constants"
	"github.com/kozaktomas/rollcall/internal/store"
	"github.com/mattn/go-sqlite3"
)

const schema = `
CREATE TABLE IF NOT EXISTS students (
	id          INTEGER PRIMARY KEY AUTOINCREMENT,
	name        TEXT NOT NULL,
	roll_number TEXT NOT NULL UNIQUE,
	class_name  TEXT NOT NULL,
	department  TEXT NOT NULL,
	created_at  DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
);

CREATE TABLE IF NOT EXISTS face_samples (
	id         INTEGER PRIMARY KEY AUTOINCREMENT,
	student_id INTEGER NOT NULL REFERENCES students(id) ON DELETE CASCADE,
	embedding  TEXT NOT NULL,
	source     TEXT NOT NULL DEFAULT 'enrollment',
	created_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
);
CREATE INDEX IF NOT EXISTS idx_face_samples_student ON face_samples(student_id);

CREATE TABLE IF NOT EXISTS attendance (
	id         INTEGER PRIMARY KEY AUTOINCREMENT,
	student_id INTEGER NOT NULL REFERENCES students(id) ON DELETE CASCADE,
	day        TEXT NOT NULL,
	subject    TEXT NOT NULL,
	status     TEXT NOT NULL DEFAULT 'present',
	confidence REAL NOT NULL DEFAULT 0,
	via_review INTEGER NOT NULL DEFAULT 0,
	marked_at  DATETIME NOT NULL,
	UNIQUE (student_id, day, subject)
);
CREATE INDEX IF NOT EXISTS idx_attendance_day ON attendance(day);

CREATE TABLE IF NOT EXISTS pending_reviews (
	id         INTEGER PRIMARY KEY AUTOINCREMENT,
	student_id INTEGER NOT NULL REFERENCES students(id) ON DELETE CASCADE,
	embedding  TEXT NOT NULL,
	frame      BLOB NOT NULL,
	confidence REAL NOT NULL,
	subject    TEXT NOT NULL,
	created_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
);

CREATE TABLE IF NOT EXISTS timetable (
	id         INTEGER PRIMARY KEY AUTOINCREMENT,
	class_name TEXT NOT NULL,
	weekday    INTEGER NOT NULL,
	start_time TEXT NOT NULL,
	end_time   TEXT NOT NULL,
	subject    TEXT NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_timetable_weekday ON timetable(weekday);

CREATE TABLE IF NOT EXISTS recognition_settings (
	id                      INTEGER PRIMARY KEY,
	confident_threshold     REAL NOT NULL,
	tentative_threshold     REAL NOT NULL,
	max_samples_per_student INTEGER NOT NULL,
	adaptive_learning       INTEGER NOT NULL,
	updated_at              DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
);

CREATE TABLE IF NOT EXISTS sessions (
	id         TEXT PRIMARY KEY,
	username   TEXT NOT NULL,
	created_at INTEGER NOT NULL,
	expires_at INTEGER NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_sessions_expires ON sessions(expires_at);
`

// Store implements store.Store on SQLite. Entity methods live in their own
// files, mirroring the postgres package layout.
type Store struct {
	db *sql.DB
}

// Open opens (or creates) the database file and applies the schema.
func Open(path string) (*Store, error) {
	if path == "" {
		return nil, errors.New("sqlite path is required")
	}

	// Foreign keys are off by default in SQLite, the cascades depend on them.
	db, err := sql.Open("sqlite3", path+"?_foreign_keys=on&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to apply schema: %w", err)
	}

	return &Store{db: db}, nil
}

// DB returns the underlying sql.DB for direct access.
func (s *Store) DB() *sql.DB {
	return s.db
}

// Close closes the database.
func (s *Store) Close() error {
	if err := s.db.Close(); err != nil {
		return fmt.Errorf("closing database: %w", err)
	}
	return nil
}

func isUniqueViolation(err error) bool {
	var sqliteErr sqlite3.Error
	if errors.As(err, &sqliteErr) {
		return sqliteErr.ExtendedCode == sqlite3.ErrConstraintUnique ||
			sqliteErr.ExtendedCode == sqlite3.ErrConstraintPrimaryKey
	}
	return false
}

// encodeEmbedding serializes an embedding as a JSON array for storage.
func encodeEmbedding(embedding []float32) (string, error) {
	if len(embedding) != constants.EmbeddingDim {
		return "", fmt.Errorf("embedding has %d dimensions, expected %d", len(embedding), constants.EmbeddingDim)
	}
	data, err := json.Marshal(embedding)
	if err != nil {
		return "", fmt.Errorf("encode embedding: %w", err)
	}
	return string(data), nil
}

// decodeEmbedding parses a stored JSON embedding. A row that fails to parse
// or has the wrong dimension is corrupt and surfaces as an error, it is
// never silently skipped.
func decodeEmbedding(data string) ([]float32, error) {
	var embedding []float32
	if err := json.Unmarshal([]byte(data), &embedding); err != nil {
		return nil, fmt.Errorf("corrupt stored embedding: %w", err)
	}
	if len(embedding) != constants.EmbeddingDim {
		return nil, fmt.Errorf("corrupt stored embedding: %d dimensions, expected %d",
			len(embedding), constants.EmbeddingDim)
	}
	return embedding, nil
}

// Verify interface compliance.
var _ store.Store = (*Store)(nil)
