// Package store defines the persistent entities of the attendance system and
// the repository interfaces its backends implement. Two backends exist:
// postgres (pgvector embeddings) and sqlite (JSON embeddings, the default),
// plus an in-memory implementation used by tests.
package store

import (
	"context"
	"errors"
)

// ErrDuplicateAttendance is returned by AddRecord when the student already
// has a record for the same day and subject. Callers treat it as a benign
// already-marked signal, never as a failure.
var ErrDuplicateAttendance = errors.New("attendance already recorded for this day and subject")

// ErrRollNumberTaken is returned by CreateStudent when the roll number is
// already assigned to another student.
var ErrRollNumberTaken = errors.New("roll number already taken")

// StudentReader provides read-only access to enrolled students
type StudentReader interface {
	// GetStudent retrieves a student by ID, returns nil if not found
	GetStudent(ctx context.Context, id int64) (*Student, error)
	// GetStudentByRoll retrieves a student by roll number, returns nil if not found
	GetStudentByRoll(ctx context.Context, rollNumber string) (*Student, error)
	// ListStudents returns all students ordered by name
	ListStudents(ctx context.Context) ([]Student, error)
	// CountStudents returns the number of enrolled students
	CountStudents(ctx context.Context) (int, error)
}

// StudentWriter provides write access to enrolled students
type StudentWriter interface {
	StudentReader

	// CreateStudent stores a new student and fills in its ID.
	// Returns ErrRollNumberTaken when the roll number is already used.
	CreateStudent(ctx context.Context, student *Student) error
	// DeleteStudent removes a student together with their samples,
	// attendance records and pending reviews
	DeleteStudent(ctx context.Context, id int64) error
}

// SampleReader provides read-only access to face samples
type SampleReader interface {
	// ListSamples returns a student's samples in creation order
	ListSamples(ctx context.Context, studentID int64) ([]FaceSample, error)
	// AllSamples returns every sample ordered by student ID ascending,
	// then creation order. The known-set cache depends on this ordering.
	AllSamples(ctx context.Context) ([]FaceSample, error)
	// CountSamplesBySource returns sample counts grouped by provenance
	CountSamplesBySource(ctx context.Context) (map[SampleSource]int, error)
}

// SampleWriter provides write access to face samples
type SampleWriter interface {
	SampleReader

	// AddSample stores a new face sample and fills in its ID
	AddSample(ctx context.Context, sample *FaceSample) error
	// DeleteSamples removes samples by ID
	DeleteSamples(ctx context.Context, ids []int64) error
}

// AttendanceReader provides read-only access to the attendance ledger
type AttendanceReader interface {
	// IsMarked checks whether a record exists for (student, day, subject)
	IsMarked(ctx context.Context, studentID int64, day, subject string) (bool, error)
	// ListRecords returns attendance rows for a day, optionally filtered by
	// class name (empty string means all classes), joined with student info
	ListRecords(ctx context.Context, day, className string, limit int) ([]ReportRow, error)
	// CountRecordsForDay returns the number of records for a day
	CountRecordsForDay(ctx context.Context, day string) (int, error)
	// RecentConfidences returns the confidence values of the most recent
	// records, newest first
	RecentConfidences(ctx context.Context, limit int) ([]float64, error)
}

// AttendanceWriter provides write access to the attendance ledger
type AttendanceWriter interface {
	AttendanceReader

	// AddRecord stores a new attendance record and fills in its ID.
	// Returns ErrDuplicateAttendance when (student, day, subject) exists.
	AddRecord(ctx context.Context, record *AttendanceRecord) error
}

// PendingStore manages tentative matches waiting for review
type PendingStore interface {
	// CreatePending stores a new pending review and fills in its ID
	CreatePending(ctx context.Context, pending *PendingReview) error
	// GetPending retrieves a pending review by ID, returns nil if not found
	GetPending(ctx context.Context, id int64) (*PendingReview, error)
	// ListPending returns pending reviews joined with student info, oldest first
	ListPending(ctx context.Context, limit int) ([]PendingWithStudent, error)
	// DeletePending removes a pending review
	DeletePending(ctx context.Context, id int64) error
	// CountPending returns the number of pending reviews
	CountPending(ctx context.Context) (int, error)
}

// TimetableStore manages the weekly schedule
type TimetableStore interface {
	// AddEntry stores a new timetable entry and fills in its ID
	AddEntry(ctx context.Context, entry *TimetableEntry) error
	// ListEntries returns all entries ordered by weekday, start time, class
	ListEntries(ctx context.Context) ([]TimetableEntry, error)
	// EntriesForWeekday returns entries for one weekday ordered by start time, class
	EntriesForWeekday(ctx context.Context, weekday int) ([]TimetableEntry, error)
	// DeleteEntry removes a timetable entry
	DeleteEntry(ctx context.Context, id int64) error
}

// SettingsStore manages the recognition settings singleton
type SettingsStore interface {
	// GetSettings returns the stored settings, or DefaultSettings when no
	// row has been saved yet
	GetSettings(ctx context.Context) (Settings, error)
	// SaveSettings validates and persists the settings
	SaveSettings(ctx context.Context, settings Settings) error
}

// SessionStore persists admin sessions so logins survive restarts
type SessionStore interface {
	// SaveSession inserts or refreshes a session
	SaveSession(ctx context.Context, session *Session) error
	// GetSession retrieves a session by ID, returns nil if missing or expired
	GetSession(ctx context.Context, id string) (*Session, error)
	// DeleteSession removes a session
	DeleteSession(ctx context.Context, id string) error
	// DeleteExpiredSessions removes expired sessions, returns how many
	DeleteExpiredSessions(ctx context.Context) (int64, error)
}

// Store combines every repository the service needs
type Store interface {
	StudentWriter
	SampleWriter
	AttendanceWriter
	PendingStore
	TimetableStore
	SettingsStore
	SessionStore

	// Close releases the underlying connections
	Close() error
}
