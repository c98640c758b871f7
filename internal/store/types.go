package store

import (
	"fmt"
	"time"

	"github.com/kozaktomas/rollcall/internal/constants"
)

// SampleSource tells where a stored face sample came from
type SampleSource string

const (
	// SourceEnrollment marks samples captured during student enrollment.
	// These are never evicted by the adaptive learner.
	SourceEnrollment SampleSource = "enrollment"

	// SourceAdaptive marks samples added automatically from confident or
	// confirmed matches. Oldest adaptive samples are evicted first.
	SourceAdaptive SampleSource = "adaptive"
)

// DayFormat is the wire and storage format for attendance days
const DayFormat = "2006-01-02"

// Day formats a wall-clock instant as an attendance day
func Day(t time.Time) string {
	return t.Format(DayFormat)
}

// Student represents an enrolled student
type Student struct {
	ID         int64
	Name       string
	RollNumber string
	ClassName  string
	Department string
	CreatedAt  time.Time
}

// FaceSample represents a stored face embedding for a student
type FaceSample struct {
	ID        int64
	StudentID int64
	Embedding []float32
	Source    SampleSource
	CreatedAt time.Time
}

// AttendanceRecord represents one student marked present for one subject on one day
type AttendanceRecord struct {
	ID         int64
	StudentID  int64
	Day        string // DayFormat
	Subject    string
	Status     string
	Confidence float64
	ViaReview  bool // true when the record came through a confirmed review
	MarkedAt   time.Time
}

// StatusPresent is the only attendance status the scanner writes
const StatusPresent = "present"

// ReportRow is an attendance record joined with student info for reporting
type ReportRow struct {
	AttendanceRecord
	StudentName string
	RollNumber  string
	ClassName   string
	Department  string
}

// PendingReview represents a tentative match waiting for a human decision
type PendingReview struct {
	ID         int64
	StudentID  int64
	Embedding  []float32
	Frame      []byte // JPEG thumbnail shown to the reviewer
	Confidence float64
	Subject    string
	CreatedAt  time.Time
}

// PendingWithStudent is a pending review joined with the matched student
type PendingWithStudent struct {
	PendingReview
	StudentName string
	RollNumber  string
	ClassName   string
}

// TimetableEntry represents one scheduled period
type TimetableEntry struct {
	ID        int64
	ClassName string
	Weekday   int    // 0 = Monday ... 6 = Sunday
	Start     string // "15:04", zero padded
	End       string
	Subject   string
}

// Validate checks a timetable entry before it is stored
func (e *TimetableEntry) Validate() error {
	if e.ClassName == "" {
		return fmt.Errorf("class name must not be empty")
	}
	if e.Subject == "" {
		return fmt.Errorf("subject must not be empty")
	}
	if e.Weekday < 0 || e.Weekday > 6 {
		return fmt.Errorf("weekday must be between 0 (Monday) and 6 (Sunday), got %d", e.Weekday)
	}
	start, err := time.Parse("15:04", e.Start)
	if err != nil {
		return fmt.Errorf("invalid start time %q: expected HH:MM", e.Start)
	}
	end, err := time.Parse("15:04", e.End)
	if err != nil {
		return fmt.Errorf("invalid end time %q: expected HH:MM", e.End)
	}
	if !start.Before(end) {
		return fmt.Errorf("start time %s must be before end time %s", e.Start, e.End)
	}
	return nil
}

// Settings holds the tunable recognition parameters. They live in the store
// so changes apply without a restart; the engine reads them on every decision.
type Settings struct {
	ConfidentThreshold   float64
	TentativeThreshold   float64
	MaxSamplesPerStudent int
	AdaptiveLearning     bool
	UpdatedAt            time.Time
}

// DefaultSettings returns the settings used until an admin saves their own
func DefaultSettings() Settings {
	return Settings{
		ConfidentThreshold:   constants.DefaultConfidentThreshold,
		TentativeThreshold:   constants.DefaultTentativeThreshold,
		MaxSamplesPerStudent: constants.DefaultMaxSamplesPerStudent,
		AdaptiveLearning:     true,
	}
}

// Validate checks threshold ordering and bounds. Invalid settings must never
// reach the store, so both handlers and backends call this before saving.
func (s Settings) Validate() error {
	if s.ConfidentThreshold < 0 {
		return fmt.Errorf("confident threshold must not be negative, got %g", s.ConfidentThreshold)
	}
	if s.TentativeThreshold < s.ConfidentThreshold {
		return fmt.Errorf("tentative threshold %g must not be below confident threshold %g",
			s.TentativeThreshold, s.ConfidentThreshold)
	}
	if s.TentativeThreshold > constants.MaxMatchDistance {
		return fmt.Errorf("tentative threshold must not exceed %g, got %g",
			constants.MaxMatchDistance, s.TentativeThreshold)
	}
	if s.MaxSamplesPerStudent < 1 {
		return fmt.Errorf("max samples per student must be at least 1, got %d", s.MaxSamplesPerStudent)
	}
	return nil
}

// Session represents an authenticated admin session
type Session struct {
	ID        string
	Username  string
	CreatedAt time.Time
	ExpiresAt time.Time
}
