package sqlite

import (
	"context"
	"fmt"

	"github.com/kozaktomas/rollcall/internal/store"
)

// AddRecord stores a new attendance record and fills in its ID.
// Returns store.ErrDuplicateAttendance when the student already has a record
// for the same day and subject.
func (s *Store) AddRecord(ctx context.Context, record *store.AttendanceRecord) error {
	result, err := s.db.ExecContext(ctx, `
		INSERT INTO attendance (student_id, day, subject, status, confidence, via_review, marked_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`, record.StudentID, record.Day, record.Subject, record.Status,
		record.Confidence, record.ViaReview, record.MarkedAt)
	if err != nil {
		if isUniqueViolation(err) {
			return store.ErrDuplicateAttendance
		}
		return fmt.Errorf("insert attendance record: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return fmt.Errorf("getting inserted record ID: %w", err)
	}
	record.ID = id
	return nil
}

// IsMarked checks whether a record exists for (student, day, subject).
func (s *Store) IsMarked(ctx context.Context, studentID int64, day, subject string) (bool, error) {
	var count int
	err := s.db.QueryRowContext(ctx, `
		SELECT COUNT(*) FROM attendance WHERE student_id = ? AND day = ? AND subject = ?
	`, studentID, day, subject).Scan(&count)
	if err != nil {
		return false, fmt.Errorf("check attendance exists: %w", err)
	}
	return count > 0, nil
}

// ListRecords returns attendance rows for a day joined with student info.
// An empty className matches all classes.
func (s *Store) ListRecords(ctx context.Context, day, className string, limit int) ([]store.ReportRow, error) {
	query := `
		SELECT a.id, a.student_id, a.day, a.subject, a.status, a.confidence, a.via_review, a.marked_at,
		       s.name, s.roll_number, s.class_name, s.department
		FROM attendance a
		JOIN students s ON s.id = a.student_id
		WHERE a.day = ? AND (? = '' OR s.class_name = ?)
		ORDER BY a.id
		LIMIT ?
	`

	rows, err := s.db.QueryContext(ctx, query, day, className, className, limit)
	if err != nil {
		return nil, fmt.Errorf("query attendance records: %w", err)
	}
	defer rows.Close()

	var records []store.ReportRow
	for rows.Next() {
		var r store.ReportRow
		if err := rows.Scan(
			&r.ID, &r.StudentID, &r.Day, &r.Subject, &r.Status, &r.Confidence, &r.ViaReview, &r.MarkedAt,
			&r.StudentName, &r.RollNumber, &r.ClassName, &r.Department,
		); err != nil {
			return nil, fmt.Errorf("scan attendance record: %w", err)
		}
		records = append(records, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate attendance records: %w", err)
	}
	return records, nil
}

// CountRecordsForDay returns the number of records for a day.
func (s *Store) CountRecordsForDay(ctx context.Context, day string) (int, error) {
	var count int
	err := s.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM attendance WHERE day = ?", day).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("count attendance records: %w", err)
	}
	return count, nil
}

// RecentConfidences returns the confidence values of the most recent records.
func (s *Store) RecentConfidences(ctx context.Context, limit int) ([]float64, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT confidence FROM attendance ORDER BY id DESC LIMIT ?
	`, limit)
	if err != nil {
		return nil, fmt.Errorf("query recent confidences: %w", err)
	}
	defer rows.Close()

	var confidences []float64
	for rows.Next() {
		var c float64
		if err := rows.Scan(&c); err != nil {
			return nil, fmt.Errorf("scan confidence: %w", err)
		}
		confidences = append(confidences, c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate confidences: %w", err)
	}
	return confidences, nil
}
