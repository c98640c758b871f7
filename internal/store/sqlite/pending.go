package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/kozaktomas/rollcall/internal/store"
)

// CreatePending stores a new pending review and fills in its ID.
func (s *Store) CreatePending(ctx context.Context, pending *store.PendingReview) error {
	encoded, err := encodeEmbedding(pending.Embedding)
	if err != nil {
		return err
	}

	result, err := s.db.ExecContext(ctx, `
		INSERT INTO pending_reviews (student_id, embedding, frame, confidence, subject)
		VALUES (?, ?, ?, ?, ?)
	`, pending.StudentID, encoded, pending.Frame, pending.Confidence, pending.Subject)
	if err != nil {
		return fmt.Errorf("insert pending review: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return fmt.Errorf("getting inserted pending ID: %w", err)
	}
	pending.ID = id

	row := s.db.QueryRowContext(ctx, "SELECT created_at FROM pending_reviews WHERE id = ?", id)
	if err := row.Scan(&pending.CreatedAt); err != nil {
		return fmt.Errorf("read pending created_at: %w", err)
	}
	return nil
}

// GetPending retrieves a pending review by ID, returns nil if not found.
func (s *Store) GetPending(ctx context.Context, id int64) (*store.PendingReview, error) {
	var p store.PendingReview
	var encoded string
	err := s.db.QueryRowContext(ctx, `
		SELECT id, student_id, embedding, frame, confidence, subject, created_at
		FROM pending_reviews
		WHERE id = ?
	`, id).Scan(&p.ID, &p.StudentID, &encoded, &p.Frame, &p.Confidence, &p.Subject, &p.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("query pending review: %w", err)
	}

	p.Embedding, err = decodeEmbedding(encoded)
	if err != nil {
		return nil, fmt.Errorf("pending %d: %w", p.ID, err)
	}
	return &p, nil
}

// ListPending returns pending reviews joined with student info, oldest first.
func (s *Store) ListPending(ctx context.Context, limit int) ([]store.PendingWithStudent, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT p.id, p.student_id, p.embedding, p.frame, p.confidence, p.subject, p.created_at,
		       s.name, s.roll_number, s.class_name
		FROM pending_reviews p
		JOIN students s ON s.id = p.student_id
		ORDER BY p.id
		LIMIT ?
	`, limit)
	if err != nil {
		return nil, fmt.Errorf("query pending reviews: %w", err)
	}
	defer rows.Close()

	var pending []store.PendingWithStudent
	for rows.Next() {
		var p store.PendingWithStudent
		var encoded string
		if err := rows.Scan(
			&p.ID, &p.StudentID, &encoded, &p.Frame, &p.Confidence, &p.Subject, &p.CreatedAt,
			&p.StudentName, &p.RollNumber, &p.ClassName,
		); err != nil {
			return nil, fmt.Errorf("scan pending review: %w", err)
		}
		p.Embedding, err = decodeEmbedding(encoded)
		if err != nil {
			return nil, fmt.Errorf("pending %d: %w", p.ID, err)
		}
		pending = append(pending, p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate pending reviews: %w", err)
	}
	return pending, nil
}

// DeletePending removes a pending review.
func (s *Store) DeletePending(ctx context.Context, id int64) error {
	if _, err := s.db.ExecContext(ctx, "DELETE FROM pending_reviews WHERE id = ?", id); err != nil {
		return fmt.Errorf("delete pending review: %w", err)
	}
	return nil
}

// CountPending returns the number of pending reviews.
func (s *Store) CountPending(ctx context.Context) (int, error) {
	var count int
	if err := s.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM pending_reviews").Scan(&count); err != nil {
		return 0, fmt.Errorf("count pending reviews: %w", err)
	}
	return count, nil
}
