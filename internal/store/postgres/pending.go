package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/kozaktomas/rollcall/internal/store"
	"github.com/pgvector/pgvector-go"
)

// CreatePending stores a new pending review and fills in its ID.
func (s *Store) CreatePending(ctx context.Context, pending *store.PendingReview) error {
	vec := pgvector.NewVector(pending.Embedding)
	err := s.pool.QueryRow(ctx, `
		INSERT INTO pending_reviews (student_id, embedding, frame, confidence, subject)
		VALUES ($1, $2::vector, $3, $4, $5)
		RETURNING id, created_at
	`, pending.StudentID, vec, pending.Frame, pending.Confidence, pending.Subject,
	).Scan(&pending.ID, &pending.CreatedAt)
	if err != nil {
		return fmt.Errorf("insert pending review: %w", err)
	}
	return nil
}

// GetPending retrieves a pending review by ID, returns nil if not found.
func (s *Store) GetPending(ctx context.Context, id int64) (*store.PendingReview, error) {
	var p store.PendingReview
	var vec pgvector.Vector
	err := s.pool.QueryRow(ctx, `
		SELECT id, student_id, embedding, frame, confidence, subject, created_at
		FROM pending_reviews
		WHERE id = $1
	`, id).Scan(&p.ID, &p.StudentID, &vec, &p.Frame, &p.Confidence, &p.Subject, &p.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("query pending review: %w", err)
	}
	p.Embedding = vec.Slice()
	return &p, nil
}

// ListPending returns pending reviews joined with student info, oldest first.
func (s *Store) ListPending(ctx context.Context, limit int) ([]store.PendingWithStudent, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT p.id, p.student_id, p.embedding, p.frame, p.confidence, p.subject, p.created_at,
		       s.name, s.roll_number, s.class_name
		FROM pending_reviews p
		JOIN students s ON s.id = p.student_id
		ORDER BY p.created_at, p.id
		LIMIT $1
	`, limit)
	if err != nil {
		return nil, fmt.Errorf("query pending reviews: %w", err)
	}
	defer rows.Close()

	var pending []store.PendingWithStudent
	for rows.Next() {
		var p store.PendingWithStudent
		var vec pgvector.Vector
		if err := rows.Scan(
			&p.ID, &p.StudentID, &vec, &p.Frame, &p.Confidence, &p.Subject, &p.CreatedAt,
			&p.StudentName, &p.RollNumber, &p.ClassName,
		); err != nil {
			return nil, fmt.Errorf("scan pending review: %w", err)
		}
		p.Embedding = vec.Slice()
		pending = append(pending, p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate pending reviews: %w", err)
	}
	return pending, nil
}

// DeletePending removes a pending review.
func (s *Store) DeletePending(ctx context.Context, id int64) error {
	if _, err := s.pool.Exec(ctx, "DELETE FROM pending_reviews WHERE id = $1", id); err != nil {
		return fmt.Errorf("delete pending review: %w", err)
	}
	return nil
}

// CountPending returns the number of pending reviews.
func (s *Store) CountPending(ctx context.Context) (int, error) {
	var count int
	if err := s.pool.QueryRow(ctx, "SELECT COUNT(*) FROM pending_reviews").Scan(&count); err != nil {
		return 0, fmt.Errorf("count pending reviews: %w", err)
	}
	return count, nil
}
