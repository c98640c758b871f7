package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"github.com/kozaktomas/rollcall/internal/store"
)

// AddSample stores a new face sample and fills in its ID.
func (s *Store) AddSample(ctx context.Context, sample *store.FaceSample) error {
	encoded, err := encodeEmbedding(sample.Embedding)
	if err != nil {
		return err
	}

	result, err := s.db.ExecContext(ctx, `
		INSERT INTO face_samples (student_id, embedding, source)
		VALUES (?, ?, ?)
	`, sample.StudentID, encoded, string(sample.Source))
	if err != nil {
		return fmt.Errorf("insert face sample: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return fmt.Errorf("getting inserted sample ID: %w", err)
	}
	sample.ID = id

	row := s.db.QueryRowContext(ctx, "SELECT created_at FROM face_samples WHERE id = ?", id)
	if err := row.Scan(&sample.CreatedAt); err != nil {
		return fmt.Errorf("read sample created_at: %w", err)
	}
	return nil
}

// ListSamples returns a student's samples in creation order.
func (s *Store) ListSamples(ctx context.Context, studentID int64) ([]store.FaceSample, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, student_id, embedding, source, created_at
		FROM face_samples
		WHERE student_id = ?
		ORDER BY id
	`, studentID)
	if err != nil {
		return nil, fmt.Errorf("query face samples: %w", err)
	}
	defer rows.Close()

	return scanSamples(rows)
}

// AllSamples returns every sample ordered by student ID, then creation order.
// The known-set cache relies on this ordering for deterministic matching.
func (s *Store) AllSamples(ctx context.Context) ([]store.FaceSample, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, student_id, embedding, source, created_at
		FROM face_samples
		ORDER BY student_id, id
	`)
	if err != nil {
		return nil, fmt.Errorf("query all face samples: %w", err)
	}
	defer rows.Close()

	return scanSamples(rows)
}

// CountSamplesBySource returns sample counts grouped by provenance.
func (s *Store) CountSamplesBySource(ctx context.Context) (map[store.SampleSource]int, error) {
	rows, err := s.db.QueryContext(ctx, "SELECT source, COUNT(*) FROM face_samples GROUP BY source")
	if err != nil {
		return nil, fmt.Errorf("count face samples: %w", err)
	}
	defer rows.Close()

	counts := make(map[store.SampleSource]int)
	for rows.Next() {
		var source string
		var count int
		if err := rows.Scan(&source, &count); err != nil {
			return nil, fmt.Errorf("scan sample count: %w", err)
		}
		counts[store.SampleSource(source)] = count
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate sample counts: %w", err)
	}
	return counts, nil
}

// DeleteSamples removes samples by ID.
func (s *Store) DeleteSamples(ctx context.Context, ids []int64) error {
	if len(ids) == 0 {
		return nil
	}

	placeholders := strings.TrimSuffix(strings.Repeat("?,", len(ids)), ",")
	args := make([]any, len(ids))
	for i, id := range ids {
		args[i] = id
	}

	query := "DELETE FROM face_samples WHERE id IN (" + placeholders + ")"
	if _, err := s.db.ExecContext(ctx, query, args...); err != nil {
		return fmt.Errorf("delete face samples: %w", err)
	}
	return nil
}

func scanSamples(rows *sql.Rows) ([]store.FaceSample, error) {
	var samples []store.FaceSample
	for rows.Next() {
		var sample store.FaceSample
		var encoded string
		var source string
		if err := rows.Scan(&sample.ID, &sample.StudentID, &encoded, &source, &sample.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan face sample: %w", err)
		}
		embedding, err := decodeEmbedding(encoded)
		if err != nil {
			return nil, fmt.Errorf("sample %d: %w", sample.ID, err)
		}
		sample.Embedding = embedding
		sample.Source = store.SampleSource(source)
		samples = append(samples, sample)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate face samples: %w", err)
	}
	return samples, nil
}
