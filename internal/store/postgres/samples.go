package postgres

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/kozaktomas/rollcall/internal/constants"
	"github.com/kozaktomas/rollcall/internal/store"
	"github.com/lib/pq"
	"github.com/pgvector/pgvector-go"
)

// AddSample stores a new face sample and fills in its ID.
func (s *Store) AddSample(ctx context.Context, sample *store.FaceSample) error {
	if len(sample.Embedding) != constants.EmbeddingDim {
		return fmt.Errorf("embedding has %d dimensions, expected %d", len(sample.Embedding), constants.EmbeddingDim)
	}

	vec := pgvector.NewVector(sample.Embedding)
	err := s.pool.QueryRow(ctx, `
		INSERT INTO face_samples (student_id, embedding, source)
		VALUES ($1, $2::vector, $3)
		RETURNING id, created_at
	`, sample.StudentID, vec, string(sample.Source)).Scan(&sample.ID, &sample.CreatedAt)
	if err != nil {
		return fmt.Errorf("insert face sample: %w", err)
	}
	return nil
}

// ListSamples returns a student's samples in creation order.
func (s *Store) ListSamples(ctx context.Context, studentID int64) ([]store.FaceSample, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT id, student_id, embedding, source, created_at
		FROM face_samples
		WHERE student_id = $1
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
	rows, err := s.pool.Query(ctx, `
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
	rows, err := s.pool.Query(ctx, "SELECT source, COUNT(*) FROM face_samples GROUP BY source")
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
	if _, err := s.pool.Exec(ctx, "DELETE FROM face_samples WHERE id = ANY($1)", pq.Array(ids)); err != nil {
		return fmt.Errorf("delete face samples: %w", err)
	}
	return nil
}

func scanSamples(rows *sql.Rows) ([]store.FaceSample, error) {
	var samples []store.FaceSample
	for rows.Next() {
		var sample store.FaceSample
		var vec pgvector.Vector
		var source string
		if err := rows.Scan(&sample.ID, &sample.StudentID, &vec, &source, &sample.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan face sample: %w", err)
		}
		sample.Embedding = vec.Slice()
		sample.Source = store.SampleSource(source)
		samples = append(samples, sample)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate face samples: %w", err)
	}
	return samples, nil
}
