package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/kozaktomas/rollcall/internal/store"
)

// CreateStudent stores a new student and fills in its ID.
func (s *Store) CreateStudent(ctx context.Context, student *store.Student) error {
	result, err := s.db.ExecContext(ctx, `
		INSERT INTO students (name, roll_number, class_name, department)
		VALUES (?, ?, ?, ?)
	`, student.Name, student.RollNumber, student.ClassName, student.Department)
	if err != nil {
		if isUniqueViolation(err) {
			return store.ErrRollNumberTaken
		}
		return fmt.Errorf("insert student: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return fmt.Errorf("getting inserted student ID: %w", err)
	}
	student.ID = id

	// Read back the database-assigned creation time.
	row := s.db.QueryRowContext(ctx, "SELECT created_at FROM students WHERE id = ?", id)
	if err := row.Scan(&student.CreatedAt); err != nil {
		return fmt.Errorf("read student created_at: %w", err)
	}
	return nil
}

// GetStudent retrieves a student by ID, returns nil if not found.
func (s *Store) GetStudent(ctx context.Context, id int64) (*store.Student, error) {
	return s.getStudent(ctx, "id = ?", id)
}

// GetStudentByRoll retrieves a student by roll number, returns nil if not found.
func (s *Store) GetStudentByRoll(ctx context.Context, rollNumber string) (*store.Student, error) {
	return s.getStudent(ctx, "roll_number = ?", rollNumber)
}

func (s *Store) getStudent(ctx context.Context, where string, arg any) (*store.Student, error) {
	query := `
		SELECT id, name, roll_number, class_name, department, created_at
		FROM students
		WHERE ` + where

	var st store.Student
	err := s.db.QueryRowContext(ctx, query, arg).Scan(
		&st.ID, &st.Name, &st.RollNumber, &st.ClassName, &st.Department, &st.CreatedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("query student: %w", err)
	}
	return &st, nil
}

// ListStudents returns all students ordered by name.
func (s *Store) ListStudents(ctx context.Context) ([]store.Student, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, name, roll_number, class_name, department, created_at
		FROM students
		ORDER BY name, id
	`)
	if err != nil {
		return nil, fmt.Errorf("query students: %w", err)
	}
	defer rows.Close()

	var students []store.Student
	for rows.Next() {
		var st store.Student
		if err := rows.Scan(&st.ID, &st.Name, &st.RollNumber, &st.ClassName, &st.Department, &st.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan student: %w", err)
		}
		students = append(students, st)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate students: %w", err)
	}
	return students, nil
}

// CountStudents returns the number of enrolled students.
func (s *Store) CountStudents(ctx context.Context) (int, error) {
	var count int
	if err := s.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM students").Scan(&count); err != nil {
		return 0, fmt.Errorf("count students: %w", err)
	}
	return count, nil
}

// DeleteStudent removes a student. Samples, attendance records and pending
// reviews cascade through the foreign keys.
func (s *Store) DeleteStudent(ctx context.Context, id int64) error {
	if _, err := s.db.ExecContext(ctx, "DELETE FROM students WHERE id = ?", id); err != nil {
		return fmt.Errorf("delete student: %w", err)
	}
	return nil
}
