package roster

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	_ "github.com/go-sql-driver/mysql"
)

// SISPool manages a read-only connection to the school information system.
type SISPool struct {
	db *sql.DB
}

// NewSISPool opens a connection pool to the school information system.
func NewSISPool(dsn string) (*SISPool, error) {
	if dsn == "" {
		return nil, errors.New("school system DSN is required")
	}

	db, err := sql.Open("mysql", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open school system database: %w", err)
	}

	db.SetMaxOpenConns(5)
	db.SetMaxIdleConns(2)
	db.SetConnMaxLifetime(time.Hour)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to ping school system database: %w", err)
	}

	return &SISPool{db: db}, nil
}

// Close closes the connection pool.
func (p *SISPool) Close() error {
	if p.db != nil {
		if err := p.db.Close(); err != nil {
			return fmt.Errorf("closing database connection: %w", err)
		}
	}
	return nil
}

// Entry is one student row in the school information system.
type Entry struct {
	Name       string
	RollNumber string
	ClassName  string
	Department string
}

// ListRoster reads the student roster. The query never writes; the school
// system account should only have SELECT rights anyway.
func (p *SISPool) ListRoster(ctx context.Context) ([]Entry, error) {
	query := `
		SELECT name, roll_number, class_name, COALESCE(department, '')
		FROM students
		ORDER BY roll_number
	`

	rows, err := p.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to query roster: %w", err)
	}
	defer rows.Close()

	var entries []Entry
	for rows.Next() {
		var e Entry
		if err := rows.Scan(&e.Name, &e.RollNumber, &e.ClassName, &e.Department); err != nil {
			return nil, fmt.Errorf("failed to scan roster row: %w", err)
		}
		entries = append(entries, e)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate roster rows: %w", err)
	}

	return entries, nil
}
