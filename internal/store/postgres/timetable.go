package postgres

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/kozaktomas/rollcall/internal/store"
)

// AddEntry stores a new timetable entry and fills in its ID.
func (s *Store) AddEntry(ctx context.Context, entry *store.TimetableEntry) error {
	if err := entry.Validate(); err != nil {
		return err
	}

	err := s.pool.QueryRow(ctx, `
		INSERT INTO timetable (class_name, weekday, start_time, end_time, subject)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING id
	`, entry.ClassName, entry.Weekday, entry.Start, entry.End, entry.Subject).Scan(&entry.ID)
	if err != nil {
		return fmt.Errorf("insert timetable entry: %w", err)
	}
	return nil
}

// ListEntries returns all entries ordered by weekday, start time, class.
func (s *Store) ListEntries(ctx context.Context) ([]store.TimetableEntry, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT id, class_name, weekday, start_time, end_time, subject
		FROM timetable
		ORDER BY weekday, start_time, class_name, id
	`)
	if err != nil {
		return nil, fmt.Errorf("query timetable: %w", err)
	}
	defer rows.Close()

	return scanEntries(rows)
}

// EntriesForWeekday returns entries for one weekday ordered by start time, class.
func (s *Store) EntriesForWeekday(ctx context.Context, weekday int) ([]store.TimetableEntry, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT id, class_name, weekday, start_time, end_time, subject
		FROM timetable
		WHERE weekday = $1
		ORDER BY start_time, class_name, id
	`, weekday)
	if err != nil {
		return nil, fmt.Errorf("query timetable for weekday: %w", err)
	}
	defer rows.Close()

	return scanEntries(rows)
}

// DeleteEntry removes a timetable entry.
func (s *Store) DeleteEntry(ctx context.Context, id int64) error {
	if _, err := s.pool.Exec(ctx, "DELETE FROM timetable WHERE id = $1", id); err != nil {
		return fmt.Errorf("delete timetable entry: %w", err)
	}
	return nil
}

func scanEntries(rows *sql.Rows) ([]store.TimetableEntry, error) {
	var entries []store.TimetableEntry
	for rows.Next() {
		var e store.TimetableEntry
		if err := rows.Scan(&e.ID, &e.ClassName, &e.Weekday, &e.Start, &e.End, &e.Subject); err != nil {
			return nil, fmt.Errorf("scan timetable entry: %w", err)
		}
		entries = append(entries, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate timetable entries: %w", err)
	}
	return entries, nil
}
