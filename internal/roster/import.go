package roster

import (
	"context"
	"errors"
	"fmt"

	"github.com/kozaktomas/rollcall/internal/store"
)

// ImportResult summarizes a roster import run.
type ImportResult struct {
	Created int
	Skipped int
}

// Import creates students that exist in the roster but not in the store,
// matched by roll number. Existing students are never modified; face samples
// are enrolled separately. The progress callback, if set, fires once per
// roster entry.
func Import(ctx context.Context, st store.StudentWriter, entries []Entry, progress func(Entry)) (ImportResult, error) {
	var result ImportResult

	for _, entry := range entries {
		if progress != nil {
			progress(entry)
		}

		if entry.RollNumber == "" || entry.Name == "" {
			return result, fmt.Errorf("roster entry %q/%q is missing a name or roll number", entry.Name, entry.RollNumber)
		}

		existing, err := st.GetStudentByRoll(ctx, entry.RollNumber)
		if err != nil {
			return result, fmt.Errorf("failed to look up roll number %s: %w", entry.RollNumber, err)
		}
		if existing != nil {
			result.Skipped++
			continue
		}

		student := &store.Student{
			Name:       entry.Name,
			RollNumber: entry.RollNumber,
			ClassName:  entry.ClassName,
			Department: entry.Department,
		}
		if err := st.CreateStudent(ctx, student); err != nil {
			// Concurrent creation of the same roll number counts as skipped.
			if errors.Is(err, store.ErrRollNumberTaken) {
				result.Skipped++
				continue
			}
			return result, fmt.Errorf("failed to create student %s: %w", entry.RollNumber, err)
		}
		result.Created++
	}

	return result, nil
}
