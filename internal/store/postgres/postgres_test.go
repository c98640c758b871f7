//go:build integration

package postgres

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/kozaktomas/rollcall/internal/config"
	"github.com/kozaktomas/rollcall/internal/constants"
	"github.com/kozaktomas/rollcall/internal/store"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"
)

func setupTestContainer(t *testing.T) (*Store, func()) {
	ctx := context.Background()

	req := testcontainers.ContainerRequest{
		Image:        "pgvector/pgvector:pg16",
		ExposedPorts: []string{"5432/tcp"},
		Env: map[string]string{
			"POSTGRES_USER":     "test",
			"POSTGRES_PASSWORD": "test",
			"POSTGRES_DB":       "testdb",
		},
		WaitingFor: wait.ForLog("database system is ready to accept connections").
			WithOccurrence(2).
			WithStartupTimeout(60 * time.Second),
	}

	container, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: req,
		Started:          true,
	})
	if err != nil {
		t.Skipf("Docker not available or container failed to start, skipping integration test: %v", err)
		return nil, func() {}
	}
	if container == nil {
		t.Skip("Docker not available, skipping integration test")
		return nil, func() {}
	}

	host, err := container.Host(ctx)
	if err != nil {
		t.Fatalf("Failed to get container host: %v", err)
	}

	port, err := container.MappedPort(ctx, "5432")
	if err != nil {
		t.Fatalf("Failed to get container port: %v", err)
	}

	dbURL := fmt.Sprintf("postgres://test:test@%s:%s/testdb?sslmode=disable", host, port.Port())

	cfg := &config.DatabaseConfig{
		URL:          dbURL,
		MaxOpenConns: 5,
		MaxIdleConns: 2,
	}

	pool, err := NewPool(cfg)
	if err != nil {
		container.Terminate(ctx)
		t.Fatalf("Failed to create pool: %v", err)
	}

	if err := pool.Migrate(ctx); err != nil {
		pool.Close()
		container.Terminate(ctx)
		t.Fatalf("Failed to run migrations: %v", err)
	}

	st := NewStore(pool)

	cleanup := func() {
		st.Close()
		container.Terminate(ctx)
	}

	return st, cleanup
}

func testEmbedding(seed float32) []float32 {
	emb := make([]float32, constants.EmbeddingDim)
	for i := range emb {
		emb[i] = seed + float32(i)/float32(constants.EmbeddingDim)
	}
	return emb
}

func createTestStudent(t *testing.T, st *Store, name, roll, class string) *store.Student {
	t.Helper()
	student := &store.Student{Name: name, RollNumber: roll, ClassName: class, Department: "CS"}
	if err := st.CreateStudent(context.Background(), student); err != nil {
		t.Fatalf("Failed to create student: %v", err)
	}
	return student
}

func TestStudents(t *testing.T) {
	st, cleanup := setupTestContainer(t)
	if st == nil {
		return
	}
	defer cleanup()

	ctx := context.Background()

	t.Run("CreateAndGet", func(t *testing.T) {
		student := createTestStudent(t, st, "Jana Novakova", "CS-001", "CS-3A")
		if student.ID == 0 {
			t.Error("Expected ID to be set after create")
		}

		got, err := st.GetStudent(ctx, student.ID)
		if err != nil {
			t.Fatalf("Failed to get student: %v", err)
		}
		if got == nil {
			t.Fatal("Expected student, got nil")
		}
		if got.Name != "Jana Novakova" {
			t.Errorf("Expected name 'Jana Novakova', got '%s'", got.Name)
		}

		byRoll, err := st.GetStudentByRoll(ctx, "CS-001")
		if err != nil {
			t.Fatalf("Failed to get student by roll: %v", err)
		}
		if byRoll == nil || byRoll.ID != student.ID {
			t.Error("GetStudentByRoll did not return the created student")
		}
	})

	t.Run("DuplicateRollNumber", func(t *testing.T) {
		dup := &store.Student{Name: "Other", RollNumber: "CS-001", ClassName: "CS-3A", Department: "CS"}
		err := st.CreateStudent(ctx, dup)
		if !errors.Is(err, store.ErrRollNumberTaken) {
			t.Errorf("Expected ErrRollNumberTaken, got %v", err)
		}
	})

	t.Run("GetMissing", func(t *testing.T) {
		got, err := st.GetStudent(ctx, 999999)
		if err != nil {
			t.Fatalf("Unexpected error: %v", err)
		}
		if got != nil {
			t.Error("Expected nil for missing student")
		}
	})

	t.Run("DeleteCascades", func(t *testing.T) {
		student := createTestStudent(t, st, "Petr Svoboda", "CS-002", "CS-3A")

		sample := &store.FaceSample{StudentID: student.ID, Embedding: testEmbedding(0), Source: store.SourceEnrollment}
		if err := st.AddSample(ctx, sample); err != nil {
			t.Fatalf("Failed to add sample: %v", err)
		}

		if err := st.DeleteStudent(ctx, student.ID); err != nil {
			t.Fatalf("Failed to delete student: %v", err)
		}

		samples, err := st.ListSamples(ctx, student.ID)
		if err != nil {
			t.Fatalf("Failed to list samples: %v", err)
		}
		if len(samples) != 0 {
			t.Errorf("Expected samples to cascade, got %d remaining", len(samples))
		}
	})
}

func TestSamples(t *testing.T) {
	st, cleanup := setupTestContainer(t)
	if st == nil {
		return
	}
	defer cleanup()

	ctx := context.Background()
	alice := createTestStudent(t, st, "Alice", "S-001", "3A")
	bob := createTestStudent(t, st, "Bob", "S-002", "3A")

	t.Run("AddAndList", func(t *testing.T) {
		for i := 0; i < 3; i++ {
			sample := &store.FaceSample{StudentID: alice.ID, Embedding: testEmbedding(float32(i)), Source: store.SourceEnrollment}
			if err := st.AddSample(ctx, sample); err != nil {
				t.Fatalf("Failed to add sample: %v", err)
			}
		}

		samples, err := st.ListSamples(ctx, alice.ID)
		if err != nil {
			t.Fatalf("Failed to list samples: %v", err)
		}
		if len(samples) != 3 {
			t.Fatalf("Expected 3 samples, got %d", len(samples))
		}
		if len(samples[0].Embedding) != constants.EmbeddingDim {
			t.Errorf("Expected %d dimensions, got %d", constants.EmbeddingDim, len(samples[0].Embedding))
		}
		for i := 1; i < len(samples); i++ {
			if samples[i].ID < samples[i-1].ID {
				t.Error("Samples not in creation order")
			}
		}
	})

	t.Run("RejectsWrongDimension", func(t *testing.T) {
		sample := &store.FaceSample{StudentID: alice.ID, Embedding: make([]float32, 64), Source: store.SourceEnrollment}
		if err := st.AddSample(ctx, sample); err == nil {
			t.Error("Expected error for wrong embedding dimension")
		}
	})

	t.Run("AllSamplesOrdering", func(t *testing.T) {
		sample := &store.FaceSample{StudentID: bob.ID, Embedding: testEmbedding(9), Source: store.SourceAdaptive}
		if err := st.AddSample(ctx, sample); err != nil {
			t.Fatalf("Failed to add sample: %v", err)
		}

		all, err := st.AllSamples(ctx)
		if err != nil {
			t.Fatalf("Failed to get all samples: %v", err)
		}
		if len(all) != 4 {
			t.Fatalf("Expected 4 samples, got %d", len(all))
		}
		for i := 1; i < len(all); i++ {
			if all[i].StudentID < all[i-1].StudentID {
				t.Error("Samples not ordered by student ID")
			}
		}
	})

	t.Run("CountBySource", func(t *testing.T) {
		counts, err := st.CountSamplesBySource(ctx)
		if err != nil {
			t.Fatalf("Failed to count samples: %v", err)
		}
		if counts[store.SourceEnrollment] != 3 {
			t.Errorf("Expected 3 enrollment samples, got %d", counts[store.SourceEnrollment])
		}
		if counts[store.SourceAdaptive] != 1 {
			t.Errorf("Expected 1 adaptive sample, got %d", counts[store.SourceAdaptive])
		}
	})

	t.Run("Delete", func(t *testing.T) {
		samples, _ := st.ListSamples(ctx, alice.ID)
		if err := st.DeleteSamples(ctx, []int64{samples[0].ID}); err != nil {
			t.Fatalf("Failed to delete samples: %v", err)
		}
		remaining, _ := st.ListSamples(ctx, alice.ID)
		if len(remaining) != len(samples)-1 {
			t.Errorf("Expected %d samples after delete, got %d", len(samples)-1, len(remaining))
		}
	})
}

func TestAttendance(t *testing.T) {
	st, cleanup := setupTestContainer(t)
	if st == nil {
		return
	}
	defer cleanup()

	ctx := context.Background()
	student := createTestStudent(t, st, "Carol", "S-010", "3B")
	day := "2026-03-02"

	t.Run("AddAndCheck", func(t *testing.T) {
		rec := &store.AttendanceRecord{
			StudentID:  student.ID,
			Day:        day,
			Subject:    "Mathematics",
			Status:     store.StatusPresent,
			Confidence: 0.72,
			MarkedAt:   time.Now(),
		}
		if err := st.AddRecord(ctx, rec); err != nil {
			t.Fatalf("Failed to add record: %v", err)
		}
		if rec.ID == 0 {
			t.Error("Expected ID to be set")
		}

		marked, err := st.IsMarked(ctx, student.ID, day, "Mathematics")
		if err != nil {
			t.Fatalf("Failed to check marked: %v", err)
		}
		if !marked {
			t.Error("Expected student to be marked")
		}

		marked, err = st.IsMarked(ctx, student.ID, day, "Physics")
		if err != nil {
			t.Fatalf("Failed to check marked: %v", err)
		}
		if marked {
			t.Error("Expected student not marked for other subject")
		}
	})

	t.Run("DuplicateReturnsSentinel", func(t *testing.T) {
		rec := &store.AttendanceRecord{
			StudentID: student.ID,
			Day:       day,
			Subject:   "Mathematics",
			Status:    store.StatusPresent,
			MarkedAt:  time.Now(),
		}
		err := st.AddRecord(ctx, rec)
		if !errors.Is(err, store.ErrDuplicateAttendance) {
			t.Errorf("Expected ErrDuplicateAttendance, got %v", err)
		}
	})

	t.Run("ListRecords", func(t *testing.T) {
		rows, err := st.ListRecords(ctx, day, "", 100)
		if err != nil {
			t.Fatalf("Failed to list records: %v", err)
		}
		if len(rows) != 1 {
			t.Fatalf("Expected 1 record, got %d", len(rows))
		}
		if rows[0].StudentName != "Carol" {
			t.Errorf("Expected joined student name 'Carol', got '%s'", rows[0].StudentName)
		}
		if rows[0].Day != day {
			t.Errorf("Expected day %s, got %s", day, rows[0].Day)
		}

		filtered, err := st.ListRecords(ctx, day, "3A", 100)
		if err != nil {
			t.Fatalf("Failed to list filtered records: %v", err)
		}
		if len(filtered) != 0 {
			t.Errorf("Expected 0 records for other class, got %d", len(filtered))
		}
	})

	t.Run("CountAndConfidences", func(t *testing.T) {
		count, err := st.CountRecordsForDay(ctx, day)
		if err != nil {
			t.Fatalf("Failed to count records: %v", err)
		}
		if count != 1 {
			t.Errorf("Expected 1 record, got %d", count)
		}

		confidences, err := st.RecentConfidences(ctx, 10)
		if err != nil {
			t.Fatalf("Failed to get confidences: %v", err)
		}
		if len(confidences) != 1 || confidences[0] != 0.72 {
			t.Errorf("Expected [0.72], got %v", confidences)
		}
	})
}

func TestPendingReviews(t *testing.T) {
	st, cleanup := setupTestContainer(t)
	if st == nil {
		return
	}
	defer cleanup()

	ctx := context.Background()
	student := createTestStudent(t, st, "Dana", "S-020", "3C")

	pending := &store.PendingReview{
		StudentID:  student.ID,
		Embedding:  testEmbedding(1),
		Frame:      []byte{0xff, 0xd8, 0xff},
		Confidence: 0.42,
		Subject:    "Chemistry",
	}
	if err := st.CreatePending(ctx, pending); err != nil {
		t.Fatalf("Failed to create pending: %v", err)
	}

	got, err := st.GetPending(ctx, pending.ID)
	if err != nil {
		t.Fatalf("Failed to get pending: %v", err)
	}
	if got == nil {
		t.Fatal("Expected pending review, got nil")
	}
	if got.Subject != "Chemistry" {
		t.Errorf("Expected subject 'Chemistry', got '%s'", got.Subject)
	}
	if len(got.Embedding) != constants.EmbeddingDim {
		t.Errorf("Expected %d dimensions, got %d", constants.EmbeddingDim, len(got.Embedding))
	}

	list, err := st.ListPending(ctx, 10)
	if err != nil {
		t.Fatalf("Failed to list pending: %v", err)
	}
	if len(list) != 1 || list[0].StudentName != "Dana" {
		t.Errorf("Expected joined pending row for Dana, got %+v", list)
	}

	count, err := st.CountPending(ctx)
	if err != nil {
		t.Fatalf("Failed to count pending: %v", err)
	}
	if count != 1 {
		t.Errorf("Expected 1 pending, got %d", count)
	}

	if err := st.DeletePending(ctx, pending.ID); err != nil {
		t.Fatalf("Failed to delete pending: %v", err)
	}
	got, _ = st.GetPending(ctx, pending.ID)
	if got != nil {
		t.Error("Expected pending to be deleted")
	}
}

func TestTimetableAndSettings(t *testing.T) {
	st, cleanup := setupTestContainer(t)
	if st == nil {
		return
	}
	defer cleanup()

	ctx := context.Background()

	t.Run("Timetable", func(t *testing.T) {
		entry := &store.TimetableEntry{ClassName: "3A", Weekday: 0, Start: "09:00", End: "10:00", Subject: "Mathematics"}
		if err := st.AddEntry(ctx, entry); err != nil {
			t.Fatalf("Failed to add entry: %v", err)
		}

		invalid := &store.TimetableEntry{ClassName: "3A", Weekday: 9, Start: "09:00", End: "10:00", Subject: "X"}
		if err := st.AddEntry(ctx, invalid); err == nil {
			t.Error("Expected validation error for weekday 9")
		}

		entries, err := st.EntriesForWeekday(ctx, 0)
		if err != nil {
			t.Fatalf("Failed to list entries: %v", err)
		}
		if len(entries) != 1 || entries[0].Subject != "Mathematics" {
			t.Errorf("Unexpected entries: %+v", entries)
		}

		if err := st.DeleteEntry(ctx, entry.ID); err != nil {
			t.Fatalf("Failed to delete entry: %v", err)
		}
	})

	t.Run("SettingsDefaults", func(t *testing.T) {
		settings, err := st.GetSettings(ctx)
		if err != nil {
			t.Fatalf("Failed to get settings: %v", err)
		}
		if settings.ConfidentThreshold != constants.DefaultConfidentThreshold {
			t.Errorf("Expected default confident threshold, got %g", settings.ConfidentThreshold)
		}
	})

	t.Run("SettingsSaveAndReload", func(t *testing.T) {
		settings := store.DefaultSettings()
		settings.ConfidentThreshold = 0.45
		settings.TentativeThreshold = 0.65
		if err := st.SaveSettings(ctx, settings); err != nil {
			t.Fatalf("Failed to save settings: %v", err)
		}

		got, err := st.GetSettings(ctx)
		if err != nil {
			t.Fatalf("Failed to reload settings: %v", err)
		}
		if got.ConfidentThreshold != 0.45 || got.TentativeThreshold != 0.65 {
			t.Errorf("Settings not persisted: %+v", got)
		}
	})

	t.Run("SettingsRejectInvalid", func(t *testing.T) {
		settings := store.DefaultSettings()
		settings.ConfidentThreshold = 0.9
		settings.TentativeThreshold = 0.5
		if err := st.SaveSettings(ctx, settings); err == nil {
			t.Error("Expected validation error for inverted thresholds")
		}
	})
}

func TestSessions(t *testing.T) {
	st, cleanup := setupTestContainer(t)
	if st == nil {
		return
	}
	defer cleanup()

	ctx := context.Background()
	now := time.Now()

	session := &store.Session{ID: "sess1", Username: "admin", CreatedAt: now, ExpiresAt: now.Add(time.Hour)}
	if err := st.SaveSession(ctx, session); err != nil {
		t.Fatalf("Failed to save session: %v", err)
	}

	got, err := st.GetSession(ctx, "sess1")
	if err != nil {
		t.Fatalf("Failed to get session: %v", err)
	}
	if got == nil || got.Username != "admin" {
		t.Errorf("Unexpected session: %+v", got)
	}

	expired := &store.Session{ID: "sess2", Username: "admin", CreatedAt: now.Add(-2 * time.Hour), ExpiresAt: now.Add(-time.Hour)}
	if err := st.SaveSession(ctx, expired); err != nil {
		t.Fatalf("Failed to save expired session: %v", err)
	}
	got, err = st.GetSession(ctx, "sess2")
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	if got != nil {
		t.Error("Expected nil for expired session")
	}

	deleted, err := st.DeleteExpiredSessions(ctx)
	if err != nil {
		t.Fatalf("Failed to delete expired: %v", err)
	}
	if deleted != 1 {
		t.Errorf("Expected 1 expired session deleted, got %d", deleted)
	}
}

func TestMigrations(t *testing.T) {
	st, cleanup := setupTestContainer(t)
	if st == nil {
		return
	}
	defer cleanup()

	applied, err := st.pool.MigrationsApplied(context.Background())
	if err != nil {
		t.Fatalf("Failed to get applied migrations: %v", err)
	}

	if len(applied) != 1 || applied[0] != "0001_init.sql" {
		t.Errorf("Expected [0001_init.sql], got %v", applied)
	}
}
