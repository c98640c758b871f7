package sqlite

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/kozaktomas/rollcall/internal/constants"
	"github.com/kozaktomas/rollcall/internal/store"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	path := filepath.Join(t.TempDir(), "rollcall-test.db")
	st, err := Open(path)
	if err != nil {
		t.Fatalf("Open failed: %v", err)
	}
	t.Cleanup(func() { _ = st.Close() })
	return st
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
		t.Fatalf("CreateStudent failed: %v", err)
	}
	return student
}

func TestStudentRoundTrip(t *testing.T) {
	st := newTestStore(t)
	ctx := context.Background()

	student := createTestStudent(t, st, "Jana Novakova", "CS-001", "CS-3A")
	if student.ID == 0 {
		t.Fatal("expected student ID to be assigned")
	}

	got, err := st.GetStudent(ctx, student.ID)
	if err != nil {
		t.Fatalf("GetStudent failed: %v", err)
	}
	if got == nil || got.Name != "Jana Novakova" || got.RollNumber != "CS-001" {
		t.Errorf("unexpected student: %+v", got)
	}

	missing, err := st.GetStudent(ctx, 9999)
	if err != nil {
		t.Fatalf("GetStudent failed: %v", err)
	}
	if missing != nil {
		t.Error("expected nil for missing student")
	}

	dup := &store.Student{Name: "Other", RollNumber: "CS-001", ClassName: "CS-3A", Department: "CS"}
	if err := st.CreateStudent(ctx, dup); !errors.Is(err, store.ErrRollNumberTaken) {
		t.Errorf("expected ErrRollNumberTaken, got %v", err)
	}
}

func TestSampleRoundTrip(t *testing.T) {
	st := newTestStore(t)
	ctx := context.Background()
	student := createTestStudent(t, st, "Alice", "S-001", "3A")

	sample := &store.FaceSample{StudentID: student.ID, Embedding: testEmbedding(1), Source: store.SourceEnrollment}
	if err := st.AddSample(ctx, sample); err != nil {
		t.Fatalf("AddSample failed: %v", err)
	}

	samples, err := st.ListSamples(ctx, student.ID)
	if err != nil {
		t.Fatalf("ListSamples failed: %v", err)
	}
	if len(samples) != 1 {
		t.Fatalf("expected 1 sample, got %d", len(samples))
	}
	if len(samples[0].Embedding) != constants.EmbeddingDim {
		t.Errorf("expected %d dims, got %d", constants.EmbeddingDim, len(samples[0].Embedding))
	}
	if samples[0].Embedding[0] != sample.Embedding[0] {
		t.Error("embedding values not preserved")
	}

	bad := &store.FaceSample{StudentID: student.ID, Embedding: make([]float32, 3), Source: store.SourceEnrollment}
	if err := st.AddSample(ctx, bad); err == nil {
		t.Error("expected error for wrong dimension")
	}
}

func TestCorruptEmbeddingSurfacesError(t *testing.T) {
	st := newTestStore(t)
	ctx := context.Background()
	student := createTestStudent(t, st, "Bob", "S-002", "3A")

	// Write garbage directly, bypassing the encoder.
	_, err := st.db.ExecContext(ctx,
		"INSERT INTO face_samples (student_id, embedding, source) VALUES (?, ?, ?)",
		student.ID, "not json", "enrollment")
	if err != nil {
		t.Fatalf("raw insert failed: %v", err)
	}

	if _, err := st.AllSamples(ctx); err == nil {
		t.Error("expected corrupt embedding to surface as an error")
	}
	if _, err := st.ListSamples(ctx, student.ID); err == nil {
		t.Error("expected corrupt embedding to surface as an error")
	}
}

func TestAttendanceUniqueness(t *testing.T) {
	st := newTestStore(t)
	ctx := context.Background()
	student := createTestStudent(t, st, "Carol", "S-010", "3B")

	rec := &store.AttendanceRecord{
		StudentID:  student.ID,
		Day:        "2026-03-02",
		Subject:    "Mathematics",
		Status:     store.StatusPresent,
		Confidence: 0.8,
		MarkedAt:   time.Now(),
	}
	if err := st.AddRecord(ctx, rec); err != nil {
		t.Fatalf("AddRecord failed: %v", err)
	}

	dup := &store.AttendanceRecord{
		StudentID: student.ID,
		Day:       "2026-03-02",
		Subject:   "Mathematics",
		Status:    store.StatusPresent,
		MarkedAt:  time.Now(),
	}
	if err := st.AddRecord(ctx, dup); !errors.Is(err, store.ErrDuplicateAttendance) {
		t.Errorf("expected ErrDuplicateAttendance, got %v", err)
	}

	// Same student, different subject is fine.
	other := &store.AttendanceRecord{
		StudentID: student.ID,
		Day:       "2026-03-02",
		Subject:   "Physics",
		Status:    store.StatusPresent,
		MarkedAt:  time.Now(),
	}
	if err := st.AddRecord(ctx, other); err != nil {
		t.Errorf("expected different subject to insert, got %v", err)
	}

	marked, err := st.IsMarked(ctx, student.ID, "2026-03-02", "Mathematics")
	if err != nil {
		t.Fatalf("IsMarked failed: %v", err)
	}
	if !marked {
		t.Error("expected IsMarked true")
	}

	rows, err := st.ListRecords(ctx, "2026-03-02", "", 100)
	if err != nil {
		t.Fatalf("ListRecords failed: %v", err)
	}
	if len(rows) != 2 {
		t.Errorf("expected 2 rows, got %d", len(rows))
	}
	if len(rows) > 0 && rows[0].StudentName != "Carol" {
		t.Errorf("expected joined name Carol, got %s", rows[0].StudentName)
	}
}

func TestDeleteStudentCascades(t *testing.T) {
	st := newTestStore(t)
	ctx := context.Background()
	student := createTestStudent(t, st, "Dana", "S-020", "3C")

	sample := &store.FaceSample{StudentID: student.ID, Embedding: testEmbedding(2), Source: store.SourceAdaptive}
	if err := st.AddSample(ctx, sample); err != nil {
		t.Fatalf("AddSample failed: %v", err)
	}
	pending := &store.PendingReview{
		StudentID: student.ID, Embedding: testEmbedding(3),
		Frame: []byte{1}, Confidence: 0.4, Subject: "Chemistry",
	}
	if err := st.CreatePending(ctx, pending); err != nil {
		t.Fatalf("CreatePending failed: %v", err)
	}

	if err := st.DeleteStudent(ctx, student.ID); err != nil {
		t.Fatalf("DeleteStudent failed: %v", err)
	}

	samples, _ := st.ListSamples(ctx, student.ID)
	if len(samples) != 0 {
		t.Errorf("expected samples to cascade, got %d", len(samples))
	}
	count, _ := st.CountPending(ctx)
	if count != 0 {
		t.Errorf("expected pending to cascade, got %d", count)
	}
}

func TestSettingsDefaultsAndSave(t *testing.T) {
	st := newTestStore(t)
	ctx := context.Background()

	settings, err := st.GetSettings(ctx)
	if err != nil {
		t.Fatalf("GetSettings failed: %v", err)
	}
	if settings.ConfidentThreshold != constants.DefaultConfidentThreshold {
		t.Errorf("expected default confident threshold, got %g", settings.ConfidentThreshold)
	}
	if !settings.AdaptiveLearning {
		t.Error("expected adaptive learning on by default")
	}

	settings.ConfidentThreshold = 0.4
	settings.TentativeThreshold = 0.7
	settings.AdaptiveLearning = false
	if err := st.SaveSettings(ctx, settings); err != nil {
		t.Fatalf("SaveSettings failed: %v", err)
	}

	got, err := st.GetSettings(ctx)
	if err != nil {
		t.Fatalf("GetSettings failed: %v", err)
	}
	if got.ConfidentThreshold != 0.4 || got.TentativeThreshold != 0.7 || got.AdaptiveLearning {
		t.Errorf("settings not persisted: %+v", got)
	}

	bad := got
	bad.MaxSamplesPerStudent = 0
	if err := st.SaveSettings(ctx, bad); err == nil {
		t.Error("expected validation error for max samples 0")
	}
}

func TestSessionExpiry(t *testing.T) {
	st := newTestStore(t)
	ctx := context.Background()
	now := time.Now()

	live := &store.Session{ID: "live", Username: "admin", CreatedAt: now, ExpiresAt: now.Add(time.Hour)}
	expired := &store.Session{ID: "old", Username: "admin", CreatedAt: now.Add(-2 * time.Hour), ExpiresAt: now.Add(-time.Hour)}
	for _, sess := range []*store.Session{live, expired} {
		if err := st.SaveSession(ctx, sess); err != nil {
			t.Fatalf("SaveSession failed: %v", err)
		}
	}

	got, err := st.GetSession(ctx, "live")
	if err != nil {
		t.Fatalf("GetSession failed: %v", err)
	}
	if got == nil || got.Username != "admin" {
		t.Errorf("unexpected session: %+v", got)
	}

	gone, err := st.GetSession(ctx, "old")
	if err != nil {
		t.Fatalf("GetSession failed: %v", err)
	}
	if gone != nil {
		t.Error("expected expired session to be hidden")
	}

	deleted, err := st.DeleteExpiredSessions(ctx)
	if err != nil {
		t.Fatalf("DeleteExpiredSessions failed: %v", err)
	}
	if deleted != 1 {
		t.Errorf("expected 1 deleted, got %d", deleted)
	}
}
