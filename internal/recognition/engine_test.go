package recognition

import (
	"context"
	"math"
	"testing"
	"time"

	"github.com/kozaktomas/rollcall/internal/store"
	"github.com/kozaktomas/rollcall/internal/store/memory"
)

type stubExtractor struct {
	extract func(frame []byte) ([]float32, error)
}

func (s *stubExtractor) ExtractFace(_ context.Context, frame []byte) ([]float32, error) {
	return s.extract(frame)
}

func noFaceExtractor() *stubExtractor {
	return &stubExtractor{extract: func([]byte) ([]float32, error) { return nil, nil }}
}

func newTestEngine(t *testing.T, st *memory.Store) (*Engine, *time.Time) {
	t.Helper()

	engine := NewEngine(st, noFaceExtractor(), Config{})
	current := time.Date(2026, 3, 2, 9, 30, 0, 0, time.UTC)
	engine.now = func() time.Time { return current }
	return engine, &current
}

func seedStudent(t *testing.T, st *memory.Store, name, roll, class string, embedding []float32) *store.Student {
	t.Helper()

	student := &store.Student{Name: name, RollNumber: roll, ClassName: class}
	if err := st.CreateStudent(context.Background(), student); err != nil {
		t.Fatalf("failed to seed student: %v", err)
	}
	if embedding != nil {
		sample := &store.FaceSample{StudentID: student.ID, Embedding: embedding, Source: store.SourceEnrollment}
		if err := st.AddSample(context.Background(), sample); err != nil {
			t.Fatalf("failed to seed sample: %v", err)
		}
	}
	return student
}

func TestDecideConfidentMarksAttendance(t *testing.T) {
	st := memory.NewStore()
	student := seedStudent(t, st, "Alice Novak", "R001", "10A", vec(0))
	engine, now := newTestEngine(t, st)
	ctx := context.Background()

	decision, err := engine.Decide(ctx, vec(0.45), nil, "10A", "Math")
	if err != nil {
		t.Fatalf("Decide failed: %v", err)
	}

	if decision.Outcome != OutcomeMarked {
		t.Fatalf("expected marked, got %s", decision.Outcome)
	}
	if decision.Student == nil || decision.Student.ID != student.ID {
		t.Fatal("expected the enrolled student in the decision")
	}
	if math.Abs(decision.Confidence-0.55) > 1e-6 {
		t.Errorf("expected confidence 0.55, got %v", decision.Confidence)
	}

	marked, err := st.IsMarked(ctx, student.ID, store.Day(*now), "Math")
	if err != nil {
		t.Fatalf("IsMarked failed: %v", err)
	}
	if !marked {
		t.Error("expected an attendance record in the ledger")
	}

	// Adaptive learning is enabled by default, so the probe became a sample.
	samples, err := st.ListSamples(ctx, student.ID)
	if err != nil {
		t.Fatalf("ListSamples failed: %v", err)
	}
	if len(samples) != 2 {
		t.Fatalf("expected 2 samples after learning, got %d", len(samples))
	}
	if samples[1].Source != store.SourceAdaptive {
		t.Errorf("expected the learned sample to be adaptive, got %s", samples[1].Source)
	}
}

func TestDecideTentativeQueuesPending(t *testing.T) {
	st := memory.NewStore()
	student := seedStudent(t, st, "Alice Novak", "R001", "10A", vec(0))
	engine, now := newTestEngine(t, st)
	ctx := context.Background()

	decision, err := engine.Decide(ctx, vec(0.55), nil, "10A", "Math")
	if err != nil {
		t.Fatalf("Decide failed: %v", err)
	}

	if decision.Outcome != OutcomePending {
		t.Fatalf("expected pending, got %s", decision.Outcome)
	}
	if decision.PendingID == 0 {
		t.Error("expected a pending review ID")
	}
	if math.Abs(decision.Confidence-0.45) > 1e-6 {
		t.Errorf("expected confidence 0.45, got %v", decision.Confidence)
	}

	pending, err := st.GetPending(ctx, decision.PendingID)
	if err != nil {
		t.Fatalf("GetPending failed: %v", err)
	}
	if pending == nil {
		t.Fatal("expected the pending review to be stored")
	}
	if pending.StudentID != student.ID || pending.Subject != "Math" {
		t.Errorf("unexpected pending review contents: student %d subject %q", pending.StudentID, pending.Subject)
	}

	// Tentative matches never touch the ledger directly.
	marked, _ := st.IsMarked(ctx, student.ID, store.Day(*now), "Math")
	if marked {
		t.Error("expected no attendance record for a tentative match")
	}
}

func TestDecideUnknownFace(t *testing.T) {
	st := memory.NewStore()
	seedStudent(t, st, "Alice Novak", "R001", "10A", vec(0))
	engine, _ := newTestEngine(t, st)

	decision, err := engine.Decide(context.Background(), vec(0.7), nil, "10A", "Math")
	if err != nil {
		t.Fatalf("Decide failed: %v", err)
	}

	if decision.Outcome != OutcomeUnknown {
		t.Fatalf("expected unknown, got %s", decision.Outcome)
	}
	if decision.Student != nil {
		t.Error("expected no student for an unknown face")
	}

	if count, _ := st.CountPending(context.Background()); count != 0 {
		t.Errorf("expected no pending reviews, got %d", count)
	}
}

func TestDecideEmptyKnownSet(t *testing.T) {
	st := memory.NewStore()
	engine, _ := newTestEngine(t, st)

	decision, err := engine.Decide(context.Background(), vec(0.1), nil, "10A", "Math")
	if err != nil {
		t.Fatalf("Decide failed: %v", err)
	}

	if decision.Outcome != OutcomeUnknown {
		t.Fatalf("expected unknown for an empty known set, got %s", decision.Outcome)
	}
	if !math.IsInf(decision.Distance, 1) {
		t.Errorf("expected +Inf distance, got %v", decision.Distance)
	}
}

func TestDecideWrongClass(t *testing.T) {
	st := memory.NewStore()
	student := seedStudent(t, st, "Alice Novak", "R001", "10A", vec(0))
	engine, now := newTestEngine(t, st)
	ctx := context.Background()

	decision, err := engine.Decide(ctx, vec(0.2), nil, "10B", "Math")
	if err != nil {
		t.Fatalf("Decide failed: %v", err)
	}

	if decision.Outcome != OutcomeWrongClass {
		t.Fatalf("expected wrong_class, got %s", decision.Outcome)
	}
	if decision.Student == nil || decision.Student.ID != student.ID {
		t.Error("expected the matched student so the kiosk can name them")
	}

	if marked, _ := st.IsMarked(ctx, student.ID, store.Day(*now), "Math"); marked {
		t.Error("expected no attendance record for a wrong class match")
	}

	// The same face in their own class still marks normally.
	decision, err = engine.Decide(ctx, vec(0.2), nil, "10A", "Math")
	if err != nil {
		t.Fatalf("Decide failed: %v", err)
	}
	if decision.Outcome != OutcomeMarked {
		t.Errorf("expected marked in the correct class, got %s", decision.Outcome)
	}
}

func TestDecideCooldownSuppressesRemark(t *testing.T) {
	st := memory.NewStore()
	seedStudent(t, st, "Alice Novak", "R001", "10A", vec(0))
	engine, now := newTestEngine(t, st)
	ctx := context.Background()

	first, err := engine.Decide(ctx, vec(0.2), nil, "10A", "Math")
	if err != nil {
		t.Fatalf("Decide failed: %v", err)
	}
	if first.Outcome != OutcomeMarked {
		t.Fatalf("expected marked, got %s", first.Outcome)
	}

	second, err := engine.Decide(ctx, vec(0.2), nil, "10A", "Math")
	if err != nil {
		t.Fatalf("Decide failed: %v", err)
	}
	if second.Outcome != OutcomeAlreadyMarked {
		t.Fatalf("expected already_marked inside the cooldown window, got %s", second.Outcome)
	}
	if second.CooldownSeconds != 300 {
		t.Errorf("expected 300 seconds remaining, got %d", second.CooldownSeconds)
	}

	// After the window the ledger still blocks a second record for the day.
	*now = now.Add(301 * time.Second)
	third, err := engine.Decide(ctx, vec(0.2), nil, "10A", "Math")
	if err != nil {
		t.Fatalf("Decide failed: %v", err)
	}
	if third.Outcome != OutcomeAlreadyMarked {
		t.Fatalf("expected already_marked from the ledger, got %s", third.Outcome)
	}
	if third.CooldownSeconds != 0 {
		t.Errorf("expected no cooldown seconds for a ledger duplicate, got %d", third.CooldownSeconds)
	}

	// The next day is a fresh slate.
	*now = now.Add(24 * time.Hour)
	fourth, err := engine.Decide(ctx, vec(0.2), nil, "10A", "Math")
	if err != nil {
		t.Fatalf("Decide failed: %v", err)
	}
	if fourth.Outcome != OutcomeMarked {
		t.Errorf("expected marked on the next day, got %s", fourth.Outcome)
	}
}

func TestDecideCooldownAppliesToTentative(t *testing.T) {
	st := memory.NewStore()
	seedStudent(t, st, "Alice Novak", "R001", "10A", vec(0))
	engine, _ := newTestEngine(t, st)
	ctx := context.Background()

	if _, err := engine.Decide(ctx, vec(0.2), nil, "10A", "Math"); err != nil {
		t.Fatalf("Decide failed: %v", err)
	}

	// A tentative match inside the window must not create a review.
	decision, err := engine.Decide(ctx, vec(0.55), nil, "10A", "Math")
	if err != nil {
		t.Fatalf("Decide failed: %v", err)
	}
	if decision.Outcome != OutcomeAlreadyMarked {
		t.Fatalf("expected already_marked, got %s", decision.Outcome)
	}
	if count, _ := st.CountPending(ctx); count != 0 {
		t.Errorf("expected no pending reviews, got %d", count)
	}
}

func TestDecideDuplicateInsertIsBenign(t *testing.T) {
	st := memory.NewStore()
	seedStudent(t, st, "Alice Novak", "R001", "10A", vec(0))
	engine, _ := newTestEngine(t, st)

	// Simulate losing the check-then-act race: the pre-check passes but the
	// insert hits the uniqueness constraint.
	st.AddRecordError = store.ErrDuplicateAttendance

	decision, err := engine.Decide(context.Background(), vec(0.2), nil, "10A", "Math")
	if err != nil {
		t.Fatalf("expected a benign outcome, got error: %v", err)
	}
	if decision.Outcome != OutcomeAlreadyMarked {
		t.Errorf("expected already_marked, got %s", decision.Outcome)
	}
}

func TestDecideAdaptiveLearningDisabled(t *testing.T) {
	st := memory.NewStore()
	student := seedStudent(t, st, "Alice Novak", "R001", "10A", vec(0))
	engine, _ := newTestEngine(t, st)
	ctx := context.Background()

	settings := store.DefaultSettings()
	settings.AdaptiveLearning = false
	if err := st.SaveSettings(ctx, settings); err != nil {
		t.Fatalf("SaveSettings failed: %v", err)
	}

	decision, err := engine.Decide(ctx, vec(0.2), nil, "10A", "Math")
	if err != nil {
		t.Fatalf("Decide failed: %v", err)
	}
	if decision.Outcome != OutcomeMarked {
		t.Fatalf("expected marked, got %s", decision.Outcome)
	}

	samples, _ := st.ListSamples(ctx, student.ID)
	if len(samples) != 1 {
		t.Errorf("expected no adaptive sample with learning disabled, got %d samples", len(samples))
	}
}

func TestDecideStoreFailure(t *testing.T) {
	st := memory.NewStore()
	seedStudent(t, st, "Alice Novak", "R001", "10A", vec(0))
	engine, _ := newTestEngine(t, st)

	st.AllSamplesError = context.DeadlineExceeded
	if _, err := engine.Decide(context.Background(), vec(0.2), nil, "10A", "Math"); err == nil {
		t.Error("expected an operational error when the known set cannot load")
	}
}

func TestLearnEvictsExactlyToBound(t *testing.T) {
	st := memory.NewStore()
	student := seedStudent(t, st, "Alice Novak", "R001", "10A", nil)
	engine, _ := newTestEngine(t, st)
	ctx := context.Background()

	for i := 0; i < 11; i++ {
		sample := &store.FaceSample{StudentID: student.ID, Embedding: vec(float32(i) * 0.01), Source: store.SourceAdaptive}
		if err := st.AddSample(ctx, sample); err != nil {
			t.Fatalf("failed to seed adaptive sample: %v", err)
		}
	}

	// The 12th adaptive sample pushes the count to 12 against a bound of 10,
	// so exactly the 2 oldest must go.
	if err := engine.learn(ctx, student.ID, vec(0.99), 10); err != nil {
		t.Fatalf("learn failed: %v", err)
	}

	samples, err := st.ListSamples(ctx, student.ID)
	if err != nil {
		t.Fatalf("ListSamples failed: %v", err)
	}
	if len(samples) != 10 {
		t.Fatalf("expected 10 samples after eviction, got %d", len(samples))
	}
	if samples[0].Embedding[0] != float32(2)*0.01 {
		t.Errorf("expected the two oldest samples evicted, oldest survivor is %v", samples[0].Embedding[0])
	}
	if samples[len(samples)-1].Embedding[0] != 0.99 {
		t.Error("expected the newly learned sample to survive")
	}
}

func TestLearnNeverEvictsEnrollment(t *testing.T) {
	st := memory.NewStore()
	student := seedStudent(t, st, "Alice Novak", "R001", "10A", nil)
	engine, _ := newTestEngine(t, st)
	ctx := context.Background()

	for i := 0; i < 12; i++ {
		sample := &store.FaceSample{StudentID: student.ID, Embedding: vec(float32(i) * 0.01), Source: store.SourceEnrollment}
		if err := st.AddSample(ctx, sample); err != nil {
			t.Fatalf("failed to seed enrollment sample: %v", err)
		}
	}

	if err := engine.learn(ctx, student.ID, vec(0.99), 10); err != nil {
		t.Fatalf("learn failed: %v", err)
	}

	// Enrollment samples alone exceed the bound; only adaptive samples may
	// be evicted, so the count stays above it.
	samples, _ := st.ListSamples(ctx, student.ID)
	if len(samples) != 12 {
		t.Fatalf("expected all 12 enrollment samples to survive, got %d", len(samples))
	}
	for _, s := range samples {
		if s.Source != store.SourceEnrollment {
			t.Errorf("expected only enrollment samples to survive, found %s", s.Source)
		}
	}
}

func TestConfirmPendingCreatesRecord(t *testing.T) {
	st := memory.NewStore()
	student := seedStudent(t, st, "Alice Novak", "R001", "10A", vec(0))
	engine, now := newTestEngine(t, st)
	ctx := context.Background()

	tentative, err := engine.Decide(ctx, vec(0.55), nil, "10A", "Math")
	if err != nil {
		t.Fatalf("Decide failed: %v", err)
	}
	if tentative.Outcome != OutcomePending {
		t.Fatalf("expected pending, got %s", tentative.Outcome)
	}

	confirmed, err := engine.ConfirmPending(ctx, tentative.PendingID, 0)
	if err != nil {
		t.Fatalf("ConfirmPending failed: %v", err)
	}
	if confirmed.Outcome != OutcomeMarked {
		t.Fatalf("expected marked, got %s", confirmed.Outcome)
	}

	rows, err := st.ListRecords(ctx, store.Day(*now), "", 0)
	if err != nil {
		t.Fatalf("ListRecords failed: %v", err)
	}
	if len(rows) != 1 {
		t.Fatalf("expected exactly one attendance record, got %d", len(rows))
	}
	if !rows[0].ViaReview {
		t.Error("expected the record to be flagged as reviewed")
	}
	if math.Abs(rows[0].Confidence-0.45) > 1e-6 {
		t.Errorf("expected the captured confidence 0.45, got %v", rows[0].Confidence)
	}

	if count, _ := st.CountPending(ctx); count != 0 {
		t.Error("expected the pending review to be deleted after confirmation")
	}

	// Confirmation feeds the learner and stamps the cooldown.
	samples, _ := st.ListSamples(ctx, student.ID)
	if len(samples) != 2 {
		t.Errorf("expected an adaptive sample after confirmation, got %d samples", len(samples))
	}
	again, err := engine.Decide(ctx, vec(0.2), nil, "10A", "Math")
	if err != nil {
		t.Fatalf("Decide failed: %v", err)
	}
	if again.Outcome != OutcomeAlreadyMarked || again.CooldownSeconds == 0 {
		t.Errorf("expected cooldown after confirmation, got %s (%d s)", again.Outcome, again.CooldownSeconds)
	}
}

func TestConfirmPendingWithCorrection(t *testing.T) {
	st := memory.NewStore()
	guessed := seedStudent(t, st, "Alice Novak", "R001", "10A", vec(0))
	actual := seedStudent(t, st, "Bara Svoboda", "R002", "10A", vec(1.5))
	engine, now := newTestEngine(t, st)
	ctx := context.Background()

	tentative, err := engine.Decide(ctx, vec(0.55), nil, "10A", "Math")
	if err != nil {
		t.Fatalf("Decide failed: %v", err)
	}
	if tentative.Student.ID != guessed.ID {
		t.Fatalf("expected the engine to guess student %d, got %d", guessed.ID, tentative.Student.ID)
	}

	confirmed, err := engine.ConfirmPending(ctx, tentative.PendingID, actual.ID)
	if err != nil {
		t.Fatalf("ConfirmPending failed: %v", err)
	}
	if confirmed.Outcome != OutcomeMarked {
		t.Fatalf("expected marked, got %s", confirmed.Outcome)
	}
	if confirmed.Student.ID != actual.ID {
		t.Errorf("expected the corrected student %d, got %d", actual.ID, confirmed.Student.ID)
	}

	if marked, _ := st.IsMarked(ctx, actual.ID, store.Day(*now), "Math"); !marked {
		t.Error("expected the record for the corrected student")
	}
	if marked, _ := st.IsMarked(ctx, guessed.ID, store.Day(*now), "Math"); marked {
		t.Error("expected no record for the originally guessed student")
	}

	// The embedding learns toward the corrected identity.
	samples, _ := st.ListSamples(ctx, actual.ID)
	if len(samples) != 2 {
		t.Errorf("expected the corrected student to gain an adaptive sample, got %d", len(samples))
	}
}

func TestConfirmPendingAlreadyMarked(t *testing.T) {
	st := memory.NewStore()
	student := seedStudent(t, st, "Alice Novak", "R001", "10A", vec(0))
	engine, now := newTestEngine(t, st)
	ctx := context.Background()

	tentative, err := engine.Decide(ctx, vec(0.55), nil, "10A", "Math")
	if err != nil {
		t.Fatalf("Decide failed: %v", err)
	}

	record := &store.AttendanceRecord{
		StudentID: student.ID, Day: store.Day(*now), Subject: "Math",
		Status: store.StatusPresent, Confidence: 0.9, MarkedAt: *now,
	}
	if err := st.AddRecord(ctx, record); err != nil {
		t.Fatalf("AddRecord failed: %v", err)
	}

	confirmed, err := engine.ConfirmPending(ctx, tentative.PendingID, 0)
	if err != nil {
		t.Fatalf("ConfirmPending failed: %v", err)
	}
	if confirmed.Outcome != OutcomeAlreadyMarked {
		t.Fatalf("expected already_marked, got %s", confirmed.Outcome)
	}

	// The pending review is gone even though nothing was inserted, and the
	// learner never ran.
	if count, _ := st.CountPending(ctx); count != 0 {
		t.Error("expected the pending review to be deleted")
	}
	samples, _ := st.ListSamples(ctx, student.ID)
	if len(samples) != 1 {
		t.Errorf("expected no adaptive sample for an already marked student, got %d samples", len(samples))
	}
}

func TestConfirmPendingMissing(t *testing.T) {
	st := memory.NewStore()
	engine, _ := newTestEngine(t, st)

	decision, err := engine.ConfirmPending(context.Background(), 999, 0)
	if err != nil {
		t.Fatalf("ConfirmPending failed: %v", err)
	}
	if decision != nil {
		t.Error("expected nil decision for a missing pending review")
	}
}

func TestRejectPending(t *testing.T) {
	st := memory.NewStore()
	seedStudent(t, st, "Alice Novak", "R001", "10A", vec(0))
	engine, now := newTestEngine(t, st)
	ctx := context.Background()

	tentative, err := engine.Decide(ctx, vec(0.55), nil, "10A", "Math")
	if err != nil {
		t.Fatalf("Decide failed: %v", err)
	}

	found, err := engine.RejectPending(ctx, tentative.PendingID)
	if err != nil {
		t.Fatalf("RejectPending failed: %v", err)
	}
	if !found {
		t.Fatal("expected the pending review to be found")
	}

	if count, _ := st.CountPending(ctx); count != 0 {
		t.Error("expected the pending review to be deleted")
	}
	if rows, _ := st.ListRecords(ctx, store.Day(*now), "", 0); len(rows) != 0 {
		t.Error("expected no attendance records after a rejection")
	}

	found, err = engine.RejectPending(ctx, tentative.PendingID)
	if err != nil {
		t.Fatalf("RejectPending failed: %v", err)
	}
	if found {
		t.Error("expected a second rejection to report not found")
	}
}

func TestEnroll(t *testing.T) {
	st := memory.NewStore()
	engine, _ := newTestEngine(t, st)
	ctx := context.Background()

	frames := map[string][]float32{
		"front": vec(0.1),
		"side":  vec(0.12),
	}
	engine.extractor = &stubExtractor{extract: func(frame []byte) ([]float32, error) {
		return frames[string(frame)], nil
	}}

	student := &store.Student{Name: "Alice Novak", RollNumber: "R001", ClassName: "10A"}
	count, err := engine.Enroll(ctx, student, [][]byte{[]byte("front"), []byte("blurry"), []byte("side")})
	if err != nil {
		t.Fatalf("Enroll failed: %v", err)
	}
	if count != 2 {
		t.Errorf("expected 2 samples from 3 frames, got %d", count)
	}

	samples, err := st.ListSamples(ctx, student.ID)
	if err != nil {
		t.Fatalf("ListSamples failed: %v", err)
	}
	if len(samples) != 2 {
		t.Fatalf("expected 2 stored samples, got %d", len(samples))
	}
	for _, s := range samples {
		if s.Source != store.SourceEnrollment {
			t.Errorf("expected enrollment provenance, got %s", s.Source)
		}
	}
}

func TestEnrollNoFaces(t *testing.T) {
	st := memory.NewStore()
	engine, _ := newTestEngine(t, st)

	student := &store.Student{Name: "Alice Novak", RollNumber: "R001", ClassName: "10A"}
	if _, err := engine.Enroll(context.Background(), student, [][]byte{[]byte("blurry")}); err == nil {
		t.Fatal("expected enrollment with no extractable faces to fail")
	}

	// No student may survive without enrollment samples.
	if count, _ := st.CountStudents(context.Background()); count != 0 {
		t.Errorf("expected no students after failed enrollment, got %d", count)
	}
}

func TestProcessFrameNoFace(t *testing.T) {
	st := memory.NewStore()
	engine, _ := newTestEngine(t, st)

	decision, err := engine.ProcessFrame(context.Background(), []byte("frame"), "10A", "Math")
	if err != nil {
		t.Fatalf("ProcessFrame failed: %v", err)
	}
	if decision.Outcome != OutcomeNoFace {
		t.Errorf("expected no_face, got %s", decision.Outcome)
	}
}

func TestProcessFrameExtractorError(t *testing.T) {
	st := memory.NewStore()
	engine, _ := newTestEngine(t, st)
	engine.extractor = &stubExtractor{extract: func([]byte) ([]float32, error) {
		return nil, context.DeadlineExceeded
	}}

	if _, err := engine.ProcessFrame(context.Background(), []byte("frame"), "10A", "Math"); err == nil {
		t.Error("expected extractor errors to propagate")
	}
}

func TestForceRefresh(t *testing.T) {
	st := memory.NewStore()
	seedStudent(t, st, "Alice Novak", "R001", "10A", vec(0))
	engine, _ := newTestEngine(t, st)
	ctx := context.Background()

	if _, err := engine.Decide(ctx, vec(0.7), nil, "10A", "Math"); err != nil {
		t.Fatalf("Decide failed: %v", err)
	}
	loads := st.AllSamplesCalls

	engine.ForceRefresh()
	if _, err := engine.Decide(ctx, vec(0.7), nil, "10A", "Math"); err != nil {
		t.Fatalf("Decide failed: %v", err)
	}
	if st.AllSamplesCalls != loads+1 {
		t.Errorf("expected a rebuild after ForceRefresh, loads went %d -> %d", loads, st.AllSamplesCalls)
	}
}
