// Package recognition implements the attendance decision engine: matching
// face embeddings against enrolled students, classifying matches into
// confidence bands and deciding what each scan should do.
package recognition

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/kozaktomas/rollcall/internal/constants"
	"github.com/kozaktomas/rollcall/internal/imaging"
	"github.com/kozaktomas/rollcall/internal/store"
)

// Extractor produces a face embedding from a camera frame. It returns
// (nil, nil) when the frame contains no face.
type Extractor interface {
	ExtractFace(ctx context.Context, frame []byte) ([]float32, error)
}

// Config holds the engine tunables that are fixed per process. The
// recognition thresholds live in the database instead and are read fresh on
// every decision.
type Config struct {
	CacheTTL       time.Duration
	CooldownWindow time.Duration
	IndexThreshold int
	ReviewMaxPx    int
}

// Engine is the decision engine. One instance per process; all state it owns
// (known-set cache, cooldown tracker) lives and dies with it.
type Engine struct {
	store     store.Store
	extractor Extractor
	cache     *Cache
	cooldown  *CooldownTracker
	reviewPx  int

	// now is replaced in tests to control time
	now func() time.Time
}

// NewEngine creates a decision engine on top of the given store and extractor.
func NewEngine(st store.Store, extractor Extractor, cfg Config) *Engine {
	if cfg.CacheTTL <= 0 {
		cfg.CacheTTL = constants.DefaultCacheTTLSeconds * time.Second
	}
	if cfg.CooldownWindow <= 0 {
		cfg.CooldownWindow = constants.DefaultCooldownSeconds * time.Second
	}
	if cfg.ReviewMaxPx <= 0 {
		cfg.ReviewMaxPx = constants.DefaultReviewImageMaxPx
	}

	return &Engine{
		store:     st,
		extractor: extractor,
		cache:     NewCache(st, cfg.CacheTTL, cfg.IndexThreshold),
		cooldown:  NewCooldownTracker(cfg.CooldownWindow),
		reviewPx:  cfg.ReviewMaxPx,
		now:       time.Now,
	}
}

// ProcessFrame extracts a face embedding from a camera frame and runs the
// decision for it. className and subject describe the scheduled period the
// kiosk is scanning for.
func (e *Engine) ProcessFrame(ctx context.Context, frame []byte, className, subject string) (*Decision, error) {
	embedding, err := e.extractor.ExtractFace(ctx, frame)
	if err != nil {
		return nil, fmt.Errorf("failed to extract face: %w", err)
	}
	if embedding == nil {
		return &Decision{Outcome: OutcomeNoFace}, nil
	}

	return e.Decide(ctx, embedding, frame, className, subject)
}

// Decide runs the full decision pipeline for an already extracted embedding:
// match, classify, class membership check, cooldown, then either mark
// attendance, queue a pending review or reject the face as unknown.
func (e *Engine) Decide(ctx context.Context, embedding []float32, frame []byte, className, subject string) (*Decision, error) {
	settings, err := e.store.GetSettings(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to load settings: %w", err)
	}

	snapshot, index, err := e.cache.Get(ctx)
	if err != nil {
		return nil, err
	}

	studentID, distance := FindNearest(embedding, snapshot, index)
	band := Classify(distance, settings)
	confidence := Confidence(distance)

	if band == BandUnknown {
		return &Decision{Outcome: OutcomeUnknown, Distance: distance, Confidence: confidence}, nil
	}

	student, err := e.store.GetStudent(ctx, studentID)
	if err != nil {
		return nil, fmt.Errorf("failed to load student %d: %w", studentID, err)
	}
	if student == nil {
		// Sample without a student means the cache outlived a deletion.
		e.cache.Invalidate()
		return nil, fmt.Errorf("matched student %d no longer exists", studentID)
	}

	decision := &Decision{Student: student, Distance: distance, Confidence: confidence}

	if className != "" && student.ClassName != className {
		decision.Outcome = OutcomeWrongClass
		return decision, nil
	}

	now := e.now()
	if remaining := e.cooldown.Remaining(student.ID, now); remaining > 0 {
		decision.Outcome = OutcomeAlreadyMarked
		decision.CooldownSeconds = remaining
		return decision, nil
	}

	if band == BandTentative {
		return e.queuePending(ctx, decision, embedding, frame, subject)
	}

	return e.markAttendance(ctx, decision, embedding, subject, settings, now)
}

// queuePending stores a tentative match for human review.
func (e *Engine) queuePending(ctx context.Context, decision *Decision, embedding []float32, frame []byte, subject string) (*Decision, error) {
	reviewFrame := frame
	if len(frame) > 0 {
		thumb, err := imaging.Thumbnail(frame, e.reviewPx)
		if err != nil {
			log.Printf("failed to shrink review frame: %v", err)
		} else {
			reviewFrame = thumb
		}
	}

	pending := &store.PendingReview{
		StudentID:  decision.Student.ID,
		Embedding:  embedding,
		Frame:      reviewFrame,
		Confidence: decision.Confidence,
		Subject:    subject,
	}
	if err := e.store.CreatePending(ctx, pending); err != nil {
		return nil, fmt.Errorf("failed to queue pending review: %w", err)
	}

	decision.Outcome = OutcomePending
	decision.PendingID = pending.ID
	return decision, nil
}

// markAttendance commits a confident match to the ledger. Duplicate inserts
// are benign: the record already exists, so the outcome is already_marked.
func (e *Engine) markAttendance(ctx context.Context, decision *Decision, embedding []float32, subject string, settings store.Settings, now time.Time) (*Decision, error) {
	day := store.Day(now)

	marked, err := e.store.IsMarked(ctx, decision.Student.ID, day, subject)
	if err != nil {
		return nil, fmt.Errorf("failed to check attendance: %w", err)
	}
	if marked {
		decision.Outcome = OutcomeAlreadyMarked
		return decision, nil
	}

	record := &store.AttendanceRecord{
		StudentID:  decision.Student.ID,
		Day:        day,
		Subject:    subject,
		Status:     store.StatusPresent,
		Confidence: decision.Confidence,
		MarkedAt:   now,
	}
	if err := e.store.AddRecord(ctx, record); err != nil {
		if errors.Is(err, store.ErrDuplicateAttendance) {
			decision.Outcome = OutcomeAlreadyMarked
			return decision, nil
		}
		return nil, fmt.Errorf("failed to record attendance: %w", err)
	}

	e.cooldown.Mark(decision.Student.ID, now)

	if settings.AdaptiveLearning {
		if err := e.learn(ctx, decision.Student.ID, embedding, settings.MaxSamplesPerStudent); err != nil {
			return nil, err
		}
	}

	decision.Outcome = OutcomeMarked
	return decision, nil
}

// learn stores the observed embedding as an adaptive sample and prunes the
// oldest adaptive samples when the student exceeds the per-student bound.
// Enrollment samples are never pruned.
func (e *Engine) learn(ctx context.Context, studentID int64, embedding []float32, maxSamples int) error {
	sample := &store.FaceSample{
		StudentID: studentID,
		Embedding: embedding,
		Source:    store.SourceAdaptive,
	}
	if err := e.store.AddSample(ctx, sample); err != nil {
		return fmt.Errorf("failed to store adaptive sample: %w", err)
	}

	samples, err := e.store.ListSamples(ctx, studentID)
	if err != nil {
		return fmt.Errorf("failed to list samples: %w", err)
	}

	if excess := len(samples) - maxSamples; excess > 0 {
		var evict []int64
		for _, s := range samples {
			if s.Source != store.SourceAdaptive {
				continue
			}
			evict = append(evict, s.ID)
			if len(evict) == excess {
				break
			}
		}
		if len(evict) > 0 {
			if err := e.store.DeleteSamples(ctx, evict); err != nil {
				return fmt.Errorf("failed to prune adaptive samples: %w", err)
			}
		}
	}

	e.cache.Invalidate()
	return nil
}

// Enroll creates a student and extracts enrollment samples from the given
// frames. Frames without a detectable face are skipped; if no frame yields a
// face, the student is rolled back and an error returned. Returns the number
// of samples stored.
func (e *Engine) Enroll(ctx context.Context, student *store.Student, frames [][]byte) (int, error) {
	var embeddings [][]float32
	for i, frame := range frames {
		embedding, err := e.extractor.ExtractFace(ctx, frame)
		if err != nil {
			return 0, fmt.Errorf("failed to extract face from frame %d: %w", i+1, err)
		}
		if embedding == nil {
			continue
		}
		embeddings = append(embeddings, embedding)
	}

	if len(embeddings) == 0 {
		return 0, errors.New("no face detected in any enrollment frame")
	}

	if err := e.store.CreateStudent(ctx, student); err != nil {
		return 0, err
	}

	for _, embedding := range embeddings {
		sample := &store.FaceSample{
			StudentID: student.ID,
			Embedding: embedding,
			Source:    store.SourceEnrollment,
		}
		if err := e.store.AddSample(ctx, sample); err != nil {
			// Roll back so no student exists without enrollment samples.
			if delErr := e.store.DeleteStudent(ctx, student.ID); delErr != nil {
				log.Printf("failed to roll back student %d: %v", student.ID, delErr)
			}
			return 0, fmt.Errorf("failed to store enrollment sample: %w", err)
		}
	}

	e.cache.Invalidate()
	return len(embeddings), nil
}

// ConfirmPending resolves a pending review as a correct match. An optional
// override student ID records the attendance for a different student than
// the engine guessed. Returns nil when the pending review does not exist.
// The pending row is deleted in every path, including duplicates.
func (e *Engine) ConfirmPending(ctx context.Context, pendingID, overrideStudentID int64) (*Decision, error) {
	pending, err := e.store.GetPending(ctx, pendingID)
	if err != nil {
		return nil, fmt.Errorf("failed to load pending review: %w", err)
	}
	if pending == nil {
		return nil, nil
	}

	studentID := pending.StudentID
	if overrideStudentID > 0 {
		studentID = overrideStudentID
	}

	student, err := e.store.GetStudent(ctx, studentID)
	if err != nil {
		return nil, fmt.Errorf("failed to load student %d: %w", studentID, err)
	}
	if student == nil {
		return nil, fmt.Errorf("student %d does not exist", studentID)
	}

	settings, err := e.store.GetSettings(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to load settings: %w", err)
	}

	decision := &Decision{Student: student, Confidence: pending.Confidence}

	now := e.now()
	day := store.Day(now)

	marked, err := e.store.IsMarked(ctx, studentID, day, pending.Subject)
	if err != nil {
		return nil, fmt.Errorf("failed to check attendance: %w", err)
	}
	if marked {
		decision.Outcome = OutcomeAlreadyMarked
		return decision, e.deletePending(ctx, pendingID)
	}

	record := &store.AttendanceRecord{
		StudentID:  studentID,
		Day:        day,
		Subject:    pending.Subject,
		Status:     store.StatusPresent,
		Confidence: pending.Confidence,
		ViaReview:  true,
		MarkedAt:   now,
	}
	if err := e.store.AddRecord(ctx, record); err != nil {
		if errors.Is(err, store.ErrDuplicateAttendance) {
			decision.Outcome = OutcomeAlreadyMarked
			return decision, e.deletePending(ctx, pendingID)
		}
		return nil, fmt.Errorf("failed to record attendance: %w", err)
	}

	e.cooldown.Mark(studentID, now)

	if settings.AdaptiveLearning {
		if err := e.learn(ctx, studentID, pending.Embedding, settings.MaxSamplesPerStudent); err != nil {
			return nil, err
		}
	}

	decision.Outcome = OutcomeMarked
	return decision, e.deletePending(ctx, pendingID)
}

// RejectPending discards a pending review. Returns false when it does not exist.
func (e *Engine) RejectPending(ctx context.Context, pendingID int64) (bool, error) {
	pending, err := e.store.GetPending(ctx, pendingID)
	if err != nil {
		return false, fmt.Errorf("failed to load pending review: %w", err)
	}
	if pending == nil {
		return false, nil
	}

	return true, e.deletePending(ctx, pendingID)
}

func (e *Engine) deletePending(ctx context.Context, id int64) error {
	if err := e.store.DeletePending(ctx, id); err != nil {
		return fmt.Errorf("failed to delete pending review: %w", err)
	}
	return nil
}

// ForceRefresh invalidates the known-set cache. The next decision rebuilds it.
func (e *Engine) ForceRefresh() {
	e.cache.Invalidate()
}

// KnownSetSize reports the size of the current known-set snapshot.
func (e *Engine) KnownSetSize() int {
	return e.cache.Len()
}

// KnownSetLoadedAt reports when the known-set snapshot was last rebuilt.
func (e *Engine) KnownSetLoadedAt() time.Time {
	return e.cache.LoadedAt()
}
