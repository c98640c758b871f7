package recognition

import "github.com/kozaktomas/rollcall/internal/store"

// Outcome is the discriminated result of one scan decision.
type Outcome string

const (
	// OutcomeNoFace means the frame contained no detectable face.
	OutcomeNoFace Outcome = "no_face"
	// OutcomeUnknown means the face matched no enrolled student.
	OutcomeUnknown Outcome = "unknown"
	// OutcomeWrongClass means the student does not belong to the scheduled class.
	OutcomeWrongClass Outcome = "wrong_class"
	// OutcomeAlreadyMarked means attendance for this student already exists,
	// either in the cooldown window or in the ledger.
	OutcomeAlreadyMarked Outcome = "already_marked"
	// OutcomeMarked means attendance was recorded.
	OutcomeMarked Outcome = "marked"
	// OutcomePending means the match was queued for human confirmation.
	OutcomePending Outcome = "pending"
)

// Decision is the full result of processing one frame or embedding.
// Student is set for every outcome where an identity was matched, nil for
// no_face and unknown. Confidence carries the unclamped 1-distance value and
// is only meaningful when a match occurred.
type Decision struct {
	Outcome         Outcome
	Student         *store.Student
	Confidence      float64
	Distance        float64
	CooldownSeconds int
	PendingID       int64
}
