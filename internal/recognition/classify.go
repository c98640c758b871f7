package recognition

import "github.com/kozaktomas/rollcall/internal/store"

// Band is the confidence band of a match distance.
type Band string

const (
	// BandConfident means the distance is close enough to mark attendance directly.
	BandConfident Band = "confident"
	// BandTentative means the match needs human confirmation.
	BandTentative Band = "tentative"
	// BandUnknown means the face does not match any enrolled student.
	BandUnknown Band = "unknown"
)

// Classify assigns a distance to a confidence band. Threshold boundaries are
// inclusive on the closer band: a distance exactly at the confident threshold
// is confident, exactly at the tentative threshold is tentative.
func Classify(distance float64, settings store.Settings) Band {
	switch {
	case distance <= settings.ConfidentThreshold:
		return BandConfident
	case distance <= settings.TentativeThreshold:
		return BandTentative
	default:
		return BandUnknown
	}
}

// Confidence converts a match distance to a confidence value. The mapping is
// linear and deliberately unclamped: distances above 1 give negative values.
// Callers must not treat it as a probability.
func Confidence(distance float64) float64 {
	return 1 - distance
}
