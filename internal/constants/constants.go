// Package constants provides shared constants used across the codebase.
// Centralizing these values ensures consistency and makes them easier to modify.
package constants

// Embedding constants
const (
	// EmbeddingDim is the dimensionality of face embeddings produced by the
	// extractor service. Stored vectors must match this exactly.
	EmbeddingDim = 128

	// MaxMatchDistance is the largest Euclidean distance the threshold
	// validation accepts for normalized face embeddings
	MaxMatchDistance = 2.0
)

// Recognition defaults, used when no settings row exists yet
const (
	// DefaultConfidentThreshold is the max distance for an automatic match
	DefaultConfidentThreshold = 0.5

	// DefaultTentativeThreshold is the max distance for a match that is
	// parked for human review instead of being marked automatically
	DefaultTentativeThreshold = 0.6

	// DefaultMaxSamplesPerStudent bounds stored face samples per student
	DefaultMaxSamplesPerStudent = 10
)

// Timing defaults
const (
	// DefaultCacheTTLSeconds is how long a known-set snapshot stays fresh
	DefaultCacheTTLSeconds = 60

	// DefaultCooldownSeconds is how long a just-marked student is ignored
	// before a repeat frame produces another decision for the same subject
	DefaultCooldownSeconds = 300

	// DefaultExtractorTimeoutSeconds bounds a single extractor round trip
	DefaultExtractorTimeoutSeconds = 30
)

// Index constants
const (
	// DefaultIndexThreshold is the known-set size above which the cache
	// builds an approximate index instead of scanning every sample
	DefaultIndexThreshold = 2000
)

// Review image constants
const (
	// DefaultReviewImageMaxPx is the maximum dimension for stored review
	// thumbnails
	DefaultReviewImageMaxPx = 320
)
