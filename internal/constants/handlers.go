package constants

// Request size constants
const (
	// MaxScanBodySize is the maximum size of a scan request body in bytes (10MB).
	// Kiosk frames are JPEG encoded and base64 wrapped, so this leaves headroom.
	MaxScanBodySize = 10 << 20

	// MaxEnrollUploadSize is the maximum size of an enrollment multipart
	// request in bytes (50MB)
	MaxEnrollUploadSize = 50 << 20
)

// Handler pagination constants
const (
	// DefaultReportLimit is the maximum number of attendance rows a single
	// report query returns
	DefaultReportLimit = 5000

	// DefaultPendingLimit is the maximum number of pending reviews listed
	DefaultPendingLimit = 200
)

// Stats constants
const (
	// StatsConfidenceWindow is the number of recent attendance records the
	// confidence digest is computed over
	StatsConfidenceWindow = 500
)
