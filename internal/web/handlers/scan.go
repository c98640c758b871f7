package handlers

import (
	"encoding/base64"
	"encoding/json"
	"log"
	"net/http"
	"strings"
	"time"

	"github.com/kozaktomas/rollcall/internal/constants"
	"github.com/kozaktomas/rollcall/internal/recognition"
	"github.com/kozaktomas/rollcall/internal/schedule"
	"github.com/kozaktomas/rollcall/internal/web/middleware"
)

// StatusNoClass is the scan status reported when no period is scheduled.
// All other scan statuses mirror the engine outcome values.
const StatusNoClass = "no_class"

// ScanHandler handles kiosk frame submissions
type ScanHandler struct {
	engine   *recognition.Engine
	resolver *schedule.Resolver
	now      func() time.Time
}

// NewScanHandler creates a new scan handler
func NewScanHandler(engine *recognition.Engine, resolver *schedule.Resolver) *ScanHandler {
	return &ScanHandler{
		engine:   engine,
		resolver: resolver,
		now:      time.Now,
	}
}

// scanRequest represents a submitted kiosk frame
type scanRequest struct {
	Image string `json:"image"`
}

// ScanStudent is the student summary embedded in scan responses
type ScanStudent struct {
	ID         int64  `json:"id"`
	Name       string `json:"name"`
	RollNumber string `json:"roll_number"`
	ClassName  string `json:"class_name"`
}

// ScanResponse represents the result of processing one frame. Confidence is
// only present when a student was matched; for no_face and unknown there is
// no meaningful value to report.
type ScanResponse struct {
	Status          string       `json:"status"`
	Student         *ScanStudent `json:"student,omitempty"`
	Confidence      *float64     `json:"confidence,omitempty"`
	CooldownSeconds int          `json:"cooldown_seconds,omitempty"`
	PendingID       int64        `json:"pending_id,omitempty"`
	ClassName       string       `json:"class_name,omitempty"`
	Subject         string       `json:"subject,omitempty"`
}

// decodeScanImage decodes a base64 frame, accepting both raw base64 and
// browser data URLs (data:image/jpeg;base64,...).
func decodeScanImage(payload string) ([]byte, error) {
	if idx := strings.Index(payload, ","); idx != -1 && strings.HasPrefix(payload, "data:") {
		payload = payload[idx+1:]
	}
	return base64.StdEncoding.DecodeString(strings.TrimSpace(payload))
}

// Scan processes one camera frame against the current period
func (h *ScanHandler) Scan(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, constants.MaxScanBodySize)

	var req scanRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, errInvalidRequestBody)
		return
	}
	if req.Image == "" {
		respondError(w, http.StatusBadRequest, "image is required")
		return
	}

	frame, err := decodeScanImage(req.Image)
	if err != nil {
		respondError(w, http.StatusBadRequest, "image is not valid base64")
		return
	}

	// Resolve the scheduled period first. Outside class hours no frame
	// reaches the engine.
	period, err := h.resolver.CurrentPeriod(r.Context(), h.now())
	if err != nil {
		respondError(w, http.StatusInternalServerError, "failed to resolve current period")
		return
	}
	if period == nil {
		respondJSON(w, http.StatusOK, ScanResponse{Status: StatusNoClass})
		return
	}

	decision, err := h.engine.ProcessFrame(r.Context(), frame, period.ClassName, period.Subject)
	if err != nil {
		if device := middleware.GetDeviceFromContext(r.Context()); device != "" {
			log.Printf("Scan from device %q failed: %v", sanitizeForLog(device), err)
		} else {
			log.Printf("Scan failed: %v", err)
		}
		respondError(w, http.StatusInternalServerError, "failed to process frame")
		return
	}

	resp := ScanResponse{
		Status:    string(decision.Outcome),
		ClassName: period.ClassName,
		Subject:   period.Subject,
	}
	if decision.Student != nil {
		resp.Student = &ScanStudent{
			ID:         decision.Student.ID,
			Name:       decision.Student.Name,
			RollNumber: decision.Student.RollNumber,
			ClassName:  decision.Student.ClassName,
		}
		confidence := decision.Confidence
		resp.Confidence = &confidence
	}
	resp.CooldownSeconds = decision.CooldownSeconds
	resp.PendingID = decision.PendingID

	respondJSON(w, http.StatusOK, resp)
}
