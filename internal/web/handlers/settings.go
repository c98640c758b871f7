package handlers

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/kozaktomas/rollcall/internal/store"
)

// SettingsHandler handles the recognition settings endpoints. The engine
// reads settings fresh on every decision, so saves take effect immediately
// without touching the engine.
type SettingsHandler struct {
	store store.SettingsStore
}

// NewSettingsHandler creates a new settings handler
func NewSettingsHandler(st store.SettingsStore) *SettingsHandler {
	return &SettingsHandler{store: st}
}

// SettingsResponse represents the recognition settings in API responses
type SettingsResponse struct {
	ConfidentThreshold   float64 `json:"confident_threshold"`
	TentativeThreshold   float64 `json:"tentative_threshold"`
	MaxSamplesPerStudent int     `json:"max_samples_per_student"`
	AdaptiveLearning     bool    `json:"adaptive_learning"`
	UpdatedAt            string  `json:"updated_at,omitempty"`
}

func settingsToResponse(s store.Settings) SettingsResponse {
	resp := SettingsResponse{
		ConfidentThreshold:   s.ConfidentThreshold,
		TentativeThreshold:   s.TentativeThreshold,
		MaxSamplesPerStudent: s.MaxSamplesPerStudent,
		AdaptiveLearning:     s.AdaptiveLearning,
	}
	if !s.UpdatedAt.IsZero() {
		resp.UpdatedAt = s.UpdatedAt.Format(time.RFC3339)
	}
	return resp
}

// Get returns the current recognition settings
func (h *SettingsHandler) Get(w http.ResponseWriter, r *http.Request) {
	settings, err := h.store.GetSettings(r.Context())
	if err != nil {
		respondError(w, http.StatusInternalServerError, "failed to get settings")
		return
	}

	respondJSON(w, http.StatusOK, settingsToResponse(settings))
}

// settingsUpdateRequest carries partial settings updates. Pointer fields
// distinguish "not provided" from zero values.
type settingsUpdateRequest struct {
	ConfidentThreshold   *float64 `json:"confident_threshold,omitempty"`
	TentativeThreshold   *float64 `json:"tentative_threshold,omitempty"`
	MaxSamplesPerStudent *int     `json:"max_samples_per_student,omitempty"`
	AdaptiveLearning     *bool    `json:"adaptive_learning,omitempty"`
}

// Update saves new recognition settings. Omitted fields keep their
// current values; validation rejects inconsistent thresholds.
func (h *SettingsHandler) Update(w http.ResponseWriter, r *http.Request) {
	var req settingsUpdateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, errInvalidRequestBody)
		return
	}

	settings, err := h.store.GetSettings(r.Context())
	if err != nil {
		respondError(w, http.StatusInternalServerError, "failed to get settings")
		return
	}

	if req.ConfidentThreshold != nil {
		settings.ConfidentThreshold = *req.ConfidentThreshold
	}
	if req.TentativeThreshold != nil {
		settings.TentativeThreshold = *req.TentativeThreshold
	}
	if req.MaxSamplesPerStudent != nil {
		settings.MaxSamplesPerStudent = *req.MaxSamplesPerStudent
	}
	if req.AdaptiveLearning != nil {
		settings.AdaptiveLearning = *req.AdaptiveLearning
	}

	if err := settings.Validate(); err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}

	if err := h.store.SaveSettings(r.Context(), settings); err != nil {
		respondError(w, http.StatusInternalServerError, "failed to save settings")
		return
	}

	saved, err := h.store.GetSettings(r.Context())
	if err != nil {
		respondError(w, http.StatusInternalServerError, "failed to get settings")
		return
	}

	respondJSON(w, http.StatusOK, settingsToResponse(saved))
}
