package handlers

import (
	"encoding/base64"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/kozaktomas/rollcall/internal/constants"
	"github.com/kozaktomas/rollcall/internal/recognition"
	"github.com/kozaktomas/rollcall/internal/store"
)

// PendingHandler handles the review queue for tentative matches
type PendingHandler struct {
	store  store.Store
	engine *recognition.Engine
}

// NewPendingHandler creates a new pending review handler
func NewPendingHandler(st store.Store, engine *recognition.Engine) *PendingHandler {
	return &PendingHandler{
		store:  st,
		engine: engine,
	}
}

// PendingResponse represents a pending review in API responses. The
// thumbnail is inlined as a data URL so the review UI needs no extra
// round trip per row.
type PendingResponse struct {
	ID          int64   `json:"id"`
	StudentID   int64   `json:"student_id"`
	StudentName string  `json:"student_name"`
	RollNumber  string  `json:"roll_number"`
	ClassName   string  `json:"class_name"`
	Confidence  float64 `json:"confidence"`
	Subject     string  `json:"subject"`
	Thumbnail   string  `json:"thumbnail,omitempty"`
	CreatedAt   string  `json:"created_at"`
}

func pendingToResponse(p store.PendingWithStudent) PendingResponse {
	resp := PendingResponse{
		ID:          p.ID,
		StudentID:   p.StudentID,
		StudentName: p.StudentName,
		RollNumber:  p.RollNumber,
		ClassName:   p.ClassName,
		Confidence:  p.Confidence,
		Subject:     p.Subject,
		CreatedAt:   p.CreatedAt.Format(time.RFC3339),
	}
	if len(p.Frame) > 0 {
		resp.Thumbnail = "data:image/jpeg;base64," + base64.StdEncoding.EncodeToString(p.Frame)
	}
	return resp
}

// List returns pending reviews, oldest first
func (h *PendingHandler) List(w http.ResponseWriter, r *http.Request) {
	pending, err := h.store.ListPending(r.Context(), constants.DefaultPendingLimit)
	if err != nil {
		respondError(w, http.StatusInternalServerError, "failed to list pending reviews")
		return
	}

	response := make([]PendingResponse, len(pending))
	for i, p := range pending {
		response[i] = pendingToResponse(p)
	}

	respondJSON(w, http.StatusOK, response)
}

// confirmRequest optionally overrides the matched student
type confirmRequest struct {
	StudentID int64 `json:"student_id"`
}

// ConfirmResponse represents the outcome of confirming a pending review
type ConfirmResponse struct {
	Status     string       `json:"status"`
	Student    *ScanStudent `json:"student,omitempty"`
	Confidence *float64     `json:"confidence,omitempty"`
}

// Confirm turns a pending review into an attendance record. The request
// body may carry a student_id to correct the match before confirming.
func (h *PendingHandler) Confirm(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		respondError(w, http.StatusBadRequest, "invalid pending id")
		return
	}

	// The body is optional; an empty body confirms the original match.
	var req confirmRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil && !errors.Is(err, io.EOF) {
		respondError(w, http.StatusBadRequest, errInvalidRequestBody)
		return
	}

	decision, err := h.engine.ConfirmPending(r.Context(), id, req.StudentID)
	if err != nil {
		respondError(w, http.StatusInternalServerError, err.Error())
		return
	}
	if decision == nil {
		respondError(w, http.StatusNotFound, "pending review not found")
		return
	}

	resp := ConfirmResponse{Status: string(decision.Outcome)}
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

	respondJSON(w, http.StatusOK, resp)
}

// Reject discards a pending review without recording attendance
func (h *PendingHandler) Reject(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		respondError(w, http.StatusBadRequest, "invalid pending id")
		return
	}

	deleted, err := h.engine.RejectPending(r.Context(), id)
	if err != nil {
		respondError(w, http.StatusInternalServerError, "failed to reject pending review")
		return
	}
	if !deleted {
		respondError(w, http.StatusNotFound, "pending review not found")
		return
	}

	respondJSON(w, http.StatusOK, map[string]bool{"rejected": true})
}
