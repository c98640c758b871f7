package handlers

import (
	"encoding/json"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/kozaktomas/rollcall/internal/schedule"
	"github.com/kozaktomas/rollcall/internal/store"
)

// TimetableHandler handles weekly schedule endpoints
type TimetableHandler struct {
	store    store.TimetableStore
	resolver *schedule.Resolver
	now      func() time.Time
}

// NewTimetableHandler creates a new timetable handler
func NewTimetableHandler(st store.TimetableStore, resolver *schedule.Resolver) *TimetableHandler {
	return &TimetableHandler{
		store:    st,
		resolver: resolver,
		now:      time.Now,
	}
}

// TimetableEntryResponse represents a timetable entry in API responses
type TimetableEntryResponse struct {
	ID        int64  `json:"id"`
	ClassName string `json:"class_name"`
	Weekday   int    `json:"weekday"`
	Start     string `json:"start"`
	End       string `json:"end"`
	Subject   string `json:"subject"`
}

func entryToResponse(e store.TimetableEntry) TimetableEntryResponse {
	return TimetableEntryResponse{
		ID:        e.ID,
		ClassName: e.ClassName,
		Weekday:   e.Weekday,
		Start:     e.Start,
		End:       e.End,
		Subject:   e.Subject,
	}
}

// List returns timetable entries, optionally filtered by weekday
func (h *TimetableHandler) List(w http.ResponseWriter, r *http.Request) {
	var entries []store.TimetableEntry
	var err error

	if weekdayParam := r.URL.Query().Get("weekday"); weekdayParam != "" {
		weekday, parseErr := strconv.Atoi(weekdayParam)
		if parseErr != nil || weekday < 0 || weekday > 6 {
			respondError(w, http.StatusBadRequest, "weekday must be between 0 (Monday) and 6 (Sunday)")
			return
		}
		entries, err = h.store.EntriesForWeekday(r.Context(), weekday)
	} else {
		entries, err = h.store.ListEntries(r.Context())
	}
	if err != nil {
		respondError(w, http.StatusInternalServerError, "failed to list timetable entries")
		return
	}

	response := make([]TimetableEntryResponse, len(entries))
	for i, e := range entries {
		response[i] = entryToResponse(e)
	}

	respondJSON(w, http.StatusOK, response)
}

// timetableEntryRequest represents the request body for creating an entry
type timetableEntryRequest struct {
	ClassName string `json:"class_name"`
	Weekday   int    `json:"weekday"`
	Start     string `json:"start"`
	End       string `json:"end"`
	Subject   string `json:"subject"`
}

// Create adds a new timetable entry
func (h *TimetableHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req timetableEntryRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, errInvalidRequestBody)
		return
	}

	entry := &store.TimetableEntry{
		ClassName: req.ClassName,
		Weekday:   req.Weekday,
		Start:     req.Start,
		End:       req.End,
		Subject:   req.Subject,
	}
	if err := entry.Validate(); err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}

	if err := h.store.AddEntry(r.Context(), entry); err != nil {
		respondError(w, http.StatusInternalServerError, "failed to create timetable entry")
		return
	}

	respondJSON(w, http.StatusCreated, entryToResponse(*entry))
}

// Delete removes a timetable entry
func (h *TimetableHandler) Delete(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		respondError(w, http.StatusBadRequest, "invalid entry id")
		return
	}

	if err := h.store.DeleteEntry(r.Context(), id); err != nil {
		respondError(w, http.StatusInternalServerError, "failed to delete timetable entry")
		return
	}

	respondJSON(w, http.StatusOK, map[string]bool{"deleted": true})
}

// CurrentPeriodResponse tells the kiosk what period is running right now
type CurrentPeriodResponse struct {
	Active bool                    `json:"active"`
	Period *TimetableEntryResponse `json:"period,omitempty"`
}

// Current returns the period scheduled for the current wall-clock time
func (h *TimetableHandler) Current(w http.ResponseWriter, r *http.Request) {
	period, err := h.resolver.CurrentPeriod(r.Context(), h.now())
	if err != nil {
		respondError(w, http.StatusInternalServerError, "failed to resolve current period")
		return
	}
	if period == nil {
		respondJSON(w, http.StatusOK, CurrentPeriodResponse{Active: false})
		return
	}

	resp := entryToResponse(*period)
	respondJSON(w, http.StatusOK, CurrentPeriodResponse{
		Active: true,
		Period: &resp,
	})
}
