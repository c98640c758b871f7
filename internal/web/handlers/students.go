package handlers

import (
	"errors"
	"fmt"
	"io"
	"log"
	"mime/multipart"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/kozaktomas/rollcall/internal/constants"
	"github.com/kozaktomas/rollcall/internal/recognition"
	"github.com/kozaktomas/rollcall/internal/roster"
	"github.com/kozaktomas/rollcall/internal/store"
)

// StudentsHandler handles student enrollment and management endpoints
type StudentsHandler struct {
	store  store.Store
	engine *recognition.Engine
}

// NewStudentsHandler creates a new students handler
func NewStudentsHandler(st store.Store, engine *recognition.Engine) *StudentsHandler {
	return &StudentsHandler{
		store:  st,
		engine: engine,
	}
}

// StudentResponse represents a student in API responses
type StudentResponse struct {
	ID          int64  `json:"id"`
	Name        string `json:"name"`
	RollNumber  string `json:"roll_number"`
	ClassName   string `json:"class_name"`
	Department  string `json:"department,omitempty"`
	SampleCount int    `json:"sample_count"`
	CreatedAt   string `json:"created_at"`
}

func studentToResponse(s store.Student, sampleCount int) StudentResponse {
	return StudentResponse{
		ID:          s.ID,
		Name:        s.Name,
		RollNumber:  s.RollNumber,
		ClassName:   s.ClassName,
		Department:  s.Department,
		SampleCount: sampleCount,
		CreatedAt:   s.CreatedAt.Format(time.RFC3339),
	}
}

// List returns all students, optionally filtered by a name query.
// The query is matched ignoring case and diacritics.
func (h *StudentsHandler) List(w http.ResponseWriter, r *http.Request) {
	students, err := h.store.ListStudents(r.Context())
	if err != nil {
		respondError(w, http.StatusInternalServerError, "failed to list students")
		return
	}

	// One pass over all samples instead of a count query per student.
	counts := make(map[int64]int)
	samples, err := h.store.AllSamples(r.Context())
	if err != nil {
		respondError(w, http.StatusInternalServerError, "failed to count samples")
		return
	}
	for _, s := range samples {
		counts[s.StudentID]++
	}

	query := r.URL.Query().Get("q")
	response := make([]StudentResponse, 0, len(students))
	for _, s := range students {
		if !roster.MatchesQuery(s.Name, query) {
			continue
		}
		response = append(response, studentToResponse(s, counts[s.ID]))
	}

	respondJSON(w, http.StatusOK, response)
}

// StudentDetailResponse is a student with per-provenance sample counts
type StudentDetailResponse struct {
	StudentResponse
	EnrollmentSamples int `json:"enrollment_samples"`
	AdaptiveSamples   int `json:"adaptive_samples"`
}

// Get returns a single student by ID
func (h *StudentsHandler) Get(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		respondError(w, http.StatusBadRequest, "invalid student id")
		return
	}

	student, err := h.store.GetStudent(r.Context(), id)
	if err != nil {
		respondError(w, http.StatusInternalServerError, "failed to get student")
		return
	}
	if student == nil {
		respondError(w, http.StatusNotFound, "student not found")
		return
	}

	samples, err := h.store.ListSamples(r.Context(), id)
	if err != nil {
		respondError(w, http.StatusInternalServerError, "failed to list samples")
		return
	}

	detail := StudentDetailResponse{
		StudentResponse: studentToResponse(*student, len(samples)),
	}
	for _, s := range samples {
		switch s.Source {
		case store.SourceEnrollment:
			detail.EnrollmentSamples++
		case store.SourceAdaptive:
			detail.AdaptiveSamples++
		}
	}

	respondJSON(w, http.StatusOK, detail)
}

// readEnrollmentImages reads every uploaded image into memory
func readEnrollmentImages(files []*multipart.FileHeader) ([][]byte, error) {
	frames := make([][]byte, 0, len(files))
	for _, fileHeader := range files {
		file, err := fileHeader.Open()
		if err != nil {
			return nil, fmt.Errorf("failed to open %s: %w", fileHeader.Filename, err)
		}
		data, err := io.ReadAll(file)
		file.Close()
		if err != nil {
			return nil, fmt.Errorf("failed to read %s: %w", fileHeader.Filename, err)
		}
		frames = append(frames, data)
	}
	return frames, nil
}

// EnrollResponse represents a successful enrollment
type EnrollResponse struct {
	Student StudentResponse `json:"student"`
	Samples int             `json:"samples"`
}

// Create enrolls a new student from a multipart form with student fields
// and one or more face images. Every image must contain a face, otherwise
// nothing is persisted.
func (h *StudentsHandler) Create(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseMultipartForm(constants.MaxEnrollUploadSize); err != nil {
		respondError(w, http.StatusBadRequest, "failed to parse multipart form")
		return
	}

	student := &store.Student{
		Name:       strings.TrimSpace(r.FormValue("name")),
		RollNumber: strings.TrimSpace(r.FormValue("roll_number")),
		ClassName:  strings.TrimSpace(r.FormValue("class_name")),
		Department: strings.TrimSpace(r.FormValue("department")),
	}
	if student.Name == "" || student.RollNumber == "" || student.ClassName == "" {
		respondError(w, http.StatusBadRequest, "name, roll_number and class_name are required")
		return
	}

	files := r.MultipartForm.File["images"]
	if len(files) == 0 {
		respondError(w, http.StatusBadRequest, "at least one face image is required")
		return
	}

	frames, err := readEnrollmentImages(files)
	if err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}

	samples, err := h.engine.Enroll(r.Context(), student, frames)
	if err != nil {
		if errors.Is(err, store.ErrRollNumberTaken) {
			respondError(w, http.StatusConflict, "roll number already taken")
			return
		}
		log.Printf("Enrollment of %q failed: %v", sanitizeForLog(student.Name), err)
		respondError(w, http.StatusUnprocessableEntity, err.Error())
		return
	}

	respondJSON(w, http.StatusCreated, EnrollResponse{
		Student: studentToResponse(*student, samples),
		Samples: samples,
	})
}

// Delete removes a student and everything attached to them
func (h *StudentsHandler) Delete(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		respondError(w, http.StatusBadRequest, "invalid student id")
		return
	}

	student, err := h.store.GetStudent(r.Context(), id)
	if err != nil {
		respondError(w, http.StatusInternalServerError, "failed to get student")
		return
	}
	if student == nil {
		respondError(w, http.StatusNotFound, "student not found")
		return
	}

	if err := h.store.DeleteStudent(r.Context(), id); err != nil {
		respondError(w, http.StatusInternalServerError, "failed to delete student")
		return
	}

	// The known set changed, force a rebuild before the next decision.
	h.engine.ForceRefresh()

	respondJSON(w, http.StatusOK, map[string]bool{"deleted": true})
}
