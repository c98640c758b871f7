package handlers

import (
	"encoding/csv"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/kozaktomas/rollcall/internal/constants"
	"github.com/kozaktomas/rollcall/internal/store"
)

// ReportsHandler handles attendance report endpoints
type ReportsHandler struct {
	store store.Store
	now   func() time.Time
}

// NewReportsHandler creates a new reports handler
func NewReportsHandler(st store.Store) *ReportsHandler {
	return &ReportsHandler{
		store: st,
		now:   time.Now,
	}
}

// reportQuery parses the shared date and class query parameters. The date
// defaults to today.
func (h *ReportsHandler) reportQuery(r *http.Request) (day, className string, err error) {
	day = r.URL.Query().Get("date")
	if day == "" {
		day = store.Day(h.now())
	} else if _, parseErr := time.Parse(store.DayFormat, day); parseErr != nil {
		return "", "", fmt.Errorf("date must be in YYYY-MM-DD format")
	}
	className = r.URL.Query().Get("class")
	return day, className, nil
}

// ReportRowResponse represents one attendance row in API responses
type ReportRowResponse struct {
	StudentID   int64   `json:"student_id"`
	StudentName string  `json:"student_name"`
	RollNumber  string  `json:"roll_number"`
	ClassName   string  `json:"class_name"`
	Department  string  `json:"department,omitempty"`
	Subject     string  `json:"subject"`
	Status      string  `json:"status"`
	Confidence  float64 `json:"confidence"`
	ViaReview   bool    `json:"via_review"`
	MarkedAt    string  `json:"marked_at"`
}

// ClassSummary compares present students against the class roster size
type ClassSummary struct {
	ClassName string `json:"class_name"`
	Present   int    `json:"present"`
	Total     int    `json:"total"`
}

// ReportResponse is the attendance report for one day
type ReportResponse struct {
	Date    string              `json:"date"`
	Rows    []ReportRowResponse `json:"rows"`
	Summary []ClassSummary      `json:"summary"`
}

func reportRowToResponse(row store.ReportRow) ReportRowResponse {
	return ReportRowResponse{
		StudentID:   row.StudentID,
		StudentName: row.StudentName,
		RollNumber:  row.RollNumber,
		ClassName:   row.ClassName,
		Department:  row.Department,
		Subject:     row.Subject,
		Status:      row.Status,
		Confidence:  row.Confidence,
		ViaReview:   row.ViaReview,
		MarkedAt:    row.MarkedAt.Format(time.RFC3339),
	}
}

// buildSummary compares distinct present students per class against the
// roster size. With a class filter only that class is summarized.
func buildSummary(students []store.Student, rows []store.ReportRow, classFilter string) []ClassSummary {
	rosterSize := make(map[string]int)
	classOrder := []string{}
	for _, s := range students {
		if classFilter != "" && s.ClassName != classFilter {
			continue
		}
		if _, seen := rosterSize[s.ClassName]; !seen {
			classOrder = append(classOrder, s.ClassName)
		}
		rosterSize[s.ClassName]++
	}

	presentByClass := make(map[string]map[int64]bool)
	for _, row := range rows {
		if _, ok := presentByClass[row.ClassName]; !ok {
			presentByClass[row.ClassName] = make(map[int64]bool)
		}
		presentByClass[row.ClassName][row.StudentID] = true
	}

	summary := make([]ClassSummary, 0, len(classOrder))
	for _, class := range classOrder {
		summary = append(summary, ClassSummary{
			ClassName: class,
			Present:   len(presentByClass[class]),
			Total:     rosterSize[class],
		})
	}
	return summary
}

// List returns attendance records for a day, optionally filtered by class
func (h *ReportsHandler) List(w http.ResponseWriter, r *http.Request) {
	day, className, err := h.reportQuery(r)
	if err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}

	rows, err := h.store.ListRecords(r.Context(), day, className, constants.DefaultReportLimit)
	if err != nil {
		respondError(w, http.StatusInternalServerError, "failed to list attendance records")
		return
	}

	students, err := h.store.ListStudents(r.Context())
	if err != nil {
		respondError(w, http.StatusInternalServerError, "failed to list students")
		return
	}

	response := ReportResponse{
		Date:    day,
		Rows:    make([]ReportRowResponse, len(rows)),
		Summary: buildSummary(students, rows, className),
	}
	for i, row := range rows {
		response.Rows[i] = reportRowToResponse(row)
	}

	respondJSON(w, http.StatusOK, response)
}

// csvHeader is the fixed first row of every attendance export
var csvHeader = []string{"date", "roll_number", "name", "class", "department", "subject", "status", "confidence", "marked_at", "via_review"}

// WriteCSV streams attendance rows as CSV. Shared with the CLI export
// command so files and downloads match byte for byte.
func WriteCSV(w io.Writer, rows []store.ReportRow) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(csvHeader); err != nil {
		return fmt.Errorf("failed to write csv header: %w", err)
	}
	for _, row := range rows {
		record := []string{
			row.Day,
			row.RollNumber,
			row.StudentName,
			row.ClassName,
			row.Department,
			row.Subject,
			row.Status,
			strconv.FormatFloat(row.Confidence, 'f', 4, 64),
			row.MarkedAt.Format(time.RFC3339),
			strconv.FormatBool(row.ViaReview),
		}
		if err := cw.Write(record); err != nil {
			return fmt.Errorf("failed to write csv row: %w", err)
		}
	}
	cw.Flush()
	return cw.Error()
}

// Export streams the day's attendance as a CSV download
func (h *ReportsHandler) Export(w http.ResponseWriter, r *http.Request) {
	day, className, err := h.reportQuery(r)
	if err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}

	rows, err := h.store.ListRecords(r.Context(), day, className, constants.DefaultReportLimit)
	if err != nil {
		respondError(w, http.StatusInternalServerError, "failed to list attendance records")
		return
	}

	w.Header().Set("Content-Type", "text/csv")
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=attendance-%s.csv", day))
	// Headers are already out if writing fails mid-stream, nothing to recover.
	_ = WriteCSV(w, rows)
}
