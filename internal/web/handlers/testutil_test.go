package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"image"
	"image/color"
	"image/jpeg"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/kozaktomas/rollcall/internal/config"
	"github.com/kozaktomas/rollcall/internal/constants"
	"github.com/kozaktomas/rollcall/internal/recognition"
	"github.com/kozaktomas/rollcall/internal/schedule"
	"github.com/kozaktomas/rollcall/internal/store"
	"github.com/kozaktomas/rollcall/internal/store/memory"
)

// testClock is a Monday 09:30, inside the period seeded by seedPeriod
var testClock = time.Date(2026, 3, 2, 9, 30, 0, 0, time.UTC)

// testConfig creates a minimal config for testing
func testConfig() *config.Config {
	return &config.Config{
		Auth: config.AuthConfig{
			AdminUsername: "admin",
			AdminPassword: "test-password",
		},
	}
}

// stubExtractor returns a fixed embedding for every frame
type stubExtractor struct {
	embedding []float32
	err       error
}

func (s *stubExtractor) ExtractFace(ctx context.Context, frame []byte) ([]float32, error) {
	if s.err != nil {
		return nil, s.err
	}
	return s.embedding, nil
}

// vec builds an embedding whose distance to vec(0) equals first
func vec(first float32) []float32 {
	v := make([]float32, constants.EmbeddingDim)
	v[0] = first
	return v
}

// newTestEngine wires an engine to a memory store and a stub extractor
func newTestEngine(st store.Store, extractor recognition.Extractor) *recognition.Engine {
	return recognition.NewEngine(st, extractor, recognition.Config{
		CacheTTL:       time.Minute,
		CooldownWindow: 5 * time.Minute,
	})
}

// seedStudent enrolls a student with one stored embedding
func seedStudent(t *testing.T, st *memory.Store, name, roll, class string, embedding []float32) *store.Student {
	t.Helper()
	student := &store.Student{Name: name, RollNumber: roll, ClassName: class}
	if err := st.CreateStudent(context.Background(), student); err != nil {
		t.Fatalf("failed to create student: %v", err)
	}
	sample := &store.FaceSample{
		StudentID: student.ID,
		Embedding: embedding,
		Source:    store.SourceEnrollment,
	}
	if err := st.AddSample(context.Background(), sample); err != nil {
		t.Fatalf("failed to add sample: %v", err)
	}
	return student
}

// seedPeriod schedules Mathematics for class 10A around testClock
func seedPeriod(t *testing.T, st *memory.Store) *store.TimetableEntry {
	t.Helper()
	entry := &store.TimetableEntry{
		ClassName: "10A",
		Weekday:   0, // Monday
		Start:     "09:00",
		End:       "10:00",
		Subject:   "Mathematics",
	}
	if err := st.AddEntry(context.Background(), entry); err != nil {
		t.Fatalf("failed to add timetable entry: %v", err)
	}
	return entry
}

// makeTestFrame encodes a small JPEG for scan and enrollment requests
func makeTestFrame(t *testing.T) []byte {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, 64, 48))
	for y := 0; y < 48; y++ {
		for x := 0; x < 64; x++ {
			img.Set(x, y, color.RGBA{R: uint8(x * 4), G: uint8(y * 5), B: 80, A: 255})
		}
	}
	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, img, nil); err != nil {
		t.Fatalf("failed to encode test frame: %v", err)
	}
	return buf.Bytes()
}

// requestWithChiParams creates a request with chi URL parameters
func requestWithChiParams(r *http.Request, params map[string]string) *http.Request {
	rctx := chi.NewRouteContext()
	for key, value := range params {
		rctx.URLParams.Add(key, value)
	}
	return r.WithContext(context.WithValue(r.Context(), chi.RouteCtxKey, rctx))
}

// parseJSONResponse parses a JSON response body into the target type
func parseJSONResponse(t *testing.T, recorder *httptest.ResponseRecorder, target any) {
	t.Helper()
	if err := json.Unmarshal(recorder.Body.Bytes(), target); err != nil {
		t.Fatalf("failed to parse JSON response: %v\nBody: %s", err, recorder.Body.String())
	}
}

// assertStatusCode checks if the response has the expected status code
func assertStatusCode(t *testing.T, recorder *httptest.ResponseRecorder, expected int) {
	t.Helper()
	if recorder.Code != expected {
		t.Errorf("expected status %d, got %d\nBody: %s", expected, recorder.Code, recorder.Body.String())
	}
}

// assertContentType checks if the response has the expected content type
func assertContentType(t *testing.T, recorder *httptest.ResponseRecorder, expected string) {
	t.Helper()
	ct := recorder.Header().Get("Content-Type")
	if ct != expected {
		t.Errorf("expected Content-Type '%s', got '%s'", expected, ct)
	}
}

// assertJSONError checks if the response is a JSON error with the expected message
func assertJSONError(t *testing.T, recorder *httptest.ResponseRecorder, expectedMessage string) {
	t.Helper()
	var result map[string]string
	if err := json.Unmarshal(recorder.Body.Bytes(), &result); err != nil {
		t.Fatalf("failed to parse error response: %v\nBody: %s", err, recorder.Body.String())
	}
	if result["error"] != expectedMessage {
		t.Errorf("expected error '%s', got '%s'", expectedMessage, result["error"])
	}
}

// newScanFixture assembles the full scan pipeline on a memory store
func newScanFixture(t *testing.T, st *memory.Store, extractor recognition.Extractor) *ScanHandler {
	t.Helper()
	engine := newTestEngine(st, extractor)
	resolver := schedule.NewResolver(st)
	handler := NewScanHandler(engine, resolver)
	handler.now = func() time.Time { return testClock }
	return handler
}
