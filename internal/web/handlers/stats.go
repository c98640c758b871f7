package handlers

import (
	"net/http"
	"sort"
	"sync"
	"time"

	"github.com/kozaktomas/rollcall/internal/constants"
	"github.com/kozaktomas/rollcall/internal/recognition"
	"github.com/kozaktomas/rollcall/internal/schedule"
	"github.com/kozaktomas/rollcall/internal/store"
	"gonum.org/v1/gonum/stat"
)

const statsCacheTTL = time.Minute

// statsCache holds cached stats with expiry
type statsCache struct {
	mu        sync.RWMutex
	data      *StatsResponse
	expiresAt time.Time
}

func (c *statsCache) get() (*StatsResponse, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.data == nil || time.Now().After(c.expiresAt) {
		return nil, false
	}
	return c.data, true
}

func (c *statsCache) set(data *StatsResponse) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.data = data
	c.expiresAt = time.Now().Add(statsCacheTTL)
}

func (c *statsCache) invalidate() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.data = nil
}

// StatsHandler handles the dashboard statistics endpoint
type StatsHandler struct {
	store    store.Store
	engine   *recognition.Engine
	resolver *schedule.Resolver
	cache    statsCache
	now      func() time.Time
}

// NewStatsHandler creates a new stats handler
func NewStatsHandler(st store.Store, engine *recognition.Engine, resolver *schedule.Resolver) *StatsHandler {
	return &StatsHandler{
		store:    st,
		engine:   engine,
		resolver: resolver,
		now:      time.Now,
	}
}

// InvalidateCache clears the cached stats so the next request fetches fresh data
func (h *StatsHandler) InvalidateCache() {
	h.cache.invalidate()
}

// ConfidenceDigest summarizes match confidence over recent attendance records
type ConfidenceDigest struct {
	Count  int     `json:"count"`
	Mean   float64 `json:"mean"`
	StdDev float64 `json:"std_dev"`
	P25    float64 `json:"p25"`
	Median float64 `json:"median"`
	P75    float64 `json:"p75"`
}

// StatsResponse represents the dashboard statistics
type StatsResponse struct {
	Students          int                     `json:"students"`
	EnrollmentSamples int                     `json:"enrollment_samples"`
	AdaptiveSamples   int                     `json:"adaptive_samples"`
	AttendanceToday   int                     `json:"attendance_today"`
	PendingReviews    int                     `json:"pending_reviews"`
	KnownSetSize      int                     `json:"known_set_size"`
	KnownSetLoadedAt  string                  `json:"known_set_loaded_at,omitempty"`
	CurrentPeriod     *TimetableEntryResponse `json:"current_period,omitempty"`
	Confidence        *ConfidenceDigest       `json:"confidence,omitempty"`
}

// confidenceDigest computes distribution statistics over recent confidence
// values. Fewer than two values carry no distribution, so nil is returned.
func confidenceDigest(values []float64) *ConfidenceDigest {
	if len(values) < 2 {
		return nil
	}

	sorted := make([]float64, len(values))
	copy(sorted, values)
	sort.Float64s(sorted)

	return &ConfidenceDigest{
		Count:  len(sorted),
		Mean:   stat.Mean(sorted, nil),
		StdDev: stat.StdDev(sorted, nil),
		P25:    stat.Quantile(0.25, stat.Empirical, sorted, nil),
		Median: stat.Quantile(0.5, stat.Empirical, sorted, nil),
		P75:    stat.Quantile(0.75, stat.Empirical, sorted, nil),
	}
}

// Get returns dashboard statistics
func (h *StatsHandler) Get(w http.ResponseWriter, r *http.Request) {
	if cached, ok := h.cache.get(); ok {
		respondJSON(w, http.StatusOK, cached)
		return
	}

	ctx := r.Context()

	students, err := h.store.CountStudents(ctx)
	if err != nil {
		respondError(w, http.StatusInternalServerError, "failed to count students")
		return
	}

	sampleCounts, err := h.store.CountSamplesBySource(ctx)
	if err != nil {
		respondError(w, http.StatusInternalServerError, "failed to count samples")
		return
	}

	today := store.Day(h.now())
	attendanceToday, err := h.store.CountRecordsForDay(ctx, today)
	if err != nil {
		respondError(w, http.StatusInternalServerError, "failed to count attendance")
		return
	}

	pendingCount, err := h.store.CountPending(ctx)
	if err != nil {
		respondError(w, http.StatusInternalServerError, "failed to count pending reviews")
		return
	}

	confidences, err := h.store.RecentConfidences(ctx, constants.StatsConfidenceWindow)
	if err != nil {
		respondError(w, http.StatusInternalServerError, "failed to load confidences")
		return
	}

	stats := &StatsResponse{
		Students:          students,
		EnrollmentSamples: sampleCounts[store.SourceEnrollment],
		AdaptiveSamples:   sampleCounts[store.SourceAdaptive],
		AttendanceToday:   attendanceToday,
		PendingReviews:    pendingCount,
		KnownSetSize:      h.engine.KnownSetSize(),
		Confidence:        confidenceDigest(confidences),
	}
	if loadedAt := h.engine.KnownSetLoadedAt(); !loadedAt.IsZero() {
		stats.KnownSetLoadedAt = loadedAt.Format(time.RFC3339)
	}

	if period, err := h.resolver.CurrentPeriod(ctx, h.now()); err == nil && period != nil {
		resp := entryToResponse(*period)
		stats.CurrentPeriod = &resp
	}

	h.cache.set(stats)
	respondJSON(w, http.StatusOK, stats)
}
