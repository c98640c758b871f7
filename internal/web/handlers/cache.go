package handlers

import (
	"net/http"

	"github.com/kozaktomas/rollcall/internal/recognition"
)

// CacheHandler exposes manual control over the known-set cache
type CacheHandler struct {
	engine *recognition.Engine
}

// NewCacheHandler creates a new cache handler
func NewCacheHandler(engine *recognition.Engine) *CacheHandler {
	return &CacheHandler{engine: engine}
}

// Refresh marks the known-set cache dirty. The rebuild happens lazily on
// the next decision, so the endpoint replies 202 rather than 200.
func (h *CacheHandler) Refresh(w http.ResponseWriter, r *http.Request) {
	h.engine.ForceRefresh()
	respondJSON(w, http.StatusAccepted, map[string]string{
		"status": "refresh scheduled",
	})
}
