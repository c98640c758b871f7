package handlers

import (
	"encoding/json"
	"log"
	"net/http"
	"strings"
	"time"

	"github.com/kozaktomas/rollcall/internal/web/middleware"
)

// DevicesHandler issues kiosk device tokens
type DevicesHandler struct {
	deviceAuth *middleware.DeviceAuth
}

// NewDevicesHandler creates a new devices handler
func NewDevicesHandler(da *middleware.DeviceAuth) *DevicesHandler {
	return &DevicesHandler{deviceAuth: da}
}

// deviceTokenRequest names the kiosk the token is issued for
type deviceTokenRequest struct {
	Name string `json:"name"`
}

// DeviceTokenResponse carries a freshly issued kiosk token
type DeviceTokenResponse struct {
	Name      string `json:"name"`
	Token     string `json:"token"`
	ExpiresAt string `json:"expires_at"`
}

// Token issues a signed token for a named kiosk device. Admin only, the
// token is shown once and configured on the kiosk by hand.
func (h *DevicesHandler) Token(w http.ResponseWriter, r *http.Request) {
	if !h.deviceAuth.Enabled() {
		respondError(w, http.StatusServiceUnavailable, "device tokens are disabled: set DEVICE_TOKEN_SECRET")
		return
	}

	var req deviceTokenRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, errInvalidRequestBody)
		return
	}

	req.Name = strings.TrimSpace(req.Name)
	if req.Name == "" {
		respondError(w, http.StatusBadRequest, "device name is required")
		return
	}

	token, expiresAt, err := h.deviceAuth.IssueToken(req.Name)
	if err != nil {
		respondError(w, http.StatusInternalServerError, "failed to issue device token")
		return
	}

	if session := middleware.GetSessionFromContext(r.Context()); session != nil {
		log.Printf("Device token issued for %q by %s", sanitizeForLog(req.Name), session.Username)
	}

	respondJSON(w, http.StatusOK, DeviceTokenResponse{
		Name:      req.Name,
		Token:     token,
		ExpiresAt: expiresAt.Format(time.RFC3339),
	})
}
