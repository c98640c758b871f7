package middleware

import (
	"context"
	"net/http"

	"github.com/kozaktomas/rollcall/internal/store"
)

type contextKey string

const (
	sessionContextKey contextKey = "session"
	deviceContextKey  contextKey = "device"
)

// RequireAuth is middleware that requires a valid admin session
func RequireAuth(sm *SessionManager) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			session := sm.GetSessionFromRequest(r)
			if session == nil {
				http.Error(w, `{"error": "unauthorized"}`, http.StatusUnauthorized)
				return
			}

			// Add session to context
			ctx := context.WithValue(r.Context(), sessionContextKey, session)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// RequireScanAuth is middleware for the scan endpoint. It accepts either an
// admin session or a kiosk device token, so both the admin UI and unattended
// kiosks can submit frames.
func RequireScanAuth(sm *SessionManager, da *DeviceAuth) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if session := sm.GetSessionFromRequest(r); session != nil {
				ctx := context.WithValue(r.Context(), sessionContextKey, session)
				next.ServeHTTP(w, r.WithContext(ctx))
				return
			}

			if da.Enabled() {
				if device, err := da.VerifyRequest(r); err == nil {
					ctx := context.WithValue(r.Context(), deviceContextKey, device)
					next.ServeHTTP(w, r.WithContext(ctx))
					return
				}
			}

			http.Error(w, `{"error": "unauthorized"}`, http.StatusUnauthorized)
		})
	}
}

// GetSessionFromContext retrieves the session from the request context
func GetSessionFromContext(ctx context.Context) *store.Session {
	session, ok := ctx.Value(sessionContextKey).(*store.Session)
	if !ok {
		return nil
	}
	return session
}

// GetDeviceFromContext retrieves the authenticated kiosk device name from the
// request context, empty when the request was not device-authenticated
func GetDeviceFromContext(ctx context.Context) string {
	device, ok := ctx.Value(deviceContextKey).(string)
	if !ok {
		return ""
	}
	return device
}

// SetSessionInContext adds a session to the context.
// This is primarily for testing - use RequireAuth middleware in production.
func SetSessionInContext(ctx context.Context, session *store.Session) context.Context {
	return context.WithValue(ctx, sessionContextKey, session)
}
