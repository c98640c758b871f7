package middleware

import (
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v4"
	"github.com/google/uuid"
)

// deviceTokenHeader carries the kiosk token when the Authorization header is
// already occupied by a session bearer token
const deviceTokenHeader = "X-Device-Token"

// deviceClaims are the JWT claims embedded in a kiosk device token
type deviceClaims struct {
	Device string `json:"device"`
	jwt.RegisteredClaims
}

// DeviceAuth issues and verifies signed kiosk device tokens. Kiosks are
// unattended, so they authenticate the scan endpoint with a long-lived JWT
// instead of an admin session.
type DeviceAuth struct {
	secret []byte
	ttl    time.Duration
}

// NewDeviceAuth creates a device token authority. An empty secret disables
// device authentication entirely.
func NewDeviceAuth(secret string, ttl time.Duration) *DeviceAuth {
	return &DeviceAuth{
		secret: []byte(secret),
		ttl:    ttl,
	}
}

// Enabled reports whether device tokens can be issued and verified
func (da *DeviceAuth) Enabled() bool {
	return len(da.secret) > 0
}

// IssueToken creates a signed token for a named kiosk device
func (da *DeviceAuth) IssueToken(deviceName string) (string, time.Time, error) {
	if !da.Enabled() {
		return "", time.Time{}, fmt.Errorf("device tokens are disabled: no token secret configured")
	}
	if deviceName == "" {
		return "", time.Time{}, fmt.Errorf("device name must not be empty")
	}

	now := time.Now()
	expiresAt := now.Add(da.ttl)
	claims := deviceClaims{
		Device: deviceName,
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        uuid.NewString(),
			Subject:   deviceName,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(expiresAt),
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString(da.secret)
	if err != nil {
		return "", time.Time{}, fmt.Errorf("failed to sign device token: %w", err)
	}
	return signed, expiresAt, nil
}

// VerifyToken validates a token string and returns the device name
func (da *DeviceAuth) VerifyToken(tokenString string) (string, error) {
	if !da.Enabled() {
		return "", fmt.Errorf("device tokens are disabled")
	}

	claims := &deviceClaims{}
	token, err := jwt.ParseWithClaims(tokenString, claims, func(t *jwt.Token) (any, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method %v", t.Header["alg"])
		}
		return da.secret, nil
	})
	if err != nil {
		return "", fmt.Errorf("invalid device token: %w", err)
	}
	if !token.Valid || claims.Device == "" {
		return "", fmt.Errorf("invalid device token")
	}
	return claims.Device, nil
}

// VerifyRequest extracts and validates a device token from a request. The
// token may arrive in the X-Device-Token header or as a bearer token.
func (da *DeviceAuth) VerifyRequest(r *http.Request) (string, error) {
	if token := r.Header.Get(deviceTokenHeader); token != "" {
		return da.VerifyToken(token)
	}
	authHeader := r.Header.Get("Authorization")
	if strings.HasPrefix(authHeader, "Bearer ") {
		return da.VerifyToken(strings.TrimPrefix(authHeader, "Bearer "))
	}
	return "", fmt.Errorf("no device token in request")
}
