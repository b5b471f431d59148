// Package auth implements bearer-token authentication for both the HTTP
// API and live WebSocket connections.
//
// Tokens are signed JWTs carrying the user id. The same Manager verifies
// the Authorization header on HTTP requests and the handshake token on
// WebSocket upgrades, so a credential is a credential regardless of
// transport.
package auth

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

var (
	// ErrInvalidToken covers missing, malformed, expired, and
	// wrongly-signed tokens. Callers map it to 401.
	ErrInvalidToken = errors.New("invalid or expired token")
)

// Manager issues and verifies bearer tokens.
type Manager struct {
	secret []byte
	expiry time.Duration
}

// NewManager builds a Manager. secret must be non-empty; expiry is the
// lifetime of issued tokens.
func NewManager(secret string, expiry time.Duration) (*Manager, error) {
	if secret == "" {
		return nil, errors.New("auth: signing secret must not be empty")
	}
	if expiry <= 0 {
		return nil, errors.New("auth: token expiry must be positive")
	}
	return &Manager{secret: []byte(secret), expiry: expiry}, nil
}

// Issue creates a signed token for the given user id.
func (m *Manager) Issue(userID primitive.ObjectID) (string, error) {
	now := time.Now()
	claims := jwt.RegisteredClaims{
		Subject:   userID.Hex(),
		IssuedAt:  jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(now.Add(m.expiry)),
	}
	tok := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := tok.SignedString(m.secret)
	if err != nil {
		return "", fmt.Errorf("auth: signing token: %w", err)
	}
	return signed, nil
}

// Verify parses and validates a token string and returns the user id it
// was issued for. Any failure is reported as ErrInvalidToken.
func (m *Manager) Verify(token string) (primitive.ObjectID, error) {
	parsed, err := jwt.ParseWithClaims(token, &jwt.RegisteredClaims{}, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method %v", t.Header["alg"])
		}
		return m.secret, nil
	})
	if err != nil || !parsed.Valid {
		return primitive.NilObjectID, ErrInvalidToken
	}
	claims, ok := parsed.Claims.(*jwt.RegisteredClaims)
	if !ok || claims.Subject == "" {
		return primitive.NilObjectID, ErrInvalidToken
	}
	uid, err := primitive.ObjectIDFromHex(claims.Subject)
	if err != nil {
		return primitive.NilObjectID, ErrInvalidToken
	}
	return uid, nil
}

type ctxKey string

const currentUserKey ctxKey = "currentUser"

// CurrentUserID returns the authenticated user id placed in the request
// context by RequireSignedIn, and whether one is present.
func CurrentUserID(r *http.Request) (primitive.ObjectID, bool) {
	uid, ok := r.Context().Value(currentUserKey).(primitive.ObjectID)
	return uid, ok
}

// WithUserID returns a copy of r whose context carries uid. Exported for
// handler tests.
func WithUserID(r *http.Request, uid primitive.ObjectID) *http.Request {
	return r.WithContext(context.WithValue(r.Context(), currentUserKey, uid))
}

// TokenFromRequest extracts the bearer token from the Authorization
// header, falling back to the "token" query parameter for WebSocket
// handshakes (browsers cannot set headers on a WebSocket upgrade).
func TokenFromRequest(r *http.Request) string {
	if h := r.Header.Get("Authorization"); h != "" {
		parts := strings.SplitN(h, " ", 2)
		if len(parts) == 2 && strings.EqualFold(parts[0], "Bearer") {
			return strings.TrimSpace(parts[1])
		}
		return ""
	}
	return r.URL.Query().Get("token")
}

// RequireSignedIn verifies the request's bearer token and injects the
// user id into the context. Requests without a valid token get a plain
// 401; handlers never see them.
func (m *Manager) RequireSignedIn(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		token := TokenFromRequest(r)
		if token == "" {
			http.Error(w, "unauthorized", http.StatusUnauthorized)
			return
		}
		uid, err := m.Verify(token)
		if err != nil {
			http.Error(w, "unauthorized", http.StatusUnauthorized)
			return
		}
		next.ServeHTTP(w, WithUserID(r, uid))
	})
}
