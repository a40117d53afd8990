package auth

import (
	"crypto/subtle"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/golang-jwt/jwt/v4"
)

var (
	// ErrMissingBearer is returned when no bearer token was presented.
	ErrMissingBearer = errors.New("missing bearer token")
	// ErrInvalidBearer is returned when the token matches neither the static
	// token nor a valid signed JWT.
	ErrInvalidBearer = errors.New("invalid bearer token")
)

// Claims are the JWT claims accepted by BearerVerifier.
type Claims struct {
	UserID string `json:"user_id,omitempty"`
	Role   string `json:"role,omitempty"`
	jwt.RegisteredClaims
}

// BearerVerifier accepts a fixed token, an HS256 JWT signed with a shared
// secret, or both.
type BearerVerifier struct {
	token  string
	secret []byte
}

// NewBearerVerifier creates a verifier. Empty arguments disable that check.
func NewBearerVerifier(token, jwtSecret string) *BearerVerifier {
	v := &BearerVerifier{token: token}
	if jwtSecret != "" {
		v.secret = []byte(jwtSecret)
	}
	return v
}

// Enabled reports whether any check is configured.
func (v *BearerVerifier) Enabled() bool {
	return v != nil && (v.token != "" || v.secret != nil)
}

// Verify checks a raw bearer token.
func (v *BearerVerifier) Verify(raw string) error {
	if raw == "" {
		return ErrMissingBearer
	}
	if v.token != "" && subtle.ConstantTimeCompare([]byte(raw), []byte(v.token)) == 1 {
		return nil
	}
	if v.secret == nil {
		return ErrInvalidBearer
	}
	token, err := jwt.ParseWithClaims(raw, &Claims{}, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method %v", token.Header["alg"])
		}
		return v.secret, nil
	})
	if err != nil || !token.Valid {
		return ErrInvalidBearer
	}
	return nil
}

// BearerToken extracts the token of an "Authorization: Bearer ..." header.
func BearerToken(r *http.Request) string {
	header := r.Header.Get("Authorization")
	const prefix = "bearer "
	if len(header) < len(prefix) || !strings.EqualFold(header[:len(prefix)], prefix) {
		return ""
	}
	return strings.TrimSpace(header[len(prefix):])
}

// Middleware rejects requests without a valid bearer token with 401. A
// verifier with no configured check lets every request through.
func (v *BearerVerifier) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !v.Enabled() {
			next.ServeHTTP(w, r)
			return
		}
		if err := v.Verify(BearerToken(r)); err != nil {
			w.Header().Set("Content-Type", "application/json")
			w.Header().Set("WWW-Authenticate", "Bearer")
			w.WriteHeader(http.StatusUnauthorized)
			json.NewEncoder(w).Encode(map[string]string{"detail": "Invalid or missing token"})
			return
		}
		next.ServeHTTP(w, r)
	})
}
