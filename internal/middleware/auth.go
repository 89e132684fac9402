package middleware

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"xpert-backend/internal/requestid"
)

type contextKey string

const SubjectKey contextKey = "subject"

// JWTAuth guards API routes with HS256 bearer tokens. An empty secret
// disables the check.
type JWTAuth struct {
	Secret []byte
}

func NewJWTAuth(secret string) *JWTAuth {
	return &JWTAuth{Secret: []byte(secret)}
}

func (j *JWTAuth) Enabled() bool { return len(j.Secret) > 0 }

// GenerateToken mints a token for subject, used by the CLI for local testing.
func (j *JWTAuth) GenerateToken(subject string, ttl time.Duration) (string, error) {
	claims := jwt.MapClaims{
		"sub": subject,
		"exp": time.Now().Add(ttl).Unix(),
		"iat": time.Now().Unix(),
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(j.Secret)
}

// ParseToken verifies tokenStr and returns its subject.
func (j *JWTAuth) ParseToken(tokenStr string) (string, error) {
	token, err := jwt.Parse(tokenStr, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, jwt.ErrSignatureInvalid
		}
		return j.Secret, nil
	})
	if err != nil {
		return "", err
	}
	if !token.Valid {
		return "", jwt.ErrTokenInvalidClaims
	}
	return token.Claims.GetSubject()
}

// Middleware validates the bearer token, or the token query parameter for
// websocket upgrades, and attaches the subject to the context.
func (j *JWTAuth) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !j.Enabled() {
			next.ServeHTTP(w, r)
			return
		}

		tokenStr := r.URL.Query().Get("token")
		if authHeader := r.Header.Get("Authorization"); authHeader != "" {
			parts := strings.SplitN(authHeader, " ", 2)
			if len(parts) != 2 || parts[0] != "Bearer" {
				writeError(w, http.StatusUnauthorized, "UNAUTHORIZED", "Invalid authorization format", r)
				return
			}
			tokenStr = parts[1]
		}
		if tokenStr == "" {
			writeError(w, http.StatusUnauthorized, "UNAUTHORIZED", "Missing authorization header", r)
			return
		}

		subject, err := j.ParseToken(tokenStr)
		if err != nil {
			if strings.Contains(err.Error(), "expired") {
				writeError(w, http.StatusUnauthorized, "TOKEN_EXPIRED", "Token has expired", r)
			} else {
				writeError(w, http.StatusUnauthorized, "UNAUTHORIZED", "Invalid token", r)
			}
			return
		}

		ctx := context.WithValue(r.Context(), SubjectKey, subject)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// GetSubject extracts the authenticated subject from request context.
func GetSubject(ctx context.Context) string {
	s, _ := ctx.Value(SubjectKey).(string)
	return s
}

// RequestID reuses the caller's X-Request-ID or generates one.
func RequestID(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := r.Header.Get("X-Request-ID")
		if id == "" {
			id = uuid.NewString()
			r.Header.Set("X-Request-ID", id)
		}
		w.Header().Set("X-Request-ID", id)
		next.ServeHTTP(w, r.WithContext(requestid.NewContext(r.Context(), id)))
	})
}

// GetRequestID returns the id set by RequestID, or "-".
func GetRequestID(ctx context.Context) string {
	return requestid.FromContext(ctx)
}

func writeError(w http.ResponseWriter, status int, code, message string, r *http.Request) {
	requestID := r.Header.Get("X-Request-ID")
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(map[string]interface{}{
		"error": map[string]interface{}{
			"code":       code,
			"message":    message,
			"request_id": requestID,
		},
	})
}
