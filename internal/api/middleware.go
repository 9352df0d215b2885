package api

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"strings"

	"github.com/google/uuid"
	"github.com/gorilla/mux"
	"golang.org/x/time/rate"
)

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(code int) {
	r.status = code
	r.ResponseWriter.WriteHeader(code)
}

// MetricsMiddleware counts every request by method, route template and
// status code.
func MetricsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		endpoint := r.URL.Path
		if route := mux.CurrentRoute(r); route != nil {
			if tpl, err := route.GetPathTemplate(); err == nil {
				endpoint = tpl
			}
		}

		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(rec, r)
		httpRequestsTotal.WithLabelValues(r.Method, endpoint, strconv.Itoa(rec.status)).Inc()
	})
}

type contextKey string

const userIDKey contextKey = "user_id"

// Authenticator resolves a bearer token to the caller's identity. Identity
// itself is owned by the external provider; this service only needs the id.
type Authenticator interface {
	Authenticate(ctx context.Context, token string) (uuid.UUID, string, error)
}

// UserStore is the slice of the store the middleware needs to materialize a
// balance row for first-time users.
type UserStore interface {
	EnsureUser(ctx context.Context, id uuid.UUID, email string) error
}

// HTTPAuthenticator verifies tokens against the identity provider's verify
// endpoint.
type HTTPAuthenticator struct {
	VerifyURL string
	Client    *http.Client
}

func NewHTTPAuthenticator(verifyURL string) *HTTPAuthenticator {
	return &HTTPAuthenticator{VerifyURL: verifyURL, Client: &http.Client{}}
}

func (a *HTTPAuthenticator) Authenticate(ctx context.Context, token string) (uuid.UUID, string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, a.VerifyURL, nil)
	if err != nil {
		return uuid.Nil, "", err
	}
	req.Header.Set("Authorization", "Bearer "+token)

	resp, err := a.Client.Do(req)
	if err != nil {
		return uuid.Nil, "", err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return uuid.Nil, "", fmt.Errorf("identity provider status %d", resp.StatusCode)
	}

	var body struct {
		ID    uuid.UUID `json:"id"`
		Email string    `json:"email"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return uuid.Nil, "", fmt.Errorf("decode identity response: %w", err)
	}
	if body.ID == uuid.Nil {
		return uuid.Nil, "", fmt.Errorf("identity provider returned no user id")
	}
	return body.ID, body.Email, nil
}

// AuthMiddleware rejects requests without a valid bearer token and puts the
// resolved user id on the request context.
func AuthMiddleware(auth Authenticator, users UserStore) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			token := strings.TrimPrefix(r.Header.Get("Authorization"), "Bearer ")
			if token == "" || token == r.Header.Get("Authorization") {
				respondWithError(w, http.StatusUnauthorized, "Missing bearer token")
				return
			}

			userID, email, err := auth.Authenticate(r.Context(), token)
			if err != nil {
				respondWithError(w, http.StatusUnauthorized, "Invalid session")
				return
			}
			if err := users.EnsureUser(r.Context(), userID, email); err != nil {
				respondWithError(w, http.StatusInternalServerError, "System error")
				return
			}

			ctx := context.WithValue(r.Context(), userIDKey, userID)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// UserID returns the authenticated caller's id set by AuthMiddleware.
func UserID(r *http.Request) uuid.UUID {
	id, _ := r.Context().Value(userIDKey).(uuid.UUID)
	return id
}

// RateLimit applies a shared token-bucket limiter, used on the AI routes.
func RateLimit(limiter *rate.Limiter) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if !limiter.Allow() {
				respondWithError(w, http.StatusTooManyRequests, "Too many requests, slow down")
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
