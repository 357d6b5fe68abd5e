package httpapi

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/google/uuid"
)

type contextKey string

const (
	sessionKeyCtx contextKey = "session_key"
	requestIDCtx  contextKey = "request_id"
)

const sessionCookie = "cart_session"

// SessionMiddleware resolves the cart session key from the session cookie
// (or the X-Session-Key header for API clients), minting a new one for
// first-time visitors.
func SessionMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		key := r.Header.Get("X-Session-Key")
		if key == "" {
			if cookie, err := r.Cookie(sessionCookie); err == nil {
				key = cookie.Value
			}
		}
		if key == "" {
			key = uuid.NewString()
			http.SetCookie(w, &http.Cookie{
				Name:     sessionCookie,
				Value:    key,
				Path:     "/",
				MaxAge:   90 * 24 * 60 * 60,
				HttpOnly: true,
				SameSite: http.SameSiteLaxMode,
			})
		}

		ctx := context.WithValue(r.Context(), sessionKeyCtx, key)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// RequestIDMiddleware adds a unique request ID to each request
func RequestIDMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requestID := r.Header.Get("X-Request-ID")
		if requestID == "" {
			requestID = fmt.Sprintf("req-%d", time.Now().UnixNano())
		}

		ctx := context.WithValue(r.Context(), requestIDCtx, requestID)
		w.Header().Set("X-Request-ID", requestID)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func getSessionKey(ctx context.Context) string {
	if key, ok := ctx.Value(sessionKeyCtx).(string); ok {
		return key
	}
	return ""
}
