package auth

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/sakif/soundscape/internal/model"
)

// contextKey is unexported so no other package can read or shadow the
// session stored in a request context.
type contextKey string

const sessionKey contextKey = "session"

// SessionFromRequest moves the request's bearer credential through the session
// lifecycle: absent when there is no Authorization header, pending once a
// token is found, then valid, expired or invalid after verification.
func SessionFromRequest(r *http.Request, tokens *TokenService) model.Session {
	raw, ok := bearerToken(r)
	if !ok {
		return model.Session{State: model.SessionAbsent}
	}

	session := model.Session{State: model.SessionPending, Token: raw}

	userID, err := tokens.Validate(raw)
	switch {
	case err == nil:
		session.State = model.SessionValid
		session.UserID = userID
	case errors.Is(err, ErrTokenExpired):
		session.State = model.SessionExpired
	default:
		session.State = model.SessionInvalid
	}
	return session
}

// RequireAuth rejects requests without a valid session with 401 and stores the
// session in the context for the rest.
func RequireAuth(tokens *TokenService) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			session := SessionFromRequest(r, tokens)
			if !session.Valid() {
				writeUnauthorized(w, session.State)
				return
			}
			next.ServeHTTP(w, r.WithContext(WithSession(r.Context(), session)))
		})
	}
}

// OptionalAuth stores whatever session the request carries and never blocks.
// Handlers decide what an absent or invalid session means for them.
func OptionalAuth(tokens *TokenService) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			session := SessionFromRequest(r, tokens)
			next.ServeHTTP(w, r.WithContext(WithSession(r.Context(), session)))
		})
	}
}

// WithSession returns a copy of ctx carrying session.
func WithSession(ctx context.Context, session model.Session) context.Context {
	return context.WithValue(ctx, sessionKey, session)
}

// SessionFromContext returns the session stored by the middleware, or an
// absent session if none was stored.
func SessionFromContext(ctx context.Context) model.Session {
	s, ok := ctx.Value(sessionKey).(model.Session)
	if !ok {
		return model.Session{State: model.SessionAbsent}
	}
	return s
}

// UserIDFromContext returns the authenticated user's ID, or ("", false) when
// the request has no valid session.
func UserIDFromContext(ctx context.Context) (string, bool) {
	s := SessionFromContext(ctx)
	return s.UserID, s.Valid()
}

func bearerToken(r *http.Request) (string, bool) {
	h := r.Header.Get("Authorization")
	scheme, token, found := strings.Cut(h, " ")
	if !found || !strings.EqualFold(scheme, "Bearer") {
		return "", false
	}
	token = strings.TrimSpace(token)
	return token, token != ""
}

func writeUnauthorized(w http.ResponseWriter, state model.SessionState) {
	msg := `{"error":"unauthorized","message":"Not authorized, no token"}`
	switch state {
	case model.SessionExpired:
		msg = `{"error":"unauthorized","message":"Session expired, please sign in again"}`
	case model.SessionInvalid:
		msg = `{"error":"unauthorized","message":"Not authorized, token failed"}`
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusUnauthorized)
	_, _ = w.Write([]byte(msg))
}
