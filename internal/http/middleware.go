package http

import (
	"context"
	"net/http"
	"strings"

	"fintrack/internal/auth"
	"fintrack/internal/core"
)

type contextKey string

const userContextKey contextKey = "current_user"

// authenticated resolves the Bearer token to a live account and puts it
// on the request context. Missing, malformed or expired tokens and
// deleted accounts all end the request with 401.
func (s *Server) authenticated(next http.HandlerFunc) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		header := r.Header.Get("Authorization")
		token, ok := strings.CutPrefix(header, "Bearer ")
		if !ok || token == "" {
			writeError(w, r, core.ErrUnauthorized)
			return
		}

		claims, err := auth.ParseToken(token, s.cfg.JWTSecret)
		if err != nil {
			writeError(w, r, err)
			return
		}
		email, err := auth.Subject(claims)
		if err != nil {
			writeError(w, r, err)
			return
		}

		user, err := s.users.CurrentUser(r.Context(), email)
		if err != nil {
			writeError(w, r, err)
			return
		}

		ctx := context.WithValue(r.Context(), userContextKey, user)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// currentUser returns the account the auth middleware resolved.
func currentUser(r *http.Request) *core.User {
	user, _ := r.Context().Value(userContextKey).(*core.User)
	return user
}
