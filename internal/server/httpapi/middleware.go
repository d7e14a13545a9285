package httpapi

import (
	"context"
	"net/http"
	"strings"

	"github.com/avolkovs/taskkeeper/internal/server/auth"
)

type ctxKey string

const userIDKey ctxKey = "userID"

// withAuth verifies the bearer token and injects the authenticated user id
// into the request context. Requests without a valid token never reach the
// wrapped handler.
func (s *Server) withAuth(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		header := r.Header.Get("Authorization")
		token, ok := strings.CutPrefix(header, "Bearer ")
		if !ok || token == "" {
			s.writeJSON(w, r, http.StatusUnauthorized, errorResponse{Error: "unauthorized"})
			return
		}

		userID, err := auth.GetUserIDFromToken(token, s.jwtSecret)
		if err != nil {
			s.writeError(w, r, err)
			return
		}

		next(w, r.WithContext(context.WithValue(r.Context(), userIDKey, userID)))
	}
}

// userIDFromContext returns the authenticated user id placed by withAuth.
func userIDFromContext(ctx context.Context) string {
	id, _ := ctx.Value(userIDKey).(string)
	return id
}
